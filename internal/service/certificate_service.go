package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dulcevicio/course-api/internal/models"
	"github.com/dulcevicio/course-api/pkg/export"
	"github.com/dulcevicio/course-api/pkg/jobs"
)

type certificateEnrollmentRepository interface {
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	UpdateCertificateURL(ctx context.Context, id, url string) error
}

type certificateStore interface {
	Save(filename string, data []byte) (string, error)
	PublicURL(rel string) string
}

// CertificateService renders completion certificates in the background. The
// completion endpoint only enqueues; students poll the enrollment until
// certificate_url is populated.
type CertificateService struct {
	repo     certificateEnrollmentRepository
	renderer *export.CertificateRenderer
	store    certificateStore
	metrics  *MetricsService
	logger   *zap.Logger
	queue    *jobs.Queue
}

// NewCertificateService constructs the service and its render queue.
func NewCertificateService(repo certificateEnrollmentRepository, renderer *export.CertificateRenderer, store certificateStore, metrics *MetricsService, logger *zap.Logger, workers, retries int) *CertificateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &CertificateService{repo: repo, renderer: renderer, store: store, metrics: metrics, logger: logger}
	s.queue = jobs.NewQueue("certificates", s.handleRender, jobs.QueueConfig{
		Workers:    workers,
		MaxRetries: retries,
		RetryDelay: 5 * time.Second,
		Logger:     logger,
	})
	return s
}

// Start launches the render workers.
func (s *CertificateService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the render workers.
func (s *CertificateService) Stop() {
	s.queue.Stop()
}

// EnqueueRender schedules certificate rendering for a completed enrollment.
func (s *CertificateService) EnqueueRender(enrollmentID string) error {
	return s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    "certificate.render",
		Payload: enrollmentID,
	})
}

func (s *CertificateService) handleRender(ctx context.Context, job jobs.Job) error {
	enrollmentID, ok := job.Payload.(string)
	if !ok {
		return fmt.Errorf("certificate job payload is not an enrollment id: %T", job.Payload)
	}

	detail, err := s.repo.FindDetailByID(ctx, enrollmentID)
	if err != nil {
		return fmt.Errorf("load enrollment %s: %w", enrollmentID, err)
	}
	if detail.CompletedAt == nil {
		s.logger.Warn("skipping certificate for uncompleted enrollment", zap.String("enrollment_id", enrollmentID))
		return nil
	}

	serial := strings.ToUpper(strings.ReplaceAll(enrollmentID, "-", ""))
	if len(serial) > 12 {
		serial = serial[:12]
	}
	pdf, err := s.renderer.Render(export.Certificate{
		StudentName: detail.UserName,
		CourseTitle: detail.CourseTitle,
		CompletedAt: *detail.CompletedAt,
		Serial:      serial,
	})
	if err != nil {
		return fmt.Errorf("render certificate %s: %w", enrollmentID, err)
	}

	rel := fmt.Sprintf("certificates/%s.pdf", enrollmentID)
	if _, err := s.store.Save(rel, pdf); err != nil {
		return fmt.Errorf("store certificate %s: %w", enrollmentID, err)
	}
	if err := s.repo.UpdateCertificateURL(ctx, enrollmentID, s.store.PublicURL(rel)); err != nil {
		return fmt.Errorf("record certificate url %s: %w", enrollmentID, err)
	}

	s.metrics.RecordCertificateRendered()
	s.logger.Info("certificate rendered", zap.String("enrollment_id", enrollmentID))
	return nil
}
