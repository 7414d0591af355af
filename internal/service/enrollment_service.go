package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/dulcevicio/course-api/internal/models"
	appErrors "github.com/dulcevicio/course-api/pkg/errors"
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	ExistsActive(ctx context.Context, userID, courseID string, now time.Time) (bool, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	UpdateProgress(ctx context.Context, id string, lessonID *string, videoPosition *int, at time.Time) error
	UpdateExpiry(ctx context.Context, id string, expiresAt time.Time, status models.EnrollmentStatus, updatedBy string) error
	UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, updatedBy string) error
	UpdateCompletion(ctx context.Context, id string, completedAt time.Time, updatedBy string) error
	CountActiveByCourse(ctx context.Context, courseID string) (int, error)
}

type userReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type lessonReader interface {
	FindByID(ctx context.Context, id string) (*models.Lesson, error)
}

type enrollmentCountWriter interface {
	UpdateEnrollmentCount(ctx context.Context, id string, count int) error
}

type certificateEnqueuer interface {
	EnqueueRender(enrollmentID string) error
}

// CreateEnrollmentRequest grants a user access to a course.
type CreateEnrollmentRequest struct {
	UserID   string  `json:"user_id" validate:"required"`
	CourseID string  `json:"course_id" validate:"required"`
	Notes    *string `json:"notes,omitempty"`
}

// UpdateProgressRequest records where the student left off.
type UpdateProgressRequest struct {
	LessonID             *string `json:"lesson_id,omitempty"`
	VideoPositionSeconds *int    `json:"video_position_seconds,omitempty" validate:"omitempty,gte=0"`
}

// ExtendEnrollmentRequest adds days of access on top of the current expiry.
type ExtendEnrollmentRequest struct {
	AdditionalDays int `json:"additional_days" validate:"required,gte=1,lte=3650"`
}

// EnrollmentService orchestrates the enrollment lifecycle.
type EnrollmentService struct {
	repo         enrollmentRepository
	users        userReader
	courses      courseReader
	lessons      lessonReader
	courseCounts enrollmentCountWriter
	certificates certificateEnqueuer
	audit        auditWriter
	metrics      *MetricsService
	validator    *validator.Validate
	logger       *zap.Logger
	now          func() time.Time
}

// NewEnrollmentService constructs an EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, users userReader, courses courseReader, lessons lessonReader, courseCounts enrollmentCountWriter, certificates certificateEnqueuer, audit auditWriter, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		repo:         repo,
		users:        users,
		courses:      courses,
		lessons:      lessons,
		courseCounts: courseCounts,
		certificates: certificates,
		audit:        audit,
		metrics:      metrics,
		validator:    validate,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// List returns enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return enrollments, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one enrollment. Regular users only see their own.
func (s *EnrollmentService) Get(ctx context.Context, actor models.JWTClaims, id string) (*models.EnrollmentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if detail.UserID != actor.UserID && !Allowed(actor.Role, ActionEnrollmentList) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "enrollment belongs to another user")
	}
	return detail, nil
}

// Create grants a user a year of access to a course. A second active grant
// for the same pair is rejected. The duplicate check and the insert are two
// steps, so concurrent creates for the same pair can slip through; admin
// traffic makes that window acceptable and cancellation covers cleanup.
func (s *EnrollmentService) Create(ctx context.Context, actor models.JWTClaims, req CreateEnrollmentRequest) (*models.EnrollmentDetail, error) {
	if err := Authorize(actor.Role, ActionEnrollmentCreate); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	user, err := s.users.FindByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if user.Deleted() {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
	}
	if !user.Active {
		return nil, appErrors.Clone(appErrors.ErrConflict, "user account is inactive")
	}

	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if course.Deleted() {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}

	now := s.now()
	exists, err := s.repo.ExistsActive(ctx, req.UserID, req.CourseID, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate enrollment")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "user already has active access to this course")
	}

	enrollment := &models.Enrollment{
		UserID:     req.UserID,
		CourseID:   req.CourseID,
		Status:     models.EnrollmentStatusActive,
		EnrolledAt: now,
		ExpiresAt:  now.AddDate(0, 0, models.DefaultEnrollmentDays),
		Notes:      req.Notes,
		CreatedBy:  actor.UserID,
	}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}

	s.refreshCourseCount(ctx, req.CourseID)
	s.metrics.RecordEnrollmentTransition(string(models.EnrollmentStatusActive))
	s.recordAudit(ctx, actor.UserID, models.AuditActionEnrollmentCreate, enrollment.ID, map[string]interface{}{
		"user_id": req.UserID, "course_id": req.CourseID, "expires_at": enrollment.ExpiresAt,
	})

	detail, err := s.repo.FindDetailByID(ctx, enrollment.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment detail")
	}
	return detail, nil
}

// UpdateProgress records playback position. Only the enrollment's owner may
// report progress, and only while the grant is active and unexpired.
func (s *EnrollmentService) UpdateProgress(ctx context.Context, actor models.JWTClaims, id string, req UpdateProgressRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid progress payload")
	}

	enrollment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if enrollment.UserID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "enrollment belongs to another user")
	}
	if enrollment.Status != models.EnrollmentStatusActive {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "enrollment is not active")
	}
	now := s.now()
	if !now.Before(enrollment.ExpiresAt) {
		if err := s.repo.UpdateStatus(ctx, id, models.EnrollmentStatusExpired, actor.UserID); err != nil {
			s.logger.Warn("failed to persist lazy expiry", zap.String("enrollment_id", id), zap.Error(err))
		}
		return nil, appErrors.Clone(appErrors.ErrForbidden, "enrollment has expired")
	}

	if req.LessonID != nil {
		lesson, err := s.lessons.FindByID(ctx, *req.LessonID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
		}
		if lesson.CourseID != enrollment.CourseID {
			return nil, appErrors.Clone(appErrors.ErrValidation, "lesson does not belong to the enrolled course")
		}
	}

	if err := s.repo.UpdateProgress(ctx, id, req.LessonID, req.VideoPositionSeconds, now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update progress")
	}

	enrollment.LastAccessedLessonID = req.LessonID
	enrollment.LastVideoPositionSeconds = req.VideoPositionSeconds
	enrollment.LastAccessedAt = &now
	return enrollment, nil
}

// Extend pushes the expiry forward by the requested days, stacking on the
// current expires_at rather than the clock. Extending an EXPIRED enrollment
// reactivates it; a CANCELLED one stays terminal.
func (s *EnrollmentService) Extend(ctx context.Context, actor models.JWTClaims, id string, req ExtendEnrollmentRequest) (*models.EnrollmentDetail, error) {
	if err := Authorize(actor.Role, ActionEnrollmentExtend); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid extension payload")
	}

	enrollment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if enrollment.Status == models.EnrollmentStatusCancelled {
		return nil, appErrors.Clone(appErrors.ErrConflict, "cancelled enrollments cannot be extended")
	}

	newExpiry := enrollment.ExpiresAt.AddDate(0, 0, req.AdditionalDays)
	newStatus := models.EnrollmentStatusActive
	if err := s.repo.UpdateExpiry(ctx, id, newExpiry, newStatus, actor.UserID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to extend enrollment")
	}

	if enrollment.Status == models.EnrollmentStatusExpired {
		s.refreshCourseCount(ctx, enrollment.CourseID)
	}
	s.metrics.RecordEnrollmentTransition(string(newStatus))
	s.recordAudit(ctx, actor.UserID, models.AuditActionEnrollmentExtend, id, map[string]interface{}{
		"additional_days": req.AdditionalDays, "expires_at": newExpiry,
	})

	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment detail")
	}
	return detail, nil
}

// Cancel revokes access immediately. The transition is allowed from any
// state and is terminal: no later operation brings a cancelled grant back.
func (s *EnrollmentService) Cancel(ctx context.Context, actor models.JWTClaims, id string) (*models.EnrollmentDetail, error) {
	if err := Authorize(actor.Role, ActionEnrollmentCancel); err != nil {
		return nil, err
	}

	enrollment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateStatus(ctx, id, models.EnrollmentStatusCancelled, actor.UserID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel enrollment")
	}

	s.refreshCourseCount(ctx, enrollment.CourseID)
	s.metrics.RecordEnrollmentTransition(string(models.EnrollmentStatusCancelled))
	s.recordAudit(ctx, actor.UserID, models.AuditActionEnrollmentCancel, id, map[string]interface{}{
		"previous_status": enrollment.Status,
	})

	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment detail")
	}
	return detail, nil
}

// Complete marks the course finished for the student and queues the
// completion certificate for rendering.
func (s *EnrollmentService) Complete(ctx context.Context, actor models.JWTClaims, id string) (*models.EnrollmentDetail, error) {
	enrollment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if enrollment.UserID != actor.UserID && !Allowed(actor.Role, ActionEnrollmentCreate) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "enrollment belongs to another user")
	}
	if !enrollment.IsActiveAt(s.now()) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "enrollment is not active")
	}
	if enrollment.CompletedAt != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "course already completed")
	}

	completedAt := s.now()
	if err := s.repo.UpdateCompletion(ctx, id, completedAt, actor.UserID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record completion")
	}

	if s.certificates != nil {
		if err := s.certificates.EnqueueRender(id); err != nil {
			s.logger.Warn("failed to queue certificate render", zap.String("enrollment_id", id), zap.Error(err))
		}
	}
	s.recordAudit(ctx, actor.UserID, models.AuditActionEnrollmentDone, id, map[string]interface{}{
		"completed_at": completedAt,
	})

	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment detail")
	}
	return detail, nil
}

func (s *EnrollmentService) load(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return enrollment, nil
}

func (s *EnrollmentService) refreshCourseCount(ctx context.Context, courseID string) {
	if s.courseCounts == nil {
		return
	}
	count, err := s.repo.CountActiveByCourse(ctx, courseID)
	if err != nil {
		s.logger.Warn("failed to count enrollments", zap.String("course_id", courseID), zap.Error(err))
		return
	}
	if err := s.courseCounts.UpdateEnrollmentCount(ctx, courseID, count); err != nil {
		s.logger.Warn("failed to store enrollment count", zap.String("course_id", courseID), zap.Error(err))
	}
}

func (s *EnrollmentService) recordAudit(ctx context.Context, actorID string, action models.AuditAction, enrollmentID string, values map[string]interface{}) {
	if s.audit == nil {
		return
	}
	payload, err := json.Marshal(values)
	if err != nil {
		payload = nil
	}
	if err := s.audit.Create(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "enrollment",
		ResourceID: &enrollmentID,
		NewValues:  payload,
	}); err != nil {
		s.logger.Warn("failed to record enrollment audit log", zap.Error(err))
	}
}
