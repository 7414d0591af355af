package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/dulcevicio/course-api/internal/models"
	appErrors "github.com/dulcevicio/course-api/pkg/errors"
)

type accessEnrollmentRepository interface {
	FindActiveByUserAndCourse(ctx context.Context, userID, courseID string) (*models.Enrollment, error)
	UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, updatedBy string) error
}

// AccessDecision is the result of an access check.
type AccessDecision struct {
	Allowed    bool               `json:"allowed"`
	Reason     string             `json:"reason,omitempty"`
	Enrollment *models.Enrollment `json:"enrollment,omitempty"`
}

// AccessService decides whether a user may consume a course's content. The
// rule is a single conjunction: an ACTIVE enrollment whose expires_at is
// still in the future. Expiry is lazy, so a stored ACTIVE row past its
// deadline denies access and is flipped to EXPIRED on the way out.
type AccessService struct {
	repo   accessEnrollmentRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewAccessService constructs an AccessService.
func NewAccessService(repo accessEnrollmentRepository, logger *zap.Logger) *AccessService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccessService{repo: repo, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// CanAccess evaluates the access rule for one user and course.
func (s *AccessService) CanAccess(ctx context.Context, userID, courseID string) (AccessDecision, error) {
	enrollment, err := s.repo.FindActiveByUserAndCourse(ctx, userID, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return AccessDecision{Allowed: false, Reason: "no active enrollment"}, nil
		}
		return AccessDecision{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	now := s.now()
	if !now.Before(enrollment.ExpiresAt) {
		// Persist the lazy transition; access is denied either way.
		if err := s.repo.UpdateStatus(ctx, enrollment.ID, models.EnrollmentStatusExpired, userID); err != nil {
			s.logger.Warn("failed to persist lazy expiry", zap.String("enrollment_id", enrollment.ID), zap.Error(err))
		}
		enrollment.Status = models.EnrollmentStatusExpired
		return AccessDecision{Allowed: false, Reason: "enrollment expired", Enrollment: enrollment}, nil
	}

	return AccessDecision{Allowed: true, Enrollment: enrollment}, nil
}
