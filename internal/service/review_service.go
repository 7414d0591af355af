package service

import (
	"context"
	"database/sql"
	"errors"
	"math"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/dulcevicio/course-api/internal/models"
	appErrors "github.com/dulcevicio/course-api/pkg/errors"
)

type reviewRepository interface {
	ListByCourse(ctx context.Context, courseID string, approvedOnly bool) ([]models.Review, error)
	FindByID(ctx context.Context, id string) (*models.Review, error)
	ExistsByUserAndCourse(ctx context.Context, userID, courseID string) (bool, error)
	Create(ctx context.Context, review *models.Review) error
	Approve(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	AverageRating(ctx context.Context, courseID string) (*float64, error)
}

type accessChecker interface {
	CanAccess(ctx context.Context, userID, courseID string) (AccessDecision, error)
}

type ratingWriter interface {
	UpdateRating(ctx context.Context, id string, average *float64) error
}

// CreateReviewRequest holds a student's rating and opinion.
type CreateReviewRequest struct {
	Rating  int     `json:"rating" validate:"required,gte=1,lte=5"`
	Comment *string `json:"comment,omitempty" validate:"omitempty,max=2000"`
}

// ReviewService manages course reviews. Submitting one requires current
// access to the course, so the access rule gates reviews exactly as it
// gates content.
type ReviewService struct {
	repo      reviewRepository
	access    accessChecker
	ratings   ratingWriter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewReviewService constructs a ReviewService.
func NewReviewService(repo reviewRepository, access accessChecker, ratings ratingWriter, validate *validator.Validate, logger *zap.Logger) *ReviewService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewService{repo: repo, access: access, ratings: ratings, validator: validate, logger: logger}
}

// ListByCourse returns reviews. Moderators see pending ones too.
func (s *ReviewService) ListByCourse(ctx context.Context, actor models.JWTClaims, courseID string) ([]models.Review, error) {
	approvedOnly := !Allowed(actor.Role, ActionReviewModerate)
	reviews, err := s.repo.ListByCourse(ctx, courseID, approvedOnly)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reviews")
	}
	return reviews, nil
}

// Create submits a review for a course the actor can currently access.
func (s *ReviewService) Create(ctx context.Context, actor models.JWTClaims, courseID string, req CreateReviewRequest) (*models.Review, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}

	decision, err := s.access.CanAccess(ctx, actor.UserID, courseID)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "reviews require active access to the course")
	}

	exists, err := s.repo.ExistsByUserAndCourse(ctx, actor.UserID, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing review")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "course already reviewed")
	}

	review := &models.Review{
		CourseID:   courseID,
		UserID:     actor.UserID,
		UserName:   actor.FullName,
		Rating:     req.Rating,
		Comment:    req.Comment,
		IsApproved: false,
	}
	if err := s.repo.Create(ctx, review); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create review")
	}
	return review, nil
}

// Approve makes a review public and refreshes the course rating average.
func (s *ReviewService) Approve(ctx context.Context, actor models.JWTClaims, id string) (*models.Review, error) {
	if err := Authorize(actor.Role, ActionReviewModerate); err != nil {
		return nil, err
	}
	review, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Approve(ctx, id); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve review")
	}
	review.IsApproved = true
	s.refreshRating(ctx, review.CourseID)
	return review, nil
}

// Delete removes a review and refreshes the course rating average.
func (s *ReviewService) Delete(ctx context.Context, actor models.JWTClaims, id string) error {
	review, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if review.UserID != actor.UserID {
		if err := Authorize(actor.Role, ActionReviewModerate); err != nil {
			return err
		}
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete review")
	}
	s.refreshRating(ctx, review.CourseID)
	return nil
}

func (s *ReviewService) load(ctx context.Context, id string) (*models.Review, error) {
	review, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "review not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load review")
	}
	return review, nil
}

func (s *ReviewService) refreshRating(ctx context.Context, courseID string) {
	if s.ratings == nil {
		return
	}
	average, err := s.repo.AverageRating(ctx, courseID)
	if err != nil {
		s.logger.Warn("failed to compute rating average", zap.String("course_id", courseID), zap.Error(err))
		return
	}
	if average != nil {
		rounded := math.Round(*average*100) / 100
		average = &rounded
	}
	if err := s.ratings.UpdateRating(ctx, courseID, average); err != nil {
		s.logger.Warn("failed to store rating average", zap.String("course_id", courseID), zap.Error(err))
	}
}
