package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/dulcevicio/course-api/internal/models"
)

// ReviewRepository handles persistence of course reviews.
type ReviewRepository struct {
	db *sqlx.DB
}

// NewReviewRepository constructs the repository.
func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

const reviewColumns = `r.id, r.course_id, r.user_id, u.full_name AS user_name, r.rating, r.comment, r.is_approved, r.created_at, r.updated_at`

// ListByCourse returns a course's reviews, newest first. When approvedOnly is
// set, pending reviews are hidden.
func (r *ReviewRepository) ListByCourse(ctx context.Context, courseID string, approvedOnly bool) ([]models.Review, error) {
	query := fmt.Sprintf("SELECT %s FROM reviews r JOIN users u ON u.id = r.user_id WHERE r.course_id = $1", reviewColumns)
	args := []interface{}{courseID}
	if approvedOnly {
		query += " AND r.is_approved = TRUE"
	}
	query += " ORDER BY r.created_at DESC"

	var reviews []models.Review
	if err := r.db.SelectContext(ctx, &reviews, query, args...); err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return reviews, nil
}

// FindByID returns a review by ID.
func (r *ReviewRepository) FindByID(ctx context.Context, id string) (*models.Review, error) {
	query := fmt.Sprintf("SELECT %s FROM reviews r JOIN users u ON u.id = r.user_id WHERE r.id = $1", reviewColumns)
	var review models.Review
	if err := r.db.GetContext(ctx, &review, query, id); err != nil {
		return nil, err
	}
	return &review, nil
}

// ExistsByUserAndCourse reports whether the user already reviewed the course.
func (r *ReviewRepository) ExistsByUserAndCourse(ctx context.Context, userID, courseID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM reviews WHERE user_id = $1 AND course_id = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, userID, courseID); err != nil {
		return false, fmt.Errorf("check review: %w", err)
	}
	return exists, nil
}

// Create persists a new review.
func (r *ReviewRepository) Create(ctx context.Context, review *models.Review) error {
	if review.ID == "" {
		review.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if review.CreatedAt.IsZero() {
		review.CreatedAt = now
	}
	review.UpdatedAt = now
	const query = `INSERT INTO reviews (id, course_id, user_id, rating, comment, is_approved, created_at, updated_at)
        VALUES (:id, :course_id, :user_id, :rating, :comment, :is_approved, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, review); err != nil {
		return fmt.Errorf("create review: %w", err)
	}
	return nil
}

// Approve marks the review visible in public listings.
func (r *ReviewRepository) Approve(ctx context.Context, id string) error {
	const query = `UPDATE reviews SET is_approved = TRUE, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("approve review: %w", err)
	}
	return nil
}

// Delete removes a review.
func (r *ReviewRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM reviews WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	return nil
}

// AverageRating returns the mean rating over approved reviews, or nil when
// the course has none.
func (r *ReviewRepository) AverageRating(ctx context.Context, courseID string) (*float64, error) {
	const query = `SELECT AVG(rating) FROM reviews WHERE course_id = $1 AND is_approved = TRUE`
	var average *float64
	if err := r.db.GetContext(ctx, &average, query, courseID); err != nil {
		return nil, fmt.Errorf("average rating: %w", err)
	}
	return average, nil
}
