package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/dulcevicio/course-api/internal/models"
)

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

const enrollmentColumns = `e.id, e.user_id, e.course_id, e.status, e.enrolled_at, e.expires_at, e.last_accessed_lesson_id, e.last_video_position_seconds, e.last_accessed_at, e.completed_at, e.certificate_url, e.notes, e.created_by, e.updated_by, e.created_at, e.updated_at`

const enrollmentDetailColumns = enrollmentColumns + `, u.full_name AS user_name, u.email AS user_email, c.title AS course_title, c.slug AS course_slug`

const enrollmentJoins = ` FROM enrollments e
        JOIN users u ON u.id = e.user_id
        JOIN courses c ON c.id = e.course_id`

// List returns enrollment details matching the filter.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	var conditions []string
	var args []interface{}

	if filter.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("e.user_id = $%d", len(args)+1))
		args = append(args, filter.UserID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("e.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"enrolled_at": "e.enrolled_at",
		"expires_at":  "e.expires_at",
		"status":      "e.status",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "e.enrolled_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s%s%s ORDER BY %s %s LIMIT %d OFFSET %d",
		enrollmentDetailColumns, enrollmentJoins, clause, orderBy, order, size, offset)

	var items []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := "SELECT COUNT(*)" + enrollmentJoins + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return items, total, nil
}

// FindByID returns an enrollment by ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := fmt.Sprintf("SELECT %s FROM enrollments e WHERE e.id = $1", enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindDetailByID returns an enrollment joined with user and course info.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	query := fmt.Sprintf("SELECT %s%s WHERE e.id = $1", enrollmentDetailColumns, enrollmentJoins)
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// FindActiveByUserAndCourse returns the ACTIVE enrollment linking a user to a
// course. The caller still has to check expires_at: a stored ACTIVE row past
// its expiry does not grant access.
func (r *EnrollmentRepository) FindActiveByUserAndCourse(ctx context.Context, userID, courseID string) (*models.Enrollment, error) {
	query := fmt.Sprintf("SELECT %s FROM enrollments e WHERE e.user_id = $1 AND e.course_id = $2 AND e.status = $3", enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, userID, courseID, models.EnrollmentStatusActive); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ExistsActive reports whether the user already holds an ACTIVE, unexpired
// enrollment in the course at the given instant.
func (r *EnrollmentRepository) ExistsActive(ctx context.Context, userID, courseID string, now time.Time) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM enrollments WHERE user_id = $1 AND course_id = $2 AND status = $3 AND expires_at > $4)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, userID, courseID, models.EnrollmentStatusActive, now); err != nil {
		return false, fmt.Errorf("check active enrollment: %w", err)
	}
	return exists, nil
}

// Create persists a new enrollment.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = now
	}
	enrollment.UpdatedAt = now
	const query = `INSERT INTO enrollments (id, user_id, course_id, status, enrolled_at, expires_at, notes, created_by, created_at, updated_at)
        VALUES (:id, :user_id, :course_id, :status, :enrolled_at, :expires_at, :notes, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// UpdateProgress records where the student left off.
func (r *EnrollmentRepository) UpdateProgress(ctx context.Context, id string, lessonID *string, videoPosition *int, at time.Time) error {
	const query = `UPDATE enrollments SET last_accessed_lesson_id = $2, last_video_position_seconds = $3, last_accessed_at = $4, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, lessonID, videoPosition, at); err != nil {
		return fmt.Errorf("update enrollment progress: %w", err)
	}
	return nil
}

// UpdateExpiry writes a new expiry instant and status in one statement, used
// by extensions which may also reactivate an EXPIRED enrollment.
func (r *EnrollmentRepository) UpdateExpiry(ctx context.Context, id string, expiresAt time.Time, status models.EnrollmentStatus, updatedBy string) error {
	const query = `UPDATE enrollments SET expires_at = $2, status = $3, updated_by = $4, updated_at = $5 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, expiresAt, status, updatedBy, time.Now().UTC()); err != nil {
		return fmt.Errorf("update enrollment expiry: %w", err)
	}
	return nil
}

// UpdateStatus writes the enrollment status.
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, updatedBy string) error {
	const query = `UPDATE enrollments SET status = $2, updated_by = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, updatedBy, time.Now().UTC()); err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}
	return nil
}

// UpdateCompletion records the completion instant.
func (r *EnrollmentRepository) UpdateCompletion(ctx context.Context, id string, completedAt time.Time, updatedBy string) error {
	const query = `UPDATE enrollments SET completed_at = $2, updated_by = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, completedAt, updatedBy, time.Now().UTC()); err != nil {
		return fmt.Errorf("update enrollment completion: %w", err)
	}
	return nil
}

// UpdateCertificateURL stores the rendered certificate location.
func (r *EnrollmentRepository) UpdateCertificateURL(ctx context.Context, id, url string) error {
	const query = `UPDATE enrollments SET certificate_url = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, url, time.Now().UTC()); err != nil {
		return fmt.Errorf("update certificate url: %w", err)
	}
	return nil
}

// CountActiveByCourse counts ACTIVE enrollments in a course, expired or not.
// It backs the cached enrollment_count aggregate.
func (r *EnrollmentRepository) CountActiveByCourse(ctx context.Context, courseID string) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE course_id = $1 AND status = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, courseID, models.EnrollmentStatusActive); err != nil {
		return 0, fmt.Errorf("count active enrollments: %w", err)
	}
	return count, nil
}

// MarkExpiredBefore flips ACTIVE rows past their expiry to EXPIRED and
// returns how many were touched. Used by the optional background sweep; the
// API never depends on it running.
func (r *EnrollmentRepository) MarkExpiredBefore(ctx context.Context, now time.Time) (int64, error) {
	const query = `UPDATE enrollments SET status = $1, updated_at = $2 WHERE status = $3 AND expires_at <= $2`
	result, err := r.db.ExecContext(ctx, query, models.EnrollmentStatusExpired, now, models.EnrollmentStatusActive)
	if err != nil {
		return 0, fmt.Errorf("mark expired enrollments: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark expired enrollments: %w", err)
	}
	return affected, nil
}
