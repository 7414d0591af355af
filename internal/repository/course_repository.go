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

// CourseRepository handles persistence of courses.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

const courseColumns = `id, title, slug, description, category, subcategory, tags, difficulty, cover_image_url, price, currency, community_url, status, published_at, rating_average, enrollment_count, lessons_count, total_duration_hours, deleted_at, created_by, created_at, updated_at`

// List returns courses matching the filter. PublicOnly restricts the result
// to published, non-deleted courses regardless of the Status filter.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	conditions := []string{"deleted_at IS NULL"}
	var args []interface{}

	if filter.PublicOnly {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, models.CourseStatusPublished)
	} else if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Category != "" {
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)+1))
		args = append(args, filter.Category)
	}
	if filter.Difficulty != "" {
		conditions = append(conditions, fmt.Sprintf("difficulty = $%d", len(args)+1))
		args = append(args, filter.Difficulty)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}

	clause := " WHERE " + strings.Join(conditions, " AND ")

	allowedSorts := map[string]string{
		"created_at":   "created_at",
		"published_at": "published_at",
		"title":        "title",
		"price":        "price",
		"rating":       "rating_average",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "created_at"
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

	query := fmt.Sprintf("SELECT %s FROM courses%s ORDER BY %s %s LIMIT %d OFFSET %d",
		courseColumns, clause, orderBy, order, size, offset)

	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM courses" + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// FindByID returns a course by ID, including soft-deleted rows so callers can
// distinguish deleted from missing.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	query := fmt.Sprintf("SELECT %s FROM courses WHERE id = $1", courseColumns)
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// FindBySlug returns a non-deleted course by slug.
func (r *CourseRepository) FindBySlug(ctx context.Context, slug string) (*models.Course, error) {
	query := fmt.Sprintf("SELECT %s FROM courses WHERE slug = $1 AND deleted_at IS NULL", courseColumns)
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, slug); err != nil {
		return nil, err
	}
	return &course, nil
}

// SlugExists reports whether any course row (deleted or not) uses the slug.
func (r *CourseRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM courses WHERE slug = $1)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, slug); err != nil {
		return false, fmt.Errorf("check slug: %w", err)
	}
	return exists, nil
}

// Create persists a new course.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	course.UpdatedAt = now
	const query = `INSERT INTO courses (id, title, slug, description, category, subcategory, tags, difficulty, cover_image_url, price, currency, community_url, status, published_at, created_by, created_at, updated_at)
        VALUES (:id, :title, :slug, :description, :category, :subcategory, :tags, :difficulty, :cover_image_url, :price, :currency, :community_url, :status, :published_at, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// Update persists the editable metadata of a course. Cached aggregates and
// lifecycle columns are written through their dedicated methods.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET title = :title, description = :description, category = :category, subcategory = :subcategory, tags = :tags, difficulty = :difficulty, price = :price, currency = :currency, community_url = :community_url, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return nil
}

// UpdateStatus moves the course through its lifecycle. publishedAt is only
// written on the first transition to PUBLISHED.
func (r *CourseRepository) UpdateStatus(ctx context.Context, id string, status models.CourseStatus, publishedAt *time.Time) error {
	const query = `UPDATE courses SET status = $2, published_at = COALESCE(published_at, $3), updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, publishedAt, time.Now().UTC()); err != nil {
		return fmt.Errorf("update course status: %w", err)
	}
	return nil
}

// UpdateCover stores the cover image public URL.
func (r *CourseRepository) UpdateCover(ctx context.Context, id, url string) error {
	const query = `UPDATE courses SET cover_image_url = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, url, time.Now().UTC()); err != nil {
		return fmt.Errorf("update course cover: %w", err)
	}
	return nil
}

// UpdateStats overwrites the lesson-derived aggregates.
func (r *CourseRepository) UpdateStats(ctx context.Context, id string, lessonsCount int, totalDurationHours float64) error {
	const query = `UPDATE courses SET lessons_count = $2, total_duration_hours = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, lessonsCount, totalDurationHours, time.Now().UTC()); err != nil {
		return fmt.Errorf("update course stats: %w", err)
	}
	return nil
}

// UpdateRating overwrites the cached review average. A nil average clears it.
func (r *CourseRepository) UpdateRating(ctx context.Context, id string, average *float64) error {
	const query = `UPDATE courses SET rating_average = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, average, time.Now().UTC()); err != nil {
		return fmt.Errorf("update course rating: %w", err)
	}
	return nil
}

// UpdateEnrollmentCount overwrites the cached enrollment count.
func (r *CourseRepository) UpdateEnrollmentCount(ctx context.Context, id string, count int) error {
	const query = `UPDATE courses SET enrollment_count = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, count, time.Now().UTC()); err != nil {
		return fmt.Errorf("update course enrollment count: %w", err)
	}
	return nil
}

// SoftDelete marks the course deleted without removing its rows.
func (r *CourseRepository) SoftDelete(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE courses SET deleted_at = $2, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ts); err != nil {
		return fmt.Errorf("soft delete course: %w", err)
	}
	return nil
}

// HardDelete permanently removes the course. Lessons cascade at the schema
// level.
func (r *CourseRepository) HardDelete(ctx context.Context, id string) error {
	const query = `DELETE FROM courses WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("hard delete course: %w", err)
	}
	return nil
}
