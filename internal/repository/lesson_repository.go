package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/dulcevicio/course-api/internal/models"
)

// LessonRepository handles persistence of lessons and their embedded
// materials.
type LessonRepository struct {
	db *sqlx.DB
}

// NewLessonRepository constructs the repository.
func NewLessonRepository(db *sqlx.DB) *LessonRepository {
	return &LessonRepository{db: db}
}

const lessonColumns = `id, course_id, title, summary, duration_seconds, position, is_preview, video_url, video_id, materials, created_by, created_at, updated_at`

// ListByCourse returns all lessons of a course ordered by position.
func (r *LessonRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Lesson, error) {
	query := fmt.Sprintf("SELECT %s FROM lessons WHERE course_id = $1 ORDER BY position ASC", lessonColumns)
	var lessons []models.Lesson
	if err := r.db.SelectContext(ctx, &lessons, query, courseID); err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	return lessons, nil
}

// FindByID returns a lesson by ID.
func (r *LessonRepository) FindByID(ctx context.Context, id string) (*models.Lesson, error) {
	query := fmt.Sprintf("SELECT %s FROM lessons WHERE id = $1", lessonColumns)
	var lesson models.Lesson
	if err := r.db.GetContext(ctx, &lesson, query, id); err != nil {
		return nil, err
	}
	return &lesson, nil
}

// MaxOrder returns the highest position in a course, or 0 when the course has
// no lessons.
func (r *LessonRepository) MaxOrder(ctx context.Context, courseID string) (int, error) {
	const query = `SELECT COALESCE(MAX(position), 0) FROM lessons WHERE course_id = $1`
	var max int
	if err := r.db.GetContext(ctx, &max, query, courseID); err != nil {
		return 0, fmt.Errorf("max lesson order: %w", err)
	}
	return max, nil
}

// Create persists a new lesson.
func (r *LessonRepository) Create(ctx context.Context, lesson *models.Lesson) error {
	if lesson.ID == "" {
		lesson.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if lesson.CreatedAt.IsZero() {
		lesson.CreatedAt = now
	}
	lesson.UpdatedAt = now
	if lesson.Materials == nil {
		lesson.Materials = models.MaterialList{}
	}
	const query = `INSERT INTO lessons (id, course_id, title, summary, duration_seconds, position, is_preview, video_url, video_id, materials, created_by, created_at, updated_at)
        VALUES (:id, :course_id, :title, :summary, :duration_seconds, :position, :is_preview, :video_url, :video_id, :materials, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, lesson); err != nil {
		return fmt.Errorf("create lesson: %w", err)
	}
	return nil
}

// Update persists the editable fields of a lesson.
func (r *LessonRepository) Update(ctx context.Context, lesson *models.Lesson) error {
	lesson.UpdatedAt = time.Now().UTC()
	const query = `UPDATE lessons SET title = :title, summary = :summary, duration_seconds = :duration_seconds, is_preview = :is_preview, video_url = :video_url, video_id = :video_id, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, lesson); err != nil {
		return fmt.Errorf("update lesson: %w", err)
	}
	return nil
}

// UpdateOrder writes a single lesson's position.
func (r *LessonRepository) UpdateOrder(ctx context.Context, id string, position int) error {
	const query = `UPDATE lessons SET position = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, position, time.Now().UTC()); err != nil {
		return fmt.Errorf("update lesson order: %w", err)
	}
	return nil
}

// UpdateMaterials overwrites the embedded materials list of a lesson.
func (r *LessonRepository) UpdateMaterials(ctx context.Context, id string, materials models.MaterialList) error {
	const query = `UPDATE lessons SET materials = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, materials, time.Now().UTC()); err != nil {
		return fmt.Errorf("update lesson materials: %w", err)
	}
	return nil
}

// Delete removes a lesson row.
func (r *LessonRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM lessons WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete lesson: %w", err)
	}
	return nil
}
