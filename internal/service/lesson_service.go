package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/dulcevicio/course-api/internal/models"
	appErrors "github.com/dulcevicio/course-api/pkg/errors"
)

type lessonRepository interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.Lesson, error)
	FindByID(ctx context.Context, id string) (*models.Lesson, error)
	MaxOrder(ctx context.Context, courseID string) (int, error)
	Create(ctx context.Context, lesson *models.Lesson) error
	Update(ctx context.Context, lesson *models.Lesson) error
	UpdateOrder(ctx context.Context, id string, position int) error
	UpdateMaterials(ctx context.Context, id string, materials models.MaterialList) error
	Delete(ctx context.Context, id string) error
}

type courseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type statsRecomputer interface {
	RecomputeStats(ctx context.Context, courseID string) error
}

// CreateLessonRequest describes the payload for appending a lesson.
type CreateLessonRequest struct {
	Title           string  `json:"title" validate:"required,min=3,max=200"`
	Summary         *string `json:"summary,omitempty"`
	DurationSeconds *int    `json:"duration_seconds,omitempty" validate:"omitempty,gte=0"`
	IsPreview       bool    `json:"is_preview"`
	VideoURL        *string `json:"video_url,omitempty" validate:"omitempty,url"`
	VideoID         *string `json:"video_id,omitempty"`
}

// UpdateLessonRequest describes the editable fields of a lesson. Order is
// changed only through Reorder.
type UpdateLessonRequest struct {
	Title           *string `json:"title,omitempty" validate:"omitempty,min=3,max=200"`
	Summary         *string `json:"summary,omitempty"`
	DurationSeconds *int    `json:"duration_seconds,omitempty" validate:"omitempty,gte=0"`
	IsPreview       *bool   `json:"is_preview,omitempty"`
	VideoURL        *string `json:"video_url,omitempty" validate:"omitempty,url"`
	VideoID         *string `json:"video_id,omitempty"`
}

// ReorderLessonRequest moves a lesson to a new 1-based position.
type ReorderLessonRequest struct {
	NewOrder int `json:"new_order" validate:"required,gte=1"`
}

// AddMaterialRequest describes a material upload.
type AddMaterialRequest struct {
	Title          string `json:"title" validate:"required,min=1,max=200"`
	IsDownloadable bool   `json:"is_downloadable"`
}

// LessonService manages lessons and their dense ordering within a course.
type LessonService struct {
	repo      lessonRepository
	courses   courseReader
	stats     statsRecomputer
	storage   fileUploader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewLessonService constructs a LessonService.
func NewLessonService(repo lessonRepository, courses courseReader, stats statsRecomputer, storage fileUploader, validate *validator.Validate, logger *zap.Logger) *LessonService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LessonService{repo: repo, courses: courses, stats: stats, storage: storage, validator: validate, logger: logger}
}

// ListByCourse returns the lessons of a course in display order. Unless
// includeUnpublished is set, a course that is not published is reported as
// not found, the same way the public catalog hides it.
func (s *LessonService) ListByCourse(ctx context.Context, courseID string, includeUnpublished bool) ([]models.Lesson, error) {
	course, err := s.loadCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if !includeUnpublished && course.Status != models.CourseStatusPublished {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	lessons, err := s.repo.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list lessons")
	}
	return lessons, nil
}

// Get returns a lesson by ID, scoped to its course.
func (s *LessonService) Get(ctx context.Context, courseID, lessonID string) (*models.Lesson, error) {
	lesson, err := s.repo.FindByID(ctx, lessonID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	if lesson.CourseID != courseID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
	}
	return lesson, nil
}

// Create appends a lesson at the end of the course: its order is the current
// maximum plus one, so a course with no lessons starts at 1.
func (s *LessonService) Create(ctx context.Context, actor models.JWTClaims, courseID string, req CreateLessonRequest) (*models.Lesson, error) {
	if err := Authorize(actor.Role, ActionLessonManage); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson payload")
	}
	if _, err := s.loadCourse(ctx, courseID); err != nil {
		return nil, err
	}

	max, err := s.repo.MaxOrder(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to determine lesson order")
	}

	lesson := &models.Lesson{
		CourseID:        courseID,
		Title:           req.Title,
		Summary:         req.Summary,
		DurationSeconds: req.DurationSeconds,
		Order:           max + 1,
		IsPreview:       req.IsPreview,
		VideoURL:        req.VideoURL,
		VideoID:         req.VideoID,
		Materials:       models.MaterialList{},
		CreatedBy:       actor.UserID,
	}
	if err := s.repo.Create(ctx, lesson); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create lesson")
	}
	s.recompute(ctx, courseID)
	return lesson, nil
}

// Update edits lesson fields other than order.
func (s *LessonService) Update(ctx context.Context, actor models.JWTClaims, courseID, lessonID string, req UpdateLessonRequest) (*models.Lesson, error) {
	if err := Authorize(actor.Role, ActionLessonManage); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson payload")
	}
	lesson, err := s.Get(ctx, courseID, lessonID)
	if err != nil {
		return nil, err
	}

	durationChanged := false
	if req.Title != nil {
		lesson.Title = *req.Title
	}
	if req.Summary != nil {
		lesson.Summary = req.Summary
	}
	if req.DurationSeconds != nil {
		lesson.DurationSeconds = req.DurationSeconds
		durationChanged = true
	}
	if req.IsPreview != nil {
		lesson.IsPreview = *req.IsPreview
	}
	if req.VideoURL != nil {
		lesson.VideoURL = req.VideoURL
	}
	if req.VideoID != nil {
		lesson.VideoID = req.VideoID
	}

	if err := s.repo.Update(ctx, lesson); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update lesson")
	}
	if durationChanged {
		s.recompute(ctx, courseID)
	}
	return lesson, nil
}

// Reorder moves a lesson to a new position and resequences the rest. The
// requested position is clamped into [1, len(lessons)], so out-of-range
// targets land at the edges instead of failing. Only lessons whose position
// actually changed are written back.
func (s *LessonService) Reorder(ctx context.Context, actor models.JWTClaims, courseID, lessonID string, req ReorderLessonRequest) ([]models.Lesson, error) {
	if err := Authorize(actor.Role, ActionLessonManage); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reorder payload")
	}
	if _, err := s.Get(ctx, courseID, lessonID); err != nil {
		return nil, err
	}

	lessons, err := s.repo.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list lessons")
	}

	currentIdx := -1
	for i, lesson := range lessons {
		if lesson.ID == lessonID {
			currentIdx = i
			break
		}
	}
	if currentIdx == -1 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
	}

	targetIdx := req.NewOrder - 1
	if targetIdx < 0 {
		targetIdx = 0
	}
	if targetIdx > len(lessons)-1 {
		targetIdx = len(lessons) - 1
	}

	moved := lessons[currentIdx]
	rest := append(append([]models.Lesson{}, lessons[:currentIdx]...), lessons[currentIdx+1:]...)
	reordered := append(append(append([]models.Lesson{}, rest[:targetIdx]...), moved), rest[targetIdx:]...)

	for i := range reordered {
		want := i + 1
		if reordered[i].Order != want {
			if err := s.repo.UpdateOrder(ctx, reordered[i].ID, want); err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist lesson order")
			}
			reordered[i].Order = want
		}
	}
	return reordered, nil
}

// Delete removes a lesson and renumbers the remainder into a dense 1..n
// sequence, writing only the rows whose position shifted.
func (s *LessonService) Delete(ctx context.Context, actor models.JWTClaims, courseID, lessonID string) error {
	if err := Authorize(actor.Role, ActionLessonManage); err != nil {
		return err
	}
	if _, err := s.Get(ctx, courseID, lessonID); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, lessonID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete lesson")
	}

	remaining, err := s.repo.ListByCourse(ctx, courseID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list lessons")
	}
	for i := range remaining {
		want := i + 1
		if remaining[i].Order != want {
			if err := s.repo.UpdateOrder(ctx, remaining[i].ID, want); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to renumber lessons")
			}
		}
	}
	s.recompute(ctx, courseID)
	return nil
}

// AddMaterial uploads a file and appends it to the lesson's embedded
// materials with the next order value.
func (s *LessonService) AddMaterial(ctx context.Context, actor models.JWTClaims, courseID, lessonID string, req AddMaterialRequest, filename string, file io.Reader) (*models.Lesson, error) {
	if err := Authorize(actor.Role, ActionMaterialManage); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid material payload")
	}
	lesson, err := s.Get(ctx, courseID, lessonID)
	if err != nil {
		return nil, err
	}

	_, publicURL, err := s.storage.Upload("materials", filename, file)
	if err != nil {
		s.logger.Error("material upload failed", zap.String("lesson_id", lessonID), zap.Error(err))
		return nil, appErrors.Clone(appErrors.ErrUploadFailed, "")
	}

	material := models.Material{
		Title:          req.Title,
		ResourceURL:    publicURL,
		FileFormat:     strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), "."),
		IsDownloadable: req.IsDownloadable,
		Order:          lesson.Materials.NextOrder(),
		CreatedAt:      time.Now().UTC(),
		CreatedBy:      actor.UserID,
	}
	lesson.Materials = append(lesson.Materials, material)

	if err := s.repo.UpdateMaterials(ctx, lessonID, lesson.Materials); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store materials")
	}
	return lesson, nil
}

// ClearMaterials removes every material from the lesson. Individual removal
// is not supported: the embedded list is replaced as a whole.
func (s *LessonService) ClearMaterials(ctx context.Context, actor models.JWTClaims, courseID, lessonID string) (*models.Lesson, error) {
	if err := Authorize(actor.Role, ActionMaterialManage); err != nil {
		return nil, err
	}
	lesson, err := s.Get(ctx, courseID, lessonID)
	if err != nil {
		return nil, err
	}

	lesson.Materials = models.MaterialList{}
	if err := s.repo.UpdateMaterials(ctx, lessonID, lesson.Materials); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear materials")
	}
	return lesson, nil
}

func (s *LessonService) loadCourse(ctx context.Context, courseID string) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if course.Deleted() {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	return course, nil
}

func (s *LessonService) recompute(ctx context.Context, courseID string) {
	if s.stats == nil {
		return
	}
	if err := s.stats.RecomputeStats(ctx, courseID); err != nil {
		s.logger.Warn("failed to recompute course stats", zap.String("course_id", courseID), zap.Error(err))
	}
}
