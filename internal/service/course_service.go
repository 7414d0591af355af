package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/dulcevicio/course-api/internal/models"
	appErrors "github.com/dulcevicio/course-api/pkg/errors"
)

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	FindBySlug(ctx context.Context, slug string) (*models.Course, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	UpdateStatus(ctx context.Context, id string, status models.CourseStatus, publishedAt *time.Time) error
	UpdateCover(ctx context.Context, id, url string) error
	UpdateStats(ctx context.Context, id string, lessonsCount int, totalDurationHours float64) error
	SoftDelete(ctx context.Context, id string, ts time.Time) error
	HardDelete(ctx context.Context, id string) error
}

type courseLessonLister interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.Lesson, error)
}

type fileUploader interface {
	Upload(folder, filename string, r io.Reader) (string, string, error)
}

// CreateCourseRequest describes the payload for creating a course.
type CreateCourseRequest struct {
	Title        string                  `json:"title" validate:"required,min=3,max=200"`
	Description  string                  `json:"description" validate:"required"`
	Category     string                  `json:"category" validate:"required"`
	Subcategory  *string                 `json:"subcategory,omitempty"`
	Tags         []string                `json:"tags,omitempty"`
	Difficulty   models.CourseDifficulty `json:"difficulty" validate:"required,oneof=BEGINNER INTERMEDIATE ADVANCED EXPERT"`
	Price        float64                 `json:"price" validate:"gte=0"`
	Currency     string                  `json:"currency" validate:"omitempty,len=3"`
	CommunityURL *string                 `json:"community_url,omitempty" validate:"omitempty,url"`
}

// UpdateCourseRequest describes the editable metadata of a course.
type UpdateCourseRequest struct {
	Title        *string                  `json:"title,omitempty" validate:"omitempty,min=3,max=200"`
	Description  *string                  `json:"description,omitempty"`
	Category     *string                  `json:"category,omitempty"`
	Subcategory  *string                  `json:"subcategory,omitempty"`
	Tags         []string                 `json:"tags,omitempty"`
	Difficulty   *models.CourseDifficulty `json:"difficulty,omitempty" validate:"omitempty,oneof=BEGINNER INTERMEDIATE ADVANCED EXPERT"`
	Price        *float64                 `json:"price,omitempty" validate:"omitempty,gte=0"`
	Currency     *string                  `json:"currency,omitempty" validate:"omitempty,len=3"`
	CommunityURL *string                  `json:"community_url,omitempty" validate:"omitempty,url"`
}

// UpdateCourseStatusRequest moves a course through its lifecycle.
type UpdateCourseStatusRequest struct {
	Status models.CourseStatus `json:"status" validate:"required,oneof=DRAFT REVIEW PUBLISHED ARCHIVED RETIRED"`
}

// CourseService orchestrates the course catalog.
type CourseService struct {
	repo      courseRepository
	lessons   courseLessonLister
	cache     *CacheService
	storage   fileUploader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs a CourseService.
func NewCourseService(repo courseRepository, lessons courseLessonLister, cache *CacheService, storage fileUploader, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{repo: repo, lessons: lessons, cache: cache, storage: storage, validator: validate, logger: logger}
}

type courseListPayload struct {
	Courses []models.Course `json:"courses"`
	Total   int             `json:"total"`
}

// List returns catalog courses with pagination metadata. Public listings go
// through the cache; staff listings always hit the database.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error) {
	cacheKey := ""
	if filter.PublicOnly && s.cache.Enabled() {
		cacheKey = fmt.Sprintf("catalog:list:%s:%s:%s:%s:%d:%d:%s:%s",
			filter.Category, filter.Difficulty, filter.Search, filter.Status,
			filter.Page, filter.PageSize, filter.SortBy, filter.SortOrder)
		var cached courseListPayload
		if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
			return cached.Courses, s.pagination(filter, cached.Total), nil
		}
	}

	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}

	if cacheKey != "" {
		if err := s.cache.Set(ctx, cacheKey, courseListPayload{Courses: courses, Total: total}, 0); err != nil {
			s.logger.Warn("failed to cache course listing", zap.Error(err))
		}
	}
	return courses, s.pagination(filter, total), nil
}

func (s *CourseService) pagination(filter models.CourseFilter, total int) *models.Pagination {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return &models.Pagination{Page: page, PageSize: size, TotalCount: total}
}

// Get returns a course by ID. Unless includeHidden is set, soft-deleted and
// unpublished courses are reported as not found.
func (s *CourseService) Get(ctx context.Context, id string, includeHidden bool) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if !includeHidden && (course.Deleted() || course.Status != models.CourseStatusPublished) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	if includeHidden && course.Deleted() {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	return course, nil
}

// GetBySlug returns a published course by slug.
func (s *CourseService) GetBySlug(ctx context.Context, slug string) (*models.Course, error) {
	course, err := s.repo.FindBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if course.Status != models.CourseStatusPublished {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	return course, nil
}

// Create registers a DRAFT course with a generated unique slug.
func (s *CourseService) Create(ctx context.Context, actor models.JWTClaims, req CreateCourseRequest) (*models.Course, error) {
	if err := Authorize(actor.Role, ActionCourseCreate); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	slug, err := uniqueSlug(ctx, s.repo, Slugify(req.Title))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate slug")
	}

	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}
	course := &models.Course{
		Title:        req.Title,
		Slug:         slug,
		Description:  req.Description,
		Category:     req.Category,
		Subcategory:  req.Subcategory,
		Tags:         req.Tags,
		Difficulty:   req.Difficulty,
		Price:        req.Price,
		Currency:     currency,
		CommunityURL: req.CommunityURL,
		Status:       models.CourseStatusDraft,
		CreatedBy:    actor.UserID,
	}
	if err := s.repo.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	return course, nil
}

// Update edits course metadata. The slug is stable once assigned.
func (s *CourseService) Update(ctx context.Context, actor models.JWTClaims, id string, req UpdateCourseRequest) (*models.Course, error) {
	if err := Authorize(actor.Role, ActionCourseUpdate); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	course, err := s.Get(ctx, id, true)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		course.Title = *req.Title
	}
	if req.Description != nil {
		course.Description = *req.Description
	}
	if req.Category != nil {
		course.Category = *req.Category
	}
	if req.Subcategory != nil {
		course.Subcategory = req.Subcategory
	}
	if req.Tags != nil {
		course.Tags = req.Tags
	}
	if req.Difficulty != nil {
		course.Difficulty = *req.Difficulty
	}
	if req.Price != nil {
		course.Price = *req.Price
	}
	if req.Currency != nil {
		course.Currency = *req.Currency
	}
	if req.CommunityURL != nil {
		course.CommunityURL = req.CommunityURL
	}

	if err := s.repo.Update(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}
	s.invalidateCatalog(ctx)
	return course, nil
}

// UpdateStatus moves the course through its lifecycle. published_at is set on
// the first transition to PUBLISHED and never rewritten.
func (s *CourseService) UpdateStatus(ctx context.Context, actor models.JWTClaims, id string, req UpdateCourseStatusRequest) (*models.Course, error) {
	if err := Authorize(actor.Role, ActionCoursePublish); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}

	course, err := s.Get(ctx, id, true)
	if err != nil {
		return nil, err
	}

	var publishedAt *time.Time
	if req.Status == models.CourseStatusPublished && course.PublishedAt == nil {
		now := time.Now().UTC()
		publishedAt = &now
	}
	if err := s.repo.UpdateStatus(ctx, id, req.Status, publishedAt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course status")
	}
	s.invalidateCatalog(ctx)
	return s.Get(ctx, id, true)
}

// UploadCover stores the cover image and records its public URL.
func (s *CourseService) UploadCover(ctx context.Context, actor models.JWTClaims, id, filename string, file io.Reader) (*models.Course, error) {
	if err := Authorize(actor.Role, ActionCourseUpdate); err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, id, true); err != nil {
		return nil, err
	}

	_, publicURL, err := s.storage.Upload("covers", filename, file)
	if err != nil {
		s.logger.Error("cover upload failed", zap.String("course_id", id), zap.Error(err))
		return nil, appErrors.Clone(appErrors.ErrUploadFailed, "")
	}
	if err := s.repo.UpdateCover(ctx, id, publicURL); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store cover url")
	}
	s.invalidateCatalog(ctx)
	return s.Get(ctx, id, true)
}

// Delete removes a course. ADMIN performs a soft delete so enrollments stay
// intact; SUPERADMIN removes the course and its lessons permanently.
func (s *CourseService) Delete(ctx context.Context, actor models.JWTClaims, id string) error {
	course, err := s.Get(ctx, id, true)
	if err != nil {
		return err
	}
	switch {
	case Allowed(actor.Role, ActionCourseHardDelete):
		if err := s.repo.HardDelete(ctx, course.ID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
		}
	case Allowed(actor.Role, ActionCourseSoftDelete):
		if err := s.repo.SoftDelete(ctx, course.ID, time.Now().UTC()); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
		}
	default:
		return appErrors.Clone(appErrors.ErrForbidden, "insufficient role to delete course")
	}
	s.invalidateCatalog(ctx)
	return nil
}

// RecomputeStats performs a full recompute of the lesson aggregates and
// overwrites the cached values on the course.
func (s *CourseService) RecomputeStats(ctx context.Context, courseID string) error {
	lessons, err := s.lessons.ListByCourse(ctx, courseID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lessons")
	}
	stats := ComputeCourseStats(lessons)
	if err := s.repo.UpdateStats(ctx, courseID, stats.LessonsCount, stats.TotalDurationHours); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store course stats")
	}
	s.invalidateCatalog(ctx)
	return nil
}

func (s *CourseService) invalidateCatalog(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, "catalog:*"); err != nil {
		s.logger.Warn("failed to invalidate catalog cache", zap.Error(err))
	}
}
