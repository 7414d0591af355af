package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dulcevicio/course-api/internal/models"
	appErrors "github.com/dulcevicio/course-api/pkg/errors"
)

type mockCourseRepo struct {
	courses      map[string]models.Course
	slugs        map[string]bool
	stats        map[string]CourseStats
	softDeleted  []string
	hardDeleted  []string
	statusWrites []models.CourseStatus
}

func (m *mockCourseRepo) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	var list []models.Course
	for _, c := range m.courses {
		list = append(list, c)
	}
	return list, len(list), nil
}

func (m *mockCourseRepo) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if c, ok := m.courses[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCourseRepo) FindBySlug(ctx context.Context, slug string) (*models.Course, error) {
	for _, c := range m.courses {
		if c.Slug == slug && !c.Deleted() {
			course := c
			return &course, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockCourseRepo) SlugExists(ctx context.Context, slug string) (bool, error) {
	return m.slugs[slug], nil
}

func (m *mockCourseRepo) Create(ctx context.Context, course *models.Course) error {
	if m.courses == nil {
		m.courses = make(map[string]models.Course)
	}
	if course.ID == "" {
		course.ID = "new-course"
	}
	m.courses[course.ID] = *course
	if m.slugs == nil {
		m.slugs = make(map[string]bool)
	}
	m.slugs[course.Slug] = true
	return nil
}

func (m *mockCourseRepo) Update(ctx context.Context, course *models.Course) error {
	m.courses[course.ID] = *course
	return nil
}

func (m *mockCourseRepo) UpdateStatus(ctx context.Context, id string, status models.CourseStatus, publishedAt *time.Time) error {
	m.statusWrites = append(m.statusWrites, status)
	if c, ok := m.courses[id]; ok {
		c.Status = status
		if c.PublishedAt == nil {
			c.PublishedAt = publishedAt
		}
		m.courses[id] = c
	}
	return nil
}

func (m *mockCourseRepo) UpdateCover(ctx context.Context, id, url string) error {
	if c, ok := m.courses[id]; ok {
		c.CoverImageURL = &url
		m.courses[id] = c
	}
	return nil
}

func (m *mockCourseRepo) UpdateStats(ctx context.Context, id string, lessonsCount int, totalDurationHours float64) error {
	if m.stats == nil {
		m.stats = make(map[string]CourseStats)
	}
	m.stats[id] = CourseStats{LessonsCount: lessonsCount, TotalDurationHours: totalDurationHours}
	return nil
}

func (m *mockCourseRepo) SoftDelete(ctx context.Context, id string, ts time.Time) error {
	m.softDeleted = append(m.softDeleted, id)
	if c, ok := m.courses[id]; ok {
		c.DeletedAt = &ts
		m.courses[id] = c
	}
	return nil
}

func (m *mockCourseRepo) HardDelete(ctx context.Context, id string) error {
	m.hardDeleted = append(m.hardDeleted, id)
	delete(m.courses, id)
	return nil
}

type mockCourseLessons struct {
	lessons []models.Lesson
}

func (m *mockCourseLessons) ListByCourse(ctx context.Context, courseID string) ([]models.Lesson, error) {
	return m.lessons, nil
}

func newCourseService(repo *mockCourseRepo, lessons *mockCourseLessons) *CourseService {
	if lessons == nil {
		lessons = &mockCourseLessons{}
	}
	cache := NewCacheService(nil, nil, 0, zap.NewNop(), false)
	return NewCourseService(repo, lessons, cache, &mockUploader{}, validator.New(), zap.NewNop())
}

func TestCourseServiceCreateGeneratesUniqueSlug(t *testing.T) {
	repo := &mockCourseRepo{slugs: map[string]bool{"pastry-basics": true, "pastry-basics-2": true}}
	svc := newCourseService(repo, nil)

	course, err := svc.Create(context.Background(), adminActor, CreateCourseRequest{
		Title:       "Pastry Basics!",
		Description: "Croissants from scratch",
		Category:    "baking",
		Difficulty:  models.DifficultyBeginner,
	})
	require.NoError(t, err)
	assert.Equal(t, "pastry-basics-3", course.Slug)
	assert.Equal(t, models.CourseStatusDraft, course.Status)
	assert.Equal(t, "USD", course.Currency)
}

func TestCourseServicePublishSetsPublishedAtOnce(t *testing.T) {
	repo := &mockCourseRepo{courses: map[string]models.Course{
		"crs-1": {ID: "crs-1", Title: "Pastry", Status: models.CourseStatusReview},
	}}
	svc := newCourseService(repo, nil)

	course, err := svc.UpdateStatus(context.Background(), adminActor, "crs-1", UpdateCourseStatusRequest{Status: models.CourseStatusPublished})
	require.NoError(t, err)
	require.NotNil(t, course.PublishedAt)
	first := *course.PublishedAt

	course, err = svc.UpdateStatus(context.Background(), adminActor, "crs-1", UpdateCourseStatusRequest{Status: models.CourseStatusPublished})
	require.NoError(t, err)
	assert.Equal(t, first, *course.PublishedAt)
}

func TestCourseServiceDeleteSoftForAdminHardForSuperadmin(t *testing.T) {
	repo := &mockCourseRepo{courses: map[string]models.Course{
		"crs-1": {ID: "crs-1", Title: "Pastry"},
		"crs-2": {ID: "crs-2", Title: "Bread"},
	}}
	svc := newCourseService(repo, nil)

	require.NoError(t, svc.Delete(context.Background(), adminActor, "crs-1"))
	assert.Contains(t, repo.softDeleted, "crs-1")
	assert.Empty(t, repo.hardDeleted)

	super := models.JWTClaims{UserID: "sup-1", Role: models.RoleSuperAdmin}
	require.NoError(t, svc.Delete(context.Background(), super, "crs-2"))
	assert.Contains(t, repo.hardDeleted, "crs-2")
}

func TestCourseServiceDeleteForbiddenForModerator(t *testing.T) {
	repo := &mockCourseRepo{courses: map[string]models.Course{"crs-1": {ID: "crs-1"}}}
	svc := newCourseService(repo, nil)

	err := svc.Delete(context.Background(), moderatorActor, "crs-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestCourseServiceRecomputeStatsFullRecount(t *testing.T) {
	repo := &mockCourseRepo{courses: map[string]models.Course{"crs-1": {ID: "crs-1"}}}
	lessons := &mockCourseLessons{lessons: []models.Lesson{
		{DurationSeconds: intPtr(3600)},
		{DurationSeconds: intPtr(5400)},
		{DurationSeconds: nil},
	}}
	svc := newCourseService(repo, lessons)

	require.NoError(t, svc.RecomputeStats(context.Background(), "crs-1"))
	stats := repo.stats["crs-1"]
	assert.Equal(t, 3, stats.LessonsCount)
	assert.Equal(t, 2.5, stats.TotalDurationHours)
}

func TestCourseServiceGetHidesUnpublishedFromPublic(t *testing.T) {
	repo := &mockCourseRepo{courses: map[string]models.Course{
		"crs-1": {ID: "crs-1", Status: models.CourseStatusDraft},
	}}
	svc := newCourseService(repo, nil)

	_, err := svc.Get(context.Background(), "crs-1", false)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	course, err := svc.Get(context.Background(), "crs-1", true)
	require.NoError(t, err)
	assert.Equal(t, models.CourseStatusDraft, course.Status)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "pastry-basics", Slugify("  Pastry Basics!  "))
	assert.Equal(t, "caf-con-leche-101", Slugify("Café con Leche 101"))
	assert.Equal(t, "course", Slugify("!!!"))
}
