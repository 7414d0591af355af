package service

import (
	"context"
	"database/sql"
	"io"
	"sort"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dulcevicio/course-api/internal/models"
	appErrors "github.com/dulcevicio/course-api/pkg/errors"
)

type mockLessonRepo struct {
	lessons map[string]models.Lesson
	orders  map[string]int
}

func (m *mockLessonRepo) ListByCourse(ctx context.Context, courseID string) ([]models.Lesson, error) {
	var list []models.Lesson
	for _, l := range m.lessons {
		if l.CourseID == courseID {
			list = append(list, l)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Order < list[j].Order })
	return list, nil
}

func (m *mockLessonRepo) FindByID(ctx context.Context, id string) (*models.Lesson, error) {
	if l, ok := m.lessons[id]; ok {
		return &l, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockLessonRepo) MaxOrder(ctx context.Context, courseID string) (int, error) {
	max := 0
	for _, l := range m.lessons {
		if l.CourseID == courseID && l.Order > max {
			max = l.Order
		}
	}
	return max, nil
}

func (m *mockLessonRepo) Create(ctx context.Context, lesson *models.Lesson) error {
	if m.lessons == nil {
		m.lessons = make(map[string]models.Lesson)
	}
	if lesson.ID == "" {
		lesson.ID = "new-lesson"
	}
	m.lessons[lesson.ID] = *lesson
	return nil
}

func (m *mockLessonRepo) Update(ctx context.Context, lesson *models.Lesson) error {
	m.lessons[lesson.ID] = *lesson
	return nil
}

func (m *mockLessonRepo) UpdateOrder(ctx context.Context, id string, position int) error {
	if m.orders == nil {
		m.orders = make(map[string]int)
	}
	m.orders[id] = position
	if l, ok := m.lessons[id]; ok {
		l.Order = position
		m.lessons[id] = l
	}
	return nil
}

func (m *mockLessonRepo) UpdateMaterials(ctx context.Context, id string, materials models.MaterialList) error {
	if l, ok := m.lessons[id]; ok {
		l.Materials = materials
		m.lessons[id] = l
	}
	return nil
}

func (m *mockLessonRepo) Delete(ctx context.Context, id string) error {
	delete(m.lessons, id)
	return nil
}

type mockStatsRecomputer struct {
	recomputed []string
}

func (m *mockStatsRecomputer) RecomputeStats(ctx context.Context, courseID string) error {
	m.recomputed = append(m.recomputed, courseID)
	return nil
}

type mockUploader struct {
	fail bool
}

func (m *mockUploader) Upload(folder, filename string, r io.Reader) (string, string, error) {
	if m.fail {
		return "", "", errUploadBoom
	}
	rel := folder + "/" + filename
	return rel, "https://cdn.example.com/" + rel, nil
}

var errUploadBoom = &appErrors.Error{Code: "BOOM", Status: 500, Message: "disk full"}

var moderatorActor = models.JWTClaims{UserID: "mod-1", Role: models.RoleModerator}

func newLessonService(repo *mockLessonRepo, uploader *mockUploader) (*LessonService, *mockStatsRecomputer) {
	courses := &mockCourseReader{courses: map[string]*models.Course{
		"crs-1": {ID: "crs-1", Title: "Pastry Basics", Status: models.CourseStatusPublished},
	}}
	stats := &mockStatsRecomputer{}
	if uploader == nil {
		uploader = &mockUploader{}
	}
	return NewLessonService(repo, courses, stats, uploader, validator.New(), zap.NewNop()), stats
}

func lessonsByOrder(repo *mockLessonRepo, courseID string) []string {
	list, _ := repo.ListByCourse(context.Background(), courseID)
	ids := make([]string, 0, len(list))
	for _, l := range list {
		ids = append(ids, l.ID)
	}
	return ids
}

func seedLessons(n int) *mockLessonRepo {
	repo := &mockLessonRepo{lessons: make(map[string]models.Lesson)}
	titles := []string{"a", "b", "c", "d", "e"}
	for i := 0; i < n; i++ {
		id := "les-" + titles[i]
		repo.lessons[id] = models.Lesson{ID: id, CourseID: "crs-1", Title: strings.ToUpper(titles[i]), Order: i + 1}
	}
	return repo
}

func TestLessonServiceCreateAppendsAtEnd(t *testing.T) {
	repo := seedLessons(2)
	svc, stats := newLessonService(repo, nil)

	lesson, err := svc.Create(context.Background(), moderatorActor, "crs-1", CreateLessonRequest{Title: "Laminating"})
	require.NoError(t, err)
	assert.Equal(t, 3, lesson.Order)
	assert.Contains(t, stats.recomputed, "crs-1")
}

func TestLessonServiceCreateFirstLessonGetsOrderOne(t *testing.T) {
	repo := &mockLessonRepo{lessons: make(map[string]models.Lesson)}
	svc, _ := newLessonService(repo, nil)

	lesson, err := svc.Create(context.Background(), moderatorActor, "crs-1", CreateLessonRequest{Title: "Welcome"})
	require.NoError(t, err)
	assert.Equal(t, 1, lesson.Order)
}

func TestLessonServiceListHidesDraftCourseFromPublic(t *testing.T) {
	repo := seedLessons(2)
	courses := &mockCourseReader{courses: map[string]*models.Course{
		"crs-1": {ID: "crs-1", Title: "Pastry Basics", Status: models.CourseStatusDraft},
	}}
	svc := NewLessonService(repo, courses, &mockStatsRecomputer{}, &mockUploader{}, validator.New(), zap.NewNop())

	_, err := svc.ListByCourse(context.Background(), "crs-1", false)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	lessons, err := svc.ListByCourse(context.Background(), "crs-1", true)
	require.NoError(t, err)
	assert.Len(t, lessons, 2)
}

func TestLessonServiceReorderMovesAndResequences(t *testing.T) {
	repo := seedLessons(4)
	svc, _ := newLessonService(repo, nil)

	// move les-d (order 4) to position 2
	reordered, err := svc.Reorder(context.Background(), moderatorActor, "crs-1", "les-d", ReorderLessonRequest{NewOrder: 2})
	require.NoError(t, err)
	require.Len(t, reordered, 4)
	assert.Equal(t, []string{"les-a", "les-d", "les-b", "les-c"}, lessonsByOrder(repo, "crs-1"))
	// les-a never moved, so it must not have been written
	_, touched := repo.orders["les-a"]
	assert.False(t, touched)
}

func TestLessonServiceReorderClampsOutOfRange(t *testing.T) {
	repo := seedLessons(3)
	svc, _ := newLessonService(repo, nil)

	_, err := svc.Reorder(context.Background(), moderatorActor, "crs-1", "les-a", ReorderLessonRequest{NewOrder: 99})
	require.NoError(t, err)
	assert.Equal(t, []string{"les-b", "les-c", "les-a"}, lessonsByOrder(repo, "crs-1"))
}

func TestLessonServiceDeleteRenumbersDense(t *testing.T) {
	repo := seedLessons(4)
	svc, stats := newLessonService(repo, nil)

	err := svc.Delete(context.Background(), moderatorActor, "crs-1", "les-b")
	require.NoError(t, err)

	list, _ := repo.ListByCourse(context.Background(), "crs-1")
	require.Len(t, list, 3)
	for i, l := range list {
		assert.Equal(t, i+1, l.Order)
	}
	// les-a kept order 1 and must not have been rewritten
	_, touched := repo.orders["les-a"]
	assert.False(t, touched)
	assert.Contains(t, stats.recomputed, "crs-1")
}

func TestLessonServiceAddMaterialAppendsWithNextOrder(t *testing.T) {
	repo := seedLessons(1)
	svc, _ := newLessonService(repo, nil)

	lesson, err := svc.AddMaterial(context.Background(), moderatorActor, "crs-1", "les-a",
		AddMaterialRequest{Title: "Slides", IsDownloadable: true}, "slides.pdf", strings.NewReader("%PDF"))
	require.NoError(t, err)
	require.Len(t, lesson.Materials, 1)
	assert.Equal(t, 1, lesson.Materials[0].Order)
	assert.Equal(t, "pdf", lesson.Materials[0].FileFormat)

	lesson, err = svc.AddMaterial(context.Background(), moderatorActor, "crs-1", "les-a",
		AddMaterialRequest{Title: "Recipe"}, "recipe.docx", strings.NewReader("doc"))
	require.NoError(t, err)
	require.Len(t, lesson.Materials, 2)
	assert.Equal(t, 2, lesson.Materials[1].Order)
}

func TestLessonServiceAddMaterialUploadFailureIsGeneric(t *testing.T) {
	repo := seedLessons(1)
	svc, _ := newLessonService(repo, &mockUploader{fail: true})

	_, err := svc.AddMaterial(context.Background(), moderatorActor, "crs-1", "les-a",
		AddMaterialRequest{Title: "Slides"}, "slides.pdf", strings.NewReader("%PDF"))
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUploadFailed.Code, appErr.Code)
	assert.NotContains(t, appErr.Message, "disk full")
}

func TestLessonServiceClearMaterials(t *testing.T) {
	repo := seedLessons(1)
	lesson := repo.lessons["les-a"]
	lesson.Materials = models.MaterialList{{Title: "Old", Order: 1}}
	repo.lessons["les-a"] = lesson
	svc, _ := newLessonService(repo, nil)

	cleared, err := svc.ClearMaterials(context.Background(), moderatorActor, "crs-1", "les-a")
	require.NoError(t, err)
	assert.Empty(t, cleared.Materials)
	assert.Empty(t, repo.lessons["les-a"].Materials)
}

func TestLessonServiceManageRequiresModerator(t *testing.T) {
	repo := seedLessons(1)
	svc, _ := newLessonService(repo, nil)

	user := models.JWTClaims{UserID: "usr-1", Role: models.RoleUser}
	_, err := svc.Create(context.Background(), user, "crs-1", CreateLessonRequest{Title: "Nope"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
