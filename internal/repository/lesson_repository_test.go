package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/dulcevicio/course-api/internal/models"
)

func newLessonRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestLessonRepositoryListByCourseOrdersByPosition(t *testing.T) {
	db, mock, cleanup := newLessonRepoMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "course_id", "title", "position", "is_preview", "materials", "created_by", "created_at", "updated_at"}).
		AddRow("les-1", "crs-1", "Intro", 1, true, []byte(`[]`), "usr-1", now, now).
		AddRow("les-2", "crs-1", "Setup", 2, false, []byte(`[{"title":"Slides","resource_url":"/files/slides.pdf","is_downloadable":true,"order":1,"created_at":"2026-01-01T00:00:00Z"}]`), "usr-1", now, now)
	mock.ExpectQuery(`SELECT .+ FROM lessons WHERE course_id = \$1 ORDER BY position ASC`).
		WithArgs("crs-1").
		WillReturnRows(rows)

	lessons, err := repo.ListByCourse(context.Background(), "crs-1")
	require.NoError(t, err)
	require.Len(t, lessons, 2)
	require.Equal(t, 1, lessons[0].Order)
	require.Len(t, lessons[1].Materials, 1)
	require.Equal(t, "Slides", lessons[1].Materials[0].Title)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryMaxOrderEmptyCourse(t *testing.T) {
	db, mock, cleanup := newLessonRepoMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(position), 0) FROM lessons WHERE course_id = $1")).
		WithArgs("crs-1").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(0))

	max, err := repo.MaxOrder(context.Background(), "crs-1")
	require.NoError(t, err)
	require.Zero(t, max)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryUpdateMaterials(t *testing.T) {
	db, mock, cleanup := newLessonRepoMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	materials := models.MaterialList{{Title: "Worksheet", ResourceURL: "/files/w.pdf", Order: 1}}
	mock.ExpectExec(`UPDATE lessons SET materials = \$2, updated_at = \$3 WHERE id = \$1`).
		WithArgs("les-1", materials, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateMaterials(context.Background(), "les-1", materials)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
