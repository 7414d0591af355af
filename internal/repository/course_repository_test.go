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

func newCourseRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestCourseRepositoryListPublicOnly(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "title", "slug", "description", "category", "difficulty", "price", "currency", "status", "enrollment_count", "lessons_count", "total_duration_hours", "created_by", "created_at", "updated_at"}).
		AddRow("crs-1", "Pastry Basics", "pastry-basics", "Intro to pastry", "baking", models.DifficultyBeginner, 49.0, "USD", models.CourseStatusPublished, 10, 8, 3.5, "adm-1", now, now)
	mock.ExpectQuery(`SELECT .+ FROM courses WHERE deleted_at IS NULL AND status = \$1 ORDER BY created_at DESC`).
		WithArgs(models.CourseStatusPublished).
		WillReturnRows(rows)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM courses WHERE deleted_at IS NULL AND status = \$1`).
		WithArgs(models.CourseStatusPublished).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	courses, total, err := repo.List(context.Background(), models.CourseFilter{PublicOnly: true})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, courses, 1)
	require.Equal(t, "pastry-basics", courses[0].Slug)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositorySlugExists(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM courses WHERE slug = $1)")).
		WithArgs("pastry-basics").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.SlugExists(context.Background(), "pastry-basics")
	require.NoError(t, err)
	require.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryUpdateStats(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectExec(`UPDATE courses SET lessons_count = \$2, total_duration_hours = \$3, updated_at = \$4 WHERE id = \$1`).
		WithArgs("crs-1", 12, 5.25, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStats(context.Background(), "crs-1", 12, 5.25)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
