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

func newEnrollmentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestEnrollmentRepositoryFindActiveByUserAndCourse(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "user_id", "course_id", "status", "enrolled_at", "expires_at", "created_by", "created_at", "updated_at"}).
		AddRow("enr-1", "usr-1", "crs-1", models.EnrollmentStatusActive, now, now.AddDate(0, 0, 365), "usr-1", now, now)
	mock.ExpectQuery(`SELECT .+ FROM enrollments e WHERE e\.user_id = \$1 AND e\.course_id = \$2 AND e\.status = \$3`).
		WithArgs("usr-1", "crs-1", models.EnrollmentStatusActive).
		WillReturnRows(rows)

	enrollment, err := repo.FindActiveByUserAndCourse(context.Background(), "usr-1", "crs-1")
	require.NoError(t, err)
	require.Equal(t, "enr-1", enrollment.ID)
	require.True(t, enrollment.IsActiveAt(now))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryExistsActive(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM enrollments WHERE user_id = $1 AND course_id = $2 AND status = $3 AND expires_at > $4)")).
		WithArgs("usr-1", "crs-1", models.EnrollmentStatusActive, now).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ExistsActive(context.Background(), "usr-1", "crs-1", now)
	require.NoError(t, err)
	require.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryUpdateExpiry(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	expiresAt := time.Now().UTC().AddDate(0, 0, 30)
	mock.ExpectExec(`UPDATE enrollments SET expires_at = \$2, status = \$3, updated_by = \$4, updated_at = \$5 WHERE id = \$1`).
		WithArgs("enr-1", expiresAt, models.EnrollmentStatusActive, "adm-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateExpiry(context.Background(), "enr-1", expiresAt, models.EnrollmentStatusActive, "adm-1")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryMarkExpiredBefore(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now().UTC()
	mock.ExpectExec(`UPDATE enrollments SET status = \$1, updated_at = \$2 WHERE status = \$3 AND expires_at <= \$2`).
		WithArgs(models.EnrollmentStatusExpired, now, models.EnrollmentStatusActive).
		WillReturnResult(sqlmock.NewResult(0, 3))

	affected, err := repo.MarkExpiredBefore(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, int64(3), affected)
	require.NoError(t, mock.ExpectationsWereMet())
}
