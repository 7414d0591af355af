package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dulcevicio/course-api/internal/models"
)

type mockAccessRepo struct {
	enrollment *models.Enrollment
	statusSet  map[string]models.EnrollmentStatus
}

func (m *mockAccessRepo) FindActiveByUserAndCourse(ctx context.Context, userID, courseID string) (*models.Enrollment, error) {
	if m.enrollment == nil {
		return nil, sql.ErrNoRows
	}
	e := *m.enrollment
	return &e, nil
}

func (m *mockAccessRepo) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, updatedBy string) error {
	if m.statusSet == nil {
		m.statusSet = make(map[string]models.EnrollmentStatus)
	}
	m.statusSet[id] = status
	return nil
}

func TestAccessServiceDeniesWithoutEnrollment(t *testing.T) {
	svc := NewAccessService(&mockAccessRepo{}, zap.NewNop())

	decision, err := svc.CanAccess(context.Background(), "usr-1", "crs-1")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, "no active enrollment", decision.Reason)
}

func TestAccessServiceAllowsActiveUnexpired(t *testing.T) {
	repo := &mockAccessRepo{enrollment: &models.Enrollment{
		ID:        "enr-1",
		Status:    models.EnrollmentStatusActive,
		ExpiresAt: time.Now().UTC().Add(24 * time.Hour),
	}}
	svc := NewAccessService(repo, zap.NewNop())

	decision, err := svc.CanAccess(context.Background(), "usr-1", "crs-1")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Empty(t, repo.statusSet)
}

func TestAccessServiceDeniesAtExactExpiry(t *testing.T) {
	moment := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	repo := &mockAccessRepo{enrollment: &models.Enrollment{
		ID:        "enr-1",
		Status:    models.EnrollmentStatusActive,
		ExpiresAt: moment,
	}}
	svc := NewAccessService(repo, zap.NewNop())
	svc.now = func() time.Time { return moment }

	decision, err := svc.CanAccess(context.Background(), "usr-1", "crs-1")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, "enrollment expired", decision.Reason)
}

func TestAccessServiceFlipsExpiredLazily(t *testing.T) {
	repo := &mockAccessRepo{enrollment: &models.Enrollment{
		ID:        "enr-1",
		Status:    models.EnrollmentStatusActive,
		ExpiresAt: time.Now().UTC().Add(-time.Minute),
	}}
	svc := NewAccessService(repo, zap.NewNop())

	decision, err := svc.CanAccess(context.Background(), "usr-1", "crs-1")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, models.EnrollmentStatusExpired, repo.statusSet["enr-1"])
	assert.Equal(t, models.EnrollmentStatusExpired, decision.Enrollment.Status)
}
