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
	"golang.org/x/crypto/bcrypt"

	"github.com/dulcevicio/course-api/internal/models"
	appErrors "github.com/dulcevicio/course-api/pkg/errors"
)

type mockAuthRepo struct {
	byEmail    map[string]*models.User
	byUsername map[string]*models.User
	created    *models.User
	passwords  map[string]string
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := m.byEmail[email]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	if u, ok := m.byUsername[username]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	for _, u := range m.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	user.ID = "new-user"
	m.created = user
	return nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	return nil
}

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	if m.passwords == nil {
		m.passwords = make(map[string]string)
	}
	m.passwords[id] = passwordHash
	return nil
}

func newAuthService(repo *mockAuthRepo) *AuthService {
	return NewAuthService(repo, &mockAudit{}, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret: "test-secret",
		AccessTokenExpiry: time.Hour,
		Issuer:            "course-api",
	})
}

func hashFor(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestAuthServiceRegisterAssignsUserRole(t *testing.T) {
	repo := &mockAuthRepo{}
	svc := newAuthService(repo)

	resp, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "Ana@Example.com",
		FullName: "Ana",
		Password: "supersecret",
	})
	require.NoError(t, err)
	require.NotNil(t, repo.created)
	assert.Equal(t, models.RoleUser, repo.created.Role)
	assert.Equal(t, "ana@example.com", repo.created.Email)
	assert.NotEmpty(t, resp.AccessToken)
}

func TestAuthServiceRegisterRejectsDuplicateEmail(t *testing.T) {
	repo := &mockAuthRepo{byEmail: map[string]*models.User{
		"ana@example.com": {ID: "usr-1", Email: "ana@example.com"},
	}}
	svc := newAuthService(repo)

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "ana@example.com",
		FullName: "Ana",
		Password: "supersecret",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginRoundTripsToken(t *testing.T) {
	repo := &mockAuthRepo{byEmail: map[string]*models.User{
		"ana@example.com": {ID: "usr-1", Email: "ana@example.com", FullName: "Ana", Role: models.RoleAdmin, Active: true, PasswordHash: hashFor(t, "supersecret")},
	}}
	svc := newAuthService(repo)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "ana@example.com", Password: "supersecret"})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "usr-1", claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestAuthServiceLoginRejectsBadPassword(t *testing.T) {
	repo := &mockAuthRepo{byEmail: map[string]*models.User{
		"ana@example.com": {ID: "usr-1", Email: "ana@example.com", Active: true, PasswordHash: hashFor(t, "supersecret")},
	}}
	svc := newAuthService(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "ana@example.com", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginRejectsInactive(t *testing.T) {
	repo := &mockAuthRepo{byEmail: map[string]*models.User{
		"ana@example.com": {ID: "usr-1", Email: "ana@example.com", Active: false, PasswordHash: hashFor(t, "supersecret")},
	}}
	svc := newAuthService(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "ana@example.com", Password: "supersecret"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceChangePasswordVerifiesOld(t *testing.T) {
	repo := &mockAuthRepo{byEmail: map[string]*models.User{
		"ana@example.com": {ID: "usr-1", Email: "ana@example.com", Active: true, PasswordHash: hashFor(t, "oldpassword")},
	}}
	svc := newAuthService(repo)

	err := svc.ChangePassword(context.Background(), "usr-1", models.ChangePasswordRequest{OldPassword: "wrong", NewPassword: "newpassword"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	err = svc.ChangePassword(context.Background(), "usr-1", models.ChangePasswordRequest{OldPassword: "oldpassword", NewPassword: "newpassword"})
	require.NoError(t, err)
	assert.NotEmpty(t, repo.passwords["usr-1"])
}

func TestAuthServiceValidateTokenRejectsForgedSecret(t *testing.T) {
	repo := &mockAuthRepo{byEmail: map[string]*models.User{
		"ana@example.com": {ID: "usr-1", Email: "ana@example.com", Active: true, PasswordHash: hashFor(t, "supersecret")},
	}}
	svc := newAuthService(repo)
	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "ana@example.com", Password: "supersecret"})
	require.NoError(t, err)

	other := NewAuthService(repo, nil, validator.New(), zap.NewNop(), AuthConfig{AccessTokenSecret: "different", AccessTokenExpiry: time.Hour})
	_, err = other.ValidateToken(resp.AccessToken)
	require.Error(t, err)
}
