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

type mockUserRepo struct {
	users       map[string]*models.User
	softDeleted []string
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	var list []models.User
	for _, u := range m.users {
		list = append(list, *u)
	}
	return list, len(list), nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = "usr-new"
	}
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *models.User) error {
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) UpdateAvatar(ctx context.Context, id, url string) error {
	if u, ok := m.users[id]; ok {
		u.AvatarURL = &url
	}
	return nil
}

func (m *mockUserRepo) SoftDelete(ctx context.Context, id string, ts time.Time) error {
	m.softDeleted = append(m.softDeleted, id)
	if u, ok := m.users[id]; ok {
		u.DeletedAt = &ts
		u.Active = false
	}
	return nil
}

func newUserService(repo *mockUserRepo) *UserService {
	return NewUserService(repo, &mockUploader{}, validator.New(), zap.NewNop())
}

func TestUserServiceGetSelfAlwaysAllowed(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{
		"usr-1": {ID: "usr-1", Role: models.RoleUser, Active: true},
	}}
	svc := newUserService(repo)

	actor := models.JWTClaims{UserID: "usr-1", Role: models.RoleUser}
	user, err := svc.Get(context.Background(), actor, "usr-1")
	require.NoError(t, err)
	assert.Equal(t, "usr-1", user.ID)

	_, err = svc.Get(context.Background(), actor, "usr-2")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestUserServiceSelfUpdateCannotEscalate(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{
		"usr-1": {ID: "usr-1", Role: models.RoleUser, Active: true},
	}}
	svc := newUserService(repo)

	actor := models.JWTClaims{UserID: "usr-1", Role: models.RoleUser}
	name := "Ana Updated"
	user, err := svc.Update(context.Background(), actor, "usr-1", UpdateUserRequest{FullName: &name})
	require.NoError(t, err)
	assert.Equal(t, "Ana Updated", user.FullName)

	role := models.RoleAdmin
	_, err = svc.Update(context.Background(), actor, "usr-1", UpdateUserRequest{Role: &role})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestUserServiceUpdateCannotAssignOwnRankOrAbove(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{
		"usr-2": {ID: "usr-2", Role: models.RoleUser, Active: true},
	}}
	svc := newUserService(repo)

	role := models.RoleAdmin
	_, err := svc.Update(context.Background(), adminActor, "usr-2", UpdateUserRequest{Role: &role})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	role = models.RoleModerator
	user, err := svc.Update(context.Background(), adminActor, "usr-2", UpdateUserRequest{Role: &role})
	require.NoError(t, err)
	assert.Equal(t, models.RoleModerator, user.Role)
}

func TestUserServiceCreateAssignsRoleBelowActor(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{}}
	svc := newUserService(repo)

	user, err := svc.Create(context.Background(), adminActor, CreateUserRequest{
		Email:    "New.Mod@Example.com",
		FullName: "New Moderator",
		Password: "s3cretpass",
		Role:     models.RoleModerator,
	})
	require.NoError(t, err)
	assert.Equal(t, "new.mod@example.com", user.Email)
	assert.Equal(t, models.RoleModerator, user.Role)
	assert.True(t, user.Active)

	_, err = svc.Create(context.Background(), adminActor, CreateUserRequest{
		Email:    "peer@example.com",
		FullName: "Peer Admin",
		Password: "s3cretpass",
		Role:     models.RoleAdmin,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestUserServiceCreateRejectsDuplicateEmail(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{
		"usr-1": {ID: "usr-1", Email: "taken@example.com", Role: models.RoleUser, Active: true},
	}}
	svc := newUserService(repo)

	_, err := svc.Create(context.Background(), adminActor, CreateUserRequest{
		Email:    "taken@example.com",
		FullName: "Dup",
		Password: "s3cretpass",
		Role:     models.RoleUser,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestUserServiceDeleteIsSoftAndNotSelf(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{
		"adm-1": {ID: "adm-1", Role: models.RoleAdmin, Active: true},
		"usr-2": {ID: "usr-2", Role: models.RoleUser, Active: true},
	}}
	svc := newUserService(repo)

	err := svc.Delete(context.Background(), adminActor, "adm-1")
	require.Error(t, err)

	require.NoError(t, svc.Delete(context.Background(), adminActor, "usr-2"))
	assert.Contains(t, repo.softDeleted, "usr-2")
}
