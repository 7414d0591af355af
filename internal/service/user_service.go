package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/dulcevicio/course-api/internal/models"
	appErrors "github.com/dulcevicio/course-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	UpdateAvatar(ctx context.Context, id, url string) error
	SoftDelete(ctx context.Context, id string, ts time.Time) error
}

// CreateUserRequest describes an admin-provisioned account.
type CreateUserRequest struct {
	Email    string          `json:"email" validate:"required,email"`
	Username *string         `json:"username,omitempty" validate:"omitempty,min=3,max=32"`
	FullName string          `json:"full_name" validate:"required,min=1,max=120"`
	Password string          `json:"password" validate:"required,min=8"`
	Role     models.UserRole `json:"role" validate:"required,oneof=SUPERADMIN ADMIN MODERATOR USER"`
}

// UpdateUserRequest describes editable account fields. Role changes go
// through the management policy: only a strictly higher-ranked actor may
// apply them.
type UpdateUserRequest struct {
	FullName *string          `json:"full_name,omitempty" validate:"omitempty,min=1,max=120"`
	Username *string          `json:"username,omitempty" validate:"omitempty,min=3,max=32"`
	Role     *models.UserRole `json:"role,omitempty" validate:"omitempty,oneof=SUPERADMIN ADMIN MODERATOR USER"`
	Active   *bool            `json:"active,omitempty"`
}

// UserService manages user accounts.
type UserService struct {
	repo      userRepository
	storage   fileUploader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService constructs a UserService.
func NewUserService(repo userRepository, storage fileUploader, validate *validator.Validate, logger *zap.Logger) *UserService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{repo: repo, storage: storage, validator: validate, logger: logger}
}

// List returns users with pagination metadata.
func (s *UserService) List(ctx context.Context, actor models.JWTClaims, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	if err := Authorize(actor.Role, ActionUserList); err != nil {
		return nil, nil, err
	}
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return users, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Create provisions an account with an explicit role. Unlike self-service
// registration the role is chosen, so it must rank below the actor's own.
func (s *UserService) Create(ctx context.Context, actor models.JWTClaims, req CreateUserRequest) (*models.User, error) {
	if err := Authorize(actor.Role, ActionUserCreate); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}
	if RoleRank(req.Role) >= RoleRank(actor.Role) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot assign a role at or above your own")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Email:        email,
		Username:     req.Username,
		PasswordHash: string(hash),
		FullName:     req.FullName,
		Role:         req.Role,
		Active:       true,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}
	return user, nil
}

// Get returns one user. Users can always read their own account; reading
// others requires listing rights.
func (s *UserService) Get(ctx context.Context, actor models.JWTClaims, id string) (*models.User, error) {
	if actor.UserID != id {
		if err := Authorize(actor.Role, ActionUserList); err != nil {
			return nil, err
		}
	}
	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Update edits an account. Self-updates are limited to profile fields; role
// and active changes require management rights over the target.
func (s *UserService) Update(ctx context.Context, actor models.JWTClaims, id string, req UpdateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}
	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := AuthorizeUserManagement(actor, ActionUserUpdate, id, user.Role); err != nil {
		return nil, err
	}

	self := actor.UserID == id
	if self && (req.Role != nil || req.Active != nil) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot change own role or active flag")
	}

	if req.FullName != nil {
		user.FullName = *req.FullName
	}
	if req.Username != nil {
		user.Username = req.Username
	}
	if req.Role != nil {
		// Promoting to a rank at or above the actor's own is off-limits.
		if RoleRank(*req.Role) >= RoleRank(actor.Role) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot assign a role at or above your own")
		}
		user.Role = *req.Role
	}
	if req.Active != nil {
		if !*req.Active {
			if err := AuthorizeUserManagement(actor, ActionUserDeactivate, id, user.Role); err != nil {
				return nil, err
			}
		}
		user.Active = *req.Active
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user")
	}
	return user, nil
}

// UploadAvatar stores the avatar image for the actor's own account.
func (s *UserService) UploadAvatar(ctx context.Context, actor models.JWTClaims, filename string, file io.Reader) (*models.User, error) {
	user, err := s.load(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}

	_, publicURL, err := s.storage.Upload("avatars", filename, file)
	if err != nil {
		s.logger.Error("avatar upload failed", zap.String("user_id", actor.UserID), zap.Error(err))
		return nil, appErrors.Clone(appErrors.ErrUploadFailed, "")
	}
	if err := s.repo.UpdateAvatar(ctx, user.ID, publicURL); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store avatar url")
	}
	user.AvatarURL = &publicURL
	return user, nil
}

// Delete soft-deletes an account. The row survives so enrollments and audit
// entries keep their references.
func (s *UserService) Delete(ctx context.Context, actor models.JWTClaims, id string) error {
	user, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := AuthorizeUserManagement(actor, ActionUserDelete, id, user.Role); err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, id, time.Now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete user")
	}
	return nil
}

func (s *UserService) load(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if user.Deleted() {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
	}
	return user, nil
}
