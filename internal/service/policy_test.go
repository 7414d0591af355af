package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dulcevicio/course-api/internal/models"
)

func TestAllowedFollowsRoleHierarchy(t *testing.T) {
	cases := []struct {
		name   string
		role   models.UserRole
		action PolicyAction
		want   bool
	}{
		{"user cannot list users", models.RoleUser, ActionUserList, false},
		{"moderator lists users", models.RoleModerator, ActionUserList, true},
		{"moderator cannot create enrollments", models.RoleModerator, ActionEnrollmentCreate, false},
		{"admin creates enrollments", models.RoleAdmin, ActionEnrollmentCreate, true},
		{"admin cannot hard delete courses", models.RoleAdmin, ActionCourseHardDelete, false},
		{"superadmin hard deletes courses", models.RoleSuperAdmin, ActionCourseHardDelete, true},
		{"superadmin inherits lower actions", models.RoleSuperAdmin, ActionLessonManage, true},
		{"unknown action denied", models.RoleSuperAdmin, PolicyAction("bogus"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Allowed(tc.role, tc.action))
		})
	}
}

func TestAuthorizeUserManagementSelfRules(t *testing.T) {
	actor := models.JWTClaims{UserID: "usr-1", Role: models.RoleAdmin}

	require.NoError(t, AuthorizeUserManagement(actor, ActionUserUpdate, "usr-1", models.RoleAdmin))
	require.Error(t, AuthorizeUserManagement(actor, ActionUserDelete, "usr-1", models.RoleAdmin))
	require.Error(t, AuthorizeUserManagement(actor, ActionUserDeactivate, "usr-1", models.RoleAdmin))
}

func TestAuthorizeUserManagementRequiresHigherRank(t *testing.T) {
	admin := models.JWTClaims{UserID: "usr-1", Role: models.RoleAdmin}

	require.NoError(t, AuthorizeUserManagement(admin, ActionUserUpdate, "usr-2", models.RoleUser))
	require.Error(t, AuthorizeUserManagement(admin, ActionUserUpdate, "usr-2", models.RoleAdmin))
	require.Error(t, AuthorizeUserManagement(admin, ActionUserDelete, "usr-2", models.RoleSuperAdmin))

	super := models.JWTClaims{UserID: "usr-9", Role: models.RoleSuperAdmin}
	require.NoError(t, AuthorizeUserManagement(super, ActionUserDelete, "usr-2", models.RoleAdmin))
}
