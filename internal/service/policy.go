package service

import (
	"github.com/dulcevicio/course-api/internal/models"
	appErrors "github.com/dulcevicio/course-api/pkg/errors"
)

// PolicyAction names an operation governed by the role policy table.
type PolicyAction string

const (
	ActionUserList         PolicyAction = "user.list"
	ActionUserCreate       PolicyAction = "user.create"
	ActionUserUpdate       PolicyAction = "user.update"
	ActionUserDelete       PolicyAction = "user.delete"
	ActionUserDeactivate   PolicyAction = "user.deactivate"
	ActionCourseCreate     PolicyAction = "course.create"
	ActionCourseUpdate     PolicyAction = "course.update"
	ActionCoursePublish    PolicyAction = "course.publish"
	ActionCourseSoftDelete PolicyAction = "course.soft_delete"
	ActionCourseHardDelete PolicyAction = "course.hard_delete"
	ActionLessonManage     PolicyAction = "lesson.manage"
	ActionMaterialManage   PolicyAction = "material.manage"
	ActionEnrollmentList   PolicyAction = "enrollment.list"
	ActionEnrollmentCreate PolicyAction = "enrollment.create"
	ActionEnrollmentExtend PolicyAction = "enrollment.extend"
	ActionEnrollmentCancel PolicyAction = "enrollment.cancel"
	ActionReviewModerate   PolicyAction = "review.moderate"
	ActionAuditView        PolicyAction = "audit.view"
)

var roleRank = map[models.UserRole]int{
	models.RoleUser:       1,
	models.RoleModerator:  2,
	models.RoleAdmin:      3,
	models.RoleSuperAdmin: 4,
}

// minRoleFor is the single decision table: the weakest role allowed to
// perform each action. Anything not listed is denied for every role.
var minRoleFor = map[PolicyAction]models.UserRole{
	ActionUserList:         models.RoleModerator,
	ActionUserCreate:       models.RoleAdmin,
	ActionUserUpdate:       models.RoleAdmin,
	ActionUserDelete:       models.RoleAdmin,
	ActionUserDeactivate:   models.RoleAdmin,
	ActionCourseCreate:     models.RoleAdmin,
	ActionCourseUpdate:     models.RoleModerator,
	ActionCoursePublish:    models.RoleAdmin,
	ActionCourseSoftDelete: models.RoleAdmin,
	ActionCourseHardDelete: models.RoleSuperAdmin,
	ActionLessonManage:     models.RoleModerator,
	ActionMaterialManage:   models.RoleModerator,
	ActionEnrollmentList:   models.RoleModerator,
	ActionEnrollmentCreate: models.RoleAdmin,
	ActionEnrollmentExtend: models.RoleAdmin,
	ActionEnrollmentCancel: models.RoleAdmin,
	ActionReviewModerate:   models.RoleModerator,
	ActionAuditView:        models.RoleAdmin,
}

// RoleRank returns the numeric rank of a role, 0 for unknown roles.
func RoleRank(role models.UserRole) int {
	return roleRank[role]
}

// Allowed reports whether the role may perform the action.
func Allowed(role models.UserRole, action PolicyAction) bool {
	min, ok := minRoleFor[action]
	if !ok {
		return false
	}
	return roleRank[role] >= roleRank[min]
}

// Authorize returns a Forbidden error unless the role may perform the action.
func Authorize(role models.UserRole, action PolicyAction) error {
	if !Allowed(role, action) {
		return appErrors.Clone(appErrors.ErrForbidden, "insufficient role for "+string(action))
	}
	return nil
}

// AuthorizeUserManagement applies the table plus the hierarchy rules for
// acting on another account: the actor must strictly outrank the target, and
// accounts cannot delete or deactivate themselves. Self profile updates are
// allowed regardless of rank.
func AuthorizeUserManagement(actor models.JWTClaims, action PolicyAction, targetID string, targetRole models.UserRole) error {
	self := actor.UserID == targetID
	if self {
		switch action {
		case ActionUserUpdate:
			return nil
		case ActionUserDelete, ActionUserDeactivate:
			return appErrors.Clone(appErrors.ErrForbidden, "cannot "+string(action)+" own account")
		}
	}
	if err := Authorize(actor.Role, action); err != nil {
		return err
	}
	if roleRank[actor.Role] <= roleRank[targetRole] {
		return appErrors.Clone(appErrors.ErrForbidden, "cannot manage an account of equal or higher role")
	}
	return nil
}
