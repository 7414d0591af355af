package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/dulcevicio/course-api/internal/models"
	"github.com/dulcevicio/course-api/internal/service"
	appErrors "github.com/dulcevicio/course-api/pkg/errors"
	"github.com/dulcevicio/course-api/pkg/response"
)

// MinRole blocks requests whose token role ranks below the given role. The
// hierarchy is SUPERADMIN > ADMIN > MODERATOR > USER, so higher roles pass
// every gate set for a lower one. Fine-grained rules (ownership, target
// rank) live in the services; this is the coarse route gate.
func MinRole(min models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims := claimsValue.(*models.JWTClaims)

		if service.RoleRank(claims.Role) < service.RoleRank(min) {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
