package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/repocerti-api/internal/models"
	appErrors "github.com/noah-isme/repocerti-api/pkg/errors"
	"github.com/noah-isme/repocerti-api/pkg/response"
)

// RequireRoles allows the request when the live viewer holds one of roles.
func RequireRoles(roles ...models.Role) gin.HandlerFunc {
	allowed := make(map[models.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return guard(func(viewer *models.Account) bool {
		_, ok := allowed[viewer.Role]
		return ok
	})
}

// RequireDesignations allows staff viewers holding one of designations.
func RequireDesignations(designations ...models.Designation) gin.HandlerFunc {
	allowed := make(map[models.Designation]struct{}, len(designations))
	for _, d := range designations {
		allowed[d] = struct{}{}
	}
	return guard(func(viewer *models.Account) bool {
		if viewer.Role != models.RoleStaff {
			return false
		}
		_, ok := allowed[viewer.Designation]
		return ok
	})
}

func guard(permit func(viewer *models.Account) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		viewer := CurrentViewer(c)
		if viewer == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if !permit(viewer) {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
