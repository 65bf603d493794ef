package middleware

import (
	"fmt"

	"autodiag/models"
	"autodiag/utils"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

// RequireRole lets through callers holding one of roles. It must run after
// JWTAuthMiddleware.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := Role(c)
		if role == "" {
			utils.RespondError(c, utils.ErrUnauthorized)
			return
		}
		if !lo.Contains(roles, role) {
			utils.RespondError(c, fmt.Errorf("role %s may not call this route: %w", role, utils.ErrForbidden))
			return
		}
		c.Next()
	}
}
