package middleware

import (
	"context"
	"fmt"
	"strings"

	"autodiag/models"
	"autodiag/services/user"
	"autodiag/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Authenticator resolves a bearer token presented from a device.
type Authenticator interface {
	Authenticate(ctx context.Context, token, deviceID string) (*user.Principal, error)
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

// JWTAuthMiddleware requires a bearer token issued to the requesting device.
// It must run after DeviceMiddleware.
func JWTAuthMiddleware(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			utils.RespondError(c, fmt.Errorf("missing bearer token: %w", utils.ErrUnauthorized))
			return
		}
		principal, err := auth.Authenticate(c.Request.Context(), token, c.GetString(CtxDeviceID))
		if err != nil {
			utils.GetLogger().Debug("authentication failed", zap.String("path", c.FullPath()), zap.Error(err))
			utils.RespondError(c, err)
			return
		}
		c.Set(CtxUserID, principal.UserID)
		c.Set(CtxRole, principal.Role)
		c.Next()
	}
}

func UserID(c *gin.Context) string {
	return c.GetString(CtxUserID)
}

func Role(c *gin.Context) models.Role {
	if v, ok := c.Get(CtxRole); ok {
		if r, ok := v.(models.Role); ok {
			return r
		}
	}
	return ""
}
