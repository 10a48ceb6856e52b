package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rental/backend/internal/interfaces/http/dto"
)

// Permissions checked on operator routes
const (
	PermissionOutboxRead  = "outbox:read"
	PermissionOutboxRetry = "outbox:retry"
)

// RequirePermission aborts with 403 unless the verified token carries
// permission. It must run after JWTAuthMiddleware.
func RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetJWTClaims(c)
		if claims == nil || !claims.HasPermission(permission) {
			c.AbortWithStatusJSON(http.StatusForbidden,
				dto.NewErrorResponseWithRequestID(dto.ErrCodeForbidden, "Missing permission "+permission, GetRequestID(c)))
			return
		}
		c.Next()
	}
}
