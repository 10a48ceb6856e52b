package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rental/backend/internal/infrastructure/logger"
	"github.com/rental/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// Tenant context keys
const (
	TenantIDKey     = "tenant_id"
	TenantHeaderKey = "X-Tenant-ID"
)

// TenantMiddlewareConfig holds configuration for tenant middleware
type TenantMiddlewareConfig struct {
	// HeaderEnabled accepts the X-Tenant-ID header when no token claim is present
	HeaderEnabled bool
	// SkipPaths are paths that don't require tenant context
	SkipPaths []string
	Logger    *zap.Logger
}

// DefaultTenantConfig returns default tenant middleware configuration
func DefaultTenantConfig() TenantMiddlewareConfig {
	return TenantMiddlewareConfig{
		HeaderEnabled: true,
		SkipPaths:     []string{"/health", "/healthz", "/ready", "/metrics", "/api/v1/system/ping", "/api/v1/system/info"},
	}
}

// TenantMiddleware resolves the tenant of the request.
// Extraction order: JWT claim > X-Tenant-ID header. A request without a
// tenant, or with a malformed one, is rejected with 401.
func TenantMiddleware(cfg TenantMiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, skipPath := range cfg.SkipPaths {
			if path == skipPath || strings.HasPrefix(path, skipPath+"/") {
				c.Next()
				return
			}
		}

		tenantID, method := GetJWTTenantID(c), "jwt"
		if tenantID == "" && cfg.HeaderEnabled {
			tenantID, method = c.GetHeader(TenantHeaderKey), "header"
		}

		if tenantID == "" {
			respondUnauthorized(c, "Tenant identification required")
			return
		}
		if _, err := uuid.Parse(tenantID); err != nil {
			respondUnauthorized(c, "Invalid tenant ID format")
			return
		}

		c.Set(TenantIDKey, tenantID)
		c.Request = c.Request.WithContext(logger.WithTenantID(c.Request.Context(), tenantID))
		if cfg.Logger != nil {
			cfg.Logger.Debug("Tenant identified",
				zap.String("tenant_id", tenantID),
				zap.String("method", method),
			)
		}
		c.Next()
	}
}

func respondUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized,
		dto.NewErrorResponseWithRequestID(dto.ErrCodeUnauthorized, message, GetRequestID(c)))
}

// GetTenantID retrieves the tenant ID from gin.Context
func GetTenantID(c *gin.Context) string {
	return c.GetString(TenantIDKey)
}

// GetTenantUUID retrieves the tenant ID as UUID. A missing tenant is an error.
func GetTenantUUID(c *gin.Context) (uuid.UUID, error) {
	return uuid.Parse(GetTenantID(c))
}
