package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rental/backend/internal/infrastructure/telemetry"
)

// ProfilingLabels attaches route, method and tenant labels to the pprof
// samples of each request. Place it after the tenant middleware.
func ProfilingLabels(enabled bool) gin.HandlerFunc {
	if !enabled {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			c.Next()
			return
		}
		labels := telemetry.HTTPRequestLabels(route, c.Request.Method, GetTenantID(c))
		telemetry.WithProfilingLabels(c.Request.Context(), labels, func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}
