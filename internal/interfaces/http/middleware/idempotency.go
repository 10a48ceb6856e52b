package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rental/backend/internal/domain/shared"
	"github.com/rental/backend/internal/infrastructure/logger"
	"github.com/rental/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// IdempotencyKeyHeader carries the client-chosen key of a retry-safe request
const IdempotencyKeyHeader = "Idempotency-Key"

const maxIdempotencyKeyLength = 255

// IdempotencyKey rejects a request whose Idempotency-Key was already used by
// the same tenant on the same route within ttl. Requests without the header
// pass through. A key whose request failed is released so the client can
// retry with it. When the store is unreachable the request proceeds.
func IdempotencyKey(store shared.IdempotencyStore, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyKeyHeader)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxIdempotencyKeyLength {
			c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeBadRequest, "Idempotency-Key is too long", GetRequestID(c)))
			return
		}

		ctx := c.Request.Context()
		storeKey := "http:" + GetTenantID(c) + ":" + c.Request.Method + ":" + c.Request.URL.Path + ":" + key

		fresh, err := store.MarkProcessed(ctx, storeKey, ttl)
		if err != nil {
			logger.L(ctx).Warn("Idempotency store unavailable, processing request without de-duplication",
				zap.String("idempotency_key", key),
				zap.Error(err),
			)
			c.Next()
			return
		}
		if !fresh {
			c.AbortWithStatusJSON(http.StatusConflict, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeConflict, "A request with this Idempotency-Key was already processed", GetRequestID(c)))
			return
		}

		c.Next()

		if c.Writer.Status() >= http.StatusBadRequest {
			// the request context may already be cancelled
			if err := store.Release(context.WithoutCancel(ctx), storeKey); err != nil {
				logger.L(ctx).Warn("Failed to release idempotency key",
					zap.String("idempotency_key", key),
					zap.Error(err),
				)
			}
		}
	}
}
