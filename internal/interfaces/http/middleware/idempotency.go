package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/fieldops/backend/internal/domain/shared"
	"github.com/fieldops/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// IdempotencyKeyHeader carries the client supplied request key
const IdempotencyKeyHeader = "Idempotency-Key"

// MaxIdempotencyKeyLength bounds client supplied keys
const MaxIdempotencyKeyLength = 255

// Idempotency rejects a repeated POST carrying an Idempotency-Key that was
// already accepted for the same tenant and path. Requests without the header
// pass through. A request that fails releases its key so it can be retried.
// Store errors are logged and the request proceeds.
func Idempotency(store shared.IdempotencyStore, ttl time.Duration, logger *zap.Logger) gin.HandlerFunc {
	if store == nil {
		return func(c *gin.Context) { c.Next() }
	}
	if ttl <= 0 {
		ttl = shared.DefaultIdempotencyTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		header := c.GetHeader(IdempotencyKeyHeader)
		if c.Request.Method != http.MethodPost || header == "" {
			c.Next()
			return
		}
		if len(header) > MaxIdempotencyKeyLength {
			abortJSON(c, dto.ErrCodeValidation, "Idempotency-Key is too long")
			return
		}

		key := GetTenantID(c).String() + ":" + c.Request.URL.Path + ":" + header
		claimed, err := store.Claim(c.Request.Context(), key, ttl)
		if err != nil {
			logger.Warn("Idempotency store unavailable, accepting request",
				zap.String("request_id", GetRequestID(c)),
				zap.Error(err),
			)
			c.Next()
			return
		}
		if !claimed {
			abortJSON(c, dto.ErrCodeConflict, "A request with this Idempotency-Key was already processed")
			return
		}

		c.Next()

		if c.Writer.Status() >= http.StatusBadRequest {
			if err := store.Release(context.WithoutCancel(c.Request.Context()), key); err != nil {
				logger.Warn("Failed to release idempotency key",
					zap.String("request_id", GetRequestID(c)),
					zap.Error(err),
				)
			}
		}
	}
}
