package shared

import (
	"context"
	"time"
)

// DefaultIdempotencyTTL is how long a claimed request key is remembered
const DefaultIdempotencyTTL = 24 * time.Hour

// IdempotencyStore remembers client supplied request keys so a repeated
// mutating request is rejected instead of applied twice.
type IdempotencyStore interface {
	// Claim records key for ttl. It returns false when key is already held.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release forgets key so the request can be retried
	Release(ctx context.Context, key string) error
}
