package domain

import (
	"context"
	"time"
)

// IdempotencyStore caches responses of completed requests for replay
type IdempotencyStore interface {
	// Get returns the cached response, or ok=false on a miss
	Get(ctx context.Context, key string) (body []byte, ok bool, err error)
	Set(ctx context.Context, key string, body []byte, ttl time.Duration) error
}
