package cache

import (
	"context"
	"time"
)

// Cache stores opaque byte payloads. Get reports a miss with ok=false and a
// nil error.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Len(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
	Close() error
}
