package cache

import (
	"context"
	"time"
)

// Cache is the key/value contract used by the worker.
// Implementations: Redis (internal/infrastructure/cache).
type Cache interface {
	// Get loads key into dest. found=false on a miss, dest untouched.
	Get(ctx context.Context, key string, dest interface{}) (bool, error)

	// Set stores value as JSON with ttl (0 = no expiry).
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// SetNX stores value only if key does not exist yet.
	// Returns true when this call created the key.
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)

	Exists(ctx context.Context, key string) (bool, error)
}
