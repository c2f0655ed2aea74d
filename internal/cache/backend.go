package cache

import (
	"context"
	"time"
)

// Backend is the storage a Coordinator reads and writes raw entries through.
type Backend interface {
	// Get returns the stored value and true, or false on a miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	// Close releases the backend's resources.
	Close() error
}
