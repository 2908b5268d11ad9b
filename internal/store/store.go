// Package store provides the raw-payload cache consulted by the source
// clients so resumed runs do not refetch upstream data.
package store

import "context"

// Cache stores raw source payloads keyed by (source, key) with a TTL.
type Cache interface {
	// Get returns the cached payload and true when a non-expired entry
	// exists for the (source, key) pair.
	Get(ctx context.Context, source, key string) ([]byte, bool, error)

	// Set stores the payload, replacing any previous entry for the pair.
	// ttlHours bounds how long the entry may be served.
	Set(ctx context.Context, source, key string, payload []byte, ttlHours int) error

	Migrate(ctx context.Context) error
	Close() error
}
