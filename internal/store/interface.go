// Package store provides persistence for per-key rate limit state. It
// exposes an atomic read-modify-write contract so the engine's decide step
// can never interleave with a concurrent decision for the same key, and can
// be implemented by an in-memory map, a snapshot file, or a database.
package store

import (
	"context"
	"time"
)

// UpdateFunc transforms the stored state for one key. cur is the current
// serialized state (nil when the key is absent or expired; found reports
// which). It returns the state to persist. Returning an error aborts the
// update with no mutation.
type UpdateFunc func(cur []byte, found bool) ([]byte, error)

// Stats reports store occupancy.
type Stats struct {
	// Keys is the number of live (unexpired) states the store tracks.
	Keys int64
}

// Store persists per-key state. Implementations must serialize Update calls
// for the same key; updates for different keys proceed in parallel. Absence
// of state is equivalent to a fresh, full budget.
type Store interface {
	// Update atomically applies fn to the state for key and persists the
	// result with the given retention. The whole read-modify-write is one
	// critical section per key.
	Update(ctx context.Context, key string, ttl time.Duration, fn UpdateFunc) error

	// Get returns the current state for key, or found=false when absent
	// or expired.
	Get(ctx context.Context, key string) (state []byte, found bool, err error)

	// Delete removes the state for key. Deleting an absent key is not an
	// error.
	Delete(ctx context.Context, key string) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Stats reports store occupancy.
	Stats(ctx context.Context) (Stats, error)

	// Close stops background sweeps and releases resources.
	Close() error
}
