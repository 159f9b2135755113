// Package cache provides read-through TTL caching for identity and
// database lookups.
package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Common cache errors.
var (
	// ErrMiss indicates that the key was not found in the store.
	ErrMiss = errors.New("cache miss")

	// ErrInvalidConfig indicates that the cache configuration is invalid.
	ErrInvalidConfig = errors.New("invalid cache configuration")

	// ErrConnectionFailed indicates that the cache backend connection failed.
	ErrConnectionFailed = errors.New("cache connection failed")

	// ErrRegionExists indicates that a region with the same name is
	// already registered.
	ErrRegionExists = errors.New("cache region already registered")
)

// Store is the byte-level backend behind a cache region. Implementations
// must be safe for concurrent use.
type Store interface {
	// Get retrieves a value from the store.
	// Returns ErrMiss if the key is not found or has expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with the given TTL.
	// A TTL of 0 falls back to the store default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a single key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Clear removes every entry owned by this store.
	Clear(ctx context.Context) error

	// Len returns the current number of entries.
	Len(ctx context.Context) (int, error)

	// Close releases backend resources.
	Close() error
}

// StoreWithStats extends Store with hit/miss counters.
type StoreWithStats interface {
	Store

	// Stats returns store statistics.
	Stats() Stats
}

// Stats contains store statistics.
type Stats struct {
	// Hits is the number of cache hits.
	Hits int64

	// Misses is the number of cache misses.
	Misses int64

	// Size is the current number of entries.
	Size int64
}

// HitRate returns the hit rate as a percentage.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// Key joins key parts with ':' into a single cache key. Empty parts are
// kept so that positional keys stay unambiguous.
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}
