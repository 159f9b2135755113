package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vyrodovalexey/idbridge/internal/observability"
)

// envelope wraps a cached payload so that confirmed absence can be
// cached alongside present values. A miss at the origin is stored as
// {"found":false} and served from cache until the entry expires.
type envelope struct {
	Found bool            `json:"found"`
	Value json.RawMessage `json:"value,omitempty"`
}

// ComputeFunc loads a value from the origin on a cache miss. It returns
// the value and whether the origin had one. Returning found=false with
// a nil error records a cacheable absence.
type ComputeFunc[V any] func(ctx context.Context) (V, bool, error)

// Region is a named, typed read-through cache over a byte store. Each
// region has a fixed TTL and its own capacity, and is registered with a
// Registry so that writers can invalidate it by name.
//
// Concurrent misses for the same key may each run the compute function.
// The last write wins, which is acceptable because every compute
// observes current origin state.
type Region[V any] struct {
	name   string
	store  Store
	ttl    time.Duration
	logger observability.Logger
}

// NewRegion creates a region backed by the registry's configured store
// backend and registers it for named invalidation.
func NewRegion[V any](reg *Registry, name string, maxEntries int, ttl time.Duration) (*Region[V], error) {
	store, err := reg.newStore(name, maxEntries, ttl)
	if err != nil {
		return nil, err
	}

	r := &Region[V]{
		name:   name,
		store:  store,
		ttl:    ttl,
		logger: reg.logger,
	}

	if err := reg.register(name, r); err != nil {
		_ = store.Close()
		return nil, err
	}

	return r, nil
}

// Name returns the region name.
func (r *Region[V]) Name() string {
	return r.name
}

// GetOrCompute returns the cached value for key, or runs compute and
// caches its result. Store read or write failures degrade to a direct
// origin call rather than failing the lookup.
func (r *Region[V]) GetOrCompute(ctx context.Context, key string, compute ComputeFunc[V]) (V, bool, error) {
	var zero V

	raw, err := r.store.Get(ctx, key)
	if err == nil {
		var env envelope
		if jsonErr := json.Unmarshal(raw, &env); jsonErr == nil {
			if !env.Found {
				return zero, false, nil
			}
			var value V
			if jsonErr := json.Unmarshal(env.Value, &value); jsonErr == nil {
				return value, true, nil
			}
		}
		// Undecodable entries are dropped and recomputed.
		_ = r.store.Delete(ctx, key)
	} else if !errors.Is(err, ErrMiss) {
		r.logger.Warn("cache read failed, computing from origin",
			observability.String("region", r.name),
			observability.String("key", key),
			observability.Error(err))
	}

	start := time.Now()
	value, found, err := compute(ctx)
	GetMetrics().computeDuration.WithLabelValues(r.name).Observe(time.Since(start).Seconds())
	if err != nil {
		return zero, false, err
	}

	if setErr := r.put(ctx, key, value, found); setErr != nil {
		r.logger.Warn("cache write failed",
			observability.String("region", r.name),
			observability.String("key", key),
			observability.Error(setErr))
	}

	if !found {
		return zero, false, nil
	}
	return value, true, nil
}

// Put stores a value directly, bypassing the compute path. Used when a
// write operation already holds the fresh value.
func (r *Region[V]) Put(ctx context.Context, key string, value V) error {
	return r.put(ctx, key, value, true)
}

func (r *Region[V]) put(ctx context.Context, key string, value V, found bool) error {
	env := envelope{Found: found}
	if found {
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("marshal cache value: %w", err)
		}
		env.Value = raw
	}

	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal cache envelope: %w", err)
	}

	return r.store.Set(ctx, key, raw, r.ttl)
}

// Forget drops a single key from the region.
func (r *Region[V]) Forget(ctx context.Context, key string) error {
	return r.store.Delete(ctx, key)
}

// Invalidate drops every entry in the region.
func (r *Region[V]) Invalidate(ctx context.Context) error {
	GetMetrics().invalidations.WithLabelValues(r.name).Inc()
	return r.store.Clear(ctx)
}

// Len returns the current number of cached entries.
func (r *Region[V]) Len(ctx context.Context) (int, error) {
	return r.store.Len(ctx)
}

func (r *Region[V]) close() error {
	return r.store.Close()
}
