package cache

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/idbridge/internal/observability"
)

func newTestMemoryStore(t *testing.T, maxEntries int, ttl time.Duration) *memoryStore {
	t.Helper()
	s := newMemoryStore("test", maxEntries, ttl, observability.NopLogger())
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})
	return s
}

func TestMemoryStore_SetGet(t *testing.T) {
	s := newTestMemoryStore(t, 10, time.Minute)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "key1", []byte("value1"), 0))

	val, err := s.Get(ctx, "key1")
	require.NoError(t, err)
	assert.Equal(t, []byte("value1"), val)
}

func TestMemoryStore_Miss(t *testing.T) {
	s := newTestMemoryStore(t, 10, time.Minute)

	_, err := s.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemoryStore_Expiry(t *testing.T) {
	s := newTestMemoryStore(t, 10, time.Minute)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "short", []byte("v"), 20*time.Millisecond))

	val, err := s.Get(ctx, "short")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), val)

	time.Sleep(30 * time.Millisecond)

	_, err = s.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemoryStore_InsertionOrderEviction(t *testing.T) {
	s := newTestMemoryStore(t, 2, time.Minute)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, s.Set(ctx, "b", []byte("2"), 0))

	// A read must not refresh "a": eviction follows insertion order.
	_, err := s.Get(ctx, "a")
	require.NoError(t, err)

	require.NoError(t, s.Set(ctx, "c", []byte("3"), 0))

	_, err = s.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrMiss, "oldest insertion should be evicted despite recent read")

	_, err = s.Get(ctx, "b")
	assert.NoError(t, err)
	_, err = s.Get(ctx, "c")
	assert.NoError(t, err)
}

func TestMemoryStore_OverwriteCountsAsInsertion(t *testing.T) {
	s := newTestMemoryStore(t, 2, time.Minute)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, s.Set(ctx, "b", []byte("2"), 0))

	// Rewriting "a" makes it the newest insertion, so "b" goes next.
	require.NoError(t, s.Set(ctx, "a", []byte("1b"), 0))
	require.NoError(t, s.Set(ctx, "c", []byte("3"), 0))

	_, err := s.Get(ctx, "b")
	assert.ErrorIs(t, err, ErrMiss)

	val, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1b"), val)
}

func TestMemoryStore_OverwriteUpdatesSizeGauge(t *testing.T) {
	s := newMemoryStore("overwrite-gauge", 10, time.Minute, observability.NopLogger())
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	ctx := context.Background()

	gauge := GetMetrics().sizeGauge.WithLabelValues("memory", "overwrite-gauge")

	require.NoError(t, s.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, s.Set(ctx, "a", []byte("2"), 0))
	assert.Equal(t, float64(1), testutil.ToFloat64(gauge))

	require.NoError(t, s.Set(ctx, "b", []byte("3"), 0))
	assert.Equal(t, float64(2), testutil.ToFloat64(gauge))
}

func TestMemoryStore_Delete(t *testing.T) {
	s := newTestMemoryStore(t, 10, time.Minute)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "key1", []byte("value1"), 0))
	require.NoError(t, s.Delete(ctx, "key1"))

	_, err := s.Get(ctx, "key1")
	assert.ErrorIs(t, err, ErrMiss)

	// Deleting an absent key is not an error.
	assert.NoError(t, s.Delete(ctx, "absent"))
}

func TestMemoryStore_Clear(t *testing.T) {
	s := newTestMemoryStore(t, 10, time.Minute)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, s.Set(ctx, "b", []byte("2"), 0))

	require.NoError(t, s.Clear(ctx))

	n, err := s.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestMemoryStore_Capacity(t *testing.T) {
	s := newTestMemoryStore(t, 3, time.Minute)
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, s.Set(ctx, key, []byte(key), 0))
	}

	n, err := s.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// Only the three newest insertions survive.
	for _, key := range []string{"c", "d", "e"} {
		_, err := s.Get(ctx, key)
		assert.NoError(t, err, "key %s should survive", key)
	}
}

func TestMemoryStore_DefaultTTL(t *testing.T) {
	s := newTestMemoryStore(t, 10, 20*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "key1", []byte("v"), 0))

	time.Sleep(30 * time.Millisecond)

	_, err := s.Get(ctx, "key1")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemoryStore_Cleanup(t *testing.T) {
	s := newTestMemoryStore(t, 10, time.Minute)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "expired", []byte("v"), 10*time.Millisecond))
	require.NoError(t, s.Set(ctx, "fresh", []byte("v"), time.Minute))

	time.Sleep(20 * time.Millisecond)
	s.cleanup()

	n, err := s.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMemoryStore_Stats(t *testing.T) {
	s := newTestMemoryStore(t, 10, time.Minute)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "key1", []byte("v"), 0))

	_, _ = s.Get(ctx, "key1")
	_, _ = s.Get(ctx, "key1")
	_, _ = s.Get(ctx, "absent")

	stats := s.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Size)
	assert.InDelta(t, 66.6, stats.HitRate(), 0.1)
}

func TestStats_HitRateEmpty(t *testing.T) {
	assert.Zero(t, Stats{}.HitRate())
}

func TestKey(t *testing.T) {
	assert.Equal(t, "users:id:42", Key("users", "id", "42"))
	assert.Equal(t, "roles:", Key("roles", ""))
}
