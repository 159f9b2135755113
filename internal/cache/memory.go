package cache

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/idbridge/internal/observability"
)

// tracerName is the OpenTelemetry tracer name for cache operations.
const tracerName = "idbridge/cache"

// defaultMaxEntries bounds a memory store when no capacity is configured.
const defaultMaxEntries = 1000

// cleanupInterval is how often expired entries are swept from memory stores.
const cleanupInterval = time.Minute

// memoryStore implements a bounded in-memory store. Eviction removes the
// least recently inserted entry. Reads do not reorder entries, so a hot
// key that was written long ago is still the first to go when the store
// fills up. Overwriting a key counts as a fresh insertion.
type memoryStore struct {
	logger     observability.Logger
	region     string
	maxEntries int
	defaultTTL time.Duration

	mu    sync.Mutex
	items map[string]*list.Element
	order *list.List

	hits   int64
	misses int64

	stopCh   chan struct{}
	stopOnce sync.Once
}

// memoryEntry is a single entry in a memory store.
type memoryEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

// newMemoryStore creates a bounded in-memory store for one region.
func newMemoryStore(region string, maxEntries int, defaultTTL time.Duration, logger observability.Logger) *memoryStore {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}

	s := &memoryStore{
		logger:     logger,
		region:     region,
		maxEntries: maxEntries,
		defaultTTL: defaultTTL,
		items:      make(map[string]*list.Element),
		order:      list.New(),
		stopCh:     make(chan struct{}),
	}

	go s.cleanupLoop()

	logger.Debug("memory store initialized",
		observability.String("region", region),
		observability.Int("maxEntries", maxEntries),
		observability.Duration("defaultTTL", defaultTTL))

	return s
}

// Get retrieves a value from the store.
func (s *memoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	_, span := otel.Tracer(tracerName).Start(ctx, "cache.Get",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("cache.backend", "memory"),
			attribute.String("cache.region", s.region),
			attribute.String("cache.key", key),
		),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		GetMetrics().operationDuration.WithLabelValues(
			"memory", "get",
		).Observe(time.Since(start).Seconds())
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	elem, exists := s.items[key]
	if !exists {
		atomic.AddInt64(&s.misses, 1)
		GetMetrics().missesTotal.WithLabelValues("memory", s.region).Inc()
		span.SetAttributes(attribute.Bool("cache.hit", false))
		return nil, ErrMiss
	}

	entry := elem.Value.(*memoryEntry)

	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		s.removeElement(elem)
		atomic.AddInt64(&s.misses, 1)
		GetMetrics().missesTotal.WithLabelValues("memory", s.region).Inc()
		span.SetAttributes(attribute.Bool("cache.hit", false))
		return nil, ErrMiss
	}

	// Eviction is by insertion order, so a hit does not touch the list.

	atomic.AddInt64(&s.hits, 1)
	GetMetrics().hitsTotal.WithLabelValues("memory", s.region).Inc()

	span.SetAttributes(
		attribute.Bool("cache.hit", true),
		attribute.Int("cache.value_size", len(entry.value)),
	)

	return entry.value, nil
}

// Set stores a value in the store.
func (s *memoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, span := otel.Tracer(tracerName).Start(ctx, "cache.Set",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("cache.backend", "memory"),
			attribute.String("cache.region", s.region),
			attribute.String("cache.key", key),
			attribute.Int("cache.value_size", len(value)),
		),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		GetMetrics().operationDuration.WithLabelValues(
			"memory", "set",
		).Observe(time.Since(start).Seconds())
	}()

	if ttl == 0 {
		ttl = s.defaultTTL
	}

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	entry := &memoryEntry{
		key:       key,
		value:     value,
		expiresAt: expiresAt,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Overwrite counts as a fresh insertion.
	if elem, exists := s.items[key]; exists {
		s.order.MoveToFront(elem)
		elem.Value = entry
	} else {
		s.items[key] = s.order.PushFront(entry)
		for s.order.Len() > s.maxEntries {
			s.evictOldest()
		}
	}

	GetMetrics().sizeGauge.WithLabelValues("memory", s.region).Set(float64(s.order.Len()))

	s.logger.Debug("cache set",
		observability.String("region", s.region),
		observability.String("key", key),
		observability.Duration("ttl", ttl),
		observability.Int("size", s.order.Len()))

	return nil
}

// Delete removes a value from the store.
func (s *memoryStore) Delete(ctx context.Context, key string) error {
	_, span := otel.Tracer(tracerName).Start(ctx, "cache.Delete",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("cache.backend", "memory"),
			attribute.String("cache.region", s.region),
			attribute.String("cache.key", key),
		),
	)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, exists := s.items[key]; exists {
		s.removeElement(elem)
	}

	return nil
}

// Clear removes every entry from the store.
func (s *memoryStore) Clear(ctx context.Context) error {
	_, span := otel.Tracer(tracerName).Start(ctx, "cache.Clear",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("cache.backend", "memory"),
			attribute.String("cache.region", s.region),
		),
	)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := s.order.Len()
	s.items = make(map[string]*list.Element)
	s.order.Init()

	GetMetrics().sizeGauge.WithLabelValues("memory", s.region).Set(0)

	s.logger.Debug("cache cleared",
		observability.String("region", s.region),
		observability.Int("removed", removed))

	return nil
}

// Len returns the current number of entries.
func (s *memoryStore) Len(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len(), nil
}

// Close stops the cleanup goroutine and drops all entries.
func (s *memoryStore) Close() error {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = make(map[string]*list.Element)
	s.order.Init()

	return nil
}

// Stats returns store statistics.
func (s *memoryStore) Stats() Stats {
	s.mu.Lock()
	size := int64(s.order.Len())
	s.mu.Unlock()

	return Stats{
		Hits:   atomic.LoadInt64(&s.hits),
		Misses: atomic.LoadInt64(&s.misses),
		Size:   size,
	}
}

// evictOldest removes the oldest entry. Must be called with lock held.
func (s *memoryStore) evictOldest() {
	elem := s.order.Back()
	if elem != nil {
		s.removeElement(elem)
		GetMetrics().evictionsTotal.WithLabelValues("memory", s.region).Inc()
	}
}

// removeElement removes an element. Must be called with lock held.
func (s *memoryStore) removeElement(elem *list.Element) {
	s.order.Remove(elem)
	entry := elem.Value.(*memoryEntry)
	delete(s.items, entry.key)
}

// cleanupLoop periodically removes expired entries.
func (s *memoryStore) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCh:
			return
		}
	}
}

// cleanup removes expired entries under a single write lock.
func (s *memoryStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var toRemove []*list.Element

	for elem := s.order.Back(); elem != nil; elem = elem.Prev() {
		entry := elem.Value.(*memoryEntry)
		if !entry.expiresAt.IsZero() && now.After(entry.expiresAt) {
			toRemove = append(toRemove, elem)
		}
	}

	for _, elem := range toRemove {
		s.removeElement(elem)
	}

	if len(toRemove) > 0 {
		GetMetrics().sizeGauge.WithLabelValues("memory", s.region).Set(float64(s.order.Len()))
		s.logger.Debug("cache cleanup completed",
			observability.String("region", s.region),
			observability.Int("removed", len(toRemove)))
	}
}
