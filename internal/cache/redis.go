package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/idbridge/internal/observability"
)

// scanBatchSize is the COUNT hint used when iterating region keys.
const scanBatchSize = 100

// redisStore implements a Redis-backed store. Every store owns a key
// prefix of the form "<global>:<region>:" so that Clear only touches its
// own region. The *redis.Client is shared across regions and closed by
// the owning backend, not by individual stores.
//
// Failed lookups surface as errors rather than being retried. Callers
// treat any store error as a miss and fall through to the origin.
type redisStore struct {
	logger     observability.Logger
	client     redis.UniversalClient
	keyPrefix  string
	region     string
	defaultTTL time.Duration
}

// newRedisStore creates a region-scoped view over a shared Redis client.
func newRedisStore(
	client redis.UniversalClient,
	globalPrefix, region string,
	defaultTTL time.Duration,
	logger observability.Logger,
) *redisStore {
	return &redisStore{
		logger:     logger,
		client:     client,
		keyPrefix:  globalPrefix + region + ":",
		region:     region,
		defaultTTL: defaultTTL,
	}
}

// Get retrieves a value from Redis.
func (s *redisStore) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "cache.Get",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("cache.backend", "redis"),
			attribute.String("cache.region", s.region),
			attribute.String("cache.key", key),
		),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		GetMetrics().operationDuration.WithLabelValues(
			"redis", "get",
		).Observe(time.Since(start).Seconds())
	}()

	val, err := s.client.Get(ctx, s.keyPrefix+key).Bytes()
	if err == nil {
		GetMetrics().hitsTotal.WithLabelValues("redis", s.region).Inc()
		span.SetAttributes(
			attribute.Bool("cache.hit", true),
			attribute.Int("cache.value_size", len(val)),
		)
		return val, nil
	}

	if errors.Is(err, redis.Nil) {
		GetMetrics().missesTotal.WithLabelValues("redis", s.region).Inc()
		span.SetAttributes(attribute.Bool("cache.hit", false))
		return nil, ErrMiss
	}

	GetMetrics().errorsTotal.WithLabelValues("redis", "get").Inc()
	span.SetStatus(codes.Error, err.Error())
	span.RecordError(err)
	s.logger.Error("redis get failed",
		observability.String("region", s.region),
		observability.String("key", key),
		observability.Error(err))
	return nil, err
}

// Set stores a value in Redis.
func (s *redisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "cache.Set",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("cache.backend", "redis"),
			attribute.String("cache.region", s.region),
			attribute.String("cache.key", key),
			attribute.Int("cache.value_size", len(value)),
		),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		GetMetrics().operationDuration.WithLabelValues(
			"redis", "set",
		).Observe(time.Since(start).Seconds())
	}()

	if ttl == 0 {
		ttl = s.defaultTTL
	}

	if err := s.client.Set(ctx, s.keyPrefix+key, value, ttl).Err(); err != nil {
		GetMetrics().errorsTotal.WithLabelValues("redis", "set").Inc()
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		s.logger.Error("redis set failed",
			observability.String("region", s.region),
			observability.String("key", key),
			observability.Error(err))
		return err
	}

	return nil
}

// Delete removes a single key from Redis.
func (s *redisStore) Delete(ctx context.Context, key string) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "cache.Delete",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("cache.backend", "redis"),
			attribute.String("cache.region", s.region),
			attribute.String("cache.key", key),
		),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		GetMetrics().operationDuration.WithLabelValues(
			"redis", "delete",
		).Observe(time.Since(start).Seconds())
	}()

	if err := s.client.Del(ctx, s.keyPrefix+key).Err(); err != nil {
		GetMetrics().errorsTotal.WithLabelValues("redis", "delete").Inc()
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		s.logger.Error("redis delete failed",
			observability.String("region", s.region),
			observability.String("key", key),
			observability.Error(err))
		return err
	}

	return nil
}

// Clear removes every key under this store's prefix using SCAN so that
// other regions sharing the client are untouched.
func (s *redisStore) Clear(ctx context.Context) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "cache.Clear",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("cache.backend", "redis"),
			attribute.String("cache.region", s.region),
		),
	)
	defer span.End()

	var (
		cursor  uint64
		removed int
	)

	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.keyPrefix+"*", scanBatchSize).Result()
		if err != nil {
			GetMetrics().errorsTotal.WithLabelValues("redis", "clear").Inc()
			span.SetStatus(codes.Error, err.Error())
			span.RecordError(err)
			s.logger.Error("redis clear failed",
				observability.String("region", s.region),
				observability.Error(err))
			return err
		}

		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				GetMetrics().errorsTotal.WithLabelValues("redis", "clear").Inc()
				span.SetStatus(codes.Error, err.Error())
				span.RecordError(err)
				return err
			}
			removed += len(keys)
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	span.SetAttributes(attribute.Int("cache.removed", removed))
	s.logger.Debug("cache cleared",
		observability.String("region", s.region),
		observability.Int("removed", removed))

	return nil
}

// Len counts the keys under this store's prefix.
func (s *redisStore) Len(ctx context.Context) (int, error) {
	var (
		cursor uint64
		count  int
	)

	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.keyPrefix+"*", scanBatchSize).Result()
		if err != nil {
			return 0, err
		}
		count += len(keys)
		cursor = next
		if cursor == 0 {
			break
		}
	}

	return count, nil
}

// Close is a no-op. The shared client is closed by the backend.
func (s *redisStore) Close() error {
	return nil
}
