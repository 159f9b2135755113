package cache

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vyrodovalexey/idbridge/internal/config"
	"github.com/vyrodovalexey/idbridge/internal/observability"
)

// defaultKeyPrefix namespaces Redis keys when no prefix is configured.
const defaultKeyPrefix = "idbridge:"

// regionHandle is the untyped view the registry keeps over a Region.
type regionHandle interface {
	Invalidate(ctx context.Context) error
	close() error
}

// Registry owns the store backend and tracks every cache region by
// name. Write paths invalidate regions through the registry instead of
// reaching into individual caches, so adding a region automatically
// makes it reachable for invalidation.
type Registry struct {
	logger    observability.Logger
	cacheType string

	// redisClient is shared by all regions when the redis backend is
	// configured. Nil for the memory backend.
	redisClient redis.UniversalClient
	keyPrefix   string

	mu      sync.RWMutex
	regions map[string]regionHandle
}

// NewRegistry creates a registry for the configured backend. For the
// redis backend the connection is established and verified here.
func NewRegistry(cfg *config.CacheConfig, logger observability.Logger) (*Registry, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	r := &Registry{
		logger:    logger,
		cacheType: cfg.Type,
		regions:   make(map[string]regionHandle),
	}

	switch cfg.Type {
	case config.CacheTypeMemory, "":
		r.cacheType = config.CacheTypeMemory

	case config.CacheTypeRedis:
		if cfg.Redis == nil || cfg.Redis.URL == "" {
			return nil, errors.New("redis URL is required for the redis cache backend")
		}

		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, errors.New("invalid redis URL: " + err.Error())
		}
		if cfg.Redis.PoolSize > 0 {
			opts.PoolSize = cfg.Redis.PoolSize
		}
		if cfg.Redis.DialTimeout > 0 {
			opts.DialTimeout = cfg.Redis.DialTimeout.Duration()
		}

		client := redis.NewClient(opts)
		if err := pingRedis(client); err != nil {
			_ = client.Close()
			return nil, errors.New("redis connection failed: " + err.Error())
		}

		r.redisClient = client
		r.keyPrefix = cfg.Redis.KeyPrefix
		if r.keyPrefix == "" {
			r.keyPrefix = defaultKeyPrefix
		}

		logger.Info("redis cache backend initialized",
			observability.String("keyPrefix", r.keyPrefix))

	default:
		return nil, errors.New("unknown cache type: " + cfg.Type)
	}

	return r, nil
}

// pingRedis tests the Redis connection with a timeout.
func pingRedis(client redis.UniversalClient) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return client.Ping(ctx).Err()
}

// newStore creates the byte store for one region. Memory regions each
// get their own bounded store. Redis regions share the client and are
// separated by key prefix.
func (r *Registry) newStore(region string, maxEntries int, ttl time.Duration) (Store, error) {
	if r.redisClient != nil {
		return newRedisStore(r.redisClient, r.keyPrefix, region, ttl, r.logger), nil
	}
	return newMemoryStore(region, maxEntries, ttl, r.logger), nil
}

// register records a region under its name.
func (r *Registry) register(name string, h regionHandle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.regions[name]; exists {
		return ErrRegionExists
	}
	r.regions[name] = h
	return nil
}

// Invalidate clears the named regions. Unknown names are skipped so
// that callers can list regions unconditionally. The first error is
// returned after all named regions have been attempted.
func (r *Registry) Invalidate(ctx context.Context, names ...string) error {
	r.mu.RLock()
	handles := make([]regionHandle, 0, len(names))
	for _, name := range names {
		h, ok := r.regions[name]
		if !ok {
			r.logger.Debug("invalidation skipped unknown region",
				observability.String("region", name))
			continue
		}
		handles = append(handles, h)
	}
	r.mu.RUnlock()

	var firstErr error
	for _, h := range handles {
		if err := h.Invalidate(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// InvalidateAll clears every registered region.
func (r *Registry) InvalidateAll(ctx context.Context) error {
	return r.Invalidate(ctx, r.Regions()...)
}

// Regions returns the sorted names of all registered regions.
func (r *Registry) Regions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.regions))
	for name := range r.regions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close closes every region store and the shared backend connection.
func (r *Registry) Close() error {
	r.mu.Lock()
	handles := make([]regionHandle, 0, len(r.regions))
	for _, h := range r.regions {
		handles = append(handles, h)
	}
	r.regions = make(map[string]regionHandle)
	r.mu.Unlock()

	var firstErr error
	for _, h := range handles {
		if err := h.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if r.redisClient != nil {
		if err := r.redisClient.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
