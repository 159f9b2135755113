// Package cache provides read-through TTL caching for identity and
// database lookups.
//
// The cache package implements named, typed cache regions over two
// byte-level backends. It supports:
//
//   - Bounded in-memory stores with insertion-order eviction
//   - Redis-backed stores sharing one client, separated by key prefix
//   - Fixed TTL and capacity per region
//   - Negative caching of confirmed absences
//   - Registry-based invalidation of regions by name
//   - OpenTelemetry tracing for store operations
//   - Prometheus metrics per backend and region
//
// # Example Usage
//
//	registry, err := cache.NewRegistry(&cfg.Cache, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer registry.Close()
//
//	users, err := cache.NewRegion[identity.User](registry, "users.id", 100, 5*time.Minute)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	user, found, err := users.GetOrCompute(ctx, userID, func(ctx context.Context) (identity.User, bool, error) {
//	    return origin.FetchUser(ctx, userID)
//	})
//
//	// A write path clears the affected regions by name.
//	_ = registry.Invalidate(ctx, "users.id", "search")
//
// # Eviction
//
// Memory stores evict the least recently inserted entry when full.
// Reads do not refresh an entry's position. Overwriting a key counts
// as a fresh insertion.
//
// # Thread Safety
//
// All stores and regions are safe for concurrent use. Concurrent
// misses for the same key may each run the compute function. The last
// write wins.
package cache
