package main

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/vyrodovalexey/idbridge/internal/cache"
	"github.com/vyrodovalexey/idbridge/internal/config"
	"github.com/vyrodovalexey/idbridge/internal/database"
	"github.com/vyrodovalexey/idbridge/internal/identity"
	"github.com/vyrodovalexey/idbridge/internal/observability"
	"github.com/vyrodovalexey/idbridge/internal/secrets"
)

// application holds all application components.
type application struct {
	config     *config.Config
	registry   *prometheus.Registry
	cacheReg   *cache.Registry
	resolver   *secrets.Resolver
	identity   *identity.Service
	pool       *database.Pool
	httpServer *http.Server
}

// initApplication initializes all application components.
func initApplication(cfg *config.Config, logger observability.Logger) *application {
	registry := newMetricsRegistry()

	resolver, err := secrets.NewResolver(cfg.Vault, logger)
	if err != nil {
		logger.Fatal("failed to initialize secret resolver", observability.Error(err))
		return nil // unreachable in production; allows test to continue
	}

	clientSecret := resolveClientSecret(cfg, resolver, logger)

	cacheReg, err := cache.NewRegistry(&cfg.Cache, logger)
	if err != nil {
		logger.Fatal("failed to initialize cache", observability.Error(err))
		return nil
	}

	svc, err := identity.New(&cfg.Identity, clientSecret, cacheReg, logger)
	if err != nil {
		logger.Fatal("failed to initialize identity service", observability.Error(err))
		return nil
	}
	cache.GetMetrics().Init(cacheReg.Regions())

	pool := initDatabase(cfg, registry, logger)

	app := &application{
		config:   cfg,
		registry: registry,
		cacheReg: cacheReg,
		resolver: resolver,
		identity: svc,
		pool:     pool,
	}
	app.httpServer = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           newRouter(app, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return app
}

// newMetricsRegistry builds the custom Prometheus registry serving
// /metrics. Subsystem metric singletons use promauto against the
// default registry, so they must be bridged here explicitly to be
// visible on the endpoint.
func newMetricsRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	cache.GetMetrics().MustRegister(registry)
	identity.GetMetrics().MustRegister(registry)
	secrets.MustRegister(registry)
	return registry
}

// resolveClientSecret resolves the admin client secret from the
// literal config value or the configured secret reference. A missing
// secret is not fatal: the service starts without administrative
// capability.
func resolveClientSecret(cfg *config.Config, resolver *secrets.Resolver, logger observability.Logger) string {
	ref := cfg.Identity.ClientSecret
	if ref == "" {
		ref = cfg.Identity.ClientSecretRef
	}
	if ref == "" {
		logger.Warn("no client secret configured, administrative operations are disabled")
		return ""
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	secret, err := resolver.Resolve(ctx, ref)
	if err != nil {
		logger.Fatal("failed to resolve client secret", observability.Error(err))
		return ""
	}
	return secret
}

// initDatabase opens the database pool when one is configured.
func initDatabase(cfg *config.Config, registry *prometheus.Registry, logger observability.Logger) *database.Pool {
	if cfg.Database == nil {
		return nil
	}

	dialect, err := database.DialectFor(cfg.Database.Driver)
	if err != nil {
		logger.Fatal("unsupported database driver", observability.Error(err))
		return nil
	}

	pool, err := database.Open(cfg.Database, dialect, logger)
	if err != nil {
		logger.Fatal("failed to open database", observability.Error(err))
		return nil
	}

	registry.MustRegister(pool.Collector(cfg.Database.Database))
	return pool
}
