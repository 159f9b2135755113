package database

import (
	"context"
	"database/sql"
	"fmt"

	// Registers the "postgres" driver. The "mysql" driver is registered
	// by the dialect package's DSN import.
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/vyrodovalexey/idbridge/internal/config"
	"github.com/vyrodovalexey/idbridge/internal/faults"
	"github.com/vyrodovalexey/idbridge/internal/observability"
)

// Pool wraps a dialect-configured *sql.DB. Sessions pass straight
// through to database/sql; the pool does not manage transactions or
// add query behavior.
type Pool struct {
	db      *sql.DB
	dialect Dialect
	logger  observability.Logger
}

// Open builds the DSN for the dialect, opens the pool, and applies the
// configured limits. The dialect must match the configuration's driver
// type; a mismatch is rejected before any connection is attempted.
//
// database/sql reuses idle connections last-in-first-out already, so
// the UseLIFO option carries no behavior and is logged only.
func Open(cfg *config.DatabaseConfig, dialect Dialect, logger observability.Logger) (*Pool, error) {
	const op = "database.Open"

	if cfg == nil {
		return nil, faults.New(faults.KindInvalidArgument, op, "database configuration is required")
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	if cfg.Driver != dialect.ConfigType() {
		return nil, faults.New(faults.KindInvalidArgument, op,
			fmt.Sprintf("expected %q configuration, got %q", dialect.ConfigType(), cfg.Driver))
	}

	dsn, err := dialect.BuildDSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, faults.Wrap(faults.KindUnavailable, op, err)
	}

	size := cfg.Pool.GetSize()
	db.SetMaxOpenConns(size + cfg.Pool.GetMaxOverflow())
	db.SetMaxIdleConns(size)
	db.SetConnMaxLifetime(cfg.Pool.GetRecycleInterval())

	p := &Pool{
		db:      db,
		dialect: dialect,
		logger:  logger,
	}

	if cfg.Pool.PrePing {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Pool.GetTimeout())
		defer cancel()
		if err := p.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	logger.Info("database pool opened",
		observability.String("dialect", dialect.Name()),
		observability.String("host", cfg.Host),
		observability.String("database", cfg.Database),
		observability.Int("maxOpen", size+cfg.Pool.GetMaxOverflow()),
		observability.Int("maxIdle", size),
		observability.Bool("useLifo", cfg.Pool.UseLIFO))

	return p, nil
}

// DB exposes the underlying pool for query execution.
func (p *Pool) DB() *sql.DB {
	return p.db
}

// Dialect returns the pool's dialect.
func (p *Pool) Dialect() Dialect {
	return p.dialect
}

// PingContext verifies connectivity. Failures map to an unavailable
// fault so callers can distinguish reachability from query errors.
func (p *Pool) PingContext(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return faults.Wrap(faults.KindUnavailable, "database.Ping", err)
	}
	return nil
}

// Stats returns database/sql pool statistics.
func (p *Pool) Stats() sql.DBStats {
	return p.db.Stats()
}

// Collector returns a Prometheus collector exporting pool statistics
// under the given database name label.
func (p *Pool) Collector(dbName string) prometheus.Collector {
	return collectors.NewDBStatsCollector(p.db, dbName)
}

// Close closes the pool.
func (p *Pool) Close() error {
	p.logger.Info("database pool closing",
		observability.String("dialect", p.dialect.Name()))
	return p.db.Close()
}
