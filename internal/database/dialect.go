// Package database provides dialect-aware connection pool construction
// over database/sql.
package database

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/vyrodovalexey/idbridge/internal/config"
	"github.com/vyrodovalexey/idbridge/internal/faults"
)

// Dialect describes one supported database backend. Backends differ
// only in capabilities, not in hierarchy: a dialect contributes its
// driver registration name and DSN syntax, and the pool logic is shared.
type Dialect interface {
	// Name is the human-readable dialect name.
	Name() string

	// DriverName is the database/sql driver registration name.
	DriverName() string

	// ConfigType is the config.DatabaseConfig.Driver value this
	// dialect accepts.
	ConfigType() string

	// BuildDSN renders the connection string for this dialect.
	BuildDSN(cfg *config.DatabaseConfig) (string, error)
}

// DialectFor returns the dialect for a configured driver name.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case config.DriverPostgres:
		return PostgresDialect{}, nil
	case config.DriverStarRocks:
		return StarRocksDialect{}, nil
	default:
		return nil, faults.New(faults.KindInvalidArgument, "database.DialectFor",
			fmt.Sprintf("unsupported driver %q (postgres, starrocks)", driver))
	}
}

// PostgresDialect connects to PostgreSQL through lib/pq.
type PostgresDialect struct{}

// Name implements Dialect.
func (PostgresDialect) Name() string { return "PostgreSQL" }

// DriverName implements Dialect.
func (PostgresDialect) DriverName() string { return "postgres" }

// ConfigType implements Dialect.
func (PostgresDialect) ConfigType() string { return config.DriverPostgres }

// BuildDSN renders a lib/pq keyword/value connection string.
func (PostgresDialect) BuildDSN(cfg *config.DatabaseConfig) (string, error) {
	if cfg.Host == "" || cfg.Database == "" {
		return "", faults.New(faults.KindInvalidArgument, "database.BuildDSN",
			"host and database are required")
	}

	parts := []string{
		"host=" + pqQuote(cfg.Host),
		"port=" + strconv.Itoa(cfg.Port),
		"dbname=" + pqQuote(cfg.Database),
		"user=" + pqQuote(cfg.User),
	}
	if cfg.Password != "" {
		parts = append(parts, "password="+pqQuote(cfg.Password))
	}

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	parts = append(parts, "sslmode="+sslMode)

	timeout := int(cfg.Pool.GetTimeout() / time.Second)
	if timeout > 0 {
		parts = append(parts, "connect_timeout="+strconv.Itoa(timeout))
	}

	return strings.Join(parts, " "), nil
}

// pqQuote single-quotes a value when it contains spaces or quotes.
func pqQuote(v string) string {
	if !strings.ContainsAny(v, " '\\") {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// StarRocksDialect connects to StarRocks, which speaks the MySQL wire
// protocol, through go-sql-driver/mysql.
type StarRocksDialect struct{}

// Name implements Dialect.
func (StarRocksDialect) Name() string { return "StarRocks" }

// DriverName implements Dialect.
func (StarRocksDialect) DriverName() string { return "mysql" }

// ConfigType implements Dialect.
func (StarRocksDialect) ConfigType() string { return config.DriverStarRocks }

// BuildDSN renders a go-sql-driver/mysql DSN.
func (StarRocksDialect) BuildDSN(cfg *config.DatabaseConfig) (string, error) {
	if cfg.Host == "" || cfg.Database == "" {
		return "", faults.New(faults.KindInvalidArgument, "database.BuildDSN",
			"host and database are required")
	}

	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	mc.DBName = cfg.Database
	mc.Timeout = cfg.Pool.GetTimeout()
	mc.ParseTime = true

	return mc.FormatDSN(), nil
}
