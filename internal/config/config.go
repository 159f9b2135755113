// Package config provides configuration types and loading for idbridge.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// ErrInvalidConfig indicates that the configuration is invalid.
var ErrInvalidConfig = errors.New("invalid configuration")

// Default values applied when a field is omitted.
const (
	DefaultListenAddr      = ":8080"
	DefaultMetricsPath     = "/metrics"
	DefaultRequestTimeout  = 30 * time.Second
	DefaultShutdownTimeout = 15 * time.Second

	DefaultIdentityTimeout = 10 * time.Second

	DefaultPoolSize        = 10
	DefaultPoolMaxOverflow = 5
	DefaultPoolTimeout     = 30 * time.Second
	DefaultPoolRecycle     = 30 * time.Minute

	DefaultBreakerMaxFailures = 5
	DefaultBreakerOpenTimeout = 30 * time.Second
)

// Config is the root configuration for idbridge.
type Config struct {
	// Server configures the HTTP surface.
	Server ServerConfig `yaml:"server" json:"server"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Identity configures the identity provider adapter.
	Identity IdentityConfig `yaml:"identity" json:"identity"`

	// Database configures the database adapter. Optional.
	Database *DatabaseConfig `yaml:"database,omitempty" json:"database,omitempty"`

	// Cache configures the read cache backend.
	Cache CacheConfig `yaml:"cache" json:"cache"`

	// Vault configures the Vault connection used to resolve "vault:"
	// secret references. Optional.
	Vault *VaultConfig `yaml:"vault,omitempty" json:"vault,omitempty"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	// ListenAddr is the address to listen on, e.g. ":8080".
	ListenAddr string `yaml:"listenAddr" json:"listenAddr"`

	// MetricsPath is the path serving Prometheus metrics.
	MetricsPath string `yaml:"metricsPath,omitempty" json:"metricsPath,omitempty"`

	// RequestTimeout bounds request handling.
	RequestTimeout Duration `yaml:"requestTimeout,omitempty" json:"requestTimeout,omitempty"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout Duration `yaml:"shutdownTimeout,omitempty" json:"shutdownTimeout,omitempty"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level,omitempty" json:"level,omitempty"`

	// Format is the log format (json, console).
	Format string `yaml:"format,omitempty" json:"format,omitempty"`

	// Output is the log destination (stdout, stderr).
	Output string `yaml:"output,omitempty" json:"output,omitempty"`
}

// IdentityConfig configures the identity provider adapter.
type IdentityConfig struct {
	// ServerURL is the identity provider base URL, e.g. "https://sso.example.com".
	ServerURL string `yaml:"serverUrl" json:"serverUrl"`

	// Realm is the realm (tenant) name.
	Realm string `yaml:"realm" json:"realm"`

	// ClientID is the OAuth2 client identifier.
	ClientID string `yaml:"clientId" json:"clientId"`

	// ClientSecret is the client secret. Its presence gates administrative
	// capability: without it the adapter can only perform token operations.
	ClientSecret string `yaml:"clientSecret,omitempty" json:"clientSecret,omitempty"`

	// ClientSecretRef resolves the client secret from an external source.
	// Formats: "env:VAR_NAME" or "vault:mount/path#key". Takes precedence
	// over ClientSecret when set.
	ClientSecretRef string `yaml:"clientSecretRef,omitempty" json:"clientSecretRef,omitempty"`

	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool `yaml:"insecureSkipVerify,omitempty" json:"insecureSkipVerify,omitempty"`

	// Timeout is the per-request timeout for upstream calls.
	Timeout Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	// Breaker configures the optional upstream circuit breaker.
	Breaker *BreakerConfig `yaml:"breaker,omitempty" json:"breaker,omitempty"`
}

// BreakerConfig configures the circuit breaker on upstream identity calls.
// When the breaker is open, calls fail fast with an unavailable error
// instead of contacting the provider. There is no automatic retry.
type BreakerConfig struct {
	// Enabled turns the breaker on.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// MaxFailures is the number of consecutive failures that trips the breaker.
	MaxFailures uint32 `yaml:"maxFailures,omitempty" json:"maxFailures,omitempty"`

	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout Duration `yaml:"openTimeout,omitempty" json:"openTimeout,omitempty"`
}

// DatabaseConfig configures the database adapter. All pool parameters are
// passed through to database/sql; idbridge does not manage connections
// itself.
type DatabaseConfig struct {
	// Driver selects the dialect: "postgres" or "starrocks".
	Driver string `yaml:"driver" json:"driver"`

	// Host is the database host.
	Host string `yaml:"host" json:"host"`

	// Port is the database port.
	Port int `yaml:"port" json:"port"`

	// Database is the database name.
	Database string `yaml:"database" json:"database"`

	// User is the database user.
	User string `yaml:"user" json:"user"`

	// Password is the database password.
	Password string `yaml:"password,omitempty" json:"password,omitempty"`

	// SSLMode is the Postgres sslmode (disable, require, verify-full, ...).
	SSLMode string `yaml:"sslMode,omitempty" json:"sslMode,omitempty"`

	// Pool configures the connection pool.
	Pool PoolConfig `yaml:"pool,omitempty" json:"pool,omitempty"`
}

// PoolConfig holds connection pool parameters passed through to database/sql.
type PoolConfig struct {
	// Size is the base number of pooled connections.
	Size int `yaml:"size,omitempty" json:"size,omitempty"`

	// MaxOverflow is the number of connections allowed above Size.
	MaxOverflow int `yaml:"maxOverflow,omitempty" json:"maxOverflow,omitempty"`

	// Timeout is the connect timeout encoded into the DSN.
	Timeout Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	// RecycleInterval is the maximum connection lifetime.
	RecycleInterval Duration `yaml:"recycleInterval,omitempty" json:"recycleInterval,omitempty"`

	// PrePing verifies connectivity at construction time.
	PrePing bool `yaml:"prePing,omitempty" json:"prePing,omitempty"`

	// UseLIFO requests last-in-first-out idle connection reuse. The
	// database/sql idle list already behaves this way; the flag is
	// accepted for configuration compatibility and recorded only.
	UseLIFO bool `yaml:"useLifo,omitempty" json:"useLifo,omitempty"`
}

// CacheConfig configures the read cache backend.
type CacheConfig struct {
	// Type is the cache backend type: "memory" or "redis".
	Type string `yaml:"type,omitempty" json:"type,omitempty"`

	// Redis contains Redis-specific configuration.
	Redis *RedisConfig `yaml:"redis,omitempty" json:"redis,omitempty"`
}

// RedisConfig contains Redis cache backend configuration.
type RedisConfig struct {
	// URL is the Redis connection URL, e.g. "redis://localhost:6379/0".
	URL string `yaml:"url" json:"url"`

	// KeyPrefix is prepended to every cache key.
	KeyPrefix string `yaml:"keyPrefix,omitempty" json:"keyPrefix,omitempty"`

	// PoolSize is the maximum number of connections in the pool.
	PoolSize int `yaml:"poolSize,omitempty" json:"poolSize,omitempty"`

	// DialTimeout is the timeout for establishing connections.
	DialTimeout Duration `yaml:"dialTimeout,omitempty" json:"dialTimeout,omitempty"`
}

// VaultConfig configures the connection used to resolve "vault:"
// secret references. Token auth only; the token itself usually comes
// from the VAULT_TOKEN environment variable.
type VaultConfig struct {
	// Address is the Vault server address, e.g. "https://vault.example.com:8200".
	Address string `yaml:"address" json:"address"`

	// Token is the Vault token. Falls back to VAULT_TOKEN when empty.
	Token string `yaml:"token,omitempty" json:"token,omitempty"`

	// Namespace is the Vault namespace (Enterprise only).
	Namespace string `yaml:"namespace,omitempty" json:"namespace,omitempty"`

	// Timeout is the per-request timeout.
	Timeout Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool `yaml:"insecureSkipVerify,omitempty" json:"insecureSkipVerify,omitempty"`
}

// Cache backend type constants.
const (
	CacheTypeMemory = "memory"
	CacheTypeRedis  = "redis"
)

// Database driver constants.
const (
	DriverPostgres  = "postgres"
	DriverStarRocks = "starrocks"
)

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:      DefaultListenAddr,
			MetricsPath:     DefaultMetricsPath,
			RequestTimeout:  Duration(DefaultRequestTimeout),
			ShutdownTimeout: Duration(DefaultShutdownTimeout),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Identity: IdentityConfig{
			Timeout: Duration(DefaultIdentityTimeout),
		},
		Cache: CacheConfig{
			Type: CacheTypeMemory,
		},
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if err := c.Identity.Validate(); err != nil {
		return err
	}
	if c.Database != nil {
		if err := c.Database.Validate(); err != nil {
			return err
		}
	}
	if c.Vault != nil {
		if err := c.Vault.Validate(); err != nil {
			return err
		}
	}
	return c.Cache.Validate()
}

// Validate checks the vault configuration.
func (c *VaultConfig) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("%w: vault.address is required", ErrInvalidConfig)
	}
	return nil
}

// Validate checks the identity configuration.
func (c *IdentityConfig) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("%w: identity.serverUrl is required", ErrInvalidConfig)
	}
	u, err := url.Parse(c.ServerURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: identity.serverUrl %q is not a valid URL", ErrInvalidConfig, c.ServerURL)
	}
	if c.Realm == "" {
		return fmt.Errorf("%w: identity.realm is required", ErrInvalidConfig)
	}
	if c.ClientID == "" {
		return fmt.Errorf("%w: identity.clientId is required", ErrInvalidConfig)
	}
	return nil
}

// GetTimeout returns the effective upstream timeout.
func (c *IdentityConfig) GetTimeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultIdentityTimeout
	}
	return c.Timeout.Duration()
}

// Validate checks the database configuration.
func (c *DatabaseConfig) Validate() error {
	switch c.Driver {
	case DriverPostgres, DriverStarRocks:
	case "":
		return fmt.Errorf("%w: database.driver is required", ErrInvalidConfig)
	default:
		return fmt.Errorf("%w: database.driver %q is not supported (postgres, starrocks)",
			ErrInvalidConfig, c.Driver)
	}
	if c.Host == "" {
		return fmt.Errorf("%w: database.host is required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: database.port %d is out of range", ErrInvalidConfig, c.Port)
	}
	if c.Database == "" {
		return fmt.Errorf("%w: database.database is required", ErrInvalidConfig)
	}
	if c.User == "" {
		return fmt.Errorf("%w: database.user is required", ErrInvalidConfig)
	}
	return nil
}

// Validate checks the cache configuration.
func (c *CacheConfig) Validate() error {
	switch c.Type {
	case CacheTypeMemory, "":
	case CacheTypeRedis:
		if c.Redis == nil || c.Redis.URL == "" {
			return fmt.Errorf("%w: cache.redis.url is required for the redis backend", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: cache.type %q is not supported (memory, redis)", ErrInvalidConfig, c.Type)
	}
	return nil
}

// GetSize returns the effective base pool size.
func (p *PoolConfig) GetSize() int {
	if p.Size <= 0 {
		return DefaultPoolSize
	}
	return p.Size
}

// GetMaxOverflow returns the effective overflow allowance.
func (p *PoolConfig) GetMaxOverflow() int {
	if p.MaxOverflow < 0 {
		return 0
	}
	if p.MaxOverflow == 0 {
		return DefaultPoolMaxOverflow
	}
	return p.MaxOverflow
}

// GetTimeout returns the effective connect timeout.
func (p *PoolConfig) GetTimeout() time.Duration {
	if p.Timeout <= 0 {
		return DefaultPoolTimeout
	}
	return p.Timeout.Duration()
}

// GetRecycleInterval returns the effective maximum connection lifetime.
func (p *PoolConfig) GetRecycleInterval() time.Duration {
	if p.RecycleInterval <= 0 {
		return DefaultPoolRecycle
	}
	return p.RecycleInterval.Duration()
}

// GetMaxFailures returns the effective failure threshold.
func (b *BreakerConfig) GetMaxFailures() uint32 {
	if b == nil || b.MaxFailures == 0 {
		return DefaultBreakerMaxFailures
	}
	return b.MaxFailures
}

// GetOpenTimeout returns the effective open interval.
func (b *BreakerConfig) GetOpenTimeout() time.Duration {
	if b == nil || b.OpenTimeout <= 0 {
		return DefaultBreakerOpenTimeout
	}
	return b.OpenTimeout.Duration()
}

// IsEnabled reports whether the breaker is configured and enabled.
func (b *BreakerConfig) IsEnabled() bool {
	return b != nil && b.Enabled
}
