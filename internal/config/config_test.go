package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validIdentity() IdentityConfig {
	return IdentityConfig{
		ServerURL: "https://sso.example.com",
		Realm:     "tenant",
		ClientID:  "idbridge",
	}
}

func TestIdentityConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*IdentityConfig)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(c *IdentityConfig) {},
		},
		{
			name:    "missing server url",
			mutate:  func(c *IdentityConfig) { c.ServerURL = "" },
			wantErr: "serverUrl",
		},
		{
			name:    "malformed server url",
			mutate:  func(c *IdentityConfig) { c.ServerURL = "not a url" },
			wantErr: "not a valid URL",
		},
		{
			name:    "missing realm",
			mutate:  func(c *IdentityConfig) { c.Realm = "" },
			wantErr: "realm",
		},
		{
			name:    "missing client id",
			mutate:  func(c *IdentityConfig) { c.ClientID = "" },
			wantErr: "clientId",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validIdentity()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDatabaseConfig_Validate(t *testing.T) {
	valid := DatabaseConfig{
		Driver:   DriverPostgres,
		Host:     "db.example.com",
		Port:     5432,
		Database: "app",
		User:     "app",
	}

	t.Run("valid", func(t *testing.T) {
		cfg := valid
		assert.NoError(t, cfg.Validate())
	})

	t.Run("unknown driver", func(t *testing.T) {
		cfg := valid
		cfg.Driver = "oracle"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "oracle")
	})

	t.Run("port out of range", func(t *testing.T) {
		cfg := valid
		cfg.Port = 70000
		assert.Error(t, cfg.Validate())
	})
}

func TestCacheConfig_Validate(t *testing.T) {
	t.Run("memory default", func(t *testing.T) {
		cfg := CacheConfig{}
		assert.NoError(t, cfg.Validate())
	})

	t.Run("redis without url", func(t *testing.T) {
		cfg := CacheConfig{Type: CacheTypeRedis}
		assert.Error(t, cfg.Validate())
	})

	t.Run("redis with url", func(t *testing.T) {
		cfg := CacheConfig{Type: CacheTypeRedis, Redis: &RedisConfig{URL: "redis://localhost:6379"}}
		assert.NoError(t, cfg.Validate())
	})
}

func TestParse(t *testing.T) {
	data := []byte(`
server:
  listenAddr: ":9090"
identity:
  serverUrl: "https://sso.example.com"
  realm: "tenant"
  clientId: "idbridge"
  clientSecret: "s3cret"
  timeout: "5s"
database:
  driver: postgres
  host: db.example.com
  port: 5432
  database: app
  user: app
  pool:
    size: 20
    maxOverflow: 10
    recycleInterval: "10m"
    prePing: true
`)

	cfg, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.ListenAddr)
	assert.Equal(t, 5*time.Second, cfg.Identity.GetTimeout())
	require.NotNil(t, cfg.Database)
	assert.Equal(t, 20, cfg.Database.Pool.GetSize())
	assert.Equal(t, 10, cfg.Database.Pool.GetMaxOverflow())
	assert.Equal(t, 10*time.Minute, cfg.Database.Pool.GetRecycleInterval())
	assert.True(t, cfg.Database.Pool.PrePing)

	// Defaults preserved for omitted sections
	assert.Equal(t, DefaultMetricsPath, cfg.Server.MetricsPath)
	assert.Equal(t, CacheTypeMemory, cfg.Cache.Type)
}

func TestParse_TypeMismatch(t *testing.T) {
	// Port must be an integer; a YAML string triggers a decode error that
	// names the expected type.
	data := []byte(`
identity:
  serverUrl: "https://sso.example.com"
  realm: "tenant"
  clientId: "idbridge"
database:
  driver: postgres
  host: db.example.com
  port: "not-a-number"
  database: app
  user: app
`)

	_, err := Parse(data)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "int")
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("{{nope"))
	assert.Error(t, err)
}

func TestDuration_Unmarshal(t *testing.T) {
	var d Duration

	require.NoError(t, d.UnmarshalJSON([]byte(`"1h30m"`)))
	assert.Equal(t, 90*time.Minute, d.Duration())

	require.NoError(t, d.UnmarshalJSON([]byte(`null`)))
	assert.Equal(t, time.Duration(0), d.Duration())

	assert.Error(t, d.UnmarshalJSON([]byte(`"eleven"`)))
}

func TestDuration_Marshal(t *testing.T) {
	d := Duration(5 * time.Second)

	b, err := d.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"5s"`, string(b))

	y, err := d.MarshalYAML()
	require.NoError(t, err)
	assert.Equal(t, "5s", y)
}

func TestBreakerConfig_Defaults(t *testing.T) {
	var b *BreakerConfig
	assert.False(t, b.IsEnabled())
	assert.Equal(t, uint32(DefaultBreakerMaxFailures), b.GetMaxFailures())
	assert.Equal(t, DefaultBreakerOpenTimeout, b.GetOpenTimeout())

	b = &BreakerConfig{Enabled: true, MaxFailures: 3, OpenTimeout: Duration(time.Minute)}
	assert.True(t, b.IsEnabled())
	assert.Equal(t, uint32(3), b.GetMaxFailures())
	assert.Equal(t, time.Minute, b.GetOpenTimeout())
}
