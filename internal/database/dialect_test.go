package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/idbridge/internal/config"
	"github.com/vyrodovalexey/idbridge/internal/faults"
)

func TestDialectFor(t *testing.T) {
	tests := []struct {
		driver   string
		wantName string
		wantErr  bool
	}{
		{driver: "postgres", wantName: "PostgreSQL"},
		{driver: "starrocks", wantName: "StarRocks"},
		{driver: "oracle", wantErr: true},
		{driver: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			d, err := DialectFor(tt.driver)
			if tt.wantErr {
				assert.True(t, faults.IsKind(err, faults.KindInvalidArgument))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, d.Name())
		})
	}
}

func TestPostgresDialect_BuildDSN(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Driver:   config.DriverPostgres,
		Host:     "db.internal",
		Port:     5432,
		Database: "idbridge",
		User:     "svc",
		Password: "pw",
		SSLMode:  "require",
		Pool:     config.PoolConfig{Timeout: config.Duration(10 * time.Second)},
	}

	dsn, err := PostgresDialect{}.BuildDSN(cfg)
	require.NoError(t, err)

	assert.Contains(t, dsn, "host=db.internal")
	assert.Contains(t, dsn, "port=5432")
	assert.Contains(t, dsn, "dbname=idbridge")
	assert.Contains(t, dsn, "user=svc")
	assert.Contains(t, dsn, "password=pw")
	assert.Contains(t, dsn, "sslmode=require")
	assert.Contains(t, dsn, "connect_timeout=10")
}

func TestPostgresDialect_BuildDSN_Defaults(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Driver:   config.DriverPostgres,
		Host:     "localhost",
		Port:     5432,
		Database: "idbridge",
		User:     "svc",
	}

	dsn, err := PostgresDialect{}.BuildDSN(cfg)
	require.NoError(t, err)

	assert.Contains(t, dsn, "sslmode=disable")
	assert.NotContains(t, dsn, "password=")
}

func TestPostgresDialect_BuildDSN_QuotesSpecials(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Driver:   config.DriverPostgres,
		Host:     "localhost",
		Port:     5432,
		Database: "idbridge",
		User:     "svc",
		Password: "p w'd",
	}

	dsn, err := PostgresDialect{}.BuildDSN(cfg)
	require.NoError(t, err)
	assert.Contains(t, dsn, `password='p w\'d'`)
}

func TestPostgresDialect_BuildDSN_MissingHost(t *testing.T) {
	_, err := PostgresDialect{}.BuildDSN(&config.DatabaseConfig{Database: "x"})
	assert.True(t, faults.IsKind(err, faults.KindInvalidArgument))
}

func TestStarRocksDialect_BuildDSN(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Driver:   config.DriverStarRocks,
		Host:     "fe.internal",
		Port:     9030,
		Database: "analytics",
		User:     "svc",
		Password: "pw",
		Pool:     config.PoolConfig{Timeout: config.Duration(5 * time.Second)},
	}

	dsn, err := StarRocksDialect{}.BuildDSN(cfg)
	require.NoError(t, err)

	assert.Contains(t, dsn, "svc:pw@tcp(fe.internal:9030)/analytics")
	assert.Contains(t, dsn, "timeout=5s")
	assert.Contains(t, dsn, "parseTime=true")
}

func TestStarRocksDialect_BuildDSN_MissingDatabase(t *testing.T) {
	_, err := StarRocksDialect{}.BuildDSN(&config.DatabaseConfig{Host: "x"})
	assert.True(t, faults.IsKind(err, faults.KindInvalidArgument))
}
