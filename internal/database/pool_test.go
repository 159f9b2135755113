package database

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/idbridge/internal/config"
	"github.com/vyrodovalexey/idbridge/internal/faults"
	"github.com/vyrodovalexey/idbridge/internal/observability"
)

func TestOpen_NilConfig(t *testing.T) {
	_, err := Open(nil, PostgresDialect{}, observability.NopLogger())
	assert.True(t, faults.IsKind(err, faults.KindInvalidArgument))
}

func TestOpen_DialectMismatch(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Driver:   config.DriverStarRocks,
		Host:     "localhost",
		Port:     9030,
		Database: "analytics",
		User:     "svc",
	}

	_, err := Open(cfg, PostgresDialect{}, observability.NopLogger())
	require.Error(t, err)
	assert.True(t, faults.IsKind(err, faults.KindInvalidArgument))
	assert.Contains(t, err.Error(), `expected "postgres" configuration`)
	assert.Contains(t, err.Error(), `got "starrocks"`)
}

func TestOpen_ConfiguresPool(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Driver:   config.DriverPostgres,
		Host:     "localhost",
		Port:     5432,
		Database: "idbridge",
		User:     "svc",
		Pool: config.PoolConfig{
			Size:        4,
			MaxOverflow: 2,
		},
	}

	// No PrePing: sql.Open is lazy, so no connection is attempted.
	p, err := Open(cfg, PostgresDialect{}, observability.NopLogger())
	require.NoError(t, err)
	defer p.Close()

	stats := p.Stats()
	assert.Equal(t, 6, stats.MaxOpenConnections)
	assert.Equal(t, "PostgreSQL", p.Dialect().Name())
}

func newMockPool(t *testing.T, opts ...func(*sqlmock.Sqlmock)) (*Pool, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	p := &Pool{
		db:      db,
		dialect: PostgresDialect{},
		logger:  observability.NopLogger(),
	}
	t.Cleanup(func() {
		_ = p.Close()
	})

	return p, mock
}

func TestPool_PingContext(t *testing.T) {
	p, mock := newMockPool(t)
	mock.ExpectPing()

	assert.NoError(t, p.PingContext(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPool_PingContext_Unavailable(t *testing.T) {
	p, mock := newMockPool(t)
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	err := p.PingContext(context.Background())
	require.Error(t, err)
	assert.True(t, faults.IsKind(err, faults.KindUnavailable))
}

func TestPool_DBPassthrough(t *testing.T) {
	p, mock := newMockPool(t)

	mock.ExpectQuery("SELECT 1").WillReturnRows(
		sqlmock.NewRows([]string{"one"}).AddRow(1))

	var one int
	require.NoError(t, p.DB().QueryRowContext(context.Background(), "SELECT 1").Scan(&one))
	assert.Equal(t, 1, one)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPool_Collector(t *testing.T) {
	p, _ := newMockPool(t)
	assert.NotNil(t, p.Collector("idbridge"))
}
