package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		cfg     LogConfig
		wantErr bool
	}{
		{
			name: "default config",
			cfg:  DefaultLogConfig(),
		},
		{
			name: "console format",
			cfg:  LogConfig{Level: "debug", Format: "console", Output: "stderr"},
		},
		{
			name:    "invalid level",
			cfg:     LogConfig{Level: "verbose"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, logger)
		})
	}
}

func TestLogger_With(t *testing.T) {
	logger := NopLogger()

	child := logger.With(String("component", "test"))
	require.NotNil(t, child)

	// Should not panic
	child.Debug("debug")
	child.Info("info")
	child.Warn("warn")
	child.Error("error")
}

func TestLogger_WithContext(t *testing.T) {
	logger := NopLogger()

	ctx := ContextWithRequestID(context.Background(), "req-123")
	assert.Equal(t, "req-123", RequestIDFromContext(ctx))

	child := logger.WithContext(ctx)
	require.NotNil(t, child)

	// Context without request ID returns the same logger
	same := logger.WithContext(context.Background())
	assert.Equal(t, logger, same)
}

func TestGlobalLogger(t *testing.T) {
	logger := NopLogger()
	SetGlobalLogger(logger)

	assert.Equal(t, logger, GetGlobalLogger())
	assert.Equal(t, logger, L())
}

func TestGlobalLogger_Unset(t *testing.T) {
	SetGlobalLogger(nil)

	// Falls back to a default logger
	assert.NotNil(t, GetGlobalLogger())
}
