package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/idbridge/internal/config"
	"github.com/vyrodovalexey/idbridge/internal/faults"
	"github.com/vyrodovalexey/idbridge/internal/observability"
)

func TestStatusFault(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		tokenOp bool
		want    faults.Kind
	}{
		{"not found", http.StatusNotFound, false, faults.KindNotFound},
		{"not found token op", http.StatusNotFound, true, faults.KindNotFound},
		{"bad request token op", http.StatusBadRequest, true, faults.KindInvalidToken},
		{"unauthorized token op", http.StatusUnauthorized, true, faults.KindInvalidToken},
		{"unauthorized", http.StatusUnauthorized, false, faults.KindUnauthenticated},
		{"forbidden", http.StatusForbidden, false, faults.KindUnauthenticated},
		{"bad gateway", http.StatusBadGateway, false, faults.KindUnavailable},
		{"service unavailable", http.StatusServiceUnavailable, false, faults.KindUnavailable},
		{"gateway timeout", http.StatusGatewayTimeout, false, faults.KindUnavailable},
		{"server error", http.StatusInternalServerError, false, faults.KindInternal},
		{"bad request", http.StatusBadRequest, false, faults.KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := statusFault("identity.Test", tt.status, nil, tt.tokenOp)
			require.Error(t, err)
			assert.Equal(t, tt.want, faults.KindOf(err))
		})
	}
}

func TestErrorBodyMessage(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"error description", `{"error":"invalid_grant","error_description":"Invalid user credentials"}`, "Invalid user credentials"},
		{"admin error message", `{"errorMessage":"User exists with same username"}`, "User exists with same username"},
		{"bare error", `{"error":"invalid_client"}`, "invalid_client"},
		{"plain text", "upstream exploded", "upstream exploded"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errorBodyMessage([]byte(tt.body)))
		})
	}
}

func TestErrorBodyMessage_Truncates(t *testing.T) {
	long := make([]byte, 2*maxErrorBodyBytes)
	for i := range long {
		long[i] = 'x'
	}
	assert.Len(t, errorBodyMessage(long), maxErrorBodyBytes)
}

func newTestTransport(t *testing.T, serverURL string, breaker config.BreakerConfig) *transport {
	t.Helper()
	cfg := &config.IdentityConfig{
		ServerURL: serverURL,
		Realm:     "demo",
		ClientID:  "idbridge",
		Breaker:   &breaker,
	}
	return newTransport(cfg, observability.NopLogger())
}

func TestTransport_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	tr := newTestTransport(t, srv.URL, config.BreakerConfig{
		Enabled:     true,
		MaxFailures: 3,
		OpenTimeout: config.Duration(time.Minute),
	})

	for i := 0; i < 3; i++ {
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
		require.NoError(t, err)
		status, _, doErr := tr.do("identity.Test", req)
		require.NoError(t, doErr)
		assert.Equal(t, http.StatusInternalServerError, status)
	}
	require.Equal(t, int64(3), hits.Load())

	// The breaker is now open; the upstream is not contacted.
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	_, _, doErr := tr.do("identity.Test", req)
	require.Error(t, doErr)
	assert.True(t, faults.IsKind(doErr, faults.KindUnavailable))
	assert.Equal(t, int64(3), hits.Load())
}

func TestTransport_ClientErrorsDoNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	tr := newTestTransport(t, srv.URL, config.BreakerConfig{
		Enabled:     true,
		MaxFailures: 2,
		OpenTimeout: config.Duration(time.Minute),
	})

	for i := 0; i < 5; i++ {
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
		require.NoError(t, err)
		status, _, doErr := tr.do("identity.Test", req)
		require.NoError(t, doErr)
		assert.Equal(t, http.StatusBadRequest, status)
	}
}

func TestTransport_ConnectionRefusedIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	tr := newTestTransport(t, srv.URL, config.BreakerConfig{})

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	_, _, doErr := tr.do("identity.Test", req)
	require.Error(t, doErr)
	assert.True(t, faults.IsKind(doErr, faults.KindUnavailable))
}
