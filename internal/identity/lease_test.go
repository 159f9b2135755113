package identity

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/idbridge/internal/faults"
	"github.com/vyrodovalexey/idbridge/internal/observability"
)

type fakeGrantor struct {
	issued atomic.Int64
	token  string
	ttl    int64
	err    error
}

func (g *fakeGrantor) ClientCredentialsGrant(_ context.Context) (*TokenSet, error) {
	g.issued.Add(1)
	if g.err != nil {
		return nil, g.err
	}
	return &TokenSet{AccessToken: g.token, ExpiresIn: g.ttl}, nil
}

func TestLeaseManager_AcquireWithoutSecret(t *testing.T) {
	m := NewLeaseManager(&fakeGrantor{}, false, observability.NopLogger())

	_, err := m.Acquire(context.Background())
	require.Error(t, err)
	assert.True(t, faults.IsKind(err, faults.KindUnauthenticated))
}

func TestLeaseManager_AcquireIssuesOnce(t *testing.T) {
	g := &fakeGrantor{token: "tkn", ttl: 300}
	m := NewLeaseManager(g, true, observability.NopLogger())

	for i := 0; i < 3; i++ {
		token, err := m.Acquire(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "tkn", token)
	}

	assert.Equal(t, int64(1), g.issued.Load())
}

func TestLeaseManager_ExpiryMargin(t *testing.T) {
	g := &fakeGrantor{token: "tkn", ttl: 300}
	m := NewLeaseManager(g, true, observability.NopLogger())

	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	_, err := m.Acquire(context.Background())
	require.NoError(t, err)

	lease := m.Current()
	require.NotNil(t, lease)
	assert.Equal(t, now.Add(300*time.Second-leaseMargin), lease.ExpiresAt)

	// Just inside the margin the lease is already stale.
	now = now.Add(270 * time.Second)
	_, err = m.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), g.issued.Load())
}

func TestLeaseManager_RenewalFailureClearsLease(t *testing.T) {
	g := &fakeGrantor{token: "tkn", ttl: 300}
	m := NewLeaseManager(g, true, observability.NopLogger())

	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	_, err := m.Acquire(context.Background())
	require.NoError(t, err)
	require.NotNil(t, m.Current())

	now = now.Add(time.Hour)
	g.err = errors.New("connection refused")

	_, err = m.Acquire(context.Background())
	require.Error(t, err)
	assert.True(t, faults.IsKind(err, faults.KindUnavailable))
	assert.Nil(t, m.Current())
}

func TestLeaseManager_InvalidateRunsHook(t *testing.T) {
	g := &fakeGrantor{token: "tkn", ttl: 300}
	m := NewLeaseManager(g, true, observability.NopLogger())

	var hookRuns atomic.Int64
	m.SetInvalidateHook(func() { hookRuns.Add(1) })

	_, err := m.Acquire(context.Background())
	require.NoError(t, err)

	m.Invalidate()
	assert.Nil(t, m.Current())
	assert.Equal(t, int64(1), hookRuns.Load())

	// The next acquire starts a fresh issuance.
	_, err = m.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), g.issued.Load())
}

func TestLeaseManager_ConcurrentAcquire(t *testing.T) {
	g := &fakeGrantor{token: "tkn", ttl: 300}
	m := NewLeaseManager(g, true, observability.NopLogger())

	var wg sync.WaitGroup
	errs := make([]error, 8)
	tokens := make([]string, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = m.Acquire(context.Background())
		}(i)
	}
	wg.Wait()

	for i := 0; i < 8; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "tkn", tokens[i])
	}

	lease := m.Current()
	require.NotNil(t, lease)
	assert.True(t, lease.Valid(time.Now()))
}

func TestLease_Valid(t *testing.T) {
	now := time.Now()

	var nilLease *Lease
	assert.False(t, nilLease.Valid(now))

	l := &Lease{ExpiresAt: now.Add(time.Minute)}
	assert.True(t, l.Valid(now))
	assert.False(t, l.Valid(now.Add(2*time.Minute)))
}
