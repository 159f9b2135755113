package identity

import (
	"context"
	"sync"
	"time"

	"github.com/vyrodovalexey/idbridge/internal/faults"
	"github.com/vyrodovalexey/idbridge/internal/observability"
)

// leaseMargin is subtracted from the reported token lifetime so that a
// lease expires before the provider rejects the token.
const leaseMargin = 30 * time.Second

// Lease is one validity window of the service-account token.
type Lease struct {
	AccessToken string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// Valid reports whether the lease covers the given instant.
func (l *Lease) Valid(now time.Time) bool {
	return l != nil && now.Before(l.ExpiresAt)
}

// credentialGrantor issues service-account tokens. Satisfied by the
// openidClient.
type credentialGrantor interface {
	ClientCredentialsGrant(ctx context.Context) (*TokenSet, error)
}

// LeaseManager holds the admin credential lease and renews it
// synchronously on demand. A failed renewal clears the lease, so the
// next Acquire starts a fresh issuance. Concurrent renewals are
// tolerated: each succeeds or fails on its own and the last writer
// wins, which costs at most one redundant issuance.
type LeaseManager struct {
	grantor   credentialGrantor
	hasSecret bool
	logger    observability.Logger
	now       func() time.Time

	mu    sync.Mutex
	lease *Lease

	// onInvalidate runs after an explicit invalidation. The façade
	// hooks cached-read invalidation here because cached reads were
	// authorized under the dropped lease's scope.
	onInvalidate func()
}

// NewLeaseManager creates a lease manager. hasSecret gates
// administrative capability: without a configured client secret every
// Acquire fails with an unauthenticated fault.
func NewLeaseManager(grantor credentialGrantor, hasSecret bool, logger observability.Logger) *LeaseManager {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &LeaseManager{
		grantor:   grantor,
		hasSecret: hasSecret,
		logger:    logger,
		now:       time.Now,
	}
}

// SetInvalidateHook registers the callback run on Invalidate.
func (m *LeaseManager) SetInvalidateHook(f func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onInvalidate = f
}

// Acquire returns a currently valid access token, renewing first when
// the lease is missing or expired.
func (m *LeaseManager) Acquire(ctx context.Context) (string, error) {
	const op = "identity.Lease"

	if !m.hasSecret {
		return "", faults.New(faults.KindUnauthenticated, op,
			"client secret is not configured, administrative operations are unavailable")
	}

	m.mu.Lock()
	if m.lease.Valid(m.now()) {
		token := m.lease.AccessToken
		m.mu.Unlock()
		return token, nil
	}
	m.mu.Unlock()

	return m.renew(ctx)
}

// renew issues a fresh token outside the lock so that a slow provider
// does not serialize unrelated callers.
func (m *LeaseManager) renew(ctx context.Context) (string, error) {
	const op = "identity.Lease"

	issued := m.now()
	ts, err := m.grantor.ClientCredentialsGrant(ctx)
	if err != nil {
		m.mu.Lock()
		m.lease = nil
		m.mu.Unlock()
		m.logger.Warn("credential lease renewal failed",
			observability.Error(err))
		GetMetrics().leaseRenewals.WithLabelValues("error").Inc()
		return "", faults.Wrapf(faults.KindUnavailable, op, err, "credential renewal failed")
	}

	lease := &Lease{
		AccessToken: ts.AccessToken,
		IssuedAt:    issued,
		ExpiresAt:   issued.Add(time.Duration(ts.ExpiresIn)*time.Second - leaseMargin),
	}

	m.mu.Lock()
	m.lease = lease
	m.mu.Unlock()

	m.logger.Debug("credential lease renewed",
		observability.Time("expiresAt", lease.ExpiresAt))
	GetMetrics().leaseRenewals.WithLabelValues("success").Inc()

	return lease.AccessToken, nil
}

// Invalidate drops the lease and runs the invalidation hook.
func (m *LeaseManager) Invalidate() {
	m.mu.Lock()
	m.lease = nil
	hook := m.onInvalidate
	m.mu.Unlock()

	m.logger.Info("credential lease invalidated")

	if hook != nil {
		hook()
	}
}

// Current returns the current lease, or nil when none is held.
func (m *LeaseManager) Current() *Lease {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lease == nil {
		return nil
	}
	leaseCopy := *m.lease
	return &leaseCopy
}
