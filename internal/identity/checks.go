package identity

// Token-based permission checks. Every check fails closed and fails
// silent: any parse, verification, or upstream failure yields a plain
// deny, never a grant and never an error. Failures are still visible
// through the debug log and the per-check outcome metric.

import (
	"context"

	"github.com/vyrodovalexey/idbridge/internal/observability"
)

func (s *Service) checkOutcome(check string, granted bool, err error) {
	outcome := "denied"
	switch {
	case err != nil:
		outcome = "error"
	case granted:
		outcome = "granted"
	}
	GetMetrics().checksTotal.WithLabelValues(check, outcome).Inc()
}

func (s *Service) checkFailed(ctx context.Context, check string, err error) {
	s.logger.WithContext(ctx).Debug("check denied on failure",
		observability.String("check", check),
		observability.Error(err))
}

// HasRole reports whether the verified token carries the named realm
// or client role.
func (s *Service) HasRole(ctx context.Context, token, role string) bool {
	claims, err := s.DecodeToken(ctx, token, true)
	if err != nil {
		s.checkFailed(ctx, "role", err)
		s.checkOutcome("role", false, err)
		return false
	}
	granted := claims.HasRole(role)
	s.checkOutcome("role", granted, nil)
	return granted
}

// HasAnyRole reports whether the verified token carries at least one
// of the named roles.
func (s *Service) HasAnyRole(ctx context.Context, token string, roles ...string) bool {
	claims, err := s.DecodeToken(ctx, token, true)
	if err != nil {
		s.checkFailed(ctx, "any_role", err)
		s.checkOutcome("any_role", false, err)
		return false
	}
	granted := false
	for _, role := range roles {
		if claims.HasRole(role) {
			granted = true
			break
		}
	}
	s.checkOutcome("any_role", granted, nil)
	return granted
}

// HasAllRoles reports whether the verified token carries every one of
// the named roles. An empty role list grants.
func (s *Service) HasAllRoles(ctx context.Context, token string, roles ...string) bool {
	claims, err := s.DecodeToken(ctx, token, true)
	if err != nil {
		s.checkFailed(ctx, "all_roles", err)
		s.checkOutcome("all_roles", false, err)
		return false
	}
	granted := true
	for _, role := range roles {
		if !claims.HasRole(role) {
			granted = false
			break
		}
	}
	s.checkOutcome("all_roles", granted, nil)
	return granted
}

// CheckPermission asks the provider's authorization services whether
// the token holds the given scope on the given resource. A denial from
// the provider and a failure to reach it look the same to the caller.
func (s *Service) CheckPermission(ctx context.Context, token, resource, scope string) bool {
	if err := s.ValidateToken(ctx, token); err != nil {
		s.checkFailed(ctx, "permission", err)
		s.checkOutcome("permission", false, err)
		return false
	}
	granted, err := s.oidc.CheckPermission(ctx, token, resource, scope)
	if err != nil {
		s.checkFailed(ctx, "permission", err)
		s.checkOutcome("permission", false, err)
		return false
	}
	s.checkOutcome("permission", granted, nil)
	return granted
}
