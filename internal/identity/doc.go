// Package identity is a façade over an OpenID Connect identity
// provider with a Keycloak-style admin REST API.
//
// The package exposes one Service type covering four concerns:
//
//   - Token operations: password, client-credentials, authorization-code
//     and refresh grants, introspection, logout, and local decode and
//     verification against the realm's signing keys.
//   - Cached reads: users, roles, clients, discovery metadata and JWKS
//     documents are read through per-concern cache regions with
//     bounded TTLs.
//   - Writes: user and role management against the admin API, each
//     write dropping exactly the cache regions it can have staled.
//   - Checks: role and permission checks that fail closed, reporting
//     any failure as a plain deny.
//
// # Credential Lease
//
// Admin API calls authenticate with a client-credentials token managed
// by LeaseManager. The lease is renewed on demand shortly before the
// token expires. A failed renewal clears the lease so the next call
// attempts a fresh issuance, and an explicit lease invalidation also
// flushes every cache region, since cached reads were authorized under
// the old credentials.
//
// Example Usage:
//
//	registry, _ := cache.NewRegistry(cfg.Cache, logger)
//	svc, err := identity.New(cfg.Identity, secret, registry, logger)
//	if err != nil {
//		return err
//	}
//	tokens, err := svc.Login(ctx, username, password)
//
// # Failure Semantics
//
// Upstream failures are translated into the fault kinds of the faults
// package: unknown entities are KindNotFound (lookups convert this to
// an absent value), rejected credentials are KindUnauthenticated,
// malformed or expired tokens are KindInvalidToken, and transport or
// circuit-breaker failures are KindUnavailable.
package identity
