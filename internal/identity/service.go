package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/vyrodovalexey/idbridge/internal/cache"
	"github.com/vyrodovalexey/idbridge/internal/config"
	"github.com/vyrodovalexey/idbridge/internal/observability"
)

// Cache region names. Write operations invalidate regions by these
// names through the cache registry.
const (
	regionCerts           = "certs"
	regionWellKnown       = "wellknown"
	regionServiceAccount  = "svcacct"
	regionUsersByID       = "users.id"
	regionUsersByName     = "users.name"
	regionUsersByEmail    = "users.email"
	regionUserRoles       = "roles.user"
	regionClientUserRoles = "roles.client"
	regionRealmRoles      = "roles.realm"
	regionClientsByID     = "clients.id"
	regionClientSecrets   = "clients.secret"
	regionUserinfo        = "userinfo"
	regionSearch          = "search"
)

// Region TTLs and capacities. Realm-level documents are long-lived,
// user-scoped lookups are medium-lived, and token-derived lookups are
// short-lived.
const (
	ttlLong   = time.Hour
	ttlMedium = 5 * time.Minute
	ttlShort  = 30 * time.Second

	capSingleton = 1
	capUsers     = 100
	capClients   = 50
	capSearch    = 50
)

// userRegions are the regions keyed by user identity, cleared together
// on any user mutation.
var userRegions = []string{regionUsersByID, regionUsersByName, regionUsersByEmail}

// Service is the identity façade. Reads go through TTL cache regions,
// writes invalidate the affected regions by name, and all failures
// surface as faults. One context-based implementation serves both
// blocking and concurrent callers.
type Service struct {
	cfg      *config.IdentityConfig
	logger   observability.Logger
	oidc     *openidClient
	admin    *adminClient
	lease    *LeaseManager
	registry *cache.Registry

	certs        *cache.Region[json.RawMessage]
	wellKnown    *cache.Region[WellKnown]
	svcAccount   *cache.Region[string]
	usersByID    *cache.Region[User]
	usersByName  *cache.Region[User]
	usersByEmail *cache.Region[User]
	userRoles    *cache.Region[[]Role]
	clientRoles  *cache.Region[[]Role]
	realmRoles   *cache.Region[[]Role]
	clientsByID  *cache.Region[Client]
	clientSecret *cache.Region[string]
	userinfo     *cache.Region[map[string]any]
	search       *cache.Region[[]User]
}

// New constructs the façade. clientSecret is the resolved secret
// value; when empty the service runs without administrative
// capability and admin operations fail with unauthenticated faults.
func New(cfg *config.IdentityConfig, clientSecret string, registry *cache.Registry, logger observability.Logger) (*Service, error) {
	if logger == nil {
		logger = observability.NopLogger()
	}

	t := newTransport(cfg, logger)
	oidc := newOpenIDClient(t, cfg.ServerURL, cfg.Realm, cfg.ClientID, clientSecret, logger)
	lease := NewLeaseManager(oidc, clientSecret != "", logger)
	admin := newAdminClient(t, cfg.ServerURL, cfg.Realm, lease, logger)

	s := &Service{
		cfg:      cfg,
		logger:   logger,
		oidc:     oidc,
		admin:    admin,
		lease:    lease,
		registry: registry,
	}

	if err := s.buildRegions(registry); err != nil {
		return nil, err
	}

	// Cached reads were authorized under the old lease's scope, so an
	// explicit lease invalidation clears every region.
	lease.SetInvalidateHook(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := registry.InvalidateAll(ctx); err != nil {
			logger.Warn("cache invalidation after lease reset failed",
				observability.Error(err))
		}
	})

	logger.Info("identity service initialized",
		observability.String("serverUrl", cfg.ServerURL),
		observability.String("realm", cfg.Realm),
		observability.String("clientId", cfg.ClientID),
		observability.Bool("adminCapable", clientSecret != ""))

	return s, nil
}

func (s *Service) buildRegions(registry *cache.Registry) error {
	var err error

	if s.certs, err = cache.NewRegion[json.RawMessage](registry, regionCerts, capSingleton, ttlLong); err != nil {
		return err
	}
	if s.wellKnown, err = cache.NewRegion[WellKnown](registry, regionWellKnown, capSingleton, ttlLong); err != nil {
		return err
	}
	if s.svcAccount, err = cache.NewRegion[string](registry, regionServiceAccount, capSingleton, ttlLong); err != nil {
		return err
	}
	if s.usersByID, err = cache.NewRegion[User](registry, regionUsersByID, capUsers, ttlMedium); err != nil {
		return err
	}
	if s.usersByName, err = cache.NewRegion[User](registry, regionUsersByName, capUsers, ttlMedium); err != nil {
		return err
	}
	if s.usersByEmail, err = cache.NewRegion[User](registry, regionUsersByEmail, capUsers, ttlMedium); err != nil {
		return err
	}
	if s.userRoles, err = cache.NewRegion[[]Role](registry, regionUserRoles, capUsers, ttlMedium); err != nil {
		return err
	}
	if s.clientRoles, err = cache.NewRegion[[]Role](registry, regionClientUserRoles, capUsers, ttlMedium); err != nil {
		return err
	}
	if s.realmRoles, err = cache.NewRegion[[]Role](registry, regionRealmRoles, capUsers, ttlMedium); err != nil {
		return err
	}
	if s.clientsByID, err = cache.NewRegion[Client](registry, regionClientsByID, capClients, ttlLong); err != nil {
		return err
	}
	if s.clientSecret, err = cache.NewRegion[string](registry, regionClientSecrets, capClients, ttlLong); err != nil {
		return err
	}
	if s.userinfo, err = cache.NewRegion[map[string]any](registry, regionUserinfo, capUsers, ttlShort); err != nil {
		return err
	}
	if s.search, err = cache.NewRegion[[]User](registry, regionSearch, capSearch, ttlShort); err != nil {
		return err
	}

	return nil
}

// Lease exposes the credential lease manager.
func (s *Service) Lease() *LeaseManager {
	return s.lease
}

// InvalidateLease drops the admin credential lease and every cached
// read.
func (s *Service) InvalidateLease() {
	s.lease.Invalidate()
}

// invalidate clears the named regions after a successful write. Cache
// backend failures are logged, not returned: the upstream write
// already happened.
func (s *Service) invalidate(ctx context.Context, regions ...string) {
	if err := s.registry.Invalidate(ctx, regions...); err != nil {
		s.logger.Warn("cache invalidation failed",
			observability.Any("regions", regions),
			observability.Error(err))
	}
}

// tokenKey derives a fixed-size cache key from a bearer token so raw
// tokens never appear as cache keys.
func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
