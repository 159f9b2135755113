package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"

	"github.com/vyrodovalexey/idbridge/internal/cache"
	"github.com/vyrodovalexey/idbridge/internal/faults"
)

// GetPublicKeys returns the realm's signing keys, cached for an hour.
func (s *Service) GetPublicKeys(ctx context.Context) (_ jwk.Set, err error) {
	start := time.Now()
	defer func() { GetMetrics().observe("GetPublicKeys", start, err) }()

	raw, found, err := s.certs.GetOrCompute(ctx, "jwks", func(ctx context.Context) (json.RawMessage, bool, error) {
		doc, err := s.oidc.JWKS(ctx)
		if err != nil {
			return nil, false, err
		}
		return doc, true, nil
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, faults.New(faults.KindInternal, "identity.GetPublicKeys", "JWKS document missing")
	}
	return parseJWKS(raw)
}

// GetWellKnownConfig returns the OpenID Connect discovery document,
// cached for an hour.
func (s *Service) GetWellKnownConfig(ctx context.Context) (_ *WellKnown, err error) {
	start := time.Now()
	defer func() { GetMetrics().observe("GetWellKnownConfig", start, err) }()

	wk, found, err := s.wellKnown.GetOrCompute(ctx, "config", func(ctx context.Context) (WellKnown, bool, error) {
		doc, err := s.oidc.WellKnown(ctx)
		if err != nil {
			return WellKnown{}, false, err
		}
		return *doc, true, nil
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, faults.New(faults.KindInternal, "identity.GetWellKnownConfig", "discovery document missing")
	}
	return &wk, nil
}

// GetClientID resolves the configured client's internal ID.
func (s *Service) GetClientID(ctx context.Context) (_ string, err error) {
	start := time.Now()
	defer func() { GetMetrics().observe("GetClientID", start, err) }()

	client, found, err := s.clientsByID.GetOrCompute(ctx, s.cfg.ClientID, func(ctx context.Context) (Client, bool, error) {
		c, err := s.admin.GetClientByClientID(ctx, s.cfg.ClientID)
		if err != nil {
			return Client{}, false, err
		}
		if c == nil {
			return Client{}, false, nil
		}
		return *c, true, nil
	})
	if err != nil {
		return "", err
	}
	if !found {
		return "", faults.New(faults.KindNotFound, "identity.GetClientID",
			fmt.Sprintf("client %q is not registered in realm %q", s.cfg.ClientID, s.cfg.Realm))
	}
	return client.ID, nil
}

// GetClientSecret fetches the configured client's secret from the
// provider, cached for an hour.
func (s *Service) GetClientSecret(ctx context.Context) (_ string, err error) {
	start := time.Now()
	defer func() { GetMetrics().observe("GetClientSecret", start, err) }()

	clientUUID, err := s.GetClientID(ctx)
	if err != nil {
		return "", err
	}

	secret, found, err := s.clientSecret.GetOrCompute(ctx, s.cfg.ClientID, func(ctx context.Context) (string, bool, error) {
		value, err := s.admin.GetClientSecret(ctx, clientUUID)
		if err != nil {
			return "", false, err
		}
		return value, true, nil
	})
	if err != nil {
		return "", err
	}
	if !found {
		return "", faults.New(faults.KindNotFound, "identity.GetClientSecret", "client has no secret")
	}
	return secret, nil
}

// GetServiceAccountID resolves the user ID of the configured client's
// service account, cached for an hour.
func (s *Service) GetServiceAccountID(ctx context.Context) (_ string, err error) {
	start := time.Now()
	defer func() { GetMetrics().observe("GetServiceAccountID", start, err) }()

	id, found, err := s.svcAccount.GetOrCompute(ctx, s.cfg.ClientID, func(ctx context.Context) (string, bool, error) {
		clientUUID, err := s.GetClientID(ctx)
		if err != nil {
			return "", false, err
		}
		u, err := s.admin.GetServiceAccountUser(ctx, clientUUID)
		if err != nil {
			return "", false, err
		}
		return u.ID, true, nil
	})
	if err != nil {
		return "", err
	}
	if !found {
		return "", faults.New(faults.KindNotFound, "identity.GetServiceAccountID", "service account user missing")
	}
	return id, nil
}

// absentOnNotFound converts a not-found fault into a cacheable absence.
func absentOnNotFound[V any](v *V, err error) (V, bool, error) {
	var zero V
	if err != nil {
		if faults.IsKind(err, faults.KindNotFound) {
			return zero, false, nil
		}
		return zero, false, err
	}
	if v == nil {
		return zero, false, nil
	}
	return *v, true, nil
}

// GetUserByID looks up a user by ID. An unknown ID returns (nil, nil)
// and the absence itself is cached.
func (s *Service) GetUserByID(ctx context.Context, id string) (_ *User, err error) {
	start := time.Now()
	defer func() { GetMetrics().observe("GetUserByID", start, err) }()

	user, found, err := s.usersByID.GetOrCompute(ctx, id, func(ctx context.Context) (User, bool, error) {
		return absentOnNotFound(s.admin.GetUserByID(ctx, id))
	})
	if err != nil || !found {
		return nil, err
	}
	return &user, nil
}

// GetUserByUsername looks up a user by exact username. An unknown
// username returns (nil, nil) and the absence is cached.
func (s *Service) GetUserByUsername(ctx context.Context, username string) (_ *User, err error) {
	start := time.Now()
	defer func() { GetMetrics().observe("GetUserByUsername", start, err) }()

	user, found, err := s.usersByName.GetOrCompute(ctx, username, func(ctx context.Context) (User, bool, error) {
		return absentOnNotFound(s.admin.GetUserByUsername(ctx, username))
	})
	if err != nil || !found {
		return nil, err
	}
	return &user, nil
}

// GetUserByEmail looks up a user by exact email. An unknown email
// returns (nil, nil) and the absence is cached.
func (s *Service) GetUserByEmail(ctx context.Context, email string) (_ *User, err error) {
	start := time.Now()
	defer func() { GetMetrics().observe("GetUserByEmail", start, err) }()

	user, found, err := s.usersByEmail.GetOrCompute(ctx, email, func(ctx context.Context) (User, bool, error) {
		return absentOnNotFound(s.admin.GetUserByEmail(ctx, email))
	})
	if err != nil || !found {
		return nil, err
	}
	return &user, nil
}

// GetUserRoles lists the realm roles mapped to a user, cached for five
// minutes.
func (s *Service) GetUserRoles(ctx context.Context, userID string) (_ []Role, err error) {
	start := time.Now()
	defer func() { GetMetrics().observe("GetUserRoles", start, err) }()

	roles, _, err := s.userRoles.GetOrCompute(ctx, userID, func(ctx context.Context) ([]Role, bool, error) {
		r, err := s.admin.GetUserRealmRoles(ctx, userID)
		if err != nil {
			return nil, false, err
		}
		return r, true, nil
	})
	if err != nil {
		return nil, err
	}
	return roles, nil
}

// GetClientRolesForUser lists the configured client's roles mapped to
// a user, cached for five minutes.
func (s *Service) GetClientRolesForUser(ctx context.Context, userID string) (_ []Role, err error) {
	start := time.Now()
	defer func() { GetMetrics().observe("GetClientRolesForUser", start, err) }()

	roles, _, err := s.clientRoles.GetOrCompute(ctx, userID, func(ctx context.Context) ([]Role, bool, error) {
		clientUUID, err := s.GetClientID(ctx)
		if err != nil {
			return nil, false, err
		}
		r, err := s.admin.GetClientRolesForUser(ctx, userID, clientUUID)
		if err != nil {
			return nil, false, err
		}
		return r, true, nil
	})
	if err != nil {
		return nil, err
	}
	return roles, nil
}

// GetRealmRoles lists all realm roles, cached for five minutes.
func (s *Service) GetRealmRoles(ctx context.Context) (_ []Role, err error) {
	start := time.Now()
	defer func() { GetMetrics().observe("GetRealmRoles", start, err) }()

	roles, _, err := s.realmRoles.GetOrCompute(ctx, "all", func(ctx context.Context) ([]Role, bool, error) {
		r, err := s.admin.GetRealmRoles(ctx)
		if err != nil {
			return nil, false, err
		}
		return r, true, nil
	})
	if err != nil {
		return nil, err
	}
	return roles, nil
}

// GetRealmRole resolves one realm role by name from the cached role
// list. An unknown role returns (nil, nil).
func (s *Service) GetRealmRole(ctx context.Context, name string) (*Role, error) {
	roles, err := s.GetRealmRoles(ctx)
	if err != nil {
		return nil, err
	}
	for i := range roles {
		if roles[i].Name == name {
			return &roles[i], nil
		}
	}
	return nil, nil
}

// SearchUsers runs a free-text user search, cached for thirty seconds.
func (s *Service) SearchUsers(ctx context.Context, q UserQuery) (_ []User, err error) {
	start := time.Now()
	defer func() { GetMetrics().observe("SearchUsers", start, err) }()

	key := cache.Key(q.Search, strconv.Itoa(q.First), strconv.Itoa(q.Max))

	users, _, err := s.search.GetOrCompute(ctx, key, func(ctx context.Context) ([]User, bool, error) {
		u, err := s.admin.SearchUsers(ctx, q)
		if err != nil {
			return nil, false, err
		}
		return u, true, nil
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

// Userinfo verifies the token signature and returns the provider's
// userinfo document, cached for thirty seconds per token.
func (s *Service) Userinfo(ctx context.Context, accessToken string) (_ map[string]any, err error) {
	start := time.Now()
	defer func() { GetMetrics().observe("Userinfo", start, err) }()

	if err := s.ValidateToken(ctx, accessToken); err != nil {
		return nil, err
	}

	info, found, err := s.userinfo.GetOrCompute(ctx, tokenKey(accessToken), func(ctx context.Context) (map[string]any, bool, error) {
		doc, err := s.oidc.Userinfo(ctx, accessToken)
		if err != nil {
			return nil, false, err
		}
		return doc, true, nil
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, faults.New(faults.KindInternal, "identity.Userinfo", "userinfo document missing")
	}
	return info, nil
}
