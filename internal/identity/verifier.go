package identity

import (
	"encoding/json"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/vyrodovalexey/idbridge/internal/faults"
)

// defaultClockSkew is the leeway allowed when checking token lifetimes.
const defaultClockSkew = 10 * time.Second

// parseJWKS parses a raw JWKS document into a key set.
func parseJWKS(raw json.RawMessage) (jwk.Set, error) {
	set, err := jwk.Parse(raw)
	if err != nil {
		return nil, faults.Wrapf(faults.KindInternal, "identity.GetPublicKeys", err,
			"malformed JWKS document")
	}
	return set, nil
}

// decodeToken parses an access token. With verify set, the signature
// is checked against the key set and the standard time claims are
// validated; any rejection surfaces as an invalid-token fault.
func decodeToken(token string, keys jwk.Set, verify bool) (*Claims, error) {
	const op = "identity.DecodeToken"

	opts := []jwt.ParseOption{}
	if verify {
		opts = append(opts,
			jwt.WithKeySet(keys),
			jwt.WithValidate(true),
			jwt.WithAcceptableSkew(defaultClockSkew),
		)
	} else {
		opts = append(opts,
			jwt.WithVerify(false),
			jwt.WithValidate(false),
		)
	}

	tok, err := jwt.Parse([]byte(token), opts...)
	if err != nil {
		return nil, faults.Wrap(faults.KindInvalidToken, op, err)
	}

	return claimsFromToken(tok), nil
}

// claimsFromToken flattens a parsed token into Claims, lifting the
// realm_access and resource_access role sets.
func claimsFromToken(tok jwt.Token) *Claims {
	claims := &Claims{
		Subject:     tok.Subject(),
		Issuer:      tok.Issuer(),
		Audience:    tok.Audience(),
		ExpiresAt:   tok.Expiration(),
		IssuedAt:    tok.IssuedAt(),
		ClientRoles: make(map[string][]string),
		Raw:         tok.PrivateClaims(),
	}

	if v, ok := tok.Get("preferred_username"); ok {
		if s, ok := v.(string); ok {
			claims.PreferredUsername = s
		}
	}
	if v, ok := tok.Get("email"); ok {
		if s, ok := v.(string); ok {
			claims.Email = s
		}
	}

	if v, ok := tok.Get("realm_access"); ok {
		claims.RealmRoles = rolesFromAccessClaim(v)
	}

	if v, ok := tok.Get("resource_access"); ok {
		if byClient, ok := v.(map[string]any); ok {
			for client, access := range byClient {
				if roles := rolesFromAccessClaim(access); len(roles) > 0 {
					claims.ClientRoles[client] = roles
				}
			}
		}
	}

	return claims
}

// rolesFromAccessClaim extracts the "roles" list from a
// {realm,resource}_access claim value.
func rolesFromAccessClaim(v any) []string {
	access, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	rawRoles, ok := access["roles"].([]any)
	if !ok {
		return nil
	}

	roles := make([]string, 0, len(rawRoles))
	for _, r := range rawRoles {
		if s, ok := r.(string); ok {
			roles = append(roles, s)
		}
	}
	return roles
}
