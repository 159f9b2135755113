package identity

import (
	"context"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

// Login exchanges a username and password for a token set.
func (s *Service) Login(ctx context.Context, username, password string) (_ *TokenSet, err error) {
	start := time.Now()
	defer func() { GetMetrics().observe("Login", start, err) }()

	return s.oidc.PasswordGrant(ctx, username, password)
}

// TokenFromCode redeems an authorization code for a token set.
func (s *Service) TokenFromCode(ctx context.Context, code, redirectURI string) (_ *TokenSet, err error) {
	start := time.Now()
	defer func() { GetMetrics().observe("TokenFromCode", start, err) }()

	return s.oidc.AuthorizationCodeGrant(ctx, code, redirectURI)
}

// ClientCredentialsToken issues a token set for the configured client
// itself.
func (s *Service) ClientCredentialsToken(ctx context.Context) (_ *TokenSet, err error) {
	start := time.Now()
	defer func() { GetMetrics().observe("ClientCredentialsToken", start, err) }()

	return s.oidc.ClientCredentialsGrant(ctx)
}

// RefreshToken exchanges a refresh token for a fresh token set.
func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (_ *TokenSet, err error) {
	start := time.Now()
	defer func() { GetMetrics().observe("RefreshToken", start, err) }()

	return s.oidc.RefreshGrant(ctx, refreshToken)
}

// IntrospectToken asks the provider whether the token is active and
// returns the full introspection document.
func (s *Service) IntrospectToken(ctx context.Context, token string) (_ *Introspection, err error) {
	start := time.Now()
	defer func() { GetMetrics().observe("IntrospectToken", start, err) }()

	return s.oidc.Introspect(ctx, token)
}

// Logout revokes the session behind the refresh token.
func (s *Service) Logout(ctx context.Context, refreshToken string) (err error) {
	start := time.Now()
	defer func() { GetMetrics().observe("Logout", start, err) }()

	return s.oidc.Logout(ctx, refreshToken)
}

// DecodeToken parses a token locally. With verify set, the signature
// is checked against the realm's cached signing keys and standard
// time claims are enforced. Without it, the claims are extracted as-is
// for callers that only need a peek at an already-trusted token.
func (s *Service) DecodeToken(ctx context.Context, token string, verify bool) (_ *Claims, err error) {
	start := time.Now()
	defer func() { GetMetrics().observe("DecodeToken", start, err) }()

	var keys jwk.Set
	if verify {
		keys, err = s.GetPublicKeys(ctx)
		if err != nil {
			return nil, err
		}
	}
	return decodeToken(token, keys, verify)
}

// ValidateToken verifies the token signature and time claims against
// the realm's signing keys.
func (s *Service) ValidateToken(ctx context.Context, token string) error {
	_, err := s.DecodeToken(ctx, token, true)
	return err
}
