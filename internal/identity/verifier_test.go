package identity

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/idbridge/internal/faults"
)

type signingKeys struct {
	private jwk.Key
	public  jwk.Set
}

func newSigningKeys(t *testing.T) signingKeys {
	t.Helper()

	raw, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	private, err := jwk.FromRaw(raw)
	require.NoError(t, err)
	require.NoError(t, private.Set(jwk.KeyIDKey, "test-key"))
	require.NoError(t, private.Set(jwk.AlgorithmKey, jwa.RS256))

	public, err := private.PublicKey()
	require.NoError(t, err)

	set := jwk.NewSet()
	require.NoError(t, set.AddKey(public))

	return signingKeys{private: private, public: set}
}

func (k signingKeys) sign(t *testing.T, tok jwt.Token) string {
	t.Helper()
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256, k.private))
	require.NoError(t, err)
	return string(signed)
}

func testToken(t *testing.T, lifetime time.Duration) jwt.Token {
	t.Helper()

	now := time.Now()
	tok, err := jwt.NewBuilder().
		Subject("user-1").
		Issuer("https://idp.example.com/realms/demo").
		Audience([]string{"account"}).
		IssuedAt(now).
		Expiration(now.Add(lifetime)).
		Claim("preferred_username", "alice").
		Claim("email", "alice@example.com").
		Claim("realm_access", map[string]any{
			"roles": []any{"admin", "user"},
		}).
		Claim("resource_access", map[string]any{
			"billing": map[string]any{
				"roles": []any{"invoices:read"},
			},
		}).
		Build()
	require.NoError(t, err)
	return tok
}

func TestDecodeToken_Verified(t *testing.T) {
	keys := newSigningKeys(t)
	signed := keys.sign(t, testToken(t, time.Hour))

	claims, err := decodeToken(signed, keys.public, true)
	require.NoError(t, err)

	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "alice", claims.PreferredUsername)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, []string{"admin", "user"}, claims.RealmRoles)
	assert.Equal(t, []string{"invoices:read"}, claims.ClientRoles["billing"])
	assert.True(t, claims.HasRole("admin"))
	assert.True(t, claims.HasRole("invoices:read"))
	assert.False(t, claims.HasRole("superuser"))
}

func TestDecodeToken_Expired(t *testing.T) {
	keys := newSigningKeys(t)
	signed := keys.sign(t, testToken(t, -time.Hour))

	_, err := decodeToken(signed, keys.public, true)
	require.Error(t, err)
	assert.True(t, faults.IsKind(err, faults.KindInvalidToken))
}

func TestDecodeToken_WrongKey(t *testing.T) {
	signer := newSigningKeys(t)
	verifier := newSigningKeys(t)
	signed := signer.sign(t, testToken(t, time.Hour))

	_, err := decodeToken(signed, verifier.public, true)
	require.Error(t, err)
	assert.True(t, faults.IsKind(err, faults.KindInvalidToken))
}

func TestDecodeToken_Garbage(t *testing.T) {
	keys := newSigningKeys(t)

	_, err := decodeToken("not.a.token", keys.public, true)
	require.Error(t, err)
	assert.True(t, faults.IsKind(err, faults.KindInvalidToken))
}

func TestDecodeToken_UnverifiedSkipsLifetime(t *testing.T) {
	keys := newSigningKeys(t)
	signed := keys.sign(t, testToken(t, -time.Hour))

	claims, err := decodeToken(signed, nil, false)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
}

func TestParseJWKS_Malformed(t *testing.T) {
	_, err := parseJWKS([]byte("{not json"))
	require.Error(t, err)
	assert.True(t, faults.IsKind(err, faults.KindInternal))
}

func TestClaims_RolesDeduplicates(t *testing.T) {
	c := &Claims{
		RealmRoles: []string{"admin", "user"},
		ClientRoles: map[string][]string{
			"billing": {"admin", "invoices:read"},
		},
	}

	roles := c.Roles()
	assert.ElementsMatch(t, []string{"admin", "user", "invoices:read"}, roles)
}
