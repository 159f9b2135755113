package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/vyrodovalexey/idbridge/internal/faults"
	"github.com/vyrodovalexey/idbridge/internal/observability"
)

// OAuth2 grant types used by the client.
const (
	grantPassword          = "password"
	grantClientCredentials = "client_credentials"
	grantAuthorizationCode = "authorization_code"
	grantRefreshToken      = "refresh_token"
	grantUMATicket         = "urn:ietf:params:oauth:grant-type:uma-ticket"
)

// openidClient speaks the OpenID Connect protocol endpoints of one
// realm. It performs no caching and no retries; every method is a
// single upstream round trip.
type openidClient struct {
	t            *transport
	serverURL    string
	realm        string
	clientID     string
	clientSecret string
	logger       observability.Logger
}

func newOpenIDClient(t *transport, serverURL, realm, clientID, clientSecret string, logger observability.Logger) *openidClient {
	return &openidClient{
		t:            t,
		serverURL:    strings.TrimRight(serverURL, "/"),
		realm:        realm,
		clientID:     clientID,
		clientSecret: clientSecret,
		logger:       logger,
	}
}

func (c *openidClient) realmURL(suffix string) string {
	return fmt.Sprintf("%s/realms/%s%s", c.serverURL, url.PathEscape(c.realm), suffix)
}

func (c *openidClient) tokenURL() string {
	return c.realmURL("/protocol/openid-connect/token")
}

// clientForm returns a form pre-populated with client credentials.
func (c *openidClient) clientForm() url.Values {
	form := url.Values{}
	form.Set("client_id", c.clientID)
	if c.clientSecret != "" {
		form.Set("client_secret", c.clientSecret)
	}
	return form
}

// token posts a grant to the token endpoint.
func (c *openidClient) token(ctx context.Context, op string, form url.Values) (*TokenSet, error) {
	status, body, err := c.t.postForm(ctx, op, c.tokenURL(), form, "")
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, statusFault(op, status, body, true)
	}

	var ts TokenSet
	if err := decodeJSON(op, body, &ts); err != nil {
		return nil, err
	}
	if ts.AccessToken == "" {
		return nil, faults.New(faults.KindInternal, op, "token response has no access_token")
	}
	return &ts, nil
}

// PasswordGrant exchanges resource-owner credentials for tokens.
func (c *openidClient) PasswordGrant(ctx context.Context, username, password string) (*TokenSet, error) {
	form := c.clientForm()
	form.Set("grant_type", grantPassword)
	form.Set("username", username)
	form.Set("password", password)
	return c.token(ctx, "identity.Login", form)
}

// ClientCredentialsGrant obtains a service-account token.
func (c *openidClient) ClientCredentialsGrant(ctx context.Context) (*TokenSet, error) {
	form := c.clientForm()
	form.Set("grant_type", grantClientCredentials)
	return c.token(ctx, "identity.ClientCredentialsToken", form)
}

// AuthorizationCodeGrant exchanges an authorization code for tokens.
func (c *openidClient) AuthorizationCodeGrant(ctx context.Context, code, redirectURI string) (*TokenSet, error) {
	form := c.clientForm()
	form.Set("grant_type", grantAuthorizationCode)
	form.Set("code", code)
	form.Set("redirect_uri", redirectURI)
	return c.token(ctx, "identity.TokenFromCode", form)
}

// RefreshGrant exchanges a refresh token for a fresh token set.
func (c *openidClient) RefreshGrant(ctx context.Context, refreshToken string) (*TokenSet, error) {
	form := c.clientForm()
	form.Set("grant_type", grantRefreshToken)
	form.Set("refresh_token", refreshToken)
	return c.token(ctx, "identity.RefreshToken", form)
}

// Userinfo fetches the userinfo document for a bearer token.
func (c *openidClient) Userinfo(ctx context.Context, accessToken string) (map[string]any, error) {
	const op = "identity.Userinfo"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.realmURL("/protocol/openid-connect/userinfo"), nil)
	if err != nil {
		return nil, faults.Wrap(faults.KindInternal, op, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	status, body, err := c.t.do(op, req)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, statusFault(op, status, body, true)
	}

	var info map[string]any
	if err := decodeJSON(op, body, &info); err != nil {
		return nil, err
	}
	return info, nil
}

// Introspect reports token state via RFC 7662. Requires a client secret.
func (c *openidClient) Introspect(ctx context.Context, token string) (*Introspection, error) {
	const op = "identity.IntrospectToken"

	form := c.clientForm()
	form.Set("token", token)

	status, body, err := c.t.postForm(ctx, op,
		c.realmURL("/protocol/openid-connect/token/introspect"), form, "")
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, statusFault(op, status, body, false)
	}

	var in Introspection
	if err := decodeJSON(op, body, &in); err != nil {
		return nil, err
	}
	return &in, nil
}

// Logout invalidates the session behind a refresh token.
func (c *openidClient) Logout(ctx context.Context, refreshToken string) error {
	const op = "identity.Logout"

	form := c.clientForm()
	form.Set("refresh_token", refreshToken)

	status, body, err := c.t.postForm(ctx, op,
		c.realmURL("/protocol/openid-connect/logout"), form, "")
	if err != nil {
		return err
	}
	if status != http.StatusNoContent && status != http.StatusOK {
		return statusFault(op, status, body, true)
	}
	return nil
}

// JWKS fetches the realm's signing keys as raw JSON.
func (c *openidClient) JWKS(ctx context.Context) (json.RawMessage, error) {
	const op = "identity.GetPublicKeys"

	status, body, err := c.get(ctx, op, c.realmURL("/protocol/openid-connect/certs"), "")
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, statusFault(op, status, body, false)
	}
	return json.RawMessage(body), nil
}

// WellKnown fetches the OpenID Connect discovery document.
func (c *openidClient) WellKnown(ctx context.Context) (*WellKnown, error) {
	const op = "identity.GetWellKnownConfig"

	status, body, err := c.get(ctx, op, c.realmURL("/.well-known/openid-configuration"), "")
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, statusFault(op, status, body, false)
	}

	var wk WellKnown
	if err := decodeJSON(op, body, &wk); err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err == nil {
		wk.Raw = raw
	}
	return &wk, nil
}

// CheckPermission asks the UMA grant endpoint for a decision on
// "resource#scope" under the client's audience.
func (c *openidClient) CheckPermission(ctx context.Context, accessToken, resource, scope string) (bool, error) {
	const op = "identity.CheckPermission"

	permission := resource
	if scope != "" {
		permission = resource + "#" + scope
	}

	form := url.Values{}
	form.Set("grant_type", grantUMATicket)
	form.Set("audience", c.clientID)
	form.Set("permission", permission)
	form.Set("response_mode", "decision")

	status, body, err := c.t.postForm(ctx, op, c.tokenURL(), form, accessToken)
	if err != nil {
		return false, err
	}
	// The endpoint answers 403 when the permission is denied.
	if status == http.StatusForbidden {
		return false, nil
	}
	if status != http.StatusOK {
		return false, statusFault(op, status, body, false)
	}

	var decision struct {
		Result bool `json:"result"`
	}
	if err := decodeJSON(op, body, &decision); err != nil {
		return false, err
	}
	return decision.Result, nil
}

func (c *openidClient) get(ctx context.Context, op, endpoint, bearer string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, nil, faults.Wrap(faults.KindInternal, op, err)
	}
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return c.t.do(op, req)
}
