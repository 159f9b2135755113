package identity

import "time"

// TokenSet is the response of a successful token grant.
type TokenSet struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token,omitempty"`
	IDToken          string `json:"id_token,omitempty"`
	TokenType        string `json:"token_type,omitempty"`
	ExpiresIn        int64  `json:"expires_in,omitempty"`
	RefreshExpiresIn int64  `json:"refresh_expires_in,omitempty"`
	Scope            string `json:"scope,omitempty"`
	SessionState     string `json:"session_state,omitempty"`
}

// User is a realm user as exposed by the admin API.
type User struct {
	ID            string              `json:"id,omitempty"`
	Username      string              `json:"username,omitempty"`
	Email         string              `json:"email,omitempty"`
	FirstName     string              `json:"firstName,omitempty"`
	LastName      string              `json:"lastName,omitempty"`
	Enabled       *bool               `json:"enabled,omitempty"`
	EmailVerified *bool               `json:"emailVerified,omitempty"`
	Attributes    map[string][]string `json:"attributes,omitempty"`
	CreatedAt     int64               `json:"createdTimestamp,omitempty"`
}

// Role is a realm or client role.
type Role struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Composite   bool   `json:"composite,omitempty"`
	ClientRole  bool   `json:"clientRole,omitempty"`
	ContainerID string `json:"containerId,omitempty"`
}

// Client is an OAuth2 client registration.
type Client struct {
	ID       string `json:"id,omitempty"`
	ClientID string `json:"clientId,omitempty"`
	Name     string `json:"name,omitempty"`
	Enabled  bool   `json:"enabled,omitempty"`
}

// Introspection is the RFC 7662 introspection response. Only the
// fields the façade consumes are typed; Active gates everything else.
type Introspection struct {
	Active    bool   `json:"active"`
	Username  string `json:"username,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	TokenType string `json:"token_type,omitempty"`
	Subject   string `json:"sub,omitempty"`
	Scope     string `json:"scope,omitempty"`
	ExpiresAt int64  `json:"exp,omitempty"`
	IssuedAt  int64  `json:"iat,omitempty"`
}

// Claims is the decoded payload of an access token. Role sets are
// flattened from realm_access and resource_access.
type Claims struct {
	Subject           string              `json:"sub,omitempty"`
	Issuer            string              `json:"iss,omitempty"`
	Audience          []string            `json:"aud,omitempty"`
	PreferredUsername string              `json:"preferred_username,omitempty"`
	Email             string              `json:"email,omitempty"`
	ExpiresAt         time.Time           `json:"-"`
	IssuedAt          time.Time           `json:"-"`
	RealmRoles        []string            `json:"-"`
	ClientRoles       map[string][]string `json:"-"`
	Raw               map[string]any      `json:"-"`
}

// Roles returns the union of realm roles and the roles of every
// client, the set consulted by role checks.
func (c *Claims) Roles() []string {
	seen := make(map[string]struct{}, len(c.RealmRoles))
	roles := make([]string, 0, len(c.RealmRoles))
	for _, r := range c.RealmRoles {
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		roles = append(roles, r)
	}
	for _, clientRoles := range c.ClientRoles {
		for _, r := range clientRoles {
			if _, dup := seen[r]; dup {
				continue
			}
			seen[r] = struct{}{}
			roles = append(roles, r)
		}
	}
	return roles
}

// HasRole reports whether the claims carry the role in any scope.
func (c *Claims) HasRole(role string) bool {
	for _, r := range c.RealmRoles {
		if r == role {
			return true
		}
	}
	for _, clientRoles := range c.ClientRoles {
		for _, r := range clientRoles {
			if r == role {
				return true
			}
		}
	}
	return false
}

// WellKnown is the OpenID Connect discovery document. Endpoints not
// consumed by the façade are retained in Raw.
type WellKnown struct {
	Issuer                string         `json:"issuer"`
	AuthorizationEndpoint string         `json:"authorization_endpoint"`
	TokenEndpoint         string         `json:"token_endpoint"`
	UserinfoEndpoint      string         `json:"userinfo_endpoint"`
	JWKSURI               string         `json:"jwks_uri"`
	EndSessionEndpoint    string         `json:"end_session_endpoint,omitempty"`
	IntrospectionEndpoint string         `json:"introspection_endpoint,omitempty"`
	Raw                   map[string]any `json:"-"`
}

// UserQuery filters a user search.
type UserQuery struct {
	// Search matches against username, first name, last name, and email.
	Search string
	// First is the zero-based result offset.
	First int
	// Max bounds the number of results. Zero means server default.
	Max int
}

// CreateUserRequest carries the fields accepted on user creation.
type CreateUserRequest struct {
	Username      string              `json:"username"`
	Email         string              `json:"email,omitempty"`
	FirstName     string              `json:"firstName,omitempty"`
	LastName      string              `json:"lastName,omitempty"`
	Enabled       bool                `json:"enabled"`
	EmailVerified bool                `json:"emailVerified,omitempty"`
	Attributes    map[string][]string `json:"attributes,omitempty"`
	Password      string              `json:"-"`
	Temporary     bool                `json:"-"`
}

// UpdateUserRequest carries the mutable user fields. Nil fields are
// left untouched.
type UpdateUserRequest struct {
	Email         *string             `json:"email,omitempty"`
	FirstName     *string             `json:"firstName,omitempty"`
	LastName      *string             `json:"lastName,omitempty"`
	Enabled       *bool               `json:"enabled,omitempty"`
	EmailVerified *bool               `json:"emailVerified,omitempty"`
	Attributes    map[string][]string `json:"attributes,omitempty"`
}
