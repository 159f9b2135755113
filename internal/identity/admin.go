package identity

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/vyrodovalexey/idbridge/internal/faults"
	"github.com/vyrodovalexey/idbridge/internal/observability"
)

// tokenSource supplies the bearer token for admin calls. Satisfied by
// the LeaseManager.
type tokenSource interface {
	Acquire(ctx context.Context) (string, error)
}

// adminClient speaks the Keycloak admin REST API of one realm. Every
// call acquires a fresh bearer token from the lease manager, so token
// renewal is transparent to the operations.
type adminClient struct {
	t         *transport
	serverURL string
	realm     string
	tokens    tokenSource
	logger    observability.Logger
}

func newAdminClient(t *transport, serverURL, realm string, tokens tokenSource, logger observability.Logger) *adminClient {
	return &adminClient{
		t:         t,
		serverURL: strings.TrimRight(serverURL, "/"),
		realm:     realm,
		tokens:    tokens,
		logger:    logger,
	}
}

func (c *adminClient) adminURL(suffix string) string {
	return fmt.Sprintf("%s/admin/realms/%s%s", c.serverURL, url.PathEscape(c.realm), suffix)
}

// call acquires a token and performs one admin request.
func (c *adminClient) call(ctx context.Context, op, method, suffix string, payload any) (int, []byte, error) {
	token, err := c.tokens.Acquire(ctx)
	if err != nil {
		return 0, nil, err
	}
	return c.t.doJSON(ctx, op, method, c.adminURL(suffix), token, payload)
}

// GetUserByID fetches a user. A 404 surfaces as a not-found fault; the
// façade converts it to an absent value.
func (c *adminClient) GetUserByID(ctx context.Context, id string) (*User, error) {
	const op = "identity.GetUserByID"

	status, body, err := c.call(ctx, op, http.MethodGet, "/users/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, statusFault(op, status, body, false)
	}

	var u User
	if err := decodeJSON(op, body, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// listUsers runs a /users query.
func (c *adminClient) listUsers(ctx context.Context, op string, query url.Values) ([]User, error) {
	status, body, err := c.call(ctx, op, http.MethodGet, "/users?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, statusFault(op, status, body, false)
	}

	var users []User
	if err := decodeJSON(op, body, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// GetUserByUsername resolves a user by exact username. Returns nil
// when no user matches.
func (c *adminClient) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	query := url.Values{}
	query.Set("username", username)
	query.Set("exact", "true")

	users, err := c.listUsers(ctx, "identity.GetUserByUsername", query)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}
	return &users[0], nil
}

// GetUserByEmail resolves a user by exact email. Returns nil when no
// user matches.
func (c *adminClient) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	query := url.Values{}
	query.Set("email", email)
	query.Set("exact", "true")

	users, err := c.listUsers(ctx, "identity.GetUserByEmail", query)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}
	return &users[0], nil
}

// SearchUsers runs a free-text user search.
func (c *adminClient) SearchUsers(ctx context.Context, q UserQuery) ([]User, error) {
	query := url.Values{}
	query.Set("search", q.Search)
	if q.First > 0 {
		query.Set("first", strconv.Itoa(q.First))
	}
	if q.Max > 0 {
		query.Set("max", strconv.Itoa(q.Max))
	}
	return c.listUsers(ctx, "identity.SearchUsers", query)
}

// CreateUser creates a user and returns its ID from the Location
// header. The initial password, when present, is set in a second call.
func (c *adminClient) CreateUser(ctx context.Context, req CreateUserRequest) (string, error) {
	const op = "identity.CreateUser"

	token, err := c.tokens.Acquire(ctx)
	if err != nil {
		return "", err
	}

	status, body, location, err := c.postForLocation(ctx, op, "/users", token, req)
	if err != nil {
		return "", err
	}
	if status != http.StatusCreated {
		return "", statusFault(op, status, body, false)
	}

	id := location[strings.LastIndex(location, "/")+1:]
	if id == "" {
		return "", faults.New(faults.KindInternal, op, "created user has no Location header")
	}

	if req.Password != "" {
		if err := c.ResetPassword(ctx, id, req.Password, req.Temporary); err != nil {
			return "", err
		}
	}
	return id, nil
}

// postForLocation posts JSON and captures the Location header, which
// the plain transport helpers discard.
func (c *adminClient) postForLocation(ctx context.Context, op, suffix, token string, payload any) (int, []byte, string, error) {
	req, err := newJSONRequest(ctx, op, http.MethodPost, c.adminURL(suffix), token, payload)
	if err != nil {
		return 0, nil, "", err
	}

	resp, err := c.t.roundTrip(req)
	if err != nil && resp == nil {
		return 0, nil, "", c.t.translateTransportError(op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, readErr := readAllBody(resp)
	if readErr != nil {
		return 0, nil, "", faults.Wrap(faults.KindUnavailable, op, readErr)
	}

	return resp.StatusCode, body, resp.Header.Get("Location"), nil
}

// UpdateUser applies a partial user update.
func (c *adminClient) UpdateUser(ctx context.Context, id string, req UpdateUserRequest) error {
	const op = "identity.UpdateUser"

	status, body, err := c.call(ctx, op, http.MethodPut, "/users/"+url.PathEscape(id), req)
	if err != nil {
		return err
	}
	if status != http.StatusNoContent {
		return statusFault(op, status, body, false)
	}
	return nil
}

// DeleteUser removes a user.
func (c *adminClient) DeleteUser(ctx context.Context, id string) error {
	const op = "identity.DeleteUser"

	status, body, err := c.call(ctx, op, http.MethodDelete, "/users/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	if status != http.StatusNoContent {
		return statusFault(op, status, body, false)
	}
	return nil
}

// ResetPassword sets a user's password.
func (c *adminClient) ResetPassword(ctx context.Context, id, password string, temporary bool) error {
	const op = "identity.ResetPassword"

	credential := map[string]any{
		"type":      "password",
		"value":     password,
		"temporary": temporary,
	}

	status, body, err := c.call(ctx, op, http.MethodPut,
		"/users/"+url.PathEscape(id)+"/reset-password", credential)
	if err != nil {
		return err
	}
	if status != http.StatusNoContent {
		return statusFault(op, status, body, false)
	}
	return nil
}

// ClearUserSessions logs out every session of a user.
func (c *adminClient) ClearUserSessions(ctx context.Context, id string) error {
	const op = "identity.ClearUserSessions"

	status, body, err := c.call(ctx, op, http.MethodPost,
		"/users/"+url.PathEscape(id)+"/logout", nil)
	if err != nil {
		return err
	}
	if status != http.StatusNoContent {
		return statusFault(op, status, body, false)
	}
	return nil
}

// GetRealmRoles lists all realm roles.
func (c *adminClient) GetRealmRoles(ctx context.Context) ([]Role, error) {
	const op = "identity.GetRealmRoles"

	status, body, err := c.call(ctx, op, http.MethodGet, "/roles", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, statusFault(op, status, body, false)
	}

	var roles []Role
	if err := decodeJSON(op, body, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

// GetRealmRole fetches one realm role by name.
func (c *adminClient) GetRealmRole(ctx context.Context, name string) (*Role, error) {
	const op = "identity.GetRealmRole"

	status, body, err := c.call(ctx, op, http.MethodGet, "/roles/"+url.PathEscape(name), nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, statusFault(op, status, body, false)
	}

	var role Role
	if err := decodeJSON(op, body, &role); err != nil {
		return nil, err
	}
	return &role, nil
}

// CreateRealmRole creates a realm role.
func (c *adminClient) CreateRealmRole(ctx context.Context, role Role) error {
	const op = "identity.CreateRealmRole"

	status, body, err := c.call(ctx, op, http.MethodPost, "/roles", role)
	if err != nil {
		return err
	}
	if status != http.StatusCreated {
		return statusFault(op, status, body, false)
	}
	return nil
}

// DeleteRealmRole removes a realm role by name.
func (c *adminClient) DeleteRealmRole(ctx context.Context, name string) error {
	const op = "identity.DeleteRealmRole"

	status, body, err := c.call(ctx, op, http.MethodDelete, "/roles/"+url.PathEscape(name), nil)
	if err != nil {
		return err
	}
	if status != http.StatusNoContent {
		return statusFault(op, status, body, false)
	}
	return nil
}

// GetUserRealmRoles lists the realm roles mapped to a user.
func (c *adminClient) GetUserRealmRoles(ctx context.Context, userID string) ([]Role, error) {
	const op = "identity.GetUserRoles"

	status, body, err := c.call(ctx, op, http.MethodGet,
		"/users/"+url.PathEscape(userID)+"/role-mappings/realm", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, statusFault(op, status, body, false)
	}

	var roles []Role
	if err := decodeJSON(op, body, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

// mapRealmRole adds or removes a realm role mapping on a user.
func (c *adminClient) mapRealmRole(ctx context.Context, op, method, userID string, role Role) error {
	status, body, err := c.call(ctx, op, method,
		"/users/"+url.PathEscape(userID)+"/role-mappings/realm", []Role{role})
	if err != nil {
		return err
	}
	if status != http.StatusNoContent {
		return statusFault(op, status, body, false)
	}
	return nil
}

// AssignRealmRole maps a realm role onto a user.
func (c *adminClient) AssignRealmRole(ctx context.Context, userID string, role Role) error {
	return c.mapRealmRole(ctx, "identity.AssignRealmRole", http.MethodPost, userID, role)
}

// RemoveRealmRole removes a realm role mapping from a user.
func (c *adminClient) RemoveRealmRole(ctx context.Context, userID string, role Role) error {
	return c.mapRealmRole(ctx, "identity.RemoveRealmRole", http.MethodDelete, userID, role)
}

// GetClientByClientID resolves a client registration by its clientId.
// Returns nil when no client matches.
func (c *adminClient) GetClientByClientID(ctx context.Context, clientID string) (*Client, error) {
	const op = "identity.GetClientID"

	query := url.Values{}
	query.Set("clientId", clientID)

	status, body, err := c.call(ctx, op, http.MethodGet, "/clients?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, statusFault(op, status, body, false)
	}

	var clients []Client
	if err := decodeJSON(op, body, &clients); err != nil {
		return nil, err
	}
	if len(clients) == 0 {
		return nil, nil
	}
	return &clients[0], nil
}

// GetClientSecret fetches the secret of a client by its internal ID.
func (c *adminClient) GetClientSecret(ctx context.Context, clientUUID string) (string, error) {
	const op = "identity.GetClientSecret"

	status, body, err := c.call(ctx, op, http.MethodGet,
		"/clients/"+url.PathEscape(clientUUID)+"/client-secret", nil)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", statusFault(op, status, body, false)
	}

	var secret struct {
		Value string `json:"value"`
	}
	if err := decodeJSON(op, body, &secret); err != nil {
		return "", err
	}
	return secret.Value, nil
}

// GetClientRole fetches one role of a client by name.
func (c *adminClient) GetClientRole(ctx context.Context, clientUUID, name string) (*Role, error) {
	const op = "identity.GetClientRole"

	status, body, err := c.call(ctx, op, http.MethodGet,
		"/clients/"+url.PathEscape(clientUUID)+"/roles/"+url.PathEscape(name), nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, statusFault(op, status, body, false)
	}

	var role Role
	if err := decodeJSON(op, body, &role); err != nil {
		return nil, err
	}
	return &role, nil
}

// GetClientRolesForUser lists the roles of one client mapped to a user.
func (c *adminClient) GetClientRolesForUser(ctx context.Context, userID, clientUUID string) ([]Role, error) {
	const op = "identity.GetClientRolesForUser"

	status, body, err := c.call(ctx, op, http.MethodGet,
		"/users/"+url.PathEscape(userID)+"/role-mappings/clients/"+url.PathEscape(clientUUID), nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, statusFault(op, status, body, false)
	}

	var roles []Role
	if err := decodeJSON(op, body, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

// mapClientRole adds or removes a client role mapping on a user.
func (c *adminClient) mapClientRole(ctx context.Context, op, method, userID, clientUUID string, role Role) error {
	status, body, err := c.call(ctx, op, method,
		"/users/"+url.PathEscape(userID)+"/role-mappings/clients/"+url.PathEscape(clientUUID), []Role{role})
	if err != nil {
		return err
	}
	if status != http.StatusNoContent {
		return statusFault(op, status, body, false)
	}
	return nil
}

// AssignClientRole maps a client role onto a user.
func (c *adminClient) AssignClientRole(ctx context.Context, userID, clientUUID string, role Role) error {
	return c.mapClientRole(ctx, "identity.AssignClientRole", http.MethodPost, userID, clientUUID, role)
}

// RemoveClientRole removes a client role mapping from a user.
func (c *adminClient) RemoveClientRole(ctx context.Context, userID, clientUUID string, role Role) error {
	return c.mapClientRole(ctx, "identity.RemoveClientRole", http.MethodDelete, userID, clientUUID, role)
}

// GetServiceAccountUser fetches the service-account user of a client.
func (c *adminClient) GetServiceAccountUser(ctx context.Context, clientUUID string) (*User, error) {
	const op = "identity.GetServiceAccountID"

	status, body, err := c.call(ctx, op, http.MethodGet,
		"/clients/"+url.PathEscape(clientUUID)+"/service-account-user", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, statusFault(op, status, body, false)
	}

	var u User
	if err := decodeJSON(op, body, &u); err != nil {
		return nil, err
	}
	return &u, nil
}
