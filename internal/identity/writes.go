package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/vyrodovalexey/idbridge/internal/faults"
)

// CreateUser provisions a new user and returns its ID. When the
// request carries a password, the credential is set in a follow-up
// call. Stale user and search entries are dropped.
func (s *Service) CreateUser(ctx context.Context, req CreateUserRequest) (_ string, err error) {
	start := time.Now()
	defer func() { GetMetrics().observe("CreateUser", start, err) }()

	id, err := s.admin.CreateUser(ctx, req)
	if err != nil {
		return "", err
	}
	s.invalidate(ctx, append(userRegions, regionSearch)...)
	return id, nil
}

// UpdateUser applies a partial update to an existing user.
func (s *Service) UpdateUser(ctx context.Context, id string, req UpdateUserRequest) (err error) {
	start := time.Now()
	defer func() { GetMetrics().observe("UpdateUser", start, err) }()

	if err := s.admin.UpdateUser(ctx, id, req); err != nil {
		return err
	}
	s.invalidate(ctx, append(userRegions, regionSearch, regionUserinfo)...)
	return nil
}

// DeleteUser removes a user and every cached view that may still
// reference it.
func (s *Service) DeleteUser(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { GetMetrics().observe("DeleteUser", start, err) }()

	if err := s.admin.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, append(userRegions,
		regionSearch, regionUserinfo, regionUserRoles, regionClientUserRoles)...)
	return nil
}

// ResetPassword sets a new password for the user. Cached entries are
// untouched because no cached view includes credentials.
func (s *Service) ResetPassword(ctx context.Context, id, password string, temporary bool) (err error) {
	start := time.Now()
	defer func() { GetMetrics().observe("ResetPassword", start, err) }()

	return s.admin.ResetPassword(ctx, id, password, temporary)
}

// ClearUserSessions forcibly terminates all of the user's sessions.
func (s *Service) ClearUserSessions(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { GetMetrics().observe("ClearUserSessions", start, err) }()

	return s.admin.ClearUserSessions(ctx, id)
}

// realmRole resolves a realm role by name, failing with a not-found
// fault when the role does not exist.
func (s *Service) realmRole(ctx context.Context, op, name string) (Role, error) {
	role, err := s.GetRealmRole(ctx, name)
	if err != nil {
		return Role{}, err
	}
	if role == nil {
		return Role{}, faults.New(faults.KindNotFound, op,
			fmt.Sprintf("realm role %q does not exist", name))
	}
	return *role, nil
}

// AssignRealmRole maps the named realm role onto the user.
func (s *Service) AssignRealmRole(ctx context.Context, userID, roleName string) (err error) {
	start := time.Now()
	defer func() { GetMetrics().observe("AssignRealmRole", start, err) }()

	role, err := s.realmRole(ctx, "identity.AssignRealmRole", roleName)
	if err != nil {
		return err
	}
	if err := s.admin.AssignRealmRole(ctx, userID, role); err != nil {
		return err
	}
	s.invalidate(ctx, regionUserRoles)
	return nil
}

// RemoveRealmRole unmaps the named realm role from the user.
func (s *Service) RemoveRealmRole(ctx context.Context, userID, roleName string) (err error) {
	start := time.Now()
	defer func() { GetMetrics().observe("RemoveRealmRole", start, err) }()

	role, err := s.realmRole(ctx, "identity.RemoveRealmRole", roleName)
	if err != nil {
		return err
	}
	if err := s.admin.RemoveRealmRole(ctx, userID, role); err != nil {
		return err
	}
	s.invalidate(ctx, regionUserRoles)
	return nil
}

// clientRole resolves one of the configured client's roles by name.
// An unknown role surfaces as the admin API's not-found fault.
func (s *Service) clientRole(ctx context.Context, name string) (string, Role, error) {
	clientUUID, err := s.GetClientID(ctx)
	if err != nil {
		return "", Role{}, err
	}
	role, err := s.admin.GetClientRole(ctx, clientUUID, name)
	if err != nil {
		return "", Role{}, err
	}
	return clientUUID, *role, nil
}

// AssignClientRole maps one of the configured client's roles onto the
// user.
func (s *Service) AssignClientRole(ctx context.Context, userID, roleName string) (err error) {
	start := time.Now()
	defer func() { GetMetrics().observe("AssignClientRole", start, err) }()

	clientUUID, role, err := s.clientRole(ctx, roleName)
	if err != nil {
		return err
	}
	if err := s.admin.AssignClientRole(ctx, userID, clientUUID, role); err != nil {
		return err
	}
	s.invalidate(ctx, regionClientUserRoles)
	return nil
}

// RemoveClientRole unmaps one of the configured client's roles from
// the user.
func (s *Service) RemoveClientRole(ctx context.Context, userID, roleName string) (err error) {
	start := time.Now()
	defer func() { GetMetrics().observe("RemoveClientRole", start, err) }()

	clientUUID, role, err := s.clientRole(ctx, roleName)
	if err != nil {
		return err
	}
	if err := s.admin.RemoveClientRole(ctx, userID, clientUUID, role); err != nil {
		return err
	}
	s.invalidate(ctx, regionClientUserRoles)
	return nil
}

// CreateRealmRole creates a new realm role.
func (s *Service) CreateRealmRole(ctx context.Context, name, description string) (err error) {
	start := time.Now()
	defer func() { GetMetrics().observe("CreateRealmRole", start, err) }()

	if err := s.admin.CreateRealmRole(ctx, Role{Name: name, Description: description}); err != nil {
		return err
	}
	s.invalidate(ctx, regionRealmRoles)
	return nil
}

// DeleteRealmRole deletes a realm role. Per-user role mappings are
// dropped too, since the provider detaches the role from every user
// that held it.
func (s *Service) DeleteRealmRole(ctx context.Context, name string) (err error) {
	start := time.Now()
	defer func() { GetMetrics().observe("DeleteRealmRole", start, err) }()

	if err := s.admin.DeleteRealmRole(ctx, name); err != nil {
		return err
	}
	s.invalidate(ctx, regionRealmRoles, regionUserRoles)
	return nil
}
