// ABOUTME: AuthUser view type returned by authentication lookups
// ABOUTME: Role capability derivations for the fixed user < admin < super_admin ordering

package auth

import (
	"github.com/2389/hearth/internal/store"
)

// AuthUser is the authenticated-user view handed to callers. It is a
// read-only projection of a TenantUser joined with its tenant; entity
// mutation goes through the Service, never through this view.
type AuthUser struct {
	ID         string
	Username   string
	Email      string
	TenantID   string
	TenantName string
	Role       store.UserRole
	IsActive   bool
	SessionID  string // set when the lookup issued or resolved a session
}

// IsAdmin reports whether the user has admin privileges. Both admin and
// super_admin qualify.
func (u *AuthUser) IsAdmin() bool {
	return u.Role == store.RoleAdmin || u.Role == store.RoleSuperAdmin
}

// IsSuperAdmin reports whether the user has super admin privileges.
func (u *AuthUser) IsSuperAdmin() bool {
	return u.Role == store.RoleSuperAdmin
}

// CanManageUsers reports whether the user can manage other users in its
// tenant.
func (u *AuthUser) CanManageUsers() bool {
	return u.IsAdmin()
}

// CanManageTenant reports whether the user can manage tenant settings.
func (u *AuthUser) CanManageTenant() bool {
	return u.IsAdmin()
}

// authUserView builds the AuthUser projection from store rows.
func authUserView(user *store.TenantUser, tenant *store.Tenant) *AuthUser {
	return &AuthUser{
		ID:         user.ID,
		Username:   user.Username,
		Email:      user.Email,
		TenantID:   tenant.ID,
		TenantName: tenant.Name,
		Role:       user.Role,
		IsActive:   user.IsActive,
	}
}
