// ABOUTME: Authorization predicates over resolved AuthUser state
// ABOUTME: Pure checks except CanManageUser, which re-reads the target for tenant co-membership

package auth

import (
	"context"
	"errors"

	"github.com/2389/hearth/internal/store"
)

// The predicates below gate admin and tenant-scoped actions. They operate on
// an already-resolved AuthUser, never on a raw session id: the session is
// only a pointer to a user, and role/tenant are re-derived from the
// authoritative record at decision time. That keeps stale or forged session
// fields from ever influencing an authorization decision.

// RequireAuth reports whether user is an authenticated, active account.
func RequireAuth(user *AuthUser) bool {
	return user != nil && user.IsActive
}

// RequireAdmin reports whether user is an active admin or super admin.
func RequireAdmin(user *AuthUser) bool {
	return RequireAuth(user) && user.IsAdmin()
}

// RequireSuperAdmin reports whether user is an active super admin.
func RequireSuperAdmin(user *AuthUser) bool {
	return RequireAuth(user) && user.IsSuperAdmin()
}

// RequireSameTenant reports whether user belongs to the tenant owning the
// resource.
func RequireSameTenant(user *AuthUser, resourceTenantID string) bool {
	return RequireAuth(user) && user.TenantID == resourceTenantID
}

// CanManageUser reports whether actor may manage the target user: actor must
// be an admin and the target must exist in the same tenant. An absent target
// is a denial, not an error.
func (s *Service) CanManageUser(ctx context.Context, actor *AuthUser, targetUserID string) (bool, error) {
	if !RequireAdmin(actor) {
		return false, nil
	}

	target, err := s.store.GetUser(ctx, targetUserID)
	if errors.Is(err, store.ErrUserNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return actor.TenantID == target.TenantID, nil
}
