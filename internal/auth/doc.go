// Package auth provides authentication and authorization for the hearth
// tenant subsystem.
//
// # Authentication
//
// Users authenticate with a username-or-email plus password, optionally
// scoped to a tenant domain. Lookups are restricted to active users of
// active tenants. Passwords are hashed with bcrypt; unknown identities burn
// a dummy comparison so timing does not reveal whether an account exists,
// and every failure mode (wrong password, unknown user, inactive account,
// suspended tenant, locked account) returns the same ErrInvalidCredentials.
//
// Repeated failures lock the account: after MaxFailedLogins wrong passwords
// the account is locked for LockoutDuration. The counter resets on success.
//
// An optional SSO path verifies externally-issued HS256 JWTs and maps the
// sub claim to an existing tenant user. First-time SSO subjects are not
// auto-provisioned.
//
// # Sessions
//
// Successful logins issue a session through the session package. The Service
// exclusively owns session creation and destruction. A session is only a
// pointer to a user id; UserFromSession and GetUserByID re-validate the
// user and tenant against the store on every call.
//
// # Authorization
//
// Role capabilities derive from the fixed ordering user < admin <
// super_admin. The predicates in authz.go (RequireAuth, RequireAdmin,
// RequireSuperAdmin, RequireSameTenant, CanManageUser) are pure functions
// over a resolved AuthUser; only CanManageUser touches storage, to confirm
// the target shares the actor's tenant. Mutation methods on Service assume
// the caller has already passed the appropriate check.
//
// # Onboarding
//
// InviteUser issues a single-use token with a configurable expiry (default
// seven days). AcceptInvitation consumes the token and creates the account
// in one store transaction; under concurrent accepts exactly one succeeds.
package auth
