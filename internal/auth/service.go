// ABOUTME: Authentication service - credential verification, session issuance, account management
// ABOUTME: All failures surface as uniform sentinels so callers cannot enumerate identities

package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/hearth/internal/session"
	"github.com/2389/hearth/internal/store"
)

// ErrInvalidCredentials is returned for every authentication failure: wrong
// password, unknown identity, inactive user, suspended tenant, wrong tenant
// domain, or locked account. Callers cannot distinguish these cases.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrInvitationInvalid is returned for every invitation-acceptance failure:
// unknown token, already used, expired, or a colliding account. The detail is
// logged but never exposed.
var ErrInvitationInvalid = errors.New("invitation invalid")

// ErrPasswordTooShort is returned when a new password is below the configured
// minimum length.
var ErrPasswordTooShort = errors.New("password below minimum length")

// ErrInvalidRole is returned when a role value is not one of user, admin,
// super_admin.
var ErrInvalidRole = errors.New("invalid role")

// Config holds the enforcement knobs for the authentication service.
type Config struct {
	PasswordMinLength int           // minimum length for new passwords
	MaxFailedLogins   int           // 0 disables lockout
	LockoutDuration   time.Duration // how long an account stays locked
	InvitationExpiry  time.Duration // lifetime of invitation tokens
}

// DefaultConfig returns the stock enforcement settings.
func DefaultConfig() Config {
	return Config{
		PasswordMinLength: 8,
		MaxFailedLogins:   5,
		LockoutDuration:   15 * time.Minute,
		InvitationExpiry:  7 * 24 * time.Hour,
	}
}

// Service is the authentication and account-management front door. It owns
// session creation and destruction; entity mutation is delegated to the
// store, and authorization checks are the caller's responsibility (see
// authz.go).
type Service struct {
	store    store.Store
	sessions *session.Store
	cfg      Config
	logger   *slog.Logger
}

// NewService creates an authentication service.
func NewService(st store.Store, sessions *session.Store, cfg Config) *Service {
	if cfg.InvitationExpiry <= 0 {
		cfg.InvitationExpiry = 7 * 24 * time.Hour
	}
	return &Service{
		store:    st,
		sessions: sessions,
		cfg:      cfg,
		logger:   slog.Default().With("component", "auth"),
	}
}

// Authenticate verifies a username-or-email plus password, optionally scoped
// to a tenant domain, and issues a session on success. The lookup is
// restricted to active users of active tenants. Every failure returns
// ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, identity, password, tenantDomain string) (*AuthUser, error) {
	user, tenant, err := s.store.GetUserForAuth(ctx, identity, tenantDomain)
	if errors.Is(err, store.ErrUserNotFound) {
		// Burn a hash comparison so unknown identities cost the same as
		// wrong passwords.
		compareDummy(password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	now := time.Now()

	if user.LockedUntil != nil && now.Before(*user.LockedUntil) {
		compareDummy(password)
		s.logger.Warn("login attempt on locked account", "user_id", user.ID)
		return nil, ErrInvalidCredentials
	}

	if !VerifyPassword(password, user.PasswordHash) {
		if err := s.store.RecordFailedLogin(ctx, user.ID, s.cfg.MaxFailedLogins, s.cfg.LockoutDuration); err != nil {
			s.logger.Error("failed to record failed login", "user_id", user.ID, "error", err)
		}
		return nil, ErrInvalidCredentials
	}

	if err := s.store.RecordLogin(ctx, user.ID, now); err != nil {
		return nil, fmt.Errorf("recording login: %w", err)
	}

	view := authUserView(user, tenant)

	sessionID, err := s.sessions.Create(&session.Record{
		UserID:     user.ID,
		Username:   user.Username,
		Role:       string(user.Role),
		TenantID:   tenant.ID,
		TenantName: tenant.Name,
	})
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	view.SessionID = sessionID

	s.logger.Info("login successful", "user_id", user.ID, "username", user.Username, "tenant_id", tenant.ID)
	return view, nil
}

// GetUserByID returns the AuthUser view for id, re-validating that both the
// user and its tenant are still active. Session contents are never trusted
// for privileged decisions; this is the authoritative lookup.
func (s *Service) GetUserByID(ctx context.Context, id string) (*AuthUser, error) {
	user, tenant, err := s.store.GetActiveUserWithTenant(ctx, id)
	if err != nil {
		return nil, err
	}
	return authUserView(user, tenant), nil
}

// UserFromSession resolves a session id to a re-validated AuthUser. A session
// pointing at a deactivated user or suspended tenant is deleted and treated
// as absent.
func (s *Service) UserFromSession(ctx context.Context, sessionID string) (*AuthUser, error) {
	rec, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	user, err := s.GetUserByID(ctx, rec.UserID)
	if errors.Is(err, store.ErrUserNotFound) {
		// The identity behind the session is gone or inactive.
		_, _ = s.sessions.Delete(sessionID)
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	user.SessionID = sessionID
	return user, nil
}

// Logout deletes the session. It is idempotent and reports whether a session
// was actually removed.
func (s *Service) Logout(sessionID string) (bool, error) {
	return s.sessions.Delete(sessionID)
}

// CreateTenant creates a tenant and its first admin user atomically. Outside
// of migration this is the only way a new tenant comes into existence.
func (s *Service) CreateTenant(ctx context.Context, name, domain, adminUsername, adminEmail, adminPassword string) (*store.Tenant, *store.TenantUser, error) {
	if err := s.checkPassword(adminPassword); err != nil {
		return nil, nil, err
	}

	hash, err := HashPassword(adminPassword)
	if err != nil {
		return nil, nil, fmt.Errorf("hashing password: %w", err)
	}

	now := time.Now()
	tenant := &store.Tenant{
		ID:        uuid.NewString(),
		Name:      name,
		Domain:    domain,
		Status:    store.TenantActive,
		Settings:  map[string]any{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	admin := newTenantUser(adminUsername, adminEmail, hash, store.RoleAdmin)

	if err := s.store.CreateTenantWithAdmin(ctx, tenant, admin); err != nil {
		return nil, nil, err
	}

	return tenant, admin, nil
}

// CreateUser creates a user in a tenant. The caller must already have passed
// an admin authorization check; this method only executes the mutation.
func (s *Service) CreateUser(ctx context.Context, tenantID, username, email, password string, role store.UserRole) (*store.TenantUser, error) {
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	if err := s.checkPassword(password); err != nil {
		return nil, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := newTenantUser(username, email, hash, role)
	user.TenantID = tenantID

	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// InviteUser creates an invitation with a fresh single-use token. Delivery of
// the token (email or otherwise) is the caller's concern.
func (s *Service) InviteUser(ctx context.Context, tenantID, email string, role store.UserRole, invitedBy string) (*store.Invitation, error) {
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	token, err := generateInvitationToken()
	if err != nil {
		return nil, fmt.Errorf("generating invitation token: %w", err)
	}

	now := time.Now()
	inv := &store.Invitation{
		ID:        uuid.NewString(),
		Email:     strings.ToLower(strings.TrimSpace(email)),
		TenantID:  tenantID,
		Role:      role,
		InvitedBy: invitedBy,
		Token:     token,
		ExpiresAt: now.Add(s.cfg.InvitationExpiry),
		IsUsed:    false,
		CreatedAt: now,
	}

	if err := s.store.CreateInvitation(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// AcceptInvitation consumes an invitation token and creates the invited
// account with the invitation's email and role. The token is consumed exactly
// once even under concurrent accepts. Every failure returns
// ErrInvitationInvalid.
func (s *Service) AcceptInvitation(ctx context.Context, token, username, password string) (*store.TenantUser, error) {
	if err := s.checkPassword(password); err != nil {
		return nil, err
	}

	inv, err := s.store.GetInvitationByToken(ctx, token)
	if errors.Is(err, store.ErrInvitationNotFound) {
		return nil, ErrInvitationInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("looking up invitation: %w", err)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := newTenantUser(username, inv.Email, hash, inv.Role)
	user.TenantID = inv.TenantID

	err = s.store.AcceptInvitation(ctx, token, user)
	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, store.ErrInvitationNotFound),
		errors.Is(err, store.ErrInvitationUsed),
		errors.Is(err, store.ErrInvitationExpired),
		errors.Is(err, store.ErrUsernameExists),
		errors.Is(err, store.ErrEmailExists):
		s.logger.Info("invitation acceptance rejected", "reason", err)
		return nil, ErrInvitationInvalid
	default:
		return nil, fmt.Errorf("accepting invitation: %w", err)
	}
}

// UpdateUserRole changes a user's role within its tenant. Authorization is
// the caller's responsibility.
func (s *Service) UpdateUserRole(ctx context.Context, userID string, role store.UserRole) error {
	if !role.Valid() {
		return ErrInvalidRole
	}
	return s.store.UpdateUserRole(ctx, userID, role)
}

// DeactivateUser marks a user account inactive. Authorization is the
// caller's responsibility.
func (s *Service) DeactivateUser(ctx context.Context, userID string) error {
	return s.store.DeactivateUser(ctx, userID)
}

// ListTenantUsers returns a tenant's users.
func (s *Service) ListTenantUsers(ctx context.Context, tenantID string, includeInactive bool) ([]*store.TenantUser, error) {
	return s.store.ListTenantUsers(ctx, tenantID, includeInactive)
}

// checkPassword enforces the configured minimum length on new passwords.
func (s *Service) checkPassword(password string) error {
	if len(password) < s.cfg.PasswordMinLength {
		return ErrPasswordTooShort
	}
	return nil
}

// newTenantUser builds a TenantUser with derived fields filled in. The
// legacy admin flag tracks the admin role for pre-migration consumers.
func newTenantUser(username, email, passwordHash string, role store.UserRole) *store.TenantUser {
	now := time.Now()
	return &store.TenantUser{
		ID:            uuid.NewString(),
		Username:      username,
		UsernameLower: strings.ToLower(username),
		Email:         strings.ToLower(strings.TrimSpace(email)),
		PasswordHash:  passwordHash,
		Role:          role,
		IsActive:      true,
		LegacyAdmin:   role == store.RoleAdmin,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// generateInvitationToken returns a 64-character hex token from 32 random
// bytes.
func generateInvitationToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
