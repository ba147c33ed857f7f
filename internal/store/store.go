// ABOUTME: Store interface and data types for hearth tenant persistence
// ABOUTME: Defines Tenant, TenantUser, Invitation structs and the Store interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrTenantNotFound is returned when a tenant doesn't exist.
var ErrTenantNotFound = errors.New("tenant not found")

// ErrUserNotFound is returned when a tenant user doesn't exist.
var ErrUserNotFound = errors.New("user not found")

// ErrInvitationNotFound is returned when an invitation doesn't exist.
var ErrInvitationNotFound = errors.New("invitation not found")

// ErrInvitationUsed is returned when trying to accept an already-used invitation.
var ErrInvitationUsed = errors.New("invitation already used")

// ErrInvitationExpired is returned when an invitation has expired.
var ErrInvitationExpired = errors.New("invitation expired")

// ErrUsernameExists is returned when a username is already taken within a tenant.
var ErrUsernameExists = errors.New("username already exists in tenant")

// ErrEmailExists is returned when an email is already registered within a tenant.
var ErrEmailExists = errors.New("email already exists in tenant")

// ErrDomainExists is returned when a tenant domain is already claimed.
var ErrDomainExists = errors.New("tenant domain already exists")

// UserRole represents a user's role within a tenant.
type UserRole string

const (
	RoleUser       UserRole = "user"
	RoleAdmin      UserRole = "admin"
	RoleSuperAdmin UserRole = "super_admin"
)

// ValidUserRoles lists all valid role values.
var ValidUserRoles = []UserRole{RoleUser, RoleAdmin, RoleSuperAdmin}

// Valid reports whether the role is one of the three known roles.
func (r UserRole) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// TenantStatus represents the lifecycle state of a tenant.
type TenantStatus string

const (
	TenantActive    TenantStatus = "active"
	TenantSuspended TenantStatus = "suspended"
	TenantInactive  TenantStatus = "inactive"
)

// Tenant represents an isolated organization owning its own users,
// conversations, and settings.
type Tenant struct {
	ID        string
	Name      string
	Domain    string // empty if none; unique across all tenants when set
	Status    TenantStatus
	Settings  map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TenantUser represents a user account scoped to a single tenant.
type TenantUser struct {
	ID            string
	Username      string
	UsernameLower string // derived, used for case-insensitive lookup
	Email         string
	PasswordHash  string
	TenantID      string
	Role          UserRole
	IsActive      bool
	LastLogin     *time.Time
	FailedLogins  int
	LockedUntil   *time.Time
	LegacyAdmin   bool // pre-migration admin flag, kept for compatibility
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Invitation represents a single-use, time-limited token permitting account
// creation in a specific tenant with a pre-assigned role.
type Invitation struct {
	ID         string
	Email      string
	TenantID   string
	Role       UserRole
	InvitedBy  string
	Token      string
	ExpiresAt  time.Time
	AcceptedAt *time.Time
	IsUsed     bool
	CreatedAt  time.Time
}

// TenantConversation represents a conversation scoped to a tenant.
type TenantConversation struct {
	ID         string
	Name       string
	UserID     string // empty if the owner is unknown
	TenantID   string
	IsPublic   bool
	Data       map[string]any
	CreatedAt  time.Time
	UpdatedAt  time.Time
	LegacyUser string // pre-migration owner string, kept for compatibility
}

// TenantSettings represents a settings blob scoped to a tenant, either
// user-specific or tenant-wide.
type TenantSettings struct {
	ID           string
	UserID       string // empty for tenant-wide settings
	TenantID     string
	Settings     map[string]any
	IsTenantWide bool
	LegacyUser   string
}

// LegacyUser is a pre-migration single-tenant user row. Read-only once
// migration begins.
type LegacyUser struct {
	ID            string
	Username      string
	UsernameLower string
	PasswordHash  string
	Admin         bool
}

// LegacyConversation is a pre-migration conversation row.
type LegacyConversation struct {
	ID        string
	Name      string
	User      string // owner username/id as stored by the legacy schema
	IsPublic  bool
	Data      map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// LegacySettings is a pre-migration settings row.
type LegacySettings struct {
	ID       string
	User     string // empty means global settings
	Settings map[string]any
}

// MigrationData carries the fully-derived tenant-scoped rows that
// ApplyMigration inserts in a single transaction. The migration engine owns
// the policy (role derivation, orphan handling); the store owns the mechanics.
type MigrationData struct {
	Tenant        *Tenant
	Users         []*TenantUser
	Conversations []*TenantConversation
	Settings      []*TenantSettings
}

// Store defines the persistence interface for the tenant subsystem.
type Store interface {
	// Tenants
	CreateTenant(ctx context.Context, tenant *Tenant) error
	GetTenant(ctx context.Context, id string) (*Tenant, error)
	GetTenantByDomain(ctx context.Context, domain string) (*Tenant, error)
	ListTenants(ctx context.Context) ([]*Tenant, error)
	CountTenants(ctx context.Context) (int, error)
	UpdateTenantStatus(ctx context.Context, id string, status TenantStatus) error

	// Tenant users
	CreateUser(ctx context.Context, user *TenantUser) error
	GetUser(ctx context.Context, id string) (*TenantUser, error)
	GetUserForAuth(ctx context.Context, identity, tenantDomain string) (*TenantUser, *Tenant, error)
	GetActiveUserWithTenant(ctx context.Context, id string) (*TenantUser, *Tenant, error)
	ListTenantUsers(ctx context.Context, tenantID string, includeInactive bool) ([]*TenantUser, error)
	CountUsers(ctx context.Context) (int, error)
	UpdateUserRole(ctx context.Context, id string, role UserRole) error
	DeactivateUser(ctx context.Context, id string) error
	RecordLogin(ctx context.Context, id string, at time.Time) error
	RecordFailedLogin(ctx context.Context, id string, maxAttempts int, lockout time.Duration) error

	// Invitations
	CreateInvitation(ctx context.Context, inv *Invitation) error
	GetInvitationByToken(ctx context.Context, token string) (*Invitation, error)
	AcceptInvitation(ctx context.Context, token string, user *TenantUser) error

	// Composite transactions
	CreateTenantWithAdmin(ctx context.Context, tenant *Tenant, admin *TenantUser) error
	SeedDefaultTenant(ctx context.Context, tenant *Tenant, users []*TenantUser) error
	ApplyMigration(ctx context.Context, data *MigrationData) error

	// Conversations and settings
	CreateConversation(ctx context.Context, conv *TenantConversation) error
	ListTenantConversations(ctx context.Context, tenantID string) ([]*TenantConversation, error)
	CountTenantConversations(ctx context.Context) (int, error)
	CreateSettings(ctx context.Context, settings *TenantSettings) error
	CountTenantSettings(ctx context.Context) (int, error)

	// Legacy data (read side; writes exist only to stage pre-migration state)
	CreateLegacyUser(ctx context.Context, user *LegacyUser) error
	CreateLegacyConversation(ctx context.Context, conv *LegacyConversation) error
	CreateLegacySettings(ctx context.Context, settings *LegacySettings) error
	ListLegacyUsers(ctx context.Context) ([]*LegacyUser, error)
	ListLegacyConversations(ctx context.Context) ([]*LegacyConversation, error)
	ListLegacySettings(ctx context.Context) ([]*LegacySettings, error)
	CountLegacyUsers(ctx context.Context) (int, error)
	CountLegacyConversations(ctx context.Context) (int, error)
	CountLegacySettings(ctx context.Context) (int, error)

	// Close releases any resources held by the store
	Close() error
}
