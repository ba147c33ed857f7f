// Package store provides persistent storage for the hearth tenant subsystem
// using SQLite.
//
// # Architecture
//
// A single SQLiteStore implements the Store interface. Methods are grouped by
// entity:
//
//   - Tenants: isolated organizations with an optional unique domain
//   - TenantUsers: accounts scoped to exactly one tenant, with per-tenant
//     username/email uniqueness and lockout bookkeeping
//   - Invitations: single-use, time-limited onboarding tokens
//   - TenantConversations / TenantSettings: tenant-scoped application data
//   - Legacy tables: the pre-migration single-tenant schema, read by the
//     migration engine
//
// # Transactions
//
// Composite operations (CreateTenantWithAdmin, SeedDefaultTenant,
// AcceptInvitation, ApplyMigration) run inside a single transaction so that
// partial failure leaves either the pre- or post-state, never a mix.
// AcceptInvitation consumes the token with a guarded UPDATE (is_used = 0 AND
// expires_at > now); under concurrent accepts exactly one caller wins.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// Timestamps are stored as RFC3339 text. JSON blob columns (tenant settings,
// conversation data) are stored as TEXT and surfaced as map[string]any.
//
// # Error Handling
//
// Lookup misses return sentinel errors (ErrTenantNotFound, ErrUserNotFound,
// ErrInvitationNotFound, ...). Unique constraint violations are mapped to
// ErrUsernameExists, ErrEmailExists, or ErrDomainExists. All methods accept
// context.Context.
package store
