// ABOUTME: Legacy single-tenant to multi-tenant migration engine
// ABOUTME: State detection, backup, one-transaction transform, verification, and seeding

package migration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/hearth/internal/auth"
	"github.com/2389/hearth/internal/store"
)

// ErrAlreadyMigrated is returned by Migrate when tenants already exist.
var ErrAlreadyMigrated = errors.New("tenants already exist, migration not needed")

// State describes what the stored data says about migration progress.
// Detection inspects the data itself, never configuration.
type State string

const (
	// StateFreshInstall: no legacy users and no tenants. Seed a default
	// tenant with the configured accounts.
	StateFreshInstall State = "fresh_install"
	// StateNeedsMigration: legacy users exist but no tenants. Run the
	// transform.
	StateNeedsMigration State = "needs_migration"
	// StateMigrated: tenants exist. Nothing to do.
	StateMigrated State = "migrated"
)

// Config controls the default tenant and seeded accounts.
type Config struct {
	DefaultTenantName   string
	DefaultTenantDomain string
	MakeFirstUserAdmin  bool

	SuperAdmin SeedAccount
	Admin      SeedAccount
	User       SeedAccount
}

// SeedAccount is one configured account created on fresh installs.
type SeedAccount struct {
	Username string
	Email    string
	Password string
}

// Engine runs the one-time legacy migration. It is the only writer of the
// legacy-to-tenant transform and expects to run single-threaded at process
// start, before authentication traffic.
type Engine struct {
	store  store.Store
	cfg    Config
	logger *slog.Logger
}

// NewEngine creates a migration engine.
func NewEngine(st store.Store, cfg Config) *Engine {
	if cfg.DefaultTenantName == "" {
		cfg.DefaultTenantName = "Default Organization"
	}
	return &Engine{
		store:  st,
		cfg:    cfg,
		logger: slog.Default().With("component", "migration"),
	}
}

// Status inspects stored data and reports the current migration state.
func (e *Engine) Status(ctx context.Context) (*StatusReport, error) {
	tenants, err := e.store.CountTenants(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting tenants: %w", err)
	}
	tenantUsers, err := e.store.CountUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting tenant users: %w", err)
	}
	legacyUsers, err := e.store.CountLegacyUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting legacy users: %w", err)
	}

	report := &StatusReport{
		Counts: StatusCounts{
			Tenants:     tenants,
			TenantUsers: tenantUsers,
			LegacyUsers: legacyUsers,
		},
	}

	switch {
	case tenants > 0:
		report.State = StateMigrated
		report.Message = fmt.Sprintf("Migration complete. %d tenant(s), %d user(s)", tenants, tenantUsers)
	case legacyUsers > 0:
		report.State = StateNeedsMigration
		report.Message = fmt.Sprintf("Migration needed. %d legacy user(s) found", legacyUsers)
	default:
		report.State = StateFreshInstall
		report.Message = "Fresh installation. No data to migrate"
	}

	return report, nil
}

// Backup snapshots all legacy rows into an in-memory report before the
// transform touches anything.
func (e *Engine) Backup(ctx context.Context) (*Backup, error) {
	users, err := e.store.ListLegacyUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("backing up legacy users: %w", err)
	}
	convs, err := e.store.ListLegacyConversations(ctx)
	if err != nil {
		return nil, fmt.Errorf("backing up legacy conversations: %w", err)
	}
	settings, err := e.store.ListLegacySettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("backing up legacy settings: %w", err)
	}

	return &Backup{
		Users:         users,
		Conversations: convs,
		Settings:      settings,
		Timestamp:     time.Now(),
	}, nil
}

// Migrate reshapes legacy single-tenant rows into tenant-scoped rows under a
// new default tenant, preserving original IDs for referential stability. The
// whole transform commits in one store transaction: a crash mid-way leaves
// zero tenants and a clean retry.
func (e *Engine) Migrate(ctx context.Context) (*Report, error) {
	tenants, err := e.store.CountTenants(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting tenants: %w", err)
	}
	if tenants > 0 {
		return &Report{Status: StatusSkipped, Message: ErrAlreadyMigrated.Error()}, nil
	}

	legacyUsers, err := e.store.ListLegacyUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing legacy users: %w", err)
	}
	legacyConvs, err := e.store.ListLegacyConversations(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing legacy conversations: %w", err)
	}
	legacySettings, err := e.store.ListLegacySettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing legacy settings: %w", err)
	}

	now := time.Now()
	tenant := &store.Tenant{
		ID:        uuid.NewString(),
		Name:      e.cfg.DefaultTenantName,
		Domain:    e.cfg.DefaultTenantDomain,
		Status:    store.TenantActive,
		Settings:  map[string]any{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	data := &store.MigrationData{Tenant: tenant}
	report := &Report{Status: StatusSuccess, Tenant: &TenantSummary{
		ID:     tenant.ID,
		Name:   tenant.Name,
		Domain: tenant.Domain,
	}}

	for i, old := range legacyUsers {
		// First user (when configured) or a pre-migration admin flag
		// promotes to the admin role.
		role := store.RoleUser
		if (i == 0 && e.cfg.MakeFirstUserAdmin) || old.Admin {
			role = store.RoleAdmin
		}

		data.Users = append(data.Users, &store.TenantUser{
			ID:            old.ID, // keep the legacy id for foreign keys elsewhere
			Username:      old.Username,
			UsernameLower: old.UsernameLower,
			// The legacy schema has no email column; the username stands in.
			Email:        old.Username,
			PasswordHash: old.PasswordHash,
			TenantID:     tenant.ID,
			Role:         role,
			IsActive:     true,
			LegacyAdmin:  old.Admin,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		report.Details.Users = append(report.Details.Users, MigratedUser{
			ID:       old.ID,
			Username: old.Username,
			Role:     role,
		})
	}

	for _, old := range legacyConvs {
		data.Conversations = append(data.Conversations, &store.TenantConversation{
			ID:         old.ID, // keep the legacy id
			Name:       old.Name,
			UserID:     old.User,
			TenantID:   tenant.ID,
			IsPublic:   old.IsPublic,
			Data:       old.Data,
			CreatedAt:  old.CreatedAt,
			UpdatedAt:  old.UpdatedAt,
			LegacyUser: old.User,
		})
		report.Details.Conversations = append(report.Details.Conversations, MigratedRow{ID: old.ID, UserID: old.User})
	}

	for _, old := range legacySettings {
		// Settings without an owner become tenant-wide.
		tenantWide := old.User == ""
		data.Settings = append(data.Settings, &store.TenantSettings{
			ID:           old.ID, // keep the legacy id
			UserID:       old.User,
			TenantID:     tenant.ID,
			Settings:     old.Settings,
			IsTenantWide: tenantWide,
			LegacyUser:   old.User,
		})
		report.Details.Settings = append(report.Details.Settings, MigratedRow{ID: old.ID, UserID: old.User, TenantWide: tenantWide})
	}

	if err := e.store.ApplyMigration(ctx, data); err != nil {
		return nil, fmt.Errorf("applying migration: %w", err)
	}

	report.Migrated = Counts{
		Users:         len(data.Users),
		Conversations: len(data.Conversations),
		Settings:      len(data.Settings),
	}

	e.logger.Info("migration complete",
		"tenant_id", tenant.ID,
		"users", report.Migrated.Users,
		"conversations", report.Migrated.Conversations,
		"settings", report.Migrated.Settings,
	)
	return report, nil
}

// Verify re-counts legacy versus migrated rows per entity type.
func (e *Engine) Verify(ctx context.Context) (*VerifyReport, error) {
	report := &VerifyReport{}

	tenants, err := e.store.CountTenants(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting tenants: %w", err)
	}
	report.TenantsCreated = tenants
	report.MigrationComplete = tenants > 0

	checks := []struct {
		name     string
		original func(context.Context) (int, error)
		migrated func(context.Context) (int, error)
		dest     *EntityCheck
	}{
		{"users", e.store.CountLegacyUsers, e.store.CountUsers, &report.Users},
		{"conversations", e.store.CountLegacyConversations, e.store.CountTenantConversations, &report.Conversations},
		{"settings", e.store.CountLegacySettings, e.store.CountTenantSettings, &report.Settings},
	}

	for _, check := range checks {
		original, err := check.original(ctx)
		if err != nil {
			return nil, fmt.Errorf("counting legacy %s: %w", check.name, err)
		}
		migrated, err := check.migrated(ctx)
		if err != nil {
			return nil, fmt.Errorf("counting migrated %s: %w", check.name, err)
		}
		*check.dest = EntityCheck{
			Original: original,
			Migrated: migrated,
			Match:    original == migrated,
		}
	}

	return report, nil
}

// Seed creates the default tenant with the three configured accounts
// (super_admin, admin, user) in one transaction. Used on fresh installs.
func (e *Engine) Seed(ctx context.Context) (*Report, error) {
	tenants, err := e.store.CountTenants(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting tenants: %w", err)
	}
	if tenants > 0 {
		return &Report{Status: StatusSkipped, Message: ErrAlreadyMigrated.Error()}, nil
	}

	now := time.Now()
	tenant := &store.Tenant{
		ID:        uuid.NewString(),
		Name:      e.cfg.DefaultTenantName,
		Domain:    e.cfg.DefaultTenantDomain,
		Status:    store.TenantActive,
		Settings:  map[string]any{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	seeds := []struct {
		account SeedAccount
		role    store.UserRole
	}{
		{e.cfg.SuperAdmin, store.RoleSuperAdmin},
		{e.cfg.Admin, store.RoleAdmin},
		{e.cfg.User, store.RoleUser},
	}

	var users []*store.TenantUser
	report := &Report{Status: StatusSuccess, Tenant: &TenantSummary{
		ID:     tenant.ID,
		Name:   tenant.Name,
		Domain: tenant.Domain,
	}}

	for _, seed := range seeds {
		if seed.account.Username == "" {
			continue
		}

		hash, err := auth.HashPassword(seed.account.Password)
		if err != nil {
			return nil, fmt.Errorf("hashing seed password: %w", err)
		}

		users = append(users, &store.TenantUser{
			ID:            uuid.NewString(),
			Username:      seed.account.Username,
			UsernameLower: strings.ToLower(seed.account.Username),
			Email:         seed.account.Email,
			PasswordHash:  hash,
			TenantID:      tenant.ID,
			Role:          seed.role,
			IsActive:      true,
			LegacyAdmin:   seed.role == store.RoleAdmin,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
		report.Details.Users = append(report.Details.Users, MigratedUser{
			ID:       users[len(users)-1].ID,
			Username: seed.account.Username,
			Role:     seed.role,
		})
	}

	if err := e.store.SeedDefaultTenant(ctx, tenant, users); err != nil {
		return nil, fmt.Errorf("seeding default tenant: %w", err)
	}

	report.Migrated = Counts{Users: len(users)}

	e.logger.Info("seeded default tenant", "tenant_id", tenant.ID, "users", len(users))
	return report, nil
}

// Run is the startup entry point: detect the state, then seed, migrate, or
// skip. Failures are returned to the caller, which is expected to fall back
// to legacy behavior rather than crash; partially committed state cannot
// occur because both Seed and Migrate commit in a single transaction.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	status, err := e.Status(ctx)
	if err != nil {
		return nil, err
	}

	switch status.State {
	case StateMigrated:
		e.logger.Info("migration already completed")
		return &Report{Status: StatusSkipped, Message: status.Message}, nil

	case StateFreshInstall:
		e.logger.Info("fresh installation detected, seeding default tenant")
		return e.Seed(ctx)

	case StateNeedsMigration:
		e.logger.Info("running legacy migration", "legacy_users", status.Counts.LegacyUsers)

		backup, err := e.Backup(ctx)
		if err != nil {
			return nil, err
		}
		e.logger.Info("backup created",
			"users", len(backup.Users),
			"conversations", len(backup.Conversations),
			"settings", len(backup.Settings),
		)

		report, err := e.Migrate(ctx)
		if err != nil {
			return nil, err
		}
		report.BackedUp = backup

		verify, err := e.Verify(ctx)
		if err != nil {
			return nil, err
		}
		report.Verify = verify

		if !verify.AllMatch() {
			report.Status = StatusFailed
			report.Message = "migration verification failed"
			e.logger.Error("migration verification failed",
				"users", verify.Users, "conversations", verify.Conversations, "settings", verify.Settings)
		}
		return report, nil

	default:
		return nil, fmt.Errorf("unknown migration state %q", status.State)
	}
}
