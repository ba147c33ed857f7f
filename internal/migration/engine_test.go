// ABOUTME: Tests for the legacy migration engine
// ABOUTME: Covers state detection, seeding, the transform, verification, and idempotence

package migration

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/hearth/internal/auth"
	"github.com/2389/hearth/internal/store"
)

func setupTestEngine(t *testing.T, cfg Config) (*Engine, *store.SQLiteStore) {
	t.Helper()

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	return NewEngine(st, cfg), st
}

func defaultTestConfig() Config {
	return Config{
		DefaultTenantName:   "Default Organization",
		DefaultTenantDomain: "default.example.com",
		MakeFirstUserAdmin:  true,
		SuperAdmin:          SeedAccount{Username: "superadmin", Email: "superadmin@example.com", Password: "seed-super"},
		Admin:               SeedAccount{Username: "admin", Email: "admin@example.com", Password: "seed-admin"},
		User:                SeedAccount{Username: "user", Email: "user@example.com", Password: "seed-user"},
	}
}

// stageLegacyData inserts a representative pre-migration dataset.
func stageLegacyData(t *testing.T, st *store.SQLiteStore) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	hash, err := auth.HashPassword("legacy-pw")
	require.NoError(t, err)

	require.NoError(t, st.CreateLegacyUser(ctx, &store.LegacyUser{
		ID: "legacy-1", Username: "alice", UsernameLower: "alice", PasswordHash: hash,
	}))
	require.NoError(t, st.CreateLegacyUser(ctx, &store.LegacyUser{
		ID: "legacy-2", Username: "bob", UsernameLower: "bob", PasswordHash: hash, Admin: true,
	}))
	require.NoError(t, st.CreateLegacyUser(ctx, &store.LegacyUser{
		ID: "legacy-3", Username: "carol", UsernameLower: "carol", PasswordHash: hash,
	}))

	require.NoError(t, st.CreateLegacyConversation(ctx, &store.LegacyConversation{
		ID: "conv-1", Name: "First chat", User: "legacy-1",
		Data: map[string]any{"messages": float64(2)}, CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, st.CreateLegacyConversation(ctx, &store.LegacyConversation{
		ID: "conv-2", Name: "Public chat", User: "legacy-2", IsPublic: true,
		CreatedAt: now, UpdatedAt: now,
	}))

	require.NoError(t, st.CreateLegacySettings(ctx, &store.LegacySettings{
		ID: "set-1", User: "legacy-1", Settings: map[string]any{"theme": "dark"},
	}))
	require.NoError(t, st.CreateLegacySettings(ctx, &store.LegacySettings{
		ID: "set-2", Settings: map[string]any{"lang": "en"}, // orphaned: no owner
	}))
}

func TestEngine_Status(t *testing.T) {
	engine, st := setupTestEngine(t, defaultTestConfig())
	ctx := context.Background()

	// Empty database: fresh install.
	status, err := engine.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateFreshInstall, status.State)

	// Legacy users without tenants: needs migration.
	stageLegacyData(t, st)
	status, err = engine.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateNeedsMigration, status.State)
	assert.Equal(t, 3, status.Counts.LegacyUsers)

	// Any tenant present: migrated.
	_, err = engine.Migrate(ctx)
	require.NoError(t, err)
	status, err = engine.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateMigrated, status.State)
	assert.Equal(t, 1, status.Counts.Tenants)
}

func TestEngine_Migrate(t *testing.T) {
	engine, st := setupTestEngine(t, defaultTestConfig())
	ctx := context.Background()
	stageLegacyData(t, st)

	report, err := engine.Migrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, report.Status)
	require.NotNil(t, report.Tenant)
	assert.Equal(t, "Default Organization", report.Tenant.Name)
	assert.Equal(t, Counts{Users: 3, Conversations: 2, Settings: 2}, report.Migrated)

	// First user is promoted, the flagged admin keeps admin, the rest stay users.
	alice, err := st.GetUser(ctx, "legacy-1")
	require.NoError(t, err)
	assert.Equal(t, store.RoleAdmin, alice.Role)
	assert.Equal(t, "alice", alice.Email, "email defaults to the legacy username")

	bob, err := st.GetUser(ctx, "legacy-2")
	require.NoError(t, err)
	assert.Equal(t, store.RoleAdmin, bob.Role)
	assert.True(t, bob.LegacyAdmin)

	carol, err := st.GetUser(ctx, "legacy-3")
	require.NoError(t, err)
	assert.Equal(t, store.RoleUser, carol.Role)

	// Migrated users can still authenticate with their legacy password.
	user, _, err := st.GetUserForAuth(ctx, "alice", "")
	require.NoError(t, err)
	assert.True(t, auth.VerifyPassword("legacy-pw", user.PasswordHash))

	// Conversations keep their IDs and owners.
	convs, err := st.ListTenantConversations(ctx, report.Tenant.ID)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	byID := map[string]*store.TenantConversation{}
	for _, conv := range convs {
		byID[conv.ID] = conv
	}
	require.Contains(t, byID, "conv-1")
	assert.Equal(t, "legacy-1", byID["conv-1"].UserID)
	require.Contains(t, byID, "conv-2")
	assert.True(t, byID["conv-2"].IsPublic)

	// Orphaned settings became tenant-wide.
	var orphanTenantWide bool
	for _, row := range report.Details.Settings {
		if row.ID == "set-2" {
			orphanTenantWide = row.TenantWide
		}
	}
	assert.True(t, orphanTenantWide)
}

func TestEngine_Migrate_NoFirstUserPromotion(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.MakeFirstUserAdmin = false
	engine, st := setupTestEngine(t, cfg)
	ctx := context.Background()
	stageLegacyData(t, st)

	_, err := engine.Migrate(ctx)
	require.NoError(t, err)

	// Without promotion only the flagged admin gets the role.
	alice, err := st.GetUser(ctx, "legacy-1")
	require.NoError(t, err)
	assert.Equal(t, store.RoleUser, alice.Role)

	bob, err := st.GetUser(ctx, "legacy-2")
	require.NoError(t, err)
	assert.Equal(t, store.RoleAdmin, bob.Role)
}

func TestEngine_Migrate_SkippedWhenTenantsExist(t *testing.T) {
	engine, st := setupTestEngine(t, defaultTestConfig())
	ctx := context.Background()
	stageLegacyData(t, st)

	_, err := engine.Migrate(ctx)
	require.NoError(t, err)

	// Second migrate is a no-op skip, not a duplicate run.
	report, err := engine.Migrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, report.Status)

	count, err := st.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestEngine_Verify(t *testing.T) {
	engine, st := setupTestEngine(t, defaultTestConfig())
	ctx := context.Background()
	stageLegacyData(t, st)

	_, err := engine.Migrate(ctx)
	require.NoError(t, err)

	report, err := engine.Verify(ctx)
	require.NoError(t, err)
	assert.True(t, report.MigrationComplete)
	assert.Equal(t, 1, report.TenantsCreated)
	assert.True(t, report.AllMatch())
	assert.Equal(t, EntityCheck{Original: 3, Migrated: 3, Match: true}, report.Users)
	assert.Equal(t, EntityCheck{Original: 2, Migrated: 2, Match: true}, report.Conversations)
	assert.Equal(t, EntityCheck{Original: 2, Migrated: 2, Match: true}, report.Settings)
}

func TestEngine_Seed(t *testing.T) {
	engine, st := setupTestEngine(t, defaultTestConfig())
	ctx := context.Background()

	report, err := engine.Seed(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, report.Status)
	assert.Equal(t, 3, report.Migrated.Users)

	users, err := st.ListTenantUsers(ctx, report.Tenant.ID, false)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, store.RoleSuperAdmin, users[0].Role)
	assert.Equal(t, store.RoleAdmin, users[1].Role)
	assert.Equal(t, store.RoleUser, users[2].Role)

	// Seeded credentials work.
	seeded, _, err := st.GetUserForAuth(ctx, "superadmin", "")
	require.NoError(t, err)
	assert.True(t, auth.VerifyPassword("seed-super", seeded.PasswordHash))
}

func TestEngine_Seed_SkipsEmptyAccounts(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.User = SeedAccount{}
	engine, st := setupTestEngine(t, cfg)
	ctx := context.Background()

	report, err := engine.Seed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Migrated.Users)

	count, err := st.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestEngine_Run_FreshInstall(t *testing.T) {
	engine, st := setupTestEngine(t, defaultTestConfig())
	ctx := context.Background()

	report, err := engine.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, report.Status)

	count, err := st.CountTenants(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestEngine_Run_MigrationWithVerify(t *testing.T) {
	engine, st := setupTestEngine(t, defaultTestConfig())
	ctx := context.Background()
	stageLegacyData(t, st)

	report, err := engine.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, report.Status)

	// The run carries its backup and verification.
	require.NotNil(t, report.BackedUp)
	assert.Len(t, report.BackedUp.Users, 3)
	assert.Len(t, report.BackedUp.Conversations, 2)
	assert.Len(t, report.BackedUp.Settings, 2)

	require.NotNil(t, report.Verify)
	assert.True(t, report.Verify.AllMatch())
}

func TestEngine_Run_Idempotent(t *testing.T) {
	engine, _ := setupTestEngine(t, defaultTestConfig())
	ctx := context.Background()

	first, err := engine.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, first.Status)

	second, err := engine.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, second.Status)
}
