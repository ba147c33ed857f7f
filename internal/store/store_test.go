// ABOUTME: Shared test helpers and tenant CRUD tests for the SQLite store
// ABOUTME: Covers tenant creation, domain uniqueness, and status transitions

package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

// makeTenant returns a valid tenant with a unique id.
func makeTenant(id string) *Tenant {
	now := time.Now().UTC().Truncate(time.Second)
	return &Tenant{
		ID:        id,
		Name:      "Tenant " + id,
		Domain:    id + ".example.com",
		Status:    TenantActive,
		Settings:  map[string]any{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// makeUser returns a valid user belonging to tenantID.
func makeUser(id, username, tenantID string) *TenantUser {
	now := time.Now().UTC().Truncate(time.Second)
	return &TenantUser{
		ID:            id,
		Username:      username,
		UsernameLower: username,
		Email:         username + "@" + tenantID + ".example.com",
		PasswordHash:  "$2a$10$fakefakefakefakefakefakefakefakefakefakefakefakefake",
		TenantID:      tenantID,
		Role:          RoleUser,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestStore_CreateTenant(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	tenant := makeTenant("tenant-1")
	err := store.CreateTenant(ctx, tenant)
	require.NoError(t, err)

	retrieved, err := store.GetTenant(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, "tenant-1", retrieved.ID)
	assert.Equal(t, "Tenant tenant-1", retrieved.Name)
	assert.Equal(t, TenantActive, retrieved.Status)
}

func TestStore_CreateTenant_DuplicateDomain(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	first := makeTenant("tenant-1")
	require.NoError(t, store.CreateTenant(ctx, first))

	second := makeTenant("tenant-2")
	second.Domain = first.Domain

	err := store.CreateTenant(ctx, second)
	assert.ErrorIs(t, err, ErrDomainExists)
}

func TestStore_CreateTenant_EmptyDomainsDoNotCollide(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	first := makeTenant("tenant-1")
	first.Domain = ""
	require.NoError(t, store.CreateTenant(ctx, first))

	second := makeTenant("tenant-2")
	second.Domain = ""
	require.NoError(t, store.CreateTenant(ctx, second))
}

func TestStore_GetTenant_NotFound(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.GetTenant(ctx, "nonexistent")
	assert.ErrorIs(t, err, ErrTenantNotFound)
}

func TestStore_GetTenantByDomain(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	tenant := makeTenant("tenant-1")
	require.NoError(t, store.CreateTenant(ctx, tenant))

	retrieved, err := store.GetTenantByDomain(ctx, "tenant-1.example.com")
	require.NoError(t, err)
	assert.Equal(t, "tenant-1", retrieved.ID)

	_, err = store.GetTenantByDomain(ctx, "unknown.example.com")
	assert.ErrorIs(t, err, ErrTenantNotFound)
}

func TestStore_ListTenants(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, store.CreateTenant(ctx, makeTenant(fmt.Sprintf("tenant-%d", i))))
	}

	tenants, err := store.ListTenants(ctx)
	require.NoError(t, err)
	assert.Len(t, tenants, 3)

	count, err := store.CountTenants(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestStore_UpdateTenantStatus(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	tenant := makeTenant("tenant-1")
	require.NoError(t, store.CreateTenant(ctx, tenant))

	err := store.UpdateTenantStatus(ctx, "tenant-1", TenantSuspended)
	require.NoError(t, err)

	retrieved, err := store.GetTenant(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, TenantSuspended, retrieved.Status)
}

func TestStore_UpdateTenantStatus_NotFound(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	err := store.UpdateTenantStatus(ctx, "nonexistent", TenantSuspended)
	assert.ErrorIs(t, err, ErrTenantNotFound)
}

func TestStore_TenantSettingsRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	tenant := makeTenant("tenant-1")
	tenant.Settings = map[string]any{"theme": "dark", "max_users": float64(50)}
	require.NoError(t, store.CreateTenant(ctx, tenant))

	retrieved, err := store.GetTenant(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, "dark", retrieved.Settings["theme"])
	assert.Equal(t, float64(50), retrieved.Settings["max_users"])
}
