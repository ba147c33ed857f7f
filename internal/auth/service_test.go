// ABOUTME: Tests for the authentication service
// ABOUTME: Covers login matrix, lockout, sessions, tenant creation, and invitations

package auth

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/hearth/internal/session"
	"github.com/2389/hearth/internal/store"
)

// setupTestService creates a Service over a temporary SQLite store and
// session directory.
func setupTestService(t *testing.T, cfg Config) *Service {
	t.Helper()
	tmpDir := t.TempDir()

	st, err := store.NewSQLiteStore(filepath.Join(tmpDir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	sessions, err := session.New(filepath.Join(tmpDir, "sessions"), time.Hour)
	require.NoError(t, err)

	return NewService(st, sessions, cfg)
}

// shortConfig keeps bcrypt work low and passwords short for tests.
func shortConfig() Config {
	return Config{
		PasswordMinLength: 5,
		MaxFailedLogins:   3,
		LockoutDuration:   15 * time.Minute,
		InvitationExpiry:  7 * 24 * time.Hour,
	}
}

func TestService_CreateTenantAndAuthenticate(t *testing.T) {
	svc := setupTestService(t, shortConfig())
	ctx := context.Background()

	tenant, admin, err := svc.CreateTenant(ctx, "Acme Corp", "acme.example.com", "alice", "alice@acme.example.com", "pw123x")
	require.NoError(t, err)
	assert.Equal(t, store.RoleAdmin, admin.Role)
	assert.Equal(t, tenant.ID, admin.TenantID)
	assert.True(t, admin.LegacyAdmin)

	user, err := svc.Authenticate(ctx, "alice", "pw123x", "")
	require.NoError(t, err)
	assert.Equal(t, admin.ID, user.ID)
	assert.Equal(t, "Acme Corp", user.TenantName)
	assert.True(t, user.IsAdmin())
	assert.NotEmpty(t, user.SessionID)
}

func TestService_Authenticate_ByEmailAndCase(t *testing.T) {
	svc := setupTestService(t, shortConfig())
	ctx := context.Background()

	_, _, err := svc.CreateTenant(ctx, "Acme Corp", "", "alice", "Alice@Acme.example.com", "pw123x")
	require.NoError(t, err)

	// Email lookup, lowercased at creation time.
	user, err := svc.Authenticate(ctx, "alice@acme.example.com", "pw123x", "")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)

	// Username lookup is case-insensitive.
	_, err = svc.Authenticate(ctx, "ALICE", "pw123x", "")
	require.NoError(t, err)
}

func TestService_Authenticate_Failures(t *testing.T) {
	svc := setupTestService(t, shortConfig())
	ctx := context.Background()

	tenant, admin, err := svc.CreateTenant(ctx, "Acme Corp", "acme.example.com", "alice", "alice@acme.example.com", "pw123x")
	require.NoError(t, err)

	tests := []struct {
		name     string
		prepare  func(t *testing.T)
		identity string
		password string
		domain   string
	}{
		{
			name:     "wrong password",
			identity: "alice", password: "wrong1", domain: "",
		},
		{
			name:     "unknown identity",
			identity: "nobody", password: "pw123x", domain: "",
		},
		{
			name:     "wrong tenant domain",
			identity: "alice", password: "pw123x", domain: "other.example.com",
		},
		{
			name: "deactivated user",
			prepare: func(t *testing.T) {
				require.NoError(t, svc.DeactivateUser(ctx, admin.ID))
			},
			identity: "alice", password: "pw123x", domain: "",
		},
		{
			name: "suspended tenant",
			prepare: func(t *testing.T) {
				require.NoError(t, svc.store.(*store.SQLiteStore).UpdateTenantStatus(ctx, tenant.ID, store.TenantSuspended))
			},
			identity: "alice", password: "pw123x", domain: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.prepare != nil {
				tt.prepare(t)
			}
			// Every failure mode collapses to the same sentinel.
			_, err := svc.Authenticate(ctx, tt.identity, tt.password, tt.domain)
			assert.ErrorIs(t, err, ErrInvalidCredentials)
		})
	}
}

func TestService_Authenticate_Lockout(t *testing.T) {
	svc := setupTestService(t, shortConfig())
	ctx := context.Background()

	_, _, err := svc.CreateTenant(ctx, "Acme Corp", "", "alice", "alice@acme.example.com", "pw123x")
	require.NoError(t, err)

	// Three wrong passwords lock the account.
	for i := 0; i < 3; i++ {
		_, err := svc.Authenticate(ctx, "alice", "wrong1", "")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}

	// Even the correct password is now rejected.
	_, err = svc.Authenticate(ctx, "alice", "pw123x", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestService_Authenticate_LockoutResetOnSuccess(t *testing.T) {
	svc := setupTestService(t, shortConfig())
	ctx := context.Background()

	_, admin, err := svc.CreateTenant(ctx, "Acme Corp", "", "alice", "alice@acme.example.com", "pw123x")
	require.NoError(t, err)

	// Two failures, then a success: the counter resets.
	for i := 0; i < 2; i++ {
		_, _ = svc.Authenticate(ctx, "alice", "wrong1", "")
	}
	_, err = svc.Authenticate(ctx, "alice", "pw123x", "")
	require.NoError(t, err)

	fresh, err := svc.store.GetUser(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, fresh.FailedLogins)
	assert.Nil(t, fresh.LockedUntil)
	assert.NotNil(t, fresh.LastLogin)
}

func TestService_UserFromSession(t *testing.T) {
	svc := setupTestService(t, shortConfig())
	ctx := context.Background()

	_, _, err := svc.CreateTenant(ctx, "Acme Corp", "", "alice", "alice@acme.example.com", "pw123x")
	require.NoError(t, err)

	loggedIn, err := svc.Authenticate(ctx, "alice", "pw123x", "")
	require.NoError(t, err)

	resolved, err := svc.UserFromSession(ctx, loggedIn.SessionID)
	require.NoError(t, err)
	assert.Equal(t, loggedIn.ID, resolved.ID)
	assert.Equal(t, loggedIn.SessionID, resolved.SessionID)
}

func TestService_UserFromSession_DeactivatedUser(t *testing.T) {
	svc := setupTestService(t, shortConfig())
	ctx := context.Background()

	_, admin, err := svc.CreateTenant(ctx, "Acme Corp", "", "alice", "alice@acme.example.com", "pw123x")
	require.NoError(t, err)

	loggedIn, err := svc.Authenticate(ctx, "alice", "pw123x", "")
	require.NoError(t, err)

	// Deactivation invalidates the session on next resolution.
	require.NoError(t, svc.DeactivateUser(ctx, admin.ID))

	_, err = svc.UserFromSession(ctx, loggedIn.SessionID)
	assert.ErrorIs(t, err, session.ErrNotFound)

	// The stale session file was deleted.
	_, err = svc.UserFromSession(ctx, loggedIn.SessionID)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestService_Logout(t *testing.T) {
	svc := setupTestService(t, shortConfig())
	ctx := context.Background()

	_, _, err := svc.CreateTenant(ctx, "Acme Corp", "", "alice", "alice@acme.example.com", "pw123x")
	require.NoError(t, err)

	loggedIn, err := svc.Authenticate(ctx, "alice", "pw123x", "")
	require.NoError(t, err)

	removed, err := svc.Logout(loggedIn.SessionID)
	require.NoError(t, err)
	assert.True(t, removed)

	_, err = svc.UserFromSession(ctx, loggedIn.SessionID)
	assert.ErrorIs(t, err, session.ErrNotFound)

	// Logout is idempotent.
	removed, err = svc.Logout(loggedIn.SessionID)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestService_CreateTenant_PasswordTooShort(t *testing.T) {
	svc := setupTestService(t, shortConfig())
	ctx := context.Background()

	_, _, err := svc.CreateTenant(ctx, "Acme Corp", "", "alice", "alice@acme.example.com", "pw")
	assert.ErrorIs(t, err, ErrPasswordTooShort)
}

func TestService_CreateUser(t *testing.T) {
	svc := setupTestService(t, shortConfig())
	ctx := context.Background()

	tenant, _, err := svc.CreateTenant(ctx, "Acme Corp", "", "alice", "alice@acme.example.com", "pw123x")
	require.NoError(t, err)

	bob, err := svc.CreateUser(ctx, tenant.ID, "bob", "bob@acme.example.com", "pw456x", store.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, store.RoleUser, bob.Role)
	assert.False(t, bob.LegacyAdmin)

	_, err = svc.Authenticate(ctx, "bob", "pw456x", "")
	require.NoError(t, err)
}

func TestService_CreateUser_InvalidRole(t *testing.T) {
	svc := setupTestService(t, shortConfig())
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, "tenant-1", "bob", "bob@acme.example.com", "pw456x", "owner")
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestService_InvitationFlow(t *testing.T) {
	svc := setupTestService(t, shortConfig())
	ctx := context.Background()

	tenant, admin, err := svc.CreateTenant(ctx, "Acme Corp", "", "alice", "alice@acme.example.com", "pw123x")
	require.NoError(t, err)

	inv, err := svc.InviteUser(ctx, tenant.ID, "Bob2@Acme.example.com", store.RoleUser, admin.ID)
	require.NoError(t, err)
	assert.Len(t, inv.Token, 64)
	assert.Equal(t, "bob2@acme.example.com", inv.Email, "invitation email is normalized")
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), inv.ExpiresAt, time.Minute)

	bob, err := svc.AcceptInvitation(ctx, inv.Token, "bob2", "pw456x")
	require.NoError(t, err)
	assert.Equal(t, tenant.ID, bob.TenantID)
	assert.Equal(t, "bob2@acme.example.com", bob.Email)
	assert.Equal(t, store.RoleUser, bob.Role)

	// The new account can log in immediately.
	view, err := svc.Authenticate(ctx, "bob2", "pw456x", "")
	require.NoError(t, err)
	assert.Equal(t, bob.ID, view.ID)

	// The token is spent.
	_, err = svc.AcceptInvitation(ctx, inv.Token, "mallory", "pw789x")
	assert.ErrorIs(t, err, ErrInvitationInvalid)
}

func TestService_AcceptInvitation_UniformFailures(t *testing.T) {
	svc := setupTestService(t, shortConfig())
	ctx := context.Background()

	tenant, admin, err := svc.CreateTenant(ctx, "Acme Corp", "", "alice", "alice@acme.example.com", "pw123x")
	require.NoError(t, err)

	// Unknown token.
	_, err = svc.AcceptInvitation(ctx, "no-such-token", "bob", "pw456x")
	assert.ErrorIs(t, err, ErrInvitationInvalid)

	// Username collision inside the tenant.
	inv, err := svc.InviteUser(ctx, tenant.ID, "bob@acme.example.com", store.RoleUser, admin.ID)
	require.NoError(t, err)
	_, err = svc.AcceptInvitation(ctx, inv.Token, "alice", "pw456x")
	assert.ErrorIs(t, err, ErrInvitationInvalid)

	// The failed accept did not consume the token.
	_, err = svc.AcceptInvitation(ctx, inv.Token, "bob", "pw456x")
	require.NoError(t, err)
}

func TestService_UpdateUserRole(t *testing.T) {
	svc := setupTestService(t, shortConfig())
	ctx := context.Background()

	tenant, _, err := svc.CreateTenant(ctx, "Acme Corp", "", "alice", "alice@acme.example.com", "pw123x")
	require.NoError(t, err)
	bob, err := svc.CreateUser(ctx, tenant.ID, "bob", "bob@acme.example.com", "pw456x", store.RoleUser)
	require.NoError(t, err)

	require.NoError(t, svc.UpdateUserRole(ctx, bob.ID, store.RoleAdmin))

	view, err := svc.GetUserByID(ctx, bob.ID)
	require.NoError(t, err)
	assert.True(t, view.IsAdmin())

	err = svc.UpdateUserRole(ctx, bob.ID, "owner")
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestService_ListTenantUsers(t *testing.T) {
	svc := setupTestService(t, shortConfig())
	ctx := context.Background()

	tenant, _, err := svc.CreateTenant(ctx, "Acme Corp", "", "alice", "alice@acme.example.com", "pw123x")
	require.NoError(t, err)
	bob, err := svc.CreateUser(ctx, tenant.ID, "bob", "bob@acme.example.com", "pw456x", store.RoleUser)
	require.NoError(t, err)
	require.NoError(t, svc.DeactivateUser(ctx, bob.ID))

	active, err := svc.ListTenantUsers(ctx, tenant.ID, false)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	all, err := svc.ListTenantUsers(ctx, tenant.ID, true)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
