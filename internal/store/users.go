// ABOUTME: TenantUser entity store methods
// ABOUTME: User CRUD, authentication lookup joins, and lockout bookkeeping

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const userColumns = `id, username, username_lower, email, password_hash, tenant_id, role,
	is_active, last_login, failed_logins, locked_until, legacy_admin, created_at, updated_at`

// userWithTenantQuery joins a user row with its owning tenant for
// authentication and re-validation lookups.
const userWithTenantQuery = `
	SELECT u.id, u.username, u.username_lower, u.email, u.password_hash, u.tenant_id, u.role,
		u.is_active, u.last_login, u.failed_logins, u.locked_until, u.legacy_admin, u.created_at, u.updated_at,
		t.id, t.name, t.domain, t.status, t.settings_json, t.created_at, t.updated_at
	FROM tenant_users u
	JOIN tenants t ON t.id = u.tenant_id
`

// CreateUser inserts a new tenant user. Returns ErrUsernameExists or
// ErrEmailExists on per-tenant uniqueness violations.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *TenantUser) error {
	return s.createUser(ctx, s.db, user)
}

func (s *SQLiteStore) createUser(ctx context.Context, db execer, user *TenantUser) error {
	query := `
		INSERT INTO tenant_users (id, username, username_lower, email, password_hash, tenant_id,
			role, is_active, last_login, failed_logins, locked_until, legacy_admin, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query,
		user.ID,
		user.Username,
		user.UsernameLower,
		user.Email,
		user.PasswordHash,
		user.TenantID,
		string(user.Role),
		user.IsActive,
		nullableTime(user.LastLogin),
		user.FailedLogins,
		nullableTime(user.LockedUntil),
		user.LegacyAdmin,
		formatTime(user.CreatedAt),
		formatTime(user.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			if strings.Contains(err.Error(), "email") {
				return ErrEmailExists
			}
			return ErrUsernameExists
		}
		return fmt.Errorf("inserting tenant user: %w", err)
	}

	s.logger.Info("created tenant user", "id", user.ID, "username", user.Username, "tenant_id", user.TenantID, "role", user.Role)
	return nil
}

// scanUser reads one tenant user row.
func scanUser(row interface{ Scan(...any) error }) (*TenantUser, error) {
	var user TenantUser
	var role, createdAtStr, updatedAtStr string
	var lastLogin, lockedUntil sql.NullString

	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.UsernameLower,
		&user.Email,
		&user.PasswordHash,
		&user.TenantID,
		&role,
		&user.IsActive,
		&lastLogin,
		&user.FailedLogins,
		&lockedUntil,
		&user.LegacyAdmin,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		return nil, err
	}

	user.Role = UserRole(role)

	user.LastLogin, err = scanNullableTime(lastLogin)
	if err != nil {
		return nil, fmt.Errorf("parsing last_login: %w", err)
	}
	user.LockedUntil, err = scanNullableTime(lockedUntil)
	if err != nil {
		return nil, fmt.Errorf("parsing locked_until: %w", err)
	}
	user.CreatedAt, err = parseTime(createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	user.UpdatedAt, err = parseTime(updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &user, nil
}

// GetUser retrieves a tenant user by ID regardless of active state.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*TenantUser, error) {
	query := `SELECT ` + userColumns + ` FROM tenant_users WHERE id = ?`

	user, err := scanUser(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying tenant user: %w", err)
	}
	return user, nil
}

// GetUserForAuth looks up an active user of an active tenant by
// case-insensitive username or exact email, optionally filtered by tenant
// domain. Returns ErrUserNotFound for any miss so callers cannot distinguish
// unknown identity from inactive account or tenant.
func (s *SQLiteStore) GetUserForAuth(ctx context.Context, identity, tenantDomain string) (*TenantUser, *Tenant, error) {
	ident := strings.ToLower(strings.TrimSpace(identity))

	query := userWithTenantQuery + `
		WHERE (u.username_lower = ? OR u.email = ?)
		  AND u.is_active = 1
		  AND t.status = 'active'
	`
	args := []any{ident, ident}

	if tenantDomain != "" {
		query += ` AND t.domain = ?`
		args = append(args, tenantDomain)
	}

	return s.queryUserWithTenant(ctx, query, args...)
}

// GetActiveUserWithTenant retrieves an active user and its active tenant by
// user ID. Used to re-validate identity on every privileged decision.
func (s *SQLiteStore) GetActiveUserWithTenant(ctx context.Context, id string) (*TenantUser, *Tenant, error) {
	query := userWithTenantQuery + `
		WHERE u.id = ?
		  AND u.is_active = 1
		  AND t.status = 'active'
	`
	return s.queryUserWithTenant(ctx, query, id)
}

func (s *SQLiteStore) queryUserWithTenant(ctx context.Context, query string, args ...any) (*TenantUser, *Tenant, error) {
	var user TenantUser
	var tenant Tenant
	var role, userCreatedStr, userUpdatedStr string
	var lastLogin, lockedUntil sql.NullString
	var domain, settings sql.NullString
	var status, tenantCreatedStr, tenantUpdatedStr string

	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&user.ID,
		&user.Username,
		&user.UsernameLower,
		&user.Email,
		&user.PasswordHash,
		&user.TenantID,
		&role,
		&user.IsActive,
		&lastLogin,
		&user.FailedLogins,
		&lockedUntil,
		&user.LegacyAdmin,
		&userCreatedStr,
		&userUpdatedStr,
		&tenant.ID,
		&tenant.Name,
		&domain,
		&status,
		&settings,
		&tenantCreatedStr,
		&tenantUpdatedStr,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrUserNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("querying user with tenant: %w", err)
	}

	user.Role = UserRole(role)
	tenant.Domain = domain.String
	tenant.Status = TenantStatus(status)

	user.LastLogin, err = scanNullableTime(lastLogin)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing last_login: %w", err)
	}
	user.LockedUntil, err = scanNullableTime(lockedUntil)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing locked_until: %w", err)
	}
	user.CreatedAt, err = parseTime(userCreatedStr)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing created_at: %w", err)
	}
	user.UpdatedAt, err = parseTime(userUpdatedStr)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	tenant.Settings, err = unmarshalJSON(settings)
	if err != nil {
		return nil, nil, err
	}
	tenant.CreatedAt, err = parseTime(tenantCreatedStr)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing tenant created_at: %w", err)
	}
	tenant.UpdatedAt, err = parseTime(tenantUpdatedStr)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing tenant updated_at: %w", err)
	}

	return &user, &tenant, nil
}

// ListTenantUsers returns all users in a tenant, optionally including
// deactivated accounts.
func (s *SQLiteStore) ListTenantUsers(ctx context.Context, tenantID string, includeInactive bool) ([]*TenantUser, error) {
	query := `SELECT ` + userColumns + ` FROM tenant_users WHERE tenant_id = ?`
	if !includeInactive {
		query += ` AND is_active = 1`
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("querying tenant users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []*TenantUser
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning tenant user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tenant users: %w", err)
	}

	return users, nil
}

// CountUsers returns the total number of tenant users across all tenants.
func (s *SQLiteStore) CountUsers(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tenant_users").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting tenant users: %w", err)
	}
	return count, nil
}

// UpdateUserRole changes a user's role and keeps the legacy admin flag in
// sync for pre-migration consumers.
func (s *SQLiteStore) UpdateUserRole(ctx context.Context, id string, role UserRole) error {
	query := `
		UPDATE tenant_users
		SET role = ?, legacy_admin = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		string(role),
		role == RoleAdmin,
		formatTime(time.Now()),
		id,
	)
	if err != nil {
		return fmt.Errorf("updating user role: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrUserNotFound
	}

	s.logger.Info("updated user role", "id", id, "role", role)
	return nil
}

// DeactivateUser marks a user account inactive. Deactivated users cannot
// authenticate and are skipped by privileged lookups.
func (s *SQLiteStore) DeactivateUser(ctx context.Context, id string) error {
	query := `UPDATE tenant_users SET is_active = 0, updated_at = ? WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("deactivating user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrUserNotFound
	}

	s.logger.Info("deactivated user", "id", id)
	return nil
}

// RecordLogin stamps last_login and clears lockout state after a successful
// authentication.
func (s *SQLiteStore) RecordLogin(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE tenant_users
		SET last_login = ?, failed_logins = 0, locked_until = NULL, updated_at = ?
		WHERE id = ?
	`

	_, err := s.db.ExecContext(ctx, query, formatTime(at), formatTime(at), id)
	if err != nil {
		return fmt.Errorf("recording login: %w", err)
	}

	s.logger.Debug("recorded login", "id", id)
	return nil
}

// RecordFailedLogin increments the failed-attempt counter and, once the
// threshold is reached, locks the account for the lockout duration.
func (s *SQLiteStore) RecordFailedLogin(ctx context.Context, id string, maxAttempts int, lockout time.Duration) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var failed int
		err := tx.QueryRowContext(ctx, `SELECT failed_logins FROM tenant_users WHERE id = ?`, id).Scan(&failed)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("querying failed logins: %w", err)
		}

		failed++
		var lockedUntil sql.NullString
		if maxAttempts > 0 && failed >= maxAttempts {
			until := time.Now().Add(lockout)
			lockedUntil = sql.NullString{String: formatTime(until), Valid: true}
			s.logger.Warn("account locked after repeated failures", "id", id, "failed_logins", failed, "locked_until", formatTime(until))
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE tenant_users SET failed_logins = ?, locked_until = ?, updated_at = ? WHERE id = ?`,
			failed, lockedUntil, formatTime(time.Now()), id,
		)
		if err != nil {
			return fmt.Errorf("recording failed login: %w", err)
		}
		return nil
	})
}
