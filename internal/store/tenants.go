// ABOUTME: Tenant entity store methods
// ABOUTME: CRUD operations for tenants with domain uniqueness enforcement

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CreateTenant inserts a new tenant. Returns ErrDomainExists if the domain is
// already claimed by another tenant.
func (s *SQLiteStore) CreateTenant(ctx context.Context, tenant *Tenant) error {
	return s.createTenant(ctx, s.db, tenant)
}

func (s *SQLiteStore) createTenant(ctx context.Context, db execer, tenant *Tenant) error {
	settings, err := marshalJSON(tenant.Settings)
	if err != nil {
		return err
	}

	var domain sql.NullString
	if tenant.Domain != "" {
		domain = sql.NullString{String: tenant.Domain, Valid: true}
	}

	query := `
		INSERT INTO tenants (id, name, domain, status, settings_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err = db.ExecContext(ctx, query,
		tenant.ID,
		tenant.Name,
		domain,
		string(tenant.Status),
		settings,
		formatTime(tenant.CreatedAt),
		formatTime(tenant.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDomainExists
		}
		return fmt.Errorf("inserting tenant: %w", err)
	}

	s.logger.Info("created tenant", "id", tenant.ID, "name", tenant.Name)
	return nil
}

const tenantColumns = `id, name, domain, status, settings_json, created_at, updated_at`

// scanTenant reads one tenant row.
func scanTenant(row interface{ Scan(...any) error }) (*Tenant, error) {
	var tenant Tenant
	var domain, settings sql.NullString
	var status, createdAtStr, updatedAtStr string

	err := row.Scan(
		&tenant.ID,
		&tenant.Name,
		&domain,
		&status,
		&settings,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		return nil, err
	}

	tenant.Domain = domain.String
	tenant.Status = TenantStatus(status)

	tenant.Settings, err = unmarshalJSON(settings)
	if err != nil {
		return nil, err
	}
	tenant.CreatedAt, err = parseTime(createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	tenant.UpdatedAt, err = parseTime(updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &tenant, nil
}

// GetTenant retrieves a tenant by ID.
func (s *SQLiteStore) GetTenant(ctx context.Context, id string) (*Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE id = ?`

	tenant, err := scanTenant(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying tenant: %w", err)
	}
	return tenant, nil
}

// GetTenantByDomain retrieves a tenant by its unique domain.
func (s *SQLiteStore) GetTenantByDomain(ctx context.Context, domain string) (*Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE domain = ?`

	tenant, err := scanTenant(s.db.QueryRowContext(ctx, query, domain))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying tenant by domain: %w", err)
	}
	return tenant, nil
}

// ListTenants returns all tenants ordered by creation time.
func (s *SQLiteStore) ListTenants(ctx context.Context) ([]*Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying tenants: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tenants []*Tenant
	for rows.Next() {
		tenant, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning tenant: %w", err)
		}
		tenants = append(tenants, tenant)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tenants: %w", err)
	}

	return tenants, nil
}

// CountTenants returns the number of tenants.
func (s *SQLiteStore) CountTenants(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tenants").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting tenants: %w", err)
	}
	return count, nil
}

// UpdateTenantStatus changes a tenant's status. A non-active status blocks
// all logins under the tenant.
func (s *SQLiteStore) UpdateTenantStatus(ctx context.Context, id string, status TenantStatus) error {
	query := `UPDATE tenants SET status = ?, updated_at = ? WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, string(status), formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("updating tenant status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrTenantNotFound
	}

	s.logger.Info("updated tenant status", "id", id, "status", status)
	return nil
}
