// ABOUTME: Composite transactions for tenant provisioning and legacy migration
// ABOUTME: Tenant+admin creation, default tenant seeding, and the one-shot migration apply

package store

import (
	"context"
	"database/sql"
	"fmt"
)

// CreateTenantWithAdmin creates a tenant and its first admin user in a single
// transaction. This is the only way a brand-new tenant comes into existence
// outside migration.
func (s *SQLiteStore) CreateTenantWithAdmin(ctx context.Context, tenant *Tenant, admin *TenantUser) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.createTenant(ctx, tx, tenant); err != nil {
			return err
		}
		admin.TenantID = tenant.ID
		return s.createUser(ctx, tx, admin)
	})
	if err != nil {
		return err
	}

	s.logger.Info("created tenant with admin", "tenant_id", tenant.ID, "admin_id", admin.ID)
	return nil
}

// SeedDefaultTenant creates the default tenant together with its seeded
// accounts (super admin, admin, user) in one transaction. Used on fresh
// installs where there is no legacy data to migrate.
func (s *SQLiteStore) SeedDefaultTenant(ctx context.Context, tenant *Tenant, users []*TenantUser) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.createTenant(ctx, tx, tenant); err != nil {
			return err
		}
		for _, user := range users {
			user.TenantID = tenant.ID
			if err := s.createUser(ctx, tx, user); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("seeded default tenant", "tenant_id", tenant.ID, "users", len(users))
	return nil
}

// ApplyMigration inserts the default tenant and all migrated rows in ONE
// transaction. A crash mid-migration therefore leaves zero tenants and a
// clean retry, never a partially migrated state.
func (s *SQLiteStore) ApplyMigration(ctx context.Context, data *MigrationData) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.createTenant(ctx, tx, data.Tenant); err != nil {
			return err
		}
		for _, user := range data.Users {
			if err := s.createUser(ctx, tx, user); err != nil {
				return fmt.Errorf("migrating user %s: %w", user.ID, err)
			}
		}
		for _, conv := range data.Conversations {
			if err := s.createConversation(ctx, tx, conv); err != nil {
				return fmt.Errorf("migrating conversation %s: %w", conv.ID, err)
			}
		}
		for _, settings := range data.Settings {
			if err := s.createSettings(ctx, tx, settings); err != nil {
				return fmt.Errorf("migrating settings %s: %w", settings.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("applied legacy migration",
		"tenant_id", data.Tenant.ID,
		"users", len(data.Users),
		"conversations", len(data.Conversations),
		"settings", len(data.Settings),
	)
	return nil
}
