// ABOUTME: Tenant conversation and settings store methods
// ABOUTME: Tenant-scoped counterparts of the legacy conversation/settings tables

package store

import (
	"context"
	"database/sql"
	"fmt"
)

// CreateConversation inserts a tenant-scoped conversation.
func (s *SQLiteStore) CreateConversation(ctx context.Context, conv *TenantConversation) error {
	return s.createConversation(ctx, s.db, conv)
}

func (s *SQLiteStore) createConversation(ctx context.Context, db execer, conv *TenantConversation) error {
	data, err := marshalJSON(conv.Data)
	if err != nil {
		return err
	}

	var userID sql.NullString
	if conv.UserID != "" {
		userID = sql.NullString{String: conv.UserID, Valid: true}
	}

	query := `
		INSERT INTO tenant_conversations (id, name, user_id, tenant_id, is_public, data_json,
			created_at, updated_at, legacy_user)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = db.ExecContext(ctx, query,
		conv.ID,
		conv.Name,
		userID,
		conv.TenantID,
		conv.IsPublic,
		data,
		formatTime(conv.CreatedAt),
		formatTime(conv.UpdatedAt),
		conv.LegacyUser,
	)
	if err != nil {
		return fmt.Errorf("inserting tenant conversation: %w", err)
	}

	s.logger.Debug("created tenant conversation", "id", conv.ID, "tenant_id", conv.TenantID)
	return nil
}

// ListTenantConversations returns all conversations in a tenant ordered by
// creation time.
func (s *SQLiteStore) ListTenantConversations(ctx context.Context, tenantID string) ([]*TenantConversation, error) {
	query := `
		SELECT id, name, user_id, tenant_id, is_public, data_json, created_at, updated_at, legacy_user
		FROM tenant_conversations
		WHERE tenant_id = ?
		ORDER BY created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("querying tenant conversations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var convs []*TenantConversation
	for rows.Next() {
		var conv TenantConversation
		var userID, data sql.NullString
		var createdAtStr, updatedAtStr string

		if err := rows.Scan(
			&conv.ID,
			&conv.Name,
			&userID,
			&conv.TenantID,
			&conv.IsPublic,
			&data,
			&createdAtStr,
			&updatedAtStr,
			&conv.LegacyUser,
		); err != nil {
			return nil, fmt.Errorf("scanning tenant conversation: %w", err)
		}

		conv.UserID = userID.String
		conv.Data, err = unmarshalJSON(data)
		if err != nil {
			return nil, err
		}
		conv.CreatedAt, err = parseTime(createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		conv.UpdatedAt, err = parseTime(updatedAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}
		convs = append(convs, &conv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tenant conversations: %w", err)
	}

	return convs, nil
}

// CountTenantConversations returns the number of tenant-scoped conversations.
func (s *SQLiteStore) CountTenantConversations(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tenant_conversations").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting tenant conversations: %w", err)
	}
	return count, nil
}

// CreateSettings inserts a tenant-scoped settings record.
func (s *SQLiteStore) CreateSettings(ctx context.Context, settings *TenantSettings) error {
	return s.createSettings(ctx, s.db, settings)
}

func (s *SQLiteStore) createSettings(ctx context.Context, db execer, settings *TenantSettings) error {
	blob, err := marshalJSON(settings.Settings)
	if err != nil {
		return err
	}

	var userID sql.NullString
	if settings.UserID != "" {
		userID = sql.NullString{String: settings.UserID, Valid: true}
	}

	query := `
		INSERT INTO tenant_settings (id, user_id, tenant_id, settings_json, is_tenant_wide, legacy_user)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = db.ExecContext(ctx, query,
		settings.ID,
		userID,
		settings.TenantID,
		blob,
		settings.IsTenantWide,
		settings.LegacyUser,
	)
	if err != nil {
		return fmt.Errorf("inserting tenant settings: %w", err)
	}

	s.logger.Debug("created tenant settings", "id", settings.ID, "tenant_id", settings.TenantID, "tenant_wide", settings.IsTenantWide)
	return nil
}

// CountTenantSettings returns the number of tenant-scoped settings rows.
func (s *SQLiteStore) CountTenantSettings(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tenant_settings").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting tenant settings: %w", err)
	}
	return count, nil
}
