// ABOUTME: Legacy single-tenant table access for the migration engine
// ABOUTME: Reads pre-migration users/conversations/settings; writes only stage test fixtures

package store

import (
	"context"
	"database/sql"
	"fmt"
)

// CreateLegacyUser inserts a pre-migration user row. Exists so deployments
// and tests can stage legacy state; the migration engine never writes here.
func (s *SQLiteStore) CreateLegacyUser(ctx context.Context, user *LegacyUser) error {
	query := `
		INSERT INTO users (id, username, username_lower, password_hash, admin)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		user.ID,
		user.Username,
		user.UsernameLower,
		user.PasswordHash,
		user.Admin,
	)
	if err != nil {
		return fmt.Errorf("inserting legacy user: %w", err)
	}
	return nil
}

// CreateLegacyConversation inserts a pre-migration conversation row.
func (s *SQLiteStore) CreateLegacyConversation(ctx context.Context, conv *LegacyConversation) error {
	data, err := marshalJSON(conv.Data)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO conversations (id, name, user, is_public, data_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		conv.ID,
		conv.Name,
		conv.User,
		conv.IsPublic,
		data,
		formatTime(conv.CreatedAt),
		formatTime(conv.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting legacy conversation: %w", err)
	}
	return nil
}

// CreateLegacySettings inserts a pre-migration settings row.
func (s *SQLiteStore) CreateLegacySettings(ctx context.Context, settings *LegacySettings) error {
	blob, err := marshalJSON(settings.Settings)
	if err != nil {
		return err
	}

	query := `INSERT INTO settings (id, user, settings_json) VALUES (?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query, settings.ID, settings.User, blob)
	if err != nil {
		return fmt.Errorf("inserting legacy settings: %w", err)
	}
	return nil
}

// ListLegacyUsers returns all pre-migration users in insertion order. The
// ordering matters: the migration engine promotes the first user to admin.
func (s *SQLiteStore) ListLegacyUsers(ctx context.Context) ([]*LegacyUser, error) {
	query := `SELECT id, username, username_lower, password_hash, admin FROM users ORDER BY rowid ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying legacy users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []*LegacyUser
	for rows.Next() {
		var user LegacyUser
		if err := rows.Scan(&user.ID, &user.Username, &user.UsernameLower, &user.PasswordHash, &user.Admin); err != nil {
			return nil, fmt.Errorf("scanning legacy user: %w", err)
		}
		users = append(users, &user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating legacy users: %w", err)
	}

	return users, nil
}

// ListLegacyConversations returns all pre-migration conversations.
func (s *SQLiteStore) ListLegacyConversations(ctx context.Context) ([]*LegacyConversation, error) {
	query := `SELECT id, name, user, is_public, data_json, created_at, updated_at FROM conversations ORDER BY rowid ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying legacy conversations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var convs []*LegacyConversation
	for rows.Next() {
		var conv LegacyConversation
		var data sql.NullString
		var createdAtStr, updatedAtStr string

		if err := rows.Scan(&conv.ID, &conv.Name, &conv.User, &conv.IsPublic, &data, &createdAtStr, &updatedAtStr); err != nil {
			return nil, fmt.Errorf("scanning legacy conversation: %w", err)
		}

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
		return nil, fmt.Errorf("iterating legacy conversations: %w", err)
	}

	return convs, nil
}

// ListLegacySettings returns all pre-migration settings rows.
func (s *SQLiteStore) ListLegacySettings(ctx context.Context) ([]*LegacySettings, error) {
	query := `SELECT id, user, settings_json FROM settings ORDER BY rowid ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying legacy settings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var all []*LegacySettings
	for rows.Next() {
		var settings LegacySettings
		var blob sql.NullString

		if err := rows.Scan(&settings.ID, &settings.User, &blob); err != nil {
			return nil, fmt.Errorf("scanning legacy settings: %w", err)
		}

		var err error
		settings.Settings, err = unmarshalJSON(blob)
		if err != nil {
			return nil, err
		}
		all = append(all, &settings)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating legacy settings: %w", err)
	}

	return all, nil
}

// CountLegacyUsers returns the number of pre-migration user rows.
func (s *SQLiteStore) CountLegacyUsers(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting legacy users: %w", err)
	}
	return count, nil
}

// CountLegacyConversations returns the number of pre-migration conversations.
func (s *SQLiteStore) CountLegacyConversations(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM conversations").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting legacy conversations: %w", err)
	}
	return count, nil
}

// CountLegacySettings returns the number of pre-migration settings rows.
func (s *SQLiteStore) CountLegacySettings(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM settings").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting legacy settings: %w", err)
	}
	return count, nil
}
