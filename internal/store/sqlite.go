// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides tenant/user/invitation persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// Ensure SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Pragmas apply per connection, and SQLite allows one writer at a time.
	// A single pooled connection makes the pragmas stick and queues
	// concurrent transactions instead of surfacing SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Wait for competing writers from other processes instead of failing
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS tenants (
			id            TEXT PRIMARY KEY,
			name          TEXT NOT NULL,
			domain        TEXT UNIQUE,
			status        TEXT NOT NULL DEFAULT 'active',
			settings_json TEXT,
			created_at    TEXT NOT NULL,
			updated_at    TEXT NOT NULL,

			CHECK (status IN ('active', 'suspended', 'inactive'))
		);

		CREATE INDEX IF NOT EXISTS idx_tenants_status ON tenants(status);

		CREATE TABLE IF NOT EXISTS tenant_users (
			id             TEXT PRIMARY KEY,
			username       TEXT NOT NULL,
			username_lower TEXT NOT NULL,
			email          TEXT NOT NULL,
			password_hash  TEXT NOT NULL,
			tenant_id      TEXT NOT NULL,
			role           TEXT NOT NULL DEFAULT 'user',
			is_active      INTEGER NOT NULL DEFAULT 1,
			last_login     TEXT,
			failed_logins  INTEGER NOT NULL DEFAULT 0,
			locked_until   TEXT,
			legacy_admin   INTEGER NOT NULL DEFAULT 0,
			created_at     TEXT NOT NULL,
			updated_at     TEXT NOT NULL,

			FOREIGN KEY (tenant_id) REFERENCES tenants(id),
			CHECK (role IN ('user', 'admin', 'super_admin')),
			UNIQUE (username_lower, tenant_id),
			UNIQUE (email, tenant_id)
		);

		CREATE INDEX IF NOT EXISTS idx_tenant_users_tenant ON tenant_users(tenant_id);
		CREATE INDEX IF NOT EXISTS idx_tenant_users_username ON tenant_users(username_lower);
		CREATE INDEX IF NOT EXISTS idx_tenant_users_email ON tenant_users(email);

		CREATE TABLE IF NOT EXISTS tenant_invitations (
			id          TEXT PRIMARY KEY,
			email       TEXT NOT NULL,
			tenant_id   TEXT NOT NULL,
			role        TEXT NOT NULL DEFAULT 'user',
			invited_by  TEXT NOT NULL,
			token       TEXT NOT NULL UNIQUE,
			expires_at  TEXT NOT NULL,
			accepted_at TEXT,
			is_used     INTEGER NOT NULL DEFAULT 0,
			created_at  TEXT NOT NULL,

			FOREIGN KEY (tenant_id) REFERENCES tenants(id),
			CHECK (role IN ('user', 'admin', 'super_admin'))
		);

		CREATE INDEX IF NOT EXISTS idx_invitations_token ON tenant_invitations(token);
		CREATE INDEX IF NOT EXISTS idx_invitations_email ON tenant_invitations(email);

		CREATE TABLE IF NOT EXISTS tenant_conversations (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			user_id     TEXT,
			tenant_id   TEXT NOT NULL,
			is_public   INTEGER NOT NULL DEFAULT 0,
			data_json   TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL,
			legacy_user TEXT NOT NULL DEFAULT '',

			FOREIGN KEY (tenant_id) REFERENCES tenants(id)
		);

		CREATE INDEX IF NOT EXISTS idx_tenant_conversations_tenant ON tenant_conversations(tenant_id);
		CREATE INDEX IF NOT EXISTS idx_tenant_conversations_user ON tenant_conversations(user_id);

		CREATE TABLE IF NOT EXISTS tenant_settings (
			id             TEXT PRIMARY KEY,
			user_id        TEXT,
			tenant_id      TEXT NOT NULL,
			settings_json  TEXT,
			is_tenant_wide INTEGER NOT NULL DEFAULT 0,
			legacy_user    TEXT NOT NULL DEFAULT '',

			FOREIGN KEY (tenant_id) REFERENCES tenants(id)
		);

		CREATE INDEX IF NOT EXISTS idx_tenant_settings_tenant ON tenant_settings(tenant_id);

		CREATE TABLE IF NOT EXISTS users (
			id             TEXT PRIMARY KEY,
			username       TEXT NOT NULL,
			username_lower TEXT NOT NULL,
			password_hash  TEXT NOT NULL,
			admin          INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS conversations (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			user       TEXT NOT NULL DEFAULT '',
			is_public  INTEGER NOT NULL DEFAULT 0,
			data_json  TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS settings (
			id            TEXT PRIMARY KEY,
			user          TEXT NOT NULL DEFAULT '',
			settings_json TEXT
		);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// execer abstracts *sql.DB and *sql.Tx so insert helpers can run inside or
// outside a transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// inTx runs fn inside a transaction, committing on nil and rolling back on
// error. Every composite mutation goes through here so partial failure leaves
// either the pre- or post-state, never a mix.
func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("rollback failed", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// isUniqueConstraintError checks if an error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
	// SQLite returns "UNIQUE constraint failed" in the error message
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") || strings.Contains(err.Error(), "unique constraint"))
}

// formatTime renders a timestamp in the RFC3339 text form used by the schema.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// parseTime parses an RFC3339 timestamp column.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

// nullableTime renders an optional timestamp column.
func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

// scanNullableTime parses an optional timestamp column.
func scanNullableTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// marshalJSON renders a settings/data blob column. Empty maps are stored as
// NULL to keep rows compact.
func marshalJSON(m map[string]any) (sql.NullString, error) {
	if len(m) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshaling json column: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// unmarshalJSON parses a settings/data blob column. NULL becomes an empty map.
func unmarshalJSON(ns sql.NullString) (map[string]any, error) {
	if !ns.Valid || ns.String == "" {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(ns.String), &m); err != nil {
		return nil, fmt.Errorf("unmarshaling json column: %w", err)
	}
	return m, nil
}
