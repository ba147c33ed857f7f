// ABOUTME: File-backed session store with expiry and atomic writes
// ABOUTME: One JSON file per session; corrupt or expired records self-heal on read

package session

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrNotFound is returned when a session is absent, corrupt, or expired.
var ErrNotFound = errors.New("session not found")

// DefaultTimeout is the session lifetime when none is configured.
const DefaultTimeout = 24 * time.Hour

// Record is the persisted session payload. The JSON field names and ISO-8601
// timestamps are an external contract for operators; do not change them.
type Record struct {
	SessionID  string    `json:"session_id"`
	UserID     string    `json:"user_id"`
	Username   string    `json:"username"`
	Role       string    `json:"role"`
	TenantID   string    `json:"tenant_id"`
	TenantName string    `json:"tenant_name"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Store persists sessions as one file per session id under a directory.
// A session is only a pointer to a user id; callers must re-validate the
// identity against the user/tenant tables before trusting it.
type Store struct {
	dir     string
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a session store rooted at dir. The directory is created if
// needed; creation is idempotent so concurrent construction is safe.
func New(dir string, timeout time.Duration) (*Store, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating sessions directory: %w", err)
	}

	return &Store{
		dir:     dir,
		timeout: timeout,
		logger:  slog.Default().With("component", "session"),
	}, nil
}

// Timeout returns the configured session lifetime.
func (s *Store) Timeout() time.Duration {
	return s.timeout
}

// Create generates a fresh session id, persists the record, and returns the
// id. The record's SessionID, CreatedAt, and ExpiresAt fields are filled in.
// Creation opportunistically sweeps expired records.
func (s *Store) Create(rec *Record) (string, error) {
	id, err := generateSessionID()
	if err != nil {
		return "", fmt.Errorf("generating session id: %w", err)
	}

	now := time.Now()
	rec.SessionID = id
	rec.CreatedAt = now
	rec.ExpiresAt = now.Add(s.timeout)

	if err := s.write(rec); err != nil {
		return "", err
	}

	s.logger.Debug("created session", "session_id", id, "user_id", rec.UserID, "expires_at", rec.ExpiresAt)

	// Best effort: sweep expired records while we're here.
	s.cleanup()

	return id, nil
}

// Get returns the session record for id, or ErrNotFound if the session is
// absent, corrupt, or expired. Corrupt and expired files are deleted as a
// side effect of the read.
func (s *Store) Get(id string) (*Record, error) {
	path, err := s.pathFor(id)
	if err != nil {
		return nil, ErrNotFound
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading session file: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		// Corrupt record: treat as absent and remove it.
		s.logger.Warn("deleting corrupt session file", "session_id", id, "error", err)
		_ = os.Remove(path)
		return nil, ErrNotFound
	}

	if time.Now().After(rec.ExpiresAt) {
		s.logger.Debug("deleting expired session", "session_id", id)
		_ = os.Remove(path)
		return nil, ErrNotFound
	}

	return &rec, nil
}

// Delete removes the session for id. It is idempotent and reports whether a
// record was actually removed.
func (s *Store) Delete(id string) (bool, error) {
	path, err := s.pathFor(id)
	if err != nil {
		return false, nil
	}

	err = os.Remove(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("deleting session file: %w", err)
	}

	s.logger.Debug("deleted session", "session_id", id)
	return true, nil
}

// write persists a record atomically: marshal to a temp file in the same
// directory, then rename over the final path. A concurrent directory scan
// never observes a half-written record.
func (s *Store) write(rec *Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}

	path, err := s.pathFor(rec.SessionID)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, "session-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp session file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing session file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming session file: %w", err)
	}

	return nil
}

// cleanup removes expired and unreadable session files. Temp files from
// in-flight writes are skipped.
func (s *Store) cleanup() {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Warn("session cleanup scan failed", "error", err)
		return
	}

	now := time.Now()
	removed := 0

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}

		path := filepath.Join(s.dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			// File may have been deleted by a concurrent cleanup.
			continue
		}

		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			_ = os.Remove(path)
			removed++
			continue
		}
		if now.After(rec.ExpiresAt) {
			_ = os.Remove(path)
			removed++
		}
	}

	if removed > 0 {
		s.logger.Debug("cleaned up sessions", "removed", removed)
	}
}

// pathFor maps a session id to its file path. IDs are validated so a crafted
// id cannot escape the sessions directory.
func (s *Store) pathFor(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, "/\\") || strings.Contains(id, "..") {
		return "", fmt.Errorf("invalid session id")
	}
	return filepath.Join(s.dir, id+".json"), nil
}

// generateSessionID returns a 64-character hex id from 32 random bytes.
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
