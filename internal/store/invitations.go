// ABOUTME: Invitation entity store methods with atomic single-use acceptance
// ABOUTME: Token consumption and user creation happen in one transaction

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const invitationColumns = `id, email, tenant_id, role, invited_by, token, expires_at, accepted_at, is_used, created_at`

// CreateInvitation inserts a new invitation with a fresh token.
func (s *SQLiteStore) CreateInvitation(ctx context.Context, inv *Invitation) error {
	query := `
		INSERT INTO tenant_invitations (id, email, tenant_id, role, invited_by, token,
			expires_at, accepted_at, is_used, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		inv.ID,
		inv.Email,
		inv.TenantID,
		string(inv.Role),
		inv.InvitedBy,
		inv.Token,
		formatTime(inv.ExpiresAt),
		nullableTime(inv.AcceptedAt),
		inv.IsUsed,
		formatTime(inv.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting invitation: %w", err)
	}

	s.logger.Info("created invitation", "id", inv.ID, "tenant_id", inv.TenantID, "email", inv.Email, "expires_at", inv.ExpiresAt)
	return nil
}

// scanInvitation reads one invitation row.
func scanInvitation(row interface{ Scan(...any) error }) (*Invitation, error) {
	var inv Invitation
	var role, expiresAtStr, createdAtStr string
	var acceptedAt sql.NullString

	err := row.Scan(
		&inv.ID,
		&inv.Email,
		&inv.TenantID,
		&role,
		&inv.InvitedBy,
		&inv.Token,
		&expiresAtStr,
		&acceptedAt,
		&inv.IsUsed,
		&createdAtStr,
	)
	if err != nil {
		return nil, err
	}

	inv.Role = UserRole(role)

	inv.ExpiresAt, err = parseTime(expiresAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing expires_at: %w", err)
	}
	inv.AcceptedAt, err = scanNullableTime(acceptedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing accepted_at: %w", err)
	}
	inv.CreatedAt, err = parseTime(createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	return &inv, nil
}

// GetInvitationByToken retrieves an invitation by its unique token.
func (s *SQLiteStore) GetInvitationByToken(ctx context.Context, token string) (*Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM tenant_invitations WHERE token = ?`

	inv, err := scanInvitation(s.db.QueryRowContext(ctx, query, token))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvitationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying invitation: %w", err)
	}
	return inv, nil
}

// AcceptInvitation atomically consumes an invitation token and creates the
// invited user in one transaction. The guarded UPDATE on is_used is the
// serialization point: under concurrent accepts exactly one caller wins, the
// rest observe ErrInvitationUsed. There is no state where the token is marked
// used without the user row, or vice versa.
//
// Returns ErrInvitationNotFound, ErrInvitationUsed, or ErrInvitationExpired
// for token failures, and ErrUsernameExists or ErrEmailExists when the
// desired account collides with an existing user in the tenant.
func (s *SQLiteStore) AcceptInvitation(ctx context.Context, token string, user *TenantUser) error {
	now := time.Now()

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		// Atomic consume: only succeeds if the token exists, is unused, and
		// has not expired. This prevents TOCTOU races on double-accept.
		result, err := tx.ExecContext(ctx, `
			UPDATE tenant_invitations
			SET is_used = 1, accepted_at = ?
			WHERE token = ?
			  AND is_used = 0
			  AND expires_at > ?
		`, formatTime(now), token, formatTime(now))
		if err != nil {
			return fmt.Errorf("consuming invitation: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("getting rows affected: %w", err)
		}

		if rowsAffected == 0 {
			// Determine why the consume failed - still inside the tx so the
			// row cannot change underneath us.
			inv, err := scanInvitation(tx.QueryRowContext(ctx,
				`SELECT `+invitationColumns+` FROM tenant_invitations WHERE token = ?`, token))
			if errors.Is(err, sql.ErrNoRows) {
				return ErrInvitationNotFound
			}
			if err != nil {
				return fmt.Errorf("querying invitation: %w", err)
			}
			if inv.IsUsed {
				return ErrInvitationUsed
			}
			if now.After(inv.ExpiresAt) {
				return ErrInvitationExpired
			}
			return ErrInvitationNotFound
		}

		// The unique constraints on (username_lower, tenant_id) and
		// (email, tenant_id) reject duplicate accounts; a constraint hit
		// rolls back the token consumption with it.
		return s.createUser(ctx, tx, user)
	})
	if err != nil {
		return err
	}

	s.logger.Info("invitation accepted", "token_user", user.ID, "tenant_id", user.TenantID)
	return nil
}
