package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/intergroup-dev/volunteer-shifts/pkg/core/model"
	"github.com/intergroup-dev/volunteer-shifts/pkg/db"
)

// GetActionToken retrieves a token by its presented value
func (d *DB) GetActionToken(ctx context.Context, tokenValue string) (*model.ActionToken, error) {
	var t model.ActionToken
	err := d.pool.QueryRow(ctx, `
		SELECT id, token, shift_id, volunteer_id, action, expires_at, used_at, created_at
		FROM action_token
		WHERE token = $1
	`, tokenValue).Scan(&t.ID, &t.Token, &t.ShiftID, &t.VolunteerID, &t.Action, &t.ExpiresAt, &t.UsedAt, &t.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

// InsertActionToken inserts a new token record. A value collision returns
// ErrDuplicate so the issuer can mint a fresh value and retry.
func (d *DB) InsertActionToken(ctx context.Context, token *model.ActionToken) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO action_token (id, token, shift_id, volunteer_id, action, expires_at, used_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, token.ID, token.Token, token.ShiftID, token.VolunteerID, token.Action, token.ExpiresAt, token.UsedAt, token.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return db.ErrDuplicate
		}
		return fmt.Errorf("failed to insert action token: %w", err)
	}
	return nil
}

// consumeToken marks the token used, conditional on it still being unused
func consumeToken(ctx context.Context, ex execer, token *model.ActionToken) error {
	tag, err := ex.Exec(ctx, `
		UPDATE action_token SET used_at = $2 WHERE id = $1 AND used_at IS NULL
	`, token.ID, token.UsedAt)
	if err != nil {
		return fmt.Errorf("failed to consume token %s: %w", token.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrConflict
	}
	return nil
}

// SaveShiftAndConsumeToken commits the authorized shift mutation, marks the
// token used and writes the audit entry in one transaction
func (d *DB) SaveShiftAndConsumeToken(ctx context.Context, shift *model.Shift, token *model.ActionToken, entry *model.AuditLogEntry) error {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := updateShift(ctx, tx, shift); err != nil {
		return err
	}
	if err := consumeToken(ctx, tx, token); err != nil {
		return err
	}
	if err := insertAuditEntry(ctx, tx, entry); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit token action: %w", err)
	}
	return nil
}

// SaveRequestAndConsumeToken inserts the pending request and marks the token
// used in one transaction
func (d *DB) SaveRequestAndConsumeToken(ctx context.Context, request *model.ShiftRequest, token *model.ActionToken, entry *model.AuditLogEntry) error {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := insertShiftRequest(ctx, tx, request); err != nil {
		return err
	}
	if err := consumeToken(ctx, tx, token); err != nil {
		return err
	}
	if err := insertAuditEntry(ctx, tx, entry); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit shift claim: %w", err)
	}
	return nil
}

// DeleteSpentTokens removes tokens that are used or past expiry
func (d *DB) DeleteSpentTokens(ctx context.Context, now time.Time) (int64, error) {
	tag, err := d.pool.Exec(ctx, `
		DELETE FROM action_token WHERE used_at IS NOT NULL OR expires_at <= $1
	`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete spent tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
