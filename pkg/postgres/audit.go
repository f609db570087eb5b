package postgres

import (
	"context"
	"fmt"

	"github.com/intergroup-dev/volunteer-shifts/pkg/core/model"
)

func insertAuditEntry(ctx context.Context, ex execer, entry *model.AuditLogEntry) error {
	_, err := ex.Exec(ctx, `
		INSERT INTO audit_log (id, shift_id, volunteer_id, admin_email, action, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, entry.ID, entry.ShiftID, entry.VolunteerID, entry.AdminEmail, entry.Action, entry.Details, entry.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// InsertAuditEntry records a state change in the audit trail
func (d *DB) InsertAuditEntry(ctx context.Context, entry *model.AuditLogEntry) error {
	return insertAuditEntry(ctx, d.pool, entry)
}

// ListAuditEntriesForShift retrieves a shift's audit trail, oldest first
func (d *DB) ListAuditEntriesForShift(ctx context.Context, shiftID string) ([]model.AuditLogEntry, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id, shift_id, volunteer_id, admin_email, action, details, created_at
		FROM audit_log
		WHERE shift_id = $1
		ORDER BY created_at
	`, shiftID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []model.AuditLogEntry
	for rows.Next() {
		var e model.AuditLogEntry
		if err := rows.Scan(&e.ID, &e.ShiftID, &e.VolunteerID, &e.AdminEmail, &e.Action, &e.Details, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit entries: %w", err)
	}

	return entries, nil
}
