package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/intergroup-dev/volunteer-shifts/pkg/core/model"
	"github.com/intergroup-dev/volunteer-shifts/pkg/db"
)

const requestColumns = `id, shift_id, volunteer_id, requested_slot, status,
		requested_at, resolved_at, resolved_by_admin`

func scanRequest(row pgx.Row) (*model.ShiftRequest, error) {
	var r model.ShiftRequest
	if err := row.Scan(
		&r.ID, &r.ShiftID, &r.VolunteerID, &r.RequestedSlot, &r.Status,
		&r.RequestedAt, &r.ResolvedAt, &r.ResolvedByAdmin,
	); err != nil {
		return nil, err
	}
	return &r, nil
}

// GetShiftRequest retrieves a single shift request by ID
func (d *DB) GetShiftRequest(ctx context.Context, id string) (*model.ShiftRequest, error) {
	row := d.pool.QueryRow(ctx, `
		SELECT `+requestColumns+`
		FROM shift_request
		WHERE id = $1
	`, id)
	request, err := scanRequest(row)
	if err != nil {
		return nil, notFound(err)
	}
	return request, nil
}

// ListShiftRequests retrieves requests in the given status, oldest first
func (d *DB) ListShiftRequests(ctx context.Context, status model.RequestStatus) ([]model.ShiftRequest, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT `+requestColumns+`
		FROM shift_request
		WHERE status = $1
		ORDER BY requested_at
	`, status)
	if err != nil {
		return nil, fmt.Errorf("failed to query shift requests: %w", err)
	}
	defer rows.Close()

	var requests []model.ShiftRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan shift request: %w", err)
		}
		requests = append(requests, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating shift requests: %w", err)
	}

	return requests, nil
}

// HasPendingRequest reports whether the volunteer already has a pending
// request for the given slot on the given shift
func (d *DB) HasPendingRequest(ctx context.Context, shiftID, volunteerID string, slot model.SlotType) (bool, error) {
	var exists bool
	err := d.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM shift_request
			WHERE shift_id = $1 AND volunteer_id = $2 AND requested_slot = $3 AND status = 'pending'
		)
	`, shiftID, volunteerID, slot).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check for pending request: %w", err)
	}
	return exists, nil
}

// insertShiftRequest inserts a request record. The partial unique index on
// pending rows turns a concurrent duplicate into ErrDuplicate.
func insertShiftRequest(ctx context.Context, ex execer, request *model.ShiftRequest) error {
	_, err := ex.Exec(ctx, `
		INSERT INTO shift_request (
			id, shift_id, volunteer_id, requested_slot, status,
			requested_at, resolved_at, resolved_by_admin
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		request.ID, request.ShiftID, request.VolunteerID, request.RequestedSlot,
		request.Status, request.RequestedAt, request.ResolvedAt, request.ResolvedByAdmin,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return db.ErrDuplicate
		}
		return fmt.Errorf("failed to insert shift request: %w", err)
	}
	return nil
}

// InsertShiftRequest inserts a new shift request record
func (d *DB) InsertShiftRequest(ctx context.Context, request *model.ShiftRequest) error {
	return insertShiftRequest(ctx, d.pool, request)
}

// SaveResolvedRequest commits an approval or rejection in one transaction.
// For approvals shift carries the version-checked slot assignment; for
// rejections shift is nil and only the request and audit entry are written.
func (d *DB) SaveResolvedRequest(ctx context.Context, request *model.ShiftRequest, shift *model.Shift, entry *model.AuditLogEntry) error {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if shift != nil {
		if err := updateShift(ctx, tx, shift); err != nil {
			return err
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE shift_request
		SET status = $2, resolved_at = $3, resolved_by_admin = $4
		WHERE id = $1
	`, request.ID, request.Status, request.ResolvedAt, request.ResolvedByAdmin)
	if err != nil {
		return fmt.Errorf("failed to update shift request %s: %w", request.ID, err)
	}

	if err := insertAuditEntry(ctx, tx, entry); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit resolved request: %w", err)
	}
	return nil
}
