package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/intergroup-dev/volunteer-shifts/pkg/core/model"
	"github.com/intergroup-dev/volunteer-shifts/pkg/db"
)

const shiftColumns = `id, shift_date, time_slot_id, role, status,
		volunteer_id, backup1_volunteer_id, backup2_volunteer_id,
		assigned_at, confirmed_at, month_published_at,
		reminder_7day_sent, reminder_24hour_sent, version`

// execer is satisfied by both the pool and a transaction, so shift writes can
// run standalone or inside a larger commit
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func scanShift(row pgx.Row) (*model.Shift, error) {
	var s model.Shift
	var date time.Time
	var assignedAt, confirmedAt, publishedAt *time.Time
	if err := row.Scan(
		&s.ID, &date, &s.TimeSlotID, &s.Role, &s.Status,
		&s.VolunteerID, &s.Backup1VolunteerID, &s.Backup2VolunteerID,
		&assignedAt, &confirmedAt, &publishedAt,
		&s.Reminder7DaySent, &s.Reminder24HourSent, &s.Version,
	); err != nil {
		return nil, err
	}
	s.Date = date.Format("2006-01-02")
	s.AssignedAt = assignedAt
	s.ConfirmedAt = confirmedAt
	s.MonthPublishedAt = publishedAt
	return &s, nil
}

func collectShifts(rows pgx.Rows) ([]model.Shift, error) {
	defer rows.Close()

	var shifts []model.Shift
	for rows.Next() {
		s, err := scanShift(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan shift: %w", err)
		}
		shifts = append(shifts, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating shifts: %w", err)
	}
	return shifts, nil
}

// GetShift retrieves a single shift by ID
func (d *DB) GetShift(ctx context.Context, id string) (*model.Shift, error) {
	row := d.pool.QueryRow(ctx, `
		SELECT `+shiftColumns+`
		FROM shift
		WHERE id = $1
	`, id)
	shift, err := scanShift(row)
	if err != nil {
		return nil, notFound(err)
	}
	return shift, nil
}

// GetShiftByDateSlot retrieves the shift on a (date, time slot) pair
func (d *DB) GetShiftByDateSlot(ctx context.Context, date, timeSlotID string) (*model.Shift, error) {
	row := d.pool.QueryRow(ctx, `
		SELECT `+shiftColumns+`
		FROM shift
		WHERE shift_date = $1 AND time_slot_id = $2
	`, date, timeSlotID)
	shift, err := scanShift(row)
	if err != nil {
		return nil, notFound(err)
	}
	return shift, nil
}

// InsertShift inserts a new shift record. A duplicate (date, time slot) pair
// returns ErrDuplicate.
func (d *DB) InsertShift(ctx context.Context, shift *model.Shift) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO shift (
			id, shift_date, time_slot_id, role, status,
			volunteer_id, backup1_volunteer_id, backup2_volunteer_id,
			assigned_at, confirmed_at, month_published_at,
			reminder_7day_sent, reminder_24hour_sent, version
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		shift.ID, shift.Date, shift.TimeSlotID, shift.Role, shift.Status,
		shift.VolunteerID, shift.Backup1VolunteerID, shift.Backup2VolunteerID,
		shift.AssignedAt, shift.ConfirmedAt, shift.MonthPublishedAt,
		shift.Reminder7DaySent, shift.Reminder24HourSent, shift.Version,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return db.ErrDuplicate
		}
		return fmt.Errorf("failed to insert shift: %w", err)
	}
	return nil
}

// updateShift writes every mutable shift column, conditional on the version
// the caller read. Zero rows affected means another writer committed first.
func updateShift(ctx context.Context, ex execer, shift *model.Shift) error {
	tag, err := ex.Exec(ctx, `
		UPDATE shift
		SET status = $2,
			volunteer_id = $3,
			backup1_volunteer_id = $4,
			backup2_volunteer_id = $5,
			assigned_at = $6,
			confirmed_at = $7,
			month_published_at = $8,
			reminder_7day_sent = $9,
			reminder_24hour_sent = $10,
			version = version + 1
		WHERE id = $1 AND version = $11
	`,
		shift.ID, shift.Status,
		shift.VolunteerID, shift.Backup1VolunteerID, shift.Backup2VolunteerID,
		shift.AssignedAt, shift.ConfirmedAt, shift.MonthPublishedAt,
		shift.Reminder7DaySent, shift.Reminder24HourSent, shift.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update shift %s: %w", shift.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrConflict
	}
	shift.Version++
	return nil
}

// UpdateShift persists a mutated shift with an optimistic version check
func (d *DB) UpdateShift(ctx context.Context, shift *model.Shift) error {
	return updateShift(ctx, d.pool, shift)
}

// ListOpenShifts retrieves open shifts on or after the given date
func (d *DB) ListOpenShifts(ctx context.Context, fromDate string) ([]model.Shift, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT `+shiftColumns+`
		FROM shift
		WHERE status = 'open' AND shift_date >= $1
		ORDER BY shift_date, time_slot_id
	`, fromDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query open shifts: %w", err)
	}
	return collectShifts(rows)
}

// ListShiftsForSevenDayReminder retrieves assigned, unreminded future shifts
// whose month was published at or before the given instant
func (d *DB) ListShiftsForSevenDayReminder(ctx context.Context, publishedBefore time.Time, fromDate string) ([]model.Shift, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT `+shiftColumns+`
		FROM shift
		WHERE status = 'assigned'
		  AND volunteer_id <> ''
		  AND month_published_at IS NOT NULL
		  AND month_published_at <= $1
		  AND reminder_7day_sent = FALSE
		  AND shift_date >= $2
	`, publishedBefore, fromDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query shifts for 7-day reminders: %w", err)
	}
	return collectShifts(rows)
}

// ListShiftsAwaiting24HourReminder retrieves confirmed, unreminded shifts on
// the given dates. The caller narrows to the exact start-time window.
func (d *DB) ListShiftsAwaiting24HourReminder(ctx context.Context, dates []string) ([]model.Shift, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT `+shiftColumns+`
		FROM shift
		WHERE status = 'confirmed'
		  AND reminder_24hour_sent = FALSE
		  AND shift_date = ANY($1)
	`, dates)
	if err != nil {
		return nil, fmt.Errorf("failed to query shifts for 24-hour reminders: %w", err)
	}
	return collectShifts(rows)
}

// ListAssignedShifts retrieves still-unconfirmed assigned shifts on the given
// dates
func (d *DB) ListAssignedShifts(ctx context.Context, dates []string) ([]model.Shift, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT `+shiftColumns+`
		FROM shift
		WHERE status = 'assigned'
		  AND volunteer_id <> ''
		  AND shift_date = ANY($1)
	`, dates)
	if err != nil {
		return nil, fmt.Errorf("failed to query assigned shifts: %w", err)
	}
	return collectShifts(rows)
}

// ListAssignedShiftsInMonth retrieves every staffed shift in the date range
func (d *DB) ListAssignedShiftsInMonth(ctx context.Context, fromDate, toDate string) ([]model.Shift, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT `+shiftColumns+`
		FROM shift
		WHERE status <> 'open'
		  AND volunteer_id <> ''
		  AND shift_date BETWEEN $1 AND $2
	`, fromDate, toDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query assigned shifts in month: %w", err)
	}
	return collectShifts(rows)
}

// MarkSevenDayRemindersSent flags the given shifts as having had their 7-day
// reminder sent
func (d *DB) MarkSevenDayRemindersSent(ctx context.Context, shiftIDs []string) error {
	_, err := d.pool.Exec(ctx, `
		UPDATE shift SET reminder_7day_sent = TRUE WHERE id = ANY($1)
	`, shiftIDs)
	if err != nil {
		return fmt.Errorf("failed to mark 7-day reminders sent: %w", err)
	}
	return nil
}

// MarkTwentyFourHourReminderSent flags a shift as having had its 24-hour
// reminder sent
func (d *DB) MarkTwentyFourHourReminderSent(ctx context.Context, shiftID string) error {
	_, err := d.pool.Exec(ctx, `
		UPDATE shift SET reminder_24hour_sent = TRUE WHERE id = $1
	`, shiftID)
	if err != nil {
		return fmt.Errorf("failed to mark 24-hour reminder sent: %w", err)
	}
	return nil
}

// MarkMonthPublished stamps the publication instant on the given shifts
func (d *DB) MarkMonthPublished(ctx context.Context, shiftIDs []string, publishedAt time.Time) error {
	_, err := d.pool.Exec(ctx, `
		UPDATE shift SET month_published_at = $2 WHERE id = ANY($1)
	`, shiftIDs, publishedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to mark month published: %w", err)
	}
	return nil
}

// SaveReopenedShift commits an auto-reopen: the version-checked shift update
// and the audit entry land in one transaction
func (d *DB) SaveReopenedShift(ctx context.Context, shift *model.Shift, entry *model.AuditLogEntry) error {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := updateShift(ctx, tx, shift); err != nil {
		return err
	}
	if err := insertAuditEntry(ctx, tx, entry); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit reopened shift: %w", err)
	}
	return nil
}
