package postgres

import (
	"context"
	"fmt"

	"github.com/intergroup-dev/volunteer-shifts/pkg/core/model"
)

// GetTimeSlot retrieves a single time slot by ID
func (d *DB) GetTimeSlot(ctx context.Context, id string) (*model.TimeSlot, error) {
	var ts model.TimeSlot
	err := d.pool.QueryRow(ctx, `
		SELECT id, label, start_time, duration_minutes, is_active, sort_order
		FROM time_slot
		WHERE id = $1
	`, id).Scan(&ts.ID, &ts.Label, &ts.StartTime, &ts.DurationMinutes, &ts.IsActive, &ts.SortOrder)
	if err != nil {
		return nil, notFound(err)
	}
	return &ts, nil
}

// ListTimeSlots retrieves the whole time-slot catalogue in display order
func (d *DB) ListTimeSlots(ctx context.Context) ([]model.TimeSlot, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id, label, start_time, duration_minutes, is_active, sort_order
		FROM time_slot
		ORDER BY sort_order
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query time slots: %w", err)
	}
	defer rows.Close()

	var slots []model.TimeSlot
	for rows.Next() {
		var ts model.TimeSlot
		if err := rows.Scan(&ts.ID, &ts.Label, &ts.StartTime, &ts.DurationMinutes, &ts.IsActive, &ts.SortOrder); err != nil {
			return nil, fmt.Errorf("failed to scan time slot: %w", err)
		}
		slots = append(slots, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating time slots: %w", err)
	}

	return slots, nil
}
