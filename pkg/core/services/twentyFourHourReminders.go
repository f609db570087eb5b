package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/intergroup-dev/volunteer-shifts/pkg/core/model"
)

// TwentyFourHourReminderStore defines the database operations needed by the
// 24-hour reminder sweep
type TwentyFourHourReminderStore interface {
	ListShiftsAwaiting24HourReminder(ctx context.Context, dates []string) ([]model.Shift, error)
	ListTimeSlots(ctx context.Context) ([]model.TimeSlot, error)
	ListVolunteersByID(ctx context.Context, ids []string) (map[string]model.Volunteer, error)
	MarkTwentyFourHourReminderSent(ctx context.Context, shiftID string) error
}

// SendTwentyFourHourReminders emails confirmed volunteers whose shift starts
// 23 to 25 hours from now. One email per shift, not batched: each embeds a
// shift-specific cancel link. The flag is set per shift after its email goes
// out, keeping re-runs idempotent.
func SendTwentyFourHourReminders(
	ctx context.Context,
	store TwentyFourHourReminderStore,
	notifier Notifier,
	logger *zap.Logger,
	now time.Time,
) (*SweepResult, error) {
	logger.Debug("Starting 24-hour reminder sweep")

	windowStart := now.UTC().Add(23 * time.Hour)
	windowEnd := now.UTC().Add(25 * time.Hour)

	candidates, err := store.ListShiftsAwaiting24HourReminder(ctx, datesCovering(windowStart, windowEnd))
	if err != nil {
		return nil, fmt.Errorf("failed to query confirmed shifts: %w", err)
	}

	slots, err := store.ListTimeSlots(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch time slots: %w", err)
	}
	slotsByID := timeSlotMap(slots)

	// Refine the date-level query to the exact start window
	var shifts []model.Shift
	for _, shift := range candidates {
		start, ok := shiftStart(shift, slotsByID)
		if !ok {
			logger.Warn("Shift has unresolvable start time", zap.String("shift_id", shift.ID))
			continue
		}
		if !start.Before(windowStart) && !start.After(windowEnd) {
			shifts = append(shifts, shift)
		}
	}

	logger.Debug("Found shifts in 24-hour window", zap.Int("count", len(shifts)))

	result := &SweepResult{Candidates: len(shifts)}
	if len(shifts) == 0 {
		logger.Info("No 24-hour reminders needed")
		return result, nil
	}

	volunteerIDs := make([]string, 0, len(shifts))
	for _, shift := range shifts {
		volunteerIDs = append(volunteerIDs, shift.VolunteerID)
	}
	volunteers, err := store.ListVolunteersByID(ctx, volunteerIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch volunteers: %w", err)
	}

	for _, shift := range shifts {
		volunteer, ok := volunteers[shift.VolunteerID]
		if !ok {
			logger.Warn("Confirmed volunteer not found",
				zap.String("shift_id", shift.ID),
				zap.String("volunteer_id", shift.VolunteerID))
			continue
		}

		summary := ShiftSummary{Shift: shift, TimeSlot: slotsByID[shift.TimeSlotID]}
		if err := notifier.SendTwentyFourHourReminder(ctx, volunteer, summary); err != nil {
			logger.Warn("Failed to send 24-hour reminder",
				zap.String("shift_id", shift.ID),
				zap.String("email", volunteer.Email),
				zap.Error(err))
			result.Failed = append(result.Failed, FailedNotification{
				ShiftID:     shift.ID,
				VolunteerID: volunteer.ID,
				Email:       volunteer.Email,
				Error:       err.Error(),
			})
			continue
		}

		if err := store.MarkTwentyFourHourReminderSent(ctx, shift.ID); err != nil {
			logger.Error("Failed to flag 24-hour reminder as sent",
				zap.String("shift_id", shift.ID),
				zap.Error(err))
			result.Failed = append(result.Failed, FailedNotification{
				ShiftID:     shift.ID,
				VolunteerID: volunteer.ID,
				Email:       volunteer.Email,
				Error:       fmt.Sprintf("reminder sent but flagging failed: %v", err),
			})
			continue
		}

		logger.Info("Sent 24-hour reminder",
			zap.String("shift_id", shift.ID),
			zap.String("email", volunteer.Email),
			zap.String("date", shift.Date))
		result.Sent++
	}

	logger.Info("Completed 24-hour reminder sweep",
		zap.Int("sent", result.Sent),
		zap.Int("failed", len(result.Failed)))

	return result, nil
}
