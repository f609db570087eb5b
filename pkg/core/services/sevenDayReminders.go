package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/intergroup-dev/volunteer-shifts/pkg/core/model"
)

// SevenDayReminderStore defines the database operations needed by the 7-day
// reminder sweep
type SevenDayReminderStore interface {
	ListShiftsForSevenDayReminder(ctx context.Context, publishedBefore time.Time, fromDate string) ([]model.Shift, error)
	ListTimeSlots(ctx context.Context) ([]model.TimeSlot, error)
	ListVolunteersByID(ctx context.Context, ids []string) (map[string]model.Volunteer, error)
	MarkSevenDayRemindersSent(ctx context.Context, shiftIDs []string) error
}

// SweepResult summarizes one sweep run
type SweepResult struct {
	Candidates int
	Sent       int
	Failed     []FailedNotification
}

// SendSevenDayReminders emails volunteers whose shifts are still unconfirmed
// seven or more days after month publication, one consolidated email per
// volunteer. Shifts are flagged only after their email goes out, so a failed
// or interrupted run retries those shifts next time and a completed run never
// re-notifies (idempotent under re-run). now is the single time snapshot for
// the whole invocation.
func SendSevenDayReminders(
	ctx context.Context,
	store SevenDayReminderStore,
	notifier Notifier,
	logger *zap.Logger,
	now time.Time,
) (*SweepResult, error) {
	logger.Debug("Starting 7-day reminder sweep")

	publishedBefore := now.UTC().Add(-7 * 24 * time.Hour)
	fromDate := now.UTC().Format("2006-01-02")

	shifts, err := store.ListShiftsForSevenDayReminder(ctx, publishedBefore, fromDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query shifts needing 7-day reminders: %w", err)
	}
	logger.Debug("Found shifts needing 7-day reminders", zap.Int("count", len(shifts)))

	result := &SweepResult{Candidates: len(shifts)}
	if len(shifts) == 0 {
		logger.Info("No 7-day reminders needed")
		return result, nil
	}

	slots, err := store.ListTimeSlots(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch time slots: %w", err)
	}
	slotsByID := timeSlotMap(slots)

	grouped := groupShiftsByVolunteer(shifts)
	volunteerIDs := make([]string, 0, len(grouped))
	for id := range grouped {
		volunteerIDs = append(volunteerIDs, id)
	}

	volunteers, err := store.ListVolunteersByID(ctx, volunteerIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch volunteers: %w", err)
	}

	for volunteerID, volunteerShifts := range grouped {
		volunteer, ok := volunteers[volunteerID]
		if !ok {
			logger.Warn("Assigned volunteer not found", zap.String("volunteer_id", volunteerID))
			continue
		}

		summaries := summarize(volunteerShifts, slotsByID, logger)
		if len(summaries) == 0 {
			continue
		}

		if err := notifier.SendSevenDayReminder(ctx, volunteer, summaries); err != nil {
			logger.Warn("Failed to send 7-day reminder",
				zap.String("volunteer_id", volunteerID),
				zap.String("email", volunteer.Email),
				zap.Error(err))
			result.Failed = append(result.Failed, FailedNotification{
				VolunteerID: volunteerID,
				Email:       volunteer.Email,
				Error:       err.Error(),
			})
			continue
		}

		shiftIDs := make([]string, 0, len(summaries))
		for _, s := range summaries {
			shiftIDs = append(shiftIDs, s.Shift.ID)
		}
		if err := store.MarkSevenDayRemindersSent(ctx, shiftIDs); err != nil {
			// Flags stay unset; the next run re-sends for these shifts
			logger.Error("Failed to flag 7-day reminders as sent",
				zap.String("volunteer_id", volunteerID),
				zap.Strings("shift_ids", shiftIDs),
				zap.Error(err))
			result.Failed = append(result.Failed, FailedNotification{
				VolunteerID: volunteerID,
				Email:       volunteer.Email,
				Error:       fmt.Sprintf("reminder sent but flagging failed: %v", err),
			})
			continue
		}

		logger.Info("Sent 7-day reminder",
			zap.String("email", volunteer.Email),
			zap.Int("shifts", len(shiftIDs)))
		result.Sent++
	}

	logger.Info("Completed 7-day reminder sweep",
		zap.Int("sent", result.Sent),
		zap.Int("failed", len(result.Failed)))

	return result, nil
}
