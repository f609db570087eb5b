package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/intergroup-dev/volunteer-shifts/pkg/core/model"
)

// MonthPublishStore defines the database operations needed to publish a month
type MonthPublishStore interface {
	ListAssignedShiftsInMonth(ctx context.Context, fromDate, toDate string) ([]model.Shift, error)
	ListTimeSlots(ctx context.Context) ([]model.TimeSlot, error)
	ListVolunteersByID(ctx context.Context, ids []string) (map[string]model.Volunteer, error)
	MarkMonthPublished(ctx context.Context, shiftIDs []string, publishedAt time.Time) error
}

// PublishMonthResult summarizes a month publication
type PublishMonthResult struct {
	Shifts int
	Sent   int
	Failed []FailedNotification
}

// PublishMonth stamps every assigned shift in the month as published, which
// starts the 7-day confirmation clock, and sends each volunteer one
// consolidated email listing their shifts with confirm/decline links. Email
// failures are non-fatal: the publication stamp is the authoritative change
// and the reminder sweep will chase unconfirmed shifts regardless.
func PublishMonth(
	ctx context.Context,
	store MonthPublishStore,
	notifier Notifier,
	logger *zap.Logger,
	year int,
	month time.Month,
	now time.Time,
) (*PublishMonthResult, error) {
	firstDay := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	lastDay := firstDay.AddDate(0, 1, -1)

	logger.Info("Publishing month",
		zap.Int("year", year),
		zap.String("month", month.String()))

	shifts, err := store.ListAssignedShiftsInMonth(ctx, firstDay.Format("2006-01-02"), lastDay.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("failed to query shifts for %d-%02d: %w", year, month, err)
	}

	result := &PublishMonthResult{Shifts: len(shifts)}
	if len(shifts) == 0 {
		logger.Info("No assigned shifts in month, nothing to publish")
		return result, nil
	}

	shiftIDs := make([]string, 0, len(shifts))
	for _, shift := range shifts {
		shiftIDs = append(shiftIDs, shift.ID)
	}
	if err := store.MarkMonthPublished(ctx, shiftIDs, now.UTC()); err != nil {
		return nil, fmt.Errorf("failed to stamp month publication: %w", err)
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

		if err := notifier.SendMonthlyAssignments(ctx, volunteer, summaries); err != nil {
			logger.Warn("Failed to send monthly assignment email",
				zap.String("email", volunteer.Email),
				zap.Error(err))
			result.Failed = append(result.Failed, FailedNotification{
				VolunteerID: volunteerID,
				Email:       volunteer.Email,
				Error:       err.Error(),
			})
			continue
		}

		logger.Info("Sent monthly assignment email",
			zap.String("email", volunteer.Email),
			zap.Int("shifts", len(summaries)))
		result.Sent++
	}

	logger.Info("Completed month publication",
		zap.Int("shifts", result.Shifts),
		zap.Int("emails_sent", result.Sent),
		zap.Int("emails_failed", len(result.Failed)))

	return result, nil
}
