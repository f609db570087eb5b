package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/intergroup-dev/volunteer-shifts/pkg/core/lifecycle"
	"github.com/intergroup-dev/volunteer-shifts/pkg/core/model"
	"github.com/intergroup-dev/volunteer-shifts/pkg/db"
)

// AutoReopenStore defines the database operations needed by the auto-reopen
// sweep
type AutoReopenStore interface {
	ListAssignedShifts(ctx context.Context, dates []string) ([]model.Shift, error)
	ListTimeSlots(ctx context.Context) ([]model.TimeSlot, error)
	ListVolunteersByID(ctx context.Context, ids []string) (map[string]model.Volunteer, error)
	ListActiveVolunteers(ctx context.Context, backupsOnly bool) ([]model.Volunteer, error)
	SaveReopenedShift(ctx context.Context, shift *model.Shift, entry *model.AuditLogEntry) error
}

// AutoReopenResult summarizes one auto-reopen run
type AutoReopenResult struct {
	Candidates int
	Reopened   []string // shift IDs
	Failed     []FailedNotification
}

// AutoReopenUnconfirmedShifts vacates shifts that are still only assigned
// (never confirmed) and start within the next 24 hours, then alerts admins
// and escalates to the backup pool. This silently removes a volunteer's
// commitment, so the reopen itself is committed per shift with a
// version-checked write before any email goes out; once a shift is open it no
// longer matches the query, which is what keeps overlapping runs from
// reopening it twice.
func AutoReopenUnconfirmedShifts(
	ctx context.Context,
	store AutoReopenStore,
	notifier Notifier,
	logger *zap.Logger,
	now time.Time,
) (*AutoReopenResult, error) {
	logger.Debug("Starting auto-reopen sweep")

	nowUTC := now.UTC()
	cutoff := nowUTC.Add(24 * time.Hour)

	candidates, err := store.ListAssignedShifts(ctx, datesCovering(nowUTC, cutoff))
	if err != nil {
		return nil, fmt.Errorf("failed to query assigned shifts: %w", err)
	}

	slots, err := store.ListTimeSlots(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch time slots: %w", err)
	}
	slotsByID := timeSlotMap(slots)

	// Within 24 hours and still in the future; a shift already past gets no
	// reopen, there is nothing left to refill
	var toReopen []model.Shift
	for _, shift := range candidates {
		start, ok := shiftStart(shift, slotsByID)
		if !ok {
			logger.Warn("Shift has unresolvable start time", zap.String("shift_id", shift.ID))
			continue
		}
		if start.After(nowUTC) && !start.After(cutoff) {
			toReopen = append(toReopen, shift)
		}
	}

	logger.Debug("Found unconfirmed shifts in reopen window", zap.Int("count", len(toReopen)))

	result := &AutoReopenResult{Candidates: len(toReopen)}
	if len(toReopen) == 0 {
		logger.Info("No shifts to auto-reopen")
		return result, nil
	}

	volunteerIDs := make([]string, 0, len(toReopen))
	for _, shift := range toReopen {
		volunteerIDs = append(volunteerIDs, shift.VolunteerID)
	}
	volunteers, err := store.ListVolunteersByID(ctx, volunteerIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch volunteers: %w", err)
	}

	for i := range toReopen {
		shift := &toReopen[i]
		previous := volunteers[shift.VolunteerID]

		if err := lifecycle.AutoReopen(shift); err != nil {
			logger.Warn("Shift no longer eligible for reopen",
				zap.String("shift_id", shift.ID),
				zap.Error(err))
			continue
		}

		entry := &model.AuditLogEntry{
			ID:          uuid.New().String(),
			ShiftID:     shift.ID,
			VolunteerID: previous.ID,
			Action:      "Auto-Reopened",
			Details:     fmt.Sprintf("Shift auto-reopened due to no confirmation from %s", previous.Name),
			Timestamp:   nowUTC,
		}

		if err := store.SaveReopenedShift(ctx, shift, entry); err != nil {
			if errors.Is(err, db.ErrConflict) {
				// Someone changed the shift since we read it: a confirm, a
				// reassignment, or a concurrent sweep already reopened it
				logger.Info("Skipping reopen, shift changed concurrently",
					zap.String("shift_id", shift.ID))
				continue
			}
			logger.Error("Failed to persist reopened shift",
				zap.String("shift_id", shift.ID),
				zap.Error(err))
			continue
		}

		logger.Warn("Auto-reopened shift",
			zap.String("shift_id", shift.ID),
			zap.String("date", shift.Date),
			zap.String("was_assigned_to", previous.Name))
		result.Reopened = append(result.Reopened, shift.ID)

		summary := ShiftSummary{Shift: *shift, TimeSlot: slotsByID[shift.TimeSlotID]}

		if err := notifier.SendShiftReopenedToAdmins(ctx, summary); err != nil {
			logger.Warn("Failed to notify admins of reopened shift",
				zap.String("shift_id", shift.ID),
				zap.Error(err))
			result.Failed = append(result.Failed, FailedNotification{
				ShiftID: shift.ID,
				Error:   err.Error(),
			})
		}

		if err := escalate(ctx, store, notifier, logger, summary); err != nil {
			logger.Warn("Failed to send escalation for reopened shift",
				zap.String("shift_id", shift.ID),
				zap.Error(err))
			result.Failed = append(result.Failed, FailedNotification{
				ShiftID: shift.ID,
				Error:   err.Error(),
			})
		}
	}

	logger.Info("Completed auto-reopen sweep",
		zap.Int("reopened", len(result.Reopened)),
		zap.Int("notification_failures", len(result.Failed)))

	return result, nil
}

// escalate invites the backup pool to claim the reopened slot, widening to
// all active volunteers when no backups are registered
func escalate(ctx context.Context, store AutoReopenStore, notifier Notifier, logger *zap.Logger, summary ShiftSummary) error {
	backups, err := store.ListActiveVolunteers(ctx, true)
	if err != nil {
		return fmt.Errorf("failed to fetch backup volunteers: %w", err)
	}

	if len(backups) > 0 {
		if err := notifier.SendEscalationToBackups(ctx, summary, backups); err != nil {
			return err
		}
		logger.Info("Sent escalation to backup volunteers",
			zap.String("shift_id", summary.Shift.ID),
			zap.Int("recipients", len(backups)))
		return nil
	}

	everyone, err := store.ListActiveVolunteers(ctx, false)
	if err != nil {
		return fmt.Errorf("failed to fetch active volunteers: %w", err)
	}
	if len(everyone) == 0 {
		logger.Warn("No active volunteers to escalate to",
			zap.String("shift_id", summary.Shift.ID))
		return nil
	}

	if err := notifier.SendEscalationToAll(ctx, summary, everyone); err != nil {
		return err
	}
	logger.Info("Sent escalation to all active volunteers",
		zap.String("shift_id", summary.Shift.ID),
		zap.Int("recipients", len(everyone)))
	return nil
}
