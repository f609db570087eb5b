package services

import (
	"context"

	"github.com/intergroup-dev/volunteer-shifts/pkg/core/model"
)

// ShiftSummary pairs a shift with its time slot so notification senders have
// fully-resolved data and never need further lookups.
type ShiftSummary struct {
	Shift    model.Shift
	TimeSlot model.TimeSlot
}

// Notifier delivers outbound email. Every call may fail independently; the
// services treat failure as non-fatal and log it except where a method's
// caller states otherwise.
type Notifier interface {
	SendMonthlyAssignments(ctx context.Context, volunteer model.Volunteer, shifts []ShiftSummary) error
	SendSevenDayReminder(ctx context.Context, volunteer model.Volunteer, shifts []ShiftSummary) error
	SendTwentyFourHourReminder(ctx context.Context, volunteer model.Volunteer, shift ShiftSummary) error
	SendRequestReceived(ctx context.Context, volunteer model.Volunteer, shift ShiftSummary) error
	SendRequestApproved(ctx context.Context, volunteer model.Volunteer, shift ShiftSummary) error
	SendRequestRejected(ctx context.Context, volunteer model.Volunteer, shift ShiftSummary) error
	SendShiftReopenedToAdmins(ctx context.Context, shift ShiftSummary) error
	SendEscalationToBackups(ctx context.Context, shift ShiftSummary, backups []model.Volunteer) error
	SendEscalationToAll(ctx context.Context, shift ShiftSummary, volunteers []model.Volunteer) error
}

// FailedNotification records a single recipient whose email could not be sent
type FailedNotification struct {
	ShiftID     string
	VolunteerID string
	Email       string
	Error       string
}
