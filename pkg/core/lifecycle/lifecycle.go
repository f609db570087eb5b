// Package lifecycle implements the shift state machine as pure transition
// functions over model.Shift. A transition either mutates the shift in place
// and returns nil, or leaves it untouched and returns a *TransitionError
// describing why the precondition failed. Callers persist the shift only on
// success, so a rejection never partially mutates state.
package lifecycle

import (
	"fmt"
	"time"

	"github.com/intergroup-dev/volunteer-shifts/pkg/core/model"
)

// Reason categorizes why a transition was rejected
type Reason string

const (
	ReasonSlotUnavailable Reason = "slot_unavailable"
	ReasonNotAssigned     Reason = "not_assigned_volunteer"
	ReasonWrongStatus     Reason = "wrong_status"
)

// TransitionError is a rejected transition. The conflict is almost always a
// legitimate race with another actor, so callers should re-fetch and inform
// the user rather than retry.
type TransitionError struct {
	Reason  Reason
	Message string
}

func (e *TransitionError) Error() string {
	return e.Message
}

func rejected(reason Reason, format string, args ...any) *TransitionError {
	return &TransitionError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// Assign places a volunteer into a vacant slot. Assigning the primary slot
// moves the shift to assigned and stamps AssignedAt; backup assignments never
// touch shift status.
func Assign(shift *model.Shift, volunteerID string, slot model.SlotType, now time.Time) error {
	if !shift.SlotVacant(slot) {
		return rejected(ReasonSlotUnavailable, "%s slot on shift %s is no longer available", slot.Label(), shift.ID)
	}
	if shift.HoldsSlot(volunteerID) {
		return rejected(ReasonSlotUnavailable, "volunteer %s already holds a slot on shift %s", volunteerID, shift.ID)
	}

	shift.SetOccupant(slot, volunteerID)
	if slot == model.SlotPrimary {
		shift.Status = model.StatusAssigned
		assignedAt := now.UTC()
		shift.AssignedAt = &assignedAt
	}
	return nil
}

// Confirm moves an assigned shift to confirmed. Only the currently assigned
// primary volunteer may confirm.
func Confirm(shift *model.Shift, volunteerID string, now time.Time) error {
	if shift.Status != model.StatusAssigned {
		return rejected(ReasonWrongStatus, "shift %s is %s, not assigned", shift.ID, shift.Status)
	}
	if shift.VolunteerID != volunteerID {
		return rejected(ReasonNotAssigned, "volunteer %s is not assigned to shift %s", volunteerID, shift.ID)
	}

	shift.Status = model.StatusConfirmed
	confirmedAt := now.UTC()
	shift.ConfirmedAt = &confirmedAt
	return nil
}

// Decline vacates the primary slot at the assigned volunteer's request, from
// any status. Backups are deliberately left in place and not promoted; refill
// happens through escalation.
func Decline(shift *model.Shift, volunteerID string) error {
	if shift.VolunteerID == "" || shift.VolunteerID != volunteerID {
		return rejected(ReasonNotAssigned, "volunteer %s is not assigned to shift %s", volunteerID, shift.ID)
	}
	vacate(shift)
	return nil
}

// Cancel is the same state change as Decline, initiated from a confirmed
// shift close to its start. Kept separate so audit entries and messaging can
// distinguish the two.
func Cancel(shift *model.Shift, volunteerID string) error {
	if shift.VolunteerID == "" || shift.VolunteerID != volunteerID {
		return rejected(ReasonNotAssigned, "volunteer %s is not assigned to shift %s", volunteerID, shift.ID)
	}
	vacate(shift)
	return nil
}

// AutoReopen vacates the primary slot of a still-unconfirmed shift. Triggered
// by the sweep, not by a volunteer, and only valid while the shift is assigned:
// once reopened the shift no longer matches the sweep query, which is what
// makes overlapping sweep runs safe.
func AutoReopen(shift *model.Shift) error {
	if shift.Status != model.StatusAssigned {
		return rejected(ReasonWrongStatus, "shift %s is %s, not assigned", shift.ID, shift.Status)
	}
	if shift.VolunteerID == "" {
		return rejected(ReasonNotAssigned, "shift %s has no assigned volunteer", shift.ID)
	}
	vacate(shift)
	return nil
}

// vacate clears the primary slot and resets every field tied to the vacated
// assignment. Reminder flags are reset too: whoever takes the shift next
// needs their own reminders.
func vacate(shift *model.Shift) {
	shift.VolunteerID = ""
	shift.Status = model.StatusOpen
	shift.AssignedAt = nil
	shift.ConfirmedAt = nil
	shift.Reminder7DaySent = false
	shift.Reminder24HourSent = false
}
