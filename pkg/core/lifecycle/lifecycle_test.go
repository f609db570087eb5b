package lifecycle

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intergroup-dev/volunteer-shifts/pkg/core/model"
)

var now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func openShift() *model.Shift {
	return &model.Shift{ID: "shift-1", Date: "2026-03-10", Status: model.StatusOpen}
}

func assignedShift() *model.Shift {
	assignedAt := now.Add(-48 * time.Hour)
	return &model.Shift{
		ID:          "shift-1",
		Date:        "2026-03-10",
		Status:      model.StatusAssigned,
		VolunteerID: "vol-1",
		AssignedAt:  &assignedAt,
	}
}

func transitionReason(t *testing.T, err error) Reason {
	t.Helper()
	var te *TransitionError
	require.True(t, errors.As(err, &te), "expected TransitionError, got %v", err)
	return te.Reason
}

func TestAssign_PrimarySetsStatusAndTimestamp(t *testing.T) {
	shift := openShift()

	err := Assign(shift, "vol-1", model.SlotPrimary, now)

	require.NoError(t, err)
	assert.Equal(t, model.StatusAssigned, shift.Status)
	assert.Equal(t, "vol-1", shift.VolunteerID)
	require.NotNil(t, shift.AssignedAt)
	assert.Equal(t, now, *shift.AssignedAt)
	require.NoError(t, shift.Validate())
}

func TestAssign_BackupDoesNotTouchStatus(t *testing.T) {
	shift := openShift()

	err := Assign(shift, "vol-2", model.SlotBackup1, now)

	require.NoError(t, err)
	assert.Equal(t, model.StatusOpen, shift.Status)
	assert.Equal(t, "vol-2", shift.Backup1VolunteerID)
	assert.Nil(t, shift.AssignedAt)
}

func TestAssign_OccupiedSlotRejected(t *testing.T) {
	shift := assignedShift()

	err := Assign(shift, "vol-2", model.SlotPrimary, now)

	assert.Equal(t, ReasonSlotUnavailable, transitionReason(t, err))
	assert.Equal(t, "vol-1", shift.VolunteerID)
}

func TestAssign_VolunteerAlreadyOnShiftRejected(t *testing.T) {
	shift := assignedShift()

	err := Assign(shift, "vol-1", model.SlotBackup1, now)

	assert.Equal(t, ReasonSlotUnavailable, transitionReason(t, err))
	assert.Equal(t, "", shift.Backup1VolunteerID)
}

func TestConfirm_AssignedVolunteer(t *testing.T) {
	shift := assignedShift()

	err := Confirm(shift, "vol-1", now)

	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, shift.Status)
	require.NotNil(t, shift.ConfirmedAt)
	assert.Equal(t, now, *shift.ConfirmedAt)
}

func TestConfirm_WrongVolunteerRejected(t *testing.T) {
	shift := assignedShift()

	err := Confirm(shift, "vol-2", now)

	assert.Equal(t, ReasonNotAssigned, transitionReason(t, err))
	assert.Equal(t, model.StatusAssigned, shift.Status)
	assert.Nil(t, shift.ConfirmedAt)
}

func TestConfirm_OpenShiftRejected(t *testing.T) {
	shift := openShift()

	err := Confirm(shift, "vol-1", now)

	assert.Equal(t, ReasonWrongStatus, transitionReason(t, err))
}

func TestConfirm_AlreadyConfirmedRejected(t *testing.T) {
	shift := assignedShift()
	require.NoError(t, Confirm(shift, "vol-1", now))

	err := Confirm(shift, "vol-1", now.Add(time.Minute))

	assert.Equal(t, ReasonWrongStatus, transitionReason(t, err))
}

func TestDecline_VacatesPrimaryAndResetsTimestamps(t *testing.T) {
	shift := assignedShift()
	shift.Backup1VolunteerID = "vol-2"
	shift.Reminder7DaySent = true

	err := Decline(shift, "vol-1")

	require.NoError(t, err)
	assert.Equal(t, model.StatusOpen, shift.Status)
	assert.Equal(t, "", shift.VolunteerID)
	assert.Nil(t, shift.AssignedAt)
	assert.Nil(t, shift.ConfirmedAt)
	assert.False(t, shift.Reminder7DaySent)
	// backups stay where they are, no automatic promotion
	assert.Equal(t, "vol-2", shift.Backup1VolunteerID)
	require.NoError(t, shift.Validate())
}

func TestDecline_FromConfirmedAllowed(t *testing.T) {
	shift := assignedShift()
	require.NoError(t, Confirm(shift, "vol-1", now))

	err := Decline(shift, "vol-1")

	require.NoError(t, err)
	assert.Equal(t, model.StatusOpen, shift.Status)
}

func TestDecline_WrongVolunteerRejected(t *testing.T) {
	shift := assignedShift()

	err := Decline(shift, "vol-2")

	assert.Equal(t, ReasonNotAssigned, transitionReason(t, err))
	assert.Equal(t, "vol-1", shift.VolunteerID)
}

func TestCancel_ConfirmedShiftVacated(t *testing.T) {
	shift := assignedShift()
	require.NoError(t, Confirm(shift, "vol-1", now))

	err := Cancel(shift, "vol-1")

	require.NoError(t, err)
	assert.Equal(t, model.StatusOpen, shift.Status)
	assert.Nil(t, shift.ConfirmedAt)
}

func TestAutoReopen_AssignedShift(t *testing.T) {
	shift := assignedShift()

	err := AutoReopen(shift)

	require.NoError(t, err)
	assert.Equal(t, model.StatusOpen, shift.Status)
	assert.Equal(t, "", shift.VolunteerID)
	assert.Nil(t, shift.AssignedAt)
}

func TestAutoReopen_ConfirmedShiftRejected(t *testing.T) {
	shift := assignedShift()
	require.NoError(t, Confirm(shift, "vol-1", now))

	err := AutoReopen(shift)

	assert.Equal(t, ReasonWrongStatus, transitionReason(t, err))
	assert.Equal(t, model.StatusConfirmed, shift.Status)
}

func TestAutoReopen_OpenShiftRejected(t *testing.T) {
	shift := openShift()

	err := AutoReopen(shift)

	assert.Equal(t, ReasonWrongStatus, transitionReason(t, err))
}
