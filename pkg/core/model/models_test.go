package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShiftValidate_OpenWithPrimaryFails(t *testing.T) {
	shift := &Shift{ID: "shift-1", Status: StatusOpen, VolunteerID: "vol-1"}

	err := shift.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "open")
}

func TestShiftValidate_AssignedWithoutPrimaryFails(t *testing.T) {
	shift := &Shift{ID: "shift-1", Status: StatusAssigned}

	err := shift.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no primary volunteer")
}

func TestShiftValidate_DuplicateOccupantsFail(t *testing.T) {
	shift := &Shift{
		ID:                 "shift-1",
		Status:             StatusAssigned,
		VolunteerID:        "vol-1",
		Backup1VolunteerID: "vol-1",
	}

	err := shift.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "vol-1")
}

func TestShiftValidate_DistinctOccupantsPass(t *testing.T) {
	shift := &Shift{
		ID:                 "shift-1",
		Status:             StatusConfirmed,
		VolunteerID:        "vol-1",
		Backup1VolunteerID: "vol-2",
		Backup2VolunteerID: "vol-3",
	}

	require.NoError(t, shift.Validate())
}

func TestShiftValidate_OpenWithBackupsPasses(t *testing.T) {
	shift := &Shift{
		ID:                 "shift-1",
		Status:             StatusOpen,
		Backup1VolunteerID: "vol-2",
	}

	require.NoError(t, shift.Validate())
}

func TestShiftOccupant(t *testing.T) {
	shift := &Shift{
		VolunteerID:        "vol-1",
		Backup1VolunteerID: "vol-2",
	}

	assert.Equal(t, "vol-1", shift.Occupant(SlotPrimary))
	assert.Equal(t, "vol-2", shift.Occupant(SlotBackup1))
	assert.Equal(t, "", shift.Occupant(SlotBackup2))
	assert.True(t, shift.SlotVacant(SlotBackup2))
	assert.True(t, shift.HoldsSlot("vol-2"))
	assert.False(t, shift.HoldsSlot("vol-3"))
}

func TestTimeSlotStartOn(t *testing.T) {
	slot := TimeSlot{Label: "Morning", StartTime: "09:00", DurationMinutes: 180}

	start, err := slot.StartOn("2026-03-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), start)

	end, err := slot.EndOn("2026-03-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), end)
}

func TestTimeSlotStartOn_BadDate(t *testing.T) {
	slot := TimeSlot{StartTime: "09:00"}

	_, err := slot.StartOn("not-a-date")

	require.Error(t, err)
}

func TestActionTokenValid(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	used := now.Add(-time.Hour)

	tests := []struct {
		name  string
		token ActionToken
		want  bool
	}{
		{"unused and unexpired", ActionToken{ExpiresAt: now.Add(time.Hour)}, true},
		{"already used", ActionToken{ExpiresAt: now.Add(time.Hour), UsedAt: &used}, false},
		{"expired", ActionToken{ExpiresAt: now.Add(-time.Minute)}, false},
		{"expires exactly now", ActionToken{ExpiresAt: now}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.token.Valid(now))
		})
	}
}

func TestSlotTypeLabel(t *testing.T) {
	assert.Equal(t, "Primary", SlotPrimary.Label())
	assert.Equal(t, "Backup 1", SlotBackup1.Label())
	assert.Equal(t, "Backup 2", SlotBackup2.Label())
}
