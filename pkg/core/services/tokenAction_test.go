package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/intergroup-dev/volunteer-shifts/pkg/core/model"
)

func seedTokenFixture(status model.ShiftStatus, action model.TokenAction) (*fakeStore, time.Time) {
	now := time.Date(2026, 9, 10, 12, 0, 0, 0, time.UTC)

	store := newFakeStore()
	store.timeSlots["ts-morning"] = model.TimeSlot{
		ID:              "ts-morning",
		Label:           "Morning",
		StartTime:       "09:00",
		DurationMinutes: 180,
		IsActive:        true,
		SortOrder:       1,
	}
	store.volunteers["vol-1"] = model.Volunteer{
		ID:       "vol-1",
		Name:     "Alice Smith",
		Email:    "alice@example.com",
		IsActive: true,
	}

	shift := model.Shift{
		ID:         "shift-1",
		Date:       "2026-09-12",
		TimeSlotID: "ts-morning",
		Role:       model.RoleInPerson,
		Status:     status,
	}
	if status != model.StatusOpen {
		shift.VolunteerID = "vol-1"
		at := now.Add(-48 * time.Hour)
		shift.AssignedAt = &at
		if status == model.StatusConfirmed {
			shift.ConfirmedAt = &at
		}
	}
	store.putShift(shift)

	store.tokens["tok-abc"] = model.ActionToken{
		ID:          "token-1",
		Token:       "tok-abc",
		ShiftID:     "shift-1",
		VolunteerID: "vol-1",
		Action:      action,
		ExpiresAt:   now.Add(7 * 24 * time.Hour),
		CreatedAt:   now.Add(-24 * time.Hour),
	}

	return store, now
}

func requireTokenError(t *testing.T, err error, category TokenCategory) *TokenError {
	t.Helper()
	var tokenErr *TokenError
	require.ErrorAs(t, err, &tokenErr)
	assert.Equal(t, category, tokenErr.Category)
	return tokenErr
}

func TestLoadActionToken_Valid(t *testing.T) {
	store, now := seedTokenFixture(model.StatusAssigned, model.ActionConfirm)

	actionCtx, err := LoadActionToken(context.Background(), store, "tok-abc", now)

	require.NoError(t, err)
	assert.Equal(t, model.ActionConfirm, actionCtx.Token.Action)
	assert.Equal(t, "shift-1", actionCtx.Shift.ID)
	assert.Equal(t, "Morning", actionCtx.TimeSlot.Label)
	assert.Equal(t, "Alice Smith", actionCtx.Volunteer.Name)
}

func TestLoadActionToken_Unknown(t *testing.T) {
	store, now := seedTokenFixture(model.StatusAssigned, model.ActionConfirm)

	_, err := LoadActionToken(context.Background(), store, "tok-nope", now)

	requireTokenError(t, err, CategoryInvalid)
}

func TestLoadActionToken_AlreadyUsed(t *testing.T) {
	store, now := seedTokenFixture(model.StatusAssigned, model.ActionConfirm)
	token := store.tokens["tok-abc"]
	usedAt := now.Add(-time.Hour)
	token.UsedAt = &usedAt
	store.tokens["tok-abc"] = token

	_, err := LoadActionToken(context.Background(), store, "tok-abc", now)

	tokenErr := requireTokenError(t, err, CategoryUsed)
	assert.Contains(t, tokenErr.Detail, "completed on")
}

func TestLoadActionToken_Expired(t *testing.T) {
	store, now := seedTokenFixture(model.StatusAssigned, model.ActionConfirm)

	_, err := LoadActionToken(context.Background(), store, "tok-abc", now.Add(8*24*time.Hour))

	requireTokenError(t, err, CategoryExpired)
}

// A used token reports "already used" even when it is also past expiry
func TestLoadActionToken_UsedBeatsExpired(t *testing.T) {
	store, now := seedTokenFixture(model.StatusAssigned, model.ActionConfirm)
	token := store.tokens["tok-abc"]
	usedAt := now
	token.UsedAt = &usedAt
	store.tokens["tok-abc"] = token

	_, err := LoadActionToken(context.Background(), store, "tok-abc", now.Add(30*24*time.Hour))

	requireTokenError(t, err, CategoryUsed)
}

func TestExecuteTokenAction_Confirm(t *testing.T) {
	store, now := seedTokenFixture(model.StatusAssigned, model.ActionConfirm)

	outcome, err := ExecuteTokenAction(context.Background(), store, zap.NewNop(), "tok-abc", now)

	require.NoError(t, err)
	assert.Equal(t, "Shift Confirmed", outcome.Title)

	shift := store.shifts["shift-1"]
	assert.Equal(t, model.StatusConfirmed, shift.Status)
	require.NotNil(t, shift.ConfirmedAt)
	assert.Equal(t, now, *shift.ConfirmedAt)

	// Token consumed in the same commit
	require.NotNil(t, store.tokens["tok-abc"].UsedAt)

	audits := store.auditsFor("shift-1")
	require.Len(t, audits, 1)
	assert.Equal(t, "Token Action: confirm", audits[0].Action)
}

// Reusing a consumed token must not change the shift again
func TestExecuteTokenAction_SecondUseRejected(t *testing.T) {
	store, now := seedTokenFixture(model.StatusAssigned, model.ActionConfirm)

	_, err := ExecuteTokenAction(context.Background(), store, zap.NewNop(), "tok-abc", now)
	require.NoError(t, err)
	confirmed := store.shifts["shift-1"]

	_, err = ExecuteTokenAction(context.Background(), store, zap.NewNop(), "tok-abc", now.Add(time.Minute))

	requireTokenError(t, err, CategoryUsed)
	assert.Equal(t, confirmed, store.shifts["shift-1"])
	assert.Len(t, store.auditsFor("shift-1"), 1)
}

func TestExecuteTokenAction_Decline(t *testing.T) {
	store, now := seedTokenFixture(model.StatusAssigned, model.ActionDecline)
	shift := store.shifts["shift-1"]
	shift.Backup1VolunteerID = "vol-2"
	shift.Reminder7DaySent = true
	store.putShift(shift)

	outcome, err := ExecuteTokenAction(context.Background(), store, zap.NewNop(), "tok-abc", now)

	require.NoError(t, err)
	assert.Equal(t, "Shift Declined", outcome.Title)

	stored := store.shifts["shift-1"]
	assert.Equal(t, model.StatusOpen, stored.Status)
	assert.Empty(t, stored.VolunteerID)
	assert.Nil(t, stored.AssignedAt)
	assert.False(t, stored.Reminder7DaySent)

	// Backups stay in place; refill goes through escalation
	assert.Equal(t, "vol-2", stored.Backup1VolunteerID)
}

func TestExecuteTokenAction_CancelConfirmedShift(t *testing.T) {
	store, now := seedTokenFixture(model.StatusConfirmed, model.ActionCancel)

	outcome, err := ExecuteTokenAction(context.Background(), store, zap.NewNop(), "tok-abc", now)

	require.NoError(t, err)
	assert.Equal(t, "Shift Cancelled", outcome.Title)

	stored := store.shifts["shift-1"]
	assert.Equal(t, model.StatusOpen, stored.Status)
	assert.Nil(t, stored.ConfirmedAt)
}

// The shift was reassigned after the token was minted: conflict, and the
// token survives unconsumed
func TestExecuteTokenAction_ConfirmConflict(t *testing.T) {
	store, now := seedTokenFixture(model.StatusAssigned, model.ActionConfirm)
	shift := store.shifts["shift-1"]
	shift.VolunteerID = "vol-other"
	store.putShift(shift)

	_, err := ExecuteTokenAction(context.Background(), store, zap.NewNop(), "tok-abc", now)

	tokenErr := requireTokenError(t, err, CategoryConflict)
	assert.Equal(t, "Cannot Confirm", tokenErr.Title)
	assert.Nil(t, store.tokens["tok-abc"].UsedAt)
	assert.Equal(t, "vol-other", store.shifts["shift-1"].VolunteerID)
}

func TestExecuteTokenAction_DeclineAfterReassignment(t *testing.T) {
	store, now := seedTokenFixture(model.StatusAssigned, model.ActionDecline)
	shift := store.shifts["shift-1"]
	shift.VolunteerID = "vol-other"
	store.putShift(shift)

	_, err := ExecuteTokenAction(context.Background(), store, zap.NewNop(), "tok-abc", now)

	tokenErr := requireTokenError(t, err, CategoryConflict)
	assert.Equal(t, "Cannot Decline", tokenErr.Title)
	assert.Nil(t, store.tokens["tok-abc"].UsedAt)
}

func TestExecuteTokenAction_ClaimReopenedShift(t *testing.T) {
	store, now := seedTokenFixture(model.StatusOpen, model.ActionRequest)

	outcome, err := ExecuteTokenAction(context.Background(), store, zap.NewNop(), "tok-abc", now)

	require.NoError(t, err)
	assert.Equal(t, "Request Submitted", outcome.Title)

	// A pending primary request was filed, not an assignment
	require.Len(t, store.requests, 1)
	for _, req := range store.requests {
		assert.Equal(t, "shift-1", req.ShiftID)
		assert.Equal(t, "vol-1", req.VolunteerID)
		assert.Equal(t, model.SlotPrimary, req.RequestedSlot)
		assert.Equal(t, model.RequestPending, req.Status)
	}
	assert.Equal(t, model.StatusOpen, store.shifts["shift-1"].Status)
	require.NotNil(t, store.tokens["tok-abc"].UsedAt)
}

func TestExecuteTokenAction_ClaimFilledShift(t *testing.T) {
	store, now := seedTokenFixture(model.StatusOpen, model.ActionRequest)
	shift := store.shifts["shift-1"]
	shift.Status = model.StatusAssigned
	shift.VolunteerID = "vol-other"
	store.putShift(shift)

	_, err := ExecuteTokenAction(context.Background(), store, zap.NewNop(), "tok-abc", now)

	tokenErr := requireTokenError(t, err, CategoryConflict)
	assert.Equal(t, "Shift No Longer Open", tokenErr.Title)
	assert.Empty(t, store.requests)
	assert.Nil(t, store.tokens["tok-abc"].UsedAt)
}

func TestExecuteTokenAction_ClaimWithPendingRequest(t *testing.T) {
	store, now := seedTokenFixture(model.StatusOpen, model.ActionRequest)
	store.requests["req-1"] = model.ShiftRequest{
		ID:            "req-1",
		ShiftID:       "shift-1",
		VolunteerID:   "vol-1",
		RequestedSlot: model.SlotPrimary,
		Status:        model.RequestPending,
	}

	_, err := ExecuteTokenAction(context.Background(), store, zap.NewNop(), "tok-abc", now)

	tokenErr := requireTokenError(t, err, CategoryConflict)
	assert.Equal(t, "Already Requested", tokenErr.Title)
	assert.Nil(t, store.tokens["tok-abc"].UsedAt)
}
