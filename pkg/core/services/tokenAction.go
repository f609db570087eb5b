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

// TokenActionStore defines the database operations needed to load and
// execute token actions
type TokenActionStore interface {
	GetActionToken(ctx context.Context, tokenValue string) (*model.ActionToken, error)
	GetShift(ctx context.Context, id string) (*model.Shift, error)
	GetTimeSlot(ctx context.Context, id string) (*model.TimeSlot, error)
	GetVolunteer(ctx context.Context, id string) (*model.Volunteer, error)
	HasPendingRequest(ctx context.Context, shiftID, volunteerID string, slot model.SlotType) (bool, error)
	SaveShiftAndConsumeToken(ctx context.Context, shift *model.Shift, token *model.ActionToken, entry *model.AuditLogEntry) error
	SaveRequestAndConsumeToken(ctx context.Context, request *model.ShiftRequest, token *model.ActionToken, entry *model.AuditLogEntry) error
}

// ActionContext is a resolved, still-valid token with everything needed to
// render the pending action to the volunteer
type ActionContext struct {
	Token     *model.ActionToken
	Shift     *model.Shift
	TimeSlot  *model.TimeSlot
	Volunteer *model.Volunteer
}

// ActionOutcome describes a successfully executed token action
type ActionOutcome struct {
	Action  model.TokenAction
	Title   string
	Message string
	Shift   *model.Shift
}

// LoadActionToken resolves a presented token value and checks validity in
// order: exists, not used, not expired. Each failure is a distinct
// *TokenError category so the caller can show the right copy.
func LoadActionToken(ctx context.Context, store TokenActionStore, tokenValue string, now time.Time) (*ActionContext, error) {
	token, err := store.GetActionToken(ctx, tokenValue)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, invalidLinkError()
		}
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}

	if token.UsedAt != nil {
		return nil, alreadyUsedError(token.UsedAt.Format("January 2, 2006 at 3:04 PM"))
	}
	if !now.Before(token.ExpiresAt) {
		return nil, expiredLinkError()
	}

	shift, err := store.GetShift(ctx, token.ShiftID)
	if err != nil {
		return nil, fmt.Errorf("failed to load shift %s: %w", token.ShiftID, err)
	}
	slot, err := store.GetTimeSlot(ctx, shift.TimeSlotID)
	if err != nil {
		return nil, fmt.Errorf("failed to load time slot %s: %w", shift.TimeSlotID, err)
	}
	volunteer, err := store.GetVolunteer(ctx, token.VolunteerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load volunteer %s: %w", token.VolunteerID, err)
	}

	return &ActionContext{Token: token, Shift: shift, TimeSlot: slot, Volunteer: volunteer}, nil
}

// ExecuteTokenAction performs the state change a token authorizes and
// consumes the token, atomically: the shift (or request) write, the token's
// used-at mark and the audit entry commit together or not at all. A
// precondition failure is a *TokenError in the conflict category and leaves
// everything untouched, including the token.
func ExecuteTokenAction(
	ctx context.Context,
	store TokenActionStore,
	logger *zap.Logger,
	tokenValue string,
	now time.Time,
) (*ActionOutcome, error) {
	actionCtx, err := LoadActionToken(ctx, store, tokenValue, now)
	if err != nil {
		return nil, err
	}

	token := actionCtx.Token
	shift := actionCtx.Shift
	volunteer := actionCtx.Volunteer

	logger.Debug("Executing token action",
		zap.String("action", string(token.Action)),
		zap.String("shift_id", shift.ID),
		zap.String("volunteer_id", volunteer.ID))

	if token.Action == model.ActionRequest {
		return executeRequestToken(ctx, store, logger, actionCtx, now)
	}

	var outcome *ActionOutcome
	switch token.Action {
	case model.ActionConfirm:
		if err := lifecycle.Confirm(shift, token.VolunteerID, now); err != nil {
			return nil, conflictError("Cannot Confirm", "This shift has been reassigned or is no longer available.")
		}
		outcome = &ActionOutcome{
			Action:  token.Action,
			Title:   "Shift Confirmed",
			Message: "Thank you! Your shift has been confirmed. We'll send you a reminder 24 hours before.",
		}

	case model.ActionDecline:
		if err := lifecycle.Decline(shift, token.VolunteerID); err != nil {
			return nil, conflictError("Cannot Decline", "This shift has already been reassigned.")
		}
		outcome = &ActionOutcome{
			Action:  token.Action,
			Title:   "Shift Declined",
			Message: "The shift has been released. Thank you for letting us know.",
		}

	case model.ActionCancel:
		if err := lifecycle.Cancel(shift, token.VolunteerID); err != nil {
			return nil, conflictError("Cannot Cancel", "This shift has already been reassigned.")
		}
		outcome = &ActionOutcome{
			Action:  token.Action,
			Title:   "Shift Cancelled",
			Message: "Your shift has been cancelled. We'll find a replacement.",
		}

	default:
		return nil, fmt.Errorf("unknown token action %q", token.Action)
	}

	if err := shift.Validate(); err != nil {
		return nil, fmt.Errorf("token action left shift in invalid state: %w", err)
	}

	usedAt := now.UTC()
	token.UsedAt = &usedAt

	entry := &model.AuditLogEntry{
		ID:          uuid.New().String(),
		ShiftID:     shift.ID,
		VolunteerID: token.VolunteerID,
		Action:      fmt.Sprintf("Token Action: %s", token.Action),
		Details:     fmt.Sprintf("%s used %s token for %s", volunteer.Name, token.Action, shift.Date),
		Timestamp:   usedAt,
	}

	if err := store.SaveShiftAndConsumeToken(ctx, shift, token, entry); err != nil {
		token.UsedAt = nil
		if errors.Is(err, db.ErrConflict) {
			logger.Info("Token action lost a concurrent write race",
				zap.String("shift_id", shift.ID),
				zap.String("action", string(token.Action)))
			return nil, conflictError("Action Failed", "This shift was just changed by someone else. Please reload and try again.")
		}
		return nil, fmt.Errorf("failed to commit token action: %w", err)
	}

	logger.Info("Token action executed",
		zap.String("action", string(token.Action)),
		zap.String("shift_id", shift.ID),
		zap.String("volunteer_id", token.VolunteerID))

	outcome.Shift = shift
	return outcome, nil
}

// executeRequestToken handles escalation claim links: consuming one files a
// pending primary-slot request on behalf of the token's volunteer
func executeRequestToken(ctx context.Context, store TokenActionStore, logger *zap.Logger, actionCtx *ActionContext, now time.Time) (*ActionOutcome, error) {
	shift := actionCtx.Shift
	token := actionCtx.Token

	if !shift.SlotVacant(model.SlotPrimary) {
		return nil, conflictError("Shift No Longer Open", "This shift has already been filled.")
	}

	pending, err := store.HasPendingRequest(ctx, shift.ID, token.VolunteerID, model.SlotPrimary)
	if err != nil {
		return nil, fmt.Errorf("failed to check for existing request: %w", err)
	}
	if pending {
		return nil, conflictError("Already Requested", "You already have a pending request for this shift.")
	}

	usedAt := now.UTC()
	token.UsedAt = &usedAt

	request := &model.ShiftRequest{
		ID:            uuid.New().String(),
		ShiftID:       shift.ID,
		VolunteerID:   token.VolunteerID,
		RequestedSlot: model.SlotPrimary,
		Status:        model.RequestPending,
		RequestedAt:   usedAt,
	}

	entry := &model.AuditLogEntry{
		ID:          uuid.New().String(),
		ShiftID:     shift.ID,
		VolunteerID: token.VolunteerID,
		Action:      "Shift Requested",
		Details:     fmt.Sprintf("%s claimed reopened shift on %s via escalation link", actionCtx.Volunteer.Name, shift.Date),
		Timestamp:   usedAt,
	}

	if err := store.SaveRequestAndConsumeToken(ctx, request, token, entry); err != nil {
		token.UsedAt = nil
		if errors.Is(err, db.ErrDuplicate) {
			return nil, conflictError("Already Requested", "You already have a pending request for this shift.")
		}
		return nil, fmt.Errorf("failed to commit shift claim: %w", err)
	}

	logger.Info("Escalation claim filed",
		zap.String("shift_id", shift.ID),
		zap.String("volunteer_id", token.VolunteerID))

	return &ActionOutcome{
		Action:  model.ActionRequest,
		Title:   "Request Submitted",
		Message: "Your request has been submitted for review. We'll email you when it's approved.",
		Shift:   shift,
	}, nil
}
