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

// Decision is an admin's verdict on a pending shift request
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// RequestResolutionStore defines the database operations needed to resolve a
// shift request
type RequestResolutionStore interface {
	GetShiftRequest(ctx context.Context, id string) (*model.ShiftRequest, error)
	GetShift(ctx context.Context, id string) (*model.Shift, error)
	GetTimeSlot(ctx context.Context, id string) (*model.TimeSlot, error)
	GetVolunteer(ctx context.Context, id string) (*model.Volunteer, error)
	SaveResolvedRequest(ctx context.Context, request *model.ShiftRequest, shift *model.Shift, entry *model.AuditLogEntry) error
}

// ResolveRequestResult is the resolved request plus notification status
type ResolveRequestResult struct {
	Request            *model.ShiftRequest
	Shift              *model.Shift
	NotificationFailed bool
}

// ResolveShiftRequest approves or rejects a pending request. Approval
// re-validates the target slot against current shift state; if the slot went
// away since submission the call fails with ErrSlotUnavailable and the
// request stays pending for manual re-triage. The decision notification is a
// courtesy: its failure is reported in the result but the decision stands.
func ResolveShiftRequest(
	ctx context.Context,
	store RequestResolutionStore,
	notifier Notifier,
	logger *zap.Logger,
	requestID string,
	decision Decision,
	adminEmail string,
	now time.Time,
) (*ResolveRequestResult, error) {
	request, err := store.GetShiftRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load request %s: %w", requestID, err)
	}
	if request.Status != model.RequestPending {
		return nil, ErrRequestNotPending
	}

	shift, err := store.GetShift(ctx, request.ShiftID)
	if err != nil {
		return nil, fmt.Errorf("failed to load shift %s: %w", request.ShiftID, err)
	}
	volunteer, err := store.GetVolunteer(ctx, request.VolunteerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load volunteer %s: %w", request.VolunteerID, err)
	}
	slot, err := store.GetTimeSlot(ctx, shift.TimeSlotID)
	if err != nil {
		return nil, fmt.Errorf("failed to load time slot %s: %w", shift.TimeSlotID, err)
	}

	resolvedAt := now.UTC()
	request.ResolvedAt = &resolvedAt
	request.ResolvedByAdmin = adminEmail

	switch decision {
	case DecisionApprove:
		if err := lifecycle.Assign(shift, request.VolunteerID, request.RequestedSlot, now); err != nil {
			var te *lifecycle.TransitionError
			if errors.As(err, &te) {
				logger.Info("Approval rejected: slot taken since submission",
					zap.String("request_id", request.ID),
					zap.String("shift_id", shift.ID),
					zap.String("slot", string(request.RequestedSlot)))
				return nil, ErrSlotUnavailable
			}
			return nil, err
		}
		if err := shift.Validate(); err != nil {
			return nil, fmt.Errorf("approval left shift in invalid state: %w", err)
		}
		request.Status = model.RequestApproved

	case DecisionReject:
		request.Status = model.RequestRejected
		shift = nil // no shift mutation on rejection

	default:
		return nil, fmt.Errorf("unknown decision %q", decision)
	}

	entry := auditForDecision(request, volunteer, adminEmail, now)
	if err := store.SaveResolvedRequest(ctx, request, shift, entry); err != nil {
		if errors.Is(err, db.ErrConflict) {
			// The shift changed between our read and the commit; the
			// transaction rolled back, so the request is still pending
			logger.Info("Approval lost a concurrent write race",
				zap.String("request_id", request.ID),
				zap.String("shift_id", request.ShiftID))
			return nil, ErrSlotUnavailable
		}
		return nil, fmt.Errorf("failed to save resolved request: %w", err)
	}

	logger.Info("Shift request resolved",
		zap.String("request_id", request.ID),
		zap.String("decision", string(decision)),
		zap.String("admin", adminEmail))

	result := &ResolveRequestResult{Request: request, Shift: shift}

	// Look the shift back up for the rejection email; the volunteer still
	// needs to know which shift was declined
	notifyShift := shift
	if notifyShift == nil {
		notifyShift, err = store.GetShift(ctx, request.ShiftID)
		if err != nil {
			logger.Warn("Failed to load shift for rejection email", zap.Error(err))
			result.NotificationFailed = true
			return result, nil
		}
	}

	summary := ShiftSummary{Shift: *notifyShift, TimeSlot: *slot}
	var notifyErr error
	if request.Status == model.RequestApproved {
		notifyErr = notifier.SendRequestApproved(ctx, *volunteer, summary)
	} else {
		notifyErr = notifier.SendRequestRejected(ctx, *volunteer, summary)
	}
	if notifyErr != nil {
		logger.Warn("Failed to send request decision email, but decision stands",
			zap.String("email", volunteer.Email),
			zap.Error(notifyErr))
		result.NotificationFailed = true
	}

	return result, nil
}

func auditForDecision(request *model.ShiftRequest, volunteer *model.Volunteer, adminEmail string, now time.Time) *model.AuditLogEntry {
	action := "Shift Request Rejected"
	details := fmt.Sprintf("Rejected request from %s", volunteer.Name)
	if request.Status == model.RequestApproved {
		action = "Shift Request Approved"
		details = fmt.Sprintf("Approved %s request from %s", request.RequestedSlot.Label(), volunteer.Name)
	}
	return &model.AuditLogEntry{
		ID:          uuid.New().String(),
		ShiftID:     request.ShiftID,
		VolunteerID: request.VolunteerID,
		AdminEmail:  adminEmail,
		Action:      action,
		Details:     details,
		Timestamp:   now.UTC(),
	}
}
