package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/intergroup-dev/volunteer-shifts/pkg/core/model"
	"github.com/intergroup-dev/volunteer-shifts/pkg/db"
)

// RequestSubmissionStore defines the database operations needed to submit a
// shift request
type RequestSubmissionStore interface {
	GetShift(ctx context.Context, id string) (*model.Shift, error)
	GetShiftByDateSlot(ctx context.Context, date, timeSlotID string) (*model.Shift, error)
	InsertShift(ctx context.Context, shift *model.Shift) error
	GetTimeSlot(ctx context.Context, id string) (*model.TimeSlot, error)
	GetVolunteerByEmail(ctx context.Context, email string) (*model.Volunteer, error)
	InsertVolunteer(ctx context.Context, volunteer *model.Volunteer) error
	UpdateVolunteer(ctx context.Context, volunteer *model.Volunteer) error
	HasPendingRequest(ctx context.Context, shiftID, volunteerID string, slot model.SlotType) (bool, error)
	InsertShiftRequest(ctx context.Context, request *model.ShiftRequest) error
	InsertAuditEntry(ctx context.Context, entry *model.AuditLogEntry) error
}

// SubmitRequestInput is a volunteer's self-service bid for a slot. Either
// ShiftID or (Date, TimeSlotID) must be set; the latter materializes the
// shift lazily on first interaction.
type SubmitRequestInput struct {
	ShiftID    string
	Date       string
	TimeSlotID string
	Slot       model.SlotType
	Name       string
	Email      string
	Phone      string
}

// SubmitRequestResult is the created request plus notification status
type SubmitRequestResult struct {
	Request            *model.ShiftRequest
	Shift              *model.Shift
	Volunteer          *model.Volunteer
	NotificationFailed bool
}

// SubmitShiftRequest validates and records a volunteer's bid for a slot. The
// volunteer record is resolved-or-created by case-insensitive email. The
// "request received" notification is best-effort: its failure never rolls
// back the request.
func SubmitShiftRequest(
	ctx context.Context,
	store RequestSubmissionStore,
	notifier Notifier,
	logger *zap.Logger,
	input SubmitRequestInput,
	now time.Time,
) (*SubmitRequestResult, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || input.Name == "" {
		return nil, fmt.Errorf("name and email are required")
	}
	if !input.Slot.IsValid() {
		return nil, fmt.Errorf("unknown slot %q", input.Slot)
	}

	shift, slot, err := locateShift(ctx, store, input, now)
	if err != nil {
		return nil, err
	}

	logger.Debug("Located shift for request",
		zap.String("shift_id", shift.ID),
		zap.String("date", shift.Date),
		zap.String("slot", string(input.Slot)))

	// Checked against current state, not anything cached by the caller
	if !shift.SlotVacant(input.Slot) {
		return nil, ErrSlotUnavailable
	}

	volunteer, err := findOrCreateVolunteer(ctx, store, logger, email, input.Name, input.Phone, now)
	if err != nil {
		return nil, err
	}

	if shift.HoldsSlot(volunteer.ID) {
		return nil, ErrSlotUnavailable
	}

	pending, err := store.HasPendingRequest(ctx, shift.ID, volunteer.ID, input.Slot)
	if err != nil {
		return nil, fmt.Errorf("failed to check for existing request: %w", err)
	}
	if pending {
		return nil, ErrDuplicateRequest
	}

	request := &model.ShiftRequest{
		ID:            uuid.New().String(),
		ShiftID:       shift.ID,
		VolunteerID:   volunteer.ID,
		RequestedSlot: input.Slot,
		Status:        model.RequestPending,
		RequestedAt:   now.UTC(),
	}

	if err := store.InsertShiftRequest(ctx, request); err != nil {
		// The partial unique index catches two concurrent submissions that
		// both passed the pre-check
		if errors.Is(err, db.ErrDuplicate) {
			return nil, ErrDuplicateRequest
		}
		return nil, fmt.Errorf("failed to insert shift request: %w", err)
	}

	entry := &model.AuditLogEntry{
		ID:          uuid.New().String(),
		ShiftID:     shift.ID,
		VolunteerID: volunteer.ID,
		Action:      "Shift Requested",
		Details:     fmt.Sprintf("%s requested %s slot on %s", volunteer.Name, input.Slot.Label(), shift.Date),
		Timestamp:   now.UTC(),
	}
	if err := store.InsertAuditEntry(ctx, entry); err != nil {
		logger.Error("Failed to write audit entry for shift request",
			zap.String("request_id", request.ID),
			zap.Error(err))
	}

	logger.Info("Shift request submitted",
		zap.String("request_id", request.ID),
		zap.String("shift_id", shift.ID),
		zap.String("volunteer_id", volunteer.ID),
		zap.String("slot", string(input.Slot)))

	result := &SubmitRequestResult{Request: request, Shift: shift, Volunteer: volunteer}

	if err := notifier.SendRequestReceived(ctx, *volunteer, ShiftSummary{Shift: *shift, TimeSlot: *slot}); err != nil {
		logger.Warn("Failed to send request-received email",
			zap.String("email", volunteer.Email),
			zap.Error(err))
		result.NotificationFailed = true
	}

	return result, nil
}

// locateShift finds the target shift by ID or by (date, time slot),
// materializing an empty open shift when none exists yet. The storage-level
// (date, time_slot_id) uniqueness collapses two concurrent materializations
// into one row.
func locateShift(ctx context.Context, store RequestSubmissionStore, input SubmitRequestInput, now time.Time) (*model.Shift, *model.TimeSlot, error) {
	if input.ShiftID != "" {
		shift, err := store.GetShift(ctx, input.ShiftID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load shift %s: %w", input.ShiftID, err)
		}
		slot, err := store.GetTimeSlot(ctx, shift.TimeSlotID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load time slot %s: %w", shift.TimeSlotID, err)
		}
		return shift, slot, nil
	}

	if input.Date == "" || input.TimeSlotID == "" {
		return nil, nil, fmt.Errorf("either shift id or date and time slot are required")
	}
	if _, err := time.Parse("2006-01-02", input.Date); err != nil {
		return nil, nil, fmt.Errorf("invalid shift date %q: %w", input.Date, err)
	}

	slot, err := store.GetTimeSlot(ctx, input.TimeSlotID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load time slot %s: %w", input.TimeSlotID, err)
	}

	shift, err := store.GetShiftByDateSlot(ctx, input.Date, input.TimeSlotID)
	if err == nil {
		return shift, slot, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, nil, fmt.Errorf("failed to look up shift for %s/%s: %w", input.Date, input.TimeSlotID, err)
	}

	shift = &model.Shift{
		ID:         uuid.New().String(),
		Date:       input.Date,
		TimeSlotID: input.TimeSlotID,
		Role:       model.RoleInPerson,
		Status:     model.StatusOpen,
	}
	if err := store.InsertShift(ctx, shift); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			// Someone else materialized it first; use theirs
			shift, err = store.GetShiftByDateSlot(ctx, input.Date, input.TimeSlotID)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to re-load materialized shift: %w", err)
			}
			return shift, slot, nil
		}
		return nil, nil, fmt.Errorf("failed to create shift for %s/%s: %w", input.Date, input.TimeSlotID, err)
	}

	return shift, slot, nil
}

// findOrCreateVolunteer resolves the volunteer by lowercase email, refreshing
// name and phone when supplied
func findOrCreateVolunteer(ctx context.Context, store RequestSubmissionStore, logger *zap.Logger, email, name, phone string, now time.Time) (*model.Volunteer, error) {
	volunteer, err := store.GetVolunteerByEmail(ctx, email)
	if err == nil {
		changed := false
		if name != "" && volunteer.Name != name {
			volunteer.Name = name
			changed = true
		}
		if phone != "" && volunteer.Phone != phone {
			volunteer.Phone = phone
			changed = true
		}
		if changed {
			if err := store.UpdateVolunteer(ctx, volunteer); err != nil {
				return nil, fmt.Errorf("failed to update volunteer %s: %w", volunteer.ID, err)
			}
		}
		return volunteer, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up volunteer by email: %w", err)
	}

	volunteer = &model.Volunteer{
		ID:        uuid.New().String(),
		Name:      name,
		Email:     email,
		Phone:     phone,
		IsActive:  true,
		CreatedAt: now.UTC(),
	}
	if err := store.InsertVolunteer(ctx, volunteer); err != nil {
		return nil, fmt.Errorf("failed to create volunteer: %w", err)
	}

	logger.Info("Created volunteer from self-service request",
		zap.String("volunteer_id", volunteer.ID),
		zap.String("email", volunteer.Email))

	return volunteer, nil
}
