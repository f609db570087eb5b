package db

import (
	"context"
	"time"

	"github.com/intergroup-dev/volunteer-shifts/pkg/core/model"
)

// Store is the full persistence surface implemented by pkg/postgres. Services
// declare their own narrow interfaces; this union exists for wiring and for
// the HTTP server, which touches most of it.
type Store interface {
	ShiftStore
	VolunteerStore
	TimeSlotStore
	RequestStore
	TokenStore
	AuditStore
}

// ShiftStore covers shift reads, optimistic writes and sweep queries
type ShiftStore interface {
	GetShift(ctx context.Context, id string) (*model.Shift, error)
	GetShiftByDateSlot(ctx context.Context, date, timeSlotID string) (*model.Shift, error)
	InsertShift(ctx context.Context, shift *model.Shift) error

	// UpdateShift persists a mutated shift. The write is conditional on the
	// version the shift was read at and returns ErrConflict if another actor
	// committed first.
	UpdateShift(ctx context.Context, shift *model.Shift) error

	ListOpenShifts(ctx context.Context, fromDate string) ([]model.Shift, error)
	ListShiftsForSevenDayReminder(ctx context.Context, publishedBefore time.Time, fromDate string) ([]model.Shift, error)
	ListShiftsAwaiting24HourReminder(ctx context.Context, dates []string) ([]model.Shift, error)
	ListAssignedShifts(ctx context.Context, dates []string) ([]model.Shift, error)
	ListAssignedShiftsInMonth(ctx context.Context, fromDate, toDate string) ([]model.Shift, error)

	MarkSevenDayRemindersSent(ctx context.Context, shiftIDs []string) error
	MarkTwentyFourHourReminderSent(ctx context.Context, shiftID string) error
	MarkMonthPublished(ctx context.Context, shiftIDs []string, publishedAt time.Time) error

	// SaveReopenedShift commits an auto-reopen: the conditional shift update
	// and the audit entry land in one transaction.
	SaveReopenedShift(ctx context.Context, shift *model.Shift, entry *model.AuditLogEntry) error
}

// VolunteerStore covers volunteer lookups and the find-or-create flow
type VolunteerStore interface {
	GetVolunteer(ctx context.Context, id string) (*model.Volunteer, error)
	GetVolunteerByEmail(ctx context.Context, email string) (*model.Volunteer, error)
	InsertVolunteer(ctx context.Context, volunteer *model.Volunteer) error
	UpdateVolunteer(ctx context.Context, volunteer *model.Volunteer) error
	ListVolunteers(ctx context.Context) ([]model.Volunteer, error)
	ListVolunteersByID(ctx context.Context, ids []string) (map[string]model.Volunteer, error)
	ListActiveVolunteers(ctx context.Context, backupsOnly bool) ([]model.Volunteer, error)
}

// TimeSlotStore covers the static time-slot catalogue
type TimeSlotStore interface {
	GetTimeSlot(ctx context.Context, id string) (*model.TimeSlot, error)
	ListTimeSlots(ctx context.Context) ([]model.TimeSlot, error)
}

// RequestStore covers self-service shift requests
type RequestStore interface {
	GetShiftRequest(ctx context.Context, id string) (*model.ShiftRequest, error)
	ListShiftRequests(ctx context.Context, status model.RequestStatus) ([]model.ShiftRequest, error)
	HasPendingRequest(ctx context.Context, shiftID, volunteerID string, slot model.SlotType) (bool, error)
	InsertShiftRequest(ctx context.Context, request *model.ShiftRequest) error

	// SaveResolvedRequest commits an approval or rejection in one transaction.
	// For approvals shift carries the slot assignment (conditional on its
	// version); for rejections shift is nil.
	SaveResolvedRequest(ctx context.Context, request *model.ShiftRequest, shift *model.Shift, entry *model.AuditLogEntry) error
}

// TokenStore covers action-token persistence. Consumption is transactional
// with the mutation the token authorizes.
type TokenStore interface {
	GetActionToken(ctx context.Context, tokenValue string) (*model.ActionToken, error)
	InsertActionToken(ctx context.Context, token *model.ActionToken) error

	// SaveShiftAndConsumeToken commits the authorized shift mutation, marks
	// the token used and writes the audit entry atomically. Either all three
	// land or none do.
	SaveShiftAndConsumeToken(ctx context.Context, shift *model.Shift, token *model.ActionToken, entry *model.AuditLogEntry) error

	// SaveRequestAndConsumeToken is the request-action variant: inserts the
	// pending request and consumes the token atomically.
	SaveRequestAndConsumeToken(ctx context.Context, request *model.ShiftRequest, token *model.ActionToken, entry *model.AuditLogEntry) error

	DeleteSpentTokens(ctx context.Context, now time.Time) (int64, error)
}

// AuditStore records state changes for the audit trail
type AuditStore interface {
	InsertAuditEntry(ctx context.Context, entry *model.AuditLogEntry) error
	ListAuditEntriesForShift(ctx context.Context, shiftID string) ([]model.AuditLogEntry, error)
}
