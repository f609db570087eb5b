package model

import (
	"fmt"
	"time"
)

// ShiftStatus is the lifecycle state of a shift
type ShiftStatus string

const (
	StatusOpen      ShiftStatus = "open"
	StatusAssigned  ShiftStatus = "assigned"
	StatusConfirmed ShiftStatus = "confirmed"
)

// ShiftRole distinguishes in-person coverage from phone coverage
type ShiftRole string

const (
	RoleInPerson ShiftRole = "in_person"
	RolePhone    ShiftRole = "phone"
)

func (r ShiftRole) IsValid() bool {
	return r == RoleInPerson || r == RolePhone
}

// SlotType identifies which position on a shift a volunteer holds or requests
type SlotType string

const (
	SlotPrimary SlotType = "primary"
	SlotBackup1 SlotType = "backup1"
	SlotBackup2 SlotType = "backup2"
)

func (s SlotType) IsValid() bool {
	return s == SlotPrimary || s == SlotBackup1 || s == SlotBackup2
}

// Label returns the human-readable slot name used in emails and audit entries
func (s SlotType) Label() string {
	switch s {
	case SlotBackup1:
		return "Backup 1"
	case SlotBackup2:
		return "Backup 2"
	default:
		return "Primary"
	}
}

// RequestStatus is the lifecycle state of a shift request
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// TokenAction is the single state change an action token authorizes
type TokenAction string

const (
	ActionConfirm TokenAction = "confirm"
	ActionDecline TokenAction = "decline"
	ActionCancel  TokenAction = "cancel"
	ActionRequest TokenAction = "request"
)

func (a TokenAction) IsValid() bool {
	return a == ActionConfirm || a == ActionDecline || a == ActionCancel || a == ActionRequest
}

// TimeSlot represents a bookable time of day (e.g. "Morning", 09:00, 180 minutes)
type TimeSlot struct {
	ID              string
	Label           string
	StartTime       string // "15:04"
	DurationMinutes int
	IsActive        bool
	SortOrder       int
}

// StartOn computes the concrete start instant of this slot on the given shift date
func (ts TimeSlot) StartOn(date string) (time.Time, error) {
	t, err := time.Parse("2006-01-02 15:04", date+" "+ts.StartTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse shift start %q %q: %w", date, ts.StartTime, err)
	}
	return t.UTC(), nil
}

// EndOn computes the end instant of this slot on the given shift date
func (ts TimeSlot) EndOn(date string) (time.Time, error) {
	start, err := ts.StartOn(date)
	if err != nil {
		return time.Time{}, err
	}
	return start.Add(time.Duration(ts.DurationMinutes) * time.Minute), nil
}

// Shift is a bookable unit of volunteer coverage on a (date, time slot) pair.
// Volunteer slot fields hold volunteer IDs; empty string means the slot is vacant.
type Shift struct {
	ID                 string
	Date               string // "2006-01-02"
	TimeSlotID         string
	Role               ShiftRole
	Status             ShiftStatus
	VolunteerID        string
	Backup1VolunteerID string
	Backup2VolunteerID string
	AssignedAt         *time.Time
	ConfirmedAt        *time.Time
	MonthPublishedAt   *time.Time
	Reminder7DaySent   bool
	Reminder24HourSent bool
	Version            int
}

// Occupant returns the volunteer ID currently holding the given slot ("" if vacant)
func (s *Shift) Occupant(slot SlotType) string {
	switch slot {
	case SlotBackup1:
		return s.Backup1VolunteerID
	case SlotBackup2:
		return s.Backup2VolunteerID
	default:
		return s.VolunteerID
	}
}

// SetOccupant places a volunteer in the given slot without touching shift status
func (s *Shift) SetOccupant(slot SlotType, volunteerID string) {
	switch slot {
	case SlotBackup1:
		s.Backup1VolunteerID = volunteerID
	case SlotBackup2:
		s.Backup2VolunteerID = volunteerID
	default:
		s.VolunteerID = volunteerID
	}
}

// SlotVacant reports whether the given slot has no volunteer
func (s *Shift) SlotVacant(slot SlotType) bool {
	return s.Occupant(slot) == ""
}

// HoldsSlot reports whether the volunteer already occupies any slot on this shift
func (s *Shift) HoldsSlot(volunteerID string) bool {
	if volunteerID == "" {
		return false
	}
	return s.VolunteerID == volunteerID ||
		s.Backup1VolunteerID == volunteerID ||
		s.Backup2VolunteerID == volunteerID
}

// Validate checks the shift's structural invariants: the status must agree with
// the primary slot (open iff vacant) and all occupied slots must hold distinct
// volunteers. Callers run this before persisting any mutation.
func (s *Shift) Validate() error {
	switch s.Status {
	case StatusOpen:
		if s.VolunteerID != "" {
			return fmt.Errorf("shift %s is open but has primary volunteer %s", s.ID, s.VolunteerID)
		}
	case StatusAssigned, StatusConfirmed:
		if s.VolunteerID == "" {
			return fmt.Errorf("shift %s is %s but has no primary volunteer", s.ID, s.Status)
		}
	default:
		return fmt.Errorf("shift %s has unknown status %q", s.ID, s.Status)
	}

	occupied := map[string]SlotType{}
	for _, slot := range []SlotType{SlotPrimary, SlotBackup1, SlotBackup2} {
		id := s.Occupant(slot)
		if id == "" {
			continue
		}
		if other, taken := occupied[id]; taken {
			return fmt.Errorf("shift %s has volunteer %s in both %s and %s slots", s.ID, id, other, slot)
		}
		occupied[id] = slot
	}

	return nil
}

// Volunteer is a person eligible to staff shifts. Email is stored lowercase
// and is unique across volunteers. IsBackup marks membership in the escalation
// pool contacted when a shift reopens close to its start.
type Volunteer struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	IsActive  bool
	IsBackup  bool
	CreatedAt time.Time
}

// ShiftRequest is a volunteer's bid for a specific slot on a specific shift
type ShiftRequest struct {
	ID              string
	ShiftID         string
	VolunteerID     string
	RequestedSlot   SlotType
	Status          RequestStatus
	RequestedAt     time.Time
	ResolvedAt      *time.Time
	ResolvedByAdmin string
}

// ActionToken is a single-use capability granting one unauthenticated state change
type ActionToken struct {
	ID          string
	Token       string
	ShiftID     string
	VolunteerID string
	Action      TokenAction
	ExpiresAt   time.Time
	UsedAt      *time.Time
	CreatedAt   time.Time
}

// Valid reports whether the token can still be consumed at the given time
func (t *ActionToken) Valid(now time.Time) bool {
	return t.UsedAt == nil && now.Before(t.ExpiresAt)
}

// AuditLogEntry records a state change for the audit trail. AdminEmail is empty
// for volunteer- and system-initiated actions.
type AuditLogEntry struct {
	ID          string
	ShiftID     string
	VolunteerID string
	AdminEmail  string
	Action      string
	Details     string
	Timestamp   time.Time
}
