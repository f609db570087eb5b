package services

import (
	"context"
	"fmt"
	"time"

	"github.com/intergroup-dev/volunteer-shifts/pkg/core/model"
	"github.com/intergroup-dev/volunteer-shifts/pkg/db"
)

// fakeStore is an in-memory store implementing the narrow service interfaces.
// Entities are stored by value and returned as copies, so a mutation only
// lands when a Save/Update/Mark method is called, and version-checked writes
// behave like the postgres implementation.
type fakeStore struct {
	shifts     map[string]model.Shift
	timeSlots  map[string]model.TimeSlot
	volunteers map[string]model.Volunteer
	requests   map[string]model.ShiftRequest
	tokens     map[string]model.ActionToken // keyed by token value
	audits     []model.AuditLogEntry

	insertShiftErr error
	markSevenErr   error
	mark24Err      error
	saveReopenErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		shifts:     map[string]model.Shift{},
		timeSlots:  map[string]model.TimeSlot{},
		volunteers: map[string]model.Volunteer{},
		requests:   map[string]model.ShiftRequest{},
		tokens:     map[string]model.ActionToken{},
	}
}

func (f *fakeStore) putShift(s model.Shift) {
	f.shifts[s.ID] = s
}

func (f *fakeStore) GetShift(ctx context.Context, id string) (*model.Shift, error) {
	s, ok := f.shifts[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	c := s
	return &c, nil
}

func (f *fakeStore) GetShiftByDateSlot(ctx context.Context, date, timeSlotID string) (*model.Shift, error) {
	for _, s := range f.shifts {
		if s.Date == date && s.TimeSlotID == timeSlotID {
			c := s
			return &c, nil
		}
	}
	return nil, db.ErrNotFound
}

func (f *fakeStore) InsertShift(ctx context.Context, shift *model.Shift) error {
	if f.insertShiftErr != nil {
		return f.insertShiftErr
	}
	for _, s := range f.shifts {
		if s.Date == shift.Date && s.TimeSlotID == shift.TimeSlotID {
			return db.ErrDuplicate
		}
	}
	f.shifts[shift.ID] = *shift
	return nil
}

func (f *fakeStore) checkedUpdateShift(shift *model.Shift) error {
	current, ok := f.shifts[shift.ID]
	if !ok {
		return db.ErrNotFound
	}
	if current.Version != shift.Version {
		return db.ErrConflict
	}
	shift.Version++
	f.shifts[shift.ID] = *shift
	return nil
}

func (f *fakeStore) UpdateShift(ctx context.Context, shift *model.Shift) error {
	return f.checkedUpdateShift(shift)
}

func (f *fakeStore) ListShiftsForSevenDayReminder(ctx context.Context, publishedBefore time.Time, fromDate string) ([]model.Shift, error) {
	var out []model.Shift
	for _, s := range f.shifts {
		if s.Status == model.StatusAssigned &&
			s.VolunteerID != "" &&
			s.MonthPublishedAt != nil &&
			!s.MonthPublishedAt.After(publishedBefore) &&
			!s.Reminder7DaySent &&
			s.Date >= fromDate {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) ListShiftsAwaiting24HourReminder(ctx context.Context, dates []string) ([]model.Shift, error) {
	var out []model.Shift
	for _, s := range f.shifts {
		if s.Status == model.StatusConfirmed && !s.Reminder24HourSent && s.VolunteerID != "" && containsDate(dates, s.Date) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) ListAssignedShifts(ctx context.Context, dates []string) ([]model.Shift, error) {
	var out []model.Shift
	for _, s := range f.shifts {
		if s.Status == model.StatusAssigned && s.VolunteerID != "" && containsDate(dates, s.Date) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) ListAssignedShiftsInMonth(ctx context.Context, fromDate, toDate string) ([]model.Shift, error) {
	var out []model.Shift
	for _, s := range f.shifts {
		if s.Status != model.StatusOpen && s.VolunteerID != "" && s.Date >= fromDate && s.Date <= toDate {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkSevenDayRemindersSent(ctx context.Context, shiftIDs []string) error {
	if f.markSevenErr != nil {
		return f.markSevenErr
	}
	for _, id := range shiftIDs {
		s := f.shifts[id]
		s.Reminder7DaySent = true
		f.shifts[id] = s
	}
	return nil
}

func (f *fakeStore) MarkTwentyFourHourReminderSent(ctx context.Context, shiftID string) error {
	if f.mark24Err != nil {
		return f.mark24Err
	}
	s := f.shifts[shiftID]
	s.Reminder24HourSent = true
	f.shifts[shiftID] = s
	return nil
}

func (f *fakeStore) MarkMonthPublished(ctx context.Context, shiftIDs []string, publishedAt time.Time) error {
	for _, id := range shiftIDs {
		s := f.shifts[id]
		at := publishedAt
		s.MonthPublishedAt = &at
		f.shifts[id] = s
	}
	return nil
}

func (f *fakeStore) SaveReopenedShift(ctx context.Context, shift *model.Shift, entry *model.AuditLogEntry) error {
	if f.saveReopenErr != nil {
		return f.saveReopenErr
	}
	if err := f.checkedUpdateShift(shift); err != nil {
		return err
	}
	f.audits = append(f.audits, *entry)
	return nil
}

func (f *fakeStore) GetVolunteer(ctx context.Context, id string) (*model.Volunteer, error) {
	v, ok := f.volunteers[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	c := v
	return &c, nil
}

func (f *fakeStore) GetVolunteerByEmail(ctx context.Context, email string) (*model.Volunteer, error) {
	for _, v := range f.volunteers {
		if v.Email == email {
			c := v
			return &c, nil
		}
	}
	return nil, db.ErrNotFound
}

func (f *fakeStore) InsertVolunteer(ctx context.Context, volunteer *model.Volunteer) error {
	for _, v := range f.volunteers {
		if v.Email == volunteer.Email {
			return db.ErrDuplicate
		}
	}
	f.volunteers[volunteer.ID] = *volunteer
	return nil
}

func (f *fakeStore) UpdateVolunteer(ctx context.Context, volunteer *model.Volunteer) error {
	if _, ok := f.volunteers[volunteer.ID]; !ok {
		return db.ErrNotFound
	}
	f.volunteers[volunteer.ID] = *volunteer
	return nil
}

func (f *fakeStore) ListVolunteers(ctx context.Context) ([]model.Volunteer, error) {
	var out []model.Volunteer
	for _, v := range f.volunteers {
		out = append(out, v)
	}
	return out, nil
}

func (f *fakeStore) ListVolunteersByID(ctx context.Context, ids []string) (map[string]model.Volunteer, error) {
	out := map[string]model.Volunteer{}
	for _, id := range ids {
		if v, ok := f.volunteers[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

func (f *fakeStore) ListActiveVolunteers(ctx context.Context, backupsOnly bool) ([]model.Volunteer, error) {
	var out []model.Volunteer
	for _, v := range f.volunteers {
		if !v.IsActive {
			continue
		}
		if backupsOnly && !v.IsBackup {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func (f *fakeStore) GetTimeSlot(ctx context.Context, id string) (*model.TimeSlot, error) {
	ts, ok := f.timeSlots[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	c := ts
	return &c, nil
}

func (f *fakeStore) ListTimeSlots(ctx context.Context) ([]model.TimeSlot, error) {
	var out []model.TimeSlot
	for _, ts := range f.timeSlots {
		out = append(out, ts)
	}
	return out, nil
}

func (f *fakeStore) GetShiftRequest(ctx context.Context, id string) (*model.ShiftRequest, error) {
	r, ok := f.requests[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	c := r
	return &c, nil
}

func (f *fakeStore) HasPendingRequest(ctx context.Context, shiftID, volunteerID string, slot model.SlotType) (bool, error) {
	for _, r := range f.requests {
		if r.ShiftID == shiftID && r.VolunteerID == volunteerID && r.RequestedSlot == slot && r.Status == model.RequestPending {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) InsertShiftRequest(ctx context.Context, request *model.ShiftRequest) error {
	pending, _ := f.HasPendingRequest(ctx, request.ShiftID, request.VolunteerID, request.RequestedSlot)
	if pending {
		return db.ErrDuplicate
	}
	f.requests[request.ID] = *request
	return nil
}

func (f *fakeStore) SaveResolvedRequest(ctx context.Context, request *model.ShiftRequest, shift *model.Shift, entry *model.AuditLogEntry) error {
	if shift != nil {
		if err := f.checkedUpdateShift(shift); err != nil {
			return err
		}
	}
	f.requests[request.ID] = *request
	f.audits = append(f.audits, *entry)
	return nil
}

func (f *fakeStore) GetActionToken(ctx context.Context, tokenValue string) (*model.ActionToken, error) {
	t, ok := f.tokens[tokenValue]
	if !ok {
		return nil, db.ErrNotFound
	}
	c := t
	return &c, nil
}

func (f *fakeStore) InsertActionToken(ctx context.Context, token *model.ActionToken) error {
	if _, ok := f.tokens[token.Token]; ok {
		return db.ErrDuplicate
	}
	f.tokens[token.Token] = *token
	return nil
}

func (f *fakeStore) SaveShiftAndConsumeToken(ctx context.Context, shift *model.Shift, token *model.ActionToken, entry *model.AuditLogEntry) error {
	if err := f.checkedUpdateShift(shift); err != nil {
		return err
	}
	f.tokens[token.Token] = *token
	f.audits = append(f.audits, *entry)
	return nil
}

func (f *fakeStore) SaveRequestAndConsumeToken(ctx context.Context, request *model.ShiftRequest, token *model.ActionToken, entry *model.AuditLogEntry) error {
	if err := f.InsertShiftRequest(ctx, request); err != nil {
		return err
	}
	f.tokens[token.Token] = *token
	f.audits = append(f.audits, *entry)
	return nil
}

func (f *fakeStore) DeleteSpentTokens(ctx context.Context, now time.Time) (int64, error) {
	var deleted int64
	for value, t := range f.tokens {
		if t.UsedAt != nil || !t.ExpiresAt.After(now) {
			delete(f.tokens, value)
			deleted++
		}
	}
	return deleted, nil
}

func (f *fakeStore) InsertAuditEntry(ctx context.Context, entry *model.AuditLogEntry) error {
	f.audits = append(f.audits, *entry)
	return nil
}

func (f *fakeStore) ListAuditEntriesForShift(ctx context.Context, shiftID string) ([]model.AuditLogEntry, error) {
	var out []model.AuditLogEntry
	for _, e := range f.audits {
		if e.ShiftID == shiftID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) auditsFor(shiftID string) []model.AuditLogEntry {
	entries, _ := f.ListAuditEntriesForShift(context.Background(), shiftID)
	return entries
}

func containsDate(dates []string, date string) bool {
	for _, d := range dates {
		if d == date {
			return true
		}
	}
	return false
}

// mockNotifier records every notification and can be told to fail for
// specific recipient emails (or everything, via errAll)
type mockNotifier struct {
	errAll  error
	failFor map[string]error // recipient email -> error

	monthly       []string // emails
	sevenDay      []string // emails
	twentyFour    []string // "email shiftID"
	received      []string // emails
	approved      []string // emails
	rejected      []string // emails
	reopened      []string // shift IDs
	backupBlasts  [][]string
	allBlasts     [][]string
	lastSummaries []ShiftSummary
}

func (m *mockNotifier) fail(email string) error {
	if m.errAll != nil {
		return m.errAll
	}
	if err, ok := m.failFor[email]; ok {
		return err
	}
	return nil
}

func (m *mockNotifier) SendMonthlyAssignments(ctx context.Context, volunteer model.Volunteer, shifts []ShiftSummary) error {
	if err := m.fail(volunteer.Email); err != nil {
		return err
	}
	m.monthly = append(m.monthly, volunteer.Email)
	m.lastSummaries = shifts
	return nil
}

func (m *mockNotifier) SendSevenDayReminder(ctx context.Context, volunteer model.Volunteer, shifts []ShiftSummary) error {
	if err := m.fail(volunteer.Email); err != nil {
		return err
	}
	m.sevenDay = append(m.sevenDay, volunteer.Email)
	m.lastSummaries = shifts
	return nil
}

func (m *mockNotifier) SendTwentyFourHourReminder(ctx context.Context, volunteer model.Volunteer, shift ShiftSummary) error {
	if err := m.fail(volunteer.Email); err != nil {
		return err
	}
	m.twentyFour = append(m.twentyFour, fmt.Sprintf("%s %s", volunteer.Email, shift.Shift.ID))
	return nil
}

func (m *mockNotifier) SendRequestReceived(ctx context.Context, volunteer model.Volunteer, shift ShiftSummary) error {
	if err := m.fail(volunteer.Email); err != nil {
		return err
	}
	m.received = append(m.received, volunteer.Email)
	return nil
}

func (m *mockNotifier) SendRequestApproved(ctx context.Context, volunteer model.Volunteer, shift ShiftSummary) error {
	if err := m.fail(volunteer.Email); err != nil {
		return err
	}
	m.approved = append(m.approved, volunteer.Email)
	return nil
}

func (m *mockNotifier) SendRequestRejected(ctx context.Context, volunteer model.Volunteer, shift ShiftSummary) error {
	if err := m.fail(volunteer.Email); err != nil {
		return err
	}
	m.rejected = append(m.rejected, volunteer.Email)
	return nil
}

func (m *mockNotifier) SendShiftReopenedToAdmins(ctx context.Context, shift ShiftSummary) error {
	if m.errAll != nil {
		return m.errAll
	}
	m.reopened = append(m.reopened, shift.Shift.ID)
	return nil
}

func (m *mockNotifier) SendEscalationToBackups(ctx context.Context, shift ShiftSummary, backups []model.Volunteer) error {
	if m.errAll != nil {
		return m.errAll
	}
	emails := make([]string, 0, len(backups))
	for _, v := range backups {
		emails = append(emails, v.Email)
	}
	m.backupBlasts = append(m.backupBlasts, emails)
	return nil
}

func (m *mockNotifier) SendEscalationToAll(ctx context.Context, shift ShiftSummary, volunteers []model.Volunteer) error {
	if m.errAll != nil {
		return m.errAll
	}
	emails := make([]string, 0, len(volunteers))
	for _, v := range volunteers {
		emails = append(emails, v.Email)
	}
	m.allBlasts = append(m.allBlasts, emails)
	return nil
}
