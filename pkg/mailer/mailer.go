// Package mailer renders and sends the system's outbound email. It implements
// services.Notifier on top of a throttled email sender (Gmail in production)
// and the token issuer, so every actionable email carries fresh single-use
// links.
package mailer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/intergroup-dev/volunteer-shifts/pkg/core/model"
	"github.com/intergroup-dev/volunteer-shifts/pkg/core/services"
	"github.com/intergroup-dev/volunteer-shifts/pkg/tokens"
)

// EmailSender delivers a single email. gmailclient.Client satisfies this.
type EmailSender interface {
	SendEmail(to, subject, body string) error
}

// TokenIssuer mints action tokens and builds their URLs
type TokenIssuer interface {
	Issue(ctx context.Context, shiftID, volunteerID string, action model.TokenAction, now time.Time, opts ...tokens.Option) (*model.ActionToken, error)
	ActionURL(tokenValue string) string
}

// Mailer implements services.Notifier
type Mailer struct {
	sender      EmailSender
	issuer      TokenIssuer
	adminEmails []string
	logger      *zap.Logger
	now         func() time.Time
}

// New creates a Mailer. adminEmails receive reopen alerts.
func New(sender EmailSender, issuer TokenIssuer, adminEmails []string, logger *zap.Logger) *Mailer {
	return &Mailer{
		sender:      sender,
		issuer:      issuer,
		adminEmails: adminEmails,
		logger:      logger,
		now:         time.Now,
	}
}

// SendMonthlyAssignments emails a volunteer their published shifts for the
// month, each with confirm and decline links
func (m *Mailer) SendMonthlyAssignments(ctx context.Context, volunteer model.Volunteer, shifts []services.ShiftSummary) error {
	listing, err := m.shiftListingWithLinks(ctx, volunteer, shifts)
	if err != nil {
		return err
	}

	subject := "Your volunteer shifts have been published"
	body := fmt.Sprintf("Hi %s\n\nThe new rota is out and you have %s:\n\n%s\nPlease confirm each shift using its link. If you can't make one, use the decline link and we'll find cover.\n\nThanks\nThe volunteer team\n",
		firstName(volunteer.Name), countShifts(len(shifts)), listing)

	return m.sender.SendEmail(volunteer.Email, subject, body)
}

// SendSevenDayReminder chases a volunteer's still-unconfirmed shifts with
// fresh confirm and decline links
func (m *Mailer) SendSevenDayReminder(ctx context.Context, volunteer model.Volunteer, shifts []services.ShiftSummary) error {
	listing, err := m.shiftListingWithLinks(ctx, volunteer, shifts)
	if err != nil {
		return err
	}

	subject := "Reminder: please confirm your upcoming shifts"
	body := fmt.Sprintf("Hi %s\n\nYou have %s that still %s confirmation:\n\n%s\nPlease confirm or decline each one so we know the shifts are covered.\n\nThanks\nThe volunteer team\n",
		firstName(volunteer.Name), countShifts(len(shifts)), needsWord(len(shifts)), listing)

	return m.sender.SendEmail(volunteer.Email, subject, body)
}

// SendTwentyFourHourReminder reminds a volunteer of tomorrow's confirmed
// shift. The cancel link is short-lived on purpose.
func (m *Mailer) SendTwentyFourHourReminder(ctx context.Context, volunteer model.Volunteer, shift services.ShiftSummary) error {
	cancel, err := m.issuer.Issue(ctx, shift.Shift.ID, volunteer.ID, model.ActionCancel, m.now(), tokens.WithTTLDays(1))
	if err != nil {
		return fmt.Errorf("failed to issue cancel token: %w", err)
	}

	subject := fmt.Sprintf("Reminder: your shift tomorrow (%s)", shift.TimeSlot.Label)
	body := fmt.Sprintf("Hi %s\n\nA reminder that you're on shift tomorrow:\n\n  %s\n\nIf something has come up and you can no longer make it, cancel here so we can find cover:\n%s\n\nThanks\nThe volunteer team\n",
		firstName(volunteer.Name), describeShift(shift), m.issuer.ActionURL(cancel.Token))

	return m.sender.SendEmail(volunteer.Email, subject, body)
}

// SendRequestReceived acknowledges a self-service shift request
func (m *Mailer) SendRequestReceived(ctx context.Context, volunteer model.Volunteer, shift services.ShiftSummary) error {
	subject := "We received your shift request"
	body := fmt.Sprintf("Hi %s\n\nThanks for requesting this shift:\n\n  %s\n\nThe office will review it and you'll get an email once it's been decided.\n\nThanks\nThe volunteer team\n",
		firstName(volunteer.Name), describeShift(shift))

	return m.sender.SendEmail(volunteer.Email, subject, body)
}

// SendRequestApproved tells a volunteer their request was approved, with
// confirm and decline links for the resulting assignment
func (m *Mailer) SendRequestApproved(ctx context.Context, volunteer model.Volunteer, shift services.ShiftSummary) error {
	listing, err := m.shiftListingWithLinks(ctx, volunteer, []services.ShiftSummary{shift})
	if err != nil {
		return err
	}

	subject := "Your shift request was approved"
	body := fmt.Sprintf("Hi %s\n\nGood news, your shift request was approved:\n\n%s\nPlease confirm the shift using its link.\n\nThanks\nThe volunteer team\n",
		firstName(volunteer.Name), listing)

	return m.sender.SendEmail(volunteer.Email, subject, body)
}

// SendRequestRejected tells a volunteer their request was not approved
func (m *Mailer) SendRequestRejected(ctx context.Context, volunteer model.Volunteer, shift services.ShiftSummary) error {
	subject := "An update on your shift request"
	body := fmt.Sprintf("Hi %s\n\nUnfortunately we couldn't approve your request for this shift:\n\n  %s\n\nOther shifts are still open, so please do request another slot.\n\nThanks\nThe volunteer team\n",
		firstName(volunteer.Name), describeShift(shift))

	return m.sender.SendEmail(volunteer.Email, subject, body)
}

// SendShiftReopenedToAdmins alerts every configured admin that a shift lost
// its volunteer close to the start. Failures are collected per recipient.
func (m *Mailer) SendShiftReopenedToAdmins(ctx context.Context, shift services.ShiftSummary) error {
	subject := fmt.Sprintf("Shift reopened: %s", describeShift(shift))
	body := fmt.Sprintf("A shift starting within 24 hours was never confirmed and has been reopened:\n\n  %s\n\nThe backup pool has been invited to claim it, but it may need manual cover.\n", describeShift(shift))

	var failed int
	for _, admin := range m.adminEmails {
		if err := m.sender.SendEmail(admin, subject, body); err != nil {
			m.logger.Warn("Failed to send reopen alert",
				zap.String("email", admin),
				zap.Error(err))
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("failed to alert %d of %d admins", failed, len(m.adminEmails))
	}
	return nil
}

// SendEscalationToBackups invites the backup pool to claim a reopened shift
func (m *Mailer) SendEscalationToBackups(ctx context.Context, shift services.ShiftSummary, backups []model.Volunteer) error {
	return m.sendEscalation(ctx, shift, backups, "As one of our backup volunteers, you're getting first refusal on this shift.")
}

// SendEscalationToAll widens the invitation to every active volunteer
func (m *Mailer) SendEscalationToAll(ctx context.Context, shift services.ShiftSummary, volunteers []model.Volunteer) error {
	return m.sendEscalation(ctx, shift, volunteers, "We're reaching out to all volunteers to get this shift covered.")
}

// sendEscalation mints a claim link per recipient and sends individually,
// continuing past per-recipient failures
func (m *Mailer) sendEscalation(ctx context.Context, shift services.ShiftSummary, recipients []model.Volunteer, note string) error {
	subject := fmt.Sprintf("Volunteer needed: %s", describeShift(shift))

	var failed int
	for _, volunteer := range recipients {
		claim, err := m.issuer.Issue(ctx, shift.Shift.ID, volunteer.ID, model.ActionRequest, m.now())
		if err != nil {
			m.logger.Warn("Failed to issue claim token",
				zap.String("volunteer_id", volunteer.ID),
				zap.Error(err))
			failed++
			continue
		}

		body := fmt.Sprintf("Hi %s\n\nA shift has just reopened and needs cover:\n\n  %s\n\n%s\n\nIf you can take it, claim it here:\n%s\n\nFirst come, first served. Thanks!\nThe volunteer team\n",
			firstName(volunteer.Name), describeShift(shift), note, m.issuer.ActionURL(claim.Token))

		if err := m.sender.SendEmail(volunteer.Email, subject, body); err != nil {
			m.logger.Warn("Failed to send escalation email",
				zap.String("email", volunteer.Email),
				zap.Error(err))
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("failed to reach %d of %d volunteers", failed, len(recipients))
	}
	return nil
}

// shiftListingWithLinks renders one block per shift with fresh confirm and
// decline links
func (m *Mailer) shiftListingWithLinks(ctx context.Context, volunteer model.Volunteer, shifts []services.ShiftSummary) (string, error) {
	var sb strings.Builder
	for _, shift := range shifts {
		confirm, err := m.issuer.Issue(ctx, shift.Shift.ID, volunteer.ID, model.ActionConfirm, m.now())
		if err != nil {
			return "", fmt.Errorf("failed to issue confirm token: %w", err)
		}
		decline, err := m.issuer.Issue(ctx, shift.Shift.ID, volunteer.ID, model.ActionDecline, m.now())
		if err != nil {
			return "", fmt.Errorf("failed to issue decline token: %w", err)
		}

		fmt.Fprintf(&sb, "  %s\n    Confirm: %s\n    Decline: %s\n\n",
			describeShift(shift), m.issuer.ActionURL(confirm.Token), m.issuer.ActionURL(decline.Token))
	}
	return sb.String(), nil
}

// describeShift renders "Saturday 12 September 2026, Morning (09:00)"
func describeShift(shift services.ShiftSummary) string {
	date := shift.Shift.Date
	if t, err := time.Parse("2006-01-02", date); err == nil {
		date = t.Format("Monday 2 January 2006")
	}
	return fmt.Sprintf("%s, %s (%s)", date, shift.TimeSlot.Label, shift.TimeSlot.StartTime)
}

func firstName(name string) string {
	if first, _, found := strings.Cut(name, " "); found {
		return first
	}
	return name
}

func countShifts(n int) string {
	if n == 1 {
		return "1 shift"
	}
	return fmt.Sprintf("%d shifts", n)
}

func needsWord(n int) string {
	if n == 1 {
		return "needs"
	}
	return "need"
}
