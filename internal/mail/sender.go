// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FamTrack Contributors

package mail

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/famtrack/famtrack/internal/auth"
)

// DefaultTimeout bounds a single delivery.
const DefaultTimeout = 10 * time.Second

// Subjects of the messages FamTrack sends.
const (
	SubjectOTP        = "Your OTP for Family Expense Tracker Registration"
	SubjectFamilyCode = "Your Family Code - Family Expense Tracker"
	SubjectReminder   = "⏰ Daily Reminder: Update Your Expenses - Family Expense Tracker"
)

const reminderDateLayout = "Monday, January 2, 2006"

// Message is a rendered email ready for a Transport.
type Message struct {
	From     string
	To       string
	Subject  string
	HTML     string
	Text     string
	Template string
}

// Transport delivers rendered messages.
type Transport interface {
	Deliver(ctx context.Context, msg Message) error
}

// SenderOption configures a Sender.
type SenderOption func(*Sender)

// WithTimeout bounds each delivery. Non-positive values keep DefaultTimeout.
func WithTimeout(d time.Duration) SenderOption {
	return func(s *Sender) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) SenderOption {
	return func(s *Sender) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock sets the time source used to date reminders.
func WithClock(now func() time.Time) SenderOption {
	return func(s *Sender) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocation sets the zone reminder dates are printed in.
func WithLocation(loc *time.Location) SenderOption {
	return func(s *Sender) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithAppURL sets the web client base URL linked from reminders.
func WithAppURL(url string) SenderOption {
	return func(s *Sender) {
		s.appURL = strings.TrimRight(url, "/")
	}
}

// Sender renders FamTrack emails and hands them to a Transport. It
// implements auth.Mailer and reminder.Notifier.
type Sender struct {
	transport Transport
	from      string
	renderer  *renderer
	timeout   time.Duration
	logger    *slog.Logger
	now       func() time.Time
	loc       *time.Location
	appURL    string
}

var _ auth.Mailer = (*Sender)(nil)

// NewSender creates a Sender that sends from the given address.
func NewSender(transport Transport, from string, opts ...SenderOption) (*Sender, error) {
	if transport == nil {
		return nil, oops.Errorf("mail transport is required")
	}
	if strings.TrimSpace(from) == "" {
		return nil, oops.Code("MAIL_FROM_REQUIRED").Errorf("sender address is required")
	}
	r, err := newRenderer()
	if err != nil {
		return nil, err
	}
	s := &Sender{
		transport: transport,
		from:      from,
		renderer:  r,
		timeout:   DefaultTimeout,
		logger:    slog.Default(),
		now:       time.Now,
		loc:       time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SendOTP mails a registration code.
func (s *Sender) SendOTP(ctx context.Context, email, code string) error {
	return s.send(ctx, email, SubjectOTP, TemplateOTP, struct {
		Code          string
		ExpiryMinutes int
	}{code, int(auth.OTPExpiry.Minutes())})
}

// SendFamilyCode mails a user their family's join code.
func (s *Sender) SendFamilyCode(ctx context.Context, email, userName, familyCode, familyName string) error {
	return s.send(ctx, email, SubjectFamilyCode, TemplateFamilyCode, struct {
		UserName, FamilyCode, FamilyName string
	}{userName, familyCode, familyName})
}

// SendExpenseReminder mails the daily prompt to log expenses.
func (s *Sender) SendExpenseReminder(ctx context.Context, email, userName, familyName string) error {
	var expensesURL string
	if s.appURL != "" {
		expensesURL = s.appURL + "/expenses"
	}
	return s.send(ctx, email, SubjectReminder, TemplateReminder, struct {
		UserName, FamilyName, Date, ExpensesURL string
	}{userName, familyName, s.now().In(s.loc).Format(reminderDateLayout), expensesURL})
}

func (s *Sender) send(ctx context.Context, to, subject, tmpl string, data any) error {
	htmlBody, textBody, err := s.renderer.render(tmpl, data)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	msg := Message{
		From:     s.from,
		To:       to,
		Subject:  subject,
		HTML:     htmlBody,
		Text:     textBody,
		Template: tmpl,
	}
	if err := s.transport.Deliver(ctx, msg); err != nil {
		return oops.Code("MAIL_SEND_FAILED").With("template", tmpl).Wrap(err)
	}
	s.logger.DebugContext(ctx, "email sent", "template", tmpl)
	return nil
}
