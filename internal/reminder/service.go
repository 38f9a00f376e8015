// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FamTrack Contributors

// Package reminder sends the daily "log your expenses" email, either on
// schedule to every user or on demand by a family admin.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"golang.org/x/sync/errgroup"

	"github.com/famtrack/famtrack/internal/auth"
)

// DefaultConcurrency bounds parallel sends in a single dispatch.
const DefaultConcurrency = 4

// Error codes returned by Service.
const (
	CodeMemberNotFound = "REMINDER_MEMBER_NOT_FOUND"
	CodeFamilyNotFound = "REMINDER_FAMILY_NOT_FOUND"
	CodeUserNotFound   = "REMINDER_USER_NOT_FOUND"
	CodeNoValidMembers = "REMINDER_NO_VALID_MEMBERS"
	CodeSendFailed     = "REMINDER_SEND_FAILED"
	CodeDispatchFailed = "REMINDER_DISPATCH_FAILED"
)

func init() {
	auth.RegisterKind(CodeMemberNotFound, auth.KindNotFound)
	auth.RegisterKind(CodeFamilyNotFound, auth.KindNotFound)
	auth.RegisterKind(CodeUserNotFound, auth.KindNotFound)
	auth.RegisterKind(CodeNoValidMembers, auth.KindBadRequest)
}

// Triggers label a dispatch in logs and metrics.
const (
	TriggerMember = "member"
	TriggerAll    = "all"
	TriggerBulk   = "bulk"
	TriggerTest   = "test"
	TriggerDaily  = "daily"
)

// Delivery statuses.
const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// Notifier delivers a single reminder email.
type Notifier interface {
	SendExpenseReminder(ctx context.Context, email, userName, familyName string) error
}

// Recorder counts dispatch outcomes.
type Recorder interface {
	RecordReminders(trigger string, sent, failed int)
}

// Outcome is the result of a reminder to one member.
type Outcome struct {
	Message string `json:"message"`
	SentTo  string `json:"sentTo"`
}

// Result is the delivery status for one recipient.
type Result struct {
	Email  string `json:"email"`
	Name   string `json:"name,omitempty"`
	Status string `json:"status"`
}

// Tally summarizes a multi-recipient dispatch. Results follow recipient order.
type Tally struct {
	Message        string   `json:"message"`
	SuccessCount   int      `json:"successCount"`
	FailCount      int      `json:"failCount"`
	Total          int      `json:"totalMembers"`
	TotalRequested int      `json:"totalRequested,omitempty"`
	Results        []Result `json:"results"`
}

type recipient struct {
	email      string
	name       string
	familyName string
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithConcurrency sets how many reminders are sent at once. Values below 1
// are ignored.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n >= 1 {
			s.concurrency = n
		}
	}
}

// WithRecorder reports dispatch outcomes to r.
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		s.recorder = r
	}
}

// Service dispatches expense reminders.
type Service struct {
	users       auth.UserRepository
	families    auth.FamilyRepository
	notifier    Notifier
	logger      *slog.Logger
	recorder    Recorder
	concurrency int
}

// NewService creates a Service.
func NewService(users auth.UserRepository, families auth.FamilyRepository, notifier Notifier, opts ...Option) (*Service, error) {
	if users == nil {
		return nil, oops.Errorf("users repository is required")
	}
	if families == nil {
		return nil, oops.Errorf("families repository is required")
	}
	if notifier == nil {
		return nil, oops.Errorf("notifier is required")
	}
	s := &Service{
		users:       users,
		families:    families,
		notifier:    notifier,
		logger:      slog.Default(),
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SendToMember reminds one member of familyID. Unlike the multi-recipient
// operations, a delivery failure is returned to the caller.
func (s *Service) SendToMember(ctx context.Context, familyID, memberID ulid.ULID) (*Outcome, error) {
	member, err := s.users.GetByID(ctx, memberID)
	if errors.Is(err, auth.ErrNotFound) || (err == nil && member.FamilyID != familyID) {
		return nil, oops.Code(CodeMemberNotFound).Errorf("Member not found in your family")
	}
	if err != nil {
		return nil, oops.With("operation", "get member").Wrap(err)
	}
	family, err := s.families.GetByID(ctx, familyID)
	if err != nil {
		return nil, oops.With("operation", "get family").Wrap(err)
	}

	if err := s.notifier.SendExpenseReminder(ctx, member.Email, member.Name, family.Name); err != nil {
		s.record(TriggerMember, 0, 1)
		return nil, oops.Code(CodeSendFailed).
			With("member_id", memberID.String()).
			Wrap(err)
	}
	s.record(TriggerMember, 1, 0)
	s.logger.InfoContext(ctx, "manual reminder sent",
		"family_id", familyID.String(),
		"member_id", memberID.String())
	return &Outcome{
		Message: fmt.Sprintf("Reminder sent successfully to %s", member.Name),
		SentTo:  member.Email,
	}, nil
}

// SendToAll reminds every member of familyID.
func (s *Service) SendToAll(ctx context.Context, familyID ulid.ULID) (*Tally, error) {
	family, err := s.families.GetByID(ctx, familyID)
	if errors.Is(err, auth.ErrNotFound) {
		return nil, oops.Code(CodeFamilyNotFound).Errorf("Family not found")
	}
	if err != nil {
		return nil, oops.With("operation", "get family").Wrap(err)
	}
	members, err := s.users.ListByFamily(ctx, familyID)
	if err != nil {
		return nil, oops.With("operation", "list family members").Wrap(err)
	}

	recipients := make([]recipient, 0, len(members))
	for _, m := range members {
		recipients = append(recipients, recipient{email: m.Email, name: m.Name, familyName: family.Name})
	}
	tally := s.dispatch(ctx, TriggerAll, recipients)
	return tally, nil
}

// SendBulk reminds the listed members. IDs outside familyID and repeats are
// skipped; the remaining members are sent to in the order requested.
func (s *Service) SendBulk(ctx context.Context, familyID ulid.ULID, memberIDs []ulid.ULID) (*Tally, error) {
	seen := make(map[ulid.ULID]struct{}, len(memberIDs))
	var recipients []recipient
	var familyName string
	for _, id := range memberIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		member, err := s.users.GetByID(ctx, id)
		if errors.Is(err, auth.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, oops.With("operation", "get member").With("member_id", id.String()).Wrap(err)
		}
		if member.FamilyID != familyID {
			continue
		}
		if familyName == "" {
			family, err := s.families.GetByID(ctx, familyID)
			if err != nil {
				return nil, oops.With("operation", "get family").Wrap(err)
			}
			familyName = family.Name
		}
		recipients = append(recipients, recipient{email: member.Email, name: member.Name, familyName: familyName})
	}
	if len(recipients) == 0 {
		return nil, oops.Code(CodeNoValidMembers).Errorf("No valid members found")
	}

	tally := s.dispatch(ctx, TriggerBulk, recipients)
	tally.TotalRequested = len(memberIDs)
	return tally, nil
}

// SendTest sends a reminder to the account registered under email.
func (s *Service) SendTest(ctx context.Context, email string) (string, error) {
	user, err := s.users.GetByEmail(ctx, auth.NormalizeEmail(email))
	if errors.Is(err, auth.ErrNotFound) {
		return "", oops.Code(CodeUserNotFound).Errorf("User not found")
	}
	if err != nil {
		return "", oops.With("operation", "get user by email").Wrap(err)
	}
	family, err := s.families.GetByID(ctx, user.FamilyID)
	if err != nil {
		return "", oops.With("operation", "get family").Wrap(err)
	}

	if err := s.notifier.SendExpenseReminder(ctx, user.Email, user.Name, family.Name); err != nil {
		s.record(TriggerTest, 0, 1)
		return "", oops.Code(CodeSendFailed).With("user_id", user.ID.String()).Wrap(err)
	}
	s.record(TriggerTest, 1, 0)
	return "Test reminder sent successfully", nil
}

// SendDaily reminds every user of every family.
func (s *Service) SendDaily(ctx context.Context) (*Tally, error) {
	start := time.Now()
	families, err := s.families.List(ctx)
	if err != nil {
		return nil, oops.Code(CodeDispatchFailed).With("operation", "list families").Wrap(err)
	}

	var recipients []recipient
	for _, family := range families {
		members, err := s.users.ListByFamily(ctx, family.ID)
		if err != nil {
			return nil, oops.Code(CodeDispatchFailed).
				With("operation", "list family members").
				With("family_id", family.ID.String()).
				Wrap(err)
		}
		for _, m := range members {
			recipients = append(recipients, recipient{email: m.Email, name: m.Name, familyName: family.Name})
		}
	}

	tally := s.dispatch(ctx, TriggerDaily, recipients)
	s.logger.InfoContext(ctx, "daily expense reminder complete",
		"families", len(families),
		"sent", tally.SuccessCount,
		"failed", tally.FailCount,
		"duration", time.Since(start))
	return tally, nil
}

// dispatch sends to every recipient with bounded parallelism. A failed send
// is recorded in its slot and never stops the others.
func (s *Service) dispatch(ctx context.Context, trigger string, recipients []recipient) *Tally {
	results := make([]Result, len(recipients))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, r := range recipients {
		g.Go(func() error {
			results[i] = Result{Email: r.email, Name: r.name, Status: StatusSent}
			if err := s.notifier.SendExpenseReminder(ctx, r.email, r.name, r.familyName); err != nil {
				results[i].Status = StatusFailed
				s.logger.WarnContext(ctx, "reminder delivery failed",
					"trigger", trigger,
					"error", err)
			}
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // workers never return an error

	tally := &Tally{Total: len(recipients), Results: results}
	for _, r := range results {
		if r.Status == StatusSent {
			tally.SuccessCount++
		} else {
			tally.FailCount++
		}
	}
	tally.Message = fmt.Sprintf("Reminders sent to %d member(s), %d failed", tally.SuccessCount, tally.FailCount)
	s.record(trigger, tally.SuccessCount, tally.FailCount)
	return tally
}

func (s *Service) record(trigger string, sent, failed int) {
	if s.recorder != nil {
		s.recorder.RecordReminders(trigger, sent, failed)
	}
}
