// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FamTrack Contributors

package ledger

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/famtrack/famtrack/internal/auth"
)

// Error codes returned by Service.
const (
	CodeEntryNotFound   = "LEDGER_ENTRY_NOT_FOUND"
	CodeNotOwner        = "LEDGER_NOT_OWNER"
	CodeInvalidAmount   = "LEDGER_INVALID_AMOUNT"
	CodeInvalidCategory = "LEDGER_INVALID_CATEGORY"
	CodeInvalidDate     = "LEDGER_INVALID_DATE"
	CodeInvalidMonths   = "LEDGER_INVALID_MONTHS"
)

func init() {
	auth.RegisterKind(CodeEntryNotFound, auth.KindNotFound)
	auth.RegisterKind(CodeNotOwner, auth.KindForbidden)
	auth.RegisterKind(CodeInvalidAmount, auth.KindBadRequest)
	auth.RegisterKind(CodeInvalidCategory, auth.KindBadRequest)
	auth.RegisterKind(CodeInvalidDate, auth.KindBadRequest)
	auth.RegisterKind(CodeInvalidMonths, auth.KindBadRequest)
}

// MaxAmount bounds a single entry. Amounts are stored as NUMERIC(14, 2).
const MaxAmount = 1e12 - 0.01

// NewEntry holds the fields of an entry being recorded.
type NewEntry struct {
	Amount   float64
	Category string
	Date     time.Time
	Notes    *string
}

// Patch holds the fields to change on an entry. Nil fields are left alone,
// as is a blank category.
type Patch struct {
	Amount   *float64
	Category *string
	Date     *time.Time
	Notes    *string
}

// Stats summarizes one member's entries of a kind.
type Stats struct {
	Total      float64            `json:"total"`
	Count      int                `json:"count"`
	ByCategory map[string]float64 `json:"byCategory"`
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

// WithClock overrides the time source used for timestamps and trend windows.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// Service manages ledger entries. Members read and change only their own
// entries but can list every entry in their family.
type Service struct {
	entries Repository
	users   auth.UserRepository
	logger  *slog.Logger
	now     func() time.Time
}

// NewService creates a Service.
func NewService(entries Repository, users auth.UserRepository, opts ...Option) (*Service, error) {
	if entries == nil {
		return nil, oops.Errorf("entries repository is required")
	}
	if users == nil {
		return nil, oops.Errorf("users repository is required")
	}
	s := &Service{entries: entries, users: users, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Create records a new entry for userID.
func (s *Service) Create(ctx context.Context, kind Kind, userID ulid.ULID, in NewEntry) (*Entry, error) {
	if err := checkKind(kind); err != nil {
		return nil, err
	}
	amount, err := checkAmount(in.Amount)
	if err != nil {
		return nil, err
	}
	category := strings.TrimSpace(in.Category)
	if category == "" {
		return nil, oops.Code(CodeInvalidCategory).Errorf("category should not be empty")
	}
	if in.Date.IsZero() {
		return nil, oops.Code(CodeInvalidDate).Errorf("date must be a valid ISO 8601 date string")
	}

	now := s.now().UTC()
	entry := &Entry{
		ID:        ulid.Make(),
		Kind:      kind,
		UserID:    userID,
		Amount:    amount,
		Category:  category,
		Date:      in.Date.UTC(),
		Notes:     in.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.entries.Create(ctx, entry); err != nil {
		return nil, oops.With("operation", "create "+string(kind)).Wrap(err)
	}
	s.logger.InfoContext(ctx, "ledger entry created",
		"kind", string(kind),
		"entry_id", entry.ID.String(),
		"user_id", userID.String())
	return entry, nil
}

// ListMine returns a member's entries, newest first. The list is never nil.
func (s *Service) ListMine(ctx context.Context, kind Kind, userID ulid.ULID) ([]*Entry, error) {
	if err := checkKind(kind); err != nil {
		return nil, err
	}
	entries, err := s.entries.ListByUser(ctx, kind, userID, time.Time{})
	if err != nil {
		return nil, oops.With("operation", "list user "+string(kind)).Wrap(err)
	}
	return nonNil(entries), nil
}

// ListFamily returns every family member's entries with their owners,
// newest first. The list is never nil.
func (s *Service) ListFamily(ctx context.Context, kind Kind, familyID ulid.ULID) ([]*Entry, error) {
	if err := checkKind(kind); err != nil {
		return nil, err
	}
	entries, err := s.entries.ListByFamily(ctx, kind, familyID, time.Time{})
	if err != nil {
		return nil, oops.With("operation", "list family "+string(kind)).Wrap(err)
	}
	return nonNil(entries), nil
}

// Get returns one of userID's entries.
func (s *Service) Get(ctx context.Context, kind Kind, id, userID ulid.ULID) (*Entry, error) {
	return s.owned(ctx, kind, id, userID, "view")
}

// Update applies p to one of userID's entries.
func (s *Service) Update(ctx context.Context, kind Kind, id, userID ulid.ULID, p Patch) (*Entry, error) {
	entry, err := s.owned(ctx, kind, id, userID, "update")
	if err != nil {
		return nil, err
	}

	if p.Amount != nil {
		if entry.Amount, err = checkAmount(*p.Amount); err != nil {
			return nil, err
		}
	}
	if p.Category != nil {
		if category := strings.TrimSpace(*p.Category); category != "" {
			entry.Category = category
		}
	}
	if p.Date != nil && !p.Date.IsZero() {
		entry.Date = p.Date.UTC()
	}
	if p.Notes != nil {
		entry.Notes = p.Notes
	}
	entry.UpdatedAt = s.now().UTC()

	if err := s.entries.Update(ctx, entry); err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return nil, NotFound(kind)
		}
		return nil, oops.With("operation", "update "+string(kind)).Wrap(err)
	}
	entry.User = nil
	return entry, nil
}

// Delete removes one of userID's entries.
func (s *Service) Delete(ctx context.Context, kind Kind, id, userID ulid.ULID) (string, error) {
	if _, err := s.owned(ctx, kind, id, userID, "delete"); err != nil {
		return "", err
	}
	err := s.entries.Delete(ctx, kind, id)
	if errors.Is(err, auth.ErrNotFound) {
		return "", NotFound(kind)
	}
	if err != nil {
		return "", oops.With("operation", "delete "+string(kind)).Wrap(err)
	}
	s.logger.InfoContext(ctx, "ledger entry deleted",
		"kind", string(kind),
		"entry_id", id.String(),
		"user_id", userID.String())
	return kind.Title() + " record deleted successfully", nil
}

// Stats totals a member's entries overall and per category.
func (s *Service) Stats(ctx context.Context, kind Kind, userID ulid.ULID) (*Stats, error) {
	entries, err := s.ListMine(ctx, kind, userID)
	if err != nil {
		return nil, err
	}
	return &Stats{
		Total:      sum(entries),
		Count:      len(entries),
		ByCategory: byCategory(entries),
	}, nil
}

// owned loads an entry and checks that userID recorded it. verb names the
// attempted action in the ownership error.
func (s *Service) owned(ctx context.Context, kind Kind, id, userID ulid.ULID, verb string) (*Entry, error) {
	if err := checkKind(kind); err != nil {
		return nil, err
	}
	entry, err := s.entries.GetByID(ctx, kind, id)
	if errors.Is(err, auth.ErrNotFound) {
		return nil, NotFound(kind)
	}
	if err != nil {
		return nil, oops.With("operation", "get "+string(kind)).Wrap(err)
	}
	if entry.UserID != userID {
		return nil, oops.Code(CodeNotOwner).
			With("entry_id", id.String()).
			Errorf("You can only %s your own %s records", verb, kind)
	}
	return entry, nil
}

// NotFound is the error for an entry that does not exist.
func NotFound(kind Kind) error {
	return oops.Code(CodeEntryNotFound).Errorf("%s record not found", kind.Title())
}

func checkKind(kind Kind) error {
	if !kind.Valid() {
		return oops.With("kind", string(kind)).Errorf("unknown ledger kind")
	}
	return nil
}

// checkAmount rejects negative, non-finite and oversized amounts and rounds
// to cents.
func checkAmount(amount float64) (float64, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, oops.Code(CodeInvalidAmount).Errorf("amount must be a number conforming to the specified constraints")
	}
	if amount < 0 {
		return 0, oops.Code(CodeInvalidAmount).Errorf("amount must not be less than 0")
	}
	if amount > MaxAmount {
		return 0, oops.Code(CodeInvalidAmount).With("max", MaxAmount).Errorf("amount must not be greater than %.2f", MaxAmount)
	}
	return math.Round(amount*100) / 100, nil
}

func nonNil(entries []*Entry) []*Entry {
	if entries == nil {
		return []*Entry{}
	}
	return entries
}
