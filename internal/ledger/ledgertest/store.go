// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FamTrack Contributors

// Package ledgertest provides an in-memory ledger.Repository for tests.
package ledgertest

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/famtrack/famtrack/internal/auth"
	"github.com/famtrack/famtrack/internal/ledger"
)

// Store is an in-memory ledger.Repository. Owners and family membership are
// resolved through users, so entries follow members as they come and go.
type Store struct {
	mu      sync.Mutex
	users   auth.UserRepository
	entries map[ulid.ULID]ledger.Entry
	failErr error
}

var _ ledger.Repository = (*Store)(nil)

// NewStore creates an empty Store.
func NewStore(users auth.UserRepository) *Store {
	return &Store{users: users, entries: make(map[ulid.ULID]ledger.Entry)}
}

// FailWith makes every later call return err. A nil err clears it.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Create stores a new entry.
func (s *Store) Create(_ context.Context, entry *ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	stored := *entry
	stored.User = nil
	s.entries[entry.ID] = stored
	return nil
}

// GetByID retrieves an entry with its owner's ID and name.
func (s *Store) GetByID(ctx context.Context, kind ledger.Kind, id ulid.ULID) (*ledger.Entry, error) {
	s.mu.Lock()
	e, ok := s.entries[id]
	failErr := s.failErr
	s.mu.Unlock()
	if failErr != nil {
		return nil, failErr
	}
	if !ok || e.Kind != kind {
		return nil, oops.Code("LEDGER_ENTRY_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if owner, err := s.users.GetByID(ctx, e.UserID); err == nil {
		e.User = &ledger.Owner{ID: owner.ID, Name: owner.Name}
	}
	return &e, nil
}

// ListByUser returns a user's entries dated at or after since, newest first.
func (s *Store) ListByUser(_ context.Context, kind ledger.Kind, userID ulid.ULID, since time.Time) ([]*ledger.Entry, error) {
	return s.list(kind, since, func(e ledger.Entry) (*ledger.Owner, bool) {
		return nil, e.UserID == userID
	})
}

// ListByFamily returns the entries of a family's members dated at or after
// since, newest first.
func (s *Store) ListByFamily(ctx context.Context, kind ledger.Kind, familyID ulid.ULID, since time.Time) ([]*ledger.Entry, error) {
	members, err := s.users.ListByFamily(ctx, familyID)
	if err != nil {
		return nil, err
	}
	owners := make(map[ulid.ULID]*ledger.Owner, len(members))
	for _, m := range members {
		owners[m.ID] = &ledger.Owner{ID: m.ID, Name: m.Name, Email: m.Email}
	}
	return s.list(kind, since, func(e ledger.Entry) (*ledger.Owner, bool) {
		owner, ok := owners[e.UserID]
		return owner, ok
	})
}

func (s *Store) list(kind ledger.Kind, since time.Time, match func(ledger.Entry) (*ledger.Owner, bool)) ([]*ledger.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return nil, s.failErr
	}
	var out []*ledger.Entry
	for _, e := range s.entries {
		if e.Kind != kind || e.Date.Before(since) {
			continue
		}
		owner, ok := match(e)
		if !ok {
			continue
		}
		e.User = owner
		out = append(out, &e)
	}
	slices.SortFunc(out, func(a, b *ledger.Entry) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		return cmp.Compare(b.ID.String(), a.ID.String())
	})
	return out, nil
}

// Update overwrites an entry's mutable fields.
func (s *Store) Update(_ context.Context, entry *ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	e, ok := s.entries[entry.ID]
	if !ok || e.Kind != entry.Kind {
		return oops.Code("LEDGER_ENTRY_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	e.Amount, e.Category, e.Date, e.Notes = entry.Amount, entry.Category, entry.Date, entry.Notes
	e.UpdatedAt = entry.UpdatedAt
	s.entries[entry.ID] = e
	return nil
}

// Delete removes an entry.
func (s *Store) Delete(_ context.Context, kind ledger.Kind, id ulid.ULID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	e, ok := s.entries[id]
	if !ok || e.Kind != kind {
		return oops.Code("LEDGER_ENTRY_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	delete(s.entries, id)
	return nil
}
