// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FamTrack Contributors

// Package ledger records family members' incomes and expenses and summarizes
// them into dashboards and monthly trends.
package ledger

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// Kind selects the income or expense ledger.
type Kind string

// Ledger kinds.
const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindIncome || k == KindExpense
}

// Title returns the capitalized kind, as used in response messages.
func (k Kind) Title() string {
	switch k {
	case KindIncome:
		return "Income"
	case KindExpense:
		return "Expense"
	default:
		return string(k)
	}
}

// Owner identifies the member who recorded an entry.
type Owner struct {
	ID    ulid.ULID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email,omitempty"`
}

// Entry is one income or expense record.
type Entry struct {
	ID        ulid.ULID `json:"id"`
	Kind      Kind      `json:"-"`
	UserID    ulid.ULID `json:"userId"`
	Amount    float64   `json:"amount"`
	Category  string    `json:"category"`
	Date      time.Time `json:"date"`
	Notes     *string   `json:"notes"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// User is set on family listings and single-entry lookups.
	User *Owner `json:"user,omitempty"`
}

// Repository persists ledger entries. Lookups of a missing entry return an
// error wrapping auth.ErrNotFound.
type Repository interface {
	// Create stores a new entry.
	Create(ctx context.Context, entry *Entry) error

	// GetByID retrieves an entry with its owner's ID and name.
	GetByID(ctx context.Context, kind Kind, id ulid.ULID) (*Entry, error)

	// ListByUser returns a user's entries dated at or after since, newest
	// first. A zero since returns every entry.
	ListByUser(ctx context.Context, kind Kind, userID ulid.ULID, since time.Time) ([]*Entry, error)

	// ListByFamily returns the entries of every member of a family dated at
	// or after since, newest first, each with its owner.
	ListByFamily(ctx context.Context, kind Kind, familyID ulid.ULID, since time.Time) ([]*Entry, error)

	// Update overwrites an entry's amount, category, date and notes.
	Update(ctx context.Context, entry *Entry) error

	// Delete removes an entry.
	Delete(ctx context.Context, kind Kind, id ulid.ULID) error
}
