// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FamTrack Contributors

// Package postgres implements ledger.Repository on PostgreSQL using pgx.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/famtrack/famtrack/internal/auth"
	"github.com/famtrack/famtrack/internal/ledger"
)

// poolIface is satisfied by *pgxpool.Pool and pgxmock.PgxPoolIface.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// tables maps each kind to its table. Table names never come from input.
var tables = map[ledger.Kind]string{
	ledger.KindIncome:  "incomes",
	ledger.KindExpense: "expenses",
}

const entryColumns = `e.id, e.user_id, e.amount, e.category, e.date, e.notes, e.created_at, e.updated_at`

// EntryRepository implements ledger.Repository using PostgreSQL.
type EntryRepository struct {
	pool poolIface
}

var _ ledger.Repository = (*EntryRepository)(nil)

// NewEntryRepository creates a new EntryRepository.
func NewEntryRepository(pool poolIface) *EntryRepository {
	return &EntryRepository{pool: pool}
}

func table(kind ledger.Kind) (string, error) {
	name, ok := tables[kind]
	if !ok {
		return "", oops.Code("LEDGER_UNKNOWN_KIND").With("kind", string(kind)).Errorf("unknown ledger kind")
	}
	return name, nil
}

// Create stores a new entry.
func (r *EntryRepository) Create(ctx context.Context, entry *ledger.Entry) error {
	tbl, err := table(entry.Kind)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO `+tbl+` (id, user_id, amount, category, date, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		entry.ID.String(),
		entry.UserID.String(),
		entry.Amount,
		entry.Category,
		entry.Date,
		entry.Notes,
		entry.CreatedAt,
		entry.UpdatedAt,
	)
	if err != nil {
		return oops.Code("LEDGER_CREATE_FAILED").
			With("operation", "insert "+string(entry.Kind)).
			With("entry_id", entry.ID.String()).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves an entry with its owner's ID and name.
func (r *EntryRepository) GetByID(ctx context.Context, kind ledger.Kind, id ulid.ULID) (*ledger.Entry, error) {
	tbl, err := table(kind)
	if err != nil {
		return nil, err
	}
	row := r.pool.QueryRow(ctx, `
		SELECT `+entryColumns+`, u.name
		FROM `+tbl+` e
		JOIN users u ON u.id = e.user_id
		WHERE e.id = $1
	`, id.String())

	var ownerName string
	entry, err := scanEntry(row, kind, &ownerName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("LEDGER_ENTRY_NOT_FOUND").With("entry_id", id.String()).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("LEDGER_GET_FAILED").
			With("operation", "get "+string(kind)).
			With("entry_id", id.String()).
			Wrap(err)
	}
	entry.User = &ledger.Owner{ID: entry.UserID, Name: ownerName}
	return entry, nil
}

// ListByUser returns a user's entries dated at or after since, newest first.
func (r *EntryRepository) ListByUser(ctx context.Context, kind ledger.Kind, userID ulid.ULID, since time.Time) ([]*ledger.Entry, error) {
	tbl, err := table(kind)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+entryColumns+`
		FROM `+tbl+` e
		WHERE e.user_id = $1 AND e.date >= $2
		ORDER BY e.date DESC, e.id DESC
	`, userID.String(), since)
	if err != nil {
		return nil, oops.Code("LEDGER_LIST_FAILED").
			With("operation", "list "+string(kind)+" by user").
			With("user_id", userID.String()).
			Wrap(err)
	}
	defer rows.Close()

	var entries []*ledger.Entry
	for rows.Next() {
		entry, err := scanEntry(rows, kind)
		if err != nil {
			return nil, oops.Code("LEDGER_LIST_FAILED").With("operation", "scan "+string(kind)).Wrap(err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("LEDGER_LIST_FAILED").With("operation", "iterate "+string(kind)).Wrap(err)
	}
	return entries, nil
}

// ListByFamily returns the entries of a family's members dated at or after
// since, newest first, each with its owner.
func (r *EntryRepository) ListByFamily(ctx context.Context, kind ledger.Kind, familyID ulid.ULID, since time.Time) ([]*ledger.Entry, error) {
	tbl, err := table(kind)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+entryColumns+`, u.name, u.email
		FROM `+tbl+` e
		JOIN users u ON u.id = e.user_id
		WHERE u.family_id = $1 AND e.date >= $2
		ORDER BY e.date DESC, e.id DESC
	`, familyID.String(), since)
	if err != nil {
		return nil, oops.Code("LEDGER_LIST_FAILED").
			With("operation", "list "+string(kind)+" by family").
			With("family_id", familyID.String()).
			Wrap(err)
	}
	defer rows.Close()

	var entries []*ledger.Entry
	for rows.Next() {
		var name, email string
		entry, err := scanEntry(rows, kind, &name, &email)
		if err != nil {
			return nil, oops.Code("LEDGER_LIST_FAILED").With("operation", "scan "+string(kind)).Wrap(err)
		}
		entry.User = &ledger.Owner{ID: entry.UserID, Name: name, Email: email}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("LEDGER_LIST_FAILED").With("operation", "iterate "+string(kind)).Wrap(err)
	}
	return entries, nil
}

// Update overwrites an entry's amount, category, date and notes.
func (r *EntryRepository) Update(ctx context.Context, entry *ledger.Entry) error {
	tbl, err := table(entry.Kind)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE `+tbl+`
		SET amount = $2, category = $3, date = $4, notes = $5, updated_at = $6
		WHERE id = $1
	`,
		entry.ID.String(),
		entry.Amount,
		entry.Category,
		entry.Date,
		entry.Notes,
		entry.UpdatedAt,
	)
	if err != nil {
		return oops.Code("LEDGER_UPDATE_FAILED").
			With("operation", "update "+string(entry.Kind)).
			With("entry_id", entry.ID.String()).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("LEDGER_ENTRY_NOT_FOUND").With("entry_id", entry.ID.String()).Wrap(auth.ErrNotFound)
	}
	return nil
}

// Delete removes an entry.
func (r *EntryRepository) Delete(ctx context.Context, kind ledger.Kind, id ulid.ULID) error {
	tbl, err := table(kind)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM `+tbl+` WHERE id = $1`, id.String())
	if err != nil {
		return oops.Code("LEDGER_DELETE_FAILED").
			With("operation", "delete "+string(kind)).
			With("entry_id", id.String()).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("LEDGER_ENTRY_NOT_FOUND").With("entry_id", id.String()).Wrap(auth.ErrNotFound)
	}
	return nil
}

// scanEntry scans entryColumns followed by extra destinations.
func scanEntry(row pgx.Row, kind ledger.Kind, extra ...any) (*ledger.Entry, error) {
	var (
		idStr, userIDStr string
		entry            = ledger.Entry{Kind: kind}
	)
	dest := append([]any{
		&idStr, &userIDStr, &entry.Amount, &entry.Category, &entry.Date,
		&entry.Notes, &entry.CreatedAt, &entry.UpdatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with operation context
	}

	var err error
	if entry.ID, err = ulid.Parse(idStr); err != nil {
		return nil, oops.With("operation", "parse entry_id").With("entry_id", idStr).Wrap(err)
	}
	if entry.UserID, err = ulid.Parse(userIDStr); err != nil {
		return nil, oops.With("operation", "parse user_id").With("user_id", userIDStr).Wrap(err)
	}
	entry.Date = entry.Date.UTC()
	entry.CreatedAt = entry.CreatedAt.UTC()
	entry.UpdatedAt = entry.UpdatedAt.UTC()
	return &entry, nil
}
