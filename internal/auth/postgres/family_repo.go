// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FamTrack Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/famtrack/famtrack/internal/auth"
)

// FamilyRepository implements auth.FamilyRepository using PostgreSQL.
type FamilyRepository struct {
	pool poolIface
}

// NewFamilyRepository creates a new FamilyRepository.
func NewFamilyRepository(pool poolIface) *FamilyRepository {
	return &FamilyRepository{pool: pool}
}

// Create stores a new family.
func (r *FamilyRepository) Create(ctx context.Context, family *auth.Family) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO families (id, family_name, family_code, created_at)
		VALUES ($1, $2, $3, $4)
	`, family.ID.String(), family.Name, family.Code, family.CreatedAt)
	if isUniqueViolation(err) {
		return oops.Code("FAMILY_DUPLICATE").With("family_id", family.ID.String()).Wrap(auth.ErrDuplicate)
	}
	if err != nil {
		return oops.Code("FAMILY_CREATE_FAILED").
			With("operation", "insert family").
			With("family_id", family.ID.String()).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a family by ID.
func (r *FamilyRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Family, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT id, family_name, family_code, created_at
		FROM families
		WHERE id = $1
	`, id.String())
	return scanOneFamily(row, "get family by id")
}

// GetByCode retrieves a family by its join code.
func (r *FamilyRepository) GetByCode(ctx context.Context, code string) (*auth.Family, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT id, family_name, family_code, created_at
		FROM families
		WHERE family_code = $1
	`, code)
	return scanOneFamily(row, "get family by code")
}

// List returns every family, oldest first.
func (r *FamilyRepository) List(ctx context.Context) ([]*auth.Family, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT id, family_name, family_code, created_at
		FROM families
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, oops.Code("FAMILY_LIST_FAILED").With("operation", "list families").Wrap(err)
	}
	defer rows.Close()

	var families []*auth.Family
	for rows.Next() {
		family, err := scanFamily(rows)
		if err != nil {
			return nil, oops.Code("FAMILY_LIST_FAILED").With("operation", "scan family").Wrap(err)
		}
		families = append(families, family)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("FAMILY_LIST_FAILED").With("operation", "iterate families").Wrap(err)
	}
	return families, nil
}

// UpdateName renames a family.
func (r *FamilyRepository) UpdateName(ctx context.Context, id ulid.ULID, name string) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE families SET family_name = $2 WHERE id = $1
	`, id.String(), name)
	if err != nil {
		return oops.Code("FAMILY_UPDATE_FAILED").
			With("operation", "update family name").
			With("family_id", id.String()).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("FAMILY_NOT_FOUND").With("family_id", id.String()).Wrap(auth.ErrNotFound)
	}
	return nil
}

func scanOneFamily(row pgx.Row, operation string) (*auth.Family, error) {
	family, err := scanFamily(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("FAMILY_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("FAMILY_GET_FAILED").With("operation", operation).Wrap(err)
	}
	return family, nil
}

func scanFamily(row pgx.Row) (*auth.Family, error) {
	var (
		idStr     string
		family    auth.Family
		createdAt time.Time
	)
	if err := row.Scan(&idStr, &family.Name, &family.Code, &createdAt); err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with operation context
	}
	id, err := parseULID(idStr, "family_id")
	if err != nil {
		return nil, err
	}
	family.ID = id
	family.CreatedAt = createdAt.UTC()
	return &family, nil
}
