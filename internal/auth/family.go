// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FamTrack Contributors

package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Family groups users sharing one ledger. Code is the immutable join code.
type Family struct {
	ID        ulid.ULID `json:"id"`
	Name      string    `json:"familyName"`
	Code      string    `json:"familyCode"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewFamily creates a validated Family.
func NewFamily(name, code string) (*Family, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, oops.Code("FAMILY_INVALID_NAME").Errorf("family name cannot be empty")
	}
	if code == "" {
		return nil, oops.Code("FAMILY_INVALID_CODE").Errorf("family code cannot be empty")
	}
	return &Family{
		ID:        ulid.Make(),
		Name:      name,
		Code:      code,
		CreatedAt: time.Now(),
	}, nil
}

// FamilyRepository manages family persistence.
type FamilyRepository interface {
	// Create stores a new family. Returns ErrDuplicate if the code is taken.
	Create(ctx context.Context, family *Family) error

	// GetByID retrieves a family by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Family, error)

	// GetByCode retrieves a family by its join code.
	GetByCode(ctx context.Context, code string) (*Family, error)

	// List returns every family, oldest first.
	List(ctx context.Context) ([]*Family, error)

	// UpdateName renames a family. The code never changes.
	UpdateName(ctx context.Context, id ulid.ULID, name string) error
}

// FamilyResolver finds the family a registrant joins, or creates one.
type FamilyResolver struct {
	families FamilyRepository
}

// NewFamilyResolver creates a FamilyResolver.
func NewFamilyResolver(families FamilyRepository) (*FamilyResolver, error) {
	if families == nil {
		return nil, oops.Errorf("families repository is required")
	}
	return &FamilyResolver{families: families}, nil
}

// ResolveForJoin looks up the family identified by code.
func (r *FamilyResolver) ResolveForJoin(ctx context.Context, code string) (*Family, error) {
	family, err := r.families.GetByCode(ctx, strings.TrimSpace(code))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code(CodeFamilyCodeInvalid).Errorf("Invalid family code")
		}
		return nil, oops.Code("FAMILY_RESOLVE_FAILED").
			With("operation", "get family by code").
			Wrap(err)
	}
	return family, nil
}

// Prepare builds a new family with a freshly drawn code without storing it.
// Register persists it inside its transaction.
func (r *FamilyResolver) Prepare(name string) (*Family, error) {
	if strings.TrimSpace(name) == "" {
		return nil, oops.Code(CodeFamilyNameRequired).Errorf("Family name required for new family")
	}
	code, err := GenerateNumericCode()
	if err != nil {
		return nil, oops.Code("FAMILY_CODE_GENERATE_FAILED").Wrap(err)
	}
	family, err := NewFamily(name, code)
	if err != nil {
		return nil, oops.Code("FAMILY_CREATE_FAILED").
			With("operation", "new family").
			Wrap(err)
	}
	return family, nil
}

// CreateNew creates and stores a new family with a freshly drawn code.
func (r *FamilyResolver) CreateNew(ctx context.Context, name string) (*Family, error) {
	family, err := r.Prepare(name)
	if err != nil {
		return nil, err
	}
	if err := r.families.Create(ctx, family); err != nil {
		return nil, oops.Code("FAMILY_CREATE_FAILED").
			With("operation", "persist family").
			Wrap(err)
	}
	return family, nil
}
