// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FamTrack Contributors

package auth

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Role is a user's fixed role within their family.
type Role string

// Family roles.
const (
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleMember
}

// User is a registered family member.
type User struct {
	ID           ulid.ULID `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	FamilyID     ulid.ULID `json:"familyId"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`

	// Family is attached to registration and login results only.
	Family *Family `json:"family,omitempty"`
}

// IsAdmin reports whether the user administers their family.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// NewUser creates a validated User. The email is normalized.
func NewUser(email, name, passwordHash string, familyID ulid.ULID, role Role) (*User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, oops.Code("USER_INVALID_EMAIL").Errorf("email cannot be empty")
	}
	if strings.TrimSpace(name) == "" {
		return nil, oops.Code("USER_INVALID_NAME").Errorf("name cannot be empty")
	}
	if passwordHash == "" {
		return nil, oops.Code("USER_INVALID_HASH").Errorf("password hash cannot be empty")
	}
	if familyID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("USER_INVALID_FAMILY").Errorf("family ID cannot be zero")
	}
	if !role.Valid() {
		return nil, oops.Code("USER_INVALID_ROLE").With("role", string(role)).Errorf("unknown role")
	}
	return &User{
		ID:           ulid.Make(),
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: passwordHash,
		FamilyID:     familyID,
		Role:         role,
		CreatedAt:    time.Now(),
	}, nil
}

// NormalizeEmail trims and lower-cases an email address. Emails are unique
// and compared case-insensitively.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UserRepository manages user persistence.
type UserRepository interface {
	// Create stores a new user. Returns ErrDuplicate if the email is taken.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByEmail retrieves a user by email (case-insensitive).
	// Returns ErrNotFound if no user has the given email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetByEmailInFamily retrieves a user by email within one family.
	GetByEmailInFamily(ctx context.Context, email string, familyID ulid.ULID) (*User, error)

	// ListByFamily returns a family's users, oldest first.
	ListByFamily(ctx context.Context, familyID ulid.ULID) ([]*User, error)

	// UpdatePassword updates only the password hash for a user.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error

	// Delete removes a user and, by cascade, their refresh tokens.
	Delete(ctx context.Context, id ulid.ULID) error
}
