// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FamTrack Contributors

// Package family manages a family's membership and name once accounts exist.
package family

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/famtrack/famtrack/internal/auth"
)

// Error codes returned by Service.
const (
	CodeNotFound          = "FAMILY_NOT_FOUND"
	CodeAdminRequired     = "FAMILY_ADMIN_REQUIRED"
	CodeMemberNotFound    = "FAMILY_MEMBER_NOT_FOUND"
	CodeCannotRemoveAdmin = "FAMILY_CANNOT_REMOVE_ADMIN"
	CodeNameRequired      = "FAMILY_NAME_REQUIRED"
)

func init() {
	auth.RegisterKind(CodeNotFound, auth.KindNotFound)
	auth.RegisterKind(CodeAdminRequired, auth.KindForbidden)
	auth.RegisterKind(CodeMemberNotFound, auth.KindForbidden)
	auth.RegisterKind(CodeCannotRemoveAdmin, auth.KindForbidden)
	auth.RegisterKind(CodeNameRequired, auth.KindBadRequest)
}

// Member is the public view of a family member.
type Member struct {
	ID        ulid.ULID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      auth.Role `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// Details is a family with its members.
type Details struct {
	ID         ulid.ULID `json:"id"`
	FamilyName string    `json:"familyName"`
	FamilyCode string    `json:"familyCode"`
	CreatedAt  time.Time `json:"createdAt"`
	Members    []Member  `json:"users"`
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

// Service implements family management.
type Service struct {
	families auth.FamilyRepository
	users    auth.UserRepository
	logger   *slog.Logger
}

// NewService creates a Service.
func NewService(families auth.FamilyRepository, users auth.UserRepository, opts ...Option) (*Service, error) {
	if families == nil {
		return nil, oops.Errorf("families repository is required")
	}
	if users == nil {
		return nil, oops.Errorf("users repository is required")
	}
	s := &Service{families: families, users: users, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Details returns a family and its members, oldest member first.
func (s *Service) Details(ctx context.Context, familyID ulid.ULID) (*Details, error) {
	family, err := s.families.GetByID(ctx, familyID)
	if errors.Is(err, auth.ErrNotFound) {
		return nil, oops.Code(CodeNotFound).Errorf("Family not found")
	}
	if err != nil {
		return nil, oops.With("operation", "get family details").Wrap(err)
	}

	members, err := s.Members(ctx, familyID)
	if err != nil {
		return nil, err
	}
	return &Details{
		ID:         family.ID,
		FamilyName: family.Name,
		FamilyCode: family.Code,
		CreatedAt:  family.CreatedAt,
		Members:    members,
	}, nil
}

// Members lists a family's members, oldest first. The list is never nil.
func (s *Service) Members(ctx context.Context, familyID ulid.ULID) ([]Member, error) {
	users, err := s.users.ListByFamily(ctx, familyID)
	if err != nil {
		return nil, oops.With("operation", "list family members").Wrap(err)
	}
	members := make([]Member, 0, len(users))
	for _, u := range users {
		members = append(members, Member{
			ID:        u.ID,
			Name:      u.Name,
			Email:     u.Email,
			Role:      u.Role,
			CreatedAt: u.CreatedAt,
		})
	}
	return members, nil
}

// RemoveMember deletes a non-admin member of the requestor's family. The
// member's refresh tokens are removed with them.
func (s *Service) RemoveMember(ctx context.Context, familyID, memberID ulid.ULID, requestorRole auth.Role) (string, error) {
	if requestorRole != auth.RoleAdmin {
		return "", oops.Code(CodeAdminRequired).Errorf("Only admins can remove members")
	}

	member, err := s.users.GetByID(ctx, memberID)
	if errors.Is(err, auth.ErrNotFound) || (err == nil && member.FamilyID != familyID) {
		return "", oops.Code(CodeMemberNotFound).Errorf("Member not found in your family")
	}
	if err != nil {
		return "", oops.With("operation", "get member").Wrap(err)
	}
	if member.IsAdmin() {
		return "", oops.Code(CodeCannotRemoveAdmin).Errorf("Cannot remove admin user")
	}

	if err := s.users.Delete(ctx, memberID); err != nil {
		return "", oops.With("operation", "delete member").Wrap(err)
	}
	s.logger.InfoContext(ctx, "family member removed",
		"family_id", familyID.String(),
		"member_id", memberID.String())
	return "Member removed successfully", nil
}

// UpdateName renames the requestor's family. The family code is unchanged.
func (s *Service) UpdateName(ctx context.Context, familyID ulid.ULID, name string, requestorRole auth.Role) (*auth.Family, error) {
	if requestorRole != auth.RoleAdmin {
		return nil, oops.Code(CodeAdminRequired).Errorf("Only admins can update family name")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, oops.Code(CodeNameRequired).Errorf("Family name is required")
	}

	err := s.families.UpdateName(ctx, familyID, name)
	if errors.Is(err, auth.ErrNotFound) {
		return nil, oops.Code(CodeNotFound).Errorf("Family not found")
	}
	if err != nil {
		return nil, oops.With("operation", "update family name").Wrap(err)
	}

	family, err := s.families.GetByID(ctx, familyID)
	if err != nil {
		return nil, oops.With("operation", "reload family").Wrap(err)
	}
	return family, nil
}
