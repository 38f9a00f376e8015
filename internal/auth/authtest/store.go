// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FamTrack Contributors

// Package authtest provides in-memory implementations of the auth
// repositories and collaborators for tests.
package authtest

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/famtrack/famtrack/internal/auth"
)

// Store is an in-memory credential store. It implements every auth
// repository and auth.Transactor. A failed transaction restores the state
// from before it began.
type Store struct {
	mu       sync.Mutex
	users    map[ulid.ULID]auth.User
	families map[ulid.ULID]auth.Family
	otps     map[string]auth.OTPChallenge
	tokens   map[ulid.ULID]auth.RefreshToken
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		users:    make(map[ulid.ULID]auth.User),
		families: make(map[ulid.ULID]auth.Family),
		otps:     make(map[string]auth.OTPChallenge),
		tokens:   make(map[ulid.ULID]auth.RefreshToken),
	}
}

// Users returns the store's auth.UserRepository view.
func (s *Store) Users() *UserRepository { return &UserRepository{s: s} }

// Families returns the store's auth.FamilyRepository view.
func (s *Store) Families() *FamilyRepository { return &FamilyRepository{s: s} }

// OTPs returns the store's auth.OTPRepository view.
func (s *Store) OTPs() *OTPRepository { return &OTPRepository{s: s} }

// RefreshTokens returns the store's auth.RefreshTokenRepository view.
func (s *Store) RefreshTokens() *RefreshTokenRepository { return &RefreshTokenRepository{s: s} }

// InTransaction runs fn and rolls the store back if fn fails.
func (s *Store) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	users, families := maps.Clone(s.users), maps.Clone(s.families)
	otps, tokens := maps.Clone(s.otps), maps.Clone(s.tokens)
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.users, s.families, s.otps, s.tokens = users, families, otps, tokens
		s.mu.Unlock()
		return err
	}
	return nil
}

// RefreshTokenCount returns the number of stored refresh tokens for a user.
func (s *Store) RefreshTokenCount(userID ulid.ULID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tokens {
		if t.UserID == userID {
			n++
		}
	}
	return n
}

// ExpireOTP moves an email's challenge expiry to t.
func (s *Store) ExpireOTP(email string, t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.otps[email]; ok {
		c.ExpiresAt = t
		s.otps[email] = c
	}
}

// ExpireRefreshTokens moves every stored refresh token's expiry to t.
func (s *Store) ExpireRefreshTokens(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, tok := range s.tokens {
		tok.ExpiresAt = t
		s.tokens[id] = tok
	}
}

var (
	_ auth.UserRepository         = (*UserRepository)(nil)
	_ auth.FamilyRepository       = (*FamilyRepository)(nil)
	_ auth.OTPRepository          = (*OTPRepository)(nil)
	_ auth.RefreshTokenRepository = (*RefreshTokenRepository)(nil)
	_ auth.Transactor             = (*Store)(nil)
)

func notFound(code string) error {
	return oops.Code(code).Wrap(auth.ErrNotFound)
}

// UserRepository is the in-memory auth.UserRepository.
type UserRepository struct{ s *Store }

// Create stores a new user.
func (r *UserRepository) Create(_ context.Context, user *auth.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return oops.Code("USER_DUPLICATE").With("email", user.Email).Wrap(auth.ErrDuplicate)
		}
	}
	if _, ok := r.s.families[user.FamilyID]; !ok {
		return oops.Code("USER_CREATE_FAILED").Errorf("family %s does not exist", user.FamilyID)
	}
	r.s.users[user.ID] = *user
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(_ context.Context, id ulid.ULID) (*auth.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, notFound("USER_NOT_FOUND")
	}
	return &u, nil
}

// GetByEmail retrieves a user by email.
func (r *UserRepository) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, notFound("USER_NOT_FOUND")
}

// GetByEmailInFamily retrieves a user by email within a family.
func (r *UserRepository) GetByEmailInFamily(_ context.Context, email string, familyID ulid.ULID) (*auth.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) && u.FamilyID == familyID {
			return &u, nil
		}
	}
	return nil, notFound("USER_NOT_FOUND")
}

// ListByFamily returns a family's users, oldest first.
func (r *UserRepository) ListByFamily(_ context.Context, familyID ulid.ULID) ([]*auth.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*auth.User
	for _, u := range r.s.users {
		if u.FamilyID == familyID {
			out = append(out, &u)
		}
	}
	slices.SortFunc(out, func(a, b *auth.User) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return a.ID.Compare(b.ID)
	})
	return out, nil
}

// UpdatePassword replaces a user's password hash.
func (r *UserRepository) UpdatePassword(_ context.Context, id ulid.ULID, passwordHash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return notFound("USER_NOT_FOUND")
	}
	u.PasswordHash = passwordHash
	r.s.users[id] = u
	return nil
}

// Delete removes a user and their refresh tokens.
func (r *UserRepository) Delete(_ context.Context, id ulid.ULID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[id]; !ok {
		return notFound("USER_NOT_FOUND")
	}
	delete(r.s.users, id)
	for tid, t := range r.s.tokens {
		if t.UserID == id {
			delete(r.s.tokens, tid)
		}
	}
	return nil
}

// FamilyRepository is the in-memory auth.FamilyRepository.
type FamilyRepository struct{ s *Store }

// Create stores a new family.
func (r *FamilyRepository) Create(_ context.Context, family *auth.Family) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, f := range r.s.families {
		if f.Code == family.Code {
			return oops.Code("FAMILY_DUPLICATE").Wrap(auth.ErrDuplicate)
		}
	}
	r.s.families[family.ID] = *family
	return nil
}

// GetByID retrieves a family by ID.
func (r *FamilyRepository) GetByID(_ context.Context, id ulid.ULID) (*auth.Family, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	f, ok := r.s.families[id]
	if !ok {
		return nil, notFound("FAMILY_NOT_FOUND")
	}
	return &f, nil
}

// GetByCode retrieves a family by join code.
func (r *FamilyRepository) GetByCode(_ context.Context, code string) (*auth.Family, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, f := range r.s.families {
		if f.Code == code {
			return &f, nil
		}
	}
	return nil, notFound("FAMILY_NOT_FOUND")
}

// List returns every family, oldest first.
func (r *FamilyRepository) List(_ context.Context) ([]*auth.Family, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*auth.Family, 0, len(r.s.families))
	for _, f := range r.s.families {
		out = append(out, &f)
	}
	slices.SortFunc(out, func(a, b *auth.Family) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return a.ID.Compare(b.ID)
	})
	return out, nil
}

// UpdateName renames a family.
func (r *FamilyRepository) UpdateName(_ context.Context, id ulid.ULID, name string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	f, ok := r.s.families[id]
	if !ok {
		return notFound("FAMILY_NOT_FOUND")
	}
	f.Name = name
	r.s.families[id] = f
	return nil
}

// OTPRepository is the in-memory auth.OTPRepository.
type OTPRepository struct{ s *Store }

// Upsert creates or replaces a challenge.
func (r *OTPRepository) Upsert(_ context.Context, challenge *auth.OTPChallenge) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.otps[challenge.Email] = *challenge
	return nil
}

// GetByEmail retrieves a challenge.
func (r *OTPRepository) GetByEmail(_ context.Context, email string) (*auth.OTPChallenge, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.otps[email]
	if !ok {
		return nil, notFound("OTP_RECORD_NOT_FOUND")
	}
	return &c, nil
}

// MarkVerified flags a challenge as verified.
func (r *OTPRepository) MarkVerified(_ context.Context, email string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.otps[email]
	if !ok {
		return notFound("OTP_RECORD_NOT_FOUND")
	}
	c.Verified = true
	r.s.otps[email] = c
	return nil
}

// Delete removes a challenge.
func (r *OTPRepository) Delete(_ context.Context, email string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.otps, email)
	return nil
}

// DeleteExpiredBefore removes challenges that expired before t.
func (r *OTPRepository) DeleteExpiredBefore(_ context.Context, t time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for email, c := range r.s.otps {
		if c.ExpiresAt.Before(t) {
			delete(r.s.otps, email)
			n++
		}
	}
	return n, nil
}

// RefreshTokenRepository is the in-memory auth.RefreshTokenRepository.
type RefreshTokenRepository struct{ s *Store }

// Create stores a refresh token record.
func (r *RefreshTokenRepository) Create(_ context.Context, token *auth.RefreshToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.tokens {
		if t.TokenHash == token.TokenHash {
			return oops.Code("REFRESH_TOKEN_DUPLICATE").Wrap(auth.ErrDuplicate)
		}
	}
	r.s.tokens[token.ID] = *token
	return nil
}

// GetByTokenHash retrieves a record by token hash.
func (r *RefreshTokenRepository) GetByTokenHash(_ context.Context, tokenHash string) (*auth.RefreshToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.tokens {
		if t.TokenHash == tokenHash {
			return &t, nil
		}
	}
	return nil, notFound("REFRESH_TOKEN_NOT_FOUND")
}

// DeleteByUserAndHash removes the matching records.
func (r *RefreshTokenRepository) DeleteByUserAndHash(_ context.Context, userID ulid.ULID, tokenHash string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, t := range r.s.tokens {
		if t.UserID == userID && t.TokenHash == tokenHash {
			delete(r.s.tokens, id)
			n++
		}
	}
	return n, nil
}

// DeleteExpired removes records expired at or before t.
func (r *RefreshTokenRepository) DeleteExpired(_ context.Context, t time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, tok := range r.s.tokens {
		if !tok.ExpiresAt.After(t) {
			delete(r.s.tokens, id)
			n++
		}
	}
	return n, nil
}
