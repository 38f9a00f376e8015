// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FamTrack Contributors

// Package mocks provides testify mocks for the auth package interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/famtrack/famtrack/internal/auth"
)

// TestingT is the subset of *testing.T the constructors need.
type TestingT interface {
	mock.TestingT
	Cleanup(func())
}

func register(m *mock.Mock, t TestingT) {
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
}

// MockUserRepository is a mock auth.UserRepository.
type MockUserRepository struct {
	mock.Mock
}

var _ auth.UserRepository = (*MockUserRepository)(nil)

// NewMockUserRepository creates a mock that asserts its expectations on cleanup.
func NewMockUserRepository(t TestingT) *MockUserRepository {
	m := &MockUserRepository{}
	register(&m.Mock, t)
	return m
}

func (m *MockUserRepository) Create(ctx context.Context, user *auth.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	ret := m.Called(ctx, id)
	return userAt(ret, 0), ret.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	ret := m.Called(ctx, email)
	return userAt(ret, 0), ret.Error(1)
}

func (m *MockUserRepository) GetByEmailInFamily(ctx context.Context, email string, familyID ulid.ULID) (*auth.User, error) {
	ret := m.Called(ctx, email, familyID)
	return userAt(ret, 0), ret.Error(1)
}

func (m *MockUserRepository) ListByFamily(ctx context.Context, familyID ulid.ULID) ([]*auth.User, error) {
	ret := m.Called(ctx, familyID)
	users, _ := ret.Get(0).([]*auth.User)
	return users, ret.Error(1)
}

func (m *MockUserRepository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	return m.Called(ctx, id, passwordHash).Error(0)
}

func (m *MockUserRepository) Delete(ctx context.Context, id ulid.ULID) error {
	return m.Called(ctx, id).Error(0)
}

func userAt(args mock.Arguments, i int) *auth.User {
	u, _ := args.Get(i).(*auth.User)
	return u
}

// MockFamilyRepository is a mock auth.FamilyRepository.
type MockFamilyRepository struct {
	mock.Mock
}

var _ auth.FamilyRepository = (*MockFamilyRepository)(nil)

// NewMockFamilyRepository creates a mock that asserts its expectations on cleanup.
func NewMockFamilyRepository(t TestingT) *MockFamilyRepository {
	m := &MockFamilyRepository{}
	register(&m.Mock, t)
	return m
}

func (m *MockFamilyRepository) Create(ctx context.Context, family *auth.Family) error {
	return m.Called(ctx, family).Error(0)
}

func (m *MockFamilyRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Family, error) {
	ret := m.Called(ctx, id)
	f, _ := ret.Get(0).(*auth.Family)
	return f, ret.Error(1)
}

func (m *MockFamilyRepository) GetByCode(ctx context.Context, code string) (*auth.Family, error) {
	ret := m.Called(ctx, code)
	f, _ := ret.Get(0).(*auth.Family)
	return f, ret.Error(1)
}

func (m *MockFamilyRepository) List(ctx context.Context) ([]*auth.Family, error) {
	ret := m.Called(ctx)
	fs, _ := ret.Get(0).([]*auth.Family)
	return fs, ret.Error(1)
}

func (m *MockFamilyRepository) UpdateName(ctx context.Context, id ulid.ULID, name string) error {
	return m.Called(ctx, id, name).Error(0)
}

// MockOTPRepository is a mock auth.OTPRepository.
type MockOTPRepository struct {
	mock.Mock
}

var _ auth.OTPRepository = (*MockOTPRepository)(nil)

// NewMockOTPRepository creates a mock that asserts its expectations on cleanup.
func NewMockOTPRepository(t TestingT) *MockOTPRepository {
	m := &MockOTPRepository{}
	register(&m.Mock, t)
	return m
}

func (m *MockOTPRepository) Upsert(ctx context.Context, challenge *auth.OTPChallenge) error {
	return m.Called(ctx, challenge).Error(0)
}

func (m *MockOTPRepository) GetByEmail(ctx context.Context, email string) (*auth.OTPChallenge, error) {
	ret := m.Called(ctx, email)
	c, _ := ret.Get(0).(*auth.OTPChallenge)
	return c, ret.Error(1)
}

func (m *MockOTPRepository) MarkVerified(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *MockOTPRepository) Delete(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *MockOTPRepository) DeleteExpiredBefore(ctx context.Context, t time.Time) (int64, error) {
	ret := m.Called(ctx, t)
	n, _ := ret.Get(0).(int64)
	return n, ret.Error(1)
}

// MockRefreshTokenRepository is a mock auth.RefreshTokenRepository.
type MockRefreshTokenRepository struct {
	mock.Mock
}

var _ auth.RefreshTokenRepository = (*MockRefreshTokenRepository)(nil)

// NewMockRefreshTokenRepository creates a mock that asserts its expectations on cleanup.
func NewMockRefreshTokenRepository(t TestingT) *MockRefreshTokenRepository {
	m := &MockRefreshTokenRepository{}
	register(&m.Mock, t)
	return m
}

func (m *MockRefreshTokenRepository) Create(ctx context.Context, token *auth.RefreshToken) error {
	return m.Called(ctx, token).Error(0)
}

func (m *MockRefreshTokenRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.RefreshToken, error) {
	ret := m.Called(ctx, tokenHash)
	r, _ := ret.Get(0).(*auth.RefreshToken)
	return r, ret.Error(1)
}

func (m *MockRefreshTokenRepository) DeleteByUserAndHash(ctx context.Context, userID ulid.ULID, tokenHash string) (int64, error) {
	ret := m.Called(ctx, userID, tokenHash)
	n, _ := ret.Get(0).(int64)
	return n, ret.Error(1)
}

func (m *MockRefreshTokenRepository) DeleteExpired(ctx context.Context, t time.Time) (int64, error) {
	ret := m.Called(ctx, t)
	n, _ := ret.Get(0).(int64)
	return n, ret.Error(1)
}

// MockPasswordHasher is a mock auth.PasswordHasher.
type MockPasswordHasher struct {
	mock.Mock
}

var _ auth.PasswordHasher = (*MockPasswordHasher)(nil)

// NewMockPasswordHasher creates a mock that asserts its expectations on cleanup.
func NewMockPasswordHasher(t TestingT) *MockPasswordHasher {
	m := &MockPasswordHasher{}
	register(&m.Mock, t)
	return m
}

func (m *MockPasswordHasher) Hash(password string) (string, error) {
	ret := m.Called(password)
	return ret.String(0), ret.Error(1)
}

func (m *MockPasswordHasher) Verify(password, hash string) (bool, error) {
	ret := m.Called(password, hash)
	return ret.Bool(0), ret.Error(1)
}

func (m *MockPasswordHasher) NeedsUpgrade(hash string) bool {
	return m.Called(hash).Bool(0)
}

// MockMailer is a mock auth.Mailer.
type MockMailer struct {
	mock.Mock
}

var _ auth.Mailer = (*MockMailer)(nil)

// NewMockMailer creates a mock that asserts its expectations on cleanup.
func NewMockMailer(t TestingT) *MockMailer {
	m := &MockMailer{}
	register(&m.Mock, t)
	return m
}

func (m *MockMailer) SendOTP(ctx context.Context, email, code string) error {
	return m.Called(ctx, email, code).Error(0)
}

func (m *MockMailer) SendFamilyCode(ctx context.Context, email, userName, familyCode, familyName string) error {
	return m.Called(ctx, email, userName, familyCode, familyName).Error(0)
}
