// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FamTrack Contributors

package authtest

import (
	"context"
	"sync"
	"testing"

	"github.com/famtrack/famtrack/internal/auth"
)

// Mailer records every message instead of delivering it. It satisfies
// auth.Mailer and the reminder sender interface.
type Mailer struct {
	mu          sync.Mutex
	otps        map[string]string
	familyCodes map[string]string
	reminders   []string
	failures    map[string]error
}

// NewMailer creates an empty Mailer.
func NewMailer() *Mailer {
	return &Mailer{
		otps:        make(map[string]string),
		familyCodes: make(map[string]string),
		failures:    make(map[string]error),
	}
}

// FailFor makes every send to email return err.
func (m *Mailer) FailFor(email string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[email] = err
}

// SendOTP records the code sent to email.
func (m *Mailer) SendOTP(_ context.Context, email, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failures[email]; err != nil {
		return err
	}
	m.otps[email] = code
	return nil
}

// SendFamilyCode records the family code sent to email.
func (m *Mailer) SendFamilyCode(_ context.Context, email, _, familyCode, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failures[email]; err != nil {
		return err
	}
	m.familyCodes[email] = familyCode
	return nil
}

// SendExpenseReminder records a reminder sent to email.
func (m *Mailer) SendExpenseReminder(_ context.Context, email, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failures[email]; err != nil {
		return err
	}
	m.reminders = append(m.reminders, email)
	return nil
}

// OTP returns the last code sent to email.
func (m *Mailer) OTP(email string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	code, ok := m.otps[email]
	return code, ok
}

// FamilyCode returns the last family code sent to email.
func (m *Mailer) FamilyCode(email string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	code, ok := m.familyCodes[email]
	return code, ok
}

// Reminders returns the recipients of every reminder sent, in order.
func (m *Mailer) Reminders() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.reminders...)
}

// Test secrets for token signing.
const (
	AccessSecret  = "test-access-secret"
	RefreshSecret = "test-refresh-secret"
)

// TokenConfig returns a TokenConfig with the test secrets.
func TokenConfig() auth.TokenConfig {
	return auth.TokenConfig{
		AccessSecret:  AccessSecret,
		RefreshSecret: RefreshSecret,
		Issuer:        auth.DefaultIssuer,
	}
}

// NewService builds an auth.Service over store and mailer with a fast
// bcrypt cost.
func NewService(t testing.TB, store *Store, mailer auth.Mailer, opts ...auth.Option) *auth.Service {
	t.Helper()
	svc, err := auth.NewService(auth.Dependencies{
		Users:         store.Users(),
		Families:      store.Families(),
		OTPs:          store.OTPs(),
		RefreshTokens: store.RefreshTokens(),
		Hasher:        auth.NewBcryptHasher(4),
		Mailer:        mailer,
		Transactor:    store,
		Tokens:        TokenConfig(),
	}, opts...)
	if err != nil {
		t.Fatalf("auth.NewService: %v", err)
	}
	return svc
}

// Registered is a user created through the full OTP flow.
type Registered struct {
	Result   *auth.RegisterResult
	Password string
}

// Register runs send-otp, verify-otp and register for email. An empty
// familyCode creates a new family named familyName.
func Register(t testing.TB, svc *auth.Service, mailer *Mailer, email, name, familyCode, familyName string) Registered {
	t.Helper()
	ctx := context.Background()
	if _, err := svc.SendOTP(ctx, email); err != nil {
		t.Fatalf("SendOTP(%s): %v", email, err)
	}
	code, ok := mailer.OTP(auth.NormalizeEmail(email))
	if !ok {
		t.Fatalf("no OTP recorded for %s", email)
	}
	if _, err := svc.VerifyOTP(ctx, email, code); err != nil {
		t.Fatalf("VerifyOTP(%s): %v", email, err)
	}
	const password = "secret123"
	res, err := svc.Register(ctx, auth.RegisterRequest{
		Email:      email,
		Password:   password,
		Name:       name,
		FamilyCode: familyCode,
		FamilyName: familyName,
	})
	if err != nil {
		t.Fatalf("Register(%s): %v", email, err)
	}
	return Registered{Result: res, Password: password}
}
