// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FamTrack Contributors

package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// OTP lifetimes.
const (
	OTPExpiry    = 10 * time.Minute
	OTPRetention = 24 * time.Hour
)

// OTPChallenge is the single pending registration code for an email.
type OTPChallenge struct {
	Email     string
	Code      string
	ExpiresAt time.Time
	Verified  bool
	CreatedAt time.Time
}

// IsExpiredAt reports whether the challenge has expired at t.
func (c *OTPChallenge) IsExpiredAt(t time.Time) bool {
	return t.After(c.ExpiresAt)
}

// OTPRepository manages OTP challenge persistence. There is at most one
// challenge per email.
type OTPRepository interface {
	// Upsert creates or replaces the challenge for challenge.Email.
	Upsert(ctx context.Context, challenge *OTPChallenge) error

	// GetByEmail retrieves the challenge for an email.
	GetByEmail(ctx context.Context, email string) (*OTPChallenge, error)

	// MarkVerified flags the challenge as verified.
	MarkVerified(ctx context.Context, email string) error

	// Delete removes the challenge for an email. Missing rows are not an error.
	Delete(ctx context.Context, email string) error

	// DeleteExpiredBefore removes challenges that expired before t.
	DeleteExpiredBefore(ctx context.Context, t time.Time) (int64, error)
}

// OTPManager issues and verifies registration codes.
type OTPManager struct {
	otps   OTPRepository
	users  UserRepository
	mailer Mailer
	logger *slog.Logger
	now    func() time.Time
}

// NewOTPManager creates an OTPManager.
func NewOTPManager(otps OTPRepository, users UserRepository, mailer Mailer, opts ...Option) (*OTPManager, error) {
	if otps == nil {
		return nil, oops.Errorf("otp repository is required")
	}
	if users == nil {
		return nil, oops.Errorf("users repository is required")
	}
	if mailer == nil {
		return nil, oops.Errorf("mailer is required")
	}
	o := applyOptions(opts)
	return &OTPManager{otps: otps, users: users, mailer: mailer, logger: o.logger, now: o.now}, nil
}

// Issue creates or replaces the challenge for email and mails the code.
func (m *OTPManager) Issue(ctx context.Context, email string) (string, error) {
	email = NormalizeEmail(email)

	_, err := m.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return "", oops.Code(CodeOTPEmailRegistered).Errorf("Email already registered")
	case !errors.Is(err, ErrNotFound):
		return "", oops.Code("OTP_SEND_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	code, err := GenerateNumericCode()
	if err != nil {
		return "", oops.Code("OTP_SEND_FAILED").
			With("operation", "generate code").
			Wrap(err)
	}

	now := m.now()
	challenge := &OTPChallenge{
		Email:     email,
		Code:      code,
		ExpiresAt: now.Add(OTPExpiry),
		Verified:  false,
		CreatedAt: now,
	}
	if err := m.otps.Upsert(ctx, challenge); err != nil {
		return "", oops.Code("OTP_SEND_FAILED").
			With("operation", "upsert challenge").
			Wrap(err)
	}

	if err := m.mailer.SendOTP(ctx, email, code); err != nil {
		m.logger.WarnContext(ctx, "otp email delivery failed", "error", err)
	}

	return "OTP sent successfully to your email", nil
}

// Verify checks code against the stored challenge and marks it verified.
// The challenge is kept until registration consumes it.
func (m *OTPManager) Verify(ctx context.Context, email, code string) (string, error) {
	email = NormalizeEmail(email)

	challenge, err := m.otps.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", oops.Code(CodeOTPNotFound).Errorf("OTP not found. Please request a new OTP")
		}
		return "", oops.Code("OTP_VERIFY_FAILED").
			With("operation", "get challenge").
			Wrap(err)
	}

	if challenge.Verified {
		return "", oops.Code(CodeOTPAlreadyVerified).Errorf("OTP already verified")
	}
	if challenge.IsExpiredAt(m.now()) {
		return "", oops.Code(CodeOTPExpired).Errorf("OTP expired. Please request a new OTP")
	}
	if subtle.ConstantTimeCompare([]byte(challenge.Code), []byte(code)) != 1 {
		return "", oops.Code(CodeOTPMismatch).Errorf("Invalid OTP")
	}

	if err := m.otps.MarkVerified(ctx, email); err != nil {
		return "", oops.Code("OTP_VERIFY_FAILED").
			With("operation", "mark verified").
			Wrap(err)
	}

	return "OTP verified successfully. You can now register", nil
}

// Sweep removes challenges that expired more than OTPRetention ago.
func (m *OTPManager) Sweep(ctx context.Context) (int64, error) {
	n, err := m.otps.DeleteExpiredBefore(ctx, m.now().Add(-OTPRetention))
	if err != nil {
		return 0, oops.Code("OTP_SWEEP_FAILED").Wrap(err)
	}
	return n, nil
}
