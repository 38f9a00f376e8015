// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FamTrack Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/famtrack/famtrack/internal/auth"
)

// OTPRepository implements auth.OTPRepository using PostgreSQL.
type OTPRepository struct {
	pool poolIface
}

// NewOTPRepository creates a new OTPRepository.
func NewOTPRepository(pool poolIface) *OTPRepository {
	return &OTPRepository{pool: pool}
}

// Upsert creates the challenge for an email or overwrites the existing one,
// clearing its verified flag.
func (r *OTPRepository) Upsert(ctx context.Context, challenge *auth.OTPChallenge) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO otp_challenges (email, code, expires_at, verified, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email) DO UPDATE
		SET code = EXCLUDED.code,
		    expires_at = EXCLUDED.expires_at,
		    verified = EXCLUDED.verified,
		    created_at = EXCLUDED.created_at
	`, challenge.Email, challenge.Code, challenge.ExpiresAt, challenge.Verified, challenge.CreatedAt)
	if err != nil {
		return oops.Code("OTP_UPSERT_FAILED").With("operation", "upsert otp challenge").Wrap(err)
	}
	return nil
}

// GetByEmail retrieves the challenge for an email.
func (r *OTPRepository) GetByEmail(ctx context.Context, email string) (*auth.OTPChallenge, error) {
	var c auth.OTPChallenge
	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT email, code, expires_at, verified, created_at
		FROM otp_challenges
		WHERE email = $1
	`, email).Scan(&c.Email, &c.Code, &c.ExpiresAt, &c.Verified, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("OTP_RECORD_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("OTP_GET_FAILED").With("operation", "get otp challenge").Wrap(err)
	}
	c.ExpiresAt = c.ExpiresAt.UTC()
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

// MarkVerified flags the challenge as verified.
func (r *OTPRepository) MarkVerified(ctx context.Context, email string) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE otp_challenges SET verified = TRUE WHERE email = $1
	`, email)
	if err != nil {
		return oops.Code("OTP_VERIFY_FAILED").With("operation", "mark otp verified").Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("OTP_RECORD_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return nil
}

// Delete removes the challenge for an email.
func (r *OTPRepository) Delete(ctx context.Context, email string) error {
	if _, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM otp_challenges WHERE email = $1`, email); err != nil {
		return oops.Code("OTP_DELETE_FAILED").With("operation", "delete otp challenge").Wrap(err)
	}
	return nil
}

// DeleteExpiredBefore removes challenges that expired before t.
func (r *OTPRepository) DeleteExpiredBefore(ctx context.Context, t time.Time) (int64, error) {
	tag, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM otp_challenges WHERE expires_at < $1`, t)
	if err != nil {
		return 0, oops.Code("OTP_SWEEP_FAILED").With("operation", "delete expired otp challenges").Wrap(err)
	}
	return tag.RowsAffected(), nil
}
