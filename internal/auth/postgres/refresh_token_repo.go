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

// RefreshTokenRepository implements auth.RefreshTokenRepository using PostgreSQL.
// Only token hashes are stored.
type RefreshTokenRepository struct {
	pool poolIface
}

// NewRefreshTokenRepository creates a new RefreshTokenRepository.
func NewRefreshTokenRepository(pool poolIface) *RefreshTokenRepository {
	return &RefreshTokenRepository{pool: pool}
}

// Create stores a new refresh token record.
func (r *RefreshTokenRepository) Create(ctx context.Context, token *auth.RefreshToken) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, token.ID.String(), token.UserID.String(), token.TokenHash, token.ExpiresAt, token.CreatedAt)
	if isUniqueViolation(err) {
		return oops.Code("REFRESH_TOKEN_DUPLICATE").Wrap(auth.ErrDuplicate)
	}
	if err != nil {
		return oops.Code("REFRESH_TOKEN_CREATE_FAILED").
			With("operation", "insert refresh token").
			With("user_id", token.UserID.String()).
			Wrap(err)
	}
	return nil
}

// GetByTokenHash retrieves a record by token hash.
func (r *RefreshTokenRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.RefreshToken, error) {
	var (
		idStr, userIDStr string
		token            auth.RefreshToken
	)
	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT id, user_id, token_hash, expires_at, created_at
		FROM refresh_tokens
		WHERE token_hash = $1
	`, tokenHash).Scan(&idStr, &userIDStr, &token.TokenHash, &token.ExpiresAt, &token.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("REFRESH_TOKEN_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("REFRESH_TOKEN_GET_FAILED").With("operation", "get refresh token").Wrap(err)
	}

	if token.ID, err = parseULID(idStr, "refresh_token_id"); err != nil {
		return nil, oops.Code("REFRESH_TOKEN_GET_FAILED").Wrap(err)
	}
	if token.UserID, err = parseULID(userIDStr, "user_id"); err != nil {
		return nil, oops.Code("REFRESH_TOKEN_GET_FAILED").Wrap(err)
	}
	token.ExpiresAt = token.ExpiresAt.UTC()
	token.CreatedAt = token.CreatedAt.UTC()
	return &token, nil
}

// DeleteByUserAndHash removes records matching both user and hash.
func (r *RefreshTokenRepository) DeleteByUserAndHash(ctx context.Context, userID ulid.ULID, tokenHash string) (int64, error) {
	tag, err := conn(ctx, r.pool).Exec(ctx, `
		DELETE FROM refresh_tokens WHERE user_id = $1 AND token_hash = $2
	`, userID.String(), tokenHash)
	if err != nil {
		return 0, oops.Code("REFRESH_TOKEN_DELETE_FAILED").
			With("operation", "delete refresh token").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return tag.RowsAffected(), nil
}

// DeleteExpired removes records that expired at or before t.
func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context, t time.Time) (int64, error) {
	tag, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= $1`, t)
	if err != nil {
		return 0, oops.Code("REFRESH_TOKEN_SWEEP_FAILED").With("operation", "delete expired refresh tokens").Wrap(err)
	}
	return tag.RowsAffected(), nil
}
