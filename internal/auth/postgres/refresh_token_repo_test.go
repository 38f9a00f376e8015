// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FamTrack Contributors

package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/famtrack/famtrack/internal/auth"
	"github.com/famtrack/famtrack/pkg/errutil"
)

func TestRefreshTokenRepository_Create(t *testing.T) {
	token := &auth.RefreshToken{
		ID:        ulid.Make(),
		UserID:    ulid.Make(),
		TokenHash: auth.HashToken("signed.jwt.value"),
		ExpiresAt: fixedTime.Add(auth.DefaultRefreshTTL),
		CreatedAt: fixedTime,
	}

	t.Run("stores hash", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`INSERT INTO refresh_tokens`).
			WithArgs(token.ID.String(), token.UserID.String(), token.TokenHash, token.ExpiresAt, fixedTime).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		require.NoError(t, NewRefreshTokenRepository(mock).Create(context.Background(), token))
	})

	t.Run("duplicate hash", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`INSERT INTO refresh_tokens`).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})
		err := NewRefreshTokenRepository(mock).Create(context.Background(), token)
		assert.ErrorIs(t, err, auth.ErrDuplicate)
	})

	t.Run("failure", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`INSERT INTO refresh_tokens`).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(errors.New("connection refused"))
		err := NewRefreshTokenRepository(mock).Create(context.Background(), token)
		errutil.AssertErrorCode(t, err, "REFRESH_TOKEN_CREATE_FAILED")
		errutil.AssertErrorContext(t, err, "user_id", token.UserID.String())
	})
}

func TestRefreshTokenRepository_GetByTokenHash(t *testing.T) {
	cols := []string{"id", "user_id", "token_hash", "expires_at", "created_at"}
	id, userID := ulid.Make(), ulid.Make()

	t.Run("found", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery(`WHERE token_hash = \$1`).
			WithArgs("abc").
			WillReturnRows(pgxmock.NewRows(cols).
				AddRow(id.String(), userID.String(), "abc", fixedTime.Add(auth.DefaultRefreshTTL), fixedTime))

		got, err := NewRefreshTokenRepository(mock).GetByTokenHash(context.Background(), "abc")
		require.NoError(t, err)
		assert.Equal(t, &auth.RefreshToken{
			ID:        id,
			UserID:    userID,
			TokenHash: "abc",
			ExpiresAt: fixedTime.Add(auth.DefaultRefreshTTL),
			CreatedAt: fixedTime,
		}, got)
	})

	t.Run("revoked", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery(`WHERE token_hash = \$1`).
			WithArgs("abc").
			WillReturnRows(pgxmock.NewRows(cols))

		_, err := NewRefreshTokenRepository(mock).GetByTokenHash(context.Background(), "abc")
		assert.ErrorIs(t, err, auth.ErrNotFound)
		errutil.AssertErrorCode(t, err, "REFRESH_TOKEN_NOT_FOUND")
	})
}

func TestRefreshTokenRepository_DeleteByUserAndHash(t *testing.T) {
	userID := ulid.Make()
	mock := newMockPool(t)
	mock.ExpectExec(`DELETE FROM refresh_tokens WHERE user_id = \$1 AND token_hash = \$2`).
		WithArgs(userID.String(), "abc").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	n, err := NewRefreshTokenRepository(mock).DeleteByUserAndHash(context.Background(), userID, "abc")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRefreshTokenRepository_DeleteExpired(t *testing.T) {
	t.Run("reports count", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`DELETE FROM refresh_tokens WHERE expires_at <= \$1`).
			WithArgs(fixedTime).
			WillReturnResult(pgxmock.NewResult("DELETE", 7))

		n, err := NewRefreshTokenRepository(mock).DeleteExpired(context.Background(), fixedTime)
		require.NoError(t, err)
		assert.Equal(t, int64(7), n)
	})

	t.Run("failure", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`DELETE FROM refresh_tokens`).
			WithArgs(fixedTime).
			WillReturnError(errors.New("connection refused"))

		_, err := NewRefreshTokenRepository(mock).DeleteExpired(context.Background(), fixedTime)
		errutil.AssertErrorCode(t, err, "REFRESH_TOKEN_SWEEP_FAILED")
	})
}
