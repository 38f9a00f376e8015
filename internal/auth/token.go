// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FamTrack Contributors

package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Token defaults.
const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
	DefaultIssuer     = "famtrack"
)

// TokenConfig holds the signing material and lifetimes for issued tokens.
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

// Validate checks that both secrets are present and distinct and fills in
// default lifetimes.
func (c *TokenConfig) Validate() error {
	if c.AccessSecret == "" {
		return oops.Code("TOKEN_CONFIG_INVALID").Errorf("access secret is required")
	}
	if c.RefreshSecret == "" {
		return oops.Code("TOKEN_CONFIG_INVALID").Errorf("refresh secret is required")
	}
	if c.AccessSecret == c.RefreshSecret {
		return oops.Code("TOKEN_CONFIG_INVALID").Errorf("access and refresh secrets must differ")
	}
	if c.AccessTTL <= 0 {
		c.AccessTTL = DefaultAccessTTL
	}
	if c.RefreshTTL <= 0 {
		c.RefreshTTL = DefaultRefreshTTL
	}
	if c.Issuer == "" {
		c.Issuer = DefaultIssuer
	}
	return nil
}

// Claims are the JWT claims carried by access and refresh tokens.
// Subject holds the user ID and ID a per-token ULID.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *Claims) UserID() (ulid.ULID, error) {
	id, err := ulid.Parse(c.Subject)
	if err != nil {
		return ulid.ULID{}, oops.With("sub", c.Subject).Wrap(err)
	}
	return id, nil
}

// TokenPair is an access token with its companion refresh token.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// RefreshToken is the stored record of an issued refresh token. Only the
// SHA-256 of the signed value is kept.
type RefreshToken struct {
	ID        ulid.ULID
	UserID    ulid.ULID
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// NewRefreshToken creates a validated RefreshToken record.
func NewRefreshToken(userID ulid.ULID, tokenHash string, expiresAt time.Time) (*RefreshToken, error) {
	if userID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("REFRESH_INVALID_USER").Errorf("user ID cannot be zero")
	}
	if tokenHash == "" {
		return nil, oops.Code("REFRESH_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	if expiresAt.IsZero() {
		return nil, oops.Code("REFRESH_INVALID_EXPIRY").Errorf("expiry time cannot be zero")
	}
	return &RefreshToken{
		ID:        ulid.Make(),
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}, nil
}

// IsExpiredAt reports whether the record has expired at t.
func (r *RefreshToken) IsExpiredAt(t time.Time) bool {
	return !t.Before(r.ExpiresAt)
}

// HashToken computes the SHA256 hash of a signed token for storage.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// RefreshTokenRepository manages refresh token persistence.
type RefreshTokenRepository interface {
	// Create stores a new refresh token record.
	Create(ctx context.Context, token *RefreshToken) error

	// GetByTokenHash retrieves a record by token hash.
	GetByTokenHash(ctx context.Context, tokenHash string) (*RefreshToken, error)

	// DeleteByUserAndHash removes records matching both user and hash and
	// reports how many were removed.
	DeleteByUserAndHash(ctx context.Context, userID ulid.ULID, tokenHash string) (int64, error)

	// DeleteExpired removes records that expired at or before t.
	DeleteExpired(ctx context.Context, t time.Time) (int64, error)
}

// RefreshFailure says why a refresh attempt was rejected.
type RefreshFailure int

// Refresh failure causes.
const (
	RefreshBadSignature RefreshFailure = iota + 1
	RefreshRevoked
	RefreshExpired
)

func (f RefreshFailure) String() string {
	switch f {
	case RefreshBadSignature:
		return "bad_signature"
	case RefreshRevoked:
		return "revoked"
	case RefreshExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// RefreshCause extracts the refresh failure cause from err.
func RefreshCause(err error) (RefreshFailure, bool) {
	switch CodeOf(err) {
	case CodeRefreshBadSignature:
		return RefreshBadSignature, true
	case CodeRefreshRevoked:
		return RefreshRevoked, true
	case CodeRefreshExpired:
		return RefreshExpired, true
	default:
		return 0, false
	}
}

// TokenIssuer mints, persists, refreshes and revokes JWTs.
type TokenIssuer struct {
	cfg    TokenConfig
	tokens RefreshTokenRepository
	now    func() time.Time
}

// NewTokenIssuer creates a TokenIssuer. The config is validated.
func NewTokenIssuer(cfg TokenConfig, tokens RefreshTokenRepository, opts ...Option) (*TokenIssuer, error) {
	if tokens == nil {
		return nil, oops.Errorf("refresh token repository is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := applyOptions(opts)
	return &TokenIssuer{cfg: cfg, tokens: tokens, now: o.now}, nil
}

// Issue mints an access and refresh token for the user and stores the
// refresh token's hash. Earlier refresh tokens stay valid.
func (i *TokenIssuer) Issue(ctx context.Context, userID ulid.ULID, email string) (TokenPair, error) {
	now := i.now()
	subject := userID.String()

	access, err := i.sign(i.cfg.AccessSecret, subject, email, now, i.cfg.AccessTTL)
	if err != nil {
		return TokenPair{}, oops.Code("TOKEN_ISSUE_FAILED").With("operation", "sign access").Wrap(err)
	}
	refresh, err := i.sign(i.cfg.RefreshSecret, subject, email, now, i.cfg.RefreshTTL)
	if err != nil {
		return TokenPair{}, oops.Code("TOKEN_ISSUE_FAILED").With("operation", "sign refresh").Wrap(err)
	}

	record, err := NewRefreshToken(userID, HashToken(refresh), now.Add(i.cfg.RefreshTTL))
	if err != nil {
		return TokenPair{}, oops.Code("TOKEN_ISSUE_FAILED").With("operation", "new refresh record").Wrap(err)
	}
	if err := i.tokens.Create(ctx, record); err != nil {
		return TokenPair{}, oops.Code("TOKEN_ISSUE_FAILED").
			With("operation", "persist refresh token").
			With("user_id", subject).
			Wrap(err)
	}

	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Refresh validates a refresh token against its signature, its exp claim
// and the store, then mints a new access token for the same subject.
// Rejections carry one of the REFRESH_* codes; see RefreshCause.
func (i *TokenIssuer) Refresh(ctx context.Context, presented string) (string, error) {
	claims, err := i.parse(presented, i.cfg.RefreshSecret)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", oops.Code(CodeRefreshExpired).Errorf("refresh token expired")
		}
		return "", oops.Code(CodeRefreshBadSignature).Errorf("refresh token signature invalid: %v", err)
	}

	record, err := i.tokens.GetByTokenHash(ctx, HashToken(presented))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", oops.Code(CodeRefreshRevoked).Errorf("refresh token revoked")
		}
		return "", oops.Code("REFRESH_LOOKUP_FAILED").
			With("operation", "get refresh token").
			Wrap(err)
	}

	now := i.now()
	if record.IsExpiredAt(now) {
		return "", oops.Code(CodeRefreshExpired).Errorf("refresh token expired")
	}

	access, err := i.sign(i.cfg.AccessSecret, claims.Subject, claims.Email, now, i.cfg.AccessTTL)
	if err != nil {
		return "", oops.Code("TOKEN_ISSUE_FAILED").With("operation", "sign access").Wrap(err)
	}
	return access, nil
}

// Revoke deletes the stored refresh token owned by userID. Unknown tokens are
// not an error.
func (i *TokenIssuer) Revoke(ctx context.Context, userID ulid.ULID, token string) error {
	if _, err := i.tokens.DeleteByUserAndHash(ctx, userID, HashToken(token)); err != nil {
		return oops.Code("TOKEN_REVOKE_FAILED").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return nil
}

// ParseAccess validates an access token and returns its claims.
func (i *TokenIssuer) ParseAccess(token string) (*Claims, error) {
	claims, err := i.parse(token, i.cfg.AccessSecret)
	if err != nil {
		return nil, oops.Code(CodeAccessTokenInvalid).Wrap(err)
	}
	return claims, nil
}

// PruneExpired deletes expired refresh token records.
func (i *TokenIssuer) PruneExpired(ctx context.Context) (int64, error) {
	n, err := i.tokens.DeleteExpired(ctx, i.now())
	if err != nil {
		return 0, oops.Code("TOKEN_PRUNE_FAILED").Wrap(err)
	}
	return n, nil
}

func (i *TokenIssuer) sign(secret, subject, email string, now time.Time, ttl time.Duration) (string, error) {
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    i.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        ulid.Make().String(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func (i *TokenIssuer) parse(raw, secret string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers classify jwt sentinels
	}
	return claims, nil
}
