// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FamTrack Contributors

package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Dependencies are the collaborators a Service is built from.
type Dependencies struct {
	Users         UserRepository
	Families      FamilyRepository
	OTPs          OTPRepository
	RefreshTokens RefreshTokenRepository
	Hasher        PasswordHasher
	Mailer        Mailer
	Transactor    Transactor
	Tokens        TokenConfig
}

// Service provides the registration, login and session operations.
type Service struct {
	users    UserRepository
	families FamilyRepository
	otpRepo  OTPRepository
	hasher   PasswordHasher
	mailer   Mailer
	tx       Transactor
	otps     *OTPManager
	resolver *FamilyResolver
	tokens   *TokenIssuer
	logger   *slog.Logger

	dummyHash func() string
}

// NewService creates a Service, validating that every dependency is set.
func NewService(deps Dependencies, opts ...Option) (*Service, error) {
	switch {
	case deps.Users == nil:
		return nil, oops.Errorf("users repository is required")
	case deps.Families == nil:
		return nil, oops.Errorf("families repository is required")
	case deps.OTPs == nil:
		return nil, oops.Errorf("otp repository is required")
	case deps.RefreshTokens == nil:
		return nil, oops.Errorf("refresh token repository is required")
	case deps.Hasher == nil:
		return nil, oops.Errorf("password hasher is required")
	case deps.Mailer == nil:
		return nil, oops.Errorf("mailer is required")
	case deps.Transactor == nil:
		return nil, oops.Errorf("transactor is required")
	}

	otps, err := NewOTPManager(deps.OTPs, deps.Users, deps.Mailer, opts...)
	if err != nil {
		return nil, err
	}
	resolver, err := NewFamilyResolver(deps.Families)
	if err != nil {
		return nil, err
	}
	tokens, err := NewTokenIssuer(deps.Tokens, deps.RefreshTokens, opts...)
	if err != nil {
		return nil, err
	}

	o := applyOptions(opts)
	return &Service{
		users:    deps.Users,
		families: deps.Families,
		otpRepo:  deps.OTPs,
		hasher:   deps.Hasher,
		mailer:   deps.Mailer,
		tx:       deps.Transactor,
		otps:     otps,
		resolver: resolver,
		tokens:   tokens,
		logger:   o.logger,

		dummyHash: newDummyHash(deps.Hasher, o.logger),
	}, nil
}

// newDummyHash returns a lazily built hash of random bytes made by the
// service's own hasher. Login verifies against it when the account does not
// exist, so both paths pay the configured work factor. It never matches a
// real password.
func newDummyHash(hasher PasswordHasher, logger *slog.Logger) func() string {
	return sync.OnceValue(func() string {
		hash, err := hasher.Hash(rand.Text())
		if err != nil {
			logger.Error("dummy password hash failed", "error", err)
			return ""
		}
		return hash
	})
}

// RegisterRequest is the input to Register. FamilyCode joins an existing
// family; otherwise FamilyName names a new one.
type RegisterRequest struct {
	Email      string
	Password   string
	Name       string
	FamilyCode string
	FamilyName string
}

// RegisterResult is returned by a successful registration. The user carries
// their family. FamilyCode is set only when a new family was created.
type RegisterResult struct {
	Message      string `json:"message"`
	User         *User  `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	FamilyCode   string `json:"familyCode,omitempty"`
}

// LoginRequest is the input to Login.
type LoginRequest struct {
	FamilyCode string
	Email      string
	Password   string
}

// LoginResult is returned by a successful login. The user carries their
// family.
type LoginResult struct {
	Message      string `json:"message"`
	User         *User  `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// RefreshResult is returned by a successful token refresh.
type RefreshResult struct {
	Message     string `json:"message"`
	AccessToken string `json:"accessToken"`
}

// SweepResult counts the records removed by SweepExpired.
type SweepResult struct {
	RefreshTokens int64
	OTPChallenges int64
}

// SendOTP issues a registration code for email.
func (s *Service) SendOTP(ctx context.Context, email string) (string, error) {
	return s.otps.Issue(ctx, email)
}

// VerifyOTP checks a registration code.
func (s *Service) VerifyOTP(ctx context.Context, email, code string) (string, error) {
	return s.otps.Verify(ctx, email, code)
}

// Register creates a user after OTP verification, joining or creating a
// family, and returns a fresh token pair.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	email := NormalizeEmail(req.Email)

	challenge, err := s.otpRepo.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, oops.Code("REGISTER_FAILED").
			With("operation", "get otp challenge").
			Wrap(err)
	}
	if err != nil || !challenge.Verified {
		return nil, oops.Code(CodeEmailUnverified).Errorf("Email not verified. Please verify OTP first")
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, oops.Code(CodeUserExists).Errorf("User already exists")
	} else if !errors.Is(err, ErrNotFound) {
		return nil, oops.Code("REGISTER_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	var (
		family     *Family
		role       Role
		newFamily  bool
		resolveErr error
	)
	if code := strings.TrimSpace(req.FamilyCode); code != "" {
		family, resolveErr = s.resolver.ResolveForJoin(ctx, code)
		role = RoleMember
	} else {
		family, resolveErr = s.resolver.Prepare(req.FamilyName)
		role = RoleAdmin
		newFamily = true
	}
	if resolveErr != nil {
		return nil, resolveErr
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		if KindOf(err) != KindInternal {
			return nil, err
		}
		return nil, oops.Code("REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user, err := NewUser(email, req.Name, hash, family.ID, role)
	if err != nil {
		return nil, oops.Code("REGISTER_FAILED").
			With("operation", "new user").
			Wrap(err)
	}

	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		if newFamily {
			if err := s.families.Create(ctx, family); err != nil {
				return oops.Code("REGISTER_FAILED").
					With("operation", "create family").
					Wrap(err)
			}
		}
		if err := s.users.Create(ctx, user); err != nil {
			if errors.Is(err, ErrDuplicate) {
				return oops.Code(CodeUserExists).Errorf("User already exists")
			}
			return oops.Code("REGISTER_FAILED").
				With("operation", "create user").
				Wrap(err)
		}
		if err := s.otpRepo.Delete(ctx, email); err != nil {
			return oops.Code("REGISTER_FAILED").
				With("operation", "delete otp challenge").
				Wrap(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	pair, err := s.tokens.Issue(ctx, user.ID, user.Email)
	if err != nil {
		return nil, oops.Code("REGISTER_FAILED").
			With("operation", "issue tokens").
			Wrap(err)
	}

	user.Family = family
	result := &RegisterResult{
		Message:      "Registration successful",
		User:         user,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}
	if newFamily {
		result.Message = "Family created and registration successful"
		result.FamilyCode = family.Code
	}
	s.logger.InfoContext(ctx, "user registered",
		"user_id", user.ID.String(),
		"family_id", family.ID.String(),
		"role", string(role))
	return result, nil
}

// Login authenticates a user within the family identified by the family code.
// Unknown family, unknown user and wrong password are indistinguishable to
// the caller, and the password check runs in every case.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	email := NormalizeEmail(req.Email)

	var user *User
	family, err := s.families.GetByCode(ctx, strings.TrimSpace(req.FamilyCode))
	switch {
	case err == nil:
		user, err = s.users.GetByEmailInFamily(ctx, email, family.ID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "get user by email").
				Wrap(err)
		}
	case !errors.Is(err, ErrNotFound):
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "get family by code").
			Wrap(err)
	}

	targetHash := s.dummyHash()
	if user != nil {
		targetHash = user.PasswordHash
	}

	valid, verifyErr := s.hasher.Verify(req.Password, targetHash)
	if verifyErr != nil {
		if user == nil {
			return nil, invalidCredentials()
		}
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			Wrap(verifyErr)
	}
	if user == nil || !valid {
		return nil, invalidCredentials()
	}

	if s.hasher.NeedsUpgrade(user.PasswordHash) {
		if newHash, hashErr := s.hasher.Hash(req.Password); hashErr == nil {
			if err := s.users.UpdatePassword(ctx, user.ID, newHash); err != nil {
				s.logger.WarnContext(ctx, "password rehash failed",
					"user_id", user.ID.String(),
					"error", err)
			}
		}
	}

	pair, err := s.tokens.Issue(ctx, user.ID, user.Email)
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "issue tokens").
			Wrap(err)
	}

	user.Family = family
	return &LoginResult{
		Message:      "Login successful",
		User:         user,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, nil
}

func invalidCredentials() error {
	return oops.Code(CodeInvalidCredentials).Errorf("Invalid credentials")
}

// RefreshToken exchanges a refresh token for a new access token. The refresh
// token itself is not rotated. Every rejection looks the same to the caller;
// the cause is logged at debug level.
func (s *Service) RefreshToken(ctx context.Context, token string) (*RefreshResult, error) {
	access, err := s.tokens.Refresh(ctx, token)
	if err != nil {
		if cause, ok := RefreshCause(err); ok {
			s.logger.DebugContext(ctx, "refresh rejected", "cause", cause.String())
		} else {
			s.logger.ErrorContext(ctx, "refresh failed", "error", err)
		}
		return nil, oops.Code(CodeInvalidRefreshToken).Errorf("Invalid refresh token")
	}
	return &RefreshResult{Message: "Token refreshed successfully", AccessToken: access}, nil
}

// Logout revokes the user's refresh token. It always reports success.
func (s *Service) Logout(ctx context.Context, userID ulid.ULID, token string) string {
	if err := s.tokens.Revoke(ctx, userID, token); err != nil {
		s.logger.WarnContext(ctx, "refresh token revoke failed",
			"user_id", userID.String(),
			"error", err)
	}
	return "Logged out successfully"
}

// ForgotFamilyCode emails the user their family's join code.
func (s *Service) ForgotFamilyCode(ctx context.Context, email string) (string, error) {
	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", oops.Code(CodeFamilyCodeLookupFailed).Errorf("No account found with this email")
		}
		return "", oops.Code("FAMILY_CODE_SEND_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	family, err := s.families.GetByID(ctx, user.FamilyID)
	if err != nil {
		return "", oops.Code("FAMILY_CODE_SEND_FAILED").
			With("operation", "get family").
			With("family_id", user.FamilyID.String()).
			Wrap(err)
	}

	if err := s.mailer.SendFamilyCode(ctx, user.Email, user.Name, family.Code, family.Name); err != nil {
		s.logger.WarnContext(ctx, "family code email delivery failed",
			"user_id", user.ID.String(),
			"error", err)
	}

	return "Family code sent to your email successfully", nil
}

// Authenticate resolves the user behind an access token.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*User, error) {
	user, err := s.authenticate(ctx, accessToken)
	if err != nil {
		s.logger.DebugContext(ctx, "authentication rejected", "error", err)
		return nil, oops.Code(CodeUnauthenticated).Errorf("Unauthorized")
	}
	return user, nil
}

func (s *Service) authenticate(ctx context.Context, accessToken string) (*User, error) {
	claims, err := s.tokens.ParseAccess(accessToken)
	if err != nil {
		return nil, err
	}
	id, err := claims.UserID()
	if err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, id)
}

// SweepExpired removes expired refresh tokens and stale OTP challenges.
func (s *Service) SweepExpired(ctx context.Context) (SweepResult, error) {
	var result SweepResult
	start := time.Now()

	n, err := s.tokens.PruneExpired(ctx)
	if err != nil {
		return result, err
	}
	result.RefreshTokens = n

	n, err = s.otps.Sweep(ctx)
	if err != nil {
		return result, err
	}
	result.OTPChallenges = n

	s.logger.InfoContext(ctx, "expiry sweep complete",
		"refresh_tokens", result.RefreshTokens,
		"otp_challenges", result.OTPChallenges,
		"duration", time.Since(start))
	return result, nil
}
