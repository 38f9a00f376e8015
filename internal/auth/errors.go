// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FamTrack Contributors

package auth

import (
	"errors"
	"sync"

	"github.com/samber/oops"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a write violates a uniqueness constraint.
var ErrDuplicate = errors.New("duplicate")

// Kind classifies an error for callers that must react to it, such as the
// HTTP layer choosing a status code.
type Kind int

// Error kinds.
const (
	KindInternal Kind = iota
	KindBadRequest
	KindNotFound
	KindConflict
	KindUnauthorized
	KindForbidden
	KindExpired
	KindInvalidState
	KindMismatch
)

var kindNames = map[Kind]string{
	KindInternal:     "internal",
	KindBadRequest:   "bad_request",
	KindNotFound:     "not_found",
	KindConflict:     "conflict",
	KindUnauthorized: "unauthorized",
	KindForbidden:    "forbidden",
	KindExpired:      "expired",
	KindInvalidState: "invalid_state",
	KindMismatch:     "mismatch",
}

// String returns the snake_case name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Public error codes raised by this package.
const (
	CodeOTPEmailRegistered     = "OTP_EMAIL_REGISTERED"
	CodeOTPNotFound            = "OTP_NOT_FOUND"
	CodeOTPAlreadyVerified     = "OTP_ALREADY_VERIFIED"
	CodeOTPExpired             = "OTP_EXPIRED"
	CodeOTPMismatch            = "OTP_MISMATCH"
	CodeFamilyCodeInvalid      = "FAMILY_CODE_INVALID"
	CodeEmailUnverified        = "REGISTER_EMAIL_UNVERIFIED"
	CodeUserExists             = "REGISTER_USER_EXISTS"
	CodeFamilyNameRequired     = "REGISTER_FAMILY_NAME_REQUIRED"
	CodeInvalidCredentials     = "AUTH_INVALID_CREDENTIALS"
	CodeInvalidRefreshToken    = "AUTH_INVALID_REFRESH_TOKEN"
	CodeFamilyCodeLookupFailed = "FAMILY_CODE_LOOKUP_FAILED"
	CodeUnauthenticated        = "AUTH_UNAUTHENTICATED"
	CodeInvalidEmail           = "AUTH_INVALID_EMAIL"
	CodeInvalidPassword        = "AUTH_INVALID_PASSWORD"
	CodeEmptyPassword          = "AUTH_EMPTY_PASSWORD"
	CodeAccessTokenInvalid     = "ACCESS_TOKEN_INVALID"
	CodeRefreshBadSignature    = "REFRESH_SIGNATURE_INVALID"
	CodeRefreshRevoked         = "REFRESH_TOKEN_REVOKED"
	CodeRefreshExpired         = "REFRESH_TOKEN_EXPIRED"
)

var (
	kindMu sync.RWMutex
	kinds  = map[string]Kind{
		CodeOTPEmailRegistered:     KindConflict,
		CodeOTPNotFound:            KindNotFound,
		CodeOTPAlreadyVerified:     KindInvalidState,
		CodeOTPExpired:             KindExpired,
		CodeOTPMismatch:            KindMismatch,
		CodeFamilyCodeInvalid:      KindBadRequest,
		CodeEmailUnverified:        KindBadRequest,
		CodeUserExists:             KindConflict,
		CodeFamilyNameRequired:     KindBadRequest,
		CodeInvalidCredentials:     KindUnauthorized,
		CodeInvalidRefreshToken:    KindUnauthorized,
		CodeFamilyCodeLookupFailed: KindBadRequest,
		CodeUnauthenticated:        KindUnauthorized,
		CodeInvalidEmail:           KindBadRequest,
		CodeInvalidPassword:        KindBadRequest,
		CodeEmptyPassword:          KindBadRequest,
	}
)

// RegisterKind maps an error code to a kind. Packages that raise their own
// public errors register their codes at init time.
func RegisterKind(code string, kind Kind) {
	kindMu.Lock()
	defer kindMu.Unlock()
	kinds[code] = kind
}

// KindOf classifies err by its oops code. Errors without a registered code
// are internal.
func KindOf(err error) Kind {
	code := CodeOf(err)
	if code == "" {
		return KindInternal
	}
	kindMu.RLock()
	defer kindMu.RUnlock()
	if kind, ok := kinds[code]; ok {
		return kind
	}
	return KindInternal
}

// CodeOf returns the oops code carried by err, or "" when there is none.
func CodeOf(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code, _ := oopsErr.Code().(string)
	return code
}
