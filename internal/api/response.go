// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FamTrack Contributors

package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/famtrack/famtrack/internal/auth"
	"github.com/famtrack/famtrack/pkg/errutil"
)

// Envelope wraps every JSON response.
type Envelope struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Data       any    `json:"data,omitempty"`
	Error      string `json:"error,omitempty"`
	StatusCode int    `json:"statusCode"`
}

const internalErrorMessage = "Internal server error"

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind auth.Kind) int {
	switch kind {
	case auth.KindBadRequest, auth.KindExpired, auth.KindInvalidState, auth.KindMismatch:
		return http.StatusBadRequest
	case auth.KindNotFound:
		return http.StatusNotFound
	case auth.KindConflict:
		return http.StatusConflict
	case auth.KindUnauthorized:
		return http.StatusUnauthorized
	case auth.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	//nolint:errcheck // client may have gone away
	json.NewEncoder(w).Encode(body)
}

func writeSuccess(w http.ResponseWriter, message string, data any) {
	writeJSON(w, http.StatusOK, Envelope{
		Success:    true,
		Message:    message,
		Data:       data,
		StatusCode: http.StatusOK,
	})
}

// writeError renders err. Internal errors are logged and replaced by a
// generic message.
func writeError(ctx context.Context, w http.ResponseWriter, logger *slog.Logger, err error) {
	kind := auth.KindOf(err)
	status := StatusFor(kind)
	message := err.Error()
	if kind == auth.KindInternal {
		errutil.LogErrorContext(ctx, logger, "request failed", err)
		message = internalErrorMessage
	}
	writeJSON(w, status, Envelope{
		Success:    false,
		Message:    message,
		Error:      kind.String(),
		StatusCode: status,
	})
}
