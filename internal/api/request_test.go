// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FamTrack Contributors

package api

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/famtrack/famtrack/internal/auth"
	"github.com/famtrack/famtrack/pkg/errutil"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2026-04-01", time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)},
		{"2026-04-01T10:30:00", time.Date(2026, 4, 1, 10, 30, 0, 0, time.UTC)},
		{"2026-04-01T10:30:00+02:00", time.Date(2026, 4, 1, 8, 30, 0, 0, time.UTC)},
		{"2026-04-01T10:30:00.5Z", time.Date(2026, 4, 1, 10, 30, 0, 5e8, time.UTC)},
	}
	for _, tt := range tests {
		got, err := parseDate(tt.in)
		require.NoError(t, err, tt.in)
		assert.True(t, tt.want.Equal(got), "%s: got %s", tt.in, got)
		assert.Equal(t, time.UTC, got.Location())
	}

	for _, bad := range []string{"", "04/01/2026", "2026-13-01", "yesterday"} {
		_, err := parseDate(bad)
		assert.Error(t, err, bad)
	}
}

func TestDecode_FieldErrors(t *testing.T) {
	tests := []struct {
		name     string
		dst      any
		body     string
		wantCode string
		wantMsg  string
		field    string
		rule     string
	}{
		{
			name: "email format", dst: &emailRequest{}, body: `{"email":"nope"}`,
			wantCode: auth.CodeInvalidEmail, wantMsg: "Please provide a valid email address",
			field: "email", rule: "email",
		},
		{
			name: "short password", dst: &registerRequest{}, body: `{"email":"a@example.com","password":"12345","name":"A"}`,
			wantCode: auth.CodeInvalidPassword, wantMsg: "Password must be at least 6 characters",
			field: "password", rule: "min",
		},
		{
			name: "empty member list", dst: &bulkRequest{}, body: `{"memberIds":[]}`,
			wantCode: CodeMissingField, wantMsg: "memberIds should not be empty",
			field: "memberIds", rule: "min",
		},
		{
			name: "amount above cap", dst: &createEntryRequest{}, body: `{"amount":1000000000000,"category":"x","date":"2026-01-01"}`,
			wantCode: CodeInvalidField, wantMsg: "amount must not be greater than 999999999999.99",
			field: "amount", rule: "lte",
		},
		{
			name: "patch date", dst: &updateEntryRequest{}, body: `{"date":"soon"}`,
			wantCode: CodeInvalidField, wantMsg: "date must be a valid ISO 8601 date string",
			field: "date", rule: "isodate",
		},
		{
			name: "malformed json", dst: &emailRequest{}, body: `{"email":`,
			wantCode: CodeInvalidBody, wantMsg: "Invalid request body",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/", strings.NewReader(tt.body))
			err := decode(r, tt.dst)
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, tt.wantCode)
			assert.Equal(t, tt.wantMsg, err.Error())
			if tt.field != "" {
				errutil.AssertErrorContext(t, err, "field", tt.field)
				errutil.AssertErrorContext(t, err, "rule", tt.rule)
			}
		})
	}
}

func TestDecode_EmptyPatchIsValid(t *testing.T) {
	var req updateEntryRequest
	require.NoError(t, decode(httptest.NewRequest("PUT", "/", strings.NewReader(`{}`)), &req))
	assert.Nil(t, req.Amount)
	assert.Nil(t, req.Date)
}

func TestValidationError_Fallbacks(t *testing.T) {
	type unmapped struct {
		Nickname string `json:"nickname" validate:"required"`
		Age      int    `json:"age" validate:"gte=18"`
	}

	err := validationError(validate.Struct(unmapped{Age: 30}))
	errutil.AssertErrorCode(t, err, CodeMissingField)
	assert.Equal(t, "nickname is required", err.Error())

	err = validationError(validate.Struct(unmapped{Nickname: "x", Age: 3}))
	errutil.AssertErrorCode(t, err, CodeInvalidField)
	assert.Equal(t, "age is invalid", err.Error())

	err = validationError(errors.New("not a field error"))
	errutil.AssertErrorCode(t, err, CodeInvalidBody)
}
