// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FamTrack Contributors

package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/samber/oops"

	"github.com/famtrack/famtrack/internal/auth"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Error codes raised while reading requests.
const (
	CodeInvalidBody   = "REQUEST_INVALID_BODY"
	CodeMissingField  = "REQUEST_MISSING_FIELD"
	CodeInvalidField  = "REQUEST_INVALID_FIELD"
	CodeRoleForbidden = "REQUEST_ROLE_FORBIDDEN"
)

func init() {
	auth.RegisterKind(CodeInvalidBody, auth.KindBadRequest)
	auth.RegisterKind(CodeMissingField, auth.KindBadRequest)
	auth.RegisterKind(CodeInvalidField, auth.KindBadRequest)
	auth.RegisterKind(CodeRoleForbidden, auth.KindForbidden)
}

// validate checks request structs against their `validate` tags. Field
// errors are reported by JSON name.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	mustRegister(v, "notblank", validators.NotBlank)
	mustRegister(v, "isodate", func(fl validator.FieldLevel) bool {
		_, err := parseDate(fl.Field().String())
		return err == nil
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(err)
	}
}

// dateLayouts are the ISO 8601 forms accepted for ledger dates.
var dateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

// parseDate parses an ISO 8601 date or date-time. Values without a zone are
// UTC.
func parseDate(s string) (time.Time, error) {
	var err error
	for _, layout := range dateLayouts {
		var t time.Time
		if t, err = time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, err
}

// fieldRule is the public error for a failed field check.
type fieldRule struct {
	code    string
	message string
}

// fieldRules are keyed by "field.tag", falling back to "field".
var fieldRules = map[string]fieldRule{
	"email":           {auth.CodeInvalidEmail, "Please provide a valid email address"},
	"password":        {auth.CodeInvalidPassword, "Password must be at least 6 characters"},
	"otp":             {CodeMissingField, "OTP is required"},
	"name":            {CodeMissingField, "Name is required"},
	"familyCode":      {CodeMissingField, "Family code is required"},
	"refreshToken":    {CodeMissingField, "Refresh token is required"},
	"memberId":        {CodeMissingField, "memberId is required"},
	"memberIds":       {CodeMissingField, "memberIds should not be empty"},
	"amount.required": {CodeMissingField, "amount must be a number conforming to the specified constraints"},
	"amount.gte":      {CodeInvalidField, "amount must not be less than 0"},
	"amount.lte":      {CodeInvalidField, "amount must not be greater than 999999999999.99"},
	"category":        {CodeMissingField, "category should not be empty"},
	"date":            {CodeInvalidField, "date must be a valid ISO 8601 date string"},
}

// validationError turns the first failed check into a public error.
func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return oops.Code(CodeInvalidBody).Errorf("Invalid request body")
	}
	fe := fieldErrs[0]
	rule, ok := fieldRules[fe.Field()+"."+fe.Tag()]
	if !ok {
		rule, ok = fieldRules[fe.Field()]
	}
	if !ok {
		rule = fieldRule{CodeInvalidField, fe.Field() + " is invalid"}
		if fe.Tag() == "required" || fe.Tag() == "notblank" {
			rule = fieldRule{CodeMissingField, fe.Field() + " is required"}
		}
	}
	return oops.Code(rule.code).
		With("field", fe.Field()).
		With("rule", fe.Tag()).
		Errorf("%s", rule.message)
}

// decode reads a JSON body into dst and validates it. An empty body leaves
// dst at its zero value, which then fails any required field.
func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return oops.Code(CodeInvalidBody).Errorf("Invalid request body")
	}
	if err := validate.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type verifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"notblank"`
}

type registerRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=6"`
	Name       string `json:"name" validate:"notblank"`
	FamilyCode string `json:"familyCode"`
	FamilyName string `json:"familyName"`
}

type loginRequest struct {
	FamilyCode string `json:"familyCode" validate:"notblank"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=6"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"notblank"`
}

// renameRequest accepts the new name as "name" or "familyName".
type renameRequest struct {
	Name       string `json:"name"`
	FamilyName string `json:"familyName"`
}

func (r renameRequest) value() string {
	if strings.TrimSpace(r.Name) != "" {
		return r.Name
	}
	return r.FamilyName
}

type memberRequest struct {
	MemberID string `json:"memberId" validate:"notblank"`
}

type bulkRequest struct {
	MemberIDs []string `json:"memberIds" validate:"required,min=1"`
}

type createEntryRequest struct {
	Amount   *float64 `json:"amount" validate:"required,gte=0,lte=999999999999.99"`
	Category string   `json:"category" validate:"notblank"`
	Date     string   `json:"date" validate:"required,isodate"`
	Notes    *string  `json:"notes"`
}

// updateEntryRequest changes only the fields present in the body.
type updateEntryRequest struct {
	Amount   *float64 `json:"amount" validate:"omitnil,gte=0,lte=999999999999.99"`
	Category *string  `json:"category"`
	Date     *string  `json:"date" validate:"omitnil,isodate"`
	Notes    *string  `json:"notes"`
}
