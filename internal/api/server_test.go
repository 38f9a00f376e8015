// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FamTrack Contributors

package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/famtrack/famtrack/internal/api"
	"github.com/famtrack/famtrack/internal/auth"
	"github.com/famtrack/famtrack/internal/auth/authtest"
	"github.com/famtrack/famtrack/internal/family"
	"github.com/famtrack/famtrack/internal/ledger"
	"github.com/famtrack/famtrack/internal/ledger/ledgertest"
	"github.com/famtrack/famtrack/internal/observability"
	"github.com/famtrack/famtrack/internal/reminder"
)

type envelope struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	Error      string          `json:"error"`
	StatusCode int             `json:"statusCode"`
}

type harness struct {
	t       *testing.T
	handler http.Handler
	store   *authtest.Store
	mailer  *authtest.Mailer
	authSvc *auth.Service
	entries *ledgertest.Store
	metrics *observability.Metrics
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := authtest.NewStore()
	mailer := authtest.NewMailer()
	authSvc := authtest.NewService(t, store, mailer)

	familySvc, err := family.NewService(store.Families(), store.Users())
	require.NoError(t, err)
	reminderSvc, err := reminder.NewService(store.Users(), store.Families(), mailer, reminder.WithConcurrency(1))
	require.NoError(t, err)

	entries := ledgertest.NewStore(store.Users())
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	srv, err := api.NewServer(api.Config{
		Auth:      authSvc,
		Family:    familySvc,
		Reminders: reminderSvc,
		Ledger:    newLedger(t, entries, store),
		Metrics:   metrics,
	})
	require.NoError(t, err)

	return &harness{
		t:       t,
		handler: srv.Handler(),
		store:   store,
		mailer:  mailer,
		authSvc: authSvc,
		entries: entries,
		metrics: metrics,
	}
}

func newLedger(t *testing.T, entries *ledgertest.Store, store *authtest.Store) *ledger.Service {
	t.Helper()
	svc, err := ledger.NewService(entries, store.Users())
	require.NoError(t, err)
	return svc
}

func (h *harness) do(method, path, token string, body any) (int, envelope) {
	h.t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(h.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)

	var env envelope
	require.NoError(h.t, json.Unmarshal(rec.Body.Bytes(), &env), "body: %s", rec.Body.String())
	assert.Equal(h.t, rec.Code, env.StatusCode)
	assert.Equal(h.t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	return rec.Code, env
}

func (h *harness) register(email, name, familyCode, familyName string) authtest.Registered {
	h.t.Helper()
	return authtest.Register(h.t, h.authSvc, h.mailer, email, name, familyCode, familyName)
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func TestNewServer_RequiresServices(t *testing.T) {
	_, err := api.NewServer(api.Config{})
	assert.ErrorContains(t, err, "auth service is required")
}

func TestStatusFor(t *testing.T) {
	tests := map[auth.Kind]int{
		auth.KindBadRequest:   http.StatusBadRequest,
		auth.KindExpired:      http.StatusBadRequest,
		auth.KindInvalidState: http.StatusBadRequest,
		auth.KindMismatch:     http.StatusBadRequest,
		auth.KindNotFound:     http.StatusNotFound,
		auth.KindConflict:     http.StatusConflict,
		auth.KindUnauthorized: http.StatusUnauthorized,
		auth.KindForbidden:    http.StatusForbidden,
		auth.KindInternal:     http.StatusInternalServerError,
	}
	for kind, want := range tests {
		t.Run(kind.String(), func(t *testing.T) {
			assert.Equal(t, want, api.StatusFor(kind))
		})
	}
}

func TestRegistrationFlow(t *testing.T) {
	h := newHarness(t)

	code, env := h.do(http.MethodPost, "/api/auth/send-otp", "", map[string]string{"email": "Alice@Example.com"})
	require.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)
	assert.Equal(t, "OTP sent successfully to your email", env.Message)

	otp, ok := h.mailer.OTP("alice@example.com")
	require.True(t, ok)

	code, env = h.do(http.MethodPost, "/api/auth/verify-otp", "", map[string]string{"email": "alice@example.com", "otp": "000000x"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid OTP", env.Message)
	assert.Equal(t, "mismatch", env.Error)

	code, env = h.do(http.MethodPost, "/api/auth/verify-otp", "", map[string]string{"email": "alice@example.com", "otp": otp})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "OTP verified successfully. You can now register", env.Message)

	code, env = h.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":      "alice@example.com",
		"password":   "secret123",
		"name":       "Alice",
		"familyName": "Smiths",
	})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Registration successful", env.Message)
	registered := decodeData[struct {
		User struct {
			Email  string `json:"email"`
			Role   string `json:"role"`
			Family struct {
				FamilyName string `json:"familyName"`
				FamilyCode string `json:"familyCode"`
			} `json:"family"`
		} `json:"user"`
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
		FamilyCode   string `json:"familyCode"`
	}](t, env)
	assert.Equal(t, "ADMIN", registered.User.Role)
	assert.NotEmpty(t, registered.AccessToken)
	assert.Len(t, registered.FamilyCode, 6)
	assert.Equal(t, "Smiths", registered.User.Family.FamilyName)
	assert.Equal(t, registered.FamilyCode, registered.User.Family.FamilyCode)
	assert.NotContains(t, string(env.Data), "password")

	code, env = h.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"familyCode": registered.FamilyCode,
		"email":      "alice@example.com",
		"password":   "secret123",
	})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Login successful", env.Message)
	login := decodeData[struct {
		User struct {
			Family struct {
				FamilyName string `json:"familyName"`
				FamilyCode string `json:"familyCode"`
			} `json:"family"`
		} `json:"user"`
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}](t, env)
	assert.Equal(t, "Smiths", login.User.Family.FamilyName)
	assert.Equal(t, registered.FamilyCode, login.User.Family.FamilyCode)

	code, env = h.do(http.MethodPost, "/api/auth/refresh", "", map[string]string{"refreshToken": login.RefreshToken})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Token refreshed", env.Message)
	assert.NotEmpty(t, decodeData[auth.RefreshResult](t, env).AccessToken)

	code, env = h.do(http.MethodPost, "/api/auth/logout", login.AccessToken, map[string]string{"refreshToken": login.RefreshToken})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Logged out successfully", env.Message)

	code, env = h.do(http.MethodPost, "/api/auth/refresh", "", map[string]string{"refreshToken": login.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Invalid refresh token", env.Message)
	assert.False(t, env.Success)
}

func TestRequestValidation(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name string
		path string
		body any
		msg  string
	}{
		{"malformed json", "/api/auth/send-otp", `{"email":`, "Invalid request body"},
		{"bad email", "/api/auth/send-otp", map[string]string{"email": "not-an-email"}, "Please provide a valid email address"},
		{"missing otp", "/api/auth/verify-otp", map[string]string{"email": "a@example.com"}, "OTP is required"},
		{"short password", "/api/auth/register", map[string]string{"email": "a@example.com", "password": "123", "name": "A"}, "Password must be at least 6 characters"},
		{"missing name", "/api/auth/register", map[string]string{"email": "a@example.com", "password": "secret123"}, "Name is required"},
		{"missing family code", "/api/auth/login", map[string]string{"email": "a@example.com", "password": "secret123"}, "Family code is required"},
		{"missing refresh token", "/api/auth/refresh", map[string]string{}, "Refresh token is required"},
		{"forgot bad email", "/api/auth/forgot-family-code", map[string]string{"email": ""}, "Please provide a valid email address"},
		{"empty body", "/api/auth/send-otp", nil, "Please provide a valid email address"},
		{"display name address", "/api/auth/send-otp", map[string]string{"email": "Alice <a@example.com>"}, "Please provide a valid email address"},
		{"blank otp", "/api/auth/verify-otp", map[string]string{"email": "a@example.com", "otp": "   "}, "OTP is required"},
		{"missing password", "/api/auth/login", map[string]string{"familyCode": "123456", "email": "a@example.com"}, "Password must be at least 6 characters"},
		{"blank name", "/api/auth/register", map[string]string{"email": "a@example.com", "password": "secret123", "name": " "}, "Name is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := h.do(http.MethodPost, tt.path, "", tt.body)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.Equal(t, tt.msg, env.Message)
			assert.Equal(t, "bad_request", env.Error)
		})
	}
}

func TestServiceErrorsMapToStatus(t *testing.T) {
	h := newHarness(t)
	alice := h.register("alice@example.com", "Alice", "", "Smiths")

	code, env := h.do(http.MethodPost, "/api/auth/send-otp", "", map[string]string{"email": "alice@example.com"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "Email already registered", env.Message)

	code, env = h.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"familyCode": alice.Result.FamilyCode,
		"email":      "alice@example.com",
		"password":   "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Invalid credentials", env.Message)

	code, env = h.do(http.MethodPost, "/api/auth/forgot-family-code", "", map[string]string{"email": "nobody@example.com"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "No account found with this email", env.Message)

	code, env = h.do(http.MethodPost, "/api/auth/forgot-family-code", "", map[string]string{"email": "alice@example.com"})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Family code sent to your email successfully", env.Message)
	sent, ok := h.mailer.FamilyCode("alice@example.com")
	require.True(t, ok)
	assert.Equal(t, alice.Result.FamilyCode, sent)
}

func TestBearerAuthentication(t *testing.T) {
	h := newHarness(t)
	alice := h.register("alice@example.com", "Alice", "", "Smiths")

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"wrong scheme", "Basic " + alice.Result.AccessToken},
		{"refresh token as access", "Bearer " + alice.Result.RefreshToken},
		{"garbage", "Bearer not.a.jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/family", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.handler.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.JSONEq(t, `{"success":false,"message":"Unauthorized","error":"unauthorized","statusCode":401}`, rec.Body.String())
		})
	}
}

func TestFamilyRoutes(t *testing.T) {
	h := newHarness(t)
	alice := h.register("alice@example.com", "Alice", "", "Smiths")
	bob := h.register("bob@example.com", "Bob", alice.Result.FamilyCode, "")
	adminToken := alice.Result.AccessToken

	code, env := h.do(http.MethodGet, "/api/family", adminToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Family details retrieved", env.Message)
	details := decodeData[family.Details](t, env)
	assert.Equal(t, "Smiths", details.FamilyName)
	require.Len(t, details.Members, 2)
	assert.Contains(t, string(env.Data), `"users"`)

	code, env = h.do(http.MethodGet, "/api/family/members", bob.Result.AccessToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Family members retrieved", env.Message)
	assert.Len(t, decodeData[[]family.Member](t, env), 2)

	code, env = h.do(http.MethodPatch, "/api/family/name", bob.Result.AccessToken, map[string]string{"name": "Bob's"})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "Only admins can update family name", env.Message)

	code, env = h.do(http.MethodPatch, "/api/family/name", adminToken, map[string]string{"name": "The Smiths"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Family name updated", env.Message)
	assert.Equal(t, "The Smiths", decodeData[auth.Family](t, env).Name)

	code, env = h.do(http.MethodPatch, "/api/family/name", adminToken, map[string]string{"familyName": "Smith Family"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Smith Family", decodeData[auth.Family](t, env).Name)

	code, env = h.do(http.MethodDelete, "/api/family/members/not-a-ulid", adminToken, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "Member not found in your family", env.Message)

	code, env = h.do(http.MethodDelete, "/api/family/members/"+alice.Result.User.ID.String(), adminToken, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "Cannot remove admin user", env.Message)

	code, env = h.do(http.MethodDelete, "/api/family/members/"+bob.Result.User.ID.String(), adminToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Member removed successfully", env.Message)

	// A removed member's access token no longer resolves to a user.
	code, _ = h.do(http.MethodGet, "/api/family", bob.Result.AccessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestReminderRoutes(t *testing.T) {
	h := newHarness(t)
	alice := h.register("alice@example.com", "Alice", "", "Smiths")
	bob := h.register("bob@example.com", "Bob", alice.Result.FamilyCode, "")
	adminToken := alice.Result.AccessToken

	t.Run("members cannot use admin routes", func(t *testing.T) {
		for _, path := range []string{"/api/reminders/send-to-member", "/api/reminders/send-to-all", "/api/reminders/send-bulk"} {
			code, env := h.do(http.MethodPost, path, bob.Result.AccessToken, map[string]any{})
			assert.Equal(t, http.StatusForbidden, code, path)
			assert.Equal(t, "Forbidden resource", env.Message, path)
		}
	})

	t.Run("test reminder for any user", func(t *testing.T) {
		code, env := h.do(http.MethodPost, "/api/reminders/test", bob.Result.AccessToken, nil)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, "Test reminder sent successfully", env.Message)
	})

	t.Run("send to member", func(t *testing.T) {
		code, env := h.do(http.MethodPost, "/api/reminders/send-to-member", adminToken, map[string]string{"memberId": bob.Result.User.ID.String()})
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, "Reminder sent successfully to Bob", env.Message)
		assert.Equal(t, "bob@example.com", decodeData[reminder.Outcome](t, env).SentTo)

		code, env = h.do(http.MethodPost, "/api/reminders/send-to-member", adminToken, map[string]string{"memberId": "junk"})
		assert.Equal(t, http.StatusNotFound, code)
		assert.Equal(t, "Member not found in your family", env.Message)

		code, env = h.do(http.MethodPost, "/api/reminders/send-to-member", adminToken, map[string]string{})
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "memberId is required", env.Message)
	})

	t.Run("send to all", func(t *testing.T) {
		h.mailer.FailFor("bob@example.com", errors.New("mailbox full"))
		code, env := h.do(http.MethodPost, "/api/reminders/send-to-all", adminToken, nil)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, "Reminders sent to 1 member(s), 1 failed", env.Message)
		tally := decodeData[reminder.Tally](t, env)
		assert.Equal(t, 2, tally.Total)
		assert.Equal(t, []reminder.Result{
			{Email: "alice@example.com", Name: "Alice", Status: reminder.StatusSent},
			{Email: "bob@example.com", Name: "Bob", Status: reminder.StatusFailed},
		}, tally.Results)
	})

	t.Run("send bulk", func(t *testing.T) {
		code, env := h.do(http.MethodPost, "/api/reminders/send-bulk", adminToken, map[string]any{
			"memberIds": []string{alice.Result.User.ID.String(), "junk", ulid.Make().String()},
		})
		require.Equal(t, http.StatusOK, code)
		tally := decodeData[reminder.Tally](t, env)
		assert.Equal(t, 3, tally.TotalRequested)
		assert.Equal(t, 1, tally.SuccessCount)

		code, env = h.do(http.MethodPost, "/api/reminders/send-bulk", adminToken, map[string]any{"memberIds": []string{"junk"}})
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "No valid members found", env.Message)

		code, env = h.do(http.MethodPost, "/api/reminders/send-bulk", adminToken, map[string]any{"memberIds": []string{}})
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "memberIds should not be empty", env.Message)
	})
}

func TestUnknownRoute(t *testing.T) {
	h := newHarness(t)

	code, env := h.do(http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Cannot GET /api/nope", env.Message)

	code, env = h.do(http.MethodGet, "/api/auth/login", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, code)
	assert.Equal(t, "Method GET not allowed", env.Message)

	// Mismatches in nested and admin-only subrouters answer the same way.
	for _, path := range []string{
		"/api/family/members/" + ulid.Make().String(),
		"/api/family/name",
		"/api/reminders/test",
		"/api/reminders/send-to-all",
		"/api/incomes/my/stats",
		"/api/expenses",
		"/api/dashboard/my/trends",
	} {
		code, env = h.do(http.MethodPut, path, "", nil)
		assert.Equal(t, http.StatusMethodNotAllowed, code, path)
		assert.Equal(t, "Method PUT not allowed", env.Message, path)
	}
}

func TestRequestMetrics(t *testing.T) {
	h := newHarness(t)
	alice := h.register("alice@example.com", "Alice", "", "Smiths")

	h.do(http.MethodDelete, "/api/family/members/"+ulid.Make().String(), alice.Result.AccessToken, nil)
	h.do(http.MethodDelete, "/api/family/members/"+ulid.Make().String(), alice.Result.AccessToken, nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(
		h.metrics.RequestsTotal.WithLabelValues("/api/family/members/{id}", http.MethodDelete, "403")))
}

// brokenFamily fails every call the way a lost database would.
type brokenFamily struct {
	panics bool
}

func (b brokenFamily) Details(context.Context, ulid.ULID) (*family.Details, error) {
	if b.panics {
		panic("nil map write")
	}
	return nil, errors.New("dial tcp 10.0.0.5:5432: connection refused")
}

func (brokenFamily) Members(context.Context, ulid.ULID) ([]family.Member, error) {
	return nil, errors.New("connection refused")
}

func (brokenFamily) RemoveMember(context.Context, ulid.ULID, ulid.ULID, auth.Role) (string, error) {
	return "", errors.New("connection refused")
}

func (brokenFamily) UpdateName(context.Context, ulid.ULID, string, auth.Role) (*auth.Family, error) {
	return nil, errors.New("connection refused")
}

func TestInternalErrorsAreMasked(t *testing.T) {
	for _, panics := range []bool{false, true} {
		t.Run(fmt.Sprintf("panics=%v", panics), func(t *testing.T) {
			store := authtest.NewStore()
			mailer := authtest.NewMailer()
			authSvc := authtest.NewService(t, store, mailer)
			reminderSvc, err := reminder.NewService(store.Users(), store.Families(), mailer)
			require.NoError(t, err)
			alice := authtest.Register(t, authSvc, mailer, "alice@example.com", "Alice", "", "Smiths")

			srv, err := api.NewServer(api.Config{
				Auth:      authSvc,
				Family:    brokenFamily{panics: panics},
				Reminders: reminderSvc,
				Ledger:    newLedger(t, ledgertest.NewStore(store.Users()), store),
			})
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodGet, "/api/family", nil)
			req.Header.Set("Authorization", "Bearer "+alice.Result.AccessToken)
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.JSONEq(t, `{"success":false,"message":"Internal server error","error":"internal","statusCode":500}`, rec.Body.String())
			assert.NotContains(t, rec.Body.String(), "10.0.0.5")
		})
	}
}

func TestServer_StartStop(t *testing.T) {
	store := authtest.NewStore()
	mailer := authtest.NewMailer()
	authSvc := authtest.NewService(t, store, mailer)
	familySvc, err := family.NewService(store.Families(), store.Users())
	require.NoError(t, err)
	reminderSvc, err := reminder.NewService(store.Users(), store.Families(), mailer)
	require.NoError(t, err)

	srv, err := api.NewServer(api.Config{
		Addr:      "127.0.0.1:0",
		Auth:      authSvc,
		Family:    familySvc,
		Reminders: reminderSvc,
		Ledger:    newLedger(t, ledgertest.NewStore(store.Users()), store),
	})
	require.NoError(t, err)
	assert.Empty(t, srv.Addr())

	errCh, err := srv.Start()
	require.NoError(t, err)
	_, err = srv.Start()
	assert.ErrorContains(t, err, "already running")

	resp, err := http.Post("http://"+srv.Addr()+"/api/auth/send-otp", "application/json", strings.NewReader(`{"email":"new@example.com"}`))
	require.NoError(t, err)
	_ = resp.Body.Close() //nolint:errcheck // test cleanup
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))
	require.NoError(t, srv.Stop(ctx), "second stop is a no-op")

	_, open := <-errCh
	assert.False(t, open)
}
