// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FamTrack Contributors

package api_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/famtrack/famtrack/internal/ledger"
)

type entryView struct {
	ID       string  `json:"id"`
	UserID   string  `json:"userId"`
	Amount   float64 `json:"amount"`
	Category string  `json:"category"`
	Date     string  `json:"date"`
	Notes    *string `json:"notes"`
	User     *struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"user"`
}

func TestLedgerRoutes_CRUD(t *testing.T) {
	for _, tc := range []struct {
		kind  ledger.Kind
		base  string
		title string
	}{
		{ledger.KindIncome, "/api/incomes", "Income"},
		{ledger.KindExpense, "/api/expenses", "Expense"},
	} {
		t.Run(string(tc.kind), func(t *testing.T) {
			h := newHarness(t)
			alice := h.register("alice@example.com", "Alice", "", "Smiths")
			bob := h.register("bob@example.com", "Bob", alice.Result.FamilyCode, "")
			aliceToken, bobToken := alice.Result.AccessToken, bob.Result.AccessToken

			code, env := h.do(http.MethodPost, tc.base, aliceToken, map[string]any{
				"amount":   250.5,
				"category": "Main",
				"date":     "2026-04-01",
				"notes":    "first",
			})
			require.Equal(t, http.StatusOK, code, env.Message)
			assert.Equal(t, tc.title+" record created", env.Message)
			created := decodeData[entryView](t, env)
			assert.Equal(t, alice.Result.User.ID.String(), created.UserID)
			assert.Equal(t, 250.5, created.Amount)
			assert.Equal(t, "2026-04-01T00:00:00Z", created.Date)
			require.NotNil(t, created.Notes)
			assert.Equal(t, "first", *created.Notes)

			code, env = h.do(http.MethodPost, tc.base, bobToken, map[string]any{
				"amount": 10, "category": "Side", "date": "2026-04-02T10:00:00Z",
			})
			require.Equal(t, http.StatusOK, code, env.Message)
			bobEntry := decodeData[entryView](t, env)
			assert.Nil(t, bobEntry.Notes)

			code, env = h.do(http.MethodGet, tc.base+"/my", aliceToken, nil)
			require.Equal(t, http.StatusOK, code)
			assert.Equal(t, "User "+string(tc.kind)+"s retrieved", env.Message)
			mine := decodeData[[]entryView](t, env)
			require.Len(t, mine, 1)
			assert.Equal(t, created.ID, mine[0].ID)

			code, env = h.do(http.MethodGet, tc.base+"/family", aliceToken, nil)
			require.Equal(t, http.StatusOK, code)
			assert.Equal(t, "Family "+string(tc.kind)+"s retrieved", env.Message)
			all := decodeData[[]entryView](t, env)
			require.Len(t, all, 2)
			assert.Equal(t, bobEntry.ID, all[0].ID, "newest first")
			require.NotNil(t, all[0].User)
			assert.Equal(t, "bob@example.com", all[0].User.Email)

			code, env = h.do(http.MethodGet, tc.base+"/my/stats", aliceToken, nil)
			require.Equal(t, http.StatusOK, code)
			assert.Equal(t, "User "+string(tc.kind)+" stats retrieved", env.Message)
			stats := decodeData[ledger.Stats](t, env)
			assert.Equal(t, 1, stats.Count)
			assert.Equal(t, 250.5, stats.Total)

			code, env = h.do(http.MethodGet, tc.base+"/"+created.ID, aliceToken, nil)
			require.Equal(t, http.StatusOK, code)
			assert.Equal(t, tc.title+" record retrieved", env.Message)
			assert.Equal(t, "Alice", decodeData[entryView](t, env).User.Name)

			code, env = h.do(http.MethodPut, tc.base+"/"+created.ID, aliceToken, map[string]any{"amount": 300, "category": ""})
			require.Equal(t, http.StatusOK, code, env.Message)
			assert.Equal(t, tc.title+" record updated", env.Message)
			updated := decodeData[entryView](t, env)
			assert.Equal(t, 300.0, updated.Amount)
			assert.Equal(t, "Main", updated.Category, "blank category is ignored")
			assert.Equal(t, "2026-04-01T00:00:00Z", updated.Date)

			code, env = h.do(http.MethodDelete, tc.base+"/"+created.ID, aliceToken, nil)
			require.Equal(t, http.StatusOK, code)
			assert.Equal(t, tc.title+" record deleted successfully", env.Message)
			assert.Equal(t, 1, h.entries.Len())
		})
	}
}

func TestLedgerRoutes_OwnershipAndLookup(t *testing.T) {
	h := newHarness(t)
	alice := h.register("alice@example.com", "Alice", "", "Smiths")
	bob := h.register("bob@example.com", "Bob", alice.Result.FamilyCode, "")

	code, env := h.do(http.MethodPost, "/api/expenses", alice.Result.AccessToken, map[string]any{
		"amount": 12, "category": "Food", "date": "2026-04-01",
	})
	require.Equal(t, http.StatusOK, code)
	id := decodeData[entryView](t, env).ID

	code, env = h.do(http.MethodGet, "/api/expenses/"+id, bob.Result.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "You can only view your own expense records", env.Message)

	code, env = h.do(http.MethodPut, "/api/expenses/"+id, bob.Result.AccessToken, map[string]any{"amount": 1})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "You can only update your own expense records", env.Message)

	code, env = h.do(http.MethodDelete, "/api/expenses/"+id, bob.Result.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "You can only delete your own expense records", env.Message)

	code, env = h.do(http.MethodGet, "/api/incomes/"+id, alice.Result.AccessToken, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Income record not found", env.Message)

	code, env = h.do(http.MethodGet, "/api/expenses/"+ulid.Make().String(), alice.Result.AccessToken, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Expense record not found", env.Message)

	code, env = h.do(http.MethodDelete, "/api/expenses/not-an-id", alice.Result.AccessToken, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", env.Error)

	code, _ = h.do(http.MethodGet, "/api/expenses/my", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestLedgerRoutes_Validation(t *testing.T) {
	h := newHarness(t)
	token := h.register("alice@example.com", "Alice", "", "Smiths").Result.AccessToken

	tests := []struct {
		name string
		body any
		msg  string
	}{
		{"missing amount", map[string]any{"category": "Food", "date": "2026-04-01"}, "amount must be a number conforming to the specified constraints"},
		{"negative amount", map[string]any{"amount": -5, "category": "Food", "date": "2026-04-01"}, "amount must not be less than 0"},
		{"oversized amount", map[string]any{"amount": 1e13, "category": "Food", "date": "2026-04-01"}, "amount must not be greater than 999999999999.99"},
		{"blank category", map[string]any{"amount": 5, "category": " ", "date": "2026-04-01"}, "category should not be empty"},
		{"missing date", map[string]any{"amount": 5, "category": "Food"}, "date must be a valid ISO 8601 date string"},
		{"bad date", map[string]any{"amount": 5, "category": "Food", "date": "01/04/2026"}, "date must be a valid ISO 8601 date string"},
		{"amount as string", `{"amount":"5","category":"Food","date":"2026-04-01"}`, "Invalid request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := h.do(http.MethodPost, "/api/incomes", token, tt.body)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.Equal(t, tt.msg, env.Message)
			assert.Equal(t, "bad_request", env.Error)
		})
	}
	assert.Zero(t, h.entries.Len())

	code, env := h.do(http.MethodPost, "/api/incomes", token, map[string]any{"amount": 0, "category": "Gift", "date": "2026-04-01"})
	require.Equal(t, http.StatusOK, code, "zero is a valid amount")
	id := decodeData[entryView](t, env).ID

	code, env = h.do(http.MethodPut, "/api/incomes/"+id, token, map[string]any{"date": "yesterday"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "date must be a valid ISO 8601 date string", env.Message)
}

func TestDashboardRoutes(t *testing.T) {
	h := newHarness(t)
	alice := h.register("alice@example.com", "Alice", "", "Smiths")
	bob := h.register("bob@example.com", "Bob", alice.Result.FamilyCode, "")
	recent := time.Now().UTC().AddDate(0, 0, -1).Format("2006-01-02")

	for _, post := range []struct {
		path, token string
		amount      float64
		category    string
	}{
		{"/api/incomes", alice.Result.AccessToken, 1000, "Salary"},
		{"/api/expenses", alice.Result.AccessToken, 200, "Food"},
		{"/api/expenses", bob.Result.AccessToken, 50, "Fuel"},
	} {
		code, env := h.do(http.MethodPost, post.path, post.token, map[string]any{
			"amount": post.amount, "category": post.category, "date": recent,
		})
		require.Equal(t, http.StatusOK, code, env.Message)
	}

	code, env := h.do(http.MethodGet, "/api/dashboard/family", bob.Result.AccessToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Family dashboard retrieved", env.Message)
	family := decodeData[ledger.FamilyDashboard](t, env)
	assert.Equal(t, 1000.0, family.TotalIncome)
	assert.Equal(t, 250.0, family.TotalExpense)
	assert.Equal(t, 750.0, family.Balance)
	require.Len(t, family.MemberStats, 2)
	assert.Equal(t, "Bob", family.MemberStats[1].UserName)
	assert.Equal(t, -50.0, family.MemberStats[1].Balance)

	code, env = h.do(http.MethodGet, "/api/dashboard/my", alice.Result.AccessToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "User dashboard retrieved", env.Message)
	mine := decodeData[ledger.UserDashboard](t, env)
	assert.Equal(t, 800.0, mine.Balance)
	assert.Len(t, mine.RecentIncomes, 1)
	assert.Len(t, mine.RecentExpenses, 1)

	code, env = h.do(http.MethodGet, "/api/dashboard/family/trends", alice.Result.AccessToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Family trends retrieved", env.Message)
	trends := decodeData[[]ledger.MonthTrend](t, env)
	require.Len(t, trends, 1)
	assert.Equal(t, 750.0, trends[0].Balance)

	code, env = h.do(http.MethodGet, "/api/dashboard/my/trends?months=12", bob.Result.AccessToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "User trends retrieved", env.Message)
	assert.Equal(t, -50.0, decodeData[[]ledger.MonthTrend](t, env)[0].Balance)

	for _, months := range []string{"abc", "0", "-3", "121"} {
		code, env = h.do(http.MethodGet, "/api/dashboard/my/trends?months="+months, bob.Result.AccessToken, nil)
		assert.Equal(t, http.StatusBadRequest, code, months)
		assert.Equal(t, "months must be between 1 and 120", env.Message, months)
	}
}
