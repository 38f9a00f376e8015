// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FamTrack Contributors

package ledger_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/famtrack/famtrack/internal/auth"
	"github.com/famtrack/famtrack/internal/auth/authtest"
	"github.com/famtrack/famtrack/internal/ledger"
	"github.com/famtrack/famtrack/internal/ledger/ledgertest"
	"github.com/famtrack/famtrack/pkg/errutil"
)

var now = time.Date(2026, 5, 20, 9, 30, 0, 0, time.UTC)

type fixture struct {
	store    *authtest.Store
	entries  *ledgertest.Store
	svc      *ledger.Service
	alice    *auth.User
	bob      *auth.User
	outsider *auth.User
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := authtest.NewStore()
	mailer := authtest.NewMailer()
	authSvc := authtest.NewService(t, store, mailer)

	alice := authtest.Register(t, authSvc, mailer, "alice@example.com", "Alice", "", "Smiths")
	bob := authtest.Register(t, authSvc, mailer, "bob@example.com", "Bob", alice.Result.FamilyCode, "")
	outsider := authtest.Register(t, authSvc, mailer, "olga@example.com", "Olga", "", "Jones")

	entries := ledgertest.NewStore(store.Users())
	svc, err := ledger.NewService(entries, store.Users(), ledger.WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	return fixture{
		store:    store,
		entries:  entries,
		svc:      svc,
		alice:    alice.Result.User,
		bob:      bob.Result.User,
		outsider: outsider.Result.User,
	}
}

func (f fixture) record(t *testing.T, kind ledger.Kind, user *auth.User, amount float64, category string, date time.Time) *ledger.Entry {
	t.Helper()
	e, err := f.svc.Create(context.Background(), kind, user.ID, ledger.NewEntry{
		Amount:   amount,
		Category: category,
		Date:     date,
	})
	require.NoError(t, err)
	return e
}

func day(month time.Month, d int) time.Time {
	return time.Date(2026, month, d, 0, 0, 0, 0, time.UTC)
}

func TestNewService_NilDependencies(t *testing.T) {
	store := authtest.NewStore()

	_, err := ledger.NewService(nil, store.Users())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entries repository is required")

	_, err = ledger.NewService(ledgertest.NewStore(store.Users()), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "users repository is required")
}

func TestKind(t *testing.T) {
	assert.True(t, ledger.KindIncome.Valid())
	assert.True(t, ledger.KindExpense.Valid())
	assert.False(t, ledger.Kind("transfer").Valid())
	assert.Equal(t, "Income", ledger.KindIncome.Title())
	assert.Equal(t, "Expense", ledger.KindExpense.Title())
}

func TestCreate(t *testing.T) {
	f := newFixture(t)
	notes := "March salary"

	e, err := f.svc.Create(context.Background(), ledger.KindIncome, f.alice.ID, ledger.NewEntry{
		Amount:   1234.567,
		Category: "  Salary ",
		Date:     time.Date(2026, 3, 31, 18, 0, 0, 0, time.FixedZone("EST", -5*3600)),
		Notes:    &notes,
	})
	require.NoError(t, err)
	assert.Equal(t, f.alice.ID, e.UserID)
	assert.Equal(t, ledger.KindIncome, e.Kind)
	assert.InDelta(t, 1234.57, e.Amount, 1e-9, "amounts round to cents")
	assert.Equal(t, "Salary", e.Category)
	assert.Equal(t, time.Date(2026, 3, 31, 23, 0, 0, 0, time.UTC), e.Date)
	assert.Equal(t, &notes, e.Notes)
	assert.Equal(t, now, e.CreatedAt)
	assert.Equal(t, now, e.UpdatedAt)
	assert.Equal(t, 1, f.entries.Len())
}

func TestCreate_Invalid(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name    string
		in      ledger.NewEntry
		code    string
		message string
	}{
		{
			name:    "negative amount",
			in:      ledger.NewEntry{Amount: -1, Category: "Food", Date: day(5, 1)},
			code:    ledger.CodeInvalidAmount,
			message: "amount must not be less than 0",
		},
		{
			name:    "not a number",
			in:      ledger.NewEntry{Amount: math.NaN(), Category: "Food", Date: day(5, 1)},
			code:    ledger.CodeInvalidAmount,
			message: "amount must be a number conforming to the specified constraints",
		},
		{
			name: "too large",
			in:   ledger.NewEntry{Amount: 1e12, Category: "Food", Date: day(5, 1)},
			code: ledger.CodeInvalidAmount,
		},
		{
			name:    "blank category",
			in:      ledger.NewEntry{Amount: 1, Category: "  ", Date: day(5, 1)},
			code:    ledger.CodeInvalidCategory,
			message: "category should not be empty",
		},
		{
			name:    "missing date",
			in:      ledger.NewEntry{Amount: 1, Category: "Food"},
			code:    ledger.CodeInvalidDate,
			message: "date must be a valid ISO 8601 date string",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), ledger.KindExpense, f.alice.ID, tt.in)
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, tt.code)
			assert.Equal(t, auth.KindBadRequest, auth.KindOf(err))
			if tt.message != "" {
				assert.Equal(t, tt.message, err.Error())
			}
		})
	}
	assert.Zero(t, f.entries.Len())
}

func TestCreate_ZeroAmountAllowed(t *testing.T) {
	f := newFixture(t)
	e := f.record(t, ledger.KindExpense, f.alice, 0, "Gift", day(5, 1))
	assert.Zero(t, e.Amount)
}

func TestCreate_UnknownKind(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), ledger.Kind("transfer"), f.alice.ID, ledger.NewEntry{
		Amount: 1, Category: "x", Date: day(5, 1),
	})
	require.Error(t, err)
	assert.Equal(t, auth.KindInternal, auth.KindOf(err))
}

func TestListMine(t *testing.T) {
	f := newFixture(t)
	older := f.record(t, ledger.KindIncome, f.alice, 10, "Salary", day(3, 1))
	newer := f.record(t, ledger.KindIncome, f.alice, 20, "Bonus", day(4, 1))
	f.record(t, ledger.KindExpense, f.alice, 5, "Food", day(4, 2))
	f.record(t, ledger.KindIncome, f.bob, 99, "Salary", day(4, 3))

	got, err := f.svc.ListMine(context.Background(), ledger.KindIncome, f.alice.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, newer.ID, got[0].ID, "newest first")
	assert.Equal(t, older.ID, got[1].ID)

	none, err := f.svc.ListMine(context.Background(), ledger.KindIncome, f.outsider.ID)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestListFamily(t *testing.T) {
	f := newFixture(t)
	a := f.record(t, ledger.KindExpense, f.alice, 10, "Food", day(3, 1))
	b := f.record(t, ledger.KindExpense, f.bob, 20, "Fuel", day(4, 1))
	f.record(t, ledger.KindExpense, f.outsider, 30, "Food", day(4, 2))

	got, err := f.svc.ListFamily(context.Background(), ledger.KindExpense, f.alice.FamilyID)
	require.NoError(t, err)
	require.Len(t, got, 2, "other families' entries are excluded")
	assert.Equal(t, b.ID, got[0].ID)
	assert.Equal(t, a.ID, got[1].ID)
	require.NotNil(t, got[0].User)
	assert.Equal(t, ledger.Owner{ID: f.bob.ID, Name: "Bob", Email: "bob@example.com"}, *got[0].User)
}

func TestGet(t *testing.T) {
	f := newFixture(t)
	e := f.record(t, ledger.KindIncome, f.alice, 10, "Salary", day(3, 1))

	got, err := f.svc.Get(context.Background(), ledger.KindIncome, e.ID, f.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, e.ID, got.ID)
	require.NotNil(t, got.User)
	assert.Equal(t, "Alice", got.User.Name)
}

func TestOwnership(t *testing.T) {
	f := newFixture(t)
	e := f.record(t, ledger.KindIncome, f.alice, 10, "Salary", day(3, 1))
	ctx := context.Background()

	_, err := f.svc.Get(ctx, ledger.KindIncome, e.ID, f.bob.ID)
	errutil.AssertErrorCode(t, err, ledger.CodeNotOwner)
	assert.Equal(t, "You can only view your own income records", err.Error())
	assert.Equal(t, auth.KindForbidden, auth.KindOf(err))

	_, err = f.svc.Update(ctx, ledger.KindIncome, e.ID, f.bob.ID, ledger.Patch{})
	errutil.AssertErrorCode(t, err, ledger.CodeNotOwner)
	assert.Equal(t, "You can only update your own income records", err.Error())

	_, err = f.svc.Delete(ctx, ledger.KindIncome, e.ID, f.bob.ID)
	errutil.AssertErrorCode(t, err, ledger.CodeNotOwner)
	assert.Equal(t, "You can only delete your own income records", err.Error())
	assert.Equal(t, 1, f.entries.Len())
}

func TestNotFound(t *testing.T) {
	f := newFixture(t)
	e := f.record(t, ledger.KindIncome, f.alice, 10, "Salary", day(3, 1))
	ctx := context.Background()

	_, err := f.svc.Get(ctx, ledger.KindIncome, ulid.Make(), f.alice.ID)
	errutil.AssertErrorCode(t, err, ledger.CodeEntryNotFound)
	assert.Equal(t, "Income record not found", err.Error())
	assert.Equal(t, auth.KindNotFound, auth.KindOf(err))

	_, err = f.svc.Get(ctx, ledger.KindExpense, e.ID, f.alice.ID)
	errutil.AssertErrorCode(t, err, ledger.CodeEntryNotFound)
	assert.Equal(t, "Expense record not found", err.Error(), "an income is not an expense")
}

func TestUpdate(t *testing.T) {
	f := newFixture(t)
	notes := "weekly shop"
	e, err := f.svc.Create(context.Background(), ledger.KindExpense, f.alice.ID, ledger.NewEntry{
		Amount: 50, Category: "Food", Date: day(3, 1), Notes: &notes,
	})
	require.NoError(t, err)

	later := now.Add(time.Hour)
	svc, err := ledger.NewService(f.entries, f.store.Users(), ledger.WithClock(func() time.Time { return later }))
	require.NoError(t, err)

	t.Run("only provided fields change", func(t *testing.T) {
		amount := 75.5
		got, err := svc.Update(context.Background(), ledger.KindExpense, e.ID, f.alice.ID, ledger.Patch{Amount: &amount})
		require.NoError(t, err)
		assert.InDelta(t, 75.5, got.Amount, 1e-9)
		assert.Equal(t, "Food", got.Category)
		assert.Equal(t, day(3, 1), got.Date)
		assert.Equal(t, &notes, got.Notes)
		assert.Equal(t, later, got.UpdatedAt)
		assert.Equal(t, now, got.CreatedAt)
		assert.Nil(t, got.User)
	})

	t.Run("blank category is ignored", func(t *testing.T) {
		blank := " "
		got, err := svc.Update(context.Background(), ledger.KindExpense, e.ID, f.alice.ID, ledger.Patch{Category: &blank})
		require.NoError(t, err)
		assert.Equal(t, "Food", got.Category)
	})

	t.Run("every field", func(t *testing.T) {
		amount, category, date, cleared := 12.0, "Fuel", day(4, 9), ""
		_, err := svc.Update(context.Background(), ledger.KindExpense, e.ID, f.alice.ID, ledger.Patch{
			Amount: &amount, Category: &category, Date: &date, Notes: &cleared,
		})
		require.NoError(t, err)

		got, err := svc.Get(context.Background(), ledger.KindExpense, e.ID, f.alice.ID)
		require.NoError(t, err)
		assert.InDelta(t, 12.0, got.Amount, 1e-9)
		assert.Equal(t, "Fuel", got.Category)
		assert.Equal(t, day(4, 9), got.Date)
		require.NotNil(t, got.Notes)
		assert.Empty(t, *got.Notes)
	})

	t.Run("negative amount rejected", func(t *testing.T) {
		amount := -3.0
		_, err := svc.Update(context.Background(), ledger.KindExpense, e.ID, f.alice.ID, ledger.Patch{Amount: &amount})
		errutil.AssertErrorCode(t, err, ledger.CodeInvalidAmount)
	})
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	e := f.record(t, ledger.KindExpense, f.alice, 10, "Food", day(3, 1))

	msg, err := f.svc.Delete(context.Background(), ledger.KindExpense, e.ID, f.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "Expense record deleted successfully", msg)
	assert.Zero(t, f.entries.Len())

	_, err = f.svc.Delete(context.Background(), ledger.KindExpense, e.ID, f.alice.ID)
	errutil.AssertErrorCode(t, err, ledger.CodeEntryNotFound)
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	f.record(t, ledger.KindIncome, f.alice, 0.1, "Interest", day(3, 1))
	f.record(t, ledger.KindIncome, f.alice, 0.2, "Interest", day(3, 2))
	f.record(t, ledger.KindIncome, f.alice, 1000, "Salary", day(3, 3))
	f.record(t, ledger.KindIncome, f.bob, 500, "Salary", day(3, 3))

	stats, err := f.svc.Stats(context.Background(), ledger.KindIncome, f.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Count)
	assert.Equal(t, 1000.3, stats.Total, "sums carry no float drift")
	assert.Equal(t, map[string]float64{"Interest": 0.3, "Salary": 1000}, stats.ByCategory)

	empty, err := f.svc.Stats(context.Background(), ledger.KindExpense, f.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, &ledger.Stats{ByCategory: map[string]float64{}}, empty)
}

func TestRepositoryFailuresAreInternal(t *testing.T) {
	f := newFixture(t)
	e := f.record(t, ledger.KindIncome, f.alice, 10, "Salary", day(3, 1))
	f.entries.FailWith(errors.New("connection reset"))
	ctx := context.Background()

	_, err := f.svc.ListMine(ctx, ledger.KindIncome, f.alice.ID)
	errutil.AssertErrorContext(t, err, "operation", "list user income")
	assert.Equal(t, auth.KindInternal, auth.KindOf(err))

	_, err = f.svc.Get(ctx, ledger.KindIncome, e.ID, f.alice.ID)
	errutil.AssertErrorContext(t, err, "operation", "get income")

	_, err = f.svc.FamilyDashboard(ctx, f.alice.FamilyID)
	errutil.AssertErrorContext(t, err, "operation", "load family ledger")
}
