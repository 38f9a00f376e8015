// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FamTrack Contributors

package ledger

import (
	"context"
	"math"
	"slices"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"golang.org/x/sync/errgroup"
)

// DefaultTrendMonths is the trend window when none is given.
const DefaultTrendMonths = 6

// MaxTrendMonths bounds the trend window.
const MaxTrendMonths = 120

// recentLimit is how many entries of each kind the member dashboard shows.
const recentLimit = 5

// MemberStats is one member's totals on the family dashboard.
type MemberStats struct {
	UserID   ulid.ULID `json:"userId"`
	UserName string    `json:"userName"`
	Income   float64   `json:"income"`
	Expense  float64   `json:"expense"`
	Balance  float64   `json:"balance"`
}

// Totals are the sums shared by both dashboards.
type Totals struct {
	TotalIncome       float64            `json:"totalIncome"`
	TotalExpense      float64            `json:"totalExpense"`
	Balance           float64            `json:"balance"`
	IncomeByCategory  map[string]float64 `json:"incomeByCategory"`
	ExpenseByCategory map[string]float64 `json:"expenseByCategory"`
}

// FamilyDashboard summarizes a whole family.
type FamilyDashboard struct {
	Totals
	MemberStats []MemberStats `json:"memberStats"`
}

// UserDashboard summarizes one member with their latest entries.
type UserDashboard struct {
	Totals
	RecentIncomes  []*Entry `json:"recentIncomes"`
	RecentExpenses []*Entry `json:"recentExpenses"`
}

// MonthTrend is one calendar month (UTC) of a trend.
type MonthTrend struct {
	Month   string  `json:"month"`
	Income  float64 `json:"income"`
	Expense float64 `json:"expense"`
	Balance float64 `json:"balance"`
}

// scope loads one kind of entry dated at or after since.
type scope func(ctx context.Context, kind Kind, since time.Time) ([]*Entry, error)

func (s *Service) familyScope(familyID ulid.ULID) scope {
	return func(ctx context.Context, kind Kind, since time.Time) ([]*Entry, error) {
		return s.entries.ListByFamily(ctx, kind, familyID, since)
	}
}

func (s *Service) userScope(userID ulid.ULID) scope {
	return func(ctx context.Context, kind Kind, since time.Time) ([]*Entry, error) {
		return s.entries.ListByUser(ctx, kind, userID, since)
	}
}

// load fetches incomes and expenses concurrently.
func load(ctx context.Context, fetch scope, since time.Time) (incomes, expenses []*Entry, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		incomes, err = fetch(gctx, KindIncome, since)
		return err
	})
	g.Go(func() error {
		var err error
		expenses, err = fetch(gctx, KindExpense, since)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return nonNil(incomes), nonNil(expenses), nil
}

// FamilyDashboard totals a family's ledger overall, per category and per
// member. Every member appears, including those with no entries.
func (s *Service) FamilyDashboard(ctx context.Context, familyID ulid.ULID) (*FamilyDashboard, error) {
	members, err := s.users.ListByFamily(ctx, familyID)
	if err != nil {
		return nil, oops.With("operation", "list family members").Wrap(err)
	}
	incomes, expenses, err := load(ctx, s.familyScope(familyID), time.Time{})
	if err != nil {
		return nil, oops.With("operation", "load family ledger").Wrap(err)
	}

	incomeBy, expenseBy := centsByUser(incomes), centsByUser(expenses)
	stats := make([]MemberStats, 0, len(members))
	for _, m := range members {
		in, out := incomeBy[m.ID], expenseBy[m.ID]
		stats = append(stats, MemberStats{
			UserID:   m.ID,
			UserName: m.Name,
			Income:   fromCents(in),
			Expense:  fromCents(out),
			Balance:  fromCents(in - out),
		})
	}
	return &FamilyDashboard{
		Totals:      totals(incomes, expenses),
		MemberStats: stats,
	}, nil
}

// UserDashboard totals a member's ledger and lists their five most recent
// entries of each kind.
func (s *Service) UserDashboard(ctx context.Context, userID ulid.ULID) (*UserDashboard, error) {
	incomes, expenses, err := load(ctx, s.userScope(userID), time.Time{})
	if err != nil {
		return nil, oops.With("operation", "load user ledger").Wrap(err)
	}
	return &UserDashboard{
		Totals:         totals(incomes, expenses),
		RecentIncomes:  incomes[:min(recentLimit, len(incomes))],
		RecentExpenses: expenses[:min(recentLimit, len(expenses))],
	}, nil
}

// FamilyTrends returns a family's monthly totals over the last months
// months, oldest month first. Months without entries are omitted.
func (s *Service) FamilyTrends(ctx context.Context, familyID ulid.ULID, months int) ([]MonthTrend, error) {
	return s.trends(ctx, s.familyScope(familyID), months)
}

// UserTrends returns a member's monthly totals over the last months months,
// oldest month first. Months without entries are omitted.
func (s *Service) UserTrends(ctx context.Context, userID ulid.ULID, months int) ([]MonthTrend, error) {
	return s.trends(ctx, s.userScope(userID), months)
}

func (s *Service) trends(ctx context.Context, fetch scope, months int) ([]MonthTrend, error) {
	if months < 1 || months > MaxTrendMonths {
		return nil, oops.Code(CodeInvalidMonths).
			With("months", months).
			Errorf("months must be between 1 and %d", MaxTrendMonths)
	}
	since := s.now().UTC().AddDate(0, -months, 0)
	incomes, expenses, err := load(ctx, fetch, since)
	if err != nil {
		return nil, oops.With("operation", "load trend ledger").Wrap(err)
	}

	type bucket struct{ income, expense int64 }
	buckets := make(map[string]*bucket)
	add := func(entries []*Entry, income bool) {
		for _, e := range entries {
			key := e.Date.UTC().Format("2006-01")
			b, ok := buckets[key]
			if !ok {
				b = &bucket{}
				buckets[key] = b
			}
			if income {
				b.income += toCents(e.Amount)
			} else {
				b.expense += toCents(e.Amount)
			}
		}
	}
	add(incomes, true)
	add(expenses, false)

	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	out := make([]MonthTrend, 0, len(keys))
	for _, k := range keys {
		b := buckets[k]
		out = append(out, MonthTrend{
			Month:   k,
			Income:  fromCents(b.income),
			Expense: fromCents(b.expense),
			Balance: fromCents(b.income - b.expense),
		})
	}
	return out, nil
}

func totals(incomes, expenses []*Entry) Totals {
	in, out := sumCents(incomes), sumCents(expenses)
	return Totals{
		TotalIncome:       fromCents(in),
		TotalExpense:      fromCents(out),
		Balance:           fromCents(in - out),
		IncomeByCategory:  byCategory(incomes),
		ExpenseByCategory: byCategory(expenses),
	}
}

// Sums run in integer cents so totals carry no float drift.

func toCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func fromCents(c int64) float64 {
	return float64(c) / 100
}

func sumCents(entries []*Entry) int64 {
	var c int64
	for _, e := range entries {
		c += toCents(e.Amount)
	}
	return c
}

func sum(entries []*Entry) float64 {
	return fromCents(sumCents(entries))
}

func byCategory(entries []*Entry) map[string]float64 {
	cents := make(map[string]int64)
	for _, e := range entries {
		cents[e.Category] += toCents(e.Amount)
	}
	out := make(map[string]float64, len(cents))
	for k, c := range cents {
		out[k] = fromCents(c)
	}
	return out
}

func centsByUser(entries []*Entry) map[ulid.ULID]int64 {
	out := make(map[ulid.ULID]int64)
	for _, e := range entries {
		out[e.UserID] += toCents(e.Amount)
	}
	return out
}
