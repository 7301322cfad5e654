// Package aggregate derives dashboard figures from a snapshot of a user's
// expenses and accounts. Everything here is pure; "now" is injected.
package aggregate

import (
	"math"
	"sort"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/format"
	"fintrack/internal/ledger"
)

// SeriesMonths is the length of the income-vs-expense chart window.
const SeriesMonths = 6

type MonthlyFinances struct {
	Income          core.Money `json:"income"`
	Expenses        core.Money `json:"expenses"`
	RecurringIncome core.Money `json:"recurringIncome"`
}

type CategoryShare struct {
	Category string     `json:"category"`
	Amount   core.Money `json:"amount"`
	// Percent of the grand total, rounded to one decimal independently per
	// category, so the column does not always add up to exactly 100.
	Percent float64 `json:"percent"`
}

type Series struct {
	Labels   []string     `json:"labels"`
	Income   []core.Money `json:"income"`
	Expenses []core.Money `json:"expenses"`
}

// Dashboard bundles every aggregate for one snapshot.
type Dashboard struct {
	Monthly      MonthlyFinances `json:"monthly"`
	Categories   []CategoryShare `json:"categories"`
	Series       *Series         `json:"series"`
	TotalBalance core.Money      `json:"totalBalance"`
	SavingsGoal  core.Money      `json:"savingsGoal"`
}

type Aggregator struct {
	expenses []core.Expense
	accounts []core.Account
	now      func() time.Time
}

// New wraps a snapshot. A nil slice means the collection was absent from the
// store, which differs from an empty one for MonthlyFinances.
func New(expenses []core.Expense, accounts []core.Account, now func() time.Time) *Aggregator {
	if now == nil {
		now = time.Now
	}
	return &Aggregator{expenses: expenses, accounts: accounts, now: now}
}

// MonthlyFinances totals the current calendar month. Records paid by credit or
// marked income count as income; recurring income is added on top.
func (a *Aggregator) MonthlyFinances() MonthlyFinances {
	if a.expenses == nil || a.accounts == nil {
		return MonthlyFinances{}
	}
	recurring := ledger.RecurringTotal(a.accounts)
	now := a.now()

	var income, spent core.Money
	for _, e := range a.expenses {
		if !sameMonth(e.Date, now.Year(), now.Month()) {
			continue
		}
		if e.PaymentType.IsIncome() {
			income = income.Add(e.Amount)
		} else {
			spent = spent.Add(e.Amount)
		}
	}
	return MonthlyFinances{
		Income:          income.Add(recurring),
		Expenses:        spent,
		RecurringIncome: recurring,
	}
}

// CategoryBreakdown groups every expense by category. It returns nil when
// there is nothing to group.
func (a *Aggregator) CategoryBreakdown() []CategoryShare {
	if len(a.expenses) == 0 {
		return nil
	}
	sums := map[string]int64{}
	var total int64
	for _, e := range a.expenses {
		sums[e.Category] += e.Amount.Cents
		total += e.Amount.Cents
	}

	out := make([]CategoryShare, 0, len(sums))
	for cat, cents := range sums {
		pct := 0.0
		if total > 0 {
			pct = math.Round(float64(cents)/float64(total)*1000) / 10
		}
		out = append(out, CategoryShare{Category: cat, Amount: core.Money{Cents: cents}, Percent: pct})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount.Cents != out[j].Amount.Cents {
			return out[i].Amount.Cents > out[j].Amount.Cents
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// SixMonthSeries returns the six months ending with the current one, oldest
// first. Expenses are the total of all records dated in each month; income is
// the flat recurring total repeated for every month.
func (a *Aggregator) SixMonthSeries() *Series {
	if len(a.expenses) == 0 {
		return nil
	}
	recurring := ledger.RecurringTotal(a.accounts)
	now := a.now()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	s := &Series{
		Labels:   make([]string, 0, SeriesMonths),
		Income:   make([]core.Money, 0, SeriesMonths),
		Expenses: make([]core.Money, 0, SeriesMonths),
	}
	for i := SeriesMonths - 1; i >= 0; i-- {
		m := first.AddDate(0, -i, 0)
		var total core.Money
		for _, e := range a.expenses {
			if sameMonth(e.Date, m.Year(), m.Month()) {
				total = total.Add(e.Amount)
			}
		}
		s.Labels = append(s.Labels, format.MonthLabel(m))
		s.Income = append(s.Income, recurring)
		s.Expenses = append(s.Expenses, total)
	}
	return s
}

// Build computes the full dashboard for a stored record.
func Build(r core.UserRecord, now func() time.Time) Dashboard {
	agg := New(r.Expenses, r.Accounts, now)
	if r.Expenses == nil {
		// An untouched user still sees recurring income on the dashboard.
		agg.expenses = []core.Expense{}
	}
	if r.Accounts == nil {
		agg.accounts = []core.Account{}
	}
	return Dashboard{
		Monthly:      agg.MonthlyFinances(),
		Categories:   agg.CategoryBreakdown(),
		Series:       agg.SixMonthSeries(),
		TotalBalance: ledger.TotalBalance(r.Accounts),
		SavingsGoal:  r.SavingsGoal,
	}
}

func sameMonth(d core.Date, year int, month time.Month) bool {
	if d.IsZero() {
		return false
	}
	return d.Year() == year && d.Month() == month
}
