// Package viewmodel merges stored expenses and account-derived income into
// the single list shown by the transaction table.
package viewmodel

import (
	"sort"
	"time"

	"fintrack/internal/core"
)

const IncomeCategory = "Income"

// Row is one line of the unified transaction list.
type Row struct {
	ID            string           `json:"id"`
	Amount        core.Money       `json:"amount"`
	Date          core.Date        `json:"date"`
	Category      string           `json:"category"`
	BaseCategory  string           `json:"baseCategory"`
	Description   string           `json:"description"`
	PaymentMethod string           `json:"paymentMethod,omitempty"`
	PaymentType   core.PaymentType `json:"paymentType,omitempty"`
	AccountType   core.AccountType `json:"accountType,omitempty"`
	IsIncome      bool             `json:"isIncome"`
	DisplayAmount string           `json:"displayAmount"`
	// Expense is the stored record behind an expense row; nil for derived income.
	Expense *core.Expense `json:"-"`
}

// CurrencyFunc renders an amount, see format.Formatter.Currency.
type CurrencyFunc func(core.Money) string

// DerivedIncome synthesizes the income entries implied by account balances:
// one for a positive balance and one for a positive recurring amount.
func DerivedIncome(accounts []core.Account, now time.Time) []Row {
	var rows []Row
	for _, a := range accounts {
		if a.Balance.IsPositive() {
			rows = append(rows, Row{
				ID:           "balance:" + a.Name,
				Amount:       a.Balance,
				Date:         core.Date{Time: now},
				BaseCategory: IncomeCategory,
				Description:  "Balance from " + a.Name,
				AccountType:  a.Type,
				IsIncome:     true,
			})
		}
		if a.IsRecurringIncome && a.RecurringAmount.IsPositive() {
			rows = append(rows, Row{
				ID:           "recurring:" + a.Name,
				Amount:       a.RecurringAmount,
				Date:         core.Date{Time: now},
				BaseCategory: IncomeCategory,
				Description:  "Recurring Income from " + a.Name,
				AccountType:  a.Type,
				IsIncome:     true,
			})
		}
	}
	return rows
}

// BuildUnifiedList returns every row sorted newest first. Rows with a missing
// date sort last. Equal dates put income before expenses, then order by id,
// so the same snapshot always yields the same list.
func BuildUnifiedList(expenses []core.Expense, accounts []core.Account, currency CurrencyFunc, now time.Time) []Row {
	rows := DerivedIncome(accounts, now)
	for i := range expenses {
		e := expenses[i]
		rows = append(rows, Row{
			ID:            e.ID,
			Amount:        e.Amount,
			Date:          e.Date,
			BaseCategory:  e.Category,
			Description:   e.Description,
			PaymentMethod: e.PaymentMethod,
			PaymentType:   e.PaymentType,
			AccountType:   e.AccountType,
			Expense:       &e,
		})
	}

	sort.SliceStable(rows, func(i, j int) bool { return less(rows[i], rows[j]) })

	for i := range rows {
		r := &rows[i]
		if r.IsIncome {
			r.DisplayAmount = "+" + currency(r.Amount)
			r.Category = r.BaseCategory
			if r.AccountType != "" {
				r.Category = r.BaseCategory + " (" + string(r.AccountType) + ")"
			}
		} else {
			r.DisplayAmount = "-" + currency(r.Amount)
			r.Category = r.BaseCategory
		}
	}
	return rows
}

func less(a, b Row) bool {
	az, bz := a.Date.IsZero(), b.Date.IsZero()
	switch {
	case az != bz:
		return bz
	case !az && !a.Date.Equal(b.Date.Time):
		return a.Date.After(b.Date.Time)
	case a.IsIncome != b.IsIncome:
		return a.IsIncome
	}
	return a.ID < b.ID
}
