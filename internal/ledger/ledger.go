// Package ledger holds the mutation rules for a user's named accounts.
//
// Functions take and return account slices and never modify their input;
// persisting the result and recomputing derived totals is the caller's job.
package ledger

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"fintrack/internal/core"
)

var (
	ErrAccountIndex     = errors.New("account index out of range")
	ErrDuplicateAccount = errors.New("account name already exists")
)

const monthLayout = "2006-01"

// Coalesce merges every account that resolves to Cash into the first one,
// summing balances and recurring amounts and OR-ing the recurring flag.
// Running it on its own output is a no-op.
func Coalesce(accounts []core.Account) []core.Account {
	out := make([]core.Account, 0, len(accounts))
	cashIdx := -1
	for _, a := range accounts {
		if !a.IsCash() {
			out = append(out, a)
			continue
		}
		if cashIdx < 0 {
			out = append(out, a)
			cashIdx = len(out) - 1
			continue
		}
		c := &out[cashIdx]
		c.Balance = c.Balance.Add(a.Balance)
		c.RecurringAmount = c.RecurringAmount.Add(a.RecurringAmount)
		c.IsRecurringIncome = c.IsRecurringIncome || a.IsRecurringIncome
		if a.LastAccruedMonth > c.LastAccruedMonth {
			c.LastAccruedMonth = a.LastAccruedMonth
		}
	}
	return out
}

// Add appends a new account. The salary account is always recurring income
// with the opening balance as its monthly amount.
func Add(accounts []core.Account, a core.Account) ([]core.Account, error) {
	a.Name = strings.TrimSpace(a.Name)
	if err := a.Validate(); err != nil {
		return nil, err
	}
	for _, existing := range accounts {
		if strings.EqualFold(existing.Name, a.Name) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateAccount, a.Name)
		}
	}
	if a.Name == core.SalaryAccountName {
		a.IsRecurringIncome = true
		a.RecurringAmount = a.Balance
	}
	out := append(clone(accounts), a)
	return Coalesce(out), nil
}

// UpdateBalance replaces the balance of the account at index.
func UpdateBalance(accounts []core.Account, index int, balance core.Money) ([]core.Account, error) {
	if index < 0 || index >= len(accounts) {
		return nil, ErrAccountIndex
	}
	out := clone(accounts)
	out[index].Balance = balance
	return out, nil
}

// Delete removes the account at index.
func Delete(accounts []core.Account, index int) ([]core.Account, error) {
	if index < 0 || index >= len(accounts) {
		return nil, ErrAccountIndex
	}
	out := make([]core.Account, 0, len(accounts)-1)
	out = append(out, accounts[:index]...)
	return append(out, accounts[index+1:]...), nil
}

// TotalBalance sums every account balance.
func TotalBalance(accounts []core.Account) core.Money {
	var total core.Money
	for _, a := range accounts {
		total = total.Add(a.Balance)
	}
	return total
}

// RecurringTotal sums the monthly amount of every recurring-income account.
func RecurringTotal(accounts []core.Account) core.Money {
	var total core.Money
	for _, a := range accounts {
		if a.IsRecurringIncome {
			total = total.Add(a.RecurringAmount)
		}
	}
	return total
}

// AccrueRecurringIncome credits recurringAmount to every recurring account not
// yet accrued in the month of now and stamps its LastAccruedMonth. The second
// call within the same month changes nothing. The returned count is the number
// of accounts credited.
func AccrueRecurringIncome(accounts []core.Account, now time.Time) ([]core.Account, int) {
	month := now.Format(monthLayout)
	out := clone(accounts)
	credited := 0
	for i := range out {
		a := &out[i]
		if !a.IsRecurringIncome || !a.RecurringAmount.IsPositive() {
			continue
		}
		if a.LastAccruedMonth >= month {
			continue
		}
		a.Balance = a.Balance.Add(a.RecurringAmount)
		a.LastAccruedMonth = month
		credited++
	}
	return out, credited
}

func clone(accounts []core.Account) []core.Account {
	return append([]core.Account(nil), accounts...)
}
