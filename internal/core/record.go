package core

import "time"

// UserRecord is the per-user document held by the store.
type UserRecord struct {
	Accounts     []Account `json:"accounts"`
	Expenses     []Expense `json:"expenses"`
	TotalBalance Money     `json:"totalBalance"`
	SavingsGoal  Money     `json:"savingsGoal"`
	PhoneNumber  string    `json:"phoneNumber,omitempty"`
	// Version increases by one on every write; readers use it to drop stale snapshots.
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UserRecordPatch carries a partial write. Nil fields are left untouched when merging.
type UserRecordPatch struct {
	Accounts     *[]Account
	Expenses     *[]Expense
	TotalBalance *Money
	SavingsGoal  *Money
	PhoneNumber  *string
}

// Apply merges the patch into r. With merge=false every field is replaced,
// nil patch fields resetting to their zero value.
func (p UserRecordPatch) Apply(r UserRecord, merge bool) UserRecord {
	if !merge {
		r = UserRecord{Version: r.Version, UpdatedAt: r.UpdatedAt}
	}
	if p.Accounts != nil {
		r.Accounts = append([]Account(nil), (*p.Accounts)...)
	}
	if p.Expenses != nil {
		r.Expenses = append([]Expense(nil), (*p.Expenses)...)
	}
	if p.TotalBalance != nil {
		r.TotalBalance = *p.TotalBalance
	}
	if p.SavingsGoal != nil {
		r.SavingsGoal = *p.SavingsGoal
	}
	if p.PhoneNumber != nil {
		r.PhoneNumber = *p.PhoneNumber
	}
	return r
}

// Clone returns a deep copy safe to hand to another goroutine.
func (r UserRecord) Clone() UserRecord {
	out := r
	out.Accounts = append([]Account(nil), r.Accounts...)
	out.Expenses = append([]Expense(nil), r.Expenses...)
	return out
}
