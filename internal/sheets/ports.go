// Package sheets defines the audit mirror port and its row format.
package sheets

import (
	"context"
	"time"

	"fintrack/internal/core"
)

// AuditRow is one line of the change log mirrored to a spreadsheet.
type AuditRow struct {
	Timestamp    time.Time
	UserID       string
	Event        string
	Version      int64
	ExpenseID    string
	Date         core.Date
	Category     string
	Description  string
	Amount       core.Money
	TotalBalance core.Money
}

// Header lists the column titles matching Values.
var Header = []string{"Timestamp", "User", "Event", "Version", "Expense ID", "Date", "Category", "Description", "Amount", "Total Balance"}

// Values renders the row as spreadsheet cells.
func (r AuditRow) Values() []interface{} {
	date := ""
	if !r.Date.IsZero() {
		date = r.Date.Format("2006-01-02")
	}
	return []interface{}{
		r.Timestamp.UTC().Format(time.RFC3339),
		r.UserID,
		r.Event,
		r.Version,
		r.ExpenseID,
		date,
		r.Category,
		r.Description,
		r.Amount.Float(),
		r.TotalBalance.Float(),
	}
}

// AuditWriter appends rows to the mirror.
type AuditWriter interface {
	AppendAudit(ctx context.Context, row AuditRow) (rowRef string, err error)
}
