package sheets

import (
	"testing"
	"time"

	"fintrack/internal/core"
)

func TestAuditRowValues(t *testing.T) {
	row := AuditRow{
		Timestamp:    time.Date(2024, 3, 5, 10, 30, 0, 0, time.FixedZone("IST", 19800)),
		UserID:       "u1",
		Event:        "expense.deleted",
		Version:      4,
		ExpenseID:    "e1",
		Date:         core.NewDate(2024, 3, 4),
		Category:     "food",
		Description:  "lunch",
		Amount:       core.Money{Cents: 12345},
		TotalBalance: core.Money{Cents: -50},
	}
	got := row.Values()
	if len(got) != len(Header) {
		t.Fatalf("values has %d cells, header %d", len(got), len(Header))
	}
	if got[0] != "2024-03-05T05:00:00Z" || got[5] != "2024-03-04" || got[8] != 123.45 || got[9] != -0.5 {
		t.Fatalf("values = %v", got)
	}

	if empty := (AuditRow{}).Values(); empty[5] != "" {
		t.Fatalf("missing date rendered as %v", empty[5])
	}
}
