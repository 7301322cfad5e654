package memory

import (
	"context"
	"testing"

	"fintrack/internal/sheets"
)

func TestAppendAudit(t *testing.T) {
	s := New()
	ref, err := s.AppendAudit(context.Background(), sheets.AuditRow{UserID: "u1", Event: "expense.created"})
	if err != nil {
		t.Fatal(err)
	}
	if ref != "mem:1" {
		t.Errorf("ref = %q", ref)
	}
	if _, err := s.AppendAudit(context.Background(), sheets.AuditRow{UserID: "u1"}); err == nil {
		t.Error("expected error for row without event")
	}
	rows := s.Rows()
	if len(rows) != 1 || rows[0].UserID != "u1" {
		t.Fatalf("rows = %+v", rows)
	}
}
