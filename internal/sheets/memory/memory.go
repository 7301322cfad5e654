// Package memory keeps audit rows in process. It stands in for the Google
// mirror in development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"fintrack/internal/sheets"
)

type Store struct {
	mu   sync.Mutex
	rows []sheets.AuditRow
}

var _ sheets.AuditWriter = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// AppendAudit stores the row and returns a synthetic row reference.
func (s *Store) AppendAudit(_ context.Context, row sheets.AuditRow) (string, error) {
	if row.UserID == "" || row.Event == "" {
		return "", fmt.Errorf("audit row needs user and event")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, row)
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// Rows returns a copy of everything appended so far.
func (s *Store) Rows() []sheets.AuditRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sheets.AuditRow(nil), s.rows...)
}
