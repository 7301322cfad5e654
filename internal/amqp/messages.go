package amqp

import (
	"encoding/json"
	"time"

	"fintrack/internal/core"
)

// EventType names what happened to a user's data.
type EventType string

const (
	EventExpenseCreated  EventType = "expense.created"
	EventExpenseUpdated  EventType = "expense.updated"
	EventExpenseDeleted  EventType = "expense.deleted"
	EventExpenseRestored EventType = "expense.restored"
	EventAccountsChanged EventType = "accounts.changed"
	EventIncomeAccrued   EventType = "income.accrued"
)

// TransactionEvent is published after a user record write succeeds. It
// carries the affected expense so consumers need no store access for
// deletions.
type TransactionEvent struct {
	Type      EventType     `json:"type"`
	UserID    string        `json:"userId"`
	Version   int64         `json:"version"`
	Expense   *core.Expense `json:"expense,omitempty"`
	Balance   core.Money    `json:"totalBalance"`
	Timestamp time.Time     `json:"timestamp"`
}

// NewTransactionEvent stamps an event with the current time.
func NewTransactionEvent(t EventType, userID string, version int64) *TransactionEvent {
	return &TransactionEvent{
		Type:      t,
		UserID:    userID,
		Version:   version,
		Timestamp: time.Now(),
	}
}

// WithExpense attaches a copy of e.
func (m *TransactionEvent) WithExpense(e core.Expense) *TransactionEvent {
	m.Expense = &e
	return m
}

func (m *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var msg TransactionEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
