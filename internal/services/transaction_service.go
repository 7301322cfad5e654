// Package services orchestrates user record writes across the document store
// and the event bus.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/aggregate"
	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/storage"
)

// EventPublisher is satisfied by *amqp.Client.
type EventPublisher interface {
	PublishTransactionEvent(ctx context.Context, ev *amqp.TransactionEvent) error
}

// errNoChange aborts an Update without writing.
var errNoChange = errors.New("no change")

// TransactionService saves to the store first and then publishes a change
// event. A publish failure is logged and never fails the request.
type TransactionService struct {
	store     storage.Store
	publisher EventPublisher
	now       func() time.Time
	newID     func() (string, error)
}

// NewTransactionService wires the service. publisher may be nil when no
// broker is configured.
func NewTransactionService(store storage.Store, publisher EventPublisher) *TransactionService {
	return &TransactionService{
		store:     store,
		publisher: publisher,
		now:       time.Now,
		newID:     newExpenseID,
	}
}

// newExpenseID returns a UUIDv7, which sorts by creation time.
func newExpenseID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	return id.String(), nil
}

// Record loads the user's document with Cash accounts coalesced. A user
// without a document gets the zero record.
func (s *TransactionService) Record(ctx context.Context, userID string) (core.UserRecord, error) {
	rec, err := s.store.GetUserRecord(ctx, userID)
	if err != nil {
		return core.UserRecord{}, fmt.Errorf("load user record: %w", err)
	}
	if rec == nil {
		return core.UserRecord{}, nil
	}
	out := rec.Clone()
	if out.Accounts != nil {
		out.Accounts = ledger.Coalesce(out.Accounts)
	}
	return out, nil
}

// Dashboard computes the aggregate figures for the user's current snapshot.
func (s *TransactionService) Dashboard(ctx context.Context, userID string) (aggregate.Dashboard, error) {
	rec, err := s.Record(ctx, userID)
	if err != nil {
		return aggregate.Dashboard{}, err
	}
	return aggregate.Build(rec, s.now), nil
}

// AddExpense validates the form, assigns an id and appends the record.
func (s *TransactionService) AddExpense(ctx context.Context, userID string, form core.ExpenseForm) (core.Expense, error) {
	e, err := form.Expense()
	if err != nil {
		return core.Expense{}, err
	}
	id, err := s.newID()
	if err != nil {
		return core.Expense{}, err
	}
	e.ID = id

	rec, err := s.store.Update(ctx, userID, func(r *core.UserRecord) error {
		r.Expenses = append(r.Expenses, e)
		return nil
	})
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved",
		"user_id", userID,
		"id", e.ID,
		"amount_cents", e.Amount.Cents,
		"category", e.Category)

	s.publish(ctx, amqp.NewTransactionEvent(amqp.EventExpenseCreated, userID, rec.Version).WithExpense(e), rec)
	return e, nil
}

// UpdateExpense replaces the stored record with the same id.
func (s *TransactionService) UpdateExpense(ctx context.Context, userID string, e core.Expense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	rec, err := s.store.Update(ctx, userID, func(r *core.UserRecord) error {
		i := indexOf(r.Expenses, e.ID)
		if i < 0 {
			return fmt.Errorf("expense %s: %w", e.ID, core.ErrNotFound)
		}
		r.Expenses[i] = e
		return nil
	})
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	s.publish(ctx, amqp.NewTransactionEvent(amqp.EventExpenseUpdated, userID, rec.Version).WithExpense(e), rec)
	return nil
}

// DeleteExpense removes a record and returns it as it was stored.
func (s *TransactionService) DeleteExpense(ctx context.Context, userID, id string) (core.Expense, error) {
	var removed core.Expense
	rec, err := s.store.Update(ctx, userID, func(r *core.UserRecord) error {
		i := indexOf(r.Expenses, id)
		if i < 0 {
			return fmt.Errorf("expense %s: %w", id, core.ErrNotFound)
		}
		removed = r.Expenses[i]
		r.Expenses = append(r.Expenses[:i], r.Expenses[i+1:]...)
		return nil
	})
	if err != nil {
		return core.Expense{}, fmt.Errorf("delete expense: %w", err)
	}
	s.publish(ctx, amqp.NewTransactionEvent(amqp.EventExpenseDeleted, userID, rec.Version).WithExpense(removed), rec)
	return removed, nil
}

// RestoreExpense re-creates a deleted record verbatim. Restoring a record
// that is already present is a no-op.
func (s *TransactionService) RestoreExpense(ctx context.Context, userID string, e core.Expense) error {
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("restore expense: %w", core.ErrNotFound)
	}
	rec, err := s.store.Update(ctx, userID, func(r *core.UserRecord) error {
		if indexOf(r.Expenses, e.ID) >= 0 {
			return errNoChange
		}
		r.Expenses = append(r.Expenses, e)
		return nil
	})
	if errors.Is(err, errNoChange) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("restore expense: %w", err)
	}
	s.publish(ctx, amqp.NewTransactionEvent(amqp.EventExpenseRestored, userID, rec.Version).WithExpense(e), rec)
	return nil
}

// AddAccount appends an account and persists the recomputed total balance.
func (s *TransactionService) AddAccount(ctx context.Context, userID string, a core.Account) ([]core.Account, error) {
	return s.mutateAccounts(ctx, userID, func(accounts []core.Account) ([]core.Account, error) {
		return ledger.Add(accounts, a)
	})
}

func (s *TransactionService) UpdateAccountBalance(ctx context.Context, userID string, index int, balance core.Money) ([]core.Account, error) {
	return s.mutateAccounts(ctx, userID, func(accounts []core.Account) ([]core.Account, error) {
		return ledger.UpdateBalance(accounts, index, balance)
	})
}

func (s *TransactionService) DeleteAccount(ctx context.Context, userID string, index int) ([]core.Account, error) {
	return s.mutateAccounts(ctx, userID, func(accounts []core.Account) ([]core.Account, error) {
		return ledger.Delete(accounts, index)
	})
}

func (s *TransactionService) mutateAccounts(ctx context.Context, userID string, fn func([]core.Account) ([]core.Account, error)) ([]core.Account, error) {
	rec, err := s.store.Update(ctx, userID, func(r *core.UserRecord) error {
		next, err := fn(ledger.Coalesce(r.Accounts))
		if err != nil {
			return err
		}
		r.Accounts = next
		r.TotalBalance = ledger.TotalBalance(next)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("save accounts: %w", err)
	}
	s.publish(ctx, amqp.NewTransactionEvent(amqp.EventAccountsChanged, userID, rec.Version), rec)
	return rec.Accounts, nil
}

// UpdateProfile merges the savings goal and phone number; nil leaves a field as is.
func (s *TransactionService) UpdateProfile(ctx context.Context, userID string, savingsGoal *core.Money, phone *string) (core.UserRecord, error) {
	if phone != nil {
		p := strings.TrimSpace(*phone)
		phone = &p
	}
	rec, err := s.store.SetUserRecord(ctx, userID, core.UserRecordPatch{SavingsGoal: savingsGoal, PhoneNumber: phone}, true)
	if err != nil {
		return core.UserRecord{}, fmt.Errorf("save profile: %w", err)
	}
	return rec, nil
}

// AccrueIncome credits recurring income for the month of now. Accounts
// already credited this month are skipped, so repeated calls are safe.
func (s *TransactionService) AccrueIncome(ctx context.Context, userID string, now time.Time) (int, error) {
	credited := 0
	rec, err := s.store.Update(ctx, userID, func(r *core.UserRecord) error {
		next, n := ledger.AccrueRecurringIncome(ledger.Coalesce(r.Accounts), now)
		if n == 0 {
			return errNoChange
		}
		credited = n
		r.Accounts = next
		r.TotalBalance = ledger.TotalBalance(next)
		return nil
	})
	if errors.Is(err, errNoChange) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("accrue income: %w", err)
	}
	s.publish(ctx, amqp.NewTransactionEvent(amqp.EventIncomeAccrued, userID, rec.Version), rec)
	return credited, nil
}

func (s *TransactionService) publish(ctx context.Context, ev *amqp.TransactionEvent, rec core.UserRecord) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP publisher not configured, skipping event", "type", ev.Type)
		return
	}
	ev.Balance = rec.TotalBalance
	if err := s.publisher.PublishTransactionEvent(ctx, ev); err != nil {
		slog.ErrorContext(ctx, "Failed to publish transaction event",
			"type", ev.Type,
			"user_id", ev.UserID,
			"error", err)
	}
}

func indexOf(expenses []core.Expense, id string) int {
	for i := range expenses {
		if expenses[i].ID == id {
			return i
		}
	}
	return -1
}
