package services

import (
	"context"

	"fintrack/internal/core"
	"fintrack/internal/table"
)

// UserTransactions binds the service to one user for a table controller.
type UserTransactions struct {
	svc    *TransactionService
	userID string
}

var _ table.Source = (*UserTransactions)(nil)

func (s *TransactionService) ForUser(userID string) *UserTransactions {
	return &UserTransactions{svc: s, userID: userID}
}

func (u *UserTransactions) Snapshot(ctx context.Context) (table.Snapshot, error) {
	rec, err := u.svc.Record(ctx, u.userID)
	if err != nil {
		return table.Snapshot{}, err
	}
	return table.Snapshot{Version: rec.Version, Expenses: rec.Expenses, Accounts: rec.Accounts}, nil
}

func (u *UserTransactions) UpdateExpense(ctx context.Context, e core.Expense) error {
	return u.svc.UpdateExpense(ctx, u.userID, e)
}

func (u *UserTransactions) DeleteExpense(ctx context.Context, id string) error {
	_, err := u.svc.DeleteExpense(ctx, u.userID, id)
	return err
}

func (u *UserTransactions) RestoreExpense(ctx context.Context, e core.Expense) error {
	return u.svc.RestoreExpense(ctx, u.userID, e)
}
