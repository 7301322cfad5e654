package services

import (
	"context"
	"errors"
	"reflect"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/storage/memory"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []*amqp.TransactionEvent
	err    error
}

func (p *fakePublisher) PublishTransactionEvent(_ context.Context, ev *amqp.TransactionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *fakePublisher) types() []amqp.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]amqp.EventType, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

var fixedNow = time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)

func newTestService(pub EventPublisher) (*TransactionService, *memory.Store) {
	store := memory.New()
	svc := NewTransactionService(store, pub)
	svc.now = func() time.Time { return fixedNow }
	return svc, store
}

func validForm() core.ExpenseForm {
	return core.ExpenseForm{Amount: "250.50", Date: "2024-03-10", Category: "food", PaymentType: "UPI", AccountType: "Bank"}
}

func TestAddExpenseAssignsTimeOrderedID(t *testing.T) {
	pub := &fakePublisher{}
	svc, _ := newTestService(pub)
	ctx := context.Background()

	first, err := svc.AddExpense(ctx, "u1", validForm())
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.AddExpense(ctx, "u1", validForm())
	if err != nil {
		t.Fatal(err)
	}
	id, err := uuid.Parse(first.ID)
	if err != nil || id.Version() != 7 {
		t.Fatalf("id %q is not a v7 uuid: %v", first.ID, err)
	}
	if first.ID == second.ID {
		t.Fatal("ids collide")
	}
	if first.PaymentType != core.PaymentUPI || first.PaymentMethod != "upi" || first.Amount.Cents != 25050 {
		t.Fatalf("expense = %+v", first)
	}

	rec, _ := svc.Record(ctx, "u1")
	if len(rec.Expenses) != 2 || rec.Version != 2 {
		t.Fatalf("record = %+v", rec)
	}
	if got := pub.types(); !reflect.DeepEqual(got, []amqp.EventType{amqp.EventExpenseCreated, amqp.EventExpenseCreated}) {
		t.Fatalf("events = %v", got)
	}
}

func TestAddExpenseValidationMakesNoWrite(t *testing.T) {
	pub := &fakePublisher{}
	svc, store := newTestService(pub)
	_, err := svc.AddExpense(context.Background(), "u1", core.ExpenseForm{Amount: "-1"})
	var fe core.FieldErrors
	if !errors.As(err, &fe) {
		t.Fatalf("err = %v", err)
	}
	for _, field := range []string{"amount", "date", "category", "paymentType"} {
		if fe[field] == "" {
			t.Errorf("missing error for %s", field)
		}
	}
	if rec, _ := store.GetUserRecord(context.Background(), "u1"); rec != nil {
		t.Fatal("record written for invalid form")
	}
	if len(pub.types()) != 0 {
		t.Fatal("event published for invalid form")
	}
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	svc, _ := newTestService(&fakePublisher{err: errors.New("broker down")})
	if _, err := svc.AddExpense(context.Background(), "u1", validForm()); err != nil {
		t.Fatalf("err = %v", err)
	}
}

func TestDeleteRestoreRoundTrip(t *testing.T) {
	pub := &fakePublisher{}
	svc, _ := newTestService(pub)
	ctx := context.Background()
	form := validForm()
	form.OCRData = []byte(`{"merchant":"Cafe"}`)
	e, _ := svc.AddExpense(ctx, "u1", form)

	removed, err := svc.DeleteExpense(ctx, "u1", e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(removed, e) {
		t.Fatalf("removed %+v, want %+v", removed, e)
	}
	if _, err := svc.DeleteExpense(ctx, "u1", e.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("second delete err = %v", err)
	}

	if err := svc.RestoreExpense(ctx, "u1", removed); err != nil {
		t.Fatal(err)
	}
	if err := svc.RestoreExpense(ctx, "u1", removed); err != nil {
		t.Fatalf("repeat restore: %v", err)
	}
	rec, _ := svc.Record(ctx, "u1")
	if len(rec.Expenses) != 1 || !reflect.DeepEqual(rec.Expenses[0], e) {
		t.Fatalf("restored = %+v", rec.Expenses)
	}
	want := []amqp.EventType{amqp.EventExpenseCreated, amqp.EventExpenseDeleted, amqp.EventExpenseRestored}
	if got := pub.types(); !reflect.DeepEqual(got, want) {
		t.Fatalf("events = %v", got)
	}
}

func TestUpdateExpense(t *testing.T) {
	svc, _ := newTestService(nil)
	ctx := context.Background()
	e, _ := svc.AddExpense(ctx, "u1", validForm())

	e.Category = "travel"
	if err := svc.UpdateExpense(ctx, "u1", e); err != nil {
		t.Fatal(err)
	}
	rec, _ := svc.Record(ctx, "u1")
	if rec.Expenses[0].Category != "travel" {
		t.Fatalf("not updated: %+v", rec.Expenses[0])
	}

	e.ID = "missing"
	if err := svc.UpdateExpense(ctx, "u1", e); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
	e.Amount = core.Money{}
	if err := svc.UpdateExpense(ctx, "u1", e); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("err = %v", err)
	}
}

func TestAccountMutationsKeepTotalBalance(t *testing.T) {
	svc, store := newTestService(nil)
	ctx := context.Background()

	if _, err := svc.AddAccount(ctx, "u1", core.Account{Name: "HDFC", Type: core.AccountBank, Balance: core.Money{Cents: 10000}}); err != nil {
		t.Fatal(err)
	}
	accounts, err := svc.AddAccount(ctx, "u1", core.Account{Name: core.SalaryAccountName, Type: core.AccountOther, Balance: core.Money{Cents: 5000}})
	if err != nil {
		t.Fatal(err)
	}
	if !accounts[1].IsRecurringIncome || accounts[1].RecurringAmount.Cents != 5000 {
		t.Fatalf("salary rule not applied: %+v", accounts[1])
	}
	if _, err := svc.AddAccount(ctx, "u1", core.Account{Name: "hdfc", Type: core.AccountBank}); !errors.Is(err, ledger.ErrDuplicateAccount) {
		t.Fatalf("duplicate err = %v", err)
	}

	if _, err := svc.UpdateAccountBalance(ctx, "u1", 0, core.Money{Cents: 2500}); err != nil {
		t.Fatal(err)
	}
	rec, _ := store.GetUserRecord(ctx, "u1")
	if rec.TotalBalance.Cents != 7500 {
		t.Fatalf("total = %d", rec.TotalBalance.Cents)
	}

	if _, err := svc.DeleteAccount(ctx, "u1", 5); !errors.Is(err, ledger.ErrAccountIndex) {
		t.Fatalf("err = %v", err)
	}
	accounts, _ = svc.DeleteAccount(ctx, "u1", 0)
	rec, _ = store.GetUserRecord(ctx, "u1")
	if len(accounts) != 1 || rec.TotalBalance.Cents != 5000 {
		t.Fatalf("after delete: %+v total=%d", accounts, rec.TotalBalance.Cents)
	}
}

func TestRecordCoalescesCash(t *testing.T) {
	svc, store := newTestService(nil)
	ctx := context.Background()
	accounts := []core.Account{
		{Name: "Cash", Type: core.AccountCash, Balance: core.Money{Cents: 10000}},
		{Name: "cash", Type: core.AccountCash, Balance: core.Money{Cents: 5000}},
	}
	_, _ = store.SetUserRecord(ctx, "u1", core.UserRecordPatch{Accounts: &accounts}, true)
	rec, err := svc.Record(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.Accounts) != 1 || rec.Accounts[0].Balance.Cents != 15000 {
		t.Fatalf("accounts = %+v", rec.Accounts)
	}
}

func TestAccrueIncomeOncePerMonth(t *testing.T) {
	pub := &fakePublisher{}
	svc, store := newTestService(pub)
	ctx := context.Background()
	_, _ = svc.AddAccount(ctx, "u1", core.Account{Name: core.SalaryAccountName, Type: core.AccountOther, Balance: core.Money{Cents: 1000}})

	n, err := svc.AccrueIncome(ctx, "u1", fixedNow)
	if err != nil || n != 1 {
		t.Fatalf("first accrual n=%d err=%v", n, err)
	}
	before, _ := store.GetUserRecord(ctx, "u1")
	n, err = svc.AccrueIncome(ctx, "u1", fixedNow.Add(24*time.Hour))
	if err != nil || n != 0 {
		t.Fatalf("second accrual n=%d err=%v", n, err)
	}
	after, _ := store.GetUserRecord(ctx, "u1")
	if after.Version != before.Version {
		t.Fatal("no-op accrual wrote the record")
	}
	if after.Accounts[0].Balance.Cents != 2000 || after.TotalBalance.Cents != 2000 {
		t.Fatalf("balance = %d total = %d", after.Accounts[0].Balance.Cents, after.TotalBalance.Cents)
	}

	n, _ = svc.AccrueIncome(ctx, "u1", fixedNow.AddDate(0, 1, 0))
	if n != 1 {
		t.Fatalf("next month n=%d", n)
	}
}

func TestDashboard(t *testing.T) {
	svc, _ := newTestService(nil)
	ctx := context.Background()
	for i, amt := range []string{"500", "2000"} {
		f := validForm()
		f.Amount = amt
		f.PaymentType = "cash"
		f.Date = "2024-03-0" + strconv.Itoa(i+5)
		if _, err := svc.AddExpense(ctx, "u1", f); err != nil {
			t.Fatal(err)
		}
	}
	d, err := svc.Dashboard(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if d.Monthly.Expenses.Cents != 250000 || d.Monthly.Income.Cents != 0 || d.Monthly.RecurringIncome.Cents != 0 {
		t.Fatalf("monthly = %+v", d.Monthly)
	}
	if len(d.Categories) != 1 || d.Categories[0].Percent != 100 || d.Series == nil {
		t.Fatalf("dashboard = %+v", d)
	}

	_, _ = svc.AddAccount(ctx, "u1", core.Account{Name: core.SalaryAccountName, Type: core.AccountOther, Balance: core.Money{Cents: 300000}})
	d, _ = svc.Dashboard(ctx, "u1")
	if d.Monthly.Income.Cents != 300000 || d.TotalBalance.Cents != 300000 {
		t.Fatalf("with salary: %+v", d)
	}
}

func TestUserTransactionsSnapshot(t *testing.T) {
	svc, _ := newTestService(nil)
	ctx := context.Background()
	src := svc.ForUser("u1")

	snap, err := src.Snapshot(ctx)
	if err != nil || snap.Version != 0 || snap.Expenses != nil {
		t.Fatalf("empty snapshot = %+v, %v", snap, err)
	}
	e, _ := svc.AddExpense(ctx, "u1", validForm())
	if err := src.DeleteExpense(ctx, e.ID); err != nil {
		t.Fatal(err)
	}
	if err := src.RestoreExpense(ctx, e); err != nil {
		t.Fatal(err)
	}
	snap, _ = src.Snapshot(ctx)
	if snap.Version != 3 || len(snap.Expenses) != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestUpdateProfile(t *testing.T) {
	svc, _ := newTestService(nil)
	goal := core.Money{Cents: 100000}
	phone := "  +911234567890 "
	rec, err := svc.UpdateProfile(context.Background(), "u1", &goal, &phone)
	if err != nil {
		t.Fatal(err)
	}
	if rec.SavingsGoal != goal || rec.PhoneNumber != "+911234567890" {
		t.Fatalf("profile = %+v", rec)
	}
}
