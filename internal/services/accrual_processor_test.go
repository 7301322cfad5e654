package services

import (
	"context"
	"testing"
	"time"

	"fintrack/internal/core"
)

func TestDefaultAccrualProcessorConfig(t *testing.T) {
	if got := DefaultAccrualProcessorConfig().Interval; got != time.Hour {
		t.Errorf("expected Interval 1h, got %v", got)
	}
	p := NewAccrualProcessor(nil, nil, AccrualProcessorConfig{})
	if p.config.Interval != time.Hour {
		t.Errorf("zero interval not defaulted: %v", p.config.Interval)
	}
}

func TestProcessDueUninitialized(t *testing.T) {
	p := NewAccrualProcessor(nil, nil, DefaultAccrualProcessorConfig())
	if _, err := p.ProcessDue(context.Background(), fixedNow); err == nil {
		t.Fatal("expected error")
	}
}

func TestProcessDueAllUsers(t *testing.T) {
	svc, store := newTestService(nil)
	ctx := context.Background()
	for _, u := range []string{"u1", "u2"} {
		_, _ = svc.AddAccount(ctx, u, core.Account{
			Name: "Rent", Type: core.AccountBank,
			IsRecurringIncome: true, RecurringAmount: core.Money{Cents: 700},
		})
	}
	_, _ = svc.AddAccount(ctx, "u3", core.Account{Name: "Wallet", Type: core.AccountCash})

	p := NewAccrualProcessor(store, svc, DefaultAccrualProcessorConfig())
	n, err := p.ProcessDue(ctx, fixedNow)
	if err != nil || n != 2 {
		t.Fatalf("n=%d err=%v", n, err)
	}
	n, _ = p.ProcessDue(ctx, fixedNow)
	if n != 0 {
		t.Fatalf("second scan credited %d", n)
	}
	rec, _ := store.GetUserRecord(ctx, "u2")
	if rec.Accounts[0].Balance.Cents != 700 || rec.Accounts[0].LastAccruedMonth != "2024-03" {
		t.Fatalf("u2 account = %+v", rec.Accounts[0])
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	svc, store := newTestService(nil)
	p := NewAccrualProcessor(store, svc, AccrualProcessorConfig{Interval: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}
