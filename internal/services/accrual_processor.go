package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/storage"
)

type AccrualProcessorConfig struct {
	// Interval between scans of all users (default: 1h).
	Interval time.Duration
}

func DefaultAccrualProcessorConfig() AccrualProcessorConfig {
	return AccrualProcessorConfig{Interval: time.Hour}
}

// AccrualProcessor credits monthly recurring income for every stored user.
// Each account carries the month it was last credited, so scanning more
// often than monthly is harmless.
type AccrualProcessor struct {
	store  storage.Store
	txs    *TransactionService
	config AccrualProcessorConfig
	now    func() time.Time
}

func NewAccrualProcessor(store storage.Store, txs *TransactionService, config AccrualProcessorConfig) *AccrualProcessor {
	if config.Interval <= 0 {
		config.Interval = DefaultAccrualProcessorConfig().Interval
	}
	return &AccrualProcessor{store: store, txs: txs, config: config, now: time.Now}
}

// ProcessDue accrues income for all users and returns how many accounts were
// credited. A failure for one user is logged and does not stop the scan.
func (p *AccrualProcessor) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	if p.store == nil || p.txs == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}

	ids, err := p.store.ListUserIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}

	credited := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return credited, err
		}
		n, err := p.txs.AccrueIncome(ctx, id, now)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to accrue recurring income",
				"user_id", id,
				"error", err)
			continue
		}
		if n > 0 {
			slog.InfoContext(ctx, "Accrued recurring income",
				"user_id", id,
				"accounts", n,
				"month", now.Format("2006-01"))
		}
		credited += n
	}

	slog.InfoContext(ctx, "Recurring income accrual complete",
		"credited", credited,
		"users_checked", len(ids))
	return credited, nil
}

// Run scans immediately and then on every tick until ctx is cancelled.
func (p *AccrualProcessor) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "Accrual processor started", "interval", p.config.Interval)
	for {
		if _, err := p.ProcessDue(ctx, p.now()); err != nil && ctx.Err() == nil {
			slog.ErrorContext(ctx, "Accrual scan failed", "error", err)
		}
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Accrual processor stopped")
			return nil
		case <-ticker.C:
		}
	}
}
