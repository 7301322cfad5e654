package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/sheets"
)

// ErrMalformedEvent marks events that can never be mirrored. Retrying them
// would only loop.
var ErrMalformedEvent = errors.New("malformed transaction event")

// MirrorWorker appends one audit row per transaction event.
type MirrorWorker struct {
	writer  sheets.AuditWriter
	timeout time.Duration
}

func NewMirrorWorker(writer sheets.AuditWriter, timeout time.Duration) *MirrorWorker {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &MirrorWorker{writer: writer, timeout: timeout}
}

// HandleEvent is a consumer callback for amqp.Client.ConsumeTransactionEvents.
func (w *MirrorWorker) HandleEvent(ctx context.Context, ev *amqp.TransactionEvent) error {
	if ev == nil || ev.UserID == "" || ev.Type == "" {
		return ErrMalformedEvent
	}

	slog.InfoContext(ctx, "Processing transaction event",
		"user_id", ev.UserID,
		"event", ev.Type,
		"version", ev.Version)

	row := auditRow(ev)

	writeCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	ref, err := w.writer.AppendAudit(writeCtx, row)
	if err != nil {
		return fmt.Errorf("append audit row: %w", err)
	}

	slog.InfoContext(ctx, "Transaction event mirrored",
		"user_id", ev.UserID,
		"event", ev.Type,
		"ref", ref)
	return nil
}

func auditRow(ev *amqp.TransactionEvent) sheets.AuditRow {
	row := sheets.AuditRow{
		Timestamp:    ev.Timestamp,
		UserID:       ev.UserID,
		Event:        string(ev.Type),
		Version:      ev.Version,
		TotalBalance: ev.Balance,
	}
	if row.Timestamp.IsZero() {
		row.Timestamp = time.Now()
	}
	if e := ev.Expense; e != nil {
		row.ExpenseID = e.ID
		row.Date = e.Date
		row.Category = e.Category
		row.Description = e.Description
		row.Amount = e.Amount
	}
	return row
}
