// Package worker exports expense decisions to the ledger and runs
// scheduled maintenance.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"eventfin/internal/amqp"
	"eventfin/internal/backend"
	"eventfin/internal/core"
	"eventfin/internal/log"
	"eventfin/internal/sheets"
)

// LedgerWorker appends one ledger row per expense decision.
type LedgerWorker struct {
	ledger sheets.LedgerWriter
	logger *log.Logger

	// Used by Backfill only; nil disables it.
	records *backend.Services
}

func NewLedgerWorker(ledger sheets.LedgerWriter, records *backend.Services, logger *log.Logger) *LedgerWorker {
	return &LedgerWorker{ledger: ledger, records: records, logger: logger.WithComponent(log.ComponentWorker)}
}

// HandleDecision processes a single decision message from AMQP. A decision
// already in the ledger is acknowledged without writing it again.
func (w *LedgerWorker) HandleDecision(ctx context.Context, msg *amqp.ExpenseDecision) error {
	w.logger.DebugContext(ctx, "Processing decision message",
		log.FieldExpenseID, msg.ExpenseID,
		log.FieldStatus, msg.Status)

	ref, err := w.ledger.Append(ctx, sheets.RowFromDecision(msg))
	if errors.Is(err, sheets.ErrAlreadyRecorded) {
		w.logger.InfoContext(ctx, "Decision already in ledger, skipping", log.FieldExpenseID, msg.ExpenseID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("append decision %d: %w", msg.ExpenseID, err)
	}

	w.logger.InfoContext(ctx, "Decision recorded",
		log.FieldExpenseID, msg.ExpenseID,
		log.FieldStatus, msg.Status,
		log.FieldAmountCents, msg.AmountCents,
		"ledger_ref", ref)
	return nil
}

// Backfill appends every decision taken since the given time that the
// ledger is missing. It recovers decisions whose messages were lost while
// the broker or the worker was down.
func (w *LedgerWorker) Backfill(ctx context.Context, since time.Time) (int, error) {
	if w.records == nil {
		return 0, errors.New("backfill needs record services")
	}
	expenses, err := w.records.Expenses.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list expenses: %w", err)
	}
	events, err := w.records.Events.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list events: %w", err)
	}
	cats, err := w.records.Budget.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list categories: %w", err)
	}
	eventNames := make(map[int64]string, len(events))
	for _, ev := range events {
		eventNames[ev.ID] = ev.Name
	}
	catNames := make(map[int64]string, len(cats))
	for _, c := range cats {
		catNames[c.ID] = c.Name
	}

	var appended, skipped, failed int
	for _, e := range expenses {
		if !decidedSince(e, since) {
			continue
		}
		msg := amqp.NewExpenseDecision(e)
		msg.EventName = eventNames[e.EventID]
		msg.CategoryName = catNames[e.CategoryID]

		_, err := w.ledger.Append(ctx, sheets.RowFromDecision(msg))
		switch {
		case errors.Is(err, sheets.ErrAlreadyRecorded):
			skipped++
		case err != nil:
			if ctx.Err() != nil {
				return appended, ctx.Err()
			}
			w.logger.ErrorContext(ctx, "Failed to backfill decision", log.FieldExpenseID, e.ID, log.FieldError, err)
			failed++
		default:
			appended++
		}
	}

	w.logger.InfoContext(ctx, "Ledger backfill completed",
		"appended", appended,
		"skipped", skipped,
		"errors", failed)
	if failed > 0 {
		return appended, fmt.Errorf("backfill: %d decisions failed", failed)
	}
	return appended, nil
}

func decidedSince(e core.Expense, since time.Time) bool {
	if e.Status == core.ExpensePending || e.DecidedAt == nil {
		return false
	}
	return !e.DecidedAt.Before(since)
}
