// Package memory is the ledger used when no spreadsheet is configured: rows
// are logged and kept in process memory.
package memory

import (
	"context"
	"fmt"
	"sync"

	"eventfin/internal/log"
	"eventfin/internal/sheets"
)

var _ sheets.Ledger = (*Ledger)(nil)

type Ledger struct {
	mu     sync.Mutex
	rows   []sheets.LedgerRow
	ids    map[int64]struct{}
	logger *log.Logger
}

func New(logger *log.Logger) *Ledger {
	return &Ledger{ids: make(map[int64]struct{}), logger: logger.WithComponent(log.ComponentSheets)}
}

// Append logs and stores the row and returns a synthetic row reference.
func (l *Ledger) Append(ctx context.Context, row sheets.LedgerRow) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, dup := l.ids[row.ExpenseID]; dup {
		return "", sheets.ErrAlreadyRecorded
	}
	l.ids[row.ExpenseID] = struct{}{}
	l.rows = append(l.rows, row)

	l.logger.InfoContext(ctx, "Ledger entry",
		log.FieldExpenseID, row.ExpenseID,
		log.FieldStatus, row.Status,
		log.FieldAmountCents, row.Amount.Cents,
		"event", row.Event,
		"category", row.Category,
		"concept", row.Concept,
		"decided_at", row.DecidedAt)
	return fmt.Sprintf("mem:%d", len(l.rows)), nil
}

func (l *Ledger) Rows(_ context.Context, year int) ([]sheets.LedgerRow, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []sheets.LedgerRow
	for _, r := range l.rows {
		if r.Year() == year {
			out = append(out, r)
		}
	}
	return out, nil
}
