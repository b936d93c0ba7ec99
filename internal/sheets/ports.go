// Package sheets defines the approval ledger: one row per expense decision.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"eventfin/internal/amqp"
	"eventfin/internal/core"
)

// ErrAlreadyRecorded is returned when the ledger already holds a decision
// for the expense. Redelivered messages hit this.
var ErrAlreadyRecorded = errors.New("decision already recorded")

// DecidedAtLayout is how decision times are written to the ledger.
const DecidedAtLayout = "2006-01-02 15:04:05"

// Header is the ledger's first row.
var Header = []string{"date", "event", "category", "concept", "provider", "amount", "status", "comment", "decided_at", "expense_id"}

// Ports for outbound adapters.
type (
	// LedgerWriter appends decisions.
	LedgerWriter interface {
		Append(ctx context.Context, row LedgerRow) (rowRef string, err error)
	}

	// LedgerReader lists the decisions recorded for a year.
	LedgerReader interface {
		Rows(ctx context.Context, year int) ([]LedgerRow, error)
	}

	Ledger interface {
		LedgerWriter
		LedgerReader
	}
)

// LedgerRow is one recorded decision.
type LedgerRow struct {
	ExpenseID int64
	Date      core.Date
	Event     string
	Category  string
	Concept   string
	Provider  string
	Amount    core.Money
	Status    core.ExpenseStatus
	Comment   string
	DecidedAt time.Time
}

// RowFromDecision builds a ledger row, naming unknown events and categories by id.
func RowFromDecision(msg *amqp.ExpenseDecision) LedgerRow {
	row := LedgerRow{
		ExpenseID: msg.ExpenseID,
		Event:     msg.EventName,
		Category:  msg.CategoryName,
		Concept:   msg.Concept,
		Provider:  msg.Provider,
		Amount:    msg.Amount(),
		Status:    msg.Status,
		Comment:   msg.Comment,
		DecidedAt: msg.DecidedAt.UTC(),
	}
	if d, err := core.ParseDate(msg.ExpenseDate); err == nil {
		row.Date = d
	}
	if row.Event == "" {
		row.Event = fmt.Sprintf("#%d", msg.EventID)
	}
	if row.Category == "" {
		row.Category = fmt.Sprintf("#%d", msg.CategoryID)
	}
	return row
}

// Year is the ledger year the row belongs to.
func (r LedgerRow) Year() int {
	return r.DecidedAt.Year()
}

// Values renders the row in Header order.
func (r LedgerRow) Values() []any {
	return []any{
		r.Date.String(),
		r.Event,
		r.Category,
		r.Concept,
		r.Provider,
		r.Amount.String(),
		string(r.Status),
		r.Comment,
		r.DecidedAt.UTC().Format(DecidedAtLayout),
		r.ExpenseID,
	}
}

// ParseRow reads a row written by Values. Only the expense id and amount
// are required to parse; dates reformatted by a spreadsheet are left zero.
func ParseRow(cols []string) (LedgerRow, error) {
	if len(cols) < len(Header) {
		return LedgerRow{}, fmt.Errorf("ledger row has %d columns, want %d", len(cols), len(Header))
	}
	for i := range cols {
		cols[i] = strings.TrimSpace(cols[i])
	}
	id, err := strconv.ParseInt(cols[9], 10, 64)
	if err != nil || id <= 0 {
		return LedgerRow{}, fmt.Errorf("invalid expense id %q", cols[9])
	}
	cents, err := core.ParseDecimalToCents(cols[5])
	if err != nil {
		return LedgerRow{}, fmt.Errorf("expense %d: amount %q: %w", id, cols[5], err)
	}
	row := LedgerRow{
		ExpenseID: id,
		Event:     cols[1],
		Category:  cols[2],
		Concept:   cols[3],
		Provider:  cols[4],
		Amount:    core.Money{Cents: cents},
		Status:    core.ExpenseStatus(cols[6]),
		Comment:   cols[7],
	}
	if d, err := core.ParseDate(cols[0]); err == nil {
		row.Date = d
	}
	if t, err := time.Parse(DecidedAtLayout, cols[8]); err == nil {
		row.DecidedAt = t
	}
	return row, nil
}
