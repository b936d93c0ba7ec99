package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"eventfin/internal/core"
)

// ExpenseDecision is published whenever an expense is approved or rejected.
// It carries everything the ledger needs, so consumers never read the database.
type ExpenseDecision struct {
	ExpenseID    int64              `json:"expense_id"`
	EventID      int64              `json:"event_id"`
	EventName    string             `json:"event_name,omitempty"`
	CategoryID   int64              `json:"category_id"`
	CategoryName string             `json:"category_name,omitempty"`
	Concept      string             `json:"concept"`
	Provider     string             `json:"provider"`
	AmountCents  int64              `json:"amount_cents"`
	Status       core.ExpenseStatus `json:"status"`
	Comment      string             `json:"comment"`
	ExpenseDate  string             `json:"expense_date"`
	DecidedAt    time.Time          `json:"decided_at"`
}

func NewExpenseDecision(e core.Expense) *ExpenseDecision {
	decided := time.Now().UTC()
	if e.DecidedAt != nil {
		decided = *e.DecidedAt
	}
	return &ExpenseDecision{
		ExpenseID:   e.ID,
		EventID:     e.EventID,
		CategoryID:  e.CategoryID,
		Concept:     e.Concept,
		Provider:    e.Provider,
		AmountCents: e.Amount.Cents,
		Status:      e.Status,
		Comment:     e.Comment,
		ExpenseDate: e.Date.String(),
		DecidedAt:   decided,
	}
}

func (m *ExpenseDecision) Validate() error {
	if m.ExpenseID <= 0 {
		return errors.New("expense_id is required")
	}
	if m.Status != core.ExpenseApproved && m.Status != core.ExpenseRejected {
		return fmt.Errorf("status %q is not a decision", m.Status)
	}
	return nil
}

func (m *ExpenseDecision) Amount() core.Money {
	return core.Money{Cents: m.AmountCents}
}

func (m *ExpenseDecision) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseDecisionFromJSON decodes and validates a decision message.
func ExpenseDecisionFromJSON(data []byte) (*ExpenseDecision, error) {
	var msg ExpenseDecision
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
