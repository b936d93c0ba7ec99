package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	EventPlanned EventStatus = "planeado"
	EventActive  EventStatus = "activo"
	EventClosed  EventStatus = "cerrado"

	ExpensePending  ExpenseStatus = "pendiente"
	ExpenseApproved ExpenseStatus = "aprobado"
	ExpenseRejected ExpenseStatus = "rechazado"

	ExpenseNormal  ExpenseType = "normal"
	ExpensePayroll ExpenseType = "nomina"
	ExpenseAdvance ExpenseType = "anticipo"
	ExpenseFees    ExpenseType = "honorarios"
	ExpenseTravel  ExpenseType = "viaticos"

	SourceTicketing   IncomeSource = "boleteria"
	SourceBar         IncomeSource = "barra"
	SourceSponsorship IncomeSource = "patrocinios"
	SourceReserved    IncomeSource = "reservados"

	// DefaultSubmitter is recorded on every expense; there is no authentication.
	DefaultSubmitter = "1"

	maxTextLength = 200
)

type (
	EventStatus   string
	ExpenseStatus string
	ExpenseType   string
	IncomeSource  string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Event is a production (concert, gala, ...) owning budgets and financial records.
	Event struct {
		ID          int64       `json:"id"`
		Name        string      `json:"name"`
		Date        Date        `json:"date"`
		Type        string      `json:"type"`
		Venue       string      `json:"venue"`
		TotalBudget Money       `json:"total_budget"`
		Status      EventStatus `json:"status"`
	}

	// BudgetCategory (rubro) is a sub-allocation of an event's budget.
	// Spent is only ever incremented by approved expenses.
	BudgetCategory struct {
		ID       int64  `json:"id"`
		EventID  int64  `json:"event_id"`
		Name     string `json:"name"`
		Assigned Money  `json:"assigned"`
		Spent    Money  `json:"spent"`
	}

	// OCRData holds the fields extracted from an uploaded receipt.
	OCRData struct {
		Provider string `json:"provider"`
		Amount   Money  `json:"amount"`
		Concept  string `json:"concept"`
		Date     Date   `json:"date"`
	}

	Expense struct {
		ID            int64         `json:"id"`
		EventID       int64         `json:"event_id"`
		CategoryID    int64         `json:"category_id"`
		Concept       string        `json:"concept"`
		Provider      string        `json:"provider"`
		Amount        Money         `json:"amount"`
		Date          Date          `json:"date"`
		Type          ExpenseType   `json:"type"`
		Status        ExpenseStatus `json:"status"`
		OCR           *OCRData      `json:"ocr,omitempty"`
		AttachmentRef string        `json:"attachment_ref,omitempty"`
		Comment       string        `json:"comment,omitempty"`
		SubmittedBy   string        `json:"submitted_by"`
		DecidedAt     *time.Time    `json:"decided_at,omitempty"`
	}

	Income struct {
		ID          int64        `json:"id"`
		EventID     int64        `json:"event_id"`
		Source      IncomeSource `json:"source"`
		Amount      Money        `json:"amount"`
		Date        Date         `json:"date"`
		Description string       `json:"description"`
	}
)

// Identity and WithID let the repositories assign identifiers generically.

func (e Event) Identity() int64                          { return e.ID }
func (e Event) WithID(id int64) Event                    { e.ID = id; return e }
func (c BudgetCategory) Identity() int64                 { return c.ID }
func (c BudgetCategory) WithID(id int64) BudgetCategory { c.ID = id; return c }
func (e Expense) Identity() int64                        { return e.ID }
func (e Expense) WithID(id int64) Expense                { e.ID = id; return e }
func (i Income) Identity() int64                         { return i.ID }
func (i Income) WithID(id int64) Income                  { i.ID = id; return i }

func (e Event) Clone() Event                   { return e }
func (c BudgetCategory) Clone() BudgetCategory { return c }
func (i Income) Clone() Income                 { return i }

// Clone copies the OCR data and decision time so the copy can be mutated
// independently.
func (e Expense) Clone() Expense {
	if e.OCR != nil {
		ocr := *e.OCR
		e.OCR = &ocr
	}
	if e.DecidedAt != nil {
		t := *e.DecidedAt
		e.DecidedAt = &t
	}
	return e
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (m Money) Validate() error {
	if m.Cents <= 0 || m.Cents > maxCents {
		return ErrInvalidAmount
	}
	return nil
}

// AddSpend increments Spent by a positive amount. The total may not pass
// MaxMoney.
func (c *BudgetCategory) AddSpend(amount Money) error {
	if err := amount.Validate(); err != nil {
		return invalid("amount", err)
	}
	if c.Spent.Cents > maxCents-amount.Cents {
		return invalid("spent", ErrSpendOverflow)
	}
	c.Spent = c.Spent.Add(amount)
	return nil
}

func (s EventStatus) Valid() bool {
	switch s {
	case EventPlanned, EventActive, EventClosed:
		return true
	}
	return false
}

func (s ExpenseStatus) Valid() bool {
	switch s {
	case ExpensePending, ExpenseApproved, ExpenseRejected:
		return true
	}
	return false
}

// CanTransitionTo reports whether the approval state machine allows s -> next.
// Approved and rejected are terminal.
func (s ExpenseStatus) CanTransitionTo(next ExpenseStatus) bool {
	return s == ExpensePending && (next == ExpenseApproved || next == ExpenseRejected)
}

func (t ExpenseType) Valid() bool {
	switch t {
	case ExpenseNormal, ExpensePayroll, ExpenseAdvance, ExpenseFees, ExpenseTravel:
		return true
	}
	return false
}

func (s IncomeSource) Valid() bool {
	switch s {
	case SourceTicketing, SourceBar, SourceSponsorship, SourceReserved:
		return true
	}
	return false
}

// ExpenseTypes lists expense types in display order.
func ExpenseTypes() []ExpenseType {
	return []ExpenseType{ExpenseNormal, ExpensePayroll, ExpenseAdvance, ExpenseFees, ExpenseTravel}
}

// IncomeSources lists income sources in display order.
func IncomeSources() []IncomeSource {
	return []IncomeSource{SourceTicketing, SourceBar, SourceSponsorship, SourceReserved}
}

func (e Event) Validate() error {
	if err := validateText("name", e.Name, ErrEmptyName); err != nil {
		return err
	}
	if err := e.Date.Validate(); err != nil {
		return invalid("date", err)
	}
	if len(e.Type) > maxTextLength || len(e.Venue) > maxTextLength {
		return invalid("venue", ErrTextTooLong)
	}
	if e.TotalBudget.Cents < 0 || e.TotalBudget.Cents > maxCents {
		return invalid("total_budget", ErrInvalidAmount)
	}
	if !e.Status.Valid() {
		return invalid("status", ErrInvalidStatus)
	}
	return nil
}

func (c BudgetCategory) Validate() error {
	if c.EventID <= 0 {
		return invalid("event_id", ErrMissingReference)
	}
	if err := validateText("name", c.Name, ErrEmptyName); err != nil {
		return err
	}
	if err := c.Assigned.Validate(); err != nil {
		return invalid("assigned", err)
	}
	if c.Spent.Cents < 0 || c.Spent.Cents > maxCents {
		return invalid("spent", ErrInvalidAmount)
	}
	return nil
}

func (e Expense) Validate() error {
	if e.EventID <= 0 {
		return invalid("event_id", ErrMissingReference)
	}
	if e.CategoryID <= 0 {
		return invalid("category_id", ErrMissingReference)
	}
	if err := validateText("concept", e.Concept, ErrEmptyConcept); err != nil {
		return err
	}
	if err := validateText("provider", e.Provider, ErrEmptyProvider); err != nil {
		return err
	}
	if err := e.Amount.Validate(); err != nil {
		return invalid("amount", err)
	}
	if err := e.Date.Validate(); err != nil {
		return invalid("date", err)
	}
	if !e.Type.Valid() {
		return invalid("type", ErrInvalidExpenseType)
	}
	if !e.Status.Valid() {
		return invalid("status", ErrInvalidStatus)
	}
	return nil
}

func (i Income) Validate() error {
	if i.EventID <= 0 {
		return invalid("event_id", ErrMissingReference)
	}
	if !i.Source.Valid() {
		return invalid("source", ErrInvalidIncomeSource)
	}
	if err := i.Amount.Validate(); err != nil {
		return invalid("amount", err)
	}
	if err := i.Date.Validate(); err != nil {
		return invalid("date", err)
	}
	if len(i.Description) > maxTextLength {
		return invalid("description", ErrTextTooLong)
	}
	return nil
}

func validateText(field, value string, empty error) error {
	if strings.TrimSpace(value) == "" {
		return invalid(field, empty)
	}
	if len(value) > maxTextLength {
		return invalid(field, fmt.Errorf("%w (max %d characters)", ErrTextTooLong, maxTextLength))
	}
	return nil
}
