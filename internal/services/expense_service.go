package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"eventfin/internal/amqp"
	"eventfin/internal/core"
	"eventfin/internal/log"
	"eventfin/internal/store"
)

// DecisionPublisher announces approval decisions to other processes.
type DecisionPublisher interface {
	PublishDecision(ctx context.Context, msg *amqp.ExpenseDecision) error
}

// ExpenseService owns expense records and the approval workflow.
type ExpenseService struct {
	expenses  store.ExpenseRepository
	events    store.EventRepository
	budget    *BudgetService
	publisher DecisionPublisher
	latency   Latency
	logger    *log.Logger
	now       func() time.Time

	// decide serializes approve/reject so spend is posted exactly once.
	decide sync.Mutex
}

// NewExpenseService wires the workflow. publisher may be nil.
func NewExpenseService(expenses store.ExpenseRepository, events store.EventRepository, budget *BudgetService,
	publisher DecisionPublisher, latency Latency, logger *log.Logger) *ExpenseService {
	return &ExpenseService{
		expenses:  expenses,
		events:    events,
		budget:    budget,
		publisher: publisher,
		latency:   latency,
		logger:    logger.WithComponent(log.ComponentExpense),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *ExpenseService) List(ctx context.Context) ([]core.Expense, error) {
	if err := sleep(ctx, s.latency.List); err != nil {
		return nil, err
	}
	return s.expenses.List(ctx)
}

func (s *ExpenseService) Get(ctx context.Context, id int64) (core.Expense, error) {
	if err := sleep(ctx, s.latency.Get); err != nil {
		return core.Expense{}, err
	}
	return s.expenses.Get(ctx, id)
}

func (s *ExpenseService) ListByEvent(ctx context.Context, eventID int64) ([]core.Expense, error) {
	if err := sleep(ctx, s.latency.Get); err != nil {
		return nil, err
	}
	all, err := s.expenses.List(ctx)
	if err != nil {
		return nil, err
	}
	return filter(all, func(e core.Expense) bool { return e.EventID == eventID }), nil
}

// Pending returns the expenses awaiting a decision.
func (s *ExpenseService) Pending(ctx context.Context) ([]core.Expense, error) {
	if err := sleep(ctx, s.latency.Get); err != nil {
		return nil, err
	}
	all, err := s.expenses.List(ctx)
	if err != nil {
		return nil, err
	}
	return filter(all, func(e core.Expense) bool { return e.Status == core.ExpensePending }), nil
}

// Create submits an expense. It always starts pending, submitted by the
// default user, with no decision recorded.
func (s *ExpenseService) Create(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := sleep(ctx, s.latency.Create); err != nil {
		return core.Expense{}, err
	}
	e.ID = 0
	e.Status = core.ExpensePending
	e.SubmittedBy = core.DefaultSubmitter
	e.Comment = ""
	e.DecidedAt = nil
	if e.Type == "" {
		e.Type = core.ExpenseNormal
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	if _, err := s.events.Get(ctx, e.EventID); err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	cat, err := s.budget.categories.Get(ctx, e.CategoryID)
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	if cat.EventID != e.EventID {
		return core.Expense{}, core.Invalid("category_id", core.ErrCategoryMismatch)
	}

	created, err := s.expenses.Insert(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	s.logger.InfoContext(ctx, "Expense submitted", log.NewFields().WithExpense(created).WithOperation(log.OpCreate).ToSlice()...)
	return created, nil
}

// Delete removes a pending expense. Decided expenses are part of the budget
// history and cannot be deleted.
func (s *ExpenseService) Delete(ctx context.Context, id int64) error {
	if err := sleep(ctx, s.latency.Delete); err != nil {
		return err
	}
	s.decide.Lock()
	defer s.decide.Unlock()

	e, err := s.expenses.Get(ctx, id)
	if err != nil {
		return err
	}
	if e.Status != core.ExpensePending {
		return fmt.Errorf("delete %s expense %d: %w", e.Status, id, core.ErrInvalidTransition)
	}
	return s.expenses.Remove(ctx, id)
}

// Approve marks a pending expense approved and adds its amount to the owning
// category. Approving an approved expense returns it unchanged.
func (s *ExpenseService) Approve(ctx context.Context, id int64, comment string) (core.Expense, error) {
	if err := sleep(ctx, s.latency.Decide); err != nil {
		return core.Expense{}, err
	}
	s.decide.Lock()
	defer s.decide.Unlock()

	current, err := s.expenses.Get(ctx, id)
	if err != nil {
		return core.Expense{}, fmt.Errorf("approve: %w", err)
	}
	switch current.Status {
	case core.ExpenseApproved:
		return current, nil
	case core.ExpenseRejected:
		return core.Expense{}, fmt.Errorf("approve rejected expense %d: %w", id, core.ErrInvalidTransition)
	}
	if _, err := s.budget.categories.Get(ctx, current.CategoryID); err != nil {
		return core.Expense{}, fmt.Errorf("approve expense %d: %w", id, err)
	}

	approved, err := s.transition(ctx, id, core.ExpenseApproved, comment)
	if err != nil {
		return core.Expense{}, err
	}

	if _, err := s.budget.AddSpend(ctx, approved.CategoryID, approved.Amount); err != nil {
		s.revert(ctx, current)
		return core.Expense{}, fmt.Errorf("approve expense %d: add spend: %w", id, err)
	}

	s.logger.InfoContext(ctx, "Expense approved", log.NewFields().WithExpense(approved).WithOperation(log.OpApprove).ToSlice()...)
	s.publish(ctx, approved)
	return approved, nil
}

// Reject marks a pending expense rejected. Budget figures are never touched.
func (s *ExpenseService) Reject(ctx context.Context, id int64, comment string) (core.Expense, error) {
	if err := sleep(ctx, s.latency.Decide); err != nil {
		return core.Expense{}, err
	}
	s.decide.Lock()
	defer s.decide.Unlock()

	current, err := s.expenses.Get(ctx, id)
	if err != nil {
		return core.Expense{}, fmt.Errorf("reject: %w", err)
	}
	switch current.Status {
	case core.ExpenseRejected:
		return current, nil
	case core.ExpenseApproved:
		return core.Expense{}, fmt.Errorf("reject approved expense %d: %w", id, core.ErrInvalidTransition)
	}

	rejected, err := s.transition(ctx, id, core.ExpenseRejected, comment)
	if err != nil {
		return core.Expense{}, err
	}
	s.logger.InfoContext(ctx, "Expense rejected", log.NewFields().WithExpense(rejected).WithOperation(log.OpReject).ToSlice()...)
	s.publish(ctx, rejected)
	return rejected, nil
}

func (s *ExpenseService) transition(ctx context.Context, id int64, next core.ExpenseStatus, comment string) (core.Expense, error) {
	decided := s.now()
	return s.expenses.Update(ctx, id, func(e *core.Expense) error {
		if !e.Status.CanTransitionTo(next) {
			return fmt.Errorf("%s -> %s: %w", e.Status, next, core.ErrInvalidTransition)
		}
		e.Status = next
		e.Comment = comment
		e.DecidedAt = &decided
		return nil
	})
}

// revert restores the pre-approval record when the spend could not be posted.
func (s *ExpenseService) revert(ctx context.Context, previous core.Expense) {
	_, err := s.expenses.Update(context.WithoutCancel(ctx), previous.ID, func(e *core.Expense) error {
		e.Status = previous.Status
		e.Comment = previous.Comment
		e.DecidedAt = previous.DecidedAt
		return nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to revert expense after spend error",
			log.FieldExpenseID, previous.ID, log.FieldError, err)
	}
}

func (s *ExpenseService) publish(ctx context.Context, e core.Expense) {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "No decision publisher configured, skipping", log.FieldExpenseID, e.ID)
		return
	}
	msg := amqp.NewExpenseDecision(e)
	if ev, err := s.events.Get(ctx, e.EventID); err == nil {
		msg.EventName = ev.Name
	}
	if cat, err := s.budget.categories.Get(ctx, e.CategoryID); err == nil {
		msg.CategoryName = cat.Name
	}
	if err := s.publisher.PublishDecision(ctx, msg); err != nil {
		// The decision is stored; the ledger can be rebuilt from the database.
		s.logger.ErrorContext(ctx, "Failed to publish expense decision",
			log.NewFields().WithExpense(e).WithOperation(log.OpPublish).WithError(err).ToSlice()...)
	}
}
