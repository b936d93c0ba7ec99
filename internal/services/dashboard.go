package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"eventfin/internal/core"
	"eventfin/internal/log"
)

// DashboardService composes the read-side views from the record services.
type DashboardService struct {
	events   *EventService
	budget   *BudgetService
	expenses *ExpenseService
	incomes  *IncomeService
	logger   *log.Logger
	now      func() time.Time
}

func NewDashboardService(events *EventService, budget *BudgetService, expenses *ExpenseService, incomes *IncomeService, logger *log.Logger) *DashboardService {
	return &DashboardService{
		events:   events,
		budget:   budget,
		expenses: expenses,
		incomes:  incomes,
		logger:   logger.WithComponent(log.ComponentDashboard),
		now:      time.Now,
	}
}

type snapshot struct {
	events     []core.Event
	categories []core.BudgetCategory
	expenses   []core.Expense
	incomes    []core.Income
}

// load reads the four collections concurrently.
func (s *DashboardService) load(ctx context.Context) (snapshot, error) {
	var snap snapshot
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		snap.events, err = s.events.List(ctx)
		return err
	})
	g.Go(func() (err error) {
		snap.categories, err = s.budget.List(ctx)
		return err
	})
	g.Go(func() (err error) {
		snap.expenses, err = s.expenses.List(ctx)
		return err
	})
	g.Go(func() (err error) {
		snap.incomes, err = s.incomes.List(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return snapshot{}, fmt.Errorf("load dashboard data: %w", err)
	}
	return snap, nil
}

func (s *DashboardService) Summary(ctx context.Context, period core.Period) (core.DashboardSummary, error) {
	snap, err := s.load(ctx)
	if err != nil {
		return core.DashboardSummary{}, err
	}
	summary := BuildDashboard(period, s.now(), snap.categories, snap.expenses, snap.incomes)
	s.logger.DebugContext(ctx, "Dashboard computed", log.FieldPeriod, string(period), "pending", summary.PendingCount)
	return summary, nil
}

func (s *DashboardService) EventBudget(ctx context.Context, eventID int64) (core.EventBudget, error) {
	ev, err := s.events.Get(ctx, eventID)
	if err != nil {
		return core.EventBudget{}, err
	}
	cats, err := s.budget.ListByEvent(ctx, eventID)
	if err != nil {
		return core.EventBudget{}, err
	}
	return BuildEventBudget(ev, cats), nil
}

// EventBudgets returns one budget card per event.
func (s *DashboardService) EventBudgets(ctx context.Context) ([]core.EventBudget, error) {
	snap, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.EventBudget, 0, len(snap.events))
	for _, ev := range snap.events {
		out = append(out, BuildEventBudget(ev, snap.categories))
	}
	return out, nil
}

func (s *DashboardService) Expenses(ctx context.Context, f ExpenseFilter) (core.ExpenseTable, error) {
	all, err := s.expenses.List(ctx)
	if err != nil {
		return core.ExpenseTable{}, err
	}
	return BuildExpenseTable(all, f), nil
}

func (s *DashboardService) Approvals(ctx context.Context, f ApprovalFilter) (core.ApprovalQueue, error) {
	g, gctx := errgroup.WithContext(ctx)
	var (
		expenses []core.Expense
		events   []core.Event
	)
	g.Go(func() (err error) {
		expenses, err = s.expenses.List(gctx)
		return err
	})
	g.Go(func() (err error) {
		events, err = s.events.List(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.ApprovalQueue{}, err
	}
	return BuildApprovalQueue(expenses, events, f), nil
}

func (s *DashboardService) Incomes(ctx context.Context, f IncomeFilter) (core.IncomeTable, error) {
	all, err := s.incomes.List(ctx)
	if err != nil {
		return core.IncomeTable{}, err
	}
	return BuildIncomeTable(all, f), nil
}
