package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"eventfin/internal/amqp"
	"eventfin/internal/core"
	"eventfin/internal/log"
	"eventfin/internal/store"
	"eventfin/internal/store/memory"
)

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []*amqp.ExpenseDecision
	err  error
}

func (p *recordingPublisher) PublishDecision(_ context.Context, msg *amqp.ExpenseDecision) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return p.err
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.msgs)
}

// failingSpend wraps a category repository whose AddSpend always fails.
type failingSpend struct {
	store.CategoryRepository
}

func (failingSpend) AddSpend(context.Context, int64, core.Money) (core.BudgetCategory, error) {
	return core.BudgetCategory{}, errors.New("disk full")
}

type testEnv struct {
	mem        *memory.Store
	stores     store.Stores
	events     *EventService
	budget     *BudgetService
	expenses   *ExpenseService
	incomes    *IncomeService
	dashboard  *DashboardService
	reconciler *Reconciler
	publisher  *recordingPublisher
}

func newEnv(t *testing.T, fixtures bool) *testEnv {
	t.Helper()
	mem := memory.New()
	if fixtures {
		f, err := memory.LoadFixtures("")
		if err != nil {
			t.Fatalf("load fixtures: %v", err)
		}
		mem.Load(f)
	}
	return newEnvWith(mem, mem.Stores())
}

func newEnvWith(mem *memory.Store, stores store.Stores) *testEnv {
	logger := log.Discard()
	pub := &recordingPublisher{}
	events := NewEventService(stores.Events, Latency{}, logger)
	budget := NewBudgetService(stores.Categories, stores.Events, Latency{}, logger)
	expenses := NewExpenseService(stores.Expenses, stores.Events, budget, pub, Latency{}, logger)
	incomes := NewIncomeService(stores.Incomes, stores.Events, Latency{}, logger)
	return &testEnv{
		mem:        mem,
		stores:     stores,
		events:     events,
		budget:     budget,
		expenses:   expenses,
		incomes:    incomes,
		dashboard:  NewDashboardService(events, budget, expenses, incomes, logger),
		reconciler: NewReconciler(expenses, budget, logger),
		publisher:  pub,
	}
}

// seedCategory creates an event and a category with the given assigned cents.
func (e *testEnv) seedCategory(t *testing.T, assigned int64) (core.Event, core.BudgetCategory) {
	t.Helper()
	ctx := context.Background()
	ev, err := e.events.Create(ctx, core.Event{Name: "Gala", Date: core.NewDate(2024, 9, 14)})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	cat, err := e.budget.Create(ctx, core.BudgetCategory{EventID: ev.ID, Name: "Catering", Assigned: core.Money{Cents: assigned}})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	return ev, cat
}

func (e *testEnv) submit(t *testing.T, cat core.BudgetCategory, cents int64) core.Expense {
	t.Helper()
	exp, err := e.expenses.Create(context.Background(), core.Expense{
		EventID:    cat.EventID,
		CategoryID: cat.ID,
		Concept:    "Servicio",
		Provider:   "Proveedor",
		Amount:     core.Money{Cents: cents},
		Date:       core.NewDate(2024, 9, 1),
		Type:       core.ExpenseNormal,
	})
	if err != nil {
		t.Fatalf("create expense: %v", err)
	}
	return exp
}

func (e *testEnv) spent(t *testing.T, id int64) int64 {
	t.Helper()
	cat, err := e.stores.Categories.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get category: %v", err)
	}
	return cat.Spent.Cents
}
