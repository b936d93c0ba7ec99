package storage

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"eventfin/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "nested", "eventfin.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.db")
	v1, err := RunMigrations(path)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	v2, err := RunMigrations(path)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if v1 != 1 || v2 != 1 {
		t.Fatalf("unexpected versions %d %d", v1, v2)
	}
}

func TestEventCRUD(t *testing.T) {
	ctx := context.Background()
	s := newTestRepo(t).Stores()

	ev, err := s.Events.Insert(ctx, core.Event{
		Name: "Gala", Date: core.NewDate(2024, 9, 14), Type: "Gala", Venue: "Hotel",
		TotalBudget: core.Money{Cents: 8000000}, Status: core.EventPlanned,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if ev.ID != 1 {
		t.Fatalf("expected id 1, got %d", ev.ID)
	}

	got, err := s.Events.Get(ctx, ev.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != ev.Name || got.Date.String() != "2024-09-14" || got.TotalBudget != ev.TotalBudget || got.Status != core.EventPlanned {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, ev)
	}

	updated, err := s.Events.Update(ctx, ev.ID, func(e *core.Event) error {
		e.Status = core.EventActive
		return nil
	})
	if err != nil || updated.Status != core.EventActive {
		t.Fatalf("update: %+v %v", updated, err)
	}

	if err := s.Events.Remove(ctx, ev.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := s.Events.Get(ctx, ev.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.Events.Remove(ctx, ev.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second remove, got %v", err)
	}

	next, _ := s.Events.Insert(ctx, core.Event{Name: "Next", Date: core.NewDate(2024, 1, 1), Status: core.EventPlanned})
	if next.ID != 2 {
		t.Fatalf("deleted id was reused: %d", next.ID)
	}
}

func TestUpdateMutatorErrorRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newTestRepo(t).Stores()
	in, _ := s.Incomes.Insert(ctx, core.Income{EventID: 1, Source: core.SourceBar, Amount: core.Money{Cents: 500}, Date: core.NewDate(2024, 2, 1)})

	boom := errors.New("boom")
	_, err := s.Incomes.Update(ctx, in.ID, func(i *core.Income) error {
		i.Description = "lost"
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected mutator error, got %v", err)
	}
	got, _ := s.Incomes.Get(ctx, in.ID)
	if got.Description != "" {
		t.Fatalf("failed update was persisted: %+v", got)
	}
	if _, err := s.Incomes.Update(ctx, 42, func(*core.Income) error { return nil }); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestExpenseOptionalFieldsRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestRepo(t).Stores()
	decided := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

	exp, err := s.Expenses.Insert(ctx, core.Expense{
		EventID: 1, CategoryID: 2, Concept: "Sonido", Provider: "Audio Pro",
		Amount: core.Money{Cents: 123456}, Date: core.NewDate(2024, 4, 30),
		Type: core.ExpenseFees, Status: core.ExpenseApproved, Comment: "ok",
		SubmittedBy: core.DefaultSubmitter, AttachmentRef: "att_x",
		OCR:       &core.OCRData{Provider: "P", Amount: core.Money{Cents: 100}, Concept: "C", Date: core.NewDate(2024, 4, 29)},
		DecidedAt: &decided,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := s.Expenses.Get(ctx, exp.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.OCR == nil || got.OCR.Provider != "P" || got.OCR.Amount.Cents != 100 || !got.OCR.Date.Equal(exp.OCR.Date.Time) {
		t.Fatalf("ocr data lost: %+v", got.OCR)
	}
	if got.DecidedAt == nil || !got.DecidedAt.Equal(decided) {
		t.Fatalf("decided_at lost: %v", got.DecidedAt)
	}
	if got.Type != core.ExpenseFees || got.Status != core.ExpenseApproved || got.AttachmentRef != "att_x" {
		t.Fatalf("unexpected expense %+v", got)
	}

	plain, _ := s.Expenses.Insert(ctx, core.Expense{
		EventID: 1, CategoryID: 2, Concept: "x", Provider: "y", Amount: core.Money{Cents: 1},
		Date: core.NewDate(2024, 1, 1), Type: core.ExpenseNormal, Status: core.ExpensePending,
	})
	got, _ = s.Expenses.Get(ctx, plain.ID)
	if got.OCR != nil || got.DecidedAt != nil {
		t.Fatalf("expected empty optional fields, got %+v", got)
	}
}

func TestAddSpendIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := newTestRepo(t).Stores()
	cat, _ := s.Categories.Insert(ctx, core.BudgetCategory{EventID: 1, Name: "Catering", Assigned: core.Money{Cents: 100000}})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Categories.AddSpend(ctx, cat.ID, core.Money{Cents: 250}); err != nil {
				t.Errorf("add spend: %v", err)
			}
		}()
	}
	wg.Wait()

	got, _ := s.Categories.Get(ctx, cat.ID)
	if got.Spent.Cents != 20*250 {
		t.Fatalf("expected %d, got %d", 20*250, got.Spent.Cents)
	}
	if _, err := s.Categories.AddSpend(ctx, 999, core.Money{Cents: 1}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListOrdersByID(t *testing.T) {
	ctx := context.Background()
	s := newTestRepo(t).Stores()
	for _, name := range []string{"a", "b", "c"} {
		s.Categories.Insert(ctx, core.BudgetCategory{EventID: 1, Name: name, Assigned: core.Money{Cents: 1}})
	}
	list, err := s.Categories.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 || list[0].Name != "a" || list[2].ID != 3 {
		t.Fatalf("unexpected list %+v", list)
	}
}
