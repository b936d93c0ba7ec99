package services

import (
	"context"
	"fmt"

	"eventfin/internal/core"
	"eventfin/internal/log"
)

// Reconciler compares each category's recorded spend with the sum of its
// approved expenses.
type Reconciler struct {
	expenses *ExpenseService
	budget   *BudgetService
	logger   *log.Logger
}

func NewReconciler(expenses *ExpenseService, budget *BudgetService, logger *log.Logger) *Reconciler {
	return &Reconciler{expenses: expenses, budget: budget, logger: logger.WithComponent(log.ComponentReconcile)}
}

// Check reports every category whose recorded spend has drifted.
func (r *Reconciler) Check(ctx context.Context) ([]core.SpendDrift, error) {
	r.expenses.decide.Lock()
	defer r.expenses.decide.Unlock()
	return r.drifts(ctx)
}

// Fix rewrites drifted spend to the computed value and returns what it repaired.
func (r *Reconciler) Fix(ctx context.Context) ([]core.SpendDrift, error) {
	r.expenses.decide.Lock()
	defer r.expenses.decide.Unlock()

	drifts, err := r.drifts(ctx)
	if err != nil {
		return nil, err
	}
	for _, d := range drifts {
		_, err := r.budget.categories.Update(ctx, d.CategoryID, func(c *core.BudgetCategory) error {
			c.Spent = d.Computed
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("fix category %d: %w", d.CategoryID, err)
		}
		r.logger.WarnContext(ctx, "Category spend repaired",
			log.FieldCategoryID, d.CategoryID,
			"recorded_cents", d.Recorded.Cents,
			"computed_cents", d.Computed.Cents)
	}
	return drifts, nil
}

func (r *Reconciler) drifts(ctx context.Context) ([]core.SpendDrift, error) {
	cats, err := r.budget.categories.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	expenses, err := r.expenses.expenses.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}

	computed := ComputeSpend(expenses)
	drifts := []core.SpendDrift{}
	for _, c := range cats {
		if want := computed[c.ID]; want != c.Spent {
			drifts = append(drifts, core.SpendDrift{
				CategoryID: c.ID,
				EventID:    c.EventID,
				Name:       c.Name,
				Recorded:   c.Spent,
				Computed:   want,
			})
		}
	}
	r.logger.DebugContext(ctx, "Reconciliation checked", "categories", len(cats), log.FieldCount, len(drifts))
	return drifts, nil
}

// ComputeSpend sums approved expense amounts per category id.
func ComputeSpend(expenses []core.Expense) map[int64]core.Money {
	out := map[int64]core.Money{}
	for _, e := range expenses {
		if e.Status == core.ExpenseApproved {
			out[e.CategoryID] = out[e.CategoryID].Add(e.Amount)
		}
	}
	return out
}
