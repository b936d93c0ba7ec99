package services

import (
	"context"
	"fmt"

	"eventfin/internal/core"
	"eventfin/internal/log"
	"eventfin/internal/store"
)

// CategoryPatch may only touch the name and the assigned amount; spend is
// owned by the approval workflow.
type CategoryPatch struct {
	Name     *string     `json:"name"`
	Assigned *core.Money `json:"assigned"`
}

// BudgetService manages budget categories. It holds the event repository
// only to check ownership on create.
type BudgetService struct {
	categories store.CategoryRepository
	events     store.EventRepository
	latency    Latency
	logger     *log.Logger
}

// NewBudgetService returns a service over categories and events.
func NewBudgetService(categories store.CategoryRepository, events store.EventRepository, latency Latency, logger *log.Logger) *BudgetService {
	return &BudgetService{
		categories: categories,
		events:     events,
		latency:    latency,
		logger:     logger.WithComponent(log.ComponentBudget),
	}
}

// List returns every category across all events.
func (s *BudgetService) List(ctx context.Context) ([]core.BudgetCategory, error) {
	if err := sleep(ctx, s.latency.List); err != nil {
		return nil, err
	}
	return s.categories.List(ctx)
}

// Get returns the category with id or store.ErrNotFound.
func (s *BudgetService) Get(ctx context.Context, id int64) (core.BudgetCategory, error) {
	if err := sleep(ctx, s.latency.Get); err != nil {
		return core.BudgetCategory{}, err
	}
	return s.categories.Get(ctx, id)
}

// ListByEvent returns the categories owned by eventID. An unknown event
// yields an empty slice.
func (s *BudgetService) ListByEvent(ctx context.Context, eventID int64) ([]core.BudgetCategory, error) {
	if err := sleep(ctx, s.latency.Get); err != nil {
		return nil, err
	}
	all, err := s.categories.List(ctx)
	if err != nil {
		return nil, err
	}
	return filter(all, func(c core.BudgetCategory) bool { return c.EventID == eventID }), nil
}

// Create stores a category for an existing event, with zero spend.
func (s *BudgetService) Create(ctx context.Context, c core.BudgetCategory) (core.BudgetCategory, error) {
	if err := sleep(ctx, s.latency.Create); err != nil {
		return core.BudgetCategory{}, err
	}
	c.ID = 0
	c.Spent = core.Money{}
	if err := c.Validate(); err != nil {
		return core.BudgetCategory{}, err
	}
	if _, err := s.events.Get(ctx, c.EventID); err != nil {
		return core.BudgetCategory{}, fmt.Errorf("create category: %w", err)
	}
	created, err := s.categories.Insert(ctx, c)
	if err != nil {
		return core.BudgetCategory{}, fmt.Errorf("create category: %w", err)
	}
	s.logger.InfoContext(ctx, "Category created",
		log.FieldCategoryID, created.ID, log.FieldEventID, created.EventID, "assigned_cents", created.Assigned.Cents)
	return created, nil
}

// Update renames the category or changes its assigned amount.
func (s *BudgetService) Update(ctx context.Context, id int64, patch CategoryPatch) (core.BudgetCategory, error) {
	if err := sleep(ctx, s.latency.Update); err != nil {
		return core.BudgetCategory{}, err
	}
	return s.categories.Update(ctx, id, func(c *core.BudgetCategory) error {
		if patch.Name != nil {
			c.Name = *patch.Name
		}
		if patch.Assigned != nil {
			c.Assigned = *patch.Assigned
		}
		return c.Validate()
	})
}

// Delete removes the category. Expenses pointing at it are kept.
func (s *BudgetService) Delete(ctx context.Context, id int64) error {
	if err := sleep(ctx, s.latency.Delete); err != nil {
		return err
	}
	return s.categories.Remove(ctx, id)
}

// AddSpend adds amount to the category's accumulated spend. Overspending is
// allowed and shows up as an "over" flag in the views.
func (s *BudgetService) AddSpend(ctx context.Context, id int64, amount core.Money) (core.BudgetCategory, error) {
	if err := sleep(ctx, s.latency.AddSpend); err != nil {
		return core.BudgetCategory{}, err
	}
	if err := amount.Validate(); err != nil {
		return core.BudgetCategory{}, core.Invalid("amount", err)
	}
	cat, err := s.categories.AddSpend(ctx, id, amount)
	if err != nil {
		return core.BudgetCategory{}, err
	}
	s.logger.InfoContext(ctx, "Spend added",
		log.FieldCategoryID, id, log.FieldAmountCents, amount.Cents, "spent_cents", cat.Spent.Cents)
	if flag := core.UsageFlagFor(cat.Spent, cat.Assigned); flag != core.UsageOK {
		s.logger.WarnContext(ctx, "Category budget usage high",
			log.FieldCategoryID, id, "flag", string(flag), "usage_percent", core.Percent(cat.Spent, cat.Assigned))
	}
	return cat, nil
}

func filter[T any](items []T, keep func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}
