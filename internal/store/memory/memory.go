// Package memory keeps every entity in process memory. State is lost on
// restart; this is the default backend.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"eventfin/internal/core"
	"eventfin/internal/store"
)

// Collection is a mutex-guarded, id-ordered slice of records.
type Collection[T store.Entity[T]] struct {
	mu     sync.RWMutex
	entity string
	lastID int64
	items  []T
}

func NewCollection[T store.Entity[T]](entity string) *Collection[T] {
	return &Collection[T]{entity: entity}
}

func (c *Collection[T]) List(_ context.Context) ([]T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]T, len(c.items))
	for i, item := range c.items {
		out[i] = item.Clone()
	}
	return out, nil
}

func (c *Collection[T]) Get(_ context.Context, id int64) (T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i := c.index(id)
	if i < 0 {
		var zero T
		return zero, core.NotFound(c.entity, id)
	}
	return c.items[i].Clone(), nil
}

func (c *Collection[T]) Insert(_ context.Context, item T) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastID++
	item = item.WithID(c.lastID)
	c.items = append(c.items, item.Clone())
	return item, nil
}

func (c *Collection[T]) Update(_ context.Context, id int64, fn func(*T) error) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	i := c.index(id)
	if i < 0 {
		return zero, core.NotFound(c.entity, id)
	}
	next := c.items[i].Clone()
	if err := fn(&next); err != nil {
		return zero, err
	}
	next = next.WithID(id)
	c.items[i] = next.Clone()
	return next, nil
}

func (c *Collection[T]) Remove(_ context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.index(id)
	if i < 0 {
		return core.NotFound(c.entity, id)
	}
	c.items = slices.Delete(c.items, i, i+1)
	return nil
}

// Restore puts records back with their own ids, as when loading fixtures.
// The id counter moves past the highest restored id.
func (c *Collection[T]) Restore(items ...T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, item := range items {
		id := item.Identity()
		item = item.Clone()
		if i := c.index(id); i >= 0 {
			c.items[i] = item
			continue
		}
		c.items = append(c.items, item)
		c.lastID = max(c.lastID, id)
	}
	slices.SortFunc(c.items, func(a, b T) int {
		return cmp.Compare(a.Identity(), b.Identity())
	})
}

// index must be called with the lock held.
func (c *Collection[T]) index(id int64) int {
	return slices.IndexFunc(c.items, func(item T) bool { return item.Identity() == id })
}

// Categories adds the atomic spend increment to the category collection.
type Categories struct {
	*Collection[core.BudgetCategory]
}

func (c Categories) AddSpend(ctx context.Context, id int64, amount core.Money) (core.BudgetCategory, error) {
	return c.Update(ctx, id, func(cat *core.BudgetCategory) error {
		return cat.AddSpend(amount)
	})
}

// Store holds one collection per entity.
type Store struct {
	Events     *Collection[core.Event]
	Categories Categories
	Expenses   *Collection[core.Expense]
	Incomes    *Collection[core.Income]
}

func New() *Store {
	return &Store{
		Events:     NewCollection[core.Event]("event"),
		Categories: Categories{NewCollection[core.BudgetCategory]("category")},
		Expenses:   NewCollection[core.Expense]("expense"),
		Incomes:    NewCollection[core.Income]("income"),
	}
}

func (s *Store) Stores() store.Stores {
	return store.Stores{
		Events:     s.Events,
		Categories: s.Categories,
		Expenses:   s.Expenses,
		Incomes:    s.Incomes,
	}
}

// Load restores a fixture set, keeping its ids.
func (s *Store) Load(f *Fixtures) {
	s.Events.Restore(f.Events...)
	s.Categories.Restore(f.Categories...)
	s.Expenses.Restore(f.Expenses...)
	s.Incomes.Restore(f.Incomes...)
}
