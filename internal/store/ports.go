// Package store declares the repository ports shared by the memory and
// SQLite backends.
package store

import (
	"context"

	"eventfin/internal/core"
)

// Entity is a record whose identifier is assigned by a repository.
type Entity[T any] interface {
	Identity() int64
	WithID(id int64) T
	// Clone returns a copy sharing no pointers with the receiver.
	Clone() T
}

// Repository is an owned collection of records of one entity.
//
// Implementations return copies, never references into their storage, and
// report missing ids with an error wrapping core.ErrNotFound.
type Repository[T any] interface {
	List(ctx context.Context) ([]T, error)
	Get(ctx context.Context, id int64) (T, error)
	// Insert assigns a fresh id, greater than any id ever handed out.
	Insert(ctx context.Context, item T) (T, error)
	// Update applies fn to the stored record atomically. If fn returns an
	// error nothing is written. The id cannot be changed by fn.
	Update(ctx context.Context, id int64, fn func(*T) error) (T, error)
	Remove(ctx context.Context, id int64) error
}

type (
	EventRepository   = Repository[core.Event]
	ExpenseRepository = Repository[core.Expense]
	IncomeRepository  = Repository[core.Income]

	CategoryRepository interface {
		Repository[core.BudgetCategory]
		// AddSpend increments the accumulated spend in a single atomic step.
		AddSpend(ctx context.Context, id int64, amount core.Money) (core.BudgetCategory, error)
	}
)

// Stores groups the repositories of one backend.
type Stores struct {
	Events     EventRepository
	Categories CategoryRepository
	Expenses   ExpenseRepository
	Incomes    IncomeRepository
}
