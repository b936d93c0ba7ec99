// Package storage persists every entity in a SQLite database.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"eventfin/internal/core"
	"eventfin/internal/store"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB

	events     *table[core.Event]
	categories categoryTable
	expenses   *table[core.Expense]
	incomes    *table[core.Income]
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if _, err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One connection serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{
		db:         db,
		events:     newEventTable(db),
		categories: categoryTable{newCategoryTable(db)},
		expenses:   newExpenseTable(db),
		incomes:    newIncomeTable(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Stores exposes the tables through the repository ports.
func (r *SQLiteRepository) Stores() store.Stores {
	return store.Stores{
		Events:     r.events,
		Categories: r.categories,
		Expenses:   r.expenses,
		Incomes:    r.incomes,
	}
}
