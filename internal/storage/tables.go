package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"eventfin/internal/core"
	"eventfin/internal/store"
)

type scanner interface {
	Scan(dest ...any) error
}

// table maps one entity onto one SQL table. The first column is always the
// AUTOINCREMENT id, so deleted ids are never handed out again.
type table[T store.Entity[T]] struct {
	db      *sql.DB
	entity  string
	name    string
	columns []string
	scan    func(scanner) (T, error)
	args    func(T) []any

	selectSQL string
	insertSQL string
	updateSQL string
}

func newTable[T store.Entity[T]](db *sql.DB, entity, name string, columns []string, scan func(scanner) (T, error), args func(T) []any) *table[T] {
	sets := make([]string, len(columns))
	for i, c := range columns {
		sets[i] = c + " = ?"
	}
	return &table[T]{
		db:        db,
		entity:    entity,
		name:      name,
		columns:   columns,
		scan:      scan,
		args:      args,
		selectSQL: fmt.Sprintf("SELECT id, %s FROM %s", strings.Join(columns, ", "), name),
		insertSQL: fmt.Sprintf("INSERT INTO %s (%s) VALUES (?%s)", name, strings.Join(columns, ", "), strings.Repeat(", ?", len(columns)-1)),
		updateSQL: fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", name, strings.Join(sets, ", ")),
	}
}

func (t *table[T]) returning() string {
	return "id, " + strings.Join(t.columns, ", ")
}

func (t *table[T]) List(ctx context.Context) ([]T, error) {
	rows, err := t.db.QueryContext(ctx, t.selectSQL+" ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", t.name, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		item, err := t.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", t.entity, err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", t.name, err)
	}
	return out, nil
}

func (t *table[T]) Get(ctx context.Context, id int64) (T, error) {
	item, err := t.scan(t.db.QueryRowContext(ctx, t.selectSQL+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return item, core.NotFound(t.entity, id)
	}
	if err != nil {
		return item, fmt.Errorf("get %s %d: %w", t.entity, id, err)
	}
	return item, nil
}

func (t *table[T]) Insert(ctx context.Context, item T) (T, error) {
	res, err := t.db.ExecContext(ctx, t.insertSQL, t.args(item)...)
	if err != nil {
		return item, fmt.Errorf("insert %s: %w", t.entity, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return item, fmt.Errorf("insert %s: %w", t.entity, err)
	}
	return item.WithID(id), nil
}

func (t *table[T]) Update(ctx context.Context, id int64, fn func(*T) error) (T, error) {
	var zero T
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return zero, fmt.Errorf("begin update %s: %w", t.entity, err)
	}
	defer tx.Rollback()

	current, err := t.scan(tx.QueryRowContext(ctx, t.selectSQL+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return zero, core.NotFound(t.entity, id)
	}
	if err != nil {
		return zero, fmt.Errorf("get %s %d: %w", t.entity, id, err)
	}
	if err := fn(&current); err != nil {
		return zero, err
	}
	current = current.WithID(id)

	if _, err := tx.ExecContext(ctx, t.updateSQL, append(t.args(current), id)...); err != nil {
		return zero, fmt.Errorf("update %s %d: %w", t.entity, id, err)
	}
	if err := tx.Commit(); err != nil {
		return zero, fmt.Errorf("commit update %s %d: %w", t.entity, id, err)
	}
	return current, nil
}

func (t *table[T]) Remove(ctx context.Context, id int64) error {
	res, err := t.db.ExecContext(ctx, "DELETE FROM "+t.name+" WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete %s %d: %w", t.entity, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s %d: %w", t.entity, id, err)
	}
	if n == 0 {
		return core.NotFound(t.entity, id)
	}
	return nil
}

func newEventTable(db *sql.DB) *table[core.Event] {
	return newTable(db, "event", "events",
		[]string{"name", "event_date", "type", "venue", "total_budget_cents", "status"},
		func(s scanner) (core.Event, error) {
			var (
				e    core.Event
				date string
			)
			if err := s.Scan(&e.ID, &e.Name, &date, &e.Type, &e.Venue, &e.TotalBudget.Cents, &e.Status); err != nil {
				return e, err
			}
			return e, parseDate(date, &e.Date)
		},
		func(e core.Event) []any {
			return []any{e.Name, e.Date.String(), e.Type, e.Venue, e.TotalBudget.Cents, string(e.Status)}
		})
}

func newCategoryTable(db *sql.DB) *table[core.BudgetCategory] {
	return newTable(db, "category", "budget_categories",
		[]string{"event_id", "name", "assigned_cents", "spent_cents"},
		func(s scanner) (core.BudgetCategory, error) {
			var c core.BudgetCategory
			err := s.Scan(&c.ID, &c.EventID, &c.Name, &c.Assigned.Cents, &c.Spent.Cents)
			return c, err
		},
		func(c core.BudgetCategory) []any {
			return []any{c.EventID, c.Name, c.Assigned.Cents, c.Spent.Cents}
		})
}

func newExpenseTable(db *sql.DB) *table[core.Expense] {
	return newTable(db, "expense", "expenses",
		[]string{"event_id", "category_id", "concept", "provider", "amount_cents", "expense_date",
			"type", "status", "ocr_json", "attachment_ref", "comment", "submitted_by", "decided_at"},
		func(s scanner) (core.Expense, error) {
			var (
				e         core.Expense
				date      string
				ocr       sql.NullString
				decidedAt sql.NullString
			)
			if err := s.Scan(&e.ID, &e.EventID, &e.CategoryID, &e.Concept, &e.Provider, &e.Amount.Cents, &date,
				&e.Type, &e.Status, &ocr, &e.AttachmentRef, &e.Comment, &e.SubmittedBy, &decidedAt); err != nil {
				return e, err
			}
			if err := parseDate(date, &e.Date); err != nil {
				return e, err
			}
			if ocr.Valid && ocr.String != "" {
				e.OCR = &core.OCRData{}
				if err := json.Unmarshal([]byte(ocr.String), e.OCR); err != nil {
					return e, fmt.Errorf("decode ocr data: %w", err)
				}
			}
			if decidedAt.Valid && decidedAt.String != "" {
				ts, err := time.Parse(time.RFC3339Nano, decidedAt.String)
				if err != nil {
					return e, fmt.Errorf("decode decided_at: %w", err)
				}
				e.DecidedAt = &ts
			}
			return e, nil
		},
		func(e core.Expense) []any {
			var ocr, decidedAt sql.NullString
			if e.OCR != nil {
				if b, err := json.Marshal(e.OCR); err == nil {
					ocr = sql.NullString{String: string(b), Valid: true}
				}
			}
			if e.DecidedAt != nil {
				decidedAt = sql.NullString{String: e.DecidedAt.UTC().Format(time.RFC3339Nano), Valid: true}
			}
			return []any{e.EventID, e.CategoryID, e.Concept, e.Provider, e.Amount.Cents, e.Date.String(),
				string(e.Type), string(e.Status), ocr, e.AttachmentRef, e.Comment, e.SubmittedBy, decidedAt}
		})
}

func newIncomeTable(db *sql.DB) *table[core.Income] {
	return newTable(db, "income", "incomes",
		[]string{"event_id", "source", "amount_cents", "income_date", "description"},
		func(s scanner) (core.Income, error) {
			var (
				in   core.Income
				date string
			)
			if err := s.Scan(&in.ID, &in.EventID, &in.Source, &in.Amount.Cents, &date, &in.Description); err != nil {
				return in, err
			}
			return in, parseDate(date, &in.Date)
		},
		func(in core.Income) []any {
			return []any{in.EventID, string(in.Source), in.Amount.Cents, in.Date.String(), in.Description}
		})
}

// categoryTable adds the atomic spend increment.
type categoryTable struct {
	*table[core.BudgetCategory]
}

func (c categoryTable) AddSpend(ctx context.Context, id int64, amount core.Money) (core.BudgetCategory, error) {
	return c.Update(ctx, id, func(cat *core.BudgetCategory) error {
		return cat.AddSpend(amount)
	})
}

func parseDate(s string, dst *core.Date) error {
	d, err := core.ParseDate(s)
	if err != nil {
		return fmt.Errorf("decode date %q: %w", s, err)
	}
	*dst = d
	return nil
}
