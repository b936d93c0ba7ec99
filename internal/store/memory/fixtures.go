package memory

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"eventfin/internal/core"
)

//go:embed fixtures.toml
var bundledFixtures []byte

// Fixtures is a complete seed data set. Category spend is derived from the
// approved expenses, so a loaded set always satisfies the spend invariant.
type Fixtures struct {
	Events     []core.Event
	Categories []core.BudgetCategory
	Expenses   []core.Expense
	Incomes    []core.Income
}

type fixtureFile struct {
	Events []struct {
		ID     int64  `toml:"id"`
		Name   string `toml:"name"`
		Date   string `toml:"date"`
		Type   string `toml:"type"`
		Venue  string `toml:"venue"`
		Budget string `toml:"budget"`
		Status string `toml:"status"`
	} `toml:"events"`
	Categories []struct {
		ID       int64  `toml:"id"`
		EventID  int64  `toml:"event_id"`
		Name     string `toml:"name"`
		Assigned string `toml:"assigned"`
	} `toml:"categories"`
	Expenses []struct {
		ID         int64  `toml:"id"`
		EventID    int64  `toml:"event_id"`
		CategoryID int64  `toml:"category_id"`
		Concept    string `toml:"concept"`
		Provider   string `toml:"provider"`
		Amount     string `toml:"amount"`
		Date       string `toml:"date"`
		Type       string `toml:"type"`
		Status     string `toml:"status"`
		Comment    string `toml:"comment"`
	} `toml:"expenses"`
	Incomes []struct {
		ID          int64  `toml:"id"`
		EventID     int64  `toml:"event_id"`
		Source      string `toml:"source"`
		Amount      string `toml:"amount"`
		Date        string `toml:"date"`
		Description string `toml:"description"`
	} `toml:"incomes"`
}

// LoadFixtures reads fixtures from path, or the bundled set when path is empty.
func LoadFixtures(path string) (*Fixtures, error) {
	if path == "" {
		return ParseFixtures(bundledFixtures)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	return ParseFixtures(data)
}

func ParseFixtures(data []byte) (*Fixtures, error) {
	var raw fixtureFile
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}

	f := &Fixtures{}
	events := map[int64]bool{}
	for _, r := range raw.Events {
		ev := core.Event{ID: r.ID, Name: r.Name, Type: r.Type, Venue: r.Venue, Status: core.EventStatus(r.Status)}
		var err error
		if ev.Date, err = core.ParseDate(r.Date); err != nil {
			return nil, fixtureErr("event", r.ID, err)
		}
		if ev.TotalBudget.Cents, err = core.ParseDecimalToCents(r.Budget); err != nil {
			return nil, fixtureErr("event", r.ID, err)
		}
		if err := ev.Validate(); err != nil {
			return nil, fixtureErr("event", r.ID, err)
		}
		events[ev.ID] = true
		f.Events = append(f.Events, ev)
	}

	owners := map[int64]int64{}
	for _, r := range raw.Categories {
		if !events[r.EventID] {
			return nil, fixtureErr("category", r.ID, core.NotFound("event", r.EventID))
		}
		cat := core.BudgetCategory{ID: r.ID, EventID: r.EventID, Name: r.Name}
		var err error
		if cat.Assigned.Cents, err = core.ParseDecimalToCents(r.Assigned); err != nil {
			return nil, fixtureErr("category", r.ID, err)
		}
		if err := cat.Validate(); err != nil {
			return nil, fixtureErr("category", r.ID, err)
		}
		owners[cat.ID] = cat.EventID
		f.Categories = append(f.Categories, cat)
	}

	spent := map[int64]core.Money{}
	for _, r := range raw.Expenses {
		if owner, ok := owners[r.CategoryID]; !ok || owner != r.EventID {
			return nil, fixtureErr("expense", r.ID, core.ErrCategoryMismatch)
		}
		exp := core.Expense{
			ID:          r.ID,
			EventID:     r.EventID,
			CategoryID:  r.CategoryID,
			Concept:     r.Concept,
			Provider:    r.Provider,
			Type:        core.ExpenseType(r.Type),
			Status:      core.ExpenseStatus(r.Status),
			Comment:     r.Comment,
			SubmittedBy: core.DefaultSubmitter,
		}
		var err error
		if exp.Date, err = core.ParseDate(r.Date); err != nil {
			return nil, fixtureErr("expense", r.ID, err)
		}
		if exp.Amount.Cents, err = core.ParseDecimalToCents(r.Amount); err != nil {
			return nil, fixtureErr("expense", r.ID, err)
		}
		if err := exp.Validate(); err != nil {
			return nil, fixtureErr("expense", r.ID, err)
		}
		if exp.Status == core.ExpenseApproved {
			spent[exp.CategoryID] = spent[exp.CategoryID].Add(exp.Amount)
		}
		f.Expenses = append(f.Expenses, exp)
	}
	for i := range f.Categories {
		f.Categories[i].Spent = spent[f.Categories[i].ID]
	}

	for _, r := range raw.Incomes {
		if !events[r.EventID] {
			return nil, fixtureErr("income", r.ID, core.NotFound("event", r.EventID))
		}
		in := core.Income{ID: r.ID, EventID: r.EventID, Source: core.IncomeSource(r.Source), Description: r.Description}
		var err error
		if in.Date, err = core.ParseDate(r.Date); err != nil {
			return nil, fixtureErr("income", r.ID, err)
		}
		if in.Amount.Cents, err = core.ParseDecimalToCents(r.Amount); err != nil {
			return nil, fixtureErr("income", r.ID, err)
		}
		if err := in.Validate(); err != nil {
			return nil, fixtureErr("income", r.ID, err)
		}
		f.Incomes = append(f.Incomes, in)
	}
	return f, nil
}

func fixtureErr(entity string, id int64, err error) error {
	return fmt.Errorf("fixture %s %d: %w", entity, id, err)
}
