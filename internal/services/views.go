package services

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"eventfin/internal/core"
)

const dashboardListSize = 5

// ExpenseSort names a sortable expense column.
type ExpenseSort string

const (
	SortByDate     ExpenseSort = "date"
	SortByAmount   ExpenseSort = "amount"
	SortByConcept  ExpenseSort = "concept"
	SortByProvider ExpenseSort = "provider"
	SortByType     ExpenseSort = "type"
	SortByStatus   ExpenseSort = "status"
)

func ParseExpenseSort(s string) (ExpenseSort, error) {
	switch v := ExpenseSort(strings.ToLower(s)); v {
	case "":
		return SortByDate, nil
	case SortByDate, SortByAmount, SortByConcept, SortByProvider, SortByType, SortByStatus:
		return v, nil
	}
	return "", core.Invalid("sort", fmt.Errorf("cannot sort by %q", s))
}

// ExpenseFilter selects and orders rows of the expense table. Zero values
// mean "any"; the default order is newest first.
type ExpenseFilter struct {
	Query     string
	Status    core.ExpenseStatus
	EventID   int64
	Sort      ExpenseSort
	Ascending bool
}

type ApprovalFilter struct {
	Query   string
	EventID int64
}

type IncomeFilter struct {
	Query   string
	EventID int64
	Source  core.IncomeSource
}

// BuildExpenseTable filters and sorts expenses. Status counters and the
// approved total always cover every expense, not just the filtered rows.
func BuildExpenseTable(expenses []core.Expense, f ExpenseFilter) core.ExpenseTable {
	var t core.ExpenseTable
	rows := make([]core.Expense, 0, len(expenses))
	for _, e := range expenses {
		switch e.Status {
		case core.ExpensePending:
			t.PendingCount++
		case core.ExpenseApproved:
			t.ApprovedCount++
			t.ApprovedTotal = t.ApprovedTotal.Add(e.Amount)
		case core.ExpenseRejected:
			t.RejectedCount++
		}
		if f.Status != "" && e.Status != f.Status {
			continue
		}
		if f.EventID != 0 && e.EventID != f.EventID {
			continue
		}
		if !matchesExpense(e, f.Query) {
			continue
		}
		rows = append(rows, e)
	}
	sortExpenses(rows, f.Sort, f.Ascending)
	t.Expenses = rows
	return t
}

func BuildApprovalQueue(expenses []core.Expense, events []core.Event, f ApprovalFilter) core.ApprovalQueue {
	q := core.ApprovalQueue{ByType: map[core.ExpenseType]int{}, Expenses: []core.Expense{}}
	for _, e := range expenses {
		if e.Status != core.ExpensePending {
			continue
		}
		if f.EventID != 0 && e.EventID != f.EventID {
			continue
		}
		if !matchesExpense(e, f.Query) {
			continue
		}
		q.Expenses = append(q.Expenses, e)
		q.TotalPending = q.TotalPending.Add(e.Amount)
		q.ByType[e.Type]++
	}
	if n := len(q.Expenses); n > 0 {
		q.AveragePending = core.Money{Cents: q.TotalPending.Decimal().Div(decimal.NewFromInt(int64(n))).Shift(2).Round(0).IntPart()}
	}
	for _, ev := range events {
		if ev.Status == core.EventActive {
			q.ActiveEvents++
		}
	}
	return q
}

func BuildIncomeTable(incomes []core.Income, f IncomeFilter) core.IncomeTable {
	t := core.IncomeTable{BySource: map[core.IncomeSource]core.Money{}, Incomes: []core.Income{}}
	query := strings.ToLower(strings.TrimSpace(f.Query))
	for _, in := range incomes {
		if f.EventID != 0 && in.EventID != f.EventID {
			continue
		}
		if f.Source != "" && in.Source != f.Source {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(in.Description), query) {
			continue
		}
		t.Incomes = append(t.Incomes, in)
		t.Total = t.Total.Add(in.Amount)
		t.BySource[in.Source] = t.BySource[in.Source].Add(in.Amount)
	}
	slices.SortStableFunc(t.Incomes, func(a, b core.Income) int {
		return cmp.Or(b.Date.Compare(a.Date.Time), cmp.Compare(a.ID, b.ID))
	})
	return t
}

// BuildEventBudget summarizes the categories belonging to ev.
func BuildEventBudget(ev core.Event, categories []core.BudgetCategory) core.EventBudget {
	b := core.EventBudget{Event: ev, Categories: []core.CategoryUsage{}}
	for _, c := range categories {
		if c.EventID != ev.ID {
			continue
		}
		b.Assigned = b.Assigned.Add(c.Assigned)
		b.Spent = b.Spent.Add(c.Spent)
		b.Categories = append(b.Categories, core.CategoryUsage{
			Category:     c,
			Remaining:    c.Assigned.Sub(c.Spent),
			UsagePercent: core.Percent(c.Spent, c.Assigned),
			Flag:         core.UsageFlagFor(c.Spent, c.Assigned),
		})
	}
	b.Remaining = b.Assigned.Sub(b.Spent)
	b.UsagePercent = core.Percent(b.Spent, b.Assigned)
	b.Flag = core.UsageFlagFor(b.Spent, b.Assigned)
	return b
}

// BuildDashboard computes the dashboard metrics for period. Period applies to
// income and expense records; the budget total and the pending queue always
// cover everything.
func BuildDashboard(period core.Period, now time.Time, categories []core.BudgetCategory, expenses []core.Expense, incomes []core.Income) core.DashboardSummary {
	d := core.DashboardSummary{
		Period:  period,
		Pending: []core.Expense{},
		Recent:  []core.Expense{},
		Monthly: make([]core.MonthlyPoint, 12),
	}
	for i := range d.Monthly {
		d.Monthly[i].Month = i + 1
	}

	for _, c := range categories {
		d.TotalBudget = d.TotalBudget.Add(c.Assigned)
	}

	for _, in := range incomes {
		if !period.Contains(in.Date, now) {
			continue
		}
		d.TotalIncome = d.TotalIncome.Add(in.Amount)
		m := &d.Monthly[in.Date.Month()-1]
		m.Income = m.Income.Add(in.Amount)
	}

	var inPeriod []core.Expense
	for _, e := range expenses {
		if e.Status == core.ExpensePending {
			d.PendingCount++
			if len(d.Pending) < dashboardListSize {
				d.Pending = append(d.Pending, e)
			}
		}
		if !period.Contains(e.Date, now) {
			continue
		}
		inPeriod = append(inPeriod, e)
		// The chart series counts every status.
		m := &d.Monthly[e.Date.Month()-1]
		m.Expenses = m.Expenses.Add(e.Amount)
		if e.Status == core.ExpenseApproved {
			d.TotalExpenses = d.TotalExpenses.Add(e.Amount)
		}
	}

	d.Available = d.TotalBudget.Sub(d.TotalExpenses)
	d.ROI = roi(d.TotalIncome, d.TotalExpenses)

	sortExpenses(inPeriod, SortByDate, false)
	if len(inPeriod) > dashboardListSize {
		inPeriod = inPeriod[:dashboardListSize]
	}
	d.Recent = append(d.Recent, inPeriod...)
	return d
}

// roi is (income - expenses) / income * 100 rounded to one decimal, or 0
// without income.
func roi(income, expenses core.Money) float64 {
	if income.Cents == 0 {
		return 0
	}
	return decimal.NewFromInt(income.Cents - expenses.Cents).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(income.Cents)).
		Round(1).
		InexactFloat64()
}

func matchesExpense(e core.Expense, query string) bool {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(e.Concept), query) ||
		strings.Contains(strings.ToLower(e.Provider), query)
}

func sortExpenses(rows []core.Expense, by ExpenseSort, ascending bool) {
	slices.SortStableFunc(rows, func(a, b core.Expense) int {
		var c int
		switch by {
		case SortByAmount:
			c = cmp.Compare(a.Amount.Cents, b.Amount.Cents)
		case SortByConcept:
			c = strings.Compare(strings.ToLower(a.Concept), strings.ToLower(b.Concept))
		case SortByProvider:
			c = strings.Compare(strings.ToLower(a.Provider), strings.ToLower(b.Provider))
		case SortByType:
			c = strings.Compare(string(a.Type), string(b.Type))
		case SortByStatus:
			c = strings.Compare(string(a.Status), string(b.Status))
		default:
			c = a.Date.Compare(b.Date.Time)
		}
		if !ascending {
			c = -c
		}
		// Ties keep id order regardless of direction.
		return cmp.Or(c, cmp.Compare(a.ID, b.ID))
	})
}
