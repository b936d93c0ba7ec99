package core

import (
	"fmt"
	"time"
)

// Period restricts dashboard aggregates to a window of dates.
type Period string

const (
	PeriodAll       Period = "all"
	PeriodThisMonth Period = "thisMonth"
	PeriodLastMonth Period = "lastMonth"
	PeriodThisYear  Period = "thisYear"
)

func ParsePeriod(s string) (Period, error) {
	switch p := Period(s); p {
	case "":
		return PeriodAll, nil
	case PeriodAll, PeriodThisMonth, PeriodLastMonth, PeriodThisYear:
		return p, nil
	}
	return "", invalid("period", fmt.Errorf("unknown period %q", s))
}

// Contains reports whether d falls inside the period relative to now.
func (p Period) Contains(d Date, now time.Time) bool {
	switch p {
	case PeriodThisMonth:
		return d.Year() == now.Year() && d.Month() == now.Month()
	case PeriodLastMonth:
		last := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
		return d.Year() == last.Year() && d.Month() == last.Month()
	case PeriodThisYear:
		return d.Year() == now.Year()
	}
	return true
}

// UsageFlag classifies how much of an allocation has been spent.
type UsageFlag string

const (
	UsageOK      UsageFlag = "ok"
	UsageWarning UsageFlag = "warning"
	UsageOver    UsageFlag = "over"
)

// WarningPercent is the usage above which a budget is flagged.
const WarningPercent = 90.0

func UsageFlagFor(spent, assigned Money) UsageFlag {
	if assigned.Cents <= 0 {
		if spent.Cents > 0 {
			return UsageOver
		}
		return UsageOK
	}
	pct := Percent(spent, assigned)
	switch {
	case spent.Cents > assigned.Cents:
		return UsageOver
	case pct > WarningPercent:
		return UsageWarning
	}
	return UsageOK
}

// MonthlyPoint is one calendar-month bucket of the income/expense series.
type MonthlyPoint struct {
	Month    int   `json:"month"` // 1-12
	Income   Money `json:"income"`
	Expenses Money `json:"expenses"`
}

type DashboardSummary struct {
	Period        Period         `json:"period"`
	TotalIncome   Money          `json:"total_income"`
	TotalExpenses Money          `json:"total_expenses"`
	TotalBudget   Money          `json:"total_budget"`
	Available     Money          `json:"available"`
	ROI           float64        `json:"roi_percent"`
	PendingCount  int            `json:"pending_count"`
	Pending       []Expense      `json:"pending"`
	Recent        []Expense      `json:"recent"`
	Monthly       []MonthlyPoint `json:"monthly"`
}

type CategoryUsage struct {
	Category     BudgetCategory `json:"category"`
	Remaining    Money          `json:"remaining"`
	UsagePercent float64        `json:"usage_percent"`
	Flag         UsageFlag      `json:"flag"`
}

// EventBudget is the per-event budget card.
type EventBudget struct {
	Event        Event           `json:"event"`
	Assigned     Money           `json:"assigned"`
	Spent        Money           `json:"spent"`
	Remaining    Money           `json:"remaining"`
	UsagePercent float64         `json:"usage_percent"`
	Flag         UsageFlag       `json:"flag"`
	Categories   []CategoryUsage `json:"categories"`
}

type ExpenseTable struct {
	Expenses      []Expense `json:"expenses"`
	PendingCount  int       `json:"pending_count"`
	ApprovedCount int       `json:"approved_count"`
	RejectedCount int       `json:"rejected_count"`
	ApprovedTotal Money     `json:"approved_total"`
}

type ApprovalQueue struct {
	Expenses       []Expense           `json:"expenses"`
	TotalPending   Money               `json:"total_pending"`
	AveragePending Money               `json:"average_pending"`
	ByType         map[ExpenseType]int `json:"by_type"`
	ActiveEvents   int                 `json:"active_events"`
}

type IncomeTable struct {
	Incomes  []Income               `json:"incomes"`
	Total    Money                  `json:"total"`
	BySource map[IncomeSource]Money `json:"by_source"`
}

// SpendDrift reports a category whose recorded spend disagrees with
// the sum of its approved expenses.
type SpendDrift struct {
	CategoryID int64  `json:"category_id"`
	EventID    int64  `json:"event_id"`
	Name       string `json:"name"`
	Recorded   Money  `json:"recorded"`
	Computed   Money  `json:"computed"`
}

func (d SpendDrift) Delta() Money {
	return d.Computed.Sub(d.Recorded)
}
