package cli

import (
	"strconv"

	"eventfin/internal/core"
)

// SummaryTable lays out the dashboard totals.
func SummaryTable(s core.DashboardSummary) Table {
	return Table{
		Title:   "Summary (" + string(s.Period) + ")",
		Headers: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Income", FormatMoney(s.TotalIncome)},
			{"Approved expenses", FormatMoney(s.TotalExpenses)},
			{"Budget", FormatMoney(s.TotalBudget)},
			{"Available", FormatMoney(s.Available)},
			{"ROI", FormatPercent(s.ROI)},
			{"Pending approvals", strconv.Itoa(s.PendingCount)},
		},
	}
}

// BudgetTable has one row per event budget card.
func BudgetTable(cards []core.EventBudget) Table {
	t := Table{
		Title:   "Events",
		Headers: []string{"Event", "Status", "Assigned", "Spent", "Remaining", "Usage", "Flag"},
	}
	for _, c := range cards {
		t.Rows = append(t.Rows, []string{
			c.Event.Name,
			string(c.Event.Status),
			FormatMoney(c.Assigned),
			FormatMoney(c.Spent),
			FormatMoney(c.Remaining),
			FormatPercent(c.UsagePercent),
			RenderFlag(c.Flag),
		})
	}
	return t
}

// CategoryTable breaks one event's budget down by category.
func CategoryTable(card core.EventBudget) Table {
	t := Table{
		Title:   card.Event.Name + " categories",
		Headers: []string{"Category", "Assigned", "Spent", "Remaining", "Usage", "Flag"},
	}
	for _, u := range card.Categories {
		t.Rows = append(t.Rows, []string{
			u.Category.Name,
			FormatMoney(u.Category.Assigned),
			FormatMoney(u.Category.Spent),
			FormatMoney(u.Remaining),
			FormatPercent(u.UsagePercent),
			RenderFlag(u.Flag),
		})
	}
	return t
}

// ApprovalTable lists pending expenses; events maps event ids to names.
func ApprovalTable(q core.ApprovalQueue, events map[int64]string) Table {
	t := Table{
		Title:   "Pending approvals",
		Headers: []string{"ID", "Date", "Event", "Concept", "Provider", "Type", "Amount"},
	}
	for _, e := range q.Expenses {
		name, ok := events[e.EventID]
		if !ok {
			name = "#" + strconv.FormatInt(e.EventID, 10)
		}
		t.Rows = append(t.Rows, []string{
			strconv.FormatInt(e.ID, 10),
			e.Date.String(),
			name,
			e.Concept,
			e.Provider,
			string(e.Type),
			FormatMoney(e.Amount),
		})
	}
	return t
}

// DriftTable lists categories whose recorded spend disagrees with approvals.
func DriftTable(drifts []core.SpendDrift) Table {
	t := Table{
		Title:   "Spend drift",
		Headers: []string{"Category", "Event", "Recorded", "Computed", "Delta"},
	}
	for _, d := range drifts {
		t.Rows = append(t.Rows, []string{
			d.Name,
			strconv.FormatInt(d.EventID, 10),
			FormatMoney(d.Recorded),
			FormatMoney(d.Computed),
			FormatMoney(d.Delta()),
		})
	}
	return t
}
