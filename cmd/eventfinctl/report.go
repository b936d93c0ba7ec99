package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"eventfin/internal/cli"
	"eventfin/internal/core"
)

var (
	flagPeriod string
	flagEvent  int64
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show dashboard totals and per-event budget usage",
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().StringVarP(&flagPeriod, "period", "p", string(core.PeriodAll), "Period: all, thisMonth, lastMonth or thisYear")
	reportCmd.Flags().Int64VarP(&flagEvent, "event", "e", 0, "Break down a single event by category")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, _ []string) error {
	period, err := core.ParsePeriod(flagPeriod)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	res, cleanup, err := openServices(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	out := cmd.OutOrStdout()
	if flagEvent > 0 {
		card, err := res.Services.Dashboard.EventBudget(ctx, flagEvent)
		if err != nil {
			return err
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, cli.RenderTitle(fmt.Sprintf("%s  %s  %s", card.Event.Name, card.Event.Date, card.Event.Venue)))
		fmt.Fprintln(out)
		fmt.Fprint(out, cli.RenderTable(cli.BudgetTable([]core.EventBudget{card})))
		fmt.Fprintln(out)
		fmt.Fprint(out, cli.RenderTable(cli.CategoryTable(card)))
		return nil
	}

	summary, err := res.Services.Dashboard.Summary(ctx, period)
	if err != nil {
		return err
	}
	cards, err := res.Services.Dashboard.EventBudgets(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, cli.RenderTitle("EVENT FINANCE REPORT"))
	fmt.Fprintln(out)
	fmt.Fprint(out, cli.RenderTable(cli.SummaryTable(summary)))
	fmt.Fprintln(out)
	fmt.Fprint(out, cli.RenderTable(cli.BudgetTable(cards)))
	return nil
}
