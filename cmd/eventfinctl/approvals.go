package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"eventfin/internal/cli"
	"eventfin/internal/core"
	"eventfin/internal/services"
)

var flagComment string

var approvalsCmd = &cobra.Command{
	Use:   "approvals",
	Short: "List expenses waiting for a decision",
	RunE:  runApprovals,
}

var approveCmd = &cobra.Command{
	Use:   "approve ID",
	Short: "Approve a pending expense and charge its category",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDecision(cmd, args[0], func(s *services.ExpenseService) decision { return s.Approve })
	},
}

var rejectCmd = &cobra.Command{
	Use:   "reject ID",
	Short: "Reject a pending expense",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDecision(cmd, args[0], func(s *services.ExpenseService) decision { return s.Reject })
	},
}

func init() {
	for _, c := range []*cobra.Command{approveCmd, rejectCmd} {
		c.Flags().StringVarP(&flagComment, "comment", "c", "", "Comment recorded with the decision")
	}
	rootCmd.AddCommand(approvalsCmd, approveCmd, rejectCmd)
}

type decision func(ctx context.Context, id int64, comment string) (core.Expense, error)

func runApprovals(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	res, cleanup, err := openServices(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	queue, err := res.Services.Dashboard.Approvals(ctx, services.ApprovalFilter{})
	if err != nil {
		return err
	}
	events, err := res.Services.Events.List(ctx)
	if err != nil {
		return err
	}
	names := make(map[int64]string, len(events))
	for _, ev := range events {
		names[ev.ID] = ev.Name
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	fmt.Fprint(out, cli.RenderTable(cli.ApprovalTable(queue, names)))
	fmt.Fprintf(out, "  %d pending, %s total, %s average\n",
		len(queue.Expenses), cli.FormatMoney(queue.TotalPending), cli.FormatMoney(queue.AveragePending))
	return nil
}

func runDecision(cmd *cobra.Command, arg string, pick func(*services.ExpenseService) decision) error {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid expense id %q", arg)
	}

	ctx := cmd.Context()
	res, cleanup, err := openServices(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	e, err := pick(res.Services.Expenses)(ctx, id, flagComment)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Expense %d %s: %s, %s\n", e.ID, e.Status, e.Concept, cli.FormatMoney(e.Amount))
	return nil
}
