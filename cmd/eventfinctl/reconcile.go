package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"eventfin/internal/cli"
	"eventfin/internal/core"
)

var flagFix bool

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Compare category spend with approved expenses",
	RunE:  runReconcile,
}

func init() {
	reconcileCmd.Flags().BoolVar(&flagFix, "fix", false, "Rewrite recorded spend to the computed value")
	rootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	res, cleanup, err := openServices(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	var drifts []core.SpendDrift
	if flagFix {
		drifts, err = res.Services.Reconciler.Fix(ctx)
	} else {
		drifts, err = res.Services.Reconciler.Check(ctx)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(drifts) == 0 {
		fmt.Fprintln(out, "Budget spend is consistent with approved expenses.")
		return nil
	}
	fmt.Fprint(out, cli.RenderTable(cli.DriftTable(drifts)))
	if flagFix {
		fmt.Fprintf(out, "  Repaired %d categories.\n", len(drifts))
	} else {
		fmt.Fprintf(out, "  %d categories drifted; rerun with --fix to repair.\n", len(drifts))
	}
	return nil
}
