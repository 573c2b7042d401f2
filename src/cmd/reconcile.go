package cmd

import (
	"fmt"
	"ledger-server/src/ledger"

	"github.com/spf13/cobra"
)

func newReconcileCmd(root *rootOptions) *cobra.Command {
	var (
		scope      scopeFlags
		orphanMode string
		dryRun     bool
	)
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Find and repair broken transfer pairs",
		Long: `Scan every transfer in a scope for orphaned legs, oversized groups
and pairs whose shared fields diverge. Diverging pairs are resynced from
the expense leg; orphans are recreated or deleted per --orphans.

Example:
  ledger-server reconcile --user u1 --dry-run
  ledger-server reconcile --user u1 --company acme --orphans delete`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := scope.scope()
			if err != nil {
				return err
			}
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, cliLogger(cmd, cfg.LogLevel))
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.engine.Reconcile(cmd.Context(), s, ledger.RepairMode(orphanMode), dryRun)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "\n=== Transfer Reconciliation (%s) ===\n", s)
			for _, p := range report.Problems {
				fmt.Fprintf(out, "%-10s %s  %s (%d legs)\n", p.Kind, p.TransferID, p.Detail, len(p.Legs))
			}
			fmt.Fprintf(out, "Problems: %d  Repaired: %d  Skipped: %d\n", len(report.Problems), report.Repaired, report.Skipped)
			if dryRun {
				fmt.Fprintln(out, "(dry run, nothing written)")
			}
			return nil
		},
	}
	scope.register(cmd)
	cmd.Flags().StringVar(&orphanMode, "orphans", string(ledger.RepairRecreate), "orphan repair: recreate or delete")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report problems without repairing")
	return cmd
}
