package cmd

import (
	"fmt"
	"ledger-server/src/models"
	"ledger-server/src/util"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newStatementCmd(root *rootOptions) *cobra.Command {
	var (
		scope     scopeFlags
		accountID string
		from, to  string
	)
	cmd := &cobra.Command{
		Use:   "statement",
		Short: "Print an account statement with running balances",
		Long: `Print the completed transactions of one account in due-date order
with the running balance after each line.

Example:
  ledger-server statement --user u1 --account acc-1 --from 2024-01-01 --to 2024-01-31`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := scope.scope()
			if err != nil {
				return err
			}
			fromDate, err := optionalDate("from", from)
			if err != nil {
				return err
			}
			toDate, err := optionalDate("to", to)
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

			st, err := a.engine.Statement(cmd.Context(), s, accountID, fromDate, toDate)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintf(w, "DUE\tDESCRIPTION\tAMOUNT\tBALANCE\t\n")
			fmt.Fprintf(w, "\tOpening balance\t\t%s\t\n", util.FormatAmount(st.OpeningBalance, cfg.Currency))
			for _, line := range st.Lines {
				t := line.Transaction
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n",
					t.DueDate.Format(models.DateFormat),
					t.Description,
					util.FormatSigned(t.SignedAmount(), cfg.Currency),
					util.FormatAmount(line.Balance, cfg.Currency))
			}
			fmt.Fprintf(w, "\tClosing balance\t\t%s\t\n", util.FormatAmount(st.ClosingBalance, cfg.Currency))
			return w.Flush()
		},
	}
	scope.register(cmd)
	cmd.Flags().StringVar(&accountID, "account", "", "account id")
	cmd.Flags().StringVar(&from, "from", "", "first due date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last due date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

func optionalDate(flag, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	d, err := models.ParseDate(value)
	if err != nil {
		return nil, fmt.Errorf("--%s: %q is not a YYYY-MM-DD date", flag, value)
	}
	return &d, nil
}
