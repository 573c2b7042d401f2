// Package cmd provides the ledger-server command line.
package cmd

import (
	"fmt"
	"ledger-server/src/config"
	"ledger-server/src/logger"
	"ledger-server/src/models"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	envFile  string
	logLevel string
}

func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "ledger-server",
		Short: "Personal and business ledger engine",
		Long: `ledger-server records income, expense, installment, transfer and
investment transactions, keeps account balances consistent and
reconstructs balances, statements and cash flow for any date.

Example:
  ledger-server serve
  ledger-server statement --user u1 --account acc-1 --from 2024-01-01
  ledger-server reconcile --user u1 --dry-run`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.envFile, "env", "", "dotenv file to load (default .env)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override LOG_LEVEL")

	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newReconcileCmd(opts))
	root.AddCommand(newStatementCmd(opts))
	root.AddCommand(newTokenCmd(opts))
	return root
}

// Execute runs the root command. It is called by main.main().
func Execute() error {
	return NewRootCmd().Execute()
}

func (o *rootOptions) loadConfig() (config.Config, error) {
	var files []string
	if o.envFile != "" {
		files = append(files, o.envFile)
	}
	cfg, err := config.Load(files...)
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	return cfg, err
}

// cliLogger writes JSON logs to the command's stderr so stdout stays
// reserved for command output.
func cliLogger(cmd *cobra.Command, level string) zerolog.Logger {
	return logger.NewWithWriter(cmd.ErrOrStderr()).Level(logger.ParseLevel(level))
}

type scopeFlags struct {
	user     string
	business bool
	company  string
}

func (f *scopeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.user, "user", "", "user id owning the data")
	cmd.Flags().BoolVar(&f.business, "business", false, "use the business scope")
	cmd.Flags().StringVar(&f.company, "company", "", "company id (implies --business)")
	_ = cmd.MarkFlagRequired("user")
}

func (f *scopeFlags) scope() (models.Scope, error) {
	if f.user == "" {
		return models.Scope{}, fmt.Errorf("--user is required")
	}
	scope := models.Scope{UserID: f.user, IsBusiness: f.business}
	if f.company != "" {
		company := f.company
		scope.IsBusiness = true
		scope.CompanyID = &company
	}
	return scope, nil
}
