package cmd

import (
	"fmt"
	"ledger-server/src/middleware"
	"time"

	"github.com/spf13/cobra"
)

func newTokenCmd(root *rootOptions) *cobra.Command {
	var (
		userID    string
		companies []string
		admin     bool
		ttl       time.Duration
		secret    string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a session token for local development",
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				// Only JWT_SECRET matters here; a half-configured store is fine.
				cfg, _ := root.loadConfig()
				secret = cfg.JWTSecret
			}
			if secret == "" {
				return fmt.Errorf("JWT_SECRET is required")
			}
			token, err := middleware.SignClaims([]byte(secret), middleware.Claims{
				UserID:     userID,
				CompanyIDs: companies,
				Admin:      admin,
			}, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().StringSliceVar(&companies, "company", nil, "company ids the user may act for")
	cmd.Flags().BoolVar(&admin, "admin", false, "grant admin routes")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	cmd.Flags().StringVar(&secret, "secret", "", "signing secret (default JWT_SECRET)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
