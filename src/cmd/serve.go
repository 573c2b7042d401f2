package cmd

import (
	"context"
	"errors"
	"ledger-server/src/api"
	"ledger-server/src/logger"
	"ledger-server/src/plaid"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			log := logger.New(cfg.LogLevel)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			opts := api.Options{
				JWTSecret:      []byte(cfg.JWTSecret),
				AllowedOrigins: cfg.AllowedOrigins,
				ReadOnly:       cfg.ReadOnly,
				Logger:         log,
			}
			if cfg.PlaidEnabled() {
				client, err := plaid.NewPlaidClient(cfg.PlaidClientID, cfg.PlaidSecret, cfg.PlaidEnv)
				if err != nil {
					return err
				}
				opts.Importer = plaid.NewImporter(plaid.ClientSource{Client: client, Count: 500}, a.engine)
			} else {
				log.Warn().Msg("No Plaid credentials configured - import is disabled")
			}

			server := &http.Server{
				Addr:         ":" + cfg.Port,
				Handler:      api.NewRouter(a.engine, opts),
				ReadTimeout:  15 * time.Second,
				WriteTimeout: 30 * time.Second,
				IdleTimeout:  60 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Info().Str("port", cfg.Port).Str("store", cfg.StoreDriver).Bool("read_only", cfg.ReadOnly).Msg("Starting API server")
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			log.Info().Msg("Shutting down server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return err
			}
			log.Info().Msg("Server exited")
			return nil
		},
	}
}
