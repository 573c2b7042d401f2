package api

import (
	"ledger-server/src/handlers"
	"ledger-server/src/ledger"
	"ledger-server/src/middleware"
	"ledger-server/src/plaid"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

type Options struct {
	JWTSecret      []byte
	AllowedOrigins []string
	ReadOnly       bool
	Logger         zerolog.Logger
	// Importer is nil when Plaid is not configured.
	Importer *plaid.Importer
}

func NewRouter(engine *ledger.Engine, opts Options) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.Logger(opts.Logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORSMiddleware(opts.AllowedOrigins))
	r.Use(middleware.ReadOnlyMiddleware(opts.ReadOnly))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.JWTAuthMiddleware(opts.JWTSecret))

		// Transactions
		r.Get("/transactions", handlers.ListTransactions(engine))
		r.Post("/transactions", handlers.CreateTransaction(engine))
		r.Post("/transactions/installments", handlers.CreateInstallments(engine))
		r.Post("/transactions/delete", handlers.DeleteTransactions(engine))
		r.Get("/transactions/{transaction_id}", handlers.GetTransaction(engine))
		r.Patch("/transactions/{transaction_id}", handlers.UpdateTransaction(engine))
		r.Delete("/transactions/{transaction_id}", handlers.DeleteTransaction(engine))

		// Transfers
		r.Post("/transfers", handlers.CreateTransfer(engine))
		r.Get("/transfers/problems", handlers.GetTransferProblems(engine))
		r.Post("/transfers/reconcile", handlers.ReconcileTransfers(engine))

		// Accounts and reports
		r.Get("/accounts", handlers.ListAccounts(engine))
		r.Post("/accounts", handlers.CreateAccount(engine))
		r.Get("/accounts/{account_id}/balance", handlers.GetBalance(engine))
		r.Get("/accounts/{account_id}/statement", handlers.GetStatement(engine))
		r.Get("/cashflow", handlers.GetCashFlow(engine))

		// Investments
		r.Post("/investments", handlers.CreateInvestment(engine))
		r.Get("/investments/{investment_id}", handlers.GetInvestment(engine))
		r.Post("/investments/{investment_id}/operations", handlers.CreateInvestmentOperation(engine))

		if opts.Importer != nil {
			r.Post("/import/plaid", handlers.ImportPlaidTransactions(opts.Importer))
		}

		r.With(middleware.AdminMiddleware).Post("/admin/cache/clear", handlers.ClearCache(engine))
	})

	return r
}
