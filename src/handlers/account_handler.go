package handlers

import (
	"ledger-server/src/ledger"
	"ledger-server/src/logger"
	"ledger-server/src/middleware"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func CreateAccount(engine *ledger.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope := middleware.ScopeFromContext(r.Context())
		var req accountRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err, "invalid request")
			return
		}
		initial, err := parseDate("initial_balance_date", req.InitialBalanceDate)
		if err != nil {
			writeError(w, r, err, "invalid request")
			return
		}
		created, err := engine.CreateAccount(r.Context(), scope, req.Name, req.Balance, initial)
		if err != nil {
			writeError(w, r, err, "failed to create account")
			return
		}
		log := logger.FromContext(r.Context())
		log.Info().Str("account_id", created.ID).Msg("Created account")
		middleware.WriteJSON(w, http.StatusCreated, toAccountResponse(*created))
	}
}

func ListAccounts(engine *ledger.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope := middleware.ScopeFromContext(r.Context())
		accounts, err := engine.ListAccounts(r.Context(), scope)
		if err != nil {
			writeError(w, r, err, "failed to list accounts")
			return
		}
		out := make([]accountResponse, len(accounts))
		for i, a := range accounts {
			out[i] = toAccountResponse(a)
		}
		middleware.WriteJSON(w, http.StatusOK, out)
	}
}

// GetBalance reconstructs the balance at ?date=, defaulting to today.
func GetBalance(engine *ledger.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope := middleware.ScopeFromContext(r.Context())
		accountID := chi.URLParam(r, "account_id")
		date, err := parseDate("date", r.URL.Query().Get("date"))
		if err != nil {
			writeError(w, r, err, "invalid request")
			return
		}
		if date.IsZero() {
			date = engine.Today()
		}
		balance, err := engine.BalanceAt(r.Context(), scope, accountID, date)
		if err != nil {
			writeError(w, r, err, "failed to compute balance")
			return
		}
		middleware.WriteJSON(w, http.StatusOK, balanceResponse{AccountID: accountID, Date: formatDate(date), Balance: balance})
	}
}

func GetStatement(engine *ledger.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope := middleware.ScopeFromContext(r.Context())
		from, err := parseDatePtr("from", r.URL.Query().Get("from"))
		if err != nil {
			writeError(w, r, err, "invalid request")
			return
		}
		to, err := parseDatePtr("to", r.URL.Query().Get("to"))
		if err != nil {
			writeError(w, r, err, "invalid request")
			return
		}
		statement, err := engine.Statement(r.Context(), scope, chi.URLParam(r, "account_id"), from, to)
		if err != nil {
			writeError(w, r, err, "failed to build statement")
			return
		}
		middleware.WriteJSON(w, http.StatusOK, toStatementResponse(*statement))
	}
}

func GetCashFlow(engine *ledger.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope := middleware.ScopeFromContext(r.Context())
		params := r.URL.Query()
		start, err := requireDate("start", params.Get("start"))
		if err != nil {
			writeError(w, r, err, "invalid request")
			return
		}
		end, err := requireDate("end", params.Get("end"))
		if err != nil {
			writeError(w, r, err, "invalid request")
			return
		}
		var accountID *string
		if v := params.Get("account_id"); v != "" {
			accountID = &v
		}
		flow, err := engine.CashFlow(r.Context(), scope, start, end, accountID)
		if err != nil {
			writeError(w, r, err, "failed to compute cash flow")
			return
		}
		middleware.WriteJSON(w, http.StatusOK, toCashFlowResponse(*flow))
	}
}
