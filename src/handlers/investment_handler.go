package handlers

import (
	"ledger-server/src/ledger"
	"ledger-server/src/logger"
	"ledger-server/src/middleware"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func CreateInvestment(engine *ledger.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope := middleware.ScopeFromContext(r.Context())
		var req investmentRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err, "invalid request")
			return
		}
		created, err := engine.CreateInvestment(r.Context(), scope, req.Name, req.ValuePerUnit, req.Quantity)
		if err != nil {
			writeError(w, r, err, "failed to create investment")
			return
		}
		log := logger.FromContext(r.Context())
		log.Info().Str("investment_id", created.ID).Msg("Created investment position")
		middleware.WriteJSON(w, http.StatusCreated, investmentResponse{InvestmentPosition: *created, Total: created.Total()})
	}
}

func GetInvestment(engine *ledger.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope := middleware.ScopeFromContext(r.Context())
		p, err := engine.GetInvestment(r.Context(), scope, chi.URLParam(r, "investment_id"))
		if err != nil {
			writeError(w, r, err, "failed to get investment")
			return
		}
		middleware.WriteJSON(w, http.StatusOK, investmentResponse{InvestmentPosition: *p, Total: p.Total()})
	}
}
