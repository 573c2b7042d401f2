package handlers

import (
	"ledger-server/src/ledger"
	"ledger-server/src/logger"
	"ledger-server/src/middleware"
	"net/http"
)

func GetTransferProblems(engine *ledger.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope := middleware.ScopeFromContext(r.Context())
		problems, err := engine.FindTransferProblems(r.Context(), scope)
		if err != nil {
			writeError(w, r, err, "failed to scan transfers")
			return
		}
		if problems == nil {
			problems = []ledger.TransferProblem{}
		}
		middleware.WriteJSON(w, http.StatusOK, problems)
	}
}

// ReconcileTransfers repairs broken transfer pairs. Orphans are recreated
// unless orphan_mode is "delete"; dry_run only reports.
func ReconcileTransfers(engine *ledger.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope := middleware.ScopeFromContext(r.Context())
		var req struct {
			OrphanMode ledger.RepairMode `json:"orphan_mode"`
			DryRun     bool              `json:"dry_run"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err, "invalid request")
			return
		}
		if req.OrphanMode == "" {
			req.OrphanMode = ledger.RepairRecreate
		}
		report, err := engine.Reconcile(r.Context(), scope, req.OrphanMode, req.DryRun)
		if err != nil {
			writeError(w, r, err, "failed to reconcile transfers")
			return
		}
		log := logger.FromContext(r.Context())
		log.Info().
			Int("problems", len(report.Problems)).
			Int("repaired", report.Repaired).
			Bool("dry_run", req.DryRun).
			Msg("Reconciled transfers")
		middleware.WriteJSON(w, http.StatusOK, report)
	}
}

// ClearCache drops every cached balance. Admin only.
func ClearCache(engine *ledger.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		engine.ClearCache()
		log := logger.FromContext(r.Context())
		log.Info().Msg("Balance cache cleared")
		middleware.WriteJSON(w, http.StatusOK, map[string]string{"message": "cache cleared"})
	}
}
