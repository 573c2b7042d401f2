package handlers

import (
	"ledger-server/src/middleware"
	"ledger-server/src/plaid"
	"net/http"
)

func ImportPlaidTransactions(importer *plaid.Importer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope := middleware.ScopeFromContext(r.Context())
		var req plaid.ImportRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err, "invalid request")
			return
		}
		result, err := importer.Import(r.Context(), scope, req)
		if err != nil {
			writeError(w, r, err, "failed to import transactions")
			return
		}
		middleware.WriteJSON(w, http.StatusOK, result)
	}
}
