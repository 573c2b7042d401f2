package handlers

import (
	"ledger-server/src/db"
	"ledger-server/src/ledger"
	"ledger-server/src/logger"
	"ledger-server/src/middleware"
	"ledger-server/src/models"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

func CreateTransaction(engine *ledger.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope := middleware.ScopeFromContext(r.Context())
		var req entryRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err, "invalid request")
			return
		}
		entry, err := req.toEntry()
		if err != nil {
			writeError(w, r, err, "invalid request")
			return
		}
		created, err := engine.SaveSimple(r.Context(), scope, entry)
		if err != nil {
			writeError(w, r, err, "failed to save transaction")
			return
		}
		log := logger.FromContext(r.Context())
		log.Info().Str("transaction_id", created.ID).Str("account_id", created.AccountID).Msg("Created transaction")
		middleware.WriteJSON(w, http.StatusCreated, toTransactionResponse(*created))
	}
}

func CreateInstallments(engine *ledger.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope := middleware.ScopeFromContext(r.Context())
		var req entryRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err, "invalid request")
			return
		}
		entry, err := req.toEntry()
		if err != nil {
			writeError(w, r, err, "invalid request")
			return
		}
		rows, err := engine.SaveInstallments(r.Context(), scope, entry, req.Installments)
		if err != nil {
			writeError(w, r, err, "failed to save installments")
			return
		}
		log := logger.FromContext(r.Context())
		log.Info().Int("count", len(rows)).Str("account_id", entry.AccountID).Msg("Created installment series")
		middleware.WriteJSON(w, http.StatusCreated, toTransactionResponses(rows))
	}
}

func CreateTransfer(engine *ledger.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope := middleware.ScopeFromContext(r.Context())
		var req transferRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err, "invalid request")
			return
		}
		date, err := requireDate("date", req.Date)
		if err != nil {
			writeError(w, r, err, "invalid request")
			return
		}
		due, err := parseDate("due_date", req.DueDate)
		if err != nil {
			writeError(w, r, err, "invalid request")
			return
		}
		legs, err := engine.SaveTransfer(r.Context(), scope, ledger.TransferRequest{
			Description:   req.Description,
			Amount:        req.Amount,
			FromAccountID: req.FromAccountID,
			ToAccountID:   req.ToAccountID,
			Date:          date,
			DueDate:       due,
			Status:        req.Status,
		})
		if err != nil {
			writeError(w, r, err, "failed to save transfer")
			return
		}
		log := logger.FromContext(r.Context())
		log.Info().Str("transfer_id", *legs[0].TransferID).Msg("Created transfer")
		middleware.WriteJSON(w, http.StatusCreated, toTransactionResponses(legs))
	}
}

func CreateInvestmentOperation(engine *ledger.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope := middleware.ScopeFromContext(r.Context())
		investmentID := chi.URLParam(r, "investment_id")
		var req investmentOpRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err, "invalid request")
			return
		}
		date, err := requireDate("date", req.Date)
		if err != nil {
			writeError(w, r, err, "invalid request")
			return
		}
		due, err := parseDate("due_date", req.DueDate)
		if err != nil {
			writeError(w, r, err, "invalid request")
			return
		}
		created, err := engine.SaveInvestmentOp(r.Context(), scope, ledger.InvestmentOpRequest{
			Op:           req.Op,
			Description:  req.Description,
			Amount:       req.Amount,
			AccountID:    req.AccountID,
			InvestmentID: investmentID,
			Date:         date,
			DueDate:      due,
			Status:       req.Status,
		})
		if err != nil {
			writeError(w, r, err, "failed to save investment operation")
			return
		}
		log := logger.FromContext(r.Context())
		log.Info().Str("investment_id", investmentID).Str("op", string(req.Op)).Msg("Recorded investment operation")
		middleware.WriteJSON(w, http.StatusCreated, toTransactionResponse(*created))
	}
}

func GetTransaction(engine *ledger.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope := middleware.ScopeFromContext(r.Context())
		tx, err := engine.GetTransaction(r.Context(), scope, chi.URLParam(r, "transaction_id"))
		if err != nil {
			writeError(w, r, err, "failed to get transaction")
			return
		}
		middleware.WriteJSON(w, http.StatusOK, toTransactionResponse(*tx))
	}
}

func UpdateTransaction(engine *ledger.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope := middleware.ScopeFromContext(r.Context())
		transactionID := chi.URLParam(r, "transaction_id")
		var req updateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err, "invalid request")
			return
		}
		update, err := req.toUpdate()
		if err != nil {
			writeError(w, r, err, "invalid request")
			return
		}
		updated, err := engine.Update(r.Context(), scope, transactionID, update)
		if err != nil {
			writeError(w, r, err, "failed to update transaction")
			return
		}
		log := logger.FromContext(r.Context())
		log.Info().Str("transaction_id", transactionID).Msg("Updated transaction")
		middleware.WriteJSON(w, http.StatusOK, toTransactionResponse(*updated))
	}
}

type deleteResponse struct {
	Deleted int64 `json:"deleted"`
}

func DeleteTransaction(engine *ledger.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope := middleware.ScopeFromContext(r.Context())
		transactionID := chi.URLParam(r, "transaction_id")
		n, err := engine.Delete(r.Context(), scope, []string{transactionID})
		if err != nil {
			writeError(w, r, err, "failed to delete transaction")
			return
		}
		log := logger.FromContext(r.Context())
		log.Info().Str("transaction_id", transactionID).Int64("rows", n).Msg("Deleted transaction")
		middleware.WriteJSON(w, http.StatusOK, deleteResponse{Deleted: n})
	}
}

func DeleteTransactions(engine *ledger.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope := middleware.ScopeFromContext(r.Context())
		var req struct {
			IDs []string `json:"ids"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err, "invalid request")
			return
		}
		n, err := engine.Delete(r.Context(), scope, req.IDs)
		if err != nil {
			writeError(w, r, err, "failed to delete transactions")
			return
		}
		log := logger.FromContext(r.Context())
		log.Info().Int("requested", len(req.IDs)).Int64("rows", n).Msg("Deleted transactions")
		middleware.WriteJSON(w, http.StatusOK, deleteResponse{Deleted: n})
	}
}

// ListTransactions filters by account_id, status, type, a due-date range
// (from, to) and a description pattern q.
func ListTransactions(engine *ledger.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := listQuery(r)
		if err != nil {
			writeError(w, r, err, "invalid request")
			return
		}
		txs, err := engine.ListTransactions(r.Context(), q)
		if err != nil {
			writeError(w, r, err, "failed to list transactions")
			return
		}
		middleware.WriteJSON(w, http.StatusOK, toTransactionResponses(txs))
	}
}

func listQuery(r *http.Request) (db.Query, error) {
	params := r.URL.Query()
	q := db.Query{Scope: middleware.ScopeFromContext(r.Context())}

	if v := params.Get("account_id"); v != "" {
		q.Where = append(q.Where, db.Eq{Field: db.FieldAccountID, Value: v})
	}
	if v := params.Get("status"); v != "" {
		if !models.Status(v).IsValid() {
			return q, &ledger.ValidationError{Field: "status", Message: "must be open or completed"}
		}
		q.Where = append(q.Where, db.Eq{Field: db.FieldStatus, Value: models.Status(v)})
	}
	if v := params.Get("type"); v != "" {
		if !models.TransactionType(v).IsValid() {
			return q, &ledger.ValidationError{Field: "type", Message: "must be income or expense"}
		}
		q.Where = append(q.Where, db.Eq{Field: db.FieldType, Value: models.TransactionType(v)})
	}
	from, err := parseDatePtr("from", params.Get("from"))
	if err != nil {
		return q, err
	}
	to, err := parseDatePtr("to", params.Get("to"))
	if err != nil {
		return q, err
	}
	if from != nil || to != nil {
		rng := db.Range{Field: db.FieldDueDate}
		if from != nil {
			rng.From = *from
		}
		if to != nil {
			rng.To = *to
		}
		q.Where = append(q.Where, rng)
	}
	if v := params.Get("q"); v != "" {
		if !strings.ContainsAny(v, "%_") {
			v = "%" + v + "%"
		}
		q.Where = append(q.Where, db.Like{Field: db.FieldDescription, Pattern: v})
	}

	if q.Limit, err = parseInt("limit", params.Get("limit"), defaultListLimit); err != nil {
		return q, err
	}
	if q.Limit == 0 || q.Limit > maxListLimit {
		q.Limit = maxListLimit
	}
	if q.Offset, err = parseInt("offset", params.Get("offset"), 0); err != nil {
		return q, err
	}
	return q, nil
}
