package api

import (
	"bytes"
	"encoding/json"
	"ledger-server/src/db"
	"ledger-server/src/db/boltstore"
	"ledger-server/src/ledger"
	"ledger-server/src/middleware"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("router-test-secret")

func newTestRouter(t *testing.T, readOnly bool) http.Handler {
	t.Helper()
	return newLoggingTestRouter(t, readOnly, zerolog.Nop())
}

func newLoggingTestRouter(t *testing.T, readOnly bool, log zerolog.Logger) http.Handler {
	t.Helper()
	store, err := boltstore.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	cache, err := db.NewBalanceCache()
	require.NoError(t, err)
	t.Cleanup(cache.Close)

	engine := ledger.New(store, ledger.Options{
		Now:    func() time.Time { return time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC) },
		Logger: zerolog.Nop(),
		Cache:  cache,
	})
	return NewRouter(engine, Options{JWTSecret: secret, ReadOnly: readOnly, Logger: log})
}

func userToken(t *testing.T) string {
	t.Helper()
	token, err := middleware.NewToken(secret, "user-1", []string{"acme"}, time.Hour)
	require.NoError(t, err)
	return token
}

func do(t *testing.T, h http.Handler, token, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type idResponse struct {
	ID         string  `json:"id"`
	TransferID *string `json:"transfer_id"`
}

type balanceBody struct {
	Balance decimal.Decimal `json:"balance"`
}

func balance(t *testing.T, h http.Handler, token, account, date string) decimal.Decimal {
	t.Helper()
	path := "/api/accounts/" + account + "/balance"
	if date != "" {
		path += "?date=" + date
	}
	rec := do(t, h, token, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[balanceBody](t, rec).Balance
}

func TestHealthAndAuth(t *testing.T) {
	h := newTestRouter(t, false)

	rec := do(t, h, "", http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = do(t, h, "", http.MethodGet, "/api/accounts", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, userToken(t), http.MethodPost, "/api/admin/cache/clear", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandlersLogWithRequestScope(t *testing.T) {
	var buf bytes.Buffer
	h := newLoggingTestRouter(t, false, zerolog.New(&buf))
	token := userToken(t)

	rec := do(t, h, token, http.MethodPost, "/api/accounts", map[string]any{"name": "Checking", "balance": "10"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	account := decode[idResponse](t, rec).ID

	var created map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry), line)
		if entry["message"] == "Created account" {
			created = entry
		}
	}
	require.NotNil(t, created, buf.String())
	assert.Equal(t, account, created["account_id"])
	assert.NotEmpty(t, created["scope"])
	assert.NotEmpty(t, created["request_id"])
}

func TestLedgerFlow(t *testing.T) {
	h := newTestRouter(t, false)
	token := userToken(t)

	rec := do(t, h, token, http.MethodPost, "/api/accounts", map[string]any{"name": "Checking", "balance": "1000"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	checking := decode[idResponse](t, rec).ID
	rec = do(t, h, token, http.MethodPost, "/api/accounts", map[string]any{"name": "Savings", "balance": "0"})
	require.Equal(t, http.StatusCreated, rec.Code)
	savings := decode[idResponse](t, rec).ID

	rec = do(t, h, token, http.MethodPost, "/api/transactions", map[string]any{
		"description": "Groceries", "amount": "200", "type": "expense", "date": "2024-06-01",
		"status": "completed", "account_id": checking, "payment_method": "debit",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	groceries := decode[idResponse](t, rec).ID

	assert.True(t, balance(t, h, token, checking, "").Equal(decimal.NewFromInt(800)))
	assert.True(t, balance(t, h, token, checking, "2024-05-31").Equal(decimal.NewFromInt(1000)))

	rec = do(t, h, token, http.MethodPost, "/api/transfers", map[string]any{
		"amount": "50", "from_account_id": checking, "to_account_id": savings, "date": "2024-06-05", "status": "completed",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	legs := decode[[]idResponse](t, rec)
	require.Len(t, legs, 2)
	assert.Equal(t, *legs[0].TransferID, *legs[1].TransferID)
	assert.True(t, balance(t, h, token, savings, "").Equal(decimal.NewFromInt(50)))

	rec = do(t, h, token, http.MethodGet, "/api/transactions?account_id="+checking+"&type=expense", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]idResponse](t, rec), 2)

	rec = do(t, h, token, http.MethodGet, "/api/transactions?q=GROC", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	found := decode[[]idResponse](t, rec)
	require.Len(t, found, 1)
	assert.Equal(t, groceries, found[0].ID)

	rec = do(t, h, token, http.MethodPatch, "/api/transactions/"+groceries, map[string]any{"amount": "250"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, balance(t, h, token, checking, "").Equal(decimal.NewFromInt(700)))

	rec = do(t, h, token, http.MethodGet, "/api/cashflow?start=2024-06-01&end=2024-06-30&account_id="+checking, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	flow := decode[struct {
		Outflow          decimal.Decimal `json:"outflow"`
		TransfersSkipped int             `json:"transfers_skipped"`
	}](t, rec)
	assert.True(t, flow.Outflow.Equal(decimal.NewFromInt(250)), flow.Outflow.String())
	assert.Equal(t, 1, flow.TransfersSkipped)

	rec = do(t, h, token, http.MethodDelete, "/api/transactions/"+*legs[1].TransferID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "transfer ids are not row ids")

	rec = do(t, h, token, http.MethodDelete, "/api/transactions/"+legs[1].ID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"deleted":2}`, rec.Body.String())
	assert.True(t, balance(t, h, token, savings, "").IsZero())

	rec = do(t, h, token, http.MethodPost, "/api/transactions/delete", map[string]any{"ids": []string{groceries}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, balance(t, h, token, checking, "").Equal(decimal.NewFromInt(1000)))

	rec = do(t, h, token, http.MethodGet, "/api/transactions/"+groceries, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, token, http.MethodGet, "/api/accounts/"+checking+"/statement", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	statement := decode[struct {
		ClosingBalance decimal.Decimal   `json:"closing_balance"`
		Lines          []json.RawMessage `json:"lines"`
	}](t, rec)
	assert.True(t, statement.ClosingBalance.Equal(decimal.NewFromInt(1000)))
	assert.Empty(t, statement.Lines)
}

func TestInvestmentFlow(t *testing.T) {
	h := newTestRouter(t, false)
	token := userToken(t)

	rec := do(t, h, token, http.MethodPost, "/api/accounts", map[string]any{"name": "Broker", "balance": "500"})
	require.Equal(t, http.StatusCreated, rec.Code)
	account := decode[idResponse](t, rec).ID

	rec = do(t, h, token, http.MethodPost, "/api/investments", map[string]any{"name": "Fund", "value_per_unit": "10", "quantity": "100"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	fund := decode[idResponse](t, rec).ID

	rec = do(t, h, token, http.MethodPost, "/api/investments/"+fund+"/operations", map[string]any{
		"op": "application", "amount": "100", "account_id": account, "date": "2024-06-07", "status": "completed",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, h, token, http.MethodGet, "/api/investments/"+fund, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	position := decode[struct {
		ValuePerUnit decimal.Decimal `json:"value_per_unit"`
		Total        decimal.Decimal `json:"total"`
	}](t, rec)
	assert.True(t, position.ValuePerUnit.Equal(decimal.NewFromInt(11)), position.ValuePerUnit.String())
	assert.True(t, position.Total.Equal(decimal.NewFromInt(1100)))
	assert.True(t, balance(t, h, token, account, "").Equal(decimal.NewFromInt(400)))

	rec = do(t, h, token, http.MethodPost, "/api/investments/missing/operations", map[string]any{
		"op": "application", "amount": "1", "account_id": account, "date": "2024-06-07",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestErrorMapping(t *testing.T) {
	h := newTestRouter(t, false)
	token := userToken(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"bad date", http.MethodPost, "/api/transactions", map[string]any{"amount": "1", "type": "expense", "date": "06/01/2024", "account_id": "a"}, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/transactions", map[string]any{"amount": "1", "colour": "red"}, http.StatusBadRequest},
		{"missing account", http.MethodPost, "/api/transactions", map[string]any{"amount": "1", "type": "expense", "date": "2024-06-01", "account_id": "nope"}, http.StatusNotFound},
		{"zero installments", http.MethodPost, "/api/transactions/installments", map[string]any{"amount": "1", "type": "expense", "date": "2024-06-01", "account_id": "a", "installments": 0}, http.StatusBadRequest},
		{"window reversed", http.MethodGet, "/api/cashflow?start=2024-06-30&end=2024-06-01", nil, http.StatusBadRequest},
		{"window missing", http.MethodGet, "/api/cashflow?start=2024-06-30", nil, http.StatusBadRequest},
		{"bad status filter", http.MethodGet, "/api/transactions?status=pending", nil, http.StatusBadRequest},
		{"bad limit", http.MethodGet, "/api/transactions?limit=-1", nil, http.StatusBadRequest},
		{"reconcile resync orphans", http.MethodPost, "/api/transfers/reconcile", map[string]any{"orphan_mode": "resync"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, token, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}

	rec := do(t, h, token, http.MethodGet, "/api/transfers/problems", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestReadOnlyRouter(t *testing.T) {
	h := newTestRouter(t, true)
	token := userToken(t)

	rec := do(t, h, token, http.MethodPost, "/api/accounts", map[string]any{"name": "Checking"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, h, token, http.MethodGet, "/api/accounts", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}
