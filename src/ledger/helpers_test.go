package ledger

import (
	"context"
	"errors"
	"ledger-server/src/db"
	"ledger-server/src/db/boltstore"
	"ledger-server/src/models"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var testScope = models.Scope{UserID: "user-1"}

// now is 2024-06-10 in every engine test.
var testNow = time.Date(2024, 6, 10, 15, 30, 0, 0, time.UTC)

func d(s string) time.Time {
	t, err := models.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newBoltStore(t *testing.T) *boltstore.Store {
	t.Helper()
	s, err := boltstore.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newEngine(t *testing.T, store db.Store) *Engine {
	t.Helper()
	cache, err := db.NewBalanceCache()
	require.NoError(t, err)
	t.Cleanup(cache.Close)
	return New(store, Options{
		Now:      func() time.Time { return testNow },
		Logger:   zerolog.Nop(),
		Cache:    cache,
		PageSize: 2,
	})
}

func newTestEngine(t *testing.T) (*Engine, *boltstore.Store) {
	t.Helper()
	s := newBoltStore(t)
	return newEngine(t, s), s
}

func seedAccount(t *testing.T, s db.Store, scope models.Scope, id, balance string) {
	t.Helper()
	require.NoError(t, s.SaveAccount(context.Background(), models.Account{
		ID:                 id,
		UserID:             scope.UserID,
		IsBusiness:         scope.IsBusiness,
		CompanyID:          scope.CompanyID,
		Name:               id,
		Balance:            dec(balance),
		InitialBalanceDate: d("2024-01-01"),
	}))
}

func seedInvestment(t *testing.T, s db.Store, id, vpu, qty string) {
	t.Helper()
	require.NoError(t, s.SaveInvestment(context.Background(), models.InvestmentPosition{
		ID:           id,
		UserID:       testScope.UserID,
		Name:         id,
		ValuePerUnit: dec(vpu),
		Quantity:     dec(qty),
	}))
}

func balanceOf(t *testing.T, s db.Store, id string) decimal.Decimal {
	t.Helper()
	a, err := s.GetAccount(context.Background(), testScope, id)
	require.NoError(t, err)
	return a.Balance
}

func allRows(t *testing.T, s db.Store) []models.Transaction {
	t.Helper()
	rows, err := s.FindTransactions(context.Background(), db.Query{Scope: testScope})
	require.NoError(t, err)
	return rows
}

// failingStore fails every balance adjustment, inside or outside a unit of work.
type failingStore struct {
	db.Store
}

var errDiskFull = errors.New("disk full")

func (f *failingStore) InTx(ctx context.Context, fn func(db.Store) error) error {
	return f.Store.InTx(ctx, func(s db.Store) error {
		return fn(&failingStore{Store: s})
	})
}

func (f *failingStore) AdjustAccountBalance(ctx context.Context, scope models.Scope, id string, delta decimal.Decimal) error {
	return errDiskFull
}
