package pg

import (
	"context"
	"errors"
	"ledger-server/src/db"
	"ledger-server/src/ledger"
	"ledger-server/src/models"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a disposable database: TEST_DATABASE_URL=postgres://... go test ./src/db/pg
func openTestStore(t *testing.T) (*Store, models.Scope) {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := db.Connect(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	// A fresh user per test keeps runs independent without truncating.
	return New(pool), models.Scope{UserID: "test-" + uuid.NewString()}
}

func TestStore_Roundtrip(t *testing.T) {
	s, scope := openTestStore(t)
	ctx := context.Background()

	account := models.Account{ID: uuid.NewString(), UserID: scope.UserID, Name: "Checking",
		Balance: decimal.RequireFromString("100.00"), InitialBalanceDate: models.DateOf(time.Now())}
	require.NoError(t, s.SaveAccount(ctx, account))

	due := models.DateOf(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	txs := []models.Transaction{{
		UserID: scope.UserID, Amount: decimal.RequireFromString("12.34"), Type: models.Expense,
		Date: due, DueDate: due, Status: models.StatusCompleted, AccountID: account.ID, Description: "Groceries",
	}}
	require.NoError(t, s.InsertTransactions(ctx, txs))
	assert.NotZero(t, txs[0].Seq)

	got, err := s.FindTransactions(ctx, db.Query{Scope: scope, Where: []db.Predicate{
		db.Like{Field: db.FieldDescription, Pattern: "groc%"},
		db.Eq{Field: db.FieldStatus, Value: models.StatusCompleted},
	}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Amount.Equal(decimal.RequireFromString("12.34")))
	assert.Equal(t, due, got[0].DueDate)

	_, err = s.GetTransaction(ctx, models.Scope{UserID: scope.UserID, IsBusiness: true}, txs[0].ID)
	assert.ErrorIs(t, err, db.ErrNotFound)

	require.NoError(t, s.AdjustAccountBalance(ctx, scope, account.ID, decimal.RequireFromString("-12.34")))
	a, err := s.GetAccount(ctx, scope, account.ID)
	require.NoError(t, err)
	assert.True(t, a.Balance.Equal(decimal.RequireFromString("87.66")))

	n, err := s.DeleteTransactions(ctx, scope, db.InStrings(db.FieldID, []string{txs[0].ID}))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestStore_InTxRollsBack(t *testing.T) {
	s, scope := openTestStore(t)
	ctx := context.Background()

	account := models.Account{ID: uuid.NewString(), UserID: scope.UserID, Name: "Checking",
		Balance: decimal.NewFromInt(10), InitialBalanceDate: models.DateOf(time.Now())}
	require.NoError(t, s.SaveAccount(ctx, account))

	boom := errors.New("boom")
	err := s.InTx(ctx, func(tx db.Store) error {
		if err := tx.AdjustAccountBalance(ctx, scope, account.ID, decimal.NewFromInt(5)); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	a, err := s.GetAccount(ctx, scope, account.ID)
	require.NoError(t, err)
	assert.True(t, a.Balance.Equal(decimal.NewFromInt(10)))
}

// pausingStore holds every unit of work open after fn succeeds until
// release is closed, keeping its row locks taken.
type pausingStore struct {
	db.Store
	held    chan struct{}
	release chan struct{}
}

func (p *pausingStore) InTx(ctx context.Context, fn func(db.Store) error) error {
	return p.Store.InTx(ctx, func(tx db.Store) error {
		if err := fn(tx); err != nil {
			return err
		}
		close(p.held)
		<-p.release
		return nil
	})
}

func TestStore_ConcurrentTransferEditsSerialize(t *testing.T) {
	s, scope := openTestStore(t)
	ctx := context.Background()
	today := models.DateOf(time.Now())

	for _, id := range []string{"from", "to"} {
		require.NoError(t, s.SaveAccount(ctx, models.Account{ID: scope.UserID + "-" + id, UserID: scope.UserID,
			Name: id, Balance: decimal.NewFromInt(1000), InitialBalanceDate: today}))
	}
	plain := ledger.New(s, ledger.Options{Logger: zerolog.Nop()})
	legs, err := plain.SaveTransfer(ctx, scope, ledger.TransferRequest{
		Amount: decimal.NewFromInt(50), FromAccountID: scope.UserID + "-from", ToAccountID: scope.UserID + "-to",
		Date: today, Status: models.StatusCompleted,
	})
	require.NoError(t, err)

	paused := &pausingStore{Store: s, held: make(chan struct{}), release: make(chan struct{})}
	slow := ledger.New(paused, ledger.Options{Logger: zerolog.Nop()})

	amountDone := make(chan error, 1)
	go func() {
		amount := decimal.NewFromInt(100)
		_, err := slow.Update(ctx, scope, legs[0].ID, ledger.UpdateRequest{Amount: &amount})
		amountDone <- err
	}()
	<-paused.held

	statusDone := make(chan error, 1)
	go func() {
		open := models.StatusOpen
		_, err := plain.Update(ctx, scope, legs[0].ID, ledger.UpdateRequest{Status: &open})
		statusDone <- err
	}()
	// Let the status edit reach the row locks before the amount edit commits.
	time.Sleep(200 * time.Millisecond)
	close(paused.release)
	require.NoError(t, <-amountDone)
	require.NoError(t, <-statusDone)

	for _, leg := range legs {
		got, err := s.GetTransaction(ctx, scope, leg.ID)
		require.NoError(t, err)
		assert.True(t, got.Amount.Equal(decimal.NewFromInt(100)), "amount %s", got.Amount)
		assert.Equal(t, models.StatusOpen, got.Status)

		a, err := s.GetAccount(ctx, scope, leg.AccountID)
		require.NoError(t, err)
		assert.True(t, a.Balance.Equal(decimal.NewFromInt(1000)), "account %s balance %s", a.ID, a.Balance)
	}
}
