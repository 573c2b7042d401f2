package ledger

import (
	"context"
	"ledger-server/src/db"
	"ledger-server/src/models"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func saveEntry(t *testing.T, e *Engine, account string, typ models.TransactionType, amount, due string, status models.Status) models.Transaction {
	t.Helper()
	row, err := e.SaveSimple(context.Background(), testScope, EntryRequest{
		Amount: dec(amount), Type: typ, Date: d(due), DueDate: d(due), Status: status, AccountID: account,
	})
	require.NoError(t, err)
	return *row
}

func TestBalanceAt_ReconstructsPast(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	// 1200 before the expense lands; the writer brings the snapshot to 1000.
	seedAccount(t, s, testScope, "X", "1200")
	saveEntry(t, e, "X", models.Expense, "200.00", "2024-06-05", models.StatusCompleted)
	require.True(t, balanceOf(t, s, "X").Equal(dec("1000")))

	got, err := e.BalanceAt(ctx, testScope, "X", d("2024-06-01"))
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("1200")), "got %s", got)

	got, err = e.BalanceAt(ctx, testScope, "X", d("2024-06-05"))
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("1000")), "rows due on the reference date are kept, got %s", got)

	got, err = e.BalanceAt(ctx, testScope, "X", testNow)
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("1000")))
}

func TestBalanceAt_ProjectsFuture(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	seedAccount(t, s, testScope, "X", "1000")
	saveEntry(t, e, "X", models.Income, "300", "2024-06-10", models.StatusOpen)
	saveEntry(t, e, "X", models.Expense, "120", "2024-06-20", models.StatusOpen)
	saveEntry(t, e, "X", models.Expense, "999", "2024-07-20", models.StatusOpen)
	saveEntry(t, e, "X", models.Expense, "50", "2024-06-01", models.StatusOpen)

	got, err := e.BalanceAt(ctx, testScope, "X", d("2024-06-30"))
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("1180")), "got %s", got)
}

func TestBalanceAt_CacheIsInvalidatedByWrites(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	seedAccount(t, s, testScope, "X", "1000")

	got, err := e.BalanceAt(ctx, testScope, "X", d("2024-06-01"))
	require.NoError(t, err)
	require.True(t, got.Equal(dec("1000")))

	saveEntry(t, e, "X", models.Expense, "200", "2024-06-05", models.StatusCompleted)

	got, err = e.BalanceAt(ctx, testScope, "X", d("2024-06-01"))
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("1000")), "got %s", got)
}

// racingStore runs afterRead once, right after the first account read.
type racingStore struct {
	db.Store
	afterRead func()
}

func (r *racingStore) GetAccount(ctx context.Context, scope models.Scope, id string) (*models.Account, error) {
	a, err := r.Store.GetAccount(ctx, scope, id)
	if hook := r.afterRead; hook != nil {
		r.afterRead = nil
		hook()
	}
	return a, err
}

func TestBalanceAt_WriteDuringReadIsNotCached(t *testing.T) {
	s := newBoltStore(t)
	seedAccount(t, s, testScope, "X", "1000")
	racing := &racingStore{Store: s}
	e := newEngine(t, racing)
	ctx := context.Background()

	racing.afterRead = func() {
		saveEntry(t, e, "X", models.Expense, "200", "2024-05-20", models.StatusCompleted)
	}
	_, err := e.BalanceAt(ctx, testScope, "X", d("2024-06-01"))
	require.NoError(t, err)
	require.True(t, balanceOf(t, s, "X").Equal(dec("800")))

	got, err := e.BalanceAt(ctx, testScope, "X", d("2024-06-01"))
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("800")), "got %s", got)
}

func TestBalanceAt_UnknownAccount(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.BalanceAt(context.Background(), testScope, "nope", d("2024-06-01"))
	isNotFound(t, err)
}

func TestStatement_ReplayEndsAtBalance(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	seedAccount(t, s, testScope, "X", "1000")

	st, err := e.Statement(ctx, testScope, "X", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, st.Lines)
	assert.True(t, st.OpeningBalance.Equal(dec("1000")))
	assert.True(t, st.ClosingBalance.Equal(dec("1000")))

	saveEntry(t, e, "X", models.Income, "500", "2024-05-03", models.StatusCompleted)
	saveEntry(t, e, "X", models.Expense, "80", "2024-05-01", models.StatusCompleted)
	saveEntry(t, e, "X", models.Expense, "20", "2024-05-03", models.StatusCompleted)
	saveEntry(t, e, "X", models.Expense, "7", "2024-07-01", models.StatusCompleted)
	saveEntry(t, e, "X", models.Expense, "1000", "2024-05-02", models.StatusOpen)

	st, err = e.Statement(ctx, testScope, "X", nil, nil)
	require.NoError(t, err)
	require.Len(t, st.Lines, 4)

	balance := balanceOf(t, s, "X")
	assert.True(t, balance.Equal(dec("1393")))
	assert.True(t, st.OpeningBalance.Equal(dec("1000")), "opening %s", st.OpeningBalance)
	assert.True(t, st.ClosingBalance.Equal(balance))

	wantAmounts := []string{"80", "500", "20", "7"}
	wantRunning := []string{"920", "1420", "1400", "1393"}
	for i, line := range st.Lines {
		assert.True(t, line.Transaction.Amount.Equal(dec(wantAmounts[i])), "line %d amount %s", i, line.Transaction.Amount)
		assert.True(t, line.Balance.Equal(dec(wantRunning[i])), "line %d balance %s", i, line.Balance)
	}
}

func TestStatement_Window(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	seedAccount(t, s, testScope, "X", "0")
	saveEntry(t, e, "X", models.Income, "100", "2024-04-10", models.StatusCompleted)
	saveEntry(t, e, "X", models.Expense, "30", "2024-05-10", models.StatusCompleted)
	saveEntry(t, e, "X", models.Income, "50", "2024-05-20", models.StatusCompleted)
	saveEntry(t, e, "X", models.Expense, "5", "2024-06-05", models.StatusCompleted)

	from, to := d("2024-05-01"), d("2024-05-31")
	st, err := e.Statement(ctx, testScope, "X", &from, &to)
	require.NoError(t, err)
	require.Len(t, st.Lines, 2)
	assert.True(t, st.OpeningBalance.Equal(dec("100")), "opening %s", st.OpeningBalance)
	assert.True(t, st.ClosingBalance.Equal(dec("120")), "closing %s", st.ClosingBalance)

	bad := from.Add(-24 * time.Hour)
	_, err = e.Statement(ctx, testScope, "X", &from, &bad)
	isValidation(t, err)
}
