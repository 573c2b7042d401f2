package cmd

import (
	"bytes"
	"context"
	"ledger-server/src/db/boltstore"
	"ledger-server/src/middleware"
	"ledger-server/src/models"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// boltEnv points the config at a fresh bolt file and returns its path.
func boltEnv(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.db")
	t.Setenv("STORE_DRIVER", "bolt")
	t.Setenv("BOLT_PATH", path)
	t.Setenv("JWT_SECRET", "cli-secret")
	t.Setenv("CURRENCY", "USD")
	t.Setenv("CACHE_ENABLED", "false")
	return path
}

func TestTokenCmd(t *testing.T) {
	boltEnv(t)
	out, err := run(t, "token", "--env", filepath.Join(t.TempDir(), "none.env"), "--user", "u1", "--company", "acme", "--admin")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(out))
	claims, err := middleware.ParseTokenFromRequest(req, []byte("cli-secret"))
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, []string{"acme"}, claims.CompanyIDs)
	assert.True(t, claims.Admin)

	_, err = run(t, "token")
	assert.Error(t, err, "--user is required")
}

func TestStatementCmd(t *testing.T) {
	path := boltEnv(t)

	store, err := boltstore.Open(path)
	require.NoError(t, err)
	ctx := context.Background()
	today := models.DateOf(time.Now())
	require.NoError(t, store.SaveAccount(ctx, models.Account{ID: "acc-1", UserID: "u1", Name: "Checking",
		Balance: decimal.RequireFromString("1150.5"), InitialBalanceDate: today}))
	require.NoError(t, store.InsertTransactions(ctx, []models.Transaction{{
		UserID: "u1", Description: "Salary", Amount: decimal.RequireFromString("1200.5"), Type: models.Income,
		Date: today, DueDate: today, Status: models.StatusCompleted, AccountID: "acc-1",
	}, {
		UserID: "u1", Description: "Rent", Amount: decimal.NewFromInt(50), Type: models.Expense,
		Date: today, DueDate: today, Status: models.StatusCompleted, AccountID: "acc-1",
	}}))
	require.NoError(t, store.Close())

	out, err := run(t, "statement", "--env", filepath.Join(t.TempDir(), "none.env"), "--user", "u1", "--account", "acc-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Opening balance")
	assert.Contains(t, out, "+$1,200.50")
	assert.Contains(t, out, "-$50.00")
	assert.Contains(t, out, "$1,150.50")

	_, err = run(t, "statement", "--env", filepath.Join(t.TempDir(), "none.env"), "--user", "u1", "--account", "acc-1", "--from", "June 1st")
	assert.ErrorContains(t, err, "--from")
}

func TestReconcileCmd_DryRun(t *testing.T) {
	boltEnv(t)
	out, err := run(t, "reconcile", "--env", filepath.Join(t.TempDir(), "none.env"), "--user", "u1", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "Problems: 0")
	assert.Contains(t, out, "dry run")

	_, err = run(t, "reconcile", "--env", filepath.Join(t.TempDir(), "none.env"), "--user", "u1", "--orphans", "resync")
	assert.Error(t, err)
}
