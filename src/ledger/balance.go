package ledger

import (
	"context"
	"ledger-server/src/db"
	"ledger-server/src/models"
	"time"

	"github.com/shopspring/decimal"
)

// BalanceAt returns the balance of an account at the end of date. Past dates
// reverse completed rows due after date; future dates add open rows due
// from today through date.
func (e *Engine) BalanceAt(ctx context.Context, scope models.Scope, accountID string, date time.Time) (decimal.Decimal, error) {
	if err := checkScope(scope); err != nil {
		return decimal.Zero, err
	}
	gen := e.cache.Generation()
	account, err := e.store.GetAccount(ctx, scope, accountID)
	if err != nil {
		return decimal.Zero, storeErr(err, "account", accountID)
	}

	d, today := models.DateOf(date), e.today()
	if d.Equal(today) {
		return account.Balance, nil
	}
	if cached, ok := e.cache.Get(scope, accountID, d, today); ok {
		return cached, nil
	}

	var balance decimal.Decimal
	if d.Before(today) {
		balance, err = e.revertCompleted(ctx, scope, *account, db.Range{Field: db.FieldDueDate, From: d, FromExclusive: true, To: today})
	} else {
		balance, err = e.applyOpen(ctx, scope, account.Balance, []string{accountID}, db.Range{Field: db.FieldDueDate, From: today, To: d})
	}
	if err != nil {
		return decimal.Zero, err
	}

	e.cache.Set(scope, accountID, d, today, gen, balance)
	return balance, nil
}

// revertCompleted backs the completed rows of one account due in window out
// of its snapshot balance.
func (e *Engine) revertCompleted(ctx context.Context, scope models.Scope, account models.Account, window db.Range) (decimal.Decimal, error) {
	balance := account.Balance
	q := db.Query{
		Scope: scope,
		Where: []db.Predicate{
			db.Eq{Field: db.FieldAccountID, Value: account.ID},
			db.Eq{Field: db.FieldStatus, Value: string(models.StatusCompleted)},
			window,
		},
	}
	err := db.Page(ctx, e.store, q, e.pageSize, func(rows []models.Transaction) error {
		for _, t := range rows {
			balance = balance.Sub(t.SignedAmount())
		}
		return nil
	})
	if err != nil {
		return decimal.Zero, storeErr(err, "account", account.ID)
	}
	return balance, nil
}

// applyOpen adds the open rows due in window to start. A nil accountIDs
// covers every account in scope.
func (e *Engine) applyOpen(ctx context.Context, scope models.Scope, start decimal.Decimal, accountIDs []string, window db.Range) (decimal.Decimal, error) {
	where := []db.Predicate{
		db.Eq{Field: db.FieldStatus, Value: string(models.StatusOpen)},
		window,
	}
	if accountIDs != nil {
		where = append(where, db.InStrings(db.FieldAccountID, accountIDs))
	}
	balance := start
	err := db.Page(ctx, e.store, db.Query{Scope: scope, Where: where}, e.pageSize, func(rows []models.Transaction) error {
		for _, t := range rows {
			balance = balance.Add(t.SignedAmount())
		}
		return nil
	})
	if err != nil {
		return decimal.Zero, storeErr(err, "transaction", "")
	}
	return balance, nil
}

// Statement returns the running balance of an account over its completed
// rows, ordered by due date then creation order. Without a window the
// replay starts before the earliest row and ends at the snapshot balance.
// from and to restrict the lines to rows due in [from, to].
func (e *Engine) Statement(ctx context.Context, scope models.Scope, accountID string, from, to *time.Time) (*models.Statement, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	if from != nil && to != nil && to.Before(*from) {
		return nil, invalid("to", "must not be before from")
	}
	account, err := e.store.GetAccount(ctx, scope, accountID)
	if err != nil {
		return nil, storeErr(err, "account", accountID)
	}

	where := []db.Predicate{
		db.Eq{Field: db.FieldAccountID, Value: accountID},
		db.Eq{Field: db.FieldStatus, Value: string(models.StatusCompleted)},
	}
	st := &models.Statement{AccountID: accountID}
	if from != nil {
		f := models.DateOf(*from)
		st.From = &f
		where = append(where, db.Range{Field: db.FieldDueDate, From: f})
	}
	if to != nil {
		t := models.DateOf(*to)
		st.To = &t
	}

	// Every row due on or after from is backed out of the snapshot; only
	// those due by to become lines.
	backedOut := decimal.Zero
	var lines []models.Transaction
	q := db.Query{Scope: scope, Where: where, OrderBy: db.DefaultOrder}
	err = db.Page(ctx, e.store, q, e.pageSize, func(rows []models.Transaction) error {
		for _, t := range rows {
			backedOut = backedOut.Add(t.SignedAmount())
			if st.To == nil || !t.DueDate.After(*st.To) {
				lines = append(lines, t)
			}
		}
		return nil
	})
	if err != nil {
		return nil, storeErr(err, "account", accountID)
	}

	st.OpeningBalance = account.Balance.Sub(backedOut)
	running := st.OpeningBalance
	st.Lines = make([]models.StatementLine, 0, len(lines))
	for _, t := range lines {
		running = running.Add(t.SignedAmount())
		st.Lines = append(st.Lines, models.StatementLine{Transaction: t, Balance: running})
	}
	st.ClosingBalance = running

	if st.To == nil && !running.Equal(account.Balance) {
		return nil, inconsistent("statement replay for account %s ends at %s, balance is %s", accountID, running, account.Balance)
	}
	return st, nil
}
