package ledger

import (
	"context"
	"ledger-server/src/db"
	"ledger-server/src/models"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentAccounts bounds the per-account reconstructions of a past start.
const maxConcurrentAccounts = 4

// CashFlow aggregates the rows due in [start, end) for the scope, or for a
// single account when accountID is set. Transfers are counted but never
// summed.
func (e *Engine) CashFlow(ctx context.Context, scope models.Scope, start, end time.Time, accountID *string) (*models.CashFlow, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	start, end = models.DateOf(start), models.DateOf(end)
	if !end.After(start) {
		return nil, invalid("end", "must be after start")
	}

	var accounts []models.Account
	if accountID != nil {
		a, err := e.store.GetAccount(ctx, scope, *accountID)
		if err != nil {
			return nil, storeErr(err, "account", *accountID)
		}
		accounts = []models.Account{*a}
	} else {
		var err error
		accounts, err = e.store.ListAccounts(ctx, scope)
		if err != nil {
			return nil, storeErr(err, "account", "")
		}
	}

	cf := &models.CashFlow{
		Start:         start,
		End:           end,
		AccountID:     accountID,
		Inflow:        decimal.Zero,
		Outflow:       decimal.Zero,
		InvestmentIn:  decimal.Zero,
		InvestmentOut: decimal.Zero,
	}

	var err error
	cf.StartBalance, cf.StartBalanceMethod, err = e.startBalance(ctx, scope, start, accounts, accountID != nil)
	if err != nil {
		return nil, err
	}

	where := []db.Predicate{db.Range{Field: db.FieldDueDate, From: start, To: end, ToExclusive: true}}
	if accountID != nil {
		where = append(where, db.Eq{Field: db.FieldAccountID, Value: *accountID})
	}

	type bucketKey struct {
		bucket string
		typ    models.TransactionType
	}
	buckets := map[bucketKey]decimal.Decimal{}
	err = db.Page(ctx, e.store, db.Query{Scope: scope, Where: where}, e.pageSize, func(rows []models.Transaction) error {
		for _, t := range rows {
			c := e.classifier.Classify(t)
			switch c.Kind {
			case FlowTransfer:
				cf.TransfersSkipped++
			case FlowInvestment:
				if t.Type == models.Income {
					cf.InvestmentIn = cf.InvestmentIn.Add(t.Amount)
				} else {
					cf.InvestmentOut = cf.InvestmentOut.Add(t.Amount)
				}
			case FlowIncome:
				cf.Inflow = cf.Inflow.Add(t.Amount)
				k := bucketKey{c.Bucket, models.Income}
				buckets[k] = buckets[k].Add(t.Amount)
			case FlowExpense:
				cf.Outflow = cf.Outflow.Add(t.Amount)
				k := bucketKey{c.Bucket, models.Expense}
				buckets[k] = buckets[k].Add(t.Amount)
			}
		}
		return nil
	})
	if err != nil {
		return nil, storeErr(err, "transaction", "")
	}

	cf.Buckets = make([]models.BucketTotal, 0, len(buckets))
	for k, total := range buckets {
		cf.Buckets = append(cf.Buckets, models.BucketTotal{Bucket: k.bucket, Type: k.typ, Total: total})
	}
	sort.Slice(cf.Buckets, func(i, j int) bool {
		if cf.Buckets[i].Type != cf.Buckets[j].Type {
			return cf.Buckets[i].Type < cf.Buckets[j].Type
		}
		return cf.Buckets[i].Bucket < cf.Buckets[j].Bucket
	})

	cf.FinalBalance = cf.StartBalance.
		Add(cf.Inflow).
		Sub(cf.Outflow).
		Add(cf.InvestmentIn.Sub(cf.InvestmentOut))

	e.log.Debug().Str("scope", scope.String()).Time("start", start).Time("end", end).
		Str("start_balance", cf.StartBalance.String()).Str("final_balance", cf.FinalBalance.String()).
		Int("transfers_skipped", cf.TransfersSkipped).Msg("cash flow aggregated")
	return cf, nil
}

// startBalance projects the balance forward for a future start, otherwise
// reconstructs each account at the beginning of start and sums them.
func (e *Engine) startBalance(ctx context.Context, scope models.Scope, start time.Time, accounts []models.Account, single bool) (decimal.Decimal, models.StartBalanceMethod, error) {
	today := e.today()

	if start.After(today) {
		total := decimal.Zero
		ids := make([]string, 0, len(accounts))
		for _, a := range accounts {
			total = total.Add(a.Balance)
			ids = append(ids, a.ID)
		}
		var filter []string
		if single {
			filter = ids
		}
		projected, err := e.applyOpen(ctx, scope, total, filter, db.Range{Field: db.FieldDueDate, From: today, To: start, ToExclusive: true})
		return projected, models.StartProjected, err
	}

	balances := make([]decimal.Decimal, len(accounts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentAccounts)
	for i, a := range accounts {
		i, a := i, a
		g.Go(func() error {
			b, err := e.revertCompleted(gctx, scope, a, db.Range{Field: db.FieldDueDate, From: start, To: today})
			if err != nil {
				return err
			}
			balances[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return decimal.Zero, "", err
	}

	total := decimal.Zero
	for _, b := range balances {
		total = total.Add(b)
	}
	return total, models.StartReconstructed, nil
}
