// Package ledger is the transaction engine: it writes income, expense,
// installment, transfer and investment rows, keeps account balances and
// investment valuations consistent with them, and derives historical and
// projected balances.
package ledger

import (
	"context"
	"ledger-server/src/db"
	"ledger-server/src/models"
	"time"

	"github.com/rs/zerolog"
)

const DefaultPageSize = 500

type Options struct {
	// Now returns the current instant; its location decides what "today" is.
	Now        func() time.Time
	Logger     zerolog.Logger
	Cache      *db.BalanceCache
	Classifier *Classifier
	PageSize   int
}

type Engine struct {
	store      db.Store
	now        func() time.Time
	log        zerolog.Logger
	cache      *db.BalanceCache
	classifier *Classifier
	pageSize   int
}

func New(store db.Store, opts Options) *Engine {
	e := &Engine{
		store:      store,
		now:        opts.Now,
		log:        opts.Logger,
		cache:      opts.Cache,
		classifier: opts.Classifier,
		pageSize:   opts.PageSize,
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.classifier == nil {
		e.classifier = NewClassifier(Rules{})
	}
	if e.pageSize <= 0 {
		e.pageSize = DefaultPageSize
	}
	return e
}

func (e *Engine) Store() db.Store { return e.store }

func (e *Engine) Classifier() *Classifier { return e.classifier }

// Today is the engine's current calendar day.
func (e *Engine) Today() time.Time { return e.today() }

func (e *Engine) today() time.Time {
	return models.DateOf(e.now())
}

func checkScope(scope models.Scope) error {
	if scope.UserID == "" {
		return &AuthError{Message: "no active session"}
	}
	if scope.CompanyID != nil && *scope.CompanyID == "" {
		return &AuthError{Message: "empty company id"}
	}
	return nil
}

// touched collects the accounts a unit of work changed so their cached
// balances can be dropped once it commits.
type touched map[string]struct{}

func (t touched) add(ids ...string) {
	for _, id := range ids {
		if id != "" {
			t[id] = struct{}{}
		}
	}
}

func (e *Engine) invalidate(scope models.Scope, accounts touched) {
	for id := range accounts {
		e.cache.InvalidateAccount(scope, id)
	}
}

// ListTransactions is the raw filtered query used by reporting collaborators.
func (e *Engine) ListTransactions(ctx context.Context, q db.Query) ([]models.Transaction, error) {
	if err := checkScope(q.Scope); err != nil {
		return nil, err
	}
	if err := db.Validate(q.Where); err != nil {
		return nil, &ValidationError{Field: "filter", Message: err.Error()}
	}
	q.ForUpdate = false
	txs, err := e.store.FindTransactions(ctx, q)
	return txs, storeErr(err, "transaction", "")
}

func (e *Engine) GetTransaction(ctx context.Context, scope models.Scope, id string) (*models.Transaction, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	t, err := e.store.GetTransaction(ctx, scope, id)
	if err != nil {
		return nil, storeErr(err, "transaction", id)
	}
	return t, nil
}
