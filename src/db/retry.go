package db

import (
	"context"
	"ledger-server/src/models"
	"math/rand"
	"time"
)

// RetryPolicy controls how transient read failures are retried.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	// Jitter is the fraction (0..1) of each delay that is randomized.
	Jitter float64
}

var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 3,
	BaseDelay:   50 * time.Millisecond,
	Multiplier:  2,
	Jitter:      0.2,
}

// Delay returns the wait before the given retry (1-based).
func (p RetryPolicy) Delay(retry int) time.Duration {
	d := float64(p.BaseDelay)
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	for i := 1; i < retry; i++ {
		d *= mult
	}
	if p.Jitter > 0 {
		d += d * p.Jitter * (rand.Float64()*2 - 1)
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

// Do runs fn until it succeeds, fails with a non-transient error, or the
// attempts run out.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		if err == nil || !IsTransient(err) || attempt == attempts {
			return err
		}
		timer := time.NewTimer(p.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

// RetryingStore retries the read methods of Store under Policy. Writes and
// InTx go straight through.
type RetryingStore struct {
	Store
	Policy RetryPolicy
}

func NewRetryingStore(s Store, p RetryPolicy) *RetryingStore {
	return &RetryingStore{Store: s, Policy: p}
}

func (r *RetryingStore) GetTransaction(ctx context.Context, scope models.Scope, id string) (*models.Transaction, error) {
	var tx *models.Transaction
	err := r.Policy.Do(ctx, func() error {
		var err error
		tx, err = r.Store.GetTransaction(ctx, scope, id)
		return err
	})
	return tx, err
}

func (r *RetryingStore) FindTransactions(ctx context.Context, q Query) ([]models.Transaction, error) {
	if q.ForUpdate {
		return r.Store.FindTransactions(ctx, q)
	}
	var txs []models.Transaction
	err := r.Policy.Do(ctx, func() error {
		var err error
		txs, err = r.Store.FindTransactions(ctx, q)
		return err
	})
	return txs, err
}

func (r *RetryingStore) GetAccount(ctx context.Context, scope models.Scope, id string) (*models.Account, error) {
	var a *models.Account
	err := r.Policy.Do(ctx, func() error {
		var err error
		a, err = r.Store.GetAccount(ctx, scope, id)
		return err
	})
	return a, err
}

func (r *RetryingStore) ListAccounts(ctx context.Context, scope models.Scope) ([]models.Account, error) {
	var accounts []models.Account
	err := r.Policy.Do(ctx, func() error {
		var err error
		accounts, err = r.Store.ListAccounts(ctx, scope)
		return err
	})
	return accounts, err
}

func (r *RetryingStore) GetInvestment(ctx context.Context, scope models.Scope, id string, forUpdate bool) (*models.InvestmentPosition, error) {
	if forUpdate {
		return r.Store.GetInvestment(ctx, scope, id, true)
	}
	var p *models.InvestmentPosition
	err := r.Policy.Do(ctx, func() error {
		var err error
		p, err = r.Store.GetInvestment(ctx, scope, id, false)
		return err
	})
	return p, err
}
