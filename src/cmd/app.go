package cmd

import (
	"context"
	"fmt"
	"ledger-server/src/config"
	"ledger-server/src/db"
	"ledger-server/src/db/boltstore"
	"ledger-server/src/db/pg"
	"ledger-server/src/ledger"
	"time"

	"github.com/rs/zerolog"
)

// app is the wired engine plus whatever must be closed on exit.
type app struct {
	engine  *ledger.Engine
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newApp(ctx context.Context, cfg config.Config, log zerolog.Logger) (*app, error) {
	a := &app{}
	store, err := openStore(ctx, cfg, a)
	if err != nil {
		a.Close()
		return nil, err
	}

	policy := db.DefaultRetryPolicy
	policy.MaxAttempts = cfg.RetryMaxAttempts
	policy.BaseDelay = cfg.RetryBaseDelay
	policy.Jitter = cfg.RetryJitter
	store = db.NewRetryingStore(store, policy)

	var cache *db.BalanceCache
	if cfg.CacheEnabled {
		if cache, err = db.NewBalanceCache(); err != nil {
			a.Close()
			return nil, fmt.Errorf("balance cache: %w", err)
		}
		a.closers = append(a.closers, cache.Close)
	}

	rules := ledger.Rules{}
	if cfg.CategoryRulesPath != "" {
		if rules, err = ledger.LoadRules(cfg.CategoryRulesPath); err != nil {
			a.Close()
			return nil, err
		}
		log.Info().Str("path", cfg.CategoryRulesPath).Int("rules", len(rules.Rules)).Msg("Loaded category rules")
	}

	loc := cfg.Timezone
	if loc == nil {
		loc = time.UTC
	}
	a.engine = ledger.New(store, ledger.Options{
		Now:        func() time.Time { return time.Now().In(loc) },
		Logger:     log,
		Cache:      cache,
		Classifier: ledger.NewClassifier(rules),
		PageSize:   cfg.PageSize,
	})
	return a, nil
}

func openStore(ctx context.Context, cfg config.Config, a *app) (db.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverBolt:
		s, err := boltstore.Open(cfg.BoltPath)
		if err != nil {
			return nil, fmt.Errorf("open bolt store: %w", err)
		}
		a.closers = append(a.closers, func() { _ = s.Close() })
		return s, nil
	case config.DriverPostgres:
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("DB connection failed: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		return pg.New(pool), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
