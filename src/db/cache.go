package db

import (
	"fmt"
	"ledger-server/src/models"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/shopspring/decimal"
)

// BalanceCache holds reconstructed balances. Keys are tracked per account so
// that every entry for one account can be dropped after a write touches it.
// Every invalidation takes a new generation, so a balance read before it can
// no longer be stored.
type BalanceCache struct {
	cache *ristretto.Cache

	mu      sync.Mutex
	keys    map[string]map[string]struct{}
	gen     uint64
	dropped map[string]uint64
	cleared uint64
}

func NewBalanceCache() (*BalanceCache, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10000, // number of keys to track frequency of
		MaxCost:     10000,
		BufferItems: 64, // number of keys per Get buffer
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}
	return &BalanceCache{
		cache:   cache,
		keys:    make(map[string]map[string]struct{}),
		dropped: make(map[string]uint64),
	}, nil
}

func balanceKey(scope models.Scope, accountID string, date, today time.Time) string {
	return fmt.Sprintf("balance:%s:%s:%s:%s", scope, accountID, date.Format(models.DateFormat), today.Format(models.DateFormat))
}

func accountKey(scope models.Scope, accountID string) string {
	return scope.String() + ":" + accountID
}

func (c *BalanceCache) Get(scope models.Scope, accountID string, date, today time.Time) (decimal.Decimal, bool) {
	if c == nil {
		return decimal.Zero, false
	}
	v, ok := c.cache.Get(balanceKey(scope, accountID, date, today))
	if !ok {
		return decimal.Zero, false
	}
	d, ok := v.(decimal.Decimal)
	return d, ok
}

// Generation is taken before reading the rows a balance is built from and
// handed back to Set.
func (c *BalanceCache) Generation() uint64 {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// Set stores balance unless the account was invalidated after gen.
func (c *BalanceCache) Set(scope models.Scope, accountID string, date, today time.Time, gen uint64, balance decimal.Decimal) {
	if c == nil {
		return
	}
	key := balanceKey(scope, accountID, date, today)
	acct := accountKey(scope, accountID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dropped[acct] > gen || c.cleared > gen {
		return
	}
	set, ok := c.keys[acct]
	if !ok {
		set = make(map[string]struct{})
		c.keys[acct] = set
	}
	set[key] = struct{}{}

	c.cache.Set(key, balance, 1)
	c.cache.Wait()
}

// InvalidateAccount drops every cached balance of one account.
func (c *BalanceCache) InvalidateAccount(scope models.Scope, accountID string) {
	if c == nil {
		return
	}
	acct := accountKey(scope, accountID)
	c.mu.Lock()
	c.gen++
	c.dropped[acct] = c.gen
	for key := range c.keys[acct] {
		c.cache.Del(key)
	}
	delete(c.keys, acct)
	c.mu.Unlock()
}

// Clear drops every cached balance.
func (c *BalanceCache) Clear() {
	if c == nil {
		return
	}
	c.mu.Lock()
	for _, set := range c.keys {
		for key := range set {
			c.cache.Del(key)
		}
	}
	c.keys = make(map[string]map[string]struct{})
	c.gen++
	c.cleared = c.gen
	c.dropped = make(map[string]uint64)
	c.mu.Unlock()
}

func (c *BalanceCache) Close() {
	if c == nil {
		return
	}
	c.cache.Close()
}
