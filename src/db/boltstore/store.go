// Package boltstore is an embedded implementation of db.Store on bbolt. All
// writes inside InTx share one bolt read-write transaction, so the single
// writer lock stands in for row locks.
package boltstore

import (
	"context"
	"encoding/json"
	"fmt"
	"ledger-server/src/db"
	"ledger-server/src/models"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	bolt "go.etcd.io/bbolt"
)

// Bucket names.
const (
	BucketTransactions = "transactions"
	BucketAccounts     = "accounts"
	BucketInvestments  = "investments"
)

type Store struct {
	db *bolt.DB
	tx *bolt.Tx
}

// Open opens (or creates) the database file and initializes buckets.
func Open(path string) (*Store, error) {
	bdb, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = bdb.Update(func(tx *bolt.Tx) error {
		for _, bucket := range []string{BucketTransactions, BucketAccounts, BucketInvestments} {
			if _, err := tx.CreateBucketIfNotExists([]byte(bucket)); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = bdb.Close()
		return nil, err
	}

	return &Store{db: bdb}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) update(fn func(*bolt.Tx) error) error {
	if s.tx != nil {
		return fn(s.tx)
	}
	return s.db.Update(fn)
}

func (s *Store) view(fn func(*bolt.Tx) error) error {
	if s.tx != nil {
		return fn(s.tx)
	}
	return s.db.View(fn)
}

func (s *Store) InTx(ctx context.Context, fn func(db.Store) error) error {
	if s.tx != nil {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return fn(&Store{db: s.db, tx: tx})
	})
}

func bucket(tx *bolt.Tx, name string) (*bolt.Bucket, error) {
	b := tx.Bucket([]byte(name))
	if b == nil {
		return nil, fmt.Errorf("bucket %s not found", name)
	}
	return b, nil
}

func put(b *bolt.Bucket, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return b.Put([]byte(key), data)
}

func get(b *bolt.Bucket, key string, value any) error {
	data := b.Get([]byte(key))
	if data == nil {
		return db.ErrNotFound
	}
	return json.Unmarshal(data, value)
}

func (s *Store) InsertTransactions(ctx context.Context, txs []models.Transaction) error {
	return s.update(func(tx *bolt.Tx) error {
		b, err := bucket(tx, BucketTransactions)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		for i := range txs {
			t := &txs[i]
			if t.ID == "" {
				t.ID = uuid.NewString()
			}
			if b.Get([]byte(t.ID)) != nil {
				return fmt.Errorf("transaction %s already exists", t.ID)
			}
			seq, err := b.NextSequence()
			if err != nil {
				return err
			}
			t.Seq = int64(seq)
			t.CreatedAt = now
			t.UpdatedAt = now
			if err := put(b, t.ID, t); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) UpdateTransaction(ctx context.Context, t models.Transaction) error {
	return s.update(func(tx *bolt.Tx) error {
		b, err := bucket(tx, BucketTransactions)
		if err != nil {
			return err
		}
		var cur models.Transaction
		if err := get(b, t.ID, &cur); err != nil {
			return err
		}
		if !t.Scope().Contains(cur.Scope()) {
			return db.ErrNotFound
		}
		cur.Description = t.Description
		cur.Amount = t.Amount
		cur.Type = t.Type
		cur.Date = t.Date
		cur.DueDate = t.DueDate
		cur.Status = t.Status
		cur.AccountID = t.AccountID
		cur.CategoryID = t.CategoryID
		cur.PaymentMethod = t.PaymentMethod
		cur.CardID = t.CardID
		cur.TransferAccountID = t.TransferAccountID
		cur.UpdatedAt = time.Now().UTC()
		return put(b, cur.ID, cur)
	})
}

func (s *Store) DeleteTransactions(ctx context.Context, scope models.Scope, where ...db.Predicate) (int64, error) {
	if len(where) == 0 {
		return 0, fmt.Errorf("delete without a filter")
	}
	if err := db.Validate(where); err != nil {
		return 0, err
	}
	var n int64
	err := s.update(func(tx *bolt.Tx) error {
		b, err := bucket(tx, BucketTransactions)
		if err != nil {
			return err
		}
		// Collect first; deleting during ForEach invalidates the cursor.
		var keys [][]byte
		err = b.ForEach(func(k, v []byte) error {
			var t models.Transaction
			if err := json.Unmarshal(v, &t); err != nil {
				return err
			}
			if scope.Contains(t.Scope()) && db.MatchAll(t, where) {
				keys = append(keys, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		n = int64(len(keys))
		return nil
	})
	return n, err
}

func (s *Store) GetTransaction(ctx context.Context, scope models.Scope, id string) (*models.Transaction, error) {
	var t models.Transaction
	err := s.view(func(tx *bolt.Tx) error {
		b, err := bucket(tx, BucketTransactions)
		if err != nil {
			return err
		}
		return get(b, id, &t)
	})
	if err != nil {
		return nil, err
	}
	if !scope.Contains(t.Scope()) {
		return nil, db.ErrNotFound
	}
	return &t, nil
}

func (s *Store) FindTransactions(ctx context.Context, q db.Query) ([]models.Transaction, error) {
	if err := db.Validate(q.Where); err != nil {
		return nil, err
	}
	var txs []models.Transaction
	err := s.view(func(tx *bolt.Tx) error {
		b, err := bucket(tx, BucketTransactions)
		if err != nil {
			return err
		}
		return b.ForEach(func(k, v []byte) error {
			var t models.Transaction
			if err := json.Unmarshal(v, &t); err != nil {
				return fmt.Errorf("failed to unmarshal transaction: %w", err)
			}
			if q.Scope.Contains(t.Scope()) && db.MatchAll(t, q.Where) {
				txs = append(txs, t)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	db.SortTransactions(txs, q.OrderBy)
	if q.Offset > 0 {
		if q.Offset >= len(txs) {
			return nil, nil
		}
		txs = txs[q.Offset:]
	}
	if q.Limit > 0 && len(txs) > q.Limit {
		txs = txs[:q.Limit]
	}
	return txs, nil
}

func (s *Store) SaveAccount(ctx context.Context, a models.Account) error {
	return s.update(func(tx *bolt.Tx) error {
		b, err := bucket(tx, BucketAccounts)
		if err != nil {
			return err
		}
		var cur models.Account
		switch err := get(b, a.ID, &cur); {
		case err == nil:
			a.CreatedAt = cur.CreatedAt
		case err != db.ErrNotFound:
			return err
		default:
			a.CreatedAt = time.Now().UTC()
		}
		return put(b, a.ID, a)
	})
}

func (s *Store) GetAccount(ctx context.Context, scope models.Scope, id string) (*models.Account, error) {
	var a models.Account
	err := s.view(func(tx *bolt.Tx) error {
		b, err := bucket(tx, BucketAccounts)
		if err != nil {
			return err
		}
		return get(b, id, &a)
	})
	if err != nil {
		return nil, err
	}
	if !scope.Contains(a.Scope()) {
		return nil, db.ErrNotFound
	}
	return &a, nil
}

func (s *Store) ListAccounts(ctx context.Context, scope models.Scope) ([]models.Account, error) {
	var accounts []models.Account
	err := s.view(func(tx *bolt.Tx) error {
		b, err := bucket(tx, BucketAccounts)
		if err != nil {
			return err
		}
		return b.ForEach(func(k, v []byte) error {
			var a models.Account
			if err := json.Unmarshal(v, &a); err != nil {
				return fmt.Errorf("failed to unmarshal account: %w", err)
			}
			if scope.Contains(a.Scope()) {
				accounts = append(accounts, a)
			}
			return nil
		})
	})
	sort.Slice(accounts, func(i, j int) bool {
		if accounts[i].Name != accounts[j].Name {
			return accounts[i].Name < accounts[j].Name
		}
		return accounts[i].ID < accounts[j].ID
	})
	return accounts, err
}

func (s *Store) AdjustAccountBalance(ctx context.Context, scope models.Scope, id string, delta decimal.Decimal) error {
	return s.update(func(tx *bolt.Tx) error {
		b, err := bucket(tx, BucketAccounts)
		if err != nil {
			return err
		}
		var a models.Account
		if err := get(b, id, &a); err != nil {
			return err
		}
		if !scope.Contains(a.Scope()) {
			return db.ErrNotFound
		}
		a.Balance = a.Balance.Add(delta)
		return put(b, a.ID, a)
	})
}

func (s *Store) SaveInvestment(ctx context.Context, p models.InvestmentPosition) error {
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}
	return s.update(func(tx *bolt.Tx) error {
		b, err := bucket(tx, BucketInvestments)
		if err != nil {
			return err
		}
		return put(b, p.ID, p)
	})
}

func (s *Store) GetInvestment(ctx context.Context, scope models.Scope, id string, forUpdate bool) (*models.InvestmentPosition, error) {
	var p models.InvestmentPosition
	err := s.view(func(tx *bolt.Tx) error {
		b, err := bucket(tx, BucketInvestments)
		if err != nil {
			return err
		}
		return get(b, id, &p)
	})
	if err != nil {
		return nil, err
	}
	if !scope.Contains(p.Scope()) {
		return nil, db.ErrNotFound
	}
	return &p, nil
}

func (s *Store) UpdateInvestmentValue(ctx context.Context, scope models.Scope, id string, valuePerUnit decimal.Decimal) error {
	return s.update(func(tx *bolt.Tx) error {
		b, err := bucket(tx, BucketInvestments)
		if err != nil {
			return err
		}
		var p models.InvestmentPosition
		if err := get(b, id, &p); err != nil {
			return err
		}
		if !scope.Contains(p.Scope()) {
			return db.ErrNotFound
		}
		p.ValuePerUnit = valuePerUnit
		p.UpdatedAt = time.Now().UTC()
		return put(b, p.ID, p)
	})
}

var _ db.Store = (*Store)(nil)
