package db

import (
	"context"
	"errors"
	"ledger-server/src/models"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a record does not exist in the requested scope.
	ErrNotFound = errors.New("record not found")

	// ErrTransient marks I/O failures that are safe to retry on reads.
	ErrTransient = errors.New("transient store error")
)

type transientError struct {
	err error
}

func (e *transientError) Error() string        { return "transient: " + e.err.Error() }
func (e *transientError) Unwrap() error        { return e.err }
func (e *transientError) Is(target error) bool { return target == ErrTransient }

// MarkTransient wraps err so that errors.Is(err, ErrTransient) holds.
func MarkTransient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// Store is the persistence contract of the ledger engine. Every method is
// scoped; rows outside the given scope behave as if they did not exist.
type Store interface {
	InsertTransactions(ctx context.Context, txs []models.Transaction) error
	UpdateTransaction(ctx context.Context, tx models.Transaction) error
	DeleteTransactions(ctx context.Context, scope models.Scope, where ...Predicate) (int64, error)
	GetTransaction(ctx context.Context, scope models.Scope, id string) (*models.Transaction, error)
	FindTransactions(ctx context.Context, q Query) ([]models.Transaction, error)

	SaveAccount(ctx context.Context, account models.Account) error
	GetAccount(ctx context.Context, scope models.Scope, id string) (*models.Account, error)
	ListAccounts(ctx context.Context, scope models.Scope) ([]models.Account, error)
	AdjustAccountBalance(ctx context.Context, scope models.Scope, id string, delta decimal.Decimal) error

	SaveInvestment(ctx context.Context, pos models.InvestmentPosition) error
	// GetInvestment with forUpdate locks the row until the enclosing InTx returns.
	GetInvestment(ctx context.Context, scope models.Scope, id string, forUpdate bool) (*models.InvestmentPosition, error)
	UpdateInvestmentValue(ctx context.Context, scope models.Scope, id string, valuePerUnit decimal.Decimal) error

	// InTx runs fn as one unit of work. If fn returns an error nothing it
	// wrote is kept. Calls nested inside fn join the outer unit.
	InTx(ctx context.Context, fn func(Store) error) error
}

// Query selects transactions. Where clauses are ANDed with the scope.
type Query struct {
	Scope     models.Scope
	Where     []Predicate
	OrderBy   []Order
	Limit     int
	Offset    int
	ForUpdate bool
}

type Order struct {
	Field Field
	Desc  bool
}

// DefaultOrder is the statement order: value date, then creation order.
var DefaultOrder = []Order{{Field: FieldDueDate}, {Field: FieldSeq}}

// Page iterates q in pages of size pageSize, calling fn for every page until
// a short page is returned.
func Page(ctx context.Context, s Store, q Query, pageSize int, fn func([]models.Transaction) error) error {
	if pageSize <= 0 {
		pageSize = 500
	}
	if len(q.OrderBy) == 0 {
		q.OrderBy = DefaultOrder
	}
	q.Limit = pageSize
	q.Offset = 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		rows, err := s.FindTransactions(ctx, q)
		if err != nil {
			return err
		}
		if len(rows) > 0 {
			if err := fn(rows); err != nil {
				return err
			}
		}
		if len(rows) < pageSize {
			return nil
		}
		q.Offset += pageSize
	}
}
