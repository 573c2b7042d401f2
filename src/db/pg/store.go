package pg

import (
	"context"
	"errors"
	"fmt"
	"ledger-server/src/db"
	"ledger-server/src/models"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const transactionColumns = `id, seq, user_id, is_business, company_id, description, amount, type, date, due_date,
	status, account_id, category_id, payment_method, card_id, transfer_id, transfer_account_id, investment_id,
	installment_number, installments, created_at, updated_at`

// querier is satisfied by both the pool and an open pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the PostgreSQL implementation of db.Store.
type Store struct {
	pool *pgxpool.Pool
	q    querier
	inTx bool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, q: pool}
}

func (s *Store) InTx(ctx context.Context, fn func(db.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&Store{pool: s.pool, q: tx, inTx: true})
	})
	return wrap(err)
}

// wrap maps driver errors onto the store sentinels.
func wrap(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return db.ErrNotFound
	}
	if db.IsTransient(err) || errors.Is(err, db.ErrNotFound) {
		return err
	}
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return db.MarkTransient(err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// serialization_failure, deadlock_detected
		if pgErr.Code == "40001" || pgErr.Code == "40P01" {
			return db.MarkTransient(err)
		}
	}
	return err
}

func scanTransaction(row pgx.Row) (models.Transaction, error) {
	var t models.Transaction
	var paymentMethod, txType, status string
	err := row.Scan(&t.ID, &t.Seq, &t.UserID, &t.IsBusiness, &t.CompanyID, &t.Description, &t.Amount, &txType,
		&t.Date, &t.DueDate, &status, &t.AccountID, &t.CategoryID, &paymentMethod, &t.CardID, &t.TransferID,
		&t.TransferAccountID, &t.InvestmentID, &t.InstallmentNumber, &t.Installments, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return t, err
	}
	t.Type = models.TransactionType(txType)
	t.Status = models.Status(status)
	t.PaymentMethod = models.PaymentMethod(paymentMethod)
	t.Date = models.DateOf(t.Date)
	t.DueDate = models.DateOf(t.DueDate)
	return t, nil
}

func (s *Store) InsertTransactions(ctx context.Context, txs []models.Transaction) error {
	query := `
		INSERT INTO transactions (id, user_id, is_business, company_id, description, amount, type, date, due_date,
			status, account_id, category_id, payment_method, card_id, transfer_id, transfer_account_id, investment_id,
			installment_number, installments)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING seq, created_at, updated_at
	`
	for i := range txs {
		t := &txs[i]
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		err := s.q.QueryRow(ctx, query, t.ID, t.UserID, t.IsBusiness, t.CompanyID, t.Description, t.Amount,
			string(t.Type), t.Date, t.DueDate, string(t.Status), t.AccountID, t.CategoryID, string(t.PaymentMethod),
			t.CardID, t.TransferID, t.TransferAccountID, t.InvestmentID, t.InstallmentNumber, t.Installments).
			Scan(&t.Seq, &t.CreatedAt, &t.UpdatedAt)
		if err != nil {
			return wrap(fmt.Errorf("insert transaction %s: %w", t.ID, err))
		}
	}
	return nil
}

func (s *Store) UpdateTransaction(ctx context.Context, t models.Transaction) error {
	query := `
		UPDATE transactions
		SET description = $1, amount = $2, type = $3, date = $4, due_date = $5, status = $6, account_id = $7,
			category_id = $8, payment_method = $9, card_id = $10, transfer_account_id = $11, updated_at = NOW()
		WHERE id = $12 AND user_id = $13 AND is_business = $14 AND company_id IS NOT DISTINCT FROM $15
	`
	tag, err := s.q.Exec(ctx, query, t.Description, t.Amount, string(t.Type), t.Date, t.DueDate, string(t.Status),
		t.AccountID, t.CategoryID, string(t.PaymentMethod), t.CardID, t.TransferAccountID,
		t.ID, t.UserID, t.IsBusiness, t.CompanyID)
	if err != nil {
		return wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteTransactions(ctx context.Context, scope models.Scope, where ...db.Predicate) (int64, error) {
	query, args, err := deleteQuery(scope, where)
	if err != nil {
		return 0, err
	}
	tag, err := s.q.Exec(ctx, query, args...)
	if err != nil {
		return 0, wrap(err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) GetTransaction(ctx context.Context, scope models.Scope, id string) (*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE id = $1 AND user_id = $2 AND is_business = $3 AND company_id IS NOT DISTINCT FROM $4`
	t, err := scanTransaction(s.q.QueryRow(ctx, query, id, scope.UserID, scope.IsBusiness, scope.CompanyID))
	if err != nil {
		return nil, wrap(err)
	}
	return &t, nil
}

func (s *Store) FindTransactions(ctx context.Context, q db.Query) ([]models.Transaction, error) {
	query, args, err := selectQuery(q)
	if err != nil {
		return nil, err
	}
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, wrap(err)
	}
	defer rows.Close()

	var txs []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, wrap(err)
		}
		txs = append(txs, t)
	}
	return txs, wrap(rows.Err())
}

func (s *Store) SaveAccount(ctx context.Context, a models.Account) error {
	query := `
		INSERT INTO accounts (id, user_id, is_business, company_id, name, balance, initial_balance_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, balance = EXCLUDED.balance,
			initial_balance_date = EXCLUDED.initial_balance_date
	`
	_, err := s.q.Exec(ctx, query, a.ID, a.UserID, a.IsBusiness, a.CompanyID, a.Name, a.Balance, a.InitialBalanceDate)
	return wrap(err)
}

const accountColumns = `id, user_id, is_business, company_id, name, balance, initial_balance_date, created_at`

func scanAccount(row pgx.Row) (models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.UserID, &a.IsBusiness, &a.CompanyID, &a.Name, &a.Balance, &a.InitialBalanceDate, &a.CreatedAt)
	a.InitialBalanceDate = models.DateOf(a.InitialBalanceDate)
	return a, err
}

func (s *Store) GetAccount(ctx context.Context, scope models.Scope, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts
		WHERE id = $1 AND user_id = $2 AND is_business = $3 AND company_id IS NOT DISTINCT FROM $4`
	a, err := scanAccount(s.q.QueryRow(ctx, query, id, scope.UserID, scope.IsBusiness, scope.CompanyID))
	if err != nil {
		return nil, wrap(err)
	}
	return &a, nil
}

func (s *Store) ListAccounts(ctx context.Context, scope models.Scope) ([]models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts
		WHERE user_id = $1 AND is_business = $2 AND company_id IS NOT DISTINCT FROM $3
		ORDER BY name, id`
	rows, err := s.q.Query(ctx, query, scope.UserID, scope.IsBusiness, scope.CompanyID)
	if err != nil {
		return nil, wrap(err)
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, wrap(err)
		}
		accounts = append(accounts, a)
	}
	return accounts, wrap(rows.Err())
}

func (s *Store) AdjustAccountBalance(ctx context.Context, scope models.Scope, id string, delta decimal.Decimal) error {
	query := `
		UPDATE accounts SET balance = balance + $1
		WHERE id = $2 AND user_id = $3 AND is_business = $4 AND company_id IS NOT DISTINCT FROM $5
	`
	tag, err := s.q.Exec(ctx, query, delta, id, scope.UserID, scope.IsBusiness, scope.CompanyID)
	if err != nil {
		return wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (s *Store) SaveInvestment(ctx context.Context, p models.InvestmentPosition) error {
	query := `
		INSERT INTO investments (id, user_id, is_business, company_id, name, value_per_unit, quantity, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, value_per_unit = EXCLUDED.value_per_unit,
			quantity = EXCLUDED.quantity, updated_at = EXCLUDED.updated_at
	`
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now()
	}
	_, err := s.q.Exec(ctx, query, p.ID, p.UserID, p.IsBusiness, p.CompanyID, p.Name, p.ValuePerUnit, p.Quantity, p.UpdatedAt)
	return wrap(err)
}

func (s *Store) GetInvestment(ctx context.Context, scope models.Scope, id string, forUpdate bool) (*models.InvestmentPosition, error) {
	query := `
		SELECT id, user_id, is_business, company_id, name, value_per_unit, quantity, updated_at
		FROM investments
		WHERE id = $1 AND user_id = $2 AND is_business = $3 AND company_id IS NOT DISTINCT FROM $4
	`
	if forUpdate {
		query += " FOR UPDATE"
	}
	var p models.InvestmentPosition
	err := s.q.QueryRow(ctx, query, id, scope.UserID, scope.IsBusiness, scope.CompanyID).
		Scan(&p.ID, &p.UserID, &p.IsBusiness, &p.CompanyID, &p.Name, &p.ValuePerUnit, &p.Quantity, &p.UpdatedAt)
	if err != nil {
		return nil, wrap(err)
	}
	return &p, nil
}

func (s *Store) UpdateInvestmentValue(ctx context.Context, scope models.Scope, id string, valuePerUnit decimal.Decimal) error {
	query := `
		UPDATE investments SET value_per_unit = $1, updated_at = NOW()
		WHERE id = $2 AND user_id = $3 AND is_business = $4 AND company_id IS NOT DISTINCT FROM $5
	`
	tag, err := s.q.Exec(ctx, query, valuePerUnit, id, scope.UserID, scope.IsBusiness, scope.CompanyID)
	if err != nil {
		return wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

var _ db.Store = (*Store)(nil)
