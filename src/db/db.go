package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx pool and applies Schema.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if _, err := pool.Exec(ctx, Schema); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

const Schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id                   TEXT PRIMARY KEY,
	user_id              TEXT NOT NULL,
	is_business          BOOLEAN NOT NULL DEFAULT FALSE,
	company_id           TEXT,
	name                 TEXT NOT NULL DEFAULT '',
	balance              NUMERIC(20, 2) NOT NULL DEFAULT 0,
	initial_balance_date DATE NOT NULL,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS investments (
	id             TEXT PRIMARY KEY,
	user_id        TEXT NOT NULL,
	is_business    BOOLEAN NOT NULL DEFAULT FALSE,
	company_id     TEXT,
	name           TEXT NOT NULL DEFAULT '',
	value_per_unit NUMERIC(24, 8) NOT NULL DEFAULT 0,
	quantity       NUMERIC(24, 8) NOT NULL DEFAULT 0,
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS transactions (
	id                  TEXT PRIMARY KEY,
	seq                 BIGSERIAL,
	user_id             TEXT NOT NULL,
	is_business         BOOLEAN NOT NULL DEFAULT FALSE,
	company_id          TEXT,
	description         TEXT NOT NULL DEFAULT '',
	amount              NUMERIC(20, 2) NOT NULL CHECK (amount > 0),
	type                TEXT NOT NULL CHECK (type IN ('income', 'expense')),
	date                DATE NOT NULL,
	due_date            DATE NOT NULL,
	status              TEXT NOT NULL CHECK (status IN ('open', 'completed')),
	account_id          TEXT NOT NULL REFERENCES accounts(id),
	category_id         TEXT,
	payment_method      TEXT NOT NULL DEFAULT '',
	card_id             TEXT,
	transfer_id         TEXT,
	transfer_account_id TEXT,
	investment_id       TEXT REFERENCES investments(id),
	installment_number  INT,
	installments        INT,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_transactions_scope_due ON transactions (user_id, is_business, company_id, due_date, seq);
CREATE INDEX IF NOT EXISTS idx_transactions_account_due ON transactions (account_id, due_date);
CREATE INDEX IF NOT EXISTS idx_transactions_transfer ON transactions (transfer_id) WHERE transfer_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_transactions_investment ON transactions (investment_id) WHERE investment_id IS NOT NULL;
`
