package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type StatementLine struct {
	Transaction Transaction     `json:"transaction"`
	Balance     decimal.Decimal `json:"balance"`
}

type Statement struct {
	AccountID      string          `json:"account_id"`
	From           *time.Time      `json:"from,omitempty"`
	To             *time.Time      `json:"to,omitempty"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	ClosingBalance decimal.Decimal `json:"closing_balance"`
	Lines          []StatementLine `json:"lines"`
}
