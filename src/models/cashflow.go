package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type StartBalanceMethod string

const (
	StartProjected     StartBalanceMethod = "projected"
	StartReconstructed StartBalanceMethod = "reconstructed"
)

type BucketTotal struct {
	Bucket string          `json:"bucket"`
	Type   TransactionType `json:"type"`
	Total  decimal.Decimal `json:"total"`
}

type CashFlow struct {
	Start              time.Time          `json:"start"`
	End                time.Time          `json:"end"`
	AccountID          *string            `json:"account_id,omitempty"`
	StartBalance       decimal.Decimal    `json:"start_balance"`
	StartBalanceMethod StartBalanceMethod `json:"start_balance_method"`
	Inflow             decimal.Decimal    `json:"inflow"`
	Outflow            decimal.Decimal    `json:"outflow"`
	InvestmentIn       decimal.Decimal    `json:"investment_in"`
	InvestmentOut      decimal.Decimal    `json:"investment_out"`
	TransfersSkipped   int                `json:"transfers_skipped"`
	FinalBalance       decimal.Decimal    `json:"final_balance"`
	Buckets            []BucketTotal      `json:"buckets"`
}
