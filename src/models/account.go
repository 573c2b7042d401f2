package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Account struct {
	ID                 string          `json:"id"`
	UserID             string          `json:"user_id"`
	IsBusiness         bool            `json:"is_business"`
	CompanyID          *string         `json:"company_id"`
	Name               string          `json:"name"`
	Balance            decimal.Decimal `json:"balance"`
	InitialBalanceDate time.Time       `json:"initial_balance_date"`
	CreatedAt          time.Time       `json:"created_at"`
}

func (a Account) Scope() Scope {
	return Scope{UserID: a.UserID, IsBusiness: a.IsBusiness, CompanyID: a.CompanyID}
}
