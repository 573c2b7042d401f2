package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type InvestmentPosition struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	IsBusiness   bool            `json:"is_business"`
	CompanyID    *string         `json:"company_id"`
	Name         string          `json:"name"`
	ValuePerUnit decimal.Decimal `json:"value_per_unit"`
	Quantity     decimal.Decimal `json:"quantity"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (p InvestmentPosition) Scope() Scope {
	return Scope{UserID: p.UserID, IsBusiness: p.IsBusiness, CompanyID: p.CompanyID}
}

// Total is the position value, value_per_unit * quantity. A position
// without quantity is a single lot whose value per unit is its total.
func (p InvestmentPosition) Total() decimal.Decimal {
	if !p.Quantity.IsPositive() {
		return p.ValuePerUnit
	}
	return p.ValuePerUnit.Mul(p.Quantity)
}
