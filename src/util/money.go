package util

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// FormatAmount renders amount in the currency's display format, for example
// "$1,234.50". Unknown currencies fall back to the plain decimal.
func FormatAmount(amount decimal.Decimal, currency string) string {
	cur := money.GetCurrency(currency)
	if cur == nil {
		return amount.StringFixed(2)
	}
	factor := decimal.New(1, int32(cur.Fraction))
	minor := amount.Mul(factor).Round(0)
	return money.New(minor.IntPart(), cur.Code).Display()
}

// FormatSigned is FormatAmount with an explicit plus sign on positive amounts.
func FormatSigned(amount decimal.Decimal, currency string) string {
	if amount.IsPositive() {
		return "+" + FormatAmount(amount, currency)
	}
	return FormatAmount(amount, currency)
}
