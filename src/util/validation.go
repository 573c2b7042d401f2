package util

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

var currencyCode = regexp.MustCompile(`^[A-Z]{3}$`)

func ValidateCurrency(code string) bool {
	return currencyCode.MatchString(code) && money.GetCurrency(code) != nil
}

// ParseAmount parses a money amount with at most two decimal places.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	if !IsCents(d) {
		return decimal.Zero, fmt.Errorf("amount %q has more than two decimal places", s)
	}
	return d, nil
}

// IsCents reports whether d has no digits below the cent.
func IsCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}
