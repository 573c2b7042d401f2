package util

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		amount   string
		currency string
		want     string
	}{
		{"1234.5", "USD", "$1,234.50"},
		{"-12.345", "USD", "-$12.35"},
		{"0", "EUR", "€0.00"},
		{"1000", "JPY", "¥1,000"},
		{"9.99", "XXX-unknown", "9.99"},
	}
	for _, tt := range tests {
		t.Run(tt.currency+" "+tt.amount, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatAmount(decimal.RequireFromString(tt.amount), tt.currency))
		})
	}
	assert.Equal(t, "+$5.00", FormatSigned(decimal.NewFromInt(5), "USD"))
	assert.Equal(t, "-$5.00", FormatSigned(decimal.NewFromInt(-5), "USD"))
}

func TestValidateCurrency(t *testing.T) {
	assert.True(t, ValidateCurrency("BRL"))
	assert.False(t, ValidateCurrency("brl"))
	assert.False(t, ValidateCurrency("ZZZ"))
}

func TestParseAmount(t *testing.T) {
	d, err := ParseAmount(" 10.50 ")
	require.NoError(t, err)
	assert.True(t, d.Equal(decimal.RequireFromString("10.5")))

	d, err = ParseAmount("3.100")
	require.NoError(t, err)
	assert.True(t, d.Equal(decimal.RequireFromString("3.1")))

	_, err = ParseAmount("1.005")
	assert.Error(t, err)
	_, err = ParseAmount("ten")
	assert.Error(t, err)

	assert.True(t, IsCents(decimal.RequireFromString("12.30")))
	assert.False(t, IsCents(decimal.RequireFromString("0.001")))
}
