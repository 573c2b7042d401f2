package db

import (
	"ledger-server/src/models"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, _ := models.ParseDate(s)
	return t
}

func TestMatch(t *testing.T) {
	transfer := "tr-1"
	tx := models.Transaction{
		ID:          "tx-1",
		Seq:         7,
		Description: "Coffee at Market_Street",
		Amount:      decimal.RequireFromString("12.50"),
		Type:        models.Expense,
		DueDate:     day("2024-05-10"),
		Status:      models.StatusCompleted,
		AccountID:   "acc-1",
		TransferID:  &transfer,
	}

	tests := []struct {
		name string
		p    Predicate
		want bool
	}{
		{"eq string", Eq{Field: FieldAccountID, Value: "acc-1"}, true},
		{"eq typed constant", Eq{Field: FieldType, Value: models.Expense}, true},
		{"eq mismatch", Eq{Field: FieldStatus, Value: "open"}, false},
		{"eq wrong kind", Eq{Field: FieldAmount, Value: "12.50"}, false},
		{"eq seq", Eq{Field: FieldSeq, Value: 7}, true},
		{"in", In{Field: FieldID, Values: []any{"a", "tx-1"}}, true},
		{"in empty", In{Field: FieldID}, false},
		{"in nullable unset", In{Field: FieldInvestmentID, Values: []any{"x"}}, false},
		{"range inclusive", Range{Field: FieldDueDate, From: day("2024-05-10"), To: day("2024-05-10")}, true},
		{"range exclusive from", Range{Field: FieldDueDate, From: day("2024-05-10"), FromExclusive: true}, false},
		{"range exclusive to", Range{Field: FieldDueDate, To: day("2024-05-10"), ToExclusive: true}, false},
		{"range decimal", Range{Field: FieldAmount, From: decimal.NewFromInt(10), To: decimal.NewFromInt(20)}, true},
		{"like case-insensitive", Like{Field: FieldDescription, Pattern: "coffee%"}, true},
		{"like underscore", Like{Field: FieldDescription, Pattern: "%market_street"}, true},
		{"like anchored", Like{Field: FieldDescription, Pattern: "market%"}, false},
		{"like regexp chars are literal", Like{Field: FieldDescription, Pattern: "coffee.*"}, false},
		{"is null", IsNull{Field: FieldInvestmentID}, true},
		{"is not null", IsNull{Field: FieldTransferID, Not: true}, true},
		{"or", Or{Eq{Field: FieldID, Value: "zzz"}, Eq{Field: FieldTransferID, Value: "tr-1"}}, true},
		{"and", And{Eq{Field: FieldID, Value: "tx-1"}, Eq{Field: FieldStatus, Value: "open"}}, false},
		{"empty and", And{}, true},
		{"empty or", Or{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(tx, tt.p))
		})
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate([]Predicate{Or{Eq{Field: FieldID, Value: "x"}, IsNull{Field: FieldCardID}}}))
	assert.Error(t, Validate([]Predicate{Eq{Field: "amount; DROP TABLE", Value: 1}}))
	assert.Error(t, Validate([]Predicate{And{Range{Field: "balance"}}}))
}

func TestSortTransactions(t *testing.T) {
	txs := []models.Transaction{
		{ID: "c", Seq: 3, DueDate: day("2024-05-02")},
		{ID: "a", Seq: 2, DueDate: day("2024-05-01")},
		{ID: "b", Seq: 1, DueDate: day("2024-05-02")},
		{ID: "d", Seq: 4, DueDate: day("2024-04-30")},
	}

	SortTransactions(txs, nil)
	ids := func() []string {
		out := make([]string, len(txs))
		for i, t := range txs {
			out[i] = t.ID
		}
		return out
	}
	assert.Equal(t, []string{"d", "a", "b", "c"}, ids())

	SortTransactions(txs, []Order{{Field: FieldDueDate, Desc: true}})
	assert.Equal(t, []string{"b", "c", "a", "d"}, ids())
}
