package ledger

import (
	"ledger-server/src/models"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rulesYAML = `
categories:
  cat-rent: housing
rules:
  - name: groceries
    bucket: food
    type: expense
    keywords: [market, grocery]
  - name: big payroll
    bucket: salary
    when:
      and:
        - field: description
          op: contains
          value: payroll
        - field: amount
          op: gte
          value: 1000
  - name: cards
    bucket: card_bills
    when:
      field: payment_method
      op: in
      value: [credit_card, boleto]
fallback:
  expense: misc
`

func TestParseRules(t *testing.T) {
	r, err := ParseRules([]byte(rulesYAML))
	require.NoError(t, err)
	assert.Equal(t, "housing", r.Categories["cat-rent"])
	require.Len(t, r.Rules, 3)
	assert.Equal(t, models.Expense, r.Rules[0].Type)
	require.NotNil(t, r.Rules[1].When)
	assert.Len(t, r.Rules[1].When.And, 2)

	_, err = ParseRules([]byte("rules:\n  - name: empty\n    keywords: [x]\n"))
	assert.Error(t, err, "rule without bucket")

	_, err = ParseRules([]byte("rules:\n  - name: nothing\n    bucket: x\n"))
	assert.Error(t, err, "rule without keywords or condition")
}

func TestClassify(t *testing.T) {
	r, err := ParseRules([]byte(rulesYAML))
	require.NoError(t, err)
	c := NewClassifier(r)

	transfer := "t-1"
	investment := "fund"
	rent := "cat-rent"
	other := "cat-unknown"

	tests := []struct {
		name string
		tx   models.Transaction
		want Classification
	}{
		{"transfer id wins over everything",
			models.Transaction{Type: models.Expense, TransferID: &transfer, InvestmentID: &investment},
			Classification{Kind: FlowTransfer, Rule: "transfer_id"}},
		{"transfer payment method",
			models.Transaction{Type: models.Income, PaymentMethod: models.PaymentTransfer},
			Classification{Kind: FlowTransfer, Rule: "transfer_method"}},
		{"investment",
			models.Transaction{Type: models.Income, InvestmentID: &investment},
			Classification{Kind: FlowInvestment, Rule: "investment_id"}},
		{"mapped category beats keywords",
			models.Transaction{Type: models.Expense, CategoryID: &rent, Description: "market"},
			Classification{Kind: FlowExpense, Bucket: "housing", Rule: "category"}},
		{"keyword is case-insensitive",
			models.Transaction{Type: models.Expense, CategoryID: &other, Description: "SUPERMARKET 24h"},
			Classification{Kind: FlowExpense, Bucket: "food", Rule: "rule:groceries"}},
		{"keyword rule limited to its type",
			models.Transaction{Type: models.Income, Description: "market refund", Amount: dec("10")},
			Classification{Kind: FlowIncome, Bucket: DefaultIncomeBucket, Rule: "fallback"}},
		{"condition tree",
			models.Transaction{Type: models.Income, Description: "ACME payroll", Amount: dec("4200")},
			Classification{Kind: FlowIncome, Bucket: "salary", Rule: "rule:big payroll"}},
		{"condition tree below threshold",
			models.Transaction{Type: models.Income, Description: "ACME payroll", Amount: dec("999.99")},
			Classification{Kind: FlowIncome, Bucket: DefaultIncomeBucket, Rule: "fallback"}},
		{"in operator",
			models.Transaction{Type: models.Expense, PaymentMethod: models.PaymentBoleto, Amount: dec("1")},
			Classification{Kind: FlowExpense, Bucket: "card_bills", Rule: "rule:cards"}},
		{"configured expense fallback",
			models.Transaction{Type: models.Expense, PaymentMethod: models.PaymentCash, Amount: dec("1")},
			Classification{Kind: FlowExpense, Bucket: "misc", Rule: "fallback"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.tx))
		})
	}
}

func TestClassify_EmptyRules(t *testing.T) {
	c := NewClassifier(Rules{})
	got := c.Classify(models.Transaction{Type: models.Expense})
	assert.Equal(t, Classification{Kind: FlowExpense, Bucket: DefaultExpenseBucket, Rule: "fallback"}, got)
}
