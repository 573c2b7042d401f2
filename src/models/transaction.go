package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

func (t TransactionType) IsValid() bool {
	return t == Income || t == Expense
}

// Opposite returns the type of the other leg of a transfer.
func (t TransactionType) Opposite() TransactionType {
	if t == Income {
		return Expense
	}
	return Income
}

type Status string

const (
	StatusOpen      Status = "open"
	StatusCompleted Status = "completed"
)

func (s Status) IsValid() bool {
	return s == StatusOpen || s == StatusCompleted
}

type PaymentMethod string

const (
	PaymentCash       PaymentMethod = "cash"
	PaymentDebit      PaymentMethod = "debit"
	PaymentPix        PaymentMethod = "pix"
	PaymentBoleto     PaymentMethod = "boleto"
	PaymentCreditCard PaymentMethod = "credit_card"
	PaymentTransfer   PaymentMethod = "transfer"
)

// IsCardCharge reports whether installments of this method share one inclusion date.
func (p PaymentMethod) IsCardCharge() bool {
	return p == PaymentCreditCard
}

type Transaction struct {
	ID                string          `json:"id"`
	Seq               int64           `json:"seq"`
	UserID            string          `json:"user_id"`
	IsBusiness        bool            `json:"is_business"`
	CompanyID         *string         `json:"company_id"`
	Description       string          `json:"description"`
	Amount            decimal.Decimal `json:"amount"`
	Type              TransactionType `json:"type"`
	Date              time.Time       `json:"date"`
	DueDate           time.Time       `json:"due_date"`
	Status            Status          `json:"status"`
	AccountID         string          `json:"account_id"`
	CategoryID        *string         `json:"category_id"`
	PaymentMethod     PaymentMethod   `json:"payment_method"`
	CardID            *string         `json:"card_id"`
	TransferID        *string         `json:"transfer_id"`
	TransferAccountID *string         `json:"transfer_account_id"`
	InvestmentID      *string         `json:"investment_id"`
	InstallmentNumber *int            `json:"installment_number"`
	Installments      *int            `json:"installments"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func (t Transaction) Scope() Scope {
	return Scope{UserID: t.UserID, IsBusiness: t.IsBusiness, CompanyID: t.CompanyID}
}

func (t Transaction) IsTransferLeg() bool {
	return t.TransferID != nil
}

func (t Transaction) IsInvestment() bool {
	return t.InvestmentID != nil
}

// SignedAmount is the effect of the row on its account balance.
func (t Transaction) SignedAmount() decimal.Decimal {
	if t.Type == Expense {
		return t.Amount.Neg()
	}
	return t.Amount
}

// BalanceEffect is the amount a completed row contributes to Account.Balance.
// Open rows contribute nothing.
func (t Transaction) BalanceEffect() decimal.Decimal {
	if t.Status != StatusCompleted {
		return decimal.Zero
	}
	return t.SignedAmount()
}
