package handlers

import (
	"ledger-server/src/ledger"
	"ledger-server/src/models"
	"time"

	"github.com/shopspring/decimal"
)

// Dates travel as YYYY-MM-DD strings; timestamps keep RFC 3339.

type transactionResponse struct {
	ID                string                 `json:"id"`
	Description       string                 `json:"description"`
	Amount            decimal.Decimal        `json:"amount"`
	Type              models.TransactionType `json:"type"`
	Date              string                 `json:"date"`
	DueDate           string                 `json:"due_date"`
	Status            models.Status          `json:"status"`
	AccountID         string                 `json:"account_id"`
	CategoryID        *string                `json:"category_id,omitempty"`
	PaymentMethod     models.PaymentMethod   `json:"payment_method,omitempty"`
	CardID            *string                `json:"card_id,omitempty"`
	TransferID        *string                `json:"transfer_id,omitempty"`
	TransferAccountID *string                `json:"transfer_account_id,omitempty"`
	InvestmentID      *string                `json:"investment_id,omitempty"`
	InstallmentNumber *int                   `json:"installment_number,omitempty"`
	Installments      *int                   `json:"installments,omitempty"`
	IsBusiness        bool                   `json:"is_business"`
	CompanyID         *string                `json:"company_id,omitempty"`
	CreatedAt         time.Time              `json:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at"`
}

func toTransactionResponse(t models.Transaction) transactionResponse {
	return transactionResponse{
		ID:                t.ID,
		Description:       t.Description,
		Amount:            t.Amount,
		Type:              t.Type,
		Date:              formatDate(t.Date),
		DueDate:           formatDate(t.DueDate),
		Status:            t.Status,
		AccountID:         t.AccountID,
		CategoryID:        t.CategoryID,
		PaymentMethod:     t.PaymentMethod,
		CardID:            t.CardID,
		TransferID:        t.TransferID,
		TransferAccountID: t.TransferAccountID,
		InvestmentID:      t.InvestmentID,
		InstallmentNumber: t.InstallmentNumber,
		Installments:      t.Installments,
		IsBusiness:        t.IsBusiness,
		CompanyID:         t.CompanyID,
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
	}
}

func toTransactionResponses(txs []models.Transaction) []transactionResponse {
	out := make([]transactionResponse, len(txs))
	for i, t := range txs {
		out[i] = toTransactionResponse(t)
	}
	return out
}

type entryRequest struct {
	Description   string                 `json:"description"`
	Amount        decimal.Decimal        `json:"amount"`
	Type          models.TransactionType `json:"type"`
	Date          string                 `json:"date"`
	DueDate       string                 `json:"due_date"`
	Status        models.Status          `json:"status"`
	AccountID     string                 `json:"account_id"`
	CategoryID    *string                `json:"category_id"`
	PaymentMethod models.PaymentMethod   `json:"payment_method"`
	CardID        *string                `json:"card_id"`
	Installments  int                    `json:"installments"`
}

func (req entryRequest) toEntry() (ledger.EntryRequest, error) {
	date, err := requireDate("date", req.Date)
	if err != nil {
		return ledger.EntryRequest{}, err
	}
	due, err := parseDate("due_date", req.DueDate)
	if err != nil {
		return ledger.EntryRequest{}, err
	}
	return ledger.EntryRequest{
		Description:   req.Description,
		Amount:        req.Amount,
		Type:          req.Type,
		Date:          date,
		DueDate:       due,
		Status:        req.Status,
		AccountID:     req.AccountID,
		CategoryID:    req.CategoryID,
		PaymentMethod: req.PaymentMethod,
		CardID:        req.CardID,
	}, nil
}

type transferRequest struct {
	Description   string          `json:"description"`
	Amount        decimal.Decimal `json:"amount"`
	FromAccountID string          `json:"from_account_id"`
	ToAccountID   string          `json:"to_account_id"`
	Date          string          `json:"date"`
	DueDate       string          `json:"due_date"`
	Status        models.Status   `json:"status"`
}

type investmentOpRequest struct {
	Op          ledger.OpType   `json:"op"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	AccountID   string          `json:"account_id"`
	Date        string          `json:"date"`
	DueDate     string          `json:"due_date"`
	Status      models.Status   `json:"status"`
}

type updateRequest struct {
	Description   *string                 `json:"description"`
	Amount        *decimal.Decimal        `json:"amount"`
	Type          *models.TransactionType `json:"type"`
	Date          *string                 `json:"date"`
	DueDate       *string                 `json:"due_date"`
	Status        *models.Status          `json:"status"`
	AccountID     *string                 `json:"account_id"`
	CategoryID    *string                 `json:"category_id"`
	PaymentMethod *models.PaymentMethod   `json:"payment_method"`
	CardID        *string                 `json:"card_id"`
}

func (req updateRequest) toUpdate() (ledger.UpdateRequest, error) {
	out := ledger.UpdateRequest{
		Description:   req.Description,
		Amount:        req.Amount,
		Type:          req.Type,
		Status:        req.Status,
		AccountID:     req.AccountID,
		CategoryID:    req.CategoryID,
		PaymentMethod: req.PaymentMethod,
		CardID:        req.CardID,
	}
	if req.Date != nil {
		d, err := requireDate("date", *req.Date)
		if err != nil {
			return out, err
		}
		out.Date = &d
	}
	if req.DueDate != nil {
		d, err := requireDate("due_date", *req.DueDate)
		if err != nil {
			return out, err
		}
		out.DueDate = &d
	}
	return out, nil
}

type accountRequest struct {
	Name               string          `json:"name"`
	Balance            decimal.Decimal `json:"balance"`
	InitialBalanceDate string          `json:"initial_balance_date"`
}

type accountResponse struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	Balance            decimal.Decimal `json:"balance"`
	InitialBalanceDate string          `json:"initial_balance_date"`
	IsBusiness         bool            `json:"is_business"`
	CompanyID          *string         `json:"company_id,omitempty"`
}

func toAccountResponse(a models.Account) accountResponse {
	return accountResponse{
		ID:                 a.ID,
		Name:               a.Name,
		Balance:            a.Balance,
		InitialBalanceDate: formatDate(a.InitialBalanceDate),
		IsBusiness:         a.IsBusiness,
		CompanyID:          a.CompanyID,
	}
}

type balanceResponse struct {
	AccountID string          `json:"account_id"`
	Date      string          `json:"date"`
	Balance   decimal.Decimal `json:"balance"`
}

type statementLine struct {
	Transaction transactionResponse `json:"transaction"`
	Balance     decimal.Decimal     `json:"balance"`
}

type statementResponse struct {
	AccountID      string          `json:"account_id"`
	From           *string         `json:"from,omitempty"`
	To             *string         `json:"to,omitempty"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	ClosingBalance decimal.Decimal `json:"closing_balance"`
	Lines          []statementLine `json:"lines"`
}

func toStatementResponse(s models.Statement) statementResponse {
	lines := make([]statementLine, len(s.Lines))
	for i, l := range s.Lines {
		lines[i] = statementLine{Transaction: toTransactionResponse(l.Transaction), Balance: l.Balance}
	}
	return statementResponse{
		AccountID:      s.AccountID,
		From:           formatDatePtr(s.From),
		To:             formatDatePtr(s.To),
		OpeningBalance: s.OpeningBalance,
		ClosingBalance: s.ClosingBalance,
		Lines:          lines,
	}
}

type cashFlowResponse struct {
	Start              string                    `json:"start"`
	End                string                    `json:"end"`
	AccountID          *string                   `json:"account_id,omitempty"`
	StartBalance       decimal.Decimal           `json:"start_balance"`
	StartBalanceMethod models.StartBalanceMethod `json:"start_balance_method"`
	Inflow             decimal.Decimal           `json:"inflow"`
	Outflow            decimal.Decimal           `json:"outflow"`
	InvestmentIn       decimal.Decimal           `json:"investment_in"`
	InvestmentOut      decimal.Decimal           `json:"investment_out"`
	TransfersSkipped   int                       `json:"transfers_skipped"`
	FinalBalance       decimal.Decimal           `json:"final_balance"`
	Buckets            []models.BucketTotal      `json:"buckets"`
}

func toCashFlowResponse(c models.CashFlow) cashFlowResponse {
	return cashFlowResponse{
		Start:              formatDate(c.Start),
		End:                formatDate(c.End),
		AccountID:          c.AccountID,
		StartBalance:       c.StartBalance,
		StartBalanceMethod: c.StartBalanceMethod,
		Inflow:             c.Inflow,
		Outflow:            c.Outflow,
		InvestmentIn:       c.InvestmentIn,
		InvestmentOut:      c.InvestmentOut,
		TransfersSkipped:   c.TransfersSkipped,
		FinalBalance:       c.FinalBalance,
		Buckets:            c.Buckets,
	}
}

type investmentRequest struct {
	Name         string          `json:"name"`
	ValuePerUnit decimal.Decimal `json:"value_per_unit"`
	Quantity     decimal.Decimal `json:"quantity"`
}

type investmentResponse struct {
	models.InvestmentPosition
	Total decimal.Decimal `json:"total"`
}
