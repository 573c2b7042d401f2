package ledger

import (
	"context"
	"ledger-server/src/models"
	"ledger-server/src/util"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateAccount registers an account whose Balance is valid as of now.
func (e *Engine) CreateAccount(ctx context.Context, scope models.Scope, name string, balance decimal.Decimal, initialBalanceDate time.Time) (*models.Account, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, invalid("name", "is required")
	}
	if !util.IsCents(balance) {
		return nil, invalid("balance", "must have at most two decimal places")
	}
	if initialBalanceDate.IsZero() {
		initialBalanceDate = e.today()
	}
	a := models.Account{
		ID:                 uuid.NewString(),
		UserID:             scope.UserID,
		IsBusiness:         scope.IsBusiness,
		CompanyID:          scope.CompanyID,
		Name:               name,
		Balance:            balance,
		InitialBalanceDate: models.DateOf(initialBalanceDate),
		CreatedAt:          e.now().UTC(),
	}
	if err := e.store.SaveAccount(ctx, a); err != nil {
		return nil, storeErr(err, "account", a.ID)
	}
	return &a, nil
}

func (e *Engine) GetAccount(ctx context.Context, scope models.Scope, id string) (*models.Account, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	a, err := e.store.GetAccount(ctx, scope, id)
	if err != nil {
		return nil, storeErr(err, "account", id)
	}
	return a, nil
}

func (e *Engine) ListAccounts(ctx context.Context, scope models.Scope) ([]models.Account, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	accounts, err := e.store.ListAccounts(ctx, scope)
	return accounts, storeErr(err, "account", "")
}

// CreateInvestment registers a position. Quantity is managed outside the
// engine; operations only move the value per unit.
func (e *Engine) CreateInvestment(ctx context.Context, scope models.Scope, name string, valuePerUnit, quantity decimal.Decimal) (*models.InvestmentPosition, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, invalid("name", "is required")
	}
	if quantity.IsNegative() {
		return nil, invalid("quantity", "must not be negative")
	}
	p := models.InvestmentPosition{
		ID:           uuid.NewString(),
		UserID:       scope.UserID,
		IsBusiness:   scope.IsBusiness,
		CompanyID:    scope.CompanyID,
		Name:         name,
		ValuePerUnit: valuePerUnit,
		Quantity:     quantity,
		UpdatedAt:    e.now().UTC(),
	}
	if err := e.store.SaveInvestment(ctx, p); err != nil {
		return nil, storeErr(err, "investment", p.ID)
	}
	return &p, nil
}

func (e *Engine) GetInvestment(ctx context.Context, scope models.Scope, id string) (*models.InvestmentPosition, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	p, err := e.store.GetInvestment(ctx, scope, id, false)
	if err != nil {
		return nil, storeErr(err, "investment", id)
	}
	return p, nil
}

// ClearCache drops every cached balance.
func (e *Engine) ClearCache() {
	e.cache.Clear()
}
