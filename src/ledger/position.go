package ledger

import (
	"context"
	"errors"
	"ledger-server/src/db"
	"ledger-server/src/models"

	"github.com/shopspring/decimal"
)

// OpType is the kind of an investment operation.
type OpType string

const (
	Application OpType = "application"
	Redemption  OpType = "redemption"
)

func (o OpType) IsValid() bool {
	return o == Application || o == Redemption
}

// TransactionType is the row type an operation is recorded as.
func (o OpType) TransactionType() models.TransactionType {
	if o == Redemption {
		return models.Income
	}
	return models.Expense
}

// movement is the signed change a row makes to its position total:
// applications (expense) add, redemptions (income) subtract.
func movement(t models.Transaction) decimal.Decimal {
	if t.Type == models.Expense {
		return t.Amount
	}
	return t.Amount.Neg()
}

// Revalue returns the value per unit after undoing revert and applying apply
// to the position total. A position without quantity carries its total as
// the value per unit.
func Revalue(p models.InvestmentPosition, revert, apply decimal.Decimal) decimal.Decimal {
	total := p.Total().Sub(revert).Add(apply)
	if p.Quantity.IsPositive() {
		return total.Div(p.Quantity)
	}
	return total
}

// revalue locks the position and rewrites its value per unit. It must run
// inside a unit of work. reversal marks edits and deletes of an existing
// row, where a missing position is a broken pairing rather than bad input.
func (e *Engine) revalue(ctx context.Context, s db.Store, scope models.Scope, investmentID string, revert, apply decimal.Decimal, reversal bool) error {
	pos, err := s.GetInvestment(ctx, scope, investmentID, true)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) && reversal {
			return inconsistent("investment position %s missing during reversal", investmentID)
		}
		return storeErr(err, "investment", investmentID)
	}

	next := Revalue(*pos, revert, apply)
	if err := s.UpdateInvestmentValue(ctx, scope, investmentID, next); err != nil {
		return storeErr(err, "investment", investmentID)
	}

	e.log.Debug().
		Str("investment_id", investmentID).
		Str("value_per_unit_before", pos.ValuePerUnit.String()).
		Str("value_per_unit_after", next.String()).
		Msg("investment revalued")
	return nil
}
