package ledger

import (
	"context"
	"ledger-server/src/db"
	"ledger-server/src/models"

	"github.com/shopspring/decimal"
)

const MaxInstallments = 420

func isCardCharge(req EntryRequest) bool {
	return req.PaymentMethod.IsCardCharge() || req.CardID != nil
}

// SplitAmount divides total into count parts truncated to cents. The last
// part absorbs the remainder so the parts always sum to total.
func SplitAmount(total decimal.Decimal, count int) []decimal.Decimal {
	parts := make([]decimal.Decimal, count)
	if count <= 0 {
		return parts
	}
	n := decimal.NewFromInt(int64(count))
	share := total.Div(n).Truncate(2)
	for i := 0; i < count-1; i++ {
		parts[i] = share
	}
	parts[count-1] = total.Sub(share.Mul(decimal.NewFromInt(int64(count - 1))))
	return parts
}

// ExpandInstallments builds the rows of a series without writing them.
//
// A card charge keeps one inclusion date, moves the due date one calendar
// month per row and splits the amount. Any other series is recurring: both
// dates move one month per row and every row carries the full amount.
// Month steps are taken from the first row's day, clamped to month end.
func ExpandInstallments(scope models.Scope, base EntryRequest, count int) []models.Transaction {
	card := isCardCharge(base)
	amounts := make([]decimal.Decimal, count)
	if card {
		amounts = SplitAmount(base.Amount, count)
	} else {
		for i := range amounts {
			amounts[i] = base.Amount
		}
	}

	rows := make([]models.Transaction, count)
	for i := 0; i < count; i++ {
		row := base.row(scope)
		row.Amount = amounts[i]
		row.DueDate = models.AddMonths(base.DueDate, i)
		if !card {
			row.Date = models.AddMonths(base.Date, i)
		}
		number, total := i+1, count
		row.InstallmentNumber = &number
		row.Installments = &total
		rows[i] = row
	}
	return rows
}

// SaveInstallments writes count linked rows for base in one unit of work.
func (e *Engine) SaveInstallments(ctx context.Context, scope models.Scope, base EntryRequest, count int) ([]models.Transaction, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	if count < 1 || count > MaxInstallments {
		return nil, invalid("installments", "must be between 1 and %d", MaxInstallments)
	}
	if err := base.normalize(); err != nil {
		return nil, err
	}
	if isCardCharge(base) && base.Amount.LessThan(decimal.New(int64(count), -2)) {
		return nil, invalid("amount", "too small to split into %d installments", count)
	}

	rows := ExpandInstallments(scope, base, count)
	err := e.store.InTx(ctx, func(s db.Store) error {
		if _, err := requireAccount(ctx, s, scope, base.AccountID); err != nil {
			return err
		}
		return insert(ctx, s, scope, rows)
	})
	if err != nil {
		return nil, err
	}
	e.cache.InvalidateAccount(scope, base.AccountID)

	e.log.Info().Str("scope", scope.String()).Int("installments", count).
		Bool("card", isCardCharge(base)).Str("amount", base.Amount.String()).Msg("installments saved")
	return rows, nil
}
