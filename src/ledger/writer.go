package ledger

import (
	"context"
	"ledger-server/src/db"
	"ledger-server/src/models"
	"ledger-server/src/util"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryRequest describes one income or expense entry. A zero DueDate
// defaults to Date and an empty Status to open.
type EntryRequest struct {
	Description   string
	Amount        decimal.Decimal
	Type          models.TransactionType
	Date          time.Time
	DueDate       time.Time
	Status        models.Status
	AccountID     string
	CategoryID    *string
	PaymentMethod models.PaymentMethod
	CardID        *string
}

// checkAmount accepts positive amounts in whole cents.
func checkAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return invalid("amount", "must be greater than zero")
	}
	if !util.IsCents(amount) {
		return invalid("amount", "must have at most two decimal places")
	}
	return nil
}

func (r *EntryRequest) normalize() error {
	if err := checkAmount(r.Amount); err != nil {
		return err
	}
	if r.AccountID == "" {
		return invalid("account_id", "is required")
	}
	if !r.Type.IsValid() {
		return invalid("type", "must be income or expense")
	}
	if r.Date.IsZero() {
		return invalid("date", "is required")
	}
	if r.PaymentMethod == models.PaymentTransfer {
		return invalid("payment_method", "transfers must be saved as a transfer pair")
	}
	if r.Status == "" {
		r.Status = models.StatusOpen
	}
	if !r.Status.IsValid() {
		return invalid("status", "must be open or completed")
	}
	r.Date = models.DateOf(r.Date)
	if r.DueDate.IsZero() {
		r.DueDate = r.Date
	}
	r.DueDate = models.DateOf(r.DueDate)
	return nil
}

func (r EntryRequest) row(scope models.Scope) models.Transaction {
	return models.Transaction{
		UserID:        scope.UserID,
		IsBusiness:    scope.IsBusiness,
		CompanyID:     scope.CompanyID,
		Description:   r.Description,
		Amount:        r.Amount,
		Type:          r.Type,
		Date:          r.Date,
		DueDate:       r.DueDate,
		Status:        r.Status,
		AccountID:     r.AccountID,
		CategoryID:    r.CategoryID,
		PaymentMethod: r.PaymentMethod,
		CardID:        r.CardID,
	}
}

// adjust moves an account balance by delta inside a unit of work.
func adjust(ctx context.Context, s db.Store, scope models.Scope, accountID string, delta decimal.Decimal) error {
	if delta.IsZero() {
		return nil
	}
	return storeErr(s.AdjustAccountBalance(ctx, scope, accountID, delta), "account", accountID)
}

// rebalance moves the balance effect of a row from its old state to its new one.
func rebalance(ctx context.Context, s db.Store, scope models.Scope, before, after models.Transaction) error {
	if before.AccountID == after.AccountID {
		return adjust(ctx, s, scope, after.AccountID, after.BalanceEffect().Sub(before.BalanceEffect()))
	}
	if err := adjust(ctx, s, scope, before.AccountID, before.BalanceEffect().Neg()); err != nil {
		return err
	}
	return adjust(ctx, s, scope, after.AccountID, after.BalanceEffect())
}

func requireAccount(ctx context.Context, s db.Store, scope models.Scope, id string) (*models.Account, error) {
	a, err := s.GetAccount(ctx, scope, id)
	if err != nil {
		return nil, storeErr(err, "account", id)
	}
	return a, nil
}

// insert writes rows and applies their balance effects. It must run inside
// a unit of work.
func insert(ctx context.Context, s db.Store, scope models.Scope, rows []models.Transaction) error {
	if err := s.InsertTransactions(ctx, rows); err != nil {
		return storeErr(err, "transaction", "")
	}
	for _, r := range rows {
		if err := adjust(ctx, s, scope, r.AccountID, r.BalanceEffect()); err != nil {
			return err
		}
	}
	return nil
}

// SaveSimple writes one income or expense row.
func (e *Engine) SaveSimple(ctx context.Context, scope models.Scope, req EntryRequest) (*models.Transaction, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	if err := req.normalize(); err != nil {
		return nil, err
	}

	rows := []models.Transaction{req.row(scope)}
	err := e.store.InTx(ctx, func(s db.Store) error {
		if _, err := requireAccount(ctx, s, scope, req.AccountID); err != nil {
			return err
		}
		return insert(ctx, s, scope, rows)
	})
	if err != nil {
		return nil, err
	}
	e.cache.InvalidateAccount(scope, req.AccountID)

	e.log.Info().Str("scope", scope.String()).Str("transaction_id", rows[0].ID).
		Str("type", string(rows[0].Type)).Str("amount", rows[0].Amount.String()).Msg("transaction saved")
	return &rows[0], nil
}

// TransferRequest moves Amount from one account to another.
type TransferRequest struct {
	Description   string
	Amount        decimal.Decimal
	FromAccountID string
	ToAccountID   string
	Date          time.Time
	DueDate       time.Time
	Status        models.Status
}

func (r *TransferRequest) normalize() error {
	if err := checkAmount(r.Amount); err != nil {
		return err
	}
	if r.FromAccountID == "" || r.ToAccountID == "" {
		return invalid("account_id", "source and destination accounts are required")
	}
	if r.FromAccountID == r.ToAccountID {
		return invalid("to_account_id", "must differ from the source account")
	}
	if r.Date.IsZero() {
		return invalid("date", "is required")
	}
	if r.Status == "" {
		r.Status = models.StatusOpen
	}
	if !r.Status.IsValid() {
		return invalid("status", "must be open or completed")
	}
	r.Date = models.DateOf(r.Date)
	if r.DueDate.IsZero() {
		r.DueDate = r.Date
	}
	r.DueDate = models.DateOf(r.DueDate)
	return nil
}

// SaveTransfer writes both legs of a transfer in one unit of work and
// returns them as (expense leg, income leg).
func (e *Engine) SaveTransfer(ctx context.Context, scope models.Scope, req TransferRequest) ([]models.Transaction, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	if err := req.normalize(); err != nil {
		return nil, err
	}

	transferID := uuid.NewString()
	leg := func(t models.TransactionType, account, counterpart string) models.Transaction {
		return models.Transaction{
			UserID:            scope.UserID,
			IsBusiness:        scope.IsBusiness,
			CompanyID:         scope.CompanyID,
			Description:       req.Description,
			Amount:            req.Amount,
			Type:              t,
			Date:              req.Date,
			DueDate:           req.DueDate,
			Status:            req.Status,
			AccountID:         account,
			PaymentMethod:     models.PaymentTransfer,
			TransferID:        &transferID,
			TransferAccountID: &counterpart,
		}
	}
	rows := []models.Transaction{
		leg(models.Expense, req.FromAccountID, req.ToAccountID),
		leg(models.Income, req.ToAccountID, req.FromAccountID),
	}

	err := e.store.InTx(ctx, func(s db.Store) error {
		for _, id := range []string{req.FromAccountID, req.ToAccountID} {
			if _, err := requireAccount(ctx, s, scope, id); err != nil {
				return err
			}
		}
		return insert(ctx, s, scope, rows)
	})
	if err != nil {
		return nil, err
	}
	e.cache.InvalidateAccount(scope, req.FromAccountID)
	e.cache.InvalidateAccount(scope, req.ToAccountID)

	e.log.Info().Str("scope", scope.String()).Str("transfer_id", transferID).
		Str("from", req.FromAccountID).Str("to", req.ToAccountID).Str("amount", req.Amount.String()).
		Msg("transfer saved")
	return rows, nil
}

// InvestmentOpRequest records an application into or redemption from a position.
type InvestmentOpRequest struct {
	Op           OpType
	Description  string
	Amount       decimal.Decimal
	AccountID    string
	InvestmentID string
	Date         time.Time
	DueDate      time.Time
	Status       models.Status
}

// SaveInvestmentOp writes one investment-tagged row and revalues the
// position, holding the position lock for the whole unit of work.
func (e *Engine) SaveInvestmentOp(ctx context.Context, scope models.Scope, req InvestmentOpRequest) (*models.Transaction, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	if !req.Op.IsValid() {
		return nil, invalid("op", "must be application or redemption")
	}
	if req.InvestmentID == "" {
		return nil, invalid("investment_id", "is required")
	}
	entry := EntryRequest{
		Description: req.Description,
		Amount:      req.Amount,
		Type:        req.Op.TransactionType(),
		Date:        req.Date,
		DueDate:     req.DueDate,
		Status:      req.Status,
		AccountID:   req.AccountID,
	}
	if err := entry.normalize(); err != nil {
		return nil, err
	}

	row := entry.row(scope)
	row.InvestmentID = &req.InvestmentID
	rows := []models.Transaction{row}

	err := e.store.InTx(ctx, func(s db.Store) error {
		if _, err := requireAccount(ctx, s, scope, req.AccountID); err != nil {
			return err
		}
		if err := e.revalue(ctx, s, scope, req.InvestmentID, decimal.Zero, movement(row), false); err != nil {
			return err
		}
		return insert(ctx, s, scope, rows)
	})
	if err != nil {
		return nil, err
	}
	e.cache.InvalidateAccount(scope, req.AccountID)

	e.log.Info().Str("scope", scope.String()).Str("transaction_id", rows[0].ID).
		Str("investment_id", req.InvestmentID).Str("op", string(req.Op)).Str("amount", req.Amount.String()).
		Msg("investment operation saved")
	return &rows[0], nil
}

// UpdateRequest carries the fields to change; nil fields are left alone.
type UpdateRequest struct {
	Description   *string
	Amount        *decimal.Decimal
	Type          *models.TransactionType
	Date          *time.Time
	DueDate       *time.Time
	Status        *models.Status
	AccountID     *string
	CategoryID    *string
	PaymentMethod *models.PaymentMethod
	CardID        *string
}

func (r UpdateRequest) validate() error {
	if r.Amount != nil {
		if err := checkAmount(*r.Amount); err != nil {
			return err
		}
	}
	if r.Type != nil && !r.Type.IsValid() {
		return invalid("type", "must be income or expense")
	}
	if r.Status != nil && !r.Status.IsValid() {
		return invalid("status", "must be open or completed")
	}
	if r.Date != nil && r.Date.IsZero() {
		return invalid("date", "must not be empty")
	}
	if r.DueDate != nil && r.DueDate.IsZero() {
		return invalid("due_date", "must not be empty")
	}
	if r.AccountID != nil && *r.AccountID == "" {
		return invalid("account_id", "must not be empty")
	}
	return nil
}

func (r UpdateRequest) apply(t models.Transaction) models.Transaction {
	if r.Description != nil {
		t.Description = *r.Description
	}
	if r.Amount != nil {
		t.Amount = *r.Amount
	}
	if r.Type != nil {
		t.Type = *r.Type
	}
	if r.Date != nil {
		t.Date = models.DateOf(*r.Date)
	}
	if r.DueDate != nil {
		t.DueDate = models.DateOf(*r.DueDate)
	}
	if r.Status != nil {
		t.Status = *r.Status
	}
	if r.AccountID != nil {
		t.AccountID = *r.AccountID
	}
	if r.CategoryID != nil {
		t.CategoryID = r.CategoryID
	}
	if r.PaymentMethod != nil {
		t.PaymentMethod = *r.PaymentMethod
	}
	if r.CardID != nil {
		t.CardID = r.CardID
	}
	return t
}

// shareWithSibling copies the fields both legs of a transfer must agree on.
func shareWithSibling(from, to models.Transaction) models.Transaction {
	to.Amount = from.Amount
	to.Date = from.Date
	to.DueDate = from.DueDate
	to.Description = from.Description
	to.Status = from.Status
	to.PaymentMethod = from.PaymentMethod
	return to
}

// Update changes one row. Shared fields of a transfer leg are propagated to
// its sibling and investment rows are revalued, all in one unit of work.
func (e *Engine) Update(ctx context.Context, scope models.Scope, id string, req UpdateRequest) (*models.Transaction, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	accounts := touched{}
	var updated models.Transaction
	err := e.store.InTx(ctx, func(s db.Store) error {
		cur, legs, err := lockForUpdate(ctx, s, scope, id)
		if err != nil {
			return err
		}
		next := req.apply(*cur)
		if next.AccountID != cur.AccountID {
			if _, err := requireAccount(ctx, s, scope, next.AccountID); err != nil {
				return err
			}
		}

		switch {
		case cur.IsTransferLeg():
			if err := e.updateTransferLeg(ctx, s, scope, *cur, legs, &next, accounts); err != nil {
				return err
			}
		case next.PaymentMethod == models.PaymentTransfer && cur.PaymentMethod != models.PaymentTransfer:
			return invalid("payment_method", "transfers must be saved as a transfer pair")
		case cur.IsInvestment():
			if !next.Amount.Equal(cur.Amount) || next.Type != cur.Type {
				if err := e.revalue(ctx, s, scope, *cur.InvestmentID, movement(*cur), movement(next), true); err != nil {
					return err
				}
			}
		}

		if err := rebalance(ctx, s, scope, *cur, next); err != nil {
			return err
		}
		if err := s.UpdateTransaction(ctx, next); err != nil {
			return storeErr(err, "transaction", id)
		}
		accounts.add(cur.AccountID, next.AccountID)
		updated = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.invalidate(scope, accounts)

	e.log.Info().Str("scope", scope.String()).Str("transaction_id", id).Msg("transaction updated")
	return &updated, nil
}

// lockForUpdate reads the row to edit under a row lock, so every value
// derived from it reflects the latest committed state. Transfer legs are
// locked as a pair in id order and returned as legs.
func lockForUpdate(ctx context.Context, s db.Store, scope models.Scope, id string) (*models.Transaction, []models.Transaction, error) {
	peek, err := s.GetTransaction(ctx, scope, id)
	if err != nil {
		return nil, nil, storeErr(err, "transaction", id)
	}
	where := db.Predicate(db.Eq{Field: db.FieldID, Value: id})
	if peek.IsTransferLeg() {
		where = db.Eq{Field: db.FieldTransferID, Value: *peek.TransferID}
	}
	locked, err := s.FindTransactions(ctx, db.Query{
		Scope:     scope,
		Where:     []db.Predicate{where},
		OrderBy:   []db.Order{{Field: db.FieldID}},
		ForUpdate: true,
	})
	if err != nil {
		return nil, nil, storeErr(err, "transaction", id)
	}
	for i := range locked {
		if locked[i].ID == id {
			cur := locked[i]
			return &cur, locked, nil
		}
	}
	return nil, nil, &NotFoundError{Kind: "transaction", ID: id}
}

// updateTransferLeg validates the change against the locked legs and writes
// the sibling. The edited leg itself is written by the caller.
func (e *Engine) updateTransferLeg(ctx context.Context, s db.Store, scope models.Scope, cur models.Transaction, legs []models.Transaction, next *models.Transaction, accounts touched) error {
	if next.Type != cur.Type {
		return invalid("type", "cannot change the direction of a transfer leg")
	}

	var sibling *models.Transaction
	for i := range legs {
		if legs[i].ID == cur.ID {
			continue
		}
		if sibling != nil {
			return inconsistent("transfer %s has more than two legs", *cur.TransferID)
		}
		sibling = &legs[i]
	}
	if sibling == nil {
		return inconsistent("transfer %s is missing its sibling leg", *cur.TransferID)
	}

	nextSibling := shareWithSibling(*next, *sibling)
	if next.AccountID != cur.AccountID {
		if next.AccountID == sibling.AccountID {
			return invalid("account_id", "both legs of a transfer cannot use the same account")
		}
		moved := next.AccountID
		nextSibling.TransferAccountID = &moved
	}

	if err := rebalance(ctx, s, scope, *sibling, nextSibling); err != nil {
		return err
	}
	if err := s.UpdateTransaction(ctx, nextSibling); err != nil {
		return storeErr(err, "transaction", sibling.ID)
	}
	accounts.add(sibling.AccountID)
	return nil
}

// Delete removes the given rows, both legs of any transfer they belong to,
// and reverts the valuation of investment rows. It returns the number of
// rows removed.
func (e *Engine) Delete(ctx context.Context, scope models.Scope, ids []string) (int64, error) {
	if err := checkScope(scope); err != nil {
		return 0, err
	}
	ids = unique(ids)
	if len(ids) == 0 {
		return 0, invalid("ids", "at least one id is required")
	}

	accounts := touched{}
	var removed int64
	err := e.store.InTx(ctx, func(s db.Store) error {
		targets, err := s.FindTransactions(ctx, db.Query{
			Scope:     scope,
			Where:     []db.Predicate{db.InStrings(db.FieldID, ids)},
			ForUpdate: true,
		})
		if err != nil {
			return storeErr(err, "transaction", "")
		}
		if missing := firstMissing(ids, targets); missing != "" {
			return &NotFoundError{Kind: "transaction", ID: missing}
		}

		var transferIDs []string
		for _, t := range targets {
			if t.IsTransferLeg() {
				transferIDs = append(transferIDs, *t.TransferID)
			}
			if t.IsInvestment() {
				if err := e.revalue(ctx, s, scope, *t.InvestmentID, movement(t), decimal.Zero, true); err != nil {
					return err
				}
			}
		}
		transferIDs = unique(transferIDs)

		where := db.Predicate(db.InStrings(db.FieldID, ids))
		if len(transferIDs) > 0 {
			where = db.Or{where, db.InStrings(db.FieldTransferID, transferIDs)}
		}
		doomed, err := s.FindTransactions(ctx, db.Query{Scope: scope, Where: []db.Predicate{where}, ForUpdate: true})
		if err != nil {
			return storeErr(err, "transaction", "")
		}
		e.warnOrphans(transferIDs, doomed)

		for _, t := range doomed {
			if err := adjust(ctx, s, scope, t.AccountID, t.BalanceEffect().Neg()); err != nil {
				return err
			}
			accounts.add(t.AccountID)
		}

		n, err := s.DeleteTransactions(ctx, scope, where)
		if err != nil {
			return storeErr(err, "transaction", "")
		}
		if n != int64(len(doomed)) {
			return inconsistent("expected to delete %d rows, deleted %d", len(doomed), n)
		}
		removed = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	e.invalidate(scope, accounts)

	e.log.Info().Str("scope", scope.String()).Int64("deleted", removed).Strs("ids", ids).Msg("transactions deleted")
	return removed, nil
}

func (e *Engine) warnOrphans(transferIDs []string, rows []models.Transaction) {
	count := make(map[string]int, len(transferIDs))
	for _, t := range rows {
		if t.IsTransferLeg() {
			count[*t.TransferID]++
		}
	}
	for _, id := range transferIDs {
		if count[id] != 2 {
			e.log.Warn().Str("transfer_id", id).Int("legs", count[id]).Msg("deleting transfer with unexpected leg count")
		}
	}
}

func unique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func firstMissing(ids []string, rows []models.Transaction) string {
	found := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		found[r.ID] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			return id
		}
	}
	return ""
}
