package ledger

import (
	"context"
	"fmt"
	"ledger-server/src/db"
	"ledger-server/src/models"
	"sort"
)

type ProblemKind string

const (
	// ProblemOrphan is a transfer with a single leg.
	ProblemOrphan ProblemKind = "orphan"
	// ProblemOversized is a transfer id shared by more than two rows.
	ProblemOversized ProblemKind = "oversized"
	// ProblemDiverging is a pair whose shared fields or account links disagree.
	ProblemDiverging ProblemKind = "diverging"
)

type TransferProblem struct {
	TransferID string               `json:"transfer_id"`
	Kind       ProblemKind          `json:"kind"`
	Detail     string               `json:"detail"`
	Legs       []models.Transaction `json:"legs"`
}

type RepairMode string

const (
	RepairRecreate RepairMode = "recreate"
	RepairDelete   RepairMode = "delete"
	RepairResync   RepairMode = "resync"
)

func (m RepairMode) IsValid() bool {
	return m == RepairRecreate || m == RepairDelete || m == RepairResync
}

// FindTransferProblems scans every transfer leg in scope and reports the
// groups that break pairing.
func (e *Engine) FindTransferProblems(ctx context.Context, scope models.Scope) ([]TransferProblem, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	groups := map[string][]models.Transaction{}
	q := db.Query{
		Scope:   scope,
		Where:   []db.Predicate{db.IsNull{Field: db.FieldTransferID, Not: true}},
		OrderBy: []db.Order{{Field: db.FieldTransferID}, {Field: db.FieldSeq}},
	}
	err := db.Page(ctx, e.store, q, e.pageSize, func(rows []models.Transaction) error {
		for _, t := range rows {
			groups[*t.TransferID] = append(groups[*t.TransferID], t)
		}
		return nil
	})
	if err != nil {
		return nil, storeErr(err, "transaction", "")
	}

	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var problems []TransferProblem
	for _, id := range ids {
		if p, ok := checkTransfer(id, groups[id]); ok {
			problems = append(problems, p)
		}
	}
	return problems, nil
}

func checkTransfer(id string, legs []models.Transaction) (TransferProblem, bool) {
	p := TransferProblem{TransferID: id, Legs: legs}
	switch {
	case len(legs) == 1:
		p.Kind, p.Detail = ProblemOrphan, "transfer has a single leg"
		return p, true
	case len(legs) > 2:
		p.Kind, p.Detail = ProblemOversized, fmt.Sprintf("transfer has %d legs", len(legs))
		return p, true
	}
	if detail := divergence(legs[0], legs[1]); detail != "" {
		p.Kind, p.Detail = ProblemDiverging, detail
		return p, true
	}
	return p, false
}

// divergence names the first field on which two legs disagree.
func divergence(a, b models.Transaction) string {
	switch {
	case a.Type == b.Type:
		return "legs have the same type"
	case !a.Amount.Equal(b.Amount):
		return "amount differs"
	case !a.Date.Equal(b.Date):
		return "date differs"
	case !a.DueDate.Equal(b.DueDate):
		return "due_date differs"
	case a.Status != b.Status:
		return "status differs"
	case a.Description != b.Description:
		return "description differs"
	case a.PaymentMethod != b.PaymentMethod:
		return "payment_method differs"
	case a.TransferAccountID == nil || *a.TransferAccountID != b.AccountID,
		b.TransferAccountID == nil || *b.TransferAccountID != a.AccountID:
		return "transfer_account_id does not point at the sibling account"
	}
	return ""
}

// RepairTransfer fixes one problem in a single unit of work. Orphans are
// recreated from or deleted with the surviving leg; diverging pairs are
// resynced from their expense leg. Oversized groups need manual attention.
func (e *Engine) RepairTransfer(ctx context.Context, scope models.Scope, transferID string, mode RepairMode) error {
	if err := checkScope(scope); err != nil {
		return err
	}
	if !mode.IsValid() {
		return invalid("mode", "must be recreate, delete or resync")
	}

	accounts := touched{}
	err := e.store.InTx(ctx, func(s db.Store) error {
		legs, err := s.FindTransactions(ctx, db.Query{
			Scope:     scope,
			Where:     []db.Predicate{db.Eq{Field: db.FieldTransferID, Value: transferID}},
			ForUpdate: true,
		})
		if err != nil {
			return storeErr(err, "transfer", transferID)
		}
		if len(legs) == 0 {
			return &NotFoundError{Kind: "transfer", ID: transferID}
		}
		p, broken := checkTransfer(transferID, legs)
		if !broken {
			return nil
		}

		switch {
		case p.Kind == ProblemOrphan && mode == RepairRecreate:
			return e.recreateLeg(ctx, s, scope, legs[0], accounts)
		case p.Kind == ProblemOrphan && mode == RepairDelete:
			orphan := legs[0]
			if err := adjust(ctx, s, scope, orphan.AccountID, orphan.BalanceEffect().Neg()); err != nil {
				return err
			}
			if _, err := s.DeleteTransactions(ctx, scope, db.Eq{Field: db.FieldID, Value: orphan.ID}); err != nil {
				return storeErr(err, "transaction", orphan.ID)
			}
			accounts.add(orphan.AccountID)
			return nil
		case p.Kind == ProblemDiverging && mode == RepairResync:
			return e.resync(ctx, s, scope, legs[0], legs[1], accounts)
		}
		return invalid("mode", "%s cannot repair a %s transfer", mode, p.Kind)
	})
	if err != nil {
		return err
	}
	e.invalidate(scope, accounts)

	e.log.Info().Str("scope", scope.String()).Str("transfer_id", transferID).Str("mode", string(mode)).Msg("transfer repaired")
	return nil
}

func (e *Engine) recreateLeg(ctx context.Context, s db.Store, scope models.Scope, survivor models.Transaction, accounts touched) error {
	if survivor.TransferAccountID == nil || *survivor.TransferAccountID == survivor.AccountID {
		return invalid("transfer_account_id", "surviving leg does not name a counterpart account")
	}
	counterpart := *survivor.TransferAccountID
	if _, err := requireAccount(ctx, s, scope, counterpart); err != nil {
		return err
	}

	mirror := survivor
	mirror.ID = ""
	mirror.Seq = 0
	mirror.Type = survivor.Type.Opposite()
	mirror.AccountID = counterpart
	back := survivor.AccountID
	mirror.TransferAccountID = &back
	mirror.CategoryID = nil
	mirror.CardID = nil

	if err := insert(ctx, s, scope, []models.Transaction{mirror}); err != nil {
		return err
	}
	accounts.add(counterpart)
	return nil
}

func (e *Engine) resync(ctx context.Context, s db.Store, scope models.Scope, a, b models.Transaction, accounts touched) error {
	if a.Type == b.Type {
		return invalid("mode", "legs share a type; delete the transfer and save it again")
	}
	expense, income := a, b
	if a.Type == models.Income {
		expense, income = b, a
	}
	if expense.AccountID == income.AccountID {
		return invalid("account_id", "both legs of a transfer use the same account")
	}

	nextExpense := expense
	incomeAccount := income.AccountID
	nextExpense.TransferAccountID = &incomeAccount

	nextIncome := shareWithSibling(expense, income)
	expenseAccount := expense.AccountID
	nextIncome.TransferAccountID = &expenseAccount

	for _, pair := range [][2]models.Transaction{{expense, nextExpense}, {income, nextIncome}} {
		if err := rebalance(ctx, s, scope, pair[0], pair[1]); err != nil {
			return err
		}
		if err := s.UpdateTransaction(ctx, pair[1]); err != nil {
			return storeErr(err, "transaction", pair[1].ID)
		}
	}
	accounts.add(expense.AccountID, income.AccountID)
	return nil
}

// ReconcileReport summarizes one Reconcile run.
type ReconcileReport struct {
	Problems []TransferProblem `json:"problems"`
	Repaired int               `json:"repaired"`
	Skipped  int               `json:"skipped"`
}

// Reconcile finds every transfer problem in scope and, unless dryRun is set,
// repairs orphans with orphanMode and diverging pairs by resyncing.
func (e *Engine) Reconcile(ctx context.Context, scope models.Scope, orphanMode RepairMode, dryRun bool) (*ReconcileReport, error) {
	if orphanMode != RepairRecreate && orphanMode != RepairDelete {
		return nil, invalid("mode", "orphans can only be recreated or deleted")
	}
	problems, err := e.FindTransferProblems(ctx, scope)
	if err != nil {
		return nil, err
	}
	report := &ReconcileReport{Problems: problems}
	if dryRun {
		report.Skipped = len(problems)
		return report, nil
	}

	for _, p := range problems {
		mode := orphanMode
		switch p.Kind {
		case ProblemDiverging:
			mode = RepairResync
		case ProblemOversized:
			report.Skipped++
			continue
		}
		if err := e.RepairTransfer(ctx, scope, p.TransferID, mode); err != nil {
			e.log.Warn().Err(err).Str("transfer_id", p.TransferID).Str("kind", string(p.Kind)).Msg("transfer repair failed")
			report.Skipped++
			continue
		}
		report.Repaired++
	}
	return report, nil
}
