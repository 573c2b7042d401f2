package plaid

import (
	"context"
	"errors"
	"fmt"
	"ledger-server/src/ledger"
	"ledger-server/src/logger"
	"ledger-server/src/models"
	"strings"

	"github.com/plaid/plaid-go/v41/plaid"
	"github.com/shopspring/decimal"
)

// maxPages bounds one import run when Plaid keeps reporting has_more.
const maxPages = 50

// Writer is the slice of the engine an import may use.
type Writer interface {
	SaveSimple(ctx context.Context, scope models.Scope, req ledger.EntryRequest) (*models.Transaction, error)
}

type ImportRequest struct {
	AccessToken string `json:"access_token"`
	Cursor      string `json:"cursor"`
	// Accounts maps Plaid account ids to ledger account ids. Rows for
	// unmapped accounts are skipped.
	Accounts map[string]string `json:"accounts"`
}

type ImportResult struct {
	Imported   int    `json:"imported"`
	Skipped    int    `json:"skipped"`
	Failed     int    `json:"failed"`
	NextCursor string `json:"next_cursor"`
}

type Importer struct {
	source Source
	writer Writer
}

func NewImporter(source Source, writer Writer) *Importer {
	return &Importer{source: source, writer: writer}
}

// Import pages through /transactions/sync from req.Cursor and writes each
// added row as a simple entry. Modified and removed rows are counted as
// skipped; reconciling them is left to the user.
func (im *Importer) Import(ctx context.Context, scope models.Scope, req ImportRequest) (*ImportResult, error) {
	if req.AccessToken == "" {
		return nil, &ledger.ValidationError{Field: "access_token", Message: "is required"}
	}
	log := logger.FromContext(ctx)
	result := &ImportResult{NextCursor: req.Cursor}

	for page := 0; page < maxPages; page++ {
		resp, err := im.source.Sync(ctx, req.AccessToken, result.NextCursor)
		if err != nil {
			return result, err
		}
		result.Skipped += resp.Modified + resp.Removed

		for _, pt := range resp.Added {
			accountID, ok := req.Accounts[pt.GetAccountId()]
			if !ok {
				result.Skipped++
				continue
			}
			entry, err := MapTransaction(pt, accountID)
			if err != nil {
				log.Warn().Err(err).Str("plaid_transaction_id", pt.GetTransactionId()).Msg("Skipping unmappable Plaid transaction")
				result.Skipped++
				continue
			}
			if _, err := im.writer.SaveSimple(ctx, scope, entry); err != nil {
				var ve *ledger.ValidationError
				var ne *ledger.NotFoundError
				if errors.As(err, &ve) || errors.As(err, &ne) {
					log.Warn().Err(err).Str("plaid_transaction_id", pt.GetTransactionId()).Msg("Plaid transaction rejected")
					result.Failed++
					continue
				}
				return result, err
			}
			result.Imported++
		}

		result.NextCursor = resp.NextCursor
		if !resp.HasMore {
			break
		}
	}

	log.Info().
		Int("imported", result.Imported).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Msg("Plaid import finished")
	return result, nil
}

// MapTransaction converts a Plaid row. Plaid reports money leaving the
// account as a positive amount, so positive is an expense. Pending rows are
// written open.
func MapTransaction(pt plaid.Transaction, accountID string) (ledger.EntryRequest, error) {
	date, err := models.ParseDate(pt.GetDate())
	if err != nil {
		return ledger.EntryRequest{}, fmt.Errorf("plaid transaction %s: bad date %q", pt.GetTransactionId(), pt.GetDate())
	}
	amount := decimal.NewFromFloat(pt.GetAmount()).Round(2)
	if amount.IsZero() {
		return ledger.EntryRequest{}, fmt.Errorf("plaid transaction %s: zero amount", pt.GetTransactionId())
	}

	entry := ledger.EntryRequest{
		Description:   pt.GetName(),
		Amount:        amount.Abs(),
		Type:          models.Expense,
		Date:          date,
		DueDate:       date,
		Status:        models.StatusCompleted,
		AccountID:     accountID,
		PaymentMethod: models.PaymentDebit,
	}
	if merchant := pt.GetMerchantName(); merchant != "" {
		entry.Description = merchant
	}
	if amount.IsNegative() {
		entry.Type = models.Income
	}
	if pt.GetPending() {
		entry.Status = models.StatusOpen
	}
	if primary := pt.GetPersonalFinanceCategory().Primary; primary != "" {
		category := strings.ToLower(primary)
		entry.CategoryID = &category
	}
	return entry, nil
}
