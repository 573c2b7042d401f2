package plaid

import (
	"context"
	"fmt"

	"github.com/plaid/plaid-go/v41/plaid"
)

func NewPlaidClient(clientID, secret, env string) (*plaid.APIClient, error) {
	configuration := plaid.NewConfiguration()
	configuration.AddDefaultHeader("PLAID-CLIENT-ID", clientID)
	configuration.AddDefaultHeader("PLAID-SECRET", secret)

	switch env {
	case "sandbox":
		configuration.UseEnvironment(plaid.Sandbox)
	case "production":
		configuration.UseEnvironment(plaid.Production)
	default:
		return nil, fmt.Errorf("invalid Plaid environment: %s", env)
	}

	return plaid.NewAPIClient(configuration), nil
}

// SyncPage is one page of /transactions/sync.
type SyncPage struct {
	Added      []plaid.Transaction
	Modified   int
	Removed    int
	NextCursor string
	HasMore    bool
}

// Source pulls transaction pages for an item.
type Source interface {
	Sync(ctx context.Context, accessToken, cursor string) (SyncPage, error)
}

// ClientSource reads pages from the Plaid API.
type ClientSource struct {
	Client *plaid.APIClient
	Count  int32
}

func (s ClientSource) Sync(ctx context.Context, accessToken, cursor string) (SyncPage, error) {
	request := plaid.NewTransactionsSyncRequest(accessToken)
	if cursor != "" {
		request.SetCursor(cursor)
	}
	if s.Count > 0 {
		request.SetCount(s.Count)
	}

	resp, _, err := s.Client.PlaidApi.TransactionsSync(ctx).TransactionsSyncRequest(*request).Execute()
	if err != nil {
		return SyncPage{}, fmt.Errorf("plaid transactions sync: %w", err)
	}
	return SyncPage{
		Added:      resp.GetAdded(),
		Modified:   len(resp.GetModified()),
		Removed:    len(resp.GetRemoved()),
		NextCursor: resp.GetNextCursor(),
		HasMore:    resp.GetHasMore(),
	}, nil
}
