package feed

import (
	"context"
	"testing"
	"time"

	gateway "github.com/fundbooks/ledger-gateway/internal/gateways"
	"github.com/fundbooks/ledger-gateway/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFetcher struct {
	responses map[string]*gateway.FetchResponse
	requests  []*gateway.FetchRequest
}

func (s *stubFetcher) FetchTransactions(ctx context.Context, req *gateway.FetchRequest) (*gateway.FetchResponse, error) {
	s.requests = append(s.requests, req)
	if resp, ok := s.responses[req.AccountExternalID]; ok {
		return resp, nil
	}
	return &gateway.FetchResponse{AccountExternalID: req.AccountExternalID}, nil
}

type stubPublisher struct {
	published []interface{}
}

func (s *stubPublisher) PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error) {
	s.published = append(s.published, data)
	return "1-0", nil
}

type stubAccountLister struct {
	accounts []*model.BankAccount
}

func (s *stubAccountLister) List(ctx context.Context, organizationID int64) ([]*model.BankAccount, error) {
	return s.accounts, nil
}

func TestPoller_PollOnce(t *testing.T) {
	ctx := context.Background()
	fetchedAt := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	balance := decimal.RequireFromString("980.00")

	fetcher := &stubFetcher{
		responses: map[string]*gateway.FetchResponse{
			"7": {
				AccountExternalID: "7",
				Transactions: []gateway.FeedTransaction{
					{EventID: "evt-1", Date: fetchedAt.Add(-2 * time.Hour), Description: "Deposit", Amount: decimal.RequireFromString("100"), Type: "income"},
					{EventID: "evt-2", Date: fetchedAt.Add(-1 * time.Hour), Description: "Fee", Amount: decimal.RequireFromString("20"), Type: "expense"},
				},
				Balance:   &balance,
				FetchedAt: fetchedAt,
			},
		},
	}
	publisher := &stubPublisher{}
	accounts := &stubAccountLister{accounts: []*model.BankAccount{{ID: 7, OrganizationID: 1}}}

	poller := NewPoller(fetcher, publisher, accounts, 1, time.Minute)

	poller.PollOnce(ctx)

	require.Len(t, publisher.published, 2)
	first := publisher.published[0].(BankFeedEvent)
	last := publisher.published[1].(BankFeedEvent)

	assert.Equal(t, "evt-1", first.EventID)
	assert.Equal(t, int64(1), first.OrganizationID)
	assert.Equal(t, int64(7), first.BankAccountID)
	assert.Nil(t, first.AccountBalance)

	// the reported balance rides on the newest event only
	require.NotNil(t, last.AccountBalance)
	assert.Equal(t, "980", *last.AccountBalance)

	// cursor advances, the next round asks for newer transactions
	poller.PollOnce(ctx)
	require.Len(t, fetcher.requests, 2)
	assert.True(t, fetcher.requests[0].Since.IsZero())
	assert.Equal(t, fetchedAt, fetcher.requests[1].Since)
}
