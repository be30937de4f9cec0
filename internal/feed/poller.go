package feed

import (
	"context"
	"strconv"
	"time"

	gateway "github.com/fundbooks/ledger-gateway/internal/gateways"
	"github.com/fundbooks/ledger-gateway/internal/model"
	"github.com/fundbooks/ledger-gateway/pkg/logger"
)

type TransactionFetcher interface {
	FetchTransactions(ctx context.Context, req *gateway.FetchRequest) (*gateway.FetchResponse, error)
}

type EventPublisher interface {
	PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error)
}

type AccountLister interface {
	List(ctx context.Context, organizationID int64) ([]*model.BankAccount, error)
}

// Poller periodically pulls new transactions from the bank providers for
// every account of the organization and publishes them on the feed stream.
// The consumer side (FeedService + BankFeedProcessor) handles dedupe, so a
// cursor reset after a restart only costs re-published events, not duplicate
// rows.
type Poller struct {
	fetcher        TransactionFetcher
	publisher      EventPublisher
	accounts       AccountLister
	organizationID int64
	interval       time.Duration

	cursors map[int64]time.Time
}

func NewPoller(fetcher TransactionFetcher, publisher EventPublisher, accounts AccountLister, organizationID int64, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Poller{
		fetcher:        fetcher,
		publisher:      publisher,
		accounts:       accounts,
		organizationID: organizationID,
		interval:       interval,
		cursors:        make(map[int64]time.Time),
	}
}

// Run blocks until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	logger.Info("Feed poller started", "organization_id", p.organizationID, "interval", p.interval)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Feed poller stopped")
			return
		case <-ticker.C:
			p.PollOnce(ctx)
		}
	}
}

// PollOnce fetches and publishes one round for every account.
func (p *Poller) PollOnce(ctx context.Context) {
	accounts, err := p.accounts.List(ctx, p.organizationID)
	if err != nil {
		logger.Error("Failed to list accounts for polling", "error", err)
		return
	}

	for _, account := range accounts {
		if err := p.pollAccount(ctx, account); err != nil {
			logger.Error("Failed to poll account", "account_id", account.ID, "error", err)
		}
	}
}

func (p *Poller) pollAccount(ctx context.Context, account *model.BankAccount) error {
	externalID := strconv.FormatInt(account.ID, 10)

	resp, err := p.fetcher.FetchTransactions(ctx, &gateway.FetchRequest{
		AccountExternalID: externalID,
		Since:             p.cursors[account.ID],
	})
	if err != nil {
		return err
	}

	var reportedBalance *string
	if resp.Balance != nil {
		s := resp.Balance.String()
		reportedBalance = &s
	}

	for i, txn := range resp.Transactions {
		event := BankFeedEvent{
			EventID:        txn.EventID,
			OrganizationID: p.organizationID,
			BankAccountID:  account.ID,
			Date:           txn.Date,
			Description:    txn.Description,
			Amount:         txn.Amount,
			Type:           txn.Type,
			EmittedAt:      time.Now(),
		}
		// attach the reported balance to the newest event only
		if i == len(resp.Transactions)-1 {
			event.AccountBalance = reportedBalance
		}

		if _, err := p.publisher.PublishJSON(ctx, event, map[string]string{"account": externalID}); err != nil {
			return err
		}
	}

	if len(resp.Transactions) > 0 {
		logger.Info("Published feed events", "account_id", account.ID, "count", len(resp.Transactions))
	}

	if !resp.FetchedAt.IsZero() {
		p.cursors[account.ID] = resp.FetchedAt
	}
	return nil
}
