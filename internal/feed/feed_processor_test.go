package feed

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/fundbooks/ledger-gateway/internal/model"
	"github.com/fundbooks/ledger-gateway/internal/queue"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTransactionCreator struct {
	created []*model.Transaction
	err     error
}

func (s *stubTransactionCreator) Create(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	if s.err != nil {
		return nil, s.err
	}
	txn.ID = int64(len(s.created) + 1)
	s.created = append(s.created, txn)
	return txn, nil
}

type stubAccountUpdater struct {
	balances map[int64]decimal.Decimal
}

func (s *stubAccountUpdater) SetCurrentBalance(ctx context.Context, organizationID, id int64, balance decimal.Decimal) error {
	if s.balances == nil {
		s.balances = make(map[int64]decimal.Decimal)
	}
	s.balances[id] = balance
	return nil
}

func feedEvent(id string) BankFeedEvent {
	return BankFeedEvent{
		EventID:        id,
		OrganizationID: 1,
		BankAccountID:  3,
		Date:           time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC),
		Description:    "Card purchase",
		Amount:         decimal.RequireFromString("42.50"),
		Type:           "expense",
		EmittedAt:      time.Now(),
	}
}

func queueMessage(t *testing.T, event BankFeedEvent) *queue.Message {
	t.Helper()
	data, err := json.Marshal(event)
	require.NoError(t, err)
	return &queue.Message{ID: event.EventID, Data: data}
}

func TestBankFeedProcessor_Process(t *testing.T) {
	ctx := context.Background()

	newProcessor := func() (*BankFeedProcessor, *stubTransactionCreator, *stubAccountUpdater) {
		txns := &stubTransactionCreator{}
		accounts := &stubAccountUpdater{}
		idem := NewIdempotencyService(newMockRedisAdapter(), DefaultIdempotencyConfig())
		return NewBankFeedProcessor(txns, accounts, idem), txns, accounts
	}

	t.Run("event becomes a plaid-sourced transaction", func(t *testing.T) {
		p, txns, _ := newProcessor()

		err := p.Process(ctx, queueMessage(t, feedEvent("evt-100")))
		require.NoError(t, err)

		require.Len(t, txns.created, 1)
		created := txns.created[0]
		assert.Equal(t, model.SourcePlaid, created.Source)
		assert.Equal(t, model.TransactionTypeExpense, created.Type)
		assert.True(t, created.Amount.Equal(decimal.RequireFromString("42.50")))
		require.NotNil(t, created.BankAccountID)
		assert.Equal(t, int64(3), *created.BankAccountID)
	})

	t.Run("redelivered event is stored once", func(t *testing.T) {
		p, txns, _ := newProcessor()
		msg := queueMessage(t, feedEvent("evt-101"))

		require.NoError(t, p.Process(ctx, msg))
		require.NoError(t, p.Process(ctx, msg))

		assert.Len(t, txns.created, 1)
	})

	t.Run("reported balance updates the account", func(t *testing.T) {
		p, _, accounts := newProcessor()

		event := feedEvent("evt-102")
		balance := "1234.56"
		event.AccountBalance = &balance

		require.NoError(t, p.Process(ctx, queueMessage(t, event)))
		require.Contains(t, accounts.balances, int64(3))
		assert.True(t, accounts.balances[3].Equal(decimal.RequireFromString("1234.56")))
	})

	t.Run("persist failure nacks for retry", func(t *testing.T) {
		p, txns, _ := newProcessor()
		txns.err = errors.New("db down")

		err := p.Process(ctx, queueMessage(t, feedEvent("evt-103")))
		assert.Error(t, err)

		// Lock released, so the retry can proceed
		txns.err = nil
		require.NoError(t, p.Process(ctx, queueMessage(t, feedEvent("evt-103"))))
		assert.Len(t, txns.created, 1)
	})

	t.Run("malformed payload errors", func(t *testing.T) {
		p, txns, _ := newProcessor()

		err := p.Process(ctx, &queue.Message{ID: "bad", Data: []byte("not json")})
		assert.Error(t, err)
		assert.Empty(t, txns.created)
	})

	t.Run("invalid event rejected before storage", func(t *testing.T) {
		p, txns, _ := newProcessor()

		event := feedEvent("evt-104")
		event.Type = "transfer"

		err := p.Process(ctx, queueMessage(t, event))
		assert.Error(t, err)
		assert.Empty(t, txns.created)
	})
}
