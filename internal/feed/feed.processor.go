package feed

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/fundbooks/ledger-gateway/internal/model"
	"github.com/fundbooks/ledger-gateway/internal/queue"
	"github.com/fundbooks/ledger-gateway/pkg/logger"
	"github.com/fundbooks/ledger-gateway/pkg/prom"
	"github.com/shopspring/decimal"
)

type TransactionCreator interface {
	Create(ctx context.Context, txn *model.Transaction) (*model.Transaction, error)
}

type BankAccountUpdater interface {
	SetCurrentBalance(ctx context.Context, organizationID, id int64, balance decimal.Decimal) error
}

// BankFeedProcessor turns provider feed events into stored transactions.
// Feed events carry no grant link, so the grant budget guard never applies
// here; reconciliation against imported rows happens later.
type BankFeedProcessor struct {
	txns        TransactionCreator
	accounts    BankAccountUpdater
	idempotency *IdempotencyService
}

func NewBankFeedProcessor(txns TransactionCreator, accounts BankAccountUpdater, idempotency *IdempotencyService) *BankFeedProcessor {
	return &BankFeedProcessor{
		txns:        txns,
		accounts:    accounts,
		idempotency: idempotency,
	}
}

func (p *BankFeedProcessor) GetType() string {
	return "bank_feed"
}

// Process ingests one feed event with idempotency guarantees keyed on the
// provider event id.
func (p *BankFeedProcessor) Process(ctx context.Context, queueMessage *queue.Message) error {
	var event BankFeedEvent
	if err := json.Unmarshal(queueMessage.Data, &event); err != nil {
		logger.Error("Failed to unmarshal feed event", "error", err)
		return err // move toward DLQ, malformed payload will never parse
	}
	if err := event.Validate(); err != nil {
		logger.Error("Invalid feed event", "event_id", event.EventID, "error", err)
		return err
	}

	procCtx, err := p.idempotency.AcquireProcessingLock(ctx, event.EventID)
	if err != nil {
		if errors.Is(err, ErrAlreadyProcessed) {
			// Provider re-delivered an event we already stored - ACK it away
			logger.Info("Event already ingested, skipping", "event_id", event.EventID)
			return nil
		}
		if errors.Is(err, ErrMaxRetriesExceeded) {
			logger.Error("Max retries exceeded for feed event", "event_id", event.EventID)
			return nil // ACK to move to DLQ
		}
		if errors.Is(err, ErrLockAcquireFailed) {
			logger.Info("Lock held by another consumer, will retry", "event_id", event.EventID)
			return errors.New("lock held by another consumer")
		}
		logger.Error("Failed to acquire lock", "event_id", event.EventID, "error", err)
		return err
	}

	defer func() {
		if procCtx.lockAcquired {
			p.idempotency.ReleaseLock(ctx, procCtx)
		}
	}()

	logger.Info("Ingesting feed event",
		"event_id", event.EventID,
		"account_id", event.BankAccountID,
		"retry_count", procCtx.RetryCount,
		"is_retry", procCtx.IsRetry)

	created, err := p.txns.Create(ctx, event.toTransaction())
	if err != nil {
		logger.Error("Failed to persist feed transaction", "event_id", event.EventID, "error", err)
		if markErr := p.idempotency.MarkFailure(ctx, procCtx, err); markErr != nil {
			logger.Error("Failed to mark failure", "event_id", event.EventID, "error", markErr)
		}
		return err // NACK to retry from queue
	}

	if event.AccountBalance != nil {
		if balance, err := decimal.NewFromString(*event.AccountBalance); err == nil {
			if err := p.accounts.SetCurrentBalance(ctx, event.OrganizationID, event.BankAccountID, balance); err != nil {
				// transaction is stored, a stale reported balance is tolerable
				logger.Warn("Failed to update reported balance", "event_id", event.EventID, "error", err)
			}
		}
	}

	if !event.EmittedAt.IsZero() {
		prom.AddFeedEventIngestDuration(time.Since(event.EmittedAt).Seconds(), event.Type)
	}

	logger.Info("Feed event ingested",
		"event_id", event.EventID,
		"transaction_id", created.ID,
		"retry_count", procCtx.RetryCount)

	if markErr := p.idempotency.MarkSuccess(ctx, procCtx); markErr != nil {
		logger.Error("Failed to mark success", "event_id", event.EventID, "error", markErr)
		// Continue - the transaction is stored
	}
	return nil
}
