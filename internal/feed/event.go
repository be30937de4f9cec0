package feed

import (
	"errors"
	"time"

	"github.com/fundbooks/ledger-gateway/internal/model"
	"github.com/shopspring/decimal"
)

// BankFeedEvent is one transaction reported by a connected bank provider,
// published on the feed stream. EventID is the provider's stable identifier
// and keys idempotent ingestion.
type BankFeedEvent struct {
	EventID        string          `json:"event_id"`
	OrganizationID int64           `json:"organization_id"`
	BankAccountID  int64           `json:"bank_account_id"`
	Date           time.Time       `json:"date"`
	Description    string          `json:"description"`
	Amount         decimal.Decimal `json:"amount"`
	Type           string          `json:"type"`
	AccountBalance *string         `json:"account_balance,omitempty"`
	EmittedAt      time.Time       `json:"emitted_at"`
}

func (e *BankFeedEvent) Validate() error {
	if e.EventID == "" {
		return errors.New("event_id is required")
	}
	if e.OrganizationID == 0 {
		return errors.New("organization_id is required")
	}
	if e.BankAccountID == 0 {
		return errors.New("bank_account_id is required")
	}
	if e.Date.IsZero() {
		return errors.New("date is required")
	}
	if e.Amount.IsNegative() {
		return errors.New("amount must not be negative")
	}
	t := model.TransactionType(e.Type)
	if t != model.TransactionTypeIncome && t != model.TransactionTypeExpense {
		return errors.New("type must be income or expense")
	}
	return nil
}

func (e *BankFeedEvent) toTransaction() *model.Transaction {
	accountID := e.BankAccountID
	return &model.Transaction{
		OrganizationID:       e.OrganizationID,
		Date:                 e.Date,
		Description:          e.Description,
		Amount:               e.Amount,
		Type:                 model.TransactionType(e.Type),
		BankAccountID:        &accountID,
		Source:               model.SourcePlaid,
		ReconciliationStatus: model.StatusUnreconciled,
	}
}
