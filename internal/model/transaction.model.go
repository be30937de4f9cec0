package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType carries the sign of a transaction. Amount is always a
// non-negative magnitude; income adds to a balance, expense subtracts.
type TransactionType string

const (
	TransactionTypeIncome  TransactionType = "income"
	TransactionTypeExpense TransactionType = "expense"
)

// TransactionSource is the provenance of a ledger entry.
type TransactionSource string

const (
	SourceManual     TransactionSource = "manual"
	SourceCSVImport  TransactionSource = "csv_import"
	SourcePlaid      TransactionSource = "plaid"
	SourceQuickBooks TransactionSource = "quickbooks"
	SourceXero       TransactionSource = "xero"
)

// FunctionalCategory classifies an expense for nonprofit reporting.
type FunctionalCategory string

const (
	FunctionalProgram        FunctionalCategory = "program"
	FunctionalAdministrative FunctionalCategory = "administrative"
	FunctionalFundraising    FunctionalCategory = "fundraising"
)

type ReconciliationStatus string

const (
	StatusReconciled   ReconciliationStatus = "reconciled"
	StatusUnreconciled ReconciliationStatus = "unreconciled"
)

type Transaction struct {
	ID                   int64                 `json:"id"`
	OrganizationID       int64                 `json:"organization_id"`
	Date                 time.Time             `json:"date"`
	Description          string                `json:"description"`
	Amount               decimal.Decimal       `json:"amount"`
	Type                 TransactionType       `json:"type"`
	CategoryID           *int64                `json:"category_id,omitempty"`
	VendorID             *int64                `json:"vendor_id,omitempty"`
	ClientID             *int64                `json:"client_id,omitempty"`
	DonorID              *int64                `json:"donor_id,omitempty"`
	GrantID              *int64                `json:"grant_id,omitempty"`
	FundID               *int64                `json:"fund_id,omitempty"`
	ProgramID            *int64                `json:"program_id,omitempty"`
	FunctionalCategory   *FunctionalCategory   `json:"functional_category,omitempty"`
	BankAccountID        *int64                `json:"bank_account_id,omitempty"`
	Source               TransactionSource     `json:"source"`
	HasSplits            bool                  `json:"has_splits"`
	IsSplitChild         bool                  `json:"is_split_child"`
	ParentTransactionID  *int64                `json:"parent_transaction_id,omitempty"`
	ReconciliationStatus ReconciliationStatus  `json:"reconciliation_status"`
	CreatedAt            time.Time             `json:"created_at"`
}

// TransactionCreateRequest is the input for creating a ledger entry.
type TransactionCreateRequest struct {
	OrganizationID     int64
	Date               time.Time
	Description        string
	Amount             decimal.Decimal
	Type               TransactionType
	CategoryID         *int64
	VendorID           *int64
	ClientID           *int64
	DonorID            *int64
	GrantID            *int64
	FundID             *int64
	ProgramID          *int64
	FunctionalCategory *FunctionalCategory
	BankAccountID      *int64
	Source             TransactionSource
}

func (p TransactionCreateRequest) Validate() error {
	if p.OrganizationID == 0 {
		return errors.New("organization_id is required")
	}
	if p.Date.IsZero() {
		return errors.New("date is required")
	}
	if p.Amount.IsNegative() {
		return errors.New("amount must not be negative")
	}
	if p.Type != TransactionTypeIncome && p.Type != TransactionTypeExpense {
		return errors.New("type must be income or expense")
	}
	if p.FunctionalCategory != nil && p.Type != TransactionTypeExpense {
		return errors.New("functional_category applies to expenses only")
	}
	return nil
}

// TransactionUpdateRequest carries the fields an edit may change. The prior
// grant link and amount are read from the persisted row, not from the client.
type TransactionUpdateRequest struct {
	Date               *time.Time
	Description        *string
	Amount             *decimal.Decimal
	Type               *TransactionType
	CategoryID         *int64
	GrantID            *int64
	FundID             *int64
	ProgramID          *int64
	FunctionalCategory *FunctionalCategory
	ClearGrant         bool
}

// TransactionFilter controls List queries.
type TransactionFilter struct {
	OrganizationID       int64
	BankAccountID        *int64
	GrantID              *int64
	CategoryID           *int64
	Type                 *TransactionType
	Source               *TransactionSource
	ReconciliationStatus *ReconciliationStatus
	Search               *string // matches against description
	From                 *time.Time
	To                   *time.Time
	ExcludeSplitParents  bool
	Limit                int // default 50
	Offset               int
	Desc                 bool // order by date
}
