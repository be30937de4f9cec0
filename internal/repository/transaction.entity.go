package repository

import (
	"time"

	"github.com/fundbooks/ledger-gateway/internal/model"
	"github.com/shopspring/decimal"
)

type TransactionEntity struct {
	ID                   int64           `db:"id"                     gorm:"primaryKey;autoIncrement;column:id"`
	OrganizationID       int64           `db:"organization_id"       gorm:"column:organization_id;not null;index"`
	Date                 time.Time       `db:"date"                  gorm:"column:date;not null;index"`
	Description          string          `db:"description"           gorm:"column:description"`
	Amount               decimal.Decimal `db:"amount"                gorm:"column:amount;type:numeric(14,2);not null"`
	Type                 string          `db:"type"                  gorm:"column:type;not null"`
	CategoryID           *int64          `db:"category_id"           gorm:"column:category_id;index"`
	VendorID             *int64          `db:"vendor_id"             gorm:"column:vendor_id"`
	ClientID             *int64          `db:"client_id"             gorm:"column:client_id"`
	DonorID              *int64          `db:"donor_id"              gorm:"column:donor_id"`
	GrantID              *int64          `db:"grant_id"              gorm:"column:grant_id;index"`
	FundID               *int64          `db:"fund_id"               gorm:"column:fund_id"`
	ProgramID            *int64          `db:"program_id"            gorm:"column:program_id"`
	FunctionalCategory   *string         `db:"functional_category"   gorm:"column:functional_category"`
	BankAccountID        *int64          `db:"bank_account_id"       gorm:"column:bank_account_id;index"`
	Source               string          `db:"source"                gorm:"column:source;not null;default:manual"`
	HasSplits            bool            `db:"has_splits"            gorm:"column:has_splits;not null;default:false"`
	IsSplitChild         bool            `db:"is_split_child"        gorm:"column:is_split_child;not null;default:false"`
	ParentTransactionID  *int64          `db:"parent_transaction_id" gorm:"column:parent_transaction_id;index"`
	ReconciliationStatus string          `db:"reconciliation_status" gorm:"column:reconciliation_status;not null;default:unreconciled"`
	CreatedAt            time.Time       `db:"created_at"            gorm:"column:created_at;autoCreateTime"`
}

func (TransactionEntity) TableName() string {
	return "transactions"
}

func toTransactionEntity(m *model.Transaction) *TransactionEntity {
	if m == nil {
		return nil
	}
	var functional *string
	if m.FunctionalCategory != nil {
		s := string(*m.FunctionalCategory)
		functional = &s
	}
	return &TransactionEntity{
		ID:                   m.ID,
		OrganizationID:       m.OrganizationID,
		Date:                 m.Date,
		Description:          m.Description,
		Amount:               m.Amount,
		Type:                 string(m.Type),
		CategoryID:           m.CategoryID,
		VendorID:             m.VendorID,
		ClientID:             m.ClientID,
		DonorID:              m.DonorID,
		GrantID:              m.GrantID,
		FundID:               m.FundID,
		ProgramID:            m.ProgramID,
		FunctionalCategory:   functional,
		BankAccountID:        m.BankAccountID,
		Source:               string(m.Source),
		HasSplits:            m.HasSplits,
		IsSplitChild:         m.IsSplitChild,
		ParentTransactionID:  m.ParentTransactionID,
		ReconciliationStatus: string(m.ReconciliationStatus),
		CreatedAt:            m.CreatedAt,
	}
}

func toTransactionModel(e *TransactionEntity) *model.Transaction {
	if e == nil {
		return nil
	}
	var functional *model.FunctionalCategory
	if e.FunctionalCategory != nil {
		f := model.FunctionalCategory(*e.FunctionalCategory)
		functional = &f
	}
	return &model.Transaction{
		ID:                   e.ID,
		OrganizationID:       e.OrganizationID,
		Date:                 e.Date,
		Description:          e.Description,
		Amount:               e.Amount,
		Type:                 model.TransactionType(e.Type),
		CategoryID:           e.CategoryID,
		VendorID:             e.VendorID,
		ClientID:             e.ClientID,
		DonorID:              e.DonorID,
		GrantID:              e.GrantID,
		FundID:               e.FundID,
		ProgramID:            e.ProgramID,
		FunctionalCategory:   functional,
		BankAccountID:        e.BankAccountID,
		Source:               model.TransactionSource(e.Source),
		HasSplits:            e.HasSplits,
		IsSplitChild:         e.IsSplitChild,
		ParentTransactionID:  e.ParentTransactionID,
		ReconciliationStatus: model.ReconciliationStatus(e.ReconciliationStatus),
		CreatedAt:            e.CreatedAt,
	}
}

func toTransactionModels(entities []*TransactionEntity) []*model.Transaction {
	if entities == nil {
		return nil
	}
	models := make([]*model.Transaction, len(entities))
	for i, e := range entities {
		models[i] = toTransactionModel(e)
	}
	return models
}
