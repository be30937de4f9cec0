package repository

import (
	"time"

	"github.com/fundbooks/ledger-gateway/internal/model"
	"github.com/shopspring/decimal"
)

type BankAccountEntity struct {
	ID                 int64            `db:"id"                   gorm:"primaryKey;autoIncrement;column:id"`
	OrganizationID     int64            `db:"organization_id"      gorm:"column:organization_id;not null;index"`
	Name               string           `db:"name"                 gorm:"column:name;not null"`
	InitialBalance     decimal.Decimal  `db:"initial_balance"      gorm:"column:initial_balance;type:numeric(14,2);not null;default:0"`
	InitialBalanceDate *time.Time       `db:"initial_balance_date" gorm:"column:initial_balance_date"`
	CurrentBalance     *decimal.Decimal `db:"current_balance"      gorm:"column:current_balance;type:numeric(14,2)"`
	CreatedAt          time.Time        `db:"created_at"           gorm:"column:created_at;autoCreateTime"`
}

func (BankAccountEntity) TableName() string {
	return "bank_accounts"
}

func toBankAccountEntity(m *model.BankAccount) *BankAccountEntity {
	if m == nil {
		return nil
	}
	return &BankAccountEntity{
		ID:                 m.ID,
		OrganizationID:     m.OrganizationID,
		Name:               m.Name,
		InitialBalance:     m.InitialBalance,
		InitialBalanceDate: m.InitialBalanceDate,
		CurrentBalance:     m.CurrentBalance,
		CreatedAt:          m.CreatedAt,
	}
}

func toBankAccountModel(e *BankAccountEntity) *model.BankAccount {
	if e == nil {
		return nil
	}
	return &model.BankAccount{
		ID:                 e.ID,
		OrganizationID:     e.OrganizationID,
		Name:               e.Name,
		InitialBalance:     e.InitialBalance,
		InitialBalanceDate: e.InitialBalanceDate,
		CurrentBalance:     e.CurrentBalance,
		CreatedAt:          e.CreatedAt,
	}
}

func toBankAccountModels(entities []*BankAccountEntity) []*model.BankAccount {
	if entities == nil {
		return nil
	}
	models := make([]*model.BankAccount, len(entities))
	for i, e := range entities {
		models[i] = toBankAccountModel(e)
	}
	return models
}
