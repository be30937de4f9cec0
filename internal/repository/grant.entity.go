package repository

import (
	"time"

	"github.com/fundbooks/ledger-gateway/internal/model"
	"github.com/shopspring/decimal"
)

type GrantEntity struct {
	ID               int64           `db:"id"                gorm:"primaryKey;autoIncrement;column:id"`
	OrganizationID   int64           `db:"organization_id"   gorm:"column:organization_id;not null;index"`
	Name             string          `db:"name"              gorm:"column:name;not null"`
	Amount           decimal.Decimal `db:"amount"            gorm:"column:amount;type:numeric(14,2);not null"`
	FundType         string          `db:"fund_type"         gorm:"column:fund_type;not null;default:restricted"`
	TotalSpent       decimal.Decimal `db:"total_spent"       gorm:"column:total_spent;type:numeric(14,2);not null;default:0"`
	TotalIncome      decimal.Decimal `db:"total_income"      gorm:"column:total_income;type:numeric(14,2);not null;default:0"`
	RemainingBalance decimal.Decimal `db:"remaining_balance" gorm:"column:remaining_balance;type:numeric(14,2);not null;default:0"`
	CreatedAt        time.Time       `db:"created_at"        gorm:"column:created_at;autoCreateTime"`
}

func (GrantEntity) TableName() string {
	return "grants"
}

func toGrantEntity(m *model.Grant) *GrantEntity {
	if m == nil {
		return nil
	}
	return &GrantEntity{
		ID:               m.ID,
		OrganizationID:   m.OrganizationID,
		Name:             m.Name,
		Amount:           m.Amount,
		FundType:         string(m.FundType),
		TotalSpent:       m.TotalSpent,
		TotalIncome:      m.TotalIncome,
		RemainingBalance: m.RemainingBalance,
		CreatedAt:        m.CreatedAt,
	}
}

func toGrantModel(e *GrantEntity) *model.Grant {
	if e == nil {
		return nil
	}
	return &model.Grant{
		ID:               e.ID,
		OrganizationID:   e.OrganizationID,
		Name:             e.Name,
		Amount:           e.Amount,
		FundType:         model.FundType(e.FundType),
		TotalSpent:       e.TotalSpent,
		TotalIncome:      e.TotalIncome,
		RemainingBalance: e.RemainingBalance,
		CreatedAt:        e.CreatedAt,
	}
}

func toGrantModels(entities []*GrantEntity) []*model.Grant {
	if entities == nil {
		return nil
	}
	models := make([]*model.Grant, len(entities))
	for i, e := range entities {
		models[i] = toGrantModel(e)
	}
	return models
}
