package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type FundType string

const (
	FundTypeRestricted   FundType = "restricted"
	FundTypeUnrestricted FundType = "unrestricted"
)

// Grant is a funding award. TotalSpent, TotalIncome and RemainingBalance are
// denormalized aggregates; they are recalculated through a single code path
// (GrantService.Recalculate) after every write touching a grant-linked
// transaction and must never be updated elsewhere.
type Grant struct {
	ID               int64           `json:"id"`
	OrganizationID   int64           `json:"organization_id"`
	Name             string          `json:"name"`
	Amount           decimal.Decimal `json:"amount"`
	FundType         FundType        `json:"fund_type"`
	TotalSpent       decimal.Decimal `json:"total_spent"`
	TotalIncome      decimal.Decimal `json:"total_income"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
	CreatedAt        time.Time       `json:"created_at"`
}

type GrantCreateRequest struct {
	OrganizationID int64
	Name           string
	Amount         decimal.Decimal
	FundType       FundType
}

func (p GrantCreateRequest) Validate() error {
	if p.OrganizationID == 0 {
		return errors.New("organization_id is required")
	}
	if p.Name == "" {
		return errors.New("name is required")
	}
	if p.Amount.IsNegative() {
		return errors.New("amount must not be negative")
	}
	if p.FundType != FundTypeRestricted && p.FundType != FundTypeUnrestricted {
		return errors.New("fund_type must be restricted or unrestricted")
	}
	return nil
}

type GrantFilter struct {
	OrganizationID int64
	FundType       *FundType
	Limit          int
	Offset         int
}
