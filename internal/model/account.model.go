package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// BankAccount is a connected or manually tracked account. InitialBalance at
// InitialBalanceDate anchors running-balance computations to a statement
// balance; CurrentBalance is whatever the external feed last reported.
type BankAccount struct {
	ID                 int64            `json:"id"`
	OrganizationID     int64            `json:"organization_id"`
	Name               string           `json:"name"`
	InitialBalance     decimal.Decimal  `json:"initial_balance"`
	InitialBalanceDate *time.Time       `json:"initial_balance_date,omitempty"`
	CurrentBalance     *decimal.Decimal `json:"current_balance,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
}

type BankAccountCreateRequest struct {
	OrganizationID     int64
	Name               string
	InitialBalance     decimal.Decimal
	InitialBalanceDate *time.Time
}

func (p BankAccountCreateRequest) Validate() error {
	if p.OrganizationID == 0 {
		return errors.New("organization_id is required")
	}
	if p.Name == "" {
		return errors.New("name is required")
	}
	return nil
}
