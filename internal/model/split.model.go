package model

import (
	"errors"

	"github.com/shopspring/decimal"
)

// SplitItem describes one child line of a split. Items are transient input;
// they become child transactions only when the whole split commits.
type SplitItem struct {
	Amount             decimal.Decimal     `json:"amount"`
	Description        string              `json:"description"`
	CategoryID         *int64              `json:"category_id,omitempty"`
	GrantID            *int64              `json:"grant_id,omitempty"`
	FundID             *int64              `json:"fund_id,omitempty"`
	ProgramID          *int64              `json:"program_id,omitempty"`
	FunctionalCategory *FunctionalCategory `json:"functional_category,omitempty"`
}

type SplitRequest struct {
	ParentID int64
	Items    []SplitItem
}

func (p SplitRequest) Validate() error {
	if p.ParentID == 0 {
		return errors.New("parent transaction id is required")
	}
	if len(p.Items) < 2 {
		return errors.New("a split requires at least two items")
	}
	for _, item := range p.Items {
		if item.Amount.IsNegative() {
			return errors.New("split item amounts must not be negative")
		}
	}
	return nil
}
