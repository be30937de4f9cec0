package ledger

import (
	"fmt"

	"github.com/fundbooks/ledger-gateway/internal/model"
	"github.com/shopspring/decimal"
)

// PriorAllocation is the persisted grant consumption of the transaction being
// edited, read from storage before the edit. On create it is nil.
type PriorAllocation struct {
	GrantID *int64
	Amount  decimal.Decimal
}

// GuardDecision is the outcome of a grant-budget check. When rejected it
// carries enough detail for the caller to offer clamping the amount or
// removing the grant link.
type GuardDecision struct {
	Approved  bool
	GrantName string
	Remaining decimal.Decimal
	Requested decimal.Decimal
}

// GrantBalanceExceededError is the error form of a rejected GuardDecision.
type GrantBalanceExceededError struct {
	GrantName string
	Remaining decimal.Decimal
	Requested decimal.Decimal
}

func (e *GrantBalanceExceededError) Error() string {
	return fmt.Sprintf("grant %q has %s remaining, requested %s",
		e.GrantName, e.Remaining.StringFixed(2), e.Requested.StringFixed(2))
}

// CheckGrantBudget decides whether an expense may consume proposed from the
// grant's remaining balance. Every trigger point (grant selection changed,
// amount changed, final submit) must funnel through this one function.
//
// When the edited transaction already consumed budget from the same grant,
// that consumption is credited back before comparing:
//
//	effectiveRemaining = grant.RemainingBalance + priorAmount (same grant only)
//
// Income never consumes grant budget and is always approved, as is any
// transaction with no grant assigned. The check is advisory: it uses the
// grant aggregate as last fetched and concurrent edits can jointly overspend.
// A hard guarantee belongs to a storage-layer constraint, not here.
func CheckGrantBudget(grant *model.Grant, proposed decimal.Decimal, txType model.TransactionType, prior *PriorAllocation) GuardDecision {
	if grant == nil || txType != model.TransactionTypeExpense {
		return GuardDecision{Approved: true}
	}

	effective := grant.RemainingBalance
	if prior != nil && prior.GrantID != nil && *prior.GrantID == grant.ID {
		effective = effective.Add(prior.Amount)
	}

	if proposed.GreaterThan(effective) {
		return GuardDecision{
			Approved:  false,
			GrantName: grant.Name,
			Remaining: effective,
			Requested: proposed,
		}
	}
	return GuardDecision{Approved: true, GrantName: grant.Name, Remaining: effective, Requested: proposed}
}

// Err converts a rejected decision into a typed error; approved decisions
// return nil.
func (d GuardDecision) Err() error {
	if d.Approved {
		return nil
	}
	return &GrantBalanceExceededError{
		GrantName: d.GrantName,
		Remaining: d.Remaining,
		Requested: d.Requested,
	}
}
