package ledger

import (
	"errors"

	"github.com/fundbooks/ledger-gateway/internal/model"
	"github.com/shopspring/decimal"
)

var (
	// ErrAlreadySplit is returned when splitting a transaction that already
	// has children; it must be unsplit first.
	ErrAlreadySplit = errors.New("transaction is already split")

	// ErrSplitChild is returned when splitting a transaction that is itself
	// a split line of a parent.
	ErrSplitChild = errors.New("a split child cannot be split")

	// ErrNotSplit is returned when unsplitting a transaction with no active
	// split. Callers are expected to check state first or handle the error;
	// unsplit is not silently idempotent.
	ErrNotSplit = errors.New("transaction is not split")

	// ErrSplitSumMismatch is returned when the split items do not sum to the
	// parent amount within tolerance.
	ErrSplitSumMismatch = errors.New("split item amounts do not sum to the parent amount")
)

// SplitTolerance is the largest acceptable gap between a parent amount and
// the sum of its split items, in currency units.
var SplitTolerance = decimal.New(1, -2) // 0.01

// SplitPlan is the result of validating a proposed split before any child is
// created. Difference is the absolute gap between the parent amount and the
// item total.
type SplitPlan struct {
	Valid      bool
	Difference decimal.Decimal
	ItemTotal  decimal.Decimal
}

// PlanSplit validates a proposed decomposition of parentAmount into items.
// A plan is valid when there are at least two items, no item is negative,
// and the item total matches the parent amount within SplitTolerance.
func PlanSplit(parentAmount decimal.Decimal, items []model.SplitItem) SplitPlan {
	total := decimal.Zero
	negative := false
	for _, item := range items {
		if item.Amount.IsNegative() {
			negative = true
		}
		total = total.Add(item.Amount)
	}

	diff := parentAmount.Sub(total).Abs()
	valid := len(items) >= 2 && !negative && diff.LessThanOrEqual(SplitTolerance)
	return SplitPlan{Valid: valid, Difference: diff, ItemTotal: total}
}

// CheckSplitEligibility reports whether a transaction may be split at all.
func CheckSplitEligibility(t *model.Transaction) error {
	if t.HasSplits {
		return ErrAlreadySplit
	}
	if t.IsSplitChild {
		return ErrSplitChild
	}
	return nil
}
