package ledger

import (
	"sort"
	"time"

	"github.com/fundbooks/ledger-gateway/internal/model"
	"github.com/shopspring/decimal"
)

// Anchor ties a running-balance computation to a known balance at a known
// date, typically a bank statement's opening balance. Without an anchor the
// computed balances are relative deltas starting from zero, not absolute
// account balances.
type Anchor struct {
	InitialBalance decimal.Decimal
	Date           time.Time
}

// ComputeRunningBalances returns the chronological running balance for each
// transaction, keyed by transaction id. The input may arrive in any display
// order; balances are always derived from a chronologically sorted copy.
// Transactions sharing a date keep their relative input order (stable sort).
//
// When an anchor is set, the running balance snaps to the anchor's initial
// balance immediately before the first transaction dated on or after the
// anchor date.
//
// Split parents contribute zero: their economic value is represented by
// their children. The computation is pure and idempotent.
func ComputeRunningBalances(txns []*model.Transaction, anchor *Anchor) map[int64]decimal.Decimal {
	balances := make(map[int64]decimal.Decimal, len(txns))
	if len(txns) == 0 {
		return balances
	}

	ordered := make([]*model.Transaction, len(txns))
	copy(ordered, txns)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Date.Before(ordered[j].Date)
	})

	running := decimal.Zero
	seenAnchor := false
	for _, t := range ordered {
		if anchor != nil && !seenAnchor && !t.Date.Before(anchor.Date) {
			running = anchor.InitialBalance
			seenAnchor = true
		}
		running = running.Add(signedAmount(t))
		balances[t.ID] = running
	}
	return balances
}

func signedAmount(t *model.Transaction) decimal.Decimal {
	if t.HasSplits {
		return decimal.Zero
	}
	if t.Type == model.TransactionTypeIncome {
		return t.Amount
	}
	return t.Amount.Neg()
}
