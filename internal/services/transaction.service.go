package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/fundbooks/ledger-gateway/internal/ledger"
	"github.com/fundbooks/ledger-gateway/internal/model"
	"github.com/fundbooks/ledger-gateway/internal/repository"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound        = errors.New("transaction not found")
	ErrGrantNotFound   = errors.New("grant not found")
	ErrAccountNotFound = errors.New("bank account not found")

	// ErrSplitParentEdit rejects amount edits on an active split parent; the
	// children carry the value, so the parent must be unsplit first.
	ErrSplitParentEdit = errors.New("cannot edit the amount of a split transaction")

	// ErrSplitChildEdit rejects amount edits on a split child; changing one
	// child's amount would break the children-sum-to-parent invariant.
	// Unsplit and re-split with the new breakdown instead.
	ErrSplitChildEdit = errors.New("cannot edit the amount of a split child")

	// ErrSplitParentGrant rejects attaching a grant to an active split
	// parent. Split parents are excluded from grant aggregates (the children
	// carry the value), so the link would reserve budget that never lands.
	ErrSplitParentGrant = errors.New("cannot attach a grant to a split transaction")
)

type TransactionRepository interface {
	Create(ctx context.Context, txn *model.Transaction) (*model.Transaction, error)
	Get(ctx context.Context, organizationID, id int64) (*model.Transaction, error)
	Update(ctx context.Context, txn *model.Transaction) (*model.Transaction, error)
	Delete(ctx context.Context, organizationID, id int64) error
	BulkDelete(ctx context.Context, organizationID int64, ids []int64) (int64, error)
	List(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, int64, error)
	ListAll(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, error)
	ListChildren(ctx context.Context, organizationID, parentID int64) ([]*model.Transaction, error)
	CreateChildren(ctx context.Context, parent *model.Transaction, items []model.SplitItem) ([]*model.Transaction, error)
	ClearSplit(ctx context.Context, organizationID, parentID int64) (int64, error)
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type GrantReader interface {
	Get(ctx context.Context, id int64) (*model.Grant, error)
}

type GrantAggregator interface {
	Recalculate(ctx context.Context, grantID int64) error
}

type BankAccountReader interface {
	Get(ctx context.Context, organizationID, id int64) (*model.BankAccount, error)
}

type TransactionService struct {
	txnRepo    TransactionRepository
	grants     GrantReader
	aggregator GrantAggregator
	accounts   BankAccountReader
}

func NewTransactionService(txnRepo TransactionRepository, grants GrantReader, aggregator GrantAggregator, accounts BankAccountReader) *TransactionService {
	return &TransactionService{
		txnRepo:    txnRepo,
		grants:     grants,
		aggregator: aggregator,
		accounts:   accounts,
	}
}

// Create validates the request, runs the grant budget guard, and persists the
// transaction. Grant aggregates are recalculated in the same database
// transaction as the write, so the denormalized totals never drift from the
// rows they summarize.
func (s *TransactionService) Create(ctx context.Context, p model.TransactionCreateRequest) (*model.Transaction, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	if err := s.checkGuard(ctx, p.GrantID, p.Amount, p.Type, nil); err != nil {
		return nil, err
	}

	if p.Source == "" {
		p.Source = model.SourceManual
	}

	txn := &model.Transaction{
		OrganizationID:       p.OrganizationID,
		Date:                 p.Date,
		Description:          p.Description,
		Amount:               p.Amount,
		Type:                 p.Type,
		CategoryID:           p.CategoryID,
		VendorID:             p.VendorID,
		ClientID:             p.ClientID,
		DonorID:              p.DonorID,
		GrantID:              p.GrantID,
		FundID:               p.FundID,
		ProgramID:            p.ProgramID,
		FunctionalCategory:   p.FunctionalCategory,
		BankAccountID:        p.BankAccountID,
		Source:               p.Source,
		ReconciliationStatus: model.StatusUnreconciled,
	}

	var created *model.Transaction
	err := s.txnRepo.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		created, err = s.txnRepo.Create(ctx, txn)
		if err != nil {
			return fmt.Errorf("create transaction: %w", err)
		}
		return s.recalculate(ctx, grantIDs(created.GrantID))
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Update applies an edit. The prior persisted grant link and amount are read
// from storage, never trusted from the client, so the guard can credit back
// budget the transaction already consumed on the same grant.
func (s *TransactionService) Update(ctx context.Context, organizationID, id int64, req model.TransactionUpdateRequest) (*model.Transaction, error) {
	prior, err := s.txnRepo.Get(ctx, organizationID, id)
	if err != nil {
		return nil, mapRepoError(err)
	}

	if prior.HasSplits && req.Amount != nil {
		return nil, ErrSplitParentEdit
	}
	if prior.IsSplitChild && req.Amount != nil {
		return nil, ErrSplitChildEdit
	}
	if prior.HasSplits && req.GrantID != nil {
		return nil, ErrSplitParentGrant
	}

	next := *prior
	if req.Date != nil {
		next.Date = *req.Date
	}
	if req.Description != nil {
		next.Description = *req.Description
	}
	if req.Amount != nil {
		if req.Amount.IsNegative() {
			return nil, errors.New("amount must not be negative")
		}
		next.Amount = *req.Amount
	}
	if req.Type != nil {
		next.Type = *req.Type
	}
	if req.CategoryID != nil {
		next.CategoryID = req.CategoryID
	}
	if req.ClearGrant {
		next.GrantID = nil
	} else if req.GrantID != nil {
		next.GrantID = req.GrantID
	}
	if req.FundID != nil {
		next.FundID = req.FundID
	}
	if req.ProgramID != nil {
		next.ProgramID = req.ProgramID
	}
	if req.FunctionalCategory != nil {
		next.FunctionalCategory = req.FunctionalCategory
	}

	priorAlloc := &ledger.PriorAllocation{GrantID: prior.GrantID, Amount: prior.Amount}
	if prior.Type != model.TransactionTypeExpense {
		// income never consumed budget, nothing to credit back
		priorAlloc = nil
	}
	// split parents sit outside the aggregates, nothing to guard
	if !prior.HasSplits {
		if err := s.checkGuard(ctx, next.GrantID, next.Amount, next.Type, priorAlloc); err != nil {
			return nil, err
		}
	}

	var updated *model.Transaction
	err = s.txnRepo.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		updated, err = s.txnRepo.Update(ctx, &next)
		if err != nil {
			return mapRepoError(err)
		}
		return s.recalculate(ctx, grantIDs(prior.GrantID, next.GrantID))
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *TransactionService) Get(ctx context.Context, organizationID, id int64) (*model.Transaction, error) {
	txn, err := s.txnRepo.Get(ctx, organizationID, id)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return txn, nil
}

func (s *TransactionService) Delete(ctx context.Context, organizationID, id int64) error {
	txn, err := s.txnRepo.Get(ctx, organizationID, id)
	if err != nil {
		return mapRepoError(err)
	}

	touched := grantIDs(txn.GrantID)
	if txn.HasSplits {
		children, err := s.txnRepo.ListChildren(ctx, organizationID, id)
		if err != nil {
			return err
		}
		for _, child := range children {
			touched = grantIDs(append(idPtrs(touched), child.GrantID)...)
		}
	}

	return s.txnRepo.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.txnRepo.Delete(ctx, organizationID, id); err != nil {
			return mapRepoError(err)
		}
		return s.recalculate(ctx, touched)
	})
}

func (s *TransactionService) BulkDelete(ctx context.Context, organizationID int64, ids []int64) (int64, error) {
	var touched []int64
	for _, id := range ids {
		txn, err := s.txnRepo.Get(ctx, organizationID, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			return 0, err
		}
		touched = grantIDs(append(idPtrs(touched), txn.GrantID)...)
		if txn.HasSplits {
			children, err := s.txnRepo.ListChildren(ctx, organizationID, id)
			if err != nil {
				return 0, err
			}
			for _, child := range children {
				touched = grantIDs(append(idPtrs(touched), child.GrantID)...)
			}
		}
	}

	var removed int64
	err := s.txnRepo.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		removed, err = s.txnRepo.BulkDelete(ctx, organizationID, ids)
		if err != nil {
			return err
		}
		return s.recalculate(ctx, touched)
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func (s *TransactionService) List(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, int64, error) {
	return s.txnRepo.List(ctx, f)
}

// ListWithBalances returns a page of transactions plus the running balance
// for every transaction matching the filter. Balances are derived from the
// complete filtered set in chronological order, so they are correct whatever
// page or sort direction is displayed. When the filter names a bank account
// with a statement anchor, balances are absolute; otherwise they are
// relative deltas from zero.
func (s *TransactionService) ListWithBalances(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, int64, map[int64]decimal.Decimal, error) {
	page, total, err := s.txnRepo.List(ctx, f)
	if err != nil {
		return nil, 0, nil, err
	}

	full, err := s.txnRepo.ListAll(ctx, f)
	if err != nil {
		return nil, 0, nil, err
	}

	var anchor *ledger.Anchor
	if f.BankAccountID != nil {
		account, err := s.accounts.Get(ctx, f.OrganizationID, *f.BankAccountID)
		if err != nil {
			return nil, 0, nil, mapRepoError(err)
		}
		if account.InitialBalanceDate != nil {
			anchor = &ledger.Anchor{
				InitialBalance: account.InitialBalance,
				Date:           *account.InitialBalanceDate,
			}
		}
	}

	balances := ledger.ComputeRunningBalances(full, anchor)
	return page, total, balances, nil
}

// Split decomposes a transaction into the given items. The whole operation
// commits or nothing does; a sum mismatch is rejected before any child row
// exists.
func (s *TransactionService) Split(ctx context.Context, organizationID int64, req model.SplitRequest) ([]*model.Transaction, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	parent, err := s.txnRepo.Get(ctx, organizationID, req.ParentID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if err := ledger.CheckSplitEligibility(parent); err != nil {
		return nil, err
	}

	plan := ledger.PlanSplit(parent.Amount, req.Items)
	if !plan.Valid {
		return nil, fmt.Errorf("%w: off by %s", ledger.ErrSplitSumMismatch, plan.Difference.StringFixed(2))
	}

	touched := idPtrsFromItems(parent.GrantID, req.Items)

	var children []*model.Transaction
	err = s.txnRepo.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		children, err = s.txnRepo.CreateChildren(ctx, parent, req.Items)
		if err != nil {
			return fmt.Errorf("create split children: %w", err)
		}
		return s.recalculate(ctx, touched)
	})
	if err != nil {
		return nil, err
	}
	return children, nil
}

// Unsplit deletes the children and restores the parent as the active
// representation. The parent's fields were preserved during split, so
// clearing the flag is all the restoration needed.
func (s *TransactionService) Unsplit(ctx context.Context, organizationID, parentID int64) (*model.Transaction, error) {
	parent, err := s.txnRepo.Get(ctx, organizationID, parentID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if !parent.HasSplits {
		return nil, ledger.ErrNotSplit
	}

	children, err := s.txnRepo.ListChildren(ctx, organizationID, parentID)
	if err != nil {
		return nil, err
	}
	touched := grantIDs(parent.GrantID)
	for _, child := range children {
		touched = grantIDs(append(idPtrs(touched), child.GrantID)...)
	}

	err = s.txnRepo.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.txnRepo.ClearSplit(ctx, organizationID, parentID); err != nil {
			return err
		}
		return s.recalculate(ctx, touched)
	})
	if err != nil {
		return nil, err
	}

	return s.txnRepo.Get(ctx, organizationID, parentID)
}

// checkGuard funnels every trigger point through the one decision function.
func (s *TransactionService) checkGuard(ctx context.Context, grantID *int64, amount decimal.Decimal, txType model.TransactionType, prior *ledger.PriorAllocation) error {
	if grantID == nil || txType != model.TransactionTypeExpense {
		return nil
	}
	grant, err := s.grants.Get(ctx, *grantID)
	if err != nil {
		return mapRepoError(err)
	}
	return ledger.CheckGrantBudget(grant, amount, txType, prior).Err()
}

func (s *TransactionService) recalculate(ctx context.Context, ids []int64) error {
	for _, id := range ids {
		if err := s.aggregator.Recalculate(ctx, id); err != nil {
			return fmt.Errorf("recalculate grant %d: %w", id, err)
		}
	}
	return nil
}

func mapRepoError(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrGrantNotFound):
		return ErrGrantNotFound
	case errors.Is(err, repository.ErrAccountNotFound):
		return ErrAccountNotFound
	default:
		return err
	}
}

// grantIDs deduplicates the non-nil ids.
func grantIDs(ids ...*int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id == nil || seen[*id] {
			continue
		}
		seen[*id] = true
		out = append(out, *id)
	}
	return out
}

func idPtrs(ids []int64) []*int64 {
	out := make([]*int64, len(ids))
	for i := range ids {
		out[i] = &ids[i]
	}
	return out
}

func idPtrsFromItems(parentGrant *int64, items []model.SplitItem) []int64 {
	ptrs := []*int64{parentGrant}
	for _, item := range items {
		ptrs = append(ptrs, item.GrantID)
	}
	return grantIDs(ptrs...)
}
