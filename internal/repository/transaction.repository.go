package repository

import (
	"context"
	"errors"

	"github.com/fundbooks/ledger-gateway/internal/model"
	"github.com/fundbooks/ledger-gateway/pkg/pg"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a transaction does not exist within the
	// organization scope of the query.
	ErrNotFound = errors.New("transaction not found")

	// ErrSplitChildDelete is returned when a delete targets a split child
	// without its parent; removing a single child would break the split sum
	// invariant. Unsplit first, or delete the parent to cascade.
	ErrSplitChildDelete = errors.New("split children cannot be deleted individually")
)

type TransactionRepository struct {
	*pg.DB
}

func NewTransactionRepository(db *pg.DB) *TransactionRepository {
	return &TransactionRepository{
		db,
	}
}

func (r *TransactionRepository) Create(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	entity := toTransactionEntity(txn)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toTransactionModel(entity), nil
}

func (r *TransactionRepository) Get(ctx context.Context, organizationID, id int64) (*model.Transaction, error) {
	var entity TransactionEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("organization_id = ? AND id = ?", organizationID, id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return toTransactionModel(&entity), nil
}

// Update persists the full row. The caller is expected to have loaded the
// transaction through Get and mutated the returned model.
func (r *TransactionRepository) Update(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	entity := toTransactionEntity(txn)

	result := r.Write(ctx).WithContext(ctx).
		Model(&TransactionEntity{}).
		Where("organization_id = ? AND id = ?", txn.OrganizationID, txn.ID).
		Select("*").
		Omit("id", "created_at").
		Updates(entity)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}

	return r.Get(ctx, txn.OrganizationID, txn.ID)
}

// Delete removes a transaction. Split parents cascade to their children;
// deleting a lone split child is refused.
func (r *TransactionRepository) Delete(ctx context.Context, organizationID, id int64) error {
	txn, err := r.Get(ctx, organizationID, id)
	if err != nil {
		return err
	}
	if txn.IsSplitChild {
		return ErrSplitChildDelete
	}

	if txn.HasSplits {
		if _, err := r.DeleteChildren(ctx, organizationID, id); err != nil {
			return err
		}
	}

	return r.Write(ctx).WithContext(ctx).
		Where("organization_id = ? AND id = ?", organizationID, id).
		Delete(&TransactionEntity{}).
		Error
}

// BulkDelete removes the given transactions. A split child may only appear
// in the set when its parent is included too; parents cascade to all of
// their children. Returns the number of rows removed, children included.
func (r *TransactionRepository) BulkDelete(ctx context.Context, organizationID int64, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	var entities []*TransactionEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("organization_id = ? AND id IN ?", organizationID, ids).
		Find(&entities).
		Error
	if err != nil {
		return 0, err
	}

	inSet := make(map[int64]bool, len(entities))
	for _, e := range entities {
		inSet[e.ID] = true
	}

	targets := make([]int64, 0, len(entities))
	for _, e := range entities {
		if e.IsSplitChild {
			if e.ParentTransactionID == nil || !inSet[*e.ParentTransactionID] {
				return 0, ErrSplitChildDelete
			}
			// parent cascade covers it
			continue
		}
		targets = append(targets, e.ID)
	}

	var removed int64
	for _, e := range entities {
		if e.HasSplits {
			n, err := r.DeleteChildren(ctx, organizationID, e.ID)
			if err != nil {
				return removed, err
			}
			removed += n
		}
	}

	if len(targets) > 0 {
		result := r.Write(ctx).WithContext(ctx).
			Where("organization_id = ? AND id IN ?", organizationID, targets).
			Delete(&TransactionEntity{})
		if result.Error != nil {
			return removed, result.Error
		}
		removed += result.RowsAffected
	}
	return removed, nil
}

func (r *TransactionRepository) List(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, int64, error) {
	q := r.applyFilter(ctx, f)

	// Count before pagination
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// Stable order: date, then insertion order
	order := "date ASC, id ASC"
	if f.Desc {
		order = "date DESC, id DESC"
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*TransactionEntity
	if err := q.Order(order).Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toTransactionModels(entities), total, nil
}

// ListAll returns every transaction matching the filter without pagination,
// in ascending date order. Running-balance computation needs the complete
// filtered set, not a page of it.
func (r *TransactionRepository) ListAll(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, error) {
	var entities []*TransactionEntity
	err := r.applyFilter(ctx, f).
		Order("date ASC, id ASC").
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}
	return toTransactionModels(entities), nil
}

func (r *TransactionRepository) applyFilter(ctx context.Context, f model.TransactionFilter) *gorm.DB {
	q := r.Read(ctx).WithContext(ctx).
		Model(&TransactionEntity{}).
		Where("organization_id = ?", f.OrganizationID)

	if f.BankAccountID != nil {
		q = q.Where("bank_account_id = ?", *f.BankAccountID)
	}
	if f.GrantID != nil {
		q = q.Where("grant_id = ?", *f.GrantID)
	}
	if f.CategoryID != nil {
		q = q.Where("category_id = ?", *f.CategoryID)
	}
	if f.Type != nil {
		q = q.Where("type = ?", string(*f.Type))
	}
	if f.Source != nil {
		q = q.Where("source = ?", string(*f.Source))
	}
	if f.ReconciliationStatus != nil {
		q = q.Where("reconciliation_status = ?", string(*f.ReconciliationStatus))
	}
	if f.Search != nil && *f.Search != "" {
		q = q.Where("description LIKE ?", "%"+*f.Search+"%")
	}
	if f.From != nil {
		q = q.Where("date >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("date < ?", *f.To)
	}
	if f.ExcludeSplitParents {
		q = q.Where("has_splits = ?", false)
	}
	return q
}

// CreateChildren inserts one child transaction per split item and marks the
// parent as split. Callers run this inside WithinTransaction so the split
// commits all-or-nothing.
func (r *TransactionRepository) CreateChildren(ctx context.Context, parent *model.Transaction, items []model.SplitItem) ([]*model.Transaction, error) {
	children := make([]*TransactionEntity, 0, len(items))
	for _, item := range items {
		var functional *string
		if item.FunctionalCategory != nil {
			s := string(*item.FunctionalCategory)
			functional = &s
		}
		description := item.Description
		if description == "" {
			description = parent.Description
		}
		parentID := parent.ID
		children = append(children, &TransactionEntity{
			OrganizationID:       parent.OrganizationID,
			Date:                 parent.Date,
			Description:          description,
			Amount:               item.Amount,
			Type:                 string(parent.Type),
			CategoryID:           item.CategoryID,
			GrantID:              item.GrantID,
			FundID:               item.FundID,
			ProgramID:            item.ProgramID,
			FunctionalCategory:   functional,
			BankAccountID:        parent.BankAccountID,
			Source:               string(parent.Source),
			IsSplitChild:         true,
			ParentTransactionID:  &parentID,
			ReconciliationStatus: string(parent.ReconciliationStatus),
		})
	}

	if err := r.Write(ctx).WithContext(ctx).Create(&children).Error; err != nil {
		return nil, err
	}

	if err := r.setHasSplits(ctx, parent.OrganizationID, parent.ID, true); err != nil {
		return nil, err
	}

	return toTransactionModels(children), nil
}

// DeleteChildren removes every child of the given parent.
func (r *TransactionRepository) DeleteChildren(ctx context.Context, organizationID, parentID int64) (int64, error) {
	result := r.Write(ctx).WithContext(ctx).
		Where("organization_id = ? AND parent_transaction_id = ?", organizationID, parentID).
		Delete(&TransactionEntity{})
	return result.RowsAffected, result.Error
}

// ClearSplit removes the children and clears the parent's split flag. The
// parent's own fields were never overwritten by the split, so clearing the
// flag restores the original representation.
func (r *TransactionRepository) ClearSplit(ctx context.Context, organizationID, parentID int64) (int64, error) {
	removed, err := r.DeleteChildren(ctx, organizationID, parentID)
	if err != nil {
		return removed, err
	}
	return removed, r.setHasSplits(ctx, organizationID, parentID, false)
}

func (r *TransactionRepository) setHasSplits(ctx context.Context, organizationID, id int64, hasSplits bool) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&TransactionEntity{}).
		Where("organization_id = ? AND id = ?", organizationID, id).
		Update("has_splits", hasSplits)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListChildren returns the active split lines of a parent.
func (r *TransactionRepository) ListChildren(ctx context.Context, organizationID, parentID int64) ([]*model.Transaction, error) {
	var entities []*TransactionEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("organization_id = ? AND parent_transaction_id = ?", organizationID, parentID).
		Order("id ASC").
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}
	return toTransactionModels(entities), nil
}

// SumByGrant aggregates the expense and income magnitudes assigned to a
// grant. Split parents are excluded: their value is carried by the children.
func (r *TransactionRepository) SumByGrant(ctx context.Context, grantID int64) (spent, income decimal.Decimal, err error) {
	spent, err = r.sumByGrantAndType(ctx, grantID, model.TransactionTypeExpense)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	income, err = r.sumByGrantAndType(ctx, grantID, model.TransactionTypeIncome)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return spent, income, nil
}

func (r *TransactionRepository) sumByGrantAndType(ctx context.Context, grantID int64, txType model.TransactionType) (decimal.Decimal, error) {
	var total decimal.Decimal
	row := r.Read(ctx).WithContext(ctx).
		Model(&TransactionEntity{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("grant_id = ? AND type = ? AND has_splits = ?", grantID, string(txType), false).
		Row()
	if err := row.Scan(&total); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}
