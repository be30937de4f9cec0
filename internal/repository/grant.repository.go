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
	ErrGrantNotFound = errors.New("grant not found")
)

type GrantRepository struct {
	*pg.DB
}

func NewGrantRepository(db *pg.DB) *GrantRepository {
	return &GrantRepository{
		db,
	}
}

func (r *GrantRepository) Create(ctx context.Context, grant *model.Grant) (*model.Grant, error) {
	entity := toGrantEntity(grant)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toGrantModel(entity), nil
}

func (r *GrantRepository) Get(ctx context.Context, id int64) (*model.Grant, error) {
	var entity GrantEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGrantNotFound
		}
		return nil, err
	}
	return toGrantModel(&entity), nil
}

func (r *GrantRepository) List(ctx context.Context, f model.GrantFilter) ([]*model.Grant, int64, error) {
	q := r.Read(ctx).WithContext(ctx).
		Model(&GrantEntity{}).
		Where("organization_id = ?", f.OrganizationID)

	if f.FundType != nil {
		q = q.Where("fund_type = ?", string(*f.FundType))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*GrantEntity
	if err := q.Order("name ASC").Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toGrantModels(entities), total, nil
}

// UpdateAggregates is the single write path for the derived totals. Nothing
// else may touch total_spent, total_income or remaining_balance.
func (r *GrantRepository) UpdateAggregates(ctx context.Context, id int64, spent, income, remaining decimal.Decimal) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&GrantEntity{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"total_spent":       spent,
			"total_income":      income,
			"remaining_balance": remaining,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrGrantNotFound
	}
	return nil
}
