package repository

import (
	"context"
	"errors"
	"time"

	"github.com/fundbooks/ledger-gateway/internal/model"
	"github.com/fundbooks/ledger-gateway/pkg/pg"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrAccountNotFound = errors.New("bank account not found")
)

type BankAccountRepository struct {
	*pg.DB
}

func NewBankAccountRepository(db *pg.DB) *BankAccountRepository {
	return &BankAccountRepository{
		db,
	}
}

func (r *BankAccountRepository) Create(ctx context.Context, account *model.BankAccount) (*model.BankAccount, error) {
	entity := toBankAccountEntity(account)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toBankAccountModel(entity), nil
}

func (r *BankAccountRepository) Get(ctx context.Context, organizationID, id int64) (*model.BankAccount, error) {
	var entity BankAccountEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("organization_id = ? AND id = ?", organizationID, id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return toBankAccountModel(&entity), nil
}

func (r *BankAccountRepository) List(ctx context.Context, organizationID int64) ([]*model.BankAccount, error) {
	var entities []*BankAccountEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("organization_id = ?", organizationID).
		Order("name ASC").
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}
	return toBankAccountModels(entities), nil
}

// SetAnchor updates the statement anchor used by running-balance queries.
func (r *BankAccountRepository) SetAnchor(ctx context.Context, organizationID, id int64, balance decimal.Decimal, date *time.Time) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&BankAccountEntity{}).
		Where("organization_id = ? AND id = ?", organizationID, id).
		Updates(map[string]interface{}{
			"initial_balance":      balance,
			"initial_balance_date": date,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// SetCurrentBalance records the balance last reported by the external feed.
func (r *BankAccountRepository) SetCurrentBalance(ctx context.Context, organizationID, id int64, balance decimal.Decimal) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&BankAccountEntity{}).
		Where("organization_id = ? AND id = ?", organizationID, id).
		Update("current_balance", balance)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *BankAccountRepository) Delete(ctx context.Context, organizationID, id int64) error {
	result := r.Write(ctx).WithContext(ctx).
		Where("organization_id = ? AND id = ?", organizationID, id).
		Delete(&BankAccountEntity{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}
