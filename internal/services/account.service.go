package services

import (
	"context"
	"time"

	"github.com/fundbooks/ledger-gateway/internal/model"
	"github.com/shopspring/decimal"
)

type BankAccountRepository interface {
	Create(ctx context.Context, account *model.BankAccount) (*model.BankAccount, error)
	Get(ctx context.Context, organizationID, id int64) (*model.BankAccount, error)
	List(ctx context.Context, organizationID int64) ([]*model.BankAccount, error)
	SetAnchor(ctx context.Context, organizationID, id int64, balance decimal.Decimal, date *time.Time) error
	SetCurrentBalance(ctx context.Context, organizationID, id int64, balance decimal.Decimal) error
	Delete(ctx context.Context, organizationID, id int64) error
}

type BankAccountService struct {
	accountRepo BankAccountRepository
}

func NewBankAccountService(accountRepo BankAccountRepository) *BankAccountService {
	return &BankAccountService{
		accountRepo: accountRepo,
	}
}

func (s *BankAccountService) Create(ctx context.Context, p model.BankAccountCreateRequest) (*model.BankAccount, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	account := &model.BankAccount{
		OrganizationID:     p.OrganizationID,
		Name:               p.Name,
		InitialBalance:     p.InitialBalance,
		InitialBalanceDate: p.InitialBalanceDate,
	}
	return s.accountRepo.Create(ctx, account)
}

func (s *BankAccountService) Get(ctx context.Context, organizationID, id int64) (*model.BankAccount, error) {
	account, err := s.accountRepo.Get(ctx, organizationID, id)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return account, nil
}

func (s *BankAccountService) List(ctx context.Context, organizationID int64) ([]*model.BankAccount, error) {
	return s.accountRepo.List(ctx, organizationID)
}

// SetAnchor records a statement balance as of a date. Running-balance queries
// for the account snap to this anchor; a nil date anchors at the beginning of
// time, which reduces to an opening balance.
func (s *BankAccountService) SetAnchor(ctx context.Context, organizationID, id int64, balance decimal.Decimal, date *time.Time) (*model.BankAccount, error) {
	if err := s.accountRepo.SetAnchor(ctx, organizationID, id, balance, date); err != nil {
		return nil, mapRepoError(err)
	}
	account, err := s.accountRepo.Get(ctx, organizationID, id)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return account, nil
}

func (s *BankAccountService) Delete(ctx context.Context, organizationID, id int64) error {
	if err := s.accountRepo.Delete(ctx, organizationID, id); err != nil {
		return mapRepoError(err)
	}
	return nil
}
