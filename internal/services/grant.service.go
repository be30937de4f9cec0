package services

import (
	"context"

	"github.com/fundbooks/ledger-gateway/internal/model"
	"github.com/shopspring/decimal"
)

type GrantRepository interface {
	Create(ctx context.Context, grant *model.Grant) (*model.Grant, error)
	Get(ctx context.Context, id int64) (*model.Grant, error)
	List(ctx context.Context, f model.GrantFilter) ([]*model.Grant, int64, error)
	UpdateAggregates(ctx context.Context, id int64, spent, income, remaining decimal.Decimal) error
}

type GrantSummer interface {
	SumByGrant(ctx context.Context, grantID int64) (spent, income decimal.Decimal, err error)
}

type GrantService struct {
	grantRepo GrantRepository
	sums      GrantSummer
}

func NewGrantService(grantRepo GrantRepository, sums GrantSummer) *GrantService {
	return &GrantService{
		grantRepo: grantRepo,
		sums:      sums,
	}
}

func (s *GrantService) Create(ctx context.Context, p model.GrantCreateRequest) (*model.Grant, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	grant := &model.Grant{
		OrganizationID:   p.OrganizationID,
		Name:             p.Name,
		Amount:           p.Amount,
		FundType:         p.FundType,
		TotalSpent:       decimal.Zero,
		TotalIncome:      decimal.Zero,
		RemainingBalance: p.Amount,
	}
	return s.grantRepo.Create(ctx, grant)
}

func (s *GrantService) Get(ctx context.Context, id int64) (*model.Grant, error) {
	grant, err := s.grantRepo.Get(ctx, id)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return grant, nil
}

func (s *GrantService) List(ctx context.Context, f model.GrantFilter) ([]*model.Grant, int64, error) {
	return s.grantRepo.List(ctx, f)
}

// Recalculate rebuilds a grant's denormalized totals from its transactions.
// This is the only code path allowed to compute them:
//
//	remaining = award - totalSpent + totalIncome
//
// It runs after every create, update, delete, split and unsplit that touches
// a grant-linked transaction, inside the same database transaction.
func (s *GrantService) Recalculate(ctx context.Context, grantID int64) error {
	grant, err := s.grantRepo.Get(ctx, grantID)
	if err != nil {
		return mapRepoError(err)
	}

	spent, income, err := s.sums.SumByGrant(ctx, grantID)
	if err != nil {
		return err
	}

	remaining := grant.Amount.Sub(spent).Add(income)
	return s.grantRepo.UpdateAggregates(ctx, grantID, spent, income, remaining)
}
