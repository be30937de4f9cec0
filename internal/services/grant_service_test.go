package services

import (
	"context"
	"testing"

	"github.com/fundbooks/ledger-gateway/internal/model"
	"github.com/fundbooks/ledger-gateway/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockGrantRepository struct {
	mock.Mock
}

func (m *MockGrantRepository) Create(ctx context.Context, grant *model.Grant) (*model.Grant, error) {
	args := m.Called(ctx, grant)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Grant), args.Error(1)
}

func (m *MockGrantRepository) Get(ctx context.Context, id int64) (*model.Grant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Grant), args.Error(1)
}

func (m *MockGrantRepository) List(ctx context.Context, f model.GrantFilter) ([]*model.Grant, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.Grant), args.Get(1).(int64), args.Error(2)
}

func (m *MockGrantRepository) UpdateAggregates(ctx context.Context, id int64, spent, income, remaining decimal.Decimal) error {
	args := m.Called(ctx, id, spent, income, remaining)
	return args.Error(0)
}

type MockGrantSummer struct {
	mock.Mock
}

func (m *MockGrantSummer) SumByGrant(ctx context.Context, grantID int64) (decimal.Decimal, decimal.Decimal, error) {
	args := m.Called(ctx, grantID)
	return args.Get(0).(decimal.Decimal), args.Get(1).(decimal.Decimal), args.Error(2)
}

func TestGrantService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("successful creation starts fully unspent", func(t *testing.T) {
		grantRepo := new(MockGrantRepository)
		sums := new(MockGrantSummer)
		svc := NewGrantService(grantRepo, sums)

		grantRepo.On("Create", ctx, mock.MatchedBy(func(g *model.Grant) bool {
			return g.Name == "Community Health Grant" &&
				g.TotalSpent.IsZero() &&
				g.TotalIncome.IsZero() &&
				g.RemainingBalance.Equal(decimal.RequireFromString("10000"))
		})).Return(&model.Grant{ID: 1, Name: "Community Health Grant"}, nil)

		grant, err := svc.Create(ctx, model.GrantCreateRequest{
			OrganizationID: 1,
			Name:           "Community Health Grant",
			Amount:         decimal.RequireFromString("10000"),
			FundType:       model.FundTypeRestricted,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), grant.ID)
		grantRepo.AssertExpectations(t)
	})

	t.Run("negative amount rejected", func(t *testing.T) {
		grantRepo := new(MockGrantRepository)
		sums := new(MockGrantSummer)
		svc := NewGrantService(grantRepo, sums)

		_, err := svc.Create(ctx, model.GrantCreateRequest{
			OrganizationID: 1,
			Name:           "Bad Grant",
			Amount:         decimal.RequireFromString("-5"),
			FundType:       model.FundTypeRestricted,
		})
		assert.Error(t, err)
		grantRepo.AssertNotCalled(t, "Create")
	})

	t.Run("unknown fund type rejected", func(t *testing.T) {
		grantRepo := new(MockGrantRepository)
		sums := new(MockGrantSummer)
		svc := NewGrantService(grantRepo, sums)

		_, err := svc.Create(ctx, model.GrantCreateRequest{
			OrganizationID: 1,
			Name:           "Bad Grant",
			Amount:         decimal.RequireFromString("100"),
			FundType:       model.FundType("endowment"),
		})
		assert.Error(t, err)
	})
}

func TestGrantService_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("missing grant maps to service error", func(t *testing.T) {
		grantRepo := new(MockGrantRepository)
		sums := new(MockGrantSummer)
		svc := NewGrantService(grantRepo, sums)

		grantRepo.On("Get", ctx, int64(99)).Return(nil, repository.ErrGrantNotFound)

		_, err := svc.Get(ctx, 99)
		assert.ErrorIs(t, err, ErrGrantNotFound)
	})
}

func TestGrantService_Recalculate(t *testing.T) {
	ctx := context.Background()

	t.Run("remaining is award minus spent plus income", func(t *testing.T) {
		grantRepo := new(MockGrantRepository)
		sums := new(MockGrantSummer)
		svc := NewGrantService(grantRepo, sums)

		grantRepo.On("Get", ctx, int64(1)).Return(&model.Grant{
			ID:     1,
			Amount: decimal.RequireFromString("10000"),
		}, nil)
		sums.On("SumByGrant", ctx, int64(1)).Return(
			decimal.RequireFromString("4200"),
			decimal.RequireFromString("150"),
			nil,
		)
		grantRepo.On("UpdateAggregates", ctx, int64(1),
			decimal.RequireFromString("4200"),
			decimal.RequireFromString("150"),
			decimal.RequireFromString("5950"),
		).Return(nil)

		err := svc.Recalculate(ctx, 1)
		require.NoError(t, err)
		grantRepo.AssertExpectations(t)
		sums.AssertExpectations(t)
	})

	t.Run("zero transactions restore the full award", func(t *testing.T) {
		grantRepo := new(MockGrantRepository)
		sums := new(MockGrantSummer)
		svc := NewGrantService(grantRepo, sums)

		grantRepo.On("Get", ctx, int64(2)).Return(&model.Grant{
			ID:     2,
			Amount: decimal.RequireFromString("500"),
		}, nil)
		sums.On("SumByGrant", ctx, int64(2)).Return(decimal.Zero, decimal.Zero, nil)
		grantRepo.On("UpdateAggregates", ctx, int64(2),
			decimal.Zero, decimal.Zero, decimal.RequireFromString("500"),
		).Return(nil)

		err := svc.Recalculate(ctx, 2)
		require.NoError(t, err)
	})

	t.Run("missing grant maps to service error", func(t *testing.T) {
		grantRepo := new(MockGrantRepository)
		sums := new(MockGrantSummer)
		svc := NewGrantService(grantRepo, sums)

		grantRepo.On("Get", ctx, int64(3)).Return(nil, repository.ErrGrantNotFound)

		err := svc.Recalculate(ctx, 3)
		assert.ErrorIs(t, err, ErrGrantNotFound)
		sums.AssertNotCalled(t, "SumByGrant")
	})
}
