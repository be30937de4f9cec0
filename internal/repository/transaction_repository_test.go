package repository

import (
	"context"
	"testing"
	"time"

	"github.com/fundbooks/ledger-gateway/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOrgID = int64(1)

func newTestTransaction(day string, typ model.TransactionType, amount string) *model.Transaction {
	date, _ := time.Parse("2006-01-02", day)
	return &model.Transaction{
		OrganizationID:       testOrgID,
		Date:                 date,
		Description:          "Test entry",
		Amount:               decimal.RequireFromString(amount),
		Type:                 typ,
		Source:               model.SourceManual,
		ReconciliationStatus: model.StatusUnreconciled,
	}
}

func TestTransactionRepository_CreateAndGet(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewTransactionRepository(db)
	ctx := context.Background()

	t.Run("create transaction successfully", func(t *testing.T) {
		txn := newTestTransaction("2026-01-15", model.TransactionTypeExpense, "120.50")

		created, err := repo.Create(ctx, txn)
		require.NoError(t, err)
		assert.NotZero(t, created.ID)
		assert.True(t, created.Amount.Equal(decimal.RequireFromString("120.50")))
		assert.Equal(t, model.TransactionTypeExpense, created.Type)

		got, err := repo.Get(ctx, testOrgID, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
		assert.True(t, got.Amount.Equal(created.Amount))
	})

	t.Run("get missing transaction", func(t *testing.T) {
		_, err := repo.Get(ctx, testOrgID, 9999)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("get is scoped to the organization", func(t *testing.T) {
		created, err := repo.Create(ctx, newTestTransaction("2026-01-16", model.TransactionTypeIncome, "10"))
		require.NoError(t, err)

		_, err = repo.Get(ctx, testOrgID+1, created.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestTransactionRepository_Update(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewTransactionRepository(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, newTestTransaction("2026-02-01", model.TransactionTypeExpense, "40"))
	require.NoError(t, err)

	t.Run("update amount and grant link", func(t *testing.T) {
		grantID := int64(3)
		created.Amount = decimal.RequireFromString("55")
		created.GrantID = &grantID

		updated, err := repo.Update(ctx, created)
		require.NoError(t, err)
		assert.True(t, updated.Amount.Equal(decimal.RequireFromString("55")))
		require.NotNil(t, updated.GrantID)
		assert.Equal(t, grantID, *updated.GrantID)
	})

	t.Run("clearing the grant link persists NULL", func(t *testing.T) {
		created.GrantID = nil
		updated, err := repo.Update(ctx, created)
		require.NoError(t, err)
		assert.Nil(t, updated.GrantID)
	})

	t.Run("update of a missing row", func(t *testing.T) {
		missing := newTestTransaction("2026-02-02", model.TransactionTypeExpense, "1")
		missing.ID = 9999
		_, err := repo.Update(ctx, missing)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestTransactionRepository_List(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewTransactionRepository(db)
	ctx := context.Background()

	accountID := int64(11)
	grantID := int64(5)
	for i, day := range []string{"2026-03-01", "2026-03-02", "2026-03-03", "2026-03-04", "2026-03-05"} {
		txn := newTestTransaction(day, model.TransactionTypeExpense, "10")
		txn.BankAccountID = &accountID
		if i%2 == 0 {
			txn.GrantID = &grantID
		}
		_, err := repo.Create(ctx, txn)
		require.NoError(t, err)
	}

	t.Run("list all for account", func(t *testing.T) {
		filter := model.TransactionFilter{
			OrganizationID: testOrgID,
			BankAccountID:  &accountID,
			Limit:          10,
		}

		txns, total, err := repo.List(ctx, filter)
		require.NoError(t, err)
		assert.Equal(t, int64(5), total)
		assert.Len(t, txns, 5)
	})

	t.Run("list with pagination", func(t *testing.T) {
		filter := model.TransactionFilter{
			OrganizationID: testOrgID,
			BankAccountID:  &accountID,
			Limit:          2,
			Offset:         3,
		}

		txns, total, err := repo.List(ctx, filter)
		require.NoError(t, err)
		assert.Equal(t, int64(5), total)
		assert.Len(t, txns, 2)
	})

	t.Run("list with grant filter", func(t *testing.T) {
		filter := model.TransactionFilter{
			OrganizationID: testOrgID,
			GrantID:        &grantID,
			Limit:          10,
		}

		txns, total, err := repo.List(ctx, filter)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Len(t, txns, 3)
	})

	t.Run("list with date range", func(t *testing.T) {
		from, _ := time.Parse("2006-01-02", "2026-03-02")
		to, _ := time.Parse("2006-01-02", "2026-03-04")
		filter := model.TransactionFilter{
			OrganizationID: testOrgID,
			From:           &from,
			To:             &to,
			Limit:          10,
		}

		_, total, err := repo.List(ctx, filter)
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
	})

	t.Run("list descending", func(t *testing.T) {
		filter := model.TransactionFilter{
			OrganizationID: testOrgID,
			BankAccountID:  &accountID,
			Limit:          10,
			Desc:           true,
		}

		txns, _, err := repo.List(ctx, filter)
		require.NoError(t, err)
		for i := 0; i < len(txns)-1; i++ {
			assert.False(t, txns[i].Date.Before(txns[i+1].Date))
		}
	})

	t.Run("search on description", func(t *testing.T) {
		txn := newTestTransaction("2026-03-06", model.TransactionTypeExpense, "75")
		txn.Description = "Office supplies from Acme"
		_, err := repo.Create(ctx, txn)
		require.NoError(t, err)

		search := "Acme"
		filter := model.TransactionFilter{
			OrganizationID: testOrgID,
			Search:         &search,
			Limit:          10,
		}

		txns, total, err := repo.List(ctx, filter)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, txns, 1)
		assert.Contains(t, txns[0].Description, "Acme")
	})
}

func TestTransactionRepository_Splits(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewTransactionRepository(db)
	ctx := context.Background()

	catA, catB := int64(1), int64(2)
	items := []model.SplitItem{
		{Amount: decimal.RequireFromString("40"), CategoryID: &catA},
		{Amount: decimal.RequireFromString("60"), CategoryID: &catB, Description: "Second line"},
	}

	parent, err := repo.Create(ctx, newTestTransaction("2026-04-01", model.TransactionTypeExpense, "100"))
	require.NoError(t, err)

	t.Run("create children marks the parent", func(t *testing.T) {
		children, err := repo.CreateChildren(ctx, parent, items)
		require.NoError(t, err)
		require.Len(t, children, 2)

		for _, child := range children {
			assert.True(t, child.IsSplitChild)
			require.NotNil(t, child.ParentTransactionID)
			assert.Equal(t, parent.ID, *child.ParentTransactionID)
			assert.Equal(t, parent.Date, child.Date)
			assert.Equal(t, parent.Type, child.Type)
		}
		// first item had no description of its own
		assert.Equal(t, parent.Description, children[0].Description)
		assert.Equal(t, "Second line", children[1].Description)

		reloaded, err := repo.Get(ctx, testOrgID, parent.ID)
		require.NoError(t, err)
		assert.True(t, reloaded.HasSplits)
	})

	t.Run("deleting a lone child is refused", func(t *testing.T) {
		children, err := repo.ListChildren(ctx, testOrgID, parent.ID)
		require.NoError(t, err)
		require.Len(t, children, 2)

		err = repo.Delete(ctx, testOrgID, children[0].ID)
		assert.ErrorIs(t, err, ErrSplitChildDelete)
	})

	t.Run("clear split restores the parent", func(t *testing.T) {
		removed, err := repo.ClearSplit(ctx, testOrgID, parent.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), removed)

		reloaded, err := repo.Get(ctx, testOrgID, parent.ID)
		require.NoError(t, err)
		assert.False(t, reloaded.HasSplits)
		assert.True(t, reloaded.Amount.Equal(parent.Amount))

		children, err := repo.ListChildren(ctx, testOrgID, parent.ID)
		require.NoError(t, err)
		assert.Empty(t, children)
	})

	t.Run("deleting a split parent cascades", func(t *testing.T) {
		parent2, err := repo.Create(ctx, newTestTransaction("2026-04-02", model.TransactionTypeExpense, "100"))
		require.NoError(t, err)
		_, err = repo.CreateChildren(ctx, parent2, items)
		require.NoError(t, err)

		err = repo.Delete(ctx, testOrgID, parent2.ID)
		require.NoError(t, err)

		children, err := repo.ListChildren(ctx, testOrgID, parent2.ID)
		require.NoError(t, err)
		assert.Empty(t, children)
		_, err = repo.Get(ctx, testOrgID, parent2.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestTransactionRepository_BulkDelete(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewTransactionRepository(db)
	ctx := context.Background()

	t.Run("bulk delete plain transactions", func(t *testing.T) {
		var ids []int64
		for _, day := range []string{"2026-05-01", "2026-05-02", "2026-05-03"} {
			txn, err := repo.Create(ctx, newTestTransaction(day, model.TransactionTypeExpense, "5"))
			require.NoError(t, err)
			ids = append(ids, txn.ID)
		}

		removed, err := repo.BulkDelete(ctx, testOrgID, ids)
		require.NoError(t, err)
		assert.Equal(t, int64(3), removed)
	})

	t.Run("bulk delete refuses an orphaning child delete", func(t *testing.T) {
		parent, err := repo.Create(ctx, newTestTransaction("2026-05-04", model.TransactionTypeExpense, "100"))
		require.NoError(t, err)
		children, err := repo.CreateChildren(ctx, parent, []model.SplitItem{
			{Amount: decimal.RequireFromString("30")},
			{Amount: decimal.RequireFromString("70")},
		})
		require.NoError(t, err)

		_, err = repo.BulkDelete(ctx, testOrgID, []int64{children[0].ID})
		assert.ErrorIs(t, err, ErrSplitChildDelete)

		// parent included: children ride along via the cascade
		removed, err := repo.BulkDelete(ctx, testOrgID, []int64{parent.ID, children[0].ID})
		require.NoError(t, err)
		assert.Equal(t, int64(3), removed)
	})

	t.Run("empty id set is a no-op", func(t *testing.T) {
		removed, err := repo.BulkDelete(ctx, testOrgID, nil)
		require.NoError(t, err)
		assert.Zero(t, removed)
	})
}

func TestTransactionRepository_SumByGrant(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewTransactionRepository(db)
	ctx := context.Background()

	grantID := int64(8)

	expense1 := newTestTransaction("2026-06-01", model.TransactionTypeExpense, "200")
	expense1.GrantID = &grantID
	expense2 := newTestTransaction("2026-06-02", model.TransactionTypeExpense, "50.25")
	expense2.GrantID = &grantID
	income := newTestTransaction("2026-06-03", model.TransactionTypeIncome, "30")
	income.GrantID = &grantID
	unrelated := newTestTransaction("2026-06-04", model.TransactionTypeExpense, "999")

	for _, txn := range []*model.Transaction{expense1, expense2, income, unrelated} {
		_, err := repo.Create(ctx, txn)
		require.NoError(t, err)
	}

	spent, got, err := repo.SumByGrant(ctx, grantID)
	require.NoError(t, err)
	assert.True(t, spent.Equal(decimal.RequireFromString("250.25")), "spent %s", spent)
	assert.True(t, got.Equal(decimal.RequireFromString("30")), "income %s", got)

	t.Run("split parents are excluded from the sums", func(t *testing.T) {
		parent := newTestTransaction("2026-06-05", model.TransactionTypeExpense, "100")
		parent.GrantID = &grantID
		created, err := repo.Create(ctx, parent)
		require.NoError(t, err)

		_, err = repo.CreateChildren(ctx, created, []model.SplitItem{
			{Amount: decimal.RequireFromString("60"), GrantID: &grantID},
			{Amount: decimal.RequireFromString("40")},
		})
		require.NoError(t, err)

		spent, _, err := repo.SumByGrant(ctx, grantID)
		require.NoError(t, err)
		// 250.25 from before plus the grant-tagged child, not the parent
		assert.True(t, spent.Equal(decimal.RequireFromString("310.25")), "spent %s", spent)
	})
}
