package fixtures

import (
	"time"

	"github.com/fundbooks/ledger-gateway/internal/model"
	"github.com/shopspring/decimal"
)

var (
	TestGrantRestricted = model.Grant{
		ID:               1,
		OrganizationID:   1,
		Name:             "Community Health Grant",
		Amount:           decimal.RequireFromString("10000"),
		FundType:         model.FundTypeRestricted,
		RemainingBalance: decimal.RequireFromString("10000"),
	}

	TestGrantUnrestricted = model.Grant{
		ID:               2,
		OrganizationID:   1,
		Name:             "General Operating Fund",
		Amount:           decimal.RequireFromString("25000"),
		FundType:         model.FundTypeUnrestricted,
		RemainingBalance: decimal.RequireFromString("25000"),
	}

	TestGrantNearlySpent = model.Grant{
		ID:               3,
		OrganizationID:   1,
		Name:             "Youth Program Grant",
		Amount:           decimal.RequireFromString("5000"),
		FundType:         model.FundTypeRestricted,
		TotalSpent:       decimal.RequireFromString("4990"),
		RemainingBalance: decimal.RequireFromString("10"),
	}
)

func NewTestTransaction(organizationID int64, date time.Time, amount, txnType string) *model.Transaction {
	return &model.Transaction{
		OrganizationID:       organizationID,
		Date:                 date,
		Amount:               decimal.RequireFromString(amount),
		Type:                 model.TransactionType(txnType),
		Source:               model.SourceManual,
		ReconciliationStatus: model.StatusUnreconciled,
	}
}

func NewTransactionCreateRequest(organizationID int64, date time.Time, amount, txnType string) model.TransactionCreateRequest {
	return model.TransactionCreateRequest{
		OrganizationID: organizationID,
		Date:           date,
		Amount:         decimal.RequireFromString(amount),
		Type:           model.TransactionType(txnType),
		Source:         model.SourceManual,
	}
}

func NewGrantCreateRequest(organizationID int64, name, amount string) model.GrantCreateRequest {
	return model.GrantCreateRequest{
		OrganizationID: organizationID,
		Name:           name,
		Amount:         decimal.RequireFromString(amount),
		FundType:       model.FundTypeRestricted,
	}
}

func NewAccountCreateRequest(organizationID int64, name, initialBalance string, anchorDate *time.Time) model.BankAccountCreateRequest {
	return model.BankAccountCreateRequest{
		OrganizationID:     organizationID,
		Name:               name,
		InitialBalance:     decimal.RequireFromString(initialBalance),
		InitialBalanceDate: anchorDate,
	}
}

func NewSplitRequest(parentID int64, amounts ...string) model.SplitRequest {
	items := make([]model.SplitItem, 0, len(amounts))
	for _, amount := range amounts {
		items = append(items, model.SplitItem{
			Amount: decimal.RequireFromString(amount),
		})
	}
	return model.SplitRequest{
		ParentID: parentID,
		Items:    items,
	}
}

var (
	ValidAmounts = []string{
		"0",
		"0.01",
		"100",
		"1234.56",
		"99999.99",
	}

	InvalidAmounts = []string{
		"",
		"abc",
		"12,50",
		"$100",
	}
)

func TransactionFilterByAccount(organizationID, accountID int64) model.TransactionFilter {
	return model.TransactionFilter{
		OrganizationID: organizationID,
		BankAccountID:  &accountID,
		Limit:          50,
		Offset:         0,
		Desc:           false,
	}
}

func TransactionFilterByGrant(organizationID, grantID int64) model.TransactionFilter {
	return model.TransactionFilter{
		OrganizationID: organizationID,
		GrantID:        &grantID,
		Limit:          50,
		Offset:         0,
		Desc:           false,
	}
}

func TransactionFilterWithPagination(organizationID int64, limit, offset int) model.TransactionFilter {
	return model.TransactionFilter{
		OrganizationID: organizationID,
		Limit:          limit,
		Offset:         offset,
		Desc:           false,
	}
}

func TransactionFilterByTimeRange(organizationID int64, from, to time.Time) model.TransactionFilter {
	return model.TransactionFilter{
		OrganizationID: organizationID,
		From:           &from,
		To:             &to,
		Limit:          50,
		Offset:         0,
		Desc:           false,
	}
}
