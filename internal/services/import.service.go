package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fundbooks/ledger-gateway/internal/model"
	"github.com/shopspring/decimal"
)

// ImportResult summarizes a CSV import. Row-level failures are collected,
// not fatal: valid rows still land, and the caller gets one error line per
// rejected row.
type ImportResult struct {
	Records int      `json:"records"`
	Errors  []string `json:"errors,omitempty"`
}

type ImportService struct {
	txnRepo TransactionRepository
}

func NewImportService(txnRepo TransactionRepository) *ImportService {
	return &ImportService{
		txnRepo: txnRepo,
	}
}

// ImportCSV ingests rows of the form
//
//	date,description,amount,type
//
// with an optional header row. Dates accept YYYY-MM-DD or RFC3339, amounts
// are non-negative magnitudes, type is income or expense. Imported rows are
// tagged Source=csv_import and, when accountID is set, linked to that
// account. Imports carry no grant link, so the grant budget guard does not
// apply.
func (s *ImportService) ImportCSV(ctx context.Context, organizationID int64, accountID *int64, r io.Reader) (*ImportResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	result := &ImportResult{}
	line := 0

	err := s.txnRepo.WithinTransaction(ctx, func(ctx context.Context) error {
		for {
			record, err := reader.Read()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return fmt.Errorf("read csv: %w", err)
			}
			line++

			if line == 1 && isHeaderRow(record) {
				continue
			}

			txn, err := parseImportRow(record)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", line, err))
				continue
			}
			txn.OrganizationID = organizationID
			txn.BankAccountID = accountID

			if _, err := s.txnRepo.Create(ctx, txn); err != nil {
				return fmt.Errorf("row %d: persist: %w", line, err)
			}
			result.Records++
		}
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func parseImportRow(record []string) (*model.Transaction, error) {
	if len(record) < 4 {
		return nil, fmt.Errorf("expected 4 columns, got %d", len(record))
	}

	date, err := parseImportDate(strings.TrimSpace(record[0]))
	if err != nil {
		return nil, fmt.Errorf("invalid date %q", record[0])
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(record[2]))
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q", record[2])
	}
	if amount.IsNegative() {
		return nil, fmt.Errorf("amount %q must not be negative", record[2])
	}

	txType := model.TransactionType(strings.ToLower(strings.TrimSpace(record[3])))
	if txType != model.TransactionTypeIncome && txType != model.TransactionTypeExpense {
		return nil, fmt.Errorf("invalid type %q", record[3])
	}

	return &model.Transaction{
		Date:                 date,
		Description:          strings.TrimSpace(record[1]),
		Amount:               amount,
		Type:                 txType,
		Source:               model.SourceCSVImport,
		ReconciliationStatus: model.StatusUnreconciled,
	}, nil
}

func parseImportDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func isHeaderRow(record []string) bool {
	if len(record) == 0 {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(record[0]), "date")
}
