package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/fasthttp/router"
	"github.com/fundbooks/ledger-gateway/internal/ledger"
	"github.com/fundbooks/ledger-gateway/internal/model"
	"github.com/fundbooks/ledger-gateway/internal/repository"
	"github.com/fundbooks/ledger-gateway/internal/services"
	xhttp "github.com/fundbooks/ledger-gateway/pkg/http"
	"github.com/shopspring/decimal"
)

type TransactionService interface {
	Create(ctx context.Context, p model.TransactionCreateRequest) (*model.Transaction, error)
	Get(ctx context.Context, organizationID, id int64) (*model.Transaction, error)
	Update(ctx context.Context, organizationID, id int64, req model.TransactionUpdateRequest) (*model.Transaction, error)
	Delete(ctx context.Context, organizationID, id int64) error
	BulkDelete(ctx context.Context, organizationID int64, ids []int64) (int64, error)
	List(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, int64, error)
	ListWithBalances(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, int64, map[int64]decimal.Decimal, error)
	Split(ctx context.Context, organizationID int64, req model.SplitRequest) ([]*model.Transaction, error)
	Unsplit(ctx context.Context, organizationID, parentID int64) (*model.Transaction, error)
}

type TransactionHandler struct {
	svc      TransactionService
	importer *services.ImportService
}

func RegisterTransactionRoutes(e *router.Group, h *TransactionHandler) {
	e.POST("/transactions", h.CreateTransaction)
	e.GET("/transactions", h.ListTransactions)
	e.GET("/transactions/balances", h.ListTransactionsWithBalances)
	e.GET("/transactions/{id}", h.GetTransaction)
	e.PUT("/transactions/{id}", h.UpdateTransaction)
	e.DELETE("/transactions/{id}", h.DeleteTransaction)
	e.POST("/transactions/bulk-delete", h.BulkDeleteTransactions)
	e.POST("/transactions/{id}/split", h.SplitTransaction)
	e.POST("/transactions/{id}/unsplit", h.UnsplitTransaction)
	e.POST("/transactions/import", h.ImportTransactions)
}

func NewTransactionHandler(svc TransactionService, importer *services.ImportService) *TransactionHandler {
	return &TransactionHandler{
		svc:      svc,
		importer: importer,
	}
}

type createTransactionRequest struct {
	OrganizationID     int64   `json:"organization_id"`
	Date               string  `json:"date"`
	Description        string  `json:"description"`
	Amount             string  `json:"amount"`
	Type               string  `json:"type"`
	CategoryID         *int64  `json:"category_id"`
	VendorID           *int64  `json:"vendor_id"`
	ClientID           *int64  `json:"client_id"`
	DonorID            *int64  `json:"donor_id"`
	GrantID            *int64  `json:"grant_id"`
	FundID             *int64  `json:"fund_id"`
	ProgramID          *int64  `json:"program_id"`
	FunctionalCategory *string `json:"functional_category"`
	BankAccountID      *int64  `json:"bank_account_id"`
	Source             string  `json:"source"`
}

type updateTransactionRequest struct {
	Date               *string `json:"date"`
	Description        *string `json:"description"`
	Amount             *string `json:"amount"`
	Type               *string `json:"type"`
	CategoryID         *int64  `json:"category_id"`
	GrantID            *int64  `json:"grant_id"`
	FundID             *int64  `json:"fund_id"`
	ProgramID          *int64  `json:"program_id"`
	FunctionalCategory *string `json:"functional_category"`
	ClearGrant         bool    `json:"clear_grant"`
}

type splitTransactionRequest struct {
	Items []splitItemRequest `json:"items"`
}

type splitItemRequest struct {
	Amount             string  `json:"amount"`
	Description        string  `json:"description"`
	CategoryID         *int64  `json:"category_id"`
	GrantID            *int64  `json:"grant_id"`
	FundID             *int64  `json:"fund_id"`
	ProgramID          *int64  `json:"program_id"`
	FunctionalCategory *string `json:"functional_category"`
}

type bulkDeleteRequest struct {
	OrganizationID int64   `json:"organization_id"`
	IDs            []int64 `json:"ids"`
}

type listTransactionsResponse struct {
	Items []*model.Transaction `json:"items"`
	Total int64                `json:"total"`
}

type balanceListItem struct {
	*model.Transaction
	RunningBalance *decimal.Decimal `json:"running_balance,omitempty"`
}

type listWithBalancesResponse struct {
	Items []balanceListItem `json:"items"`
	Total int64             `json:"total"`
	// Relative is true when no statement anchor applied, so balances are
	// deltas from zero rather than absolute account balances.
	Relative bool `json:"relative"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *TransactionHandler) CreateTransaction(ctx *xhttp.RequestCtx) {
	var req createTransactionRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	p, err := toCreateRequest(req)
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}

	txn, err := h.svc.Create(ctx, p)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 201, txn)
}

func (h *TransactionHandler) GetTransaction(ctx *xhttp.RequestCtx) {
	orgID, id, err := scopedID(ctx)
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}

	txn, err := h.svc.Get(ctx, orgID, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, txn)
}

func (h *TransactionHandler) UpdateTransaction(ctx *xhttp.RequestCtx) {
	orgID, id, err := scopedID(ctx)
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}

	var req updateTransactionRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	update, err := toUpdateRequest(req)
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}

	txn, err := h.svc.Update(ctx, orgID, id, update)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, txn)
}

func (h *TransactionHandler) DeleteTransaction(ctx *xhttp.RequestCtx) {
	orgID, id, err := scopedID(ctx)
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}

	if err := h.svc.Delete(ctx, orgID, id); err != nil {
		writeServiceError(ctx, err)
		return
	}
	ctx.Response.SetStatusCode(204)
}

func (h *TransactionHandler) BulkDeleteTransactions(ctx *xhttp.RequestCtx) {
	var req bulkDeleteRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	if req.OrganizationID == 0 {
		writeError(ctx, 400, "organization_id is required")
		return
	}

	removed, err := h.svc.BulkDelete(ctx, req.OrganizationID, req.IDs)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, map[string]int64{"removed": removed})
}

func (h *TransactionHandler) ListTransactions(ctx *xhttp.RequestCtx) {
	f, err := parseTransactionFilter(ctx)
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}

	items, total, err := h.svc.List(ctx, f)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, listTransactionsResponse{Items: items, Total: total})
}

func (h *TransactionHandler) ListTransactionsWithBalances(ctx *xhttp.RequestCtx) {
	f, err := parseTransactionFilter(ctx)
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}

	items, total, balances, err := h.svc.ListWithBalances(ctx, f)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}

	out := make([]balanceListItem, len(items))
	for i, txn := range items {
		item := balanceListItem{Transaction: txn}
		if b, ok := balances[txn.ID]; ok {
			item.RunningBalance = &b
		}
		out[i] = item
	}
	writeJSON(ctx, 200, listWithBalancesResponse{
		Items:    out,
		Total:    total,
		Relative: f.BankAccountID == nil,
	})
}

func (h *TransactionHandler) SplitTransaction(ctx *xhttp.RequestCtx) {
	orgID, id, err := scopedID(ctx)
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}

	var req splitTransactionRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	items := make([]model.SplitItem, 0, len(req.Items))
	for _, item := range req.Items {
		amount, err := decimal.NewFromString(item.Amount)
		if err != nil {
			writeError(ctx, 400, "invalid item amount: "+item.Amount)
			return
		}
		items = append(items, model.SplitItem{
			Amount:             amount,
			Description:        item.Description,
			CategoryID:         item.CategoryID,
			GrantID:            item.GrantID,
			FundID:             item.FundID,
			ProgramID:          item.ProgramID,
			FunctionalCategory: toFunctionalCategory(item.FunctionalCategory),
		})
	}

	children, err := h.svc.Split(ctx, orgID, model.SplitRequest{ParentID: id, Items: items})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 201, map[string]interface{}{"children": children})
}

func (h *TransactionHandler) UnsplitTransaction(ctx *xhttp.RequestCtx) {
	orgID, id, err := scopedID(ctx)
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}

	txn, err := h.svc.Unsplit(ctx, orgID, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, txn)
}

func (h *TransactionHandler) ImportTransactions(ctx *xhttp.RequestCtx) {
	orgID, err := queryInt64(ctx, "organization_id")
	if err != nil {
		writeError(ctx, 400, "organization_id is required")
		return
	}

	var accountID *int64
	if v := query(ctx, "bank_account_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(ctx, 400, "invalid bank_account_id")
			return
		}
		accountID = &id
	}

	result, err := h.importer.ImportCSV(ctx, orgID, accountID, bytes.NewReader(ctx.PostBody()))
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}
	writeJSON(ctx, 200, result)
}

/* -------------------------------- Helpers ------------------------------------ */

func toCreateRequest(req createTransactionRequest) (model.TransactionCreateRequest, error) {
	date, err := parseTime(req.Date)
	if err != nil {
		return model.TransactionCreateRequest{}, errors.New("invalid date: " + req.Date)
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return model.TransactionCreateRequest{}, errors.New("invalid amount: " + req.Amount)
	}

	return model.TransactionCreateRequest{
		OrganizationID:     req.OrganizationID,
		Date:               date,
		Description:        req.Description,
		Amount:             amount,
		Type:               model.TransactionType(req.Type),
		CategoryID:         req.CategoryID,
		VendorID:           req.VendorID,
		ClientID:           req.ClientID,
		DonorID:            req.DonorID,
		GrantID:            req.GrantID,
		FundID:             req.FundID,
		ProgramID:          req.ProgramID,
		FunctionalCategory: toFunctionalCategory(req.FunctionalCategory),
		BankAccountID:      req.BankAccountID,
		Source:             model.TransactionSource(req.Source),
	}, nil
}

func toUpdateRequest(req updateTransactionRequest) (model.TransactionUpdateRequest, error) {
	out := model.TransactionUpdateRequest{
		Description:        req.Description,
		CategoryID:         req.CategoryID,
		GrantID:            req.GrantID,
		FundID:             req.FundID,
		ProgramID:          req.ProgramID,
		FunctionalCategory: toFunctionalCategory(req.FunctionalCategory),
		ClearGrant:         req.ClearGrant,
	}
	if req.Date != nil {
		date, err := parseTime(*req.Date)
		if err != nil {
			return out, errors.New("invalid date: " + *req.Date)
		}
		out.Date = &date
	}
	if req.Amount != nil {
		amount, err := decimal.NewFromString(*req.Amount)
		if err != nil {
			return out, errors.New("invalid amount: " + *req.Amount)
		}
		out.Amount = &amount
	}
	if req.Type != nil {
		t := model.TransactionType(*req.Type)
		out.Type = &t
	}
	return out, nil
}

func toFunctionalCategory(s *string) *model.FunctionalCategory {
	if s == nil || *s == "" {
		return nil
	}
	f := model.FunctionalCategory(*s)
	return &f
}

func parseTransactionFilter(ctx *xhttp.RequestCtx) (model.TransactionFilter, error) {
	var f model.TransactionFilter

	orgID, err := queryInt64(ctx, "organization_id")
	if err != nil {
		return f, errors.New("organization_id is required")
	}
	f.OrganizationID = orgID

	if v := query(ctx, "bank_account_id"); v != "" {
		if id, e := strconv.ParseInt(v, 10, 64); e == nil {
			f.BankAccountID = &id
		}
	}
	if v := query(ctx, "grant_id"); v != "" {
		if id, e := strconv.ParseInt(v, 10, 64); e == nil {
			f.GrantID = &id
		}
	}
	if v := query(ctx, "category_id"); v != "" {
		if id, e := strconv.ParseInt(v, 10, 64); e == nil {
			f.CategoryID = &id
		}
	}
	if v := query(ctx, "type"); v != "" {
		t := model.TransactionType(v)
		f.Type = &t
	}
	if v := query(ctx, "source"); v != "" {
		s := model.TransactionSource(v)
		f.Source = &s
	}
	if v := query(ctx, "reconciliation_status"); v != "" {
		s := model.ReconciliationStatus(v)
		f.ReconciliationStatus = &s
	}
	if v := query(ctx, "search"); v != "" {
		f.Search = &v
	}
	if v := query(ctx, "from"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.From = &t
		}
	}
	if v := query(ctx, "to"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.To = &t
		}
	}
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Limit = n
		}
	}
	if v := query(ctx, "offset"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Offset = n
		}
	}
	if strings.EqualFold(query(ctx, "order"), "desc") {
		f.Desc = true
	}
	return f, nil
}

// scopedID pulls the path id plus the organization scope every route requires.
func scopedID(ctx *xhttp.RequestCtx) (orgID, id int64, err error) {
	orgID, err = queryInt64(ctx, "organization_id")
	if err != nil {
		return 0, 0, errors.New("organization_id is required")
	}
	idStr, _ := ctx.UserValue("id").(string)
	id, err = strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return 0, 0, errors.New("invalid transaction id")
	}
	return orgID, id, nil
}

func writeServiceError(ctx *xhttp.RequestCtx, err error) {
	var exceeded *ledger.GrantBalanceExceededError
	switch {
	case errors.As(err, &exceeded):
		writeJSON(ctx, 422, map[string]interface{}{
			"error":      "grant balance exceeded",
			"grant_name": exceeded.GrantName,
			"remaining":  exceeded.Remaining,
			"requested":  exceeded.Requested,
		})
	case errors.Is(err, services.ErrNotFound),
		errors.Is(err, services.ErrGrantNotFound),
		errors.Is(err, services.ErrAccountNotFound):
		writeError(ctx, 404, err.Error())
	case errors.Is(err, ledger.ErrNotSplit),
		errors.Is(err, ledger.ErrAlreadySplit),
		errors.Is(err, ledger.ErrSplitChild),
		errors.Is(err, ledger.ErrSplitSumMismatch),
		errors.Is(err, repository.ErrSplitChildDelete),
		errors.Is(err, services.ErrSplitParentEdit),
		errors.Is(err, services.ErrSplitChildEdit),
		errors.Is(err, services.ErrSplitParentGrant):
		writeError(ctx, 409, err.Error())
	default:
		writeError(ctx, 400, err.Error())
	}
}

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	body := ctx.PostBody()
	return json.Unmarshal(body, dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, _ := json.Marshal(v)
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}

func queryInt64(ctx *xhttp.RequestCtx, name string) (int64, error) {
	return strconv.ParseInt(query(ctx, name), 10, 64)
}

func parseTime(s string) (time.Time, error) {
	// Accept RFC3339 or YYYY-MM-DD
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
