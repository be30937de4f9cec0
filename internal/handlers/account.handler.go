package handlers

import (
	"context"
	"time"

	"github.com/fasthttp/router"
	"github.com/fundbooks/ledger-gateway/internal/model"
	xhttp "github.com/fundbooks/ledger-gateway/pkg/http"
	"github.com/shopspring/decimal"
)

type BankAccountService interface {
	Create(ctx context.Context, p model.BankAccountCreateRequest) (*model.BankAccount, error)
	Get(ctx context.Context, organizationID, id int64) (*model.BankAccount, error)
	List(ctx context.Context, organizationID int64) ([]*model.BankAccount, error)
	SetAnchor(ctx context.Context, organizationID, id int64, balance decimal.Decimal, date *time.Time) (*model.BankAccount, error)
	Delete(ctx context.Context, organizationID, id int64) error
}

type BankAccountHandler struct {
	svc BankAccountService
}

func RegisterBankAccountRoutes(e *router.Group, h *BankAccountHandler) {
	e.POST("/accounts", h.CreateAccount)
	e.GET("/accounts", h.ListAccounts)
	e.GET("/accounts/{id}", h.GetAccount)
	e.PUT("/accounts/{id}/anchor", h.SetAccountAnchor)
	e.DELETE("/accounts/{id}", h.DeleteAccount)
}

func NewBankAccountHandler(svc BankAccountService) *BankAccountHandler {
	return &BankAccountHandler{
		svc: svc,
	}
}

type createAccountRequest struct {
	OrganizationID     int64   `json:"organization_id"`
	Name               string  `json:"name"`
	InitialBalance     string  `json:"initial_balance"`
	InitialBalanceDate *string `json:"initial_balance_date"`
}

type setAnchorRequest struct {
	Balance string  `json:"balance"`
	Date    *string `json:"date"`
}

func (h *BankAccountHandler) CreateAccount(ctx *xhttp.RequestCtx) {
	var req createAccountRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	balance := decimal.Zero
	if req.InitialBalance != "" {
		var err error
		balance, err = decimal.NewFromString(req.InitialBalance)
		if err != nil {
			writeError(ctx, 400, "invalid initial_balance: "+req.InitialBalance)
			return
		}
	}

	p := model.BankAccountCreateRequest{
		OrganizationID: req.OrganizationID,
		Name:           req.Name,
		InitialBalance: balance,
	}
	if req.InitialBalanceDate != nil {
		t, err := parseTime(*req.InitialBalanceDate)
		if err != nil {
			writeError(ctx, 400, "invalid initial_balance_date: "+*req.InitialBalanceDate)
			return
		}
		p.InitialBalanceDate = &t
	}

	account, err := h.svc.Create(ctx, p)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 201, account)
}

func (h *BankAccountHandler) GetAccount(ctx *xhttp.RequestCtx) {
	orgID, id, err := scopedID(ctx)
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}

	account, err := h.svc.Get(ctx, orgID, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, account)
}

func (h *BankAccountHandler) ListAccounts(ctx *xhttp.RequestCtx) {
	orgID, err := queryInt64(ctx, "organization_id")
	if err != nil {
		writeError(ctx, 400, "organization_id is required")
		return
	}

	accounts, err := h.svc.List(ctx, orgID)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, map[string]interface{}{"items": accounts})
}

func (h *BankAccountHandler) SetAccountAnchor(ctx *xhttp.RequestCtx) {
	orgID, id, err := scopedID(ctx)
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}

	var req setAnchorRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	balance, err := decimal.NewFromString(req.Balance)
	if err != nil {
		writeError(ctx, 400, "invalid balance: "+req.Balance)
		return
	}

	var date *time.Time
	if req.Date != nil {
		t, err := parseTime(*req.Date)
		if err != nil {
			writeError(ctx, 400, "invalid date: "+*req.Date)
			return
		}
		date = &t
	}

	account, err := h.svc.SetAnchor(ctx, orgID, id, balance, date)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, account)
}

func (h *BankAccountHandler) DeleteAccount(ctx *xhttp.RequestCtx) {
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
