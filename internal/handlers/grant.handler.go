package handlers

import (
	"context"
	"strconv"

	"github.com/fasthttp/router"
	"github.com/fundbooks/ledger-gateway/internal/model"
	"github.com/fundbooks/ledger-gateway/internal/services"
	xhttp "github.com/fundbooks/ledger-gateway/pkg/http"
	"github.com/shopspring/decimal"
)

type GrantService interface {
	Create(ctx context.Context, p model.GrantCreateRequest) (*model.Grant, error)
	Get(ctx context.Context, id int64) (*model.Grant, error)
	List(ctx context.Context, f model.GrantFilter) ([]*model.Grant, int64, error)
	Recalculate(ctx context.Context, grantID int64) error
}

type GrantHandler struct {
	svc GrantService
}

func RegisterGrantRoutes(e *router.Group, h *GrantHandler) {
	e.POST("/grants", h.CreateGrant)
	e.GET("/grants", h.ListGrants)
	e.GET("/grants/{id}", h.GetGrant)
	e.POST("/grants/{id}/recalculate", h.RecalculateGrant)
}

func NewGrantHandler(svc GrantService) *GrantHandler {
	return &GrantHandler{
		svc: svc,
	}
}

type createGrantRequest struct {
	OrganizationID int64  `json:"organization_id"`
	Name           string `json:"name"`
	Amount         string `json:"amount"`
	FundType       string `json:"fund_type"`
}

type listGrantsResponse struct {
	Items []*model.Grant `json:"items"`
	Total int64          `json:"total"`
}

func (h *GrantHandler) CreateGrant(ctx *xhttp.RequestCtx) {
	var req createGrantRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(ctx, 400, "invalid amount: "+req.Amount)
		return
	}

	grant, err := h.svc.Create(ctx, model.GrantCreateRequest{
		OrganizationID: req.OrganizationID,
		Name:           req.Name,
		Amount:         amount,
		FundType:       model.FundType(req.FundType),
	})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 201, grant)
}

func (h *GrantHandler) GetGrant(ctx *xhttp.RequestCtx) {
	orgID, id, err := scopedID(ctx)
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}

	grant, err := h.svc.Get(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	if grant.OrganizationID != orgID {
		writeError(ctx, 404, services.ErrGrantNotFound.Error())
		return
	}
	writeJSON(ctx, 200, grant)
}

func (h *GrantHandler) ListGrants(ctx *xhttp.RequestCtx) {
	orgID, err := queryInt64(ctx, "organization_id")
	if err != nil {
		writeError(ctx, 400, "organization_id is required")
		return
	}

	f := model.GrantFilter{OrganizationID: orgID}
	if v := query(ctx, "fund_type"); v != "" {
		ft := model.FundType(v)
		f.FundType = &ft
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

	items, total, err := h.svc.List(ctx, f)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, listGrantsResponse{Items: items, Total: total})
}

// RecalculateGrant rebuilds the grant's spent/income/remaining aggregates
// from its transactions. Aggregates track writes automatically; this exists
// for backfills and drift repair.
func (h *GrantHandler) RecalculateGrant(ctx *xhttp.RequestCtx) {
	orgID, id, err := scopedID(ctx)
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}

	grant, err := h.svc.Get(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	if grant.OrganizationID != orgID {
		writeError(ctx, 404, services.ErrGrantNotFound.Error())
		return
	}

	if err := h.svc.Recalculate(ctx, id); err != nil {
		writeServiceError(ctx, err)
		return
	}

	grant, err = h.svc.Get(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, grant)
}
