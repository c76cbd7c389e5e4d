package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/myseetara-source/erp-seetara-sub004/internal/domain"
	"github.com/myseetara-source/erp-seetara-sub004/internal/service"
	"github.com/myseetara-source/erp-seetara-sub004/pkg/httputil"
	"github.com/myseetara-source/erp-seetara-sub004/pkg/pagination"
)

// UnitHandler handles HTTP requests for stock units and direct stock mutations.
type UnitHandler struct {
	service *service.StockService
	logger  *slog.Logger
}

// NewUnitHandler creates a new unit HTTP handler.
func NewUnitHandler(svc *service.StockService, logger *slog.Logger) *UnitHandler {
	return &UnitHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// CreateUnitRequest is the JSON request body for registering a stock unit.
type CreateUnitRequest struct {
	SKU               string          `json:"sku" validate:"required,max=64"`
	Name              string          `json:"name" validate:"required,max=255"`
	CostPrice         decimal.Decimal `json:"cost_price" validate:"gte=0"`
	InitialFresh      int             `json:"initial_fresh" validate:"gte=0"`
	LowStockThreshold int             `json:"low_stock_threshold" validate:"gte=0"`
}

// OrderMutationRequest is the body of reserve and confirm calls.
type OrderMutationRequest struct {
	Quantity int    `json:"quantity"`
	OrderRef string `json:"order_ref" validate:"required,max=128"`
}

// RestoreRequest is the body of a restore call.
type RestoreRequest struct {
	Quantity int    `json:"quantity"`
	OrderRef string `json:"order_ref" validate:"required,max=128"`
	Reason   string `json:"reason" validate:"max=500"`
}

// AdjustRequest is the body of a direct adjustment. Quantity is signed.
type AdjustRequest struct {
	Quantity int    `json:"quantity"`
	Reason   string `json:"reason" validate:"required,max=500"`
}

// --- Handlers ---

// CreateUnit handles POST /api/v1/units
func (h *UnitHandler) CreateUnit(w http.ResponseWriter, r *http.Request) {
	var req CreateUnitRequest
	if !decodeBody(w, r, &req) {
		return
	}

	unit, err := h.service.CreateUnit(r.Context(), service.CreateUnitInput{
		SKU:               req.SKU,
		Name:              req.Name,
		CostPrice:         req.CostPrice,
		InitialFresh:      req.InitialFresh,
		LowStockThreshold: req.LowStockThreshold,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: unit})
}

// GetUnit handles GET /api/v1/units/{id}
func (h *UnitHandler) GetUnit(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	unit, err := h.service.GetUnit(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: unit})
}

// GetStockLevel handles GET /api/v1/units/{id}/level
func (h *UnitHandler) GetStockLevel(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	level, err := h.service.GetStockLevel(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: level})
}

// ListMovements handles GET /api/v1/units/{id}/movements
func (h *UnitHandler) ListMovements(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	page := pagination.FromRequest(r)
	movements, total, err := h.service.ListMovements(r.Context(), id, page)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, pagination.NewResult[domain.StockMovement](movements, total, page))
}

// ListLowStock handles GET /api/v1/units/low-stock
func (h *UnitHandler) ListLowStock(w http.ResponseWriter, r *http.Request) {
	page := pagination.FromRequest(r)
	units, total, err := h.service.ListLowStock(r.Context(), page)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, pagination.NewResult[domain.StockUnit](units, total, page))
}

// Reserve handles POST /api/v1/units/{id}/reserve
func (h *UnitHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	var req OrderMutationRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.service.Reserve(r.Context(), id, req.Quantity, req.OrderRef)
	h.writeMutation(w, r, res, err)
}

// Confirm handles POST /api/v1/units/{id}/confirm
func (h *UnitHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	var req OrderMutationRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.service.Confirm(r.Context(), id, req.Quantity, req.OrderRef)
	h.writeMutation(w, r, res, err)
}

// Restore handles POST /api/v1/units/{id}/restore
func (h *UnitHandler) Restore(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	var req RestoreRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.service.Restore(r.Context(), id, req.Quantity, req.OrderRef, req.Reason)
	h.writeMutation(w, r, res, err)
}

// Adjust handles POST /api/v1/units/{id}/adjust
func (h *UnitHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	var req AdjustRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.service.AdjustDirect(r.Context(), id, req.Quantity, req.Reason)
	h.writeMutation(w, r, res, err)
}

func (h *UnitHandler) writeMutation(w http.ResponseWriter, r *http.Request, res *domain.MutationResult, err error) {
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: res})
}
