package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/myseetara-source/erp-seetara-sub004/internal/domain"
	"github.com/myseetara-source/erp-seetara-sub004/internal/repository"
	"github.com/myseetara-source/erp-seetara-sub004/internal/service"
	"github.com/myseetara-source/erp-seetara-sub004/pkg/httputil"
	"github.com/myseetara-source/erp-seetara-sub004/pkg/pagination"
)

// TransactionHandler handles HTTP requests for the maker-checker workflow.
type TransactionHandler struct {
	service *service.TransactionService
	logger  *slog.Logger
}

// NewTransactionHandler creates a new transaction HTTP handler.
func NewTransactionHandler(svc *service.TransactionService, logger *slog.Logger) *TransactionHandler {
	return &TransactionHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// CreateTransactionRequest is the JSON request body for recording a transaction.
type CreateTransactionRequest struct {
	Type     string                   `json:"type" validate:"required,oneof=purchase purchase_return damage adjustment"`
	VendorID string                   `json:"vendor_id" validate:"omitempty,uuid"`
	Notes    string                   `json:"notes" validate:"max=2000"`
	Approve  bool                     `json:"approve"`
	Items    []TransactionItemRequest `json:"items" validate:"required,min=1,dive"`
}

// TransactionItemRequest is one line of a CreateTransactionRequest. Quantity is
// signed for adjustments.
type TransactionItemRequest struct {
	UnitID     string          `json:"unit_id" validate:"required,uuid"`
	Quantity   int             `json:"quantity"`
	UnitCost   decimal.Decimal `json:"unit_cost" validate:"gte=0"`
	SourceType string          `json:"source_type" validate:"omitempty,oneof=fresh damaged"`
}

// ReasonRequest is the body of reject and void calls.
type ReasonRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// --- Handlers ---

// Create handles POST /api/v1/transactions
func (h *TransactionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateTransactionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	items := make([]service.ItemInput, len(req.Items))
	for i, item := range req.Items {
		items[i] = service.ItemInput{
			UnitID:     item.UnitID,
			Quantity:   item.Quantity,
			UnitCost:   item.UnitCost,
			SourceType: domain.SourceType(item.SourceType),
		}
	}

	tx, err := h.service.Create(r.Context(), service.CreateTransactionInput{
		Type:      domain.TransactionType(req.Type),
		VendorID:  req.VendorID,
		Items:     items,
		Notes:     req.Notes,
		CreatedBy: actorID(r),
		Approve:   req.Approve,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: tx})
}

// Get handles GET /api/v1/transactions/{id}
func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	tx, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: tx})
}

// List handles GET /api/v1/transactions?status=&type=&vendor_id=
func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.TransactionFilter{
		Status:   domain.TransactionStatus(q.Get("status")),
		Type:     domain.TransactionType(q.Get("type")),
		VendorID: q.Get("vendor_id"),
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		writeInvalidParameter(w, "unknown status: "+string(filter.Status))
		return
	}
	if filter.Type != "" && !filter.Type.IsValid() {
		writeInvalidParameter(w, "unknown type: "+string(filter.Type))
		return
	}
	if filter.VendorID != "" {
		id, ok := httputil.ParseUUID(w, filter.VendorID)
		if !ok {
			return
		}
		filter.VendorID = id
	}

	page := pagination.FromRequest(r)
	txs, total, err := h.service.List(r.Context(), filter, page)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, pagination.NewResult[domain.InventoryTransaction](txs, total, page))
}

// Approve handles POST /api/v1/transactions/{id}/approve
func (h *TransactionHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	tx, err := h.service.Approve(r.Context(), id, actorID(r))
	h.writeTransition(w, r, tx, err)
}

// Reject handles POST /api/v1/transactions/{id}/reject
func (h *TransactionHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	var req ReasonRequest
	if !decodeBody(w, r, &req) {
		return
	}

	tx, err := h.service.Reject(r.Context(), id, actorID(r), req.Reason)
	h.writeTransition(w, r, tx, err)
}

// Void handles POST /api/v1/transactions/{id}/void
func (h *TransactionHandler) Void(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	var req ReasonRequest
	if !decodeBody(w, r, &req) {
		return
	}

	tx, err := h.service.Void(r.Context(), id, actorID(r), req.Reason)
	h.writeTransition(w, r, tx, err)
}

func (h *TransactionHandler) writeTransition(w http.ResponseWriter, r *http.Request, tx *domain.InventoryTransaction, err error) {
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: tx})
}

func writeInvalidParameter(w http.ResponseWriter, msg string) {
	httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
		Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: msg},
	})
}
