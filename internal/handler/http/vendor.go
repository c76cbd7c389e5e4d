package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/myseetara-source/erp-seetara-sub004/internal/domain"
	"github.com/myseetara-source/erp-seetara-sub004/internal/service"
	"github.com/myseetara-source/erp-seetara-sub004/pkg/httputil"
	"github.com/myseetara-source/erp-seetara-sub004/pkg/pagination"
)

// VendorHandler handles HTTP requests for vendors and their ledgers.
type VendorHandler struct {
	service *service.LedgerService
	logger  *slog.Logger
}

// NewVendorHandler creates a new vendor HTTP handler.
func NewVendorHandler(svc *service.LedgerService, logger *slog.Logger) *VendorHandler {
	return &VendorHandler{
		service: svc,
		logger:  logger,
	}
}

// CreateVendorRequest is the JSON request body for registering a vendor.
type CreateVendorRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

// CreateVendor handles POST /api/v1/vendors
func (h *VendorHandler) CreateVendor(w http.ResponseWriter, r *http.Request) {
	var req CreateVendorRequest
	if !decodeBody(w, r, &req) {
		return
	}

	vendor, err := h.service.CreateVendor(r.Context(), req.Name)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: vendor})
}

// GetBalance handles GET /api/v1/vendors/{id}/balance
func (h *VendorHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	balance, err := h.service.GetVendorBalance(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: balance})
}

// ListLedger handles GET /api/v1/vendors/{id}/ledger
func (h *VendorHandler) ListLedger(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	page := pagination.FromRequest(r)
	entries, total, err := h.service.ListEntries(r.Context(), id, page)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, pagination.NewResult[domain.VendorLedgerEntry](entries, total, page))
}

// RebuildBalance handles POST /api/v1/vendors/{id}/ledger/rebuild
func (h *VendorHandler) RebuildBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	balance, err := h.service.RebuildVendorBalance(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: balance})
}
