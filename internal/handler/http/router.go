package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/myseetara-source/erp-seetara-sub004/internal/service"
	"github.com/myseetara-source/erp-seetara-sub004/pkg/health"
	"github.com/myseetara-source/erp-seetara-sub004/pkg/middleware"
)

// ServiceName labels HTTP metrics and spans.
const ServiceName = "inventory-engine"

// Services groups the engine services exposed over HTTP.
type Services struct {
	Stock        *service.StockService
	Transactions *service.TransactionService
	Ledger       *service.LedgerService
}

// NewRouter creates a chi router with all engine routes registered.
func NewRouter(svc Services, healthHandler *health.Handler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing(ServiceName))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics(ServiceName))

	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	units := NewUnitHandler(svc.Stock, logger)
	txs := NewTransactionHandler(svc.Transactions, logger)
	vendors := NewVendorHandler(svc.Ledger, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Route("/units", func(r chi.Router) {
			r.Post("/", units.CreateUnit)
			r.Get("/low-stock", units.ListLowStock)
			r.Get("/{id}", units.GetUnit)
			r.Get("/{id}/level", units.GetStockLevel)
			r.Get("/{id}/movements", units.ListMovements)
			r.Post("/{id}/reserve", units.Reserve)
			r.Post("/{id}/confirm", units.Confirm)
			r.Post("/{id}/restore", units.Restore)
			r.Post("/{id}/adjust", units.Adjust)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Use(RequireActor)
			r.Post("/", txs.Create)
			r.Get("/", txs.List)
			r.Get("/{id}", txs.Get)
			r.Post("/{id}/approve", txs.Approve)
			r.Post("/{id}/reject", txs.Reject)
			r.Post("/{id}/void", txs.Void)
		})

		r.Route("/vendors", func(r chi.Router) {
			r.Post("/", vendors.CreateVendor)
			r.Get("/{id}/balance", vendors.GetBalance)
			r.Get("/{id}/ledger", vendors.ListLedger)
			r.Post("/{id}/ledger/rebuild", vendors.RebuildBalance)
		})
	})

	return r
}
