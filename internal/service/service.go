// Package service holds the inventory engine: stock mutations, the maker-checker
// transaction workflow and the vendor ledger synchronizer. Every state change runs
// inside one repository.Store unit of work; events and cache invalidation happen
// after it commits.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"

	"github.com/myseetara-source/erp-seetara-sub004/internal/domain"
)

// EventPublisher publishes domain events. Implementations must be safe for
// concurrent use; returned errors are logged and never fail the operation.
type EventPublisher interface {
	PublishStockChanged(ctx context.Context, movement *domain.StockMovement, level domain.StockLevel) error
	PublishLowStock(ctx context.Context, level domain.StockLevel, threshold int) error
	PublishTransaction(ctx context.Context, transition domain.TransactionStatus, tx *domain.InventoryTransaction) error
	PublishLedgerPosted(ctx context.Context, entry *domain.VendorLedgerEntry, balance decimal.Decimal) error
}

// ReadCache is a best-effort cache in front of the read API. A miss or a backend
// failure both report ok == false.
type ReadCache interface {
	GetStockLevel(ctx context.Context, unitID string) (*domain.StockLevel, bool)
	SetStockLevel(ctx context.Context, level *domain.StockLevel)
	GetVendorBalance(ctx context.Context, vendorID string) (*domain.VendorBalance, bool)
	SetVendorBalance(ctx context.Context, balance *domain.VendorBalance)
	InvalidateUnits(ctx context.Context, unitIDs ...string)
	InvalidateVendor(ctx context.Context, vendorID string)
}

// Locker takes a short-lived lock shared by every engine instance. Acquire fails
// with ErrConcurrentModification when another holder has the key.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(context.Context), err error)
}

// Options are the typed settings the services need.
type Options struct {
	// DefaultLowStockThreshold applies to units without their own threshold.
	DefaultLowStockThreshold int
	// RequireDistinctChecker rejects approval or rejection by the transaction's maker.
	RequireDistinctChecker bool
	// AllowStraightThrough lets Create approve the new transaction immediately.
	AllowStraightThrough bool
}

// DefaultOptions returns the settings used when none are configured.
func DefaultOptions() Options {
	return Options{
		DefaultLowStockThreshold: 10,
		RequireDistinctChecker:   true,
		AllowStraightThrough:     true,
	}
}

type noopPublisher struct{}

func (noopPublisher) PublishStockChanged(context.Context, *domain.StockMovement, domain.StockLevel) error {
	return nil
}

func (noopPublisher) PublishLowStock(context.Context, domain.StockLevel, int) error { return nil }

func (noopPublisher) PublishTransaction(context.Context, domain.TransactionStatus, *domain.InventoryTransaction) error {
	return nil
}

func (noopPublisher) PublishLedgerPosted(context.Context, *domain.VendorLedgerEntry, decimal.Decimal) error {
	return nil
}

type noopCache struct{}

func (noopCache) GetStockLevel(context.Context, string) (*domain.StockLevel, bool)       { return nil, false }
func (noopCache) SetStockLevel(context.Context, *domain.StockLevel)                      {}
func (noopCache) GetVendorBalance(context.Context, string) (*domain.VendorBalance, bool) { return nil, false }
func (noopCache) SetVendorBalance(context.Context, *domain.VendorBalance)                {}
func (noopCache) InvalidateUnits(context.Context, ...string)                             {}
func (noopCache) InvalidateVendor(context.Context, string)                               {}

func publisherOrNoop(p EventPublisher) EventPublisher {
	if p == nil {
		return noopPublisher{}
	}
	return p
}

func cacheOrNoop(c ReadCache) ReadCache {
	if c == nil {
		return noopCache{}
	}
	return c
}

func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}

func now() time.Time { return time.Now().UTC() }

const tracerName = "github.com/myseetara-source/erp-seetara-sub004/internal/service"

// Metric result labels.
const (
	resultSuccess = "success"
	resultFailure = "failure"
)

var (
	stockMutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stock_mutations_total",
			Help: "Total number of stock mutations by operation and result",
		},
		[]string{"operation", "result"},
	)

	inventoryTransactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventory_transactions_total",
			Help: "Total number of inventory transaction transitions by type",
		},
		[]string{"type", "transition"},
	)

	vendorLedgerEntriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vendor_ledger_entries_total",
			Help: "Total number of vendor ledger postings by entry type and outcome",
		},
		[]string{"entry_type", "outcome"},
	)
)

func observeMutation(op string, err error) {
	result := resultSuccess
	if err != nil {
		result = resultFailure
	}
	stockMutationsTotal.WithLabelValues(op, result).Inc()
}
