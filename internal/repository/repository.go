package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/myseetara-source/erp-seetara-sub004/internal/domain"
	"github.com/myseetara-source/erp-seetara-sub004/pkg/pagination"
)

// UnitRepository persists stock units and their counters.
type UnitRepository interface {
	// Create inserts a new stock unit.
	Create(ctx context.Context, unit *domain.StockUnit) error

	// GetByID reads a unit without locking it.
	GetByID(ctx context.Context, id string) (*domain.StockUnit, error)

	// GetForUpdate reads a unit and holds an exclusive row lock on it until the
	// surrounding transaction ends.
	GetForUpdate(ctx context.Context, id string) (*domain.StockUnit, error)

	// UpdateCounters writes the unit's fresh, damaged and reserved counters.
	UpdateCounters(ctx context.Context, unit *domain.StockUnit) error

	// ListLowStock returns units whose fresh stock is at or below their threshold,
	// or defaultThreshold when the unit has none.
	ListLowStock(ctx context.Context, defaultThreshold int, page pagination.Params) ([]domain.StockUnit, int, error)
}

// MovementRepository is the append-only stock journal.
type MovementRepository interface {
	// Create appends a movement.
	Create(ctx context.Context, m *domain.StockMovement) error

	// ListByUnit returns a unit's movements, newest first.
	ListByUnit(ctx context.Context, unitID string, page pagination.Params) ([]domain.StockMovement, int, error)
}

// TransactionFilter narrows ListTransactions. Empty fields match everything.
type TransactionFilter struct {
	Status   domain.TransactionStatus
	Type     domain.TransactionType
	VendorID string
}

// TransactionRepository persists inventory transactions with their items.
type TransactionRepository interface {
	// Create inserts the header and all items.
	Create(ctx context.Context, tx *domain.InventoryTransaction) error

	// GetByID reads a transaction with its items.
	GetByID(ctx context.Context, id string) (*domain.InventoryTransaction, error)

	// GetForUpdate reads a transaction with its items and locks the header row.
	GetForUpdate(ctx context.Context, id string) (*domain.InventoryTransaction, error)

	// Update writes status, actor fields and item snapshots.
	Update(ctx context.Context, tx *domain.InventoryTransaction) error

	// List returns transactions matching filter, newest first.
	List(ctx context.Context, filter TransactionFilter, page pagination.Params) ([]domain.InventoryTransaction, int, error)

	// NextInvoiceNo allocates the next invoice number for the type.
	NextInvoiceNo(ctx context.Context, t domain.TransactionType) (string, error)
}

// VendorRepository persists vendors.
type VendorRepository interface {
	Create(ctx context.Context, v *domain.Vendor) error
	GetByID(ctx context.Context, id string) (*domain.Vendor, error)
	// GetForUpdate reads a vendor and locks its row.
	GetForUpdate(ctx context.Context, id string) (*domain.Vendor, error)
	UpdateBalance(ctx context.Context, id string, balance decimal.Decimal) error
}

// LedgerRepository persists vendor ledger entries.
type LedgerRepository interface {
	// GetByReference returns the entry for (referenceID, entryType) or ErrNotFound.
	GetByReference(ctx context.Context, referenceID string, entryType domain.LedgerEntryType) (*domain.VendorLedgerEntry, error)

	// Last returns the vendor's most recent entry by (transaction_date, created_at)
	// or ErrNotFound when the vendor has none.
	Last(ctx context.Context, vendorID string) (*domain.VendorLedgerEntry, error)

	// Create inserts an entry. A second entry for the same (reference, type)
	// fails with ErrDuplicateLedgerEntry.
	Create(ctx context.Context, e *domain.VendorLedgerEntry) error

	// UpdateAmounts rewrites debit, credit and running balance of an existing entry.
	UpdateAmounts(ctx context.Context, e *domain.VendorLedgerEntry) error

	// ListByVendor returns entries newest first.
	ListByVendor(ctx context.Context, vendorID string, page pagination.Params) ([]domain.VendorLedgerEntry, int, error)

	// ListChronological returns every entry of the vendor oldest first.
	ListChronological(ctx context.Context, vendorID string) ([]domain.VendorLedgerEntry, error)

	// SetRunningBalance rewrites one entry's running balance.
	SetRunningBalance(ctx context.Context, id string, balance decimal.Decimal) error
}

// Repositories groups the repositories bound to one unit of work.
type Repositories struct {
	Units        UnitRepository
	Movements    MovementRepository
	Transactions TransactionRepository
	Vendors      VendorRepository
	Ledger       LedgerRepository
}

// Store runs units of work against a backend.
type Store interface {
	// Execute runs fn inside one transaction. Every repository in repos shares that
	// transaction; it commits when fn returns nil and rolls back otherwise. Lock
	// timeouts and deadlocks surface as ErrConcurrentModification.
	Execute(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error

	// View runs fn with repositories for reads outside any transaction.
	View(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error

	// Ping checks backend reachability.
	Ping(ctx context.Context) error
}
