package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myseetara-source/erp-seetara-sub004/internal/domain"
	"github.com/myseetara-source/erp-seetara-sub004/internal/repository"
	"github.com/myseetara-source/erp-seetara-sub004/internal/repository/memory"
	apperrors "github.com/myseetara-source/erp-seetara-sub004/pkg/errors"
	"github.com/myseetara-source/erp-seetara-sub004/pkg/logger"
)

// --- Recording publisher ---

type recordingPublisher struct {
	mu          sync.Mutex
	movements   []domain.StockMovement
	lowStock    []domain.StockLevel
	transitions []domain.TransactionStatus
	ledger      []domain.VendorLedgerEntry
	fail        bool
}

func (p *recordingPublisher) err() error {
	if p.fail {
		return errors.New("broker unavailable")
	}
	return nil
}

func (p *recordingPublisher) PublishStockChanged(_ context.Context, m *domain.StockMovement, _ domain.StockLevel) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.movements = append(p.movements, *m)
	return p.err()
}

func (p *recordingPublisher) PublishLowStock(_ context.Context, level domain.StockLevel, _ int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lowStock = append(p.lowStock, level)
	return p.err()
}

func (p *recordingPublisher) PublishTransaction(_ context.Context, s domain.TransactionStatus, _ *domain.InventoryTransaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transitions = append(p.transitions, s)
	return p.err()
}

func (p *recordingPublisher) PublishLedgerPosted(_ context.Context, e *domain.VendorLedgerEntry, _ decimal.Decimal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ledger = append(p.ledger, *e)
	return p.err()
}

// --- Map cache ---

type mapCache struct {
	mu       sync.Mutex
	levels   map[string]domain.StockLevel
	balances map[string]domain.VendorBalance
}

func newMapCache() *mapCache {
	return &mapCache{levels: map[string]domain.StockLevel{}, balances: map[string]domain.VendorBalance{}}
}

func (c *mapCache) GetStockLevel(_ context.Context, id string) (*domain.StockLevel, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.levels[id]
	return &l, ok
}

func (c *mapCache) SetStockLevel(_ context.Context, l *domain.StockLevel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.levels[l.UnitID] = *l
}

func (c *mapCache) GetVendorBalance(_ context.Context, id string) (*domain.VendorBalance, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.balances[id]
	return &b, ok
}

func (c *mapCache) SetVendorBalance(_ context.Context, b *domain.VendorBalance) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances[b.VendorID] = *b
}

func (c *mapCache) InvalidateUnits(_ context.Context, ids ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		delete(c.levels, id)
	}
}

func (c *mapCache) InvalidateVendor(_ context.Context, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.balances, id)
}

// --- Busy locker ---

type busyLocker struct{}

func (busyLocker) Acquire(context.Context, string) (func(context.Context), error) {
	return nil, apperrors.ConcurrentModification(errors.New("lock held elsewhere"))
}

// --- Harness ---

const (
	maker   = "maker-1"
	checker = "checker-1"
)

type harness struct {
	store  *memory.Store
	events *recordingPublisher
	cache  *mapCache
	stock  *StockService
	ledger *LedgerService
	txs    *TransactionService
}

func newHarness(t *testing.T, opts Options, locker Locker) *harness {
	t.Helper()
	h := &harness{
		store:  memory.NewStore(0),
		events: &recordingPublisher{},
		cache:  newMapCache(),
	}
	log := logger.NewDiscard()
	h.stock = NewStockService(h.store, h.events, h.cache, log, opts)
	h.ledger = NewLedgerService(h.store, h.events, h.cache, log)
	h.txs = NewTransactionService(h.store, h.stock, h.ledger, locker, h.events, log, opts)
	return h
}

func newTestHarness(t *testing.T) *harness {
	return newHarness(t, DefaultOptions(), nil)
}

func (h *harness) unit(t *testing.T, sku string, fresh int) *domain.StockUnit {
	t.Helper()
	u, err := h.stock.CreateUnit(context.Background(), CreateUnitInput{
		SKU:          sku,
		Name:         "Unit " + sku,
		CostPrice:    decimal.NewFromInt(10),
		InitialFresh: fresh,
	})
	require.NoError(t, err)
	return u
}

func (h *harness) vendor(t *testing.T, name string) *domain.Vendor {
	t.Helper()
	v, err := h.ledger.CreateVendor(context.Background(), name)
	require.NoError(t, err)
	return v
}

func (h *harness) counters(t *testing.T, unitID string) domain.Counters {
	t.Helper()
	u, err := h.stock.GetUnit(context.Background(), unitID)
	require.NoError(t, err)
	return u.Counters()
}

func (h *harness) balance(t *testing.T, vendorID string) decimal.Decimal {
	t.Helper()
	var v *domain.Vendor
	err := h.store.View(context.Background(), func(ctx context.Context, repos repository.Repositories) error {
		var err error
		v, err = repos.Vendors.GetByID(ctx, vendorID)
		return err
	})
	require.NoError(t, err)
	return v.Balance
}

func (h *harness) entries(t *testing.T, vendorID string) []domain.VendorLedgerEntry {
	t.Helper()
	var entries []domain.VendorLedgerEntry
	err := h.store.View(context.Background(), func(ctx context.Context, repos repository.Repositories) error {
		var err error
		entries, err = repos.Ledger.ListChronological(ctx, vendorID)
		return err
	})
	require.NoError(t, err)
	return entries
}

// assertLedgerConsistent checks the running balance recurrence and that the vendor
// balance equals the last running balance.
func (h *harness) assertLedgerConsistent(t *testing.T, vendorID string) {
	t.Helper()
	running := decimal.Zero
	entries := h.entries(t, vendorID)
	for _, e := range entries {
		running = running.Add(e.Debit).Sub(e.Credit)
		assert.True(t, running.Equal(e.RunningBalance), "entry %s running balance %s, want %s", e.ID, e.RunningBalance, running)
	}
	assert.True(t, running.Equal(h.balance(t, vendorID)), "vendor balance %s, want %s", h.balance(t, vendorID), running)
}

func (h *harness) purchase(t *testing.T, vendorID string, items ...ItemInput) *domain.InventoryTransaction {
	t.Helper()
	tx, err := h.txs.Create(context.Background(), CreateTransactionInput{
		Type:      domain.TransactionPurchase,
		VendorID:  vendorID,
		Items:     items,
		CreatedBy: maker,
	})
	require.NoError(t, err)
	return tx
}

func item(unitID string, qty int, cost int64) ItemInput {
	return ItemInput{UnitID: unitID, Quantity: qty, UnitCost: decimal.NewFromInt(cost)}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
