package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/myseetara-source/erp-seetara-sub004/internal/domain"
	"github.com/myseetara-source/erp-seetara-sub004/internal/repository"
	apperrors "github.com/myseetara-source/erp-seetara-sub004/pkg/errors"
	"github.com/myseetara-source/erp-seetara-sub004/pkg/pagination"
)

// ---------------------------------------------------------------------------
// units
// ---------------------------------------------------------------------------

type unitRepo struct{ base }

func (r *unitRepo) Create(_ context.Context, u *domain.StockUnit) error {
	if err := r.checkWritable(); err != nil {
		return err
	}
	if _, ok := r.st.units[u.ID]; ok {
		return apperrors.AlreadyExists("stock unit", "id", u.ID)
	}
	for _, existing := range r.st.units {
		if existing.SKU == u.SKU {
			return apperrors.AlreadyExists("stock unit", "sku", u.SKU)
		}
	}
	r.st.units[u.ID] = *u
	return nil
}

func (r *unitRepo) GetByID(_ context.Context, id string) (*domain.StockUnit, error) {
	u, ok := r.st.units[id]
	if !ok {
		return nil, apperrors.NotFound("stock unit", id)
	}
	return &u, nil
}

// GetForUpdate needs no row lock: the whole store is held by the writer.
func (r *unitRepo) GetForUpdate(ctx context.Context, id string) (*domain.StockUnit, error) {
	return r.GetByID(ctx, id)
}

func (r *unitRepo) UpdateCounters(_ context.Context, u *domain.StockUnit) error {
	if err := r.checkWritable(); err != nil {
		return err
	}
	existing, ok := r.st.units[u.ID]
	if !ok {
		return apperrors.NotFound("stock unit", u.ID)
	}
	if !u.Counters().NonNegative() {
		return apperrors.NegativeStock(u.ID)
	}
	existing.FreshStock = u.FreshStock
	existing.DamagedStock = u.DamagedStock
	existing.ReservedStock = u.ReservedStock
	existing.UpdatedAt = u.UpdatedAt
	r.st.units[u.ID] = existing
	return nil
}

func (r *unitRepo) ListLowStock(_ context.Context, defaultThreshold int, page pagination.Params) ([]domain.StockUnit, int, error) {
	var low []domain.StockUnit
	for _, u := range r.st.units {
		if u.IsLowStock(defaultThreshold) {
			low = append(low, u)
		}
	}
	sort.Slice(low, func(i, j int) bool {
		if low[i].FreshStock != low[j].FreshStock {
			return low[i].FreshStock < low[j].FreshStock
		}
		return low[i].SKU < low[j].SKU
	})
	return pagination.Slice(low, page), len(low), nil
}

// ---------------------------------------------------------------------------
// movements
// ---------------------------------------------------------------------------

type movementRepo struct{ base }

func (r *movementRepo) Create(_ context.Context, m *domain.StockMovement) error {
	if err := r.checkWritable(); err != nil {
		return err
	}
	if _, ok := r.st.units[m.UnitID]; !ok {
		return fmt.Errorf("insert stock movement: %w", apperrors.NotFound("stock unit", m.UnitID))
	}
	r.st.movements = append(r.st.movements, *m)
	return nil
}

func (r *movementRepo) ListByUnit(_ context.Context, unitID string, page pagination.Params) ([]domain.StockMovement, int, error) {
	var out []domain.StockMovement
	// journal order is insertion order; walk backwards for newest first
	for i := len(r.st.movements) - 1; i >= 0; i-- {
		if r.st.movements[i].UnitID == unitID {
			out = append(out, r.st.movements[i])
		}
	}
	return pagination.Slice(out, page), len(out), nil
}

// ---------------------------------------------------------------------------
// transactions
// ---------------------------------------------------------------------------

type transactionRepo struct{ base }

func copyIntPtr(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// copyTransaction detaches t from any slice or pointer the caller still holds.
func copyTransaction(t *domain.InventoryTransaction) domain.InventoryTransaction {
	c := *t
	c.Items = make([]domain.InventoryTransactionItem, len(t.Items))
	for i, item := range t.Items {
		item.StockBefore = copyIntPtr(item.StockBefore)
		item.StockAfter = copyIntPtr(item.StockAfter)
		c.Items[i] = item
	}
	return c
}

func (r *transactionRepo) Create(_ context.Context, t *domain.InventoryTransaction) error {
	if err := r.checkWritable(); err != nil {
		return err
	}
	for _, existing := range r.st.transactions {
		if existing.InvoiceNo == t.InvoiceNo {
			return apperrors.AlreadyExists("inventory transaction", "invoice_no", t.InvoiceNo)
		}
	}
	for i := range t.Items {
		if _, ok := r.st.units[t.Items[i].UnitID]; !ok {
			return apperrors.NotFound("stock unit", t.Items[i].UnitID)
		}
	}
	if t.HasVendor() {
		if _, ok := r.st.vendors[*t.VendorID]; !ok {
			return apperrors.NotFound("vendor", *t.VendorID)
		}
	}
	r.st.transactions[t.ID] = copyTransaction(t)
	return nil
}

func (r *transactionRepo) GetByID(_ context.Context, id string) (*domain.InventoryTransaction, error) {
	t, ok := r.st.transactions[id]
	if !ok {
		return nil, apperrors.NotFound("inventory transaction", id)
	}
	c := copyTransaction(&t)
	return &c, nil
}

func (r *transactionRepo) GetForUpdate(ctx context.Context, id string) (*domain.InventoryTransaction, error) {
	return r.GetByID(ctx, id)
}

func (r *transactionRepo) Update(_ context.Context, t *domain.InventoryTransaction) error {
	if err := r.checkWritable(); err != nil {
		return err
	}
	existing, ok := r.st.transactions[t.ID]
	if !ok {
		return apperrors.NotFound("inventory transaction", t.ID)
	}
	updated := copyTransaction(t)
	// header identity and items' content are immutable; only status fields and snapshots move
	updated.InvoiceNo = existing.InvoiceNo
	updated.Type = existing.Type
	updated.CreatedAt = existing.CreatedAt
	r.st.transactions[t.ID] = updated
	return nil
}

func (r *transactionRepo) List(_ context.Context, filter repository.TransactionFilter, page pagination.Params) ([]domain.InventoryTransaction, int, error) {
	var out []domain.InventoryTransaction
	for _, t := range r.st.transactions {
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.Type != "" && t.Type != filter.Type {
			continue
		}
		if filter.VendorID != "" && (t.VendorID == nil || *t.VendorID != filter.VendorID) {
			continue
		}
		header := t
		header.Items = nil
		out = append(out, header)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return pagination.Slice(out, page), len(out), nil
}

func (r *transactionRepo) NextInvoiceNo(_ context.Context, t domain.TransactionType) (string, error) {
	if err := r.checkWritable(); err != nil {
		return "", err
	}
	r.st.sequences[t.InvoicePrefix()]++
	return domain.FormatInvoiceNo(t, r.st.sequences[t.InvoicePrefix()]), nil
}

// ---------------------------------------------------------------------------
// vendors
// ---------------------------------------------------------------------------

type vendorRepo struct{ base }

func (r *vendorRepo) Create(_ context.Context, v *domain.Vendor) error {
	if err := r.checkWritable(); err != nil {
		return err
	}
	if _, ok := r.st.vendors[v.ID]; ok {
		return apperrors.AlreadyExists("vendor", "id", v.ID)
	}
	r.st.vendors[v.ID] = *v
	return nil
}

func (r *vendorRepo) GetByID(_ context.Context, id string) (*domain.Vendor, error) {
	v, ok := r.st.vendors[id]
	if !ok {
		return nil, apperrors.NotFound("vendor", id)
	}
	return &v, nil
}

func (r *vendorRepo) GetForUpdate(ctx context.Context, id string) (*domain.Vendor, error) {
	return r.GetByID(ctx, id)
}

func (r *vendorRepo) UpdateBalance(_ context.Context, id string, balance decimal.Decimal) error {
	if err := r.checkWritable(); err != nil {
		return err
	}
	v, ok := r.st.vendors[id]
	if !ok {
		return apperrors.NotFound("vendor", id)
	}
	v.Balance = balance
	v.UpdatedAt = time.Now().UTC()
	r.st.vendors[id] = v
	return nil
}

// ---------------------------------------------------------------------------
// ledger
// ---------------------------------------------------------------------------

type ledgerRepo struct{ base }

// before reports whether a sorts before b in ledger order. Ties keep insertion order.
func before(a, b *domain.VendorLedgerEntry) bool {
	if !a.TransactionDate.Equal(b.TransactionDate) {
		return a.TransactionDate.Before(b.TransactionDate)
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

func (r *ledgerRepo) chronological(vendorID string) []domain.VendorLedgerEntry {
	var out []domain.VendorLedgerEntry
	for _, e := range r.st.ledger {
		if e.VendorID == vendorID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return before(&out[i], &out[j]) })
	return out
}

func (r *ledgerRepo) GetByReference(_ context.Context, referenceID string, entryType domain.LedgerEntryType) (*domain.VendorLedgerEntry, error) {
	for _, e := range r.st.ledger {
		if e.ReferenceID == referenceID && e.EntryType == entryType {
			return &e, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *ledgerRepo) Last(_ context.Context, vendorID string) (*domain.VendorLedgerEntry, error) {
	entries := r.chronological(vendorID)
	if len(entries) == 0 {
		return nil, apperrors.ErrNotFound
	}
	last := entries[len(entries)-1]
	return &last, nil
}

func (r *ledgerRepo) Create(_ context.Context, e *domain.VendorLedgerEntry) error {
	if err := r.checkWritable(); err != nil {
		return err
	}
	for _, existing := range r.st.ledger {
		if existing.ReferenceID == e.ReferenceID && existing.EntryType == e.EntryType {
			return fmt.Errorf("create ledger entry %s/%s: %w", e.ReferenceID, e.EntryType, apperrors.ErrDuplicateLedgerEntry)
		}
	}
	if _, ok := r.st.vendors[e.VendorID]; !ok {
		return apperrors.NotFound("vendor", e.VendorID)
	}
	r.st.ledger = append(r.st.ledger, *e)
	return nil
}

func (r *ledgerRepo) index(id string) int {
	return slices.IndexFunc(r.st.ledger, func(e domain.VendorLedgerEntry) bool { return e.ID == id })
}

func (r *ledgerRepo) UpdateAmounts(_ context.Context, e *domain.VendorLedgerEntry) error {
	if err := r.checkWritable(); err != nil {
		return err
	}
	i := r.index(e.ID)
	if i < 0 {
		return apperrors.NotFound("ledger entry", e.ID)
	}
	r.st.ledger[i].Debit = e.Debit
	r.st.ledger[i].Credit = e.Credit
	r.st.ledger[i].RunningBalance = e.RunningBalance
	r.st.ledger[i].Description = e.Description
	return nil
}

func (r *ledgerRepo) ListByVendor(_ context.Context, vendorID string, page pagination.Params) ([]domain.VendorLedgerEntry, int, error) {
	entries := r.chronological(vendorID)
	slices.Reverse(entries)
	return pagination.Slice(entries, page), len(entries), nil
}

func (r *ledgerRepo) ListChronological(_ context.Context, vendorID string) ([]domain.VendorLedgerEntry, error) {
	entries := r.chronological(vendorID)
	if entries == nil {
		entries = []domain.VendorLedgerEntry{}
	}
	return entries, nil
}

func (r *ledgerRepo) SetRunningBalance(_ context.Context, id string, balance decimal.Decimal) error {
	if err := r.checkWritable(); err != nil {
		return err
	}
	i := r.index(id)
	if i < 0 {
		return apperrors.NotFound("ledger entry", id)
	}
	r.st.ledger[i].RunningBalance = balance
	return nil
}
