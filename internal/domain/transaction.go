package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the kind of inventory transaction.
type TransactionType string

// Inventory transaction types.
const (
	TransactionPurchase       TransactionType = "purchase"
	TransactionPurchaseReturn TransactionType = "purchase_return"
	TransactionDamage         TransactionType = "damage"
	TransactionAdjustment     TransactionType = "adjustment"
)

var invoicePrefixes = map[TransactionType]string{
	TransactionPurchase:       "PUR",
	TransactionPurchaseReturn: "PRT",
	TransactionDamage:         "DMG",
	TransactionAdjustment:     "ADJ",
}

// ValidTransactionTypes returns every transaction type.
func ValidTransactionTypes() []TransactionType {
	return []TransactionType{TransactionPurchase, TransactionPurchaseReturn, TransactionDamage, TransactionAdjustment}
}

// IsValid reports whether t is a known transaction type.
func (t TransactionType) IsValid() bool {
	_, ok := invoicePrefixes[t]
	return ok
}

// ParseTransactionType converts s into a TransactionType.
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(s)
	if !t.IsValid() {
		return "", fmt.Errorf("unknown transaction type %q", s)
	}
	return t, nil
}

// InvoicePrefix returns the invoice number prefix, e.g. "PUR".
func (t TransactionType) InvoicePrefix() string {
	return invoicePrefixes[t]
}

// MovementType returns the journal movement type written on approval.
func (t TransactionType) MovementType() MovementType {
	switch t {
	case TransactionPurchase:
		return MovementPurchase
	case TransactionPurchaseReturn:
		return MovementPurchaseReturn
	case TransactionDamage:
		return MovementDamage
	default:
		return MovementAdjustment
	}
}

// AffectsVendorLedger reports whether approving a vendor-linked transaction of
// this type posts to the vendor ledger.
func (t TransactionType) AffectsVendorLedger() bool {
	return t == TransactionPurchase || t == TransactionPurchaseReturn
}

// FormatInvoiceNo renders a human readable invoice number such as PUR-000042.
func FormatInvoiceNo(t TransactionType, seq int64) string {
	return fmt.Sprintf("%s-%06d", t.InvoicePrefix(), seq)
}

// SourceType is the stock bucket an item draws from.
type SourceType string

// Stock buckets.
const (
	SourceFresh   SourceType = "fresh"
	SourceDamaged SourceType = "damaged"
)

// IsValid reports whether s is a known bucket.
func (s SourceType) IsValid() bool {
	return s == SourceFresh || s == SourceDamaged
}

// TransactionStatus is the approval state of an inventory transaction.
type TransactionStatus string

// Transaction statuses.
const (
	StatusPending  TransactionStatus = "pending"
	StatusApproved TransactionStatus = "approved"
	StatusRejected TransactionStatus = "rejected"
	StatusVoided   TransactionStatus = "voided"
)

// AllowedTransitions defines which status transitions are valid.
func AllowedTransitions() map[TransactionStatus][]TransactionStatus {
	return map[TransactionStatus][]TransactionStatus{
		StatusPending:  {StatusApproved, StatusRejected},
		StatusApproved: {StatusVoided},
		StatusRejected: {},
		StatusVoided:   {},
	}
}

// IsValid reports whether s is a known status.
func (s TransactionStatus) IsValid() bool {
	_, ok := AllowedTransitions()[s]
	return ok
}

// CanTransitionTo checks if a transaction in status s may move to target.
func (s TransactionStatus) CanTransitionTo(target TransactionStatus) bool {
	for _, allowed := range AllowedTransitions()[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s TransactionStatus) IsTerminal() bool {
	return len(AllowedTransitions()[s]) == 0
}

// InventoryTransaction is a maker-checker controlled stock document.
type InventoryTransaction struct {
	ID              string                     `json:"id"`
	InvoiceNo       string                     `json:"invoice_no"`
	Type            TransactionType            `json:"type"`
	Status          TransactionStatus          `json:"status"`
	VendorID        *string                    `json:"vendor_id,omitempty"`
	TotalQuantity   int                        `json:"total_quantity"`
	TotalCost       decimal.Decimal            `json:"total_cost"`
	Notes           string                     `json:"notes,omitempty"`
	CreatedBy       string                     `json:"created_by"`
	ApprovedBy      *string                    `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time                 `json:"approved_at,omitempty"`
	RejectedBy      *string                    `json:"rejected_by,omitempty"`
	RejectedAt      *time.Time                 `json:"rejected_at,omitempty"`
	RejectionReason *string                    `json:"rejection_reason,omitempty"`
	VoidedBy        *string                    `json:"voided_by,omitempty"`
	VoidedAt        *time.Time                 `json:"voided_at,omitempty"`
	VoidReason      *string                    `json:"void_reason,omitempty"`
	Items           []InventoryTransactionItem `json:"items"`
	CreatedAt       time.Time                  `json:"created_at"`
	UpdatedAt       time.Time                  `json:"updated_at"`
}

// CanTransitionTo checks if the transaction can move to the target status.
func (t *InventoryTransaction) CanTransitionTo(target TransactionStatus) bool {
	return t.Status.CanTransitionTo(target)
}

// HasVendor reports whether the transaction is linked to a vendor.
func (t *InventoryTransaction) HasVendor() bool {
	return t.VendorID != nil && *t.VendorID != ""
}

// InventoryTransactionItem is one line of a transaction. StockBefore and StockAfter
// hold the affected bucket and are filled when the transaction is approved.
type InventoryTransactionItem struct {
	ID            string          `json:"id"`
	TransactionID string          `json:"transaction_id"`
	UnitID        string          `json:"unit_id"`
	Quantity      int             `json:"quantity"`
	UnitCost      decimal.Decimal `json:"unit_cost"`
	SourceType    SourceType      `json:"source_type"`
	StockBefore   *int            `json:"stock_before,omitempty"`
	StockAfter    *int            `json:"stock_after,omitempty"`
}

// AbsQuantity returns |Quantity|.
func (i *InventoryTransactionItem) AbsQuantity() int {
	if i.Quantity < 0 {
		return -i.Quantity
	}
	return i.Quantity
}

// MoneyPlaces is the scale of every stored amount.
const MoneyPlaces = 2

// IsMoney reports whether d fits the stored scale without rounding.
func IsMoney(d decimal.Decimal) bool {
	return d.Equal(d.Round(MoneyPlaces))
}

// ComputeTotals returns Σ|q| and Σ|q|×unitCost over items.
func ComputeTotals(items []InventoryTransactionItem) (int, decimal.Decimal) {
	qty := 0
	cost := decimal.Zero
	for i := range items {
		abs := items[i].AbsQuantity()
		qty += abs
		cost = cost.Add(items[i].UnitCost.Mul(decimal.NewFromInt(int64(abs))))
	}
	return qty, cost
}
