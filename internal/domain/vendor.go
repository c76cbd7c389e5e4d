package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Vendor is a supplier. Balance caches the running balance of its last ledger entry.
type Vendor struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// LedgerEntryType classifies a vendor ledger row.
type LedgerEntryType string

// Ledger entry types.
const (
	EntryPurchase       LedgerEntryType = "purchase"
	EntryPurchaseReturn LedgerEntryType = "purchase_return"
	EntryVoidReversal   LedgerEntryType = "void_reversal"
	EntryPayment        LedgerEntryType = "payment"
	EntryAdjustment     LedgerEntryType = "adjustment"
)

// IsValid reports whether e is a known entry type.
func (e LedgerEntryType) IsValid() bool {
	switch e {
	case EntryPurchase, EntryPurchaseReturn, EntryVoidReversal, EntryPayment, EntryAdjustment:
		return true
	}
	return false
}

// VendorLedgerEntry is one debit or credit against a vendor. Entries are ordered
// per vendor by (TransactionDate, CreatedAt).
type VendorLedgerEntry struct {
	ID              string          `json:"id"`
	VendorID        string          `json:"vendor_id"`
	EntryType       LedgerEntryType `json:"entry_type"`
	ReferenceID     string          `json:"reference_id"`
	Debit           decimal.Decimal `json:"debit"`
	Credit          decimal.Decimal `json:"credit"`
	RunningBalance  decimal.Decimal `json:"running_balance"`
	TransactionDate time.Time       `json:"transaction_date"`
	Description     string          `json:"description,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Net returns debit - credit.
func (e *VendorLedgerEntry) Net() decimal.Decimal {
	return e.Debit.Sub(e.Credit)
}

// SameAmounts reports whether e already carries the given debit and credit.
func (e *VendorLedgerEntry) SameAmounts(debit, credit decimal.Decimal) bool {
	return e.Debit.Equal(debit) && e.Credit.Equal(credit)
}

// LedgerPosting is the entry a transaction produces on approval or void.
type LedgerPosting struct {
	EntryType LedgerEntryType
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// ApprovalPosting maps an approved transaction to its ledger amounts: purchases
// debit the vendor, purchase returns credit it. ok is false for other types.
func ApprovalPosting(t TransactionType, totalCost decimal.Decimal) (p LedgerPosting, ok bool) {
	switch t {
	case TransactionPurchase:
		return LedgerPosting{EntryType: EntryPurchase, Debit: totalCost, Credit: decimal.Zero}, true
	case TransactionPurchaseReturn:
		return LedgerPosting{EntryType: EntryPurchaseReturn, Debit: decimal.Zero, Credit: totalCost}, true
	}
	return LedgerPosting{}, false
}

// VoidPosting swaps the sides of the approval posting.
func VoidPosting(t TransactionType, totalCost decimal.Decimal) (LedgerPosting, bool) {
	p, ok := ApprovalPosting(t, totalCost)
	if !ok {
		return LedgerPosting{}, false
	}
	return LedgerPosting{EntryType: EntryVoidReversal, Debit: p.Credit, Credit: p.Debit}, true
}

// VendorBalance is the read model served by GetVendorBalance.
type VendorBalance struct {
	VendorID  string          `json:"vendor_id"`
	Name      string          `json:"name"`
	Balance   decimal.Decimal `json:"balance"`
	UpdatedAt time.Time       `json:"updated_at"`
}
