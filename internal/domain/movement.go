package domain

import "time"

// MovementType classifies a stock journal row.
type MovementType string

// Stock movement types.
const (
	MovementOpening          MovementType = "opening"
	MovementReserved         MovementType = "reserved"
	MovementConfirmed        MovementType = "confirmed"
	MovementRestored         MovementType = "restored"
	MovementPurchase         MovementType = "purchase"
	MovementPurchaseReturn   MovementType = "purchase_return"
	MovementDamage           MovementType = "damage"
	MovementAdjustment       MovementType = "adjustment"
	MovementVoid             MovementType = "void"
	MovementDirectAdjustment MovementType = "direct_adjustment"
)

// ValidMovementTypes returns every movement type.
func ValidMovementTypes() []MovementType {
	return []MovementType{
		MovementOpening, MovementReserved, MovementConfirmed, MovementRestored,
		MovementPurchase, MovementPurchaseReturn, MovementDamage, MovementAdjustment,
		MovementVoid, MovementDirectAdjustment,
	}
}

// IsValid reports whether m is a known movement type.
func (m MovementType) IsValid() bool {
	for _, v := range ValidMovementTypes() {
		if v == m {
			return true
		}
	}
	return false
}

// Reference types recorded on movements.
const (
	ReferenceOrder       = "order"
	ReferenceTransaction = "inventory_transaction"
	ReferenceManual      = "manual"
)

// StockMovement is an immutable journal row. Exactly one is written per mutation.
type StockMovement struct {
	ID            string       `json:"id"`
	UnitID        string       `json:"unit_id"`
	MovementType  MovementType `json:"movement_type"`
	Quantity      int          `json:"quantity"`
	Before        Counters     `json:"before"`
	After         Counters     `json:"after"`
	ReferenceID   *string      `json:"reference_id,omitempty"`
	ReferenceType string       `json:"reference_type"`
	Reason        string       `json:"reason,omitempty"`
	CreatedBy     string       `json:"created_by,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}
