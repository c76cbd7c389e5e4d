package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockUnit is a stock-keeping unit (a product variant) with its three counters.
type StockUnit struct {
	ID                string          `json:"id"`
	SKU               string          `json:"sku"`
	Name              string          `json:"name"`
	FreshStock        int             `json:"fresh_stock"`
	DamagedStock      int             `json:"damaged_stock"`
	ReservedStock     int             `json:"reserved_stock"`
	CostPrice         decimal.Decimal `json:"cost_price"`
	LowStockThreshold int             `json:"low_stock_threshold"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Counters returns a snapshot of the unit's counters.
func (u *StockUnit) Counters() Counters {
	return Counters{Fresh: u.FreshStock, Damaged: u.DamagedStock, Reserved: u.ReservedStock}
}

// SetCounters overwrites the unit's counters from a snapshot.
func (u *StockUnit) SetCounters(c Counters) {
	u.FreshStock = c.Fresh
	u.DamagedStock = c.Damaged
	u.ReservedStock = c.Reserved
}

// IsLowStock reports whether fresh stock is at or below the unit's threshold,
// falling back to defaultThreshold when the unit has none configured.
func (u *StockUnit) IsLowStock(defaultThreshold int) bool {
	threshold := u.LowStockThreshold
	if threshold <= 0 {
		threshold = defaultThreshold
	}
	return threshold > 0 && u.FreshStock <= threshold
}

// Counters is a snapshot of the fresh, damaged and reserved counters.
type Counters struct {
	Fresh    int `json:"fresh"`
	Damaged  int `json:"damaged"`
	Reserved int `json:"reserved"`
}

// NonNegative reports whether every counter is >= 0.
func (c Counters) NonNegative() bool {
	return c.Fresh >= 0 && c.Damaged >= 0 && c.Reserved >= 0
}

// Apply returns the counters after adding d.
func (c Counters) Apply(d Delta) Counters {
	return Counters{
		Fresh:    c.Fresh + d.Fresh,
		Damaged:  c.Damaged + d.Damaged,
		Reserved: c.Reserved + d.Reserved,
	}
}

// Bucket returns the counter for the given source bucket.
func (c Counters) Bucket(s SourceType) int {
	if s == SourceDamaged {
		return c.Damaged
	}
	return c.Fresh
}

// Delta is a signed change to the three counters.
type Delta struct {
	Fresh    int `json:"fresh"`
	Damaged  int `json:"damaged"`
	Reserved int `json:"reserved"`
}

// Inverse returns the delta that undoes d.
func (d Delta) Inverse() Delta {
	return Delta{Fresh: -d.Fresh, Damaged: -d.Damaged, Reserved: -d.Reserved}
}

// IsZero reports whether d changes nothing.
func (d Delta) IsZero() bool {
	return d == Delta{}
}

// Net is the signed sum of the delta across buckets.
func (d Delta) Net() int {
	return d.Fresh + d.Damaged + d.Reserved
}

// Quantity is the signed quantity recorded on the journal: the fresh change when
// fresh stock moves, otherwise the damaged change, otherwise the reserved change.
func (d Delta) Quantity() int {
	switch {
	case d.Fresh != 0:
		return d.Fresh
	case d.Damaged != 0:
		return d.Damaged
	}
	return d.Reserved
}

// MutationResult is returned by every stock mutation.
type MutationResult struct {
	Success     bool     `json:"success"`
	UnitID      string   `json:"unit_id"`
	StockBefore Counters `json:"stock_before"`
	StockAfter  Counters `json:"stock_after"`
	MovementID  string   `json:"movement_id"`
}

// StockLevel is the read model served by GetStockLevel.
type StockLevel struct {
	UnitID    string    `json:"unit_id"`
	SKU       string    `json:"sku"`
	Fresh     int       `json:"fresh"`
	Damaged   int       `json:"damaged"`
	Reserved  int       `json:"reserved"`
	LowStock  bool      `json:"low_stock"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LevelOf builds the read model for u.
func LevelOf(u *StockUnit, defaultThreshold int) StockLevel {
	return StockLevel{
		UnitID:    u.ID,
		SKU:       u.SKU,
		Fresh:     u.FreshStock,
		Damaged:   u.DamagedStock,
		Reserved:  u.ReservedStock,
		LowStock:  u.IsLowStock(defaultThreshold),
		UpdatedAt: u.UpdatedAt,
	}
}
