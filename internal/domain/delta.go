package domain

// AffectedBucket returns the bucket whose before/after values are recorded on an
// item. Purchase returns draw from the item's source; everything else moves fresh stock.
func AffectedBucket(t TransactionType, source SourceType) SourceType {
	if t == TransactionPurchaseReturn && source == SourceDamaged {
		return SourceDamaged
	}
	return SourceFresh
}

// ApprovalDelta is the change approving item applies to a unit whose counters
// are current. Adjustments clamp fresh stock at zero instead of failing.
func ApprovalDelta(t TransactionType, item *InventoryTransactionItem, current Counters) Delta {
	q := item.AbsQuantity()
	switch t {
	case TransactionPurchase:
		return Delta{Fresh: q}
	case TransactionPurchaseReturn:
		if item.SourceType == SourceDamaged {
			return Delta{Damaged: -q}
		}
		return Delta{Fresh: -q}
	case TransactionDamage:
		return Delta{Fresh: -q, Damaged: q}
	case TransactionAdjustment:
		after := current.Fresh + item.Quantity
		if after < 0 {
			after = 0
		}
		return Delta{Fresh: after - current.Fresh}
	}
	return Delta{}
}

// VoidDelta is the change that undoes what approval applied to item. Adjustments use
// the recorded snapshot, since a clamped approval applied less than the item quantity.
// ok is false when an adjustment carries no snapshot.
func VoidDelta(t TransactionType, item *InventoryTransactionItem) (d Delta, ok bool) {
	if t == TransactionAdjustment {
		if item.StockBefore == nil || item.StockAfter == nil {
			return Delta{}, false
		}
		return Delta{Fresh: *item.StockBefore - *item.StockAfter}, true
	}
	return ApprovalDelta(t, item, Counters{}).Inverse(), true
}
