package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/myseetara-source/erp-seetara-sub004/internal/domain"
	pkgkafka "github.com/myseetara-source/erp-seetara-sub004/pkg/kafka"
)

// Kafka topics published by the inventory engine.
var (
	TopicStockChanged        = pkgkafka.Topic("inventory", "stock.changed")
	TopicStockLow            = pkgkafka.Topic("inventory", "stock.low")
	TopicTransactionCreated  = pkgkafka.Topic("inventory", "transaction.created")
	TopicTransactionApproved = pkgkafka.Topic("inventory", "transaction.approved")
	TopicTransactionRejected = pkgkafka.Topic("inventory", "transaction.rejected")
	TopicTransactionVoided   = pkgkafka.Topic("inventory", "transaction.voided")
	TopicVendorLedgerPosted  = pkgkafka.Topic("inventory", "vendor_ledger.posted")
)

// Aggregate types.
const (
	AggregateStockUnit   = "stock_unit"
	AggregateTransaction = "inventory_transaction"
	AggregateVendor      = "vendor"
)

// SourceInventoryEngine identifies events originating from this service.
const SourceInventoryEngine = "inventory-engine"

// StockChangedData is the payload for an inventory.stock.changed event.
type StockChangedData struct {
	MovementID    string          `json:"movement_id"`
	UnitID        string          `json:"unit_id"`
	SKU           string          `json:"sku"`
	MovementType  string          `json:"movement_type"`
	Quantity      int             `json:"quantity"`
	Before        domain.Counters `json:"before"`
	After         domain.Counters `json:"after"`
	ReferenceID   string          `json:"reference_id,omitempty"`
	ReferenceType string          `json:"reference_type"`
	LowStock      bool            `json:"low_stock"`
}

// StockLowData is the payload for an inventory.stock.low event.
type StockLowData struct {
	UnitID    string `json:"unit_id"`
	SKU       string `json:"sku"`
	Fresh     int    `json:"fresh"`
	Threshold int    `json:"threshold"`
}

// TransactionData is the payload for the inventory.transaction.* events.
type TransactionData struct {
	TransactionID string          `json:"transaction_id"`
	InvoiceNo     string          `json:"invoice_no"`
	Type          string          `json:"type"`
	Status        string          `json:"status"`
	VendorID      string          `json:"vendor_id,omitempty"`
	TotalQuantity int             `json:"total_quantity"`
	TotalCost     decimal.Decimal `json:"total_cost"`
	CreatedBy     string          `json:"created_by"`
	ActedBy       string          `json:"acted_by,omitempty"`
	Reason        string          `json:"reason,omitempty"`
}

// LedgerPostedData is the payload for an inventory.vendor_ledger.posted event.
type LedgerPostedData struct {
	EntryID        string          `json:"entry_id"`
	VendorID       string          `json:"vendor_id"`
	EntryType      string          `json:"entry_type"`
	ReferenceID    string          `json:"reference_id"`
	Debit          decimal.Decimal `json:"debit"`
	Credit         decimal.Decimal `json:"credit"`
	RunningBalance decimal.Decimal `json:"running_balance"`
	VendorBalance  decimal.Decimal `json:"vendor_balance"`
}

// Producer publishes inventory domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer for the inventory engine.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishStockChanged publishes an inventory.stock.changed event.
func (p *Producer) PublishStockChanged(ctx context.Context, m *domain.StockMovement, level domain.StockLevel) error {
	data := StockChangedData{
		MovementID:    m.ID,
		UnitID:        m.UnitID,
		SKU:           level.SKU,
		MovementType:  string(m.MovementType),
		Quantity:      m.Quantity,
		Before:        m.Before,
		After:         m.After,
		ReferenceType: m.ReferenceType,
		LowStock:      level.LowStock,
	}
	if m.ReferenceID != nil {
		data.ReferenceID = *m.ReferenceID
	}
	return p.publish(ctx, TopicStockChanged, "stock.changed", m.UnitID, AggregateStockUnit, data)
}

// PublishLowStock publishes an inventory.stock.low event.
func (p *Producer) PublishLowStock(ctx context.Context, level domain.StockLevel, threshold int) error {
	data := StockLowData{
		UnitID:    level.UnitID,
		SKU:       level.SKU,
		Fresh:     level.Fresh,
		Threshold: threshold,
	}
	return p.publish(ctx, TopicStockLow, "stock.low", level.UnitID, AggregateStockUnit, data)
}

// PublishTransaction publishes the inventory.transaction.* event matching
// transition. A pending transition is the creation of the transaction.
func (p *Producer) PublishTransaction(ctx context.Context, transition domain.TransactionStatus, tx *domain.InventoryTransaction) error {
	topic, action, err := transactionTopic(transition)
	if err != nil {
		return err
	}

	data := TransactionData{
		TransactionID: tx.ID,
		InvoiceNo:     tx.InvoiceNo,
		Type:          string(tx.Type),
		Status:        string(tx.Status),
		TotalQuantity: tx.TotalQuantity,
		TotalCost:     tx.TotalCost,
		CreatedBy:     tx.CreatedBy,
	}
	if tx.HasVendor() {
		data.VendorID = *tx.VendorID
	}
	switch transition {
	case domain.StatusApproved:
		data.ActedBy = deref(tx.ApprovedBy)
	case domain.StatusRejected:
		data.ActedBy = deref(tx.RejectedBy)
		data.Reason = deref(tx.RejectionReason)
	case domain.StatusVoided:
		data.ActedBy = deref(tx.VoidedBy)
		data.Reason = deref(tx.VoidReason)
	}

	return p.publish(ctx, topic, action, tx.ID, AggregateTransaction, data)
}

// PublishLedgerPosted publishes an inventory.vendor_ledger.posted event.
func (p *Producer) PublishLedgerPosted(ctx context.Context, e *domain.VendorLedgerEntry, balance decimal.Decimal) error {
	data := LedgerPostedData{
		EntryID:        e.ID,
		VendorID:       e.VendorID,
		EntryType:      string(e.EntryType),
		ReferenceID:    e.ReferenceID,
		Debit:          e.Debit,
		Credit:         e.Credit,
		RunningBalance: e.RunningBalance,
		VendorBalance:  balance,
	}
	return p.publish(ctx, TopicVendorLedgerPosted, "vendor_ledger.posted", e.VendorID, AggregateVendor, data)
}

func (p *Producer) publish(ctx context.Context, topic, eventType, aggregateID, aggregateType string, data any) error {
	event, err := pkgkafka.NewEvent(eventType, aggregateID, aggregateType, SourceInventoryEngine, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", eventType, err)
	}
	event.WithContext(ctx)

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", eventType, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("event_type", eventType),
		slog.String("aggregate_id", aggregateID),
	)
	return nil
}

func transactionTopic(transition domain.TransactionStatus) (topic, action string, err error) {
	switch transition {
	case domain.StatusPending:
		return TopicTransactionCreated, "transaction.created", nil
	case domain.StatusApproved:
		return TopicTransactionApproved, "transaction.approved", nil
	case domain.StatusRejected:
		return TopicTransactionRejected, "transaction.rejected", nil
	case domain.StatusVoided:
		return TopicTransactionVoided, "transaction.voided", nil
	}
	return "", "", fmt.Errorf("no event for transaction status %q", transition)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
