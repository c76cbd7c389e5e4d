package event

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myseetara-source/erp-seetara-sub004/internal/domain"
	"github.com/myseetara-source/erp-seetara-sub004/internal/repository/memory"
	"github.com/myseetara-source/erp-seetara-sub004/internal/service"
	apperrors "github.com/myseetara-source/erp-seetara-sub004/pkg/errors"
	pkgkafka "github.com/myseetara-source/erp-seetara-sub004/pkg/kafka"
	"github.com/myseetara-source/erp-seetara-sub004/pkg/logger"
)

type captureWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *captureWriter) Close() error { return nil }

func (w *captureWriter) last(t *testing.T) (kafka.Message, *pkgkafka.Event) {
	t.Helper()
	w.mu.Lock()
	defer w.mu.Unlock()
	require.NotEmpty(t, w.msgs)
	msg := w.msgs[len(w.msgs)-1]
	event, err := pkgkafka.UnmarshalEvent(msg.Value)
	require.NoError(t, err)
	return msg, event
}

func newTestProducer() (*Producer, *captureWriter) {
	w := &captureWriter{}
	log := logger.NewDiscard()
	return NewProducer(pkgkafka.NewProducerWithWriter(w, log), log), w
}

func strPtr(s string) *string { return &s }

func TestProducer_PublishStockChanged(t *testing.T) {
	p, w := newTestProducer()
	ctx := logger.WithActorID(context.Background(), "clerk-1")

	m := &domain.StockMovement{
		ID:            "mov-1",
		UnitID:        "unit-1",
		MovementType:  domain.MovementReserved,
		Quantity:      -3,
		Before:        domain.Counters{Fresh: 10},
		After:         domain.Counters{Fresh: 7, Reserved: 3},
		ReferenceID:   strPtr("order-1"),
		ReferenceType: domain.ReferenceOrder,
	}
	require.NoError(t, p.PublishStockChanged(ctx, m, domain.StockLevel{UnitID: "unit-1", SKU: "SKU-1", Fresh: 7, LowStock: true}))

	msg, event := w.last(t)
	assert.Equal(t, "erp.inventory.stock.changed", msg.Topic)
	assert.Equal(t, "stock.changed", event.EventType)
	assert.Equal(t, "unit-1", event.AggregateID)
	assert.Equal(t, SourceInventoryEngine, event.Source)
	assert.Equal(t, "clerk-1", event.Metadata[pkgkafka.MetadataActorID])

	var data StockChangedData
	require.NoError(t, event.UnmarshalData(&data))
	assert.Equal(t, "order-1", data.ReferenceID)
	assert.Equal(t, domain.Counters{Fresh: 7, Reserved: 3}, data.After)
	assert.True(t, data.LowStock)
}

func TestProducer_PublishLowStock(t *testing.T) {
	p, w := newTestProducer()
	require.NoError(t, p.PublishLowStock(context.Background(), domain.StockLevel{UnitID: "unit-1", SKU: "SKU-1", Fresh: 4}, 10))

	msg, event := w.last(t)
	assert.Equal(t, TopicStockLow, msg.Topic)
	var data StockLowData
	require.NoError(t, event.UnmarshalData(&data))
	assert.Equal(t, StockLowData{UnitID: "unit-1", SKU: "SKU-1", Fresh: 4, Threshold: 10}, data)
}

func TestProducer_PublishTransaction(t *testing.T) {
	tx := &domain.InventoryTransaction{
		ID:              "tx-1",
		InvoiceNo:       "PUR-000001",
		Type:            domain.TransactionPurchase,
		VendorID:        strPtr("vendor-1"),
		TotalQuantity:   5,
		TotalCost:       decimal.NewFromInt(50),
		CreatedBy:       "maker-1",
		ApprovedBy:      strPtr("checker-1"),
		RejectedBy:      strPtr("checker-2"),
		RejectionReason: strPtr("wrong vendor"),
		VoidedBy:        strPtr("checker-3"),
		VoidReason:      strPtr("duplicate"),
	}

	tests := []struct {
		transition domain.TransactionStatus
		topic      string
		actedBy    string
		reason     string
	}{
		{domain.StatusPending, "erp.inventory.transaction.created", "", ""},
		{domain.StatusApproved, "erp.inventory.transaction.approved", "checker-1", ""},
		{domain.StatusRejected, "erp.inventory.transaction.rejected", "checker-2", "wrong vendor"},
		{domain.StatusVoided, "erp.inventory.transaction.voided", "checker-3", "duplicate"},
	}
	for _, tt := range tests {
		t.Run(string(tt.transition), func(t *testing.T) {
			p, w := newTestProducer()
			tx.Status = tt.transition
			require.NoError(t, p.PublishTransaction(context.Background(), tt.transition, tx))

			msg, event := w.last(t)
			assert.Equal(t, tt.topic, msg.Topic)
			assert.Equal(t, []byte("tx-1"), msg.Key)

			var data TransactionData
			require.NoError(t, event.UnmarshalData(&data))
			assert.Equal(t, "PUR-000001", data.InvoiceNo)
			assert.Equal(t, "vendor-1", data.VendorID)
			assert.Equal(t, tt.actedBy, data.ActedBy)
			assert.Equal(t, tt.reason, data.Reason)
			assert.True(t, data.TotalCost.Equal(decimal.NewFromInt(50)))
		})
	}
}

func TestProducer_PublishTransaction_UnknownStatus(t *testing.T) {
	p, _ := newTestProducer()
	err := p.PublishTransaction(context.Background(), domain.TransactionStatus("archived"), &domain.InventoryTransaction{ID: "tx-1"})
	require.Error(t, err)
}

func TestProducer_PublishLedgerPosted(t *testing.T) {
	p, w := newTestProducer()
	entry := &domain.VendorLedgerEntry{
		ID:             "le-1",
		VendorID:       "vendor-1",
		EntryType:      domain.EntryPurchase,
		ReferenceID:    "tx-1",
		Debit:          decimal.RequireFromString("125.50"),
		RunningBalance: decimal.RequireFromString("125.50"),
	}
	require.NoError(t, p.PublishLedgerPosted(context.Background(), entry, entry.RunningBalance))

	msg, event := w.last(t)
	assert.Equal(t, TopicVendorLedgerPosted, msg.Topic)
	assert.Equal(t, "vendor-1", event.AggregateID)
	var data LedgerPostedData
	require.NoError(t, event.UnmarshalData(&data))
	assert.True(t, data.VendorBalance.Equal(decimal.RequireFromString("125.50")))
	assert.Equal(t, "purchase", data.EntryType)
}

func TestProducer_BrokerError(t *testing.T) {
	p, w := newTestProducer()
	w.err = errors.New("broker down")
	err := p.PublishLowStock(context.Background(), domain.StockLevel{UnitID: "unit-1"}, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stock.low")
}

// --- Consumer ---

type consumerHarness struct {
	stock    *service.StockService
	consumer *Consumer
}

func newConsumerHarness(t *testing.T) *consumerHarness {
	t.Helper()
	log := logger.NewDiscard()
	stock := service.NewStockService(memory.NewStore(0), nil, nil, log, service.DefaultOptions())
	return &consumerHarness{stock: stock, consumer: NewConsumer(stock, log)}
}

func (h *consumerHarness) unit(t *testing.T, sku string, fresh int) string {
	t.Helper()
	u, err := h.stock.CreateUnit(context.Background(), service.CreateUnitInput{SKU: sku, Name: sku, InitialFresh: fresh})
	require.NoError(t, err)
	return u.ID
}

func (h *consumerHarness) counters(t *testing.T, id string) domain.Counters {
	t.Helper()
	u, err := h.stock.GetUnit(context.Background(), id)
	require.NoError(t, err)
	return u.Counters()
}

func orderEvent(t *testing.T, eventType string, data any) *pkgkafka.Event {
	t.Helper()
	event, err := pkgkafka.NewEvent(eventType, "order-1", "order", "order-service", data)
	require.NoError(t, err)
	return event
}

func TestConsumer_OrderLifecycle(t *testing.T) {
	h := newConsumerHarness(t)
	ctx := context.Background()
	a := h.unit(t, "SKU-A", 10)
	b := h.unit(t, "SKU-B", 5)

	order := OrderData{OrderID: "order-1", Lines: []OrderLine{{UnitID: a, Quantity: 4}, {UnitID: b, Quantity: 5}}}
	require.NoError(t, h.consumer.HandleOrderPlaced(ctx, orderEvent(t, "order.placed", order)))
	assert.Equal(t, domain.Counters{Fresh: 6, Reserved: 4}, h.counters(t, a))
	assert.Equal(t, domain.Counters{Fresh: 0, Reserved: 5}, h.counters(t, b))

	require.NoError(t, h.consumer.HandleOrderDelivered(ctx, orderEvent(t, "order.delivered", order)))
	assert.Equal(t, domain.Counters{Fresh: 6}, h.counters(t, a))
	assert.Equal(t, domain.Counters{Fresh: 0}, h.counters(t, b))
}

func TestConsumer_OrderCanceled_RestoresReservation(t *testing.T) {
	h := newConsumerHarness(t)
	ctx := context.Background()
	a := h.unit(t, "SKU-A", 10)

	order := OrderData{OrderID: "order-1", Lines: []OrderLine{{UnitID: a, Quantity: 4}}}
	require.NoError(t, h.consumer.HandleOrderPlaced(ctx, orderEvent(t, "order.placed", order)))
	require.NoError(t, h.consumer.HandleOrderCanceled(ctx, orderEvent(t, "order.canceled", order)))
	assert.Equal(t, domain.Counters{Fresh: 10}, h.counters(t, a))
}

func TestConsumer_OrderPlaced_CompensatesOnShortLine(t *testing.T) {
	h := newConsumerHarness(t)
	ctx := context.Background()
	a := h.unit(t, "SKU-A", 10)
	b := h.unit(t, "SKU-B", 2)

	order := OrderData{OrderID: "order-1", Lines: []OrderLine{{UnitID: a, Quantity: 4}, {UnitID: b, Quantity: 3}}}
	err := h.consumer.HandleOrderPlaced(ctx, orderEvent(t, "order.placed", order))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInsufficientStock)
	assert.False(t, IsRetryable(err))

	assert.Equal(t, domain.Counters{Fresh: 10}, h.counters(t, a))
	assert.Equal(t, domain.Counters{Fresh: 2}, h.counters(t, b))
}

func TestConsumer_OrderDelivered_PartialFailureJoined(t *testing.T) {
	h := newConsumerHarness(t)
	ctx := context.Background()
	a := h.unit(t, "SKU-A", 10)
	b := h.unit(t, "SKU-B", 10)

	placed := OrderData{OrderID: "order-1", Lines: []OrderLine{{UnitID: a, Quantity: 2}}}
	require.NoError(t, h.consumer.HandleOrderPlaced(ctx, orderEvent(t, "order.placed", placed)))

	delivered := OrderData{OrderID: "order-1", Lines: []OrderLine{{UnitID: a, Quantity: 2}, {UnitID: b, Quantity: 1}}}
	err := h.consumer.HandleOrderDelivered(ctx, orderEvent(t, "order.delivered", delivered))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInsufficientStock)
	assert.Equal(t, domain.Counters{Fresh: 8}, h.counters(t, a), "valid line still confirmed")
}

func TestConsumer_InvalidPayloads(t *testing.T) {
	h := newConsumerHarness(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		event *pkgkafka.Event
	}{
		{"malformed json", &pkgkafka.Event{EventType: "order.placed", Data: []byte(`{"order_id": 7`)}},
		{"missing order id", orderEvent(t, "order.placed", OrderData{Lines: []OrderLine{{UnitID: "u", Quantity: 1}}})},
		{"no lines", orderEvent(t, "order.placed", OrderData{OrderID: "order-1"})},
		{"zero quantity", orderEvent(t, "order.placed", OrderData{OrderID: "order-1", Lines: []OrderLine{{UnitID: "u"}}})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.consumer.HandleOrderPlaced(ctx, tt.event)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
			assert.False(t, IsRetryable(err))
		})
	}
}

func TestConsumer_Handlers(t *testing.T) {
	h := newConsumerHarness(t)
	handlers := h.consumer.Handlers()
	assert.Len(t, handlers, 3)
	for _, topic := range []string{"erp.order.placed", "erp.order.delivered", "erp.order.canceled"} {
		assert.Contains(t, handlers, topic)
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(errors.New("connection reset")))
	assert.True(t, IsRetryable(apperrors.ConcurrentModification(errors.New("lock timeout"))))
	assert.False(t, IsRetryable(apperrors.NotFound("stock unit", "u-1")))
	assert.False(t, IsRetryable(apperrors.InsufficientStock("u-1", 5, 1)))
}
