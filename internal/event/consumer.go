package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/myseetara-source/erp-seetara-sub004/internal/domain"
	apperrors "github.com/myseetara-source/erp-seetara-sub004/pkg/errors"
	pkgkafka "github.com/myseetara-source/erp-seetara-sub004/pkg/kafka"
)

// Kafka topics consumed by the inventory engine.
var (
	TopicOrderPlaced    = pkgkafka.Topic("order", "placed")
	TopicOrderDelivered = pkgkafka.Topic("order", "delivered")
	TopicOrderCanceled  = pkgkafka.Topic("order", "canceled")
)

// StockService defines the stock mutations required by the order consumer.
type StockService interface {
	Reserve(ctx context.Context, unitID string, qty int, orderRef string) (*domain.MutationResult, error)
	Confirm(ctx context.Context, unitID string, qty int, orderRef string) (*domain.MutationResult, error)
	Restore(ctx context.Context, unitID string, qty int, orderRef, reason string) (*domain.MutationResult, error)
}

// OrderLine is one unit and quantity of an order.
type OrderLine struct {
	UnitID   string `json:"unit_id"`
	Quantity int    `json:"quantity"`
}

// OrderData is the payload of the order.placed, order.delivered and
// order.canceled events.
type OrderData struct {
	OrderID string      `json:"order_id"`
	Lines   []OrderLine `json:"lines"`
	Reason  string      `json:"reason,omitempty"`
}

// Consumer processes order events against the stock counters.
type Consumer struct {
	logger  *slog.Logger
	service StockService
}

// NewConsumer creates a new order event consumer.
func NewConsumer(service StockService, logger *slog.Logger) *Consumer {
	return &Consumer{
		service: service,
		logger:  logger,
	}
}

// Handlers maps each consumed topic to its handler.
func (c *Consumer) Handlers() map[string]pkgkafka.Handler {
	return map[string]pkgkafka.Handler{
		TopicOrderPlaced:    c.HandleOrderPlaced,
		TopicOrderDelivered: c.HandleOrderDelivered,
		TopicOrderCanceled:  c.HandleOrderCanceled,
	}
}

// HandleOrderPlaced reserves every line of the order. If a line cannot be
// reserved, the lines reserved before it are restored and the error returned.
func (c *Consumer) HandleOrderPlaced(ctx context.Context, event *pkgkafka.Event) error {
	data, err := decodeOrder(event)
	if err != nil {
		return err
	}

	c.logger.InfoContext(ctx, "processing order.placed event",
		slog.String("order_id", data.OrderID),
		slog.Int("lines", len(data.Lines)),
	)

	for i, line := range data.Lines {
		if _, err := c.service.Reserve(ctx, line.UnitID, line.Quantity, data.OrderID); err != nil {
			c.compensate(ctx, data.OrderID, data.Lines[:i])
			return fmt.Errorf("reserve unit %s for order %s: %w", line.UnitID, data.OrderID, err)
		}
	}

	c.logger.InfoContext(ctx, "stock reserved for order", slog.String("order_id", data.OrderID))
	return nil
}

// HandleOrderDelivered confirms the reservation of every line.
func (c *Consumer) HandleOrderDelivered(ctx context.Context, event *pkgkafka.Event) error {
	data, err := decodeOrder(event)
	if err != nil {
		return err
	}

	c.logger.InfoContext(ctx, "processing order.delivered event", slog.String("order_id", data.OrderID))

	return c.eachLine(ctx, data, "confirm", func(line OrderLine) error {
		_, err := c.service.Confirm(ctx, line.UnitID, line.Quantity, data.OrderID)
		return err
	})
}

// HandleOrderCanceled returns every line to fresh stock.
func (c *Consumer) HandleOrderCanceled(ctx context.Context, event *pkgkafka.Event) error {
	data, err := decodeOrder(event)
	if err != nil {
		return err
	}

	reason := data.Reason
	if reason == "" {
		reason = "order canceled"
	}

	c.logger.InfoContext(ctx, "processing order.canceled event", slog.String("order_id", data.OrderID))

	return c.eachLine(ctx, data, "restore", func(line OrderLine) error {
		_, err := c.service.Restore(ctx, line.UnitID, line.Quantity, data.OrderID, reason)
		return err
	})
}

// eachLine applies fn to every line, continuing past failures, and joins the errors.
func (c *Consumer) eachLine(ctx context.Context, data *OrderData, op string, fn func(OrderLine) error) error {
	var errs []error
	for _, line := range data.Lines {
		if err := fn(line); err != nil {
			c.logger.ErrorContext(ctx, "order line failed",
				slog.String("operation", op),
				slog.String("order_id", data.OrderID),
				slog.String("unit_id", line.UnitID),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s unit %s for order %s: %w", op, line.UnitID, data.OrderID, err))
		}
	}
	return errors.Join(errs...)
}

func (c *Consumer) compensate(ctx context.Context, orderID string, reserved []OrderLine) {
	for _, line := range reserved {
		if _, err := c.service.Restore(ctx, line.UnitID, line.Quantity, orderID, "order placement rolled back"); err != nil {
			c.logger.ErrorContext(ctx, "failed to restore reserved line",
				slog.String("order_id", orderID),
				slog.String("unit_id", line.UnitID),
				slog.Int("quantity", line.Quantity),
				slog.String("error", err.Error()),
			)
		}
	}
}

func decodeOrder(event *pkgkafka.Event) (*OrderData, error) {
	var data OrderData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return nil, apperrors.Wrap(apperrors.InvalidInput("malformed order payload"), fmt.Sprintf("unmarshal %s data: %v", event.EventType, err))
	}
	if data.OrderID == "" {
		return nil, apperrors.InvalidInput("order_id is required")
	}
	if len(data.Lines) == 0 {
		return nil, apperrors.InvalidInput("order has no lines")
	}
	for i, line := range data.Lines {
		if line.UnitID == "" || line.Quantity <= 0 {
			return nil, apperrors.InvalidInput(fmt.Sprintf("order %s line %d: unit_id and a positive quantity are required", data.OrderID, i))
		}
	}
	return &data, nil
}

// IsRetryable reports whether a handler error may succeed on another attempt.
// Domain rejections such as insufficient stock or an unknown unit are final.
func IsRetryable(err error) bool {
	if apperrors.IsRetryable(err) {
		return true
	}
	var appErr *apperrors.AppError
	return !errors.As(err, &appErr)
}
