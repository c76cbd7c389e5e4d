package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/myseetara-source/erp-seetara-sub004/internal/domain"
	"github.com/myseetara-source/erp-seetara-sub004/internal/repository"
	apperrors "github.com/myseetara-source/erp-seetara-sub004/pkg/errors"
	"github.com/myseetara-source/erp-seetara-sub004/pkg/logger"
	"github.com/myseetara-source/erp-seetara-sub004/pkg/pagination"
)

// StockService implements the stock mutation operations. Each call locks the unit
// row, checks the counters, writes them back and appends exactly one movement.
type StockService struct {
	store  repository.Store
	events EventPublisher
	cache  ReadCache
	logger *slog.Logger
	opts   Options
}

// NewStockService creates a new stock service. events and cache may be nil.
func NewStockService(store repository.Store, events EventPublisher, cache ReadCache, logger *slog.Logger, opts Options) *StockService {
	return &StockService{
		store:  store,
		events: publisherOrNoop(events),
		cache:  cacheOrNoop(cache),
		logger: loggerOrDefault(logger),
		opts:   opts,
	}
}

// CreateUnitInput describes a new stock unit.
type CreateUnitInput struct {
	SKU               string
	Name              string
	CostPrice         decimal.Decimal
	InitialFresh      int
	LowStockThreshold int
}

// stockChange is a committed counter write, kept for post-commit notifications.
type stockChange struct {
	unit     domain.StockUnit
	movement domain.StockMovement
}

// movementSpec describes the journal row a mutation writes.
type movementSpec struct {
	movementType  domain.MovementType
	referenceID   string
	referenceType string
	reason        string
}

// CreateUnit registers a unit. Initial fresh stock is recorded as an opening movement.
func (s *StockService) CreateUnit(ctx context.Context, in CreateUnitInput) (*domain.StockUnit, error) {
	in.SKU = strings.TrimSpace(in.SKU)
	if in.SKU == "" {
		return nil, apperrors.InvalidInput("sku is required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, apperrors.InvalidInput("name is required")
	}
	if in.InitialFresh < 0 {
		return nil, apperrors.InvalidQuantity("initial fresh stock must be non-negative")
	}
	if in.CostPrice.IsNegative() {
		return nil, apperrors.InvalidInput("cost_price must be non-negative")
	}
	if !domain.IsMoney(in.CostPrice) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("cost_price allows at most %d decimal places", domain.MoneyPlaces))
	}
	if in.LowStockThreshold < 0 {
		return nil, apperrors.InvalidInput("low_stock_threshold must be non-negative")
	}

	ts := now()
	unit := &domain.StockUnit{
		ID:                uuid.New().String(),
		SKU:               in.SKU,
		Name:              strings.TrimSpace(in.Name),
		FreshStock:        in.InitialFresh,
		CostPrice:         in.CostPrice,
		LowStockThreshold: in.LowStockThreshold,
		CreatedAt:         ts,
		UpdatedAt:         ts,
	}

	var opening *domain.StockMovement
	err := s.store.Execute(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Units.Create(ctx, unit); err != nil {
			return fmt.Errorf("create unit: %w", err)
		}
		if unit.FreshStock == 0 {
			return nil
		}
		opening = &domain.StockMovement{
			ID:            uuid.New().String(),
			UnitID:        unit.ID,
			MovementType:  domain.MovementOpening,
			Quantity:      unit.FreshStock,
			After:         unit.Counters(),
			ReferenceType: domain.ReferenceManual,
			Reason:        "opening balance",
			CreatedBy:     logger.ActorIDFromContext(ctx),
			CreatedAt:     ts,
		}
		if err := repos.Movements.Create(ctx, opening); err != nil {
			return fmt.Errorf("record opening movement: %w", err)
		}
		return nil
	})
	observeMutation("create_unit", err)
	if err != nil {
		return nil, err
	}

	if opening != nil {
		s.afterCommit(ctx, []stockChange{{unit: *unit, movement: *opening}})
	}

	s.logger.InfoContext(ctx, "stock unit created",
		slog.String("unit_id", unit.ID),
		slog.String("sku", unit.SKU),
		slog.Int("fresh_stock", unit.FreshStock),
	)
	return unit, nil
}

// Reserve moves qty from fresh into reserved stock for an unconfirmed order.
func (s *StockService) Reserve(ctx context.Context, unitID string, qty int, orderRef string) (*domain.MutationResult, error) {
	if qty <= 0 {
		return nil, apperrors.InvalidQuantity("quantity must be positive")
	}
	spec := movementSpec{movementType: domain.MovementReserved, referenceID: orderRef, referenceType: domain.ReferenceOrder}
	return s.run(ctx, "reserve", unitID, spec, func(u *domain.StockUnit) (domain.Delta, error) {
		if u.FreshStock < qty {
			return domain.Delta{}, apperrors.InsufficientStock(u.ID, qty, u.FreshStock)
		}
		return domain.Delta{Fresh: -qty, Reserved: qty}, nil
	})
}

// Confirm consumes qty of a prior reservation. Fresh stock was already taken at reserve time.
func (s *StockService) Confirm(ctx context.Context, unitID string, qty int, orderRef string) (*domain.MutationResult, error) {
	if qty <= 0 {
		return nil, apperrors.InvalidQuantity("quantity must be positive")
	}
	spec := movementSpec{movementType: domain.MovementConfirmed, referenceID: orderRef, referenceType: domain.ReferenceOrder}
	return s.run(ctx, "confirm", unitID, spec, func(u *domain.StockUnit) (domain.Delta, error) {
		if u.ReservedStock < qty {
			return domain.Delta{}, apperrors.InsufficientStock(u.ID, qty, u.ReservedStock)
		}
		return domain.Delta{Reserved: -qty}, nil
	})
}

// Restore returns qty to fresh stock and releases up to qty of the reservation.
func (s *StockService) Restore(ctx context.Context, unitID string, qty int, orderRef, reason string) (*domain.MutationResult, error) {
	if qty <= 0 {
		return nil, apperrors.InvalidQuantity("quantity must be positive")
	}
	spec := movementSpec{movementType: domain.MovementRestored, referenceID: orderRef, referenceType: domain.ReferenceOrder, reason: reason}
	return s.run(ctx, "restore", unitID, spec, func(u *domain.StockUnit) (domain.Delta, error) {
		return domain.Delta{Fresh: qty, Reserved: -min(qty, u.ReservedStock)}, nil
	})
}

// AdjustDirect corrects fresh stock outside the transaction workflow. The result is
// clamped at zero; the movement records the change actually applied.
func (s *StockService) AdjustDirect(ctx context.Context, unitID string, signedQty int, reason string) (*domain.MutationResult, error) {
	if signedQty == 0 {
		return nil, apperrors.InvalidQuantity("quantity must not be zero")
	}
	if strings.TrimSpace(reason) == "" {
		return nil, apperrors.InvalidInput("reason is required")
	}
	spec := movementSpec{movementType: domain.MovementDirectAdjustment, referenceType: domain.ReferenceManual, reason: reason}
	return s.run(ctx, "adjust_direct", unitID, spec, func(u *domain.StockUnit) (domain.Delta, error) {
		after := max(u.FreshStock+signedQty, 0)
		return domain.Delta{Fresh: after - u.FreshStock}, nil
	})
}

// run executes one single-unit mutation in its own unit of work.
func (s *StockService) run(ctx context.Context, op, unitID string, spec movementSpec, compute func(u *domain.StockUnit) (domain.Delta, error)) (*domain.MutationResult, error) {
	if unitID == "" {
		return nil, apperrors.InvalidInput("unit_id is required")
	}

	var change *stockChange
	err := s.store.Execute(ctx, func(ctx context.Context, repos repository.Repositories) error {
		unit, err := repos.Units.GetForUpdate(ctx, unitID)
		if err != nil {
			return err
		}
		delta, err := compute(unit)
		if err != nil {
			return err
		}
		change, err = s.write(ctx, repos, unit, delta, spec)
		return err
	})
	observeMutation(op, err)
	if err != nil {
		s.logger.WarnContext(ctx, "stock mutation failed",
			slog.String("operation", op),
			slog.String("unit_id", unitID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	s.afterCommit(ctx, []stockChange{*change})

	s.logger.InfoContext(ctx, "stock mutated",
		slog.String("operation", op),
		slog.String("unit_id", unitID),
		slog.Int("quantity", change.movement.Quantity),
		slog.Int("fresh_stock", change.unit.FreshStock),
		slog.Int("reserved_stock", change.unit.ReservedStock),
	)
	return resultOf(change), nil
}

// write applies delta to a locked unit and appends the movement. It rejects any
// delta that would leave a counter negative.
func (s *StockService) write(ctx context.Context, repos repository.Repositories, unit *domain.StockUnit, delta domain.Delta, spec movementSpec) (*stockChange, error) {
	before := unit.Counters()
	after := before.Apply(delta)
	if !after.NonNegative() {
		return nil, insufficient(unit.ID, before, delta)
	}

	ts := now()
	unit.SetCounters(after)
	unit.UpdatedAt = ts
	if err := repos.Units.UpdateCounters(ctx, unit); err != nil {
		return nil, fmt.Errorf("update counters of unit %s: %w", unit.ID, err)
	}

	m := domain.StockMovement{
		ID:            uuid.New().String(),
		UnitID:        unit.ID,
		MovementType:  spec.movementType,
		Quantity:      delta.Quantity(),
		Before:        before,
		After:         after,
		ReferenceType: spec.referenceType,
		Reason:        spec.reason,
		CreatedBy:     logger.ActorIDFromContext(ctx),
		CreatedAt:     ts,
	}
	if spec.referenceID != "" {
		ref := spec.referenceID
		m.ReferenceID = &ref
	}
	if err := repos.Movements.Create(ctx, &m); err != nil {
		return nil, fmt.Errorf("record %s movement: %w", spec.movementType, err)
	}
	return &stockChange{unit: *unit, movement: m}, nil
}

// insufficient reports the first bucket delta would drive below zero.
func insufficient(unitID string, before domain.Counters, delta domain.Delta) error {
	switch {
	case before.Fresh+delta.Fresh < 0:
		return apperrors.InsufficientStock(unitID, -delta.Fresh, before.Fresh)
	case before.Damaged+delta.Damaged < 0:
		return apperrors.InsufficientStock(unitID, -delta.Damaged, before.Damaged)
	default:
		return apperrors.InsufficientStock(unitID, -delta.Reserved, before.Reserved)
	}
}

func resultOf(c *stockChange) *domain.MutationResult {
	return &domain.MutationResult{
		Success:     true,
		UnitID:      c.unit.ID,
		StockBefore: c.movement.Before,
		StockAfter:  c.movement.After,
		MovementID:  c.movement.ID,
	}
}

// applyTransactionDelta applies one transaction item to its unit inside the
// workflow's unit of work. On approval it fills the item's before/after snapshot
// of the affected bucket; on void it applies the inverse of what approval applied.
func (s *StockService) applyTransactionDelta(ctx context.Context, repos repository.Repositories, tx *domain.InventoryTransaction, item *domain.InventoryTransactionItem, void bool) (*stockChange, error) {
	unit, err := repos.Units.GetForUpdate(ctx, item.UnitID)
	if err != nil {
		return nil, err
	}

	spec := movementSpec{
		movementType:  tx.Type.MovementType(),
		referenceID:   tx.ID,
		referenceType: domain.ReferenceTransaction,
		reason:        tx.InvoiceNo,
	}

	var delta domain.Delta
	if void {
		d, ok := domain.VoidDelta(tx.Type, item)
		if !ok {
			return nil, apperrors.Internal(fmt.Errorf("item %s of transaction %s has no approval snapshot", item.ID, tx.ID))
		}
		delta = d
		spec.movementType = domain.MovementVoid
	} else {
		delta = domain.ApprovalDelta(tx.Type, item, unit.Counters())
	}

	change, err := s.write(ctx, repos, unit, delta, spec)
	if err != nil {
		return nil, err
	}

	if !void {
		bucket := domain.AffectedBucket(tx.Type, item.SourceType)
		b, a := change.movement.Before.Bucket(bucket), change.movement.After.Bucket(bucket)
		item.StockBefore, item.StockAfter = &b, &a
	}
	return change, nil
}

// afterCommit invalidates cached levels and publishes change and low stock events.
func (s *StockService) afterCommit(ctx context.Context, changes []stockChange) {
	if len(changes) == 0 {
		return
	}
	ids := make([]string, 0, len(changes))
	for i := range changes {
		ids = append(ids, changes[i].unit.ID)
	}
	s.cache.InvalidateUnits(ctx, ids...)

	for i := range changes {
		c := &changes[i]
		level := domain.LevelOf(&c.unit, s.opts.DefaultLowStockThreshold)
		if err := s.events.PublishStockChanged(ctx, &c.movement, level); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish inventory.stock.changed event",
				slog.String("unit_id", c.unit.ID),
				slog.String("error", err.Error()),
			)
		}
		if level.LowStock && c.movement.After.Fresh < c.movement.Before.Fresh {
			if err := s.events.PublishLowStock(ctx, level, s.threshold(&c.unit)); err != nil {
				s.logger.ErrorContext(ctx, "failed to publish inventory.stock.low event",
					slog.String("unit_id", c.unit.ID),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

func (s *StockService) threshold(u *domain.StockUnit) int {
	if u.LowStockThreshold > 0 {
		return u.LowStockThreshold
	}
	return s.opts.DefaultLowStockThreshold
}

// GetStockLevel returns the unit's counters. It never writes.
func (s *StockService) GetStockLevel(ctx context.Context, unitID string) (*domain.StockLevel, error) {
	if level, ok := s.cache.GetStockLevel(ctx, unitID); ok {
		return level, nil
	}

	var unit *domain.StockUnit
	err := s.store.View(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		unit, err = repos.Units.GetByID(ctx, unitID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get stock level: %w", err)
	}

	level := domain.LevelOf(unit, s.opts.DefaultLowStockThreshold)
	s.cache.SetStockLevel(ctx, &level)
	return &level, nil
}

// GetUnit returns the full unit record.
func (s *StockService) GetUnit(ctx context.Context, unitID string) (*domain.StockUnit, error) {
	var unit *domain.StockUnit
	err := s.store.View(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		unit, err = repos.Units.GetByID(ctx, unitID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get unit: %w", err)
	}
	return unit, nil
}

// ListMovements returns the unit's journal, newest first.
func (s *StockService) ListMovements(ctx context.Context, unitID string, page pagination.Params) ([]domain.StockMovement, int, error) {
	var (
		movements []domain.StockMovement
		total     int
	)
	err := s.store.View(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if _, err := repos.Units.GetByID(ctx, unitID); err != nil {
			return err
		}
		var err error
		movements, total, err = repos.Movements.ListByUnit(ctx, unitID, page)
		return err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list movements: %w", err)
	}
	return movements, total, nil
}

// ListLowStock returns units at or below their low stock threshold.
func (s *StockService) ListLowStock(ctx context.Context, page pagination.Params) ([]domain.StockUnit, int, error) {
	var (
		units []domain.StockUnit
		total int
	)
	err := s.store.View(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		units, total, err = repos.Units.ListLowStock(ctx, s.opts.DefaultLowStockThreshold, page)
		return err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list low stock: %w", err)
	}
	return units, total, nil
}
