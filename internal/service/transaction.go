package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/myseetara-source/erp-seetara-sub004/internal/domain"
	"github.com/myseetara-source/erp-seetara-sub004/internal/repository"
	apperrors "github.com/myseetara-source/erp-seetara-sub004/pkg/errors"
	"github.com/myseetara-source/erp-seetara-sub004/pkg/pagination"
	"github.com/myseetara-source/erp-seetara-sub004/pkg/tracing"
)

// TransactionService runs the maker-checker workflow over inventory transactions.
// Approval and void apply every item, the journal rows and the ledger posting in
// one unit of work. Locks are always taken in the same order: transaction header,
// units sorted by id, then the vendor.
type TransactionService struct {
	store  repository.Store
	stock  *StockService
	ledger *LedgerService
	locker Locker
	events EventPublisher
	logger *slog.Logger
	opts   Options
}

// NewTransactionService creates a new transaction service. locker and events may be nil.
func NewTransactionService(
	store repository.Store,
	stock *StockService,
	ledger *LedgerService,
	locker Locker,
	events EventPublisher,
	logger *slog.Logger,
	opts Options,
) *TransactionService {
	return &TransactionService{
		store:  store,
		stock:  stock,
		ledger: ledger,
		locker: locker,
		events: publisherOrNoop(events),
		logger: loggerOrDefault(logger),
		opts:   opts,
	}
}

// ItemInput is one line of a new transaction.
type ItemInput struct {
	UnitID     string
	Quantity   int
	UnitCost   decimal.Decimal
	SourceType domain.SourceType
}

// CreateTransactionInput describes a new transaction. Approve asks for
// straight-through approval by the maker.
type CreateTransactionInput struct {
	Type      domain.TransactionType
	VendorID  string
	Items     []ItemInput
	Notes     string
	CreatedBy string
	Approve   bool
}

// transition is what a committed workflow step leaves for post-commit work.
type transition struct {
	tx      *domain.InventoryTransaction
	changes []stockChange
	post    *ledgerPost
}

func (s *TransactionService) validate(in *CreateTransactionInput) error {
	if !in.Type.IsValid() {
		return apperrors.InvalidInput(fmt.Sprintf("unknown transaction type %q", in.Type))
	}
	if strings.TrimSpace(in.CreatedBy) == "" {
		return apperrors.InvalidInput("created_by is required")
	}
	if len(in.Items) == 0 {
		return apperrors.InvalidInput("at least one item is required")
	}
	if in.Approve && !s.opts.AllowStraightThrough {
		return apperrors.InvalidInput("straight-through approval is disabled")
	}
	for i := range in.Items {
		item := &in.Items[i]
		if item.UnitID == "" {
			return apperrors.InvalidInput(fmt.Sprintf("item %d: unit_id is required", i))
		}
		if item.Quantity == 0 {
			return apperrors.InvalidQuantity(fmt.Sprintf("item %d: quantity must not be zero", i))
		}
		if item.UnitCost.IsNegative() {
			return apperrors.InvalidInput(fmt.Sprintf("item %d: unit_cost must be non-negative", i))
		}
		if !domain.IsMoney(item.UnitCost) {
			return apperrors.InvalidInput(fmt.Sprintf("item %d: unit_cost allows at most %d decimal places", i, domain.MoneyPlaces))
		}
		if item.SourceType == "" {
			item.SourceType = domain.SourceFresh
		}
		if !item.SourceType.IsValid() {
			return apperrors.InvalidInput(fmt.Sprintf("item %d: unknown source_type %q", i, item.SourceType))
		}
		if item.SourceType == domain.SourceDamaged && in.Type != domain.TransactionPurchaseReturn {
			return apperrors.InvalidInput(fmt.Sprintf("item %d: only purchase returns may draw from damaged stock", i))
		}
	}
	return nil
}

// Create records a new transaction as pending, or approves it in the same unit of
// work when straight-through approval is requested.
func (s *TransactionService) Create(ctx context.Context, in CreateTransactionInput) (*domain.InventoryTransaction, error) {
	if err := s.validate(&in); err != nil {
		return nil, err
	}

	ts := now()
	tx := &domain.InventoryTransaction{
		ID:        uuid.New().String(),
		Type:      in.Type,
		Status:    domain.StatusPending,
		Notes:     in.Notes,
		CreatedBy: in.CreatedBy,
		Items:     make([]domain.InventoryTransactionItem, len(in.Items)),
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	if in.VendorID != "" {
		vendorID := in.VendorID
		tx.VendorID = &vendorID
	}
	for i, item := range in.Items {
		tx.Items[i] = domain.InventoryTransactionItem{
			ID:            uuid.New().String(),
			TransactionID: tx.ID,
			UnitID:        item.UnitID,
			Quantity:      item.Quantity,
			UnitCost:      item.UnitCost,
			SourceType:    item.SourceType,
		}
	}
	tx.TotalQuantity, tx.TotalCost = domain.ComputeTotals(tx.Items)

	var result transition
	err := s.store.Execute(ctx, func(ctx context.Context, repos repository.Repositories) error {
		for i := range tx.Items {
			if _, err := repos.Units.GetByID(ctx, tx.Items[i].UnitID); err != nil {
				return err
			}
		}
		if tx.HasVendor() {
			if _, err := repos.Vendors.GetByID(ctx, *tx.VendorID); err != nil {
				return err
			}
		}

		invoiceNo, err := repos.Transactions.NextInvoiceNo(ctx, tx.Type)
		if err != nil {
			return fmt.Errorf("allocate invoice number: %w", err)
		}
		tx.InvoiceNo = invoiceNo

		if err := repos.Transactions.Create(ctx, tx); err != nil {
			return fmt.Errorf("create transaction: %w", err)
		}
		result.tx = tx
		if !in.Approve {
			return nil
		}
		return s.approveLocked(ctx, repos, tx, in.CreatedBy, &result)
	})
	if err != nil {
		inventoryTransactionsTotal.WithLabelValues(string(in.Type), "create_failed").Inc()
		return nil, err
	}

	inventoryTransactionsTotal.WithLabelValues(string(tx.Type), "created").Inc()
	s.publish(ctx, domain.StatusPending, tx)
	if in.Approve {
		s.finish(ctx, domain.StatusApproved, &result)
	}

	s.logger.InfoContext(ctx, "inventory transaction created",
		slog.String("transaction_id", tx.ID),
		slog.String("invoice_no", tx.InvoiceNo),
		slog.String("type", string(tx.Type)),
		slog.String("status", string(tx.Status)),
		slog.Int("total_quantity", tx.TotalQuantity),
		slog.String("total_cost", tx.TotalCost.String()),
	)
	return tx, nil
}

// Approve applies a pending transaction: stock deltas, journal rows and the vendor
// ledger posting. Any failure leaves the transaction pending and nothing applied.
func (s *TransactionService) Approve(ctx context.Context, id, approverID string) (*domain.InventoryTransaction, error) {
	if strings.TrimSpace(approverID) == "" {
		return nil, apperrors.InvalidInput("approver is required")
	}
	return s.transition(ctx, id, domain.StatusApproved, func(ctx context.Context, repos repository.Repositories, tx *domain.InventoryTransaction, out *transition) error {
		if tx.Status != domain.StatusPending {
			return apperrors.NotPending(tx.ID, string(tx.Status))
		}
		if err := s.checkChecker(tx, approverID); err != nil {
			return err
		}
		return s.approveLocked(ctx, repos, tx, approverID, out)
	})
}

// Reject closes a pending transaction without any stock or ledger effect.
func (s *TransactionService) Reject(ctx context.Context, id, rejecterID, reason string) (*domain.InventoryTransaction, error) {
	if strings.TrimSpace(rejecterID) == "" {
		return nil, apperrors.InvalidInput("rejecter is required")
	}
	if strings.TrimSpace(reason) == "" {
		return nil, apperrors.InvalidInput("reason is required")
	}
	return s.transition(ctx, id, domain.StatusRejected, func(ctx context.Context, repos repository.Repositories, tx *domain.InventoryTransaction, _ *transition) error {
		if tx.Status != domain.StatusPending {
			return apperrors.NotPending(tx.ID, string(tx.Status))
		}
		if err := s.checkChecker(tx, rejecterID); err != nil {
			return err
		}
		ts := now()
		tx.Status = domain.StatusRejected
		tx.RejectedBy = &rejecterID
		tx.RejectedAt = &ts
		tx.RejectionReason = &reason
		tx.UpdatedAt = ts
		return repos.Transactions.Update(ctx, tx)
	})
}

// Void reverses an approved transaction: the exact inverse of every item delta and
// an offsetting ledger entry. A transaction can be voided once.
func (s *TransactionService) Void(ctx context.Context, id, voiderID, reason string) (*domain.InventoryTransaction, error) {
	if strings.TrimSpace(voiderID) == "" {
		return nil, apperrors.InvalidInput("voider is required")
	}
	if strings.TrimSpace(reason) == "" {
		return nil, apperrors.InvalidInput("reason is required")
	}
	return s.transition(ctx, id, domain.StatusVoided, func(ctx context.Context, repos repository.Repositories, tx *domain.InventoryTransaction, out *transition) error {
		if tx.Status != domain.StatusApproved {
			return apperrors.NotApproved(tx.ID, string(tx.Status))
		}
		if err := s.applyItems(ctx, repos, tx, true, out); err != nil {
			return err
		}
		post, err := s.ledger.syncTransaction(ctx, repos, tx, true)
		if err != nil {
			return err
		}
		out.post = post

		ts := now()
		tx.Status = domain.StatusVoided
		tx.VoidedBy = &voiderID
		tx.VoidedAt = &ts
		tx.VoidReason = &reason
		tx.UpdatedAt = ts
		return repos.Transactions.Update(ctx, tx)
	})
}

type stepFunc func(ctx context.Context, repos repository.Repositories, tx *domain.InventoryTransaction, out *transition) error

// transition locks the header and runs step in one unit of work, guarded by the
// cross-instance lock when one is configured.
func (s *TransactionService) transition(ctx context.Context, id string, target domain.TransactionStatus, step stepFunc) (_ *domain.InventoryTransaction, err error) {
	if id == "" {
		return nil, apperrors.InvalidInput("transaction id is required")
	}

	ctx, span := tracing.Start(ctx, tracerName, "inventory_transaction."+string(target),
		attribute.String("transaction.id", id),
	)
	defer tracing.End(span, &err)

	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, "inventory_tx:"+id)
		if err != nil {
			return nil, err
		}
		defer release(context.WithoutCancel(ctx))
	}

	var result transition
	err = s.store.Execute(ctx, func(ctx context.Context, repos repository.Repositories) error {
		tx, err := repos.Transactions.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		result.tx = tx
		return step(ctx, repos, tx, &result)
	})
	if err != nil {
		s.logger.WarnContext(ctx, "inventory transaction transition failed",
			slog.String("transaction_id", id),
			slog.String("target", string(target)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	s.finish(ctx, target, &result)
	s.logger.InfoContext(ctx, "inventory transaction "+string(target),
		slog.String("transaction_id", result.tx.ID),
		slog.String("invoice_no", result.tx.InvoiceNo),
		slog.String("type", string(result.tx.Type)),
	)
	return result.tx, nil
}

func (s *TransactionService) checkChecker(tx *domain.InventoryTransaction, checker string) error {
	if s.opts.RequireDistinctChecker && checker == tx.CreatedBy {
		return apperrors.InvalidInput("the checker must differ from the maker of the transaction")
	}
	return nil
}

// approveLocked applies every item and the ledger posting to a header the caller
// already holds, then marks it approved.
func (s *TransactionService) approveLocked(ctx context.Context, repos repository.Repositories, tx *domain.InventoryTransaction, approverID string, out *transition) error {
	if err := s.applyItems(ctx, repos, tx, false, out); err != nil {
		return err
	}
	post, err := s.ledger.syncTransaction(ctx, repos, tx, false)
	if err != nil {
		return err
	}
	out.post = post

	ts := now()
	tx.Status = domain.StatusApproved
	tx.ApprovedBy = &approverID
	tx.ApprovedAt = &ts
	tx.UpdatedAt = ts
	if err := repos.Transactions.Update(ctx, tx); err != nil {
		return fmt.Errorf("mark transaction approved: %w", err)
	}
	return nil
}

// applyItems locks every unit of tx in id order, then applies the items in
// document order, or in reverse order for a void so clamped adjustments unwind
// against the counters they were recorded on. The first failing item aborts
// the whole unit of work.
func (s *TransactionService) applyItems(ctx context.Context, repos repository.Repositories, tx *domain.InventoryTransaction, void bool, out *transition) error {
	unitIDs := make([]string, 0, len(tx.Items))
	for i := range tx.Items {
		unitIDs = append(unitIDs, tx.Items[i].UnitID)
	}
	slices.Sort(unitIDs)
	for _, id := range slices.Compact(unitIDs) {
		if _, err := repos.Units.GetForUpdate(ctx, id); err != nil {
			return err
		}
	}

	out.changes = make([]stockChange, 0, len(tx.Items))
	for n := range tx.Items {
		i := n
		if void {
			i = len(tx.Items) - 1 - n
		}
		change, err := s.stock.applyTransactionDelta(ctx, repos, tx, &tx.Items[i], void)
		if err != nil {
			return fmt.Errorf("item %d (unit %s): %w", i, tx.Items[i].UnitID, err)
		}
		out.changes = append(out.changes, *change)
	}
	return nil
}

// finish runs the post-commit side effects of a transition.
func (s *TransactionService) finish(ctx context.Context, target domain.TransactionStatus, t *transition) {
	inventoryTransactionsTotal.WithLabelValues(string(t.tx.Type), string(target)).Inc()
	s.stock.afterCommit(ctx, t.changes)
	s.ledger.afterCommit(ctx, t.post)
	s.publish(ctx, target, t.tx)
}

func (s *TransactionService) publish(ctx context.Context, target domain.TransactionStatus, tx *domain.InventoryTransaction) {
	if err := s.events.PublishTransaction(ctx, target, tx); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish inventory transaction event",
			slog.String("transaction_id", tx.ID),
			slog.String("transition", string(target)),
			slog.String("error", err.Error()),
		)
	}
}

// Get returns a transaction with its items.
func (s *TransactionService) Get(ctx context.Context, id string) (*domain.InventoryTransaction, error) {
	var tx *domain.InventoryTransaction
	err := s.store.View(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		tx, err = repos.Transactions.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return tx, nil
}

// List returns transaction headers matching filter, newest first.
func (s *TransactionService) List(ctx context.Context, filter repository.TransactionFilter, page pagination.Params) ([]domain.InventoryTransaction, int, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, 0, apperrors.InvalidInput(fmt.Sprintf("unknown status %q", filter.Status))
	}
	if filter.Type != "" && !filter.Type.IsValid() {
		return nil, 0, apperrors.InvalidInput(fmt.Sprintf("unknown transaction type %q", filter.Type))
	}

	var (
		list  []domain.InventoryTransaction
		total int
	)
	err := s.store.View(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		list, total, err = repos.Transactions.List(ctx, filter, page)
		return err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	return list, total, nil
}
