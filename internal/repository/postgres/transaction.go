package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/myseetara-source/erp-seetara-sub004/internal/domain"
	"github.com/myseetara-source/erp-seetara-sub004/internal/repository"
	"github.com/myseetara-source/erp-seetara-sub004/pkg/database"
	apperrors "github.com/myseetara-source/erp-seetara-sub004/pkg/errors"
	"github.com/myseetara-source/erp-seetara-sub004/pkg/pagination"
)

const transactionColumns = `id, invoice_no, type, status, vendor_id, total_quantity, total_cost, notes,
	created_by, approved_by, approved_at, rejected_by, rejected_at, rejection_reason,
	voided_by, voided_at, void_reason, created_at, updated_at`

// TransactionRepository implements repository.TransactionRepository.
type TransactionRepository struct {
	db database.DBTX
}

// NewTransactionRepository creates a PostgreSQL-backed transaction repository.
func NewTransactionRepository(db database.DBTX) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// scanTransaction scans the header columns, plus any extra destinations appended
// after them (e.g. a window count).
func scanTransaction(row pgx.Row, extra ...any) (*domain.InventoryTransaction, error) {
	var (
		t              domain.InventoryTransaction
		txType, status string
	)
	dest := []any{
		&t.ID,
		&t.InvoiceNo,
		&txType,
		&status,
		&t.VendorID,
		&t.TotalQuantity,
		&t.TotalCost,
		&t.Notes,
		&t.CreatedBy,
		&t.ApprovedBy,
		&t.ApprovedAt,
		&t.RejectedBy,
		&t.RejectedAt,
		&t.RejectionReason,
		&t.VoidedBy,
		&t.VoidedAt,
		&t.VoidReason,
		&t.CreatedAt,
		&t.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	t.Type = domain.TransactionType(txType)
	t.Status = domain.TransactionStatus(status)
	return &t, nil
}

// Create inserts the header and every item in position order.
func (r *TransactionRepository) Create(ctx context.Context, t *domain.InventoryTransaction) error {
	query := `
		INSERT INTO inventory_transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	_, err := r.db.Exec(ctx, query,
		t.ID,
		t.InvoiceNo,
		string(t.Type),
		string(t.Status),
		t.VendorID,
		t.TotalQuantity,
		t.TotalCost,
		t.Notes,
		t.CreatedBy,
		t.ApprovedBy,
		t.ApprovedAt,
		t.RejectedBy,
		t.RejectedAt,
		t.RejectionReason,
		t.VoidedBy,
		t.VoidedAt,
		t.VoidReason,
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err, "uq_inventory_transactions_invoice_no") {
			return apperrors.AlreadyExists("inventory transaction", "invoice_no", t.InvoiceNo)
		}
		return fmt.Errorf("create inventory transaction: %w", err)
	}

	itemQuery := `
		INSERT INTO inventory_transaction_items (
			id, transaction_id, unit_id, position, quantity, unit_cost, source_type, stock_before, stock_after
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	for i := range t.Items {
		item := &t.Items[i]
		if _, err := r.db.Exec(ctx, itemQuery,
			item.ID,
			t.ID,
			item.UnitID,
			i,
			item.Quantity,
			item.UnitCost,
			string(item.SourceType),
			item.StockBefore,
			item.StockAfter,
		); err != nil {
			return fmt.Errorf("create inventory transaction item %d: %w", i, err)
		}
	}
	return nil
}

// GetByID reads a transaction with its items.
func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*domain.InventoryTransaction, error) {
	return r.get(ctx, id, false)
}

// GetForUpdate reads a transaction with its items and locks the header row.
// Items are only ever modified together with the header, so the header lock covers them.
func (r *TransactionRepository) GetForUpdate(ctx context.Context, id string) (*domain.InventoryTransaction, error) {
	return r.get(ctx, id, true)
}

func (r *TransactionRepository) get(ctx context.Context, id string, lock bool) (t *domain.InventoryTransaction, err error) {
	query := `SELECT ` + transactionColumns + ` FROM inventory_transactions WHERE id = $1`
	op := "GetInventoryTransaction"
	if lock {
		query += ` FOR UPDATE`
		op = "LockInventoryTransaction"
	}

	ctx, end := database.TraceQuery(ctx, op, query)
	defer func() { end(err) }()

	t, err = scanTransaction(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("inventory transaction", id)
		}
		return nil, fmt.Errorf("get inventory transaction: %w", err)
	}

	t.Items, err = r.items(ctx, id)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *TransactionRepository) items(ctx context.Context, transactionID string) ([]domain.InventoryTransactionItem, error) {
	query := `
		SELECT id, transaction_id, unit_id, quantity, unit_cost, source_type, stock_before, stock_after
		FROM inventory_transaction_items
		WHERE transaction_id = $1
		ORDER BY position ASC`

	rows, err := r.db.Query(ctx, query, transactionID)
	if err != nil {
		return nil, fmt.Errorf("list inventory transaction items: %w", err)
	}
	defer rows.Close()

	items := []domain.InventoryTransactionItem{}
	for rows.Next() {
		var (
			item   domain.InventoryTransactionItem
			source string
		)
		if err := rows.Scan(
			&item.ID,
			&item.TransactionID,
			&item.UnitID,
			&item.Quantity,
			&item.UnitCost,
			&source,
			&item.StockBefore,
			&item.StockAfter,
		); err != nil {
			return nil, fmt.Errorf("scan inventory transaction item: %w", err)
		}
		item.SourceType = domain.SourceType(source)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate inventory transaction items: %w", err)
	}
	return items, nil
}

// Update writes status, actor fields and item snapshots.
func (r *TransactionRepository) Update(ctx context.Context, t *domain.InventoryTransaction) error {
	query := `
		UPDATE inventory_transactions
		SET status = $1,
			approved_by = $2, approved_at = $3,
			rejected_by = $4, rejected_at = $5, rejection_reason = $6,
			voided_by = $7, voided_at = $8, void_reason = $9,
			updated_at = $10
		WHERE id = $11`

	tag, err := r.db.Exec(ctx, query,
		string(t.Status),
		t.ApprovedBy,
		t.ApprovedAt,
		t.RejectedBy,
		t.RejectedAt,
		t.RejectionReason,
		t.VoidedBy,
		t.VoidedAt,
		t.VoidReason,
		t.UpdatedAt,
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("update inventory transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("inventory transaction", t.ID)
	}

	itemQuery := `UPDATE inventory_transaction_items SET stock_before = $1, stock_after = $2 WHERE id = $3`
	for i := range t.Items {
		item := &t.Items[i]
		if item.StockBefore == nil && item.StockAfter == nil {
			continue
		}
		if _, err := r.db.Exec(ctx, itemQuery, item.StockBefore, item.StockAfter, item.ID); err != nil {
			return fmt.Errorf("update inventory transaction item %s: %w", item.ID, err)
		}
	}
	return nil
}

// List returns transaction headers matching filter, newest first. Items are not loaded.
func (r *TransactionRepository) List(ctx context.Context, filter repository.TransactionFilter, page pagination.Params) ([]domain.InventoryTransaction, int, error) {
	var (
		conds []string
		args  []any
	)
	addCond := func(column string, value any) {
		args = append(args, value)
		conds = append(conds, column+" = $"+strconv.Itoa(len(args)))
	}
	if filter.Status != "" {
		addCond("status", string(filter.Status))
	}
	if filter.Type != "" {
		addCond("type", string(filter.Type))
	}
	if filter.VendorID != "" {
		addCond("vendor_id", filter.VendorID)
	}

	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, page.Limit(), page.Offset())

	query := `
		SELECT ` + transactionColumns + `, count(*) OVER() AS total_count
		FROM inventory_transactions
		` + where + `
		ORDER BY created_at DESC, id DESC
		LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list inventory transactions: %w", err)
	}
	defer rows.Close()

	var (
		list  []domain.InventoryTransaction
		total int
	)
	for rows.Next() {
		t, err := scanTransaction(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan inventory transaction row: %w", err)
		}
		list = append(list, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate inventory transaction rows: %w", err)
	}

	if list == nil {
		list = []domain.InventoryTransaction{}
	}
	return list, total, nil
}

// NextInvoiceNo increments the per-prefix counter. The counter row stays locked until
// the surrounding transaction ends, so numbers are gap-free among committed transactions.
func (r *TransactionRepository) NextInvoiceNo(ctx context.Context, t domain.TransactionType) (string, error) {
	query := `
		INSERT INTO invoice_sequences (prefix, last_value)
		VALUES ($1, 1)
		ON CONFLICT (prefix) DO UPDATE SET last_value = invoice_sequences.last_value + 1
		RETURNING last_value`

	var seq int64
	if err := r.db.QueryRow(ctx, query, t.InvoicePrefix()).Scan(&seq); err != nil {
		return "", fmt.Errorf("next invoice number: %w", err)
	}
	return domain.FormatInvoiceNo(t, seq), nil
}
