package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/myseetara-source/erp-seetara-sub004/internal/domain"
	"github.com/myseetara-source/erp-seetara-sub004/pkg/database"
	apperrors "github.com/myseetara-source/erp-seetara-sub004/pkg/errors"
	"github.com/myseetara-source/erp-seetara-sub004/pkg/pagination"
)

const ledgerColumns = `id, vendor_id, entry_type, reference_id, debit, credit, running_balance, transaction_date, description, created_at`

// LedgerRepository implements repository.LedgerRepository.
type LedgerRepository struct {
	db database.DBTX
}

// NewLedgerRepository creates a PostgreSQL-backed vendor ledger.
func NewLedgerRepository(db database.DBTX) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func scanEntry(row pgx.Row, extra ...any) (*domain.VendorLedgerEntry, error) {
	var (
		e         domain.VendorLedgerEntry
		entryType string
	)
	dest := []any{
		&e.ID,
		&e.VendorID,
		&entryType,
		&e.ReferenceID,
		&e.Debit,
		&e.Credit,
		&e.RunningBalance,
		&e.TransactionDate,
		&e.Description,
		&e.CreatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	e.EntryType = domain.LedgerEntryType(entryType)
	return &e, nil
}

func (r *LedgerRepository) one(ctx context.Context, what, query string, args ...any) (*domain.VendorLedgerEntry, error) {
	e, err := scanEntry(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	return e, nil
}

// GetByReference returns the entry for (referenceID, entryType).
func (r *LedgerRepository) GetByReference(ctx context.Context, referenceID string, entryType domain.LedgerEntryType) (*domain.VendorLedgerEntry, error) {
	query := `SELECT ` + ledgerColumns + ` FROM vendor_ledger_entries WHERE reference_id = $1 AND entry_type = $2`
	return r.one(ctx, "get ledger entry by reference", query, referenceID, string(entryType))
}

// Last returns the vendor's most recent entry.
func (r *LedgerRepository) Last(ctx context.Context, vendorID string) (*domain.VendorLedgerEntry, error) {
	query := `
		SELECT ` + ledgerColumns + `
		FROM vendor_ledger_entries
		WHERE vendor_id = $1
		ORDER BY transaction_date DESC, created_at DESC
		LIMIT 1`
	return r.one(ctx, "get last ledger entry", query, vendorID)
}

// Create inserts an entry. A conflicting (reference, type) leaves the row alone and
// reports ErrDuplicateLedgerEntry without aborting the surrounding transaction.
func (r *LedgerRepository) Create(ctx context.Context, e *domain.VendorLedgerEntry) error {
	query := `
		INSERT INTO vendor_ledger_entries (` + ledgerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT ON CONSTRAINT uq_vendor_ledger_reference DO NOTHING`

	tag, err := r.db.Exec(ctx, query,
		e.ID,
		e.VendorID,
		string(e.EntryType),
		e.ReferenceID,
		e.Debit,
		e.Credit,
		e.RunningBalance,
		e.TransactionDate,
		e.Description,
		e.CreatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err, "uq_vendor_ledger_reference") {
			return fmt.Errorf("create ledger entry %s/%s: %w", e.ReferenceID, e.EntryType, apperrors.ErrDuplicateLedgerEntry)
		}
		return fmt.Errorf("create ledger entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("create ledger entry %s/%s: %w", e.ReferenceID, e.EntryType, apperrors.ErrDuplicateLedgerEntry)
	}
	return nil
}

// UpdateAmounts rewrites an entry's amounts and running balance.
func (r *LedgerRepository) UpdateAmounts(ctx context.Context, e *domain.VendorLedgerEntry) error {
	query := `
		UPDATE vendor_ledger_entries
		SET debit = $1, credit = $2, running_balance = $3, description = $4
		WHERE id = $5`

	tag, err := r.db.Exec(ctx, query, e.Debit, e.Credit, e.RunningBalance, e.Description, e.ID)
	if err != nil {
		return fmt.Errorf("update ledger entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("ledger entry", e.ID)
	}
	return nil
}

// ListByVendor returns a vendor's entries, newest first.
func (r *LedgerRepository) ListByVendor(ctx context.Context, vendorID string, page pagination.Params) ([]domain.VendorLedgerEntry, int, error) {
	query := `
		SELECT ` + ledgerColumns + `, count(*) OVER() AS total_count
		FROM vendor_ledger_entries
		WHERE vendor_id = $1
		ORDER BY transaction_date DESC, created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, vendorID, page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var (
		entries []domain.VendorLedgerEntry
		total   int
	)
	for rows.Next() {
		e, err := scanEntry(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan ledger entry row: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate ledger entry rows: %w", err)
	}

	if entries == nil {
		entries = []domain.VendorLedgerEntry{}
	}
	return entries, total, nil
}

// ListChronological returns every entry of the vendor, oldest first.
func (r *LedgerRepository) ListChronological(ctx context.Context, vendorID string) ([]domain.VendorLedgerEntry, error) {
	query := `
		SELECT ` + ledgerColumns + `
		FROM vendor_ledger_entries
		WHERE vendor_id = $1
		ORDER BY transaction_date ASC, created_at ASC`

	rows, err := r.db.Query(ctx, query, vendorID)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries chronologically: %w", err)
	}
	defer rows.Close()

	entries := []domain.VendorLedgerEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ledger entry row: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger entry rows: %w", err)
	}
	return entries, nil
}

// SetRunningBalance rewrites one entry's running balance.
func (r *LedgerRepository) SetRunningBalance(ctx context.Context, id string, balance decimal.Decimal) error {
	if _, err := r.db.Exec(ctx, `UPDATE vendor_ledger_entries SET running_balance = $1 WHERE id = $2`, balance, id); err != nil {
		return fmt.Errorf("set ledger running balance: %w", err)
	}
	return nil
}
