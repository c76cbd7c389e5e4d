package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/myseetara-source/erp-seetara-sub004/internal/domain"
	"github.com/myseetara-source/erp-seetara-sub004/pkg/database"
	apperrors "github.com/myseetara-source/erp-seetara-sub004/pkg/errors"
)

// VendorRepository implements repository.VendorRepository.
type VendorRepository struct {
	db database.DBTX
}

// NewVendorRepository creates a PostgreSQL-backed vendor repository.
func NewVendorRepository(db database.DBTX) *VendorRepository {
	return &VendorRepository{db: db}
}

// Create inserts a vendor.
func (r *VendorRepository) Create(ctx context.Context, v *domain.Vendor) error {
	query := `
		INSERT INTO vendors (id, name, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`

	if _, err := r.db.Exec(ctx, query, v.ID, v.Name, v.Balance, v.CreatedAt, v.UpdatedAt); err != nil {
		return fmt.Errorf("create vendor: %w", err)
	}
	return nil
}

// GetByID reads a vendor.
func (r *VendorRepository) GetByID(ctx context.Context, id string) (*domain.Vendor, error) {
	return r.get(ctx, `SELECT id, name, balance, created_at, updated_at FROM vendors WHERE id = $1`, id)
}

// GetForUpdate reads a vendor and locks its row; ledger writes for the vendor
// serialize on this lock.
func (r *VendorRepository) GetForUpdate(ctx context.Context, id string) (v *domain.Vendor, err error) {
	query := `SELECT id, name, balance, created_at, updated_at FROM vendors WHERE id = $1 FOR UPDATE`

	ctx, end := database.TraceQuery(ctx, "LockVendor", query)
	defer func() { end(err) }()

	return r.get(ctx, query, id)
}

func (r *VendorRepository) get(ctx context.Context, query, id string) (*domain.Vendor, error) {
	var v domain.Vendor
	err := r.db.QueryRow(ctx, query, id).Scan(&v.ID, &v.Name, &v.Balance, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("vendor", id)
		}
		return nil, fmt.Errorf("get vendor: %w", err)
	}
	return &v, nil
}

// UpdateBalance sets the vendor's cached balance.
func (r *VendorRepository) UpdateBalance(ctx context.Context, id string, balance decimal.Decimal) error {
	query := `UPDATE vendors SET balance = $1, updated_at = $2 WHERE id = $3`

	tag, err := r.db.Exec(ctx, query, balance, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update vendor balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("vendor", id)
	}
	return nil
}
