package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/myseetara-source/erp-seetara-sub004/internal/domain"
	"github.com/myseetara-source/erp-seetara-sub004/pkg/database"
	apperrors "github.com/myseetara-source/erp-seetara-sub004/pkg/errors"
	"github.com/myseetara-source/erp-seetara-sub004/pkg/pagination"
)

const unitColumns = `id, sku, name, fresh_stock, damaged_stock, reserved_stock, cost_price, low_stock_threshold, created_at, updated_at`

// UnitRepository implements repository.UnitRepository.
type UnitRepository struct {
	db database.DBTX
}

// NewUnitRepository creates a PostgreSQL-backed unit repository.
func NewUnitRepository(db database.DBTX) *UnitRepository {
	return &UnitRepository{db: db}
}

func scanUnit(row pgx.Row) (*domain.StockUnit, error) {
	var u domain.StockUnit
	err := row.Scan(
		&u.ID,
		&u.SKU,
		&u.Name,
		&u.FreshStock,
		&u.DamagedStock,
		&u.ReservedStock,
		&u.CostPrice,
		&u.LowStockThreshold,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a new stock unit.
func (r *UnitRepository) Create(ctx context.Context, u *domain.StockUnit) error {
	query := `
		INSERT INTO stock_units (` + unitColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.Exec(ctx, query,
		u.ID,
		u.SKU,
		u.Name,
		u.FreshStock,
		u.DamagedStock,
		u.ReservedStock,
		u.CostPrice,
		u.LowStockThreshold,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err, "uq_stock_units_sku") {
			return apperrors.AlreadyExists("stock unit", "sku", u.SKU)
		}
		return fmt.Errorf("create stock unit: %w", err)
	}
	return nil
}

// GetByID reads a unit without locking it.
func (r *UnitRepository) GetByID(ctx context.Context, id string) (*domain.StockUnit, error) {
	query := `SELECT ` + unitColumns + ` FROM stock_units WHERE id = $1`

	u, err := scanUnit(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("stock unit", id)
		}
		return nil, fmt.Errorf("get stock unit: %w", err)
	}
	return u, nil
}

// GetForUpdate reads a unit and locks its row until the transaction ends.
func (r *UnitRepository) GetForUpdate(ctx context.Context, id string) (u *domain.StockUnit, err error) {
	query := `SELECT ` + unitColumns + ` FROM stock_units WHERE id = $1 FOR UPDATE`

	ctx, end := database.TraceQuery(ctx, "LockStockUnit", query)
	defer func() { end(err) }()

	u, err = scanUnit(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("stock unit", id)
		}
		return nil, fmt.Errorf("lock stock unit: %w", err)
	}
	return u, nil
}

// UpdateCounters writes the unit's three counters.
func (r *UnitRepository) UpdateCounters(ctx context.Context, u *domain.StockUnit) error {
	query := `
		UPDATE stock_units
		SET fresh_stock = $1, damaged_stock = $2, reserved_stock = $3, updated_at = $4
		WHERE id = $5`

	tag, err := r.db.Exec(ctx, query, u.FreshStock, u.DamagedStock, u.ReservedStock, u.UpdatedAt, u.ID)
	if err != nil {
		if database.IsCheckViolation(err) {
			return apperrors.NegativeStock(u.ID)
		}
		return fmt.Errorf("update stock counters: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("stock unit", u.ID)
	}
	return nil
}

// ListLowStock returns units at or below their effective threshold, lowest first.
func (r *UnitRepository) ListLowStock(ctx context.Context, defaultThreshold int, page pagination.Params) ([]domain.StockUnit, int, error) {
	query := `
		SELECT ` + unitColumns + `, count(*) OVER() AS total_count
		FROM stock_units
		WHERE fresh_stock <= CASE WHEN low_stock_threshold > 0 THEN low_stock_threshold ELSE $1 END
		  AND (low_stock_threshold > 0 OR $1 > 0)
		ORDER BY fresh_stock ASC, sku ASC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, defaultThreshold, page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list low stock: %w", err)
	}
	defer rows.Close()

	var (
		units []domain.StockUnit
		total int
	)
	for rows.Next() {
		var u domain.StockUnit
		if err := rows.Scan(
			&u.ID,
			&u.SKU,
			&u.Name,
			&u.FreshStock,
			&u.DamagedStock,
			&u.ReservedStock,
			&u.CostPrice,
			&u.LowStockThreshold,
			&u.CreatedAt,
			&u.UpdatedAt,
			&total,
		); err != nil {
			return nil, 0, fmt.Errorf("scan low stock row: %w", err)
		}
		units = append(units, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate low stock rows: %w", err)
	}

	if units == nil {
		units = []domain.StockUnit{}
	}
	return units, total, nil
}
