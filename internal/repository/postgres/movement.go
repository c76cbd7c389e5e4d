package postgres

import (
	"context"
	"fmt"

	"github.com/myseetara-source/erp-seetara-sub004/internal/domain"
	"github.com/myseetara-source/erp-seetara-sub004/pkg/database"
	"github.com/myseetara-source/erp-seetara-sub004/pkg/pagination"
)

// MovementRepository implements repository.MovementRepository. It only ever inserts.
type MovementRepository struct {
	db database.DBTX
}

// NewMovementRepository creates a PostgreSQL-backed stock journal.
func NewMovementRepository(db database.DBTX) *MovementRepository {
	return &MovementRepository{db: db}
}

// Create appends a movement.
func (r *MovementRepository) Create(ctx context.Context, m *domain.StockMovement) error {
	query := `
		INSERT INTO stock_movements (
			id, unit_id, movement_type, quantity,
			fresh_before, damaged_before, reserved_before,
			fresh_after, damaged_after, reserved_after,
			reference_id, reference_type, reason, created_by, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := r.db.Exec(ctx, query,
		m.ID,
		m.UnitID,
		string(m.MovementType),
		m.Quantity,
		m.Before.Fresh,
		m.Before.Damaged,
		m.Before.Reserved,
		m.After.Fresh,
		m.After.Damaged,
		m.After.Reserved,
		m.ReferenceID,
		m.ReferenceType,
		m.Reason,
		m.CreatedBy,
		m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert stock movement: %w", err)
	}
	return nil
}

// ListByUnit returns a unit's movements, newest first.
func (r *MovementRepository) ListByUnit(ctx context.Context, unitID string, page pagination.Params) ([]domain.StockMovement, int, error) {
	query := `
		SELECT id, unit_id, movement_type, quantity,
			   fresh_before, damaged_before, reserved_before,
			   fresh_after, damaged_after, reserved_after,
			   reference_id, reference_type, reason, created_by, created_at,
			   count(*) OVER() AS total_count
		FROM stock_movements
		WHERE unit_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, unitID, page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list stock movements: %w", err)
	}
	defer rows.Close()

	var (
		movements []domain.StockMovement
		total     int
	)
	for rows.Next() {
		var (
			m      domain.StockMovement
			mvType string
		)
		if err := rows.Scan(
			&m.ID,
			&m.UnitID,
			&mvType,
			&m.Quantity,
			&m.Before.Fresh,
			&m.Before.Damaged,
			&m.Before.Reserved,
			&m.After.Fresh,
			&m.After.Damaged,
			&m.After.Reserved,
			&m.ReferenceID,
			&m.ReferenceType,
			&m.Reason,
			&m.CreatedBy,
			&m.CreatedAt,
			&total,
		); err != nil {
			return nil, 0, fmt.Errorf("scan stock movement row: %w", err)
		}
		m.MovementType = domain.MovementType(mvType)
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate stock movement rows: %w", err)
	}

	if movements == nil {
		movements = []domain.StockMovement{}
	}
	return movements, total, nil
}
