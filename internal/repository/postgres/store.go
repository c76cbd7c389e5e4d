package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/myseetara-source/erp-seetara-sub004/internal/repository"
	"github.com/myseetara-source/erp-seetara-sub004/pkg/database"
)

// Store implements repository.Store on PostgreSQL.
type Store struct {
	pool        database.Pool
	lockTimeout time.Duration
}

// NewStore creates a Store. lockTimeout bounds every row-lock wait inside Execute.
func NewStore(pool database.Pool, lockTimeout time.Duration) *Store {
	return &Store{pool: pool, lockTimeout: lockTimeout}
}

// Execute runs fn in one transaction with every repository bound to it.
func (s *Store) Execute(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	return database.RunInTx(ctx, s.pool, s.lockTimeout, func(tx pgx.Tx) error {
		return fn(ctx, reposOn(tx))
	})
}

// View runs fn with repositories bound to the pool.
func (s *Store) View(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	return fn(ctx, reposOn(s.pool))
}

// Ping checks database reachability.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func reposOn(db database.DBTX) repository.Repositories {
	return repository.Repositories{
		Units:        NewUnitRepository(db),
		Movements:    NewMovementRepository(db),
		Transactions: NewTransactionRepository(db),
		Vendors:      NewVendorRepository(db),
		Ledger:       NewLedgerRepository(db),
	}
}
