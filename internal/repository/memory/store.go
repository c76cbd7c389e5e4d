// Package memory is a single-process Store backend. Each unit of work runs on a
// private copy of the data that replaces the shared copy only on success, so failed
// work leaves nothing behind. Writers are serialized; a writer that cannot start
// within the lock timeout fails with ErrConcurrentModification.
package memory

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/myseetara-source/erp-seetara-sub004/internal/domain"
	"github.com/myseetara-source/erp-seetara-sub004/internal/repository"
	apperrors "github.com/myseetara-source/erp-seetara-sub004/pkg/errors"
)

var (
	errLockTimeout = errors.New("memory store: timed out waiting for writer lock")
	errReadOnly    = errors.New("memory store: write attempted outside Execute")
)

type state struct {
	units        map[string]domain.StockUnit
	movements    []domain.StockMovement
	transactions map[string]domain.InventoryTransaction
	vendors      map[string]domain.Vendor
	ledger       []domain.VendorLedgerEntry
	sequences    map[string]int64
}

func newState() *state {
	return &state{
		units:        map[string]domain.StockUnit{},
		transactions: map[string]domain.InventoryTransaction{},
		vendors:      map[string]domain.Vendor{},
		sequences:    map[string]int64{},
	}
}

// clone copies everything a unit of work may modify. Transactions are stored
// with already-detached items (see copyTransaction) so a shallow map copy suffices.
func (s *state) clone() *state {
	return &state{
		units:        maps.Clone(s.units),
		movements:    slices.Clone(s.movements),
		transactions: maps.Clone(s.transactions),
		vendors:      maps.Clone(s.vendors),
		ledger:       slices.Clone(s.ledger),
		sequences:    maps.Clone(s.sequences),
	}
}

// Store implements repository.Store in memory.
type Store struct {
	mu          sync.RWMutex
	current     *state
	writer      chan struct{}
	lockTimeout time.Duration
}

// NewStore creates an empty Store. A non-positive lockTimeout waits indefinitely
// (bounded only by the context).
func NewStore(lockTimeout time.Duration) *Store {
	return &Store{
		current:     newState(),
		writer:      make(chan struct{}, 1),
		lockTimeout: lockTimeout,
	}
}

func (s *Store) acquire(ctx context.Context) error {
	var timeout <-chan time.Time
	if s.lockTimeout > 0 {
		timer := time.NewTimer(s.lockTimeout)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case s.writer <- struct{}{}:
		return nil
	case <-timeout:
		return apperrors.ConcurrentModification(errLockTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) release() { <-s.writer }

func (s *Store) snapshot() *state {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Execute runs fn on a private copy of the data and publishes it when fn succeeds.
func (s *Store) Execute(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	work := s.snapshot().clone()
	if err := fn(ctx, reposOn(work, true)); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.current = work
	s.mu.Unlock()
	return nil
}

// View runs fn against the last committed data. Published state is never mutated,
// so readers need no lock beyond taking the snapshot.
func (s *Store) View(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	return fn(ctx, reposOn(s.snapshot(), false))
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

func reposOn(st *state, writable bool) repository.Repositories {
	b := base{st: st, writable: writable}
	return repository.Repositories{
		Units:        &unitRepo{b},
		Movements:    &movementRepo{b},
		Transactions: &transactionRepo{b},
		Vendors:      &vendorRepo{b},
		Ledger:       &ledgerRepo{b},
	}
}

type base struct {
	st       *state
	writable bool
}

func (b base) checkWritable() error {
	if !b.writable {
		return errReadOnly
	}
	return nil
}
