package database

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	apperrors "github.com/myseetara-source/erp-seetara-sub004/pkg/errors"
)

// Postgres SQLSTATE codes the engine reacts to.
const (
	CodeUniqueViolation      = "23505"
	CodeCheckViolation       = "23514"
	CodeLockNotAvailable     = "55P03"
	CodeDeadlockDetected     = "40P01"
	CodeSerializationFailure = "40001"
	CodeQueryCanceled        = "57014"
)

// RunInTx executes fn inside a single transaction. When lockTimeout is positive it
// bounds every row-lock wait in the transaction via SET LOCAL lock_timeout, so a
// contended SELECT ... FOR UPDATE fails instead of blocking forever.
//
// The transaction is committed when fn returns nil and rolled back otherwise.
// Lock failures are reported as apperrors.ErrConcurrentModification.
func RunInTx(ctx context.Context, pool Pool, lockTimeout time.Duration, fn func(tx pgx.Tx) error) (err error) {
	ctx, end := TraceQuery(ctx, "Transaction", "BEGIN")
	defer func() { end(err) }()

	tx, err := pool.Begin(ctx)
	if err != nil {
		return ClassifyError(fmt.Errorf("begin transaction: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if lockTimeout > 0 {
		ms := strconv.FormatInt(lockTimeout.Milliseconds(), 10) + "ms"
		if _, err = tx.Exec(ctx, "SELECT set_config('lock_timeout', $1, true)", ms); err != nil {
			return ClassifyError(fmt.Errorf("set lock timeout: %w", err))
		}
	}

	if err = fn(tx); err != nil {
		return ClassifyError(err)
	}

	if err = tx.Commit(ctx); err != nil {
		return ClassifyError(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

// ClassifyError converts lock timeouts, deadlocks and serialization failures into a
// retryable ConcurrentModification error. Other errors are returned unchanged.
func ClassifyError(err error) error {
	if err == nil || errors.Is(err, apperrors.ErrConcurrentModification) {
		return err
	}
	if IsLockConflict(err) {
		return apperrors.ConcurrentModification(err)
	}
	return err
}

// IsLockConflict reports whether err is a Postgres lock or serialization failure.
func IsLockConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case CodeLockNotAvailable, CodeDeadlockDetected, CodeSerializationFailure:
		return true
	}
	return false
}

// IsUniqueViolation reports whether err violates the named unique constraint.
// An empty constraint matches any unique violation.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != CodeUniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// IsCheckViolation reports whether err violates a CHECK constraint.
func IsCheckViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == CodeCheckViolation
}
