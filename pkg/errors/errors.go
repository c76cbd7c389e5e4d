package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors of the inventory engine. Every AppError wraps exactly one of them
// so callers can branch with errors.Is regardless of the message.
var (
	ErrNotFound               = errors.New("resource not found")
	ErrAlreadyExists          = errors.New("resource already exists")
	ErrInvalidInput           = errors.New("invalid input")
	ErrInvalidQuantity        = errors.New("invalid quantity")
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrNotPending             = errors.New("transaction is not pending")
	ErrNotApproved            = errors.New("transaction is not approved")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrDuplicateLedgerEntry   = errors.New("duplicate ledger entry")
	ErrInternal               = errors.New("internal error")
	ErrConflict               = errors.New("conflict")
	ErrServiceUnavail         = errors.New("service unavailable")
)

// AppError pairs a machine-readable code and HTTP status with the wrapped cause.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func newAppError(code string, status int, sentinel error, message string) *AppError {
	return &AppError{Code: code, Message: message, Status: status, Err: sentinel}
}

// NotFound creates a 404 error.
func NotFound(resource, id string) *AppError {
	return newAppError("NOT_FOUND", http.StatusNotFound, ErrNotFound,
		fmt.Sprintf("%s with id %s not found", resource, id))
}

// AlreadyExists creates a 409 error for a unique key clash.
func AlreadyExists(resource, field, value string) *AppError {
	return newAppError("ALREADY_EXISTS", http.StatusConflict, ErrAlreadyExists,
		fmt.Sprintf("%s with %s %q already exists", resource, field, value))
}

func InvalidInput(message string) *AppError {
	return newAppError("INVALID_INPUT", http.StatusBadRequest, ErrInvalidInput, message)
}

// InvalidQuantity is returned for zero, negative or otherwise malformed quantities.
func InvalidQuantity(message string) *AppError {
	return newAppError("INVALID_QUANTITY", http.StatusBadRequest, ErrInvalidQuantity, message)
}

// InsufficientStock carries what was asked for and what was on hand.
func InsufficientStock(unitID string, requested, available int) *AppError {
	return newAppError("INSUFFICIENT_STOCK", http.StatusUnprocessableEntity, ErrInsufficientStock,
		fmt.Sprintf("unit %s: requested %d, available %d", unitID, requested, available))
}

// NegativeStock is raised by storage when a counter write would drop below zero.
func NegativeStock(unitID string) *AppError {
	return newAppError("INSUFFICIENT_STOCK", http.StatusUnprocessableEntity, ErrInsufficientStock,
		fmt.Sprintf("unit %s: stock counters cannot be negative", unitID))
}

// NotPending rejects approve and reject on a transaction that already left pending.
func NotPending(id, status string) *AppError {
	return newAppError("NOT_PENDING", http.StatusConflict, ErrNotPending,
		fmt.Sprintf("transaction %s is %s, expected pending", id, status))
}

// NotApproved rejects void on a transaction that is not approved.
func NotApproved(id, status string) *AppError {
	return newAppError("NOT_APPROVED", http.StatusConflict, ErrNotApproved,
		fmt.Sprintf("transaction %s is %s, expected approved", id, status))
}

// ConcurrentModification covers lock timeouts, deadlocks and serialization
// failures. It is the only retryable error.
func ConcurrentModification(err error) *AppError {
	return newAppError("CONCURRENT_MODIFICATION", http.StatusConflict, errors.Join(ErrConcurrentModification, err),
		"the resource is being modified concurrently, retry the request")
}

// Internal hides err from clients; it is still logged server side.
func Internal(err error) *AppError {
	return newAppError("INTERNAL_ERROR", http.StatusInternalServerError, err, "an internal error occurred")
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// IsRetryable reports whether the caller may safely retry the whole operation.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// HTTPStatus maps err to a response status, falling back to the sentinel when
// err is not an AppError.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrConflict),
		errors.Is(err, ErrNotPending), errors.Is(err, ErrNotApproved),
		errors.Is(err, ErrConcurrentModification):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidQuantity):
		return http.StatusBadRequest
	case errors.Is(err, ErrInsufficientStock):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrServiceUnavail):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
