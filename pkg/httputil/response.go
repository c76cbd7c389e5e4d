package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	apperrors "github.com/myseetara-source/erp-seetara-sub004/pkg/errors"
	"github.com/myseetara-source/erp-seetara-sub004/pkg/logger"
	"github.com/myseetara-source/erp-seetara-sub004/pkg/validator"
)

// Response is the standard JSON response envelope.
type Response struct {
	Data  any            `json:"data,omitempty"`
	Error *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse represents an error in the standard response format.
type ErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Retryable bool              `json:"retryable,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// sentinelCodes maps bare sentinel errors to response codes when no AppError
// carries one.
var sentinelCodes = []struct {
	err  error
	code string
}{
	{apperrors.ErrNotFound, "NOT_FOUND"},
	{apperrors.ErrAlreadyExists, "ALREADY_EXISTS"},
	{apperrors.ErrInvalidInput, "INVALID_INPUT"},
	{apperrors.ErrInvalidQuantity, "INVALID_QUANTITY"},
	{apperrors.ErrInsufficientStock, "INSUFFICIENT_STOCK"},
	{apperrors.ErrNotPending, "NOT_PENDING"},
	{apperrors.ErrNotApproved, "NOT_APPROVED"},
	{apperrors.ErrConcurrentModification, "CONCURRENT_MODIFICATION"},
	{apperrors.ErrConflict, "CONFLICT"},
	{apperrors.ErrServiceUnavail, "SERVICE_UNAVAILABLE"},
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes a standardized error response for err. Retryable errors
// carry a Retry-After header. It prefers the request-scoped logger from
// context (set by the RequestLogger middleware) over the fallback logger.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	l := logger.FromContext(r.Context())
	if l == slog.Default() && fallback != nil {
		l = fallback
	}

	resp := &ErrorResponse{
		Code:      "INTERNAL_ERROR",
		Message:   "an internal error occurred",
		Retryable: apperrors.IsRetryable(err),
		RequestID: logger.CorrelationIDFromContext(r.Context()),
	}
	status := apperrors.HTTPStatus(err)

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		resp.Code = appErr.Code
		resp.Message = appErr.Message
	} else {
		for _, s := range sentinelCodes {
			if errors.Is(err, s.err) {
				resp.Code = s.code
				resp.Message = s.err.Error()
				break
			}
		}
	}

	if status >= http.StatusInternalServerError {
		l.ErrorContext(r.Context(), "internal error",
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
		if status == http.StatusInternalServerError {
			resp.Code = "INTERNAL_ERROR"
			resp.Message = "an internal error occurred"
		}
	}

	if resp.Retryable {
		w.Header().Set("Retry-After", "1")
	}
	WriteJSON(w, status, Response{Error: resp})
}

// WriteValidationError writes a 400 response. Field-level details are included
// when err is a *validator.ValidationError.
func WriteValidationError(w http.ResponseWriter, err error) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		WriteJSON(w, http.StatusBadRequest, Response{
			Error: &ErrorResponse{
				Code:    "VALIDATION_ERROR",
				Message: "request validation failed",
				Fields:  valErr.Fields(),
			},
		})
		return
	}

	WriteJSON(w, http.StatusBadRequest, Response{
		Error: &ErrorResponse{Code: "INVALID_INPUT", Message: err.Error()},
	})
}

// ParseUUID validates that the given path parameter is a UUID. If invalid, it
// writes a 400 response with code INVALID_PARAMETER and returns false,
// signaling the caller to return early.
func ParseUUID(w http.ResponseWriter, param string) (string, bool) {
	id, err := uuid.Parse(param)
	if err != nil {
		WriteJSON(w, http.StatusBadRequest, Response{
			Error: &ErrorResponse{
				Code:    "INVALID_PARAMETER",
				Message: "invalid UUID: " + param,
			},
		})
		return "", false
	}
	return id.String(), true
}
