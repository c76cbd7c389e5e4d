package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/myseetara-source/erp-seetara-sub004/pkg/httputil"
	"github.com/myseetara-source/erp-seetara-sub004/pkg/logger"
	"github.com/myseetara-source/erp-seetara-sub004/pkg/middleware"
	"github.com/myseetara-source/erp-seetara-sub004/pkg/validator"
)

const maxBodyBytes = 1 << 20

// ContentTypeJSON enforces that requests with a body have Content-Type: application/json.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 || r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "application/json") {
				httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.Response{
					Error: &httputil.ErrorResponse{Code: "UNSUPPORTED_MEDIA_TYPE", Message: "Content-Type must be application/json"},
				})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RequireActor rejects mutations that do not name the acting user.
func RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && actorID(r) == "" {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "MISSING_ACTOR", Message: middleware.ActorHeader + " header is required"},
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// actorID prefers the actor stored by the request logger and falls back to the header.
func actorID(r *http.Request) string {
	if id := logger.ActorIDFromContext(r.Context()); id != "" {
		return id
	}
	return strings.TrimSpace(r.Header.Get(middleware.ActorHeader))
}

// decodeBody reads a JSON body of at most 1MB into dst and validates it. On
// failure the 400 response is already written and false is returned.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return false
	}

	if err := validator.Validate(dst); err != nil {
		httputil.WriteValidationError(w, err)
		return false
	}
	return true
}
