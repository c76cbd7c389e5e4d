package middleware

import (
	"log/slog"
	"net/http"

	"github.com/myseetara-source/erp-seetara-sub004/pkg/logger"
)

// ActorHeader carries the identity of the caller performing a mutation.
const ActorHeader = "X-Actor-ID"

// RequestLogger returns middleware that builds a request-scoped logger enriched
// with correlation_id, actor_id, trace_id, and span_id, then stores it in
// context via logger.NewContext. Downstream handlers retrieve it with
// logger.FromContext(ctx).
//
// Mount it AFTER RequestLogging (which sets correlation_id) and Tracing
// (which sets the OpenTelemetry span context).
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if actor := r.Header.Get(ActorHeader); actor != "" {
				ctx = logger.WithActorID(ctx, actor)
			}

			enriched := logger.WithContext(ctx, base)
			ctx = logger.NewContext(ctx, enriched)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
