package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/myseetara-source/erp-seetara-sub004/pkg/logger"
)

func newTestLogger(w *bytes.Buffer) *slog.Logger {
	return logger.NewWithWriter("inventory-engine", "info", w)
}

func TestRequestLogger_EnrichesHandlerLogs(t *testing.T) {
	traceID, err := trace.TraceIDFromHex("0af7651916cd43dd8448eb211c80319c")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("b7ad6b7169203331")
	require.NoError(t, err)
	traced := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled,
	}))

	tests := []struct {
		name    string
		ctx     context.Context
		actor   string
		want    map[string]string
		missing []string
	}{
		{
			name:    "bare request",
			ctx:     context.Background(),
			missing: []string{"actor_id", "correlation_id", "trace_id"},
		},
		{
			name:    "correlation id from context",
			ctx:     logger.WithCorrelationID(context.Background(), "corr-88"),
			want:    map[string]string{"correlation_id": "corr-88"},
			missing: []string{"actor_id"},
		},
		{
			name:  "actor header",
			ctx:   context.Background(),
			actor: "checker-2",
			want:  map[string]string{"actor_id": "checker-2"},
		},
		{
			name: "active span",
			ctx:  traced,
			want: map[string]string{
				"trace_id": "0af7651916cd43dd8448eb211c80319c",
				"span_id":  "b7ad6b7169203331",
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			var seenActor string
			h := RequestLogger(newTestLogger(&buf))(
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					seenActor = logger.ActorIDFromContext(r.Context())
					logger.FromContext(r.Context()).Info("reserve accepted")
					w.WriteHeader(http.StatusNoContent)
				}))

			req := httptest.NewRequest(http.MethodPost, "/api/v1/units/u-1/reserve", nil).WithContext(tc.ctx)
			if tc.actor != "" {
				req.Header.Set(ActorHeader, tc.actor)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)

			var line map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
			assert.Equal(t, "reserve accepted", line["msg"])
			assert.Equal(t, "inventory-engine", line["service"])
			for k, v := range tc.want {
				assert.Equal(t, v, line[k], k)
			}
			for _, k := range tc.missing {
				assert.NotContains(t, line, k)
			}
			assert.Equal(t, tc.actor, seenActor)
		})
	}
}
