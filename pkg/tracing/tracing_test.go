package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestInitTracer_Disabled(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), DefaultConfig("inventory-engine"))
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitTracer_InstallsProvider(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	exporter := tracetest.NewInMemoryExporter()
	cfg := DefaultConfig("inventory-engine")
	cfg.Enabled = true
	cfg.Exporter = exporter

	shutdown, err := InitTracer(context.Background(), cfg)
	require.NoError(t, err)

	tp, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	require.True(t, ok)

	var opErr error = errors.New("vendor missing")
	_, span := Start(context.Background(), "test", "inventory.approve", attribute.String("transaction.id", "tx-1"))
	End(span, &opErr)

	// The in-memory exporter drops its spans on shutdown, so flush and read first.
	require.NoError(t, tp.ForceFlush(context.Background()))
	spans := exporter.GetSpans()
	t.Cleanup(func() { _ = shutdown(context.Background()) })
	require.Len(t, spans, 1)
	assert.Equal(t, "inventory.approve", spans[0].Name)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, trace.SpanKindInternal, spans[0].SpanKind)
	assert.Contains(t, spans[0].Attributes, attribute.String("transaction.id", "tx-1"))
}

func TestInitTracer_OTLPExporter(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	cfg := DefaultConfig("inventory-engine")
	cfg.Enabled = true
	cfg.OTLPEndpoint = "127.0.0.1:0"

	shutdown, err := InitTracer(context.Background(), cfg)
	require.NoError(t, err)
	_ = shutdown(context.Background())
}

func TestNewSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want sdktrace.SamplingDecision
	}{
		{1.0, sdktrace.RecordAndSample},
		{0, sdktrace.Drop},
	}
	for _, tc := range tests {
		res := newSampler(tc.rate).ShouldSample(sdktrace.SamplingParameters{
			ParentContext: context.Background(),
			TraceID:       trace.TraceID{1},
			Name:          "root",
		})
		assert.Equal(t, tc.want, res.Decision, "rate %v", tc.rate)
	}
}

func TestNewSampler_FollowsSampledParent(t *testing.T) {
	parent := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{2},
		SpanID:     trace.SpanID{3},
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	ctx := trace.ContextWithRemoteSpanContext(context.Background(), parent)

	res := newSampler(0).ShouldSample(sdktrace.SamplingParameters{
		ParentContext: ctx,
		TraceID:       parent.TraceID(),
		Name:          "child",
	})
	assert.Equal(t, sdktrace.RecordAndSample, res.Decision)
}

func TestEnd_NoError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	_, span := tp.Tracer("test").Start(context.Background(), "ok")
	var err error
	End(span, &err)
	End(span, nil)

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, codes.Unset, ended[0].Status().Code)
}
