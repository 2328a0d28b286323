package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// TestTelemetry is an enabled Telemetry backed by in-memory readers.
type TestTelemetry struct {
	*TelemetryImpl
	mr       *sdkmetric.ManualReader
	recorder *tracetest.SpanRecorder
}

// NewTestTelemetry creates an enabled Telemetry whose spans and metrics can be inspected.
func NewTestTelemetry(t *testing.T) *TestTelemetry {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(tp)

	mr := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(mr))
	otel.SetMeterProvider(mp)

	impl, err := newTelemetry(tp, mp)
	if err != nil {
		t.Fatalf("create test telemetry: %v", err)
	}
	impl.enabled = true

	return &TestTelemetry{
		TelemetryImpl: impl,
		mr:            mr,
		recorder:      recorder,
	}
}

// GetReader returns the metric reader for testing
func (tt *TestTelemetry) GetReader() *sdkmetric.ManualReader {
	return tt.mr
}

// Spans returns the spans that have ended.
func (tt *TestTelemetry) Spans() []sdktrace.ReadOnlySpan {
	return tt.recorder.Ended()
}

// Shutdown gracefully shuts down the test telemetry providers
func (tt *TestTelemetry) Shutdown(ctx context.Context) error {
	return tt.TelemetryImpl.Shutdown(ctx)
}
