package telemetry

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	otelcodes "go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSetup_NoEndpoint(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{ServiceName: "test"})
	if err != nil {
		t.Fatalf("Setup() error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown() error: %v", err)
	}

	_, span := Start(context.Background(), "noop")
	if span.SpanContext().IsValid() {
		t.Error("noop provider should produce invalid span contexts")
	}
	span.End()
}

func TestSetup_WithEndpoint(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{
		Endpoint:    "http://127.0.0.1:1/v1/traces",
		ServiceName: "test",
		Version:     "dev",
	})
	if err != nil {
		t.Fatalf("Setup() error: %v", err)
	}
	// Nothing was recorded, so shutdown does not need to reach the collector.
	_ = shutdown(context.Background())
}

func TestEnd_RecordsError(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	_, span := Start(context.Background(), "failing")
	End(span, errors.New("boom"))

	_, ok := Start(context.Background(), "fine")
	End(ok, nil)

	spans := rec.Ended()
	if len(spans) != 2 {
		t.Fatalf("ended spans = %d, want 2", len(spans))
	}
	if spans[0].Status().Code != otelcodes.Error {
		t.Errorf("status = %v, want Error", spans[0].Status().Code)
	}
	if spans[1].Status().Code != otelcodes.Unset {
		t.Errorf("status = %v, want Unset", spans[1].Status().Code)
	}
}
