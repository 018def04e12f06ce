package otelx

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestInit_Disabled(t *testing.T) {
	shutdown, err := Init(context.Background(), Options{Enabled: false})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if _, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); !ok {
		t.Fatalf("TracerProvider = %T, want SDK provider", otel.GetTracerProvider())
	}
}

func TestInit_Disabled_Propagator(t *testing.T) {
	_, _ = Init(context.Background(), Options{})
	fields := map[string]bool{}
	for _, f := range otel.GetTextMapPropagator().Fields() {
		fields[f] = true
	}
	if !fields["traceparent"] || !fields["baggage"] {
		t.Fatalf("propagator fields = %v", fields)
	}
}

func TestInit_Disabled_SpansHaveIDs(t *testing.T) {
	_, _ = Init(context.Background(), Options{})
	_, span := otel.Tracer("test").Start(context.Background(), "load")
	defer span.End()
	if !span.SpanContext().IsValid() {
		t.Fatal("SDK provider should produce valid span contexts")
	}
}

func TestInit_Enabled_ReturnsShutdown(t *testing.T) {
	// the grpc exporter connects lazily, so an unreachable endpoint still initializes
	shutdown, err := Init(context.Background(), Options{
		Enabled:  true,
		Endpoint: "127.0.0.1:1",
		Insecure: true,
		Sample:   1,
		Service:  "pathload-test",
	})
	if err != nil {
		// a dial error within the bounded timeout is acceptable too
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = shutdown(ctx)
}
