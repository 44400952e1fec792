package observability

import (
	"context"
	"testing"
)

func TestInitDisabled(t *testing.T) {
	err := Init(Config{Enabled: false})
	if err != nil {
		t.Fatalf("Init with tracing disabled should not fail: %v", err)
	}

	// Spans still work against the noop tracer.
	_, span := StartSpan(context.Background(), "test.span")
	span.End()
}

func TestInitUnknownExporter(t *testing.T) {
	err := Init(Config{Enabled: true, ExporterType: "carrier-pigeon"})
	if err == nil {
		t.Fatal("expected error for unknown exporter type")
	}
}

func TestInitFromEnvDefaultsOff(t *testing.T) {
	t.Setenv("OTEL_TRACES_EXPORTER", "")
	if err := InitFromEnv(); err != nil {
		t.Fatalf("InitFromEnv should default to disabled: %v", err)
	}
}

func TestParseHeaders(t *testing.T) {
	headers := parseHeaders("a=1,b=two,malformed")
	if len(headers) != 2 {
		t.Fatalf("expected 2 headers, got %d", len(headers))
	}
	if headers["a"] != "1" || headers["b"] != "two" {
		t.Errorf("unexpected headers: %v", headers)
	}
	if parseHeaders("") != nil {
		t.Error("empty header string should yield nil")
	}
}

func TestShutdownWithoutInit(t *testing.T) {
	tracerProvider = nil
	if err := Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown without a provider should be nil: %v", err)
	}
}
