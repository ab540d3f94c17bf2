package otel

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
)

func TestNewProviders_NoEndpointIsLocalOnly(t *testing.T) {
	for _, endpoint := range []string{"", "   "} {
		p, err := NewProviders(context.Background(), Settings{Endpoint: endpoint})
		if err != nil {
			t.Fatalf("NewProviders(%q): %v", endpoint, err)
		}
		if p.TracerProvider == nil || p.MeterProvider == nil || p.LoggerProvider == nil {
			t.Fatalf("NewProviders(%q) left a provider nil: %+v", endpoint, p)
		}
		if err := p.Shutdown(context.Background()); err != nil {
			t.Errorf("Shutdown: %v", err)
		}
	}
}

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		endpoint     string
		override     bool
		wantTarget   string
		wantInsecure bool
	}{
		{"localhost:4317", false, "localhost:4317", true},
		{"http://collector:4317", false, "collector:4317", true},
		{"https://collector:4317", false, "collector:4317", false},
		{"https://collector:4317", true, "collector:4317", true},
		{"https://collector:4317/v1/traces", false, "collector:4317", false},
		{"  otel:4317  ", false, "otel:4317", true},
	}
	for _, tt := range tests {
		target, insecure, err := ParseEndpoint(tt.endpoint, tt.override)
		if err != nil {
			t.Errorf("ParseEndpoint(%q): %v", tt.endpoint, err)
			continue
		}
		if target != tt.wantTarget || insecure != tt.wantInsecure {
			t.Errorf("ParseEndpoint(%q, %v) = %q, %v; want %q, %v", tt.endpoint, tt.override, target, insecure, tt.wantTarget, tt.wantInsecure)
		}
	}
}

func TestParseEndpoint_Invalid(t *testing.T) {
	for _, endpoint := range []string{"http://", "http://[::1", "://"} {
		if _, _, err := ParseEndpoint(endpoint, false); err == nil {
			t.Errorf("ParseEndpoint(%q) should fail", endpoint)
		}
	}
	if _, err := NewProviders(context.Background(), Settings{Endpoint: "http://"}); err == nil {
		t.Error("NewProviders with a hostless endpoint should fail")
	}
}

func TestNewProviders_ExportingEndpoint(t *testing.T) {
	// OTLP exporters dial lazily, so construction succeeds without a collector.
	ctx := context.Background()
	p, err := NewProviders(ctx, Settings{Endpoint: "localhost:4317", ServiceName: "guild-sync-worker", InstanceID: "worker-7", MetricInterval: time.Hour})
	if err != nil {
		t.Fatalf("NewProviders: %v", err)
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_ = p.Shutdown(shutdownCtx)
}

func TestNewResource(t *testing.T) {
	res, err := newResource(Settings{InstanceID: "worker-7"})
	if err != nil {
		t.Fatalf("newResource: %v", err)
	}
	got := map[string]string{}
	for _, kv := range res.Attributes() {
		got[string(kv.Key)] = kv.Value.Emit()
	}
	if got[string(semconv.ServiceNameKey)] != DefaultServiceName {
		t.Errorf("service.name = %q, want %q", got[string(semconv.ServiceNameKey)], DefaultServiceName)
	}
	if got[string(semconv.ServiceInstanceIDKey)] != "worker-7" {
		t.Errorf("service.instance.id = %q", got[string(semconv.ServiceInstanceIDKey)])
	}

	res, _ = newResource(Settings{ServiceName: "guild-sync-gateway"})
	for _, kv := range res.Attributes() {
		if kv.Key == semconv.ServiceInstanceIDKey {
			t.Error("service.instance.id should be omitted when empty")
		}
	}
}

func TestSetGlobal(t *testing.T) {
	p, err := NewProviders(context.Background(), Settings{})
	if err != nil {
		t.Fatal(err)
	}
	p.SetGlobal()
	if otel.GetTracerProvider() != p.TracerProvider {
		t.Error("global TracerProvider not set")
	}
	if otel.GetMeterProvider() != p.MeterProvider {
		t.Error("global MeterProvider not set")
	}
	fields := otel.GetTextMapPropagator().Fields()
	if len(fields) == 0 || fields[0] != "traceparent" {
		t.Errorf("propagator fields = %v, want traceparent first", fields)
	}

	(&Providers{}).SetGlobal()
	if otel.GetTracerProvider() != p.TracerProvider {
		t.Error("SetGlobal with nil providers should leave the globals alone")
	}
}
