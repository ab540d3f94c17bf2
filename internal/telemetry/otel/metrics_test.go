package otel

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestSyncMetrics_Records(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewSyncMetrics(mp)
	if err != nil {
		t.Fatalf("NewSyncMetrics: %v", err)
	}
	ctx := context.Background()
	m.EventProcessed(ctx, "role", "role_created")
	m.EventProcessed(ctx, "role", "role_created")
	m.EventFailed(ctx, "channel", "channel_created")
	m.TickDuration(ctx, "role", 150*time.Millisecond)
	m.ExternalAttempt(ctx, "create role", errors.New("503"))

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	sums := map[string]int64{}
	seen := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			seen[md.Name] = true
			if s, ok := md.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range s.DataPoints {
					sums[md.Name] += dp.Value
				}
			}
		}
	}
	if sums["guildsync.events.processed"] != 2 {
		t.Errorf("processed = %d, want 2", sums["guildsync.events.processed"])
	}
	if sums["guildsync.events.failed"] != 1 {
		t.Errorf("failed = %d, want 1", sums["guildsync.events.failed"])
	}
	if sums["guildsync.external.attempts"] != 1 {
		t.Errorf("attempts = %d, want 1", sums["guildsync.external.attempts"])
	}
	if !seen["guildsync.tick.duration"] {
		t.Error("tick duration histogram not recorded")
	}
}
