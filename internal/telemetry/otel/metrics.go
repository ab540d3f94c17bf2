package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SyncMetrics records dispatch counters and tick latency on a meter.
type SyncMetrics struct {
	processed metric.Int64Counter
	failed    metric.Int64Counter
	tick      metric.Float64Histogram
	attempts  metric.Int64Counter
}

// NewSyncMetrics registers the guildsync instruments on mp.
func NewSyncMetrics(mp metric.MeterProvider) (*SyncMetrics, error) {
	meter := mp.Meter("guild-sync/backend/dispatch")
	processed, err := meter.Int64Counter("guildsync.events.processed",
		metric.WithDescription("Outbox events applied and acknowledged"))
	if err != nil {
		return nil, err
	}
	failed, err := meter.Int64Counter("guildsync.events.failed",
		metric.WithDescription("Outbox events whose handler failed"))
	if err != nil {
		return nil, err
	}
	tick, err := meter.Float64Histogram("guildsync.tick.duration",
		metric.WithDescription("Time to fetch and dispatch one batch"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	attempts, err := meter.Int64Counter("guildsync.external.attempts",
		metric.WithDescription("Calls made to the guild API, retries included"))
	if err != nil {
		return nil, err
	}
	return &SyncMetrics{processed: processed, failed: failed, tick: tick, attempts: attempts}, nil
}

func (m *SyncMetrics) EventProcessed(ctx context.Context, domain, tag string) {
	m.processed.Add(ctx, 1, metric.WithAttributes(attribute.String("domain", domain), attribute.String("tag", tag)))
}

func (m *SyncMetrics) EventFailed(ctx context.Context, domain, tag string) {
	m.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("domain", domain), attribute.String("tag", tag)))
}

func (m *SyncMetrics) TickDuration(ctx context.Context, domain string, d time.Duration) {
	m.tick.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("domain", domain)))
}

// ExternalAttempt counts one guild API call; result is "ok" or "error".
func (m *SyncMetrics) ExternalAttempt(ctx context.Context, call string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.attempts.Add(ctx, 1, metric.WithAttributes(attribute.String("call", call), attribute.String("result", result)))
}
