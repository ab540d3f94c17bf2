package otel

import (
	"context"
	"encoding/json"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"guild-sync/backend/internal/telemetry"
	"guild-sync/backend/internal/telemetry/domain"
)

// NewEventEmitter returns an EventEmitter that sends outcomes as OTel log records via the given LoggerProvider.
// If provider is nil, returns a no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) telemetry.EventEmitter {
	if provider == nil {
		return noopEmitter{}
	}
	return NewEventEmitterWithLogger(provider.Logger("guildsync.dispatch"))
}

// NewEventEmitterWithLogger returns an emitter writing to logger.
func NewEventEmitterWithLogger(logger otellog.Logger) telemetry.EventEmitter {
	return &otelEmitter{logger: logger}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *domain.Outcome) error { return nil }

type otelEmitter struct {
	logger otellog.Logger
}

// Emit converts the outcome to an OTel log record; failures are logged at ERROR severity.
func (e *otelEmitter) Emit(ctx context.Context, o *domain.Outcome) error {
	if o == nil {
		return nil
	}
	rec := otellog.Record{}
	if !o.CreatedAt.IsZero() {
		rec.SetTimestamp(o.CreatedAt)
	} else {
		rec.SetTimestamp(time.Now().UTC())
	}
	if o.Status == domain.StatusFailed {
		rec.SetSeverity(otellog.SeverityError)
		rec.SetBody(otellog.StringValue(o.Error))
	} else {
		rec.SetSeverity(otellog.SeverityInfo)
		if body, err := json.Marshal(o); err == nil {
			rec.SetBody(otellog.BytesValue(body))
		}
	}
	attrs := []otellog.KeyValue{
		otellog.String("event_id", o.EventID),
		otellog.String("domain", o.Domain),
		otellog.String("tag", o.Tag),
		otellog.String("team_id", o.TeamID),
		otellog.String("status", string(o.Status)),
		otellog.Int64("duration_ms", o.DurationMS),
	}
	if o.WorkerID != "" {
		attrs = append(attrs, otellog.String("worker_id", o.WorkerID))
	}
	rec.AddAttributes(attrs...)
	e.logger.Emit(ctx, rec)
	return nil
}
