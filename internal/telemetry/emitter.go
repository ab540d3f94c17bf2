package telemetry

import (
	"context"
	"errors"

	"guild-sync/backend/internal/telemetry/domain"
)

// EventEmitter publishes sync outcomes (OTel logs, Kafka, Loki). Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, outcome *domain.Outcome) error
}

// Multi fans an outcome out to every emitter. Nil entries are skipped.
type Multi []EventEmitter

// Emit calls every emitter and joins their errors.
func (m Multi) Emit(ctx context.Context, outcome *domain.Outcome) error {
	var errs []error
	for _, e := range m {
		if e == nil {
			continue
		}
		if err := e.Emit(ctx, outcome); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
