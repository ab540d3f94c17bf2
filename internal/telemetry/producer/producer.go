// Package producer publishes sync outcomes to an external log pipeline (Kafka, or Loki directly).
package producer

import (
	"context"

	"guild-sync/backend/internal/telemetry/domain"
)

// Producer emits sync outcomes. Callers use it best-effort: log and ignore errors.
type Producer interface {
	// Emit sends a single outcome. Implementations may block briefly; use telemetry.EmitAsync from hot paths.
	Emit(ctx context.Context, outcome *domain.Outcome) error
	// Close releases resources (e.g. Kafka writer). Safe to call if already closed.
	Close() error
}

// New picks the producer for the configured sinks: Kafka when brokers and topic are set, else Loki when lokiURL is set.
// Returns nil, nil when neither is configured.
func New(brokers []string, topic, lokiURL string) (Producer, error) {
	if len(brokers) > 0 && topic != "" {
		return NewKafkaProducer(brokers, topic)
	}
	if lokiURL != "" {
		return NewLokiProducer(lokiURL), nil
	}
	return nil, nil
}
