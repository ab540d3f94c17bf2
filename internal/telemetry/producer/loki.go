package producer

import (
	"context"
	"encoding/json"

	"guild-sync/backend/internal/telemetry/domain"
	"guild-sync/backend/internal/telemetry/loki"
)

// LokiProducer pushes each outcome straight to Loki. Used when no Kafka pipeline is configured.
type LokiProducer struct {
	baseURL string
}

// NewLokiProducer returns a producer pushing to the Loki instance at baseURL.
func NewLokiProducer(baseURL string) *LokiProducer {
	return &LokiProducer{baseURL: baseURL}
}

func (p *LokiProducer) Emit(ctx context.Context, outcome *domain.Outcome) error {
	if outcome == nil {
		return nil
	}
	line, err := json.Marshal(outcome)
	if err != nil {
		return err
	}
	return loki.PushOutcome(ctx, p.baseURL, outcome, string(line))
}

func (p *LokiProducer) Close() error { return nil }
