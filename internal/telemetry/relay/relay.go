// Package relay moves sync outcomes from the Kafka topic the workers write to into Loki.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"guild-sync/backend/internal/telemetry/domain"
	"guild-sync/backend/internal/telemetry/loki"
)

// Reader is the part of *kafka.Reader the relay uses.
type Reader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// NewReader returns a consumer-group reader for topic.
func NewReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		CommitInterval: time.Second,
	})
}

const pushTimeout = 10 * time.Second

// Run reads outcomes until ctx is done. Read and push failures are logged; a bad message is skipped.
func Run(ctx context.Context, r Reader, lokiURL string) error {
	for {
		msg, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Printf("relay: kafka read error: %v", err)
			continue
		}
		pushCtx, cancel := context.WithTimeout(ctx, pushTimeout)
		if err := Push(pushCtx, lokiURL, msg.Value); err != nil {
			log.Printf("relay: offset %d: %v", msg.Offset, err)
		}
		cancel()
	}
}

// Push decodes one outcome message and sends it to Loki, labelled from the outcome itself.
func Push(ctx context.Context, lokiURL string, value []byte) error {
	var o domain.Outcome
	if err := json.Unmarshal(value, &o); err != nil {
		return fmt.Errorf("decode outcome: %w", err)
	}
	if o.EventID == "" {
		return fmt.Errorf("decode outcome: missing eventId")
	}
	return loki.PushOutcome(ctx, lokiURL, &o, string(value))
}
