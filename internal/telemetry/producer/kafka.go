package producer

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"guild-sync/backend/internal/telemetry/domain"
)

// kafkaWriteTimeout bounds a single WriteMessages call.
const kafkaWriteTimeout = 5 * time.Second

// messageWriter is the part of *kafka.Writer the producer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaProducer publishes outcomes to a topic the outcome relay consumes.
type KafkaProducer struct {
	w messageWriter
}

// NewKafkaProducer returns a producer for topic, or nil when brokers or topic are missing.
// Messages are hashed on team id so a team's outcomes stay ordered within one partition.
func NewKafkaProducer(brokers []string, topic string) (*KafkaProducer, error) {
	if len(brokers) == 0 || topic == "" {
		return nil, nil
	}
	return &KafkaProducer{w: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}}, nil
}

// outcomeMessage encodes an outcome with routing headers the relay can filter on without decoding.
func outcomeMessage(o *domain.Outcome) (kafka.Message, error) {
	value, err := json.Marshal(o)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(o.TeamID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "domain", Value: []byte(o.Domain)},
			{Key: "status", Value: []byte(string(o.Status))},
			{Key: "tag", Value: []byte(o.Tag)},
		},
	}, nil
}

func (p *KafkaProducer) Emit(ctx context.Context, outcome *domain.Outcome) error {
	if p == nil || p.w == nil || outcome == nil {
		return nil
	}
	msg, err := outcomeMessage(outcome)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, kafkaWriteTimeout)
	defer cancel()
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		log.Printf("telemetry: kafka: event %s: %v", outcome.EventID, err)
		return err
	}
	return nil
}

func (p *KafkaProducer) Close() error {
	if p == nil || p.w == nil {
		return nil
	}
	return p.w.Close()
}
