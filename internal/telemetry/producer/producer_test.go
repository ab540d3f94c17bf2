package producer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/segmentio/kafka-go"

	"guild-sync/backend/internal/telemetry/domain"
)

func TestNew_PicksSink(t *testing.T) {
	p, err := New(nil, "", "")
	if err != nil || p != nil {
		t.Errorf("New with no sinks = %v, %v; want nil, nil", p, err)
	}
	p, err = New(nil, "", "http://loki:3100")
	if err != nil {
		t.Fatalf("New loki: %v", err)
	}
	if _, ok := p.(*LokiProducer); !ok {
		t.Errorf("New loki = %T, want *LokiProducer", p)
	}
	p, err = New([]string{"localhost:9092"}, "guild-sync-outcomes", "http://loki:3100")
	if err != nil {
		t.Fatalf("New kafka: %v", err)
	}
	if _, ok := p.(*KafkaProducer); !ok {
		t.Errorf("New kafka = %T, want *KafkaProducer", p)
	}
	_ = p.Close()
}

func TestLokiProducer_Emit(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	p := NewLokiProducer(srv.URL)
	if err := p.Emit(context.Background(), &domain.Outcome{EventID: "e1", Status: domain.StatusProcessed}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if err := p.Emit(context.Background(), nil); err != nil {
		t.Fatalf("Emit(nil): %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("pushes = %d, want 1", hits.Load())
	}
}

func TestKafkaProducer_NilSafe(t *testing.T) {
	var p *KafkaProducer
	if err := p.Emit(context.Background(), &domain.Outcome{}); err != nil {
		t.Errorf("nil Emit: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("nil Close: %v", err)
	}
}

type recordingWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("write without deadline")
	}
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaProducer_KeysByTeam(t *testing.T) {
	w := &recordingWriter{}
	p := &KafkaProducer{w: w}
	outcome := &domain.Outcome{EventID: "e1", Domain: "role", Tag: "role.created", TeamID: "team-9", Status: domain.StatusFailed}
	if err := p.Emit(context.Background(), outcome); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "team-9" {
		t.Errorf("key = %q, want team-9", msg.Key)
	}
	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	if headers["domain"] != "role" || headers["status"] != "failed" || headers["tag"] != "role.created" {
		t.Errorf("headers = %v", headers)
	}
	var decoded domain.Outcome
	if err := json.Unmarshal(msg.Value, &decoded); err != nil || decoded.EventID != "e1" {
		t.Errorf("value = %s (%v)", msg.Value, err)
	}
	if err := p.Close(); err != nil || !w.closed {
		t.Errorf("Close: %v, closed=%v", err, w.closed)
	}
}

func TestKafkaProducer_WriteError(t *testing.T) {
	want := errors.New("broker down")
	p := &KafkaProducer{w: &recordingWriter{err: want}}
	if err := p.Emit(context.Background(), &domain.Outcome{EventID: "e1"}); !errors.Is(err, want) {
		t.Errorf("Emit = %v, want %v", err, want)
	}
}
