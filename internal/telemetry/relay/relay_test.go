package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"

	"guild-sync/backend/internal/telemetry/loki"
)

// scriptedReader returns its messages in order, then cancels the run and blocks until ctx is done.
type scriptedReader struct {
	msgs   []kafka.Message
	errs   []error
	cancel context.CancelFunc
}

func (r *scriptedReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		return kafka.Message{}, err
	}
	if len(r.msgs) > 0 {
		m := r.msgs[0]
		r.msgs = r.msgs[1:]
		return m, nil
	}
	r.cancel()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func lokiRecorder(t *testing.T) (*httptest.Server, func() []loki.PushRequest) {
	t.Helper()
	var mu sync.Mutex
	var pushes []loki.PushRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req loki.PushRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		mu.Lock()
		pushes = append(pushes, req)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []loki.PushRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]loki.PushRequest(nil), pushes...)
	}
}

func TestRun_PushesOutcomesAndSkipsBadMessages(t *testing.T) {
	srv, pushes := lokiRecorder(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := &scriptedReader{
		errs: []error{errors.New("broker hiccup")},
		msgs: []kafka.Message{
			{Value: []byte(`{"eventId":"e1","domain":"role","tag":"role_created","status":"processed"}`)},
			{Value: []byte(`not json`)},
			{Value: []byte(`{"eventId":"e2","domain":"channel","tag":"channel_deleted","status":"failed","error":"boom"}`)},
		},
		cancel: cancel,
	}

	if err := Run(ctx, r, srv.URL); err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := pushes()
	if len(got) != 2 {
		t.Fatalf("pushes = %d, want 2", len(got))
	}
	if got[0].Streams[0].Stream["status"] != "processed" || got[1].Streams[0].Stream["domain"] != "channel" {
		t.Errorf("labels = %v, %v", got[0].Streams[0].Stream, got[1].Streams[0].Stream)
	}
}

func TestPush_RejectsOutcomeWithoutEventID(t *testing.T) {
	if err := Push(context.Background(), "http://unused", []byte(`{"domain":"role"}`)); err == nil {
		t.Error("Push without eventId should fail")
	}
}
