package loki

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"guild-sync/backend/internal/telemetry/domain"
)

func TestPushOutcome_SendsLabelledStream(t *testing.T) {
	var got PushRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/loki/api/v1/push" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ts := time.Unix(1700000000, 5).UTC()
	o := &domain.Outcome{EventID: "e1", Domain: "channel", Tag: "channel_created", Status: domain.StatusFailed, CreatedAt: ts}
	if err := PushOutcome(context.Background(), srv.URL+"/", o, `{"eventId":"e1"}`); err != nil {
		t.Fatalf("PushOutcome: %v", err)
	}
	if len(got.Streams) != 1 {
		t.Fatalf("streams = %d, want 1", len(got.Streams))
	}
	s := got.Streams[0]
	want := map[string]string{"job": Job, "domain": "channel", "tag": "channel_created", "status": "failed"}
	for k, v := range want {
		if s.Stream[k] != v {
			t.Errorf("label %q = %q, want %q", k, s.Stream[k], v)
		}
	}
	if s.Values[0][0] != "1700000000000000005" || s.Values[0][1] != `{"eventId":"e1"}` {
		t.Errorf("values = %v", s.Values)
	}
}

func TestPushEvent_Errors(t *testing.T) {
	if err := PushEvent(context.Background(), "", time.Now(), "x", nil); err == nil {
		t.Error("empty base URL should fail")
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()
	if err := PushEvent(context.Background(), srv.URL, time.Now(), "x", map[string]string{"tag": "a b"}); err == nil {
		t.Error("non-2xx should fail")
	}
}
