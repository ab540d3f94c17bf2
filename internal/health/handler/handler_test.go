package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"guild-sync/backend/internal/health"
)

func TestRouter(t *testing.T) {
	checker := health.NewChecker()
	var failing atomic.Bool
	checker.Add("gateway", func(context.Context) error {
		if failing.Load() {
			return errors.New("down")
		}
		return nil
	})
	srv := httptest.NewServer(Router(checker))
	defer srv.Close()

	get := func(path string) int {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}
	if code := get("/healthz"); code != http.StatusOK {
		t.Errorf("/healthz = %d", code)
	}
	if code := get("/readyz"); code != http.StatusOK {
		t.Errorf("/readyz = %d, want 200", code)
	}
	failing.Store(true)
	if code := get("/readyz"); code != http.StatusServiceUnavailable {
		t.Errorf("/readyz = %d, want 503", code)
	}
}

func TestSync_PublishesStatus(t *testing.T) {
	checker := health.NewChecker()
	checker.Add("postgres", func(context.Context) error { return errors.New("down") })
	hs := grpchealth.NewServer()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Sync(ctx, checker, hs, time.Hour, "rolesync.v1.RoleSyncGateway")
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for {
		resp, err := hs.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "rolesync.v1.RoleSyncGateway"})
		if err == nil && resp.Status == healthpb.HealthCheckResponse_NOT_SERVING {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("status never became NOT_SERVING (resp=%v err=%v)", resp, err)
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done
}
