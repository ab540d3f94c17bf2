// Package handler exposes health.Checker over the standard gRPC health protocol and over HTTP.
package handler

import (
	"context"
	"log"
	"time"

	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"guild-sync/backend/internal/health"
)

// CheckMethod is the full method name of the gRPC health check, which is always public.
const CheckMethod = "/grpc.health.v1.Health/Check"

// Sync runs checker every interval and publishes the result for the overall server ("") and each service
// until ctx is done, then marks everything NOT_SERVING.
func Sync(ctx context.Context, checker *health.Checker, hs *grpchealth.Server, interval time.Duration, services ...string) {
	set := func(st healthpb.HealthCheckResponse_ServingStatus) {
		hs.SetServingStatus("", st)
		for _, s := range services {
			hs.SetServingStatus(s, st)
		}
	}
	update := func() {
		results, ok := checker.Run(ctx)
		if ok {
			set(healthpb.HealthCheckResponse_SERVING)
			return
		}
		for _, r := range results {
			if r.Error != "" {
				log.Printf("health: %s check failed: %s", r.Name, r.Error)
			}
		}
		set(healthpb.HealthCheckResponse_NOT_SERVING)
	}

	update()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			hs.Shutdown()
			return
		case <-t.C:
			update()
		}
	}
}
