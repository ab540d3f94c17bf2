package interceptors

import (
	"context"
	"log"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"guild-sync/backend/internal/gateway"
)

// AccessLogUnary returns a unary server interceptor that logs every gateway call with the calling worker,
// status code and duration. skipMethods is the set of full method names to not log (e.g. health checks).
// Successful GetUnprocessedEvents polls are only logged when logPolls is true; they fire every few seconds per worker.
func AccessLogUnary(skipMethods map[string]bool, logPolls bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if skipMethods[info.FullMethod] {
			return resp, err
		}
		code := status.Code(err)
		if code == codes.OK && !logPolls && isPoll(info.FullMethod) {
			return resp, err
		}
		worker := gateway.WorkerID(ctx)
		if worker == "" {
			worker = "-"
		}
		log.Printf("gateway: %s worker=%s ip=%s code=%s duration=%s",
			info.FullMethod, worker, ClientIP(ctx), code, time.Since(start).Round(time.Millisecond))
		return resp, err
	}
}

func isPoll(fullMethod string) bool {
	return fullMethod == gateway.FullMethod(gateway.NamespaceRole, gateway.MethodGetUnprocessedEvents) ||
		fullMethod == gateway.FullMethod(gateway.NamespaceChannel, gateway.MethodGetUnprocessedEvents)
}
