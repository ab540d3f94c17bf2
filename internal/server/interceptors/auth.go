package interceptors

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"guild-sync/backend/internal/gateway"
)

const bearerPrefix = "bearer "

// ServiceVerifier validates a worker's service token and returns the worker id. *security.TokenProvider implements it.
type ServiceVerifier interface {
	ValidateService(token string) (workerID string, err error)
}

// AuthUnary returns a unary server interceptor that validates the Bearer service token
// from gRPC metadata and puts the worker id in context (see gateway.WorkerID).
// publicMethods is the set of full method names that do not require a token (e.g. grpc.health.v1.Health/Check).
// A nil verifier disables authentication; every call then runs unattributed.
func AuthUnary(verifier ServiceVerifier, publicMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if verifier == nil || publicMethods[info.FullMethod] {
			return handler(ctx, req)
		}
		token := extractBearer(ctx)
		if token == "" {
			return nil, status.Error(codes.Unauthenticated, "missing or invalid authorization")
		}
		workerID, err := verifier.ValidateService(token)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "missing or invalid authorization")
		}
		return handler(gateway.WithWorkerID(ctx, workerID), req)
	}
}

// extractBearer returns the Bearer token from ctx metadata, or "" if missing or malformed.
func extractBearer(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	vals := md.Get("authorization")
	if len(vals) == 0 {
		return ""
	}
	v := strings.TrimSpace(vals[0])
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
