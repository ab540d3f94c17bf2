package interceptors

import (
	"context"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"guild-sync/backend/internal/gateway"
	"guild-sync/backend/internal/security"
)

func workerHandler(ctx context.Context, req any) (any, error) {
	return gateway.WorkerID(ctx), nil
}

func withBearer(token string) context.Context {
	return metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer "+token))
}

func TestAuthUnary_PublicMethod(t *testing.T) {
	verifier, err := security.NewTestVerifier()
	if err != nil {
		t.Fatalf("NewTestVerifier: %v", err)
	}
	interceptor := AuthUnary(verifier, map[string]bool{"/grpc.health.v1.Health/Check": true})

	resp, err := interceptor(context.Background(), "request", &grpc.UnaryServerInfo{
		FullMethod: "/grpc.health.v1.Health/Check",
	}, workerHandler)
	if err != nil {
		t.Fatalf("interceptor: %v", err)
	}
	if resp != "" {
		t.Errorf("worker = %v, want unattributed", resp)
	}
}

func TestAuthUnary_ProtectedMethod_NoToken(t *testing.T) {
	verifier, err := security.NewTestVerifier()
	if err != nil {
		t.Fatalf("NewTestVerifier: %v", err)
	}
	interceptor := AuthUnary(verifier, nil)

	_, err = interceptor(context.Background(), "request", &grpc.UnaryServerInfo{
		FullMethod: "/rolesync.v1.RoleSyncGateway/GetMapping",
	}, workerHandler)
	if status.Code(err) != codes.Unauthenticated {
		t.Errorf("status code = %v, want %v", status.Code(err), codes.Unauthenticated)
	}
}

func TestAuthUnary_ProtectedMethod_ValidToken(t *testing.T) {
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	token, _, err := tokens.IssueService("worker-1")
	if err != nil {
		t.Fatalf("IssueService: %v", err)
	}
	verifier, err := security.NewTestVerifier()
	if err != nil {
		t.Fatalf("NewTestVerifier: %v", err)
	}
	interceptor := AuthUnary(verifier, nil)

	resp, err := interceptor(withBearer(token), "request", &grpc.UnaryServerInfo{
		FullMethod: "/rolesync.v1.RoleSyncGateway/GetMapping",
	}, workerHandler)
	if err != nil {
		t.Fatalf("interceptor: %v", err)
	}
	if resp != "worker-1" {
		t.Errorf("worker = %v, want worker-1", resp)
	}
}

func TestAuthUnary_ProtectedMethod_InvalidToken(t *testing.T) {
	verifier, err := security.NewTestVerifier()
	if err != nil {
		t.Fatalf("NewTestVerifier: %v", err)
	}
	interceptor := AuthUnary(verifier, nil)

	_, err = interceptor(withBearer("not-a-jwt"), "request", &grpc.UnaryServerInfo{
		FullMethod: "/channelsync.v1.ChannelSyncGateway/DeleteMapping",
	}, workerHandler)
	if status.Code(err) != codes.Unauthenticated {
		t.Errorf("status code = %v, want %v", status.Code(err), codes.Unauthenticated)
	}
}

func TestAuthUnary_NilVerifierPassesThrough(t *testing.T) {
	interceptor := AuthUnary(nil, nil)
	resp, err := interceptor(context.Background(), "request", &grpc.UnaryServerInfo{FullMethod: "/x/y"}, workerHandler)
	if err != nil || resp != "" {
		t.Errorf("resp=%v err=%v, want unattributed pass-through", resp, err)
	}
}

func TestExtractBearer(t *testing.T) {
	tests := []struct {
		name string
		md   metadata.MD
		want string
	}{
		{"no metadata", nil, ""},
		{"no header", metadata.Pairs("x", "y"), ""},
		{"lowercase scheme", metadata.Pairs("authorization", "bearer abc"), "abc"},
		{"padded", metadata.Pairs("authorization", "  Bearer   abc  "), "abc"},
		{"basic", metadata.Pairs("authorization", "Basic abc"), ""},
		{"too short", metadata.Pairs("authorization", "Bear"), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			if tt.md != nil {
				ctx = metadata.NewIncomingContext(ctx, tt.md)
			}
			if got := extractBearer(ctx); got != tt.want {
				t.Errorf("extractBearer = %q, want %q", got, tt.want)
			}
		})
	}
}
