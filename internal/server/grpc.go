// Package server assembles the Sync Gateway gRPC server: both namespaced gateway services,
// the standard health service, auth and access-log interceptors, and otelgrpc instrumentation.
package server

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"guild-sync/backend/internal/gateway"
	gatewayhandler "guild-sync/backend/internal/gateway/handler"
	healthhandler "guild-sync/backend/internal/health/handler"
	mappingdomain "guild-sync/backend/internal/mapping/domain"
	"guild-sync/backend/internal/server/interceptors"
)

// Deps holds the backends served by the gateway.
type Deps struct {
	// Role backs rolesync.v1.RoleSyncGateway. If nil, its RPCs return Unavailable.
	Role gatewayhandler.Backend[mappingdomain.RoleMapping]
	// Channel backs channelsync.v1.ChannelSyncGateway. If nil, its RPCs return Unavailable.
	Channel gatewayhandler.Backend[mappingdomain.ChannelMapping]
	// Health is the grpc.health.v1 server. If nil, the health service is not registered.
	Health *grpchealth.Server
}

// PublicMethods are callable without a service token.
var PublicMethods = map[string]bool{
	healthhandler.CheckMethod: true,
}

// ServiceNames lists the gateway services, for health status publishing.
func ServiceNames() []string {
	return []string{gateway.ServiceName(gateway.NamespaceRole), gateway.ServiceName(gateway.NamespaceChannel)}
}

// NewServer returns a gRPC server with auth, access logging and otelgrpc tracing installed.
// A nil verifier disables authentication.
func NewServer(verifier interceptors.ServiceVerifier, opts ...grpc.ServerOption) *grpc.Server {
	base := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			interceptors.AuthUnary(verifier, PublicMethods),
			interceptors.AccessLogUnary(PublicMethods, false),
		),
	}
	return grpc.NewServer(append(base, opts...)...)
}

// RegisterServices registers the gateway services (and health, when set) with s.
//
// Service → handler mapping:
//   - rolesync.v1.RoleSyncGateway       → internal/gateway/handler (role mappings)
//   - channelsync.v1.ChannelSyncGateway → internal/gateway/handler (channel mappings)
//   - grpc.health.v1.Health             → google.golang.org/grpc/health, fed by internal/health/handler
func RegisterServices(s grpc.ServiceRegistrar, deps Deps) {
	gatewayhandler.Register(s, gateway.NamespaceRole, gatewayhandler.NewServer(deps.Role))
	gatewayhandler.Register(s, gateway.NamespaceChannel, gatewayhandler.NewServer(deps.Channel))
	if deps.Health != nil {
		healthpb.RegisterHealthServer(s, deps.Health)
	}
}
