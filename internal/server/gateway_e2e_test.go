package server

import (
	"context"
	"errors"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"guild-sync/backend/internal/gateway"
	"guild-sync/backend/internal/gateway/client"
	"guild-sync/backend/internal/gateway/gatewaytest"
	mappingdomain "guild-sync/backend/internal/mapping/domain"
	"guild-sync/backend/internal/security"
	"guild-sync/backend/internal/syncevent/domain"
)

const bufSize = 1 << 20

type harness struct {
	role    *gatewaytest.Memory[mappingdomain.RoleMapping]
	channel *gatewaytest.Memory[mappingdomain.ChannelMapping]
	lis     *bufconn.Listener
}

func startGateway(t *testing.T) *harness {
	t.Helper()
	verifier, err := security.NewTestVerifier()
	if err != nil {
		t.Fatalf("NewTestVerifier: %v", err)
	}
	h := &harness{
		role:    gatewaytest.NewMemory[mappingdomain.RoleMapping](),
		channel: gatewaytest.NewMemory[mappingdomain.ChannelMapping](),
		lis:     bufconn.Listen(bufSize),
	}
	s := NewServer(verifier)
	RegisterServices(s, Deps{Role: h.role, Channel: h.channel, Health: grpchealth.NewServer()})
	go func() { _ = s.Serve(h.lis) }()
	t.Cleanup(s.Stop)
	return h
}

func (h *harness) dial(t *testing.T, opts ...grpc.DialOption) *grpc.ClientConn {
	t.Helper()
	base := []grpc.DialOption{
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return h.lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
	conn, err := grpc.NewClient("passthrough:///bufnet", append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func (h *harness) dialWorker(t *testing.T) *grpc.ClientConn {
	t.Helper()
	provider, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	return h.dial(t, grpc.WithPerRPCCredentials(security.NewServiceCredentials(provider, "worker-1", false)))
}

func TestGateway_EventsRoundTrip(t *testing.T) {
	h := startGateway(t)
	h.role.Append(domain.RoleCreated{Base: domain.Base{ID: "e1", Team: "team-a"}, RoleID: "r1", RoleName: "Admin"})
	h.role.AppendRow(&domain.Row{ID: "e2", Domain: domain.DomainRole, Tag: domain.TagRoleCreated, TeamID: "team-a", Payload: []byte(`{"team":`)})
	h.channel.Append(domain.ChannelDeleted{Base: domain.Base{ID: "c1", Team: "team-a"}, SubgroupID: "s1"})

	ctx := context.Background()
	roles := client.New[mappingdomain.RoleMapping](h.dialWorker(t), gateway.NamespaceRole)
	events, err := roles.GetUnprocessedEvents(ctx, 10)
	if err != nil {
		t.Fatalf("GetUnprocessedEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	rc, ok := events[0].(domain.RoleCreated)
	if !ok || rc.RoleName != "Admin" || rc.EventID() != "e1" {
		t.Errorf("events[0] = %#v", events[0])
	}
	if _, ok := events[1].(domain.Undecodable); !ok {
		t.Errorf("events[1] = %T, want Undecodable", events[1])
	}

	if err := roles.MarkEventProcessed(ctx, "e1"); err != nil {
		t.Fatalf("MarkEventProcessed: %v", err)
	}
	if err := roles.MarkEventFailed(ctx, "e2", "decode failed"); err != nil {
		t.Fatalf("MarkEventFailed: %v", err)
	}
	if f := h.role.Failures(); len(f) != 1 || f[0].Reason != "decode failed" {
		t.Errorf("failures = %+v", f)
	}

	channels := client.New[mappingdomain.ChannelMapping](h.dialWorker(t), gateway.NamespaceChannel)
	chEvents, err := channels.GetUnprocessedEvents(ctx, 0)
	if err != nil || len(chEvents) != 1 || chEvents[0].EventID() != "c1" {
		t.Errorf("channel events = %v, %v", chEvents, err)
	}
}

func TestGateway_AckUnknownEventIsNotFound(t *testing.T) {
	h := startGateway(t)
	roles := client.New[mappingdomain.RoleMapping](h.dialWorker(t), gateway.NamespaceRole)
	err := roles.MarkEventProcessed(context.Background(), "missing")
	if !errors.Is(err, gateway.ErrEventNotFound) {
		t.Errorf("err = %v, want ErrEventNotFound", err)
	}
}

func TestGateway_Mappings(t *testing.T) {
	h := startGateway(t)
	ctx := context.Background()
	channels := client.New[mappingdomain.ChannelMapping](h.dialWorker(t), gateway.NamespaceChannel)

	m, err := channels.GetMapping(ctx, "team-a", "s1")
	if err != nil || m != nil {
		t.Fatalf("GetMapping = %v, %v; want nil, nil", m, err)
	}

	role := "role-1"
	stored, err := channels.UpsertMapping(ctx, "team-a", "s1", mappingdomain.ChannelMapping{
		TeamID: "team-a", SubgroupID: "s1", ExternalChannelID: "chan-1", ExternalRoleID: &role,
	})
	if err != nil {
		t.Fatalf("UpsertMapping: %v", err)
	}
	if stored.ExternalChannelID != "chan-1" || stored.CompanionRole() != "role-1" {
		t.Errorf("stored = %+v", stored)
	}

	again, err := channels.UpsertMapping(ctx, "team-a", "s1", mappingdomain.ChannelMapping{TeamID: "team-a", SubgroupID: "s1", ExternalChannelID: "chan-2"})
	if err != nil {
		t.Fatalf("second UpsertMapping: %v", err)
	}
	if again.ExternalChannelID != "chan-1" {
		t.Errorf("second upsert returned %q, want the stored chan-1", again.ExternalChannelID)
	}

	if err := channels.DeleteMapping(ctx, "team-a", "s1"); err != nil {
		t.Fatalf("DeleteMapping: %v", err)
	}
	if m, _ := channels.GetMapping(ctx, "team-a", "s1"); m != nil {
		t.Errorf("mapping after delete = %+v", m)
	}
}

func TestGateway_RejectsMissingToken(t *testing.T) {
	h := startGateway(t)
	roles := client.New[mappingdomain.RoleMapping](h.dial(t), gateway.NamespaceRole)
	_, err := roles.GetUnprocessedEvents(context.Background(), 10)
	if status.Code(err) != codes.Unauthenticated {
		t.Errorf("code = %v, want Unauthenticated", status.Code(err))
	}
}

func TestGateway_HealthIsPublic(t *testing.T) {
	h := startGateway(t)
	resp, err := healthpb.NewHealthClient(h.dial(t)).Check(context.Background(), &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if resp.Status != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("status = %v, want SERVING", resp.Status)
	}
}

func TestGateway_InvalidArguments(t *testing.T) {
	h := startGateway(t)
	roles := client.New[mappingdomain.RoleMapping](h.dialWorker(t), gateway.NamespaceRole)
	if _, err := roles.GetMapping(context.Background(), "", "r1"); status.Code(err) != codes.InvalidArgument {
		t.Errorf("GetMapping without team: code = %v, want InvalidArgument", status.Code(err))
	}
	if _, err := roles.GetUnprocessedEvents(context.Background(), 10_000); status.Code(err) != codes.InvalidArgument {
		t.Errorf("oversized batch: code = %v, want InvalidArgument", status.Code(err))
	}
}
