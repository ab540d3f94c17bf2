package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	mappingdomain "guild-sync/backend/internal/mapping/domain"
	outboxrepo "guild-sync/backend/internal/outbox/repository"
	"guild-sync/backend/internal/syncevent/domain"
)

// mockOutbox implements outboxrepo.Repository and records which fetch path was used.
type mockOutbox struct {
	rows      []*domain.Row
	claimedBy string
	lease     time.Duration
	plainRead bool
	ackErr    error
	processed []string
}

func (m *mockOutbox) Append(ctx context.Context, row *domain.Row) error { return nil }

func (m *mockOutbox) GetEvent(ctx context.Context, id string) (*domain.Row, error) { return nil, nil }

func (m *mockOutbox) GetUnprocessedEvents(ctx context.Context, d domain.Domain, limit int) ([]*domain.Row, error) {
	m.plainRead = true
	return m.rows, nil
}

func (m *mockOutbox) ClaimUnprocessedEvents(ctx context.Context, d domain.Domain, workerID string, lease time.Duration, limit int) ([]*domain.Row, error) {
	m.claimedBy, m.lease = workerID, lease
	return m.rows, nil
}

func (m *mockOutbox) MarkEventProcessed(ctx context.Context, id string) error {
	m.processed = append(m.processed, id)
	return m.ackErr
}

func (m *mockOutbox) MarkEventFailed(ctx context.Context, id, reason string) error { return m.ackErr }

func (m *mockOutbox) ListFailedEvents(ctx context.Context, d domain.Domain, limit int) ([]*domain.Row, error) {
	return nil, nil
}

func (m *mockOutbox) RequeueEvent(ctx context.Context, id string) error { return nil }

type mockRoleMappings struct {
	m map[string]mappingdomain.RoleMapping
}

func (r *mockRoleMappings) Get(ctx context.Context, teamID, roleID string) (*mappingdomain.RoleMapping, error) {
	m, ok := r.m[teamID+"/"+roleID]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (r *mockRoleMappings) Upsert(ctx context.Context, teamID, roleID string, m mappingdomain.RoleMapping) (*mappingdomain.RoleMapping, error) {
	if existing, ok := r.m[teamID+"/"+roleID]; ok {
		return &existing, nil
	}
	r.m[teamID+"/"+roleID] = m
	return &m, nil
}

func (r *mockRoleMappings) Delete(ctx context.Context, teamID, roleID string) error {
	delete(r.m, teamID+"/"+roleID)
	return nil
}

func newLocal(lease time.Duration) (*Local[mappingdomain.RoleMapping], *mockOutbox) {
	ob := &mockOutbox{rows: []*domain.Row{
		{ID: "e1", Domain: domain.DomainRole, Tag: domain.TagRoleDeleted, TeamID: "team-a", Payload: []byte(`{"team":"team-a","role":"r1"}`)},
		{ID: "e2", Domain: domain.DomainRole, Tag: domain.TagRoleDeleted, TeamID: "team-a", Payload: []byte(`garbage`)},
	}}
	return NewLocal[mappingdomain.RoleMapping](domain.DomainRole, ob, &mockRoleMappings{m: map[string]mappingdomain.RoleMapping{}}, lease), ob
}

func TestLocal_GetUnprocessedEventsDecodesPerRow(t *testing.T) {
	g, ob := newLocal(0)
	events, err := g.GetUnprocessedEvents(context.Background(), 50)
	if err != nil {
		t.Fatalf("GetUnprocessedEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if _, ok := events[0].(domain.RoleDeleted); !ok {
		t.Errorf("events[0] = %T, want RoleDeleted", events[0])
	}
	if _, ok := events[1].(domain.Undecodable); !ok {
		t.Errorf("events[1] = %T, want Undecodable", events[1])
	}
	if !ob.plainRead {
		t.Error("without a lease the plain read should be used")
	}
}

func TestLocal_ClaimsWhenLeasedAndAttributed(t *testing.T) {
	g, ob := newLocal(time.Minute)

	if _, err := g.GetUnprocessedRows(context.Background(), 10); err != nil {
		t.Fatalf("GetUnprocessedRows: %v", err)
	}
	if !ob.plainRead || ob.claimedBy != "" {
		t.Error("an unattributed call should not claim")
	}

	ob.plainRead = false
	ctx := WithWorkerID(context.Background(), "worker-1")
	if _, err := g.GetUnprocessedRows(ctx, 10); err != nil {
		t.Fatalf("GetUnprocessedRows: %v", err)
	}
	if ob.plainRead || ob.claimedBy != "worker-1" || ob.lease != time.Minute {
		t.Errorf("claimedBy=%q lease=%s plainRead=%v", ob.claimedBy, ob.lease, ob.plainRead)
	}
}

func TestLocal_AckMapsNotFound(t *testing.T) {
	g, ob := newLocal(0)
	ob.ackErr = outboxrepo.ErrEventNotFound
	if err := g.MarkEventProcessed(context.Background(), "missing"); !errors.Is(err, ErrEventNotFound) {
		t.Errorf("MarkEventProcessed err = %v, want ErrEventNotFound", err)
	}
	if err := g.MarkEventFailed(context.Background(), "missing", "boom"); !errors.Is(err, ErrEventNotFound) {
		t.Errorf("MarkEventFailed err = %v, want ErrEventNotFound", err)
	}
}

func TestLocal_MappingVerbs(t *testing.T) {
	g, _ := newLocal(0)
	ctx := context.Background()
	if m, err := g.GetMapping(ctx, "team-a", "r1"); m != nil || err != nil {
		t.Fatalf("GetMapping = %v, %v; want nil, nil", m, err)
	}
	first, err := g.UpsertMapping(ctx, "team-a", "r1", mappingdomain.RoleMapping{TeamID: "team-a", RoleID: "r1", ExternalRoleID: "x1"})
	if err != nil || first.ExternalRoleID != "x1" {
		t.Fatalf("UpsertMapping = %v, %v", first, err)
	}
	second, _ := g.UpsertMapping(ctx, "team-a", "r1", mappingdomain.RoleMapping{TeamID: "team-a", RoleID: "r1", ExternalRoleID: "x2"})
	if second.ExternalRoleID != "x1" {
		t.Errorf("second upsert = %q, want stored x1", second.ExternalRoleID)
	}
	if err := g.DeleteMapping(ctx, "team-a", "r1"); err != nil {
		t.Fatalf("DeleteMapping: %v", err)
	}
	if m, _ := g.GetMapping(ctx, "team-a", "r1"); m != nil {
		t.Error("mapping should be gone")
	}
}

func TestNamespaces(t *testing.T) {
	if NamespaceFor(domain.DomainChannel) != NamespaceChannel || NamespaceFor(domain.DomainRole) != NamespaceRole {
		t.Error("NamespaceFor wrong")
	}
	if FullMethod(NamespaceChannel, MethodGetMapping) != "/channelsync.v1.ChannelSyncGateway/GetMapping" {
		t.Errorf("FullMethod = %q", FullMethod(NamespaceChannel, MethodGetMapping))
	}
}
