// Package gateway is the Sync Gateway: the outbox and mapping verbs the worker uses, one contract per domain.
// Local serves the contract from the database; handler and client carry it over gRPC.
package gateway

import (
	"context"
	"errors"

	mappingdomain "guild-sync/backend/internal/mapping/domain"
	"guild-sync/backend/internal/syncevent/domain"
)

// ErrEventNotFound is returned when an ack names an event the outbox does not have.
var ErrEventNotFound = errors.New("gateway: event not found")

// Gateway is the per-domain contract. GetMapping returns nil, nil when no mapping exists.
// UpsertMapping never overwrites: it returns the mapping actually stored, which may predate the call.
type Gateway[M any] interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]domain.Event, error)
	MarkEventProcessed(ctx context.Context, id string) error
	MarkEventFailed(ctx context.Context, id, reason string) error
	GetMapping(ctx context.Context, teamID, resourceID string) (*M, error)
	UpsertMapping(ctx context.Context, teamID, resourceID string, m M) (*M, error)
	DeleteMapping(ctx context.Context, teamID, resourceID string) error
}

// RoleGateway is the role-sync contract, keyed by (team, role).
type RoleGateway = Gateway[mappingdomain.RoleMapping]

// ChannelGateway is the channel-sync contract, keyed by (team, subgroup).
type ChannelGateway = Gateway[mappingdomain.ChannelMapping]

// Namespace prefixes the gRPC service name of one domain's gateway.
type Namespace string

const (
	NamespaceRole    Namespace = "rolesync"
	NamespaceChannel Namespace = "channelsync"
)

// NamespaceFor returns the namespace serving d.
func NamespaceFor(d domain.Domain) Namespace {
	if d == domain.DomainChannel {
		return NamespaceChannel
	}
	return NamespaceRole
}

// ServiceName returns the fully qualified gRPC service name for ns, e.g. rolesync.v1.RoleSyncGateway.
func ServiceName(ns Namespace) string {
	switch ns {
	case NamespaceChannel:
		return "channelsync.v1.ChannelSyncGateway"
	default:
		return "rolesync.v1.RoleSyncGateway"
	}
}

type workerIDKey struct{}

// WithWorkerID returns ctx carrying the id of the calling worker (set from its service token).
func WithWorkerID(ctx context.Context, workerID string) context.Context {
	return context.WithValue(ctx, workerIDKey{}, workerID)
}

// WorkerID returns the calling worker's id from ctx, or "" when the call is not attributed.
func WorkerID(ctx context.Context) string {
	id, _ := ctx.Value(workerIDKey{}).(string)
	return id
}
