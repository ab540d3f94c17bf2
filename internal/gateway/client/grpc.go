// Package client implements the Sync Gateway contract over gRPC for the worker process.
package client

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"guild-sync/backend/internal/gateway"
	"guild-sync/backend/internal/syncevent/domain"
)

// Client calls one namespaced gateway service. It implements gateway.Gateway[M].
type Client[M any] struct {
	conn grpc.ClientConnInterface
	ns   gateway.Namespace
}

// New returns a gateway client for namespace ns on conn.
func New[M any](conn grpc.ClientConnInterface, ns gateway.Namespace) *Client[M] {
	return &Client[M]{conn: conn, ns: ns}
}

func (c *Client[M]) invoke(ctx context.Context, method string, in, out any) error {
	return c.conn.Invoke(ctx, gateway.FullMethod(c.ns, method), in, out, grpc.CallContentSubtype(gateway.CodecName))
}

// GetUnprocessedEvents fetches a batch and decodes each row. Rows that fail to decode come back as
// domain.Undecodable so the dispatcher can fail them individually.
func (c *Client[M]) GetUnprocessedEvents(ctx context.Context, limit int) ([]domain.Event, error) {
	var resp gateway.GetUnprocessedEventsResponse
	if err := c.invoke(ctx, gateway.MethodGetUnprocessedEvents, &gateway.GetUnprocessedEventsRequest{Limit: int32(limit)}, &resp); err != nil {
		return nil, err
	}
	events := make([]domain.Event, 0, len(resp.Events))
	for _, w := range resp.Events {
		if w == nil {
			continue
		}
		events = append(events, gateway.RowFromWire(w).Decode())
	}
	return events, nil
}

func (c *Client[M]) MarkEventProcessed(ctx context.Context, id string) error {
	err := c.invoke(ctx, gateway.MethodMarkEventProcessed, &gateway.MarkEventProcessedRequest{ID: id}, &gateway.Empty{})
	return fromStatus(err, id)
}

func (c *Client[M]) MarkEventFailed(ctx context.Context, id, reason string) error {
	err := c.invoke(ctx, gateway.MethodMarkEventFailed, &gateway.MarkEventFailedRequest{ID: id, Error: reason}, &gateway.Empty{})
	return fromStatus(err, id)
}

func (c *Client[M]) GetMapping(ctx context.Context, teamID, resourceID string) (*M, error) {
	var resp gateway.MappingResponse
	if err := c.invoke(ctx, gateway.MethodGetMapping, &gateway.MappingKey{TeamID: teamID, ResourceID: resourceID}, &resp); err != nil {
		return nil, err
	}
	return decodeMapping[M](&resp)
}

func (c *Client[M]) UpsertMapping(ctx context.Context, teamID, resourceID string, m M) (*M, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	req := &gateway.UpsertMappingRequest{
		MappingKey: gateway.MappingKey{TeamID: teamID, ResourceID: resourceID},
		Mapping:    raw,
	}
	var resp gateway.MappingResponse
	if err := c.invoke(ctx, gateway.MethodUpsertMapping, req, &resp); err != nil {
		return nil, err
	}
	stored, err := decodeMapping[M](&resp)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("gateway: upsert %s/%s returned no mapping", teamID, resourceID)
	}
	return stored, nil
}

func (c *Client[M]) DeleteMapping(ctx context.Context, teamID, resourceID string) error {
	return c.invoke(ctx, gateway.MethodDeleteMapping, &gateway.MappingKey{TeamID: teamID, ResourceID: resourceID}, &gateway.Empty{})
}

func decodeMapping[M any](resp *gateway.MappingResponse) (*M, error) {
	if !resp.Found {
		return nil, nil
	}
	m := new(M)
	if err := json.Unmarshal(resp.Mapping, m); err != nil {
		return nil, fmt.Errorf("gateway: decode mapping: %w", err)
	}
	return m, nil
}

func fromStatus(err error, id string) error {
	if err == nil {
		return nil
	}
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%w: %s", gateway.ErrEventNotFound, id)
	}
	return err
}
