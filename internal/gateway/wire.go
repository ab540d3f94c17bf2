package gateway

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/types/known/timestamppb"

	"guild-sync/backend/internal/syncevent/domain"
)

// CodecName is the gRPC content-subtype the gateway speaks (application/grpc+json).
const CodecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return CodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// Method names, identical in every namespace.
const (
	MethodGetUnprocessedEvents = "GetUnprocessedEvents"
	MethodMarkEventProcessed   = "MarkEventProcessed"
	MethodMarkEventFailed      = "MarkEventFailed"
	MethodGetMapping           = "GetMapping"
	MethodUpsertMapping        = "UpsertMapping"
	MethodDeleteMapping        = "DeleteMapping"
)

// FullMethod returns the gRPC method path, e.g. /rolesync.v1.RoleSyncGateway/GetMapping.
func FullMethod(ns Namespace, method string) string {
	return "/" + ServiceName(ns) + "/" + method
}

type GetUnprocessedEventsRequest struct {
	Limit int32 `json:"limit"`
}

// EventRow is an outbox row on the wire; the worker decodes the payload itself.
type EventRow struct {
	ID        string                 `json:"id"`
	Domain    string                 `json:"domain"`
	Tag       string                 `json:"tag"`
	TeamID    string                 `json:"team"`
	Payload   json.RawMessage        `json:"payload"`
	CreatedAt *timestamppb.Timestamp `json:"createdAt,omitempty"`
	Attempts  int32                  `json:"attempts,omitempty"`
}

type GetUnprocessedEventsResponse struct {
	Events []*EventRow `json:"events"`
}

type MarkEventProcessedRequest struct {
	ID string `json:"id"`
}

type MarkEventFailedRequest struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

type MappingKey struct {
	TeamID     string `json:"team"`
	ResourceID string `json:"resource"`
}

type UpsertMappingRequest struct {
	MappingKey
	Mapping json.RawMessage `json:"mapping"`
}

// MappingResponse carries an optional mapping; Found is false when there is none.
type MappingResponse struct {
	Found   bool            `json:"found"`
	Mapping json.RawMessage `json:"mapping,omitempty"`
}

type Empty struct{}

// RowToWire converts an outbox row for transport.
func RowToWire(r *domain.Row) *EventRow {
	out := &EventRow{
		ID:       r.ID,
		Domain:   string(r.Domain),
		Tag:      string(r.Tag),
		TeamID:   r.TeamID,
		Payload:  r.Payload,
		Attempts: int32(r.Attempts),
	}
	if !r.CreatedAt.IsZero() {
		out.CreatedAt = timestamppb.New(r.CreatedAt)
	}
	return out
}

// RowFromWire converts a transported row back; the result is always pending.
func RowFromWire(w *EventRow) *domain.Row {
	r := &domain.Row{
		ID:       w.ID,
		Domain:   domain.Domain(w.Domain),
		Tag:      domain.Tag(w.Tag),
		TeamID:   w.TeamID,
		Payload:  w.Payload,
		Attempts: int(w.Attempts),
	}
	if w.CreatedAt != nil {
		r.CreatedAt = w.CreatedAt.AsTime()
	}
	return r
}

// SyncGatewayServer is the server side of one namespaced gateway service.
type SyncGatewayServer interface {
	GetUnprocessedEvents(context.Context, *GetUnprocessedEventsRequest) (*GetUnprocessedEventsResponse, error)
	MarkEventProcessed(context.Context, *MarkEventProcessedRequest) (*Empty, error)
	MarkEventFailed(context.Context, *MarkEventFailedRequest) (*Empty, error)
	GetMapping(context.Context, *MappingKey) (*MappingResponse, error)
	UpsertMapping(context.Context, *UpsertMappingRequest) (*MappingResponse, error)
	DeleteMapping(context.Context, *MappingKey) (*Empty, error)
}

// ServiceDesc returns the gRPC service description for the gateway in namespace ns.
func ServiceDesc(ns Namespace) *grpc.ServiceDesc {
	name := ServiceName(ns)
	return &grpc.ServiceDesc{
		ServiceName: name,
		HandlerType: (*SyncGatewayServer)(nil),
		Methods: []grpc.MethodDesc{
			unaryMethod(name, MethodGetUnprocessedEvents, SyncGatewayServer.GetUnprocessedEvents),
			unaryMethod(name, MethodMarkEventProcessed, SyncGatewayServer.MarkEventProcessed),
			unaryMethod(name, MethodMarkEventFailed, SyncGatewayServer.MarkEventFailed),
			unaryMethod(name, MethodGetMapping, SyncGatewayServer.GetMapping),
			unaryMethod(name, MethodUpsertMapping, SyncGatewayServer.UpsertMapping),
			unaryMethod(name, MethodDeleteMapping, SyncGatewayServer.DeleteMapping),
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "gateway/" + string(ns) + ".json",
	}
}

func unaryMethod[Req, Resp any](service, method string, call func(SyncGatewayServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + service + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(SyncGatewayServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
