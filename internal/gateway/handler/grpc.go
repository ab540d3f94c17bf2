package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"guild-sync/backend/internal/gateway"
	"guild-sync/backend/internal/syncevent/domain"
)

// Backend is what the gRPC server needs from a gateway: the contract plus raw row access.
type Backend[M any] interface {
	gateway.Gateway[M]
	GetUnprocessedRows(ctx context.Context, limit int) ([]*domain.Row, error)
}

// Server implements one namespaced SyncGateway gRPC service over a Backend.
type Server[M any] struct {
	backend Backend[M]
}

// NewServer returns a gateway gRPC server. backend may be nil; then every RPC returns Unavailable.
func NewServer[M any](backend Backend[M]) *Server[M] {
	return &Server[M]{backend: backend}
}

// Register registers srv as the gateway service for ns.
func Register(s grpc.ServiceRegistrar, ns gateway.Namespace, srv gateway.SyncGatewayServer) {
	s.RegisterService(gateway.ServiceDesc(ns), srv)
}

const maxBatch = 500

func (s *Server[M]) GetUnprocessedEvents(ctx context.Context, req *gateway.GetUnprocessedEventsRequest) (*gateway.GetUnprocessedEventsResponse, error) {
	if s.backend == nil {
		return nil, status.Error(codes.Unavailable, "gateway backend not configured")
	}
	if req.Limit < 0 || req.Limit > maxBatch {
		return nil, status.Errorf(codes.InvalidArgument, "limit must be between 0 and %d", maxBatch)
	}
	rows, err := s.backend.GetUnprocessedRows(ctx, int(req.Limit))
	if err != nil {
		return nil, internalError("get unprocessed events", err)
	}
	out := &gateway.GetUnprocessedEventsResponse{Events: make([]*gateway.EventRow, 0, len(rows))}
	for _, r := range rows {
		out.Events = append(out.Events, gateway.RowToWire(r))
	}
	return out, nil
}

func (s *Server[M]) MarkEventProcessed(ctx context.Context, req *gateway.MarkEventProcessedRequest) (*gateway.Empty, error) {
	if s.backend == nil {
		return nil, status.Error(codes.Unavailable, "gateway backend not configured")
	}
	if req.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	if err := s.backend.MarkEventProcessed(ctx, req.ID); err != nil {
		return nil, ackError("mark event processed", err)
	}
	return &gateway.Empty{}, nil
}

func (s *Server[M]) MarkEventFailed(ctx context.Context, req *gateway.MarkEventFailedRequest) (*gateway.Empty, error) {
	if s.backend == nil {
		return nil, status.Error(codes.Unavailable, "gateway backend not configured")
	}
	if req.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	if err := s.backend.MarkEventFailed(ctx, req.ID, req.Error); err != nil {
		return nil, ackError("mark event failed", err)
	}
	return &gateway.Empty{}, nil
}

func (s *Server[M]) GetMapping(ctx context.Context, req *gateway.MappingKey) (*gateway.MappingResponse, error) {
	if s.backend == nil {
		return nil, status.Error(codes.Unavailable, "gateway backend not configured")
	}
	if err := validateKey(req); err != nil {
		return nil, err
	}
	m, err := s.backend.GetMapping(ctx, req.TeamID, req.ResourceID)
	if err != nil {
		return nil, internalError("get mapping", err)
	}
	return mappingResponse(m)
}

func (s *Server[M]) UpsertMapping(ctx context.Context, req *gateway.UpsertMappingRequest) (*gateway.MappingResponse, error) {
	if s.backend == nil {
		return nil, status.Error(codes.Unavailable, "gateway backend not configured")
	}
	if err := validateKey(&req.MappingKey); err != nil {
		return nil, err
	}
	var m M
	if err := json.Unmarshal(req.Mapping, &m); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid mapping: %v", err)
	}
	stored, err := s.backend.UpsertMapping(ctx, req.TeamID, req.ResourceID, m)
	if err != nil {
		return nil, internalError("upsert mapping", err)
	}
	return mappingResponse(stored)
}

func (s *Server[M]) DeleteMapping(ctx context.Context, req *gateway.MappingKey) (*gateway.Empty, error) {
	if s.backend == nil {
		return nil, status.Error(codes.Unavailable, "gateway backend not configured")
	}
	if err := validateKey(req); err != nil {
		return nil, err
	}
	if err := s.backend.DeleteMapping(ctx, req.TeamID, req.ResourceID); err != nil {
		return nil, internalError("delete mapping", err)
	}
	return &gateway.Empty{}, nil
}

func validateKey(k *gateway.MappingKey) error {
	if k.TeamID == "" || k.ResourceID == "" {
		return status.Error(codes.InvalidArgument, "team and resource are required")
	}
	return nil
}

func mappingResponse[M any](m *M) (*gateway.MappingResponse, error) {
	if m == nil {
		return &gateway.MappingResponse{Found: false}, nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, internalError("encode mapping", err)
	}
	return &gateway.MappingResponse{Found: true, Mapping: raw}, nil
}

func ackError(op string, err error) error {
	if errors.Is(err, gateway.ErrEventNotFound) {
		return status.Error(codes.NotFound, err.Error())
	}
	return internalError(op, err)
}

func internalError(op string, err error) error {
	log.Printf("gateway: %s: %v", op, err)
	return status.Error(codes.Internal, op+" failed")
}
