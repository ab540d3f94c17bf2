package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	mappingrepo "guild-sync/backend/internal/mapping/repository"
	outboxrepo "guild-sync/backend/internal/outbox/repository"
	"guild-sync/backend/internal/syncevent/domain"
)

// Local implements Gateway for one domain directly on the outbox and mapping repositories.
type Local[M any] struct {
	domain   domain.Domain
	outbox   outboxrepo.Repository
	mappings mappingrepo.Repository[M]
	lease    time.Duration
}

// NewLocal returns a gateway for d. When lease is positive and the caller is an identified worker,
// GetUnprocessedEvents claims the batch for that worker for lease instead of only reading it.
func NewLocal[M any](d domain.Domain, outbox outboxrepo.Repository, mappings mappingrepo.Repository[M], lease time.Duration) *Local[M] {
	return &Local[M]{domain: d, outbox: outbox, mappings: mappings, lease: lease}
}

// Domain returns the domain this gateway serves.
func (g *Local[M]) Domain() domain.Domain {
	return g.domain
}

func (g *Local[M]) GetUnprocessedEvents(ctx context.Context, limit int) ([]domain.Event, error) {
	rows, err := g.fetch(ctx, limit)
	if err != nil {
		return nil, err
	}
	events := make([]domain.Event, 0, len(rows))
	for _, row := range rows {
		events = append(events, row.Decode())
	}
	return events, nil
}

// GetUnprocessedRows is GetUnprocessedEvents without decoding; the gRPC handler ships raw rows.
func (g *Local[M]) GetUnprocessedRows(ctx context.Context, limit int) ([]*domain.Row, error) {
	return g.fetch(ctx, limit)
}

func (g *Local[M]) fetch(ctx context.Context, limit int) ([]*domain.Row, error) {
	if limit <= 0 {
		limit = outboxrepo.DefaultBatchSize
	}
	if worker := WorkerID(ctx); g.lease > 0 && worker != "" {
		return g.outbox.ClaimUnprocessedEvents(ctx, g.domain, worker, g.lease, limit)
	}
	return g.outbox.GetUnprocessedEvents(ctx, g.domain, limit)
}

func (g *Local[M]) MarkEventProcessed(ctx context.Context, id string) error {
	return mapOutboxErr(g.outbox.MarkEventProcessed(ctx, id), id)
}

func (g *Local[M]) MarkEventFailed(ctx context.Context, id, reason string) error {
	return mapOutboxErr(g.outbox.MarkEventFailed(ctx, id, reason), id)
}

func (g *Local[M]) GetMapping(ctx context.Context, teamID, resourceID string) (*M, error) {
	return g.mappings.Get(ctx, teamID, resourceID)
}

func (g *Local[M]) UpsertMapping(ctx context.Context, teamID, resourceID string, m M) (*M, error) {
	return g.mappings.Upsert(ctx, teamID, resourceID, m)
}

func (g *Local[M]) DeleteMapping(ctx context.Context, teamID, resourceID string) error {
	return g.mappings.Delete(ctx, teamID, resourceID)
}

func mapOutboxErr(err error, id string) error {
	if errors.Is(err, outboxrepo.ErrEventNotFound) {
		return fmt.Errorf("%w: %s", ErrEventNotFound, id)
	}
	return err
}
