// Package gatewaytest provides an in-memory gateway for tests: an outbox slice plus a mapping map.
package gatewaytest

import (
	"context"
	"sync"
	"time"

	"guild-sync/backend/internal/gateway"
	"guild-sync/backend/internal/syncevent/domain"
)

// Failure is one recorded MarkEventFailed call.
type Failure struct {
	ID     string
	Reason string
}

// Memory implements gateway.Gateway[M] in memory and records acks and mapping writes.
type Memory[M any] struct {
	mu        sync.Mutex
	rows      []*domain.Row
	mappings  map[[2]string]M
	processed []string
	failures  []Failure
	upserts   []M
	deletes   [][2]string

	// FetchErr, when set, is returned by GetUnprocessedEvents.
	FetchErr error
	// AckErr, when set, is returned by MarkEventProcessed and MarkEventFailed after recording.
	AckErr error
}

// NewMemory returns an empty in-memory gateway.
func NewMemory[M any]() *Memory[M] {
	return &Memory[M]{mappings: map[[2]string]M{}}
}

// Append adds ev as a pending row, created after every existing row.
func (g *Memory[M]) Append(ev domain.Event) {
	row, err := domain.NewRow(ev)
	if err != nil {
		panic(err)
	}
	g.AppendRow(row)
}

// AppendRow adds a raw row, e.g. one with a malformed payload.
func (g *Memory[M]) AppendRow(row *domain.Row) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Unix(int64(len(g.rows)), 0).UTC()
	}
	g.rows = append(g.rows, row)
}

// SetMapping stores m for (team, resource) without recording an upsert.
func (g *Memory[M]) SetMapping(teamID, resourceID string, m M) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mappings[[2]string{teamID, resourceID}] = m
}

func (g *Memory[M]) GetUnprocessedEvents(ctx context.Context, limit int) ([]domain.Event, error) {
	rows, err := g.GetUnprocessedRows(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Event, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Decode())
	}
	return out, nil
}

// GetUnprocessedRows returns copies of the pending rows, so Memory can back the gRPC handler.
func (g *Memory[M]) GetUnprocessedRows(ctx context.Context, limit int) ([]*domain.Row, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.FetchErr != nil {
		return nil, g.FetchErr
	}
	var out []*domain.Row
	for _, r := range g.rows {
		if limit > 0 && len(out) >= limit {
			break
		}
		if r.Pending() {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (g *Memory[M]) MarkEventProcessed(ctx context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.processed = append(g.processed, id)
	if g.AckErr != nil {
		return g.AckErr
	}
	r := g.find(id)
	if r == nil {
		return gateway.ErrEventNotFound
	}
	if r.ProcessedAt == nil {
		now := time.Now().UTC()
		r.ProcessedAt = &now
	}
	return nil
}

func (g *Memory[M]) MarkEventFailed(ctx context.Context, id, reason string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures = append(g.failures, Failure{ID: id, Reason: reason})
	if g.AckErr != nil {
		return g.AckErr
	}
	r := g.find(id)
	if r == nil {
		return gateway.ErrEventNotFound
	}
	r.Error = &reason
	r.Attempts++
	return nil
}

func (g *Memory[M]) GetMapping(ctx context.Context, teamID, resourceID string) (*M, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	m, ok := g.mappings[[2]string{teamID, resourceID}]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

// UpsertMapping keeps an existing mapping and returns it, matching the database behaviour.
func (g *Memory[M]) UpsertMapping(ctx context.Context, teamID, resourceID string, m M) (*M, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.upserts = append(g.upserts, m)
	key := [2]string{teamID, resourceID}
	if existing, ok := g.mappings[key]; ok {
		return &existing, nil
	}
	g.mappings[key] = m
	return &m, nil
}

func (g *Memory[M]) DeleteMapping(ctx context.Context, teamID, resourceID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := [2]string{teamID, resourceID}
	g.deletes = append(g.deletes, key)
	delete(g.mappings, key)
	return nil
}

func (g *Memory[M]) find(id string) *domain.Row {
	for _, r := range g.rows {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// Processed returns the ids passed to MarkEventProcessed, in call order.
func (g *Memory[M]) Processed() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.processed...)
}

// Failures returns the recorded MarkEventFailed calls, in call order.
func (g *Memory[M]) Failures() []Failure {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Failure(nil), g.failures...)
}

// Upserts returns the mappings passed to UpsertMapping, in call order.
func (g *Memory[M]) Upserts() []M {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]M(nil), g.upserts...)
}

// Deletes returns the (team, resource) keys passed to DeleteMapping.
func (g *Memory[M]) Deletes() [][2]string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([][2]string(nil), g.deletes...)
}
