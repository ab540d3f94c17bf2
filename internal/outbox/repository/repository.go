package repository

import (
	"context"
	"errors"
	"time"

	"guild-sync/backend/internal/syncevent/domain"
)

// ErrEventNotFound is returned by operations that require an existing outbox row.
var ErrEventNotFound = errors.New("outbox: event not found")

// ErrEventNotFailed is returned when requeueing an event that is neither failing nor terminally failed.
var ErrEventNotFailed = errors.New("outbox: event has not failed")

// DefaultBatchSize is the number of events fetched per poll when no limit is given.
const DefaultBatchSize = 50

// Repository defines persistence for the sync event outbox.
// Rows are append-only: only the processed/failed/claim columns are ever updated.
type Repository interface {
	// Append inserts a new pending event. ID and CreatedAt are filled in when empty.
	Append(ctx context.Context, row *domain.Row) error
	// GetEvent returns the row for id, or nil if not found.
	GetEvent(ctx context.Context, id string) (*domain.Row, error)
	// GetUnprocessedEvents returns pending rows for d, oldest first, at most limit.
	GetUnprocessedEvents(ctx context.Context, d domain.Domain, limit int) ([]*domain.Row, error)
	// ClaimUnprocessedEvents returns pending rows for d not leased to another worker and leases them to workerID.
	ClaimUnprocessedEvents(ctx context.Context, d domain.Domain, workerID string, lease time.Duration, limit int) ([]*domain.Row, error)
	// MarkEventProcessed sets processed_at if unset. Idempotent.
	MarkEventProcessed(ctx context.Context, id string) error
	// MarkEventFailed records reason and bumps attempts. The row stays pending unless the attempt cap is hit.
	MarkEventFailed(ctx context.Context, id, reason string) error
	// ListFailedEvents returns rows carrying an error for d, newest attempt first.
	ListFailedEvents(ctx context.Context, d domain.Domain, limit int) ([]*domain.Row, error)
	// RequeueEvent clears error, attempts, failure and processed state so the event is polled again.
	// Only failing rows (the ones ListFailedEvents returns) are reopened; others give ErrEventNotFailed.
	RequeueEvent(ctx context.Context, id string) error
}
