package repository

import (
	"context"

	"guild-sync/backend/internal/audit/domain"
)

// Repository defines persistence for operator audit entries.
type Repository interface {
	Create(ctx context.Context, e *domain.Entry) error
	// List returns the newest entries first, at most limit.
	List(ctx context.Context, limit int) ([]*domain.Entry, error)
}
