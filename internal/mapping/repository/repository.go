package repository

import (
	"context"

	"guild-sync/backend/internal/mapping/domain"
)

// Repository defines persistence for one kind of mapping, keyed by (team, resource).
// M is domain.RoleMapping or domain.ChannelMapping.
type Repository[M any] interface {
	// Get returns the mapping, or nil if none exists. Missing rows are not an error.
	Get(ctx context.Context, teamID, resourceID string) (*M, error)
	// Upsert stores m for (team, resource) unless a mapping already exists, and returns the stored mapping.
	// When another writer got there first, the returned mapping carries their external ids, not m's.
	Upsert(ctx context.Context, teamID, resourceID string, m M) (*M, error)
	// Delete removes the mapping. Deleting a missing mapping is a no-op.
	Delete(ctx context.Context, teamID, resourceID string) error
}

// RoleRepository stores role mappings.
type RoleRepository = Repository[domain.RoleMapping]

// ChannelRepository stores channel mappings.
type ChannelRepository = Repository[domain.ChannelMapping]
