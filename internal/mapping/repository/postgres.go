package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"guild-sync/backend/internal/mapping/domain"
)

// RolePostgresRepository stores role mappings in role_mappings.
type RolePostgresRepository struct {
	db *sql.DB
}

// NewRolePostgresRepository returns a role mapping repository that uses the given db for persistence.
func NewRolePostgresRepository(db *sql.DB) *RolePostgresRepository {
	return &RolePostgresRepository{db: db}
}

func (r *RolePostgresRepository) Get(ctx context.Context, teamID, roleID string) (*domain.RoleMapping, error) {
	m := domain.RoleMapping{TeamID: teamID, RoleID: roleID}
	err := r.db.QueryRowContext(ctx, `
		SELECT external_role_id, created_at FROM role_mappings
		WHERE team_id = $1 AND role_id = $2`, teamID, roleID).Scan(&m.ExternalRoleID, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// Upsert inserts the mapping with ON CONFLICT DO NOTHING and reads back whichever row won.
// A conflict on (team_id, external_role_id) means the guild role is already mapped to another team role.
func (r *RolePostgresRepository) Upsert(ctx context.Context, teamID, roleID string, m domain.RoleMapping) (*domain.RoleMapping, error) {
	if m.ExternalRoleID == "" {
		return nil, errors.New("mapping: external role id is required")
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO role_mappings (team_id, role_id, external_role_id, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (team_id, role_id) DO NOTHING`, teamID, roleID, m.ExternalRoleID)
	if err != nil {
		return nil, err
	}
	stored, err := r.Get(ctx, teamID, roleID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("mapping: role mapping %s/%s vanished after upsert", teamID, roleID)
	}
	return stored, nil
}

func (r *RolePostgresRepository) Delete(ctx context.Context, teamID, roleID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM role_mappings WHERE team_id = $1 AND role_id = $2`, teamID, roleID)
	return err
}

// ChannelPostgresRepository stores channel mappings in channel_mappings.
type ChannelPostgresRepository struct {
	db *sql.DB
}

// NewChannelPostgresRepository returns a channel mapping repository that uses the given db for persistence.
func NewChannelPostgresRepository(db *sql.DB) *ChannelPostgresRepository {
	return &ChannelPostgresRepository{db: db}
}

func (r *ChannelPostgresRepository) Get(ctx context.Context, teamID, subgroupID string) (*domain.ChannelMapping, error) {
	m := domain.ChannelMapping{TeamID: teamID, SubgroupID: subgroupID}
	var roleID sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT external_channel_id, external_role_id, created_at FROM channel_mappings
		WHERE team_id = $1 AND subgroup_id = $2`, teamID, subgroupID).Scan(&m.ExternalChannelID, &roleID, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if roleID.Valid {
		id := roleID.String
		m.ExternalRoleID = &id
	}
	return &m, nil
}

func (r *ChannelPostgresRepository) Upsert(ctx context.Context, teamID, subgroupID string, m domain.ChannelMapping) (*domain.ChannelMapping, error) {
	if m.ExternalChannelID == "" {
		return nil, errors.New("mapping: external channel id is required")
	}
	var roleID sql.NullString
	if m.ExternalRoleID != nil {
		roleID = sql.NullString{String: *m.ExternalRoleID, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO channel_mappings (team_id, subgroup_id, external_channel_id, external_role_id, created_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (team_id, subgroup_id) DO NOTHING`, teamID, subgroupID, m.ExternalChannelID, roleID)
	if err != nil {
		return nil, err
	}
	stored, err := r.Get(ctx, teamID, subgroupID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("mapping: channel mapping %s/%s vanished after upsert", teamID, subgroupID)
	}
	return stored, nil
}

func (r *ChannelPostgresRepository) Delete(ctx context.Context, teamID, subgroupID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM channel_mappings WHERE team_id = $1 AND subgroup_id = $2`, teamID, subgroupID)
	return err
}
