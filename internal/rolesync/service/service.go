// Package service mirrors team roles onto guild roles.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"guild-sync/backend/internal/discord"
	"guild-sync/backend/internal/gateway"
	mappingdomain "guild-sync/backend/internal/mapping/domain"
	"guild-sync/backend/internal/syncevent/domain"
)

// ErrUnsupportedEvent is returned for events that do not belong to the role domain.
var ErrUnsupportedEvent = errors.New("rolesync: unsupported event")

// Service handles role-domain events. guild must already retry its calls (see discord.Retrying).
type Service struct {
	gw    gateway.RoleGateway
	guild discord.Capability
}

// NewService returns a role-sync service using gw for mappings and guild for external mutations.
func NewService(gw gateway.RoleGateway, guild discord.Capability) *Service {
	return &Service{gw: gw, guild: guild}
}

// Handle applies one role event. A nil error means the event can be marked processed.
func (s *Service) Handle(ctx context.Context, ev domain.Event) error {
	switch e := ev.(type) {
	case domain.RoleCreated:
		_, err := s.EnsureRole(ctx, e.Team, e.GuildID, e.RoleID, e.RoleName)
		return err
	case domain.RoleDeleted:
		return s.deleteRole(ctx, e)
	case domain.RoleAssigned:
		return s.assign(ctx, e)
	case domain.RoleUnassigned:
		return s.unassign(ctx, e)
	case domain.Undecodable:
		return fmt.Errorf("rolesync: undecodable %s event: %w", e.Tag, e.Err)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedEvent, ev.EventTag())
	}
}

// EnsureRole returns the guild role id mapped to (team, role), creating the guild role on first use.
// If a concurrent caller stored a mapping first, the role created here is deleted and theirs is returned.
func (s *Service) EnsureRole(ctx context.Context, teamID, guildID, roleID, roleName string) (string, error) {
	existing, err := s.gw.GetMapping(ctx, teamID, roleID)
	if err != nil {
		return "", fmt.Errorf("get role mapping: %w", err)
	}
	if existing != nil {
		return existing.ExternalRoleID, nil
	}

	created, err := s.guild.CreateRole(ctx, guildID, roleName)
	if err != nil {
		return "", fmt.Errorf("create guild role %q: %w", roleName, err)
	}
	stored, err := s.gw.UpsertMapping(ctx, teamID, roleID, mappingdomain.RoleMapping{
		TeamID:         teamID,
		RoleID:         roleID,
		ExternalRoleID: created.ID,
	})
	if err != nil {
		log.Printf("rolesync: guild role %s created for %s/%s but mapping was not stored: %v", created.ID, teamID, roleID, err)
		return "", fmt.Errorf("upsert role mapping: %w", err)
	}
	if stored.ExternalRoleID != created.ID {
		log.Printf("rolesync: %s/%s already mapped to %s, removing duplicate guild role %s", teamID, roleID, stored.ExternalRoleID, created.ID)
		if err := s.guild.DeleteRole(ctx, guildID, created.ID); err != nil && !errors.Is(err, discord.ErrNotFound) {
			log.Printf("rolesync: failed to remove duplicate guild role %s: %v", created.ID, err)
		}
	}
	return stored.ExternalRoleID, nil
}

func (s *Service) deleteRole(ctx context.Context, e domain.RoleDeleted) error {
	m, err := s.gw.GetMapping(ctx, e.Team, e.RoleID)
	if err != nil {
		return fmt.Errorf("get role mapping: %w", err)
	}
	if m == nil {
		log.Printf("rolesync: warning: no mapping for deleted role %s/%s (event %s), nothing to remove", e.Team, e.RoleID, e.ID)
		return nil
	}
	if err := s.guild.DeleteRole(ctx, e.GuildID, m.ExternalRoleID); err != nil {
		if !errors.Is(err, discord.ErrNotFound) {
			return fmt.Errorf("delete guild role %s: %w", m.ExternalRoleID, err)
		}
		log.Printf("rolesync: guild role %s already gone", m.ExternalRoleID)
	}
	if err := s.gw.DeleteMapping(ctx, e.Team, e.RoleID); err != nil {
		return fmt.Errorf("delete role mapping: %w", err)
	}
	return nil
}

func (s *Service) assign(ctx context.Context, e domain.RoleAssigned) error {
	externalRoleID, err := s.EnsureRole(ctx, e.Team, e.GuildID, e.RoleID, e.RoleName)
	if err != nil {
		return err
	}
	if err := s.guild.AddMemberRole(ctx, e.GuildID, e.ExternalUser, externalRoleID); err != nil {
		return fmt.Errorf("add guild role %s to user %s: %w", externalRoleID, e.ExternalUser, err)
	}
	return nil
}

func (s *Service) unassign(ctx context.Context, e domain.RoleUnassigned) error {
	m, err := s.gw.GetMapping(ctx, e.Team, e.RoleID)
	if err != nil {
		return fmt.Errorf("get role mapping: %w", err)
	}
	if m == nil {
		log.Printf("rolesync: warning: no mapping for role %s/%s, skipping unassign of member %s (event %s)", e.Team, e.RoleID, e.MemberID, e.ID)
		return nil
	}
	if err := s.guild.RemoveMemberRole(ctx, e.GuildID, e.ExternalUser, m.ExternalRoleID); err != nil {
		if errors.Is(err, discord.ErrNotFound) {
			log.Printf("rolesync: user %s or guild role %s no longer exists, nothing to unassign", e.ExternalUser, m.ExternalRoleID)
			return nil
		}
		return fmt.Errorf("remove guild role %s from user %s: %w", m.ExternalRoleID, e.ExternalUser, err)
	}
	return nil
}
