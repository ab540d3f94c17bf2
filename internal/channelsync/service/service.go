// Package service mirrors team sub-groups onto private guild channels, each gated by a companion role.
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

// ErrUnsupportedEvent is returned for events that do not belong to the channel domain.
var ErrUnsupportedEvent = errors.New("channelsync: unsupported event")

// ErrNoCompanionRole is returned when a member must be added to a channel whose mapping has no role.
var ErrNoCompanionRole = errors.New("channelsync: channel mapping has no companion role")

// Members of the companion role can see and post in the channel.
const memberPermissions = discord.PermissionViewChannel | discord.PermissionSendMessages

// Service handles channel-domain events. guild must already retry its calls (see discord.Retrying).
type Service struct {
	gw    gateway.ChannelGateway
	guild discord.Capability
}

// NewService returns a channel-sync service using gw for mappings and guild for external mutations.
func NewService(gw gateway.ChannelGateway, guild discord.Capability) *Service {
	return &Service{gw: gw, guild: guild}
}

// Handle applies one channel event. A nil error means the event can be marked processed.
func (s *Service) Handle(ctx context.Context, ev domain.Event) error {
	switch e := ev.(type) {
	case domain.ChannelCreated:
		_, err := s.EnsureChannel(ctx, e.Team, e.GuildID, e.SubgroupID, e.SubgroupName)
		return err
	case domain.ChannelDeleted:
		return s.deleteChannel(ctx, e)
	case domain.ChannelMemberAdded:
		return s.addMember(ctx, e)
	case domain.ChannelMemberRemoved:
		return s.removeMember(ctx, e)
	case domain.Undecodable:
		return fmt.Errorf("channelsync: undecodable %s event: %w", e.Tag, e.Err)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedEvent, ev.EventTag())
	}
}

// EnsureChannel returns the mapping for (team, subgroup), creating the channel and companion role on first use.
//
// Creation is four guild calls plus the mapping write and is not atomic: a failure part-way leaves
// the already-created channel or role orphaned. Those ids are logged; a retry of the event creates fresh ones.
func (s *Service) EnsureChannel(ctx context.Context, teamID, guildID, subgroupID, subgroupName string) (*mappingdomain.ChannelMapping, error) {
	existing, err := s.gw.GetMapping(ctx, teamID, subgroupID)
	if err != nil {
		return nil, fmt.Errorf("get channel mapping: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	// Hidden from @everyone from the moment it exists.
	channel, err := s.guild.CreateChannel(ctx, guildID, discord.ChannelSpec{
		Name: ChannelName(subgroupName, subgroupID),
		Type: discord.ChannelTypeText,
		PermissionOverwrites: []discord.PermissionOverwrite{
			discord.NewRoleOverwrite(discord.EveryoneRoleID(guildID), discord.Overwrite{Deny: discord.PermissionViewChannel}),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create guild channel for %s: %w", subgroupID, err)
	}

	role, err := s.guild.CreateRole(ctx, guildID, subgroupName)
	if err != nil {
		log.Printf("channelsync: orphaned guild channel %s for %s/%s: create companion role: %v", channel.ID, teamID, subgroupID, err)
		return nil, fmt.Errorf("create companion role for %s: %w", subgroupID, err)
	}

	if err := s.guild.SetPermissionOverwrite(ctx, channel.ID, role.ID, discord.Overwrite{Allow: memberPermissions}); err != nil {
		log.Printf("channelsync: orphaned guild channel %s and role %s for %s/%s: grant access: %v", channel.ID, role.ID, teamID, subgroupID, err)
		return nil, fmt.Errorf("grant role %s on channel %s: %w", role.ID, channel.ID, err)
	}

	roleID := role.ID
	stored, err := s.gw.UpsertMapping(ctx, teamID, subgroupID, mappingdomain.ChannelMapping{
		TeamID:            teamID,
		SubgroupID:        subgroupID,
		ExternalChannelID: channel.ID,
		ExternalRoleID:    &roleID,
	})
	if err != nil {
		log.Printf("channelsync: orphaned guild channel %s and role %s for %s/%s: store mapping: %v", channel.ID, role.ID, teamID, subgroupID, err)
		return nil, fmt.Errorf("upsert channel mapping: %w", err)
	}
	if stored.ExternalChannelID != channel.ID {
		log.Printf("channelsync: %s/%s already mapped to channel %s, removing duplicate channel %s and role %s",
			teamID, subgroupID, stored.ExternalChannelID, channel.ID, role.ID)
		s.removeQuietly(ctx, guildID, channel.ID, role.ID)
	}
	return stored, nil
}

func (s *Service) removeQuietly(ctx context.Context, guildID, channelID, roleID string) {
	if err := s.guild.DeleteRole(ctx, guildID, roleID); err != nil && !errors.Is(err, discord.ErrNotFound) {
		log.Printf("channelsync: failed to remove duplicate role %s: %v", roleID, err)
	}
	if err := s.guild.DeleteChannel(ctx, channelID); err != nil && !errors.Is(err, discord.ErrNotFound) {
		log.Printf("channelsync: failed to remove duplicate channel %s: %v", channelID, err)
	}
}

func (s *Service) deleteChannel(ctx context.Context, e domain.ChannelDeleted) error {
	m, err := s.gw.GetMapping(ctx, e.Team, e.SubgroupID)
	if err != nil {
		return fmt.Errorf("get channel mapping: %w", err)
	}
	if m == nil {
		log.Printf("channelsync: warning: no mapping for deleted subgroup %s/%s (event %s), nothing to remove", e.Team, e.SubgroupID, e.ID)
		return nil
	}
	if roleID := m.CompanionRole(); roleID != "" {
		if err := s.guild.DeleteRole(ctx, e.GuildID, roleID); err != nil {
			if !errors.Is(err, discord.ErrNotFound) {
				return fmt.Errorf("delete companion role %s: %w", roleID, err)
			}
			log.Printf("channelsync: companion role %s already gone", roleID)
		}
	}
	if err := s.guild.DeleteChannel(ctx, m.ExternalChannelID); err != nil {
		if !errors.Is(err, discord.ErrNotFound) {
			return fmt.Errorf("delete guild channel %s: %w", m.ExternalChannelID, err)
		}
		log.Printf("channelsync: guild channel %s already gone", m.ExternalChannelID)
	}
	if err := s.gw.DeleteMapping(ctx, e.Team, e.SubgroupID); err != nil {
		return fmt.Errorf("delete channel mapping: %w", err)
	}
	return nil
}

func (s *Service) addMember(ctx context.Context, e domain.ChannelMemberAdded) error {
	m, err := s.EnsureChannel(ctx, e.Team, e.GuildID, e.SubgroupID, e.SubgroupName)
	if err != nil {
		return err
	}
	roleID := m.CompanionRole()
	if roleID == "" {
		return fmt.Errorf("%w: %s/%s", ErrNoCompanionRole, e.Team, e.SubgroupID)
	}
	if err := s.guild.AddMemberRole(ctx, e.GuildID, e.ExternalUser, roleID); err != nil {
		return fmt.Errorf("add companion role %s to user %s: %w", roleID, e.ExternalUser, err)
	}
	return nil
}

func (s *Service) removeMember(ctx context.Context, e domain.ChannelMemberRemoved) error {
	m, err := s.gw.GetMapping(ctx, e.Team, e.SubgroupID)
	if err != nil {
		return fmt.Errorf("get channel mapping: %w", err)
	}
	if m == nil {
		log.Printf("channelsync: warning: no mapping for subgroup %s/%s, skipping removal of member %s (event %s)", e.Team, e.SubgroupID, e.MemberID, e.ID)
		return nil
	}
	roleID := m.CompanionRole()
	if roleID == "" {
		log.Printf("channelsync: warning: channel %s has no companion role, skipping removal of member %s (event %s)", m.ExternalChannelID, e.MemberID, e.ID)
		return nil
	}
	if err := s.guild.RemoveMemberRole(ctx, e.GuildID, e.ExternalUser, roleID); err != nil {
		if errors.Is(err, discord.ErrNotFound) {
			log.Printf("channelsync: user %s or role %s no longer exists, nothing to remove", e.ExternalUser, roleID)
			return nil
		}
		return fmt.Errorf("remove companion role %s from user %s: %w", roleID, e.ExternalUser, err)
	}
	return nil
}
