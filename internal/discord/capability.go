// Package discord is the guild-mutation boundary: the Capability interface the sync handlers call,
// a REST client for the Discord v10 API, and a wrapper that retries every call.
package discord

import (
	"context"
	"errors"
	"strconv"
)

// ErrNotFound is returned when the guild, role, channel or member no longer exists.
var ErrNotFound = errors.New("discord: not found")

// Permission bits used by sync-managed channels.
const (
	PermissionViewChannel  int64 = 1 << 10
	PermissionSendMessages int64 = 1 << 11
)

// Role is a guild role.
type Role struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Channel is a guild channel.
type Channel struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	GuildID string `json:"guild_id,omitempty"`
}

// ChannelType values accepted by CreateChannel.
const (
	ChannelTypeText = 0
)

// OverwriteType distinguishes role and member permission overwrites.
const (
	OverwriteTypeRole   = 0
	OverwriteTypeMember = 1
)

// Overwrite is a permission overwrite applied to a channel for one role.
type Overwrite struct {
	Allow int64
	Deny  int64
}

// PermissionOverwrite is the overwrite as sent inside a channel create request.
type PermissionOverwrite struct {
	ID    string `json:"id"`
	Type  int    `json:"type"`
	Allow string `json:"allow"`
	Deny  string `json:"deny"`
}

// NewRoleOverwrite builds a role overwrite for CreateChannel.
func NewRoleOverwrite(roleID string, o Overwrite) PermissionOverwrite {
	return PermissionOverwrite{
		ID:    roleID,
		Type:  OverwriteTypeRole,
		Allow: strconv.FormatInt(o.Allow, 10),
		Deny:  strconv.FormatInt(o.Deny, 10),
	}
}

// ChannelSpec describes a channel to create.
type ChannelSpec struct {
	Name                 string                `json:"name"`
	Type                 int                   `json:"type"`
	Topic                string                `json:"topic,omitempty"`
	ParentID             string                `json:"parent_id,omitempty"`
	PermissionOverwrites []PermissionOverwrite `json:"permission_overwrites,omitempty"`
}

// EveryoneRoleID returns the id of the guild's @everyone role, which Discord gives the guild's own id.
func EveryoneRoleID(guildID string) string {
	return guildID
}

// Capability is the set of guild mutations the sync engine performs.
type Capability interface {
	CreateRole(ctx context.Context, guildID, name string) (Role, error)
	DeleteRole(ctx context.Context, guildID, roleID string) error
	CreateChannel(ctx context.Context, guildID string, spec ChannelSpec) (Channel, error)
	DeleteChannel(ctx context.Context, channelID string) error
	SetPermissionOverwrite(ctx context.Context, channelID, roleID string, o Overwrite) error
	AddMemberRole(ctx context.Context, guildID, userID, roleID string) error
	RemoveMemberRole(ctx context.Context, guildID, userID, roleID string) error
}
