package domain

import "time"

// RoleMapping links a team role to the guild role created for it.
type RoleMapping struct {
	TeamID         string    `json:"team"`
	RoleID         string    `json:"role"`
	ExternalRoleID string    `json:"externalRoleId"`
	CreatedAt      time.Time `json:"createdAt"`
}

// ChannelMapping links a team sub-group to its guild channel and the companion role that grants access to it.
// ExternalRoleID is nil for channels created before companion roles existed.
type ChannelMapping struct {
	TeamID            string    `json:"team"`
	SubgroupID        string    `json:"subgroup"`
	ExternalChannelID string    `json:"externalChannelId"`
	ExternalRoleID    *string   `json:"externalRoleId,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

// CompanionRole returns the companion role id, or "" when none is recorded.
func (m *ChannelMapping) CompanionRole() string {
	if m == nil || m.ExternalRoleID == nil {
		return ""
	}
	return *m.ExternalRoleID
}
