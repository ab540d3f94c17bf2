// Package domain defines the sync events written to the outbox by the main application.
// Event is a closed set: every variant lives in this package and implements the unexported marker.
package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Domain is the resource domain an event belongs to. Each domain has its own poll loop.
type Domain string

const (
	DomainRole    Domain = "role"
	DomainChannel Domain = "channel"
)

// Valid reports whether d is a known domain.
func (d Domain) Valid() bool {
	return d == DomainRole || d == DomainChannel
}

// Tag identifies an event variant on the wire and in the outbox table.
type Tag string

const (
	TagRoleCreated          Tag = "role_created"
	TagRoleDeleted          Tag = "role_deleted"
	TagRoleAssigned         Tag = "role_assigned"
	TagRoleUnassigned       Tag = "role_unassigned"
	TagChannelCreated       Tag = "channel_created"
	TagChannelDeleted       Tag = "channel_deleted"
	TagChannelMemberAdded   Tag = "channel_member_added"
	TagChannelMemberRemoved Tag = "channel_member_removed"
)

// Domain returns the domain that owns the tag, or "" for an unknown tag.
func (t Tag) Domain() Domain {
	switch t {
	case TagRoleCreated, TagRoleDeleted, TagRoleAssigned, TagRoleUnassigned:
		return DomainRole
	case TagChannelCreated, TagChannelDeleted, TagChannelMemberAdded, TagChannelMemberRemoved:
		return DomainChannel
	}
	return ""
}

// Event is one pending mutation to mirror onto the guild.
type Event interface {
	EventID() string
	EventTag() Tag
	TeamID() string
	sealed()
}

// Base carries the fields every variant has.
type Base struct {
	ID      string `json:"id"`
	Team    string `json:"team"`
	GuildID string `json:"guild"`
}

func (b Base) EventID() string { return b.ID }
func (b Base) TeamID() string  { return b.Team }
func (Base) sealed()           {}

// RoleCreated asks for the team role to exist in the guild.
type RoleCreated struct {
	Base
	RoleID   string `json:"role"`
	RoleName string `json:"roleName"`
}

// RoleDeleted asks for the guild role to be removed.
type RoleDeleted struct {
	Base
	RoleID string `json:"role"`
}

// RoleAssigned gives a member's external user the team role.
type RoleAssigned struct {
	Base
	RoleID       string `json:"role"`
	RoleName     string `json:"roleName"`
	MemberID     string `json:"member"`
	ExternalUser string `json:"externalUser"`
}

// RoleUnassigned takes the team role away from a member's external user.
type RoleUnassigned struct {
	Base
	RoleID       string `json:"role"`
	MemberID     string `json:"member"`
	ExternalUser string `json:"externalUser"`
}

// ChannelCreated asks for a private channel (and its companion role) for a sub-group.
type ChannelCreated struct {
	Base
	SubgroupID   string `json:"subgroup"`
	SubgroupName string `json:"subgroupName"`
}

// ChannelDeleted asks for the sub-group channel and companion role to be removed.
type ChannelDeleted struct {
	Base
	SubgroupID string `json:"subgroup"`
}

// ChannelMemberAdded grants a member access to the sub-group channel.
type ChannelMemberAdded struct {
	Base
	SubgroupID   string `json:"subgroup"`
	SubgroupName string `json:"subgroupName"`
	MemberID     string `json:"member"`
	ExternalUser string `json:"externalUser"`
}

// ChannelMemberRemoved revokes a member's access to the sub-group channel.
type ChannelMemberRemoved struct {
	Base
	SubgroupID   string `json:"subgroup"`
	MemberID     string `json:"member"`
	ExternalUser string `json:"externalUser"`
}

func (RoleCreated) EventTag() Tag          { return TagRoleCreated }
func (RoleDeleted) EventTag() Tag          { return TagRoleDeleted }
func (RoleAssigned) EventTag() Tag         { return TagRoleAssigned }
func (RoleUnassigned) EventTag() Tag       { return TagRoleUnassigned }
func (ChannelCreated) EventTag() Tag       { return TagChannelCreated }
func (ChannelDeleted) EventTag() Tag       { return TagChannelDeleted }
func (ChannelMemberAdded) EventTag() Tag   { return TagChannelMemberAdded }
func (ChannelMemberRemoved) EventTag() Tag { return TagChannelMemberRemoved }

// Undecodable stands in for a row whose payload could not be decoded.
// It flows through the dispatch loop like any other event so the failure is recorded per event.
type Undecodable struct {
	Base
	Tag Tag
	Err error
}

func (u Undecodable) EventTag() Tag { return u.Tag }

// Row is an outbox row as stored: the raw tag and payload plus delivery state.
// ProcessedAt == nil means the event is pending.
type Row struct {
	ID          string
	Domain      Domain
	Tag         Tag
	TeamID      string
	Payload     json.RawMessage
	CreatedAt   time.Time
	ProcessedAt *time.Time
	Error       *string
	Attempts    int
	FailedAt    *time.Time
}

// Pending reports whether the row is eligible for the next poll batch.
func (r *Row) Pending() bool {
	return r.ProcessedAt == nil
}

// Decode turns the row into its event variant. The row's ID wins over any id in the payload.
// Decoding failures are returned as an Undecodable event, never as an error.
func (r *Row) Decode() Event {
	ev, err := decodePayload(r.Tag, r.Payload)
	if err != nil {
		return Undecodable{Base: Base{ID: r.ID, Team: r.TeamID}, Tag: r.Tag, Err: err}
	}
	return withID(ev, r.ID)
}

func decodePayload(tag Tag, payload json.RawMessage) (Event, error) {
	var ev Event
	var err error
	switch tag {
	case TagRoleCreated:
		var v RoleCreated
		err = json.Unmarshal(payload, &v)
		ev = v
	case TagRoleDeleted:
		var v RoleDeleted
		err = json.Unmarshal(payload, &v)
		ev = v
	case TagRoleAssigned:
		var v RoleAssigned
		err = json.Unmarshal(payload, &v)
		ev = v
	case TagRoleUnassigned:
		var v RoleUnassigned
		err = json.Unmarshal(payload, &v)
		ev = v
	case TagChannelCreated:
		var v ChannelCreated
		err = json.Unmarshal(payload, &v)
		ev = v
	case TagChannelDeleted:
		var v ChannelDeleted
		err = json.Unmarshal(payload, &v)
		ev = v
	case TagChannelMemberAdded:
		var v ChannelMemberAdded
		err = json.Unmarshal(payload, &v)
		ev = v
	case TagChannelMemberRemoved:
		var v ChannelMemberRemoved
		err = json.Unmarshal(payload, &v)
		ev = v
	default:
		return nil, fmt.Errorf("unknown event tag %q", tag)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", tag, err)
	}
	if ev.TeamID() == "" {
		return nil, fmt.Errorf("decode %s payload: missing team", tag)
	}
	return ev, nil
}

func withID(ev Event, id string) Event {
	switch v := ev.(type) {
	case RoleCreated:
		v.ID = id
		return v
	case RoleDeleted:
		v.ID = id
		return v
	case RoleAssigned:
		v.ID = id
		return v
	case RoleUnassigned:
		v.ID = id
		return v
	case ChannelCreated:
		v.ID = id
		return v
	case ChannelDeleted:
		v.ID = id
		return v
	case ChannelMemberAdded:
		v.ID = id
		return v
	case ChannelMemberRemoved:
		v.ID = id
		return v
	}
	return ev
}

// NewRow builds an outbox row for ev. The caller sets ID and CreatedAt when persisting.
func NewRow(ev Event) (*Row, error) {
	if _, ok := ev.(Undecodable); ok {
		return nil, fmt.Errorf("cannot encode undecodable event %s", ev.EventID())
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return &Row{
		ID:      ev.EventID(),
		Domain:  ev.EventTag().Domain(),
		Tag:     ev.EventTag(),
		TeamID:  ev.TeamID(),
		Payload: payload,
	}, nil
}
