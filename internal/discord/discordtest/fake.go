// Package discordtest provides an in-memory discord.Capability that records calls. For tests only.
package discordtest

import (
	"context"
	"fmt"
	"sync"

	"guild-sync/backend/internal/discord"
)

// Call is one recorded capability call.
type Call struct {
	Method    string
	GuildID   string
	ChannelID string
	RoleID    string
	UserID    string
	Name      string
	Spec      discord.ChannelSpec
	Overwrite discord.Overwrite
}

// Fake records every call and hands out sequential ids (role-1, channel-1, ...).
// Errors maps a method name to the error it returns; the call is still recorded.
type Fake struct {
	mu       sync.Mutex
	calls    []Call
	nextID   int
	Errors   map[string]error
	Roles    map[string]string // role id -> name
	Channels map[string]string // channel id -> name
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{
		Errors:   map[string]error{},
		Roles:    map[string]string{},
		Channels: map[string]string{},
	}
}

// FailOn makes method return err from now on.
func (f *Fake) FailOn(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errors[method] = err
}

// Calls returns a copy of the recorded calls.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallsTo returns the recorded calls to method.
func (f *Fake) CallsTo(method string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (f *Fake) record(c Call) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	return f.Errors[c.Method]
}

func (f *Fake) newID(kind string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	return fmt.Sprintf("%s-%d", kind, f.nextID)
}

func (f *Fake) CreateRole(ctx context.Context, guildID, name string) (discord.Role, error) {
	if err := f.record(Call{Method: "CreateRole", GuildID: guildID, Name: name}); err != nil {
		return discord.Role{}, err
	}
	id := f.newID("role")
	f.mu.Lock()
	f.Roles[id] = name
	f.mu.Unlock()
	return discord.Role{ID: id, Name: name}, nil
}

func (f *Fake) DeleteRole(ctx context.Context, guildID, roleID string) error {
	if err := f.record(Call{Method: "DeleteRole", GuildID: guildID, RoleID: roleID}); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.Roles[roleID]; !ok {
		return discord.ErrNotFound
	}
	delete(f.Roles, roleID)
	return nil
}

func (f *Fake) CreateChannel(ctx context.Context, guildID string, spec discord.ChannelSpec) (discord.Channel, error) {
	if err := f.record(Call{Method: "CreateChannel", GuildID: guildID, Name: spec.Name, Spec: spec}); err != nil {
		return discord.Channel{}, err
	}
	id := f.newID("channel")
	f.mu.Lock()
	f.Channels[id] = spec.Name
	f.mu.Unlock()
	return discord.Channel{ID: id, Name: spec.Name, GuildID: guildID}, nil
}

func (f *Fake) DeleteChannel(ctx context.Context, channelID string) error {
	if err := f.record(Call{Method: "DeleteChannel", ChannelID: channelID}); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.Channels[channelID]; !ok {
		return discord.ErrNotFound
	}
	delete(f.Channels, channelID)
	return nil
}

func (f *Fake) SetPermissionOverwrite(ctx context.Context, channelID, roleID string, o discord.Overwrite) error {
	return f.record(Call{Method: "SetPermissionOverwrite", ChannelID: channelID, RoleID: roleID, Overwrite: o})
}

func (f *Fake) AddMemberRole(ctx context.Context, guildID, userID, roleID string) error {
	return f.record(Call{Method: "AddMemberRole", GuildID: guildID, UserID: userID, RoleID: roleID})
}

func (f *Fake) RemoveMemberRole(ctx context.Context, guildID, userID, roleID string) error {
	return f.record(Call{Method: "RemoveMemberRole", GuildID: guildID, UserID: userID, RoleID: roleID})
}
