package discord

import (
	"context"
	"log"
	"time"

	"guild-sync/backend/internal/retry"
)

// AttemptObserver is told about every attempt against the underlying client, including ones that will be retried.
type AttemptObserver func(ctx context.Context, call string, err error)

// Retrying wraps a Capability so every call runs under the same retry policy.
// On exhaustion the caller gets the last error from the underlying client.
type Retrying struct {
	next    Capability
	policy  retry.Policy
	observe AttemptObserver
}

// NewRetrying wraps next with policy. A policy without a Notify hook logs each retry.
func NewRetrying(next Capability, policy retry.Policy) *Retrying {
	return &Retrying{next: next, policy: policy}
}

// WithObserver sets fn to be called after every attempt. Used to count external calls.
func (r *Retrying) WithObserver(fn AttemptObserver) *Retrying {
	r.observe = fn
	return r
}

func (r *Retrying) policyFor(call string) retry.Policy {
	p := r.policy
	if p.Notify == nil {
		p.Notify = func(err error, delay time.Duration) {
			log.Printf("discord: %s failed, retrying in %s: %v", call, delay, err)
		}
	}
	return p
}

func do[T any](ctx context.Context, r *Retrying, call string, op func() (T, error)) (T, error) {
	return retry.Do(ctx, r.policyFor(call), func() (T, error) {
		v, err := op()
		if r.observe != nil {
			r.observe(ctx, call, err)
		}
		return v, err
	})
}

func doErr(ctx context.Context, r *Retrying, call string, op func() error) error {
	_, err := do(ctx, r, call, func() (struct{}, error) {
		return struct{}{}, op()
	})
	return err
}

func (r *Retrying) CreateRole(ctx context.Context, guildID, name string) (Role, error) {
	return do(ctx, r, "create role", func() (Role, error) {
		return r.next.CreateRole(ctx, guildID, name)
	})
}

func (r *Retrying) DeleteRole(ctx context.Context, guildID, roleID string) error {
	return doErr(ctx, r, "delete role", func() error {
		return r.next.DeleteRole(ctx, guildID, roleID)
	})
}

func (r *Retrying) CreateChannel(ctx context.Context, guildID string, spec ChannelSpec) (Channel, error) {
	return do(ctx, r, "create channel", func() (Channel, error) {
		return r.next.CreateChannel(ctx, guildID, spec)
	})
}

func (r *Retrying) DeleteChannel(ctx context.Context, channelID string) error {
	return doErr(ctx, r, "delete channel", func() error {
		return r.next.DeleteChannel(ctx, channelID)
	})
}

func (r *Retrying) SetPermissionOverwrite(ctx context.Context, channelID, roleID string, o Overwrite) error {
	return doErr(ctx, r, "set permission overwrite", func() error {
		return r.next.SetPermissionOverwrite(ctx, channelID, roleID, o)
	})
}

func (r *Retrying) AddMemberRole(ctx context.Context, guildID, userID, roleID string) error {
	return doErr(ctx, r, "add member role", func() error {
		return r.next.AddMemberRole(ctx, guildID, userID, roleID)
	})
}

func (r *Retrying) RemoveMemberRole(ctx context.Context, guildID, userID, roleID string) error {
	return doErr(ctx, r, "remove member role", func() error {
		return r.next.RemoveMemberRole(ctx, guildID, userID, roleID)
	})
}
