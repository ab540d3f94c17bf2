package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"guild-sync/backend/internal/audit"
)

// NewMappingsCommand returns `syncctl mappings`.
func NewMappingsCommand(root *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mappings",
		Short: "Inspect and drop team-to-guild mappings",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "role <team-id> <role-id>",
		Short: "Show the guild role mapped to a team role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.showRoleMapping(cmd.Context(), args[0], args[1])
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "channel <team-id> <subgroup-id>",
		Short: "Show the guild channel and companion role mapped to a sub-group",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.showChannelMapping(cmd.Context(), args[0], args[1])
		},
	})

	var kind string
	forget := &cobra.Command{
		Use:   "forget <team-id> <resource-id>",
		Short: "Delete a mapping so the next event recreates the guild resource",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.forgetMapping(cmd.Context(), kind, args[0], args[1])
		},
	}
	forget.Flags().StringVar(&kind, "kind", "", "mapping kind (role|channel)")
	_ = forget.MarkFlagRequired("kind")
	cmd.AddCommand(forget)
	return cmd
}

func (o *RootOptions) showRoleMapping(ctx context.Context, teamID, roleID string) error {
	b, err := o.state()
	if err != nil {
		return err
	}
	m, err := b.Roles.Get(ctx, teamID, roleID)
	if err != nil {
		return WrapExitError(ExitFailure, "get role mapping", err)
	}
	if m == nil {
		return NewExitError(ExitFailure, fmt.Sprintf("no role mapping for %s/%s", teamID, roleID))
	}
	if o.Format == "json" {
		return writeJSON(o.Out, m)
	}
	tw := tabwriter.NewWriter(o.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "team:\t%s\nrole:\t%s\nguild role:\t%s\n", m.TeamID, m.RoleID, m.ExternalRoleID)
	return tw.Flush()
}

func (o *RootOptions) showChannelMapping(ctx context.Context, teamID, subgroupID string) error {
	b, err := o.state()
	if err != nil {
		return err
	}
	m, err := b.Channels.Get(ctx, teamID, subgroupID)
	if err != nil {
		return WrapExitError(ExitFailure, "get channel mapping", err)
	}
	if m == nil {
		return NewExitError(ExitFailure, fmt.Sprintf("no channel mapping for %s/%s", teamID, subgroupID))
	}
	if o.Format == "json" {
		return writeJSON(o.Out, m)
	}
	role := m.CompanionRole()
	if role == "" {
		role = "(none)"
	}
	tw := tabwriter.NewWriter(o.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "team:\t%s\nsubgroup:\t%s\nguild channel:\t%s\ncompanion role:\t%s\n", m.TeamID, m.SubgroupID, m.ExternalChannelID, role)
	return tw.Flush()
}

func (o *RootOptions) forgetMapping(ctx context.Context, kind, teamID, resourceID string) error {
	b, err := o.state()
	if err != nil {
		return err
	}
	switch kind {
	case "role":
		err = b.Roles.Delete(ctx, teamID, resourceID)
	case "channel":
		err = b.Channels.Delete(ctx, teamID, resourceID)
	default:
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown kind %q: must be role or channel", kind))
	}
	if err != nil {
		return WrapExitError(ExitFailure, "delete mapping", err)
	}
	o.audit.LogEvent(ctx, o.Actor, audit.ActionForget, kind+"_mapping", teamID+"/"+resourceID, "")
	fmt.Fprintf(o.Out, "forgot %s mapping %s/%s\n", kind, teamID, resourceID)
	return nil
}
