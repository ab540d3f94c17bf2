package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// NewAuditCommand returns `syncctl audit`.
func NewAuditCommand(root *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show operator actions recorded by syncctl",
	}
	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List the most recent operator actions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := root.state()
			if err != nil {
				return err
			}
			if b.Audit == nil {
				return NewExitError(ExitCommandError, "audit log not available")
			}
			entries, err := b.Audit.List(cmd.Context(), limit)
			if err != nil {
				return WrapExitError(ExitFailure, "list audit entries", err)
			}
			if root.Format == "json" {
				return writeJSON(root.Out, entries)
			}
			tw := tabwriter.NewWriter(root.Out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "WHEN\tACTOR\tACTION\tRESOURCE\tTARGET")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.CreatedAt.Format(time.RFC3339), e.Actor, e.Action, e.Resource, e.Target)
			}
			return tw.Flush()
		},
	}
	list.Flags().IntVar(&limit, "limit", 50, "maximum entries to list")
	cmd.AddCommand(list)
	return cmd
}
