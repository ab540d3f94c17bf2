package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"guild-sync/backend/internal/audit"
	outboxrepo "guild-sync/backend/internal/outbox/repository"
	"guild-sync/backend/internal/syncevent/domain"
)

// EventsOptions holds flags shared by the events subcommands.
type EventsOptions struct {
	*RootOptions
	Domain string
	Limit  int
}

// NewEventsCommand returns `syncctl events`.
func NewEventsCommand(root *RootOptions) *cobra.Command {
	opts := &EventsOptions{RootOptions: root}
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List, inspect and requeue outbox events",
	}
	cmd.PersistentFlags().StringVar(&opts.Domain, "domain", string(domain.DomainRole), "event domain (role|channel)")
	cmd.PersistentFlags().IntVar(&opts.Limit, "limit", outboxrepo.DefaultBatchSize, "maximum rows to list")

	cmd.AddCommand(&cobra.Command{
		Use:   "pending",
		Short: "List events the dispatch loop has not finished, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.list(cmd.Context(), false)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "failed",
		Short: "List events carrying a delivery error, most recent attempt first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.list(cmd.Context(), true)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show <event-id>",
		Short: "Show one event with its payload and delivery state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.show(cmd.Context(), args[0])
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "requeue <event-id>...",
		Short: "Clear the error and attempt count of failed events so they are polled again",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.requeue(cmd.Context(), args)
		},
	})
	return cmd
}

func (o *EventsOptions) parseDomain() (domain.Domain, error) {
	d := domain.Domain(o.Domain)
	if !d.Valid() {
		return "", NewExitError(ExitCommandError, fmt.Sprintf("unknown domain %q: must be role or channel", o.Domain))
	}
	return d, nil
}

func (o *EventsOptions) list(ctx context.Context, failed bool) error {
	d, err := o.parseDomain()
	if err != nil {
		return err
	}
	b, err := o.state()
	if err != nil {
		return err
	}
	var rows []*domain.Row
	if failed {
		rows, err = b.Outbox.ListFailedEvents(ctx, d, o.Limit)
	} else {
		rows, err = b.Outbox.GetUnprocessedEvents(ctx, d, o.Limit)
	}
	if err != nil {
		return WrapExitError(ExitFailure, "list events", err)
	}
	return writeEvents(o.Out, o.Format, rows)
}

func (o *EventsOptions) show(ctx context.Context, id string) error {
	b, err := o.state()
	if err != nil {
		return err
	}
	row, err := b.Outbox.GetEvent(ctx, id)
	if err != nil {
		return WrapExitError(ExitFailure, "get event", err)
	}
	if row == nil {
		return NewExitError(ExitFailure, fmt.Sprintf("event %s not found", id))
	}
	return writeEvent(o.Out, o.Format, row)
}

func (o *EventsOptions) requeue(ctx context.Context, ids []string) error {
	b, err := o.state()
	if err != nil {
		return err
	}
	var failed int
	for _, id := range ids {
		err := b.Outbox.RequeueEvent(ctx, id)
		switch {
		case errors.Is(err, outboxrepo.ErrEventNotFound):
			fmt.Fprintf(o.Out, "%s: not found\n", id)
			failed++
		case errors.Is(err, outboxrepo.ErrEventNotFailed):
			fmt.Fprintf(o.Out, "%s: not failed, skipped\n", id)
			failed++
		case err != nil:
			fmt.Fprintf(o.Out, "%s: %v\n", id, err)
			failed++
		default:
			o.audit.LogEvent(ctx, o.Actor, audit.ActionRequeue, "event", id, "")
			fmt.Fprintf(o.Out, "%s: requeued\n", id)
		}
	}
	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d events not requeued", failed, len(ids)))
	}
	return nil
}
