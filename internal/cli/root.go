// Package cli implements syncctl, the operator tool for inspecting and repairing sync state:
// pending and failed outbox events, mappings, and the schema version.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"guild-sync/backend/internal/audit"
	auditrepo "guild-sync/backend/internal/audit/repository"
	"guild-sync/backend/internal/config"
	"guild-sync/backend/internal/db"
	mappingrepo "guild-sync/backend/internal/mapping/repository"
	outboxrepo "guild-sync/backend/internal/outbox/repository"
)

// Exit codes for syncctl.
const (
	ExitSuccess      = 0
	ExitFailure      = 1
	ExitCommandError = 2
)

// Backend is the sync state syncctl operates on.
type Backend struct {
	Outbox   outboxrepo.Repository
	Roles    mappingrepo.RoleRepository
	Channels mappingrepo.ChannelRepository
	Audit    auditrepo.Repository
	Close    func() error
}

// Opener connects to the sync state described by cfg.
type Opener func(cfg *config.Config) (*Backend, error)

// OpenPostgres is the production Opener.
func OpenPostgres(cfg *config.Config) (*Backend, error) {
	if err := cfg.RequireDatabase(); err != nil {
		return nil, err
	}
	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}
	return &Backend{
		Outbox:   outboxrepo.NewPostgresRepository(conn, cfg.SyncMaxAttempts),
		Roles:    mappingrepo.NewRolePostgresRepository(conn),
		Channels: mappingrepo.NewChannelPostgresRepository(conn),
		Audit:    auditrepo.NewPostgresRepository(conn),
		Close:    conn.Close,
	}, nil
}

// RootOptions holds global flags and the lazily opened backend.
type RootOptions struct {
	Format string
	Actor  string
	Out    io.Writer

	load    func() (*config.Config, error)
	open    Opener
	cfg     *config.Config
	backend *Backend
	audit   audit.AuditLogger
}

// ValidFormats are the accepted --format values.
var ValidFormats = []string{"text", "json"}

// NewRootCommand returns the syncctl command tree. open is called at most once, by the first command that needs the database.
func NewRootCommand(load func() (*config.Config, error), open Opener) *cobra.Command {
	opts := &RootOptions{load: load, open: open}

	cmd := &cobra.Command{
		Use:           "syncctl",
		Short:         "Inspect and repair guild-sync state",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			opts.Out = cmd.OutOrStdout()
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return opts.close()
		},
	}
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Actor, "actor", os.Getenv("USER"), "operator name recorded in the audit log")

	cmd.AddCommand(NewEventsCommand(opts))
	cmd.AddCommand(NewMappingsCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewAuditCommand(opts))
	return cmd
}

func (o *RootOptions) config() (*config.Config, error) {
	if o.cfg != nil {
		return o.cfg, nil
	}
	cfg, err := o.load()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "config", err)
	}
	o.cfg = cfg
	return cfg, nil
}

func (o *RootOptions) state() (*Backend, error) {
	if o.backend != nil {
		return o.backend, nil
	}
	cfg, err := o.config()
	if err != nil {
		return nil, err
	}
	b, err := o.open(cfg)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open sync state", err)
	}
	o.backend = b
	o.audit = audit.NewLogger(b.Audit)
	return b, nil
}

func (o *RootOptions) close() error {
	if o.backend == nil || o.backend.Close == nil {
		return nil
	}
	err := o.backend.Close()
	o.backend = nil
	return err
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
