package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"guild-sync/backend/internal/db/migrate"
)

// NewMigrateCommand returns `syncctl migrate`.
func NewMigrateCommand(root *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply, roll back or report the schema",
	}
	for _, dir := range []migrate.Direction{migrate.Up, migrate.Down} {
		cmd.AddCommand(&cobra.Command{
			Use:   string(dir),
			Short: fmt.Sprintf("Run every %s migration", dir),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := root.config()
				if err != nil {
					return err
				}
				if err := migrate.Run(cfg.DatabaseURL, dir); err != nil {
					return WrapExitError(ExitFailure, "migrate "+string(dir), err)
				}
				fmt.Fprintf(root.Out, "migrate %s: done\n", dir)
				return nil
			},
		})
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.config()
			if err != nil {
				return err
			}
			v, dirty, ok, err := migrate.Version(cfg.DatabaseURL)
			if err != nil {
				return WrapExitError(ExitFailure, "schema version", err)
			}
			if !ok {
				fmt.Fprintln(root.Out, "no migrations applied")
				return nil
			}
			fmt.Fprintf(root.Out, "version %d (dirty=%v)\n", v, dirty)
			return nil
		},
	})
	return cmd
}
