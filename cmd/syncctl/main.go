// syncctl inspects and repairs guild-sync state: pending and failed events, mappings, and the schema.
package main

import (
	"context"
	"fmt"
	"os"

	"guild-sync/backend/internal/cli"
	"guild-sync/backend/internal/config"
)

func main() {
	cmd := cli.NewRootCommand(config.Load, cli.OpenPostgres)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "syncctl:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
