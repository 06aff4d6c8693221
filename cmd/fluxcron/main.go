// fluxcron is the CLI entrypoint for the standalone cron service.
package main

import (
	"fmt"
	"os"

	"github.com/flux-framework/flux-cron-go/cmd/fluxcron/commands"
)

// version is injected at build time via ldflags.
var version = "dev"

func main() {
	rootCmd := commands.NewRootCmd(version)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
