// Package commands implements the fluxcron CLI's cobra commands.
package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCmd builds the root command with every subcommand registered.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fluxcron",
		Short: "fluxcron - a standalone cron service",
		Long: `fluxcron schedules and runs commands on interval, datetime (crontab-like),
and event triggers. It runs as a long-lived server (fluxcron serve) and is
driven by a CLI client that talks to it over HTTP.

Examples:
  fluxcron serve --config fluxcron.yaml
  fluxcron create --command "/usr/local/bin/backup.sh" --type datetime --arg hour=2 --arg minute=0
  fluxcron list
  fluxcron stop 3
  fluxcron shell`,
		Version: version,
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newCreateCmd(),
		newListCmd(),
		newStartCmd(),
		newStopCmd(),
		newDeleteCmd(),
		newSyncCmd(),
		newShellCmd(),
	)

	rootCmd.PersistentFlags().String("server", "http://127.0.0.1:8734", "address of the running fluxcron gateway")
	rootCmd.PersistentFlags().String("token", "", "bearer token for an auth-protected gateway")
	rootCmd.PersistentFlags().StringP("config", "c", "", "path to the fluxcron config file (serve only)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	return rootCmd
}
