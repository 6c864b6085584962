package main

import (
	"fmt"

	"github.com/artpar/coreplane/bootstrap"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the control plane server",
	Long: `Start the coreplane control plane server.

The server will:
  - Load configuration from coreplane.yaml (or --config)
  - Or load configuration from COREPLANE_* environment variables
  - Connect to the database and run migrations
  - Serve project snapshots, quota checks, and break-glass endpoints
  - Run the suspension check and auto-resume jobs on a ticker

Environment variables (for env-only deployments):
  COREPLANE_DATABASE_DSN        - Database path (default: coreplane.db)
  COREPLANE_SERVER_PORT         - Server port (default: 8080)
  COREPLANE_SNAPSHOT_TTL        - Snapshot cache TTL (default: 45s)
  COREPLANE_SUSPENSION_INTERVAL - Suspension check interval (default: 1m)
  COREPLANE_LOG_LEVEL           - Log level: debug, info, warn, error

Examples:
  coreplane serve
  coreplane serve --config /etc/coreplane/config.yaml

  # Env vars only:
  COREPLANE_DATABASE_DSN=/var/lib/coreplane.db coreplane serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	app, err := bootstrap.New(bootstrap.Options{
		ConfigPath: cfgFile,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	return app.Run()
}
