package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/giantswarm/steward/internal/app"
)

// serveCmd runs steward as a long lived service.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run every defined cluster and keep it reconciled",
	Long: `Starts every cluster defined in <config-path>/clusters and scales it to its
initialSize. Definition files are watched: a new file creates a cluster, an
edited file resizes it and a removed file stops all of its members.

Prometheus metrics are served on metrics.address (":9464" by default). When run
under systemd with Type=notify, readiness is reported once the initial
definitions have been reconciled.

Configuration:
  <config-path>/config.yaml      defaults, launcher, location and metrics settings
  <config-path>/clusters/*.yaml  one cluster definition per file

SIGINT or SIGTERM stops every cluster before exiting.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

// runServe is the main entry point for the serve command
func runServe(cmd *cobra.Command, args []string) error {
	application, err := app.NewApplication(appConfig())
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return application.Run(ctx)
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
