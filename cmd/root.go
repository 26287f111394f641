package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/giantswarm/steward/internal/api"
	"github.com/giantswarm/steward/internal/app"
	"github.com/giantswarm/steward/internal/config"
	"github.com/giantswarm/steward/pkg/logging"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodePartialFailure indicates a scale operation in which fewer
	// members than required reached their target state.
	ExitCodePartialFailure = 2
)

var (
	// configPath is the directory holding config.yaml and clusters/.
	configPath string

	// debug enables verbose logging across the application.
	debug bool

	// logFormat selects text or json log lines.
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "steward",
	Short: "Run and monitor clusters of containerized services",
	Long: `steward starts clusters of software processes (Tomcat, Elasticsearch,
PostgreSQL) in containers or Kubernetes pods, keeps their sensors up to date
and reconciles the clusters with the definitions in <config-path>/clusters.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if logFormat != logging.FormatText && logFormat != logging.FormatJSON {
			return fmt.Errorf("unsupported log format %q (expected text or json)", logFormat)
		}
		return nil
	},
}

// SetVersion injects the build version from main.
func SetVersion(v string) {
	rootCmd.Version = v
}

func GetVersion() string {
	return rootCmd.Version
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "steward version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode maps partial scale failures to ExitCodePartialFailure.
func getExitCode(err error) int {
	if err == nil {
		return ExitCodeSuccess
	}
	if api.IsScaleError(err) {
		return ExitCodePartialFailure
	}
	return ExitCodeError
}

// appConfig builds the application configuration from the global flags.
func appConfig() *app.Config {
	path := configPath
	if path == "" {
		path = config.GetDefaultConfigPathOrPanic()
	}
	return app.NewConfig(debug, logFormat, path)
}

func init() {
	rootCmd.AddCommand(newVersionCmd())

	rootCmd.PersistentFlags().StringVar(&configPath, "config-path", "", "Configuration directory (default ~/.config/steward)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", logging.FormatText, "Log format (text, json)")
}
