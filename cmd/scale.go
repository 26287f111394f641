package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"github.com/giantswarm/steward/internal/app"
	"github.com/giantswarm/steward/internal/cluster"
	"github.com/giantswarm/steward/internal/formatting"
)

var (
	scaleBy           int
	scaleTeardown     bool
	scaleTimeout      time.Duration
	scaleOutputFormat string
	scaleQuiet        bool
)

// scaler is the part of the application the scale command drives.
type scaler interface {
	Scale(ctx context.Context, name string, n int) (*cluster.ScaleResult, error)
	Shutdown(ctx context.Context) error
}

// newScaler is replaced in tests.
var newScaler = func(cfg *app.Config) (scaler, error) {
	a, err := app.NewApplication(cfg)
	if err != nil {
		return nil, err
	}
	return a, nil
}

var scaleCmd = &cobra.Command{
	Use:   "scale CLUSTER",
	Short: "Start a defined cluster with a number of members and report the result",
	Long: `Creates the cluster defined as CLUSTER in <config-path>/clusters, scales it out
by --by members and prints one line per member.

The command exits with code 2 when fewer members than required reached RUNNING,
and 1 on any other error. Members keep running after the command exits unless
--teardown is given.

Examples:
  steward scale search-1 --by 3
  steward scale web --by 2 --teardown -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runScale,
}

func runScale(cmd *cobra.Command, args []string) error {
	format, err := formatting.ParseFormat(scaleOutputFormat)
	if err != nil {
		return err
	}

	application, err := newScaler(appConfig())
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if scaleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, scaleTimeout)
		defer cancel()
	}

	var s *spinner.Spinner
	if !scaleQuiet && format == formatting.FormatTable {
		s = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
		s.Suffix = fmt.Sprintf(" Starting %d members of %s...", scaleBy, args[0])
		s.Start()
	}

	result, scaleErr := application.Scale(ctx, args[0], scaleBy)

	if s != nil {
		s.Stop()
	}

	if result != nil {
		f := formatting.NewFormatter(formatting.Options{
			Format: format,
			Quiet:  scaleQuiet,
			Color:  !scaleQuiet,
		})
		if err := f.FormatScale(cmd.OutOrStdout(), formatting.NewScaleReport(args[0], result)); err != nil {
			return err
		}
	}

	if scaleTeardown {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), app.ShutdownTimeout)
		defer cancel()
		if err := application.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "teardown did not complete: %v\n", err)
		}
	}

	return scaleErr
}

func init() {
	rootCmd.AddCommand(scaleCmd)

	scaleCmd.Flags().IntVar(&scaleBy, "by", 1, "Number of members to start")
	scaleCmd.Flags().BoolVar(&scaleTeardown, "teardown", false, "Stop every member before exiting")
	scaleCmd.Flags().DurationVar(&scaleTimeout, "timeout", 0, "Abort the scale-out after this long (0 waits for the members' own timeouts)")
	scaleCmd.Flags().StringVarP(&scaleOutputFormat, "output", "o", "table", "Output format (table, json, yaml)")
	scaleCmd.Flags().BoolVarP(&scaleQuiet, "quiet", "q", false, "Suppress non-essential output")
}
