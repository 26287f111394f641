package cmd

import (
	"errors"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/giantswarm/steward/internal/config"
	"github.com/giantswarm/steward/internal/orchestrator"
	"github.com/giantswarm/steward/internal/software"
)

// checkCmd validates configuration without starting anything.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate config.yaml and every cluster definition",
	Long: `Loads <config-path>/config.yaml and <config-path>/clusters/*.yaml, validates them
against the built-in entity types and lists the clusters that would be started.
Exits non-zero when any file is invalid.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg := appConfig()
	out := cmd.OutOrStdout()

	stewardCfg, err := config.LoadConfig(cfg.ConfigPath)
	if err != nil {
		return err
	}

	catalog, err := orchestrator.NewCatalog(software.Builtin(software.Options{Images: stewardCfg.Images()})...)
	if err != nil {
		return err
	}

	defs, loadErr := config.LoadClusterDefinitions(cfg.ConfigPath, catalog.Types())

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"CLUSTER", "MEMBER TYPE", "INITIAL SIZE", "FILE"})
	for _, def := range defs {
		t.AppendRow(table.Row{def.Name, def.MemberType, def.InitialSize, def.FilePath})
	}
	t.Render()

	var rejected *config.FileErrors
	if errors.As(loadErr, &rejected) {
		fmt.Fprintln(out, rejected.Report())
		return fmt.Errorf("%d invalid cluster definitions", rejected.Len())
	}
	if loadErr != nil {
		return loadErr
	}

	fmt.Fprintf(out, "%s %d cluster definitions are valid (launcher: %s)\n",
		text.FgGreen.Sprint("✅"), len(defs), stewardCfg.Launcher.Type)
	return nil
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
