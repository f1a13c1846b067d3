package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alexdobrenko/granola-sync/config"
	"github.com/alexdobrenko/granola-sync/pkg/export"
)

// ExportCommandDeps holds the dependencies for the export command.
type ExportCommandDeps struct {
	LoadConfig func() (*config.Config, error)
}

// NewExportCommand creates the export command.
func NewExportCommand(deps *ExportCommandDeps) *cobra.Command {
	if deps == nil {
		deps = &ExportCommandDeps{LoadConfig: loadConfig}
	}

	var output string

	cmd := &cobra.Command{
		Use:   "export [dir]",
		Short: "Export every transcript in the cache to markdown",
		Long: `Export writes all transcripts from the Granola cache into a directory
of markdown files, one per meeting. Unlike sync, export ignores the
readiness rules and the sync ledger: unfinished and untitled meetings
are exported too, and nothing is tracked between runs.

Files are named after the sanitized meeting title, so re-exporting
overwrites previous exports in place.`,
		Example: `  # Export to the configured export_dir
  granola-sync export

  # Export somewhere else
  granola-sync export ~/backups/transcripts`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := deps.LoadConfig()
			if err != nil {
				return err
			}

			dir := cfg.ExportDir
			if len(args) == 1 {
				if dir, err = config.ExpandPath(args[0]); err != nil {
					return err
				}
			}

			e := &export.Exporter{
				CachePath: cfg.CachePath,
				Dir:       dir,
				Logger:    newLogger(cfg),
			}
			res, err := e.Run(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch resolveFormat(cfg, output) {
			case config.OutputFormatJSON:
				return outputJSON(out, res)
			case config.OutputFormatYAML:
				return outputYAML(out, res)
			}

			fmt.Fprintf(out, "Exported %d transcripts to %s\n", res.Exported, dir)
			if res.Failed > 0 {
				fmt.Fprintf(out, "%d failed to export.\n", res.Failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output format: text, json, yaml")

	return cmd
}
