package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alexdobrenko/granola-sync/config"
	gserrors "github.com/alexdobrenko/granola-sync/pkg/errors"
	"github.com/alexdobrenko/granola-sync/pkg/syncer"
)

// SyncCommandDeps holds the dependencies for the sync command.
type SyncCommandDeps struct {
	LoadConfig func() (*config.Config, error)
	Metrics    *syncer.Metrics
}

// DefaultSyncDeps returns the default dependencies for production use.
// Metrics land on the default prometheus registerer; tests inject their
// own registry through the Deps struct instead.
func DefaultSyncDeps() *SyncCommandDeps {
	return &SyncCommandDeps{
		LoadConfig: loadConfig,
		Metrics:    syncer.DefaultMetrics(),
	}
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(deps *SyncCommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultSyncDeps()
	}

	var (
		dryRun bool
		output string
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync finished meeting transcripts out of the Granola cache",
		Long: `Sync reads the Granola desktop app's local cache, finds meetings that
are finished (ended at least once, titled, and past the word threshold),
and writes each one as a markdown file.

Meetings whose title matches a configured routing keyword are filed under
<destinations_dir>/<folder>/call-notes/; everything else lands in the
inbox directory. Already-synced meetings are tracked in a ledger, so
repeated runs are no-ops. If a meeting's title or routing changes after
it was synced, the next run renames or moves its file.

Sync is safe to run from a scheduler. Overlapping runs are detected via
a lock file and the late run exits cleanly without doing anything.`,
		Example: `  # One-off sync
  granola-sync sync

  # See what would happen without writing anything
  granola-sync sync --dry-run

  # Machine-readable run summary
  granola-sync sync --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := deps.LoadConfig()
			if err != nil {
				return err
			}

			s := syncer.New(syncer.Config{
				CachePath:       cfg.CachePath,
				InboxDir:        cfg.InboxDir,
				DestinationsDir: cfg.DestinationsDir,
				MinWordCount:    cfg.MinWordCount,
				Rules:           routingRules(cfg),
				DryRun:          dryRun,
				Logger:          newLogger(cfg),
				Metrics:         deps.Metrics,
			})

			res, err := s.Run(cmd.Context())
			if gserrors.IsLedgerCollision(err) {
				// A concurrent run already holds the lock. Nothing to do;
				// that run will pick up everything this one would have.
				fmt.Fprintln(cmd.OutOrStdout(), "Another sync is already running, nothing to do.")
				return nil
			}
			if err != nil {
				return err
			}

			return outputSyncResult(cmd, resolveFormat(cfg, output), res, dryRun)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would be synced without writing anything")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output format: text, json, yaml")

	return cmd
}

func outputSyncResult(cmd *cobra.Command, format config.OutputFormat, res *syncer.Result, dryRun bool) error {
	out := cmd.OutOrStdout()

	switch format {
	case config.OutputFormatJSON:
		return outputJSON(out, res)
	case config.OutputFormatYAML:
		return outputYAML(out, res)
	}

	prefix := "Synced"
	if dryRun {
		prefix = "Would sync"
	}
	if !res.Changed() {
		fmt.Fprintln(out, "Nothing to sync.")
	} else {
		fmt.Fprintf(out, "%s %d new, moved %d, renamed %d.\n", prefix, res.New, res.Rerouted, res.Renamed)
	}
	if res.Skipped > 0 {
		fmt.Fprintf(out, "Skipped %d not yet ready.\n", res.Skipped)
	}
	if res.Failed > 0 {
		fmt.Fprintf(out, "%d failed; they will retry on the next run.\n", res.Failed)
	}
	return nil
}
