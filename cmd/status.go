package cmd

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/alexdobrenko/granola-sync/config"
	"github.com/alexdobrenko/granola-sync/pkg/ledger"
)

// StatusCommandDeps holds the dependencies for the status command.
type StatusCommandDeps struct {
	LoadConfig func() (*config.Config, error)
}

// statusEntry is one ledger row in status output.
type statusEntry struct {
	ID       string `json:"id" yaml:"id"`
	Title    string `json:"title" yaml:"title"`
	Dest     string `json:"dest" yaml:"dest"`
	File     string `json:"file" yaml:"file"`
	SyncedAt string `json:"synced_at" yaml:"synced_at"`
}

// statusReport is the full status output.
type statusReport struct {
	LedgerPath string        `json:"ledger_path" yaml:"ledger_path"`
	Total      int           `json:"total" yaml:"total"`
	Routed     int           `json:"routed" yaml:"routed"`
	Inbox      int           `json:"inbox" yaml:"inbox"`
	Entries    []statusEntry `json:"entries" yaml:"entries"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(deps *StatusCommandDeps) *cobra.Command {
	if deps == nil {
		deps = &StatusCommandDeps{LoadConfig: loadConfig}
	}

	var output string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show what has been synced so far",
		Long: `Status reads the sync ledger and reports every tracked meeting: its
title, where it was routed, and when it was last written. It never
modifies anything and does not take the sync lock, so it is safe to run
while a sync is in progress.`,
		Example: `  granola-sync status
  granola-sync status --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := deps.LoadConfig()
			if err != nil {
				return err
			}

			ledgerPath := filepath.Join(cfg.InboxDir, ledger.DefaultFilename)
			led, err := ledger.Read(ledgerPath)
			if err != nil {
				return err
			}

			report := buildStatusReport(ledgerPath, led)

			out := cmd.OutOrStdout()
			switch resolveFormat(cfg, output) {
			case config.OutputFormatJSON:
				return outputJSON(out, report)
			case config.OutputFormatYAML:
				return outputYAML(out, report)
			}

			if report.Total == 0 {
				fmt.Fprintln(out, "No meetings synced yet.")
				return nil
			}
			fmt.Fprintf(out, "%d meetings synced (%d routed, %d in inbox)\n\n", report.Total, report.Routed, report.Inbox)
			fmt.Fprintf(out, "%-24s %-16s %s\n", "SYNCED", "DEST", "TITLE")
			for _, e := range report.Entries {
				fmt.Fprintf(out, "%-24s %-16s %s\n", e.SyncedAt, e.Dest, e.Title)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output format: text, json, yaml")

	return cmd
}

func buildStatusReport(path string, led *ledger.Ledger) *statusReport {
	report := &statusReport{
		LedgerPath: path,
		Total:      led.Len(),
	}

	for id, e := range led.Entries() {
		dest := "inbox"
		if e.Routed {
			dest = e.Client
			report.Routed++
		} else {
			report.Inbox++
		}

		syncedAt := ""
		if !e.SyncedAt.IsZero() {
			syncedAt = e.SyncedAt.Format("2006-01-02 15:04:05 MST")
		}
		report.Entries = append(report.Entries, statusEntry{
			ID:       id,
			Title:    e.Title,
			Dest:     dest,
			File:     e.File,
			SyncedAt: syncedAt,
		})
	}

	// Newest first, ID as tiebreaker so output is stable.
	sort.Slice(report.Entries, func(i, j int) bool {
		if report.Entries[i].SyncedAt != report.Entries[j].SyncedAt {
			return report.Entries[i].SyncedAt > report.Entries[j].SyncedAt
		}
		return report.Entries[i].ID < report.Entries[j].ID
	})

	return report
}
