// Package main provides the granola-sync CLI entry point.
// granola-sync pulls finished meeting transcripts out of the Granola
// desktop app's local cache and files them as markdown.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alexdobrenko/granola-sync/cmd"
	"github.com/alexdobrenko/granola-sync/config"
	"github.com/alexdobrenko/granola-sync/pkg/buildinfo"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "granola-sync",
	Short: "File Granola meeting transcripts as markdown",
	Long: `granola-sync reads the Granola desktop app's local cache and turns
finished meeting transcripts into markdown files.

Meetings whose title matches a configured keyword are filed into
per-client folders; everything else lands in an inbox directory for
manual triage. A ledger tracks what has been synced, so the tool is
safe to run repeatedly from a scheduler: unchanged meetings are left
alone, renamed meetings are renamed on disk, and meetings whose
routing changes are moved.

COMMON WORKFLOWS:
  Sync new transcripts:   granola-sync sync
  Preview without writing: granola-sync sync --dry-run
  See what's tracked:      granola-sync status
  Dump everything:         granola-sync export
  Read one transcript:     granola-sync show "kickoff"

Configuration lives in ~/.granola-sync/config.yaml; run
'granola-sync config init' to create it.`,
	SilenceUsage: true,
}

// Version command flags.
var versionOutputJSON bool

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print the version, commit hash, and build time of granola-sync.

Use --output-json for machine-readable output.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := buildinfo.Get()
		out := cmd.OutOrStdout()

		if versionOutputJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		}

		fmt.Fprintf(out, "granola-sync version %s\n", info.Version)
		fmt.Fprintf(out, "  commit:     %s\n", info.Commit)
		fmt.Fprintf(out, "  built:      %s\n", info.BuildTime)
		fmt.Fprintf(out, "  go version: %s\n", info.GoVersion)
		return nil
	},
}

// configCmd manages CLI configuration.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View and modify the granola-sync configuration settings.`,
}

// configShowCmd displays current configuration.
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the current configuration values after file and environment overrides.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}

		configPath, _ := config.ConfigPath()
		out := cmd.OutOrStdout()

		fmt.Fprintln(out, "Current configuration:")
		fmt.Fprintf(out, "  Config file:      %s\n", configPath)
		fmt.Fprintf(out, "  Cache path:       %s\n", cfg.CachePath)
		fmt.Fprintf(out, "  Inbox dir:        %s\n", cfg.InboxDir)
		fmt.Fprintf(out, "  Destinations dir: %s\n", cfg.DestinationsDir)
		fmt.Fprintf(out, "  Export dir:       %s\n", cfg.ExportDir)
		fmt.Fprintf(out, "  Min word count:   %d\n", cfg.MinWordCount)
		fmt.Fprintf(out, "  Output format:    %s\n", cfg.OutputFormat)
		fmt.Fprintf(out, "  Debug:            %t\n", cfg.Debug)
		fmt.Fprintf(out, "  Log JSON:         %t\n", cfg.LogJSON)

		if len(cfg.Routes) == 0 {
			fmt.Fprintln(out, "  Routes:           (none; everything goes to the inbox)")
			return nil
		}
		fmt.Fprintln(out, "  Routes:")
		for _, r := range cfg.Routes {
			fmt.Fprintf(out, "    %v -> %s\n", r.Keywords, r.Folder)
		}
		return nil
	},
}

// configInitCmd initializes configuration.
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration file",
	Long:  `Create a new configuration file with default values if one doesn't exist.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, err := config.ConfigPath()
		if err != nil {
			return fmt.Errorf("getting config path: %w", err)
		}
		out := cmd.OutOrStdout()

		if _, err := os.Stat(configPath); err == nil {
			fmt.Fprintf(out, "Configuration file already exists: %s\n", configPath)
			fmt.Fprintln(out, "Use 'granola-sync config show' to view current settings.")
			return nil
		}

		defaultCfg := config.DefaultConfig()
		if err := config.SaveConfig(defaultCfg); err != nil {
			return fmt.Errorf("saving configuration: %w", err)
		}

		fmt.Fprintf(out, "Created configuration file: %s\n", configPath)
		fmt.Fprintln(out, "\nDefault settings:")
		fmt.Fprintf(out, "  Cache path: %s\n", defaultCfg.CachePath)
		fmt.Fprintf(out, "  Inbox dir:  %s\n", defaultCfg.InboxDir)
		fmt.Fprintln(out, "\nEdit the file to add routing rules, e.g.:")
		fmt.Fprintln(out, "  routes:")
		fmt.Fprintln(out, "    - keywords: [acme, jane]")
		fmt.Fprintln(out, "      folder: Acme-Corp")
		return nil
	},
}

// configSetCmd sets a configuration value.
var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the config file.

Available keys:
  cache_path        - Granola cache file location (supports ~)
  inbox_dir         - Directory for unrouted transcripts (supports ~)
  destinations_dir  - Parent directory for per-client folders (supports ~)
  export_dir        - Directory for 'granola-sync export' (supports ~)
  min_word_count    - Word threshold for a transcript to be synced
  output_format     - Default output format (text, json, yaml)
  debug             - Enable debug logging (true/false)
  log_json          - Log in JSON for scheduler runs (true/false)

Routing rules are a list and must be edited in the config file directly.

Examples:
  granola-sync config set min_word_count 100
  granola-sync config set inbox_dir ~/notes/meetings/inbox
  granola-sync config set output_format json`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		currentCfg, err := config.LoadConfig()
		if err != nil {
			currentCfg = config.DefaultConfig()
		}

		switch key {
		case "cache_path":
			currentCfg.CachePath = value
		case "inbox_dir":
			currentCfg.InboxDir = value
		case "destinations_dir":
			currentCfg.DestinationsDir = value
		case "export_dir":
			currentCfg.ExportDir = value
		case "min_word_count":
			n, err := strconv.Atoi(value)
			if err != nil || n <= 0 {
				return fmt.Errorf("invalid min_word_count: %s (must be a positive integer)", value)
			}
			currentCfg.MinWordCount = n
		case "output_format":
			format := config.OutputFormat(value)
			if !format.IsValid() {
				return fmt.Errorf("invalid output format: %s (must be text, json, or yaml)", value)
			}
			currentCfg.OutputFormat = format
		case "debug":
			b, err := parseBool(value)
			if err != nil {
				return fmt.Errorf("invalid debug value: %s (must be true or false)", value)
			}
			currentCfg.Debug = b
		case "log_json":
			b, err := parseBool(value)
			if err != nil {
				return fmt.Errorf("invalid log_json value: %s (must be true or false)", value)
			}
			currentCfg.LogJSON = b
		default:
			return fmt.Errorf("unknown configuration key: %s", key)
		}

		if err := config.SaveConfig(currentCfg); err != nil {
			return fmt.Errorf("saving configuration: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, value)
		return nil
	},
}

func parseBool(value string) (bool, error) {
	switch value {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean: %s", value)
}

// completionCmd generates shell completion scripts.
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for granola-sync.

To load completions:

Bash:
  $ source <(granola-sync completion bash)

Zsh:
  $ granola-sync completion zsh > "${fpath[1]}/_granola-sync"

Fish:
  $ granola-sync completion fish | source

PowerShell:
  PS> granola-sync completion powershell | Out-String | Invoke-Expression
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(os.Stdout)
		case "zsh":
			return rootCmd.GenZshCompletion(os.Stdout)
		case "fish":
			return rootCmd.GenFishCompletion(os.Stdout, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletionWithDesc(os.Stdout)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cmd.NewSyncCommand(nil))
	rootCmd.AddCommand(cmd.NewStatusCommand(nil))
	rootCmd.AddCommand(cmd.NewExportCommand(nil))
	rootCmd.AddCommand(cmd.NewShowCommand(nil))

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)

	versionCmd.Flags().BoolVar(&versionOutputJSON, "output-json", false, "Output as JSON")
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(completionCmd)
}

func main() {
	// A second SIGINT falls through to the default handler and kills the
	// process; the first one cancels the context so an in-flight sync
	// stops between meetings and still saves its ledger.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
