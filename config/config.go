// Package config provides configuration management for the granola-sync
// command-line tool. It supports loading configuration from a YAML file,
// environment variables, and command-line flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// OutputFormat defines the supported output formats for CLI results.
type OutputFormat string

const (
	// OutputFormatText is human-readable plain text output.
	OutputFormatText OutputFormat = "text"
	// OutputFormatJSON is JSON-formatted output for machine processing.
	OutputFormatJSON OutputFormat = "json"
	// OutputFormatYAML is YAML-formatted output for machine processing.
	OutputFormatYAML OutputFormat = "yaml"
)

// Default configuration values.
const (
	DefaultMinWordCount = 50
	DefaultOutputFormat = OutputFormatText
	DefaultConfigDir    = ".granola-sync"
	DefaultConfigFile   = "config.yaml"

	// DefaultCachePath is where the Granola desktop app keeps its local
	// state snapshot (macOS default).
	DefaultCachePath = "~/Library/Application Support/Granola/cache-v3.json"

	DefaultInboxDir        = "~/granola-transcripts/inbox"
	DefaultDestinationsDir = "~/granola-transcripts/clients"
	DefaultExportDir       = "~/granola-transcripts/exports"
)

// Route maps a set of title keywords to a destination folder.
// Routes are evaluated in the order they appear in the config file; the
// first route with any keyword matching wins.
type Route struct {
	// Keywords are matched case-insensitively as substrings of the
	// meeting title.
	Keywords []string `yaml:"keywords"`

	// Folder is the destination folder name under the destinations dir.
	Folder string `yaml:"folder"`
}

// Config holds the granola-sync configuration settings.
type Config struct {
	// CachePath is the location of Granola's cache file.
	CachePath string `yaml:"cache_path"`

	// InboxDir is where unrouted transcripts (and the sync ledger) land.
	InboxDir string `yaml:"inbox_dir"`

	// DestinationsDir is the parent folder for per-client directories.
	DestinationsDir string `yaml:"destinations_dir"`

	// ExportDir is where 'granola-sync export' writes markdown files.
	ExportDir string `yaml:"export_dir"`

	// MinWordCount is the transcript word threshold below which a meeting
	// is not considered ready to sync.
	MinWordCount int `yaml:"min_word_count"`

	// Routes is the ordered routing-rule table. Order is significant.
	Routes []Route `yaml:"routes,omitempty"`

	// OutputFormat specifies the default output format for commands.
	OutputFormat OutputFormat `yaml:"output_format"`

	// Debug enables verbose debug logging.
	Debug bool `yaml:"debug,omitempty"`

	// LogJSON switches log output to JSON, for unattended runs whose
	// output is collected by a scheduler.
	LogJSON bool `yaml:"log_json,omitempty"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		CachePath:       DefaultCachePath,
		InboxDir:        DefaultInboxDir,
		DestinationsDir: DefaultDestinationsDir,
		ExportDir:       DefaultExportDir,
		MinWordCount:    DefaultMinWordCount,
		OutputFormat:    DefaultOutputFormat,
	}
}

// ConfigDir returns the configuration directory path.
// Uses $GRANOLA_SYNC_CONFIG_DIR if set, otherwise ~/.granola-sync
func ConfigDir() (string, error) {
	if dir := os.Getenv("GRANOLA_SYNC_CONFIG_DIR"); dir != "" {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	return filepath.Join(home, DefaultConfigDir), nil
}

// ConfigPath returns the full path to the configuration file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultConfigFile), nil
}

// LoadConfig loads the configuration from file and environment variables.
// Configuration is loaded in this order (later sources override earlier):
// 1. Default values
// 2. Config file (~/.granola-sync/config.yaml or $GRANOLA_SYNC_CONFIG_DIR/config.yaml)
// 3. Environment variables (GRANOLA_SYNC_CACHE_PATH, GRANOLA_SYNC_INBOX_DIR, ...)
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	configPath, err := ConfigPath()
	if err != nil {
		return nil, fmt.Errorf("getting config path: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	loadFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	if fileCfg.CachePath != "" {
		cfg.CachePath = fileCfg.CachePath
	}
	if fileCfg.InboxDir != "" {
		cfg.InboxDir = fileCfg.InboxDir
	}
	if fileCfg.DestinationsDir != "" {
		cfg.DestinationsDir = fileCfg.DestinationsDir
	}
	if fileCfg.ExportDir != "" {
		cfg.ExportDir = fileCfg.ExportDir
	}
	if fileCfg.MinWordCount != 0 {
		cfg.MinWordCount = fileCfg.MinWordCount
	}
	if fileCfg.Routes != nil {
		cfg.Routes = fileCfg.Routes
	}
	if fileCfg.OutputFormat != "" {
		cfg.OutputFormat = fileCfg.OutputFormat
	}
	cfg.Debug = fileCfg.Debug
	cfg.LogJSON = fileCfg.LogJSON

	return nil
}

// loadFromEnv overlays environment variables onto the configuration.
func loadFromEnv(cfg *Config) {
	if v := os.Getenv("GRANOLA_SYNC_CACHE_PATH"); v != "" {
		cfg.CachePath = v
	}

	if v := os.Getenv("GRANOLA_SYNC_INBOX_DIR"); v != "" {
		cfg.InboxDir = v
	}

	if v := os.Getenv("GRANOLA_SYNC_DESTINATIONS_DIR"); v != "" {
		cfg.DestinationsDir = v
	}

	if v := os.Getenv("GRANOLA_SYNC_EXPORT_DIR"); v != "" {
		cfg.ExportDir = v
	}

	if v := os.Getenv("GRANOLA_SYNC_MIN_WORD_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MinWordCount = n
		}
	}

	if v := os.Getenv("GRANOLA_SYNC_OUTPUT_FORMAT"); v != "" {
		cfg.OutputFormat = OutputFormat(v)
	}

	if v := os.Getenv("GRANOLA_SYNC_DEBUG"); v == "true" || v == "1" {
		cfg.Debug = true
	}

	if v := os.Getenv("GRANOLA_SYNC_LOG_JSON"); v == "true" || v == "1" {
		cfg.LogJSON = true
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.CachePath == "" {
		return fmt.Errorf("cache_path is required")
	}

	if c.InboxDir == "" {
		return fmt.Errorf("inbox_dir is required")
	}

	if c.DestinationsDir == "" {
		return fmt.Errorf("destinations_dir is required")
	}

	if c.MinWordCount <= 0 {
		return fmt.Errorf("min_word_count must be positive")
	}

	if !c.OutputFormat.IsValid() {
		return fmt.Errorf("invalid output_format: %q (must be text, json, or yaml)", c.OutputFormat)
	}

	for i, route := range c.Routes {
		if route.Folder == "" {
			return fmt.Errorf("route %d: folder is required", i)
		}
		if len(route.Keywords) == 0 {
			return fmt.Errorf("route %d (%s): at least one keyword is required", i, route.Folder)
		}
		for _, kw := range route.Keywords {
			if strings.TrimSpace(kw) == "" {
				return fmt.Errorf("route %d (%s): empty keyword", i, route.Folder)
			}
		}
	}

	return nil
}

// IsValid checks if the output format is valid.
func (f OutputFormat) IsValid() bool {
	switch f {
	case OutputFormatText, OutputFormatJSON, OutputFormatYAML:
		return true
	default:
		return false
	}
}

// String returns the string representation of the output format.
func (f OutputFormat) String() string {
	return string(f)
}

// SaveConfig saves the configuration to the config file.
func SaveConfig(cfg *Config) error {
	configDir, err := ConfigDir()
	if err != nil {
		return fmt.Errorf("getting config directory: %w", err)
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	configPath := filepath.Join(configDir, DefaultConfigFile)
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
	}
	return path, nil
}

// ExpandPaths returns a copy of the config with all path fields expanded.
func (c *Config) ExpandPaths() (*Config, error) {
	out := *c

	var err error
	if out.CachePath, err = ExpandPath(c.CachePath); err != nil {
		return nil, err
	}
	if out.InboxDir, err = ExpandPath(c.InboxDir); err != nil {
		return nil, err
	}
	if out.DestinationsDir, err = ExpandPath(c.DestinationsDir); err != nil {
		return nil, err
	}
	if out.ExportDir, err = ExpandPath(c.ExportDir); err != nil {
		return nil, err
	}

	return &out, nil
}
