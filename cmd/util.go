// Package cmd provides CLI commands for the granola-sync tool.
package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/alexdobrenko/granola-sync/config"
	"github.com/alexdobrenko/granola-sync/pkg/logging"
	"github.com/alexdobrenko/granola-sync/pkg/router"
)

// loadConfig loads the configuration and expands all path fields.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	return cfg.ExpandPaths()
}

// newLogger builds the logger the commands share, honoring the config's
// debug and JSON settings.
func newLogger(cfg *config.Config) logging.Logger {
	level := logging.LevelInfo
	if cfg.Debug {
		level = logging.LevelDebug
	}
	return logging.NewLogger(&logging.Config{
		Level:      level,
		JSONFormat: cfg.LogJSON,
	})
}

// routingRules converts configured routes into router rules.
func routingRules(cfg *config.Config) []router.Rule {
	rules := make([]router.Rule, 0, len(cfg.Routes))
	for _, r := range cfg.Routes {
		rules = append(rules, router.Rule{Keywords: r.Keywords, Folder: r.Folder})
	}
	return rules
}

// resolveFormat picks the output format: the command flag when set,
// otherwise the configured default.
func resolveFormat(cfg *config.Config, flag string) config.OutputFormat {
	if flag != "" {
		return config.OutputFormat(flag)
	}
	return cfg.OutputFormat
}

// outputJSON writes v as indented JSON.
func outputJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputYAML writes v as YAML.
func outputYAML(w io.Writer, v interface{}) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(v)
}
