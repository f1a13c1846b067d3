package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/alexdobrenko/granola-sync/config"
)

// testEnv wires a config pointing at temp directories and a cache file
// the tests control.
type testEnv struct {
	cfg *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	return &testEnv{
		cfg: &config.Config{
			CachePath:       filepath.Join(dir, "cache-v3.json"),
			InboxDir:        filepath.Join(dir, "inbox"),
			DestinationsDir: filepath.Join(dir, "clients"),
			ExportDir:       filepath.Join(dir, "exports"),
			MinWordCount:    5,
			OutputFormat:    config.OutputFormatText,
		},
	}
}

func (e *testEnv) loadConfig() (*config.Config, error) {
	return e.cfg, nil
}

// writeCache writes a doubly-encoded cache with one document per
// (id, title, endCount, text) tuple.
type cacheDoc struct {
	id       string
	title    string
	endCount int
	text     string
}

func (e *testEnv) writeCache(t *testing.T, docs ...cacheDoc) {
	t.Helper()

	documents := make(map[string]map[string]any, len(docs))
	transcripts := make(map[string][]map[string]any, len(docs))
	for _, d := range docs {
		documents[d.id] = map[string]any{
			"id":                d.id,
			"title":             d.title,
			"start_time":        "2026-08-20T10:00:00Z",
			"meeting_end_count": d.endCount,
		}
		transcripts[d.id] = []map[string]any{
			{"text": d.text, "source": "microphone"},
		}
	}

	inner, err := json.Marshal(map[string]any{
		"state": map[string]any{
			"documents":   documents,
			"transcripts": transcripts,
		},
	})
	require.NoError(t, err)

	outer, err := json.Marshal(map[string]string{"cache": string(inner)})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(e.cfg.CachePath, outer, 0600))
}

func routeFixture(keyword, folder string) config.Route {
	return config.Route{Keywords: []string{keyword}, Folder: folder}
}

// execute runs a command with the given args and returns its stdout.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}
