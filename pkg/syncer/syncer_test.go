package syncer

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gserrors "github.com/alexdobrenko/granola-sync/pkg/errors"
	"github.com/alexdobrenko/granola-sync/pkg/ledger"
	"github.com/alexdobrenko/granola-sync/pkg/router"
)

type fixtureMeeting struct {
	id          string
	title       string
	start       string
	endCount    int
	words       int
	peopleTitle string
}

// writeCache writes a doubly-encoded cache file containing the given
// meetings and returns its path.
func writeCache(t *testing.T, path string, meetings ...fixtureMeeting) {
	t.Helper()

	docs := make(map[string]map[string]any, len(meetings))
	transcripts := make(map[string][]map[string]any, len(meetings))
	for _, m := range meetings {
		doc := map[string]any{
			"id":                m.id,
			"title":             m.title,
			"start_time":        m.start,
			"meeting_end_count": m.endCount,
		}
		if m.peopleTitle != "" {
			doc["people"] = map[string]any{"title": m.peopleTitle}
		}
		docs[m.id] = doc

		text := strings.TrimSpace(strings.Repeat("word ", m.words))
		transcripts[m.id] = []map[string]any{
			{"text": text, "source": "microphone", "start_timestamp": m.start},
		}
	}

	inner, err := json.Marshal(map[string]any{
		"state": map[string]any{
			"documents":   docs,
			"transcripts": transcripts,
		},
	})
	require.NoError(t, err)

	outer, err := json.Marshal(map[string]string{"cache": string(inner)})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, outer, 0600))
}

type env struct {
	cachePath string
	inboxDir  string
	destsDir  string
}

func newEnv(t *testing.T) env {
	t.Helper()
	dir := t.TempDir()
	return env{
		cachePath: filepath.Join(dir, "cache-v3.json"),
		inboxDir:  filepath.Join(dir, "inbox"),
		destsDir:  filepath.Join(dir, "clients"),
	}
}

func (e env) syncer(rules []router.Rule) *Syncer {
	return New(Config{
		CachePath:       e.cachePath,
		InboxDir:        e.inboxDir,
		DestinationsDir: e.destsDir,
		MinWordCount:    5,
		Rules:           rules,
		Now:             func() time.Time { return time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC) },
	})
}

func (e env) readLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	l, err := ledger.Read(filepath.Join(e.inboxDir, ledger.DefaultFilename))
	require.NoError(t, err)
	return l
}

func TestRun_NewMeetingSyncedToInbox(t *testing.T) {
	e := newEnv(t)
	writeCache(t, e.cachePath, fixtureMeeting{
		id: "doc-1", title: "Weekly Sync", start: "2026-08-20T10:00:00Z", endCount: 1, words: 10,
	})

	res, err := e.syncer(nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.New)
	assert.True(t, res.Changed())

	wantFile := filepath.Join(e.inboxDir, "2026-08-20-Weekly-Sync.md")
	data, err := os.ReadFile(wantFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Weekly Sync")

	entry, ok := e.readLedger(t).Lookup("doc-1")
	require.True(t, ok)
	assert.False(t, entry.Routed)
	assert.Empty(t, entry.Client)
	assert.Equal(t, wantFile, entry.File)
	assert.Equal(t, "Weekly Sync", entry.Title)
}

func TestRun_RoutesByKeyword(t *testing.T) {
	e := newEnv(t)
	writeCache(t, e.cachePath, fixtureMeeting{
		id: "doc-1", title: "Acme Kickoff", start: "2026-08-20T10:00:00Z", endCount: 1, words: 10,
	})
	rules := []router.Rule{{Keywords: []string{"acme"}, Folder: "Acme-Corp"}}

	res, err := e.syncer(rules).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.New)

	wantFile := filepath.Join(e.destsDir, "Acme-Corp", "call-notes", "2026-08-20-Acme-Kickoff.md")
	assert.FileExists(t, wantFile)

	entry, ok := e.readLedger(t).Lookup("doc-1")
	require.True(t, ok)
	assert.True(t, entry.Routed)
	assert.Equal(t, "Acme-Corp", entry.Client)
}

func TestRun_RoutesByPeopleTitle(t *testing.T) {
	e := newEnv(t)
	writeCache(t, e.cachePath, fixtureMeeting{
		id: "doc-1", title: "Quarterly Review", start: "2026-08-20T10:00:00Z",
		endCount: 1, words: 10, peopleTitle: "Acme Corporation",
	})
	rules := []router.Rule{{Keywords: []string{"acme"}, Folder: "Acme-Corp"}}

	_, err := e.syncer(rules).Run(context.Background())
	require.NoError(t, err)

	entry, ok := e.readLedger(t).Lookup("doc-1")
	require.True(t, ok)
	assert.Equal(t, "Acme-Corp", entry.Client)
}

func TestRun_SecondRunIsNoop(t *testing.T) {
	e := newEnv(t)
	writeCache(t, e.cachePath, fixtureMeeting{
		id: "doc-1", title: "Weekly Sync", start: "2026-08-20T10:00:00Z", endCount: 1, words: 10,
	})
	s := e.syncer(nil)

	_, err := s.Run(context.Background())
	require.NoError(t, err)

	file := filepath.Join(e.inboxDir, "2026-08-20-Weekly-Sync.md")
	fileBefore, err := os.Stat(file)
	require.NoError(t, err)
	ledgerBefore, err := os.Stat(filepath.Join(e.inboxDir, ledger.DefaultFilename))
	require.NoError(t, err)

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Changed())
	assert.Equal(t, 1, res.Unchanged)

	fileAfter, err := os.Stat(file)
	require.NoError(t, err)
	assert.Equal(t, fileBefore.ModTime(), fileAfter.ModTime())
	ledgerAfter, err := os.Stat(filepath.Join(e.inboxDir, ledger.DefaultFilename))
	require.NoError(t, err)
	assert.Equal(t, ledgerBefore.ModTime(), ledgerAfter.ModTime())
}

func TestRun_SkipsUntilReady(t *testing.T) {
	e := newEnv(t)

	// Still in progress: never ended, no title, transcript too short.
	writeCache(t, e.cachePath, fixtureMeeting{
		id: "doc-1", start: "2026-08-20T10:00:00Z", endCount: 0, words: 2,
	})
	res, err := e.syncer(nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 0, e.readLedger(t).Len())

	// The meeting ends and gains a title and content; the next run picks
	// it up.
	writeCache(t, e.cachePath, fixtureMeeting{
		id: "doc-1", title: "Weekly Sync", start: "2026-08-20T10:00:00Z", endCount: 1, words: 10,
	})
	res, err = e.syncer(nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.New)
	assert.Equal(t, 0, res.Skipped)
}

func TestRun_RenameOnTitleChange(t *testing.T) {
	e := newEnv(t)
	writeCache(t, e.cachePath, fixtureMeeting{
		id: "doc-1", title: "Untitled Sync", start: "2026-08-20T10:00:00Z", endCount: 1, words: 10,
	})
	s := e.syncer(nil)

	_, err := s.Run(context.Background())
	require.NoError(t, err)
	oldFile := filepath.Join(e.inboxDir, "2026-08-20-Untitled-Sync.md")
	assert.FileExists(t, oldFile)

	// User renames the meeting in the app after the first sync.
	writeCache(t, e.cachePath, fixtureMeeting{
		id: "doc-1", title: "Planning Session", start: "2026-08-20T10:00:00Z", endCount: 1, words: 10,
	})
	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Renamed)
	assert.Equal(t, 0, res.Rerouted)

	assert.NoFileExists(t, oldFile)
	newFile := filepath.Join(e.inboxDir, "2026-08-20-Planning-Session.md")
	assert.FileExists(t, newFile)

	entry, ok := e.readLedger(t).Lookup("doc-1")
	require.True(t, ok)
	assert.Equal(t, "Planning Session", entry.Title)
	assert.Equal(t, newFile, entry.File)
	assert.False(t, entry.Routed)
}

func TestRun_RerouteOnTitleChange(t *testing.T) {
	e := newEnv(t)
	rules := []router.Rule{{Keywords: []string{"acme"}, Folder: "Acme-Corp"}}
	writeCache(t, e.cachePath, fixtureMeeting{
		id: "doc-1", title: "Kickoff Call", start: "2026-08-20T10:00:00Z", endCount: 1, words: 10,
	})
	s := e.syncer(rules)

	_, err := s.Run(context.Background())
	require.NoError(t, err)
	inboxFile := filepath.Join(e.inboxDir, "2026-08-20-Kickoff-Call.md")
	assert.FileExists(t, inboxFile)

	writeCache(t, e.cachePath, fixtureMeeting{
		id: "doc-1", title: "Acme Kickoff Call", start: "2026-08-20T10:00:00Z", endCount: 1, words: 10,
	})
	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rerouted)
	assert.Equal(t, 0, res.Renamed)

	assert.NoFileExists(t, inboxFile)
	routedFile := filepath.Join(e.destsDir, "Acme-Corp", "call-notes", "2026-08-20-Acme-Kickoff-Call.md")
	assert.FileExists(t, routedFile)

	entry, ok := e.readLedger(t).Lookup("doc-1")
	require.True(t, ok)
	assert.True(t, entry.Routed)
	assert.Equal(t, "Acme-Corp", entry.Client)
	assert.Equal(t, routedFile, entry.File)
}

func TestRun_RerouteOnRuleChange(t *testing.T) {
	e := newEnv(t)
	writeCache(t, e.cachePath, fixtureMeeting{
		id: "doc-1", title: "Acme Kickoff", start: "2026-08-20T10:00:00Z", endCount: 1, words: 10,
	})

	// No rules on the first run, so the meeting lands in the inbox.
	_, err := e.syncer(nil).Run(context.Background())
	require.NoError(t, err)
	inboxFile := filepath.Join(e.inboxDir, "2026-08-20-Acme-Kickoff.md")
	assert.FileExists(t, inboxFile)

	// A rule is added between runs; the meeting moves without any cache
	// change.
	rules := []router.Rule{{Keywords: []string{"acme"}, Folder: "Acme-Corp"}}
	res, err := e.syncer(rules).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rerouted)
	assert.NoFileExists(t, inboxFile)
	assert.FileExists(t, filepath.Join(e.destsDir, "Acme-Corp", "call-notes", "2026-08-20-Acme-Kickoff.md"))
}

func TestRun_MigratesScriptWrittenLedger(t *testing.T) {
	// A ledger left behind by the original sync script tracks files by
	// bare filename. A rename must still remove the old file.
	e := newEnv(t)
	require.NoError(t, os.MkdirAll(e.inboxDir, 0o755))

	oldFile := filepath.Join(e.inboxDir, "2026-08-20-Old-Title.md")
	require.NoError(t, os.WriteFile(oldFile, []byte("old content"), 0o644))

	scriptLedger := `{"doc-1": {"synced_at": "2026-08-20T10:15:30.123456", "routed": false, "file": "2026-08-20-Old-Title.md", "title": "Old Title"}}`
	require.NoError(t, os.WriteFile(filepath.Join(e.inboxDir, ledger.DefaultFilename), []byte(scriptLedger), 0600))

	writeCache(t, e.cachePath, fixtureMeeting{
		id: "doc-1", title: "New Title", start: "2026-08-20T10:00:00Z", endCount: 1, words: 10,
	})

	res, err := e.syncer(nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Renamed)

	assert.NoFileExists(t, oldFile)
	newFile := filepath.Join(e.inboxDir, "2026-08-20-New-Title.md")
	assert.FileExists(t, newFile)

	entry, ok := e.readLedger(t).Lookup("doc-1")
	require.True(t, ok)
	assert.Equal(t, newFile, entry.File)
}

func TestRun_MalformedCacheLeavesLedgerUntouched(t *testing.T) {
	e := newEnv(t)
	writeCache(t, e.cachePath, fixtureMeeting{
		id: "doc-1", title: "Weekly Sync", start: "2026-08-20T10:00:00Z", endCount: 1, words: 10,
	})
	s := e.syncer(nil)
	_, err := s.Run(context.Background())
	require.NoError(t, err)

	ledgerPath := filepath.Join(e.inboxDir, ledger.DefaultFilename)
	before, err := os.ReadFile(ledgerPath)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(e.cachePath, []byte("{not json"), 0600))
	_, err = s.Run(context.Background())
	require.Error(t, err)
	assert.True(t, gserrors.IsCacheMalformed(err))

	after, err := os.ReadFile(ledgerPath)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestRun_MissingCache(t *testing.T) {
	e := newEnv(t)

	_, err := e.syncer(nil).Run(context.Background())
	require.Error(t, err)
	assert.True(t, gserrors.IsCacheUnavailable(err))
	assert.NoDirExists(t, e.inboxDir)
}

func TestRun_DryRunWritesNothing(t *testing.T) {
	e := newEnv(t)
	writeCache(t, e.cachePath, fixtureMeeting{
		id: "doc-1", title: "Weekly Sync", start: "2026-08-20T10:00:00Z", endCount: 1, words: 10,
	})

	s := New(Config{
		CachePath:       e.cachePath,
		InboxDir:        e.inboxDir,
		DestinationsDir: e.destsDir,
		MinWordCount:    5,
		DryRun:          true,
	})
	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.New)

	assert.NoDirExists(t, e.inboxDir)
	assert.NoDirExists(t, e.destsDir)
}

func TestRun_ConcurrentRunCollides(t *testing.T) {
	e := newEnv(t)
	writeCache(t, e.cachePath, fixtureMeeting{
		id: "doc-1", title: "Weekly Sync", start: "2026-08-20T10:00:00Z", endCount: 1, words: 10,
	})
	require.NoError(t, os.MkdirAll(e.inboxDir, 0o755))

	held, err := ledger.Open(filepath.Join(e.inboxDir, ledger.DefaultFilename))
	require.NoError(t, err)
	defer held.Close()

	_, err = e.syncer(nil).Run(context.Background())
	require.Error(t, err)
	assert.True(t, gserrors.IsLedgerCollision(err))
}

func TestRun_ContextCanceled(t *testing.T) {
	e := newEnv(t)
	writeCache(t, e.cachePath, fixtureMeeting{
		id: "doc-1", title: "Weekly Sync", start: "2026-08-20T10:00:00Z", endCount: 1, words: 10,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := e.syncer(nil).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, res.Changed())
}

func TestRun_Metrics(t *testing.T) {
	e := newEnv(t)
	writeCache(t, e.cachePath,
		fixtureMeeting{id: "doc-1", title: "Weekly Sync", start: "2026-08-20T10:00:00Z", endCount: 1, words: 10},
		fixtureMeeting{id: "doc-2", title: "In Progress", start: "2026-08-20T11:00:00Z", endCount: 0, words: 10},
	)

	metrics := NewMetrics(prometheus.NewRegistry())
	s := New(Config{
		CachePath:       e.cachePath,
		InboxDir:        e.inboxDir,
		DestinationsDir: e.destsDir,
		MinWordCount:    5,
		Metrics:         metrics,
		Now:             func() time.Time { return time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC) },
	})

	_, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.MeetingsSynced))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.MeetingsSkipped))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.RunsTotal.WithLabelValues("ok")))
}

func TestSanitizeTitle(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{"plain", "Weekly Sync", "Weekly-Sync"},
		{"punctuation stripped", "Q3: Budget Review!", "Q3-Budget-Review"},
		{"whitespace collapsed", "A   B\tC", "A-B-C"},
		{"hyphen runs collapse", "a - b -- c", "a-b-c"},
		{"unicode letters kept", "Café Planning", "Café-Planning"},
		{"underscores kept", "sprint_42 retro", "sprint_42-retro"},
		{"all punctuation falls back", "!!!", "untitled"},
		{"long title capped", strings.Repeat("a", 80), strings.Repeat("a", 60)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeTitle(tt.title))
		})
	}
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "2026-08-20-Acme-Kickoff.md", Filename("2026-08-20", "Acme Kickoff"))
}
