// Package ledger persists the record of which meetings have been synced,
// where they were routed, and the file each one currently lives in. It is
// the sole source of idempotency and re-routing decisions across runs.
//
// The ledger is a JSON document inside the inbox directory, mapping
// document ID to Entry. It is loaded once per run and rewritten atomically
// at the end; a concurrent reader never observes a partially-written file.
// Entries are never deleted: once synced, a meeting stays tracked so
// re-routing keeps working across any number of later runs.
package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	gserrors "github.com/alexdobrenko/granola-sync/pkg/errors"
)

// DefaultFilename is the ledger file name inside the inbox directory.
const DefaultFilename = ".synced_ids.json"

// Entry records one synced meeting.
type Entry struct {
	// SyncedAt is when the meeting was last materialized or relocated.
	SyncedAt time.Time `json:"synced_at"`

	// Routed is false while the meeting is filed in the inbox, true once
	// it lives under a destination folder.
	Routed bool `json:"routed"`

	// Client is the destination folder name; present only when Routed.
	Client string `json:"client,omitempty"`

	// File is the absolute path of the meeting's current markdown file.
	// The orchestrator keeps this pointing at the live file across
	// renames and moves.
	File string `json:"file"`

	// Title is the last-known meeting title, compared against the cache
	// each run to detect renames.
	Title string `json:"title"`
}

// UnmarshalJSON tolerates the timestamp forms earlier versions of the
// sync script wrote: zone-less isoformat strings and the literal
// "unknown". Anything unparseable becomes the zero time rather than
// failing the whole ledger load.
func (e *Entry) UnmarshalJSON(data []byte) error {
	type alias Entry
	aux := struct {
		SyncedAt string `json:"synced_at"`
		*alias
	}{alias: (*alias)(e)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	e.SyncedAt = parseSyncedAt(aux.SyncedAt)
	return nil
}

// Timestamp layouts seen in ledgers: our own RFC3339 writes and the
// zone-less Python isoformat of the original script.
var syncedAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
}

func parseSyncedAt(s string) time.Time {
	for _, layout := range syncedAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Ledger is an in-memory view of the ledger file, optionally holding the
// cross-run file lock.
type Ledger struct {
	path    string
	lock    *flock.Flock
	entries map[string]Entry
	dirty   bool
}

// Open acquires the ledger lock and loads the ledger at path. A missing
// file yields an empty ledger. If another run holds the lock, Open fails
// fast with ErrLedgerCollision; overlapping scheduled invocations are a
// recoverable collision, not a reason to block or crash.
func Open(path string) (*Ledger, error) {
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring ledger lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", gserrors.ErrLedgerCollision, path)
	}

	l, err := Read(path)
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	l.lock = lock
	return l, nil
}

// Read loads the ledger at path without taking the lock, for read-only
// consumers like status tooling. A missing file yields an empty ledger.
func Read(path string) (*Ledger, error) {
	l := &Ledger{
		path:    path,
		entries: make(map[string]Entry),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading ledger %s: %w", path, err)
	}

	if err := json.Unmarshal(data, &l.entries); err == nil {
		return l, nil
	}

	// Legacy format: a bare JSON array of document IDs, written by early
	// versions of the sync script. Upgrade to empty entries; the next
	// title change will fill them in.
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("parsing ledger %s: %w", path, err)
	}
	for _, id := range ids {
		l.entries[id] = Entry{}
	}
	l.dirty = true
	return l, nil
}

// Lookup returns the entry for the given document ID.
func (l *Ledger) Lookup(id string) (Entry, bool) {
	e, ok := l.entries[id]
	return e, ok
}

// Record inserts or overwrites the entry for the given document ID.
func (l *Ledger) Record(id string, e Entry) {
	l.entries[id] = e
	l.dirty = true
}

// Len returns the number of tracked meetings.
func (l *Ledger) Len() int {
	return len(l.entries)
}

// Entries returns a copy of all entries, keyed by document ID.
func (l *Ledger) Entries() map[string]Entry {
	out := make(map[string]Entry, len(l.entries))
	for id, e := range l.entries {
		out[id] = e
	}
	return out
}

// Save writes the ledger back to disk with write-then-rename semantics so
// a crash mid-write never leaves a truncated ledger visible. Save is a
// no-op when nothing changed since load, so an idle run touches nothing.
func (l *Ledger) Save() error {
	if !l.dirty {
		return nil
	}

	data, err := json.MarshalIndent(l.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling ledger: %w", err)
	}
	data = append(data, '\n')

	tmp := filepath.Join(filepath.Dir(l.path), ".ledger-"+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("writing ledger temp file: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replacing ledger: %w", err)
	}

	l.dirty = false
	return nil
}

// Close releases the ledger lock, if held.
func (l *Ledger) Close() error {
	if l.lock == nil {
		return nil
	}
	return l.lock.Unlock()
}
