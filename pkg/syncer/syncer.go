// Package syncer reconciles the Granola cache against the transcript
// directory tree. Each run loads the cache, classifies every meeting,
// and converges the filesystem and the sync ledger on the cache's
// current state: new ready meetings are materialized, renamed meetings
// are renamed, and meetings whose routing changed are relocated.
package syncer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	gserrors "github.com/alexdobrenko/granola-sync/pkg/errors"
	"github.com/alexdobrenko/granola-sync/pkg/granola"
	"github.com/alexdobrenko/granola-sync/pkg/ledger"
	"github.com/alexdobrenko/granola-sync/pkg/logging"
	"github.com/alexdobrenko/granola-sync/pkg/meeting"
	"github.com/alexdobrenko/granola-sync/pkg/router"
)

// Subdirectory under each destination folder where notes are filed.
const notesSubdir = "call-notes"

// Config carries everything a Syncer needs for a run.
type Config struct {
	// CachePath is the Granola cache file to read.
	CachePath string

	// InboxDir receives unrouted meetings and holds the ledger.
	InboxDir string

	// DestinationsDir is the parent of all routed destination folders.
	DestinationsDir string

	// MinWordCount is the readiness threshold for transcript length.
	MinWordCount int

	// Rules are the routing rules, evaluated in order.
	Rules []router.Rule

	// DryRun reports what a run would do without touching the filesystem.
	DryRun bool

	Logger  logging.Logger
	Metrics *Metrics

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

// Syncer runs the cache-to-filesystem reconciliation.
type Syncer struct {
	cfg    Config
	router *router.Router
	log    logging.Logger
	now    func() time.Time
}

// New creates a Syncer from cfg.
func New(cfg Config) *Syncer {
	log := cfg.Logger
	if log == nil {
		log = logging.NewNopLogger()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Syncer{
		cfg:    cfg,
		router: router.New(cfg.Rules),
		log:    log,
		now:    now,
	}
}

// Result summarizes one sync run.
type Result struct {
	// New counts meetings materialized for the first time.
	New int `json:"new"`

	// Rerouted counts meetings moved to a different destination.
	Rerouted int `json:"rerouted"`

	// Renamed counts meetings renamed in place after a title change.
	Renamed int `json:"renamed"`

	// Unchanged counts tracked meetings that needed no work.
	Unchanged int `json:"unchanged"`

	// Skipped counts meetings not yet ready to sync.
	Skipped int `json:"skipped"`

	// Failed counts meetings that errored; they retry next run.
	Failed int `json:"failed"`
}

// Changed reports whether the run performed (or, dry-run, would
// perform) any filesystem work.
func (r *Result) Changed() bool {
	return r.New+r.Rerouted+r.Renamed > 0
}

// Run executes one reconciliation pass. The cache and ledger are loaded
// up front; if either fails, Run returns before touching anything, so a
// malformed cache never corrupts tracked state. Per-meeting failures are
// logged and counted but do not abort the run.
func (s *Syncer) Run(ctx context.Context) (*Result, error) {
	start := s.now()

	meetings, err := granola.Load(s.cfg.CachePath)
	if err != nil {
		s.cfg.Metrics.observeRun("error", 0)
		return nil, err
	}
	s.log.Debug("cache loaded",
		logging.F("path", s.cfg.CachePath),
		logging.F("meetings", len(meetings)))

	if !s.cfg.DryRun {
		if err := os.MkdirAll(s.cfg.InboxDir, 0o755); err != nil {
			s.cfg.Metrics.observeRun("error", 0)
			return nil, fmt.Errorf("%w: creating inbox dir: %v", gserrors.ErrWriteFailure, err)
		}
	}

	led, err := s.openLedger()
	if err != nil {
		s.cfg.Metrics.observeRun("error", 0)
		return nil, err
	}
	defer led.Close()

	res := &Result{}
	for i := range meetings {
		if err := ctx.Err(); err != nil {
			// Stop between meetings so every finished meeting stays
			// consistent, then persist what was done.
			if saveErr := s.saveLedger(led); saveErr != nil {
				s.log.Error("saving ledger after cancellation", logging.Err(saveErr))
			}
			s.cfg.Metrics.observeRun("error", 0)
			return res, err
		}
		s.reconcile(&meetings[i], led, res)
	}

	if err := s.saveLedger(led); err != nil {
		s.cfg.Metrics.observeRun("error", 0)
		return res, err
	}

	s.cfg.Metrics.observeRun("ok", s.now().Sub(start).Seconds())
	s.log.Info("sync complete",
		logging.F("new", res.New),
		logging.F("rerouted", res.Rerouted),
		logging.F("renamed", res.Renamed),
		logging.F("unchanged", res.Unchanged),
		logging.F("skipped", res.Skipped),
		logging.F("failed", res.Failed))
	return res, nil
}

func (s *Syncer) openLedger() (*ledger.Ledger, error) {
	path := filepath.Join(s.cfg.InboxDir, ledger.DefaultFilename)
	if s.cfg.DryRun {
		return ledger.Read(path)
	}
	return ledger.Open(path)
}

func (s *Syncer) saveLedger(led *ledger.Ledger) error {
	if s.cfg.DryRun {
		return nil
	}
	if err := led.Save(); err != nil {
		return fmt.Errorf("%w: %v", gserrors.ErrWriteFailure, err)
	}
	return nil
}

// reconcile converges one meeting. Untracked ready meetings are
// materialized and recorded. Tracked meetings are compared against
// their ledger entry: a changed title or destination moves the file,
// anything else is left alone.
func (s *Syncer) reconcile(m *meeting.Meeting, led *ledger.Ledger, res *Result) {
	log := s.log.With(logging.F("id", m.ID), logging.F("title", m.Title))

	if !m.Ready(s.cfg.MinWordCount) {
		log.Debug("meeting not ready, skipping",
			logging.F("end_count", m.EndCount),
			logging.F("words", m.WordCount()))
		res.Skipped++
		s.cfg.Metrics.incSkipped()
		return
	}

	dest := s.router.Route(m.SearchText())
	path := filepath.Join(s.destDir(dest), Filename(m.DatePrefix(s.now()), m.Title))

	prev, tracked := led.Lookup(m.ID)
	if !tracked {
		if err := s.materialize(m, path); err != nil {
			log.Error("sync failed", logging.Err(err))
			res.Failed++
			s.cfg.Metrics.incFailed()
			return
		}
		s.record(led, m, dest, path)
		log.Info("meeting synced", logging.F("dest", dest), logging.F("file", path))
		res.New++
		s.cfg.Metrics.incSynced()
		return
	}

	destChanged := previousDest(prev) != dest
	titleChanged := prev.Title != m.Title
	if !destChanged && !titleChanged {
		res.Unchanged++
		return
	}

	if err := s.materialize(m, path); err != nil {
		log.Error("relocation failed, old file left in place", logging.Err(err))
		res.Failed++
		s.cfg.Metrics.incFailed()
		return
	}
	s.removeStale(s.previousPath(prev), path, log)
	s.record(led, m, dest, path)

	if destChanged {
		log.Info("meeting rerouted",
			logging.F("from", previousDest(prev)),
			logging.F("to", dest),
			logging.F("file", path))
		res.Rerouted++
		s.cfg.Metrics.incRerouted()
		return
	}
	log.Info("meeting renamed",
		logging.F("old_title", prev.Title),
		logging.F("file", path))
	res.Renamed++
	s.cfg.Metrics.incRenamed()
}

// materialize renders the meeting and writes it to path with
// write-then-rename semantics. In dry-run mode the render still runs,
// so render failures are reported, but nothing is written.
func (s *Syncer) materialize(m *meeting.Meeting, path string) error {
	body, err := meeting.Render(m)
	if err != nil {
		return fmt.Errorf("%w: %v", gserrors.ErrRenderFailure, err)
	}
	if s.cfg.DryRun {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: creating %s: %v", gserrors.ErrWriteFailure, filepath.Dir(path), err)
	}
	if err := WriteFileAtomic(path, []byte(body)); err != nil {
		return fmt.Errorf("%w: %v", gserrors.ErrWriteFailure, err)
	}
	return nil
}

// removeStale deletes the previous file after a move or rename. The new
// file is already in place, so a failure here only leaves a duplicate
// behind; it is logged and otherwise ignored.
func (s *Syncer) removeStale(old, current string, log logging.Logger) {
	if old == "" || old == current || s.cfg.DryRun {
		return
	}
	if err := os.Remove(old); err != nil && !os.IsNotExist(err) {
		log.Warn("removing old file failed, duplicate left behind",
			logging.F("file", old), logging.Err(err))
	}
}

func (s *Syncer) record(led *ledger.Ledger, m *meeting.Meeting, dest, path string) {
	if s.cfg.DryRun {
		return
	}
	e := ledger.Entry{
		SyncedAt: s.now().UTC(),
		Routed:   !router.IsInbox(dest),
		File:     path,
		Title:    m.Title,
	}
	if e.Routed {
		e.Client = dest
	}
	led.Record(m.ID, e)
}

// destDir resolves a routing decision to a directory: the inbox itself,
// or <destinations>/<folder>/call-notes for routed meetings.
func (s *Syncer) destDir(dest string) string {
	if router.IsInbox(dest) {
		return s.cfg.InboxDir
	}
	return filepath.Join(s.cfg.DestinationsDir, dest, notesSubdir)
}

// previousDest derives where a tracked meeting currently lives from its
// ledger entry.
func previousDest(e ledger.Entry) string {
	if e.Routed {
		return e.Client
	}
	return router.Inbox
}

// previousPath resolves the entry's file to an absolute path. Ledgers
// written by earlier versions of the sync script stored bare filenames,
// which are relative to the entry's destination directory.
func (s *Syncer) previousPath(e ledger.Entry) string {
	if e.File == "" || filepath.IsAbs(e.File) {
		return e.File
	}
	return filepath.Join(s.destDir(previousDest(e)), e.File)
}

// WriteFileAtomic writes data to a uniquely-named temp file in the
// target directory and renames it into place, so readers never see a
// partial file and a crash leaves at worst a stray temp file.
func WriteFileAtomic(path string, data []byte) error {
	tmp := filepath.Join(filepath.Dir(path), "."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %v", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replacing %s: %v", path, err)
	}
	return nil
}
