// Package export writes every transcript in the cache to a directory of
// markdown files, independent of readiness rules and without consulting
// or touching the sync ledger. It is a bulk escape hatch for getting all
// raw transcripts out in one pass.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	gserrors "github.com/alexdobrenko/granola-sync/pkg/errors"
	"github.com/alexdobrenko/granola-sync/pkg/granola"
	"github.com/alexdobrenko/granola-sync/pkg/logging"
	"github.com/alexdobrenko/granola-sync/pkg/meeting"
	"github.com/alexdobrenko/granola-sync/pkg/syncer"
)

// FallbackTitle is used for meetings the cache holds without a title.
const FallbackTitle = "Untitled Meeting"

// Exporter writes all cached transcripts to Dir.
type Exporter struct {
	CachePath string
	Dir       string
	Logger    logging.Logger
}

// Result summarizes an export run.
type Result struct {
	Exported int `json:"exported"`
	Failed   int `json:"failed"`
}

// Run exports every meeting with transcript content. Meetings that fail
// to render or write are logged and counted; the rest still export.
// Identical titles overwrite each other, last one wins.
func (e *Exporter) Run(ctx context.Context) (*Result, error) {
	log := e.Logger
	if log == nil {
		log = logging.NewNopLogger()
	}

	meetings, err := granola.Load(e.CachePath)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(e.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating export dir: %v", gserrors.ErrWriteFailure, err)
	}

	res := &Result{}
	for i := range meetings {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		m := meetings[i]
		if m.Title == "" {
			m.Title = FallbackTitle
		}

		path := filepath.Join(e.Dir, syncer.SanitizeTitle(m.Title)+".md")
		if err := e.write(&m, path); err != nil {
			log.Error("export failed",
				logging.F("id", m.ID),
				logging.F("title", m.Title),
				logging.Err(err))
			res.Failed++
			continue
		}
		log.Info("exported", logging.F("file", path))
		res.Exported++
	}
	return res, nil
}

func (e *Exporter) write(m *meeting.Meeting, path string) error {
	body, err := meeting.Render(m)
	if err != nil {
		return fmt.Errorf("%w: %v", gserrors.ErrRenderFailure, err)
	}
	if err := syncer.WriteFileAtomic(path, []byte(body)); err != nil {
		return fmt.Errorf("%w: %v", gserrors.ErrWriteFailure, err)
	}
	return nil
}
