// Package granola decodes the Granola desktop app's local cache file into
// normalized meeting records.
//
// The cache is doubly encoded: the file is a JSON object whose top-level
// "cache" field is itself a JSON-encoded string. That nesting is a fixed
// serialization quirk of the upstream app, so decoding is a documented
// two-pass parse, not something to retry or work around differently.
package granola

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	gserrors "github.com/alexdobrenko/granola-sync/pkg/errors"
	"github.com/alexdobrenko/granola-sync/pkg/meeting"
)

// Raw speaker-channel tags used by the upstream app.
const (
	rawSourceMicrophone = "microphone"
	rawSourceSystem     = "system"
)

// envelope is the outer JSON document.
type envelope struct {
	Cache string `json:"cache"`
}

// innerCache is the document encoded inside the "cache" string.
type innerCache struct {
	State map[string]json.RawMessage `json:"state"`
}

// rawDocument is a per-meeting metadata record from state.documents.
type rawDocument struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	StartTime       string `json:"start_time"`
	StartTimeAlt    string `json:"startTime"`
	CreatedAt       string `json:"created_at"`
	MeetingEndCount int    `json:"meeting_end_count"`

	GoogleCalendarEvent struct {
		Summary string `json:"summary"`
	} `json:"google_calendar_event"`

	People struct {
		Title string `json:"title"`
	} `json:"people"`
}

// rawSegment is a transcript entry from state.transcripts.
type rawSegment struct {
	Text           string `json:"text"`
	Source         string `json:"source"`
	StartTimestamp string `json:"start_timestamp"`
}

// Load reads and decodes the cache file at path into normalized meetings,
// joining the documents table (per-identity metadata) with the transcripts
// table (per-identity segment lists). Meetings with no transcript entries
// are omitted. The result is sorted by document ID so callers see a
// deterministic order.
//
// A missing or unreadable file yields ErrCacheUnavailable; any decode or
// shape mismatch yields ErrCacheMalformed with enough context to locate
// the offending key. Load has no side effects.
func Load(path string) ([]meeting.Meeting, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", gserrors.ErrCacheUnavailable, path, err)
	}

	var outer envelope
	if err := json.Unmarshal(data, &outer); err != nil {
		return nil, fmt.Errorf("%w: outer document: %v", gserrors.ErrCacheMalformed, err)
	}
	if outer.Cache == "" {
		return nil, fmt.Errorf("%w: top-level cache field absent or empty", gserrors.ErrCacheMalformed)
	}

	var inner innerCache
	if err := json.Unmarshal([]byte(outer.Cache), &inner); err != nil {
		return nil, fmt.Errorf("%w: nested cache document: %v", gserrors.ErrCacheMalformed, err)
	}
	if inner.State == nil {
		return nil, fmt.Errorf("%w: state key absent", gserrors.ErrCacheMalformed)
	}

	rawDocs, ok := inner.State["documents"]
	if !ok {
		return nil, fmt.Errorf("%w: state.documents key absent", gserrors.ErrCacheMalformed)
	}
	rawTranscripts, ok := inner.State["transcripts"]
	if !ok {
		return nil, fmt.Errorf("%w: state.transcripts key absent", gserrors.ErrCacheMalformed)
	}

	docs, err := decodeDocuments(rawDocs)
	if err != nil {
		return nil, err
	}

	var transcripts map[string][]rawSegment
	if err := json.Unmarshal(rawTranscripts, &transcripts); err != nil {
		return nil, fmt.Errorf("%w: state.transcripts: %v", gserrors.ErrCacheMalformed, err)
	}

	meetings := make([]meeting.Meeting, 0, len(transcripts))
	for docID, entries := range transcripts {
		if len(entries) == 0 {
			continue
		}
		meetings = append(meetings, buildMeeting(docID, docs[docID], entries))
	}

	sort.Slice(meetings, func(i, j int) bool {
		return meetings[i].ID < meetings[j].ID
	})

	return meetings, nil
}

// decodeDocuments accepts both shapes the upstream app has used for
// state.documents: a map keyed by document ID, or a list of documents.
func decodeDocuments(raw json.RawMessage) (map[string]rawDocument, error) {
	var byID map[string]rawDocument
	if err := json.Unmarshal(raw, &byID); err == nil {
		return byID, nil
	}

	var list []rawDocument
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("%w: state.documents is neither a map nor a list: %v", gserrors.ErrCacheMalformed, err)
	}

	byID = make(map[string]rawDocument, len(list))
	for _, doc := range list {
		byID[doc.ID] = doc
	}
	return byID, nil
}

// buildMeeting joins one document's metadata with its transcript entries.
func buildMeeting(docID string, doc rawDocument, entries []rawSegment) meeting.Meeting {
	segments := make([]meeting.Segment, 0, len(entries))
	for _, e := range entries {
		segments = append(segments, meeting.Segment{
			Text:    e.Text,
			Source:  mapSource(e.Source),
			StartAt: parseTimestamp(e.StartTimestamp),
		})
	}

	return meeting.Meeting{
		ID:            docID,
		Title:         doc.Title,
		StartTime:     firstNonEmpty(doc.StartTime, doc.StartTimeAlt, doc.CreatedAt),
		CalendarTitle: doc.GoogleCalendarEvent.Summary,
		PeopleTitle:   doc.People.Title,
		EndCount:      doc.MeetingEndCount,
		Segments:      segments,
	}
}

// mapSource normalizes the upstream speaker-channel tag.
func mapSource(raw string) meeting.Source {
	switch raw {
	case rawSourceMicrophone:
		return meeting.SourceSelf
	case rawSourceSystem:
		return meeting.SourceOther
	default:
		return meeting.Source(raw)
	}
}

// parseTimestamp parses the upstream ISO timestamp, returning the zero
// time when absent or unparseable so segment ordering falls back to the
// cache's own order.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
