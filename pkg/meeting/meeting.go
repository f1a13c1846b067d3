// Package meeting defines the normalized meeting model extracted from the
// Granola cache, the readiness rules that gate materialization, and the
// markdown rendering of a meeting's transcript.
package meeting

import (
	"sort"
	"strings"
	"time"
)

// Source identifies which audio channel a transcript segment came from.
type Source string

const (
	// SourceSelf is speech captured from the local microphone.
	SourceSelf Source = "self"
	// SourceOther is speech captured from system audio (the other side
	// of the call).
	SourceOther Source = "other"
)

// Segment is a single transcript entry.
type Segment struct {
	// Text is the transcribed speech.
	Text string

	// Source is the speaker channel. Values other than SourceSelf and
	// SourceOther are preserved verbatim from the cache.
	Source Source

	// StartAt is the segment start timestamp. Zero when the cache did not
	// carry one.
	StartAt time.Time
}

// Meeting is one meeting record joined from the cache's documents and
// transcripts tables. ID is the stable document identifier and is unique
// across a decoded collection; Title may be absent and may change between
// runs.
type Meeting struct {
	ID    string
	Title string

	// StartTime is the raw upstream timestamp string. The first ten
	// characters are the ISO date used for filename prefixes.
	StartTime string

	// CalendarTitle is the linked calendar event summary, when present.
	CalendarTitle string

	// PeopleTitle is the attendee-company title from the cache's people
	// record; it participates in routing alongside the meeting title.
	PeopleTitle string

	// EndCount is how many times the meeting was marked ended.
	EndCount int

	Segments []Segment
}

// WordCount returns the total number of words across all segments.
func (m *Meeting) WordCount() int {
	total := 0
	for _, seg := range m.Segments {
		total += len(strings.Fields(seg.Text))
	}
	return total
}

// Ready reports whether the meeting has enough content to be materialized:
// it was marked ended at least once, has a title, and its transcript meets
// the word threshold. Partial in-progress meetings are an expected
// steady-state condition, not an error.
func (m *Meeting) Ready(minWords int) bool {
	if m.EndCount < 1 {
		return false
	}
	if m.Title == "" {
		return false
	}
	return m.WordCount() >= minWords
}

// SortedSegments returns the segments in ascending order of start
// timestamp. The sort is stable so segments without timestamps keep their
// cache order, and identical input always yields identical output
// regardless of the source collection's iteration order.
func (m *Meeting) SortedSegments() []Segment {
	sorted := make([]Segment, len(m.Segments))
	copy(sorted, m.Segments)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartAt.Before(sorted[j].StartAt)
	})
	return sorted
}

// DatePrefix returns the YYYY-MM-DD date for filenames, taken from the
// upstream start timestamp, or from now when the cache carried none.
func (m *Meeting) DatePrefix(now time.Time) string {
	if len(m.StartTime) >= 10 {
		return m.StartTime[:10]
	}
	return now.Format("2006-01-02")
}

// SearchText returns the text the router matches keywords against: the
// title, plus the attendee-company title when present.
func (m *Meeting) SearchText() string {
	if m.PeopleTitle == "" {
		return m.Title
	}
	if m.Title == "" {
		return m.PeopleTitle
	}
	return m.Title + " " + m.PeopleTitle
}
