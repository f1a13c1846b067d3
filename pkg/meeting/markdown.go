package meeting

import (
	"fmt"
	"strings"
)

// Render converts a meeting into a markdown document body. Output is
// deterministic: identical input yields byte-identical output. Returns an
// error when the meeting has no transcript text to render.
func Render(m *Meeting) (string, error) {
	transcript := formatTranscript(m.SortedSegments())
	if transcript == "" {
		return "", fmt.Errorf("meeting %s has no transcript text", m.ID)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", m.Title)
	fmt.Fprintf(&b, "**Meeting ID:** %s\n", m.ID)
	if m.CalendarTitle != "" && m.CalendarTitle != m.Title {
		fmt.Fprintf(&b, "**Calendar:** %s\n", m.CalendarTitle)
	}
	fmt.Fprintf(&b, "**Date:** %s\n", valueOrUnknown(m.StartTime))
	fmt.Fprintf(&b, "**Words:** ~%d\n", m.WordCount())
	fmt.Fprintf(&b, "**Segments:** %d\n\n", len(m.Segments))
	b.WriteString("---\n\n")
	b.WriteString(transcript)
	b.WriteString("\n")

	return b.String(), nil
}

// formatTranscript renders segments as runs of consecutive same-source
// speech, each run prefixed with a speaker label.
func formatTranscript(segments []Segment) string {
	var b strings.Builder
	var current Source
	inRun := false

	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}

		if !inRun || seg.Source != current {
			if inRun {
				b.WriteString("\n\n")
			}
			fmt.Fprintf(&b, "**[%s]** ", speakerLabel(seg.Source))
			current = seg.Source
			inRun = true
		} else {
			b.WriteString(" ")
		}
		b.WriteString(text)
	}

	return b.String()
}

// speakerLabel maps a segment source to its display label.
func speakerLabel(s Source) string {
	switch s {
	case SourceSelf:
		return "You"
	case SourceOther:
		return "Other"
	default:
		return string(s)
	}
}

func valueOrUnknown(v string) string {
	if v == "" {
		return "Unknown"
	}
	return v
}
