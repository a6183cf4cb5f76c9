package merge

import (
	"strings"

	"github.com/lherron/vsds/internal/diff"
)

const (
	markerLocal    = "<<<<<<<"
	markerBase     = "|||||||"
	markerSep      = "======="
	markerUpstream = ">>>>>>>"
)

// Markers renders the outcome with diff3-style conflict markers around every
// region. Clean outcomes are returned unchanged.
func Markers(base, local, upstream string, o Outcome) string {
	if o.IsClean() {
		return o.Text
	}

	merged := diff.SplitLines(o.Text)
	baseLines := diff.SplitLines(base)
	localLines := diff.SplitLines(local)
	upstreamLines := diff.SplitLines(upstream)

	var sb strings.Builder
	pos := 0
	for _, r := range o.Regions {
		writeLines(&sb, merged[pos:r.Merged.Start])
		sb.WriteString(markerLocal + " local\n")
		writeTerminated(&sb, localLines[r.Local.Start:r.Local.End])
		sb.WriteString(markerBase + " base\n")
		writeTerminated(&sb, baseLines[r.Base.Start:r.Base.End])
		sb.WriteString(markerSep + "\n")
		writeTerminated(&sb, upstreamLines[r.Upstream.Start:r.Upstream.End])
		sb.WriteString(markerUpstream + " upstream\n")
		pos = r.Merged.End
	}
	writeLines(&sb, merged[pos:])

	return sb.String()
}

// HasMarkers reports whether text contains a line that looks like a conflict
// marker, at any indentation. Marker-like lines that appear verbatim in one of
// the known texts are part of the content and are ignored.
func HasMarkers(text string, known ...string) bool {
	content := make(map[string]bool)
	for _, k := range known {
		for _, line := range strings.Split(k, "\n") {
			if isMarker(line) {
				content[strings.TrimRight(line, " \t\r")] = true
			}
		}
	}
	for _, line := range strings.Split(text, "\n") {
		if isMarker(line) && !content[strings.TrimRight(line, " \t\r")] {
			return true
		}
	}
	return false
}

func isMarker(line string) bool {
	line = strings.TrimSpace(line)
	return strings.HasPrefix(line, markerLocal) ||
		strings.HasPrefix(line, markerBase) ||
		strings.HasPrefix(line, markerUpstream) ||
		line == markerSep
}

func writeLines(sb *strings.Builder, lines []string) {
	for _, line := range lines {
		sb.WriteString(line)
	}
}

// writeTerminated writes lines, adding a newline to an unterminated last line
// so the following marker starts on its own line.
func writeTerminated(sb *strings.Builder, lines []string) {
	for _, line := range lines {
		sb.WriteString(line)
		if !strings.HasSuffix(line, "\n") {
			sb.WriteString("\n")
		}
	}
}
