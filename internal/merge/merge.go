// Package merge performs line-oriented three-way merges of component files.
//
// Both sides are diffed against the common base and their hunks are walked in
// base order. Hunks that touch the same base lines are grouped into a chunk;
// a chunk changed by one side takes that side's text, a chunk changed
// identically by both sides resolves silently, and anything else becomes a
// conflict Region that defaults to the local text.
package merge

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lherron/vsds/internal/diff"
)

// Kind tags an Outcome.
type Kind int

const (
	Clean Kind = iota
	Conflicted
)

func (k Kind) String() string {
	if k == Clean {
		return "clean"
	}
	return "conflicted"
}

// LineRange is a half-open, 0-based range of lines.
type LineRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of lines in the range.
func (r LineRange) Len() int {
	return r.End - r.Start
}

// String formats the range with 1-based inclusive line numbers.
func (r LineRange) String() string {
	switch r.Len() {
	case 0:
		return fmt.Sprintf("after line %d", r.Start)
	case 1:
		return fmt.Sprintf("line %d", r.Start+1)
	}
	return fmt.Sprintf("lines %d-%d", r.Start+1, r.End)
}

// Region is a span both sides changed incompatibly. Each range is expressed
// in the coordinates of its own text; Merged locates the default (local)
// resolution inside Outcome.Text.
type Region struct {
	Base     LineRange `json:"base"`
	Local    LineRange `json:"local"`
	Upstream LineRange `json:"upstream"`
	Merged   LineRange `json:"merged"`
}

// Outcome is the terminal result of one merge attempt.
type Outcome struct {
	Kind    Kind
	Text    string
	Regions []Region
}

// IsClean reports whether the merge produced no conflicts.
func (o Outcome) IsClean() bool {
	return o.Kind == Clean
}

// Summary returns a human-readable description of the conflict regions.
func (o Outcome) Summary() string {
	if o.IsClean() {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d conflicting region(s):\n", len(o.Regions)))
	for i, r := range o.Regions {
		sb.WriteString(fmt.Sprintf("%d. base %s, local %s, upstream %s\n",
			i+1, r.Base, r.Local, r.Upstream))
	}
	return sb.String()
}

func clean(text string) Outcome {
	return Outcome{Kind: Clean, Text: text}
}

type side int

const (
	sideLocal side = iota
	sideUpstream
)

type taggedHunk struct {
	diff.Hunk
	side side
}

// chunk is a group of hunks that share base lines.
type chunk struct {
	start, end int
	hunks      []taggedHunk
}

// Merge combines the local and upstream edits of base.
func Merge(base, local, upstream string) Outcome {
	switch {
	case local == upstream:
		return clean(local)
	case local == base:
		return clean(upstream)
	case upstream == base:
		return clean(local)
	}

	baseLines := diff.SplitLines(base)

	var hunks []taggedHunk
	for _, h := range diff.Lines(base, local).Hunks() {
		hunks = append(hunks, taggedHunk{Hunk: h, side: sideLocal})
	}
	for _, h := range diff.Lines(base, upstream).Hunks() {
		hunks = append(hunks, taggedHunk{Hunk: h, side: sideUpstream})
	}
	sort.SliceStable(hunks, func(i, j int) bool {
		if hunks[i].Start != hunks[j].Start {
			return hunks[i].Start < hunks[j].Start
		}
		if hunks[i].End != hunks[j].End {
			return hunks[i].End < hunks[j].End
		}
		return hunks[i].side < hunks[j].side
	})

	var out strings.Builder
	var regions []Region
	pos := 0
	mergedLine := 0
	localDelta := 0
	upstreamDelta := 0

	for _, c := range groupChunks(hunks) {
		for _, line := range baseLines[pos:c.start] {
			out.WriteString(line)
		}
		mergedLine += c.start - pos
		pos = c.end

		localText, localChanged, localLen := c.render(baseLines, sideLocal)
		upstreamText, upstreamChanged, upstreamLen := c.render(baseLines, sideUpstream)

		switch {
		case !upstreamChanged:
			out.WriteString(localText)
			mergedLine += localLen
		case !localChanged:
			out.WriteString(upstreamText)
			mergedLine += upstreamLen
		case localText == upstreamText:
			out.WriteString(localText)
			mergedLine += localLen
		default:
			regions = append(regions, Region{
				Base:     LineRange{Start: c.start, End: c.end},
				Local:    LineRange{Start: c.start + localDelta, End: c.start + localDelta + localLen},
				Upstream: LineRange{Start: c.start + upstreamDelta, End: c.start + upstreamDelta + upstreamLen},
				Merged:   LineRange{Start: mergedLine, End: mergedLine + localLen},
			})
			out.WriteString(localText)
			mergedLine += localLen
		}

		span := c.end - c.start
		localDelta += localLen - span
		upstreamDelta += upstreamLen - span
	}

	for _, line := range baseLines[pos:] {
		out.WriteString(line)
	}

	if len(regions) == 0 {
		return clean(out.String())
	}
	return Outcome{Kind: Conflicted, Text: out.String(), Regions: regions}
}

// groupChunks folds sorted hunks into chunks of overlapping base spans.
func groupChunks(hunks []taggedHunk) []chunk {
	var chunks []chunk
	for _, h := range hunks {
		if n := len(chunks); n > 0 && overlaps(chunks[n-1].start, chunks[n-1].end, h.Start, h.End) {
			last := &chunks[n-1]
			last.hunks = append(last.hunks, h)
			if h.End > last.end {
				last.end = h.End
			}
			continue
		}
		chunks = append(chunks, chunk{start: h.Start, end: h.End, hunks: []taggedHunk{h}})
	}
	return chunks
}

// overlaps decides whether two base spans compete for the same lines. Two
// insertions compete only at the same position; an insertion competes with a
// replaced span only when it falls strictly inside it.
func overlaps(aStart, aEnd, bStart, bEnd int) bool {
	aEmpty := aStart == aEnd
	bEmpty := bStart == bEnd
	switch {
	case aEmpty && bEmpty:
		return aStart == bStart
	case aEmpty:
		return bStart < aStart && aStart < bEnd
	case bEmpty:
		return aStart < bStart && bStart < aEnd
	}
	return aStart < bEnd && bStart < aEnd
}

// render produces one side's version of the chunk's base span, along with
// whether that side changed it and its length in lines.
func (c chunk) render(baseLines []string, s side) (string, bool, int) {
	var sb strings.Builder
	pos := c.start
	changed := false
	n := 0

	for _, h := range c.hunks {
		if h.side != s {
			continue
		}
		changed = true
		for _, line := range baseLines[pos:h.Start] {
			sb.WriteString(line)
			n++
		}
		for _, line := range h.Lines {
			sb.WriteString(line)
			n++
		}
		pos = h.End
	}
	for _, line := range baseLines[pos:c.end] {
		sb.WriteString(line)
		n++
	}

	return sb.String(), changed, n
}
