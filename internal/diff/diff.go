// Package diff computes line-oriented edit scripts between two texts.
//
// Lines keep their terminators, so a script replayed over its source
// reproduces the target byte for byte, including a missing trailing
// newline.
package diff

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Kind is the type of a single line operation.
type Kind int

const (
	Keep Kind = iota
	Insert
	Delete
)

func (k Kind) String() string {
	switch k {
	case Keep:
		return "keep"
	case Insert:
		return "insert"
	case Delete:
		return "delete"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Op is one line-level operation of an edit script.
type Op struct {
	Kind Kind
	Text string
}

// Script is an ordered sequence of operations that transforms a source text
// into a target text.
type Script []Op

// Hunk replaces source lines [Start, End) with Lines. Pure insertions have
// Start == End; pure deletions have no Lines.
type Hunk struct {
	Start int
	End   int
	Lines []string
}

// SplitLines splits text after each newline. Unlike difflib.SplitLines it does
// not invent a trailing newline, so strings.Join(SplitLines(s), "") == s.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.SplitAfter(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// Lines computes the edit script from source to target.
//
// Alignment uses difflib's sequence matcher with the automatic junk heuristic
// disabled, so frequent lines such as closing braces still anchor the
// alignment. Replacements are expanded to deletes followed by inserts. The
// result depends only on the inputs.
func Lines(source, target string) Script {
	a := SplitLines(source)
	b := SplitLines(target)

	matcher := difflib.NewMatcherWithJunk(a, b, false, nil)
	script := make(Script, 0, len(a)+len(b))

	for _, oc := range matcher.GetOpCodes() {
		switch oc.Tag {
		case 'e':
			for _, line := range a[oc.I1:oc.I2] {
				script = append(script, Op{Kind: Keep, Text: line})
			}
		case 'd':
			for _, line := range a[oc.I1:oc.I2] {
				script = append(script, Op{Kind: Delete, Text: line})
			}
		case 'i':
			for _, line := range b[oc.J1:oc.J2] {
				script = append(script, Op{Kind: Insert, Text: line})
			}
		case 'r':
			for _, line := range a[oc.I1:oc.I2] {
				script = append(script, Op{Kind: Delete, Text: line})
			}
			for _, line := range b[oc.J1:oc.J2] {
				script = append(script, Op{Kind: Insert, Text: line})
			}
		}
	}

	return script
}

// IsIdentity reports whether the script only keeps lines.
func (s Script) IsIdentity() bool {
	for _, op := range s {
		if op.Kind != Keep {
			return false
		}
	}
	return true
}

// Hunks groups consecutive non-keep operations, in source order.
func (s Script) Hunks() []Hunk {
	var hunks []Hunk
	var current *Hunk
	pos := 0

	for _, op := range s {
		switch op.Kind {
		case Keep:
			if current != nil {
				hunks = append(hunks, *current)
				current = nil
			}
			pos++
		case Delete:
			if current == nil {
				current = &Hunk{Start: pos, End: pos}
			}
			pos++
			current.End = pos
		case Insert:
			if current == nil {
				current = &Hunk{Start: pos, End: pos}
			}
			current.Lines = append(current.Lines, op.Text)
		}
	}
	if current != nil {
		hunks = append(hunks, *current)
	}

	return hunks
}

// Apply replays the script over source and returns the target text. It fails
// if a keep or delete does not match the corresponding source line.
func Apply(source string, s Script) (string, error) {
	lines := SplitLines(source)
	var out strings.Builder
	pos := 0

	for i, op := range s {
		switch op.Kind {
		case Keep, Delete:
			if pos >= len(lines) {
				return "", fmt.Errorf("op %d (%s) past end of source", i, op.Kind)
			}
			if lines[pos] != op.Text {
				return "", fmt.Errorf("op %d (%s) expected %q at line %d, found %q", i, op.Kind, op.Text, pos+1, lines[pos])
			}
			if op.Kind == Keep {
				out.WriteString(op.Text)
			}
			pos++
		case Insert:
			out.WriteString(op.Text)
		default:
			return "", fmt.Errorf("op %d has unknown kind %d", i, int(op.Kind))
		}
	}

	if pos != len(lines) {
		return "", fmt.Errorf("script consumed %d of %d source lines", pos, len(lines))
	}

	return out.String(), nil
}
