package diff

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	godiff "github.com/sourcegraph/go-diff/diff"
)

// Stat summarizes a unified diff.
type Stat struct {
	Added   int `json:"added"`
	Changed int `json:"changed"`
	Deleted int `json:"deleted"`
}

func (s Stat) String() string {
	return fmt.Sprintf("+%d ~%d -%d", s.Added, s.Changed, s.Deleted)
}

// IsZero reports whether the diff had no changes.
func (s Stat) IsZero() bool {
	return s.Added == 0 && s.Changed == 0 && s.Deleted == 0
}

// Unified renders a unified diff from a to b. Returns "" when the texts are
// equal.
func Unified(fromFile, toFile, a, b string, context int) (string, error) {
	if a == b {
		return "", nil
	}
	ud := difflib.UnifiedDiff{
		A:        displayLines(a),
		B:        displayLines(b),
		FromFile: fromFile,
		ToFile:   toFile,
		Context:  context,
	}
	text, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		return "", fmt.Errorf("failed to render diff %s -> %s: %w", fromFile, toFile, err)
	}
	return text, nil
}

// ParseStat counts the changed lines of a unified diff.
func ParseStat(unified string) (Stat, error) {
	if strings.TrimSpace(unified) == "" {
		return Stat{}, nil
	}
	fd, err := godiff.ParseFileDiff([]byte(unified))
	if err != nil {
		return Stat{}, fmt.Errorf("failed to parse diff: %w", err)
	}
	st := fd.Stat()
	return Stat{
		Added:   int(st.Added),
		Changed: int(st.Changed),
		Deleted: int(st.Deleted),
	}, nil
}

// Between is a convenience for ParseStat(Unified(...)).
func Between(a, b string) (Stat, error) {
	unified, err := Unified("a", "b", a, b, 0)
	if err != nil {
		return Stat{}, err
	}
	return ParseStat(unified)
}

const noNewline = "\\ No newline at end of file\n"

// displayLines terminates an unterminated last line and follows it with the
// "\ No newline at end of file" marker, which makes it differ from the same
// line with a terminator.
func displayLines(text string) []string {
	lines := SplitLines(text)
	if n := len(lines); n > 0 && !strings.HasSuffix(lines[n-1], "\n") {
		lines[n-1] += "\n" + noNewline
	}
	return lines
}
