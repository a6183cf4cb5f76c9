// Package selectors picks installed components out of the manifest by name,
// name glob or installed path.
package selectors

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/lherron/vsds/internal/manifest"
)

var (
	namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)
	maxNameLen  = 255
)

// Type represents what a selector matches against
type Type string

const (
	TypeName Type = "name"
	TypePath Type = "path"
)

// Selector represents a parsed component selector
type Selector struct {
	Type    Type
	Pattern string
}

// Parse parses a selector string. "path:<glob>" matches installed file
// paths; anything else matches component names, either exactly or as a
// glob. Plain names are normalized, so "Button" selects "button".
func Parse(selector string) (Selector, error) {
	if rest, ok := strings.CutPrefix(selector, "path:"); ok {
		if rest == "" {
			return Selector{}, fmt.Errorf("empty path selector")
		}
		return Selector{Type: TypePath, Pattern: strings.TrimPrefix(rest, "./")}, nil
	}

	if IsGlobPattern(selector) {
		return Selector{Type: TypeName, Pattern: selector}, nil
	}

	name, err := NormalizeName(selector)
	if err != nil {
		return Selector{}, err
	}
	return Selector{Type: TypeName, Pattern: name}, nil
}

// Matches reports whether rec is selected.
func (s Selector) Matches(rec manifest.Record) bool {
	if s.Type == TypePath {
		return MatchGlob(s.Pattern, rec.Path)
	}
	return MatchGlob(s.Pattern, rec.Name)
}

// Select returns the manifest component names picked by any of the
// selectors, in manifest order. No selectors selects everything. A selector
// that matches nothing is an error so typos do not pass silently.
func Select(m *manifest.Manifest, selectors []string) ([]string, error) {
	names := m.Names()
	if len(selectors) == 0 {
		return names, nil
	}

	parsed := make([]Selector, 0, len(selectors))
	for _, raw := range selectors {
		sel, err := Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid selector %q: %w", raw, err)
		}
		parsed = append(parsed, sel)
	}

	picked := make(map[string]bool)
	for i, sel := range parsed {
		found := false
		for _, name := range names {
			rec, _ := m.Get(name)
			if sel.Matches(rec) {
				picked[name] = true
				found = true
			}
		}
		if !found {
			return nil, fmt.Errorf("no installed component matches %q", selectors[i])
		}
	}

	var out []string
	for _, name := range names {
		if picked[name] {
			out = append(out, name)
		}
	}
	return out, nil
}

// NormalizeName normalizes a string to a valid component name
// Rules:
// - Always lower-case
// - Allowed characters: a-z, 0-9, -
// - Must start with [a-z0-9]
// - Max length: 255 bytes
func NormalizeName(s string) (string, error) {
	if s == "" {
		return "", fmt.Errorf("component name cannot be empty")
	}

	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " ", "-")
	s = strings.ReplaceAll(s, "_", "-")

	var result strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			result.WriteRune(r)
		}
	}
	s = strings.Trim(result.String(), "-")

	if s == "" {
		return "", fmt.Errorf("component name must contain an alphanumeric character")
	}

	return s, ValidateName(s)
}

// ValidateName checks if a string is a valid component name without normalization
func ValidateName(s string) error {
	if s == "" {
		return fmt.Errorf("component name cannot be empty")
	}

	if len(s) > maxNameLen {
		return fmt.Errorf("component name exceeds maximum length of %d bytes", maxNameLen)
	}

	if !namePattern.MatchString(s) {
		return fmt.Errorf("invalid component name: must be lowercase, start with alphanumeric, and contain only [a-z0-9-]")
	}

	return nil
}
