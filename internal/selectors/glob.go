package selectors

import (
	"path"
	"strings"
)

// MatchGlob checks if a slash-separated path matches a glob pattern.
// Supports *, ?, [...] and ** patterns
func MatchGlob(pattern, name string) bool {
	if strings.Contains(pattern, "**") {
		return matchParts(splitPath(pattern), splitPath(name))
	}

	matched, err := path.Match(pattern, name)
	if err != nil {
		return false
	}
	return matched
}

func matchParts(patternParts, pathParts []string) bool {
	if len(patternParts) == 0 {
		return len(pathParts) == 0
	}

	if len(pathParts) == 0 {
		for _, p := range patternParts {
			if p != "**" {
				return false
			}
		}
		return true
	}

	if patternParts[0] == "**" {
		// ** matches zero or more segments
		return matchParts(patternParts[1:], pathParts) ||
			matchParts(patternParts, pathParts[1:])
	}

	matched, err := path.Match(patternParts[0], pathParts[0])
	if err != nil || !matched {
		return false
	}

	return matchParts(patternParts[1:], pathParts[1:])
}

// IsGlobPattern checks if a string contains glob characters
func IsGlobPattern(s string) bool {
	return strings.ContainsAny(s, "*?[")
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}
