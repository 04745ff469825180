// Package wireutil implements the dotted-segment path conventions and the
// JSON codec vBus uses on the bus: empty-segment elision when joining path
// prefixes, wildcard detection/translation for subscriptions, and the
// value<->payload conversion (absent value <-> empty payload).
package wireutil

import (
	"regexp"
	"strings"
)

// segmentEscaper replaces the one character that collides with the path
// separator. The original implementation performs no other escaping, so
// this repo restricts valid segment characters to [A-Za-z0-9_\-:] and
// substitutes any '.' found in a caller-supplied segment with '_'.
var segmentEscaper = strings.NewReplacer(".", "_")

// EscapeSegment sanitizes a single path segment for use on the bus.
func EscapeSegment(segment string) string {
	return segmentEscaper.Replace(segment)
}

// JoinPath concatenates path parts into a single dotted subject, eliding
// any empty parts. "a", "", "b" becomes "a.b", not "a..b".
func JoinPath(parts ...string) string {
	nonEmpty := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, ".")
}

// SplitPath splits a dotted subject into its segments. An empty subject
// yields an empty slice, not a slice containing one empty string.
func SplitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// IsWildcard reports whether a path segment is a bus-level wildcard.
func IsWildcard(segment string) bool {
	return segment == "*" || segment == ">"
}

// HasWildcard reports whether any segment of path is a wildcard.
func HasWildcard(path string) bool {
	for _, seg := range SplitPath(path) {
		if IsWildcard(seg) {
			return true
		}
	}
	return false
}

var wildcardSegment = regexp.MustCompile(`\*|>`)

// SubjectToRegex translates a dotted subject containing bus wildcards into
// a regular expression: "*" becomes a single-segment capture group, ">"
// becomes a remainder capture group. Non-wildcard segments are escaped
// literally so that regex metacharacters in a path segment cannot leak
// into the match.
func SubjectToRegex(subject string) *regexp.Regexp {
	segments := SplitPath(subject)
	parts := make([]string, len(segments))
	for i, seg := range segments {
		switch seg {
		case "*":
			parts[i] = `([^.]+)`
		case ">":
			parts[i] = `(.+)`
		default:
			parts[i] = regexp.QuoteMeta(seg)
		}
	}
	pattern := "^" + strings.Join(parts, `\.`) + "$"
	return regexp.MustCompile(pattern)
}

// GetPathInDict walks a decoded JSON map by successive string keys,
// returning nil if any key along the way is missing or the value stops
// being a map before the path is exhausted.
func GetPathInDict(root map[string]any, parts ...string) any {
	var cur any = root
	for _, part := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := m[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}
