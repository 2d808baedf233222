// Package sanitize normalizes strings and metadata before they reach the
// vector index, and validates collection names.
package sanitize

import (
	"regexp"
	"strings"
)

// String makes s safe to store and to embed as a double-quoted literal in a
// filter expression: backslashes become forward slashes, double quotes are
// escaped and invalid UTF-8 bytes are dropped.
//
//	`C:\docs\"q".txt` -> `C:/docs/\"q\".txt`
func String(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, `\`, "/")
	s = strings.ReplaceAll(s, `"`, `\"`)
	return strings.ToValidUTF8(s, "")
}

// Metadata applies String to every string in v, recursing into maps (keys
// included) and slices. Other scalars are returned unchanged.
func Metadata(v any) any {
	switch t := v.(type) {
	case string:
		return String(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[String(k)] = Metadata(val)
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[String(k)] = String(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Metadata(val)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = String(val)
		}
		return out
	default:
		return v
	}
}

// Map is Metadata for the common top-level case. A nil map yields an empty one.
func Map(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return Metadata(m).(map[string]any)
}

// collectionNamePattern accepts names both backends can use unchanged.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// IsCollectionName reports whether name is usable as-is.
func IsCollectionName(name string) bool {
	return collectionNamePattern.MatchString(name)
}
