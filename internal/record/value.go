// Package record models organism and metadata documents as
// loosely-typed JSON value trees with fail-soft path access.
package record

import (
	"strconv"
	"strings"
)

// absent is the sentinel for a path that does not resolve. Returning
// it instead of an error keeps one missing field from aborting a
// batch.
type absent struct{}

func (absent) String() string { return "absent" }

var Absent = absent{}

func IsAbsent(v any) bool {
	_, ok := v.(absent)
	return ok
}

// Resolve walks doc along a dot-delimited path. A segment is a field
// name, or a list index when the current node is an array. Any miss
// yields Absent.
func Resolve(doc any, path string) any {
	cur := doc
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[seg]
			if !ok {
				return Absent
			}
			cur = next
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return Absent
			}
			cur = node[idx]
		default:
			return Absent
		}
	}
	return cur
}

// ResolveAll extracts several paths from one document.
func ResolveAll(doc any, paths []string) map[string]any {
	out := make(map[string]any, len(paths))
	for _, p := range paths {
		out[p] = Resolve(doc, p)
	}
	return out
}

// Number unwraps a numeric leaf. JSON numbers decode as float64.
func Number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// Int unwraps an integral leaf, rejecting fractional values.
func Int(v any) (int64, bool) {
	f, ok := Number(v)
	if !ok || f != float64(int64(f)) {
		return 0, false
	}
	return int64(f), true
}

func String(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}
