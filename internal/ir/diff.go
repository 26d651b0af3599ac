package ir

import (
	"slices"
	"strconv"
)

// ChangeType classifies a single IR difference.
type ChangeType string

const (
	ChangeAdded   ChangeType = "added"
	ChangeRemoved ChangeType = "removed"
	ChangeChanged ChangeType = "changed"
)

// DefaultMaxChanges caps Diff output when the caller passes no limit.
const DefaultMaxChanges = 200

// Change is one differing leaf path. Before/After hold the JSON encoding of
// the leaf; the side that does not exist is empty.
type Change struct {
	Path   string     `json:"path"`
	Type   ChangeType `json:"type"`
	Before string     `json:"before,omitempty"`
	After  string     `json:"after,omitempty"`
}

// DiffResult is the outcome of Diff.
type DiffResult struct {
	Changed bool     `json:"changed"`
	Changes []Change `json:"changes"`
}

// Diff canonicalizes both snapshots, flattens them to dotted leaf paths and
// reports every path whose value differs, in lexicographic path order.
// At most maxChanges entries are returned; the rest are dropped silently.
// maxChanges <= 0 selects DefaultMaxChanges, so callers that take a limit
// from users must reject those values themselves.
func Diff(before, after IRValue, maxChanges int) DiffResult {
	if maxChanges <= 0 {
		maxChanges = DefaultMaxChanges
	}

	left := Flatten(Canonicalize(before, ""))
	right := Flatten(Canonicalize(after, ""))

	paths := make([]string, 0, len(left)+len(right))
	for p := range left {
		paths = append(paths, p)
	}
	for p := range right {
		if _, ok := left[p]; !ok {
			paths = append(paths, p)
		}
	}
	slices.Sort(paths)

	changes := make([]Change, 0)
	for _, p := range paths {
		if len(changes) >= maxChanges {
			break
		}
		l, inLeft := left[p]
		r, inRight := right[p]
		switch {
		case inLeft && !inRight:
			changes = append(changes, Change{Path: p, Type: ChangeRemoved, Before: l})
		case !inLeft && inRight:
			changes = append(changes, Change{Path: p, Type: ChangeAdded, After: r})
		case l != r:
			changes = append(changes, Change{Path: p, Type: ChangeChanged, Before: l, After: r})
		}
	}

	return DiffResult{Changed: len(changes) > 0, Changes: changes}
}

// Flatten maps every leaf of v to its JSON encoding, keyed by dotted path.
// Array elements use their index as the path segment. Empty objects and
// arrays are leaves encoded as "{}" and "[]".
func Flatten(v IRValue) map[string]string {
	out := make(map[string]string)
	flattenInto(out, "", v)
	return out
}

func flattenInto(out map[string]string, path string, v IRValue) {
	switch val := v.(type) {
	case IRObject:
		if len(val) == 0 {
			out[path] = "{}"
			return
		}
		for k, child := range val {
			flattenInto(out, joinPath(path, k), child)
		}
	case IRArray:
		if len(val) == 0 {
			out[path] = "[]"
			return
		}
		for i, child := range val {
			flattenInto(out, joinPath(path, strconv.Itoa(i)), child)
		}
	default:
		encoded, err := MarshalCanonical(val)
		if err != nil {
			encoded = []byte("null")
		}
		out[path] = string(encoded)
	}
}
