package ir

import (
	"bytes"
	"fmt"
	"slices"
	"strings"
)

// SortedArrayPaths lists the array paths whose element order carries no
// meaning. Canonicalize sorts these arrays by a derived key; every other
// array keeps insertion order.
var SortedArrayPaths = map[string]bool{
	"structural.components":    true,
	"structural.edges":         true,
	"semantic.symbols":         true,
	"semantic.scopes":          true,
	"semantic.edges":           true,
	"semantic.refs":            true,
	"diagnostics.items":        true,
	"typedContract.components": true,
}

// Canonicalize returns a deep copy of v in canonical form. Objects are
// copied (key order is applied at serialization time), arrays are
// canonicalized element-wise, and arrays at a path in SortedArrayPaths are
// additionally sorted by SortKey. Elements with equal sort keys are ordered
// by their serialized form, so the result never depends on the order in
// which the IR was built.
//
// path is the dotted location of v; pass "" for a root value.
// Canonicalize is idempotent.
func Canonicalize(v IRValue, path string) IRValue {
	switch val := v.(type) {
	case IRObject:
		out := make(IRObject, len(val))
		for k, child := range val {
			out[k] = Canonicalize(child, joinPath(path, k))
		}
		return out
	case IRArray:
		out := make(IRArray, len(val))
		for i, child := range val {
			out[i] = Canonicalize(child, path)
		}
		if !SortedArrayPaths[path] {
			return out
		}
		return sortArray(out)
	default:
		return v
	}
}

type sortEntry struct {
	key   string
	bytes []byte
	value IRValue
}

func sortArray(arr IRArray) IRArray {
	entries := make([]sortEntry, len(arr))
	for i, elem := range arr {
		encoded, _ := MarshalIRValue(elem)
		entries[i] = sortEntry{key: SortKey(elem, i), bytes: encoded, value: elem}
	}
	slices.SortStableFunc(entries, func(a, b sortEntry) int {
		if c := strings.Compare(a.key, b.key); c != 0 {
			return c
		}
		return bytes.Compare(a.bytes, b.bytes)
	})
	out := make(IRArray, len(entries))
	for i, e := range entries {
		out[i] = e.value
	}
	return out
}

// SortKey derives the ordering key for an element of a sorted array.
// The first applicable rule wins:
//
//	component:<componentKey>
//	id:<id>
//	diag:<code>:<filePath>:<line>:<column>:<message>
//	path:<path>
//	expr:<expression>:<line>
//	index:<fallback>
func SortKey(v IRValue, index int) string {
	obj, ok := v.(IRObject)
	if ok {
		if key := stringField(obj, "componentKey"); key != "" {
			return "component:" + key
		}
		if id := stringField(obj, "id"); id != "" {
			return "id:" + id
		}
		if code := stringField(obj, "code"); code != "" {
			return fmt.Sprintf("diag:%s:%s:%s:%s:%s",
				code,
				stringField(obj, "filePath"),
				scalarField(obj, "line"),
				scalarField(obj, "column"),
				stringField(obj, "message"))
		}
		if p := stringField(obj, "path"); p != "" {
			return "path:" + p
		}
		if expr := stringField(obj, "expression"); expr != "" {
			return fmt.Sprintf("expr:%s:%s", expr, scalarField(obj, "line"))
		}
	}
	return fmt.Sprintf("index:%08d", index)
}

func stringField(obj IRObject, key string) string {
	if s, ok := obj[key].(IRString); ok {
		return string(s)
	}
	return ""
}

func scalarField(obj IRObject, key string) string {
	switch val := obj[key].(type) {
	case IRString:
		return string(val)
	case IRInt:
		return fmt.Sprintf("%d", int64(val))
	default:
		return ""
	}
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
