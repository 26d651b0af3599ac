// Package binding parses view attribute strings into binding names and
// compiles a view's refs map into ref matchers.
//
// Everything here is a pure function with no I/O. Malformed refs fail fast
// with an *ir.Error of kind KindContract rather than being skipped.
package binding
