// Package ir provides the compiler's intermediate representation and the
// determinism engine built on it.
//
// This package imports nothing internal. Every other internal package
// depends on ir, which keeps it the foundational layer.
//
// Contents:
//   - IRValue: sealed JSON-shaped value model (no floats)
//   - Structural, Semantic and TypedContract layer types
//   - Diagnostic, Severity and the Error taxonomy
//   - Canonicalize: deterministic array ordering for unordered IR arrays
//   - MarshalCanonical: RFC 8785 style byte encoding
//   - Diff: minimal structured diff between two snapshots
//
// Determinism constraints:
//   - No wall-clock timestamps in anything that is hashed
//   - No float values anywhere in IR
//   - Two IR values with equal semantics serialize to identical bytes
package ir
