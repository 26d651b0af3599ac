// Package analyze builds the compiler IR for a component source tree.
//
// A component is the set of files sharing a base name in one directory:
// a schema (.schema.yaml), a view (.view.yaml), handlers, methods and store
// scripts (.js) and constants (.constants.yaml). Analyze parses each file,
// runs the cross-file contract checks (refs, listeners, prop compatibility)
// and produces three layers:
//
//   - Structural: components and which components render which
//   - Semantic: declared and used symbols, per-component scopes, refs and
//     the edges between usages and declarations
//   - TypedContract: each component's props, events, methods, handlers,
//     actions and refs
//
// Problems in user source are reported as ir.Diagnostic values with stable
// RTGL-CHECK-* codes; they never abort the analysis.
package analyze
