// Package cache stores compile artifacts keyed by semantic hash.
//
// The key is the hash of the compiler IR, so a hit means the project's
// semantics are unchanged since the artifact was built. Implementations:
//
//   - MapCache: plain map, one in-flight compile per instance
//   - MemoryCache: bounded LRU, safe for concurrent use
//   - DiskCache: one msgpack file per hash under a directory
//   - SQLCache: a single table in SQLite or PostgreSQL
//   - NoopCache: never hits
package cache
