// Package types defines the core data structures for the chronograph
// temporal knowledge graph engine: nodes, edges, graphs, point-in-time
// snapshots and change-log records.
//
// All types in this package are plain values. A Graph is copied with Clone
// before any transformation so that two graph states never alias mutable
// sub-structures. Timestamps serialize as RFC 3339 (ISO-8601) via the
// standard library's time.Time JSON encoding.
package types
