// Package temporal tracks how a knowledge graph evolves over time. It keeps
// full graph snapshots alongside an append-only change log, and can
// reconstruct the graph as it existed at any past moment by replaying the
// changes recorded after the nearest preceding snapshot.
//
// Snapshots may be pruned by retention policy; the change log is never
// truncated, so any instant after the earliest surviving snapshot remains
// reconstructible.
package temporal
