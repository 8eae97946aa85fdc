// Package analytics derives read-only insights from a temporal store:
// structural diffs between graphs, evolution timelines, growth metrics, and
// emerging relationship patterns. Nothing in this package mutates graphs or
// the temporal log.
package analytics
