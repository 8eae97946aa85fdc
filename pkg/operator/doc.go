// Package operator implements the graph state transition function
//
//	G_{t+1} = T(G_t, observation, action)
//
// Apply never mutates its input graph; it deep-copies the current state and
// returns the transformed copy together with a Result describing what
// happened, including the change-log records equivalent to the mutation.
//
// Malformed observations and missing merge/prune targets are data errors:
// they resolve to a no-op with a warning in the Result so that one bad
// observation never aborts a transformation pipeline. An unrecognized action
// variant is a programming error and panics.
package operator
