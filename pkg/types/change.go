package types

import (
	"errors"
	"time"
)

// ChangeType classifies a single graph mutation in the change log.
type ChangeType string

const (
	ChangeNodeAdded   ChangeType = "node_added"
	ChangeNodeRemoved ChangeType = "node_removed"
	ChangeNodeUpdated ChangeType = "node_updated"
	ChangeEdgeAdded   ChangeType = "edge_added"
	ChangeEdgeRemoved ChangeType = "edge_removed"
	ChangeEdgeUpdated ChangeType = "edge_updated"
)

// Valid reports whether t is one of the six defined change types.
func (t ChangeType) Valid() bool {
	switch t {
	case ChangeNodeAdded, ChangeNodeRemoved, ChangeNodeUpdated,
		ChangeEdgeAdded, ChangeEdgeRemoved, ChangeEdgeUpdated:
		return true
	}
	return false
}

// Entity type tags for Change records.
const (
	EntityNode = "node"
	EntityEdge = "edge"
)

var (
	ErrInvalidChangeType = errors.New("invalid change type")
	ErrEmptyEntityID     = errors.New("entity_id cannot be empty")
)

// EntityState captures a node or edge value carried in a change record.
// Exactly one of the fields is set, matching the change's entity type.
type EntityState struct {
	Node *Node `json:"node,omitempty"`
	Edge *Edge `json:"edge,omitempty"`
}

// Clone returns a deep copy of the state.
func (s *EntityState) Clone() *EntityState {
	if s == nil {
		return nil
	}
	return &EntityState{Node: s.Node.Clone(), Edge: s.Edge.Clone()}
}

// Change is one entry in a tenant's append-only change log. EntityID is a
// node id for node changes or an edge natural key for edge changes. The log
// is the sole basis for reconstructing graph state between snapshots, so a
// change must carry everything replay needs in Old/New.
type Change struct {
	Type       ChangeType        `json:"change_type"`
	Timestamp  time.Time         `json:"timestamp"`
	EntityID   string            `json:"entity_id"`
	EntityType string            `json:"entity_type"`
	Old        *EntityState      `json:"old_value,omitempty"`
	New        *EntityState      `json:"new_value,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Validate checks that the change is well formed for journaling.
func (c *Change) Validate() error {
	if !c.Type.Valid() {
		return ErrInvalidChangeType
	}
	if c.EntityID == "" {
		return ErrEmptyEntityID
	}
	return nil
}

// Clone returns a deep copy of the change.
func (c *Change) Clone() *Change {
	if c == nil {
		return nil
	}
	out := *c
	out.Old = c.Old.Clone()
	out.New = c.New.Clone()
	if c.Metadata != nil {
		out.Metadata = make(map[string]string, len(c.Metadata))
		for k, v := range c.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}
