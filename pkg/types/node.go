package types

import (
	"errors"
	"time"
)

// Validation errors
var (
	ErrEmptyLabel      = errors.New("label cannot be empty")
	ErrEmptyNodeID     = errors.New("node id cannot be empty")
	ErrEmptyEdgeSource = errors.New("edge source_id cannot be empty")
	ErrEmptyEdgeTarget = errors.New("edge target_id cannot be empty")
	ErrEmptyRelation   = errors.New("edge relation cannot be empty")
	ErrEmptyTenantID   = errors.New("tenant_id cannot be empty")
)

// Default scores assigned when an observation does not specify them.
const (
	DefaultImportance = 0.5
	DefaultWeight     = 0.7
	DefaultConfidence = 0.8
)

// Node is a vertex in the knowledge graph. It represents an entity,
// concept or event extracted from upstream observations.
type Node struct {
	ID          string     `json:"id"`
	Label       string     `json:"label"`
	NodeType    string     `json:"node_type"`
	Properties  Properties `json:"properties,omitempty"`
	Importance  float64    `json:"importance"`
	Centrality  float64    `json:"centrality"`
	CreatedAt   time.Time  `json:"created_at"`
	LastUpdated time.Time  `json:"last_updated"`
}

// Validate checks that the node carries the fields required for insertion.
func (n *Node) Validate() error {
	if n.ID == "" {
		return ErrEmptyNodeID
	}
	if n.Label == "" {
		return ErrEmptyLabel
	}
	return nil
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := *n
	out.Properties = n.Properties.Clone()
	return &out
}
