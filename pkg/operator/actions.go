package operator

import "github.com/soundprediction/chronograph/pkg/types"

// Observation carries new information fed into the operator, typically the
// output of an upstream entity/relation extraction step. Either field may be
// nil; each action reads only the part it needs.
type Observation struct {
	NodeData *NodeData         `json:"node_data,omitempty"`
	EdgeData *EdgeData         `json:"edge_data,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// NodeData describes a node to insert. Label is required; everything else
// is optional.
type NodeData struct {
	ID         string           `json:"id,omitempty"`
	Label      string           `json:"label"`
	NodeType   string           `json:"node_type,omitempty"`
	Properties types.Properties `json:"properties,omitempty"`
	Importance *float64         `json:"importance,omitempty"`
}

// EdgeData describes an edge to insert or strengthen. SourceID, TargetID and
// Relation are required.
type EdgeData struct {
	SourceID   string   `json:"source_id"`
	TargetID   string   `json:"target_id"`
	Relation   string   `json:"relation"`
	Weight     *float64 `json:"weight,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// Action is the closed set of graph transformations. Each variant carries
// exactly the parameters its kind needs; the type switch in Apply enforces
// exhaustiveness instead of a string comparison.
type Action interface {
	actionName() string
}

// AddNode inserts a new node read from the observation's node data, falling
// back to NodeData when the observation carries none. Inserting a node whose
// label already exists (case-insensitive) is a no-op: the existing node wins.
type AddNode struct {
	NodeData *NodeData
}

// AddEdge inserts a new edge read from the observation's edge data (falling
// back to EdgeData), or strengthens the existing edge with the same natural
// key. Both endpoints must already exist in the graph.
type AddEdge struct {
	EdgeData *EdgeData
}

// DecayEdges applies exponential temporal decay to every edge weight and
// prunes edges that fall below the configured threshold. It ignores the
// observation and is meant to be invoked periodically, not per observation.
type DecayEdges struct{}

// MergeNodes absorbs Node2 into Node1: properties are merged with Node2
// winning on key collisions, importance becomes the max of the two, and all
// of Node2's edges are redirected to Node1.
type MergeNodes struct {
	Node1ID string
	Node2ID string
}

// PruneNode removes a node and every edge touching it.
type PruneNode struct {
	NodeID string
}

// PruneEdge removes a single edge by natural key.
type PruneEdge struct {
	EdgeID string
}

func (AddNode) actionName() string    { return "add_node" }
func (AddEdge) actionName() string    { return "add_edge" }
func (DecayEdges) actionName() string { return "update_edge_weight" }
func (MergeNodes) actionName() string { return "merge_nodes" }
func (PruneNode) actionName() string  { return "prune_node" }
func (PruneEdge) actionName() string  { return "prune_edge" }

// Result reports the outcome of one Apply call. Data errors surface here as
// warnings rather than Go errors.
type Result struct {
	// Action is the name of the applied action kind.
	Action string `json:"action"`
	// Applied is false when the call resolved to a no-op.
	Applied bool `json:"applied"`
	// Warnings collects data-error messages emitted during the call.
	Warnings []string `json:"warnings,omitempty"`
	// Changes are the journal records equivalent to the performed mutation,
	// ready to be appended to a temporal change log.
	Changes []*types.Change `json:"changes,omitempty"`
	// NodesDelta and EdgesDelta are the count differences versus the input.
	NodesDelta int `json:"nodes_delta"`
	EdgesDelta int `json:"edges_delta"`
}

func (r *Result) warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}
