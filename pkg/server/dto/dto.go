// Package dto defines the request and response shapes of the HTTP API.
package dto

import (
	"errors"
	"fmt"
	"time"

	"github.com/soundprediction/chronograph/pkg/operator"
)

// Action names accepted on the wire.
const (
	ActionAddNode    = "add_node"
	ActionAddEdge    = "add_edge"
	ActionDecayEdges = "update_edge_weight"
	ActionMergeNodes = "merge_nodes"
	ActionPruneNode  = "prune_node"
	ActionPruneEdge  = "prune_edge"
)

// TransformParameters carries the per-action parameters of a transform
// request. Only the fields relevant to the requested action are read.
type TransformParameters struct {
	NodeData *operator.NodeData `json:"node_data,omitempty"`
	EdgeData *operator.EdgeData `json:"edge_data,omitempty"`
	Node1ID  string             `json:"node1_id,omitempty"`
	Node2ID  string             `json:"node2_id,omitempty"`
	NodeID   string             `json:"node_id,omitempty"`
	EdgeID   string             `json:"edge_id,omitempty"`
}

// TransformRequest asks the engine to apply one action to a tenant's graph.
type TransformRequest struct {
	Action      string               `json:"action" binding:"required"`
	Observation operator.Observation `json:"observation"`
	Parameters  TransformParameters  `json:"parameters"`
}

// ToAction maps the wire action name to its typed variant. Unknown names are
// a client error here, before they could ever reach the operator.
func (r *TransformRequest) ToAction() (operator.Action, error) {
	switch r.Action {
	case ActionAddNode:
		return operator.AddNode{NodeData: r.Parameters.NodeData}, nil
	case ActionAddEdge:
		return operator.AddEdge{EdgeData: r.Parameters.EdgeData}, nil
	case ActionDecayEdges:
		return operator.DecayEdges{}, nil
	case ActionMergeNodes:
		if r.Parameters.Node1ID == "" || r.Parameters.Node2ID == "" {
			return nil, errors.New("merge_nodes requires node1_id and node2_id")
		}
		return operator.MergeNodes{Node1ID: r.Parameters.Node1ID, Node2ID: r.Parameters.Node2ID}, nil
	case ActionPruneNode:
		if r.Parameters.NodeID == "" {
			return nil, errors.New("prune_node requires node_id")
		}
		return operator.PruneNode{NodeID: r.Parameters.NodeID}, nil
	case ActionPruneEdge:
		if r.Parameters.EdgeID == "" {
			return nil, errors.New("prune_edge requires edge_id")
		}
		return operator.PruneEdge{EdgeID: r.Parameters.EdgeID}, nil
	default:
		return nil, fmt.Errorf("unknown action %q", r.Action)
	}
}

// SnapshotRequest creates a snapshot with optional metadata.
type SnapshotRequest struct {
	Metadata map[string]string `json:"metadata,omitempty"`
}

// TimeWindow parses the start/end query parameters shared by the analytics
// endpoints.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// ParseTimeWindow parses RFC3339 start/end strings, defaulting end to now
// and start to 24 hours before end.
func ParseTimeWindow(startRaw, endRaw string, now time.Time) (TimeWindow, error) {
	window := TimeWindow{End: now}
	if endRaw != "" {
		end, err := time.Parse(time.RFC3339, endRaw)
		if err != nil {
			return TimeWindow{}, fmt.Errorf("invalid end time: %w", err)
		}
		window.End = end
	}
	window.Start = window.End.Add(-24 * time.Hour)
	if startRaw != "" {
		start, err := time.Parse(time.RFC3339, startRaw)
		if err != nil {
			return TimeWindow{}, fmt.Errorf("invalid start time: %w", err)
		}
		window.Start = start
	}
	if window.Start.After(window.End) {
		return TimeWindow{}, errors.New("start must not be after end")
	}
	return window, nil
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
