package operator

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/soundprediction/chronograph/pkg/types"
)

// Options configures an Operator.
type Options struct {
	// EdgeHalfLifeDays is the half-life of the exponential edge weight decay.
	EdgeHalfLifeDays float64
	// EdgePruneThreshold is the weight below which a decayed edge is removed.
	EdgePruneThreshold float64
	// Clock overrides the time source. Defaults to time.Now. Tests use this
	// to make decay and change timestamps reproducible.
	Clock func() time.Time
}

// Default decay parameters.
const (
	DefaultEdgeHalfLifeDays   = 30.0
	DefaultEdgePruneThreshold = 0.1
)

// Operator implements the deterministic graph transformation T.
type Operator struct {
	halfLifeDays   float64
	pruneThreshold float64
	now            func() time.Time
	logger         *slog.Logger
}

// New creates an Operator. A nil opts applies the defaults; a nil logger
// falls back to slog.Default.
func New(opts *Options, logger *slog.Logger) *Operator {
	if opts == nil {
		opts = &Options{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	o := &Operator{
		halfLifeDays:   opts.EdgeHalfLifeDays,
		pruneThreshold: opts.EdgePruneThreshold,
		now:            opts.Clock,
		logger:         logger,
	}
	if o.halfLifeDays <= 0 {
		o.halfLifeDays = DefaultEdgeHalfLifeDays
	}
	if o.pruneThreshold <= 0 {
		o.pruneThreshold = DefaultEdgePruneThreshold
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

// Apply computes G_{t+1} = T(G_t, obs, action). The input graph is never
// mutated; the returned graph is an independent deep copy with the action
// applied and LastUpdated refreshed.
//
// Apply panics on a nil or unrecognized action: action kinds are a closed
// set and an unknown one is a programming error, not bad data.
func (o *Operator) Apply(graph *types.Graph, action Action, obs Observation) (*types.Graph, *Result) {
	if action == nil {
		panic("operator: nil action")
	}

	next := graph.Clone()
	res := &Result{Action: action.actionName()}
	now := o.now().UTC()

	switch a := action.(type) {
	case AddNode:
		o.addNode(next, obs, a, res, now)
	case AddEdge:
		o.addEdge(next, obs, a, res, now)
	case DecayEdges:
		o.decayEdges(next, res, now)
	case MergeNodes:
		o.mergeNodes(next, a, res, now)
	case PruneNode:
		o.pruneNode(next, a, res, now)
	case PruneEdge:
		o.pruneEdge(next, a, res, now)
	default:
		panic(fmt.Sprintf("operator: unknown action type %T", action))
	}

	next.LastUpdated = now
	res.NodesDelta = next.NodeCount() - graph.NodeCount()
	res.EdgesDelta = next.EdgeCount() - graph.EdgeCount()

	o.logger.Debug("graph transformation applied",
		"action", res.Action,
		"applied", res.Applied,
		"nodes_delta", res.NodesDelta,
		"edges_delta", res.EdgesDelta,
		"warnings", len(res.Warnings))

	return next, res
}

func (o *Operator) addNode(g *types.Graph, obs Observation, a AddNode, res *Result, now time.Time) {
	data := obs.NodeData
	if data == nil {
		data = a.NodeData
	}
	if data == nil {
		res.warn("add_node: missing node data")
		o.logger.Warn("add_node missing data")
		return
	}
	if data.Label == "" {
		res.warn("add_node: missing label")
		o.logger.Warn("add_node missing label")
		return
	}

	if existing := g.FindNodeByLabel(data.Label, strings.EqualFold); existing != nil {
		o.logger.Info("node already exists", "node_id", existing.ID, "label", existing.Label)
		return
	}

	id := data.ID
	if id == "" {
		id = fmt.Sprintf("node_%d", len(g.Nodes))
	}
	nodeType := data.NodeType
	if nodeType == "" {
		nodeType = "entity"
	}
	importance := types.DefaultImportance
	if data.Importance != nil {
		importance = *data.Importance
	}

	node := &types.Node{
		ID:          id,
		Label:       data.Label,
		NodeType:    nodeType,
		Properties:  data.Properties.Clone(),
		Importance:  importance,
		Centrality:  0,
		CreatedAt:   now,
		LastUpdated: now,
	}
	g.Nodes[node.ID] = node
	res.Applied = true
	res.Changes = append(res.Changes, &types.Change{
		Type:       types.ChangeNodeAdded,
		Timestamp:  now,
		EntityID:   node.ID,
		EntityType: types.EntityNode,
		New:        &types.EntityState{Node: node.Clone()},
	})

	o.logger.Debug("node added", "node_id", node.ID, "label", node.Label)
}

func (o *Operator) addEdge(g *types.Graph, obs Observation, a AddEdge, res *Result, now time.Time) {
	data := obs.EdgeData
	if data == nil {
		data = a.EdgeData
	}
	if data == nil {
		res.warn("add_edge: missing edge data")
		o.logger.Warn("add_edge missing data")
		return
	}
	if data.SourceID == "" || data.TargetID == "" || data.Relation == "" {
		res.warn("add_edge: incomplete edge data")
		o.logger.Warn("add_edge incomplete data",
			"source", data.SourceID, "target", data.TargetID, "relation", data.Relation)
		return
	}

	if g.GetNode(data.SourceID) == nil || g.GetNode(data.TargetID) == nil {
		res.warn(fmt.Sprintf("add_edge: nodes not found for %s -> %s", data.SourceID, data.TargetID))
		o.logger.Warn("edge nodes not found", "source", data.SourceID, "target", data.TargetID)
		return
	}

	edgeID := types.EdgeID(data.SourceID, data.Relation, data.TargetID)
	if existing := g.Edges[edgeID]; existing != nil {
		old := existing.Clone()
		existing.Weight = math.Min(1.0, existing.Weight+0.1)
		existing.EvidenceCount++
		existing.LastUpdated = now
		res.Applied = true
		res.Changes = append(res.Changes, &types.Change{
			Type:       types.ChangeEdgeUpdated,
			Timestamp:  now,
			EntityID:   edgeID,
			EntityType: types.EntityEdge,
			Old:        &types.EntityState{Edge: old},
			New:        &types.EntityState{Edge: existing.Clone()},
		})

		o.logger.Debug("edge strengthened",
			"edge_id", edgeID,
			"new_weight", existing.Weight,
			"evidence_count", existing.EvidenceCount)
		return
	}

	weight := types.DefaultWeight
	if data.Weight != nil {
		weight = *data.Weight
	}
	confidence := types.DefaultConfidence
	if data.Confidence != nil {
		confidence = *data.Confidence
	}

	edge := &types.Edge{
		ID:            edgeID,
		SourceID:      data.SourceID,
		TargetID:      data.TargetID,
		Relation:      data.Relation,
		Weight:        weight,
		Confidence:    confidence,
		EvidenceCount: 1,
		CreatedAt:     now,
		LastUpdated:   now,
	}
	g.Edges[edgeID] = edge
	res.Applied = true
	res.Changes = append(res.Changes, &types.Change{
		Type:       types.ChangeEdgeAdded,
		Timestamp:  now,
		EntityID:   edgeID,
		EntityType: types.EntityEdge,
		New:        &types.EntityState{Edge: edge.Clone()},
	})

	o.logger.Debug("edge added", "edge_id", edgeID, "weight", edge.Weight)
}

// decayEdges applies w(t) = w(t_0) * exp(-dt / half_life) to every edge and
// removes those falling below the prune threshold. The only action that can
// remove multiple edges in one call.
func (o *Operator) decayEdges(g *types.Graph, res *Result, now time.Time) {
	pruned := 0
	for _, edgeID := range g.EdgeIDs() {
		edge := g.Edges[edgeID]
		old := edge.Clone()

		deltaDays := now.Sub(edge.LastUpdated).Seconds() / 86400
		edge.Weight *= math.Exp(-deltaDays / o.halfLifeDays)

		if edge.Weight < o.pruneThreshold {
			delete(g.Edges, edgeID)
			pruned++
			res.Changes = append(res.Changes, &types.Change{
				Type:       types.ChangeEdgeRemoved,
				Timestamp:  now,
				EntityID:   edgeID,
				EntityType: types.EntityEdge,
				Old:        &types.EntityState{Edge: old},
			})
			o.logger.Debug("edge pruned by decay", "edge_id", edgeID)
			continue
		}

		res.Changes = append(res.Changes, &types.Change{
			Type:       types.ChangeEdgeUpdated,
			Timestamp:  now,
			EntityID:   edgeID,
			EntityType: types.EntityEdge,
			Old:        &types.EntityState{Edge: old},
			New:        &types.EntityState{Edge: edge.Clone()},
		})
	}

	res.Applied = true
	o.logger.Info("edge weights decayed",
		"edges_total", len(g.Edges),
		"edges_pruned", pruned)
}

func (o *Operator) mergeNodes(g *types.Graph, a MergeNodes, res *Result, now time.Time) {
	if a.Node1ID == "" || a.Node2ID == "" {
		res.warn("merge_nodes: missing node ids")
		o.logger.Warn("merge_nodes missing ids")
		return
	}
	if a.Node1ID == a.Node2ID {
		res.warn("merge_nodes: identical node ids")
		o.logger.Warn("merge_nodes identical ids", "node_id", a.Node1ID)
		return
	}

	node1 := g.GetNode(a.Node1ID)
	node2 := g.GetNode(a.Node2ID)
	if node1 == nil || node2 == nil {
		res.warn("merge_nodes: node not found")
		o.logger.Warn("merge_nodes not found", "node1", a.Node1ID, "node2", a.Node2ID)
		return
	}

	oldNode1 := node1.Clone()
	if node1.Properties == nil && len(node2.Properties) > 0 {
		node1.Properties = make(types.Properties, len(node2.Properties))
	}
	node1.Properties.Update(node2.Properties)
	node1.Importance = math.Max(node1.Importance, node2.Importance)
	node1.LastUpdated = now

	res.Changes = append(res.Changes, &types.Change{
		Type:       types.ChangeNodeUpdated,
		Timestamp:  now,
		EntityID:   node1.ID,
		EntityType: types.EntityNode,
		Old:        &types.EntityState{Node: oldNode1},
		New:        &types.EntityState{Node: node1.Clone()},
	})

	delete(g.Nodes, a.Node2ID)
	res.Changes = append(res.Changes, &types.Change{
		Type:       types.ChangeNodeRemoved,
		Timestamp:  now,
		EntityID:   node2.ID,
		EntityType: types.EntityNode,
		Old:        &types.EntityState{Node: node2.Clone()},
	})

	// Redirect node2's edges to node1 in sorted key order so that merge
	// results do not depend on map iteration order.
	redirected := 0
	for _, edgeID := range g.EdgeIDs() {
		edge := g.Edges[edgeID]
		if !edge.Touches(a.Node2ID) {
			continue
		}
		redirected++

		newSource := edge.SourceID
		newTarget := edge.TargetID
		if newSource == a.Node2ID {
			newSource = a.Node1ID
		}
		if newTarget == a.Node2ID {
			newTarget = a.Node1ID
		}
		newEdgeID := types.EdgeID(newSource, edge.Relation, newTarget)

		delete(g.Edges, edgeID)
		res.Changes = append(res.Changes, &types.Change{
			Type:       types.ChangeEdgeRemoved,
			Timestamp:  now,
			EntityID:   edgeID,
			EntityType: types.EntityEdge,
			Old:        &types.EntityState{Edge: edge.Clone()},
		})

		if existing := g.Edges[newEdgeID]; existing != nil {
			oldExisting := existing.Clone()
			existing.Weight = math.Min(1.0, existing.Weight+edge.Weight)
			existing.EvidenceCount += edge.EvidenceCount
			res.Changes = append(res.Changes, &types.Change{
				Type:       types.ChangeEdgeUpdated,
				Timestamp:  now,
				EntityID:   newEdgeID,
				EntityType: types.EntityEdge,
				Old:        &types.EntityState{Edge: oldExisting},
				New:        &types.EntityState{Edge: existing.Clone()},
			})
			continue
		}

		edge.SourceID = newSource
		edge.TargetID = newTarget
		edge.ID = newEdgeID
		g.Edges[newEdgeID] = edge
		res.Changes = append(res.Changes, &types.Change{
			Type:       types.ChangeEdgeAdded,
			Timestamp:  now,
			EntityID:   newEdgeID,
			EntityType: types.EntityEdge,
			New:        &types.EntityState{Edge: edge.Clone()},
		})
	}

	res.Applied = true
	o.logger.Info("nodes merged",
		"node1", a.Node1ID,
		"node2", a.Node2ID,
		"edges_redirected", redirected)
}

func (o *Operator) pruneNode(g *types.Graph, a PruneNode, res *Result, now time.Time) {
	node := g.GetNode(a.NodeID)
	if a.NodeID == "" || node == nil {
		res.warn(fmt.Sprintf("prune_node: node %q not found", a.NodeID))
		o.logger.Warn("prune_node not found", "node_id", a.NodeID)
		return
	}

	delete(g.Nodes, a.NodeID)
	res.Changes = append(res.Changes, &types.Change{
		Type:       types.ChangeNodeRemoved,
		Timestamp:  now,
		EntityID:   a.NodeID,
		EntityType: types.EntityNode,
		Old:        &types.EntityState{Node: node.Clone()},
	})

	removed := 0
	for _, edgeID := range g.EdgeIDs() {
		edge := g.Edges[edgeID]
		if !edge.Touches(a.NodeID) {
			continue
		}
		delete(g.Edges, edgeID)
		removed++
		res.Changes = append(res.Changes, &types.Change{
			Type:       types.ChangeEdgeRemoved,
			Timestamp:  now,
			EntityID:   edgeID,
			EntityType: types.EntityEdge,
			Old:        &types.EntityState{Edge: edge.Clone()},
		})
	}

	res.Applied = true
	o.logger.Info("node pruned", "node_id", a.NodeID, "edges_removed", removed)
}

func (o *Operator) pruneEdge(g *types.Graph, a PruneEdge, res *Result, now time.Time) {
	edge := g.GetEdge(a.EdgeID)
	if a.EdgeID == "" || edge == nil {
		res.warn(fmt.Sprintf("prune_edge: edge %q not found", a.EdgeID))
		o.logger.Warn("prune_edge not found", "edge_id", a.EdgeID)
		return
	}

	delete(g.Edges, a.EdgeID)
	res.Applied = true
	res.Changes = append(res.Changes, &types.Change{
		Type:       types.ChangeEdgeRemoved,
		Timestamp:  now,
		EntityID:   a.EdgeID,
		EntityType: types.EntityEdge,
		Old:        &types.EntityState{Edge: edge.Clone()},
	})

	o.logger.Debug("edge pruned", "edge_id", a.EdgeID)
}
