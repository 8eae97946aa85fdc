package types

import (
	"sort"
	"time"
)

// Graph is the complete state of one tenant's knowledge graph: a node map,
// an edge map keyed by natural key, and opaque scoping identifiers. Graphs
// are plain values; Clone produces a fully independent deep copy.
type Graph struct {
	Nodes       map[string]*Node `json:"nodes"`
	Edges       map[string]*Edge `json:"edges"`
	TenantID    string           `json:"tenant_id"`
	ProjectID   string           `json:"project_id"`
	CreatedAt   time.Time        `json:"created_at"`
	LastUpdated time.Time        `json:"last_updated"`
}

// NewGraph creates an empty graph scoped to the given tenant and project.
func NewGraph(tenantID, projectID string) *Graph {
	now := time.Now().UTC()
	return &Graph{
		Nodes:       make(map[string]*Node),
		Edges:       make(map[string]*Edge),
		TenantID:    tenantID,
		ProjectID:   projectID,
		CreatedAt:   now,
		LastUpdated: now,
	}
}

// GetNode returns the node with the given id, or nil.
func (g *Graph) GetNode(nodeID string) *Node {
	return g.Nodes[nodeID]
}

// GetEdge returns the edge with the given natural key, or nil.
func (g *Graph) GetEdge(edgeID string) *Edge {
	return g.Edges[edgeID]
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.Nodes) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.Edges) }

// NodeIDs returns all node ids in sorted order.
func (g *Graph) NodeIDs() []string {
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// EdgeIDs returns all edge natural keys in sorted order.
func (g *Graph) EdgeIDs() []string {
	ids := make([]string, 0, len(g.Edges))
	for id := range g.Edges {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// FindNodeByLabel returns the first node whose label matches the given label
// under the provided equality function, or nil. Iteration order is sorted by
// node id so the result is deterministic.
func (g *Graph) FindNodeByLabel(label string, equal func(a, b string) bool) *Node {
	for _, id := range g.NodeIDs() {
		if node := g.Nodes[id]; equal(node.Label, label) {
			return node
		}
	}
	return nil
}

// Density returns the graph density edges / (n*(n-1)/2), treating the graph
// as undirected for the purpose of the maximum edge count. Returns 0 for
// graphs with at most one node.
func (g *Graph) Density() float64 {
	n := len(g.Nodes)
	if n <= 1 {
		return 0
	}
	maxEdges := float64(n) * float64(n-1) / 2
	return float64(len(g.Edges)) / maxEdges
}

// AdjacencyMatrix returns the weighted adjacency matrix of the graph in
// row-major order, together with the node ids defining the row/column order
// (sorted for determinism). Entry [i*n+j] is the weight of the edge from
// node i to node j, or 0 when absent.
func (g *Graph) AdjacencyMatrix() ([]string, []float64) {
	ids := g.NodeIDs()
	n := len(ids)
	if n == 0 {
		return nil, nil
	}

	index := make(map[string]int, n)
	for i, id := range ids {
		index[id] = i
	}

	matrix := make([]float64, n*n)
	for _, edge := range g.Edges {
		i, okSource := index[edge.SourceID]
		j, okTarget := index[edge.TargetID]
		if okSource && okTarget {
			matrix[i*n+j] = edge.Weight
		}
	}

	return ids, matrix
}

// Clone returns a deep copy of the graph. The copy shares no mutable state
// with the original.
func (g *Graph) Clone() *Graph {
	if g == nil {
		return nil
	}
	out := &Graph{
		Nodes:       make(map[string]*Node, len(g.Nodes)),
		Edges:       make(map[string]*Edge, len(g.Edges)),
		TenantID:    g.TenantID,
		ProjectID:   g.ProjectID,
		CreatedAt:   g.CreatedAt,
		LastUpdated: g.LastUpdated,
	}
	for id, node := range g.Nodes {
		out.Nodes[id] = node.Clone()
	}
	for id, edge := range g.Edges {
		out.Edges[id] = edge.Clone()
	}
	return out
}
