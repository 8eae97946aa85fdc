package analytics

import (
	"sort"

	"github.com/soundprediction/chronograph/pkg/types"
)

// GraphDiff describes the structural difference between two graphs. Nodes
// are compared by ID; edges by their (source, target, relation) natural key,
// so a decayed weight alone does not register as a difference.
type GraphDiff struct {
	NodesAdded   []string `json:"nodes_added"`
	NodesRemoved []string `json:"nodes_removed"`
	EdgesAdded   []string `json:"edges_added"`
	EdgesRemoved []string `json:"edges_removed"`
}

// Empty reports whether the two graphs have identical structure.
func (d *GraphDiff) Empty() bool {
	return len(d.NodesAdded) == 0 && len(d.NodesRemoved) == 0 &&
		len(d.EdgesAdded) == 0 && len(d.EdgesRemoved) == 0
}

// CompareGraphs computes the structural diff from before to after. All
// result slices are sorted.
func CompareGraphs(before, after *types.Graph) *GraphDiff {
	diff := &GraphDiff{
		NodesAdded:   []string{},
		NodesRemoved: []string{},
		EdgesAdded:   []string{},
		EdgesRemoved: []string{},
	}

	for id := range after.Nodes {
		if _, ok := before.Nodes[id]; !ok {
			diff.NodesAdded = append(diff.NodesAdded, id)
		}
	}
	for id := range before.Nodes {
		if _, ok := after.Nodes[id]; !ok {
			diff.NodesRemoved = append(diff.NodesRemoved, id)
		}
	}

	beforeEdges := edgeKeys(before)
	afterEdges := edgeKeys(after)
	for key := range afterEdges {
		if _, ok := beforeEdges[key]; !ok {
			diff.EdgesAdded = append(diff.EdgesAdded, key)
		}
	}
	for key := range beforeEdges {
		if _, ok := afterEdges[key]; !ok {
			diff.EdgesRemoved = append(diff.EdgesRemoved, key)
		}
	}

	sort.Strings(diff.NodesAdded)
	sort.Strings(diff.NodesRemoved)
	sort.Strings(diff.EdgesAdded)
	sort.Strings(diff.EdgesRemoved)
	return diff
}

func edgeKeys(graph *types.Graph) map[string]struct{} {
	keys := make(map[string]struct{}, len(graph.Edges))
	for _, edge := range graph.Edges {
		keys[edge.NaturalKey()] = struct{}{}
	}
	return keys
}
