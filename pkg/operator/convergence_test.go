package operator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/chronograph/pkg/types"
)

func TestAnalyzeConvergenceInsufficientHistory(t *testing.T) {
	op := newTestOperator(nil)

	report := op.AnalyzeConvergence([]*types.Graph{types.NewGraph("t", "")})

	assert.False(t, report.IsConverging)
	assert.Equal(t, ReasonInsufficientHistory, report.Reason)
	assert.Equal(t, 1, report.HistoryLength)
}

func TestAnalyzeConvergenceStableHistory(t *testing.T) {
	op := newTestOperator(nil)
	g := seedGraph(op)

	// Identical consecutive states: zero churn, tiny spectrum.
	report := op.AnalyzeConvergence([]*types.Graph{g.Clone(), g.Clone(), g.Clone()})

	require.Empty(t, report.Reason)
	assert.Zero(t, report.NodeChurn)
	assert.Zero(t, report.EdgeChurn)
	assert.Less(t, report.SpectralGap, spectralGapThreshold)
	assert.True(t, report.IsConverging)
	assert.Equal(t, 2, report.NodeCount)
	assert.Equal(t, 1, report.EdgeCount)
}

func TestAnalyzeConvergenceChurningHistory(t *testing.T) {
	op := newTestOperator(nil)

	history := make([]*types.Graph, 0, 3)
	g := types.NewGraph("t", "")
	history = append(history, g.Clone())
	for step := 0; step < 2; step++ {
		for i := 0; i < 5; i++ {
			id := string(rune('a'+step*5+i)) + "x"
			g, _ = op.Apply(g, AddNode{}, Observation{NodeData: &NodeData{ID: id, Label: id}})
		}
		history = append(history, g.Clone())
	}

	report := op.AnalyzeConvergence(history)

	assert.InDelta(t, 5.0, report.NodeChurn, 1e-9)
	assert.False(t, report.IsConverging)
}

func TestSpectralGapDegradesToZero(t *testing.T) {
	op := newTestOperator(nil)

	// Fewer than two nodes: gap is defined as 0.
	single := types.NewGraph("t", "")
	single.Nodes["a"] = &types.Node{ID: "a", Label: "A"}
	assert.Zero(t, op.spectralGap(single))
	assert.Zero(t, op.spectralGap(types.NewGraph("t", "")))
}

func TestSpectralGapDominantEigenvalue(t *testing.T) {
	op := newTestOperator(nil)

	// A symmetric two-node graph with weight w has eigenvalues +w and -w:
	// equal magnitudes, so the gap is 0. Adding a third isolated node keeps
	// the spectrum and pads with a zero eigenvalue.
	g := types.NewGraph("t", "")
	for _, id := range []string{"a", "b", "c"} {
		g.Nodes[id] = &types.Node{ID: id, Label: id}
	}
	ab := types.EdgeID("a", "rel", "b")
	ba := types.EdgeID("b", "rel", "a")
	g.Edges[ab] = &types.Edge{ID: ab, SourceID: "a", TargetID: "b", Relation: "rel", Weight: 0.8}
	g.Edges[ba] = &types.Edge{ID: ba, SourceID: "b", TargetID: "a", Relation: "rel", Weight: 0.8}

	assert.InDelta(t, 0.0, op.spectralGap(g), 1e-9)
}
