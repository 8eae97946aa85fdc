package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/chronograph/pkg/temporal"
	"github.com/soundprediction/chronograph/pkg/types"
)

const testTenant = "tenant-a"

func newTestAnalyzer(t *testing.T) (*Analyzer, *temporal.Store) {
	t.Helper()
	store := temporal.NewStore(nil, slog.New(slog.DiscardHandler))
	return NewAnalyzer(store, slog.New(slog.DiscardHandler)), store
}

func recordEdgeAdded(t *testing.T, store *temporal.Store, source, target string, ts time.Time) {
	t.Helper()
	id := types.EdgeID(source, "knows", target)
	err := store.RecordChange(context.Background(), testTenant, &types.Change{
		Type:       types.ChangeEdgeAdded,
		Timestamp:  ts,
		EntityID:   id,
		EntityType: types.EntityEdge,
		New: &types.EntityState{Edge: &types.Edge{
			ID: id, SourceID: source, TargetID: target, Relation: "knows", Weight: types.DefaultWeight,
		}},
	})
	require.NoError(t, err)
}

func recordNodeAdded(t *testing.T, store *temporal.Store, id string, ts time.Time) {
	t.Helper()
	err := store.RecordChange(context.Background(), testTenant, &types.Change{
		Type:       types.ChangeNodeAdded,
		Timestamp:  ts,
		EntityID:   id,
		EntityType: types.EntityNode,
		New:        &types.EntityState{Node: &types.Node{ID: id, Label: id, NodeType: "entity"}},
	})
	require.NoError(t, err)
}

func TestEvolutionTimelineBucketsByHour(t *testing.T) {
	analyzer, store := newTestAnalyzer(t)
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	recordNodeAdded(t, store, "a", base.Add(5*time.Minute))
	recordNodeAdded(t, store, "b", base.Add(40*time.Minute))
	recordEdgeAdded(t, store, "a", "b", base.Add(50*time.Minute))
	// Same entity touched twice within the hour counts once for entities.
	recordNodeAdded(t, store, "a", base.Add(55*time.Minute))
	recordNodeAdded(t, store, "c", base.Add(2*time.Hour))

	timeline, err := analyzer.EvolutionTimeline(context.Background(), testTenant, base, base.Add(3*time.Hour))
	require.NoError(t, err)
	require.Len(t, timeline, 2)

	first := timeline[0]
	assert.Equal(t, base, first.Timestamp)
	assert.Equal(t, 4, first.TotalChanges)
	assert.Equal(t, 3, first.ByType[types.ChangeNodeAdded])
	assert.Equal(t, 1, first.ByType[types.ChangeEdgeAdded])
	assert.Equal(t, 3, first.EntitiesTouched)

	second := timeline[1]
	assert.Equal(t, base.Add(2*time.Hour), second.Timestamp)
	assert.Equal(t, 1, second.TotalChanges)
}

func TestEvolutionTimelineEmptyWindow(t *testing.T) {
	analyzer, _ := newTestAnalyzer(t)
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	timeline, err := analyzer.EvolutionTimeline(context.Background(), testTenant, base, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, timeline)
}

func snapshotGraph(nodes int, fullyConnected bool) *types.Graph {
	graph := types.NewGraph(testTenant, "proj")
	ids := make([]string, nodes)
	for i := range ids {
		ids[i] = fmt.Sprintf("n%d", i)
		graph.Nodes[ids[i]] = &types.Node{ID: ids[i], Label: ids[i], NodeType: "entity"}
	}
	if fullyConnected {
		for i := 0; i < nodes; i++ {
			for j := i + 1; j < nodes; j++ {
				id := types.EdgeID(ids[i], "knows", ids[j])
				graph.Edges[id] = &types.Edge{
					ID: id, SourceID: ids[i], TargetID: ids[j], Relation: "knows", Weight: types.DefaultWeight,
				}
			}
		}
	}
	return graph
}

func TestGrowthAcrossSnapshots(t *testing.T) {
	analyzer, store := newTestAnalyzer(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	_, err := store.CreateSnapshotAt(ctx, testTenant, snapshotGraph(0, false), base, nil)
	require.NoError(t, err)
	_, err = store.CreateSnapshotAt(ctx, testTenant, snapshotGraph(2, false), base.AddDate(0, 0, 1), nil)
	require.NoError(t, err)
	_, err = store.CreateSnapshotAt(ctx, testTenant, snapshotGraph(4, true), base.AddDate(0, 0, 2), nil)
	require.NoError(t, err)

	metrics, err := analyzer.Growth(ctx, testTenant, base, base.AddDate(0, 0, 2))
	require.NoError(t, err)

	assert.Equal(t, 0, metrics.NodesStart)
	assert.Equal(t, 4, metrics.NodesEnd)
	assert.Equal(t, 4, metrics.NodeGrowth)
	// Starting from zero the relative rate degrades to 0.
	assert.Equal(t, 0.0, metrics.NodeGrowthRate)
	assert.Equal(t, 6, metrics.EdgesEnd)
	assert.InDelta(t, 2.0, metrics.NodesPerDay, 1e-9)
	assert.InDelta(t, 3.0, metrics.EdgesPerDay, 1e-9)
	assert.InDelta(t, 0.0, metrics.DensityStart, 1e-9)
	// Four nodes with all six undirected pairs present.
	assert.InDelta(t, 1.0, metrics.DensityEnd, 1e-9)
}

// Growth works off reconstructed states, so journaled changes after the last
// snapshot still count toward the window end.
func TestGrowthFromSnapshotAndChanges(t *testing.T) {
	analyzer, store := newTestAnalyzer(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	_, err := store.CreateSnapshotAt(ctx, testTenant, snapshotGraph(1, false), base, nil)
	require.NoError(t, err)
	recordNodeAdded(t, store, "n1", base.AddDate(0, 0, 1))
	recordEdgeAdded(t, store, "n0", "n1", base.AddDate(0, 0, 1))

	metrics, err := analyzer.Growth(ctx, testTenant, base, base.AddDate(0, 0, 2))
	require.NoError(t, err)
	assert.Equal(t, 1, metrics.NodesStart)
	assert.Equal(t, 2, metrics.NodesEnd)
	assert.Equal(t, 1, metrics.NodeGrowth)
	assert.Equal(t, 1, metrics.EdgeGrowth)
	assert.InDelta(t, 0.5, metrics.NodesPerDay, 1e-9)
	assert.InDelta(t, 0.5, metrics.EdgesPerDay, 1e-9)
	assert.InDelta(t, 0.0, metrics.DensityStart, 1e-9)
	assert.InDelta(t, 1.0, metrics.DensityEnd, 1e-9)
}

func TestGrowthRelativeRate(t *testing.T) {
	analyzer, store := newTestAnalyzer(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	_, err := store.CreateSnapshotAt(ctx, testTenant, snapshotGraph(2, false), base, nil)
	require.NoError(t, err)
	_, err = store.CreateSnapshotAt(ctx, testTenant, snapshotGraph(3, false), base.AddDate(0, 0, 1), nil)
	require.NoError(t, err)

	metrics, err := analyzer.Growth(ctx, testTenant, base, base.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.InDelta(t, 0.5, metrics.NodeGrowthRate, 1e-9)
}

func TestGrowthInsufficientData(t *testing.T) {
	analyzer, store := newTestAnalyzer(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	// No snapshot at all: neither window end can be reconstructed.
	_, err := analyzer.Growth(ctx, testTenant, base, base.AddDate(0, 0, 1))
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = store.CreateSnapshotAt(ctx, testTenant, snapshotGraph(2, false), base, nil)
	require.NoError(t, err)

	// A window opening before the first snapshot has no start state.
	_, err = analyzer.Growth(ctx, testTenant, base.AddDate(0, 0, -1), base)
	assert.ErrorIs(t, err, ErrInsufficientData)

	// One snapshot covering both ends is enough; a quiet tenant reports
	// zero growth rather than an error.
	metrics, err := analyzer.Growth(ctx, testTenant, base, base.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 0, metrics.NodeGrowth)
	assert.Equal(t, 0, metrics.EdgeGrowth)
}

func TestEmergingPatterns(t *testing.T) {
	analyzer, store := newTestAnalyzer(t)
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	// Five distinct sources all connecting to the same target. Each added
	// edge counts for both endpoints, so x accumulates five occurrences.
	sources := []string{"a", "b", "c", "d", "e"}
	for i, source := range sources {
		recordEdgeAdded(t, store, source, "x", base.Add(time.Duration(i)*time.Minute))
	}

	patterns, err := analyzer.EmergingPatterns(context.Background(), testTenant, base, base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, patterns, 6)

	top := patterns[0]
	assert.Equal(t, "x", top.EntityID)
	assert.Equal(t, 5, top.Occurrences)
	assert.InDelta(t, 0.5, top.Confidence, 1e-9)
	assert.Equal(t, base, top.FirstSeen)
	assert.Equal(t, base.Add(4*time.Minute), top.LastSeen)

	// Each source participated once.
	assert.Equal(t, "a", patterns[1].EntityID)
	assert.Equal(t, 1, patterns[1].Occurrences)
	assert.InDelta(t, 0.1, patterns[1].Confidence, 1e-9)
}

func TestEmergingPatternsCapAndSaturation(t *testing.T) {
	analyzer, store := newTestAnalyzer(t)
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	// One dominant pair with 15 additions plus twelve singleton pairs.
	for i := 0; i < 15; i++ {
		recordEdgeAdded(t, store, "hub", "x", base.Add(time.Duration(i)*time.Second))
	}
	for i := 0; i < 12; i++ {
		recordEdgeAdded(t, store, fmt.Sprintf("s%d", i), fmt.Sprintf("t%d", i), base.Add(time.Minute))
	}

	patterns, err := analyzer.EmergingPatterns(context.Background(), testTenant, base, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, patterns, 10)
	// Both endpoints of the dominant pair saturate; the tie breaks by ID.
	assert.Equal(t, "hub", patterns[0].EntityID)
	assert.Equal(t, 15, patterns[0].Occurrences)
	assert.Equal(t, 1.0, patterns[0].Confidence)
	assert.Equal(t, "x", patterns[1].EntityID)
	assert.Equal(t, 1.0, patterns[1].Confidence)
	// Ties among the singletons break by entity ID too.
	assert.Less(t, patterns[2].EntityID, patterns[3].EntityID)
}

func TestDiffAt(t *testing.T) {
	analyzer, store := newTestAnalyzer(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	_, err := store.CreateSnapshotAt(ctx, testTenant, types.NewGraph(testTenant, "proj"), base, nil)
	require.NoError(t, err)
	recordNodeAdded(t, store, "a", base)
	recordNodeAdded(t, store, "b", base.Add(time.Hour))
	recordEdgeAdded(t, store, "a", "b", base.Add(2*time.Hour))

	diff, err := analyzer.DiffAt(ctx, testTenant, base.Add(30*time.Minute), base.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, diff.NodesAdded)
	assert.Empty(t, diff.NodesRemoved)
	assert.Equal(t, []string{types.EdgeID("a", "knows", "b")}, diff.EdgesAdded)
}

func TestDiffAtWithoutSnapshot(t *testing.T) {
	analyzer, store := newTestAnalyzer(t)
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	recordNodeAdded(t, store, "a", base)

	_, err := analyzer.DiffAt(context.Background(), testTenant, base, base.Add(time.Hour))
	assert.ErrorIs(t, err, temporal.ErrNoSnapshot)
}
