package chronograph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/chronograph/pkg/config"
	"github.com/soundprediction/chronograph/pkg/types"
)

func newTestEngine(t *testing.T, clock func() time.Time) *Engine {
	t.Helper()
	engine, err := NewEngine(&Config{Clock: clock}, nil, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })
	return engine
}

func TestEngineTransformAndGraph(t *testing.T) {
	engine := newTestEngine(t, nil)
	ctx := context.Background()

	result, err := engine.Transform(ctx, "tenant-a",
		AddNode{NodeData: &NodeData{ID: "a", Label: "Alice", NodeType: "person"}}, Observation{})
	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.Empty(t, result.Warnings)

	_, err = engine.Transform(ctx, "tenant-a",
		AddNode{NodeData: &NodeData{ID: "b", Label: "Bob", NodeType: "person"}}, Observation{})
	require.NoError(t, err)
	_, err = engine.Transform(ctx, "tenant-a",
		AddEdge{EdgeData: &EdgeData{SourceID: "a", TargetID: "b", Relation: "knows"}}, Observation{})
	require.NoError(t, err)

	graph, err := engine.Graph(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, 2, graph.NodeCount())
	assert.Equal(t, 1, graph.EdgeCount())

	// The returned graph is a copy.
	graph.Nodes["a"].Label = "mutated"
	fresh, err := engine.Graph(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, "Alice", fresh.Nodes["a"].Label)
}

func TestEngineRejectsEmptyTenant(t *testing.T) {
	engine := newTestEngine(t, nil)
	_, err := engine.Transform(context.Background(), "", DecayEdges{}, Observation{})
	assert.ErrorIs(t, err, types.ErrEmptyTenantID)
}

func TestEngineTenantIsolation(t *testing.T) {
	engine := newTestEngine(t, nil)
	ctx := context.Background()

	_, err := engine.Transform(ctx, "tenant-a",
		AddNode{NodeData: &NodeData{ID: "a", Label: "Alice"}}, Observation{})
	require.NoError(t, err)

	other, err := engine.Graph(ctx, "tenant-b")
	require.NoError(t, err)
	assert.Equal(t, 0, other.NodeCount())
}

func TestEngineJournalsAndReconstructs(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	now := base
	engine := newTestEngine(t, func() time.Time { return now })
	ctx := context.Background()

	_, err := engine.Snapshot(ctx, "tenant-a", nil)
	require.NoError(t, err)

	_, err = engine.Transform(ctx, "tenant-a",
		AddNode{NodeData: &NodeData{ID: "a", Label: "Alice"}}, Observation{})
	require.NoError(t, err)
	now = now.Add(time.Hour)
	_, err = engine.Transform(ctx, "tenant-a",
		AddNode{NodeData: &NodeData{ID: "b", Label: "Bob"}}, Observation{})
	require.NoError(t, err)
	now = now.Add(time.Hour)
	_, err = engine.Transform(ctx, "tenant-a",
		AddEdge{EdgeData: &EdgeData{SourceID: "a", TargetID: "b", Relation: "knows"}}, Observation{})
	require.NoError(t, err)

	// The journal captured every applied change.
	assert.Len(t, engine.Changes("tenant-a", ChangeFilter{}), 3)
	assert.Len(t, engine.EntityHistory("tenant-a", "a"), 1)

	// Mid-history reconstruction sees only the first node.
	past, err := engine.ReconstructAt(ctx, "tenant-a", base.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, past.NodeIDs())

	// Reconstruction at now matches the working graph.
	live, err := engine.Graph(ctx, "tenant-a")
	require.NoError(t, err)
	rebuilt, err := engine.ReconstructAt(ctx, "tenant-a", now)
	require.NoError(t, err)
	assert.Equal(t, live.NodeIDs(), rebuilt.NodeIDs())
	assert.Equal(t, live.EdgeIDs(), rebuilt.EdgeIDs())
}

func TestEngineAnalyzeConvergence(t *testing.T) {
	engine := newTestEngine(t, nil)
	ctx := context.Background()

	report, err := engine.AnalyzeConvergence(ctx, "tenant-a")
	require.NoError(t, err)
	assert.False(t, report.IsConverging)

	for i := 0; i < 4; i++ {
		_, err := engine.Transform(ctx, "tenant-a",
			AddNode{NodeData: &NodeData{ID: fmt.Sprintf("n%d", i), Label: fmt.Sprintf("n%d", i)}}, Observation{})
		require.NoError(t, err)
	}
	// Settle the graph: repeated no-op decay leaves history stable.
	for i := 0; i < 5; i++ {
		_, err := engine.Transform(ctx, "tenant-a", DecayEdges{}, Observation{})
		require.NoError(t, err)
	}

	report, err = engine.AnalyzeConvergence(ctx, "tenant-a")
	require.NoError(t, err)
	assert.True(t, report.IsConverging)
	assert.Equal(t, 4, report.NodeCount)
}

func TestEngineConcurrentTenants(t *testing.T) {
	engine := newTestEngine(t, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		tenant := fmt.Sprintf("tenant-%d", g)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				_, err := engine.Transform(ctx, tenant,
					AddNode{NodeData: &NodeData{ID: fmt.Sprintf("n%d", i), Label: fmt.Sprintf("n%d", i)}}, Observation{})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	for g := 0; g < 4; g++ {
		graph, err := engine.Graph(ctx, fmt.Sprintf("tenant-%d", g))
		require.NoError(t, err)
		assert.Equal(t, 20, graph.NodeCount())
	}
}

func TestEngineCleanupSnapshots(t *testing.T) {
	base := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	now := base.AddDate(0, 0, -10)
	engine, err := NewEngine(&Config{
		SnapshotRetention: 5 * 24 * time.Hour,
		Clock:             func() time.Time { return now },
	}, nil, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	ctx := context.Background()
	for day := 0; day <= 10; day++ {
		now = base.AddDate(0, 0, day-10)
		_, err := engine.Snapshot(ctx, "tenant-a", nil)
		require.NoError(t, err)
	}

	now = base
	removed, err := engine.CleanupSnapshots(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, 5, removed)
	assert.Len(t, engine.Snapshots("tenant-a"), 6)
}

func TestNewEngineFromConfigBadgerBackend(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.Storage.Backend = "badger"
	cfg.Storage.Path = t.TempDir()

	engine, err := NewEngineFromConfig(cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	ctx := context.Background()
	_, err = engine.Transform(ctx, "tenant-a",
		AddNode{NodeData: &NodeData{ID: "a", Label: "Alice"}}, Observation{})
	require.NoError(t, err)
	require.NoError(t, engine.Close())

	// A second engine over the same path recovers the tenant's state.
	reopened, err := NewEngineFromConfig(cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	defer reopened.Close()
	require.NoError(t, reopened.LoadTenant(ctx, "tenant-a"))

	graph, err := reopened.Graph(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, 1, graph.NodeCount())
}

// brokenBackend rejects every change append.
type brokenBackend struct{}

func (brokenBackend) SaveSnapshot(ctx context.Context, snapshot *types.Snapshot) error { return nil }

func (brokenBackend) AppendChange(ctx context.Context, tenantID string, change *types.Change) error {
	return errors.New("backend unavailable")
}

func (brokenBackend) LoadSnapshots(ctx context.Context, tenantID string) ([]*types.Snapshot, error) {
	return nil, nil
}

func (brokenBackend) LoadChanges(ctx context.Context, tenantID string) ([]*types.Change, error) {
	return nil, nil
}

func (brokenBackend) DeleteSnapshotsBefore(ctx context.Context, tenantID string, cutoff time.Time) (int, error) {
	return 0, nil
}

func (brokenBackend) Close() error { return nil }

// A write-through backend that cannot accept appends must not block
// transformations; the in-memory journal stays authoritative.
func TestEngineTransformSurvivesBackendFailure(t *testing.T) {
	engine, err := NewEngine(&Config{}, brokenBackend{}, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })
	ctx := context.Background()

	_, err = engine.Transform(ctx, "tenant-a",
		AddNode{NodeData: &NodeData{ID: "a", Label: "Alice"}}, Observation{})
	require.NoError(t, err)
	_, err = engine.Transform(ctx, "tenant-a",
		AddNode{NodeData: &NodeData{ID: "b", Label: "Bob"}}, Observation{})
	require.NoError(t, err)
	_, err = engine.Transform(ctx, "tenant-a",
		AddEdge{EdgeData: &EdgeData{SourceID: "a", TargetID: "b", Relation: "knows"}}, Observation{})
	require.NoError(t, err)

	assert.Len(t, engine.Changes("tenant-a", ChangeFilter{}), 3)
	graph, err := engine.Graph(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, 2, graph.NodeCount())
	assert.Equal(t, 1, graph.EdgeCount())
}

func TestNewEngineFromConfigUnknownBackend(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.Storage.Backend = "bogus"
	_, err = NewEngineFromConfig(cfg, slog.New(slog.DiscardHandler))
	assert.Error(t, err)
}
