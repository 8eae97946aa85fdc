package chronograph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/soundprediction/chronograph/pkg/analytics"
	"github.com/soundprediction/chronograph/pkg/config"
	"github.com/soundprediction/chronograph/pkg/operator"
	"github.com/soundprediction/chronograph/pkg/persist"
	"github.com/soundprediction/chronograph/pkg/temporal"
	"github.com/soundprediction/chronograph/pkg/types"
)

// Re-exported operator types so callers can drive the engine without
// importing the subpackages.
type (
	Action      = operator.Action
	Observation = operator.Observation
	NodeData    = operator.NodeData
	EdgeData    = operator.EdgeData
	AddNode     = operator.AddNode
	AddEdge     = operator.AddEdge
	DecayEdges  = operator.DecayEdges
	MergeNodes  = operator.MergeNodes
	PruneNode   = operator.PruneNode
	PruneEdge   = operator.PruneEdge

	Result            = operator.Result
	ConvergenceReport = operator.ConvergenceReport
	ChangeFilter      = temporal.ChangeFilter
	GraphDiff         = analytics.GraphDiff
	GrowthMetrics     = analytics.GrowthMetrics
	Pattern           = analytics.Pattern
	TimelineBucket    = analytics.TimelineBucket
)

// ErrNoSnapshot is returned by reconstruction when no snapshot covers the
// requested instant.
var ErrNoSnapshot = temporal.ErrNoSnapshot

// Config holds configuration for the engine.
type Config struct {
	// EdgeHalfLifeDays controls exponential edge weight decay.
	EdgeHalfLifeDays float64
	// EdgePruneThreshold removes decayed edges below this weight.
	EdgePruneThreshold float64
	// SnapshotRetention bounds how long snapshots are kept by cleanup.
	SnapshotRetention time.Duration
	// Workers caps concurrent CPU-bound graph work. 0 means NumCPU.
	Workers int
	// HistoryLimit is how many recent graph states are kept per tenant for
	// convergence analysis. 0 means 10.
	HistoryLimit int
	// Clock supplies the current time. Defaults to time.Now.
	Clock func() time.Time
}

const defaultHistoryLimit = 10

// tenantGraph is one tenant's live working graph; its mutex serializes all
// writes for that tenant.
type tenantGraph struct {
	mu      sync.Mutex
	graph   *types.Graph
	history []*types.Graph
}

// Engine is the main entry point. It owns the update operator, the temporal
// store, and the analytics layer, and serializes writes per tenant while
// letting independent tenants proceed in parallel.
type Engine struct {
	operator *operator.Operator
	store    *temporal.Store
	analyzer *analytics.Analyzer
	backend  persist.Store
	logger   *slog.Logger

	retention    time.Duration
	historyLimit int
	clock        func() time.Time

	// workers bounds CPU-bound graph transformations and analyses.
	workers chan struct{}

	mu      sync.Mutex
	tenants map[string]*tenantGraph
}

// NewEngine creates an engine. backend may be nil for a purely in-memory
// engine; when set, every snapshot and change is written through to it.
func NewEngine(cfg *Config, backend persist.Store, logger *slog.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	historyLimit := cfg.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	retention := cfg.SnapshotRetention
	if retention <= 0 {
		retention = 90 * 24 * time.Hour
	}

	op := operator.New(&operator.Options{
		EdgeHalfLifeDays:   cfg.EdgeHalfLifeDays,
		EdgePruneThreshold: cfg.EdgePruneThreshold,
		Clock:              clock,
	}, logger)
	store := temporal.NewStore(&temporal.Options{Backend: backend, Clock: clock}, logger)

	return &Engine{
		operator:     op,
		store:        store,
		analyzer:     analytics.NewAnalyzer(store, logger),
		backend:      backend,
		logger:       logger,
		retention:    retention,
		historyLimit: historyLimit,
		clock:        clock,
		workers:      make(chan struct{}, workers),
		tenants:      make(map[string]*tenantGraph),
	}, nil
}

// NewEngineFromConfig builds an engine with the storage backend the
// application config selects, wrapping it in a circuit breaker when enabled.
func NewEngineFromConfig(cfg *config.Config, logger *slog.Logger) (*Engine, error) {
	var backend persist.Store
	switch cfg.Storage.Backend {
	case "", "memory":
		backend = nil
	case "badger":
		store, err := persist.NewBadgerStore(cfg.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open badger backend: %w", err)
		}
		backend = store
	case "neo4j":
		store, err := persist.NewNeo4jStore(cfg.Storage.URI, cfg.Storage.Username, cfg.Storage.Password, cfg.Storage.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to open neo4j backend: %w", err)
		}
		backend = store
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	if backend != nil && cfg.CircuitBreaker.Enabled {
		backend = persist.NewBreaker(backend, persist.BreakerSettings{
			MaxRequests:      cfg.CircuitBreaker.MaxRequests,
			Interval:         time.Duration(cfg.CircuitBreaker.Interval) * time.Second,
			Timeout:          time.Duration(cfg.CircuitBreaker.Timeout) * time.Second,
			ReadyToTripRatio: cfg.CircuitBreaker.ReadyToTripRatio,
		})
	}

	return NewEngine(&Config{
		EdgeHalfLifeDays:   cfg.Engine.EdgeHalfLifeDays,
		EdgePruneThreshold: cfg.Engine.EdgePruneThreshold,
		SnapshotRetention:  time.Duration(cfg.Engine.SnapshotRetentionDays) * 24 * time.Hour,
		Workers:            cfg.Engine.Workers,
	}, backend, logger)
}

func (e *Engine) tenant(tenantID string) *tenantGraph {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.tenants[tenantID]
	if !ok {
		t = &tenantGraph{graph: types.NewGraph(tenantID, "")}
		e.tenants[tenantID] = t
	}
	return t
}

// acquireWorker blocks until a CPU slot is free or the context is done.
func (e *Engine) acquireWorker(ctx context.Context) error {
	select {
	case e.workers <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) releaseWorker() {
	<-e.workers
}

// Transform applies one action to the tenant's working graph, journals the
// resulting changes, and returns the operator's result. Writes for the same
// tenant are serialized; the transformation itself runs under the engine's
// CPU worker limit.
func (e *Engine) Transform(ctx context.Context, tenantID string, action Action, obs Observation) (*Result, error) {
	if tenantID == "" {
		return nil, types.ErrEmptyTenantID
	}

	t := e.tenant(tenantID)
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := e.acquireWorker(ctx); err != nil {
		return nil, err
	}
	next, result := e.operator.Apply(t.graph, action, obs)
	e.releaseWorker()

	if len(result.Changes) > 0 {
		if err := e.store.RecordChanges(ctx, tenantID, result.Changes); err != nil {
			return nil, fmt.Errorf("failed to journal changes: %w", err)
		}
	}

	t.graph = next
	t.history = append(t.history, next.Clone())
	if len(t.history) > e.historyLimit {
		t.history = t.history[len(t.history)-e.historyLimit:]
	}
	return result, nil
}

// Graph returns a copy of the tenant's current working graph.
func (e *Engine) Graph(ctx context.Context, tenantID string) (*types.Graph, error) {
	if tenantID == "" {
		return nil, types.ErrEmptyTenantID
	}
	t := e.tenant(tenantID)
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.graph.Clone(), nil
}

// Snapshot records a full snapshot of the tenant's working graph.
func (e *Engine) Snapshot(ctx context.Context, tenantID string, metadata map[string]string) (*types.Snapshot, error) {
	if tenantID == "" {
		return nil, types.ErrEmptyTenantID
	}
	t := e.tenant(tenantID)
	t.mu.Lock()
	defer t.mu.Unlock()
	return e.store.CreateSnapshot(ctx, tenantID, t.graph, metadata)
}

// AnalyzeConvergence reports whether the tenant's graph is structurally
// stabilizing, judged over its recent transformation history. The spectral
// computation runs under the engine's CPU worker limit.
func (e *Engine) AnalyzeConvergence(ctx context.Context, tenantID string) (*ConvergenceReport, error) {
	if tenantID == "" {
		return nil, types.ErrEmptyTenantID
	}

	t := e.tenant(tenantID)
	t.mu.Lock()
	history := make([]*types.Graph, len(t.history))
	copy(history, t.history)
	t.mu.Unlock()

	if err := e.acquireWorker(ctx); err != nil {
		return nil, err
	}
	defer e.releaseWorker()
	return e.operator.AnalyzeConvergence(history), nil
}

// ReconstructAt rebuilds the tenant's graph as it existed at ts.
func (e *Engine) ReconstructAt(ctx context.Context, tenantID string, ts time.Time) (*types.Graph, error) {
	return e.store.ReconstructAt(ctx, tenantID, ts)
}

// Changes returns the tenant's journaled changes matching the filter.
func (e *Engine) Changes(tenantID string, filter ChangeFilter) []*types.Change {
	return e.store.Changes(tenantID, filter)
}

// EntityHistory returns every journaled change for one node or edge.
func (e *Engine) EntityHistory(tenantID, entityID string) []*types.Change {
	return e.store.EntityHistory(tenantID, entityID)
}

// Snapshots returns all stored snapshots for a tenant, oldest first.
func (e *Engine) Snapshots(tenantID string) []*types.Snapshot {
	return e.store.Snapshots(tenantID)
}

// DiffAt diffs the tenant's graph between two instants.
func (e *Engine) DiffAt(ctx context.Context, tenantID string, before, after time.Time) (*GraphDiff, error) {
	return e.analyzer.DiffAt(ctx, tenantID, before, after)
}

// Timeline groups the tenant's changes into hourly buckets.
func (e *Engine) Timeline(ctx context.Context, tenantID string, start, end time.Time) ([]TimelineBucket, error) {
	return e.analyzer.EvolutionTimeline(ctx, tenantID, start, end)
}

// Growth summarizes graph growth across the snapshots inside the window.
func (e *Engine) Growth(ctx context.Context, tenantID string, start, end time.Time) (*GrowthMetrics, error) {
	return e.analyzer.Growth(ctx, tenantID, start, end)
}

// EmergingPatterns finds the relationships most frequently added in a window.
func (e *Engine) EmergingPatterns(ctx context.Context, tenantID string, start, end time.Time) ([]Pattern, error) {
	return e.analyzer.EmergingPatterns(ctx, tenantID, start, end)
}

// CleanupSnapshots drops snapshots older than the configured retention.
func (e *Engine) CleanupSnapshots(ctx context.Context, tenantID string) (int, error) {
	return e.store.CleanupSnapshots(ctx, tenantID, e.retention)
}

// LoadTenant rehydrates a tenant from the durable backend and rebuilds its
// working graph at the current instant. A tenant whose journal predates any
// snapshot gets a baseline snapshot seeded first, so reconstruction has an
// anchor covering the whole journal.
func (e *Engine) LoadTenant(ctx context.Context, tenantID string) error {
	if e.backend == nil {
		return errors.New("no durable backend configured")
	}
	if err := e.store.LoadTenant(ctx, tenantID); err != nil {
		return err
	}

	graph, err := e.store.ReconstructAt(ctx, tenantID, e.clock())
	if errors.Is(err, temporal.ErrNoSnapshot) {
		graph, err = e.seedBaselineSnapshot(ctx, tenantID)
	}
	if err != nil {
		return err
	}

	t := e.tenant(tenantID)
	t.mu.Lock()
	t.graph = graph
	t.history = nil
	t.mu.Unlock()
	return nil
}

// seedBaselineSnapshot writes an empty snapshot timestamped at the tenant's
// earliest journaled change. The change log is append-only and complete, so
// empty-at-first-change is the tenant's true starting state.
func (e *Engine) seedBaselineSnapshot(ctx context.Context, tenantID string) (*types.Graph, error) {
	first := e.store.Changes(tenantID, temporal.ChangeFilter{Limit: 1})
	if len(first) == 0 {
		return types.NewGraph(tenantID, ""), nil
	}
	_, err := e.store.CreateSnapshotAt(ctx, tenantID, types.NewGraph(tenantID, ""),
		first[0].Timestamp, map[string]string{"reason": "baseline"})
	if err != nil {
		return nil, err
	}
	return e.store.ReconstructAt(ctx, tenantID, e.clock())
}

// Store exposes the temporal store, mainly for export tooling.
func (e *Engine) Store() *temporal.Store {
	return e.store
}

// Close releases the durable backend, if any.
func (e *Engine) Close() error {
	if e.backend == nil {
		return nil
	}
	return e.backend.Close()
}
