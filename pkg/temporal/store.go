package temporal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/soundprediction/chronograph/pkg/persist"
	"github.com/soundprediction/chronograph/pkg/types"
)

// ErrNoSnapshot is returned when a tenant has no snapshot covering the
// requested instant.
var ErrNoSnapshot = errors.New("no snapshot available")

// tenantState holds one tenant's temporal data. Snapshots are kept sorted by
// timestamp; the change log is sorted by timestamp with insertion order
// preserved among equal timestamps.
type tenantState struct {
	mu        sync.RWMutex
	snapshots []*types.Snapshot
	changes   []*types.Change
}

// Options configures a Store.
type Options struct {
	// Backend, when set, receives a write-through copy of every snapshot
	// and change, and is used to rehydrate tenants on LoadTenant.
	Backend persist.Store
	// Clock supplies timestamps for snapshots whose time is not given.
	// Defaults to time.Now.
	Clock func() time.Time
}

// Store is an in-memory temporal store with optional durable write-through.
// All methods are safe for concurrent use; writes for different tenants do
// not contend with each other.
type Store struct {
	mu      sync.RWMutex
	tenants map[string]*tenantState

	backend persist.Store
	clock   func() time.Time
	logger  *slog.Logger
}

// NewStore creates a temporal store.
func NewStore(opts *Options, logger *slog.Logger) *Store {
	if opts == nil {
		opts = &Options{}
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		tenants: make(map[string]*tenantState),
		backend: opts.Backend,
		clock:   clock,
		logger:  logger,
	}
}

func (s *Store) tenant(tenantID string) *tenantState {
	s.mu.RLock()
	state, ok := s.tenants[tenantID]
	s.mu.RUnlock()
	if ok {
		return state
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok = s.tenants[tenantID]; ok {
		return state
	}
	state = &tenantState{}
	s.tenants[tenantID] = state
	return state
}

// CreateSnapshot records a full copy of the graph at the current clock time
// and returns the stored snapshot.
func (s *Store) CreateSnapshot(ctx context.Context, tenantID string, graph *types.Graph, metadata map[string]string) (*types.Snapshot, error) {
	return s.CreateSnapshotAt(ctx, tenantID, graph, s.clock(), metadata)
}

// CreateSnapshotAt records a full copy of the graph at an explicit timestamp.
func (s *Store) CreateSnapshotAt(ctx context.Context, tenantID string, graph *types.Graph, ts time.Time, metadata map[string]string) (*types.Snapshot, error) {
	if tenantID == "" {
		return nil, types.ErrEmptyTenantID
	}
	if graph == nil {
		return nil, errors.New("nil graph")
	}

	snapshot := &types.Snapshot{
		TenantID:  tenantID,
		Timestamp: ts,
		Graph:     graph.Clone(),
		Metadata:  metadata,
	}

	state := s.tenant(tenantID)
	state.mu.Lock()
	state.snapshots = insertSnapshot(state.snapshots, snapshot)
	state.mu.Unlock()

	if s.backend != nil {
		if err := s.backend.SaveSnapshot(ctx, snapshot); err != nil {
			return nil, fmt.Errorf("failed to persist snapshot: %w", err)
		}
	}

	s.logger.Debug("snapshot created",
		"tenant_id", tenantID,
		"timestamp", ts,
		"nodes", snapshot.Graph.NodeCount(),
		"edges", snapshot.Graph.EdgeCount())
	return snapshot, nil
}

// insertSnapshot keeps snapshots ordered by timestamp, newest last among
// equal timestamps.
func insertSnapshot(snapshots []*types.Snapshot, snap *types.Snapshot) []*types.Snapshot {
	i := sort.Search(len(snapshots), func(i int) bool {
		return snapshots[i].Timestamp.After(snap.Timestamp)
	})
	snapshots = append(snapshots, nil)
	copy(snapshots[i+1:], snapshots[i:])
	snapshots[i] = snap
	return snapshots
}

// RecordChange appends a change to the tenant's log.
func (s *Store) RecordChange(ctx context.Context, tenantID string, change *types.Change) error {
	if tenantID == "" {
		return types.ErrEmptyTenantID
	}
	if err := change.Validate(); err != nil {
		return err
	}

	change = change.Clone()
	state := s.tenant(tenantID)
	state.mu.Lock()
	state.changes = insertChange(state.changes, change)
	state.mu.Unlock()

	// The in-memory journal is authoritative; a backend write-through
	// failure is logged, not surfaced.
	if s.backend != nil {
		if err := s.backend.AppendChange(ctx, tenantID, change); err != nil {
			s.logger.Warn("change write-through failed",
				"tenant_id", tenantID,
				"change_type", change.Type,
				"entity_id", change.EntityID,
				"error", err)
		}
	}
	return nil
}

// insertChange keeps the log ordered by timestamp. A change carrying an
// earlier timestamp than the tail is placed at its chronological position,
// after any existing changes with the same timestamp, so the materialized
// log does not depend on arrival order.
func insertChange(changes []*types.Change, change *types.Change) []*types.Change {
	i := sort.Search(len(changes), func(i int) bool {
		return changes[i].Timestamp.After(change.Timestamp)
	})
	changes = append(changes, nil)
	copy(changes[i+1:], changes[i:])
	changes[i] = change
	return changes
}

// RecordChanges appends a batch of changes.
func (s *Store) RecordChanges(ctx context.Context, tenantID string, changes []*types.Change) error {
	for _, change := range changes {
		if err := s.RecordChange(ctx, tenantID, change); err != nil {
			return err
		}
	}
	return nil
}

// Snapshots returns copies of all snapshots for a tenant, oldest first.
func (s *Store) Snapshots(tenantID string) []*types.Snapshot {
	state := s.tenant(tenantID)
	state.mu.RLock()
	defer state.mu.RUnlock()

	out := make([]*types.Snapshot, len(state.snapshots))
	for i, snap := range state.snapshots {
		out[i] = snap.Clone()
	}
	return out
}

// LatestSnapshot returns a copy of the most recent snapshot, or ErrNoSnapshot.
func (s *Store) LatestSnapshot(tenantID string) (*types.Snapshot, error) {
	state := s.tenant(tenantID)
	state.mu.RLock()
	defer state.mu.RUnlock()

	if len(state.snapshots) == 0 {
		return nil, ErrNoSnapshot
	}
	return state.snapshots[len(state.snapshots)-1].Clone(), nil
}

// SnapshotAtTime returns a copy of the latest snapshot taken at or before ts,
// or ErrNoSnapshot if the tenant has none that early.
func (s *Store) SnapshotAtTime(tenantID string, ts time.Time) (*types.Snapshot, error) {
	state := s.tenant(tenantID)
	state.mu.RLock()
	defer state.mu.RUnlock()

	snap := snapshotAtOrBefore(state.snapshots, ts)
	if snap == nil {
		return nil, ErrNoSnapshot
	}
	return snap.Clone(), nil
}

func snapshotAtOrBefore(snapshots []*types.Snapshot, ts time.Time) *types.Snapshot {
	i := sort.Search(len(snapshots), func(i int) bool {
		return snapshots[i].Timestamp.After(ts)
	})
	if i == 0 {
		return nil
	}
	return snapshots[i-1]
}

// ChangeFilter restricts which changes a query returns. Zero-value fields
// match everything; set fields combine conjunctively.
type ChangeFilter struct {
	Since    *time.Time
	Until    *time.Time
	Types    []types.ChangeType
	EntityID string
	Limit    int
}

func (f ChangeFilter) matches(change *types.Change) bool {
	if f.Since != nil && change.Timestamp.Before(*f.Since) {
		return false
	}
	if f.Until != nil && change.Timestamp.After(*f.Until) {
		return false
	}
	if f.EntityID != "" && change.EntityID != f.EntityID {
		return false
	}
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if change.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Changes returns copies of the tenant's changes matching the filter, in
// chronological order.
func (s *Store) Changes(tenantID string, filter ChangeFilter) []*types.Change {
	state := s.tenant(tenantID)
	state.mu.RLock()
	defer state.mu.RUnlock()

	var out []*types.Change
	for _, change := range state.changes {
		if !filter.matches(change) {
			continue
		}
		out = append(out, change.Clone())
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out
}

// EntityHistory returns every recorded change for a single node or edge,
// oldest first.
func (s *Store) EntityHistory(tenantID, entityID string) []*types.Change {
	return s.Changes(tenantID, ChangeFilter{EntityID: entityID})
}

// ReconstructAt rebuilds the graph as it existed at the given instant. It
// starts from the latest snapshot taken at or before ts and replays every
// change recorded from the snapshot's timestamp through ts. Without a
// covering snapshot there is no known starting state and ErrNoSnapshot is
// returned; the store never reconstructs from an empty graph.
func (s *Store) ReconstructAt(ctx context.Context, tenantID string, ts time.Time) (*types.Graph, error) {
	if tenantID == "" {
		return nil, types.ErrEmptyTenantID
	}

	state := s.tenant(tenantID)
	state.mu.RLock()
	defer state.mu.RUnlock()

	snap := snapshotAtOrBefore(state.snapshots, ts)
	if snap == nil {
		return nil, ErrNoSnapshot
	}
	graph := snap.Graph.Clone()
	from := snap.Timestamp

	replayed := 0
	for _, change := range state.changes {
		if change.Timestamp.Before(from) || change.Timestamp.After(ts) {
			continue
		}
		applyChange(graph, change)
		replayed++
	}

	s.logger.Debug("graph reconstructed",
		"tenant_id", tenantID,
		"timestamp", ts,
		"changes_replayed", replayed,
		"nodes", graph.NodeCount(),
		"edges", graph.EdgeCount())
	return graph, nil
}

// applyChange mutates graph according to a single logged change. Changes
// carry the full post-state of the entity they touch, so replay never
// recomputes anything time-dependent.
func applyChange(graph *types.Graph, change *types.Change) {
	switch change.Type {
	case types.ChangeNodeAdded, types.ChangeNodeUpdated:
		if change.New != nil && change.New.Node != nil {
			node := change.New.Node.Clone()
			graph.Nodes[node.ID] = node
		}
	case types.ChangeNodeRemoved:
		delete(graph.Nodes, change.EntityID)
	case types.ChangeEdgeAdded, types.ChangeEdgeUpdated:
		if change.New != nil && change.New.Edge != nil {
			edge := change.New.Edge.Clone()
			graph.Edges[edge.ID] = edge
		}
	case types.ChangeEdgeRemoved:
		delete(graph.Edges, change.EntityID)
	}
	if change.Timestamp.After(graph.LastUpdated) {
		graph.LastUpdated = change.Timestamp
	}
}

// CleanupSnapshots drops snapshots older than the retention window. Changes
// are never dropped. Returns the number of snapshots removed.
func (s *Store) CleanupSnapshots(ctx context.Context, tenantID string, retention time.Duration) (int, error) {
	cutoff := s.clock().Add(-retention)

	state := s.tenant(tenantID)
	state.mu.Lock()
	kept := state.snapshots[:0]
	removed := 0
	for _, snap := range state.snapshots {
		if snap.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, snap)
	}
	state.snapshots = kept
	state.mu.Unlock()

	if s.backend != nil {
		if _, err := s.backend.DeleteSnapshotsBefore(ctx, tenantID, cutoff); err != nil {
			return removed, fmt.Errorf("failed to delete persisted snapshots: %w", err)
		}
	}

	if removed > 0 {
		s.logger.Info("snapshots cleaned up",
			"tenant_id", tenantID,
			"removed", removed,
			"cutoff", cutoff)
	}
	return removed, nil
}

// LoadTenant rehydrates a tenant's snapshots and changes from the durable
// backend, replacing any in-memory state for that tenant.
func (s *Store) LoadTenant(ctx context.Context, tenantID string) error {
	if s.backend == nil {
		return errors.New("no durable backend configured")
	}

	snapshots, err := s.backend.LoadSnapshots(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("failed to load snapshots: %w", err)
	}
	changes, err := s.backend.LoadChanges(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("failed to load changes: %w", err)
	}

	state := s.tenant(tenantID)
	state.mu.Lock()
	state.snapshots = nil
	state.changes = nil
	for _, snap := range snapshots {
		state.snapshots = insertSnapshot(state.snapshots, snap)
	}
	for _, change := range changes {
		state.changes = insertChange(state.changes, change)
	}
	state.mu.Unlock()

	s.logger.Info("tenant rehydrated",
		"tenant_id", tenantID,
		"snapshots", len(snapshots),
		"changes", len(changes))
	return nil
}
