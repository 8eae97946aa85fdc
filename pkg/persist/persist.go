// Package persist provides durable storage collaborators for the temporal
// store. The engine itself is storage-backend agnostic: it hands out plain
// snapshot and change records, and a persist.Store writes them through to
// whatever backend is configured. The in-memory journal stays authoritative;
// a persistence failure is reported but never blocks the engine.
package persist

import (
	"context"
	"errors"
	"time"

	"github.com/soundprediction/chronograph/pkg/types"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("persist: store is closed")

// Store is a durable backend for per-tenant snapshots and change logs.
type Store interface {
	// SaveSnapshot persists a snapshot.
	SaveSnapshot(ctx context.Context, snapshot *types.Snapshot) error

	// AppendChange persists one change-log entry for a tenant.
	AppendChange(ctx context.Context, tenantID string, change *types.Change) error

	// LoadSnapshots returns all persisted snapshots for a tenant in
	// timestamp order.
	LoadSnapshots(ctx context.Context, tenantID string) ([]*types.Snapshot, error)

	// LoadChanges returns a tenant's persisted change log in timestamp order.
	LoadChanges(ctx context.Context, tenantID string) ([]*types.Change, error)

	// DeleteSnapshotsBefore removes persisted snapshots older than cutoff
	// and returns how many were deleted. Changes are never deleted.
	DeleteSnapshotsBefore(ctx context.Context, tenantID string, cutoff time.Time) (int, error)

	// Close releases backend resources.
	Close() error
}
