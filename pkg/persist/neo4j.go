package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/soundprediction/chronograph/pkg/types"
)

// Neo4jStore persists snapshots and changes as nodes in a Neo4j database.
// Records are stored as opaque JSON payloads with indexed scoping fields, so
// the graph database acts purely as durable storage for the engine's
// temporal data, not as the live graph itself.
type Neo4jStore struct {
	client   neo4j.DriverWithContext
	database string
}

// NewNeo4jStore creates a store backed by the given Neo4j instance.
func NewNeo4jStore(uri, username, password, database string) (*Neo4jStore, error) {
	client, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	if database == "" {
		database = "neo4j"
	}
	return &Neo4jStore{client: client, database: database}, nil
}

// CreateIndices creates the indices used by the store's queries.
func (s *Neo4jStore) CreateIndices(ctx context.Context) error {
	session := s.newSession(ctx)
	defer session.Close(ctx)

	queries := []string{
		`CREATE INDEX snapshot_tenant_ts IF NOT EXISTS FOR (s:GraphSnapshot) ON (s.tenant_id, s.ts_nanos)`,
		`CREATE INDEX change_tenant_ts IF NOT EXISTS FOR (c:GraphChange) ON (c.tenant_id, c.ts_nanos)`,
	}
	for _, query := range queries {
		if _, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			_, err := tx.Run(ctx, query, nil)
			return nil, err
		}); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

func (s *Neo4jStore) newSession(ctx context.Context) neo4j.SessionWithContext {
	return s.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
}

// SaveSnapshot implements Store.
func (s *Neo4jStore) SaveSnapshot(ctx context.Context, snapshot *types.Snapshot) error {
	if snapshot.TenantID == "" {
		return types.ErrEmptyTenantID
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	session := s.newSession(ctx)
	defer session.Close(ctx)

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			CREATE (s:GraphSnapshot {
				tenant_id: $tenant_id,
				ts_nanos: $ts_nanos,
				timestamp: $timestamp,
				data: $data
			})
		`
		_, err := tx.Run(ctx, query, map[string]any{
			"tenant_id": snapshot.TenantID,
			"ts_nanos":  snapshot.Timestamp.UnixNano(),
			"timestamp": snapshot.Timestamp.UTC().Format(time.RFC3339Nano),
			"data":      string(data),
		})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// AppendChange implements Store.
func (s *Neo4jStore) AppendChange(ctx context.Context, tenantID string, change *types.Change) error {
	if tenantID == "" {
		return types.ErrEmptyTenantID
	}
	if err := change.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to marshal change: %w", err)
	}

	session := s.newSession(ctx)
	defer session.Close(ctx)

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			CREATE (c:GraphChange {
				tenant_id: $tenant_id,
				change_type: $change_type,
				entity_id: $entity_id,
				ts_nanos: $ts_nanos,
				timestamp: $timestamp,
				data: $data
			})
		`
		_, err := tx.Run(ctx, query, map[string]any{
			"tenant_id":   tenantID,
			"change_type": string(change.Type),
			"entity_id":   change.EntityID,
			"ts_nanos":    change.Timestamp.UnixNano(),
			"timestamp":   change.Timestamp.UTC().Format(time.RFC3339Nano),
			"data":        string(data),
		})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("failed to append change: %w", err)
	}
	return nil
}

// LoadSnapshots implements Store.
func (s *Neo4jStore) LoadSnapshots(ctx context.Context, tenantID string) ([]*types.Snapshot, error) {
	payloads, err := s.loadPayloads(ctx, tenantID, "GraphSnapshot")
	if err != nil {
		return nil, err
	}
	snapshots := make([]*types.Snapshot, 0, len(payloads))
	for _, payload := range payloads {
		var snap types.Snapshot
		if err := json.Unmarshal([]byte(payload), &snap); err != nil {
			return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
		}
		snapshots = append(snapshots, &snap)
	}
	return snapshots, nil
}

// LoadChanges implements Store.
func (s *Neo4jStore) LoadChanges(ctx context.Context, tenantID string) ([]*types.Change, error) {
	payloads, err := s.loadPayloads(ctx, tenantID, "GraphChange")
	if err != nil {
		return nil, err
	}
	changes := make([]*types.Change, 0, len(payloads))
	for _, payload := range payloads {
		var change types.Change
		if err := json.Unmarshal([]byte(payload), &change); err != nil {
			return nil, fmt.Errorf("failed to unmarshal change: %w", err)
		}
		changes = append(changes, &change)
	}
	return changes, nil
}

func (s *Neo4jStore) loadPayloads(ctx context.Context, tenantID, label string) ([]string, error) {
	session := s.newSession(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := fmt.Sprintf(`
			MATCH (n:%s {tenant_id: $tenant_id})
			RETURN n.data AS data
			ORDER BY n.ts_nanos ASC
		`, label)
		res, err := tx.Run(ctx, query, map[string]any{"tenant_id": tenantID})
		if err != nil {
			return nil, err
		}

		var payloads []string
		for res.Next(ctx) {
			if data, found := res.Record().Get("data"); found {
				if str, ok := data.(string); ok {
					payloads = append(payloads, str)
				}
			}
		}
		return payloads, res.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load %s records: %w", label, err)
	}
	return result.([]string), nil
}

// DeleteSnapshotsBefore implements Store.
func (s *Neo4jStore) DeleteSnapshotsBefore(ctx context.Context, tenantID string, cutoff time.Time) (int, error) {
	session := s.newSession(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (s:GraphSnapshot {tenant_id: $tenant_id})
			WHERE s.ts_nanos < $cutoff
			WITH s, count(s) AS removed
			DETACH DELETE s
			RETURN removed
		`
		res, err := tx.Run(ctx, query, map[string]any{
			"tenant_id": tenantID,
			"cutoff":    cutoff.UnixNano(),
		})
		if err != nil {
			return 0, err
		}

		removed := 0
		for res.Next(ctx) {
			removed++
		}
		return removed, res.Err()
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete snapshots: %w", err)
	}
	return result.(int), nil
}

// Close implements Store.
func (s *Neo4jStore) Close() error {
	return s.client.Close(context.Background())
}
