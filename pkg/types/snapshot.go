package types

import "time"

// Snapshot is an immutable full copy of a tenant's graph at a point in time.
// Snapshots are never mutated after creation; retention cleanup may purge
// them, but the change log is kept independently.
type Snapshot struct {
	TenantID  string            `json:"tenant_id"`
	Timestamp time.Time         `json:"timestamp"`
	Graph     *Graph            `json:"graph"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Clone returns a deep copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := &Snapshot{
		TenantID:  s.TenantID,
		Timestamp: s.Timestamp,
		Graph:     s.Graph.Clone(),
	}
	if s.Metadata != nil {
		out.Metadata = make(map[string]string, len(s.Metadata))
		for k, v := range s.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}
