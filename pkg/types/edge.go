package types

import "time"

// EdgeID derives the natural key of an edge from its (source, relation,
// target) triple. Re-deriving the key from the same triple always yields the
// same id, so at most one edge can exist per triple.
func EdgeID(sourceID, relation, targetID string) string {
	return sourceID + "_" + relation + "_" + targetID
}

// Edge is a directed, weighted relationship between two nodes.
type Edge struct {
	ID            string    `json:"id"`
	SourceID      string    `json:"source_id"`
	TargetID      string    `json:"target_id"`
	Relation      string    `json:"relation"`
	Weight        float64   `json:"weight"`
	Confidence    float64   `json:"confidence"`
	EvidenceCount int       `json:"evidence_count"`
	CreatedAt     time.Time `json:"created_at"`
	LastUpdated   time.Time `json:"last_updated"`
}

// Validate checks that the edge carries the fields required for insertion.
func (e *Edge) Validate() error {
	if e.SourceID == "" {
		return ErrEmptyEdgeSource
	}
	if e.TargetID == "" {
		return ErrEmptyEdgeTarget
	}
	if e.Relation == "" {
		return ErrEmptyRelation
	}
	return nil
}

// NaturalKey returns the edge id derived from the current endpoints and
// relation. It equals ID unless an endpoint has been rewritten without
// re-deriving the key.
func (e *Edge) NaturalKey() string {
	return EdgeID(e.SourceID, e.Relation, e.TargetID)
}

// Touches reports whether the edge has the given node as source or target.
func (e *Edge) Touches(nodeID string) bool {
	return e.SourceID == nodeID || e.TargetID == nodeID
}

// Clone returns a copy of the edge.
func (e *Edge) Clone() *Edge {
	if e == nil {
		return nil
	}
	out := *e
	return &out
}
