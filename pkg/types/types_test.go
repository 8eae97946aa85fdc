package types

import (
	"testing"
	"time"
)

func TestNodeValidation(t *testing.T) {
	tests := []struct {
		name    string
		node    Node
		wantErr error
	}{
		{
			name:    "valid node",
			node:    Node{ID: "n1", Label: "Alice"},
			wantErr: nil,
		},
		{
			name:    "empty id",
			node:    Node{Label: "Alice"},
			wantErr: ErrEmptyNodeID,
		},
		{
			name:    "empty label",
			node:    Node{ID: "n1"},
			wantErr: ErrEmptyLabel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.node.Validate()
			if err != tt.wantErr {
				t.Errorf("Node.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEdgeValidation(t *testing.T) {
	tests := []struct {
		name    string
		edge    Edge
		wantErr error
	}{
		{
			name:    "valid edge",
			edge:    Edge{SourceID: "a", TargetID: "b", Relation: "knows"},
			wantErr: nil,
		},
		{
			name:    "empty source",
			edge:    Edge{TargetID: "b", Relation: "knows"},
			wantErr: ErrEmptyEdgeSource,
		},
		{
			name:    "empty target",
			edge:    Edge{SourceID: "a", Relation: "knows"},
			wantErr: ErrEmptyEdgeTarget,
		},
		{
			name:    "empty relation",
			edge:    Edge{SourceID: "a", TargetID: "b"},
			wantErr: ErrEmptyRelation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.edge.Validate()
			if err != tt.wantErr {
				t.Errorf("Edge.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEdgeID(t *testing.T) {
	got := EdgeID("alice", "knows", "bob")
	want := "alice_knows_bob"
	if got != want {
		t.Errorf("EdgeID() = %q, want %q", got, want)
	}

	// The natural key must be stable under re-derivation.
	edge := Edge{ID: got, SourceID: "alice", TargetID: "bob", Relation: "knows"}
	if edge.NaturalKey() != got {
		t.Errorf("NaturalKey() = %q, want %q", edge.NaturalKey(), got)
	}
}

func TestChangeTypeValid(t *testing.T) {
	valid := []ChangeType{
		ChangeNodeAdded, ChangeNodeRemoved, ChangeNodeUpdated,
		ChangeEdgeAdded, ChangeEdgeRemoved, ChangeEdgeUpdated,
	}
	for _, ct := range valid {
		if !ct.Valid() {
			t.Errorf("ChangeType(%q).Valid() = false, want true", ct)
		}
	}
	if ChangeType("graph_rebuilt").Valid() {
		t.Error("unknown change type reported valid")
	}
}

func TestChangeValidation(t *testing.T) {
	tests := []struct {
		name    string
		change  Change
		wantErr error
	}{
		{
			name:    "valid change",
			change:  Change{Type: ChangeNodeAdded, EntityID: "n1", EntityType: EntityNode},
			wantErr: nil,
		},
		{
			name:    "bad type",
			change:  Change{Type: "exploded", EntityID: "n1"},
			wantErr: ErrInvalidChangeType,
		},
		{
			name:    "empty entity id",
			change:  Change{Type: ChangeEdgeAdded},
			wantErr: ErrEmptyEntityID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.change.Validate()
			if err != tt.wantErr {
				t.Errorf("Change.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSnapshotCloneIndependence(t *testing.T) {
	g := NewGraph("tenant-1", "project-1")
	g.Nodes["n1"] = &Node{ID: "n1", Label: "Alice", Importance: 0.5}

	snap := &Snapshot{
		TenantID:  "tenant-1",
		Timestamp: time.Now().UTC(),
		Graph:     g,
		Metadata:  map[string]string{"reason": "test"},
	}

	clone := snap.Clone()
	clone.Graph.Nodes["n1"].Label = "Mallory"
	clone.Metadata["reason"] = "mutated"

	if g.Nodes["n1"].Label != "Alice" {
		t.Error("snapshot clone shares node state with original")
	}
	if snap.Metadata["reason"] != "test" {
		t.Error("snapshot clone shares metadata with original")
	}
}
