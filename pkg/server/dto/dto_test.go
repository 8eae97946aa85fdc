package dto

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/chronograph/pkg/operator"
)

func TestToActionMapping(t *testing.T) {
	tests := []struct {
		name    string
		req     TransformRequest
		want    operator.Action
		wantErr bool
	}{
		{
			name: "add node",
			req:  TransformRequest{Action: ActionAddNode, Parameters: TransformParameters{NodeData: &operator.NodeData{Label: "Alice"}}},
			want: operator.AddNode{NodeData: &operator.NodeData{Label: "Alice"}},
		},
		{
			name: "add edge",
			req:  TransformRequest{Action: ActionAddEdge},
			want: operator.AddEdge{},
		},
		{
			name: "decay",
			req:  TransformRequest{Action: ActionDecayEdges},
			want: operator.DecayEdges{},
		},
		{
			name: "merge",
			req:  TransformRequest{Action: ActionMergeNodes, Parameters: TransformParameters{Node1ID: "a", Node2ID: "b"}},
			want: operator.MergeNodes{Node1ID: "a", Node2ID: "b"},
		},
		{
			name:    "merge missing ids",
			req:     TransformRequest{Action: ActionMergeNodes, Parameters: TransformParameters{Node1ID: "a"}},
			wantErr: true,
		},
		{
			name: "prune node",
			req:  TransformRequest{Action: ActionPruneNode, Parameters: TransformParameters{NodeID: "a"}},
			want: operator.PruneNode{NodeID: "a"},
		},
		{
			name:    "prune node missing id",
			req:     TransformRequest{Action: ActionPruneNode},
			wantErr: true,
		},
		{
			name: "prune edge",
			req:  TransformRequest{Action: ActionPruneEdge, Parameters: TransformParameters{EdgeID: "a_knows_b"}},
			want: operator.PruneEdge{EdgeID: "a_knows_b"},
		},
		{
			name:    "unknown",
			req:     TransformRequest{Action: "explode"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.req.ToAction()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTimeWindow(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	window, err := ParseTimeWindow("", "", now)
	require.NoError(t, err)
	assert.Equal(t, now, window.End)
	assert.Equal(t, now.Add(-24*time.Hour), window.Start)

	window, err = ParseTimeWindow("2024-03-01T00:00:00Z", "2024-03-01T06:00:00Z", now)
	require.NoError(t, err)
	assert.Equal(t, 6*time.Hour, window.End.Sub(window.Start))

	_, err = ParseTimeWindow("bogus", "", now)
	assert.Error(t, err)

	_, err = ParseTimeWindow("2024-03-02T00:00:00Z", "2024-03-01T00:00:00Z", now)
	assert.Error(t, err)
}
