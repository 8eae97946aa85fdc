package analytics

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/soundprediction/chronograph/pkg/temporal"
	"github.com/soundprediction/chronograph/pkg/types"
)

// ErrInsufficientData is returned when a time window does not contain enough
// history to compute a metric.
var ErrInsufficientData = errors.New("insufficient data in time window")

// Analyzer answers questions about a tenant's graph evolution using the
// temporal store's snapshots and change log.
type Analyzer struct {
	store  *temporal.Store
	logger *slog.Logger
}

// NewAnalyzer creates an analyzer over the given temporal store.
func NewAnalyzer(store *temporal.Store, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{store: store, logger: logger}
}

// TimelineBucket aggregates the changes recorded during one hour.
type TimelineBucket struct {
	Timestamp       time.Time                `json:"timestamp"`
	TotalChanges    int                      `json:"total_changes"`
	ByType          map[types.ChangeType]int `json:"by_type"`
	EntitiesTouched int                      `json:"entities_touched"`
}

// EvolutionTimeline groups the tenant's changes between start and end into
// hourly buckets, oldest first. Hours with no activity are omitted.
func (a *Analyzer) EvolutionTimeline(ctx context.Context, tenantID string, start, end time.Time) ([]TimelineBucket, error) {
	if tenantID == "" {
		return nil, types.ErrEmptyTenantID
	}

	changes := a.store.Changes(tenantID, temporal.ChangeFilter{Since: &start, Until: &end})

	buckets := make(map[time.Time]*TimelineBucket)
	entities := make(map[time.Time]map[string]struct{})
	for _, change := range changes {
		hour := change.Timestamp.Truncate(time.Hour)
		bucket, ok := buckets[hour]
		if !ok {
			bucket = &TimelineBucket{
				Timestamp: hour,
				ByType:    make(map[types.ChangeType]int),
			}
			buckets[hour] = bucket
			entities[hour] = make(map[string]struct{})
		}
		bucket.TotalChanges++
		bucket.ByType[change.Type]++
		entities[hour][change.EntityID] = struct{}{}
	}

	timeline := make([]TimelineBucket, 0, len(buckets))
	for hour, bucket := range buckets {
		bucket.EntitiesTouched = len(entities[hour])
		timeline = append(timeline, *bucket)
	}
	sort.Slice(timeline, func(i, j int) bool {
		return timeline[i].Timestamp.Before(timeline[j].Timestamp)
	})
	return timeline, nil
}

// GrowthMetrics summarizes how the graph grew over a time window.
type GrowthMetrics struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	NodesStart     int     `json:"nodes_start"`
	NodesEnd       int     `json:"nodes_end"`
	NodeGrowth     int     `json:"node_growth"`
	NodeGrowthRate float64 `json:"node_growth_rate"`

	EdgesStart     int     `json:"edges_start"`
	EdgesEnd       int     `json:"edges_end"`
	EdgeGrowth     int     `json:"edge_growth"`
	EdgeGrowthRate float64 `json:"edge_growth_rate"`

	NodesPerDay  float64 `json:"nodes_per_day"`
	EdgesPerDay  float64 `json:"edges_per_day"`
	DensityStart float64 `json:"density_start"`
	DensityEnd   float64 `json:"density_end"`
}

// Growth reconstructs the graph at both ends of the window and reports the
// growth between them. ErrInsufficientData is returned when either end
// precedes the tenant's first snapshot, so there is no state to compare.
func (a *Analyzer) Growth(ctx context.Context, tenantID string, start, end time.Time) (*GrowthMetrics, error) {
	if tenantID == "" {
		return nil, types.ErrEmptyTenantID
	}

	startGraph, err := a.store.ReconstructAt(ctx, tenantID, start)
	if errors.Is(err, temporal.ErrNoSnapshot) {
		return nil, ErrInsufficientData
	}
	if err != nil {
		return nil, err
	}
	endGraph, err := a.store.ReconstructAt(ctx, tenantID, end)
	if errors.Is(err, temporal.ErrNoSnapshot) {
		return nil, ErrInsufficientData
	}
	if err != nil {
		return nil, err
	}

	metrics := &GrowthMetrics{
		Start:        start,
		End:          end,
		NodesStart:   startGraph.NodeCount(),
		NodesEnd:     endGraph.NodeCount(),
		EdgesStart:   startGraph.EdgeCount(),
		EdgesEnd:     endGraph.EdgeCount(),
		DensityStart: startGraph.Density(),
		DensityEnd:   endGraph.Density(),
	}
	metrics.NodeGrowth = metrics.NodesEnd - metrics.NodesStart
	metrics.EdgeGrowth = metrics.EdgesEnd - metrics.EdgesStart
	metrics.NodeGrowthRate = growthRate(metrics.NodeGrowth, metrics.NodesStart)
	metrics.EdgeGrowthRate = growthRate(metrics.EdgeGrowth, metrics.EdgesStart)

	if days := end.Sub(start).Hours() / 24; days > 0 {
		metrics.NodesPerDay = float64(metrics.NodeGrowth) / days
		metrics.EdgesPerDay = float64(metrics.EdgeGrowth) / days
	}
	return metrics, nil
}

// growthRate is growth relative to the starting count, 0 when starting from
// nothing.
func growthRate(growth, start int) float64 {
	if start == 0 {
		return 0
	}
	return float64(growth) / float64(start)
}

// Pattern is an entity that accumulated new connections during a window.
// Confidence scales linearly with the number of new edges, saturating at ten.
type Pattern struct {
	EntityID    string    `json:"entity_id"`
	Occurrences int       `json:"occurrences"`
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
	Confidence  float64   `json:"confidence"`
}

const maxPatterns = 10

// EmergingPatterns finds the entities that gained the most new connections
// during the window, strongest first. Every added edge counts for both of its
// endpoints. At most ten patterns are returned; ties break by entity ID so
// results are stable.
func (a *Analyzer) EmergingPatterns(ctx context.Context, tenantID string, start, end time.Time) ([]Pattern, error) {
	if tenantID == "" {
		return nil, types.ErrEmptyTenantID
	}

	changes := a.store.Changes(tenantID, temporal.ChangeFilter{
		Since: &start,
		Until: &end,
		Types: []types.ChangeType{types.ChangeEdgeAdded},
	})

	byEntity := make(map[string]*Pattern)
	for _, change := range changes {
		if change.New == nil || change.New.Edge == nil {
			continue
		}
		edge := change.New.Edge
		for _, entityID := range []string{edge.SourceID, edge.TargetID} {
			pattern, ok := byEntity[entityID]
			if !ok {
				pattern = &Pattern{EntityID: entityID, FirstSeen: change.Timestamp}
				byEntity[entityID] = pattern
			}
			pattern.Occurrences++
			pattern.LastSeen = change.Timestamp
		}
	}

	patterns := make([]Pattern, 0, len(byEntity))
	for _, pattern := range byEntity {
		pattern.Confidence = math.Min(float64(pattern.Occurrences)/10.0, 1.0)
		patterns = append(patterns, *pattern)
	}
	sort.Slice(patterns, func(i, j int) bool {
		if patterns[i].Occurrences != patterns[j].Occurrences {
			return patterns[i].Occurrences > patterns[j].Occurrences
		}
		return patterns[i].EntityID < patterns[j].EntityID
	})
	if len(patterns) > maxPatterns {
		patterns = patterns[:maxPatterns]
	}
	return patterns, nil
}

// DiffAt reconstructs the graph at two instants and diffs them.
func (a *Analyzer) DiffAt(ctx context.Context, tenantID string, before, after time.Time) (*GraphDiff, error) {
	g1, err := a.store.ReconstructAt(ctx, tenantID, before)
	if err != nil {
		return nil, err
	}
	g2, err := a.store.ReconstructAt(ctx, tenantID, after)
	if err != nil {
		return nil, err
	}
	return CompareGraphs(g1, g2), nil
}
