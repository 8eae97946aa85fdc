// Package chronograph provides a temporal knowledge graph engine for Go.
//
// Chronograph maintains evolving knowledge graphs per tenant: observations are
// applied through a deterministic update operator, every structural change is
// journaled, and the graph can be reconstructed as it existed at any past
// moment. Convergence analysis reports whether a graph's structure is
// stabilizing as updates accumulate.
//
// # Basic Usage
//
// Create an engine and apply transformations:
//
//	engine, err := chronograph.NewEngine(nil, nil, nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer engine.Close()
//
//	ctx := context.Background()
//	_, err = engine.Transform(ctx, "tenant-1",
//		chronograph.AddNode{NodeData: &chronograph.NodeData{Label: "Alice", NodeType: "person"}},
//		chronograph.Observation{})
//
// # Time Travel
//
// Snapshots plus the change journal make any past instant reconstructible:
//
//	snap, _ := engine.Snapshot(ctx, "tenant-1", nil)
//	// ... more transformations ...
//	past, _ := engine.ReconstructAt(ctx, "tenant-1", snap.Timestamp)
//
// # Analytics
//
// The engine exposes graph diffs, hourly evolution timelines, growth metrics,
// emerging relationship patterns, and convergence reports built from recent
// history.
//
// # Architecture
//
//   - pkg/types: graph, node, edge, change, and snapshot types
//   - pkg/operator: the update operator and convergence analysis
//   - pkg/temporal: snapshots, change journal, point-in-time reconstruction
//   - pkg/analytics: diffs, timelines, growth, emerging patterns
//   - pkg/persist: durable storage backends (Badger, Neo4j)
//   - pkg/export: Parquet change journal archival
//
// Multi-tenant isolation is by tenant ID throughout; writes for one tenant
// are serialized while independent tenants proceed in parallel.
package chronograph
