// Package graph builds ephemeral dependency graphs from stored symbols and
// references (or externally supplied node/edge lists) and runs analytics
// over them: cycle detection, impact analysis, critical-path heuristics,
// and whole-graph metrics.
//
// A Graph is an immutable snapshot. Construction loads everything once;
// every algorithm then runs purely in memory, so analytics cost never
// depends on storage latency. Large graphs are trimmed to the
// highest-degree nodes via Options.NodeCap.
//
//	g, err := graph.Build(ctx, symbolStore, refStore, graph.Options{})
//	if err != nil {
//	    return err
//	}
//	cycles := g.DetectCycles()
//	metrics, err := g.ComputeMetrics(ctx)
//
// The Analyzer wraps these with an LRU memo keyed by the snapshot's content
// fingerprint, and optionally persists results through the storage layer so
// a later process can read the last-computed analysis without rebuilding.
//
// Cyclic input is a reportable finding everywhere in this package, never an
// error.
package graph
