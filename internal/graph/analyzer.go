package graph

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/calltrace/codegraph/internal/storage"
)

const (
	// KindCycles and KindMetrics name the analysis kinds the Analyzer caches
	// and persists.
	KindCycles  = "cycles"
	KindMetrics = "metrics"

	analyzerCacheSize = 256
)

// CycleReport is the persisted shape of a cycle analysis.
type CycleReport struct {
	CycleCount  int      `json:"cycle_count"`
	Cycles      []Cycle  `json:"cycles"`
	CyclicNodes []string `json:"cyclic_nodes"`
}

// Analyzer runs graph analytics with an LRU memo keyed by the snapshot's
// content fingerprint, so repeated queries over an unchanged graph skip the
// recomputation. When a store is attached, results are also persisted per
// project for cross-process reuse.
type Analyzer struct {
	cache *lru.Cache[[32]byte, json.RawMessage]
	store *storage.AnalysisStore
}

// NewAnalyzer creates an Analyzer. store may be nil for a purely in-memory
// analyzer.
func NewAnalyzer(store *storage.AnalysisStore) *Analyzer {
	cache, err := lru.New[[32]byte, json.RawMessage](analyzerCacheSize)
	if err != nil {
		// Only reachable with a non-positive size constant.
		panic(fmt.Sprintf("failed to create analysis cache: %v", err))
	}
	return &Analyzer{cache: cache, store: store}
}

// fingerprint hashes the graph's node and edge identity plus the analysis
// kind. Two snapshots with the same nodes and edges share cached results.
func fingerprint(g *Graph, kind string) [32]byte {
	h := sha256.New()
	h.Write([]byte(kind))
	for _, id := range g.order {
		h.Write([]byte{0})
		h.Write([]byte(id))
	}
	edges := make([]string, 0, len(g.edges))
	for _, e := range g.edges {
		edges = append(edges, e.From+"\x00"+e.To+"\x00"+e.Type)
	}
	sort.Strings(edges)
	for _, e := range edges {
		h.Write([]byte{1})
		h.Write([]byte(e))
	}
	var key [32]byte
	copy(key[:], h.Sum(nil))
	return key
}

// Cycles returns the cycle report for g, memoized by fingerprint and
// persisted under projectID when a store is attached.
func (a *Analyzer) Cycles(ctx context.Context, g *Graph, projectID int64) (*CycleReport, error) {
	key := fingerprint(g, KindCycles)
	if raw, ok := a.cache.Get(key); ok {
		var report CycleReport
		if err := json.Unmarshal(raw, &report); err == nil {
			return &report, nil
		}
	}

	cyclicNodes, count := g.CyclicNodes()
	report := &CycleReport{
		CycleCount:  count,
		Cycles:      g.DetectCycles(),
		CyclicNodes: cyclicNodes,
	}
	if err := a.memoize(ctx, key, projectID, KindCycles, report); err != nil {
		return nil, err
	}
	return report, nil
}

// Metrics returns the metrics report for g, memoized by fingerprint and
// persisted under projectID when a store is attached.
func (a *Analyzer) Metrics(ctx context.Context, g *Graph, projectID int64) (*Metrics, error) {
	key := fingerprint(g, KindMetrics)
	if raw, ok := a.cache.Get(key); ok {
		var m Metrics
		if err := json.Unmarshal(raw, &m); err == nil {
			return &m, nil
		}
	}

	m, err := g.ComputeMetrics(ctx)
	if err != nil {
		return nil, err
	}
	if err := a.memoize(ctx, key, projectID, KindMetrics, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Invalidate drops every memoized and persisted result for a project. Call
// after ingesting new data.
func (a *Analyzer) Invalidate(ctx context.Context, projectID int64) error {
	a.cache.Purge()
	if a.store == nil {
		return nil
	}
	return a.store.DeleteAnalysisResults(ctx, projectID)
}

func (a *Analyzer) memoize(ctx context.Context, key [32]byte, projectID int64, kind string, result interface{}) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode %s analysis: %w", kind, err)
	}
	a.cache.Add(key, raw)
	if a.store != nil {
		if err := a.store.SetAnalysisResult(ctx, projectID, kind, raw); err != nil {
			return err
		}
	}
	return nil
}
