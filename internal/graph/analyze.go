package graph

import (
	"context"
	"runtime"
	"sort"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// ImpactedNode is one node touched by an impact analysis. Severity counts
// its incident edges: high-degree nodes propagate change furthest.
type ImpactedNode struct {
	ID       string `json:"id"`
	Severity int    `json:"severity"`
}

// Impact reports every node reachable forward from the scope nodes,
// including the scope itself, each with severity = in-degree + out-degree.
// Results are ordered by severity descending, then id. Unknown scope ids
// are ignored.
func (g *Graph) Impact(scope []string) []ImpactedNode {
	visited := make(map[string]bool, len(g.nodes))
	frontier := make([]string, 0, len(scope))
	for _, id := range scope {
		if _, ok := g.nodes[id]; !ok {
			continue
		}
		if !visited[id] {
			visited[id] = true
			frontier = append(frontier, id)
		}
	}

	for len(frontier) > 0 {
		next := frontier[:0:0]
		for _, id := range frontier {
			for _, to := range g.out[id] {
				if !visited[to] {
					visited[to] = true
					next = append(next, to)
				}
			}
		}
		frontier = next
	}

	touched := make([]ImpactedNode, 0, len(visited))
	for id := range visited {
		touched = append(touched, ImpactedNode{ID: id, Severity: g.degree(id)})
	}
	sort.Slice(touched, func(i, j int) bool {
		if touched[i].Severity != touched[j].Severity {
			return touched[i].Severity > touched[j].Severity
		}
		return touched[i].ID < touched[j].ID
	})
	return touched
}

// Criticality buckets for CriticalPaths.
const (
	CriticalityHigh   = "high"
	CriticalityMedium = "medium"
	CriticalityLow    = "low"
)

// criticalDegreeHigh and criticalDegreeMedium are the degree thresholds for
// the criticality buckets.
const (
	criticalDegreeHigh   = 6
	criticalDegreeMedium = 3
)

// criticalNeighborhood bounds how many incident edges each critical node
// reports as its local path.
const criticalNeighborhood = 5

// CriticalPath is one high-degree node plus a short neighborhood of its
// incident edges.
type CriticalPath struct {
	NodeID      string `json:"node_id"`
	Degree      int    `json:"degree"`
	Criticality string `json:"criticality"`
	Path        []Edge `json:"path"`
}

// CriticalPaths ranks nodes by total incident-edge count descending
// (ties by id), keeps the top n, and expands each into a short neighborhood
// of connected edges. This is a structural hot-spot heuristic, not a true
// longest-path computation.
func (g *Graph) CriticalPaths(n int) []CriticalPath {
	if n <= 0 || len(g.nodes) == 0 {
		return nil
	}

	ids := make([]string, len(g.order))
	copy(ids, g.order)
	sort.Slice(ids, func(i, j int) bool {
		di, dj := g.degree(ids[i]), g.degree(ids[j])
		if di != dj {
			return di > dj
		}
		return ids[i] < ids[j]
	})
	if n > len(ids) {
		n = len(ids)
	}

	paths := make([]CriticalPath, 0, n)
	for _, id := range ids[:n] {
		degree := g.degree(id)
		neighborhood := make([]Edge, 0, criticalNeighborhood)
		for _, e := range g.edges {
			if e.From != id && e.To != id {
				continue
			}
			neighborhood = append(neighborhood, e)
			if len(neighborhood) == criticalNeighborhood {
				break
			}
		}

		criticality := CriticalityLow
		switch {
		case degree >= criticalDegreeHigh:
			criticality = CriticalityHigh
		case degree >= criticalDegreeMedium:
			criticality = CriticalityMedium
		}

		paths = append(paths, CriticalPath{
			NodeID:      id,
			Degree:      degree,
			Criticality: criticality,
			Path:        neighborhood,
		})
	}
	return paths
}

// NodeMetric holds the per-node numbers in a metrics report.
type NodeMetric struct {
	InDegree   int     `json:"in_degree"`
	OutDegree  int     `json:"out_degree"`
	Centrality float64 `json:"centrality"`
}

// Metrics is a whole-graph statistics report.
type Metrics struct {
	NodeCount     int                   `json:"node_count"`
	EdgeCount     int                   `json:"edge_count"`
	Density       float64               `json:"density"`
	CycleCount    int                   `json:"cycle_count"`
	CyclicNodes   []string              `json:"cyclic_nodes"`
	AvgPathLength float64               `json:"avg_path_length"`
	Nodes         map[string]NodeMetric `json:"nodes"`
}

// ComputeMetrics derives the full metrics report from the snapshot. Average
// shortest-path length runs a breadth-first search from every node, fanned
// out across CPUs; the sum of all finite shortest distances is divided by
// the number of reachable ordered pairs.
func (g *Graph) ComputeMetrics(ctx context.Context) (*Metrics, error) {
	n := len(g.nodes)
	m := &Metrics{
		NodeCount: n,
		EdgeCount: len(g.edges),
		Nodes:     make(map[string]NodeMetric, n),
	}
	if n > 1 {
		m.Density = float64(len(g.edges)) / float64(n*(n-1))
	}
	m.CyclicNodes, m.CycleCount = g.CyclicNodes()

	for _, id := range g.order {
		in, out := len(g.in[id]), len(g.out[id])
		metric := NodeMetric{InDegree: in, OutDegree: out}
		if n > 1 {
			metric.Centrality = float64(in+out) / float64(2*(n-1))
		}
		m.Nodes[id] = metric
	}

	if n > 1 {
		var totalDist, pairs int64
		eg, egCtx := errgroup.WithContext(ctx)
		eg.SetLimit(runtime.NumCPU())
		for _, seed := range g.order {
			eg.Go(func() error {
				if err := egCtx.Err(); err != nil {
					return err
				}
				dist, reached := g.bfsDistances(seed)
				atomic.AddInt64(&totalDist, dist)
				atomic.AddInt64(&pairs, reached)
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return nil, err
		}
		if pairs > 0 {
			m.AvgPathLength = float64(totalDist) / float64(pairs)
		}
	}
	return m, nil
}

// bfsDistances sums shortest distances from seed to every other reachable
// node and counts those nodes.
func (g *Graph) bfsDistances(seed string) (totalDist, reached int64) {
	dist := map[string]int64{seed: 0}
	frontier := []string{seed}
	for len(frontier) > 0 {
		next := frontier[:0:0]
		for _, id := range frontier {
			for _, to := range g.out[id] {
				if _, seen := dist[to]; seen {
					continue
				}
				dist[to] = dist[id] + 1
				totalDist += dist[to]
				reached++
				next = append(next, to)
			}
		}
		frontier = next
	}
	return totalDist, reached
}
