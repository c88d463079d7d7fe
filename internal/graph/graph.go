package graph

import (
	"context"
	"sort"
	"strconv"

	"github.com/calltrace/codegraph/internal/storage"
)

// DefaultNodeCap bounds how many nodes participate in analytics when the
// caller does not choose a limit. Whole-graph algorithms are quadratic-ish;
// trimming to the highest-degree nodes keeps latency predictable on large
// codebases.
const DefaultNodeCap = 500

// Node is one entity in a dependency graph: a symbol, a file, or any
// externally named thing with a type tag and free-form labels.
type Node struct {
	ID     string   `json:"id"`
	Type   string   `json:"type"`
	Labels []string `json:"labels,omitempty"`
}

// Edge is one directed, typed relation between two nodes.
type Edge struct {
	From   string  `json:"from"`
	To     string  `json:"to"`
	Type   string  `json:"type"`
	Weight float64 `json:"weight"`
}

// Options controls graph construction.
type Options struct {
	// NodeCap keeps only the top-N nodes by incident-edge count. Zero means
	// DefaultNodeCap; negative means unlimited.
	NodeCap int
}

func (o Options) cap() int {
	if o.NodeCap == 0 {
		return DefaultNodeCap
	}
	if o.NodeCap < 0 {
		return 0
	}
	return o.NodeCap
}

// Graph is an immutable in-memory snapshot of nodes and edges. All analytics
// run against this snapshot; storage is never consulted mid-algorithm.
type Graph struct {
	nodes map[string]*Node
	edges []Edge

	out map[string][]string
	in  map[string][]string

	// sorted node ids, fixed at build time so every traversal is deterministic
	order []string
}

// New assembles a graph from a supplied node and edge list. Duplicate node
// ids collapse to the first occurrence; edges with a missing endpoint are
// dropped. If the node cap is exceeded, only the highest-degree nodes (and
// the edges among them) survive.
func New(nodes []Node, edges []Edge, opts Options) *Graph {
	byID := make(map[string]*Node, len(nodes))
	for i := range nodes {
		n := nodes[i]
		if _, dup := byID[n.ID]; dup {
			continue
		}
		byID[n.ID] = &n
	}

	kept := make([]Edge, 0, len(edges))
	for _, e := range edges {
		if _, ok := byID[e.From]; !ok {
			continue
		}
		if _, ok := byID[e.To]; !ok {
			continue
		}
		kept = append(kept, e)
	}

	if limit := opts.cap(); limit > 0 && len(byID) > limit {
		byID, kept = trimToTopDegree(byID, kept, limit)
	}

	g := &Graph{
		nodes: byID,
		edges: kept,
		out:   make(map[string][]string, len(byID)),
		in:    make(map[string][]string, len(byID)),
		order: make([]string, 0, len(byID)),
	}
	for id := range byID {
		g.order = append(g.order, id)
	}
	sort.Strings(g.order)
	for _, e := range kept {
		g.out[e.From] = append(g.out[e.From], e.To)
		g.in[e.To] = append(g.in[e.To], e.From)
	}
	for id := range g.out {
		sort.Strings(g.out[id])
	}
	for id := range g.in {
		sort.Strings(g.in[id])
	}
	return g
}

// trimToTopDegree keeps the n nodes with the highest incident-edge counts,
// breaking ties by id, and the edges fully inside the kept set.
func trimToTopDegree(nodes map[string]*Node, edges []Edge, n int) (map[string]*Node, []Edge) {
	degree := make(map[string]int, len(nodes))
	for _, e := range edges {
		degree[e.From]++
		degree[e.To]++
	}

	ids := make([]string, 0, len(nodes))
	for id := range nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if degree[ids[i]] != degree[ids[j]] {
			return degree[ids[i]] > degree[ids[j]]
		}
		return ids[i] < ids[j]
	})

	keptNodes := make(map[string]*Node, n)
	for _, id := range ids[:n] {
		keptNodes[id] = nodes[id]
	}
	keptEdges := make([]Edge, 0, len(edges))
	for _, e := range edges {
		if _, ok := keptNodes[e.From]; !ok {
			continue
		}
		if _, ok := keptNodes[e.To]; !ok {
			continue
		}
		keptEdges = append(keptEdges, e)
	}
	return keptNodes, keptEdges
}

// Build loads every stored symbol and call edge into a graph. Node ids are
// the decimal symbol ids, labels carry name and namespace.
func Build(ctx context.Context, symbols *storage.SymbolStore, refs *storage.ReferenceStore, opts Options) (*Graph, error) {
	stored, err := symbols.SearchSymbols(ctx, storage.SymbolQuery{})
	if err != nil {
		return nil, err
	}
	callEdges, err := refs.AllCallEdges(ctx)
	if err != nil {
		return nil, err
	}

	nodes := make([]Node, 0, len(stored))
	for _, sym := range stored {
		labels := []string{sym.Name}
		if sym.Namespace != "" {
			labels = append(labels, sym.Namespace)
		}
		nodes = append(nodes, Node{
			ID:     strconv.FormatInt(sym.ID, 10),
			Type:   sym.Kind,
			Labels: labels,
		})
	}
	edges := make([]Edge, 0, len(callEdges))
	for _, e := range callEdges {
		edges = append(edges, Edge{
			From:   strconv.FormatInt(e[0], 10),
			To:     strconv.FormatInt(e[1], 10),
			Type:   "call",
			Weight: 1,
		})
	}
	return New(nodes, edges, opts), nil
}

// NodeCount returns the number of nodes in the snapshot.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges in the snapshot.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Node returns the node with the given id, or nil.
func (g *Graph) Node(id string) *Node { return g.nodes[id] }

// Edges returns the snapshot's edge list. Callers must not mutate it.
func (g *Graph) Edges() []Edge { return g.edges }

func (g *Graph) degree(id string) int {
	return len(g.in[id]) + len(g.out[id])
}
