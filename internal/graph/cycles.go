package graph

// Cycle is the ordered list of node ids forming one cycle, starting at the
// node the closing back edge re-entered.
type Cycle []string

// DetectCycles finds every cycle reachable in the snapshot using depth-first
// search with an on-stack set: an edge into a node currently on the DFS
// stack closes a cycle, reported as the stack segment from that node down.
// Every unvisited node seeds a fresh search, so disjoint cycles are all
// found. An acyclic graph yields an empty slice. Cyclic input is a finding,
// never an error.
func (g *Graph) DetectCycles() []Cycle {
	visited := make(map[string]bool, len(g.nodes))
	onStack := make(map[string]bool, len(g.nodes))
	stack := make([]string, 0, len(g.nodes))
	cycles := make([]Cycle, 0)

	var visit func(id string)
	visit = func(id string) {
		visited[id] = true
		onStack[id] = true
		stack = append(stack, id)

		for _, next := range g.out[id] {
			if onStack[next] {
				// Back edge: the cycle is the stack from next onward.
				start := 0
				for i, sid := range stack {
					if sid == next {
						start = i
						break
					}
				}
				cycle := make(Cycle, len(stack)-start)
				copy(cycle, stack[start:])
				cycles = append(cycles, cycle)
				continue
			}
			if !visited[next] {
				visit(next)
			}
		}

		stack = stack[:len(stack)-1]
		onStack[id] = false
	}

	for _, id := range g.order {
		if !visited[id] {
			visit(id)
		}
	}
	return cycles
}

// CyclicNodes returns the deduplicated, sorted set of node ids participating
// in at least one cycle, along with the cycle count.
func (g *Graph) CyclicNodes() ([]string, int) {
	cycles := g.DetectCycles()
	seen := make(map[string]bool)
	for _, cycle := range cycles {
		for _, id := range cycle {
			seen[id] = true
		}
	}
	ids := make([]string, 0, len(seen))
	for _, id := range g.order {
		if seen[id] {
			ids = append(ids, id)
		}
	}
	return ids, len(cycles)
}
