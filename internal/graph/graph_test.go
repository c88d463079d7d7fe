package graph

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chainGraph() *Graph {
	// A -> B -> C
	return New(
		[]Node{{ID: "A", Type: "class"}, {ID: "B", Type: "class"}, {ID: "C", Type: "class"}},
		[]Edge{{From: "A", To: "B", Type: "call", Weight: 1}, {From: "B", To: "C", Type: "call", Weight: 1}},
		Options{},
	)
}

func triangleGraph() *Graph {
	// A -> B -> C -> A
	return New(
		[]Node{{ID: "A"}, {ID: "B"}, {ID: "C"}},
		[]Edge{{From: "A", To: "B"}, {From: "B", To: "C"}, {From: "C", To: "A"}},
		Options{},
	)
}

func TestNewDropsDanglingEdges(t *testing.T) {
	g := New(
		[]Node{{ID: "A"}, {ID: "B"}},
		[]Edge{{From: "A", To: "B"}, {From: "A", To: "ghost"}, {From: "ghost", To: "B"}},
		Options{},
	)
	assert.Equal(t, 2, g.NodeCount())
	assert.Equal(t, 1, g.EdgeCount())
}

func TestNewCollapsesDuplicateNodes(t *testing.T) {
	g := New(
		[]Node{{ID: "A", Type: "class"}, {ID: "A", Type: "method"}},
		nil,
		Options{},
	)
	assert.Equal(t, 1, g.NodeCount())
	assert.Equal(t, "class", g.Node("A").Type)
}

func TestNodeCapKeepsHighestDegree(t *testing.T) {
	// hub touches every spoke; spokes touch only hub.
	nodes := []Node{{ID: "hub"}}
	edges := []Edge{}
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("spoke%d", i)
		nodes = append(nodes, Node{ID: id})
		edges = append(edges, Edge{From: "hub", To: id})
	}

	g := New(nodes, edges, Options{NodeCap: 3})
	assert.Equal(t, 3, g.NodeCount())
	require.NotNil(t, g.Node("hub"))
	// Edges between kept nodes survive; the rest are trimmed with their spokes.
	assert.Equal(t, 2, g.EdgeCount())
}

func TestDetectCyclesTriangle(t *testing.T) {
	cycles := triangleGraph().DetectCycles()
	require.Len(t, cycles, 1)
	assert.ElementsMatch(t, []string{"A", "B", "C"}, []string(cycles[0]))
	assert.Equal(t, "A", cycles[0][0]) // starts at the re-entry point
}

func TestDetectCyclesAcyclic(t *testing.T) {
	assert.Empty(t, chainGraph().DetectCycles())
}

func TestDetectCyclesDisjoint(t *testing.T) {
	// Two separate 2-cycles plus an acyclic tail.
	g := New(
		[]Node{{ID: "A"}, {ID: "B"}, {ID: "C"}, {ID: "D"}, {ID: "E"}},
		[]Edge{
			{From: "A", To: "B"}, {From: "B", To: "A"},
			{From: "C", To: "D"}, {From: "D", To: "C"},
			{From: "D", To: "E"},
		},
		Options{},
	)
	cycles := g.DetectCycles()
	assert.Len(t, cycles, 2)

	cyclic, count := g.CyclicNodes()
	assert.Equal(t, 2, count)
	assert.Equal(t, []string{"A", "B", "C", "D"}, cyclic)
}

func TestSelfLoop(t *testing.T) {
	g := New([]Node{{ID: "A"}}, []Edge{{From: "A", To: "A"}}, Options{})
	cycles := g.DetectCycles()
	require.Len(t, cycles, 1)
	assert.Equal(t, Cycle{"A"}, cycles[0])
}

func TestImpact(t *testing.T) {
	// A -> B -> C, D isolated. Impact of A touches A, B, C.
	g := New(
		[]Node{{ID: "A"}, {ID: "B"}, {ID: "C"}, {ID: "D"}},
		[]Edge{{From: "A", To: "B"}, {From: "B", To: "C"}},
		Options{},
	)

	touched := g.Impact([]string{"A"})
	require.Len(t, touched, 3)
	// B has degree 2, A and C have degree 1; ties break by id.
	assert.Equal(t, ImpactedNode{ID: "B", Severity: 2}, touched[0])
	assert.Equal(t, ImpactedNode{ID: "A", Severity: 1}, touched[1])
	assert.Equal(t, ImpactedNode{ID: "C", Severity: 1}, touched[2])

	// Unknown scope ids contribute nothing.
	assert.Empty(t, g.Impact([]string{"ghost"}))
}

func TestCriticalPaths(t *testing.T) {
	nodes := []Node{{ID: "hub"}}
	edges := []Edge{}
	for i := 0; i < 7; i++ {
		id := fmt.Sprintf("spoke%d", i)
		nodes = append(nodes, Node{ID: id})
		edges = append(edges, Edge{From: "hub", To: id})
	}
	g := New(nodes, edges, Options{})

	paths := g.CriticalPaths(2)
	require.Len(t, paths, 2)
	assert.Equal(t, "hub", paths[0].NodeID)
	assert.Equal(t, 7, paths[0].Degree)
	assert.Equal(t, CriticalityHigh, paths[0].Criticality)
	assert.Len(t, paths[0].Path, criticalNeighborhood)

	assert.Equal(t, 1, paths[1].Degree)
	assert.Equal(t, CriticalityLow, paths[1].Criticality)

	// Asking for more than exists returns everything, not an error.
	assert.Len(t, g.CriticalPaths(100), 8)
	assert.Nil(t, g.CriticalPaths(0))
}
