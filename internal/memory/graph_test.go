package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraph_AddEdge(t *testing.T) {
	g := NewGraph()

	assert.True(t, g.AddEdge("a.com", "b.com"))
	assert.False(t, g.AddEdge("a.com", "b.com"), "duplicate edge collapses")
	assert.False(t, g.AddEdge("a.com", "a.com"), "self-loop rejected")
	assert.True(t, g.AddEdge("b.com", "a.com"))

	nodes, edges := g.GetStats()
	assert.Equal(t, 2, nodes)
	assert.Equal(t, 2, edges)

	assert.Equal(t, 1, g.InDegree("a.com"))
	assert.Equal(t, 1, g.OutDegree("a.com"))
	assert.Equal(t, 2, g.Degree("a.com"))
	assert.Equal(t, []string{"b.com"}, g.Neighbors("a.com"))
}

func TestGraph_SelfLoopDoesNotCreateNode(t *testing.T) {
	g := NewGraph()
	g.AddEdge("a.com", "a.com")
	assert.Empty(t, g.Nodes())
}

func TestGraph_NodesSorted(t *testing.T) {
	g := NewGraph()
	g.AddEdge("c.com", "a.com")
	g.AddEdge("b.com", "c.com")

	assert.Equal(t, []string{"a.com", "b.com", "c.com"}, g.Nodes())
	assert.Equal(t, []string{"a.com", "b.com"}, g.Neighbors("c.com"))
}

func TestGraph_RemoveNode(t *testing.T) {
	g := NewGraph()
	g.AddEdge("hub.com", "a.com")
	g.AddEdge("hub.com", "b.com")
	g.AddEdge("c.com", "hub.com")
	g.AddEdge("a.com", "b.com")

	require.NoError(t, g.RemoveNode("hub.com"))

	assert.Equal(t, []string{"a.com", "b.com", "c.com"}, g.Nodes())
	nodes, edges := g.GetStats()
	assert.Equal(t, 3, nodes)
	assert.Equal(t, 1, edges)
	assert.Equal(t, 0, g.Degree("c.com"))
	assert.Equal(t, []Edge{{From: "a.com", To: "b.com"}}, g.InducedEdges(g.Nodes()))
}

func TestGraph_RemoveUnknownNode(t *testing.T) {
	g := NewGraph()
	err := g.RemoveNode("missing.com")
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestGraph_InducedEdges(t *testing.T) {
	g := NewGraph()
	g.AddEdge("a.com", "b.com")
	g.AddEdge("b.com", "c.com")
	g.AddEdge("c.com", "a.com")

	edges := g.InducedEdges([]string{"b.com", "a.com"})
	assert.Equal(t, []Edge{{From: "a.com", To: "b.com"}}, edges)
}
