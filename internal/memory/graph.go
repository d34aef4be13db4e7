package memory

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrNodeNotFound is returned when an operation references a domain that is not in the graph
var ErrNodeNotFound = errors.New("node not found")

// Edge is a directed link between two domains
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Graph holds a directed domain graph in memory.
// Parallel edges collapse into one and self-loops are never stored.
type Graph struct {
	out       map[string]map[string]struct{} // domain -> successors
	in        map[string]map[string]struct{} // domain -> predecessors
	edgeCount int
	mu        sync.RWMutex
}

// NewGraph creates an empty directed graph
func NewGraph() *Graph {
	return &Graph{
		out: make(map[string]map[string]struct{}),
		in:  make(map[string]map[string]struct{}),
	}
}

func (g *Graph) addNodeLocked(domain string) {
	if _, exists := g.out[domain]; exists {
		return
	}
	g.out[domain] = make(map[string]struct{})
	g.in[domain] = make(map[string]struct{})
}

// AddEdge inserts a directed edge, creating both endpoints as needed.
// Returns false for self-loops and edges that already exist.
func (g *Graph) AddEdge(from, to string) bool {
	if from == to {
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.addNodeLocked(from)
	g.addNodeLocked(to)

	if _, exists := g.out[from][to]; exists {
		return false
	}

	g.out[from][to] = struct{}{}
	g.in[to][from] = struct{}{}
	g.edgeCount++
	return true
}

// RemoveNode deletes a node and every edge incident to it
func (g *Graph) RemoveNode(domain string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	successors, exists := g.out[domain]
	if !exists {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, domain)
	}

	for to := range successors {
		delete(g.in[to], domain)
		g.edgeCount--
	}
	for from := range g.in[domain] {
		delete(g.out[from], domain)
		g.edgeCount--
	}

	delete(g.out, domain)
	delete(g.in, domain)
	return nil
}

// Nodes returns all nodes sorted by domain name
func (g *Graph) Nodes() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.out)
}

// Neighbors returns successors and predecessors together, ignoring edge direction
func (g *Graph) Neighbors(domain string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	seen := make(map[string]struct{}, len(g.out[domain])+len(g.in[domain]))
	for n := range g.out[domain] {
		seen[n] = struct{}{}
	}
	for n := range g.in[domain] {
		seen[n] = struct{}{}
	}
	return sortedKeys(seen)
}

// InDegree returns the number of inbound edges of a node
func (g *Graph) InDegree(domain string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.in[domain])
}

// OutDegree returns the number of outbound edges of a node
func (g *Graph) OutDegree(domain string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.out[domain])
}

// Degree returns the total number of edges incident to a node
func (g *Graph) Degree(domain string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.in[domain]) + len(g.out[domain])
}

// InducedEdges returns the edges whose endpoints both belong to members, ordered by source then target
func (g *Graph) InducedEdges(members []string) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()

	set := make(map[string]struct{}, len(members))
	for _, m := range members {
		set[m] = struct{}{}
	}

	sorted := sortedKeys(set)
	var edges []Edge
	for _, from := range sorted {
		for _, to := range sortedKeys(g.out[from]) {
			if _, ok := set[to]; ok {
				edges = append(edges, Edge{From: from, To: to})
			}
		}
	}
	return edges
}

// GetStats returns current graph statistics
func (g *Graph) GetStats() (nodeCount, edgeCount int) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.out), g.edgeCount
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
