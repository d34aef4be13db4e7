// Package network builds the directed link graph between scraped domains and
// decomposes it into weakly-connected components.
//
// A Network is a small state machine. Construction builds the graph and
// recomputes its topology (Built). Every structural mutation marks the graph
// Stale and recomputes before returning, so readers never observe component
// indices that disagree with the graph.
package network

import (
	"errors"
	"fmt"
	"sync"

	"github.com/alvmarrod/everest/internal/memory"
	"github.com/alvmarrod/everest/internal/storage"
	"github.com/sirupsen/logrus"
)

var (
	ErrUnknownLinkSource = errors.New("network link source must be 'all_ahrefs_domains', 'all_domains', or 'all_links'")
	ErrNodeNotFound      = memory.ErrNodeNotFound
	ErrComponentNotFound = errors.New("component not found")
)

// LinkSource selects which link list of a domain produces graph edges
type LinkSource string

const (
	LinkSourceRegisteredDomains LinkSource = "all_ahrefs_domains"
	LinkSourceMainDomains       LinkSource = "all_domains"
	LinkSourceRaw               LinkSource = "all_links"

	DefaultLinkSource = LinkSourceRegisteredDomains
)

// ParseLinkSource validates a configured link source name
func ParseLinkSource(name string) (LinkSource, error) {
	source := LinkSource(name)
	if err := source.Validate(); err != nil {
		return "", err
	}
	return source, nil
}

// Validate reports ErrUnknownLinkSource for unrecognized values
func (s LinkSource) Validate() error {
	switch s {
	case LinkSourceRegisteredDomains, LinkSourceMainDomains, LinkSourceRaw:
		return nil
	}
	return fmt.Errorf("%w (got %q)", ErrUnknownLinkSource, string(s))
}

func (s LinkSource) links(d storage.Domain) []string {
	switch s {
	case LinkSourceMainDomains:
		return d.MainDomainLinks
	case LinkSourceRaw:
		return d.Links
	default:
		return d.RegisteredDomainLinks
	}
}

// State is the lifecycle state of a Network
type State int

const (
	StateAbsent State = iota
	StateBuilt
	StateStale
)

func (s State) String() string {
	switch s {
	case StateBuilt:
		return "built"
	case StateStale:
		return "stale"
	default:
		return "absent"
	}
}

// Subgraph is the node and edge set of one component, for external rendering
type Subgraph struct {
	Component int           `json:"component"`
	Nodes     []string      `json:"nodes"`
	Edges     []memory.Edge `json:"edges"`
}

// Network owns the link graph of a fixed domain set
type Network struct {
	mu       sync.RWMutex
	domains  []storage.Domain
	source   LinkSource
	graph    *memory.Graph
	removed  []string
	state    State
	topology *Topology
}

// New builds the graph for domains using the given link source and computes its topology
func New(domains []storage.Domain, source LinkSource) (*Network, error) {
	if err := source.Validate(); err != nil {
		return nil, err
	}

	n := &Network{
		domains: append([]storage.Domain(nil), domains...),
		source:  source,
	}
	n.buildLocked()
	n.recomputeLocked()
	return n, nil
}

// buildLocked reselects every edge from the original domain set and clears the removal history
func (n *Network) buildLocked() {
	g := memory.NewGraph()
	for _, d := range n.domains {
		for _, target := range n.source.links(d) {
			if target == "" {
				continue
			}
			g.AddEdge(d.DomainName, target)
		}
	}

	n.graph = g
	n.removed = nil
	n.state = StateStale

	nodes, edges := g.GetStats()
	logrus.Infof("Network graph built from %s: %d nodes, %d edges", n.source, nodes, edges)
}

func (n *Network) recomputeLocked() {
	n.topology = computeTopology(n.graph)
	n.state = StateBuilt
	logrus.Debugf("Network topology recomputed: %d components", len(n.topology.Components))
}

// Recompute rebuilds the derived statistics from the current graph
func (n *Network) Recompute() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.recomputeLocked()
}

// RemoveNode drops a domain and its incident edges, then recomputes
func (n *Network) RemoveNode(domain string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if err := n.graph.RemoveNode(domain); err != nil {
		return err
	}
	n.removed = append(n.removed, domain)
	n.state = StateStale
	n.recomputeLocked()

	logrus.Infof("Removed %s from network: %d components remain", domain, len(n.topology.Components))
	return nil
}

// SetLinkSource switches the edge source and rebuilds from scratch.
// The removal history is discarded.
func (n *Network) SetLinkSource(source LinkSource) error {
	if err := source.Validate(); err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	n.source = source
	n.buildLocked()
	n.recomputeLocked()
	return nil
}

// LinkSource returns the active link source
func (n *Network) LinkSource() LinkSource {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.source
}

// State returns the lifecycle state
func (n *Network) State() State {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.state
}

// Removed returns the domains removed since the last build, in removal order
func (n *Network) Removed() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]string(nil), n.removed...)
}

// Topology returns a copy of the current decomposition
func (n *Network) Topology() *Topology {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.topology.clone()
}

// Stats returns the node and edge counts of the current graph
func (n *Network) Stats() (nodeCount, edgeCount int) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.graph.GetStats()
}

// ComponentOf returns the component index of a domain
func (n *Network) ComponentOf(domain string) (int, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.topology.ComponentOf(domain)
}

// MembersOf returns the members of a component
func (n *Network) MembersOf(index int) ([]string, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.topology.MembersOf(index)
}

// Subgraph returns the nodes and internal edges of a component
func (n *Network) Subgraph(index int) (Subgraph, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	members, err := n.topology.MembersOf(index)
	if err != nil {
		return Subgraph{}, err
	}
	return Subgraph{
		Component: index,
		Nodes:     members,
		Edges:     n.graph.InducedEdges(members),
	}, nil
}
