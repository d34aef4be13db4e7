package network

import (
	"fmt"
	"sort"

	"github.com/alvmarrod/everest/internal/memory"
	"github.com/alvmarrod/everest/internal/storage"
)

// NodeInfo is the per-domain topology of the current graph
type NodeInfo struct {
	DomainName string `json:"domain"`
	Component  int    `json:"component"`
	AllLinks   int    `json:"all_links"`
	InLinks    int    `json:"in_links"`
	OutLinks   int    `json:"out_links"`
}

// Component is a weakly-connected component with its derived statistics
type Component struct {
	Index         int      `json:"component"`
	Members       []string `json:"members"`
	Size          int      `json:"size"`
	Links         int      `json:"links"`
	Density       float64  `json:"density"`
	Star          bool     `json:"star"`
	Centroid      string   `json:"centroid"`
	CentroidLinks int      `json:"centroid_links"`
}

// Topology is an immutable snapshot of the decomposition of one graph state
type Topology struct {
	Nodes      []NodeInfo
	Components []Component
	byDomain   map[string]int // domain -> index into Nodes
}

// computeTopology decomposes g into weakly-connected components ordered by
// descending size and derives node and component statistics.
// Equal-size components are ordered by their lowest member, and centroid ties
// go to the lowest domain name, so the result depends only on the graph.
func computeTopology(g *memory.Graph) *Topology {
	nodes := g.Nodes()

	visited := make(map[string]bool, len(nodes))
	var groups [][]string
	for _, start := range nodes {
		if visited[start] {
			continue
		}
		visited[start] = true

		members := []string{start}
		queue := []string{start}
		for len(queue) > 0 {
			current := queue[0]
			queue = queue[1:]
			for _, next := range g.Neighbors(current) {
				if visited[next] {
					continue
				}
				visited[next] = true
				members = append(members, next)
				queue = append(queue, next)
			}
		}

		sort.Strings(members)
		groups = append(groups, members)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if len(groups[i]) != len(groups[j]) {
			return len(groups[i]) > len(groups[j])
		}
		return groups[i][0] < groups[j][0]
	})

	topo := &Topology{
		Nodes:      make([]NodeInfo, 0, len(nodes)),
		Components: make([]Component, 0, len(groups)),
		byDomain:   make(map[string]int, len(nodes)),
	}

	for index, members := range groups {
		component := Component{
			Index:    index,
			Members:  members,
			Size:     len(members),
			Centroid: members[0],
		}
		component.CentroidLinks = -1

		for _, domain := range members {
			info := NodeInfo{
				DomainName: domain,
				Component:  index,
				AllLinks:   g.Degree(domain),
				InLinks:    g.InDegree(domain),
				OutLinks:   g.OutDegree(domain),
			}
			topo.Nodes = append(topo.Nodes, info)

			// Every edge leaving a member stays inside its weak component
			component.Links += info.OutLinks

			if info.AllLinks > component.CentroidLinks {
				component.Centroid = domain
				component.CentroidLinks = info.AllLinks
			}
		}

		component.Density = float64(component.Links) / float64(component.Size)
		component.Star = component.Links == component.CentroidLinks
		topo.Components = append(topo.Components, component)
	}

	sort.SliceStable(topo.Nodes, func(i, j int) bool {
		if topo.Nodes[i].AllLinks != topo.Nodes[j].AllLinks {
			return topo.Nodes[i].AllLinks > topo.Nodes[j].AllLinks
		}
		return topo.Nodes[i].DomainName < topo.Nodes[j].DomainName
	})
	for i, info := range topo.Nodes {
		topo.byDomain[info.DomainName] = i
	}

	return topo
}

// Node returns the topology row of a domain
func (t *Topology) Node(domain string) (NodeInfo, error) {
	i, ok := t.byDomain[domain]
	if !ok {
		return NodeInfo{}, fmt.Errorf("%w: %s", ErrNodeNotFound, domain)
	}
	return t.Nodes[i], nil
}

// ComponentOf returns the component index of a domain
func (t *Topology) ComponentOf(domain string) (int, error) {
	info, err := t.Node(domain)
	if err != nil {
		return 0, err
	}
	return info.Component, nil
}

// Component returns the component with the given index
func (t *Topology) Component(index int) (Component, error) {
	if index < 0 || index >= len(t.Components) {
		return Component{}, fmt.Errorf("%w: %d", ErrComponentNotFound, index)
	}
	return t.Components[index], nil
}

// MembersOf returns the sorted member domains of a component
func (t *Topology) MembersOf(index int) ([]string, error) {
	component, err := t.Component(index)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), component.Members...), nil
}

// clone copies the node and component slices so a caller can't reach the engine's snapshot
func (t *Topology) clone() *Topology {
	c := &Topology{
		Nodes:      append([]NodeInfo(nil), t.Nodes...),
		Components: make([]Component, len(t.Components)),
		byDomain:   t.byDomain,
	}
	for i, component := range t.Components {
		component.Members = append([]string(nil), component.Members...)
		c.Components[i] = component
	}
	return c
}

// Rows converts the node topology into storage rows
func (t *Topology) Rows() []storage.ComponentRow {
	rows := make([]storage.ComponentRow, 0, len(t.Nodes))
	for _, info := range t.Nodes {
		rows = append(rows, storage.ComponentRow{
			DomainName: info.DomainName,
			Component:  info.Component,
			AllLinks:   info.AllLinks,
			InLinks:    info.InLinks,
			OutLinks:   info.OutLinks,
		})
	}
	return rows
}
