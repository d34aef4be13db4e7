package network

import (
	"testing"

	"github.com/alvmarrod/everest/internal/memory"
	"github.com/alvmarrod/everest/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawDomains(links map[string][]string) []storage.Domain {
	var domains []storage.Domain
	for name, targets := range links {
		domains = append(domains, storage.Domain{DomainName: name, Links: targets})
	}
	return domains
}

func newRawNetwork(t *testing.T, links map[string][]string) *Network {
	t.Helper()
	n, err := New(rawDomains(links), LinkSourceRaw)
	require.NoError(t, err)
	return n
}

func assertStarInvariant(t *testing.T, topo *Topology) {
	t.Helper()
	for _, c := range topo.Components {
		assert.Equal(t, c.Links == c.CentroidLinks, c.Star, "component %d", c.Index)
	}
}

func TestNetwork_TwoPairs(t *testing.T) {
	n := newRawNetwork(t, map[string][]string{
		"a.com": {"b.com"},
		"b.com": {"a.com"},
		"c.com": {"d.com"},
	})

	assert.Equal(t, StateBuilt, n.State())
	topo := n.Topology()
	require.Len(t, topo.Components, 2)

	ab := topo.Components[0]
	assert.Equal(t, []string{"a.com", "b.com"}, ab.Members)
	assert.Equal(t, 2, ab.Size)
	assert.Equal(t, 2, ab.Links)
	assert.Equal(t, 2, ab.CentroidLinks)
	assert.Equal(t, "a.com", ab.Centroid, "equal degree resolves to the lowest domain")
	assert.InDelta(t, 1.0, ab.Density, 1e-9)
	assert.True(t, ab.Star)

	cd := topo.Components[1]
	assert.Equal(t, []string{"c.com", "d.com"}, cd.Members)
	assert.Equal(t, 1, cd.Links)
	assert.Equal(t, 1, cd.CentroidLinks)
	assert.Equal(t, "c.com", cd.Centroid)
	assert.InDelta(t, 0.5, cd.Density, 1e-9)
	assert.True(t, cd.Star)

	info, err := topo.Node("d.com")
	require.NoError(t, err)
	assert.Equal(t, NodeInfo{DomainName: "d.com", Component: 1, AllLinks: 1, InLinks: 1, OutLinks: 0}, info)
}

func TestNetwork_ComponentsOrderedBySize(t *testing.T) {
	n := newRawNetwork(t, map[string][]string{
		"small.com": {"x.com"},
		"hub.com":   {"a.com", "b.com", "c.com"},
	})

	topo := n.Topology()
	require.Len(t, topo.Components, 2)
	assert.Equal(t, 4, topo.Components[0].Size)
	assert.Equal(t, 0, topo.Components[0].Index)
	assert.Equal(t, "hub.com", topo.Components[0].Centroid)
	assert.Equal(t, 3, topo.Components[0].CentroidLinks)
	assert.True(t, topo.Components[0].Star)
	assert.Equal(t, 2, topo.Components[1].Size)
	assert.Equal(t, 1, topo.Components[1].Index)

	assert.Equal(t, "hub.com", topo.Nodes[0].DomainName, "nodes ordered by total degree")
}

func TestNetwork_NonStarComponent(t *testing.T) {
	n := newRawNetwork(t, map[string][]string{
		"hub.com": {"a.com", "b.com"},
		"a.com":   {"b.com"},
	})

	c := n.Topology().Components[0]
	assert.Equal(t, 3, c.Links)
	assert.Equal(t, 2, c.CentroidLinks)
	assert.False(t, c.Star)
	assertStarInvariant(t, n.Topology())
}

func TestNetwork_SelfLoopsAndEmptyLists(t *testing.T) {
	n := newRawNetwork(t, map[string][]string{
		"a.com":      {"a.com", "b.com", "b.com", ""},
		"lonely.com": nil,
	})

	nodes, edges := n.Stats()
	assert.Equal(t, 2, nodes)
	assert.Equal(t, 1, edges)

	_, err := n.ComponentOf("lonely.com")
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestNetwork_RecomputeIsIdempotent(t *testing.T) {
	n := newRawNetwork(t, map[string][]string{
		"a.com": {"b.com", "c.com"},
		"d.com": {"e.com"},
		"f.com": {"a.com", "e.com"},
	})

	before := n.Topology()
	n.Recompute()
	after := n.Topology()

	assert.Equal(t, before.Nodes, after.Nodes)
	assert.Equal(t, before.Components, after.Components)
}

func TestNetwork_TopologyIsACopy(t *testing.T) {
	n := newRawNetwork(t, map[string][]string{
		"a.com": {"b.com"},
		"c.com": {"d.com", "e.com"},
	})

	topo := n.Topology()
	topo.Components[0].Members[0] = "mutated.com"
	topo.Components[0].Size = 99
	topo.Nodes[0].DomainName = "mutated.com"

	fresh := n.Topology()
	assert.Equal(t, []string{"c.com", "d.com", "e.com"}, fresh.Components[0].Members)
	assert.Equal(t, 3, fresh.Components[0].Size)
	assert.NotEqual(t, "mutated.com", fresh.Nodes[0].DomainName)

	members, err := n.MembersOf(0)
	require.NoError(t, err)
	assert.Equal(t, []string{"c.com", "d.com", "e.com"}, members)
}

func TestNetwork_RemoveNodeSplitsComponent(t *testing.T) {
	n := newRawNetwork(t, map[string][]string{
		"hub.com": {"a.com", "b.com", "c.com"},
		"x.com":   {"y.com"},
	})
	require.Len(t, n.Topology().Components, 2)

	require.NoError(t, n.RemoveNode("hub.com"))

	assert.Equal(t, StateBuilt, n.State())
	assert.Equal(t, []string{"hub.com"}, n.Removed())

	topo := n.Topology()
	// hub.com had 3 neighbours, so at most 3 pieces replace its component
	assert.LessOrEqual(t, len(topo.Components), 2-1+3)
	require.Len(t, topo.Components, 4)
	assert.Equal(t, []string{"x.com", "y.com"}, topo.Components[0].Members)
	for i, c := range topo.Components {
		assert.Equal(t, i, c.Index, "indices are dense")
	}

	isolated := topo.Components[1]
	assert.Equal(t, 1, isolated.Size)
	assert.Equal(t, 0, isolated.Links)
	assert.True(t, isolated.Star)
	assertStarInvariant(t, topo)

	_, err := n.ComponentOf("hub.com")
	assert.ErrorIs(t, err, ErrNodeNotFound)
	for i := range topo.Components {
		members, err := n.MembersOf(i)
		require.NoError(t, err)
		assert.NotContains(t, members, "hub.com")
	}
}

func TestNetwork_RemoveUnknownNode(t *testing.T) {
	n := newRawNetwork(t, map[string][]string{"a.com": {"b.com"}})

	err := n.RemoveNode("missing.com")
	assert.ErrorIs(t, err, ErrNodeNotFound)
	assert.Empty(t, n.Removed())
	assert.Equal(t, StateBuilt, n.State())
}

func TestNetwork_SetLinkSourceResetsHistory(t *testing.T) {
	domains := []storage.Domain{
		{
			DomainName:            "a.com",
			Links:                 []string{"https://www.b.com/page"},
			MainDomainLinks:       []string{"b.com"},
			RegisteredDomainLinks: []string{"b.com", "c.com"},
		},
	}

	n, err := New(domains, DefaultLinkSource)
	require.NoError(t, err)
	_, edges := n.Stats()
	assert.Equal(t, 2, edges)

	require.NoError(t, n.RemoveNode("c.com"))
	assert.Equal(t, []string{"c.com"}, n.Removed())

	require.NoError(t, n.SetLinkSource(LinkSourceMainDomains))
	assert.Equal(t, LinkSourceMainDomains, n.LinkSource())
	assert.Empty(t, n.Removed())
	_, edges = n.Stats()
	assert.Equal(t, 1, edges)

	require.NoError(t, n.SetLinkSource(LinkSourceRegisteredDomains))
	_, err = n.ComponentOf("c.com")
	assert.NoError(t, err, "switching source rebuilds from the original domain set")
}

func TestNetwork_UnknownLinkSource(t *testing.T) {
	_, err := New(nil, LinkSource("backlinks"))
	assert.ErrorIs(t, err, ErrUnknownLinkSource)

	n := newRawNetwork(t, map[string][]string{"a.com": {"b.com"}})
	err = n.SetLinkSource("nope")
	assert.ErrorIs(t, err, ErrUnknownLinkSource)
	assert.Equal(t, LinkSourceRaw, n.LinkSource())

	_, err = ParseLinkSource("all_domains")
	assert.NoError(t, err)
}

func TestNetwork_Subgraph(t *testing.T) {
	n := newRawNetwork(t, map[string][]string{
		"a.com": {"b.com"},
		"b.com": {"c.com"},
		"x.com": {"y.com"},
	})

	sub, err := n.Subgraph(0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.com", "b.com", "c.com"}, sub.Nodes)
	assert.Equal(t, []memory.Edge{{From: "a.com", To: "b.com"}, {From: "b.com", To: "c.com"}}, sub.Edges)

	_, err = n.Subgraph(7)
	assert.ErrorIs(t, err, ErrComponentNotFound)
	_, err = n.MembersOf(-1)
	assert.ErrorIs(t, err, ErrComponentNotFound)
}

func TestTopology_Rows(t *testing.T) {
	n := newRawNetwork(t, map[string][]string{"a.com": {"b.com"}})

	rows := n.Topology().Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, storage.ComponentRow{DomainName: "a.com", Component: 0, AllLinks: 1, InLinks: 0, OutLinks: 1}, rows[0])
}

func TestTopology_AllLinksCountsBothDirections(t *testing.T) {
	n := newRawNetwork(t, map[string][]string{
		"a.com": {"b.com", "c.com"},
		"b.com": {"a.com"},
	})

	info, err := n.Topology().Node("a.com")
	require.NoError(t, err)
	assert.Equal(t, 1, info.InLinks)
	assert.Equal(t, 2, info.OutLinks)
	assert.Equal(t, 3, info.AllLinks)
}
