package aggregate

import (
	"fmt"
	"sort"
	"time"

	"github.com/alvmarrod/everest/internal/network"
	"github.com/alvmarrod/everest/internal/storage"
)

// ComponentDomain is one graph node joined with its metrics
type ComponentDomain struct {
	DomainName     string     `json:"domain"`
	Component      int        `json:"component"`
	AllLinks       int        `json:"all_links"`
	InLinks        int        `json:"in_links"`
	OutLinks       int        `json:"out_links"`
	New            bool       `json:"new"`
	LiveBacklinks  *int64     `json:"live_backlinks"`
	TotalBacklinks *int64     `json:"total_backlinks"`
	DomainRating   *float64   `json:"domain_rating"`
	OrganicTraffic *int64     `json:"organic_traffic"`
	LastUpdated    *time.Time `json:"last_updated"`
}

// ComponentSummary is the rollup of one weakly-connected component
type ComponentSummary struct {
	Component           int      `json:"component"`
	Size                int      `json:"size"`
	Links               int      `json:"links"`
	Density             float64  `json:"density"`
	Star                bool     `json:"star"`
	Centroid            string   `json:"centroid"`
	CentroidLinks       int      `json:"centroid_links"`
	NumNewDomains       int      `json:"num_new_domains"`
	TotalLiveBacklinks  int64    `json:"total_live_backlinks"`
	TotalBacklinks      int64    `json:"total_backlinks"`
	TotalOrganicTraffic int64    `json:"total_organic_traffic"`
	MeanDomainRating    *float64 `json:"mean_domain_rating"`
	MaxDomainRating     *float64 `json:"max_domain_rating"`
	MeanOrganicTraffic  *float64 `json:"mean_organic_traffic"`
	MaxOrganicTraffic   *float64 `json:"max_organic_traffic"`
}

// ComponentReport holds the node rows and summaries of one topology snapshot
type ComponentReport struct {
	Threshold *time.Time
	Domains   []ComponentDomain
	Summaries []ComponentSummary

	byDomain    map[string]int
	byComponent map[int][]int
}

// BuildComponentReport joins every node of topology with metrics. Summaries
// keep the component order of the topology, which is size descending.
func BuildComponentReport(topology *network.Topology, metrics MetricsSource, opts Options) *ComponentReport {
	report := &ComponentReport{
		byDomain:    make(map[string]int),
		byComponent: make(map[int][]int),
	}
	if topology == nil {
		report.Threshold = resolveThreshold(opts.NewThreshold, nil)
		return report
	}

	nodes := append([]network.NodeInfo(nil), topology.Nodes...)
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].Component != nodes[j].Component {
			return nodes[i].Component < nodes[j].Component
		}
		return nodes[i].DomainName < nodes[j].DomainName
	})

	metricRows := make([]storage.DomainMetrics, len(nodes))
	for i, node := range nodes {
		metricRows[i] = lookup(metrics, node.DomainName)
	}
	report.Threshold = resolveThreshold(opts.NewThreshold, metricRows)

	report.Domains = make([]ComponentDomain, len(nodes))
	for i, node := range nodes {
		m := metricRows[i]
		report.Domains[i] = ComponentDomain{
			DomainName:     node.DomainName,
			Component:      node.Component,
			AllLinks:       node.AllLinks,
			InLinks:        node.InLinks,
			OutLinks:       node.OutLinks,
			New:            isNew(m, report.Threshold),
			LiveBacklinks:  m.LiveBacklinks,
			TotalBacklinks: m.TotalBacklinks,
			DomainRating:   m.DomainRating,
			OrganicTraffic: m.OrganicTraffic,
			LastUpdated:    m.LastUpdated,
		}
		report.byDomain[node.DomainName] = i
		report.byComponent[node.Component] = append(report.byComponent[node.Component], i)
	}

	report.Summaries = make([]ComponentSummary, 0, len(topology.Components))
	for _, c := range topology.Components {
		report.Summaries = append(report.Summaries, summarizeComponent(c, report.Domains, report.byComponent[c.Index]))
	}
	return report
}

// SummarizeComponents returns one summary row per component of topology
func SummarizeComponents(topology *network.Topology, metrics MetricsSource, opts Options) []ComponentSummary {
	return BuildComponentReport(topology, metrics, opts).Summaries
}

func summarizeComponent(c network.Component, rows []ComponentDomain, members []int) ComponentSummary {
	var live, total, rating, traffic Rollup
	summary := ComponentSummary{
		Component:     c.Index,
		Size:          c.Size,
		Links:         c.Links,
		Density:       c.Density,
		Star:          c.Star,
		Centroid:      c.Centroid,
		CentroidLinks: c.CentroidLinks,
	}

	for _, i := range members {
		row := rows[i]
		if row.New {
			summary.NumNewDomains++
		}
		live.AddInt(row.LiveBacklinks)
		total.AddInt(row.TotalBacklinks)
		rating.Add(row.DomainRating)
		traffic.AddInt(row.OrganicTraffic)
	}

	summary.TotalLiveBacklinks = int64(live.Sum())
	summary.TotalBacklinks = int64(total.Sum())
	summary.TotalOrganicTraffic = int64(traffic.Sum())
	summary.MeanDomainRating = rating.Mean()
	summary.MaxDomainRating = rating.Max()
	summary.MeanOrganicTraffic = traffic.Mean()
	summary.MaxOrganicTraffic = traffic.Max()
	return summary
}

// Summary returns the summary row of a component
func (r *ComponentReport) Summary(index int) (ComponentSummary, error) {
	if index < 0 || index >= len(r.Summaries) {
		return ComponentSummary{}, fmt.Errorf("%w: component %d", ErrGroupNotFound, index)
	}
	return r.Summaries[index], nil
}

// DomainsOf returns the node rows of a component ordered by domain
func (r *ComponentReport) DomainsOf(index int) ([]ComponentDomain, error) {
	members, ok := r.byComponent[index]
	if !ok {
		return nil, fmt.Errorf("%w: component %d", ErrGroupNotFound, index)
	}
	out := make([]ComponentDomain, 0, len(members))
	for _, i := range members {
		out = append(out, r.Domains[i])
	}
	return out, nil
}

// Domain returns the node row of a domain
func (r *ComponentReport) Domain(domain string) (ComponentDomain, error) {
	i, ok := r.byDomain[domain]
	if !ok {
		return ComponentDomain{}, fmt.Errorf("%w: %s is not in the graph", ErrDomainNotFound, domain)
	}
	return r.Domains[i], nil
}
