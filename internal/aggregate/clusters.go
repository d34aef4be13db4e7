package aggregate

import (
	"fmt"
	"sort"
	"time"

	"github.com/alvmarrod/everest/internal/cluster"
	"github.com/alvmarrod/everest/internal/storage"
)

// ClusterDomain is one valid cluster member joined with its metrics
type ClusterDomain struct {
	DomainName     string     `json:"domain"`
	Cluster        string     `json:"cluster"`
	Language       string     `json:"language"`
	MeanDistance   *float64   `json:"mean_distance"`
	New            bool       `json:"new"`
	LiveBacklinks  *int64     `json:"live_backlinks"`
	TotalBacklinks *int64     `json:"total_backlinks"`
	DomainRating   *float64   `json:"domain_rating"`
	OrganicTraffic *int64     `json:"organic_traffic"`
	FirstSeen      *time.Time `json:"first_seen"`
	LastUpdated    *time.Time `json:"last_updated"`
}

// ClusterSummary is the rollup of one valid cluster
type ClusterSummary struct {
	Cluster              string   `json:"cluster"`
	Language             string   `json:"language"`
	NumDomains           int      `json:"num_domains"`
	NumNewDomains        int      `json:"num_new_domains"`
	TotalLiveBacklinks   int64    `json:"total_live_backlinks"`
	TotalBacklinks       int64    `json:"total_backlinks"`
	TotalOrganicTraffic  int64    `json:"total_organic_traffic"`
	MeanDistance         *float64 `json:"mean_distance"`
	MedianLiveBacklinks  *float64 `json:"median_live_backlinks"`
	MedianBacklinks      *float64 `json:"median_backlinks"`
	MedianDomainRating   *float64 `json:"median_domain_rating"`
	MedianOrganicTraffic *float64 `json:"median_organic_traffic"`
	MaxLiveBacklinks     *float64 `json:"max_live_backlinks"`
	MaxBacklinks         *float64 `json:"max_backlinks"`
	MaxDomainRating      *float64 `json:"max_domain_rating"`
	MaxOrganicTraffic    *float64 `json:"max_organic_traffic"`
}

// ClusterReport holds the member rows and summaries of the valid clusters of one run
type ClusterReport struct {
	Threshold *time.Time
	Domains   []ClusterDomain
	Summaries []ClusterSummary

	byDomain  map[string]int
	byCluster map[string][]int
}

// BuildClusterReport joins the valid labels of assignment with metrics.
// Noise and failed labels produce neither member rows nor summaries.
func BuildClusterReport(assignment cluster.Assignment, metrics MetricsSource, opts Options) *ClusterReport {
	labels := make([]cluster.Label, 0, len(assignment))
	for _, l := range assignment {
		if l.Valid() {
			labels = append(labels, l)
		}
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i].DomainName < labels[j].DomainName })

	joined := make([]ClusterDomain, len(labels))
	metricRows := make([]storage.DomainMetrics, len(labels))
	for i, l := range labels {
		metricRows[i] = lookup(metrics, l.DomainName)
	}
	threshold := resolveThreshold(opts.NewThreshold, metricRows)

	report := &ClusterReport{
		Threshold: threshold,
		byDomain:  make(map[string]int, len(labels)),
		byCluster: make(map[string][]int),
	}

	for i, l := range labels {
		m := metricRows[i]
		joined[i] = ClusterDomain{
			DomainName:     l.DomainName,
			Cluster:        l.Cluster,
			Language:       l.Language,
			MeanDistance:   l.Cohesion,
			New:            isNew(m, threshold),
			LiveBacklinks:  m.LiveBacklinks,
			TotalBacklinks: m.TotalBacklinks,
			DomainRating:   m.DomainRating,
			OrganicTraffic: m.OrganicTraffic,
			FirstSeen:      m.FirstSeen,
			LastUpdated:    m.LastUpdated,
		}
		report.byDomain[l.DomainName] = i
		report.byCluster[l.Cluster] = append(report.byCluster[l.Cluster], i)
	}
	report.Domains = joined

	for name, members := range report.byCluster {
		report.Summaries = append(report.Summaries, summarizeCluster(name, joined, members))
	}
	sortClusterSummaries(report.Summaries)

	return report
}

func summarizeCluster(name string, rows []ClusterDomain, members []int) ClusterSummary {
	var distance, live, total, rating, traffic Rollup
	summary := ClusterSummary{Cluster: name}

	for _, i := range members {
		row := rows[i]
		summary.Language = row.Language
		if row.New {
			summary.NumNewDomains++
		}
		distance.Add(row.MeanDistance)
		live.AddInt(row.LiveBacklinks)
		total.AddInt(row.TotalBacklinks)
		rating.Add(row.DomainRating)
		traffic.AddInt(row.OrganicTraffic)
	}

	summary.NumDomains = distance.Count()
	summary.TotalLiveBacklinks = int64(live.Sum())
	summary.TotalBacklinks = int64(total.Sum())
	summary.TotalOrganicTraffic = int64(traffic.Sum())
	summary.MeanDistance = distance.Median()
	summary.MedianLiveBacklinks = live.Median()
	summary.MedianBacklinks = total.Median()
	summary.MedianDomainRating = rating.Median()
	summary.MedianOrganicTraffic = traffic.Median()
	summary.MaxLiveBacklinks = live.Max()
	summary.MaxBacklinks = total.Max()
	summary.MaxDomainRating = rating.Max()
	summary.MaxOrganicTraffic = traffic.Max()
	return summary
}

// sortClusterSummaries orders by language ascending, size descending, then
// tightest cohesion first. Clusters without cohesion sort last within their size.
func sortClusterSummaries(summaries []ClusterSummary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		a, b := summaries[i], summaries[j]
		if a.Language != b.Language {
			return a.Language < b.Language
		}
		if a.NumDomains != b.NumDomains {
			return a.NumDomains > b.NumDomains
		}
		if (a.MeanDistance == nil) != (b.MeanDistance == nil) {
			return a.MeanDistance != nil
		}
		if a.MeanDistance != nil && *a.MeanDistance != *b.MeanDistance {
			return *a.MeanDistance < *b.MeanDistance
		}
		return a.Cluster < b.Cluster
	})
}

// SummarizeClusters returns the ordered summary rows of the valid clusters in assignment
func SummarizeClusters(assignment cluster.Assignment, metrics MetricsSource, opts Options) []ClusterSummary {
	return BuildClusterReport(assignment, metrics, opts).Summaries
}

// Summary returns the summary row of a cluster
func (r *ClusterReport) Summary(name string) (ClusterSummary, error) {
	for _, s := range r.Summaries {
		if s.Cluster == name {
			return s, nil
		}
	}
	return ClusterSummary{}, fmt.Errorf("%w: cluster %s", ErrGroupNotFound, name)
}

// DomainsOf returns the member rows of a cluster ordered by domain
func (r *ClusterReport) DomainsOf(name string) ([]ClusterDomain, error) {
	members, ok := r.byCluster[name]
	if !ok {
		return nil, fmt.Errorf("%w: cluster %s", ErrGroupNotFound, name)
	}
	out := make([]ClusterDomain, 0, len(members))
	for _, i := range members {
		out = append(out, r.Domains[i])
	}
	return out, nil
}

// DomainsLike returns the member rows of the cluster that contains domain
func (r *ClusterReport) DomainsLike(domain string) ([]ClusterDomain, error) {
	i, ok := r.byDomain[domain]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no valid cluster", ErrDomainNotFound, domain)
	}
	return r.DomainsOf(r.Domains[i].Cluster)
}
