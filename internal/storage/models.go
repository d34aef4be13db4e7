package storage

import "time"

// Domain is a scraped domain as seen by the clustering and network engines
type Domain struct {
	DomainName            string
	Language              string
	Title                 string
	Text                  string
	Links                 []string // raw outbound link URLs
	MainDomainLinks       []string // hosts with scheme and www stripped
	RegisteredDomainLinks []string // hosts matched against known referring domains
}

// DomainMetrics holds third-party SEO metrics for a referring domain.
// Nil fields were absent in the source export.
type DomainMetrics struct {
	DomainName           string
	DomainRating         *float64
	OrganicTraffic       *int64
	LiveBacklinks        *int64
	TotalBacklinks       *int64
	FirstSeen            *time.Time
	LastUpdated          *time.Time
	LastSuccessfulScrape *time.Time
}

// ScrapeResult is the outcome of one scrape attempt written back by the crawler
type ScrapeResult struct {
	DomainName            string
	Title                 string
	Text                  string
	Language              string
	Links                 []string
	MainDomainLinks       []string
	RegisteredDomainLinks []string
	AttemptedAt           time.Time
	Err                   error
}

// ClusterRow is one persisted content cluster label
type ClusterRow struct {
	DomainName   string
	Language     string
	Cluster      string
	MeanDistance *float64
}

// ComponentRow is one persisted link-graph component membership with node degrees
type ComponentRow struct {
	DomainName string
	Component  int
	AllLinks   int
	InLinks    int
	OutLinks   int
}

// Metrics tracks run statistics for export on exit
type Metrics struct {
	Command             string    `json:"command"`
	StartTime           time.Time `json:"start_time"`
	EndTime             time.Time `json:"end_time"`
	DomainsScraped      int       `json:"domains_scraped"`
	ScrapesFailed       int       `json:"scrapes_failed"`
	TotalFetchTimeMs    int64     `json:"total_fetch_time_ms"`
	AvgFetchTimeMs      int64     `json:"avg_fetch_time_ms"`
	PartitionsClustered int       `json:"partitions_clustered"`
	PartitionsFailed    int       `json:"partitions_failed"`
	DomainsLabelled     int       `json:"domains_labelled"`
	DomainsNoise        int       `json:"domains_noise"`
	ValidClusters       int       `json:"valid_clusters"`
	GraphNodes          int       `json:"graph_nodes"`
	GraphEdges          int       `json:"graph_edges"`
	Components          int       `json:"components"`
	NodesRemoved        int       `json:"nodes_removed"`
	TerminationReason   string    `json:"termination_reason"`
}
