package cli

// GlobalFlags holds flags available to all subcommands.
type GlobalFlags struct {
	Config  string `long:"config" description:"Path to config file" default:"config.json"`
	JSON    bool   `long:"json" description:"Output in JSON format"`
	Verbose bool   `long:"verbose" description:"Enable debug logging"`
	Version bool   `long:"version" description:"Show version and exit"`
}

// ImportCommand loads referring-domain metric exports into the store.
type ImportCommand struct {
	Args struct {
		Files []string `positional-arg-name:"file" required:"1"`
	} `positional-args:"yes"`

	globals *GlobalFlags
	version string
}

// ScrapeCommand fetches referring domains and stores their text and links.
type ScrapeCommand struct {
	All bool `long:"all" description:"Rescrape domains that already have a successful scrape"`

	globals *GlobalFlags
	version string
}

// ClusterCommand relabels every scraped domain by language and content.
type ClusterCommand struct {
	MinClusterSize int `long:"min-cluster-size" description:"Override min_cluster_size"`

	globals *GlobalFlags
	version string
}

// NetworkCommand builds the link graph and stores its components.
type NetworkCommand struct {
	LinkSource string   `long:"link-source" description:"Link list used for edges: all_ahrefs_domains | all_domains | all_links"`
	Remove     []string `long:"remove" description:"Remove a domain from the graph before decomposing (repeatable)"`
	Component  int      `long:"component" description:"Print the nodes and edges of one component" default:"-1"`

	globals *GlobalFlags
	version string
}

// SummaryCommand prints or exports per-cluster and per-component summaries.
type SummaryCommand struct {
	NewThreshold string   `long:"new-threshold" description:"Domains updated on or after this date count as new (YYYY-MM-DD)"`
	LinkSource   string   `long:"link-source" description:"Override link_source for the component summary"`
	Remove       []string `long:"remove" description:"Remove a domain from the graph before summarizing (repeatable)"`
	Domain       string   `long:"domain" description:"Only show the cluster and component of this domain"`
	Report       bool     `long:"report" description:"Write an xlsx workbook to report_path"`
	Output       string   `long:"output" description:"Override report_path"`

	globals *GlobalFlags
	version string
}
