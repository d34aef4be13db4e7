package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/alvmarrod/everest/internal/aggregate"
	"github.com/alvmarrod/everest/internal/cluster"
	"github.com/alvmarrod/everest/internal/config"
	"github.com/alvmarrod/everest/internal/report"
	"github.com/sirupsen/logrus"
)

type summaryJSON struct {
	Threshold  *time.Time                   `json:"threshold"`
	Clusters   []aggregate.ClusterSummary   `json:"clusters"`
	Components []aggregate.ComponentSummary `json:"components"`
}

type domainJSON struct {
	Domain    string                      `json:"domain"`
	Cluster   []aggregate.ClusterDomain   `json:"cluster"`
	Component *aggregate.ComponentSummary `json:"component"`
	Node      *aggregate.ComponentDomain  `json:"node"`
}

// Execute implements the go-flags Commander interface for SummaryCommand.
func (c *SummaryCommand) Execute(args []string) error {
	cfg, store, err := setup(c.globals)
	if err != nil {
		return err
	}
	defer store.Close()

	opts := aggregate.Options{NewThreshold: cfg.Threshold()}
	if c.NewThreshold != "" {
		threshold, err := config.ParseThreshold(c.NewThreshold)
		if err != nil {
			return err
		}
		opts.NewThreshold = threshold
	}

	ctx := context.Background()
	rows, err := store.LoadClusters(ctx)
	if err != nil {
		return err
	}
	metricsByDomain, err := store.LoadMetrics(ctx)
	if err != nil {
		return err
	}
	metrics := aggregate.MetricsMap(metricsByDomain)

	net, err := loadNetwork(ctx, cfg, store, c.LinkSource, c.Remove)
	if err != nil {
		return err
	}

	clusters := aggregate.BuildClusterReport(cluster.AssignmentFromRows(rows), metrics, opts)
	components := aggregate.BuildComponentReport(net.Topology(), metrics, opts)
	logrus.Infof("Summarized %d clusters and %d components", len(clusters.Summaries), len(components.Summaries))

	if c.Report {
		path := cfg.ReportPath
		if c.Output != "" {
			path = c.Output
		}
		if err := report.Write(path, clusters, components); err != nil {
			return err
		}
		logrus.Infof("Report written to %s", path)
	}

	if c.Domain != "" {
		return c.printDomain(clusters, components)
	}

	if c.globals.JSON {
		return printJSON(summaryJSON{
			Threshold:  clusters.Threshold,
			Clusters:   clusters.Summaries,
			Components: components.Summaries,
		})
	}

	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CLUSTER\tLANGUAGE\tDOMAINS\tNEW\tLIVE BACKLINKS\tTRAFFIC\tMEAN DISTANCE\tMEDIAN DR")
	for _, s := range clusters.Summaries {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%s\t%s\n",
			s.Cluster, s.Language, s.NumDomains, s.NumNewDomains, s.TotalLiveBacklinks,
			s.TotalOrganicTraffic, formatFloat(s.MeanDistance), formatFloat(s.MedianDomainRating))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "COMPONENT\tSIZE\tLINKS\tDENSITY\tCENTROID\tNEW\tLIVE BACKLINKS\tMEAN DR")
	for _, s := range components.Summaries {
		fmt.Fprintf(w, "%d\t%d\t%d\t%.3f\t%s\t%d\t%d\t%s\n",
			s.Component, s.Size, s.Links, s.Density, s.Centroid, s.NumNewDomains,
			s.TotalLiveBacklinks, formatFloat(s.MeanDomainRating))
	}
	return w.Flush()
}

func (c *SummaryCommand) printDomain(clusters *aggregate.ClusterReport, components *aggregate.ComponentReport) error {
	out := domainJSON{Domain: c.Domain}

	if similar, err := clusters.DomainsLike(c.Domain); err == nil {
		out.Cluster = similar
	} else {
		logrus.Debugf("No cluster for %s: %v", c.Domain, err)
	}
	if node, err := components.Domain(c.Domain); err == nil {
		out.Node = &node
		if summary, err := components.Summary(node.Component); err == nil {
			out.Component = &summary
		}
	} else {
		logrus.Debugf("No component for %s: %v", c.Domain, err)
	}

	if out.Cluster == nil && out.Node == nil {
		return fmt.Errorf("%w: %s", aggregate.ErrDomainNotFound, c.Domain)
	}
	if c.globals.JSON {
		return printJSON(out)
	}

	if out.Cluster != nil {
		fmt.Fprintf(stdout, "Cluster %s (%s):\n", out.Cluster[0].Cluster, out.Cluster[0].Language)
		w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  DOMAIN\tNEW\tDR\tLAST UPDATED")
		for _, d := range out.Cluster {
			fmt.Fprintf(w, "  %s\t%t\t%s\t%s\n", d.DomainName, d.New, formatFloat(d.DomainRating), formatDate(d.LastUpdated))
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
	if out.Node != nil && out.Component != nil {
		fmt.Fprintf(stdout, "Component %d: %d domains, centroid %s, %d in / %d out links\n",
			out.Component.Component, out.Component.Size, out.Component.Centroid, out.Node.InLinks, out.Node.OutLinks)
	}
	return nil
}
