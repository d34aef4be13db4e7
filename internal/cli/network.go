package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/alvmarrod/everest/internal/config"
	"github.com/alvmarrod/everest/internal/metrics"
	"github.com/alvmarrod/everest/internal/network"
	"github.com/alvmarrod/everest/internal/storage"
	"github.com/sirupsen/logrus"
)

// loadNetwork builds the link graph of the scraped domains and applies removals in order
func loadNetwork(ctx context.Context, cfg *config.Config, store *storage.Storage, sourceName string, remove []string) (*network.Network, error) {
	if sourceName == "" {
		sourceName = cfg.LinkSource
	}
	source, err := network.ParseLinkSource(sourceName)
	if err != nil {
		return nil, err
	}

	domains, err := store.LoadNetworkDomains(ctx)
	if err != nil {
		return nil, err
	}

	net, err := network.New(domains, source)
	if err != nil {
		return nil, err
	}
	for _, domain := range remove {
		if err := net.RemoveNode(domain); err != nil {
			return nil, fmt.Errorf("remove %s: %w", domain, err)
		}
	}
	return net, nil
}

// Execute implements the go-flags Commander interface for NetworkCommand.
func (c *NetworkCommand) Execute(args []string) error {
	cfg, store, err := setup(c.globals)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	net, err := loadNetwork(ctx, cfg, store, c.LinkSource, c.Remove)
	if err != nil {
		return err
	}
	topology := net.Topology()

	if err := store.ReplaceComponents(ctx, topology.Rows()); err != nil {
		return err
	}

	nodes, edges := net.Stats()
	tracker := metrics.NewTracker("network")
	tracker.RecordGraph(nodes, edges, len(topology.Components), len(net.Removed()))
	finish(tracker, cfg, "completed")

	if c.Component >= 0 {
		subgraph, err := net.Subgraph(c.Component)
		if err != nil {
			return err
		}
		return printJSON(subgraph)
	}

	if c.globals.JSON {
		return printJSON(topology.Components)
	}

	logrus.Debugf("Printing %d components", len(topology.Components))
	fmt.Fprintf(stdout, "Graph from %s: %d nodes, %d edges, %d components\n", net.LinkSource(), nodes, edges, len(topology.Components))
	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "COMPONENT\tSIZE\tLINKS\tDENSITY\tSTAR\tCENTROID\tCENTROID LINKS")
	for _, comp := range topology.Components {
		fmt.Fprintf(w, "%d\t%d\t%d\t%.3f\t%t\t%s\t%d\n",
			comp.Index, comp.Size, comp.Links, comp.Density, comp.Star, comp.Centroid, comp.CentroidLinks)
	}
	return w.Flush()
}
