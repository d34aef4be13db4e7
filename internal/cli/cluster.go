package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/alvmarrod/everest/internal/cluster"
	"github.com/alvmarrod/everest/internal/metrics"
	"github.com/sirupsen/logrus"
)

type clusterJSON struct {
	Partitions int                `json:"partitions"`
	Labelled   int                `json:"labelled"`
	Noise      int                `json:"noise"`
	Excluded   int                `json:"excluded"`
	Clusters   map[string]float64 `json:"clusters"`
	Failures   []failureJSON      `json:"failures"`
}

type failureJSON struct {
	Language  string `json:"language"`
	Documents int    `json:"documents"`
	Error     string `json:"error"`
}

// Execute implements the go-flags Commander interface for ClusterCommand.
func (c *ClusterCommand) Execute(args []string) error {
	cfg, store, err := setup(c.globals)
	if err != nil {
		return err
	}
	defer store.Close()

	minClusterSize := cfg.MinClusterSize
	if c.MinClusterSize != 0 {
		minClusterSize = c.MinClusterSize
	}

	ctx := context.Background()
	corpus, err := store.LoadClusterCorpus(ctx)
	if err != nil {
		return err
	}
	logrus.Infof("Clustering %d scraped pages (min cluster size %d)", len(corpus), minClusterSize)

	docs := make([]cluster.Document, len(corpus))
	for i, d := range corpus {
		docs[i] = cluster.Document{DomainName: d.DomainName, Language: d.Language, Text: d.Text}
	}

	result, err := cluster.NewEngine(cfg.ClusterWorkers).Cluster(ctx, docs, minClusterSize)
	if err != nil {
		return err
	}
	if err := store.ReplaceClusters(ctx, result.Assignment.Rows()); err != nil {
		return err
	}

	noise := 0
	for _, label := range result.Assignment {
		if label.Cluster == cluster.NoiseLabel(label.Language) {
			noise++
		}
	}

	tracker := metrics.NewTracker("cluster")
	tracker.RecordClustering(result.Partitions, len(result.Failures), len(result.Assignment), noise, len(result.Cohesion))
	finish(tracker, cfg, "completed")

	out := clusterJSON{
		Partitions: result.Partitions,
		Labelled:   len(result.Assignment),
		Noise:      noise,
		Excluded:   len(result.Excluded),
		Clusters:   result.Cohesion,
		Failures:   make([]failureJSON, 0, len(result.Failures)),
	}
	for _, f := range result.Failures {
		out.Failures = append(out.Failures, failureJSON{Language: f.Language, Documents: f.Documents, Error: f.Err.Error()})
	}
	if c.globals.JSON {
		return printJSON(out)
	}

	fmt.Fprintf(stdout, "Labelled %d domains in %d languages: %d clusters, %d noise, %d excluded\n",
		out.Labelled, out.Partitions, len(out.Clusters), out.Noise, out.Excluded)
	for _, f := range out.Failures {
		fmt.Fprintf(stdout, "  %s: failed for %d documents: %s\n", f.Language, f.Documents, f.Error)
	}
	names := make([]string, 0, len(out.Clusters))
	for name := range out.Clusters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(stdout, "  %-12s mean distance %.3f\n", name, out.Clusters[name])
	}
	return nil
}
