package metrics

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/alvmarrod/everest/internal/storage"
)

// Tracker holds and manages the metrics of one command run
type Tracker struct {
	mu               sync.Mutex
	data             storage.Metrics
	totalFetchTimeMs int64
	fetchCount       int
}

// NewTracker creates a new metrics tracker for command
func NewTracker(command string) *Tracker {
	return &Tracker{
		data: storage.Metrics{
			Command:   command,
			StartTime: time.Now(),
		},
	}
}

// IncrementDomainsScraped increments the successful scrape counter
func (t *Tracker) IncrementDomainsScraped() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.DomainsScraped++
}

// IncrementScrapesFailed increments the failed scrape counter
func (t *Tracker) IncrementScrapesFailed() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.ScrapesFailed++
}

// RecordFetchTime records a page fetch duration
func (t *Tracker) RecordFetchTime(duration time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.totalFetchTimeMs += duration.Milliseconds()
	t.fetchCount++
}

// RecordClustering stores the outcome of a clustering run
func (t *Tracker) RecordClustering(partitions, failed, labelled, noise, valid int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.PartitionsClustered = partitions
	t.data.PartitionsFailed = failed
	t.data.DomainsLabelled = labelled
	t.data.DomainsNoise = noise
	t.data.ValidClusters = valid
}

// RecordGraph stores the size and decomposition of the link graph
func (t *Tracker) RecordGraph(nodes, edges, components, removed int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.GraphNodes = nodes
	t.data.GraphEdges = edges
	t.data.Components = components
	t.data.NodesRemoved = removed
}

// GetSnapshot returns a copy of current metrics
func (t *Tracker) GetSnapshot() storage.Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()

	snapshot := t.data
	snapshot.TotalFetchTimeMs = t.totalFetchTimeMs
	if t.fetchCount > 0 {
		snapshot.AvgFetchTimeMs = t.totalFetchTimeMs / int64(t.fetchCount)
	}
	return snapshot
}

// WriteToFile exports metrics to a JSON file
func (t *Tracker) WriteToFile(path, reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	// Finalize metrics
	t.data.EndTime = time.Now()
	t.data.TerminationReason = reason
	t.data.TotalFetchTimeMs = t.totalFetchTimeMs
	if t.fetchCount > 0 {
		t.data.AvgFetchTimeMs = t.totalFetchTimeMs / int64(t.fetchCount)
	}

	jsonData, err := json.MarshalIndent(t.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}

	return nil
}

// LogProgress formats the current counters for periodic log lines
func (t *Tracker) LogProgress() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.data.Command {
	case "cluster":
		return fmt.Sprintf("Partitions: %d clustered, %d failed | Domains: %d labelled, %d noise | Clusters: %d",
			t.data.PartitionsClustered,
			t.data.PartitionsFailed,
			t.data.DomainsLabelled,
			t.data.DomainsNoise,
			t.data.ValidClusters,
		)
	case "network":
		return fmt.Sprintf("Graph: %d nodes, %d edges | Components: %d | Removed: %d",
			t.data.GraphNodes,
			t.data.GraphEdges,
			t.data.Components,
			t.data.NodesRemoved,
		)
	default:
		return fmt.Sprintf("Domains: %d scraped, %d failed",
			t.data.DomainsScraped,
			t.data.ScrapesFailed,
		)
	}
}
