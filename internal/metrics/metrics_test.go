package metrics

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alvmarrod/everest/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_ConcurrentScrapeCounters(t *testing.T) {
	tracker := NewTracker("scrape")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%4 == 0 {
				tracker.IncrementScrapesFailed()
				return
			}
			tracker.IncrementDomainsScraped()
			tracker.RecordFetchTime(100 * time.Millisecond)
		}(i)
	}
	wg.Wait()

	snapshot := tracker.GetSnapshot()
	assert.Equal(t, "scrape", snapshot.Command)
	assert.Equal(t, 15, snapshot.DomainsScraped)
	assert.Equal(t, 5, snapshot.ScrapesFailed)
	assert.Equal(t, int64(1500), snapshot.TotalFetchTimeMs)
	assert.Equal(t, int64(100), snapshot.AvgFetchTimeMs)
	assert.Equal(t, "Domains: 15 scraped, 5 failed", tracker.LogProgress())
}

func TestTracker_AnalysisProgress(t *testing.T) {
	clustering := NewTracker("cluster")
	clustering.RecordClustering(3, 1, 40, 12, 4)
	assert.Equal(t, "Partitions: 3 clustered, 1 failed | Domains: 40 labelled, 12 noise | Clusters: 4", clustering.LogProgress())

	graph := NewTracker("network")
	graph.RecordGraph(10, 12, 3, 1)
	assert.Equal(t, "Graph: 10 nodes, 12 edges | Components: 3 | Removed: 1", graph.LogProgress())
}

func TestTracker_WriteToFile(t *testing.T) {
	tracker := NewTracker("network")
	tracker.RecordGraph(4, 3, 1, 0)

	path := filepath.Join(t.TempDir(), "metrics.json")
	require.NoError(t, tracker.WriteToFile(path, "completed"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var written storage.Metrics
	require.NoError(t, json.Unmarshal(raw, &written))
	assert.Equal(t, "completed", written.TerminationReason)
	assert.Equal(t, 4, written.GraphNodes)
	assert.False(t, written.EndTime.Before(written.StartTime))
}
