package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alvmarrod/everest/internal/config"
	"github.com/alvmarrod/everest/internal/network"
	"github.com/alvmarrod/everest/internal/storage"
	goflags "github.com/jessevdk/go-flags"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureOutput redirects command output into a buffer for the duration of the test
func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	old := stdout
	stdout = &buf
	t.Cleanup(func() { stdout = old })
	return &buf
}

// parseOnly builds a parser whose commands are recognized but never executed
func parseOnly(t *testing.T, args ...string) (*GlobalFlags, *commands, error) {
	t.Helper()
	parser, globals, cmds := buildParser("test")
	parser.CommandHandler = func(goflags.Commander, []string) error { return nil }
	_, err := parser.ParseArgs(args)
	return globals, cmds, err
}

func TestVersionFlag(t *testing.T) {
	buf := captureOutput(t)

	err := RunWithArgs("0.1.0-test", []string{"--version"})

	assert.NoError(t, err)
	assert.Equal(t, "everest 0.1.0-test", strings.TrimSpace(buf.String()))
}

func TestSubcommandsRecognized(t *testing.T) {
	for _, args := range [][]string{
		{"import", "export.csv"},
		{"scrape"},
		{"cluster"},
		{"network"},
		{"summary"},
	} {
		_, _, err := parseOnly(t, args...)
		assert.NoError(t, err, args[0])
	}
}

func TestImportRequiresFile(t *testing.T) {
	_, _, err := parseOnly(t, "import")
	assert.Error(t, err)
}

func TestUnknownSubcommandFails(t *testing.T) {
	_, _, err := parseOnly(t, "crawl")
	assert.Error(t, err)
}

func TestHelpFlagDoesNotError(t *testing.T) {
	old := os.Stdout
	_, w, _ := os.Pipe()
	os.Stdout = w
	defer func() {
		w.Close()
		os.Stdout = old
	}()

	assert.NoError(t, RunWithArgs("test", []string{"--help"}))
}

func TestFlagDefaults(t *testing.T) {
	globals, cmds, err := parseOnly(t, "network")
	require.NoError(t, err)
	assert.Equal(t, "config.json", globals.Config)
	assert.False(t, globals.JSON)
	assert.Equal(t, -1, cmds.Network.Component)
	assert.Empty(t, cmds.Network.Remove)
}

func TestRepeatableRemoveFlag(t *testing.T) {
	_, cmds, err := parseOnly(t, "--json", "summary", "--remove", "a.com", "--remove", "b.com", "--new-threshold", "2024-06-01")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.com", "b.com"}, cmds.Summary.Remove)
	assert.Equal(t, "2024-06-01", cmds.Summary.NewThreshold)
	assert.True(t, cmds.Summary.globals.JSON)
}

// workspace writes a config file pointing at a temporary database seeded with
// six scraped pages on two topics. Pets link in a chain; two market pages link.
func workspace(t *testing.T) (configPath, dir string) {
	t.Helper()
	dir = t.TempDir()
	dbPath := filepath.Join(dir, "everest.db")

	cfg := map[string]any{
		"db_dsn":           dbPath,
		"min_cluster_size": 2,
		"metrics_path":     filepath.Join(dir, "metrics.log"),
		"report_path":      filepath.Join(dir, "everest.xlsx"),
		"log_level":        "error",
	}
	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	configPath = filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(configPath, data, 0644))

	store, err := storage.NewStorage(storage.DriverSQLite, dbPath)
	require.NoError(t, err)
	defer store.Close()

	pages := map[string]struct {
		text  string
		links []string
	}{
		"pets0.test":   {"cat kitten meow purr", []string{"pets1.test"}},
		"pets1.test":   {"cat kitten meow fur", []string{"pets2.test"}},
		"pets2.test":   {"cat kitten purr fur", nil},
		"market0.test": {"stock market trade price", []string{"market1.test"}},
		"market1.test": {"stock market trade shares", nil},
		"market2.test": {"stock market price shares", nil},
	}
	attempted := time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)
	for domain, page := range pages {
		registered := append([]string{}, page.links...)
		require.NoError(t, store.SaveScrapeResult(context.Background(), storage.ScrapeResult{
			DomainName:            domain,
			Text:                  page.text,
			Language:              "en",
			Links:                 []string{"https://elsewhere.example/"},
			RegisteredDomainLinks: registered,
			AttemptedAt:           attempted,
		}))
	}
	return configPath, dir
}

func writeExport(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "export.csv")
	rows := []string{
		"Domain,DR,Traffic,Links to target,Last seen",
		"pets0.test,10,100,5,2024-07-01",
		"pets1.test,20,200,1,2024-01-01",
		"pets2.test,30,300,2,2024-01-01",
		"market0.test,40,,3,2024-08-01",
	}
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(rows, "\n")+"\n"), 0644))
	return path
}

func run(t *testing.T, configPath string, args ...string) *bytes.Buffer {
	t.Helper()
	buf := captureOutput(t)
	full := append([]string{"--config", configPath, "--json"}, args...)
	require.NoError(t, RunWithArgs("test", full), fmt.Sprint(args))
	return buf
}

func TestEndToEnd(t *testing.T) {
	configPath, dir := workspace(t)

	var imported map[string]int
	require.NoError(t, json.Unmarshal(run(t, configPath, "import", writeExport(t, dir)).Bytes(), &imported))
	assert.Equal(t, 4, imported["imported"])

	var clustered clusterJSON
	require.NoError(t, json.Unmarshal(run(t, configPath, "cluster").Bytes(), &clustered))
	assert.Equal(t, 1, clustered.Partitions)
	assert.Equal(t, 6, clustered.Labelled)
	assert.Empty(t, clustered.Failures)
	assert.Len(t, clustered.Clusters, 2)

	var components []network.Component
	require.NoError(t, json.Unmarshal(run(t, configPath, "network").Bytes(), &components))
	require.Len(t, components, 2)
	assert.Equal(t, []string{"pets0.test", "pets1.test", "pets2.test"}, components[0].Members)
	assert.Equal(t, []string{"market0.test", "market1.test"}, components[1].Members)

	var subgraph network.Subgraph
	require.NoError(t, json.Unmarshal(run(t, configPath, "network", "--component", "1").Bytes(), &subgraph))
	assert.Equal(t, 1, subgraph.Component)
	assert.Len(t, subgraph.Edges, 1)

	var summary summaryJSON
	require.NoError(t, json.Unmarshal(run(t, configPath, "summary", "--new-threshold", "2024-06-01").Bytes(), &summary))
	require.Len(t, summary.Clusters, 2)
	for _, s := range summary.Clusters {
		assert.Equal(t, "en", s.Language)
		assert.Equal(t, 3, s.NumDomains)
	}
	require.Len(t, summary.Components, 2)
	pets := summary.Components[0]
	assert.Equal(t, 3, pets.Size)
	assert.Equal(t, 1, pets.NumNewDomains)
	assert.Equal(t, int64(600), pets.TotalOrganicTraffic)
	require.NotNil(t, pets.MeanDomainRating)
	assert.Equal(t, 20.0, *pets.MeanDomainRating)

	market := summary.Components[1]
	assert.Equal(t, 1, market.NumNewDomains)
	assert.Equal(t, int64(0), market.TotalOrganicTraffic)
	assert.Nil(t, market.MeanOrganicTraffic)

	_, err := os.Stat(filepath.Join(dir, "metrics.log"))
	assert.NoError(t, err)
}

func TestSummary_RemoveAndReport(t *testing.T) {
	configPath, dir := workspace(t)
	run(t, configPath, "cluster")

	output := filepath.Join(dir, "out.xlsx")
	var summary summaryJSON
	buf := run(t, configPath, "summary", "--remove", "pets1.test", "--report", "--output", output)
	require.NoError(t, json.Unmarshal(buf.Bytes(), &summary))

	// pets0 and pets2 stay behind as isolated nodes
	require.Len(t, summary.Components, 3)
	assert.Equal(t, "market0.test", summary.Components[0].Centroid)
	assert.Equal(t, []int{2, 1, 1}, []int{summary.Components[0].Size, summary.Components[1].Size, summary.Components[2].Size})
	assert.Equal(t, "pets0.test", summary.Components[1].Centroid)
	_, err := os.Stat(output)
	assert.NoError(t, err)
}

func TestSummary_DomainLookup(t *testing.T) {
	configPath, _ := workspace(t)
	run(t, configPath, "cluster")

	var found domainJSON
	require.NoError(t, json.Unmarshal(run(t, configPath, "summary", "--domain", "market1.test").Bytes(), &found))
	require.Len(t, found.Cluster, 3)
	for _, d := range found.Cluster {
		assert.True(t, strings.HasPrefix(d.DomainName, "market"))
	}
	require.NotNil(t, found.Node)
	assert.Equal(t, 1, found.Node.InLinks)
	require.NotNil(t, found.Component)
	assert.Equal(t, 2, found.Component.Size)

	buf := captureOutput(t)
	err := RunWithArgs("test", []string{"--config", configPath, "summary", "--domain", "unknown.test"})
	assert.Error(t, err)
	assert.Empty(t, buf.String())
}

func TestNetwork_UnknownRemoval(t *testing.T) {
	configPath, _ := workspace(t)
	captureOutput(t)

	err := RunWithArgs("test", []string{"--config", configPath, "network", "--remove", "missing.test"})
	assert.Error(t, err)
}

func TestSetup_RejectsInvalidLogLevel(t *testing.T) {
	t.Setenv(config.EnvLogLevel, "")
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"db_dsn": "unused.db", "log_level": "loud"}`), 0644))

	cfg, store, err := setup(&GlobalFlags{Config: path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_level")
	assert.Nil(t, cfg)
	assert.Nil(t, store)
}
