package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alvmarrod/everest/internal/network"
	"github.com/alvmarrod/everest/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv(EnvDBDriver, "")
	t.Setenv(EnvDBDSN, "")
	t.Setenv(EnvLogLevel, "")
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, storage.DriverSQLite, cfg.DBDriver)
	assert.Equal(t, "everest.db", cfg.DBDSN)
	assert.Equal(t, 10, cfg.MinClusterSize)
	assert.Equal(t, string(network.LinkSourceRegisteredDomains), cfg.LinkSource)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Nil(t, cfg.Threshold())
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout())
}

func TestLoadConfig_FileValues(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `{
		"min_cluster_size": 4,
		"link_source": "all_links",
		"new_threshold": "2024-03-01",
		"log_level": "debug"
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.MinClusterSize)
	assert.Equal(t, "all_links", cfg.LinkSource)
	require.NotNil(t, cfg.Threshold())
	assert.Equal(t, time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), *cfg.Threshold())
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, `{"db_driver": "sqlite3", "db_dsn": "file.db"}`)
	t.Setenv(EnvDBDriver, "postgres")
	t.Setenv(EnvDBDSN, "postgres://localhost/everest?sslmode=disable")
	t.Setenv(EnvLogLevel, "warn")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, storage.DriverPostgres, cfg.DBDriver)
	assert.Equal(t, "postgres://localhost/everest?sslmode=disable", cfg.DBDSN)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadConfig_Invalid(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name string
		body string
	}{
		{"unknown link source", `{"link_source": "all_pages"}`},
		{"min cluster size", `{"min_cluster_size": 1}`},
		{"driver", `{"db_driver": "mysql"}`},
		{"postgres without dsn", `{"db_driver": "postgres"}`},
		{"threshold", `{"new_threshold": "yesterday"}`},
		{"log level", `{"log_level": "loud"}`},
		{"unknown field", `{"seed_url": "https://example.com"}`},
		{"malformed", `{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_UnknownLinkSourceIsTyped(t *testing.T) {
	clearEnv(t)

	_, err := LoadConfig(writeConfig(t, `{"link_source": "all_pages"}`))
	assert.ErrorIs(t, err, network.ErrUnknownLinkSource)
}

func TestParseThreshold(t *testing.T) {
	got, err := ParseThreshold("2024-05-06T07:08:09Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.May, 6, 7, 8, 9, 0, time.UTC), *got)

	got, err = ParseThreshold("")
	require.NoError(t, err)
	assert.Nil(t, got)
}
