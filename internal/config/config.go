package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/alvmarrod/everest/internal/network"
	"github.com/alvmarrod/everest/internal/storage"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Environment variables that override the config file
const (
	EnvDBDriver = "EVEREST_DB_DRIVER"
	EnvDBDSN    = "EVEREST_DB_DSN"
	EnvLogLevel = "EVEREST_LOG_LEVEL"
)

// Config holds all runtime configuration parameters
type Config struct {
	DBDriver          string `json:"db_driver"`
	DBDSN             string `json:"db_dsn"`
	MinClusterSize    int    `json:"min_cluster_size"`
	LinkSource        string `json:"link_source"`
	NewThreshold      string `json:"new_threshold"`
	ClusterWorkers    int    `json:"cluster_workers"`
	ConcurrentWorkers int    `json:"concurrent_workers"`
	RequestTimeoutMs  int    `json:"request_timeout_ms"`
	RequestsPerSecond int    `json:"requests_per_second"`
	MaxTextBytes      int    `json:"max_text_bytes"`
	UserAgent         string `json:"user_agent"`
	MetricsPath       string `json:"metrics_path"`
	ReportPath        string `json:"report_path"`
	LogLevel          string `json:"log_level"`
}

// LoadConfig reads configuration from a JSON file, applies .env and
// environment overrides, then defaults, and validates the result.
// A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	file, err := os.Open(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logrus.Debugf("Config file %s not found, using defaults", path)
	case err != nil:
		return nil, fmt.Errorf("failed to open config file: %w", err)
	default:
		defer file.Close()
		decoder := json.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}

	// Load .env file if it exists
	_ = godotenv.Load()
	applyEnv(&cfg)

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyEnv overrides file values with non-empty environment variables
func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvDBDriver); v != "" {
		cfg.DBDriver = v
	}
	if v := os.Getenv(EnvDBDSN); v != "" {
		cfg.DBDSN = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
}

// applyDefaults sets default values for unspecified fields
func applyDefaults(cfg *Config) {
	if cfg.DBDriver == "" {
		cfg.DBDriver = storage.DriverSQLite
	}
	if cfg.DBDSN == "" && cfg.DBDriver == storage.DriverSQLite {
		cfg.DBDSN = "everest.db"
	}
	if cfg.MinClusterSize == 0 {
		cfg.MinClusterSize = 10
	}
	if cfg.LinkSource == "" {
		cfg.LinkSource = string(network.DefaultLinkSource)
	}
	if cfg.ClusterWorkers == 0 {
		cfg.ClusterWorkers = 4
	}
	if cfg.ConcurrentWorkers == 0 {
		cfg.ConcurrentWorkers = 3
	}
	if cfg.RequestTimeoutMs == 0 {
		cfg.RequestTimeoutMs = 10000
	}
	if cfg.RequestsPerSecond == 0 {
		cfg.RequestsPerSecond = 5
	}
	if cfg.MaxTextBytes == 0 {
		cfg.MaxTextBytes = 100000
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "everest/1.0"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "metrics.log"
	}
	if cfg.ReportPath == "" {
		cfg.ReportPath = "everest.xlsx"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

// validate checks that required fields are present and values are sensible
func validate(cfg *Config) error {
	if cfg.DBDriver != storage.DriverSQLite && cfg.DBDriver != storage.DriverPostgres {
		return fmt.Errorf("db_driver must be %q or %q", storage.DriverSQLite, storage.DriverPostgres)
	}
	if cfg.DBDSN == "" {
		return fmt.Errorf("db_dsn is required for %s", cfg.DBDriver)
	}
	if cfg.MinClusterSize < 2 {
		return fmt.Errorf("min_cluster_size must be >= 2")
	}
	if _, err := network.ParseLinkSource(cfg.LinkSource); err != nil {
		return err
	}
	if _, err := ParseThreshold(cfg.NewThreshold); err != nil {
		return err
	}
	if cfg.ClusterWorkers < 1 {
		return fmt.Errorf("cluster_workers must be >= 1")
	}
	if cfg.ConcurrentWorkers < 1 {
		return fmt.Errorf("concurrent_workers must be >= 1")
	}
	if cfg.RequestTimeoutMs < 1000 {
		return fmt.Errorf("request_timeout_ms must be >= 1000")
	}
	if cfg.RequestsPerSecond < 1 {
		return fmt.Errorf("requests_per_second must be >= 1")
	}
	if cfg.MaxTextBytes < 1 {
		return fmt.Errorf("max_text_bytes must be >= 1")
	}
	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	return nil
}

// ParseThreshold parses a "new" threshold given as RFC 3339 or a plain
// date. An empty value returns nil, meaning the default threshold.
func ParseThreshold(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, value); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("new_threshold %q must be RFC 3339 or YYYY-MM-DD", value)
}

// Threshold returns the configured "new" threshold, nil when unset
func (c *Config) Threshold() *time.Time {
	t, _ := ParseThreshold(c.NewThreshold)
	return t
}

// RequestTimeout returns the scrape request timeout
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMs) * time.Millisecond
}
