package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/alvmarrod/everest/internal/config"
	"github.com/alvmarrod/everest/internal/metrics"
	"github.com/alvmarrod/everest/internal/storage"
	"github.com/sirupsen/logrus"
)

// setup loads the configuration, applies the log level and opens the store
func setup(globals *GlobalFlags) (*config.Config, *storage.Storage, error) {
	cfg, err := config.LoadConfig(globals.Config)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("log level: %w", err)
	}
	if globals.Verbose {
		level = logrus.DebugLevel
	}
	logrus.SetLevel(level)

	store, err := storage.NewStorage(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	logrus.Debugf("Database initialized: %s", cfg.DBDriver)

	return cfg, store, nil
}

// finish logs the final counters and writes the metrics file
func finish(tracker *metrics.Tracker, cfg *config.Config, reason string) {
	logrus.Info("Final stats: " + tracker.LogProgress())
	if err := tracker.WriteToFile(cfg.MetricsPath, reason); err != nil {
		logrus.Errorf("Failed to write metrics: %v", err)
		return
	}
	logrus.Debugf("Metrics written to %s", cfg.MetricsPath)
}

func printJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatFloat(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.3f", *v)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.DateOnly)
}
