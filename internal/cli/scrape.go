package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alvmarrod/everest/internal/crawler"
	"github.com/alvmarrod/everest/internal/metrics"
	"github.com/sirupsen/logrus"
)

// Execute implements the go-flags Commander interface for ScrapeCommand.
func (c *ScrapeCommand) Execute(args []string) error {
	cfg, store, err := setup(c.globals)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracker := metrics.NewTracker("scrape")
	scraper := crawler.NewScraper(cfg, store, tracker)

	// Start progress logger
	progressDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				logrus.Info(tracker.LogProgress())
			case <-progressDone:
				return
			}
		}
	}()

	attempted, err := scraper.Run(ctx, !c.All)
	close(progressDone)

	reason := "completed"
	if ctx.Err() != nil {
		reason = "signal"
		logrus.Warn("Scrape interrupted, results so far are saved")
	}
	finish(tracker, cfg, reason)
	if err != nil && ctx.Err() == nil {
		return err
	}

	snapshot := tracker.GetSnapshot()
	if c.globals.JSON {
		return printJSON(snapshot)
	}
	fmt.Fprintf(stdout, "Attempted %d domains: %d scraped, %d failed\n", attempted, snapshot.DomainsScraped, snapshot.ScrapesFailed)
	return nil
}
