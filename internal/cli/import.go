package cli

import (
	"context"
	"fmt"

	"github.com/alvmarrod/everest/internal/ingest"
	"github.com/sirupsen/logrus"
)

// Execute implements the go-flags Commander interface for ImportCommand.
func (c *ImportCommand) Execute(args []string) error {
	_, store, err := setup(c.globals)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	total := 0
	for _, path := range c.Args.Files {
		records, err := ingest.ReadFile(path)
		if err != nil {
			return fmt.Errorf("import %s: %w", path, err)
		}
		for _, record := range records {
			if err := store.UpsertDomainMetrics(ctx, record); err != nil {
				return err
			}
		}
		logrus.Infof("Imported %d domains from %s", len(records), path)
		total += len(records)
	}

	if c.globals.JSON {
		return printJSON(map[string]int{"imported": total})
	}
	fmt.Fprintf(stdout, "Imported %d domains\n", total)
	return nil
}
