package cmd

import (
	"fmt"
	"time"

	"newshub/cli/control"
)

// Trigger asks the running instance to ingest now.
func Trigger(args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}

	sum, err := control.NewClient(e.cfg.ControlAddr).Trigger()
	if err != nil {
		return fmt.Errorf("could not trigger ingestion: %w", err)
	}
	fmt.Printf("Run %s: fetched %d, inserted %d, updated %d, skipped %d (%s)\n",
		sum.RunID, sum.Fetched, sum.Inserted, sum.Updated, sum.Skipped, sum.Duration.Round(time.Millisecond))
	return nil
}
