package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"
)

// Fetch performs one ingestion run against the configured store and exits.
func Fetch(args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := e.openStore(ctx); err != nil {
		return err
	}
	defer e.close()

	ingest, err := e.ingestService()
	if err != nil {
		return err
	}
	sum, err := ingest.FetchAndStore(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Fetched %d articles: %d inserted, %d updated, %d skipped (%s)\n",
		sum.Fetched, sum.Inserted, sum.Updated, sum.Skipped, sum.Duration.Round(time.Millisecond))
	return nil
}
