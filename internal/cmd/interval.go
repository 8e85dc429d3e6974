package cmd

import (
	"flag"
	"fmt"
	"time"

	"newshub/cli/control"
)

func SetInterval(args []string) error {
	fs := flag.NewFlagSet("set-interval", flag.ContinueOnError)
	duration := fs.String("duration", "", "fetch interval duration (e.g., 2h)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *duration == "" {
		return fmt.Errorf("usage: newshub set-interval --duration 2h")
	}

	d, err := time.ParseDuration(*duration)
	if err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}
	if d < time.Minute {
		return fmt.Errorf("interval should be at least 1m")
	}

	e, err := loadEnv()
	if err != nil {
		return err
	}
	old, updated, err := control.NewClient(e.cfg.ControlAddr).SetInterval(d)
	if err != nil {
		return fmt.Errorf("could not set interval: %w", err)
	}

	if old == updated {
		fmt.Printf("Schedule is already %q (no change)\n", updated)
		return nil
	}

	fmt.Printf("Ingestion schedule changed from %q to %q\n", old, updated)
	return nil
}
