package cmd

import (
	"flag"
	"fmt"

	"newshub/cli/control"
	"newshub/internal/config"
)

func SetWorkers(args []string) error {
	fs := flag.NewFlagSet("set-workers", flag.ContinueOnError)
	count := fs.Int("count", 0, "number of workers")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *count <= 0 || *count > config.MaxWorkers {
		return fmt.Errorf("number of workers should be between 1 and %d", config.MaxWorkers)
	}

	e, err := loadEnv()
	if err != nil {
		return err
	}
	old, err := control.NewClient(e.cfg.ControlAddr).SetWorkers(*count)
	if err != nil {
		return fmt.Errorf("could not set workers: %w", err)
	}
	fmt.Printf("Number of upsert workers changed from %d to %d\n", old, *count)
	return nil
}
