package main

import (
	"fmt"
	"log"
	"os"

	"newshub/internal/cmd"
	"newshub/internal/helper"
)

func main() {
	if len(os.Args) < 2 {
		helper.PrintHelp()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var run func([]string) error
	switch command {
	case "--help", "-h", "help":
		helper.PrintHelp()
		return
	case "serve":
		run = cmd.Serve
	case "fetch":
		run = cmd.Fetch
	case "articles":
		run = cmd.Articles
	case "status":
		run = cmd.Status
	case "trigger":
		run = cmd.Trigger
	case "set-interval":
		run = cmd.SetInterval
	case "set-workers":
		run = cmd.SetWorkers
	default:
		fmt.Printf("unknown command: %s\n\n", command)
		helper.PrintHelp()
		os.Exit(1)
	}

	if err := run(args); err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}
}
