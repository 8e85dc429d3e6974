package helper

import "fmt"

func PrintHelp() {
	fmt.Print(`Usage:
  newshub COMMAND [OPTIONS]

Commands:
   serve           start the HTTP API, scheduled ingestion and control server
   fetch           run one ingestion and exit
   articles        show latest articles [--num N] [--search TEXT] [--category a,b]
   status          show store size and freshness
   trigger         ask the running server to ingest now
   set-interval    set ingestion interval (--duration 2h)
   set-workers     set number of upsert workers (--count N)
   help            show this help

Configuration is read from .env, the YAML file named by NEWSHUB_CONFIG and
environment variables (STORE_DRIVER, FEED_API_KEY, PORT, ...).
`)
}
