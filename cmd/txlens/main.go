package main

import (
	"fmt"
	"log"
	"os"

	"github.com/brojonat/txlens/service/config"
	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "txlens",
		Usage: "Normalize and classify Solana transactions",
		Description: `A command-line tool for turning Solana transactions into classified,
display-ready records.

Input can be raw RPC transactions, enriched indexer transactions or signature
listings; see "txlens normalize --help".`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Before: func(c *cli.Context) error {
			return config.LoadEnvFile(c.String("env-file"))
		},
		Commands: []*cli.Command{
			normalizeCommand(),
			blockCommand(),
			historyCommand(),
			healthCommand(),
			versionCommand(),
		},
		// Global flags available to all commands
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Load environment variables from this file if it exists",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:    "rpc-url",
				Usage:   "Solana RPC URL",
				EnvVars: []string{"SOLANA_RPC_URL"},
			},
			&cli.StringFlag{
				Name:    "enrichment-url",
				Usage:   "Enrichment API base URL",
				EnvVars: []string{"ENRICHMENT_API_URL"},
			},
			&cli.StringFlag{
				Name:    "enrichment-key",
				Usage:   "Enrichment API key",
				EnvVars: []string{"ENRICHMENT_API_KEY"},
			},
			&cli.DurationFlag{
				Name:    "enrichment-timeout",
				Usage:   "Timeout for each enrichment request",
				EnvVars: []string{"ENRICHMENT_TIMEOUT"},
				Value:   defaultEnrichmentTimeout,
			},
			&cli.IntFlag{
				Name:    "batch-size",
				Usage:   "Signatures per enrichment request (1-1000)",
				EnvVars: []string{"BATCH_SIZE"},
				Value:   100,
			},
			&cli.IntFlag{
				Name:    "concurrency",
				Usage:   "Enrichment batches in flight",
				EnvVars: []string{"BATCH_CONCURRENCY"},
				Value:   1,
			},
			&cli.StringFlag{
				Name:    "labels-file",
				Usage:   "JSON object mapping addresses to labels",
				EnvVars: []string{"LABELS_FILE"},
			},
			&cli.StringFlag{
				Name:    "nats-url",
				Usage:   "NATS server URL, used with --publish",
				EnvVars: []string{"NATS_URL"},
				Value:   "nats://localhost:4222",
			},
			&cli.StringFlag{
				Name:    "server-url",
				Usage:   "Server URL for health checks",
				EnvVars: []string{"SERVER_URL"},
				Value:   "http://localhost:8080",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
				Value:   "warn",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output in JSON format",
			},
			&cli.StringFlag{
				Name:  "jq",
				Usage: "Apply a jq filter to each transaction and print the results as JSON",
			},
		},
	}
}
