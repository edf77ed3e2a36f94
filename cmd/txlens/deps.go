package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/brojonat/txlens/client"
	"github.com/brojonat/txlens/service/batch"
	"github.com/brojonat/txlens/service/config"
	"github.com/brojonat/txlens/service/nats"
	"github.com/brojonat/txlens/service/parser"
	"github.com/brojonat/txlens/service/solana"
	"github.com/urfave/cli/v2"
)

const defaultEnrichmentTimeout = 30 * time.Second

func newLogger(c *cli.Context) (*slog.Logger, error) {
	level, err := config.ParseLogLevel(c.String("log-level"))
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})), nil
}

func newAssembler(c *cli.Context, logger *slog.Logger) (*parser.Assembler, error) {
	labels := parser.DefaultLabels()
	if path := c.String("labels-file"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open labels file: %w", err)
		}
		defer f.Close()
		if labels, err = parser.LoadLabels(f); err != nil {
			return nil, fmt.Errorf("failed to load labels from %s: %w", path, err)
		}
	}
	return parser.NewAssembler(labels, logger, nil), nil
}

// newCoordinator wires the enrichment client into a batch coordinator.
// Without --enrichment-url every non-vote transaction comes back UNKNOWN.
func newCoordinator(c *cli.Context, assembler *parser.Assembler, logger *slog.Logger) (*batch.Coordinator, error) {
	size := c.Int("batch-size")
	if size < 1 || size > batch.MaxBatchSize {
		return nil, fmt.Errorf("batch-size must be between 1 and %d", batch.MaxBatchSize)
	}

	var enricher batch.Enricher
	if url := c.String("enrichment-url"); url != "" {
		httpClient := &http.Client{Timeout: c.Duration("enrichment-timeout")}
		enricher = client.NewEnrichmentClient(url, c.String("enrichment-key"), httpClient, logger, nil)
	} else {
		logger.Warn("no enrichment URL configured, transactions will not be classified")
	}

	return batch.NewCoordinator(enricher, assembler, batch.Config{
		BatchSize:   size,
		Concurrency: c.Int("concurrency"),
	}, logger, nil), nil
}

func newSolanaClient(c *cli.Context, logger *slog.Logger) (*solana.Client, error) {
	rpcURL := c.String("rpc-url")
	if rpcURL == "" {
		return nil, fmt.Errorf("rpc-url is required (set SOLANA_RPC_URL env var or use --rpc-url)")
	}
	return solana.NewClient(solana.NewRPCClient(rpcURL), nil, logger), nil
}

// maybePublish returns a publisher when --publish is set, or nil.
func maybePublish(c *cli.Context, logger *slog.Logger) (nats.Publisher, error) {
	if !c.Bool("publish") {
		return nil, nil
	}
	publisher, err := nats.NewPublisher(c.String("nats-url"), logger, nil)
	if err != nil {
		return nil, err
	}
	return publisher, nil
}
