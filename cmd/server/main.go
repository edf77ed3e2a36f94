package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/txlens/client"
	"github.com/brojonat/txlens/service/batch"
	"github.com/brojonat/txlens/service/config"
	"github.com/brojonat/txlens/service/metrics"
	"github.com/brojonat/txlens/service/nats"
	"github.com/brojonat/txlens/service/parser"
	"github.com/brojonat/txlens/service/server"
	"github.com/brojonat/txlens/service/solana"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	if err := config.LoadEnvFile(".env"); err != nil {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}

	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"log_level", cfg.LogLevel,
	)

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)

	labels := parser.DefaultLabels()
	if cfg.LabelsFile != "" {
		f, err := os.Open(cfg.LabelsFile)
		if err != nil {
			logger.Error("failed to open labels file", "path", cfg.LabelsFile, "error", err)
			os.Exit(1)
		}
		labels, err = parser.LoadLabels(f)
		f.Close()
		if err != nil {
			logger.Error("failed to load labels", "path", cfg.LabelsFile, "error", err)
			os.Exit(1)
		}
		logger.Info("loaded address labels", "count", len(labels))
	}

	assembler := parser.NewAssembler(labels, logger, m)

	enricher := client.NewEnrichmentClient(
		cfg.EnrichmentAPIURL,
		cfg.EnrichmentAPIKey,
		&http.Client{Timeout: cfg.EnrichmentTimeout},
		logger,
		m,
	)
	coordinator := batch.NewCoordinator(enricher, assembler, batch.Config{
		BatchSize:   cfg.BatchSize,
		Concurrency: cfg.BatchConcurrency,
	}, logger, m)

	// Note: For premium RPC endpoints, include API key in the URL
	chain := solana.NewClient(solana.NewRPCClient(cfg.SolanaRPCURL), m, logger)

	var publisher nats.Publisher
	if cfg.NATSURL != "" {
		p, err := nats.NewPublisher(cfg.NATSURL, logger, m)
		if err != nil {
			logger.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer p.Close()
		publisher = p
	} else {
		logger.Info("NATS_URL not set, publishing disabled")
	}

	httpServer := server.New(cfg.ServerAddr, assembler, coordinator, chain, publisher, m, logger)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	// Wait for shutdown signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}

		logger.Info("server shutdown complete")
	}
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	level, err := config.ParseLogLevel(levelStr)
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
