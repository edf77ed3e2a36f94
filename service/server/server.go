package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/txlens/service/batch"
	"github.com/brojonat/txlens/service/metrics"
	"github.com/brojonat/txlens/service/nats"
	"github.com/brojonat/txlens/service/parser"
	"github.com/brojonat/txlens/service/solana"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ChainReader fetches raw chain data. *solana.Client implements it.
type ChainReader interface {
	GetBlock(ctx context.Context, slot uint64) ([]*parser.RawTransaction, error)
	GetSignatures(ctx context.Context, address string, params solana.HistoryParams) ([]*parser.SignatureRecord, error)
}

// Server represents the HTTP API for transaction normalization.
type Server struct {
	addr        string
	assembler   *parser.Assembler
	coordinator *batch.Coordinator
	chain       ChainReader
	publisher   nats.Publisher
	metrics     *metrics.Metrics
	logger      *slog.Logger
	server      *http.Server
}

// New creates a new HTTP server with the given dependencies.
// The chain reader is optional - if nil, block and account endpoints return 503.
// The publisher is optional - if nil, classified transactions are not published.
// The metrics is optional - if nil, the metrics endpoint won't be available.
func New(addr string, assembler *parser.Assembler, coordinator *batch.Coordinator, chain ChainReader, publisher nats.Publisher, m *metrics.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if assembler == nil {
		assembler = parser.NewAssembler(parser.DefaultLabels(), logger, m)
	}
	if coordinator == nil {
		coordinator = batch.NewCoordinator(nil, assembler, batch.Config{}, logger, m)
	}
	return &Server{
		addr:        addr,
		assembler:   assembler,
		coordinator: coordinator,
		chain:       chain,
		publisher:   publisher,
		metrics:     m,
		logger:      logger,
	}
}

// Handler builds the routed handler, wrapped with CORS.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /api/v1/normalize",
		s.instrument("normalize", handleNormalize(s.assembler, s.publisher, s.logger)))
	mux.Handle("GET /api/v1/blocks/{slot}/transactions",
		s.instrument("block_transactions", handleBlockTransactions(s.chain, s.coordinator, s.publisher, s.logger)))
	mux.Handle("GET /api/v1/accounts/{address}/transactions",
		s.instrument("account_transactions", handleAccountTransactions(s.chain, s.coordinator, s.publisher, s.logger)))

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	return corsMiddleware(mux)
}

func (s *Server) instrument(name string, h http.Handler) http.Handler {
	if s.metrics == nil {
		return h
	}
	return metrics.HTTPMetricsMiddleware(s.metrics, name)(h)
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
