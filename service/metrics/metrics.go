package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// It is passed explicitly to every component that records metrics. All
// Record methods are safe to call on a nil *Metrics.
type Metrics struct {
	// Solana RPC Metrics
	solanaRPCCallsTotal   *prometheus.CounterVec
	solanaRPCCallDuration *prometheus.HistogramVec

	// Enrichment API Metrics
	enrichmentCallsTotal     *prometheus.CounterVec
	enrichmentCallDuration   *prometheus.HistogramVec
	enrichmentSignaturesSent prometheus.Histogram

	// Classification Metrics
	shapesDetectedTotal      *prometheus.CounterVec
	classificationsTotal     *prometheus.CounterVec
	classifierFallbacksTotal *prometheus.CounterVec

	// Batch Metrics
	batchSize             prometheus.Histogram
	batchSynthesizedTotal *prometheus.CounterVec
	batchProcessDuration  *prometheus.HistogramVec

	// HTTP Metrics
	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec

	// NATS Metrics
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		solanaRPCCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_calls_total",
				Help: "Total number of Solana RPC calls by method and status",
			},
			[]string{"method", "status"},
		),
		solanaRPCCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_call_duration_seconds",
				Help:    "Duration of Solana RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method"},
		),

		enrichmentCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enrichment_calls_total",
				Help: "Total number of enrichment API calls by status",
			},
			[]string{"status"},
		),
		enrichmentCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "enrichment_call_duration_seconds",
				Help:    "Duration of enrichment API calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"status"},
		),
		enrichmentSignaturesSent: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "enrichment_signatures_per_call",
				Help:    "Number of signatures sent per enrichment API call",
				Buckets: []float64{1, 10, 25, 50, 100, 250, 500, 1000},
			},
		),

		shapesDetectedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parser_shapes_detected_total",
				Help: "Total number of records decoded by input shape",
			},
			[]string{"shape"},
		),
		classificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parser_classifications_total",
				Help: "Total number of transactions classified by kind",
			},
			[]string{"kind"},
		),
		classifierFallbacksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parser_classifier_fallbacks_total",
				Help: "Total number of classifications that fell back to UNKNOWN",
			},
			[]string{"declared_type", "reason"},
		),

		batchSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "batch_transactions",
				Help:    "Number of transactions per processed batch",
				Buckets: []float64{1, 10, 25, 50, 100, 250, 500, 1000},
			},
		),
		batchSynthesizedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "batch_synthesized_total",
				Help: "Total number of transactions assembled without enrichment",
			},
			[]string{"reason"},
		),
		batchProcessDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "batch_process_duration_seconds",
				Help:    "Duration of a full block or history processing run in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"operation", "status"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),

		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"subject", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"subject"},
		),
	}
}

// Solana RPC metric helpers

// RecordRPCCall records a Solana RPC call with duration.
func (m *Metrics) RecordRPCCall(method string, err error, duration float64) {
	if m == nil {
		return
	}
	m.solanaRPCCallsTotal.WithLabelValues(method, errorStatus(err)).Inc()
	m.solanaRPCCallDuration.WithLabelValues(method).Observe(duration)
}

// Enrichment metric helpers

// RecordEnrichmentCall records one batched enrichment request.
func (m *Metrics) RecordEnrichmentCall(signatures int, err error, duration float64) {
	if m == nil {
		return
	}
	status := errorStatus(err)
	m.enrichmentCallsTotal.WithLabelValues(status).Inc()
	m.enrichmentCallDuration.WithLabelValues(status).Observe(duration)
	m.enrichmentSignaturesSent.Observe(float64(signatures))
}

// Classification metric helpers

// RecordShape records a decoded input shape.
func (m *Metrics) RecordShape(shape string) {
	if m == nil {
		return
	}
	m.shapesDetectedTotal.WithLabelValues(shape).Inc()
}

// RecordClassification records the final kind of an assembled transaction.
func (m *Metrics) RecordClassification(kind string) {
	if m == nil {
		return
	}
	m.classificationsTotal.WithLabelValues(kind).Inc()
}

// RecordClassifierFallback records a downgrade to UNKNOWN.
func (m *Metrics) RecordClassifierFallback(declaredType, reason string) {
	if m == nil {
		return
	}
	m.classifierFallbacksTotal.WithLabelValues(declaredType, reason).Inc()
}

// Batch metric helpers

// RecordBatch records the size of one processed batch.
func (m *Metrics) RecordBatch(size int) {
	if m == nil {
		return
	}
	m.batchSize.Observe(float64(size))
}

// RecordSynthesized records transactions assembled from raw data only.
func (m *Metrics) RecordSynthesized(reason string, count int) {
	if m == nil || count == 0 {
		return
	}
	m.batchSynthesizedTotal.WithLabelValues(reason).Add(float64(count))
}

// RecordBatchRun records a complete ProcessBlock or ProcessSignatures call.
func (m *Metrics) RecordBatchRun(operation string, err error, duration float64) {
	if m == nil {
		return
	}
	m.batchProcessDuration.WithLabelValues(operation, errorStatus(err)).Observe(duration)
}

// HTTP metric helpers

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	if m == nil {
		return
	}
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(subject, status string, duration float64) {
	if m == nil {
		return
	}
	m.natsMessagesPublished.WithLabelValues(subject, status).Inc()
	m.natsPublishDuration.WithLabelValues(subject).Observe(duration)
}

// Helper functions

func errorStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func statusCodeToString(code int) string {
	// Group status codes by class
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
