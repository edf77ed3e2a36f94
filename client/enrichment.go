package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/brojonat/txlens/service/metrics"
	"github.com/brojonat/txlens/service/parser"
)

// ErrEnrichmentUnavailable is returned when the enrichment service answers
// with a server error or cannot be reached.
var ErrEnrichmentUnavailable = errors.New("enrichment service unavailable")

// EnrichmentClient is the HTTP client for the transaction enrichment
// (indexer) API. It resolves signatures into enriched transactions.
type EnrichmentClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewEnrichmentClient creates a new enrichment client. httpClient, logger
// and m may be nil.
func NewEnrichmentClient(baseURL, apiKey string, httpClient *http.Client, logger *slog.Logger, m *metrics.Metrics) *EnrichmentClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &EnrichmentClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
		logger:     logger,
		metrics:    m,
	}
}

// Enrich posts signatures to the enrichment API and returns whatever it
// resolved. The response may be in any order and may leave signatures out.
func (c *EnrichmentClient) Enrich(ctx context.Context, signatures []string) (result []*parser.EnrichedTransaction, err error) {
	if len(signatures) == 0 {
		return nil, nil
	}

	start := time.Now()
	defer func() {
		c.metrics.RecordEnrichmentCall(len(signatures), err, time.Since(start).Seconds())
	}()

	body, err := json.Marshal(map[string][]string{"transactions": signatures})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrEnrichmentUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var raw []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	// One malformed element should not cost the whole batch.
	result = make([]*parser.EnrichedTransaction, 0, len(raw))
	for i, item := range raw {
		var tx parser.EnrichedTransaction
		if err := json.Unmarshal(item, &tx); err != nil {
			c.logger.WarnContext(ctx, "dropping undecodable enriched transaction",
				"index", i,
				"error", err,
			)
			continue
		}
		result = append(result, &tx)
	}

	c.logger.DebugContext(ctx, "enriched transactions",
		"requested", len(signatures),
		"returned", len(result),
	)
	return result, nil
}

func (c *EnrichmentClient) endpoint() string {
	u := c.baseURL + "/v0/transactions"
	if c.apiKey != "" {
		u += "?api-key=" + url.QueryEscape(c.apiKey)
	}
	return u
}

// parseErrorResponse attempts to parse an error response from the service.
func (c *EnrichmentClient) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)
	msg := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		msg = errResp.Error
	}

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: status %d: %s", ErrEnrichmentUnavailable, resp.StatusCode, msg)
	}
	return fmt.Errorf("enrichment request failed with status %d: %s", resp.StatusCode, msg)
}
