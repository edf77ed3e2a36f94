package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/brojonat/txlens/service/batch"
	"github.com/brojonat/txlens/service/nats"
	"github.com/brojonat/txlens/service/parser"
	"github.com/brojonat/txlens/service/solana"
)

const (
	maxRequestBodySize  = 10 << 20 // 10MB - a few thousand enriched transactions
	maxAddressLength    = 100      // Solana addresses are 44 chars, give buffer
	maxSignatureLength  = 100      // signatures are 87-88 chars
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
)

var (
	// Valid Solana address characters: base58 (no 0, O, I, l)
	validBase58Regex = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]+$`)
)

// normalizeResponse is returned by the normalize endpoint.
type normalizeResponse struct {
	Transactions []*parser.Transaction `json:"transactions"`
	// Skipped counts input values with no recoverable signature.
	Skipped int `json:"skipped"`
}

// handleNormalize classifies transaction values posted by the caller. The
// body is a single transaction object or an array of them, in any of the
// supported shapes.
// POST /api/v1/normalize?account=ADDRESS
func handleNormalize(assembler *parser.Assembler, publisher nats.Publisher, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account := r.URL.Query().Get("account")
		if account != "" {
			if err := validateAddress(account); err != nil {
				writeError(w, err.Error(), http.StatusBadRequest)
				return
			}
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		body, err := io.ReadAll(r.Body)
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				writeError(w, "request body too large: maximum size is 10MB", http.StatusRequestEntityTooLarge)
				return
			}
			writeError(w, "failed to read request body", http.StatusBadRequest)
			return
		}

		values, err := parser.SplitValues(body)
		if err != nil {
			logger.Debug("failed to decode normalize request", "error", err)
			writeError(w, "invalid request body: must be a JSON object or array", http.StatusBadRequest)
			return
		}

		resp := normalizeResponse{Transactions: make([]*parser.Transaction, 0, len(values))}
		for _, v := range values {
			tx, ok := assembler.Normalize(v, account)
			if !ok {
				resp.Skipped++
				continue
			}
			resp.Transactions = append(resp.Transactions, tx)
		}

		publish(r.Context(), publisher, resp.Transactions, account, logger)
		writeJSON(w, resp, http.StatusOK)
	})
}

// handleBlockTransactions fetches and classifies every transaction in a block.
// GET /api/v1/blocks/{slot}/transactions
func handleBlockTransactions(chain ChainReader, coordinator *batch.Coordinator, publisher nats.Publisher, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slot, err := strconv.ParseUint(r.PathValue("slot"), 10, 64)
		if err != nil {
			writeError(w, "invalid slot: must be a non-negative integer", http.StatusBadRequest)
			return
		}
		if chain == nil {
			writeError(w, "chain access not configured", http.StatusServiceUnavailable)
			return
		}

		raw, err := chain.GetBlock(r.Context(), slot)
		if err != nil {
			writeUpstreamError(w, logger, "failed to get block", err)
			return
		}

		txs, err := coordinator.ProcessBlock(r.Context(), raw)
		if err != nil {
			logger.Error("failed to process block", "slot", slot, "error", err)
			writeError(w, "failed to process block", http.StatusInternalServerError)
			return
		}

		publish(r.Context(), publisher, txs, "", logger)
		writeJSON(w, map[string]interface{}{
			"slot":         slot,
			"transactions": txs,
		}, http.StatusOK)
	})
}

// handleAccountTransactions classifies an account's recent history, newest
// first. Pass the returned "before" value back to page further.
// GET /api/v1/accounts/{address}/transactions?limit=N&before=SIG&until=SIG
func handleAccountTransactions(chain ChainReader, coordinator *batch.Coordinator, publisher nats.Publisher, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := r.PathValue("address")
		if err := validateAddress(address); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		query := r.URL.Query()
		params := solana.HistoryParams{
			Limit:  defaultHistoryLimit,
			Before: query.Get("before"),
			Until:  query.Get("until"),
		}
		if limitStr := query.Get("limit"); limitStr != "" {
			limit, err := strconv.Atoi(limitStr)
			if err != nil {
				writeError(w, "invalid limit parameter: must be an integer", http.StatusBadRequest)
				return
			}
			if limit < 1 {
				writeError(w, "limit must be at least 1", http.StatusBadRequest)
				return
			}
			if limit > maxHistoryLimit {
				writeError(w, fmt.Sprintf("limit cannot exceed %d", maxHistoryLimit), http.StatusBadRequest)
				return
			}
			params.Limit = limit
		}
		for name, sig := range map[string]string{"before": params.Before, "until": params.Until} {
			if sig == "" {
				continue
			}
			if err := validateSignature(sig); err != nil {
				writeError(w, fmt.Sprintf("invalid %s: %v", name, err), http.StatusBadRequest)
				return
			}
		}
		if chain == nil {
			writeError(w, "chain access not configured", http.StatusServiceUnavailable)
			return
		}

		sigs, err := chain.GetSignatures(r.Context(), address, params)
		if err != nil {
			writeUpstreamError(w, logger, "failed to get signatures", err)
			return
		}

		txs, err := coordinator.ProcessHistory(r.Context(), address, sigs)
		if err != nil {
			logger.Error("failed to process account history", "address", address, "error", err)
			writeError(w, "failed to process account history", http.StatusInternalServerError)
			return
		}

		resp := map[string]interface{}{
			"address":      address,
			"transactions": txs,
		}
		if len(sigs) > 0 && len(sigs) == params.Limit {
			resp["before"] = sigs[len(sigs)-1].Signature
		}

		publish(r.Context(), publisher, txs, address, logger)
		writeJSON(w, resp, http.StatusOK)
	})
}

// publish sends classified transactions to NATS. Failures are logged and do
// not affect the HTTP response.
func publish(ctx context.Context, publisher nats.Publisher, txs []*parser.Transaction, observer string, logger *slog.Logger) {
	if publisher == nil || len(txs) == 0 {
		return
	}
	if err := nats.PublishTransactions(ctx, publisher, txs, observer); err != nil {
		logger.Warn("failed to publish transactions", "count", len(txs), "error", err)
	}
}

func writeUpstreamError(w http.ResponseWriter, logger *slog.Logger, msg string, err error) {
	if errors.Is(err, solana.ErrNotFound) {
		writeError(w, "not found", http.StatusNotFound)
		return
	}
	logger.Error(msg, "error", err)
	writeError(w, msg, http.StatusBadGateway)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// validateAddress validates an account address for format.
func validateAddress(address string) error {
	if address == "" {
		return errorf("address is required")
	}
	if len(address) > maxAddressLength {
		return errorf("address too long: maximum length is %d characters", maxAddressLength)
	}
	return validateBase58(address, "address")
}

func validateSignature(sig string) error {
	if len(sig) > maxSignatureLength {
		return errorf("signature too long: maximum length is %d characters", maxSignatureLength)
	}
	return validateBase58(sig, "signature")
}

func validateBase58(s, what string) error {
	for _, r := range s {
		if r == 0 || unicode.IsControl(r) {
			return errorf("invalid characters in %s: control characters not allowed", what)
		}
	}
	if !validBase58Regex.MatchString(s) {
		return errorf("invalid %s format: must contain only valid base58 characters", what)
	}
	return nil
}

// errorf is a helper to format error strings.
func errorf(format string, args ...interface{}) error {
	return &validationError{msg: strings.TrimSpace(fmt.Sprintf(format, args...))}
}

type validationError struct {
	msg string
}

func (e *validationError) Error() string {
	return e.msg
}
