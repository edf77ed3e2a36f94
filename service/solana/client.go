package solana

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/brojonat/txlens/service/metrics"
	"github.com/brojonat/txlens/service/parser"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// ErrNotFound is returned when the node has no record of a transaction or block.
var ErrNotFound = errors.New("not found")

// RPCClient is an interface for the Solana RPC operations we need.
// This allows us to mock the RPC layer in tests without hitting real Solana nodes.
type RPCClient interface {
	GetSignaturesForAddress(
		ctx context.Context,
		address solana.PublicKey,
		opts *rpc.GetSignaturesForAddressOpts,
	) ([]*rpc.TransactionSignature, error)

	GetTransaction(
		ctx context.Context,
		signature solana.Signature,
		opts *rpc.GetTransactionOpts,
	) (*rpc.GetTransactionResult, error)

	GetBlock(
		ctx context.Context,
		slot uint64,
		opts *rpc.GetBlockOpts,
	) (*rpc.GetBlockResult, error)
}

// Client fetches raw transactions and signature listings and converts them
// into parser records. It does not retry; callers decide what to do with
// errors.
type Client struct {
	rpc     RPCClient
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewClient creates a new Solana client. If m is nil, no metrics are recorded.
func NewClient(rpcClient RPCClient, m *metrics.Metrics, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		rpc:     rpcClient,
		logger:  logger,
		metrics: m,
	}
}

// HistoryParams controls a signature listing.
type HistoryParams struct {
	Limit  int
	Before string // page backwards from this signature
	Until  string // stop at this signature
}

var maxSupportedTransactionVersion = rpc.MaxSupportedTransactionVersion0

// GetBlock fetches every transaction in a block, in block order.
// Transactions that cannot be decoded are logged and skipped.
func (c *Client) GetBlock(ctx context.Context, slot uint64) ([]*parser.RawTransaction, error) {
	noRewards := false
	opts := &rpc.GetBlockOpts{
		Encoding:                       solana.EncodingBase64,
		TransactionDetails:             rpc.TransactionDetailsFull,
		Rewards:                        &noRewards,
		Commitment:                     rpc.CommitmentFinalized,
		MaxSupportedTransactionVersion: &maxSupportedTransactionVersion,
	}

	start := time.Now()
	block, err := c.rpc.GetBlock(ctx, slot, opts)
	c.metrics.RecordRPCCall("GetBlock", err, time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, fmt.Errorf("block %d: %w", slot, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get block %d: %w", slot, err)
	}
	if block == nil {
		return nil, fmt.Errorf("block %d: %w", slot, ErrNotFound)
	}

	txs := make([]*parser.RawTransaction, 0, len(block.Transactions))
	for i, entry := range block.Transactions {
		raw, err := transactionFromBlockEntry(slot, block.BlockTime, entry)
		if err != nil {
			c.logger.WarnContext(ctx, "skipping undecodable block transaction",
				"slot", slot,
				"index", i,
				"error", err,
			)
			continue
		}
		txs = append(txs, raw)
	}

	c.logger.DebugContext(ctx, "fetched block",
		"slot", slot,
		"transactions", len(txs),
	)
	return txs, nil
}

// GetSignatures lists the signatures that touched address, newest first.
func (c *Client) GetSignatures(ctx context.Context, address string, params HistoryParams) ([]*parser.SignatureRecord, error) {
	pubkey, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", address, err)
	}

	opts := &rpc.GetSignaturesForAddressOpts{}
	if params.Limit > 0 {
		limit := params.Limit
		opts.Limit = &limit
	}
	if params.Before != "" {
		if opts.Before, err = solana.SignatureFromBase58(params.Before); err != nil {
			return nil, fmt.Errorf("invalid before signature: %w", err)
		}
	}
	if params.Until != "" {
		if opts.Until, err = solana.SignatureFromBase58(params.Until); err != nil {
			return nil, fmt.Errorf("invalid until signature: %w", err)
		}
	}

	c.logger.DebugContext(ctx, "calling GetSignaturesForAddress",
		"address", address,
		"limit", params.Limit,
		"before", params.Before,
	)

	start := time.Now()
	sigs, err := c.rpc.GetSignaturesForAddress(ctx, pubkey, opts)
	c.metrics.RecordRPCCall("GetSignaturesForAddress", err, time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("failed to get signatures for %s: %w", address, err)
	}

	records := make([]*parser.SignatureRecord, 0, len(sigs))
	for _, sig := range sigs {
		if sig == nil {
			continue
		}
		records = append(records, signatureToRecord(sig))
	}
	return records, nil
}

// GetTransaction fetches a single transaction with its status metadata.
func (c *Client) GetTransaction(ctx context.Context, signature string) (*parser.RawTransaction, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return nil, fmt.Errorf("invalid signature %q: %w", signature, err)
	}

	opts := &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &maxSupportedTransactionVersion,
	}

	start := time.Now()
	result, err := c.rpc.GetTransaction(ctx, sig, opts)
	c.metrics.RecordRPCCall("GetTransaction", err, time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, fmt.Errorf("transaction %s: %w", signature, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get transaction %s: %w", signature, err)
	}
	if result == nil {
		return nil, fmt.Errorf("transaction %s: %w", signature, ErrNotFound)
	}

	raw, err := transactionFromResult(result)
	if err != nil {
		return nil, fmt.Errorf("transaction %s: %w", signature, err)
	}
	return raw, nil
}
