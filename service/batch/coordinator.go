package batch

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/brojonat/txlens/service/metrics"
	"github.com/brojonat/txlens/service/parser"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultBatchSize is the number of signatures sent per enrichment call.
	DefaultBatchSize = 100
	// MaxBatchSize is the largest batch the enrichment API accepts.
	MaxBatchSize = 1000
)

// Enricher resolves signatures to enriched transactions. Results may come
// back in any order and may omit signatures it could not resolve.
type Enricher interface {
	Enrich(ctx context.Context, signatures []string) ([]*parser.EnrichedTransaction, error)
}

// Config controls batching.
type Config struct {
	BatchSize int
	// Concurrency is the number of batches in flight. Values below 2 process
	// batches one after another.
	Concurrency int
}

// Coordinator classifies block and account-history transactions in fixed
// size batches. Output always has the same length and order as the input.
type Coordinator struct {
	enricher    Enricher
	assembler   *parser.Assembler
	batchSize   int
	concurrency int
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// NewCoordinator creates a Coordinator. logger and m may be nil.
func NewCoordinator(enricher Enricher, assembler *parser.Assembler, cfg Config, logger *slog.Logger, m *metrics.Metrics) *Coordinator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if assembler == nil {
		assembler = parser.NewAssembler(nil, logger, m)
	}
	size := cfg.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	if size > MaxBatchSize {
		size = MaxBatchSize
	}
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Coordinator{
		enricher:    enricher,
		assembler:   assembler,
		batchSize:   size,
		concurrency: concurrency,
		logger:      logger,
		metrics:     m,
	}
}

// item is one input position prepared for a batch.
type item struct {
	signature string
	// account is the observed account passed to the assembler.
	account string
	// local is set when the item was classified without enrichment.
	local *parser.Transaction
	// fallback synthesizes the record when enrichment has no match.
	fallback func() *parser.Transaction
}

// ProcessBlock classifies the transactions of a block. Vote transactions are
// classified locally. The rest are enriched by signature; any that the
// enricher does not return are assembled as UNKNOWN from the raw record.
// Entries without a signature are skipped, so the output may be shorter than
// txs but keeps its order.
func (c *Coordinator) ProcessBlock(ctx context.Context, txs []*parser.RawTransaction) ([]*parser.Transaction, error) {
	items := make([]item, 0, len(txs))
	for _, tx := range txs {
		if tx == nil || tx.TxSignature() == "" {
			continue
		}
		if tx.IsVote() {
			items = append(items, item{local: c.assembler.FromRaw(tx, "")})
			continue
		}
		items = append(items, item{
			signature: tx.TxSignature(),
			fallback:  func() *parser.Transaction { return c.assembler.FromRaw(tx, "") },
		})
	}
	c.logSkipped(ctx, "block", len(txs)-len(items))
	return c.run(ctx, "block", items)
}

// ProcessSignatures classifies a list of signature records. Signatures the
// enricher does not return keep their signature-record metadata. Nil and
// empty records are skipped.
func (c *Coordinator) ProcessSignatures(ctx context.Context, sigs []*parser.SignatureRecord) ([]*parser.Transaction, error) {
	return c.processSignatures(ctx, "", sigs)
}

// ProcessHistory is ProcessSignatures for one account's history. Transfers
// are directed relative to account and its balance changes are attached.
func (c *Coordinator) ProcessHistory(ctx context.Context, account string, sigs []*parser.SignatureRecord) ([]*parser.Transaction, error) {
	return c.processSignatures(ctx, account, sigs)
}

func (c *Coordinator) processSignatures(ctx context.Context, account string, sigs []*parser.SignatureRecord) ([]*parser.Transaction, error) {
	items := make([]item, 0, len(sigs))
	for _, rec := range sigs {
		if rec == nil || rec.Signature == "" {
			continue
		}
		items = append(items, item{
			signature: rec.Signature,
			account:   account,
			fallback:  func() *parser.Transaction { return c.assembler.FromSignature(rec) },
		})
	}
	c.logSkipped(ctx, "signatures", len(sigs)-len(items))
	return c.run(ctx, "signatures", items)
}

func (c *Coordinator) logSkipped(ctx context.Context, operation string, skipped int) {
	if skipped > 0 {
		c.logger.DebugContext(ctx, "skipping entries without a signature",
			"operation", operation,
			"skipped", skipped,
		)
	}
}

func (c *Coordinator) run(ctx context.Context, operation string, items []item) (out []*parser.Transaction, err error) {
	defer metrics.Timer(time.Now(), func(d float64) { c.metrics.RecordBatchRun(operation, err, d) })()

	out = make([]*parser.Transaction, len(items))

	if c.concurrency == 1 {
		for lo := 0; lo < len(items); lo += c.batchSize {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			hi := min(lo+c.batchSize, len(items))
			if err := c.processBatch(ctx, items[lo:hi], out[lo:hi]); err != nil {
				return nil, err
			}
		}
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for lo := 0; lo < len(items); lo += c.batchSize {
		if gctx.Err() != nil {
			break
		}
		hi := min(lo+c.batchSize, len(items))
		batch, dst := items[lo:hi], out[lo:hi]
		g.Go(func() error {
			return c.processBatch(gctx, batch, dst)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// processBatch fills dst, which is parallel to batch. It only fails when ctx
// is cancelled; enrichment errors degrade to synthesized records.
func (c *Coordinator) processBatch(ctx context.Context, batch []item, dst []*parser.Transaction) error {
	c.metrics.RecordBatch(len(batch))

	var signatures []string
	for i, it := range batch {
		if it.local != nil {
			dst[i] = it.local
			continue
		}
		signatures = append(signatures, it.signature)
	}
	if len(signatures) == 0 {
		return nil
	}

	enriched, err := c.enrich(ctx, signatures)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		c.logger.WarnContext(ctx, "enrichment failed, synthesizing batch from raw records",
			"signatures", len(signatures),
			"error", err,
		)
		enriched = nil
	}

	bySignature := make(map[string]*parser.EnrichedTransaction, len(enriched))
	for _, e := range enriched {
		if e != nil && e.Signature != "" {
			bySignature[e.Signature] = e
		}
	}

	synthesized := 0
	for i, it := range batch {
		if it.local != nil {
			continue
		}
		if e, ok := bySignature[it.signature]; ok {
			dst[i] = c.assembler.Assemble(e, it.account)
			continue
		}
		dst[i] = it.fallback()
		synthesized++
	}

	if synthesized > 0 {
		reason := "unmatched"
		if err != nil {
			reason = "enrichment_error"
		}
		c.metrics.RecordSynthesized(reason, synthesized)
		c.logger.DebugContext(ctx, "synthesized unknown transactions",
			"count", synthesized,
			"reason", reason,
		)
	}
	return nil
}

func (c *Coordinator) enrich(ctx context.Context, signatures []string) ([]*parser.EnrichedTransaction, error) {
	if c.enricher == nil {
		return nil, nil
	}
	return c.enricher.Enrich(ctx, signatures)
}
