package parser

import (
	"io"
	"log/slog"

	"github.com/brojonat/txlens/service/metrics"
)

// Assembler turns any decoded Record into a canonical Transaction. It holds
// no mutable state and is safe for concurrent use.
type Assembler struct {
	dispatcher *Dispatcher
	labels     Labels
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewAssembler creates an Assembler. labels are used only to name the
// source program of raw transactions; nil means no labels.
func NewAssembler(labels Labels, logger *slog.Logger, m *metrics.Metrics) *Assembler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Assembler{
		dispatcher: NewDispatcher(logger, m),
		labels:     labels,
		logger:     logger,
		metrics:    m,
	}
}

// Dispatcher returns the dispatcher used for enriched records.
func (a *Assembler) Dispatcher() *Dispatcher {
	return a.dispatcher
}

// Normalize decodes data and assembles it. A value that fails to decode as
// its detected shape is reduced to a bare signature record. It returns false
// only when no signature can be found at all, in which case the caller
// should skip the value.
func (a *Assembler) Normalize(data []byte, account string) (*Transaction, bool) {
	rec, err := Decode(data)
	if err != nil {
		salvaged, ok := Salvage(data)
		if !ok {
			a.logger.Debug("skipping unrecognized transaction value", "error", err)
			a.metrics.RecordShape(ShapeUnrecognized.String())
			return nil, false
		}
		a.logger.Debug("decoded transaction as bare signature",
			"signature", salvaged.Signature,
			"error", err,
		)
		rec = salvaged
	}
	a.metrics.RecordShape(rec.Shape().String())
	return a.Assemble(rec, account), true
}

// Assemble builds the canonical Transaction for rec. When account is set,
// balance changes for that account are attached.
func (a *Assembler) Assemble(rec Record, account string) *Transaction {
	switch r := rec.(type) {
	case *EnrichedTransaction:
		if r == nil {
			break
		}
		var accounts []string
		if account != "" {
			accounts = []string{account}
		}
		out := a.dispatcher.Dispatch(r, accounts...)
		if account != "" {
			out.BalanceChanges = EnrichedBalanceChanges(r, account)
		}
		return out
	case *RawTransaction:
		if r == nil {
			break
		}
		return a.FromRaw(r, account)
	case *SignatureRecord:
		if r == nil {
			break
		}
		return a.FromSignature(r)
	}
	return &Transaction{Type: KindUnknown, Actions: []Action{}}
}

// FromRaw assembles a raw transaction without enrichment. Vote transactions
// are typed VOTE; everything else is UNKNOWN with no actions, carrying the
// fee, slot, error and timestamp from the raw record.
func (a *Assembler) FromRaw(tx *RawTransaction, account string) *Transaction {
	out := &Transaction{
		Signature: tx.TxSignature(),
		Account:   tx.FeePayer(),
		Timestamp: copyInt64(tx.BlockTime),
		Type:      KindUnknown,
		Source:    a.labels.Source(tx),
		Actions:   []Action{},
	}
	if tx.IsVote() {
		out.Type = KindVote
	}
	if tx.Slot != 0 {
		slot := tx.Slot
		out.Slot = &slot
	}
	if tx.Meta != nil {
		fee := tx.Meta.Fee
		out.Fee = &fee
		out.Err = errString(tx.Meta.Err)
	}
	if account != "" {
		out.BalanceChanges = RawBalanceChanges(tx, account)
	}
	a.metrics.RecordClassification(string(out.Type))
	return out
}

// FromSignature assembles a signature-only record. There is nothing to
// classify, so the result is UNKNOWN with no actions.
func (a *Assembler) FromSignature(rec *SignatureRecord) *Transaction {
	out := &Transaction{
		Signature: rec.Signature,
		Timestamp: copyInt64(rec.BlockTime),
		Type:      KindUnknown,
		Err:       errString(rec.Err),
		Actions:   []Action{},
	}
	if rec.Slot != nil {
		slot := *rec.Slot
		out.Slot = &slot
	}
	if rec.Memo != nil {
		out.Description = *rec.Memo
	}
	a.metrics.RecordClassification(string(out.Type))
	return out
}

func copyInt64(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
