package parser

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/brojonat/txlens/service/metrics"
)

// Dispatcher classifies enriched transactions. Dispatch is total: unmapped
// types and classifier failures both produce an UNKNOWN transaction.
type Dispatcher struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewDispatcher creates a Dispatcher. Both arguments may be nil.
func NewDispatcher(logger *slog.Logger, m *metrics.Metrics) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Dispatcher{logger: logger, metrics: m}
}

// Dispatch classifies tx into a canonical Transaction. accounts are the
// observed accounts; when given, transfers are reported as SENT or RECEIVED
// relative to them. A nil tx yields an empty UNKNOWN transaction.
func (d *Dispatcher) Dispatch(tx *EnrichedTransaction, accounts ...string) *Transaction {
	if tx == nil {
		return &Transaction{Type: KindUnknown, Actions: []Action{}}
	}

	out := enrichedBase(tx)
	kind, known := ParseKind(tx.Type)
	if !known {
		d.logger.Debug("unmapped transaction type, classifying as unknown",
			"signature", tx.Signature,
			"type", tx.Type,
		)
		d.metrics.RecordClassifierFallback("unmapped", "unmapped_type")
		out.Type = KindUnknown
		out.Actions = []Action{}
		d.metrics.RecordClassification(string(out.Type))
		return out
	}

	if err := tx.PayloadErr(); err != nil {
		d.logger.Warn("malformed transfer data, falling back to unknown",
			"signature", tx.Signature,
			"type", tx.Type,
			"error", err,
		)
		d.metrics.RecordClassifierFallback(string(kind), "malformed_payload")
		out.Type = KindUnknown
		d.metrics.RecordClassification(string(out.Type))
		return out
	}

	out.Type = kind
	if tx.transfersUnavailable() {
		// The enrichment step could not derive transfers. Keep the declared
		// type but report no actions.
		out.Actions = []Action{}
		d.metrics.RecordClassification(string(out.Type))
		return out
	}

	actions, err := runClassifier(classifierFor(kind), tx, accounts)
	if err != nil {
		d.logger.Warn("classifier failed, falling back to unknown",
			"signature", tx.Signature,
			"type", tx.Type,
			"error", err,
		)
		d.metrics.RecordClassifierFallback(string(kind), "classifier_error")
		out.Type = KindUnknown
		actions, _ = classifyUnknown(tx, accounts)
	}
	out.Actions = actions
	d.metrics.RecordClassification(string(out.Type))
	return out
}

// runClassifier calls fn and converts a panic into an error.
func runClassifier(fn classifier, tx *EnrichedTransaction, accounts []string) (actions []Action, err error) {
	defer func() {
		if r := recover(); r != nil {
			actions = nil
			err = fmt.Errorf("classifier panicked: %v", r)
		}
	}()
	actions, err = fn(tx, accounts)
	if err == nil && actions == nil {
		actions = []Action{}
	}
	return actions, err
}

func enrichedBase(tx *EnrichedTransaction) *Transaction {
	out := &Transaction{
		Signature:   tx.Signature,
		Account:     tx.FeePayer,
		Source:      tx.Source,
		Description: tx.Description,
		Err:         errString(tx.TransactionError),
		Actions:     []Action{},
	}
	ts := tx.Timestamp
	out.Timestamp = &ts
	if tx.Slot != 0 {
		slot := tx.Slot
		out.Slot = &slot
	}
	fee := tx.Fee
	out.Fee = &fee
	return out
}
