package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/mr-tron/base58"
)

// ShapeTag names the upstream shape a transaction-like value matched.
type ShapeTag int

const (
	ShapeUnrecognized ShapeTag = iota
	ShapeEnriched
	ShapeRawParsed
	ShapeSignatureWithMeta
	ShapeBareSignature
)

func (s ShapeTag) String() string {
	switch s {
	case ShapeEnriched:
		return "enriched"
	case ShapeRawParsed:
		return "raw_parsed"
	case ShapeSignatureWithMeta:
		return "signature_with_meta"
	case ShapeBareSignature:
		return "bare_signature"
	default:
		return "unrecognized"
	}
}

var (
	// ErrUnrecognizedShape is returned when no known shape matches and no
	// signature-like field could be found.
	ErrUnrecognizedShape = errors.New("unrecognized transaction shape")

	// ErrMissingSignature is returned when a value matches a shape but has
	// no signature to identify it by.
	ErrMissingSignature = errors.New("transaction has no signature")
)

const signatureLength = 64

// Detect reports which shape data matches. Shapes overlap (an enriched
// transaction also carries a signature field), so checks run in a fixed
// priority order: enriched, raw with meta, signature with metadata, bare.
// Detect never panics; anything that is not a JSON object is unrecognized.
func Detect(data []byte) ShapeTag {
	fields, ok := probe(data)
	if !ok {
		return ShapeUnrecognized
	}
	return detectFields(fields)
}

// Decode detects the shape of data and parses it into the matching Record.
func Decode(data []byte) (Record, error) {
	fields, ok := probe(data)
	if !ok {
		return nil, fmt.Errorf("%w: not a JSON object", ErrUnrecognizedShape)
	}

	switch tag := detectFields(fields); tag {
	case ShapeEnriched:
		var tx EnrichedTransaction
		if err := json.Unmarshal(data, &tx); err != nil {
			return nil, fmt.Errorf("decode enriched transaction: %w", err)
		}
		if tx.Signature == "" {
			return nil, fmt.Errorf("decode enriched transaction: %w", ErrMissingSignature)
		}
		return &tx, nil

	case ShapeRawParsed:
		var tx RawTransaction
		if err := json.Unmarshal(data, &tx); err != nil {
			return nil, fmt.Errorf("decode raw transaction: %w", err)
		}
		if tx.TxSignature() == "" {
			return nil, fmt.Errorf("decode raw transaction: %w", ErrMissingSignature)
		}
		return &tx, nil

	case ShapeSignatureWithMeta, ShapeBareSignature:
		if !isString(fields["signature"]) {
			// Reached through the signature-like field scan.
			rec, ok := salvageFields(fields)
			if !ok {
				return nil, ErrUnrecognizedShape
			}
			return rec, nil
		}
		var rec SignatureRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("decode signature record: %w", err)
		}
		if rec.Signature == "" {
			return nil, fmt.Errorf("decode signature record: %w", ErrMissingSignature)
		}
		rec.WithMeta = tag == ShapeSignatureWithMeta
		return &rec, nil
	}

	return nil, ErrUnrecognizedShape
}

// Salvage extracts a bare signature record from a value that failed to
// decode as its detected shape.
func Salvage(data []byte) (*SignatureRecord, bool) {
	fields, ok := probe(data)
	if !ok {
		return nil, false
	}
	return salvageFields(fields)
}

func salvageFields(fields map[string]json.RawMessage) (*SignatureRecord, bool) {
	rec := &SignatureRecord{}
	for _, key := range []string{"blockTime", "timestamp"} {
		var bt int64
		if err := json.Unmarshal(fields[key], &bt); err == nil {
			rec.BlockTime = &bt
			break
		}
	}

	var sig string
	if err := json.Unmarshal(fields["signature"], &sig); err == nil && sig != "" {
		rec.Signature = sig
		return rec, true
	}

	var envelope struct {
		Signatures []string `json:"signatures"`
	}
	if err := json.Unmarshal(fields["transaction"], &envelope); err == nil && len(envelope.Signatures) > 0 && envelope.Signatures[0] != "" {
		rec.Signature = envelope.Signatures[0]
		return rec, true
	}

	if sig, ok := findSignature(fields); ok {
		rec.Signature = sig
		return rec, true
	}
	return nil, false
}

func probe(data []byte) (map[string]json.RawMessage, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return nil, false
	}
	return fields, true
}

func detectFields(fields map[string]json.RawMessage) ShapeTag {
	if hasValue(fields, "timestamp") && hasAnyKey(fields, "type", "tokenTransfers", "nativeTransfers", "events") {
		return ShapeEnriched
	}
	if hasValue(fields, "meta") && hasMessage(fields["transaction"]) {
		return ShapeRawParsed
	}
	if isString(fields["signature"]) {
		// getSignaturesForAddress always sends err and memo, even as null.
		if hasAnyKey(fields, "slot", "err", "memo", "confirmationStatus") {
			return ShapeSignatureWithMeta
		}
		return ShapeBareSignature
	}
	if _, ok := findSignature(fields); ok {
		return ShapeBareSignature
	}
	return ShapeUnrecognized
}

func hasValue(fields map[string]json.RawMessage, key string) bool {
	v, ok := fields[key]
	return ok && !isNull(v)
}

func hasAnyKey(fields map[string]json.RawMessage, keys ...string) bool {
	for _, k := range keys {
		if _, ok := fields[k]; ok {
			return true
		}
	}
	return false
}

func hasMessage(raw json.RawMessage) bool {
	if isNull(raw) {
		return false
	}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return false
	}
	return hasValue(envelope, "message")
}

func isString(raw json.RawMessage) bool {
	var s string
	return len(raw) > 0 && json.Unmarshal(raw, &s) == nil
}

// findSignature scans top-level string fields for a base58 value that
// decodes to a 64-byte ed25519 signature. Keys are visited in sorted order
// so the result is stable.
func findSignature(fields map[string]json.RawMessage) (string, bool) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		var s string
		if err := json.Unmarshal(fields[k], &s); err != nil {
			continue
		}
		if looksLikeSignature(s) {
			return s, true
		}
	}
	return "", false
}

func looksLikeSignature(s string) bool {
	if len(s) < 80 || len(s) > 90 {
		return false
	}
	b, err := base58.Decode(s)
	return err == nil && len(b) == signatureLength
}

// SplitValues returns the elements of a JSON array, or data itself when it
// is a single object. Elements are not validated beyond JSON syntax.
func SplitValues(data []byte) ([]json.RawMessage, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("no JSON input")
	}
	switch data[0] {
	case '[':
		var values []json.RawMessage
		if err := json.Unmarshal(data, &values); err != nil {
			return nil, err
		}
		return values, nil
	case '{':
		if !json.Valid(data) {
			return nil, errors.New("invalid JSON object")
		}
		return []json.RawMessage{data}, nil
	default:
		return nil, errors.New("expected a JSON object or array")
	}
}
