package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
)

// Record is one decoded upstream transaction-like value. The set of
// implementations is closed: *EnrichedTransaction, *RawTransaction and
// *SignatureRecord.
type Record interface {
	Shape() ShapeTag
	TxSignature() string
	record()
}

// List is a JSON array that remembers whether it arrived as an explicit
// null. The enrichment service sends null to signal that it could not
// derive transfers, which is different from an empty array or an absent key.
type List[T any] struct {
	Items []T
	Null  bool
}

// Items builds a non-null List.
func Items[T any](items ...T) List[T] {
	if items == nil {
		items = []T{}
	}
	return List[T]{Items: items}
}

func (l *List[T]) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		l.Items = nil
		l.Null = true
		return nil
	}
	l.Null = false
	return json.Unmarshal(data, &l.Items)
}

func (l List[T]) MarshalJSON() ([]byte, error) {
	if l.Null {
		return []byte("null"), nil
	}
	if l.Items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l.Items)
}

// EnrichedTransaction is the indexer's classified transaction format.
type EnrichedTransaction struct {
	Signature        string               `json:"signature"`
	Timestamp        int64                `json:"timestamp"`
	Slot             uint64               `json:"slot,omitempty"`
	Fee              uint64               `json:"fee,omitempty"`
	FeePayer         string               `json:"feePayer"`
	Type             string               `json:"type"`
	Source           string               `json:"source,omitempty"`
	Description      string               `json:"description,omitempty"`
	TransactionError json.RawMessage      `json:"transactionError,omitempty"`
	TokenTransfers   List[TokenTransfer]  `json:"tokenTransfers"`
	NativeTransfers  List[NativeTransfer] `json:"nativeTransfers"`
	Events           Events               `json:"events"`

	// payloadErr is set when transfers or events could not be decoded. The
	// header fields above are still valid.
	payloadErr error
}

// UnmarshalJSON decodes the header fields strictly and the transfer and event
// payloads leniently. A malformed payload is left empty and reported by
// PayloadErr so the dispatcher can downgrade the record without losing its
// metadata.
func (t *EnrichedTransaction) UnmarshalJSON(data []byte) error {
	type plain EnrichedTransaction
	*t = EnrichedTransaction{}
	aux := struct {
		*plain
		TokenTransfers  json.RawMessage `json:"tokenTransfers"`
		NativeTransfers json.RawMessage `json:"nativeTransfers"`
		Events          json.RawMessage `json:"events"`
	}{plain: (*plain)(t)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var errs []error
	if aux.TokenTransfers != nil {
		if err := t.TokenTransfers.UnmarshalJSON(aux.TokenTransfers); err != nil {
			t.TokenTransfers = List[TokenTransfer]{}
			errs = append(errs, fmt.Errorf("tokenTransfers: %w", err))
		}
	}
	if aux.NativeTransfers != nil {
		if err := t.NativeTransfers.UnmarshalJSON(aux.NativeTransfers); err != nil {
			t.NativeTransfers = List[NativeTransfer]{}
			errs = append(errs, fmt.Errorf("nativeTransfers: %w", err))
		}
	}
	if !isNull(aux.Events) {
		if err := json.Unmarshal(aux.Events, &t.Events); err != nil {
			t.Events = Events{}
			errs = append(errs, fmt.Errorf("events: %w", err))
		}
	}
	t.payloadErr = errors.Join(errs...)
	return nil
}

// PayloadErr reports why the transfer or event payloads were dropped, if they were.
func (t *EnrichedTransaction) PayloadErr() error {
	return t.payloadErr
}

func (*EnrichedTransaction) Shape() ShapeTag       { return ShapeEnriched }
func (t *EnrichedTransaction) TxSignature() string { return t.Signature }
func (*EnrichedTransaction) record()               {}

// transfersUnavailable reports whether the enrichment step signalled that
// it could not derive transfers for this transaction.
func (t *EnrichedTransaction) transfersUnavailable() bool {
	return t.TokenTransfers.Null || t.NativeTransfers.Null
}

// TokenTransfer amounts are kept exactly as the enrichment service reports them.
type TokenTransfer struct {
	FromUserAccount  string          `json:"fromUserAccount"`
	ToUserAccount    string          `json:"toUserAccount"`
	FromTokenAccount string          `json:"fromTokenAccount,omitempty"`
	ToTokenAccount   string          `json:"toTokenAccount,omitempty"`
	TokenAmount      decimal.Decimal `json:"tokenAmount"`
	Mint             string          `json:"mint"`
	TokenStandard    string          `json:"tokenStandard,omitempty"`
	Decimals         *int            `json:"decimals,omitempty"`
}

// NativeTransfer amounts are in lamports.
type NativeTransfer struct {
	FromUserAccount string          `json:"fromUserAccount"`
	ToUserAccount   string          `json:"toUserAccount"`
	Amount          decimal.Decimal `json:"amount"`
}

// Events holds the enrichment service's sub-event bag. Each entry stays raw
// until a classifier asks for it, so an unexpected payload fails inside the
// classifier instead of rejecting the whole record.
type Events struct {
	Swap       json.RawMessage `json:"swap,omitempty"`
	NFT        json.RawMessage `json:"nft,omitempty"`
	Compressed json.RawMessage `json:"compressed,omitempty"`
}

// SwapEvent returns the decoded swap event, or nil if there is none.
func (e Events) SwapEvent() (*SwapEvent, error) {
	if isNull(e.Swap) {
		return nil, nil
	}
	var ev SwapEvent
	if err := json.Unmarshal(e.Swap, &ev); err != nil {
		return nil, fmt.Errorf("decode swap event: %w", err)
	}
	return &ev, nil
}

// NFTEvent returns the decoded NFT event, or nil if there is none.
func (e Events) NFTEvent() (*NFTEvent, error) {
	if isNull(e.NFT) {
		return nil, nil
	}
	var ev NFTEvent
	if err := json.Unmarshal(e.NFT, &ev); err != nil {
		return nil, fmt.Errorf("decode nft event: %w", err)
	}
	return &ev, nil
}

// CompressedEvents returns the compressed NFT events. A single object is
// accepted as a one-element list.
func (e Events) CompressedEvents() ([]CompressedEvent, error) {
	if isNull(e.Compressed) {
		return nil, nil
	}
	data := bytes.TrimSpace(e.Compressed)
	if len(data) > 0 && data[0] == '{' {
		var ev CompressedEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode compressed event: %w", err)
		}
		return []CompressedEvent{ev}, nil
	}
	var evs []CompressedEvent
	if err := json.Unmarshal(data, &evs); err != nil {
		return nil, fmt.Errorf("decode compressed events: %w", err)
	}
	return evs, nil
}

type SwapEvent struct {
	NativeInput  *NativeSwapAmount `json:"nativeInput"`
	NativeOutput *NativeSwapAmount `json:"nativeOutput"`
	TokenInputs  []TokenSwapAmount `json:"tokenInputs"`
	TokenOutputs []TokenSwapAmount `json:"tokenOutputs"`
	InnerSwaps   []json.RawMessage `json:"innerSwaps,omitempty"`
}

// NativeSwapAmount carries lamports. The indexer sends the amount as either
// a string or a number.
type NativeSwapAmount struct {
	Account string          `json:"account"`
	Amount  decimal.Decimal `json:"amount"`
}

type TokenSwapAmount struct {
	UserAccount    string         `json:"userAccount"`
	TokenAccount   string         `json:"tokenAccount,omitempty"`
	Mint           string         `json:"mint"`
	RawTokenAmount RawTokenAmount `json:"rawTokenAmount"`
}

type RawTokenAmount struct {
	TokenAmount string `json:"tokenAmount"`
	Decimals    int    `json:"decimals"`
}

// NFTEvent describes sales, listings, bids and mints. Amount is in lamports.
type NFTEvent struct {
	Description string          `json:"description,omitempty"`
	Type        string          `json:"type,omitempty"`
	Source      string          `json:"source,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Buyer       string          `json:"buyer,omitempty"`
	Seller      string          `json:"seller,omitempty"`
	SaleType    string          `json:"saleType,omitempty"`
	NFTs        []NFTToken      `json:"nfts"`
}

type NFTToken struct {
	Mint          string `json:"mint"`
	TokenStandard string `json:"tokenStandard,omitempty"`
}

type CompressedEvent struct {
	Type         string `json:"type,omitempty"`
	TreeID       string `json:"treeId,omitempty"`
	AssetID      string `json:"assetId,omitempty"`
	LeafIndex    int    `json:"leafIndex,omitempty"`
	NewLeafOwner string `json:"newLeafOwner,omitempty"`
	OldLeafOwner string `json:"oldLeafOwner,omitempty"`
}

// RawTransaction is a getTransaction / getBlock entry with status metadata.
type RawTransaction struct {
	Slot        uint64      `json:"slot"`
	BlockTime   *int64      `json:"blockTime,omitempty"`
	Transaction RawEnvelope `json:"transaction"`
	Meta        *RawMeta    `json:"meta"`
}

type RawEnvelope struct {
	Signatures []string `json:"signatures"`
	Message    Message  `json:"message"`
}

type Message struct {
	AccountKeys  AccountKeys   `json:"accountKeys"`
	Instructions []Instruction `json:"instructions"`
}

// AccountKeys accepts both the "json" encoding (plain strings) and the
// "jsonParsed" encoding ({"pubkey": ...} objects).
type AccountKeys []string

func (k *AccountKeys) UnmarshalJSON(data []byte) error {
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	keys := make([]string, 0, len(entries))
	for i, entry := range entries {
		var s string
		if err := json.Unmarshal(entry, &s); err == nil {
			keys = append(keys, s)
			continue
		}
		var obj struct {
			Pubkey string `json:"pubkey"`
		}
		if err := json.Unmarshal(entry, &obj); err != nil {
			return fmt.Errorf("account key %d: %w", i, err)
		}
		keys = append(keys, obj.Pubkey)
	}
	*k = keys
	return nil
}

// Instruction keeps only what labeling needs. Compiled instructions carry
// programIdIndex, parsed ones carry programId.
type Instruction struct {
	ProgramIDIndex *int   `json:"programIdIndex,omitempty"`
	ProgramID      string `json:"programId,omitempty"`
	Program        string `json:"program,omitempty"`
}

type RawMeta struct {
	Err               interface{}         `json:"err"`
	Fee               uint64              `json:"fee"`
	PreBalances       []uint64            `json:"preBalances"`
	PostBalances      []uint64            `json:"postBalances"`
	PreTokenBalances  []rpc.TokenBalance  `json:"preTokenBalances"`
	PostTokenBalances []rpc.TokenBalance  `json:"postTokenBalances"`
	LogMessages       []string            `json:"logMessages,omitempty"`
	LoadedAddresses   rpc.LoadedAddresses `json:"loadedAddresses"`
}

func (*RawTransaction) Shape() ShapeTag { return ShapeRawParsed }
func (*RawTransaction) record()         {}

func (t *RawTransaction) TxSignature() string {
	if len(t.Transaction.Signatures) == 0 {
		return ""
	}
	return t.Transaction.Signatures[0]
}

// AccountKeys returns static keys followed by loaded writable and readonly
// addresses, which is the order balance arrays are indexed in.
func (t *RawTransaction) AccountKeys() []string {
	keys := append([]string(nil), t.Transaction.Message.AccountKeys...)
	if t.Meta == nil {
		return keys
	}
	for _, k := range t.Meta.LoadedAddresses.Writable {
		keys = append(keys, k.String())
	}
	for _, k := range t.Meta.LoadedAddresses.ReadOnly {
		keys = append(keys, k.String())
	}
	return keys
}

// FeePayer is the first account key.
func (t *RawTransaction) FeePayer() string {
	if len(t.Transaction.Message.AccountKeys) == 0 {
		return ""
	}
	return t.Transaction.Message.AccountKeys[0]
}

// IsVote reports whether the vote program appears among the account keys.
func (t *RawTransaction) IsVote() bool {
	for _, k := range t.Transaction.Message.AccountKeys {
		if k == VoteProgram {
			return true
		}
	}
	return false
}

// SignatureRecord covers getSignaturesForAddress entries, bare confirmed
// signatures, and compression-layer signature listings.
type SignatureRecord struct {
	Signature          string      `json:"signature"`
	Slot               *uint64     `json:"slot,omitempty"`
	BlockTime          *int64      `json:"blockTime,omitempty"`
	Err                interface{} `json:"err,omitempty"`
	Memo               *string     `json:"memo,omitempty"`
	ConfirmationStatus string      `json:"confirmationStatus,omitempty"`

	// WithMeta is set when anything beyond signature and blockTime was present.
	WithMeta bool `json:"-"`
}

func (r *SignatureRecord) Shape() ShapeTag {
	if r.WithMeta {
		return ShapeSignatureWithMeta
	}
	return ShapeBareSignature
}

func (r *SignatureRecord) TxSignature() string { return r.Signature }
func (*SignatureRecord) record()               {}

func isNull(data []byte) bool {
	data = bytes.TrimSpace(data)
	return len(data) == 0 || bytes.Equal(data, []byte("null"))
}

// errString renders an upstream error value for display. Nil means success.
func errString(v interface{}) *string {
	switch e := v.(type) {
	case nil:
		return nil
	case string:
		return &e
	case json.RawMessage:
		if isNull(e) {
			return nil
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, e); err != nil {
			s := string(e)
			return &s
		}
		s := buf.String()
		return &s
	default:
		b, err := json.Marshal(e)
		if err != nil {
			s := fmt.Sprintf("%v", e)
			return &s
		}
		s := string(b)
		return &s
	}
}
