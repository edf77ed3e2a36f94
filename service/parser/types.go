package parser

import (
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

// Kind is the classified intent of a transaction.
type Kind string

const (
	KindUnknown               Kind = "UNKNOWN"
	KindTransfer              Kind = "TRANSFER"
	KindSwap                  Kind = "SWAP"
	KindBurn                  Kind = "BURN"
	KindBurnNFT               Kind = "BURN_NFT"
	KindTokenMint             Kind = "TOKEN_MINT"
	KindNFTMint               Kind = "NFT_MINT"
	KindNFTSale               Kind = "NFT_SALE"
	KindNFTListing            Kind = "NFT_LISTING"
	KindNFTBid                Kind = "NFT_BID"
	KindCompressedNFTMint     Kind = "COMPRESSED_NFT_MINT"
	KindCompressedNFTTransfer Kind = "COMPRESSED_NFT_TRANSFER"
	KindCompressedNFTBurn     Kind = "COMPRESSED_NFT_BURN"
	KindVote                  Kind = "VOTE"
)

var kinds = map[string]Kind{
	string(KindUnknown):               KindUnknown,
	string(KindTransfer):              KindTransfer,
	string(KindSwap):                  KindSwap,
	string(KindBurn):                  KindBurn,
	string(KindBurnNFT):               KindBurnNFT,
	string(KindTokenMint):             KindTokenMint,
	string(KindNFTMint):               KindNFTMint,
	string(KindNFTSale):               KindNFTSale,
	string(KindNFTListing):            KindNFTListing,
	string(KindNFTBid):                KindNFTBid,
	string(KindCompressedNFTMint):     KindCompressedNFTMint,
	string(KindCompressedNFTTransfer): KindCompressedNFTTransfer,
	string(KindCompressedNFTBurn):     KindCompressedNFTBurn,
	string(KindVote):                  KindVote,
}

// ParseKind maps an upstream type string onto the closed Kind set.
// Unmapped strings return KindUnknown and false.
func ParseKind(s string) (Kind, bool) {
	k, ok := kinds[s]
	if !ok {
		return KindUnknown, false
	}
	return k, true
}

// ActionType is the kind of balance-affecting movement an Action describes.
type ActionType string

const (
	ActionTransfer     ActionType = "TRANSFER"
	ActionSent         ActionType = "SENT"
	ActionReceived     ActionType = "RECEIVED"
	ActionBurnt        ActionType = "BURNT"
	ActionMint         ActionType = "MINT"
	ActionCNFTMint     ActionType = "CNFT_MINT"
	ActionCNFTTransfer ActionType = "CNFT_TRANSFER"
	ActionNFTSale      ActionType = "NFT_SALE"
	ActionPaid         ActionType = "PAID"
	ActionBid          ActionType = "BID"
	ActionList         ActionType = "LIST"
)

// Sentinel counterparties. These are labels, not addresses, and must never
// be resolved as accounts.
const (
	CounterpartyBurn = "BURN"
	CounterpartyMint = "MINT"

	// Unresolved is used when a compressed NFT event omits an owner or asset.
	Unresolved = "UNKNOWN"
)

// NativeDecimals is the exponent of the lamports-per-SOL denominator.
const NativeDecimals = 9

// NativeMint is the wrapped SOL mint, used as the asset id for native SOL.
var NativeMint = solana.SolMint.String()

// VoteProgram is the address whose presence marks a vote transaction.
var VoteProgram = solana.VoteProgramID.String()

// Action is one normalized, balance-affecting movement within a transaction.
type Action struct {
	ActionType ActionType      `json:"action_type"`
	From       string          `json:"from,omitempty"`
	To         string          `json:"to,omitempty"`
	Mint       string          `json:"mint,omitempty"`
	Decimals   *int            `json:"decimals,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	// Normalized is true when Amount was divided by the native denominator.
	Normalized bool `json:"normalized,omitempty"`
}

// BalanceChange is a signed per-asset delta for one observed account.
type BalanceChange struct {
	Mint     string          `json:"mint"`
	Change   decimal.Decimal `json:"change"`
	Decimals int             `json:"decimals"`
}

// Transaction is the canonical record consumed by presentation code,
// independent of which upstream shape produced it.
type Transaction struct {
	Signature      string          `json:"signature"`
	Account        string          `json:"account,omitempty"`
	Timestamp      *int64          `json:"timestamp,omitempty"`
	Type           Kind            `json:"type"`
	Source         string          `json:"source,omitempty"`
	Actions        []Action        `json:"actions"`
	Description    string          `json:"description,omitempty"`
	Err            *string         `json:"err,omitempty"`
	Slot           *uint64         `json:"slot,omitempty"`
	Fee            *uint64         `json:"fee,omitempty"`
	BalanceChanges []BalanceChange `json:"balance_changes,omitempty"`
}

func intPtr(v int) *int { return &v }
