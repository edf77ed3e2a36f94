package parser

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// classifier turns one enriched transaction into actions. accounts are the
// observed accounts, used to tell sent from received transfers. A classifier
// must be pure: the same input always yields the same actions.
type classifier func(tx *EnrichedTransaction, accounts []string) ([]Action, error)

// classifierFor selects the classifier for a known kind. The switch covers
// the closed Kind set; anything else gets the unknown classifier.
func classifierFor(kind Kind) classifier {
	switch kind {
	case KindTransfer:
		return classifyTransfer
	case KindSwap:
		return classifySwap
	case KindBurn, KindBurnNFT:
		return classifyBurn
	case KindTokenMint:
		return classifyTokenMint
	case KindNFTMint:
		return classifyNFTMint
	case KindNFTSale:
		return classifyNFTSale
	case KindNFTListing:
		return classifyNFTListing
	case KindNFTBid:
		return classifyNFTBid
	case KindCompressedNFTMint:
		return classifyCompressedMint
	case KindCompressedNFTTransfer:
		return classifyCompressedTransfer
	case KindCompressedNFTBurn:
		return classifyCompressedBurn
	case KindVote, KindUnknown:
		return classifyUnknown
	default:
		return classifyUnknown
	}
}

func classifyUnknown(*EnrichedTransaction, []string) ([]Action, error) {
	return []Action{}, nil
}

func classifyTransfer(tx *EnrichedTransaction, accounts []string) ([]Action, error) {
	actions := make([]Action, 0, len(tx.NativeTransfers.Items)+len(tx.TokenTransfers.Items))
	for _, t := range tx.NativeTransfers.Items {
		actions = append(actions, Action{
			ActionType: direction(t.FromUserAccount, t.ToUserAccount, accounts),
			From:       t.FromUserAccount,
			To:         t.ToUserAccount,
			Mint:       NativeMint,
			Decimals:   intPtr(NativeDecimals),
			Amount:     t.Amount.Shift(-NativeDecimals),
			Normalized: true,
		})
	}
	for _, t := range tx.TokenTransfers.Items {
		actions = append(actions, Action{
			ActionType: direction(t.FromUserAccount, t.ToUserAccount, accounts),
			From:       t.FromUserAccount,
			To:         t.ToUserAccount,
			Mint:       t.Mint,
			Decimals:   copyInt(t.Decimals),
			Amount:     t.TokenAmount,
		})
	}
	return actions, nil
}

// classifySwap reports only the first input and output leg of a swap.
// Routed swaps through several pools are flattened to that first leg.
func classifySwap(tx *EnrichedTransaction, _ []string) ([]Action, error) {
	ev, err := tx.Events.SwapEvent()
	if err != nil {
		return nil, err
	}
	actions := []Action{}
	if ev == nil {
		return actions, nil
	}

	if len(ev.TokenInputs) > 0 {
		in := ev.TokenInputs[0]
		amount, err := decimal.NewFromString(in.RawTokenAmount.TokenAmount)
		if err != nil {
			return nil, fmt.Errorf("swap token input amount %q: %w", in.RawTokenAmount.TokenAmount, err)
		}
		actions = append(actions, Action{
			ActionType: ActionSent,
			From:       in.UserAccount,
			Mint:       in.Mint,
			Decimals:   intPtr(in.RawTokenAmount.Decimals),
			Amount:     amount,
		})
	}
	if ev.NativeOutput != nil {
		actions = append(actions, Action{
			ActionType: ActionReceived,
			To:         ev.NativeOutput.Account,
			Mint:       NativeMint,
			Decimals:   intPtr(NativeDecimals),
			Amount:     ev.NativeOutput.Amount.Shift(-NativeDecimals),
			Normalized: true,
		})
	}
	if ev.NativeInput != nil {
		actions = append(actions, Action{
			ActionType: ActionSent,
			From:       ev.NativeInput.Account,
			Mint:       NativeMint,
			Decimals:   intPtr(NativeDecimals),
			Amount:     ev.NativeInput.Amount.Shift(-NativeDecimals),
			Normalized: true,
		})
	}
	if len(ev.TokenOutputs) > 0 {
		out := ev.TokenOutputs[0]
		amount, err := decimal.NewFromString(out.RawTokenAmount.TokenAmount)
		if err != nil {
			return nil, fmt.Errorf("swap token output amount %q: %w", out.RawTokenAmount.TokenAmount, err)
		}
		actions = append(actions, Action{
			ActionType: ActionReceived,
			To:         out.UserAccount,
			Mint:       out.Mint,
			Decimals:   intPtr(out.RawTokenAmount.Decimals),
			Amount:     amount,
		})
	}
	return actions, nil
}

func classifyBurn(tx *EnrichedTransaction, _ []string) ([]Action, error) {
	if len(tx.TokenTransfers.Items) == 0 {
		return []Action{}, nil
	}
	t := tx.TokenTransfers.Items[0]
	return []Action{{
		ActionType: ActionBurnt,
		From:       t.FromUserAccount,
		To:         CounterpartyBurn,
		Mint:       t.Mint,
		Decimals:   copyInt(t.Decimals),
		Amount:     t.TokenAmount,
	}}, nil
}

func classifyTokenMint(tx *EnrichedTransaction, _ []string) ([]Action, error) {
	if len(tx.TokenTransfers.Items) == 0 {
		return []Action{}, nil
	}
	t := tx.TokenTransfers.Items[0]
	return []Action{{
		ActionType: ActionMint,
		From:       CounterpartyMint,
		To:         t.ToUserAccount,
		Mint:       t.Mint,
		Decimals:   copyInt(t.Decimals),
		Amount:     t.TokenAmount,
	}}, nil
}

// classifyNFTMint emits one mint per minted NFT. Without an NFT event it
// reads the token transfers the same way a fungible mint does.
func classifyNFTMint(tx *EnrichedTransaction, accounts []string) ([]Action, error) {
	ev, err := tx.Events.NFTEvent()
	if err != nil {
		return nil, err
	}
	if ev == nil || len(ev.NFTs) == 0 {
		return classifyTokenMint(tx, accounts)
	}
	to := ev.Buyer
	if to == "" {
		to = tx.FeePayer
	}
	actions := make([]Action, 0, len(ev.NFTs))
	for _, nft := range ev.NFTs {
		actions = append(actions, Action{
			ActionType: ActionMint,
			From:       CounterpartyMint,
			To:         to,
			Mint:       nft.Mint,
			Decimals:   intPtr(0),
			Amount:     decimal.NewFromInt(1),
		})
	}
	return actions, nil
}

func classifyNFTSale(tx *EnrichedTransaction, _ []string) ([]Action, error) {
	ev, err := tx.Events.NFTEvent()
	if err != nil {
		return nil, err
	}
	if ev == nil {
		return []Action{}, nil
	}
	return []Action{
		{
			ActionType: ActionNFTSale,
			From:       ev.Seller,
			To:         ev.Buyer,
			Mint:       firstNFT(ev),
			Decimals:   intPtr(0),
			Amount:     decimal.NewFromInt(1),
		},
		{
			ActionType: ActionPaid,
			From:       ev.Buyer,
			To:         ev.Seller,
			Mint:       NativeMint,
			Decimals:   intPtr(NativeDecimals),
			Amount:     ev.Amount.Shift(-NativeDecimals),
			Normalized: true,
		},
	}, nil
}

func classifyNFTListing(tx *EnrichedTransaction, _ []string) ([]Action, error) {
	ev, err := tx.Events.NFTEvent()
	if err != nil {
		return nil, err
	}
	if ev == nil {
		return []Action{}, nil
	}
	return []Action{{
		ActionType: ActionList,
		From:       ev.Seller,
		Mint:       firstNFT(ev),
		Decimals:   intPtr(NativeDecimals),
		Amount:     ev.Amount.Shift(-NativeDecimals),
		Normalized: true,
	}}, nil
}

func classifyNFTBid(tx *EnrichedTransaction, _ []string) ([]Action, error) {
	ev, err := tx.Events.NFTEvent()
	if err != nil {
		return nil, err
	}
	if ev == nil {
		return []Action{}, nil
	}
	return []Action{{
		ActionType: ActionBid,
		From:       ev.Buyer,
		To:         ev.Seller,
		Mint:       firstNFT(ev),
		Decimals:   intPtr(NativeDecimals),
		Amount:     ev.Amount.Shift(-NativeDecimals),
		Normalized: true,
	}}, nil
}

func classifyCompressedMint(tx *EnrichedTransaction, _ []string) ([]Action, error) {
	ev, err := firstCompressed(tx)
	if err != nil {
		return nil, err
	}
	return []Action{compressedAction(ActionCNFTMint, CounterpartyMint, orUnresolved(ev.NewLeafOwner), ev)}, nil
}

func classifyCompressedTransfer(tx *EnrichedTransaction, _ []string) ([]Action, error) {
	ev, err := firstCompressed(tx)
	if err != nil {
		return nil, err
	}
	return []Action{compressedAction(ActionCNFTTransfer, orUnresolved(ev.OldLeafOwner), orUnresolved(ev.NewLeafOwner), ev)}, nil
}

func classifyCompressedBurn(tx *EnrichedTransaction, _ []string) ([]Action, error) {
	ev, err := firstCompressed(tx)
	if err != nil {
		return nil, err
	}
	return []Action{compressedAction(ActionBurnt, orUnresolved(ev.OldLeafOwner), CounterpartyBurn, ev)}, nil
}

// firstCompressed returns the first compressed event, or an empty one so
// the action still renders with unresolved fields.
func firstCompressed(tx *EnrichedTransaction) (CompressedEvent, error) {
	evs, err := tx.Events.CompressedEvents()
	if err != nil {
		return CompressedEvent{}, err
	}
	if len(evs) == 0 {
		return CompressedEvent{}, nil
	}
	return evs[0], nil
}

func compressedAction(typ ActionType, from, to string, ev CompressedEvent) Action {
	return Action{
		ActionType: typ,
		From:       from,
		To:         to,
		Mint:       orUnresolved(ev.AssetID),
		Decimals:   intPtr(0),
		Amount:     decimal.NewFromInt(1),
	}
}

// direction picks SENT or RECEIVED when exactly one side of a transfer is
// an observed account.
func direction(from, to string, accounts []string) ActionType {
	fromObserved := contains(accounts, from)
	toObserved := contains(accounts, to)
	switch {
	case fromObserved && !toObserved:
		return ActionSent
	case toObserved && !fromObserved:
		return ActionReceived
	default:
		return ActionTransfer
	}
}

func firstNFT(ev *NFTEvent) string {
	if len(ev.NFTs) == 0 || ev.NFTs[0].Mint == "" {
		return Unresolved
	}
	return ev.NFTs[0].Mint
}

func orUnresolved(s string) string {
	if s == "" {
		return Unresolved
	}
	return s
}

func contains(list []string, s string) bool {
	if s == "" {
		return false
	}
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	return intPtr(*p)
}
