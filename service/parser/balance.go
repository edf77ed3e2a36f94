package parser

import (
	"math/big"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
)

// RawBalanceChanges diffs the pre and post balances of a raw transaction for
// one account. Amounts stay in base units. The native delta of the fee payer
// includes the fee, so across all accounts the native deltas sum to -fee.
// Token balances are matched by owner and summed per mint; mints appear in
// the order they are first seen in the pre then post arrays. Zero deltas are
// dropped.
func RawBalanceChanges(tx *RawTransaction, account string) []BalanceChange {
	changes := []BalanceChange{}
	if tx == nil || tx.Meta == nil || account == "" {
		return changes
	}
	meta := tx.Meta

	for i, key := range tx.AccountKeys() {
		if key != account {
			continue
		}
		if i < len(meta.PreBalances) && i < len(meta.PostBalances) {
			delta := lamports(meta.PostBalances[i]).Sub(lamports(meta.PreBalances[i]))
			if !delta.IsZero() {
				changes = append(changes, BalanceChange{Mint: NativeMint, Change: delta, Decimals: NativeDecimals})
			}
		}
		break
	}

	type tokenDelta struct {
		change   decimal.Decimal
		decimals int
	}
	deltas := map[string]*tokenDelta{}
	var mints []string
	accumulate := func(balances []rpc.TokenBalance, sign int64) {
		for _, b := range balances {
			if b.Owner == nil || b.Owner.String() != account || b.UiTokenAmount == nil {
				continue
			}
			amount, err := decimal.NewFromString(b.UiTokenAmount.Amount)
			if err != nil {
				continue
			}
			mint := b.Mint.String()
			d, ok := deltas[mint]
			if !ok {
				d = &tokenDelta{decimals: int(b.UiTokenAmount.Decimals)}
				deltas[mint] = d
				mints = append(mints, mint)
			}
			d.change = d.change.Add(amount.Mul(decimal.NewFromInt(sign)))
		}
	}
	accumulate(meta.PreTokenBalances, -1)
	accumulate(meta.PostTokenBalances, 1)

	for _, mint := range mints {
		d := deltas[mint]
		if d.change.IsZero() {
			continue
		}
		changes = append(changes, BalanceChange{Mint: mint, Change: d.change, Decimals: d.decimals})
	}
	return changes
}

// NativeDeltas returns post minus pre for every account key that has both
// balances. With excludeFee the fee is added back to the fee payer at index
// 0, which makes the deltas sum to zero.
func NativeDeltas(tx *RawTransaction, excludeFee bool) []int64 {
	if tx == nil || tx.Meta == nil {
		return []int64{}
	}
	meta := tx.Meta
	n := len(meta.PreBalances)
	if len(meta.PostBalances) < n {
		n = len(meta.PostBalances)
	}
	deltas := make([]int64, n)
	for i := 0; i < n; i++ {
		deltas[i] = int64(meta.PostBalances[i]) - int64(meta.PreBalances[i])
	}
	if excludeFee && n > 0 {
		deltas[0] += int64(meta.Fee)
	}
	return deltas
}

// EnrichedBalanceChanges accumulates signed transfer amounts for one account.
// Native transfers are converted from lamports to SOL as they are added;
// token amounts are kept as reported. Transfers leaving the account count
// negative and transfers entering it count positive.
func EnrichedBalanceChanges(tx *EnrichedTransaction, account string) []BalanceChange {
	changes := []BalanceChange{}
	if tx == nil || account == "" || tx.transfersUnavailable() {
		return changes
	}

	var native decimal.Decimal
	for _, t := range tx.NativeTransfers.Items {
		amount := t.Amount.Shift(-NativeDecimals)
		if t.FromUserAccount == account {
			native = native.Sub(amount)
		}
		if t.ToUserAccount == account {
			native = native.Add(amount)
		}
	}
	if !native.IsZero() {
		changes = append(changes, BalanceChange{Mint: NativeMint, Change: native, Decimals: NativeDecimals})
	}

	type tokenDelta struct {
		change   decimal.Decimal
		decimals int
	}
	deltas := map[string]*tokenDelta{}
	var mints []string
	for _, t := range tx.TokenTransfers.Items {
		if t.FromUserAccount != account && t.ToUserAccount != account {
			continue
		}
		d, ok := deltas[t.Mint]
		if !ok {
			d = &tokenDelta{}
			if t.Decimals != nil {
				d.decimals = *t.Decimals
			}
			deltas[t.Mint] = d
			mints = append(mints, t.Mint)
		}
		if t.FromUserAccount == account {
			d.change = d.change.Sub(t.TokenAmount)
		}
		if t.ToUserAccount == account {
			d.change = d.change.Add(t.TokenAmount)
		}
	}
	for _, mint := range mints {
		d := deltas[mint]
		if d.change.IsZero() {
			continue
		}
		changes = append(changes, BalanceChange{Mint: mint, Change: d.change, Decimals: d.decimals})
	}
	return changes
}

func lamports(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}
