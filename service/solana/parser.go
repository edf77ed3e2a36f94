package solana

import (
	"fmt"

	"github.com/brojonat/txlens/service/parser"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// signatureToRecord converts a getSignaturesForAddress entry. The listing
// always carries slot, err and memo, so the record counts as having metadata.
func signatureToRecord(sig *rpc.TransactionSignature) *parser.SignatureRecord {
	slot := sig.Slot
	rec := &parser.SignatureRecord{
		Signature:          sig.Signature.String(),
		Slot:               &slot,
		Err:                sig.Err,
		Memo:               sig.Memo,
		ConfirmationStatus: string(sig.ConfirmationStatus),
		WithMeta:           true,
	}
	if sig.BlockTime != nil {
		bt := int64(*sig.BlockTime)
		rec.BlockTime = &bt
	}
	return rec
}

// toRawTransaction converts a decoded transaction and its status metadata
// into the raw record the parser works on.
func toRawTransaction(slot uint64, blockTime *solana.UnixTimeSeconds, tx *solana.Transaction, meta *rpc.TransactionMeta) (*parser.RawTransaction, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction is nil")
	}

	raw := &parser.RawTransaction{Slot: slot}
	if blockTime != nil {
		bt := int64(*blockTime)
		raw.BlockTime = &bt
	}

	raw.Transaction.Signatures = make([]string, 0, len(tx.Signatures))
	for _, s := range tx.Signatures {
		raw.Transaction.Signatures = append(raw.Transaction.Signatures, s.String())
	}

	keys := make(parser.AccountKeys, 0, len(tx.Message.AccountKeys))
	for _, k := range tx.Message.AccountKeys {
		keys = append(keys, k.String())
	}
	raw.Transaction.Message.AccountKeys = keys

	raw.Transaction.Message.Instructions = make([]parser.Instruction, 0, len(tx.Message.Instructions))
	for _, ix := range tx.Message.Instructions {
		idx := int(ix.ProgramIDIndex)
		raw.Transaction.Message.Instructions = append(raw.Transaction.Message.Instructions, parser.Instruction{ProgramIDIndex: &idx})
	}

	if meta != nil {
		raw.Meta = &parser.RawMeta{
			Err:               meta.Err,
			Fee:               meta.Fee,
			PreBalances:       meta.PreBalances,
			PostBalances:      meta.PostBalances,
			PreTokenBalances:  meta.PreTokenBalances,
			PostTokenBalances: meta.PostTokenBalances,
			LogMessages:       meta.LogMessages,
			LoadedAddresses:   meta.LoadedAddresses,
		}
	}
	return raw, nil
}

// transactionFromResult decodes a getTransaction result.
func transactionFromResult(result *rpc.GetTransactionResult) (*parser.RawTransaction, error) {
	if result.Transaction == nil {
		return nil, fmt.Errorf("result has no transaction")
	}
	tx, err := result.Transaction.GetTransaction()
	if err != nil {
		return nil, fmt.Errorf("failed to decode transaction: %w", err)
	}
	return toRawTransaction(result.Slot, result.BlockTime, tx, result.Meta)
}

// transactionFromBlockEntry decodes one transaction of a getBlock result.
// Entries without their own block time inherit the block's.
func transactionFromBlockEntry(slot uint64, blockTime *solana.UnixTimeSeconds, entry rpc.TransactionWithMeta) (*parser.RawTransaction, error) {
	tx, err := entry.GetTransaction()
	if err != nil {
		return nil, fmt.Errorf("failed to decode transaction: %w", err)
	}
	if entry.Slot != 0 {
		slot = entry.Slot
	}
	if entry.BlockTime != nil {
		blockTime = entry.BlockTime
	}
	return toRawTransaction(slot, blockTime, tx, entry.Meta)
}
