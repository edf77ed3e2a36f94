package parser

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/gagliardetto/solana-go"
)

// Labels maps program and well-known account addresses to display names.
// It is only used for labeling and is never consulted during classification.
type Labels map[string]string

// DefaultLabels returns labels for the native and SPL programs.
func DefaultLabels() Labels {
	return Labels{
		solana.SystemProgramID.String():                    "System Program",
		solana.ConfigProgramID.String():                    "Config Program",
		solana.StakeProgramID.String():                     "Stake Program",
		solana.VoteProgramID.String():                      "Vote Program",
		solana.BPFLoaderProgramID.String():                 "BPF Loader",
		solana.BPFLoaderUpgradeableProgramID.String():      "BPF Upgradeable Loader",
		solana.ComputeBudget.String():                      "Compute Budget Program",
		solana.AddressLookupTableProgramID.String():        "Address Lookup Table Program",
		solana.TokenProgramID.String():                     "Token Program",
		solana.Token2022ProgramID.String():                 "Token-2022 Program",
		solana.SPLAssociatedTokenAccountProgramID.String(): "Associated Token Account Program",
		solana.MemoProgramID.String():                      "Memo Program",
		solana.TokenMetadataProgramID.String():             "Token Metadata Program",
		solana.SolMint.String():                            "Wrapped SOL",
	}
}

// LoadLabels reads a JSON object of address to name and merges it over the
// defaults.
func LoadLabels(r io.Reader) (Labels, error) {
	var extra map[string]string
	if err := json.NewDecoder(r).Decode(&extra); err != nil {
		return nil, fmt.Errorf("failed to decode labels: %w", err)
	}
	labels := DefaultLabels()
	for addr, name := range extra {
		labels[addr] = name
	}
	return labels, nil
}

// Name returns the label for addr, or addr itself when none is known.
func (l Labels) Name(addr string) string {
	if name, ok := l[addr]; ok {
		return name
	}
	return addr
}

// Source labels a raw transaction by its first instruction that is not a
// compute budget instruction.
func (l Labels) Source(tx *RawTransaction) string {
	keys := tx.Transaction.Message.AccountKeys
	budget := solana.ComputeBudget.String()
	for _, ix := range tx.Transaction.Message.Instructions {
		program := ix.ProgramID
		if program == "" && ix.ProgramIDIndex != nil && *ix.ProgramIDIndex >= 0 && *ix.ProgramIDIndex < len(keys) {
			program = keys[*ix.ProgramIDIndex]
		}
		if program == "" || program == budget {
			continue
		}
		return l.Name(program)
	}
	return ""
}
