package parser

import (
	"encoding/json"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_BareSignature(t *testing.T) {
	a := NewAssembler(nil, nil, nil)

	var out *Transaction
	var ok bool
	require.NotPanics(t, func() {
		out, ok = a.Normalize([]byte(`{"signature":"abc","blockTime":123}`), "")
	})
	require.True(t, ok)
	assert.Equal(t, "abc", out.Signature)
	assert.Equal(t, KindUnknown, out.Type)
	assert.Empty(t, out.Actions)
	require.NotNil(t, out.Timestamp)
	assert.Equal(t, int64(123), *out.Timestamp)
	assert.Nil(t, out.Err)

	// Actions must encode as an empty list, never null.
	b, err := json.Marshal(out)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"actions":[]`)
	assert.Contains(t, string(b), `"type":"UNKNOWN"`)
}

func TestNormalize_SignatureWithMeta(t *testing.T) {
	a := NewAssembler(nil, nil, nil)

	out, ok := a.Normalize([]byte(`{"signature":"abc","slot":7,"err":{"InstructionError":[1,"InvalidArgument"]},"memo":"gm","blockTime":null,"confirmationStatus":"confirmed"}`), "")
	require.True(t, ok)
	assert.Equal(t, KindUnknown, out.Type)
	assert.Nil(t, out.Timestamp)
	require.NotNil(t, out.Slot)
	assert.Equal(t, uint64(7), *out.Slot)
	require.NotNil(t, out.Err)
	assert.Equal(t, `{"InstructionError":[1,"InvalidArgument"]}`, *out.Err)
	assert.Equal(t, "gm", out.Description)
}

func TestNormalize_Enriched(t *testing.T) {
	a := NewAssembler(nil, nil, nil)

	out, ok := a.Normalize([]byte(`{
		"signature": "sig",
		"timestamp": 1700000000,
		"fee": 5000,
		"feePayer": "A",
		"type": "TRANSFER",
		"source": "SYSTEM_PROGRAM",
		"nativeTransfers": [{"fromUserAccount": "A", "toUserAccount": "B", "amount": 2000000000}],
		"tokenTransfers": []
	}`), "A")
	require.True(t, ok)
	assert.Equal(t, KindTransfer, out.Type)
	require.Len(t, out.Actions, 1)
	assert.Equal(t, ActionSent, out.Actions[0].ActionType)
	assert.Equal(t, "SYSTEM_PROGRAM", out.Source)

	require.Len(t, out.BalanceChanges, 1)
	assert.Equal(t, "-2", out.BalanceChanges[0].Change.String())
}

func TestNormalize_EnrichedMalformedTransfers(t *testing.T) {
	a := NewAssembler(nil, nil, nil)

	out, ok := a.Normalize([]byte(`{
		"signature": "sigA",
		"timestamp": 1700000000,
		"fee": 5000,
		"feePayer": "P",
		"source": "SYSTEM_PROGRAM",
		"type": "TRANSFER",
		"tokenTransfers": [{"tokenAmount": {"weird": 1}}],
		"nativeTransfers": [],
		"events": {}
	}`), "")
	require.True(t, ok)
	assert.Equal(t, "sigA", out.Signature)
	assert.Equal(t, KindUnknown, out.Type)
	assert.Empty(t, out.Actions)
	assert.Equal(t, "P", out.Account)
	assert.Equal(t, "SYSTEM_PROGRAM", out.Source)
	require.NotNil(t, out.Timestamp)
	assert.Equal(t, int64(1700000000), *out.Timestamp)
	require.NotNil(t, out.Fee)
	assert.Equal(t, uint64(5000), *out.Fee)
}

func TestNormalize_Raw(t *testing.T) {
	payer, receiver := newKey(), newKey()
	a := NewAssembler(DefaultLabels(), nil, nil)

	data := `{
		"slot": 321,
		"blockTime": 1700000001,
		"transaction": {
			"signatures": ["` + testSignature + `"],
			"message": {
				"accountKeys": ["` + payer.String() + `", "` + receiver.String() + `", "` + solana.ComputeBudget.String() + `", "` + solana.SystemProgramID.String() + `"],
				"instructions": [{"programIdIndex": 2, "accounts": [], "data": ""}, {"programIdIndex": 3, "accounts": [0, 1], "data": ""}]
			}
		},
		"meta": {
			"err": null,
			"fee": 5000,
			"preBalances": [1000000, 0, 1, 1],
			"postBalances": [994000, 1000, 1, 1],
			"preTokenBalances": [],
			"postTokenBalances": [],
			"loadedAddresses": {"writable": [], "readonly": []}
		}
	}`

	out, ok := a.Normalize([]byte(data), payer.String())
	require.True(t, ok)
	assert.Equal(t, testSignature, out.Signature)
	assert.Equal(t, payer.String(), out.Account)
	assert.Equal(t, KindUnknown, out.Type)
	assert.Equal(t, "System Program", out.Source)
	assert.Empty(t, out.Actions)
	require.NotNil(t, out.Fee)
	assert.Equal(t, uint64(5000), *out.Fee)
	require.NotNil(t, out.Slot)
	assert.Equal(t, uint64(321), *out.Slot)
	require.NotNil(t, out.Timestamp)
	assert.Equal(t, int64(1700000001), *out.Timestamp)
	assert.Nil(t, out.Err)

	require.Len(t, out.BalanceChanges, 1)
	assert.Equal(t, "-6000", out.BalanceChanges[0].Change.String())
}

func TestFromRaw_Vote(t *testing.T) {
	a := NewAssembler(DefaultLabels(), nil, nil)
	validator := newKey()
	tx := rawTx([]solana.PublicKey{validator, solana.VoteProgramID}, 5000, []uint64{10_000, 1}, []uint64{5_000, 1})
	idx := 1
	tx.Transaction.Message.Instructions = []Instruction{{ProgramIDIndex: &idx}}
	tx.Meta.Err = map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}}

	out := a.FromRaw(tx, "")
	assert.Equal(t, KindVote, out.Type)
	assert.Equal(t, "Vote Program", out.Source)
	assert.Empty(t, out.Actions)
	assert.Nil(t, out.BalanceChanges)
	require.NotNil(t, out.Err)
	assert.Equal(t, `{"InstructionError":[0,"Custom"]}`, *out.Err)
}

func TestNormalize_SalvagesUndecodableRaw(t *testing.T) {
	a := NewAssembler(nil, nil, nil)

	out, ok := a.Normalize([]byte(`{
		"transaction": {"signatures": ["broken"], "message": {"accountKeys": [42]}},
		"meta": {"fee": 5000}
	}`), "")
	require.True(t, ok)
	assert.Equal(t, "broken", out.Signature)
	assert.Equal(t, KindUnknown, out.Type)
	assert.Empty(t, out.Actions)
}

func TestNormalize_Skips(t *testing.T) {
	a := NewAssembler(nil, nil, nil)

	for _, data := range []string{`{"nothing":"here"}`, `[]`, `"str"`, `{`} {
		out, ok := a.Normalize([]byte(data), "")
		assert.False(t, ok, data)
		assert.Nil(t, out)
	}
}

// TestAssemble_SameOutputShape checks that presentation fields are present
// regardless of which input shape produced the record.
func TestAssemble_SameOutputShape(t *testing.T) {
	a := NewAssembler(nil, nil, nil)
	records := []Record{
		&SignatureRecord{Signature: "s1"},
		&EnrichedTransaction{Signature: "s2", Type: "NOT_A_KIND"},
		rawTx([]solana.PublicKey{newKey()}, 5000, []uint64{10_000}, []uint64{5_000}),
		nil,
	}

	for _, rec := range records {
		out := a.Assemble(rec, "")
		require.NotNil(t, out)
		assert.NotEmpty(t, out.Type)
		assert.NotNil(t, out.Actions)
	}
}
