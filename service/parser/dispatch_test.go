package parser

import (
	"errors"
	"testing"

	"github.com/brojonat/txlens/service/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatch_UnmappedTypeIsUnknown(t *testing.T) {
	d := NewDispatcher(nil, nil)

	for _, typ := range []string{"", "STAKE_SOL", "transfer", "SOME_FUTURE_KIND", "💥"} {
		t.Run(typ, func(t *testing.T) {
			tx := mustEnriched(t, `{"signature":"sig","timestamp":1,"nativeTransfers":[{"fromUserAccount":"A","toUserAccount":"B","amount":5}]}`)
			tx.Type = typ

			var out *Transaction
			require.NotPanics(t, func() { out = d.Dispatch(tx) })
			require.NotNil(t, out)
			assert.Equal(t, KindUnknown, out.Type)
			assert.Empty(t, out.Actions)
			assert.NotNil(t, out.Actions)
			assert.Equal(t, "sig", out.Signature)
		})
	}
}

// TestDispatch_NullTransfersKeepDeclaredType checks that every kind reports
// no actions when the enrichment step could not derive transfers.
func TestDispatch_NullTransfersKeepDeclaredType(t *testing.T) {
	d := NewDispatcher(nil, nil)

	for typ := range kinds {
		t.Run(typ, func(t *testing.T) {
			tx := mustEnriched(t, `{
				"signature": "sig",
				"timestamp": 1,
				"type": "`+typ+`",
				"tokenTransfers": null,
				"nativeTransfers": [{"fromUserAccount":"A","toUserAccount":"B","amount":5}],
				"events": {"nft": {"amount": 1, "nfts": [{"mint": "N"}]}, "compressed": [{"assetId": "C"}]}
			}`)

			out := d.Dispatch(tx)
			assert.Equal(t, Kind(typ), out.Type)
			assert.Empty(t, out.Actions)
		})
	}

	tx := mustEnriched(t, `{"signature":"sig","type":"TRANSFER","nativeTransfers":null,"tokenTransfers":[]}`)
	out := d.Dispatch(tx)
	assert.Equal(t, KindTransfer, out.Type)
	assert.Empty(t, out.Actions)
}

func TestDispatch_MalformedEventsFallBack(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(registry)
	d := NewDispatcher(nil, m)

	tests := []struct {
		name string
		data string
	}{
		{"swap event is a string", `{"signature":"sig","type":"SWAP","events":{"swap":"oops"}}`},
		{"swap amount not numeric", `{"signature":"sig","type":"SWAP","events":{"swap":{"tokenInputs":[{"mint":"X","rawTokenAmount":{"tokenAmount":"lots"}}]}}}`},
		{"nft event is an array", `{"signature":"sig","type":"NFT_SALE","events":{"nft":[1,2]}}`},
		{"compressed event is a number", `{"signature":"sig","type":"COMPRESSED_NFT_MINT","events":{"compressed":7}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := mustEnriched(t, tt.data)

			var out *Transaction
			require.NotPanics(t, func() { out = d.Dispatch(tx) })
			assert.Equal(t, KindUnknown, out.Type)
			assert.Empty(t, out.Actions)
			assert.Equal(t, "sig", out.Signature)
		})
	}

	count, err := testutil.GatherAndCount(registry, "parser_classifier_fallbacks_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count, "one series per declared type")
}

func TestDispatch_MalformedTransfersKeepMetadata(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(registry)
	d := NewDispatcher(nil, m)

	for _, payload := range []string{
		`"tokenTransfers":[{"tokenAmount":{"weird":1}}]`,
		`"nativeTransfers":[{"fromUserAccount":"A","toUserAccount":"B","amount":true}]`,
		`"events":"swap"`,
	} {
		t.Run(payload, func(t *testing.T) {
			tx := mustEnriched(t, `{"signature":"sigA","timestamp":1700000000,"fee":5000,"feePayer":"P","source":"JUPITER","type":"SWAP",`+payload+`}`)

			out := d.Dispatch(tx)
			assert.Equal(t, KindUnknown, out.Type)
			assert.Empty(t, out.Actions)
			assert.NotNil(t, out.Actions)
			assert.Equal(t, "P", out.Account)
			assert.Equal(t, "JUPITER", out.Source)
			require.NotNil(t, out.Timestamp)
			assert.Equal(t, int64(1700000000), *out.Timestamp)
			require.NotNil(t, out.Fee)
			assert.Equal(t, uint64(5000), *out.Fee)
		})
	}

	count, err := testutil.GatherAndCount(registry, "parser_classifier_fallbacks_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "every fallback shares the malformed_payload series")
}

func TestRunClassifier_RecoversPanic(t *testing.T) {
	panicking := func(*EnrichedTransaction, []string) ([]Action, error) {
		var events *SwapEvent
		_ = events.TokenInputs[0]
		return nil, nil
	}

	actions, err := runClassifier(panicking, &EnrichedTransaction{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
	assert.Nil(t, actions)

	failing := func(*EnrichedTransaction, []string) ([]Action, error) {
		return nil, errors.New("bad payload")
	}
	_, err = runClassifier(failing, &EnrichedTransaction{}, nil)
	assert.EqualError(t, err, "bad payload")

	nilActions := func(*EnrichedTransaction, []string) ([]Action, error) { return nil, nil }
	actions, err = runClassifier(nilActions, &EnrichedTransaction{}, nil)
	require.NoError(t, err)
	assert.NotNil(t, actions)
}

func TestDispatch_Metadata(t *testing.T) {
	tx := mustEnriched(t, `{
		"signature": "sig",
		"timestamp": 1700000000,
		"slot": 250,
		"fee": 5000,
		"feePayer": "payer",
		"type": "UNKNOWN",
		"source": "JUPITER",
		"description": "payer did a thing",
		"transactionError": {"InstructionError": [0, {"Custom": 1}]}
	}`)

	out := NewDispatcher(nil, nil).Dispatch(tx)
	assert.Equal(t, "sig", out.Signature)
	assert.Equal(t, "payer", out.Account)
	require.NotNil(t, out.Timestamp)
	assert.Equal(t, int64(1700000000), *out.Timestamp)
	require.NotNil(t, out.Slot)
	assert.Equal(t, uint64(250), *out.Slot)
	require.NotNil(t, out.Fee)
	assert.Equal(t, uint64(5000), *out.Fee)
	assert.Equal(t, "JUPITER", out.Source)
	assert.Equal(t, "payer did a thing", out.Description)
	require.NotNil(t, out.Err)
	assert.Equal(t, `{"InstructionError":[0,{"Custom":1}]}`, *out.Err)
}

func TestDispatch_NilTransaction(t *testing.T) {
	out := NewDispatcher(nil, nil).Dispatch(nil)
	require.NotNil(t, out)
	assert.Equal(t, KindUnknown, out.Type)
	assert.NotNil(t, out.Actions)
}
