package nats

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/brojonat/txlens/service/parser"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionEvent_Subject(t *testing.T) {
	tests := []struct {
		kind parser.Kind
		want string
	}{
		{parser.KindTransfer, "txns.transfer"},
		{parser.KindCompressedNFTMint, "txns.compressed_nft_mint"},
		{parser.KindVote, "txns.vote"},
		{"", "txns.unknown"},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			event := FromTransaction(&parser.Transaction{Signature: "sig", Type: tt.kind}, "")
			assert.Equal(t, tt.want, event.Subject())
		})
	}
}

func TestTransactionEvent_JSON(t *testing.T) {
	ts := int64(1700000000)
	tx := &parser.Transaction{
		Signature: "sig",
		Account:   "payer",
		Timestamp: &ts,
		Type:      parser.KindTransfer,
		Actions: []parser.Action{{
			ActionType: parser.ActionSent,
			From:       "payer",
			To:         "other",
			Mint:       parser.NativeMint,
			Amount:     decimal.RequireFromString("1.5"),
			Normalized: true,
		}},
	}

	data, err := json.Marshal(FromTransaction(tx, "payer"))
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "sig", decoded["signature"])
	assert.Equal(t, "TRANSFER", decoded["type"])
	assert.Equal(t, "payer", decoded["observer"])
	assert.Contains(t, decoded, "published_at")
	require.Len(t, decoded["actions"], 1)
	assert.Equal(t, "1.5", decoded["actions"].([]interface{})[0].(map[string]interface{})["amount"])
}

func TestPublishTransactions(t *testing.T) {
	ctx := context.Background()
	mock := NewMockPublisher()
	txs := []*parser.Transaction{
		{Signature: "a", Type: parser.KindSwap},
		nil,
		{Signature: "b", Type: parser.KindVote},
		{Signature: "c", Type: parser.KindSwap},
	}

	require.NoError(t, PublishTransactions(ctx, mock, txs, "observer"))
	assert.Len(t, mock.Events(), 3)

	swaps := mock.EventsOn("txns.swap")
	require.Len(t, swaps, 2)
	assert.Equal(t, "a", swaps[0].Signature)
	assert.Equal(t, "observer", swaps[0].Observer)
	assert.Len(t, mock.EventsOn("txns.vote"), 1)

	mock.Reset()
	require.NoError(t, PublishTransactions(ctx, mock, []*parser.Transaction{nil}, ""))
	assert.Empty(t, mock.Events())

	mock.Fail(errors.New("nats down"))
	err := PublishTransactions(ctx, mock, txs, "")
	assert.EqualError(t, err, "nats down")
	assert.Empty(t, mock.Events())
}

func TestMockPublisher_ClosedAndCancelled(t *testing.T) {
	mock := NewMockPublisher()
	event := FromTransaction(&parser.Transaction{Signature: "a", Type: parser.KindTransfer}, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, mock.PublishTransaction(ctx, event), context.Canceled)

	require.NoError(t, mock.Close())
	assert.Error(t, mock.PublishTransaction(context.Background(), event))
	assert.Empty(t, mock.Events())

	mock.Reset()
	require.NoError(t, mock.PublishTransaction(context.Background(), event))
	assert.Len(t, mock.EventsOn("txns.transfer"), 1)
}
