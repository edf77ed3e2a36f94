package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/brojonat/txlens/service/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnrich_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/v0/transactions", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("api-key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string][]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []string{"sig-a", "sig-b"}, body["transactions"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"signature": "sig-b", "timestamp": 1700000000, "type": "TRANSFER", "feePayer": "A",
			 "nativeTransfers": [{"fromUserAccount": "A", "toUserAccount": "B", "amount": 1000000000}],
			 "tokenTransfers": null, "events": {}},
			{"signature": 42},
			{"signature": "sig-a", "timestamp": 1700000001, "type": "UNKNOWN", "feePayer": "A", "events": {}}
		]`))
	}))
	defer server.Close()

	client := NewEnrichmentClient(server.URL+"/", "secret", nil, nil, nil)
	txs, err := client.Enrich(context.Background(), []string{"sig-a", "sig-b"})
	require.NoError(t, err)

	// The malformed element is dropped; order is the server's.
	require.Len(t, txs, 2)
	assert.Equal(t, "sig-b", txs[0].Signature)
	assert.Equal(t, string(parser.KindTransfer), txs[0].Type)
	assert.True(t, txs[0].TokenTransfers.Null)
	require.Len(t, txs[0].NativeTransfers.Items, 1)
	assert.Equal(t, "1000000000", txs[0].NativeTransfers.Items[0].Amount.String())
	assert.Equal(t, "sig-a", txs[1].Signature)
}

func TestEnrich_NoSignatures(t *testing.T) {
	client := NewEnrichmentClient("http://127.0.0.1:0", "", nil, nil, nil)
	txs, err := client.Enrich(context.Background(), nil)
	assert.NoError(t, err)
	assert.Nil(t, txs)
}

func TestEnrich_NoAPIKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.RawQuery)
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := NewEnrichmentClient(server.URL, "", nil, nil, nil)
	txs, err := client.Enrich(context.Background(), []string{"sig"})
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestEnrich_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"error": "overloaded"})
	}))
	defer server.Close()

	client := NewEnrichmentClient(server.URL, "", nil, nil, nil)
	_, err := client.Enrich(context.Background(), []string{"sig"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEnrichmentUnavailable)
	assert.Contains(t, err.Error(), "overloaded")
}

func TestEnrich_ClientError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("invalid api key"))
	}))
	defer server.Close()

	client := NewEnrichmentClient(server.URL, "bad", nil, nil, nil)
	_, err := client.Enrich(context.Background(), []string{"sig"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrEnrichmentUnavailable)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestEnrich_Cancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewEnrichmentClient(server.URL, "", nil, nil, nil)
	_, err := client.Enrich(ctx, []string{"sig"})
	assert.ErrorIs(t, err, context.Canceled)
}
