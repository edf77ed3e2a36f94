package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/brojonat/txlens/service/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const enrichedFixture = `[
	{"signature": "5j7s6NiJS3JAkvgkoc18WVAsiSaci2pxB2A6ueCJP4tprA2TFg9wSyTLeYouxPBJEMzJinENTkpA52YStRW5Dia7",
	 "timestamp": 1700000000, "feePayer": "A", "type": "TRANSFER", "source": "SYSTEM_PROGRAM",
	 "nativeTransfers": [{"fromUserAccount": "A", "toUserAccount": "B", "amount": 1500000000}],
	 "tokenTransfers": [], "events": {}},
	{"signature": "sig-2", "slot": 9, "err": null, "memo": "gm"},
	{"no": "signature"}
]`

// runApp runs the CLI with args and returns what it wrote to stdout.
func runApp(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	for _, key := range []string{"SOLANA_RPC_URL", "ENRICHMENT_API_URL", "LABELS_FILE", "NATS_URL", "SERVER_URL", "LOG_LEVEL"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.Reader = strings.NewReader(stdin)
	err := app.Run(append([]string{"txlens", "--env-file", filepath.Join(t.TempDir(), "none.env")}, args...))
	return out.String(), err
}

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "txs.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNormalize_JSON(t *testing.T) {
	path := writeFixture(t, enrichedFixture)

	out, err := runApp(t, "", "--json", "normalize", "--account", "B", path)
	require.NoError(t, err)

	var txs []*parser.Transaction
	require.NoError(t, json.Unmarshal([]byte(out), &txs))
	require.Len(t, txs, 2)

	assert.Equal(t, parser.KindTransfer, txs[0].Type)
	require.Len(t, txs[0].Actions, 1)
	assert.Equal(t, parser.ActionReceived, txs[0].Actions[0].ActionType)
	assert.Equal(t, "1.5", txs[0].Actions[0].Amount.String())
	require.Len(t, txs[0].BalanceChanges, 1)
	assert.Equal(t, "1.5", txs[0].BalanceChanges[0].Change.String())

	assert.Equal(t, "sig-2", txs[1].Signature)
	assert.Equal(t, parser.KindUnknown, txs[1].Type)
	assert.Equal(t, "gm", txs[1].Description)
}

func TestNormalize_Stdin(t *testing.T) {
	out, err := runApp(t, `{"signature": "only-sig"}`, "--json", "normalize")
	require.NoError(t, err)

	var txs []*parser.Transaction
	require.NoError(t, json.Unmarshal([]byte(out), &txs))
	require.Len(t, txs, 1)
	assert.Equal(t, "only-sig", txs[0].Signature)
}

func TestNormalize_JQ(t *testing.T) {
	path := writeFixture(t, enrichedFixture)

	out, err := runApp(t, "", "--jq", `{type, n: (.actions | length)}`, "normalize", path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.JSONEq(t, `{"type": "TRANSFER", "n": 1}`, lines[0])
	assert.JSONEq(t, `{"type": "UNKNOWN", "n": 0}`, lines[1])

	_, err = runApp(t, "", "--jq", `.type |`, "normalize", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse jq filter")
}

func TestNormalize_Table(t *testing.T) {
	path := writeFixture(t, enrichedFixture)

	out, err := runApp(t, "", "normalize", path)
	require.NoError(t, err)
	assert.Contains(t, out, "SIGNATURE")
	assert.Contains(t, out, "5j7s..Dia7")
	assert.Contains(t, out, "2023-11-14T22:13:20Z")
	assert.Contains(t, out, "TRANSFER 1.5 SOL")
	assert.Contains(t, out, "UNKNOWN")
}

func TestNormalize_InvalidInput(t *testing.T) {
	_, err := runApp(t, `"just a string"`, "normalize")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid input")

	_, err = runApp(t, "", "normalize", filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open")
}

func TestBlockAndHistory_RequireArguments(t *testing.T) {
	_, err := runApp(t, "", "block")
	assert.EqualError(t, err, "slot is required")

	_, err = runApp(t, "", "block", "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid slot")

	_, err = runApp(t, "", "block", "100")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rpc-url is required")

	_, err = runApp(t, "", "history")
	assert.EqualError(t, err, "address is required")

	_, err = runApp(t, "", "--batch-size", "0", "--rpc-url", "http://127.0.0.1:0", "history", "B")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch-size must be between")
}

func TestHealthCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}))
	defer server.Close()

	out, err := runApp(t, "", "--server-url", server.URL, "health")
	require.NoError(t, err)
	assert.Contains(t, out, "Server is healthy")

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()

	_, err = runApp(t, "", "--server-url", failing.URL, "health")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unhealthy status: 500")
}

func TestVersionCommand(t *testing.T) {
	out, err := runApp(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "txlens CLI")
	assert.Contains(t, out, "Version: dev")
}
