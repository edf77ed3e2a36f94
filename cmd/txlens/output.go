package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/brojonat/txlens/service/parser"
	"github.com/itchyny/gojq"
)

// writeOutput prints txs as a jq projection, as JSON, or as a table.
func writeOutput(w io.Writer, txs []*parser.Transaction, jsonOutput bool, jqFilter string) error {
	if jqFilter != "" {
		return writeJQ(w, txs, jqFilter)
	}
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(txs)
	}
	printTransactions(w, txs)
	return nil
}

// writeJQ runs filter over each transaction and prints every result on its
// own line.
func writeJQ(w io.Writer, txs []*parser.Transaction, filter string) error {
	query, err := gojq.Parse(filter)
	if err != nil {
		return fmt.Errorf("failed to parse jq filter %q: %w", filter, err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
	}

	enc := json.NewEncoder(w)
	for _, tx := range txs {
		// gojq works on plain maps and slices, not structs.
		var input interface{}
		data, err := json.Marshal(tx)
		if err != nil {
			return fmt.Errorf("failed to marshal transaction: %w", err)
		}
		if err := json.Unmarshal(data, &input); err != nil {
			return fmt.Errorf("failed to unmarshal transaction: %w", err)
		}

		iter := code.Run(input)
		for {
			v, ok := iter.Next()
			if !ok {
				break
			}
			if err, isErr := v.(error); isErr {
				return fmt.Errorf("jq filter failed on %s: %w", tx.Signature, err)
			}
			if err := enc.Encode(v); err != nil {
				return err
			}
		}
	}
	return nil
}

func printTransactions(w io.Writer, txs []*parser.Transaction) {
	if len(txs) == 0 {
		fmt.Fprintln(w, "No transactions.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SIGNATURE\tTIME\tTYPE\tSOURCE\tACTIONS")
	for _, tx := range txs {
		when := "-"
		if tx.Timestamp != nil {
			when = time.Unix(*tx.Timestamp, 0).UTC().Format(time.RFC3339)
		}
		source := tx.Source
		if source == "" {
			source = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", shorten(tx.Signature), when, tx.Type, source, describeActions(tx.Actions))
	}
	tw.Flush()
}

func describeActions(actions []parser.Action) string {
	if len(actions) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(actions))
	for _, a := range actions {
		asset := shorten(a.Mint)
		if a.Mint == parser.NativeMint {
			asset = "SOL"
		}
		parts = append(parts, fmt.Sprintf("%s %s %s", a.ActionType, a.Amount.String(), asset))
	}
	return strings.Join(parts, "; ")
}

// shorten abbreviates long base58 strings for table output.
func shorten(s string) string {
	if len(s) <= 12 {
		return s
	}
	return s[:4] + ".." + s[len(s)-4:]
}

func checkHealth(w io.Writer, serverURL string, timeout time.Duration) error {
	client := &http.Client{Timeout: timeout}

	resp, err := client.Get(strings.TrimRight(serverURL, "/") + "/health")
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		fmt.Fprintf(w, "✓ Server is healthy (status: %d)\n", resp.StatusCode)
		fmt.Fprintf(w, "  URL: %s\n", serverURL)
		return nil
	}
	return fmt.Errorf("server returned unhealthy status: %d", resp.StatusCode)
}
