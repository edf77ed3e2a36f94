package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/brojonat/txlens/service/nats"
	"github.com/brojonat/txlens/service/parser"
	"github.com/brojonat/txlens/service/solana"
	"github.com/urfave/cli/v2"
)

var accountFlag = &cli.StringFlag{
	Name:    "account",
	Aliases: []string{"a"},
	Usage:   "Observed account: direct transfers and attach its balance changes",
}

var publishFlag = &cli.BoolFlag{
	Name:  "publish",
	Usage: "Publish classified transactions to NATS (txns.<kind>)",
}

func normalizeCommand() *cli.Command {
	return &cli.Command{
		Name:      "normalize",
		Usage:     "Classify transaction JSON from a file or stdin",
		ArgsUsage: "[FILE]",
		Description: `Reads a single transaction object or an array of them. Each value may be
a raw RPC transaction, an enriched transaction or a signature record. Values
without a recoverable signature are skipped.`,
		Flags: []cli.Flag{accountFlag, publishFlag},
		Action: func(c *cli.Context) error {
			logger, err := newLogger(c)
			if err != nil {
				return err
			}
			assembler, err := newAssembler(c, logger)
			if err != nil {
				return err
			}

			var in io.Reader = c.App.Reader
			if path := c.Args().First(); path != "" && path != "-" {
				f, err := os.Open(path)
				if err != nil {
					return fmt.Errorf("failed to open %s: %w", path, err)
				}
				defer f.Close()
				in = f
			}

			data, err := io.ReadAll(in)
			if err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}
			values, err := parser.SplitValues(data)
			if err != nil {
				return fmt.Errorf("invalid input: %w", err)
			}

			account := c.String("account")
			txs := make([]*parser.Transaction, 0, len(values))
			for _, v := range values {
				if tx, ok := assembler.Normalize(v, account); ok {
					txs = append(txs, tx)
				}
			}
			if skipped := len(values) - len(txs); skipped > 0 {
				logger.Warn("skipped values without a signature", "count", skipped)
			}

			return finish(c, txs, account)
		},
	}
}

func blockCommand() *cli.Command {
	return &cli.Command{
		Name:      "block",
		Usage:     "Fetch and classify every transaction in a block",
		ArgsUsage: "SLOT",
		Flags:     []cli.Flag{publishFlag},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("slot is required")
			}
			slot, err := strconv.ParseUint(c.Args().First(), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid slot %q: %w", c.Args().First(), err)
			}

			logger, err := newLogger(c)
			if err != nil {
				return err
			}
			chain, err := newSolanaClient(c, logger)
			if err != nil {
				return err
			}
			assembler, err := newAssembler(c, logger)
			if err != nil {
				return err
			}
			coordinator, err := newCoordinator(c, assembler, logger)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			raw, err := chain.GetBlock(ctx, slot)
			if err != nil {
				return err
			}
			txs, err := coordinator.ProcessBlock(ctx, raw)
			if err != nil {
				return fmt.Errorf("failed to process block %d: %w", slot, err)
			}
			return finish(c, txs, "")
		},
	}
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "Fetch and classify an account's recent transactions",
		ArgsUsage: "ADDRESS",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"l"},
				Usage:   "Number of signatures to fetch (max 1000)",
				Value:   20,
			},
			&cli.StringFlag{
				Name:  "before",
				Usage: "Start searching backwards from this signature",
			},
			&cli.StringFlag{
				Name:  "until",
				Usage: "Stop at this signature",
			},
			publishFlag,
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("address is required")
			}
			address := c.Args().First()

			logger, err := newLogger(c)
			if err != nil {
				return err
			}
			chain, err := newSolanaClient(c, logger)
			if err != nil {
				return err
			}
			assembler, err := newAssembler(c, logger)
			if err != nil {
				return err
			}
			coordinator, err := newCoordinator(c, assembler, logger)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			sigs, err := chain.GetSignatures(ctx, address, solana.HistoryParams{
				Limit:  c.Int("limit"),
				Before: c.String("before"),
				Until:  c.String("until"),
			})
			if err != nil {
				return err
			}
			txs, err := coordinator.ProcessHistory(ctx, address, sigs)
			if err != nil {
				return fmt.Errorf("failed to process history for %s: %w", address, err)
			}
			return finish(c, txs, address)
		},
	}
}

func healthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Check server health",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Request timeout",
				Value: 5 * time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			serverURL := c.String("server-url")
			if serverURL == "" {
				return fmt.Errorf("server-url is required (set SERVER_URL env var or use --server-url)")
			}
			return checkHealth(c.App.Writer, serverURL, c.Duration("timeout"))
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Action: func(c *cli.Context) error {
			fmt.Fprintf(c.App.Writer, "txlens CLI\n")
			fmt.Fprintf(c.App.Writer, "  Version: %s\n", version)
			fmt.Fprintf(c.App.Writer, "  Commit:  %s\n", commit)
			fmt.Fprintf(c.App.Writer, "  Built:   %s\n", date)
			return nil
		},
	}
}

// finish prints txs and publishes them when --publish is set.
func finish(c *cli.Context, txs []*parser.Transaction, observer string) error {
	if err := writeOutput(c.App.Writer, txs, c.Bool("json"), c.String("jq")); err != nil {
		return err
	}

	logger, err := newLogger(c)
	if err != nil {
		return err
	}
	publisher, err := maybePublish(c, logger)
	if err != nil {
		return err
	}
	if publisher == nil {
		return nil
	}
	defer publisher.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := nats.PublishTransactions(ctx, publisher, txs, observer); err != nil {
		return fmt.Errorf("failed to publish: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Published %d transactions to NATS\n", len(txs))
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
