package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "pool",
		Short:        "Two-asset liquidity pool with bounded-reserve settlement",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	fundCmd := &cobra.Command{
		Use:   "fund",
		Short: "Credit accounts with a token balance outside of any intent",
		RunE:  runFund,
	}
	addPoolFlags(fundCmd)
	fundCmd.Flags().StringSlice("account", nil, "accounts to credit (comma-separated)")
	fundCmd.Flags().String("token", "", "token address")
	fundCmd.Flags().String("amount", "", "amount to credit")
	root.AddCommand(fundCmd)

	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed an empty pool",
		RunE:  runOperation(func(string) string { return "seed" }),
	}
	addPoolFlags(seedCmd)
	addCallerFlags(seedCmd, "base amount", "quote amount")
	root.AddCommand(seedCmd)

	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Add liquidity from one leg; the counter leg is derived from the reserve ratio",
		RunE:  runOperation(func(from string) string { return "add_from_" + from }),
	}
	addPoolFlags(addCmd)
	addCallerFlags(addCmd, "supplied amount", "maximum counter amount")
	addCmd.Flags().String("from", "base", "supplied leg (base, quote)")
	root.AddCommand(addCmd)

	removeCmd := &cobra.Command{
		Use:   "remove",
		Short: "Burn liquidity and withdraw both legs pro rata",
		RunE:  runOperation(func(string) string { return "remove" }),
	}
	addPoolFlags(removeCmd)
	addCallerFlags(removeCmd, "liquidity to burn", "unused")
	root.AddCommand(removeCmd)

	swapCmd := &cobra.Command{
		Use:   "swap",
		Short: "Swap one asset for the other within asserted reserve bounds",
		RunE:  runOperation(func(from string) string { return "swap_" + from + "_in" }),
	}
	addPoolFlags(swapCmd)
	addCallerFlags(swapCmd, "amount in", "minimum amount out")
	addSwapFlags(swapCmd)
	root.AddCommand(swapCmd)

	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Prepare a swap without committing it",
		RunE:  runQuote,
	}
	addPoolFlags(quoteCmd)
	addCallerFlags(quoteCmd, "amount in", "minimum amount out")
	addSwapFlags(quoteCmd)
	quoteCmd.Flags().String("rpc", "", "optional RPC URL to observe reserves from")
	quoteCmd.Flags().String("mirror", "", "on-chain account whose token balances mirror the pool reserves")
	quoteCmd.Flags().Uint64("block", 0, "block to observe at, 0 means latest")
	root.AddCommand(quoteCmd)

	stateCmd := &cobra.Command{
		Use:   "state",
		Short: "Print pool identity, reserves and an optional caller claim",
		RunE:  runState,
	}
	addPoolFlags(stateCmd)
	stateCmd.Flags().String("caller", "", "optional holder whose claim to print")
	root.AddCommand(stateCmd)

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a JSONL file of operations through the pool",
		RunE:  runReplay,
	}
	addPoolFlags(replayCmd)
	replayCmd.Flags().String("in", "", "input operations JSONL")
	replayCmd.Flags().Uint64("from-line", 0, "first line to replay (1-based)")
	replayCmd.Flags().Uint64("to-line", 0, "last line to replay, 0 means end of file")
	replayCmd.Flags().Uint64("batch-size", 500, "lines per checkpoint")
	replayCmd.Flags().String("checkpoint", "./data/replay_checkpoint.json", "checkpoint file path")
	replayCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	replayCmd.Flags().Int("max-retries", 5, "maximum retries of a precondition violation")
	replayCmd.Flags().Duration("retry-backoff", 100*time.Millisecond, "initial retry backoff")
	replayCmd.Flags().Bool("fail-fast", false, "stop at the first refused operation")
	replayCmd.Flags().String("errors", "./data/replay_errors.jsonl", "unparseable lines JSONL")
	replayCmd.Flags().String("metrics-addr", "", "optional address to serve /metrics on")
	root.AddCommand(replayCmd)

	aggregateCmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Aggregate journaled transitions into window metrics",
		RunE:  runAggregate,
	}
	addPoolFlags(aggregateCmd)
	aggregateCmd.Flags().String("in", "", "input journal JSONL, defaults to --journal")
	aggregateCmd.Flags().String("window", "5m", "aggregation window (e.g. 1m, 5m, 1h)")
	aggregateCmd.Flags().Int("batch-size", 1000, "batch size for DB writes")
	aggregateCmd.Flags().String("state-file", "", "optional local state file for progress tracking")
	aggregateCmd.Flags().String("state-name", "aggregate", "progress key in the replay_state table")
	aggregateCmd.Flags().String("recompute-from", "", "recompute from timestamp (unix seconds or RFC3339)")
	root.AddCommand(aggregateCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addPoolFlags(cmd *cobra.Command) {
	cmd.Flags().String("base-token", "", "base token address")
	cmd.Flags().String("quote-token", "", "quote token address")
	cmd.Flags().Uint64("min-locked", 1000, "liquidity locked forever at seeding")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN; replaces the file ledger")
	cmd.Flags().String("ledger-file", "", "file-backed ledger path (default ./data/ledger.json without pg-dsn)")
	cmd.Flags().String("journal", "./data/journal.jsonl", "transition journal JSONL")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func addCallerFlags(cmd *cobra.Command, amount, limit string) {
	cmd.Flags().String("caller", "", "caller account")
	cmd.Flags().String("amount", "", amount)
	cmd.Flags().String("limit", "", limit)
}

func addSwapFlags(cmd *cobra.Command) {
	cmd.Flags().String("from", "base", "input asset (base, quote)")
	cmd.Flags().Uint64("slack-bps", 50, "bound width around the observed reserves when no explicit bound is given")
	cmd.Flags().String("in-min", "", "explicit input reserve lower bound")
	cmd.Flags().String("in-max", "", "explicit input reserve upper bound")
	cmd.Flags().String("out-min", "", "explicit output reserve lower bound")
	cmd.Flags().String("out-max", "", "explicit output reserve upper bound")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
