package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "poolscope",
		Short:        "DEX pool state aggregation and price derivation",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	poolsCmd := &cobra.Command{
		Use:   "pools",
		Short: "Aggregate pool records for one registry",
		RunE:  runPools,
	}

	poolsCmd.Flags().String("rpc", "", "chain RPC URL")
	poolsCmd.Flags().String("chain", "ethereum", "chain name")
	poolsCmd.Flags().String("registry-kind", "main", "registry kind (main, factory, crypto, factory-crypto)")
	poolsCmd.Flags().String("out", "./data/pools.jsonl", "output JSONL path")
	poolsCmd.Flags().String("pg-dsn", "", "optional Postgres DSN")
	poolsCmd.Flags().Int("chunk-size", 200, "calls per batch round-trip")
	poolsCmd.Flags().String("feed-base-url", "", "price feed base URL override")
	poolsCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(poolsCmd)

	ratesCmd := &cobra.Command{
		Use:   "rates",
		Short: "Estimate pool APY and trade volume",
		RunE:  runRates,
	}

	ratesCmd.Flags().String("rpc", "", "chain RPC URL")
	ratesCmd.Flags().String("chain", "ethereum", "chain name")
	ratesCmd.Flags().String("registry-kind", "factory", "registry kind (main, factory, crypto, factory-crypto)")
	ratesCmd.Flags().Uint64("block", 0, "historical block override, 0 means latest")
	ratesCmd.Flags().Uint64("day-blocks", 0, "blocks per day override, 0 uses the chain default")
	ratesCmd.Flags().String("out", "./data/rates.jsonl", "output JSONL path")
	ratesCmd.Flags().String("pg-dsn", "", "optional Postgres DSN")
	ratesCmd.Flags().Int("chunk-size", 200, "calls per batch round-trip")
	ratesCmd.Flags().String("feed-base-url", "", "price feed base URL override")
	ratesCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(ratesCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
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
