package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"poolscope/internal/apy"
	"poolscope/internal/chain"
	"poolscope/internal/config"
	"poolscope/internal/registry"
	"poolscope/internal/storage"
	"poolscope/internal/storage/postgres"
)

func runRates(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	chainCfg, err := config.ChainFor(cfg.Chain)
	if err != nil {
		return err
	}
	kind, err := registry.ParseKind(cfg.RegistryKind)
	if err != nil {
		return err
	}

	rpcURL := cfg.RPCURL
	if rpcURL == "" {
		rpcURL = chainCfg.RPCURL
	}
	if rpcURL == "" {
		return fmt.Errorf("rpc url is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := chain.NewClient(ctx, rpcURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer client.Close()

	assembler, err := buildAssembler(client, cfg, chainCfg, kind, logger)
	if err != nil {
		return err
	}

	logger.Info("rate estimation start",
		zap.String("chain", cfg.Chain),
		zap.String("registry_kind", cfg.RegistryKind),
		zap.Uint64("block", cfg.Block),
		zap.String("out", cfg.Out),
	)

	aggregated, err := assembler.Aggregate(ctx)
	if err != nil {
		return err
	}

	dayBlocks := cfg.DayBlocks
	if dayBlocks == 0 {
		dayBlocks = chainCfg.DayBlocks
	}
	estimator := apy.NewEstimator(client, kind, dayBlocks, chainCfg.ZeroVolumePools, logger)

	result, err := estimator.Estimate(ctx, aggregated.PoolData, cfg.Block)
	if err != nil {
		return err
	}

	var sink storage.RateSink = storage.NewJsonlStorage(cfg.Out)
	if err := sink.PutRateBatch(result.PoolDetails); err != nil {
		return err
	}

	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.UpsertPoolRates(ctx, cfg.Chain, result.PoolDetails); err != nil {
			return fmt.Errorf("upsert pool rates: %w", err)
		}
	}

	logger.Info("rate estimation complete",
		zap.Int("pools", len(result.PoolDetails)),
		zap.Float64("total_volume", result.TotalVolume),
	)
	return nil
}
