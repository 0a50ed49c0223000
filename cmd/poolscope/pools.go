package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"poolscope/internal/chain"
	"poolscope/internal/config"
	"poolscope/internal/gauge"
	"poolscope/internal/multicall"
	"poolscope/internal/pools"
	"poolscope/internal/pricing"
	"poolscope/internal/registry"
	"poolscope/internal/storage"
	"poolscope/internal/storage/postgres"
)

func runPools(cmd *cobra.Command, _ []string) error {
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

	chainID, err := client.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("chain id: %w", err)
	}

	assembler, err := buildAssembler(client, cfg, chainCfg, kind, logger)
	if err != nil {
		return err
	}

	logger.Info("aggregation start",
		zap.String("chain_id", chainID.String()),
		zap.String("chain", cfg.Chain),
		zap.String("registry_kind", cfg.RegistryKind),
		zap.Int("chunk_size", cfg.ChunkSize),
		zap.String("out", cfg.Out),
	)

	result, err := assembler.Aggregate(ctx)
	if err != nil {
		return err
	}

	var sink storage.PoolSink = storage.NewJsonlStorage(cfg.Out)
	if err := sink.PutPoolBatch(result.PoolData); err != nil {
		return err
	}

	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.UpsertPoolSnapshots(ctx, cfg.Chain, result.PoolData); err != nil {
			return fmt.Errorf("upsert pool snapshots: %w", err)
		}
	}

	fields := []zap.Field{
		zap.Int("pools", len(result.PoolData)),
		zap.Float64("tvl_all", result.TVLAll),
	}
	if result.TVL != nil {
		fields = append(fields, zap.Float64("tvl", *result.TVL))
	}
	logger.Info("aggregation complete", fields...)
	return nil
}

func buildAssembler(client *chain.Client, cfg config.Config, chainCfg config.ChainConfig, kind registry.Kind, logger *zap.Logger) (*pools.Assembler, error) {
	registryAddr, err := chainCfg.RegistryAddress(kind.String())
	if err != nil {
		return nil, err
	}

	aggregator := multicall.NewAggregator(client, cfg.ChunkSize, logger)
	feed := pricing.NewHTTPFeed(pricing.HTTPFeedConfig{BaseURL: cfg.FeedBaseURL}, logger)

	wrappedAddrs := make([]common.Address, 0, len(chainCfg.WrappedTokens))
	for _, address := range chainCfg.WrappedTokens {
		wrappedAddrs = append(wrappedAddrs, common.HexToAddress(address))
	}
	wrapped := pricing.NewWrappedTokens(aggregator, feed, chainCfg.Platform, wrappedAddrs, 0, logger)
	resolver := pricing.NewResolver(feed, chainCfg.FallbackAssetIDs, wrapped, logger)
	rewards := gauge.NewFetcher(aggregator, feed, chainCfg.Platform, chainCfg.RewardTokenReplace, logger)

	assemblerCfg := pools.Config{
		Kind:                kind,
		RegistryAddress:     common.HexToAddress(registryAddr),
		NativeSymbol:        chainCfg.NativeSymbol,
		Platform:            chainCfg.Platform,
		ImplementationMap:   chainCfg.ImplementationMap,
		BasePoolLPToGaugeLP: chainCfg.BasePoolLPToGaugeLP,
		Bytes32SymbolTokens: chainCfg.Bytes32SymbolTokens,
		DisabledPools:       chainCfg.DisabledPools,
		FactoryGauges:       chainCfg.FactoryGauges,
		PoolAssetIDs:        chainCfg.FactoryPoolAssetIDs,
		MetaUSDReference:    chainCfg.MetaUSDReference,
		MetaBTCReference:    chainCfg.MetaBTCReference,
	}
	if kind != registry.KindMain {
		if mainAddr, err := chainCfg.RegistryAddress(registry.KindMain.String()); err == nil {
			assemblerCfg.MainRegistryAddress = common.HexToAddress(mainAddr)
		}
	}

	return pools.NewAssembler(aggregator, resolver, rewards, assemblerCfg, logger), nil
}
