package pools

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"poolscope/internal/gauge"
	"poolscope/internal/model"
	"poolscope/internal/multicall"
	"poolscope/internal/pricing"
	"poolscope/internal/registry"
)

// NativeCoinAddress is the sentinel registries use for the chain's native
// coin. It has no contract behind it: decimals are fixed at 18 and the
// balance is read off the pool itself.
const NativeCoinAddress = "0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee"

// Config carries the per-chain, per-registry wiring for one aggregation.
type Config struct {
	Kind                registry.Kind
	RegistryAddress     common.Address
	MainRegistryAddress common.Address
	NativeSymbol        string
	Platform            string
	ImplementationMap   map[string]string
	BasePoolLPToGaugeLP map[string]string
	Bytes32SymbolTokens []string
	DisabledPools       []string
	FactoryGauges       map[string]string
	PoolAssetIDs        map[string]string
	MetaUSDReference    string
	MetaBTCReference    string
}

// Assembler runs the staged aggregation pipeline for one registry kind:
// enumerate, shape, coins, prices, derivation, rewards, totals. Stages are
// strictly ordered; each one consumes the fully merged output of the last.
type Assembler struct {
	caller   registry.Caller
	resolver *pricing.Resolver
	rewards  *gauge.Fetcher
	cfg      Config
	logger   *zap.Logger

	bytes32Symbols map[string]struct{}
}

func NewAssembler(caller registry.Caller, resolver *pricing.Resolver, rewards *gauge.Fetcher, cfg Config, logger *zap.Logger) *Assembler {
	if logger == nil {
		logger = zap.NewNop()
	}
	bytes32 := make(map[string]struct{}, len(cfg.Bytes32SymbolTokens))
	for _, address := range cfg.Bytes32SymbolTokens {
		bytes32[strings.ToLower(address)] = struct{}{}
	}
	return &Assembler{
		caller:         caller,
		resolver:       resolver,
		rewards:        rewards,
		cfg:            cfg,
		logger:         logger,
		bytes32Symbols: bytes32,
	}
}

// Aggregate assembles one record per pool of the configured registry.
func (a *Assembler) Aggregate(ctx context.Context) (*model.AggregateResult, error) {
	refs, err := registry.ListPools(ctx, a.caller, a.cfg.RegistryAddress, a.cfg.Kind, a.cfg.DisabledPools)
	if err != nil {
		return nil, fmt.Errorf("enumerate pools: %w", err)
	}
	if len(refs) == 0 {
		return &model.AggregateResult{PoolData: []model.PoolRecord{}}, nil
	}

	records := make([]model.PoolRecord, len(refs))
	byID := make(map[string]*model.PoolRecord, len(refs))
	for i, ref := range refs {
		records[i] = model.PoolRecord{
			ID:      ref.ID(a.cfg.Kind),
			Index:   ref.Index,
			Address: strings.ToLower(ref.Address.Hex()),
		}
		byID[records[i].ID] = &records[i]
	}

	if err := a.fetchShapes(ctx, refs, byID); err != nil {
		return nil, err
	}
	a.applyImplementations(records)
	if err := a.fetchLPTokens(ctx, refs, byID); err != nil {
		return nil, err
	}
	if err := a.fetchCoins(ctx, byID, records); err != nil {
		return nil, err
	}

	layered, err := a.resolver.CoinPrices(ctx, a.cfg.Platform, collectCoinAddresses(records))
	if err != nil {
		return nil, fmt.Errorf("resolve coin prices: %w", err)
	}
	if err := a.applyPoolReferencePrices(ctx, records, layered); err != nil {
		return nil, fmt.Errorf("pool reference prices: %w", err)
	}

	rates := a.probeRates(ctx, records, layered)
	pricing.DerivePrices(records, rates, layered)

	if err := a.mergeGaugeRewards(ctx, records); err != nil {
		return nil, err
	}

	result := &model.AggregateResult{PoolData: records}
	for _, record := range records {
		result.TVLAll += record.USDTotal
	}
	if tvl, ok, err := a.dedupedTVL(ctx, records); err != nil {
		return nil, err
	} else if ok {
		result.TVL = &tvl
	}
	return result, nil
}

// fetchShapes runs the kind-branched metadata batch and merges field results.
func (a *Assembler) fetchShapes(ctx context.Context, refs []registry.PoolRef, byID map[string]*model.PoolRecord) error {
	var calls []multicall.Call
	for _, ref := range refs {
		shapeCalls, err := registry.ShapeCalls(a.cfg.Kind, a.cfg.RegistryAddress, ref)
		if err != nil {
			return fmt.Errorf("shape calls for %s: %w", ref.ID(a.cfg.Kind), err)
		}
		calls = append(calls, shapeCalls...)
	}

	results, err := a.executeIsolated(ctx, calls, "shape")
	if err != nil {
		return err
	}
	for _, result := range results {
		meta := result.Meta.(registry.FieldMeta)
		record := byID[meta.PoolID]
		if record == nil {
			continue
		}
		if err := mergeShapeField(record, meta.Field, result.First()); err != nil {
			return fmt.Errorf("merge %s.%s: %w", meta.PoolID, meta.Field, err)
		}
	}
	return nil
}

// applyImplementations resolves implementation names, overrides asset type
// names the implementation makes unambiguous, and swaps the reference base
// liquidity token into the second slot of meta pools.
func (a *Assembler) applyImplementations(records []model.PoolRecord) {
	for i := range records {
		record := &records[i]
		if record.ImplementationAddress != "" {
			record.Implementation = a.cfg.ImplementationMap[record.ImplementationAddress]
		}
		impl := record.Implementation
		switch {
		case strings.HasPrefix(impl, "metausd"):
			record.AssetTypeName = "usd"
			a.swapMetaReference(record, a.cfg.MetaUSDReference)
		case strings.HasPrefix(impl, "metabtc"):
			record.AssetTypeName = "btc"
			a.swapMetaReference(record, a.cfg.MetaBTCReference)
		case strings.Contains(impl, "eth"):
			record.AssetTypeName = "native"
		}
	}
}

// swapMetaReference replaces the second coin slot of a meta pool with the
// base pool's liquidity token, which is what the pool actually holds.
func (a *Assembler) swapMetaReference(record *model.PoolRecord, reference string) {
	if reference == "" || len(record.CoinsAddresses) < 2 || len(record.Decimals) < 2 {
		return
	}
	record.CoinsAddresses[1] = strings.ToLower(reference)
	record.Decimals[1] = 18
}

// fetchLPTokens reads liquidity token metadata for pools whose token is a
// separate contract. Crypto pools additionally expose a reference price
// oracle probed here.
func (a *Assembler) fetchLPTokens(ctx context.Context, refs []registry.PoolRef, byID map[string]*model.PoolRecord) error {
	erc20, err := registry.ERC20ABI()
	if err != nil {
		return err
	}

	var calls []multicall.Call
	for _, ref := range refs {
		record := byID[ref.ID(a.cfg.Kind)]
		if record == nil || !model.IsDefinedCoin(record.LPTokenAddress) {
			continue
		}
		lpToken := common.HexToAddress(record.LPTokenAddress)
		if a.cfg.Kind.IsCrypto() {
			lpCalls, err := registry.LPTokenCalls(a.cfg.Kind, ref, lpToken, len(record.DefinedCoins()))
			if err != nil {
				return fmt.Errorf("lp token calls for %s: %w", record.ID, err)
			}
			calls = append(calls, lpCalls...)
			continue
		}
		for _, method := range []string{"name", "symbol", "totalSupply"} {
			calls = append(calls, multicall.Call{
				Target: lpToken,
				ABI:    erc20,
				Method: method,
				Meta:   registry.FieldMeta{PoolID: record.ID, Field: method},
			})
		}
	}
	if len(calls) == 0 {
		return nil
	}

	results, err := a.executeIsolated(ctx, calls, "lp token")
	if err != nil {
		return err
	}
	for _, result := range results {
		meta := result.Meta.(registry.FieldMeta)
		record := byID[meta.PoolID]
		if record == nil {
			continue
		}
		if err := mergeShapeField(record, meta.Field, result.First()); err != nil {
			return fmt.Errorf("merge %s.%s: %w", meta.PoolID, meta.Field, err)
		}
	}
	return nil
}

// fetchCoins reads per-coin symbol and balances. The native sentinel coin has
// no contract: its balance comes off the pool's slot accessor and its
// metadata is fixed.
func (a *Assembler) fetchCoins(ctx context.Context, byID map[string]*model.PoolRecord, records []model.PoolRecord) error {
	erc20, err := registry.ERC20ABI()
	if err != nil {
		return err
	}
	erc20Bytes32, err := registry.ERC20Bytes32ABI()
	if err != nil {
		return err
	}
	poolABI, err := a.cfg.Kind.PoolABI()
	if err != nil {
		return err
	}

	lowerGaugeLP := make(map[string]string, len(a.cfg.BasePoolLPToGaugeLP))
	for from, to := range a.cfg.BasePoolLPToGaugeLP {
		lowerGaugeLP[strings.ToLower(from)] = strings.ToLower(to)
	}

	var calls []multicall.Call
	for i := range records {
		record := &records[i]
		poolAddr := common.HexToAddress(record.Address)
		for slot, coinAddr := range record.CoinsAddresses {
			if !model.IsDefinedCoin(coinAddr) {
				continue
			}
			coin := ensureCoin(record, coinAddr)
			if slot < len(record.Decimals) {
				coin.Decimals = record.Decimals[slot]
			}

			if coinAddr == NativeCoinAddress {
				coin.Decimals = 18
				coin.Symbol = a.cfg.NativeSymbol
				calls = append(calls, multicall.Call{
					Target: poolAddr,
					ABI:    poolABI,
					Method: "balances",
					Params: []any{big.NewInt(int64(slot))},
					Meta:   coinMeta{PoolID: record.ID, CoinAddr: coinAddr, Field: "balance"},
				})
				continue
			}

			symbolABI := erc20
			if _, ok := a.bytes32Symbols[coinAddr]; ok {
				symbolABI = erc20Bytes32
			}
			calls = append(calls, multicall.Call{
				Target: common.HexToAddress(coinAddr),
				ABI:    symbolABI,
				Method: "symbol",
				Meta:   coinMeta{PoolID: record.ID, CoinAddr: coinAddr, Field: "symbol"},
			}, multicall.Call{
				Target: common.HexToAddress(coinAddr),
				ABI:    erc20,
				Method: "balanceOf",
				Params: []any{poolAddr},
				Meta:   coinMeta{PoolID: record.ID, CoinAddr: coinAddr, Field: "balance"},
			})

			// Part of a base pool share can sit staked in a gauge wrapper;
			// that balance belongs to the same coin.
			if gaugeLP, ok := lowerGaugeLP[coinAddr]; ok {
				calls = append(calls, multicall.Call{
					Target: common.HexToAddress(gaugeLP),
					ABI:    erc20,
					Method: "balanceOf",
					Params: []any{poolAddr},
					Meta:   coinMeta{PoolID: record.ID, CoinAddr: coinAddr, Field: "stakedBalance"},
				})
			}
		}
	}

	results, err := a.executeIsolated(ctx, calls, "coin")
	if err != nil {
		return err
	}
	for _, result := range results {
		meta := result.Meta.(coinMeta)
		record := byID[meta.PoolID]
		if record == nil {
			continue
		}
		if err := mergeCoinField(record, meta.CoinAddr, meta.Field, result.First()); err != nil {
			return fmt.Errorf("merge coin %s/%s.%s: %w", meta.PoolID, meta.CoinAddr, meta.Field, err)
		}
	}
	return nil
}

// applyPoolReferencePrices backstops factory pools that track a single
// reference asset: coins the address-keyed sources missed take the pool's
// reference asset price before derivation runs.
func (a *Assembler) applyPoolReferencePrices(ctx context.Context, records []model.PoolRecord, layered *pricing.Layered) error {
	if a.cfg.Kind != registry.KindFactory || len(a.cfg.PoolAssetIDs) == 0 {
		return nil
	}
	poolRefs, err := a.resolver.PoolReferencePrices(ctx, a.cfg.PoolAssetIDs)
	if err != nil {
		return err
	}

	for i := range records {
		record := &records[i]
		ref, ok := poolRefs[record.Address]
		if !ok || ref <= 0 {
			continue
		}
		for ci := range record.Coins {
			coin := &record.Coins[ci]
			if coin.USDPrice != nil {
				continue
			}
			if _, priced := layered.Price(coin.Address); priced {
				continue
			}
			price := ref
			coin.USDPrice = &price
		}
	}
	return nil
}

// probeRates samples internal exchange rates, but only for pools that still
// have an unpriced coin. Probe failures degrade to no derivation for the
// affected pool instead of failing the request.
func (a *Assembler) probeRates(ctx context.Context, records []model.PoolRecord, layered *pricing.Layered) []model.InternalRate {
	var candidates []model.PoolRecord
	for _, record := range records {
		for _, coin := range record.Coins {
			if coin.USDPrice != nil {
				continue
			}
			if _, ok := layered.Price(coin.Address); !ok {
				candidates = append(candidates, record)
				break
			}
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	calls, err := pricing.RateCalls(a.cfg.Kind, candidates)
	if err != nil {
		a.logger.Warn("rate probe setup failed", zap.Error(err))
		return nil
	}
	results, err := a.executeIsolated(ctx, calls, "rate probe")
	if err != nil {
		a.logger.Warn("rate probes failed", zap.Error(err))
		return nil
	}
	rates, err := pricing.RatesFromResults(results)
	if err != nil {
		a.logger.Warn("rate decode failed", zap.Error(err))
		return nil
	}
	return rates
}

// mergeGaugeRewards attaches reward schedules and their APY for pools with a
// configured gauge. The APY needs the pool's derived liquidity token price,
// so this stage runs after derivation.
func (a *Assembler) mergeGaugeRewards(ctx context.Context, records []model.PoolRecord) error {
	if a.rewards == nil || len(a.cfg.FactoryGauges) == 0 {
		return nil
	}

	gaugeByPool := make(map[string]string, len(a.cfg.FactoryGauges))
	var gauges []common.Address
	for poolAddr, gaugeAddr := range a.cfg.FactoryGauges {
		gaugeByPool[strings.ToLower(poolAddr)] = strings.ToLower(gaugeAddr)
	}
	for i := range records {
		if gaugeAddr, ok := gaugeByPool[records[i].Address]; ok {
			gauges = append(gauges, common.HexToAddress(gaugeAddr))
		}
	}
	if len(gauges) == 0 {
		return nil
	}

	rewards, err := a.rewards.FetchRewards(ctx, gauges)
	if err != nil {
		return fmt.Errorf("gauge rewards: %w", err)
	}

	for i := range records {
		record := &records[i]
		gaugeAddr, ok := gaugeByPool[record.Address]
		if !ok {
			continue
		}
		record.GaugeAddress = gaugeAddr
		lpPrice := liquidityTokenPrice(record)
		for _, reward := range rewards[gaugeAddr] {
			reward.APY = gauge.RewardAPY(reward, reward.TotalSupply*lpPrice)
			record.GaugeRewards = append(record.GaugeRewards, reward)
		}
	}
	return nil
}

// dedupedTVL sums pools absent from the main registry, so that per-registry
// totals can be added without double-counting. Only meaningful for factory
// kinds with a configured main registry.
func (a *Assembler) dedupedTVL(ctx context.Context, records []model.PoolRecord) (float64, bool, error) {
	if a.cfg.Kind == registry.KindMain || a.cfg.MainRegistryAddress == (common.Address{}) {
		return 0, false, nil
	}
	mainRefs, err := registry.ListPools(ctx, a.caller, a.cfg.MainRegistryAddress, registry.KindMain, nil)
	if err != nil {
		return 0, false, fmt.Errorf("main registry pools: %w", err)
	}
	inMain := make(map[string]struct{}, len(mainRefs))
	for _, ref := range mainRefs {
		inMain[strings.ToLower(ref.Address.Hex())] = struct{}{}
	}

	tvl := 0.0
	for _, record := range records {
		if _, dup := inMain[record.Address]; dup {
			continue
		}
		tvl += record.USDTotal
	}
	return tvl, true, nil
}

// executeIsolated runs one stage's batch, falling back to per-pool batches
// when the combined one fails. A pool whose own batch fails is left partial
// with a warning; it never fails the whole request.
func (a *Assembler) executeIsolated(ctx context.Context, calls []multicall.Call, stage string) ([]multicall.Result, error) {
	if len(calls) == 0 {
		return nil, nil
	}
	results, err := a.caller.Execute(ctx, calls)
	if err == nil {
		return results, nil
	}
	a.logger.Warn("stage batch failed, isolating per pool",
		zap.String("stage", stage), zap.Error(err))

	grouped := make(map[string][]multicall.Call)
	var order []string
	for _, call := range calls {
		poolID := poolIDOf(call.Meta)
		if _, seen := grouped[poolID]; !seen {
			order = append(order, poolID)
		}
		grouped[poolID] = append(grouped[poolID], call)
	}

	var out []multicall.Result
	for _, poolID := range order {
		groupResults, err := a.caller.Execute(ctx, grouped[poolID])
		if err != nil {
			a.logger.Warn("pool batch failed, leaving record partial",
				zap.String("stage", stage), zap.String("pool", poolID), zap.Error(err))
			continue
		}
		out = append(out, groupResults...)
	}
	return out, nil
}

func poolIDOf(meta any) string {
	switch m := meta.(type) {
	case registry.FieldMeta:
		return m.PoolID
	case coinMeta:
		return m.PoolID
	case pricing.RateProbeMeta:
		return m.PoolID
	default:
		return ""
	}
}

// liquidityTokenPrice values one liquidity token as the pool's USD total over
// its human-unit supply.
func liquidityTokenPrice(record *model.PoolRecord) float64 {
	if record.TotalSupply == nil || record.TotalSupply.Sign() == 0 || record.USDTotal <= 0 {
		return 0
	}
	supply, _ := new(big.Float).Quo(
		new(big.Float).SetInt(record.TotalSupply),
		new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)),
	).Float64()
	if supply <= 0 {
		return 0
	}
	return record.USDTotal / supply
}

func collectCoinAddresses(records []model.PoolRecord) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, record := range records {
		for _, address := range record.DefinedCoins() {
			lowered := strings.ToLower(address)
			if _, ok := seen[lowered]; ok {
				continue
			}
			seen[lowered] = struct{}{}
			out = append(out, lowered)
		}
	}
	return out
}
