package apy

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"poolscope/internal/model"
	"poolscope/internal/registry"
)

// DefaultDayBlocks approximates one calendar day in blocks.
const DefaultDayBlocks = 6550

// ChainReader is the block-height-anchored read surface of the chain client.
type ChainReader interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error)
}

// Estimator derives per-pool yield and volume figures from a yield
// accumulator sampled at three block heights and an event scan over the
// daily window. Plain pools grow get_virtual_price; crypto pools grow the
// profit accumulator pair.
type Estimator struct {
	chain      ChainReader
	kind       registry.Kind
	dayBlocks  uint64
	zeroVolume map[string]struct{}
	logger     *zap.Logger
}

func NewEstimator(chain ChainReader, kind registry.Kind, dayBlocks uint64, zeroVolumePools []string, logger *zap.Logger) *Estimator {
	if dayBlocks == 0 {
		dayBlocks = DefaultDayBlocks
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	denied := make(map[string]struct{}, len(zeroVolumePools))
	for _, address := range zeroVolumePools {
		denied[strings.ToLower(address)] = struct{}{}
	}
	return &Estimator{
		chain:      chain,
		kind:       kind,
		dayBlocks:  dayBlocks,
		zeroVolume: denied,
		logger:     logger,
	}
}

// Estimate computes rates for the given pools at the latest block, or at
// blockOverride when non-zero and not past the chain head. Historical
// sampling degrades per pool, never failing the request for a pool that is
// younger than the window.
func (e *Estimator) Estimate(ctx context.Context, pools []model.PoolRecord, blockOverride uint64) (*model.RateResult, error) {
	latest, err := e.chain.LatestBlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("latest block: %w", err)
	}
	if blockOverride != 0 && blockOverride <= latest {
		latest = blockOverride
	}
	weekBlocks := e.dayBlocks * 7
	if latest < weekBlocks {
		latest = weekBlocks
	}

	result := &model.RateResult{PoolDetails: make([]model.PoolRate, 0, len(pools))}
	for _, pool := range pools {
		rate, err := e.estimatePool(ctx, &pool, latest)
		if err != nil {
			return nil, fmt.Errorf("pool %s: %w", pool.ID, err)
		}
		result.PoolDetails = append(result.PoolDetails, *rate)
		result.TotalVolume += rate.Volume
	}
	return result, nil
}

func (e *Estimator) estimatePool(ctx context.Context, pool *model.PoolRecord, latest uint64) (*model.PoolRate, error) {
	address := common.HexToAddress(pool.Address)
	dayAgo := latest - e.dayBlocks
	weekAgo := latest - e.dayBlocks*7

	now, err := e.accumulator(ctx, address, latest)
	if err != nil {
		return nil, fmt.Errorf("current accumulator: %w", err)
	}

	day, err := e.accumulator(ctx, address, dayAgo)
	if err != nil {
		// Pool younger than a day: shrink the window to one block.
		e.logger.Warn("daily sample unavailable, degrading window to one block",
			zap.String("pool", pool.ID), zap.Uint64("block", dayAgo))
		day, err = e.accumulator(ctx, address, latest-1)
		if err != nil {
			day = now
		}
	}
	dailyRate := growthRate(now, day)

	var weeklyRate float64
	week, err := e.accumulator(ctx, address, weekAgo)
	if err != nil {
		e.logger.Warn("weekly sample unavailable, reusing scaled daily rate",
			zap.String("pool", pool.ID), zap.Uint64("block", weekAgo))
		weeklyRate = dailyRate * 7
	} else {
		weeklyRate = growthRate(now, week)
	}

	volume := 0.0
	if _, denied := e.zeroVolume[strings.ToLower(pool.Address)]; !denied {
		volume, err = e.scanVolume(ctx, pool, dayAgo, latest)
		if err != nil {
			return nil, fmt.Errorf("volume scan: %w", err)
		}
	}

	apy := annualize(dailyRate, 365)
	return &model.PoolRate{
		Index:        pool.Index,
		PoolID:       pool.ID,
		PoolAddress:  pool.Address,
		PoolSymbol:   pool.Symbol,
		VirtualPrice: now.String(),
		APY:          apy,
		APYFormatted: fmt.Sprintf("%.2f%%", apy),
		APYWeekly:    annualize(weeklyRate, 365.0/7.0),
		Volume:       volume,
	}, nil
}

// cryptoProfitOffset is the 1e18 baseline both profit accumulators grow from.
var cryptoProfitOffset = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// accumulator reads the pool's yield accumulator at one block height: the
// virtual price for plain pools, ((xcp_profit + xcp_profit_a)/2 + 1e18)/2
// for crypto pools.
func (e *Estimator) accumulator(ctx context.Context, pool common.Address, block uint64) (*big.Int, error) {
	if !e.kind.IsCrypto() {
		return e.readUint(ctx, pool, "get_virtual_price", block)
	}
	profit, err := e.readUint(ctx, pool, "xcp_profit", block)
	if err != nil {
		return nil, err
	}
	profitA, err := e.readUint(ctx, pool, "xcp_profit_a", block)
	if err != nil {
		return nil, err
	}
	mean := new(big.Int).Rsh(new(big.Int).Add(profit, profitA), 1)
	return mean.Rsh(mean.Add(mean, cryptoProfitOffset), 1), nil
}

func (e *Estimator) readUint(ctx context.Context, pool common.Address, method string, block uint64) (*big.Int, error) {
	poolABI, err := e.kind.PoolABI()
	if err != nil {
		return nil, err
	}
	data, err := poolABI.Pack(method)
	if err != nil {
		return nil, err
	}
	raw, err := e.chain.CallContract(ctx, ethereum.CallMsg{To: &pool, Data: data}, new(big.Int).SetUint64(block))
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%s: no data at block %d", method, block)
	}
	values, err := poolABI.Unpack(method, raw)
	if err != nil {
		return nil, err
	}
	value, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s returned %T", method, values[0])
	}
	return value, nil
}

func growthRate(now, old *big.Int) float64 {
	if old == nil || old.Sign() == 0 {
		return 0
	}
	delta := new(big.Float).SetInt(new(big.Int).Sub(now, old))
	rate, _ := new(big.Float).Quo(delta, new(big.Float).SetInt(old)).Float64()
	return rate
}

// annualize compounds a per-window growth rate over the number of windows in
// a year, expressed as a percentage.
func annualize(rate, periodsPerYear float64) float64 {
	return (math.Pow(1+rate, periodsPerYear) - 1) * 100
}
