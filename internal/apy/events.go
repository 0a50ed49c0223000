package apy

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"poolscope/internal/model"
	"poolscope/internal/registry"
)

// Crypto pools emit their exchange event without a named ABI entry; it is
// matched by raw topic and decoded by fixed word layout:
// sold_id, tokens_sold, bought_id, tokens_bought.
var cryptoExchangeTopic = common.HexToHash("0xb2e76ae99761dc136e598d4a629bb347eccb9532a5f8bbd72e18467c3c34cc98")

// scanVolume totals the pool's exchange events in [fromBlock, toBlock]:
// bought token units for plain pools, USD trade value for crypto pools,
// whose coins are heterogeneous assets. Events that fail to decode are
// skipped, not fatal; a failed log query is.
func (e *Estimator) scanVolume(ctx context.Context, pool *model.PoolRecord, fromBlock, toBlock uint64) (float64, error) {
	address := common.HexToAddress(pool.Address)

	if e.kind.IsCrypto() {
		logs, err := e.chain.FilterLogs(ctx, fromBlock, toBlock, []common.Address{address}, []common.Hash{cryptoExchangeTopic})
		if err != nil {
			return 0, fmt.Errorf("exchange logs: %w", err)
		}
		return e.sumCryptoExchanges(pool, logs), nil
	}

	poolABI, err := registry.PlainPoolABI()
	if err != nil {
		return 0, err
	}
	exchange := poolABI.Events["TokenExchange"]
	exchangeUnderlying := poolABI.Events["TokenExchangeUnderlying"]
	logs, err := e.chain.FilterLogs(ctx, fromBlock, toBlock, []common.Address{address},
		[]common.Hash{exchange.ID, exchangeUnderlying.ID})
	if err != nil {
		return 0, fmt.Errorf("exchange logs: %w", err)
	}

	volume := 0.0
	for _, entry := range logs {
		if len(entry.Topics) == 0 {
			continue
		}
		name := "TokenExchange"
		if entry.Topics[0] == exchangeUnderlying.ID {
			name = "TokenExchangeUnderlying"
		}
		values, err := poolABI.Unpack(name, entry.Data)
		if err != nil {
			e.logger.Warn("undecodable exchange event",
				zap.String("pool", pool.ID), zap.Uint64("block", entry.BlockNumber), zap.Error(err))
			continue
		}
		// buyer is indexed; data carries sold_id, tokens_sold, bought_id, tokens_bought.
		if len(values) < 4 {
			continue
		}
		boughtID, okID := values[2].(*big.Int)
		boughtAmount, okAmount := values[3].(*big.Int)
		if !okID || !okAmount {
			continue
		}
		decimals, ok := e.eventDecimals(pool, int(boughtID.Int64()))
		if !ok {
			continue
		}
		volume += humanAmount(boughtAmount, decimals)
	}
	return volume, nil
}

func (e *Estimator) sumCryptoExchanges(pool *model.PoolRecord, logs []types.Log) float64 {
	volume := 0.0
	for _, entry := range logs {
		if len(entry.Data) < 128 {
			e.logger.Warn("short exchange event payload",
				zap.String("pool", pool.ID), zap.Uint64("block", entry.BlockNumber))
			continue
		}
		boughtID := new(big.Int).SetBytes(entry.Data[64:96])
		boughtAmount := new(big.Int).SetBytes(entry.Data[96:128])
		coin := coinAtSlot(pool, int(boughtID.Int64()))
		if coin == nil || coin.USDPrice == nil {
			continue
		}
		volume += humanAmount(boughtAmount, coin.Decimals) * *coin.USDPrice
	}
	return volume
}

// eventDecimals resolves the decimals for a coin slot referenced by an
// exchange event. Meta pools settle every exchange in underlying coins, so
// their underlying decimals apply regardless of which event fired.
func (e *Estimator) eventDecimals(pool *model.PoolRecord, slot int) (uint8, bool) {
	if isMetaPool(pool) && slot >= 0 && slot < len(pool.UnderlyingDecimals) {
		return pool.UnderlyingDecimals[slot], true
	}
	if slot >= 0 && slot < len(pool.Decimals) {
		return pool.Decimals[slot], true
	}
	return 0, false
}

func isMetaPool(pool *model.PoolRecord) bool {
	for _, prefix := range []string{"metausd", "metabtc", "v1metausd", "v1metabtc"} {
		if strings.HasPrefix(pool.Implementation, prefix) {
			return true
		}
	}
	return false
}

func coinAtSlot(pool *model.PoolRecord, slot int) *model.CoinRecord {
	if slot < 0 || slot >= len(pool.CoinsAddresses) {
		return nil
	}
	address := pool.CoinsAddresses[slot]
	for i := range pool.Coins {
		if strings.EqualFold(pool.Coins[i].Address, address) {
			return &pool.Coins[i]
		}
	}
	return nil
}

func humanAmount(value *big.Int, decimals uint8) float64 {
	denom := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	out, _ := new(big.Float).Quo(new(big.Float).SetInt(value), denom).Float64()
	return out
}
