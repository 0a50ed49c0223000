package pricing

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"poolscope/internal/model"
	"poolscope/internal/multicall"
	"poolscope/internal/registry"
)

// Pools below this liquidity token supply are skipped by rate probing: quotes
// out of near-empty pools are noise, not prices.
var minProbeSupply = new(big.Int).Mul(big.NewInt(10), big.NewInt(1e18))

// RateProbeMeta tags one exchange-rate probe with its pool and coin pair.
type RateProbeMeta struct {
	PoolID  string
	I       int
	J       int
	Divisor *big.Int
}

// Lookup resolves a USD price for an address-like key.
type Lookup interface {
	Price(key string) (float64, bool)
}

// RateCalls builds get_dy probes for every ordered pair of defined coins in
// each pool. The probe amount is one whole unit of the input coin so the
// normalized quote reads directly as units of J per unit of I.
func RateCalls(kind registry.Kind, pools []model.PoolRecord) ([]multicall.Call, error) {
	poolABI, err := kind.PoolABI()
	if err != nil {
		return nil, err
	}

	var calls []multicall.Call
	for _, pool := range pools {
		if pool.TotalSupply != nil && pool.TotalSupply.Cmp(minProbeSupply) < 0 {
			continue
		}
		defined := make([]int, 0, len(pool.CoinsAddresses))
		for slot, address := range pool.CoinsAddresses {
			if model.IsDefinedCoin(address) {
				defined = append(defined, slot)
			}
		}
		for _, i := range defined {
			for _, j := range defined {
				if i == j {
					continue
				}
				probe := pow10(pool.Decimals[i])
				calls = append(calls, multicall.Call{
					Target: common.HexToAddress(pool.Address),
					ABI:    poolABI,
					Method: "get_dy",
					Params: []any{big.NewInt(int64(i)), big.NewInt(int64(j)), probe},
					Meta: RateProbeMeta{
						PoolID:  pool.ID,
						I:       i,
						J:       j,
						Divisor: pow10(pool.Decimals[j]),
					},
				})
			}
		}
	}
	return calls, nil
}

// RatesFromResults normalizes probe quotes into per-pool internal rates.
// A reverted probe surfaces as a batch error upstream; a zero quote is kept
// and ignored by the derivation pass.
func RatesFromResults(results []multicall.Result) ([]model.InternalRate, error) {
	rates := make([]model.InternalRate, 0, len(results))
	for _, result := range results {
		meta, ok := result.Meta.(RateProbeMeta)
		if !ok {
			return nil, fmt.Errorf("rate probe result carries %T meta", result.Meta)
		}
		dy, err := multicall.AsBigInt(result.First())
		if err != nil {
			return nil, fmt.Errorf("rate probe %s (%d,%d): %w", meta.PoolID, meta.I, meta.J, err)
		}
		quote, _ := new(big.Float).Quo(new(big.Float).SetInt(dy), new(big.Float).SetInt(meta.Divisor)).Float64()
		rates = append(rates, model.InternalRate{
			PoolID: meta.PoolID,
			I:      meta.I,
			J:      meta.J,
			Rate:   quote,
		})
	}
	return rates, nil
}

// DerivePrices walks pools in order and fills missing coin prices from the
// feed lookup, from coins priced earlier in the walk, and from sampled
// internal rates against priced peers in the same pool. Each pool's USD total
// and liquidity token price become available to every later pool, so the walk
// order decides what can be derived. Coins no source reaches stay unpriced.
func DerivePrices(pools []model.PoolRecord, rates []model.InternalRate, prices Lookup) {
	resolved := make(map[string]float64)
	byPool := make(map[string][]model.InternalRate)
	for _, rate := range rates {
		byPool[rate.PoolID] = append(byPool[rate.PoolID], rate)
	}

	for idx := range pools {
		pool := &pools[idx]

		for ci := range pool.Coins {
			coin := &pool.Coins[ci]
			if coin.USDPrice != nil {
				continue
			}
			if price, ok := resolvePrice(prices, resolved, coin.Address); ok {
				coin.USDPrice = &price
			}
		}

		// Rates can chain inside one pool (A prices B, B prices C), so
		// iterate until a full pass makes no progress.
		for changed := true; changed; {
			changed = false
			for _, rate := range byPool[pool.ID] {
				if rate.Rate <= 0 {
					continue
				}
				in := coinAtSlot(pool, rate.I)
				out := coinAtSlot(pool, rate.J)
				if in == nil || out == nil {
					continue
				}
				switch {
				case in.USDPrice == nil && out.USDPrice != nil:
					price := rate.Rate * *out.USDPrice
					in.USDPrice = &price
					changed = true
				case in.USDPrice != nil && out.USDPrice == nil:
					price := *in.USDPrice / rate.Rate
					out.USDPrice = &price
					changed = true
				}
			}
		}

		total := 0.0
		for ci := range pool.Coins {
			coin := &pool.Coins[ci]
			total += coin.USDValue()
			if coin.USDPrice != nil {
				resolved[strings.ToLower(coin.Address)] = *coin.USDPrice
			}
		}
		pool.USDTotal = total

		if pool.TotalSupply != nil && pool.TotalSupply.Sign() > 0 && total > 0 {
			supply, _ := new(big.Float).Quo(
				new(big.Float).SetInt(pool.TotalSupply),
				new(big.Float).SetInt(pow10(18)),
			).Float64()
			if supply > 0 {
				lpToken := pool.LPTokenAddress
				if lpToken == "" {
					lpToken = pool.Address
				}
				resolved[strings.ToLower(lpToken)] = total / supply
			}
		}
	}
}

func resolvePrice(prices Lookup, resolved map[string]float64, address string) (float64, bool) {
	if prices != nil {
		if price, ok := prices.Price(address); ok {
			return price, true
		}
	}
	price, ok := resolved[strings.ToLower(address)]
	if !ok || price <= 0 {
		return 0, false
	}
	return price, true
}

func coinAtSlot(pool *model.PoolRecord, slot int) *model.CoinRecord {
	if slot < 0 || slot >= len(pool.CoinsAddresses) {
		return nil
	}
	address := pool.CoinsAddresses[slot]
	for ci := range pool.Coins {
		if strings.EqualFold(pool.Coins[ci].Address, address) {
			return &pool.Coins[ci]
		}
	}
	return nil
}

func pow10(decimals uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}
