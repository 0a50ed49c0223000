package gauge

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"poolscope/internal/model"
	"poolscope/internal/multicall"
	"poolscope/internal/pricing"
	"poolscope/internal/registry"
)

const secondsPerYear = 86400 * 365

// Caller executes an ordered sequence of batched calls.
type Caller interface {
	Execute(ctx context.Context, calls []multicall.Call) ([]multicall.Result, error)
}

type gaugeMeta struct {
	Gauge string
	Field string
	Index int
}

type rewardMeta struct {
	Gauge string
	Token string
	Field string
}

// Fetcher reads reward token schedules off staking gauges. Some reward tokens
// are priced under a different address (wrapped or bridged variants); the
// replace map redirects those lookups.
type Fetcher struct {
	caller   Caller
	feed     pricing.Feed
	platform string
	replace  map[string]string
	logger   *zap.Logger
	now      func() time.Time
}

func NewFetcher(caller Caller, feed pricing.Feed, platform string, replace map[string]string, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	lowered := make(map[string]string, len(replace))
	for from, to := range replace {
		lowered[strings.ToLower(from)] = strings.ToLower(to)
	}
	return &Fetcher{
		caller:   caller,
		feed:     feed,
		platform: platform,
		replace:  lowered,
		logger:   logger,
		now:      time.Now,
	}
}

// FetchRewards returns reward schedules keyed by lowercased gauge address.
// Gauges with no rewards get no entry. APY is left for the caller, which
// knows the gauge's staked USD total.
func (f *Fetcher) FetchRewards(ctx context.Context, gauges []common.Address) (map[string][]model.GaugeReward, error) {
	if len(gauges) == 0 {
		return map[string][]model.GaugeReward{}, nil
	}
	gaugeABI, err := registry.GaugeABI()
	if err != nil {
		return nil, err
	}
	erc20, err := registry.ERC20ABI()
	if err != nil {
		return nil, err
	}

	countCalls := make([]multicall.Call, 0, len(gauges)*2)
	for _, gauge := range gauges {
		key := strings.ToLower(gauge.Hex())
		countCalls = append(countCalls, multicall.Call{
			Target: gauge, ABI: gaugeABI, Method: "reward_count",
			Meta: gaugeMeta{Gauge: key, Field: "count"},
		}, multicall.Call{
			Target: gauge, ABI: gaugeABI, Method: "totalSupply",
			Meta: gaugeMeta{Gauge: key, Field: "totalSupply"},
		})
	}
	countResults, err := f.caller.Execute(ctx, countCalls)
	if err != nil {
		return nil, fmt.Errorf("gauge reward counts: %w", err)
	}

	counts := make(map[string]int, len(gauges))
	supplies := make(map[string]*big.Int, len(gauges))
	for _, result := range countResults {
		meta := result.Meta.(gaugeMeta)
		value, err := multicall.AsBigInt(result.First())
		if err != nil {
			return nil, fmt.Errorf("gauge %s %s: %w", meta.Gauge, meta.Field, err)
		}
		if meta.Field == "count" {
			counts[meta.Gauge] = int(value.Int64())
		} else {
			supplies[meta.Gauge] = value
		}
	}

	tokenCalls := make([]multicall.Call, 0)
	for _, gauge := range gauges {
		key := strings.ToLower(gauge.Hex())
		for i := 0; i < counts[key]; i++ {
			tokenCalls = append(tokenCalls, multicall.Call{
				Target: gauge, ABI: gaugeABI, Method: "reward_tokens",
				Params: []any{big.NewInt(int64(i))},
				Meta:   gaugeMeta{Gauge: key, Field: "token", Index: i},
			})
		}
	}
	if len(tokenCalls) == 0 {
		return map[string][]model.GaugeReward{}, nil
	}
	tokenResults, err := f.caller.Execute(ctx, tokenCalls)
	if err != nil {
		return nil, fmt.Errorf("gauge reward tokens: %w", err)
	}

	type pair struct{ gauge, token string }
	pairs := make([]pair, 0, len(tokenResults))
	uniqueTokens := make(map[string]common.Address)
	for _, result := range tokenResults {
		meta := result.Meta.(gaugeMeta)
		address, err := multicall.AsAddress(result.First())
		if err != nil {
			return nil, fmt.Errorf("gauge %s reward token %d: %w", meta.Gauge, meta.Index, err)
		}
		token := strings.ToLower(address.Hex())
		if token == model.ZeroCoinAddress {
			continue
		}
		pairs = append(pairs, pair{gauge: meta.Gauge, token: token})
		uniqueTokens[token] = address
	}

	dataCalls := make([]multicall.Call, 0, len(pairs)+len(uniqueTokens)*3)
	for _, p := range pairs {
		dataCalls = append(dataCalls, multicall.Call{
			Target: common.HexToAddress(p.gauge), ABI: gaugeABI, Method: "reward_data",
			Params: []any{uniqueTokens[p.token]},
			Meta:   rewardMeta{Gauge: p.gauge, Token: p.token, Field: "data"},
		})
	}
	for token, address := range uniqueTokens {
		for _, method := range []string{"name", "symbol", "decimals"} {
			dataCalls = append(dataCalls, multicall.Call{
				Target: address, ABI: erc20, Method: method,
				Meta: rewardMeta{Token: token, Field: method},
			})
		}
	}
	dataResults, err := f.caller.Execute(ctx, dataCalls)
	if err != nil {
		return nil, fmt.Errorf("gauge reward data: %w", err)
	}

	type tokenInfo struct {
		name     string
		symbol   string
		decimals uint8
	}
	infos := make(map[string]*tokenInfo, len(uniqueTokens))
	type schedule struct {
		periodFinish *big.Int
		rate         *big.Int
	}
	schedules := make(map[pair]schedule, len(pairs))
	for _, result := range dataResults {
		meta := result.Meta.(rewardMeta)
		switch meta.Field {
		case "data":
			if len(result.Data) < 4 {
				return nil, fmt.Errorf("gauge %s reward_data for %s returned %d fields", meta.Gauge, meta.Token, len(result.Data))
			}
			periodFinish, err := multicall.AsBigInt(result.Data[2])
			if err != nil {
				return nil, fmt.Errorf("gauge %s period_finish: %w", meta.Gauge, err)
			}
			rate, err := multicall.AsBigInt(result.Data[3])
			if err != nil {
				return nil, fmt.Errorf("gauge %s rate: %w", meta.Gauge, err)
			}
			schedules[pair{gauge: meta.Gauge, token: meta.Token}] = schedule{periodFinish: periodFinish, rate: rate}
		default:
			info := infos[meta.Token]
			if info == nil {
				info = &tokenInfo{}
				infos[meta.Token] = info
			}
			switch meta.Field {
			case "name":
				info.name, err = multicall.AsString(result.First())
			case "symbol":
				info.symbol, err = multicall.AsString(result.First())
			case "decimals":
				info.decimals, err = multicall.AsUint8(result.First())
			}
			if err != nil {
				return nil, fmt.Errorf("reward token %s %s: %w", meta.Token, meta.Field, err)
			}
		}
	}

	priceKeys := make([]string, 0, len(uniqueTokens))
	for token := range uniqueTokens {
		priceKeys = append(priceKeys, f.priceKey(token))
	}
	tokenPrices, err := f.feed.TokenPrices(ctx, f.platform, priceKeys)
	if err != nil {
		return nil, fmt.Errorf("reward token prices: %w", err)
	}

	nowUnix := uint64(f.now().Unix())
	rewards := make(map[string][]model.GaugeReward)
	for _, p := range pairs {
		sched, ok := schedules[p]
		if !ok {
			continue
		}
		info := infos[p.token]
		if info == nil {
			info = &tokenInfo{decimals: 18}
		}
		periodFinish := sched.periodFinish.Uint64()
		reward := model.GaugeReward{
			GaugeAddress: p.gauge,
			TokenAddress: p.token,
			TokenPrice:   tokenPrices[f.priceKey(p.token)],
			Name:         info.name,
			Symbol:       info.symbol,
			Decimals:     info.decimals,
			Rate:         toUnits(sched.rate, info.decimals),
			TotalSupply:  toUnits(supplies[p.gauge], 18),
			PeriodFinish: periodFinish,
			Active:       periodFinish > nowUnix,
		}
		rewards[p.gauge] = append(rewards[p.gauge], reward)
	}
	return rewards, nil
}

func (f *Fetcher) priceKey(token string) string {
	if replaced, ok := f.replace[token]; ok {
		return replaced
	}
	return token
}

// RewardAPY annualizes one reward schedule against the staked USD total.
// Expired schedules and empty gauges yield zero.
func RewardAPY(reward model.GaugeReward, stakedUSD float64) float64 {
	if !reward.Active || stakedUSD <= 0 {
		return 0
	}
	return reward.Rate * secondsPerYear * reward.TokenPrice / stakedUSD * 100
}

func toUnits(value *big.Int, decimals uint8) float64 {
	if value == nil {
		return 0
	}
	denom := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	out, _ := new(big.Float).Quo(new(big.Float).SetInt(value), denom).Float64()
	return out
}
