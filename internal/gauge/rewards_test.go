package gauge

import (
	"context"
	"math"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"poolscope/internal/model"
	"poolscope/internal/multicall"
)

var (
	testGauge  = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testToken  = common.HexToAddress("0x2222222222222222222222222222222222222222")
	testBridge = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

type gaugeChainStub struct {
	periodFinish int64
	rate         *big.Int
}

func (s *gaugeChainStub) Execute(_ context.Context, calls []multicall.Call) ([]multicall.Result, error) {
	results := make([]multicall.Result, len(calls))
	for i, call := range calls {
		var data []any
		switch call.Method {
		case "reward_count":
			data = []any{big.NewInt(1)}
		case "totalSupply":
			data = []any{new(big.Int).Mul(big.NewInt(1000), big.NewInt(1e18))}
		case "reward_tokens":
			data = []any{testToken}
		case "reward_data":
			data = []any{
				testToken,
				common.Address{},
				big.NewInt(s.periodFinish),
				s.rate,
				big.NewInt(0),
				big.NewInt(0),
			}
		case "name":
			data = []any{"Reward Token"}
		case "symbol":
			data = []any{"RWD"}
		case "decimals":
			data = []any{uint8(18)}
		}
		results[i] = multicall.Result{Data: data, Meta: call.Meta}
	}
	return results, nil
}

type priceFeedStub struct {
	prices    map[string]float64
	requested []string
}

func (f *priceFeedStub) TokenPrices(_ context.Context, _ string, addresses []string) (map[string]float64, error) {
	f.requested = append(f.requested, addresses...)
	return f.prices, nil
}

func (f *priceFeedStub) AssetPrices(_ context.Context, _ []string) (map[string]float64, error) {
	return nil, nil
}

func TestFetchRewards(t *testing.T) {
	now := time.Unix(1700000000, 0)
	chain := &gaugeChainStub{
		periodFinish: now.Unix() + 3600,
		rate:         new(big.Int).Mul(big.NewInt(2), big.NewInt(1e18)),
	}
	feed := &priceFeedStub{prices: map[string]float64{strings.ToLower(testToken.Hex()): 1.5}}

	fetcher := NewFetcher(chain, feed, "ethereum", nil, nil)
	fetcher.now = func() time.Time { return now }

	rewards, err := fetcher.FetchRewards(context.Background(), []common.Address{testGauge})
	if err != nil {
		t.Fatalf("fetch rewards: %v", err)
	}

	key := strings.ToLower(testGauge.Hex())
	if len(rewards[key]) != 1 {
		t.Fatalf("rewards = %d, want 1", len(rewards[key]))
	}
	reward := rewards[key][0]
	if reward.Symbol != "RWD" || reward.Decimals != 18 {
		t.Fatalf("token metadata = %q/%d", reward.Symbol, reward.Decimals)
	}
	if reward.Rate != 2.0 {
		t.Fatalf("rate = %v, want 2.0", reward.Rate)
	}
	if reward.TotalSupply != 1000 {
		t.Fatalf("staked supply = %v, want 1000", reward.TotalSupply)
	}
	if reward.TokenPrice != 1.5 {
		t.Fatalf("token price = %v", reward.TokenPrice)
	}
	if !reward.Active {
		t.Fatal("expected active schedule")
	}
}

func TestFetchRewardsExpiredScheduleInactive(t *testing.T) {
	now := time.Unix(1700000000, 0)
	chain := &gaugeChainStub{periodFinish: now.Unix() - 1, rate: big.NewInt(0)}
	feed := &priceFeedStub{}

	fetcher := NewFetcher(chain, feed, "ethereum", nil, nil)
	fetcher.now = func() time.Time { return now }

	rewards, err := fetcher.FetchRewards(context.Background(), []common.Address{testGauge})
	if err != nil {
		t.Fatalf("fetch rewards: %v", err)
	}
	reward := rewards[strings.ToLower(testGauge.Hex())][0]
	if reward.Active {
		t.Fatal("expected expired schedule to be inactive")
	}
}

func TestFetchRewardsReplacesPricingAddress(t *testing.T) {
	chain := &gaugeChainStub{periodFinish: time.Now().Unix() + 3600, rate: big.NewInt(1e18)}
	bridgeKey := strings.ToLower(testBridge.Hex())
	feed := &priceFeedStub{prices: map[string]float64{bridgeKey: 7.0}}

	fetcher := NewFetcher(chain, feed, "ethereum",
		map[string]string{testToken.Hex(): testBridge.Hex()}, nil)

	rewards, err := fetcher.FetchRewards(context.Background(), []common.Address{testGauge})
	if err != nil {
		t.Fatalf("fetch rewards: %v", err)
	}
	reward := rewards[strings.ToLower(testGauge.Hex())][0]
	if reward.TokenPrice != 7.0 {
		t.Fatalf("token price = %v, want price of the replacement address", reward.TokenPrice)
	}
	found := false
	for _, requested := range feed.requested {
		if requested == bridgeKey {
			found = true
		}
	}
	if !found {
		t.Fatal("expected the replacement address in the price request")
	}
}

func TestRewardAPY(t *testing.T) {
	reward := model.GaugeReward{Rate: 0.01, TokenPrice: 1.0, Active: true}
	apy := RewardAPY(reward, 31_536_000)
	if math.Abs(apy-1.0) > 1e-9 {
		t.Fatalf("apy = %v, want 1.0", apy)
	}

	if got := RewardAPY(model.GaugeReward{Rate: 1, TokenPrice: 1, Active: false}, 100); got != 0 {
		t.Fatalf("expired apy = %v, want 0", got)
	}
	if got := RewardAPY(reward, 0); got != 0 {
		t.Fatalf("empty gauge apy = %v, want 0", got)
	}
}
