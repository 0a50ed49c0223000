package pricing

import (
	"math"
	"math/big"
	"testing"

	"poolscope/internal/model"
	"poolscope/internal/multicall"
	"poolscope/internal/registry"
)

func units(amount int64, decimals uint8) *big.Int {
	return new(big.Int).Mul(big.NewInt(amount), pow10(decimals))
}

func twoCoinPool(id, address, coinA, coinB string) model.PoolRecord {
	return model.PoolRecord{
		ID:             id,
		Address:        address,
		CoinsAddresses: []string{coinA, coinB},
		Decimals:       []uint8{18, 18},
		Coins: []model.CoinRecord{
			{Address: coinA, Decimals: 18, PoolBalance: units(100, 18)},
			{Address: coinB, Decimals: 18, PoolBalance: units(100, 18)},
		},
	}
}

func TestDerivePricesAbsentPriceContributesZero(t *testing.T) {
	pool := model.PoolRecord{
		ID:             "0",
		Address:        "0xp0",
		CoinsAddresses: []string{"0xaaa", "0xbbb"},
		Decimals:       []uint8{18, 18},
		Coins: []model.CoinRecord{
			{Address: "0xaaa", Decimals: 18, PoolBalance: units(100, 18)},
			{Address: "0xbbb", Decimals: 18, PoolBalance: units(200, 18)},
		},
	}
	pools := []model.PoolRecord{pool}

	DerivePrices(pools, nil, NewLayered(map[string]float64{"0xAAA": 2.0}))

	if got := pools[0].USDTotal; got != 200 {
		t.Fatalf("usdTotal = %v, want 200", got)
	}
	if pools[0].Coins[1].USDPrice != nil {
		t.Fatalf("unpriced coin got price %v", *pools[0].Coins[1].USDPrice)
	}
}

func TestDerivePricesFromRateAgainstPricedPeer(t *testing.T) {
	pools := []model.PoolRecord{twoCoinPool("factory-v2-0", "0xp0", "0xaaa", "0xbbb")}
	rates := []model.InternalRate{{PoolID: "factory-v2-0", I: 1, J: 0, Rate: 2.0}}

	DerivePrices(pools, rates, NewLayered(map[string]float64{"0xaaa": 1.5}))

	coin := pools[0].Coins[1]
	if coin.USDPrice == nil {
		t.Fatal("expected derived price")
	}
	// One unit of coin 1 quotes 2.0 units of coin 0 at 1.5 USD each.
	if got := *coin.USDPrice; got != 3.0 {
		t.Fatalf("derived price = %v, want 3.0", got)
	}
}

func TestDerivePricesRateDirectionMatters(t *testing.T) {
	pools := []model.PoolRecord{twoCoinPool("factory-v2-0", "0xp0", "0xaaa", "0xbbb")}
	rates := []model.InternalRate{{PoolID: "factory-v2-0", I: 0, J: 1, Rate: 2.0}}

	DerivePrices(pools, rates, NewLayered(map[string]float64{"0xaaa": 4.0}))

	coin := pools[0].Coins[1]
	if coin.USDPrice == nil {
		t.Fatal("expected derived price")
	}
	// One unit of coin 0 (4 USD) quotes 2.0 units of coin 1.
	if got := *coin.USDPrice; got != 2.0 {
		t.Fatalf("derived price = %v, want 2.0", got)
	}
}

func TestDerivePricesOrderDependence(t *testing.T) {
	build := func() (model.PoolRecord, model.PoolRecord) {
		p1 := twoCoinPool("factory-v2-0", "0xp0", "0xaaa", "0xccc")
		p2 := twoCoinPool("factory-v2-1", "0xp1", "0xccc", "0xddd")
		return p1, p2
	}
	rates := []model.InternalRate{{PoolID: "factory-v2-0", I: 1, J: 0, Rate: 1.0}}
	feed := map[string]float64{"0xaaa": 1.0}

	p1, p2 := build()
	forward := []model.PoolRecord{p1, p2}
	DerivePrices(forward, rates, NewLayered(feed))
	if forward[1].Coins[0].USDPrice == nil {
		t.Fatal("expected coin priced in the earlier pool to carry forward")
	}
	if got := *forward[1].Coins[0].USDPrice; got != 1.0 {
		t.Fatalf("carried price = %v, want 1.0", got)
	}

	p1, p2 = build()
	reversed := []model.PoolRecord{p2, p1}
	DerivePrices(reversed, rates, NewLayered(feed))
	if reversed[0].Coins[0].USDPrice != nil {
		t.Fatal("expected coin to stay unpriced when its pricing pool comes later")
	}
}

func TestDerivePricesMutuallyUnpricedPairStaysUnpriced(t *testing.T) {
	pools := []model.PoolRecord{twoCoinPool("factory-v2-0", "0xp0", "0xaaa", "0xbbb")}
	rates := []model.InternalRate{
		{PoolID: "factory-v2-0", I: 0, J: 1, Rate: 1.0},
		{PoolID: "factory-v2-0", I: 1, J: 0, Rate: 1.0},
	}

	DerivePrices(pools, rates, NewLayered(nil))

	for _, coin := range pools[0].Coins {
		if coin.USDPrice != nil {
			t.Fatalf("coin %s got price %v without any anchor", coin.Address, *coin.USDPrice)
		}
	}
	if pools[0].USDTotal != 0 {
		t.Fatalf("usdTotal = %v, want 0", pools[0].USDTotal)
	}
}

func TestDerivePricesRegistersLiquidityTokenPrice(t *testing.T) {
	anchor := twoCoinPool("factory-v2-0", "0xp0", "0xaaa", "0xbbb")
	anchor.TotalSupply = units(100, 18)

	follower := model.PoolRecord{
		ID:             "factory-v2-1",
		Address:        "0xp1",
		CoinsAddresses: []string{"0xp0", "0xeee"},
		Decimals:       []uint8{18, 18},
		Coins: []model.CoinRecord{
			{Address: "0xp0", Decimals: 18, PoolBalance: units(10, 18)},
			{Address: "0xeee", Decimals: 18, PoolBalance: units(10, 18)},
		},
	}

	pools := []model.PoolRecord{anchor, follower}
	DerivePrices(pools, nil, NewLayered(map[string]float64{"0xaaa": 1.0, "0xbbb": 1.0}))

	// Anchor holds 200 USD over 100 LP tokens.
	coin := pools[1].Coins[0]
	if coin.USDPrice == nil {
		t.Fatal("expected liquidity token price to carry into the later pool")
	}
	if got := *coin.USDPrice; math.Abs(got-2.0) > 1e-9 {
		t.Fatalf("lp token price = %v, want 2.0", got)
	}
}

func TestRateCallsSkipsThinPools(t *testing.T) {
	thin := twoCoinPool("factory-v2-0", "0xp0", "0xaaa", "0xbbb")
	thin.TotalSupply = big.NewInt(5)
	deep := twoCoinPool("factory-v2-1", "0xp1", "0xccc", "0xddd")
	deep.TotalSupply = units(100, 18)

	calls, err := RateCalls(registry.KindFactory, []model.PoolRecord{thin, deep})
	if err != nil {
		t.Fatalf("rate calls: %v", err)
	}
	if len(calls) != 2 {
		t.Fatalf("calls = %d, want 2 directed probes for the deep pool", len(calls))
	}
	for _, call := range calls {
		meta := call.Meta.(RateProbeMeta)
		if meta.PoolID != "factory-v2-1" {
			t.Fatalf("probe targets %s, want factory-v2-1", meta.PoolID)
		}
		if meta.Divisor.Cmp(pow10(18)) != 0 {
			t.Fatalf("divisor = %s, want 1e18", meta.Divisor)
		}
	}
}

func TestRatesFromResultsNormalizesQuotes(t *testing.T) {
	results := []multicall.Result{{
		Data: []any{big.NewInt(2_500_000)},
		Meta: RateProbeMeta{PoolID: "factory-v2-0", I: 0, J: 1, Divisor: pow10(6)},
	}}

	rates, err := RatesFromResults(results)
	if err != nil {
		t.Fatalf("rates: %v", err)
	}
	if len(rates) != 1 {
		t.Fatalf("rates = %d, want 1", len(rates))
	}
	if got := rates[0].Rate; got != 2.5 {
		t.Fatalf("rate = %v, want 2.5", got)
	}
}
