package pools

import (
	"math/big"
	"testing"

	"poolscope/internal/model"
)

func TestMergeCoinFieldStakedBalanceAccumulates(t *testing.T) {
	record := &model.PoolRecord{ID: "factory-v2-0"}

	if err := mergeCoinField(record, "0xAAA", "balance", big.NewInt(100)); err != nil {
		t.Fatalf("merge balance: %v", err)
	}
	if err := mergeCoinField(record, "0xaaa", "stakedBalance", big.NewInt(30)); err != nil {
		t.Fatalf("merge staked: %v", err)
	}
	if err := mergeCoinField(record, "0xaaa", "stakedBalance", big.NewInt(20)); err != nil {
		t.Fatalf("merge staked: %v", err)
	}

	if len(record.Coins) != 1 {
		t.Fatalf("coins = %d, want one case-insensitive entry", len(record.Coins))
	}
	coin := record.Coins[0]
	if coin.PoolStakedBalance.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("staked = %s, want additive 50", coin.PoolStakedBalance)
	}
	if coin.TotalBalance().Cmp(big.NewInt(150)) != 0 {
		t.Fatalf("total = %s, want 150", coin.TotalBalance())
	}
}

func TestMergeCoinFieldBytes32Symbol(t *testing.T) {
	record := &model.PoolRecord{ID: "0"}
	var raw [32]byte
	copy(raw[:], "MKR")

	if err := mergeCoinField(record, "0xmkr", "symbol", raw); err != nil {
		t.Fatalf("merge symbol: %v", err)
	}
	if got := record.Coins[0].Symbol; got != "MKR" {
		t.Fatalf("symbol = %q", got)
	}
}

func TestMergeShapeFieldAssetType(t *testing.T) {
	record := &model.PoolRecord{}
	cases := map[int64]string{0: "usd", 1: "native", 2: "btc", 3: "other", 9: "unknown"}
	for code, want := range cases {
		if err := mergeShapeField(record, "assetType", big.NewInt(code)); err != nil {
			t.Fatalf("merge asset type %d: %v", code, err)
		}
		if record.AssetTypeName != want {
			t.Fatalf("asset type %d = %q, want %q", code, record.AssetTypeName, want)
		}
	}
}

func TestMergeShapeFieldUnknownField(t *testing.T) {
	if err := mergeShapeField(&model.PoolRecord{}, "bogus", nil); err == nil {
		t.Fatal("expected error for unknown field")
	}
}
