package registry

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"poolscope/internal/multicall"
)

func TestParseKind(t *testing.T) {
	cases := map[string]Kind{
		"main":           KindMain,
		"factory":        KindFactory,
		"crypto":         KindCrypto,
		"factory-crypto": KindFactoryCrypto,
	}
	for selector, want := range cases {
		got, err := ParseKind(selector)
		if err != nil {
			t.Fatalf("ParseKind(%q): %v", selector, err)
		}
		if got != want {
			t.Fatalf("ParseKind(%q) = %v, want %v", selector, got, want)
		}
	}

	if _, err := ParseKind("sidechain"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestPoolID(t *testing.T) {
	if got := KindMain.PoolID(3); got != "3" {
		t.Fatalf("main id = %q", got)
	}
	if got := KindFactory.PoolID(3); got != "factory-v2-3" {
		t.Fatalf("factory id = %q", got)
	}
	if got := KindCrypto.PoolID(3); got != "crypto-3" {
		t.Fatalf("crypto id = %q", got)
	}
	if got := KindFactoryCrypto.PoolID(3); got != "factory-crypto-3" {
		t.Fatalf("factory-crypto id = %q", got)
	}
}

func TestShapeCallsPerKind(t *testing.T) {
	registryAddr := common.HexToAddress("0x1000000000000000000000000000000000000001")
	pool := PoolRef{Index: 0, Address: common.HexToAddress("0x2000000000000000000000000000000000000002")}

	cases := []struct {
		kind Kind
		want []string
	}{
		{KindMain, []string{"get_coins", "get_decimals", "get_underlying_decimals", "get_pool_asset_type", "get_lp_token"}},
		{KindFactory, []string{"get_coins", "get_decimals", "get_underlying_decimals", "get_pool_asset_type", "get_implementation_address", "totalSupply", "name", "symbol"}},
		{KindCrypto, []string{"get_coins", "get_decimals", "get_lp_token"}},
		{KindFactoryCrypto, []string{"get_coins", "get_decimals", "get_token"}},
	}

	for _, tc := range cases {
		calls, err := ShapeCalls(tc.kind, registryAddr, pool)
		if err != nil {
			t.Fatalf("%v: %v", tc.kind, err)
		}
		if len(calls) != len(tc.want) {
			t.Fatalf("%v: got %d calls, want %d", tc.kind, len(calls), len(tc.want))
		}
		for i, method := range tc.want {
			if calls[i].Method != method {
				t.Fatalf("%v call %d = %q, want %q", tc.kind, i, calls[i].Method, method)
			}
			meta := calls[i].Meta.(FieldMeta)
			if meta.PoolID != tc.kind.PoolID(pool.Index) {
				t.Fatalf("%v call %d pool id = %q", tc.kind, i, meta.PoolID)
			}
		}
	}
}

type directoryStub struct {
	addresses []common.Address
}

func (s *directoryStub) Execute(_ context.Context, calls []multicall.Call) ([]multicall.Result, error) {
	results := make([]multicall.Result, len(calls))
	for i, call := range calls {
		switch call.Method {
		case "pool_count":
			results[i] = multicall.Result{Data: []any{big.NewInt(int64(len(s.addresses)))}, Meta: call.Meta}
		case "pool_list":
			index := int(call.Params[0].(*big.Int).Int64())
			results[i] = multicall.Result{Data: []any{s.addresses[index]}, Meta: call.Meta}
		default:
			return nil, fmt.Errorf("unexpected method %s", call.Method)
		}
	}
	return results, nil
}

func TestListPoolsFiltersDenylist(t *testing.T) {
	stub := &directoryStub{addresses: []common.Address{
		common.HexToAddress("0xaA00000000000000000000000000000000000001"),
		common.HexToAddress("0xBb00000000000000000000000000000000000002"),
		common.HexToAddress("0xcc00000000000000000000000000000000000003"),
	}}

	// Denylist matching is case-insensitive.
	pools, err := ListPools(context.Background(), stub,
		common.HexToAddress("0x1000000000000000000000000000000000000001"),
		KindFactory,
		[]string{"0xBB00000000000000000000000000000000000002"},
	)
	if err != nil {
		t.Fatalf("list pools: %v", err)
	}
	if len(pools) != 2 {
		t.Fatalf("got %d pools, want 2", len(pools))
	}
	if pools[0].Index != 0 || pools[1].Index != 2 {
		t.Fatalf("indices not preserved: %+v", pools)
	}
	if pools[1].ID(KindFactory) != "factory-v2-2" {
		t.Fatalf("pool id = %q", pools[1].ID(KindFactory))
	}
}

func TestListPoolsEmptyRegistry(t *testing.T) {
	pools, err := ListPools(context.Background(), &directoryStub{},
		common.HexToAddress("0x1000000000000000000000000000000000000001"), KindMain, nil)
	if err != nil {
		t.Fatalf("list pools: %v", err)
	}
	if pools != nil {
		t.Fatalf("expected no pools, got %+v", pools)
	}
}
