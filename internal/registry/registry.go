package registry

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"poolscope/internal/multicall"
)

// PoolRef identifies one pool by registry index and address. The index is
// stable and forms the pool ID together with the registry kind.
type PoolRef struct {
	Index   int
	Address common.Address
}

// ID returns the chain-scoped pool identity.
func (p PoolRef) ID(kind Kind) string {
	return kind.PoolID(p.Index)
}

// FieldMeta tags one shape call with the pool and record field it fills.
type FieldMeta struct {
	PoolID string
	Field  string
}

// Caller executes an ordered sequence of batched calls.
type Caller interface {
	Execute(ctx context.Context, calls []multicall.Call) ([]multicall.Result, error)
}

// ListPools enumerates the registry and filters out denylisted addresses.
// Indices are preserved so pool IDs stay stable across the filter.
func ListPools(ctx context.Context, caller Caller, registryAddr common.Address, kind Kind, denylist []string) ([]PoolRef, error) {
	registryABI, err := kind.RegistryABI()
	if err != nil {
		return nil, err
	}

	countResults, err := caller.Execute(ctx, []multicall.Call{{
		Target: registryAddr,
		ABI:    registryABI,
		Method: "pool_count",
	}})
	if err != nil {
		return nil, fmt.Errorf("pool count: %w", err)
	}
	count, err := multicall.AsBigInt(countResults[0].First())
	if err != nil {
		return nil, fmt.Errorf("pool count: %w", err)
	}
	poolCount := int(count.Int64())
	if poolCount == 0 {
		return nil, nil
	}

	calls := make([]multicall.Call, poolCount)
	for i := 0; i < poolCount; i++ {
		calls[i] = multicall.Call{
			Target: registryAddr,
			ABI:    registryABI,
			Method: "pool_list",
			Params: []any{big.NewInt(int64(i))},
			Meta:   i,
		}
	}
	results, err := caller.Execute(ctx, calls)
	if err != nil {
		return nil, fmt.Errorf("pool list: %w", err)
	}

	denied := make(map[string]struct{}, len(denylist))
	for _, address := range denylist {
		denied[strings.ToLower(address)] = struct{}{}
	}

	pools := make([]PoolRef, 0, poolCount)
	for _, result := range results {
		address, err := multicall.AsAddress(result.First())
		if err != nil {
			return nil, fmt.Errorf("pool list entry: %w", err)
		}
		if _, ok := denied[strings.ToLower(address.Hex())]; ok {
			continue
		}
		pools = append(pools, PoolRef{Index: result.Meta.(int), Address: address})
	}
	return pools, nil
}

// ShapeCalls returns the kind-specific metadata call set for one pool, each
// call tagged with the record field it fills.
func ShapeCalls(kind Kind, registryAddr common.Address, pool PoolRef) ([]multicall.Call, error) {
	registryABI, err := kind.RegistryABI()
	if err != nil {
		return nil, err
	}
	poolABI, err := kind.PoolABI()
	if err != nil {
		return nil, err
	}
	erc20, err := ERC20ABI()
	if err != nil {
		return nil, err
	}

	poolID := pool.ID(kind)
	tag := func(field string) FieldMeta { return FieldMeta{PoolID: poolID, Field: field} }

	calls := []multicall.Call{{
		Target: registryAddr,
		ABI:    registryABI,
		Method: "get_coins",
		Params: []any{pool.Address},
		Meta:   tag("coinsAddresses"),
	}, {
		Target: registryAddr,
		ABI:    registryABI,
		Method: "get_decimals",
		Params: []any{pool.Address},
		Meta:   tag("decimals"),
	}}

	if kind.hasAssetInfo() {
		calls = append(calls, multicall.Call{
			Target: registryAddr,
			ABI:    registryABI,
			Method: "get_underlying_decimals",
			Params: []any{pool.Address},
			Meta:   tag("underlyingDecimals"),
		}, multicall.Call{
			Target: registryAddr,
			ABI:    registryABI,
			Method: "get_pool_asset_type",
			Params: []any{pool.Address},
			Meta:   tag("assetType"),
		})
	}

	if kind == KindFactory {
		// Factory pools are their own liquidity token; supply, name, and
		// symbol come straight from the pool contract.
		calls = append(calls, multicall.Call{
			Target: registryAddr,
			ABI:    registryABI,
			Method: "get_implementation_address",
			Params: []any{pool.Address},
			Meta:   tag("implementationAddress"),
		}, multicall.Call{
			Target: pool.Address,
			ABI:    poolABI,
			Method: "totalSupply",
			Meta:   tag("totalSupply"),
		}, multicall.Call{
			Target: pool.Address,
			ABI:    erc20,
			Method: "name",
			Meta:   tag("name"),
		}, multicall.Call{
			Target: pool.Address,
			ABI:    erc20,
			Method: "symbol",
			Meta:   tag("symbol"),
		})
	}

	if method := kind.lpTokenMethod(); method != "" {
		calls = append(calls, multicall.Call{
			Target: registryAddr,
			ABI:    registryABI,
			Method: method,
			Params: []any{pool.Address},
			Meta:   tag("lpTokenAddress"),
		})
	}

	return calls, nil
}

// LPTokenCalls returns the follow-up call set for a pool with a separate
// liquidity token: token metadata plus a price oracle probe on the pool.
// Pools with more than two coins expose indexed oracles; the first one is
// sampled.
func LPTokenCalls(kind Kind, pool PoolRef, lpToken common.Address, coinCount int) ([]multicall.Call, error) {
	erc20, err := ERC20ABI()
	if err != nil {
		return nil, err
	}
	withArgs := coinCount > 2
	oracleABI, err := PriceOracleABI(withArgs)
	if err != nil {
		return nil, err
	}

	poolID := pool.ID(kind)
	tag := func(field string) FieldMeta { return FieldMeta{PoolID: poolID, Field: field} }

	var oracleParams []any
	if withArgs {
		oracleParams = []any{big.NewInt(0)}
	}

	return []multicall.Call{{
		Target: lpToken,
		ABI:    erc20,
		Method: "name",
		Meta:   tag("name"),
	}, {
		Target: lpToken,
		ABI:    erc20,
		Method: "symbol",
		Meta:   tag("symbol"),
	}, {
		Target: lpToken,
		ABI:    erc20,
		Method: "totalSupply",
		Meta:   tag("totalSupply"),
	}, {
		Target: pool.Address,
		ABI:    oracleABI,
		Method: "price_oracle",
		Params: oracleParams,
		Meta:   tag("priceOracle"),
	}}, nil
}
