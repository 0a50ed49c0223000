package config

import "fmt"

// ChainConfig is the per-chain reference data: registry directory addresses,
// pricing hints, and the denylists that keep known-bad data out of results.
type ChainConfig struct {
	RPCURL              string
	NativeSymbol        string
	Platform            string
	Registries          map[string]string
	ImplementationMap   map[string]string
	BasePoolLPToGaugeLP map[string]string
	Bytes32SymbolTokens []string
	DisabledPools       []string
	ZeroVolumePools     []string
	WrappedTokens       []string
	FallbackAssetIDs    map[string]string
	RewardTokenReplace  map[string]string
	FactoryGauges       map[string]string
	// FactoryPoolAssetIDs maps factory pool addresses to the feed asset id
	// of the single asset the pool tracks; it backstops coin pricing for
	// pools whose coins no address-keyed source knows. Populated from the
	// gauge directory at deployment time, like FactoryGauges.
	FactoryPoolAssetIDs map[string]string
	MetaUSDReference    string
	MetaBTCReference    string
	DayBlocks           uint64
}

var chains = map[string]ChainConfig{
	"ethereum": {
		NativeSymbol: "ETH",
		Platform:     "ethereum",
		Registries: map[string]string{
			"main":           "0x90E00ACe148ca3b23Ac1bC8C240C2a7Dd9c2d7f5",
			"factory":        "0xB9fC157394Af804a3578134A6585C0dc9cc990d4",
			"crypto":         "0x8F942C20D02bEfc377D41445793068908E2250D0",
			"factory-crypto": "0xF18056Bbd320E96A48e3Fbf8bC061322531aac99",
		},
		ImplementationMap: map[string]string{
			"0x213be373fdff327658139c7df330817dad2d5bbe": "metausd",
			"0x55aa9bf126bcabf0bdc17fa9e39ec9239e1ce7a9": "metausdbalances",
			"0xc6a8466d128fbfd34ada64a9fffce325d57c9a52": "metabtc",
			"0xc4c78b08fa0c3d0a312605634461a88184ecd630": "metabtcbalances",
		},
		BasePoolLPToGaugeLP: map[string]string{
			// 3pool LP staked share held through its gauge.
			"0x6c3f90f043a72fa612cbac8115ee7e52bde6e490": "0xbfcf63294ad7105dea65aa58f8ae5be2d9d0952a",
		},
		Bytes32SymbolTokens: []string{
			// MKR reports symbol/name as bytes32.
			"0x9f8f72aa9304c8b593d555f12ef6589cc3a579a2",
		},
		ZeroVolumePools: []string{
			"0x8461a004b50d321cb22b7d034969ce6803911899",
			"0x8818a9bb44fbf33502be7c15c500d0c783b73067",
		},
		WrappedTokens: []string{
			"0x8e595470ed749b85c6f7669de83eae304c2ec68f", // cyDAI
			"0x76eb2fe28b36b3ee97f3adae0c69606eedb2a37c", // cyUSDC
			"0x48759f220ed983db51fa7a8c0d2aab8f3ce4166a", // cyUSDT
		},
		FallbackAssetIDs: map[string]string{
			"0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee": "ethereum",
			"0x9f8f72aa9304c8b593d555f12ef6589cc3a579a2": "maker",
		},
		MetaUSDReference: "0x6c3F90f043a72FA612cbac8115EE7e52BDe6E490",
		MetaBTCReference: "0x075b1bb99792c9E1041bA13afEf80C91a1e70fB3",
		DayBlocks:        6550,
	},
}

// ChainFor returns the built-in reference data for a chain. An unknown chain
// is a configuration error and rejects the whole request.
func ChainFor(name string) (ChainConfig, error) {
	chain, ok := chains[name]
	if !ok {
		return ChainConfig{}, fmt.Errorf("unknown chain %q", name)
	}
	return chain, nil
}

// RegistryAddress resolves the directory address for a registry kind selector.
func (c ChainConfig) RegistryAddress(kind string) (string, error) {
	address, ok := c.Registries[kind]
	if !ok {
		return "", fmt.Errorf("chain has no %q registry", kind)
	}
	return address, nil
}
