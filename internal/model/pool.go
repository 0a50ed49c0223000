package model

import "math/big"

// ZeroCoinAddress is the sentinel for an empty slot in a registry coin array.
const ZeroCoinAddress = "0x0000000000000000000000000000000000000000"

// PoolRecord is the aggregated per-pool record assembled from one request.
// CoinsAddresses, Decimals, and UnderlyingDecimals keep the registry's
// fixed-size slot layout; empty slots hold ZeroCoinAddress.
type PoolRecord struct {
	ID                    string        `json:"id"`
	Index                 int           `json:"index"`
	Address               string        `json:"address"`
	CoinsAddresses        []string      `json:"coinsAddresses"`
	Decimals              []uint8       `json:"decimals"`
	UnderlyingDecimals    []uint8       `json:"underlyingDecimals,omitempty"`
	AssetType             string        `json:"assetType,omitempty"`
	AssetTypeName         string        `json:"assetTypeName,omitempty"`
	Implementation        string        `json:"implementation,omitempty"`
	ImplementationAddress string        `json:"implementationAddress,omitempty"`
	LPTokenAddress        string        `json:"lpTokenAddress,omitempty"`
	Name                  string        `json:"name,omitempty"`
	Symbol                string        `json:"symbol,omitempty"`
	TotalSupply           *big.Int      `json:"totalSupply,omitempty"`
	PriceOracle           *float64      `json:"priceOracle,omitempty"`
	Coins                 []CoinRecord  `json:"coins"`
	USDTotal              float64       `json:"usdTotal"`
	GaugeAddress          string        `json:"gaugeAddress,omitempty"`
	GaugeRewards          []GaugeReward `json:"gaugeRewards,omitempty"`
}

// DefinedCoins returns the coin addresses with empty slots filtered out.
func (p *PoolRecord) DefinedCoins() []string {
	out := make([]string, 0, len(p.CoinsAddresses))
	for _, address := range p.CoinsAddresses {
		if IsDefinedCoin(address) {
			out = append(out, address)
		}
	}
	return out
}

// CoinIndex returns the slot index of a coin address, or -1.
func (p *PoolRecord) CoinIndex(address string) int {
	for i, a := range p.CoinsAddresses {
		if a == address {
			return i
		}
	}
	return -1
}

// IsDefinedCoin reports whether an address is a real coin slot.
func IsDefinedCoin(address string) bool {
	return address != "" && address != ZeroCoinAddress
}

// AggregateResult is the outcome of one aggregation request.
// TVL excludes factory pools already present in the main registry so that
// summing per-registry results does not double-count; TVLAll does not.
type AggregateResult struct {
	PoolData []PoolRecord `json:"poolData"`
	TVLAll   float64      `json:"tvlAll"`
	TVL      *float64     `json:"tvl,omitempty"`
}
