package model

import "math/big"

// CoinRecord holds per-coin state inside one pool. USDPrice stays nil until
// a price source or the derivation pass resolves it; a nil price contributes
// zero to totals, never NaN.
type CoinRecord struct {
	Address           string   `json:"address"`
	Decimals          uint8    `json:"decimals"`
	Symbol            string   `json:"symbol,omitempty"`
	PoolBalance       *big.Int `json:"poolBalance,omitempty"`
	PoolStakedBalance *big.Int `json:"poolStakedBalance,omitempty"`
	USDPrice          *float64 `json:"usdPrice"`
}

// TotalBalance returns pool balance plus any staked balance.
func (c *CoinRecord) TotalBalance() *big.Int {
	total := new(big.Int)
	if c.PoolBalance != nil {
		total.Add(total, c.PoolBalance)
	}
	if c.PoolStakedBalance != nil {
		total.Add(total, c.PoolStakedBalance)
	}
	return total
}

// USDValue converts the coin's balance to USD. Absent prices count as zero.
func (c *CoinRecord) USDValue() float64 {
	if c.USDPrice == nil {
		return 0
	}
	balance := new(big.Float).SetInt(c.TotalBalance())
	denom := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(c.Decimals)), nil))
	human, _ := new(big.Float).Quo(balance, denom).Float64()
	return human * *c.USDPrice
}
