package model

// GaugeReward describes one reward token schedule on a staking gauge,
// recomputed per request from batched reward and token metadata reads.
type GaugeReward struct {
	GaugeAddress string  `json:"gaugeAddress"`
	TokenAddress string  `json:"tokenAddress"`
	TokenPrice   float64 `json:"tokenPrice"`
	Name         string  `json:"name"`
	Symbol       string  `json:"symbol"`
	Decimals     uint8   `json:"decimals"`
	Rate         float64 `json:"rate"`
	TotalSupply  float64 `json:"totalSupply"`
	PeriodFinish uint64  `json:"periodFinish"`
	Active       bool    `json:"isRewardStillActive"`
	APY          float64 `json:"apy"`
}
