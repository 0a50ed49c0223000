package model

// InternalRate is one sampled on-chain exchange rate inside a pool: the
// amount of coin J quoted for a small probe amount of coin I, normalized by
// the probe size. Directions are sampled independently; Rate(i,j) is not
// assumed to be 1/Rate(j,i).
type InternalRate struct {
	PoolID string
	I      int
	J      int
	Rate   float64
}

// PoolRate is the yield/volume estimate for one pool over the sampled window.
type PoolRate struct {
	Index        int     `json:"index"`
	PoolID       string  `json:"poolId"`
	PoolAddress  string  `json:"poolAddress"`
	PoolSymbol   string  `json:"poolSymbol,omitempty"`
	VirtualPrice string  `json:"virtualPrice"`
	APY          float64 `json:"apy"`
	APYFormatted string  `json:"apyFormatted"`
	APYWeekly    float64 `json:"apyWeekly"`
	Volume       float64 `json:"volume"`
}

// RateResult is the outcome of one estimation request.
type RateResult struct {
	PoolDetails []PoolRate `json:"poolDetails"`
	TotalVolume float64    `json:"totalVolume"`
}
