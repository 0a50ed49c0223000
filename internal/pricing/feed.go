package pricing

import (
	"context"
	"strings"
)

// Feed is an external price oracle. Lookups are best-effort: identifiers the
// feed does not know are simply absent from the result, never an error.
type Feed interface {
	// TokenPrices resolves USD prices by contract address on a platform.
	TokenPrices(ctx context.Context, platform string, addresses []string) (map[string]float64, error)
	// AssetPrices resolves USD prices by canonical asset identifier.
	AssetPrices(ctx context.Context, ids []string) (map[string]float64, error)
}

// Layered composes price maps in fixed priority order. Keys are matched
// case-insensitively. A zero entry in one layer falls through to the next,
// so a source that knows an asset but has no quote never shadows one that
// does.
type Layered struct {
	layers []map[string]float64
}

func NewLayered(layers ...map[string]float64) *Layered {
	normalized := make([]map[string]float64, 0, len(layers))
	for _, layer := range layers {
		if len(layer) == 0 {
			continue
		}
		lowered := make(map[string]float64, len(layer))
		for key, price := range layer {
			lowered[strings.ToLower(key)] = price
		}
		normalized = append(normalized, lowered)
	}
	return &Layered{layers: normalized}
}

// Price returns the first positive price for the key across layers.
func (l *Layered) Price(key string) (float64, bool) {
	lowered := strings.ToLower(key)
	for _, layer := range l.layers {
		if price, ok := layer[lowered]; ok && price > 0 {
			return price, true
		}
	}
	return 0, false
}
