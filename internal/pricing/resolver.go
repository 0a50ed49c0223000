package pricing

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// WrappedSource supplies unwrap-derived prices for interest-bearing wrapper
// tokens, keyed by token address.
type WrappedSource interface {
	Prices(ctx context.Context) (map[string]float64, error)
}

// Resolver composes price sources in fixed priority order:
// the by-address feed, then a static address-to-asset-id remap priced by the
// asset feed, then wrapped-token unwrap pricing. A price missed by every
// source stays absent and contributes zero downstream.
type Resolver struct {
	feed             Feed
	fallbackAssetIDs map[string]string
	wrapped          WrappedSource
	logger           *zap.Logger
}

func NewResolver(feed Feed, fallbackAssetIDs map[string]string, wrapped WrappedSource, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	lowered := make(map[string]string, len(fallbackAssetIDs))
	for address, id := range fallbackAssetIDs {
		lowered[strings.ToLower(address)] = id
	}
	return &Resolver{
		feed:             feed,
		fallbackAssetIDs: lowered,
		wrapped:          wrapped,
		logger:           logger,
	}
}

// CoinPrices resolves best-effort USD prices for the given coin addresses.
func (r *Resolver) CoinPrices(ctx context.Context, platform string, addresses []string) (*Layered, error) {
	primary, err := r.feed.TokenPrices(ctx, platform, addresses)
	if err != nil {
		return nil, fmt.Errorf("primary feed: %w", err)
	}

	fallback, err := r.fallbackLayer(ctx)
	if err != nil {
		return nil, fmt.Errorf("fallback feed: %w", err)
	}

	var wrapped map[string]float64
	if r.wrapped != nil {
		wrapped, err = r.wrapped.Prices(ctx)
		if err != nil {
			return nil, fmt.Errorf("wrapped token prices: %w", err)
		}
	}

	r.logger.Debug("coin prices resolved",
		zap.Int("requested", len(addresses)),
		zap.Int("primary", len(primary)),
		zap.Int("fallback", len(fallback)),
		zap.Int("wrapped", len(wrapped)),
	)

	return NewLayered(primary, fallback, wrapped), nil
}

// PoolReferencePrices prices pools that track a single reference asset,
// keyed by lowered pool address. Factory pools use this as the last coin
// price fallback: a coin every address-keyed source misses takes its pool's
// reference asset price.
func (r *Resolver) PoolReferencePrices(ctx context.Context, poolAssetIDs map[string]string) (map[string]float64, error) {
	if len(poolAssetIDs) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(poolAssetIDs))
	for _, id := range poolAssetIDs {
		ids = append(ids, id)
	}
	assetPrices, err := r.feed.AssetPrices(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("reference asset prices: %w", err)
	}

	layer := make(map[string]float64, len(poolAssetIDs))
	for address, id := range poolAssetIDs {
		if price, ok := assetPrices[strings.ToLower(id)]; ok {
			layer[strings.ToLower(address)] = price
		}
	}
	return layer, nil
}

// fallbackLayer prices the statically remapped addresses through the
// symbol-based asset feed and re-keys the result by address.
func (r *Resolver) fallbackLayer(ctx context.Context) (map[string]float64, error) {
	if len(r.fallbackAssetIDs) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(r.fallbackAssetIDs))
	for _, id := range r.fallbackAssetIDs {
		ids = append(ids, id)
	}
	assetPrices, err := r.feed.AssetPrices(ctx, ids)
	if err != nil {
		return nil, err
	}

	layer := make(map[string]float64, len(r.fallbackAssetIDs))
	for address, id := range r.fallbackAssetIDs {
		if price, ok := assetPrices[strings.ToLower(id)]; ok {
			layer[address] = price
		}
	}
	return layer, nil
}
