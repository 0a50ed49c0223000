package pricing

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"poolscope/internal/cache"
	"poolscope/internal/multicall"
	"poolscope/internal/registry"
)

// Caller executes an ordered sequence of batched calls.
type Caller interface {
	Execute(ctx context.Context, calls []multicall.Call) ([]multicall.Result, error)
}

type wrappedMeta struct {
	Token string
	Field string
}

type wrappedTokenData struct {
	totalSupply        *big.Int
	underlyingBalance  *big.Int
	underlyingAddress  string
	decimals           uint8
	underlyingDecimals uint8
}

// WrappedTokens derives USD prices for interest-bearing wrapper tokens from
// their on-chain backing: underlying balance priced by the feed, divided by
// the wrapper supply. Results are memoized with a TTL since the token set is
// static per chain.
type WrappedTokens struct {
	caller   Caller
	feed     Feed
	platform string
	tokens   []common.Address
	memo     *cache.TTL
	logger   *zap.Logger
}

func NewWrappedTokens(caller Caller, feed Feed, platform string, tokens []common.Address, ttl time.Duration, logger *zap.Logger) *WrappedTokens {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WrappedTokens{
		caller:   caller,
		feed:     feed,
		platform: platform,
		tokens:   tokens,
		memo:     cache.NewTTL(ttl),
		logger:   logger,
	}
}

// Prices returns wrapper token address -> derived USD price.
func (w *WrappedTokens) Prices(ctx context.Context) (map[string]float64, error) {
	if len(w.tokens) == 0 {
		return map[string]float64{}, nil
	}
	value, err := w.memo.Do(func() (any, error) {
		return w.fetch(ctx)
	})
	if err != nil {
		return nil, err
	}
	return value.(map[string]float64), nil
}

func (w *WrappedTokens) fetch(ctx context.Context) (map[string]float64, error) {
	wrapperABI, err := registry.WrappedTokenABI()
	if err != nil {
		return nil, err
	}
	erc20, err := registry.ERC20ABI()
	if err != nil {
		return nil, err
	}

	calls := make([]multicall.Call, 0, len(w.tokens)*4)
	for _, token := range w.tokens {
		tag := func(field string) wrappedMeta {
			return wrappedMeta{Token: strings.ToLower(token.Hex()), Field: field}
		}
		calls = append(calls, multicall.Call{
			Target: token, ABI: wrapperABI, Method: "totalSupply", Meta: tag("totalSupply"),
		}, multicall.Call{
			Target: token, ABI: wrapperABI, Method: "getCash", Meta: tag("underlyingBalance"),
		}, multicall.Call{
			Target: token, ABI: wrapperABI, Method: "underlying", Meta: tag("underlyingAddress"),
		}, multicall.Call{
			Target: token, ABI: wrapperABI, Method: "decimals", Meta: tag("decimals"),
		})
	}

	results, err := w.caller.Execute(ctx, calls)
	if err != nil {
		return nil, fmt.Errorf("wrapper metadata: %w", err)
	}

	data := make(map[string]*wrappedTokenData, len(w.tokens))
	for _, result := range results {
		meta := result.Meta.(wrappedMeta)
		entry := data[meta.Token]
		if entry == nil {
			entry = &wrappedTokenData{}
			data[meta.Token] = entry
		}
		switch meta.Field {
		case "totalSupply":
			entry.totalSupply, err = multicall.AsBigInt(result.First())
		case "underlyingBalance":
			entry.underlyingBalance, err = multicall.AsBigInt(result.First())
		case "underlyingAddress":
			var address common.Address
			address, err = multicall.AsAddress(result.First())
			entry.underlyingAddress = strings.ToLower(address.Hex())
		case "decimals":
			entry.decimals, err = multicall.AsUint8(result.First())
		}
		if err != nil {
			return nil, fmt.Errorf("wrapper %s %s: %w", meta.Token, meta.Field, err)
		}
	}

	underlyingAddrs := make([]string, 0, len(data))
	decimalsCalls := make([]multicall.Call, 0, len(data))
	for token, entry := range data {
		if entry.underlyingAddress == "" {
			continue
		}
		underlyingAddrs = append(underlyingAddrs, entry.underlyingAddress)
		decimalsCalls = append(decimalsCalls, multicall.Call{
			Target: common.HexToAddress(entry.underlyingAddress),
			ABI:    erc20,
			Method: "decimals",
			Meta:   wrappedMeta{Token: token, Field: "underlyingDecimals"},
		})
	}

	underlyingPrices, err := w.feed.TokenPrices(ctx, w.platform, underlyingAddrs)
	if err != nil {
		return nil, fmt.Errorf("underlying prices: %w", err)
	}

	decimalsResults, err := w.caller.Execute(ctx, decimalsCalls)
	if err != nil {
		return nil, fmt.Errorf("underlying decimals: %w", err)
	}
	for _, result := range decimalsResults {
		meta := result.Meta.(wrappedMeta)
		decimals, err := multicall.AsUint8(result.First())
		if err != nil {
			return nil, fmt.Errorf("underlying decimals %s: %w", meta.Token, err)
		}
		data[meta.Token].underlyingDecimals = decimals
	}

	prices := make(map[string]float64, len(data))
	for token, entry := range data {
		underlyingPrice, ok := underlyingPrices[entry.underlyingAddress]
		if !ok || entry.totalSupply == nil || entry.totalSupply.Sign() == 0 || entry.underlyingBalance == nil {
			w.logger.Warn("wrapper token unpriceable", zap.String("token", token))
			continue
		}
		backing := toUnits(entry.underlyingBalance, entry.underlyingDecimals) * underlyingPrice
		supply := toUnits(entry.totalSupply, entry.decimals)
		if supply == 0 {
			continue
		}
		prices[token] = backing / supply
	}
	return prices, nil
}

func toUnits(value *big.Int, decimals uint8) float64 {
	denom := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	out, _ := new(big.Float).Quo(new(big.Float).SetInt(value), denom).Float64()
	return out
}
