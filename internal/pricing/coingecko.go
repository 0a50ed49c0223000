package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"poolscope/internal/cache"
)

const (
	defaultFeedBaseURL = "https://api.coingecko.com/api/v3"
	defaultFeedTimeout = 15 * time.Second
	defaultFeedTTL     = 2 * time.Minute
	feedRequestChunk   = 100
)

// HTTPFeedConfig configures the external price feed client.
type HTTPFeedConfig struct {
	BaseURL string
	Timeout time.Duration
	TTL     time.Duration
}

// HTTPFeed queries a coingecko-style price API. Responses are memoized per
// request signature with an explicit TTL so one aggregation run does not
// hammer the feed for repeated identifier sets.
type HTTPFeed struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
	ttl     time.Duration

	mu   sync.Mutex
	memo map[string]*cache.TTL
}

func NewHTTPFeed(cfg HTTPFeedConfig, logger *zap.Logger) *HTTPFeed {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultFeedBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultFeedTimeout
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultFeedTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPFeed{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
		ttl:     cfg.TTL,
		memo:    make(map[string]*cache.TTL),
	}
}

// TokenPrices resolves USD prices by contract address. Addresses unknown to
// the feed are absent from the result.
func (f *HTTPFeed) TokenPrices(ctx context.Context, platform string, addresses []string) (map[string]float64, error) {
	if len(addresses) == 0 {
		return map[string]float64{}, nil
	}
	ids := lowerUniq(addresses)
	memoKey := "token:" + platform + ":" + strings.Join(ids, ",")
	value, err := f.memoFor(memoKey).Do(func() (any, error) {
		prices := make(map[string]float64, len(ids))
		for _, chunk := range chunkStrings(ids, feedRequestChunk) {
			endpoint := fmt.Sprintf("%s/simple/token_price/%s?contract_addresses=%s&vs_currencies=usd",
				f.baseURL, url.PathEscape(platform), url.QueryEscape(strings.Join(chunk, ",")))
			if err := f.fetchInto(ctx, endpoint, prices); err != nil {
				return nil, err
			}
		}
		return prices, nil
	})
	if err != nil {
		return nil, fmt.Errorf("token prices: %w", err)
	}
	return value.(map[string]float64), nil
}

// AssetPrices resolves USD prices by canonical asset identifier.
func (f *HTTPFeed) AssetPrices(ctx context.Context, ids []string) (map[string]float64, error) {
	if len(ids) == 0 {
		return map[string]float64{}, nil
	}
	normalized := lowerUniq(ids)
	memoKey := "asset:" + strings.Join(normalized, ",")
	value, err := f.memoFor(memoKey).Do(func() (any, error) {
		prices := make(map[string]float64, len(normalized))
		for _, chunk := range chunkStrings(normalized, feedRequestChunk) {
			endpoint := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd",
				f.baseURL, url.QueryEscape(strings.Join(chunk, ",")))
			if err := f.fetchInto(ctx, endpoint, prices); err != nil {
				return nil, err
			}
		}
		return prices, nil
	})
	if err != nil {
		return nil, fmt.Errorf("asset prices: %w", err)
	}
	return value.(map[string]float64), nil
}

func (f *HTTPFeed) fetchInto(ctx context.Context, endpoint string, prices map[string]float64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("price feed status %d", resp.StatusCode)
	}

	var payload map[string]struct {
		USD *float64 `json:"usd"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("decode price feed response: %w", err)
	}
	for id, quote := range payload {
		if quote.USD == nil {
			continue
		}
		prices[strings.ToLower(id)] = *quote.USD
	}
	return nil
}

func (f *HTTPFeed) memoFor(key string) *cache.TTL {
	f.mu.Lock()
	defer f.mu.Unlock()
	memo, ok := f.memo[key]
	if !ok {
		memo = cache.NewTTL(f.ttl)
		f.memo[key] = memo
	}
	return memo
}

func lowerUniq(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		lowered := strings.ToLower(value)
		if _, ok := seen[lowered]; ok {
			continue
		}
		seen[lowered] = struct{}{}
		out = append(out, lowered)
	}
	return out
}

func chunkStrings(values []string, size int) [][]string {
	if size <= 0 || len(values) <= size {
		return [][]string{values}
	}
	chunks := make([][]string, 0, (len(values)+size-1)/size)
	for start := 0; start < len(values); start += size {
		end := start + size
		if end > len(values) {
			end = len(values)
		}
		chunks = append(chunks, values[start:end])
	}
	return chunks
}
