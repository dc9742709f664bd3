package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"CryptoSentinel/internal/metrics"
	"CryptoSentinel/internal/model"
)

// DefaultCoinGeckoURL is the public CoinGecko REST root.
const DefaultCoinGeckoURL = "https://api.coingecko.com"

var coinGeckoIDs = map[string]string{
	"BTCUSDT":   "bitcoin",
	"ETHUSDT":   "ethereum",
	"BNBUSDT":   "binancecoin",
	"ADAUSDT":   "cardano",
	"XRPUSDT":   "ripple",
	"SOLUSDT":   "solana",
	"DOTUSDT":   "polkadot",
	"DOGEUSDT":  "dogecoin",
	"AVAXUSDT":  "avalanche-2",
	"MATICUSDT": "matic-network",
	"LINKUSDT":  "chainlink",
	"LTCUSDT":   "litecoin",
}

// CoinGeckoID returns the coin id for a trading pair, if one is known.
func CoinGeckoID(symbol string) (string, bool) {
	id, ok := coinGeckoIDs[strings.ToUpper(symbol)]
	return id, ok
}

// CoinGeckoFetcher is the secondary ticker source. It makes one attempt per call.
type CoinGeckoFetcher struct {
	BaseURL string
	Client  *http.Client
}

// NewCoinGeckoFetcher creates a fetcher with optional proxy support.
func NewCoinGeckoFetcher(baseURL, proxyURL string, timeout time.Duration) *CoinGeckoFetcher {
	if baseURL == "" {
		baseURL = DefaultCoinGeckoURL
	}
	return &CoinGeckoFetcher{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  newHTTPClient(timeout, proxyURL),
	}
}

func (f *CoinGeckoFetcher) Name() string { return "coingecko" }

// FetchTicker converts a simple-price quote into a ticker. CoinGecko has no 24h
// range or open here, so high/low are estimated at +/-5% and open is derived from
// the 24h change.
func (f *CoinGeckoFetcher) FetchTicker(ctx context.Context, symbol string) (*model.Ticker, error) {
	id, ok := CoinGeckoID(symbol)
	if !ok {
		return nil, fmt.Errorf("coingecko %s: %w", symbol, ErrUnmappedSymbol)
	}

	q := url.Values{
		"ids":                 {id},
		"vs_currencies":       {"usd"},
		"include_24hr_change": {"true"},
		"include_24hr_vol":    {"true"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.BaseURL+"/api/v3/simple/price?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.Client.Do(req)
	if err != nil {
		metrics.RecordUpstream(f.Name(), "simple_price", "transport_error")
		return nil, fmt.Errorf("coingecko fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RecordUpstream(f.Name(), "simple_price", "transport_error")
		return nil, fmt.Errorf("coingecko read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.RecordUpstream(f.Name(), "simple_price", strconv.Itoa(resp.StatusCode))
		return nil, &StatusError{Provider: f.Name(), StatusCode: resp.StatusCode, Body: truncate(string(body), 200)}
	}
	metrics.RecordUpstream(f.Name(), "simple_price", "ok")

	var result map[string]struct {
		USD       *float64 `json:"usd"`
		Change24h float64  `json:"usd_24h_change"`
		Vol24h    *float64 `json:"usd_24h_vol"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, malformed(f.Name(), err)
	}
	quote, ok := result[id]
	if !ok || quote.USD == nil || *quote.USD <= 0 {
		return nil, malformed(f.Name(), fmt.Errorf("no usd price for %s", id))
	}

	price := *quote.USD
	volume := 1_000_000.0
	if quote.Vol24h != nil {
		volume = *quote.Vol24h
	}
	return &model.Ticker{
		Price:         price,
		Open24h:       price * (1 - quote.Change24h/100),
		High24h:       price * 1.05,
		Low24h:        price * 0.95,
		ChangePercent: quote.Change24h,
		Volume24h:     volume,
	}, nil
}
