package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"CryptoSentinel/internal/metrics"
	"CryptoSentinel/internal/model"
)

// DefaultBinanceURL is the public Binance REST root.
const DefaultBinanceURL = "https://api.binance.com"

// intervals accepted by the klines endpoint; anything else is treated as 1h.
var intervals = map[string]time.Duration{
	"1m":  time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"2h":  2 * time.Hour,
	"4h":  4 * time.Hour,
	"6h":  6 * time.Hour,
	"8h":  8 * time.Hour,
	"12h": 12 * time.Hour,
	"1d":  24 * time.Hour,
	"3d":  72 * time.Hour,
	"1w":  7 * 24 * time.Hour,
}

// NormalizeInterval maps a timeframe onto a supported kline interval.
func NormalizeInterval(timeframe string) string {
	if _, ok := intervals[timeframe]; ok {
		return timeframe
	}
	return "1h"
}

// IntervalDuration is the bar length of a timeframe.
func IntervalDuration(timeframe string) time.Duration {
	return intervals[NormalizeInterval(timeframe)]
}

// BinanceFetcher implements PrimaryFetcher against the Binance spot REST API.
type BinanceFetcher struct {
	BaseURL string
	Client  *http.Client
	Retry   RetryPolicy
}

// NewBinanceFetcher creates a fetcher with optional proxy support.
func NewBinanceFetcher(baseURL, proxyURL string, timeout time.Duration, retry RetryPolicy) *BinanceFetcher {
	if baseURL == "" {
		baseURL = DefaultBinanceURL
	}
	return &BinanceFetcher{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  newHTTPClient(timeout, proxyURL),
		Retry:   retry,
	}
}

func (f *BinanceFetcher) Name() string { return "binance" }

type binanceTicker struct {
	Symbol             string `json:"symbol"`
	PriceChangePercent string `json:"priceChangePercent"`
	LastPrice          string `json:"lastPrice"`
	OpenPrice          string `json:"openPrice"`
	HighPrice          string `json:"highPrice"`
	LowPrice           string `json:"lowPrice"`
	Volume             string `json:"volume"`
	QuoteVolume        string `json:"quoteVolume"`
}

func (t *binanceTicker) toModel() (*model.Ticker, error) {
	var (
		out model.Ticker
		err error
	)
	fields := []struct {
		raw string
		dst *float64
	}{
		{t.LastPrice, &out.Price},
		{t.OpenPrice, &out.Open24h},
		{t.HighPrice, &out.High24h},
		{t.LowPrice, &out.Low24h},
		{t.PriceChangePercent, &out.ChangePercent},
		{t.Volume, &out.Volume24h},
	}
	for _, fd := range fields {
		if *fd.dst, err = strconv.ParseFloat(fd.raw, 64); err != nil {
			return nil, err
		}
	}
	if out.Price <= 0 {
		return nil, fmt.Errorf("non-positive last price %q", t.LastPrice)
	}
	return &out, nil
}

// FetchTicker returns the 24h ticker for a symbol, retrying per the fetcher's policy.
func (f *BinanceFetcher) FetchTicker(ctx context.Context, symbol string) (*model.Ticker, error) {
	q := url.Values{"symbol": {strings.ToUpper(symbol)}}
	var ticker *model.Ticker
	err := f.Retry.do(ctx, "binance ticker "+symbol, func() error {
		body, err := f.get(ctx, "ticker", "/api/v3/ticker/24hr", q)
		if err != nil {
			return err
		}
		var raw binanceTicker
		if err := json.Unmarshal(body, &raw); err != nil {
			return malformed(f.Name(), err)
		}
		t, err := raw.toModel()
		if err != nil {
			return malformed(f.Name(), err)
		}
		ticker = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ticker, nil
}

// FetchCandles returns up to `limit` klines in chronological order.
func (f *BinanceFetcher) FetchCandles(ctx context.Context, symbol, interval string, limit int) (model.CandleSeries, error) {
	q := url.Values{
		"symbol":   {strings.ToUpper(symbol)},
		"interval": {NormalizeInterval(interval)},
		"limit":    {strconv.Itoa(limit)},
	}
	var bars model.CandleSeries
	err := f.Retry.do(ctx, "binance klines "+symbol, func() error {
		body, err := f.get(ctx, "klines", "/api/v3/klines", q)
		if err != nil {
			return err
		}
		parsed, err := parseKlines(body)
		if err != nil {
			return malformed(f.Name(), err)
		}
		bars = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return bars, nil
}

// parseKlines decodes Binance's positional kline arrays:
// [openTime, open, high, low, close, volume, closeTime, ...].
func parseKlines(body []byte) (model.CandleSeries, error) {
	var rows [][]json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, err
	}
	bars := make(model.CandleSeries, 0, len(rows))
	for i, row := range rows {
		if len(row) < 6 {
			return nil, fmt.Errorf("kline %d has %d fields", i, len(row))
		}
		var openTime int64
		if err := json.Unmarshal(row[0], &openTime); err != nil {
			return nil, fmt.Errorf("kline %d open time: %w", i, err)
		}
		var vals [5]float64
		for j := 0; j < 5; j++ {
			var s string
			if err := json.Unmarshal(row[j+1], &s); err != nil {
				return nil, fmt.Errorf("kline %d field %d: %w", i, j+1, err)
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("kline %d field %d: %w", i, j+1, err)
			}
			vals[j] = v
		}
		bars = append(bars, model.OHLCV{
			Time:   time.UnixMilli(openTime),
			Open:   vals[0],
			High:   vals[1],
			Low:    vals[2],
			Close:  vals[3],
			Volume: vals[4],
		})
	}
	// Ensure chronological order
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return bars, nil
}

// FetchScreener lists USDT pairs with more than 1M base volume, ordered by quote volume.
func (f *BinanceFetcher) FetchScreener(ctx context.Context, limit int) ([]model.ScreenerEntry, error) {
	body, err := f.get(ctx, "screener", "/api/v3/ticker/24hr", nil)
	if err != nil {
		return nil, err
	}
	var raw []binanceTicker
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, malformed(f.Name(), err)
	}

	type ranked struct {
		entry model.ScreenerEntry
		quote float64
	}
	var pairs []ranked
	for _, r := range raw {
		if !strings.HasSuffix(r.Symbol, "USDT") {
			continue
		}
		t, err := r.toModel()
		if err != nil || t.Volume24h <= 1_000_000 {
			continue
		}
		quote, _ := strconv.ParseFloat(r.QuoteVolume, 64)
		pairs = append(pairs, ranked{
			entry: model.ScreenerEntry{
				Symbol:    r.Symbol,
				Price:     t.Price,
				Change24h: t.ChangePercent,
				Volume24h: quote,
				High24h:   t.High24h,
				Low24h:    t.Low24h,
			},
			quote: quote,
		})
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].quote > pairs[j].quote })
	if limit > 0 && len(pairs) > limit {
		pairs = pairs[:limit]
	}

	out := make([]model.ScreenerEntry, len(pairs))
	for i, p := range pairs {
		out[i] = p.entry
	}
	return out, nil
}

func (f *BinanceFetcher) get(ctx context.Context, endpoint, path string, q url.Values) ([]byte, error) {
	u := f.BaseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.Client.Do(req)
	if err != nil {
		metrics.RecordUpstream(f.Name(), endpoint, "transport_error")
		return nil, fmt.Errorf("binance fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RecordUpstream(f.Name(), endpoint, "transport_error")
		return nil, fmt.Errorf("binance read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.RecordUpstream(f.Name(), endpoint, strconv.Itoa(resp.StatusCode))
		return nil, &StatusError{Provider: f.Name(), StatusCode: resp.StatusCode, Body: truncate(string(body), 200)}
	}
	metrics.RecordUpstream(f.Name(), endpoint, "ok")
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
