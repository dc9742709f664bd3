package collector

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"CryptoSentinel/internal/model"
)

// TickerFetcher fetches the 24h ticker of a symbol.
type TickerFetcher interface {
	FetchTicker(ctx context.Context, symbol string) (*model.Ticker, error)
	Name() string
}

// CandleFetcher fetches the most recent `limit` candles of a symbol.
type CandleFetcher interface {
	FetchCandles(ctx context.Context, symbol, interval string, limit int) (model.CandleSeries, error)
}

// ScreenerFetcher lists the most traded pairs.
type ScreenerFetcher interface {
	FetchScreener(ctx context.Context, limit int) ([]model.ScreenerEntry, error)
}

// PrimaryFetcher is what the gateway needs from its primary upstream.
type PrimaryFetcher interface {
	TickerFetcher
	CandleFetcher
	ScreenerFetcher
}

func newHTTPClient(timeout time.Duration, proxyURL string) *http.Client {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
