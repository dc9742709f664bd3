package model

import "time"

// OHLCV represents a single candlestick bar.
type OHLCV struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// CandleSeries is a chronological run of bars. It is never modified after a fetch.
type CandleSeries []OHLCV

// Closes returns the close prices in order.
func (s CandleSeries) Closes() []float64 {
	closes := make([]float64, len(s))
	for i, b := range s {
		closes[i] = b.Close
	}
	return closes
}

// Ticker is the 24h summary for a symbol as reported by an upstream.
type Ticker struct {
	Price         float64
	Open24h       float64
	High24h       float64
	Low24h        float64
	ChangePercent float64
	Volume24h     float64
}

// MarketSnapshot bundles everything fetched and derived for one symbol at one moment.
type MarketSnapshot struct {
	Symbol           string
	Timeframe        string
	Ticker           Ticker
	Candles          CandleSeries
	Indicators       IndicatorSet
	Source           string // "binance", "coingecko" or "synthetic"
	CandlesSynthetic bool
	FetchedAt        time.Time
}

// Price is the current price of the snapshot.
func (s *MarketSnapshot) Price() float64 {
	return s.Ticker.Price
}

// ScreenerEntry is one row of the market screener.
type ScreenerEntry struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Change24h float64 `json:"change_24h"`
	Volume24h float64 `json:"volume_24h"`
	High24h   float64 `json:"high_24h"`
	Low24h    float64 `json:"low_24h"`
}
