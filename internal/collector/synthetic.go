package collector

import (
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"time"

	"CryptoSentinel/internal/model"
)

// SyntheticCandleCount is how many bars a synthetic series holds.
const SyntheticCandleCount = 100

var basePrices = map[string]float64{
	"BTCUSDT":   116000,
	"ETHUSDT":   3800,
	"BNBUSDT":   680,
	"ADAUSDT":   1.20,
	"XRPUSDT":   2.80,
	"SOLUSDT":   220,
	"DOTUSDT":   12.5,
	"DOGEUSDT":  0.42,
	"AVAXUSDT":  68,
	"MATICUSDT": 0.85,
	"LINKUSDT":  28,
	"LTCUSDT":   140,
}

func hashOf(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

// syntheticTicker produces a stable pseudo-ticker for a symbol and timeframe.
func syntheticTicker(symbol, timeframe string) model.Ticker {
	symbol = strings.ToUpper(symbol)
	base, ok := basePrices[symbol]
	if !ok {
		base = 1000
	}
	variation := 0.9 + 0.2*float64(hashOf(symbol+timeframe)%100)/100
	price := base * variation
	change := -10 + 20*float64(hashOf(symbol)%100)/100

	return model.Ticker{
		Price:         price,
		Open24h:       price * (1 - change/100),
		High24h:       price * 1.08,
		Low24h:        price * 0.92,
		ChangePercent: change,
		Volume24h:     float64(50000 + hashOf(symbol)%1_000_000),
	}
}

// syntheticCandles walks geometrically from 95% of price. Each step stays within
// +/-1% and depends only on the bar index and anchor price.
func syntheticCandles(price float64, count int, spacing time.Duration, now time.Time) model.CandleSeries {
	bars := make(model.CandleSeries, count)
	p := price * 0.95
	for i := 0; i < count; i++ {
		step := (float64(hashOf(fmt.Sprintf("%d_%g", i, price))%200) - 100) / 10000
		p *= 1 + step
		bars[i] = model.OHLCV{
			Time:   now.Add(-time.Duration(count-i) * spacing),
			Open:   p * 0.999,
			High:   p * (1 + math.Abs(step)*2),
			Low:    p * (1 - math.Abs(step)*2),
			Close:  p,
			Volume: float64(1_000_000 + hashOf(fmt.Sprintf("vol_%d", i))%500_000),
		}
	}
	return bars
}
