package collector

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"CryptoSentinel/internal/calculator"
	"CryptoSentinel/internal/metrics"
	"CryptoSentinel/internal/model"
)

// CandleLimit is how many klines a snapshot asks for.
const CandleLimit = 100

// Provenance tells whether a snapshot's price came from an upstream or was synthesized.
type Provenance int

const (
	Real Provenance = iota
	Synthetic
)

func (p Provenance) String() string {
	if p == Synthetic {
		return "synthetic"
	}
	return "real"
}

// Result is the outcome of a snapshot fetch. It always carries a usable snapshot.
type Result struct {
	Provenance Provenance
	Snapshot   model.MarketSnapshot
}

// PopularSymbols is used when the screener cannot reach the primary upstream.
var PopularSymbols = []string{
	"BTCUSDT", "ETHUSDT", "BNBUSDT", "ADAUSDT", "XRPUSDT",
	"SOLUSDT", "DOTUSDT", "DOGEUSDT", "AVAXUSDT", "LUNAUSDT",
	"MATICUSDT", "LINKUSDT", "LTCUSDT", "UNIUSDT", "ATOMUSDT",
	"FTMUSDT", "AXSUSDT", "SANDUSDT", "MANAUSDT", "GALAUSDT",
}

// Gateway resolves market snapshots through primary, secondary and synthetic sources.
type Gateway struct {
	Primary   PrimaryFetcher
	Secondary TickerFetcher
	Now       func() time.Time
}

// NewGateway creates a gateway. secondary may be nil.
func NewGateway(primary PrimaryFetcher, secondary TickerFetcher) *Gateway {
	return &Gateway{Primary: primary, Secondary: secondary, Now: time.Now}
}

func (g *Gateway) now() time.Time {
	if g.Now == nil {
		return time.Now()
	}
	return g.Now()
}

// FetchSnapshot never fails: upstream errors are logged and absorbed by the next source.
func (g *Gateway) FetchSnapshot(ctx context.Context, symbol, timeframe string) (res Result) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	timeframe = NormalizeInterval(timeframe)

	defer func() {
		if r := recover(); r != nil {
			log.Printf("[ERROR] snapshot %s/%s panicked: %v, using synthetic data", symbol, timeframe, r)
			metrics.RecordError("gateway")
			res = g.synthetic(symbol, timeframe)
		}
		metrics.RecordSnapshot(res.Provenance.String(), symbol, res.Snapshot.Price())
	}()

	ticker, source, err := g.resolveTicker(ctx, symbol)
	if err != nil {
		log.Printf("[WARN] All upstreams failed for %s: %v, using synthetic data", symbol, err)
		return g.synthetic(symbol, timeframe)
	}

	candles, synthetic := g.resolveCandles(ctx, symbol, timeframe, ticker.Price)
	snap := model.MarketSnapshot{
		Symbol:           symbol,
		Timeframe:        timeframe,
		Ticker:           *ticker,
		Candles:          candles,
		Indicators:       calculator.Compute(candles),
		Source:           source,
		CandlesSynthetic: synthetic,
		FetchedAt:        g.now(),
	}
	return Result{Provenance: Real, Snapshot: snap}
}

func (g *Gateway) resolveTicker(ctx context.Context, symbol string) (*model.Ticker, string, error) {
	var errs []string

	if g.Primary != nil {
		t, err := g.Primary.FetchTicker(ctx, symbol)
		if err == nil && validPrice(t.Price) {
			return t, g.Primary.Name(), nil
		}
		if err == nil {
			err = fmt.Errorf("invalid price %v", t.Price)
		}
		log.Printf("[WARN] %s ticker for %s failed: %v", g.Primary.Name(), symbol, err)
		errs = append(errs, err.Error())
	}

	if g.Secondary != nil {
		t, err := g.Secondary.FetchTicker(ctx, symbol)
		if err == nil && validPrice(t.Price) {
			return t, g.Secondary.Name(), nil
		}
		if err == nil {
			err = fmt.Errorf("invalid price %v", t.Price)
		}
		log.Printf("[WARN] %s ticker for %s failed: %v", g.Secondary.Name(), symbol, err)
		errs = append(errs, err.Error())
	}

	return nil, "", fmt.Errorf("no ticker source succeeded: %s", strings.Join(errs, "; "))
}

func (g *Gateway) resolveCandles(ctx context.Context, symbol, timeframe string, price float64) (model.CandleSeries, bool) {
	if g.Primary != nil {
		bars, err := g.Primary.FetchCandles(ctx, symbol, timeframe, CandleLimit)
		if err == nil && len(bars) > 0 {
			return bars, false
		}
		if err == nil {
			err = fmt.Errorf("empty kline list")
		}
		log.Printf("[WARN] Candles for %s/%s unavailable: %v, synthesizing around %.8g", symbol, timeframe, err, price)
	}
	return syntheticCandles(price, SyntheticCandleCount, IntervalDuration(timeframe), g.now()), true
}

func (g *Gateway) synthetic(symbol, timeframe string) Result {
	ticker := syntheticTicker(symbol, timeframe)
	candles := syntheticCandles(ticker.Price, SyntheticCandleCount, IntervalDuration(timeframe), g.now())
	return Result{
		Provenance: Synthetic,
		Snapshot: model.MarketSnapshot{
			Symbol:           symbol,
			Timeframe:        timeframe,
			Ticker:           ticker,
			Candles:          candles,
			Indicators:       calculator.Compute(candles),
			Source:           "synthetic",
			CandlesSynthetic: true,
			FetchedAt:        g.now(),
		},
	}
}

// Screener returns the most traded USDT pairs, or a synthetic list of popular pairs
// when the primary upstream is unavailable.
func (g *Gateway) Screener(ctx context.Context, limit int) []model.ScreenerEntry {
	if limit <= 0 {
		limit = 20
	}
	if g.Primary != nil {
		entries, err := g.Primary.FetchScreener(ctx, limit)
		if err == nil && len(entries) > 0 {
			log.Printf("[INFO] Screener fetched %d symbols from %s", len(entries), g.Primary.Name())
			return entries
		}
		log.Printf("[WARN] Screener fetch failed: %v, using fallback list", err)
	}

	n := limit
	if n > len(PopularSymbols) {
		n = len(PopularSymbols)
	}
	out := make([]model.ScreenerEntry, 0, n)
	for _, sym := range PopularSymbols[:n] {
		t := syntheticTicker(sym, "1h")
		out = append(out, model.ScreenerEntry{
			Symbol:    sym,
			Price:     t.Price,
			Change24h: t.ChangePercent,
			Volume24h: t.Volume24h,
			High24h:   t.High24h,
			Low24h:    t.Low24h,
		})
	}
	return out
}

func validPrice(p float64) bool {
	return p > 0 && !math.IsNaN(p) && !math.IsInf(p, 0)
}
