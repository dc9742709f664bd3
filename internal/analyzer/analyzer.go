package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"CryptoSentinel/internal/calculator"
	"CryptoSentinel/internal/collector"
	"CryptoSentinel/internal/metrics"
	"CryptoSentinel/internal/model"
	"CryptoSentinel/internal/strategy"
)

// ErrAnalysisFailed is returned when no analysis could be produced at all.
var ErrAnalysisFailed = errors.New("analysis failed")

// SnapshotSource provides market snapshots.
type SnapshotSource interface {
	FetchSnapshot(ctx context.Context, symbol, timeframe string) collector.Result
}

// SignalSink records produced signals.
type SignalSink interface {
	AppendSignal(ctx context.Context, sig model.Signal) error
}

// Range is where the price sits within the fetched candle window.
type Range struct {
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Position float64 `json:"position"` // 0 ~ 1
}

// Analysis is the result of an explicit analysis request.
type Analysis struct {
	Snapshot   model.MarketSnapshot `json:"snapshot"`
	Signal     model.Signal         `json:"signal"`
	Provenance string               `json:"provenance"`
	Range      Range                `json:"range"`
}

// Analyzer runs snapshot -> indicators -> signal for one symbol.
type Analyzer struct {
	Gateway SnapshotSource
	History SignalSink
}

func New(gw SnapshotSource, history SignalSink) *Analyzer {
	return &Analyzer{Gateway: gw, History: history}
}

// Analyze fetches a snapshot and scores it. Upstream trouble degrades to synthetic
// data rather than an error; only a missing symbol or a finished ctx fails.
func (a *Analyzer) Analyze(ctx context.Context, symbol, timeframe string) (Analysis, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return Analysis{}, fmt.Errorf("empty symbol: %w", ErrAnalysisFailed)
	}
	if err := ctx.Err(); err != nil {
		return Analysis{}, fmt.Errorf("%s: %w: %v", symbol, ErrAnalysisFailed, err)
	}

	res := a.Gateway.FetchSnapshot(ctx, symbol, timeframe)
	if err := ctx.Err(); err != nil {
		return Analysis{}, fmt.Errorf("%s: %w: %v", symbol, ErrAnalysisFailed, err)
	}

	sig := strategy.Score(res.Snapshot)
	metrics.RecordSignal(sig.Symbol, string(sig.Direction), sig.Confidence)
	log.Printf("[INFO] Analysis %s (%s)", strategy.Summary(sig), res.Provenance)

	if a.History != nil {
		if err := a.History.AppendSignal(ctx, sig); err != nil {
			log.Printf("[ERROR] Record signal %s: %v", sig.ID, err)
			metrics.RecordError("history")
		}
	}

	return Analysis{
		Snapshot:   res.Snapshot,
		Signal:     sig,
		Provenance: res.Provenance.String(),
		Range:      candleRange(res.Snapshot),
	}, nil
}

func candleRange(snap model.MarketSnapshot) Range {
	high, low, err := calculator.CalculateRange(snap.Candles, 0)
	if err != nil {
		return Range{High: snap.Price(), Low: snap.Price(), Position: 0.5}
	}
	pos, err := calculator.CalculateRangePosition(snap.Price(), high, low)
	if err != nil {
		log.Printf("[WARN] Range position for %s failed: %v", snap.Symbol, err)
		pos = 0.5
	}
	return Range{High: high, Low: low, Position: pos}
}
