package strategy

import (
	"fmt"
	"log"
	"math"
	"time"

	"CryptoSentinel/internal/model"

	"github.com/google/uuid"
)

// Risk multipliers applied to the 24h range.
const (
	StopLossRangeMultiple   = 1.5
	TakeProfitRangeMultiple = 2.5
	// FallbackRangePercent is used when the 24h range is zero.
	FallbackRangePercent = 0.02
	// NeutralConfidence is reported when votes are tied.
	NeutralConfidence = 30.0
)

// Now is the clock used to stamp signals.
var Now = time.Now

// Score derives a trading signal from a snapshot. It never fails: any internal
// error yields the default NEUTRAL signal at the current price.
func Score(snap model.MarketSnapshot) (sig model.Signal) {
	price := snap.Price()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[ERROR] Signal scoring for %s panicked: %v", snap.Symbol, r)
			sig = DefaultSignal(snap)
		}
	}()

	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		log.Printf("[WARN] Signal scoring for %s skipped: invalid price %v", snap.Symbol, price)
		return DefaultSignal(snap)
	}

	ind := snap.Indicators
	votes := []vote{
		checkRSI(ind),
		checkMACD(ind),
		checkMovingAverages(ind, price),
		checkBollinger(ind, price),
		checkTrend(ind),
	}

	direction, confidence, strength := tally(votes)
	tp, sl, rr := riskLevels(snap.Ticker, direction)

	rationale := make(map[string]string, len(votes))
	for _, v := range votes {
		rationale[v.Category] = v.Commentary
	}

	return model.Signal{
		ID:              uuid.NewString(),
		Symbol:          snap.Symbol,
		Timeframe:       snap.Timeframe,
		Direction:       direction,
		Confidence:      confidence,
		Strength:        strength,
		EntryPrice:      price,
		TakeProfit:      tp,
		StopLoss:        sl,
		RiskRewardRatio: rr,
		Rationale:       rationale,
		Indicators:      ind,
		Volume24h:       snap.Ticker.Volume24h,
		CreatedAt:       Now(),
	}
}

// tally applies a simple majority. Confidence is the winning side's weight over the
// number of checks that voted at all.
func tally(votes []vote) (model.Direction, float64, int) {
	var (
		cast              int
		longs, shorts     int
		longSum, shortSum float64
	)
	for _, v := range votes {
		if !v.cast() {
			continue
		}
		cast++
		switch v.Direction {
		case model.DirectionLong:
			longs++
			longSum += v.Weight
		case model.DirectionShort:
			shorts++
			shortSum += v.Weight
		}
	}

	switch {
	case longs > shorts:
		return model.DirectionLong, round(longSum/float64(cast)*100, 1), longs
	case shorts > longs:
		return model.DirectionShort, round(shortSum/float64(cast)*100, 1), shorts
	default:
		// strength counts NEUTRAL votes, of which there are none
		return model.DirectionNeutral, NeutralConfidence, 0
	}
}

// riskLevels sizes TP/SL from the 24h range.
func riskLevels(t model.Ticker, direction model.Direction) (tp, sl, rr float64) {
	price := t.Price
	rng := math.Abs(t.High24h - t.Low24h)
	if rng == 0 || math.IsNaN(rng) {
		rng = price * FallbackRangePercent
	}

	switch direction {
	case model.DirectionLong:
		sl = price - rng*StopLossRangeMultiple
		tp = price + rng*TakeProfitRangeMultiple
	case model.DirectionShort:
		sl = price + rng*StopLossRangeMultiple
		tp = price - rng*TakeProfitRangeMultiple
	default:
		return price, price, 0
	}

	risk := math.Abs(price - sl)
	reward := math.Abs(tp - price)
	if risk > 0 {
		rr = round(reward/risk, 2)
	}
	return tp, sl, rr
}

// DefaultSignal is the NEUTRAL, zero-confidence signal used when scoring fails.
func DefaultSignal(snap model.MarketSnapshot) model.Signal {
	price := snap.Price()
	rationale := map[string]string{}
	for _, k := range []string{model.RationaleRSI, model.RationaleMACD, model.RationaleMA, model.RationaleBB, model.RationaleTrend} {
		rationale[k] = "Unable to calculate"
	}
	return model.Signal{
		ID:         uuid.NewString(),
		Symbol:     snap.Symbol,
		Timeframe:  snap.Timeframe,
		Direction:  model.DirectionNeutral,
		EntryPrice: price,
		TakeProfit: price,
		StopLoss:   price,
		Rationale:  rationale,
		Indicators: snap.Indicators,
		Volume24h:  snap.Ticker.Volume24h,
		CreatedAt:  Now(),
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// Summary is a one-line description of a signal for logs.
func Summary(sig model.Signal) string {
	return fmt.Sprintf("%s %s %s conf=%.1f%% strength=%d entry=%.8g tp=%.8g sl=%.8g rr=%.2f",
		sig.Symbol, sig.Timeframe, sig.Direction, sig.Confidence, sig.Strength,
		sig.EntryPrice, sig.TakeProfit, sig.StopLoss, sig.RiskRewardRatio)
}
