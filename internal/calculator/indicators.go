package calculator

import (
	"log"

	"CryptoSentinel/internal/model"
)

// MinBars is the shortest series that gets a full indicator computation.
const MinBars = 50

const (
	rsiPeriod       = 14
	bollingerPeriod = 20
	bollingerK      = 2.0
)

// Compute derives the full IndicatorSet from a candle series. Series shorter than
// MinBars get model.DefaultIndicators.
func Compute(series model.CandleSeries) model.IndicatorSet {
	if len(series) < MinBars {
		log.Printf("[WARN] only %d bars, need %d for technical analysis; using defaults", len(series), MinBars)
		return model.DefaultIndicators()
	}

	closes := extractCloses(series)
	price := closes[len(closes)-1]
	ind := model.IndicatorSet{}

	if rsi, err := CalculateRSI(closes, rsiPeriod); err != nil {
		log.Printf("[WARN] RSI calculation failed: %v, defaulting to 50", err)
		ind.RSI = 50
	} else {
		ind.RSI = rsi
	}

	if sma, err := CalculateSMA(closes, 20); err != nil {
		log.Printf("[WARN] SMA20 calculation failed: %v", err)
	} else {
		ind.SMA20 = sma
	}
	if sma, err := CalculateSMA(closes, 50); err != nil {
		ind.SMA50 = mean(closes)
	} else {
		ind.SMA50 = sma
	}

	ind.EMA20 = CalculateEMA(closes, 20)
	ind.EMA50 = CalculateEMA(closes, 50)
	ind.MACD, ind.MACDSignal, ind.MACDHistogram = CalculateMACD(closes)
	ind.BBUpper, ind.BBMiddle, ind.BBLower = CalculateBollinger(closes, bollingerPeriod, bollingerK)
	ind.TrendStrength = CalculateTrendStrength(closes)

	ind.PricePosition = model.PricePosition{
		AboveSMA20: price > ind.SMA20,
		AboveSMA50: price > ind.SMA50,
		AboveEMA20: price > ind.EMA20,
		AboveEMA50: price > ind.EMA50,
	}
	return ind
}
