package strategy

import (
	"fmt"

	"CryptoSentinel/internal/model"
)

// vote is the outcome of one indicator check. An abstaining check has an empty Direction.
type vote struct {
	Category   string
	Direction  model.Direction
	Weight     float64
	Commentary string
}

func (v vote) cast() bool { return v.Direction != "" }

// checkRSI votes on overbought/oversold RSI.
// Weight: 0.8
func checkRSI(ind model.IndicatorSet) vote {
	v := vote{Category: model.RationaleRSI, Weight: 0.8}
	switch {
	case ind.RSI < 30:
		v.Direction = model.DirectionLong
		v.Commentary = fmt.Sprintf("Oversold (RSI: %.1f)", ind.RSI)
	case ind.RSI > 70:
		v.Direction = model.DirectionShort
		v.Commentary = fmt.Sprintf("Overbought (RSI: %.1f)", ind.RSI)
	default:
		v.Commentary = fmt.Sprintf("Neutral (RSI: %.1f)", ind.RSI)
	}
	return v
}

// checkMACD votes when line, signal and histogram agree.
// Weight: 0.7
func checkMACD(ind model.IndicatorSet) vote {
	v := vote{Category: model.RationaleMACD, Weight: 0.7}
	switch {
	case ind.MACD > ind.MACDSignal && ind.MACDHistogram > 0:
		v.Direction = model.DirectionLong
		v.Commentary = "Bullish crossover"
	case ind.MACD < ind.MACDSignal && ind.MACDHistogram < 0:
		v.Direction = model.DirectionShort
		v.Commentary = "Bearish crossover"
	default:
		v.Commentary = "No clear signal"
	}
	return v
}

// checkMovingAverages votes on EMA alignment.
// Bull alignment: price > EMA20 > EMA50
// Bear alignment: price < EMA20 < EMA50
// Weight: 0.6
func checkMovingAverages(ind model.IndicatorSet, price float64) vote {
	v := vote{Category: model.RationaleMA, Weight: 0.6}
	switch {
	case price > ind.EMA20 && ind.EMA20 > ind.EMA50:
		v.Direction = model.DirectionLong
		v.Commentary = "Price above moving averages"
	case price < ind.EMA20 && ind.EMA20 < ind.EMA50:
		v.Direction = model.DirectionShort
		v.Commentary = "Price below moving averages"
	default:
		v.Commentary = "Mixed signals from moving averages"
	}
	return v
}

// checkBollinger is contrarian: a break of a band votes for reversion.
// Weight: 0.5
func checkBollinger(ind model.IndicatorSet, price float64) vote {
	v := vote{Category: model.RationaleBB, Weight: 0.5}
	switch {
	case price > ind.BBUpper:
		v.Direction = model.DirectionShort
		v.Commentary = "Price above upper band (overbought)"
	case price < ind.BBLower:
		v.Direction = model.DirectionLong
		v.Commentary = "Price below lower band (oversold)"
	default:
		v.Commentary = "Price within bands (normal)"
	}
	return v
}

// checkTrend votes on a strong trend score.
// Weight: 0.4
func checkTrend(ind model.IndicatorSet) vote {
	v := vote{Category: model.RationaleTrend, Weight: 0.4}
	switch {
	case ind.TrendStrength > 70:
		v.Direction = model.DirectionLong
		v.Commentary = fmt.Sprintf("Strong uptrend (%.1f%%)", ind.TrendStrength)
	case ind.TrendStrength < 30:
		v.Direction = model.DirectionShort
		v.Commentary = fmt.Sprintf("Strong downtrend (%.1f%%)", ind.TrendStrength)
	default:
		v.Commentary = fmt.Sprintf("Neutral trend (%.1f%%)", ind.TrendStrength)
	}
	return v
}
