package calculator

import (
	"errors"

	"CryptoSentinel/internal/model"
)

// CalculateSMA computes the simple moving average of the given prices over the specified period.
func CalculateSMA(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(prices) < period {
		return 0, errors.New("not enough data for SMA calculation")
	}
	sum := 0.0
	for i := len(prices) - period; i < len(prices); i++ {
		sum += prices[i]
	}
	return sum / float64(period), nil
}

// CalculateEMA returns the exponential moving average over the whole series. It is seeded
// with the SMA of the first `period` prices. With fewer prices than the period it falls
// back to the plain mean of everything available.
func CalculateEMA(prices []float64, period int) float64 {
	series := emaSeries(prices, period)
	if len(series) == 0 {
		return 0
	}
	return series[len(series)-1]
}

// emaSeries returns, for every prefix prices[:i+1], the EMA that CalculateEMA would give
// for that prefix. It runs in a single pass.
func emaSeries(prices []float64, period int) []float64 {
	if len(prices) == 0 || period <= 0 {
		return nil
	}
	out := make([]float64, len(prices))
	k := 2.0 / float64(period+1)
	sum := 0.0
	var ema float64
	for i, p := range prices {
		switch {
		case i < period:
			sum += p
			ema = sum / float64(i+1)
		default:
			ema = p*k + ema*(1-k)
		}
		out[i] = ema
	}
	return out
}

func mean(prices []float64) float64 {
	if len(prices) == 0 {
		return 0
	}
	sum := 0.0
	for _, p := range prices {
		sum += p
	}
	return sum / float64(len(prices))
}

func extractCloses(bars []model.OHLCV) []float64 {
	return model.CandleSeries(bars).Closes()
}
