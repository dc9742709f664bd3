package calculator

import "math"

// CalculateBollinger returns the upper, middle and lower bands using the population
// standard deviation of the last `period` closes. With fewer closes all three bands
// collapse to the mean of what is available.
func CalculateBollinger(closes []float64, period int, k float64) (upper, middle, lower float64) {
	if len(closes) < period || period <= 0 {
		avg := mean(closes)
		return avg, avg, avg
	}

	window := closes[len(closes)-period:]
	sma := mean(window)
	variance := 0.0
	for _, c := range window {
		d := c - sma
		variance += d * d
	}
	std := math.Sqrt(variance / float64(period))

	return sma + k*std, sma, sma - k*std
}
