package calculator

const (
	macdFast   = 12
	macdSlow   = 26
	macdSignal = 9
)

// CalculateMACD returns the MACD line, its 9-period signal and the histogram.
// All three are zero with fewer than 26 closes. The signal is an EMA over the MACD-line
// values of every prefix ending at index 26 or later; it stays zero until nine of those exist.
func CalculateMACD(closes []float64) (line, signal, histogram float64) {
	if len(closes) < macdSlow {
		return 0, 0, 0
	}

	fast := emaSeries(closes, macdFast)
	slow := emaSeries(closes, macdSlow)
	n := len(closes)
	line = fast[n-1] - slow[n-1]

	history := make([]float64, 0, n-macdSlow)
	for i := macdSlow; i < n; i++ {
		history = append(history, fast[i]-slow[i])
	}
	if len(history) >= macdSignal {
		signal = CalculateEMA(history, macdSignal)
	}

	return line, signal, line - signal
}
