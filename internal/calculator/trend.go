package calculator

// CalculateTrendStrength compares the mean of the last 10 closes with the mean of the
// 10 before them. A flat market scores 50 and each 1% move shifts the score by 10,
// clamped to [0, 100]. Fewer than 20 closes score 50.
func CalculateTrendStrength(closes []float64) float64 {
	n := len(closes)
	if n < 20 {
		return 50.0
	}

	recent := mean(closes[n-10:])
	older := mean(closes[n-20 : n-10])
	if older == 0 {
		return 50.0
	}

	pct := (recent - older) / older * 100
	strength := 50 + pct*10
	if strength < 0 {
		strength = 0
	}
	if strength > 100 {
		strength = 100
	}
	return round(strength, 2)
}
