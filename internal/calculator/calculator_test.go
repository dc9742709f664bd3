package calculator

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"CryptoSentinel/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func barsFromCloses(closes []float64) model.CandleSeries {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make(model.CandleSeries, len(closes))
	for i, c := range closes {
		bars[i] = model.OHLCV{
			Time:   start.Add(time.Duration(i) * time.Hour),
			Open:   c,
			High:   c * 1.01,
			Low:    c * 0.99,
			Close:  c,
			Volume: 1000,
		}
	}
	return bars
}

func flatCloses(n int, price float64) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = price
	}
	return closes
}

func risingCloses(n int, from, to float64) []float64 {
	closes := make([]float64, n)
	step := (to - from) / float64(n-1)
	for i := range closes {
		closes[i] = from + float64(i)*step
	}
	return closes
}

func TestCompute_ShortSeriesReturnsDefaults(t *testing.T) {
	for _, n := range []int{0, 1, 20, 49} {
		got := Compute(barsFromCloses(risingCloses(max(n, 2), 100, 200)[:n]))
		assert.Equal(t, model.DefaultIndicators(), got, "n=%d", n)
	}
	def := model.DefaultIndicators()
	assert.Equal(t, 50.0, def.RSI)
	assert.Equal(t, 50.0, def.TrendStrength)
	assert.Zero(t, def.BBUpper)
	assert.False(t, def.PricePosition.AboveEMA20)
}

func TestCompute_FlatSeries(t *testing.T) {
	ind := Compute(barsFromCloses(flatCloses(60, 250)))

	assert.InDelta(t, 0, ind.MACD, 1e-9)
	assert.InDelta(t, 0, ind.MACDSignal, 1e-9)
	assert.InDelta(t, 0, ind.MACDHistogram, 1e-9)
	assert.InDelta(t, 250, ind.BBUpper, 1e-9)
	assert.InDelta(t, 250, ind.BBMiddle, 1e-9)
	assert.InDelta(t, 250, ind.BBLower, 1e-9)
	// No losses in the window: the zero-loss branch wins over the neutral default.
	assert.Equal(t, 100.0, ind.RSI)
	assert.Equal(t, 50.0, ind.TrendStrength)
}

func TestCompute_MonotonicRise(t *testing.T) {
	ind := Compute(barsFromCloses(risingCloses(100, 100, 200)))

	assert.InDelta(t, 100, ind.RSI, 0.01)
	assert.Greater(t, ind.TrendStrength, 60.0)
	assert.Greater(t, ind.MACD, 0.0)
	assert.Greater(t, ind.EMA20, ind.EMA50)
	assert.True(t, ind.PricePosition.AboveSMA20)
	assert.True(t, ind.PricePosition.AboveEMA50)
}

func TestCalculateRSI(t *testing.T) {
	rsi, err := CalculateRSI([]float64{1, 2, 3}, 14)
	require.NoError(t, err)
	assert.Equal(t, 50.0, rsi)

	// Seven +2 moves and seven -1 moves: avg gain 1, avg loss 0.5, RS 2.
	closes := []float64{100}
	for i := 0; i < 14; i++ {
		last := closes[len(closes)-1]
		if i%2 == 0 {
			closes = append(closes, last+2)
		} else {
			closes = append(closes, last-1)
		}
	}
	rsi, err = CalculateRSI(closes, 14)
	require.NoError(t, err)
	assert.InDelta(t, 66.67, rsi, 0.001)

	_, err = CalculateRSI(closes, 0)
	assert.Error(t, err)
}

func TestCalculateEMA(t *testing.T) {
	assert.InDelta(t, 2.0, CalculateEMA([]float64{1, 2, 3}, 5), 1e-12)
	// Seed SMA(1,2,3)=2, then 4*0.5 + 2*0.5.
	assert.InDelta(t, 3.0, CalculateEMA([]float64{1, 2, 3, 4}, 3), 1e-12)
	assert.Zero(t, CalculateEMA(nil, 3))
}

func TestCalculateSMA(t *testing.T) {
	sma, err := CalculateSMA([]float64{1, 2, 3, 4}, 2)
	require.NoError(t, err)
	assert.Equal(t, 3.5, sma)

	_, err = CalculateSMA([]float64{1}, 2)
	assert.Error(t, err)
}

func TestCalculateBollinger(t *testing.T) {
	upper, middle, lower := CalculateBollinger(risingCloses(20, 1, 20), 20, 2)
	std := math.Sqrt(399.0 / 12.0)
	assert.InDelta(t, 10.5, middle, 1e-9)
	assert.InDelta(t, 10.5+2*std, upper, 1e-9)
	assert.InDelta(t, 10.5-2*std, lower, 1e-9)

	upper, middle, lower = CalculateBollinger([]float64{1, 2, 3}, 20, 2)
	assert.Equal(t, 2.0, upper)
	assert.Equal(t, 2.0, middle)
	assert.Equal(t, 2.0, lower)
}

func TestCalculateMACD_ShortSeries(t *testing.T) {
	line, signal, hist := CalculateMACD(risingCloses(25, 1, 25))
	assert.Zero(t, line)
	assert.Zero(t, signal)
	assert.Zero(t, hist)
}

func TestCalculateMACD_SignalNeedsNineValues(t *testing.T) {
	// 30 closes give only 4 MACD-line values from index 26 on.
	line, signal, hist := CalculateMACD(risingCloses(30, 1, 30))
	assert.NotZero(t, line)
	assert.Zero(t, signal)
	assert.Equal(t, line, hist)
}

func TestCalculateTrendStrength(t *testing.T) {
	assert.Equal(t, 50.0, CalculateTrendStrength(risingCloses(19, 1, 19)))

	// Older ten at 100, recent ten at 102: +2% -> 70.
	closes := append(flatCloses(10, 100), flatCloses(10, 102)...)
	assert.InDelta(t, 70, CalculateTrendStrength(closes), 1e-9)

	// -20% clamps to 0.
	closes = append(flatCloses(10, 100), flatCloses(10, 80)...)
	assert.Equal(t, 0.0, CalculateTrendStrength(closes))
}

func TestIndicatorBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for run := 0; run < 200; run++ {
		closes := make([]float64, 50+rng.Intn(100))
		price := 10 + rng.Float64()*1000
		for i := range closes {
			price *= 1 + (rng.Float64()-0.5)*0.1
			closes[i] = price
		}
		ind := Compute(barsFromCloses(closes))
		assert.GreaterOrEqual(t, ind.RSI, 0.0)
		assert.LessOrEqual(t, ind.RSI, 100.0)
		assert.GreaterOrEqual(t, ind.TrendStrength, 0.0)
		assert.LessOrEqual(t, ind.TrendStrength, 100.0)
		assert.GreaterOrEqual(t, ind.BBUpper, ind.BBLower)
	}
}

func TestCalculateRange(t *testing.T) {
	bars := barsFromCloses([]float64{10, 12, 8, 15, 11})
	high, low, err := CalculateRange(bars, 0)
	require.NoError(t, err)
	assert.Equal(t, bars[3].High, high)
	assert.Equal(t, bars[2].Low, low)

	high, low, err = CalculateRange(bars, 2)
	require.NoError(t, err)
	assert.Equal(t, bars[3].High, high)
	assert.Equal(t, bars[4].Low, low)

	_, _, err = CalculateRange(nil, 10)
	assert.Error(t, err)
}

func TestCalculateRangePosition(t *testing.T) {
	pos, err := CalculateRangePosition(150, 200, 100)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, pos, 1e-9)

	pos, _ = CalculateRangePosition(250, 200, 100)
	assert.Equal(t, 1.0, pos)
	pos, _ = CalculateRangePosition(50, 200, 100)
	assert.Equal(t, 0.0, pos)
	pos, _ = CalculateRangePosition(100, 100, 100)
	assert.Equal(t, 0.5, pos)

	_, err = CalculateRangePosition(100, 90, 110)
	assert.Error(t, err)
}
