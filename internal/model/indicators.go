package model

// IndicatorSet holds all computed technical indicators for a candle series.
type IndicatorSet struct {
	RSI           float64       `json:"rsi"`
	SMA20         float64       `json:"sma_20"`
	SMA50         float64       `json:"sma_50"`
	EMA20         float64       `json:"ema_20"`
	EMA50         float64       `json:"ema_50"`
	MACD          float64       `json:"macd"`
	MACDSignal    float64       `json:"macd_signal"`
	MACDHistogram float64       `json:"macd_histogram"`
	BBUpper       float64       `json:"bb_upper"`
	BBMiddle      float64       `json:"bb_middle"`
	BBLower       float64       `json:"bb_lower"`
	TrendStrength float64       `json:"trend_strength"` // 0 ~ 100
	PricePosition PricePosition `json:"price_position"`
}

// PricePosition records where the last close sits relative to the moving averages.
type PricePosition struct {
	AboveSMA20 bool `json:"above_sma20"`
	AboveSMA50 bool `json:"above_sma50"`
	AboveEMA20 bool `json:"above_ema20"`
	AboveEMA50 bool `json:"above_ema50"`
}

// DefaultIndicators is returned when the series is too short to analyse.
func DefaultIndicators() IndicatorSet {
	return IndicatorSet{RSI: 50, TrendStrength: 50}
}
