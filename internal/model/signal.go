package model

import "time"

// Direction is the side of a signal or position.
type Direction string

const (
	DirectionLong    Direction = "LONG"
	DirectionShort   Direction = "SHORT"
	DirectionNeutral Direction = "NEUTRAL"
)

// Rationale keys, one per indicator category.
const (
	RationaleRSI   = "rsi"
	RationaleMACD  = "macd"
	RationaleMA    = "ma"
	RationaleBB    = "bb"
	RationaleTrend = "trend"
)

// Signal is the output of the signal engine. Once built it is treated as immutable.
type Signal struct {
	ID              string            `json:"id"`
	Symbol          string            `json:"symbol"`
	Timeframe       string            `json:"timeframe"`
	Direction       Direction         `json:"direction"`
	Confidence      float64           `json:"confidence"` // 0 ~ 100
	Strength        int               `json:"strength"`
	EntryPrice      float64           `json:"entry_price"`
	TakeProfit      float64           `json:"take_profit"`
	StopLoss        float64           `json:"stop_loss"`
	RiskRewardRatio float64           `json:"risk_reward_ratio"`
	Rationale       map[string]string `json:"rationale"`
	Indicators      IndicatorSet      `json:"indicators"`
	Volume24h       float64           `json:"volume_24h"`
	CreatedAt       time.Time         `json:"created_at"`
}
