package monitor

import (
	"CryptoSentinel/internal/model"

	"github.com/shopspring/decimal"
)

// ComputePnL returns the absolute and percentage PnL of a position at price.
// LONG: (cur-entry)/entry*100, SHORT: (entry-cur)/entry*100.
// Absolute PnL is pct/100 * quantity * entry.
func ComputePnL(p model.Position, price float64) (pnl, pnlPercent float64) {
	entry := decimal.NewFromFloat(p.EntryPrice)
	if entry.IsZero() {
		return 0, 0
	}
	cur := decimal.NewFromFloat(price)
	qty := decimal.NewFromFloat(p.Quantity)
	hundred := decimal.NewFromInt(100)

	move := cur.Sub(entry)
	if p.Direction == model.DirectionShort {
		move = move.Neg()
	}
	pct := move.Div(entry).Mul(hundred)
	abs := pct.Div(hundred).Mul(qty).Mul(entry)

	pnl, _ = abs.Float64()
	pnlPercent, _ = pct.Float64()
	return pnl, pnlPercent
}

// exitStatus reports the terminal status a price triggers, if any. Take-profit is
// checked before stop-loss. A threshold of zero or less is unset.
func exitStatus(p model.Position, price float64) (model.PositionStatus, bool) {
	switch p.Direction {
	case model.DirectionLong:
		if p.TakeProfit > 0 && price >= p.TakeProfit {
			return model.StatusTPHit, true
		}
		if p.StopLoss > 0 && price <= p.StopLoss {
			return model.StatusSLHit, true
		}
	case model.DirectionShort:
		if p.TakeProfit > 0 && price <= p.TakeProfit {
			return model.StatusTPHit, true
		}
		if p.StopLoss > 0 && price >= p.StopLoss {
			return model.StatusSLHit, true
		}
	}
	return "", false
}
