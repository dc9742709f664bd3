package notifier

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"CryptoSentinel/internal/model"
)

// FormatPrice prints large prices with two decimals and sub-dollar prices with
// enough significant digits to be useful.
func FormatPrice(p float64) string {
	if p >= 1 || p <= -1 || p == 0 {
		return fmt.Sprintf("$%.2f", p)
	}
	return fmt.Sprintf("$%.6g", p)
}

// FormatNotification renders a structured notification into a Telegram message.
func FormatNotification(n model.Notification) string {
	switch n.Kind {
	case model.NotifyPositionClosed:
		return formatPositionClosed(n)
	case model.NotifyAlertTriggered:
		return formatAlertTriggered(n)
	case model.NotifySignal:
		if n.Signal != nil {
			return FormatSignal(*n.Signal, "")
		}
	}
	return fmt.Sprintf("ℹ️ %s %s", n.Kind, n.Symbol)
}

func formatPositionClosed(n model.Notification) string {
	var b strings.Builder

	emoji, title := "🛡️❌", "STOP LOSS HIT"
	switch n.Status {
	case model.StatusTPHit:
		emoji, title = "🎯✅", "TAKE PROFIT HIT"
	case model.StatusClosedManual:
		emoji, title = "✋", "POSITION CLOSED"
	}
	result := "PROFIT"
	pnlEmoji := "🟢"
	if n.PnLPercent < 0 {
		result = "LOSS"
		pnlEmoji = "🔴"
	}
	dirEmoji := "📈"
	if n.Direction == model.DirectionShort {
		dirEmoji = "📉"
	}

	b.WriteString(fmt.Sprintf("%s <b>%s!</b>\n\n", emoji, title))
	b.WriteString(fmt.Sprintf("%s <b>%s %s position closed</b>\n\n", dirEmoji, n.Symbol, n.Direction))
	b.WriteString("💰 <b>Trade summary:</b>\n")
	b.WriteString(fmt.Sprintf("• Entry: %s\n", FormatPrice(n.EntryPrice)))
	b.WriteString(fmt.Sprintf("• Exit: %s\n", FormatPrice(n.ExitPrice)))
	b.WriteString(fmt.Sprintf("• Result: <b>%s</b>\n\n", result))
	b.WriteString(fmt.Sprintf("%s <b>PnL: %+.2f%%</b>\n\n", pnlEmoji, n.PnLPercent))
	b.WriteString(fmt.Sprintf("⏰ <i>Closed at %s</i>", clock(n.At)))
	return b.String()
}

func formatAlertTriggered(n model.Notification) string {
	var b strings.Builder

	condEmoji, verb := "⬆️", "rose to"
	if n.Condition == model.ConditionBelow {
		condEmoji, verb = "⬇️", "fell to"
	}

	b.WriteString("🔔 <b>PRICE ALERT TRIGGERED!</b>\n\n")
	b.WriteString(fmt.Sprintf("%s <b>%s</b> %s the target price\n\n", condEmoji, n.Symbol, verb))
	b.WriteString("🎯 <b>Alert details:</b>\n")
	b.WriteString(fmt.Sprintf("• Target: %s\n", FormatPrice(n.Target)))
	b.WriteString(fmt.Sprintf("• Current: %s\n", FormatPrice(n.ExitPrice)))
	b.WriteString(fmt.Sprintf("• Condition: %s\n\n", n.Condition))
	b.WriteString(fmt.Sprintf("⏰ <i>Triggered at %s</i>\n\n", clock(n.At)))
	b.WriteString(fmt.Sprintf("Use /analyze %s for a full analysis.", n.Symbol))
	return b.String()
}

var rationaleOrder = []struct {
	key   string
	label string
}{
	{model.RationaleRSI, "RSI"},
	{model.RationaleMACD, "MACD"},
	{model.RationaleMA, "MA"},
	{model.RationaleBB, "Bollinger"},
	{model.RationaleTrend, "Trend"},
}

// FormatSignal renders a signal. source is optional and shown when the data was not live.
func FormatSignal(sig model.Signal, source string) string {
	var b strings.Builder

	emoji := "⚖️"
	switch sig.Direction {
	case model.DirectionLong:
		emoji = "🟢📈"
	case model.DirectionShort:
		emoji = "🔴📉"
	}

	b.WriteString(fmt.Sprintf("📊 <b>%s</b> | %s | %s\n\n", sig.Symbol, sig.Timeframe, sig.CreatedAt.Format("2006-01-02 15:04")))
	b.WriteString(fmt.Sprintf("%s <b>%s</b> (confidence %.1f%%, strength %d/5)\n\n", emoji, sig.Direction, sig.Confidence, sig.Strength))

	b.WriteString(fmt.Sprintf("Entry: %s\n", FormatPrice(sig.EntryPrice)))
	if sig.Direction != model.DirectionNeutral {
		b.WriteString(fmt.Sprintf("Take profit: %s\n", FormatPrice(sig.TakeProfit)))
		b.WriteString(fmt.Sprintf("Stop loss: %s\n", FormatPrice(sig.StopLoss)))
		b.WriteString(fmt.Sprintf("Risk/reward: 1:%.2f\n", sig.RiskRewardRatio))
	}

	ind := sig.Indicators
	b.WriteString("\n📈 <b>Indicators:</b>\n")
	b.WriteString(fmt.Sprintf("  RSI(14): %.2f\n", ind.RSI))
	b.WriteString(fmt.Sprintf("  EMA20: %s | EMA50: %s\n", FormatPrice(ind.EMA20), FormatPrice(ind.EMA50)))
	b.WriteString(fmt.Sprintf("  MACD: %.4g / %.4g (hist %.4g)\n", ind.MACD, ind.MACDSignal, ind.MACDHistogram))
	b.WriteString(fmt.Sprintf("  BB: %s - %s\n", FormatPrice(ind.BBLower), FormatPrice(ind.BBUpper)))
	b.WriteString(fmt.Sprintf("  Trend: %.1f\n", ind.TrendStrength))

	b.WriteString("\n🔍 <b>Analysis:</b>\n")
	for _, r := range rationaleOrder {
		if text, ok := sig.Rationale[r.key]; ok {
			b.WriteString(fmt.Sprintf("  %s: %s\n", r.label, text))
		}
	}

	if source != "" && source != "binance" {
		b.WriteString(fmt.Sprintf("\n⚠️ <i>Data source: %s</i>\n", source))
	}
	return b.String()
}

// FormatDirectionChange announces a watchlist symbol flipping direction.
func FormatDirectionChange(prev model.Direction, sig model.Signal) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🔄 <b>%s direction change</b>: %s → %s\n\n", sig.Symbol, prev, sig.Direction))
	b.WriteString(FormatSignal(sig, ""))
	return b.String()
}

// FormatScreener renders the screener table.
func FormatScreener(entries []model.ScreenerEntry) string {
	if len(entries) == 0 {
		return "📋 Screener is empty"
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📋 <b>Top %d USDT pairs</b>\n\n", len(entries)))
	for i, e := range entries {
		arrow := "🟢"
		if e.Change24h < 0 {
			arrow = "🔴"
		}
		b.WriteString(fmt.Sprintf("%d. <b>%s</b> %s %s %+.2f%% | vol %s\n",
			i+1, e.Symbol, FormatPrice(e.Price), arrow, e.Change24h, humanVolume(e.Volume24h)))
	}
	return b.String()
}

// StatusView is what the /status command shows.
type StatusView struct {
	MonitorState    string
	OpenPositions   int
	ActiveAlerts    int
	TotalSignals    int
	LastCycle       time.Time
	LastCycleErrors int
	Watchlist       map[string]model.Direction
}

// FormatStatus renders the bot status.
func FormatStatus(s StatusView) string {
	var b strings.Builder
	b.WriteString("🤖 <b>Sentinel status</b>\n\n")
	b.WriteString(fmt.Sprintf("Monitor: %s\n", s.MonitorState))
	if !s.LastCycle.IsZero() {
		b.WriteString(fmt.Sprintf("Last cycle: %s (%d errors)\n", s.LastCycle.Format("2006-01-02 15:04:05"), s.LastCycleErrors))
	}
	b.WriteString(fmt.Sprintf("Open positions: %d\n", s.OpenPositions))
	b.WriteString(fmt.Sprintf("Active alerts: %d\n", s.ActiveAlerts))
	b.WriteString(fmt.Sprintf("Signals recorded: %d\n", s.TotalSignals))

	if len(s.Watchlist) > 0 {
		symbols := make([]string, 0, len(s.Watchlist))
		for sym := range s.Watchlist {
			symbols = append(symbols, sym)
		}
		sort.Strings(symbols)
		b.WriteString("\n👀 <b>Watchlist:</b>\n")
		for _, sym := range symbols {
			b.WriteString(fmt.Sprintf("  %s: %s\n", sym, s.Watchlist[sym]))
		}
	}
	return b.String()
}

func humanVolume(v float64) string {
	switch {
	case v >= 1e9:
		return fmt.Sprintf("%.2fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%.2fM", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("%.2fK", v/1e3)
	}
	return fmt.Sprintf("%.0f", v)
}

func clock(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.Format("15:04:05")
}
