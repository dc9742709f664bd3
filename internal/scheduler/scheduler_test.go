package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"

	"CryptoSentinel/internal/analyzer"
	"CryptoSentinel/internal/model"
	"CryptoSentinel/internal/monitor"
	"CryptoSentinel/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedAnalyzer struct {
	mu         sync.Mutex
	directions map[string][]model.Direction
	calls      []string
}

func (a *scriptedAnalyzer) Analyze(_ context.Context, symbol, timeframe string) (analyzer.Analysis, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, symbol+"/"+timeframe)
	script := a.directions[symbol]
	if len(script) == 0 {
		return analyzer.Analysis{}, errors.New("no script")
	}
	dir := script[0]
	a.directions[symbol] = script[1:]
	return analyzer.Analysis{
		Snapshot: model.MarketSnapshot{Symbol: symbol, Source: "binance"},
		Signal:   model.Signal{Symbol: symbol, Timeframe: timeframe, Direction: dir, EntryPrice: 100},
	}, nil
}

type adminInbox struct {
	msgs []string
}

func (a *adminInbox) SendAdmin(_ context.Context, text string) error {
	a.msgs = append(a.msgs, text)
	return nil
}

type staticScreener []model.ScreenerEntry

func (s staticScreener) Screener(_ context.Context, limit int) []model.ScreenerEntry {
	if limit < len(s) {
		return s[:limit]
	}
	return s
}

type fixedMonitor struct{}

func (fixedMonitor) State() monitor.State            { return monitor.Running }
func (fixedMonitor) LastReport() monitor.CycleReport { return monitor.CycleReport{Errors: 2} }

func TestScanNotifiesOnDirectionChange(t *testing.T) {
	an := &scriptedAnalyzer{directions: map[string][]model.Direction{
		"BTCUSDT": {model.DirectionLong, model.DirectionLong, model.DirectionShort, model.DirectionNeutral},
		"ETHUSDT": {model.DirectionNeutral, model.DirectionLong, model.DirectionLong, model.DirectionLong},
	}}
	inbox := &adminInbox{}
	s := NewScheduler(context.Background(), an, nil, nil, nil, inbox)
	require.NoError(t, s.RegisterScan("0 */15 * * * *", []string{"btc", "ETHUSDT", " "}, "4h"))
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, s.Symbols)

	s.RunScanNow() // baseline, nothing to compare against
	assert.Empty(t, inbox.msgs)

	s.RunScanNow() // ETH NEUTRAL -> LONG
	require.Len(t, inbox.msgs, 1)
	assert.Contains(t, inbox.msgs[0], "ETHUSDT direction change")

	s.RunScanNow() // BTC LONG -> SHORT
	require.Len(t, inbox.msgs, 2)
	assert.Contains(t, inbox.msgs[1], "BTCUSDT direction change")

	s.RunScanNow() // BTC SHORT -> NEUTRAL is not announced
	assert.Len(t, inbox.msgs, 2)

	assert.Equal(t, model.DirectionNeutral, s.Watchlist()["BTCUSDT"])
	assert.Equal(t, "BTCUSDT/4h", an.calls[0])
}

func TestRegisterScanRejectsBadSpec(t *testing.T) {
	s := NewScheduler(context.Background(), &scriptedAnalyzer{}, nil, nil, nil, nil)
	assert.Error(t, s.RegisterScan("not a cron", []string{"BTCUSDT"}, "1h"))
}

func TestHandleCommand(t *testing.T) {
	an := &scriptedAnalyzer{directions: map[string][]model.Direction{"SOLUSDT": {model.DirectionShort}}}
	st := store.NewMemoryStore()
	_, err := st.CreateAlert(context.Background(), model.Alert{UserID: 1, Symbol: "BTCUSDT", Condition: model.ConditionAbove, TargetPrice: 1})
	require.NoError(t, err)
	screener := staticScreener{{Symbol: "BTCUSDT", Price: 1}, {Symbol: "ETHUSDT", Price: 1}, {Symbol: "BNBUSDT", Price: 1}}
	s := NewScheduler(context.Background(), an, screener, st, fixedMonitor{}, nil)
	ctx := context.Background()

	reply := s.HandleCommand(ctx, 1, "/analyze sol 15m")
	assert.Contains(t, reply, "SOLUSDT")
	assert.Contains(t, reply, "SHORT")
	assert.Equal(t, "SOLUSDT/15m", an.calls[0])

	reply = s.HandleCommand(ctx, 1, "/analyze DOGE")
	assert.Contains(t, reply, "Analysis failed")

	assert.Contains(t, s.HandleCommand(ctx, 1, "/analyze"), "Usage")

	reply = s.HandleCommand(ctx, 1, "/screener 2")
	assert.Contains(t, reply, "Top 2 USDT pairs")
	assert.NotContains(t, reply, "BNBUSDT")

	reply = s.HandleCommand(ctx, 1, "/status@SentinelBot")
	assert.Contains(t, reply, "Monitor: running")
	assert.Contains(t, reply, "Active alerts: 1")

	assert.Contains(t, s.HandleCommand(ctx, 1, "hello"), "Available commands")
	assert.Contains(t, s.HandleCommand(ctx, 1, ""), "Available commands")
}

func TestNormalizeSymbol(t *testing.T) {
	assert.Equal(t, "BTCUSDT", NormalizeSymbol("btc"))
	assert.Equal(t, "ETHUSDT", NormalizeSymbol(" ethusdt "))
	assert.Equal(t, "", NormalizeSymbol("  "))
}
