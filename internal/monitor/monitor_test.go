package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"CryptoSentinel/internal/collector"
	"CryptoSentinel/internal/model"
	"CryptoSentinel/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	mu     sync.Mutex
	prices map[string]float64
	calls  []string
	panics bool
}

func (g *fakeGateway) FetchSnapshot(_ context.Context, symbol, timeframe string) collector.Result {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, symbol)
	if g.panics {
		panic("upstream exploded")
	}
	return collector.Result{
		Provenance: collector.Real,
		Snapshot: model.MarketSnapshot{
			Symbol:    symbol,
			Timeframe: timeframe,
			Ticker:    model.Ticker{Price: g.prices[symbol]},
		},
	}
}

func (g *fakeGateway) setPrice(symbol string, p float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prices[symbol] = p
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

type sent struct {
	UserID int64
	N      model.Notification
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sent
}

func (r *recordingNotifier) Notify(_ context.Context, userID int64, n model.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sent{userID, n})
	return nil
}

func (r *recordingNotifier) all() []sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sent(nil), r.sent...)
}

var fixedNow = time.Date(2025, 8, 1, 9, 30, 0, 0, time.UTC)

func setup(t *testing.T, prices map[string]float64) (*Monitor, *store.MemoryStore, *fakeGateway, *recordingNotifier) {
	t.Helper()
	st := store.NewMemoryStore()
	gw := &fakeGateway{prices: prices}
	n := &recordingNotifier{}
	m := New(st, gw, n)
	m.SymbolDelay = 0
	m.Interval = 10 * time.Millisecond
	m.Now = func() time.Time { return fixedNow }
	return m, st, gw, n
}

func openPosition(t *testing.T, st store.Store, p model.Position) model.Position {
	t.Helper()
	created, err := st.CreatePosition(context.Background(), p)
	require.NoError(t, err)
	return created
}

func TestLongTakeProfitHit(t *testing.T) {
	m, st, _, n := setup(t, map[string]float64{"BTCUSDT": 70200})
	p := openPosition(t, st, model.Position{UserID: 1, Symbol: "BTCUSDT", Direction: model.DirectionLong,
		EntryPrice: 67500, Quantity: 0.1, TakeProfit: 70000, StopLoss: 65000})

	report := m.RunCycle(context.Background())
	assert.Equal(t, 1, report.PositionsClosed)

	got, err := st.GetPosition(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusTPHit, got.Status)
	assert.InDelta(t, 4.0, got.PnLPercent, 1e-9)
	assert.InDelta(t, 270, got.PnL, 1e-9)
	require.NotNil(t, got.ClosedAt)
	assert.Equal(t, fixedNow, *got.ClosedAt)

	msgs := n.all()
	require.Len(t, msgs, 1)
	assert.Equal(t, int64(1), msgs[0].UserID)
	assert.Equal(t, model.NotifyPositionClosed, msgs[0].N.Kind)
	assert.Equal(t, model.StatusTPHit, msgs[0].N.Status)
	assert.Equal(t, 70200.0, msgs[0].N.ExitPrice)
}

func TestShortStopLossHit(t *testing.T) {
	m, st, _, n := setup(t, map[string]float64{"ETHUSDT": 4050})
	p := openPosition(t, st, model.Position{UserID: 2, Symbol: "ETHUSDT", Direction: model.DirectionShort,
		EntryPrice: 3800, Quantity: 2, TakeProfit: 3600, StopLoss: 4000})

	m.RunCycle(context.Background())

	got, err := st.GetPosition(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSLHit, got.Status)
	assert.InDelta(t, -6.578947, got.PnLPercent, 1e-5)
	assert.InDelta(t, -500, got.PnL, 1e-6)
	require.Len(t, n.all(), 1)
}

func TestTakeProfitCheckedBeforeStopLoss(t *testing.T) {
	// a malformed position where both thresholds are crossed
	p := model.Position{Direction: model.DirectionLong, EntryPrice: 100, TakeProfit: 90, StopLoss: 110}
	status, hit := exitStatus(p, 100)
	assert.True(t, hit)
	assert.Equal(t, model.StatusTPHit, status)
}

func TestUnsetThresholdsNeverFire(t *testing.T) {
	m, st, _, n := setup(t, map[string]float64{"SOLUSDT": 1})
	p := openPosition(t, st, model.Position{UserID: 3, Symbol: "SOLUSDT", Direction: model.DirectionLong,
		EntryPrice: 200, Quantity: 1})

	m.RunCycle(context.Background())

	got, err := st.GetPosition(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusOpen, got.Status)
	assert.Equal(t, 1.0, got.CurrentPrice)
	assert.InDelta(t, -99.5, got.PnLPercent, 1e-9)
	assert.Empty(t, n.all())
}

func TestMarkToMarketWithoutExit(t *testing.T) {
	m, st, _, n := setup(t, map[string]float64{"BTCUSDT": 68000})
	p := openPosition(t, st, model.Position{UserID: 1, Symbol: "BTCUSDT", Direction: model.DirectionLong,
		EntryPrice: 67500, Quantity: 0.1, TakeProfit: 70000, StopLoss: 65000})

	m.RunCycle(context.Background())

	got, err := st.GetPosition(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusOpen, got.Status)
	assert.Equal(t, 68000.0, got.CurrentPrice)
	assert.InDelta(t, 50, got.PnL, 1e-9)
	assert.Empty(t, n.all())
}

func TestAlertTriggersOnBoundaryOnce(t *testing.T) {
	m, st, _, n := setup(t, map[string]float64{"BTCUSDT": 70000})
	a, err := st.CreateAlert(context.Background(), model.Alert{UserID: 9, Symbol: "BTCUSDT",
		Condition: model.ConditionAbove, TargetPrice: 70000})
	require.NoError(t, err)

	report := m.RunCycle(context.Background())
	assert.Equal(t, 1, report.AlertsTriggered)
	m.RunCycle(context.Background())

	stored, ok := st.Alert(a.ID)
	require.True(t, ok)
	assert.True(t, stored.Triggered)
	assert.Equal(t, 70000.0, stored.TriggeredPrice)

	msgs := n.all()
	require.Len(t, msgs, 1)
	assert.Equal(t, model.NotifyAlertTriggered, msgs[0].N.Kind)
	assert.Equal(t, int64(9), msgs[0].UserID)
}

func TestAlertBelowNotCrossed(t *testing.T) {
	m, st, _, n := setup(t, map[string]float64{"ETHUSDT": 3600})
	_, err := st.CreateAlert(context.Background(), model.Alert{UserID: 9, Symbol: "ETHUSDT",
		Condition: model.ConditionBelow, TargetPrice: 3500})
	require.NoError(t, err)

	report := m.RunCycle(context.Background())
	assert.Equal(t, 0, report.AlertsTriggered)
	assert.Empty(t, n.all())
}

func TestCycleIsIdempotent(t *testing.T) {
	m, st, _, n := setup(t, map[string]float64{"BTCUSDT": 70200})
	openPosition(t, st, model.Position{UserID: 1, Symbol: "BTCUSDT", Direction: model.DirectionLong,
		EntryPrice: 67500, Quantity: 0.1, TakeProfit: 70000, StopLoss: 65000})

	m.RunCycle(context.Background())
	m.RunCycle(context.Background())
	m.RunCycle(context.Background())

	assert.Len(t, n.all(), 1)
}

func TestOneFetchPerSymbolInSortedOrder(t *testing.T) {
	m, st, gw, _ := setup(t, map[string]float64{"BTCUSDT": 68000, "ETHUSDT": 3700})
	for i := 0; i < 3; i++ {
		openPosition(t, st, model.Position{UserID: 1, Symbol: "ETHUSDT", Direction: model.DirectionLong,
			EntryPrice: 3650, Quantity: 1, TakeProfit: 4000, StopLoss: 3000})
	}
	openPosition(t, st, model.Position{UserID: 1, Symbol: "BTCUSDT", Direction: model.DirectionLong,
		EntryPrice: 67500, Quantity: 0.1, TakeProfit: 70000, StopLoss: 65000})
	_, err := st.CreateAlert(context.Background(), model.Alert{UserID: 1, Symbol: "BTCUSDT",
		Condition: model.ConditionAbove, TargetPrice: 80000})
	require.NoError(t, err)

	report := m.RunCycle(context.Background())
	assert.Equal(t, 2, report.Symbols)
	assert.Equal(t, 4, report.PositionsChecked)
	assert.Equal(t, 1, report.AlertsChecked)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, gw.calls)
}

func TestManualClose(t *testing.T) {
	m, st, _, n := setup(t, nil)
	ctx := context.Background()
	p := openPosition(t, st, model.Position{UserID: 5, Symbol: "BTCUSDT", Direction: model.DirectionShort,
		EntryPrice: 70000, Quantity: 0.5, TakeProfit: 60000, StopLoss: 75000})

	closed, err := m.ClosePosition(ctx, p.ID, 63000)
	require.NoError(t, err)
	assert.Equal(t, model.StatusClosedManual, closed.Status)
	assert.InDelta(t, 10.0, closed.PnLPercent, 1e-9)
	assert.InDelta(t, 3500, closed.PnL, 1e-9)
	require.Len(t, n.all(), 1)

	_, err = m.ClosePosition(ctx, p.ID, 62000)
	assert.ErrorIs(t, err, ErrPositionNotOpen)

	_, err = m.ClosePosition(ctx, 12345, 62000)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Len(t, n.all(), 1)
}

// racingStore closes every position behind the monitor's back before its write lands.
type racingStore struct {
	*store.MemoryStore
}

func (r racingStore) UpdatePosition(ctx context.Context, id int64, patch model.PositionPatch) (bool, error) {
	manual, _ := model.CloseAt(1, 0, 0, model.StatusClosedManual, fixedNow)
	r.MemoryStore.UpdatePosition(ctx, id, manual)
	return r.MemoryStore.UpdatePosition(ctx, id, patch)
}

func TestLosingWriterDoesNotNotify(t *testing.T) {
	m, st, _, n := setup(t, map[string]float64{"BTCUSDT": 70200})
	m.Store = racingStore{st}
	p := openPosition(t, st, model.Position{UserID: 1, Symbol: "BTCUSDT", Direction: model.DirectionLong,
		EntryPrice: 67500, Quantity: 0.1, TakeProfit: 70000, StopLoss: 65000})

	report := m.RunCycle(context.Background())
	assert.Equal(t, 0, report.PositionsClosed)
	assert.Empty(t, n.all())

	got, err := st.GetPosition(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusClosedManual, got.Status)
}

func TestPanicInSymbolIsContained(t *testing.T) {
	m, st, gw, _ := setup(t, map[string]float64{"BTCUSDT": 1})
	gw.panics = true
	openPosition(t, st, model.Position{UserID: 1, Symbol: "BTCUSDT", Direction: model.DirectionLong,
		EntryPrice: 67500, Quantity: 0.1})

	var report CycleReport
	assert.NotPanics(t, func() { report = m.RunCycle(context.Background()) })
	assert.Equal(t, 1, report.Errors)
}

func TestStartStop(t *testing.T) {
	m, st, gw, _ := setup(t, map[string]float64{"BTCUSDT": 68000})
	openPosition(t, st, model.Position{UserID: 1, Symbol: "BTCUSDT", Direction: model.DirectionLong,
		EntryPrice: 67500, Quantity: 0.1, TakeProfit: 70000, StopLoss: 65000})
	assert.Equal(t, Idle, m.State())

	require.NoError(t, m.Start(context.Background()))
	assert.Error(t, m.Start(context.Background()))
	assert.Eventually(t, func() bool { return gw.callCount() >= 2 }, 2*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, m.Stop(ctx))
	assert.Equal(t, Stopped, m.State())

	calls := gw.callCount()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, calls, gw.callCount())

	// stopping twice is harmless
	require.NoError(t, m.Stop(ctx))
}

func TestComputePnL(t *testing.T) {
	pnl, pct := ComputePnL(model.Position{Direction: model.DirectionLong, EntryPrice: 67500, Quantity: 0.1}, 70200)
	assert.InDelta(t, 4.0, pct, 1e-9)
	assert.InDelta(t, 270, pnl, 1e-9)

	pnl, pct = ComputePnL(model.Position{Direction: model.DirectionShort, EntryPrice: 3800, Quantity: 1}, 4050)
	assert.InDelta(t, -6.5789473684, pct, 1e-8)
	assert.InDelta(t, -250, pnl, 1e-8)
}
