package monitor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"CryptoSentinel/internal/collector"
	"CryptoSentinel/internal/metrics"
	"CryptoSentinel/internal/model"
	"CryptoSentinel/internal/store"
)

// ErrPositionNotOpen is returned by ClosePosition when the position already left OPEN.
var ErrPositionNotOpen = errors.New("position is not open")

// SnapshotSource is the market data the monitor needs.
type SnapshotSource interface {
	FetchSnapshot(ctx context.Context, symbol, timeframe string) collector.Result
}

// Notifier delivers a structured notification to a user.
type Notifier interface {
	Notify(ctx context.Context, userID int64, n model.Notification) error
}

// State is the run state of the loop.
type State int

const (
	Idle State = iota
	Running
	StopRequested
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case StopRequested:
		return "stop_requested"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// CycleReport summarises one monitoring pass.
type CycleReport struct {
	StartedAt        time.Time     `json:"started_at"`
	Duration         time.Duration `json:"duration"`
	Symbols          int           `json:"symbols"`
	PositionsChecked int           `json:"positions_checked"`
	PositionsClosed  int           `json:"positions_closed"`
	AlertsChecked    int           `json:"alerts_checked"`
	AlertsTriggered  int           `json:"alerts_triggered"`
	Errors           int           `json:"errors"`
}

// Monitor re-evaluates open positions and active alerts against live prices.
type Monitor struct {
	Store       store.Store
	Gateway     SnapshotSource
	Notifier    Notifier
	Interval    time.Duration
	SymbolDelay time.Duration
	Timeframe   string
	Now         func() time.Time

	cycleMu sync.Mutex

	mu         sync.Mutex
	state      State
	stop       chan struct{}
	done       chan struct{}
	lastReport CycleReport
}

// New creates a monitor with a 30s interval and 1s inter-symbol delay.
func New(st store.Store, gw SnapshotSource, n Notifier) *Monitor {
	return &Monitor{
		Store:       st,
		Gateway:     gw,
		Notifier:    n,
		Interval:    30 * time.Second,
		SymbolDelay: time.Second,
		Timeframe:   "1h",
		Now:         time.Now,
	}
}

func (m *Monitor) now() time.Time {
	if m.Now == nil {
		return time.Now()
	}
	return m.Now()
}

// State returns the current run state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LastReport returns the report of the most recent completed cycle.
func (m *Monitor) LastReport() CycleReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastReport
}

// Start launches the loop in its own goroutine. It runs a cycle immediately and then
// every Interval until Stop is called or ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Idle {
		return fmt.Errorf("monitor already %s", m.state)
	}
	m.state = Running
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	go m.loop(ctx, m.stop, m.done)
	log.Printf("[INFO] Monitor started (interval %v, symbol delay %v)", m.Interval, m.SymbolDelay)
	return nil
}

// Stop asks the loop to finish its current cycle and exit, then waits until it has,
// or until ctx is done.
func (m *Monitor) Stop(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case Idle:
		m.state = Stopped
		m.mu.Unlock()
		return nil
	case Running:
		m.state = StopRequested
		close(m.stop)
	}
	done := m.done
	m.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Monitor) loop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer func() {
		m.mu.Lock()
		m.state = Stopped
		m.mu.Unlock()
		close(done)
		log.Println("[INFO] Monitor stopped")
	}()

	interval := m.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		// a stop that arrived while waiting wins over a due cycle
		select {
		case <-stop:
			return
		default:
		}

		m.RunCycle(ctx)
		timer.Reset(interval)
	}
}

// RunCycle performs one pass over all open positions and active alerts. Calls are
// serialized, so an externally triggered cycle never overlaps the loop.
func (m *Monitor) RunCycle(ctx context.Context) (report CycleReport) {
	m.cycleMu.Lock()
	defer m.cycleMu.Unlock()

	report.StartedAt = m.now()
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[ERROR] Monitoring cycle panicked: %v", r)
			metrics.RecordError("monitor")
			report.Errors++
		}
		report.Duration = time.Since(start)
		result := "ok"
		if report.Errors > 0 {
			result = "error"
		}
		metrics.RecordCycle(result, report.Duration)

		m.mu.Lock()
		m.lastReport = report
		m.mu.Unlock()
	}()

	positions, err := m.Store.ListOpenPositions(ctx)
	if err != nil {
		log.Printf("[ERROR] Load open positions: %v", err)
		report.Errors++
	}
	alerts, err := m.Store.ListActiveAlerts(ctx)
	if err != nil {
		log.Printf("[ERROR] Load active alerts: %v", err)
		report.Errors++
	}

	bySymbol := partition(positions, alerts)
	symbols := make([]string, 0, len(bySymbol))
	for sym := range bySymbol {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	report.Symbols = len(symbols)

	for i, sym := range symbols {
		if i > 0 && m.SymbolDelay > 0 {
			if err := sleep(ctx, m.SymbolDelay); err != nil {
				log.Printf("[WARN] Monitoring cycle interrupted: %v", err)
				report.Errors++
				return report
			}
		}
		m.checkSymbol(ctx, sym, bySymbol[sym], &report)
	}

	if report.Symbols > 0 {
		log.Printf("[INFO] Monitoring cycle: %d symbols, %d/%d positions closed, %d/%d alerts triggered, %d errors",
			report.Symbols, report.PositionsClosed, report.PositionsChecked,
			report.AlertsTriggered, report.AlertsChecked, report.Errors)
	}
	return report
}

type symbolWork struct {
	positions []model.Position
	alerts    []model.Alert
}

func partition(positions []model.Position, alerts []model.Alert) map[string]*symbolWork {
	out := make(map[string]*symbolWork)
	get := func(sym string) *symbolWork {
		w, ok := out[sym]
		if !ok {
			w = &symbolWork{}
			out[sym] = w
		}
		return w
	}
	for _, p := range positions {
		w := get(p.Symbol)
		w.positions = append(w.positions, p)
	}
	for _, a := range alerts {
		w := get(a.Symbol)
		w.alerts = append(w.alerts, a)
	}
	return out
}

// checkSymbol evaluates everything for one symbol against a single snapshot.
// A panic here only skips the symbol.
func (m *Monitor) checkSymbol(ctx context.Context, symbol string, work *symbolWork, report *CycleReport) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[ERROR] Monitoring %s panicked: %v", symbol, r)
			metrics.RecordError("monitor")
			report.Errors++
		}
	}()

	res := m.Gateway.FetchSnapshot(ctx, symbol, m.Timeframe)
	price := res.Snapshot.Price()
	if price <= 0 {
		log.Printf("[WARN] No usable price for %s, skipping", symbol)
		report.Errors++
		return
	}
	if res.Provenance == collector.Synthetic {
		log.Printf("[WARN] %s priced from synthetic data (%.8g)", symbol, price)
	}

	for _, p := range work.positions {
		report.PositionsChecked++
		closed, err := m.evaluatePosition(ctx, p, price)
		if err != nil {
			log.Printf("[ERROR] Position %d (%s): %v", p.ID, symbol, err)
			report.Errors++
			continue
		}
		if closed {
			report.PositionsClosed++
		}
	}

	for _, a := range work.alerts {
		report.AlertsChecked++
		fired, err := m.evaluateAlert(ctx, a, price)
		if err != nil {
			log.Printf("[ERROR] Alert %d (%s): %v", a.ID, symbol, err)
			report.Errors++
			continue
		}
		if fired {
			report.AlertsTriggered++
		}
	}
}

func (m *Monitor) evaluatePosition(ctx context.Context, p model.Position, price float64) (bool, error) {
	pnl, pct := ComputePnL(p, price)

	status, hit := exitStatus(p, price)
	if !hit {
		if _, err := m.Store.UpdatePosition(ctx, p.ID, model.MarkToMarket(price, pnl, pct)); err != nil {
			return false, fmt.Errorf("mark to market: %w", err)
		}
		return false, nil
	}

	return m.closePosition(ctx, p, price, pnl, pct, status)
}

func (m *Monitor) closePosition(ctx context.Context, p model.Position, price, pnl, pct float64, status model.PositionStatus) (bool, error) {
	at := m.now()
	patch, err := model.CloseAt(price, pnl, pct, status, at)
	if err != nil {
		return false, err
	}
	applied, err := m.Store.UpdatePosition(ctx, p.ID, patch)
	if err != nil {
		return false, fmt.Errorf("close as %s: %w", status, err)
	}
	if !applied {
		log.Printf("[INFO] Position %d was closed elsewhere, skipping %s", p.ID, status)
		return false, nil
	}

	log.Printf("[INFO] Position %d %s %s closed: %s at %.8g (%+.2f%%)", p.ID, p.Symbol, p.Direction, status, price, pct)
	metrics.RecordPositionClosed(string(status))
	m.notify(ctx, p.UserID, model.Notification{
		Kind:       model.NotifyPositionClosed,
		Symbol:     p.Symbol,
		Direction:  p.Direction,
		EntryPrice: p.EntryPrice,
		ExitPrice:  price,
		PnLPercent: pct,
		Status:     status,
		At:         at,
	})
	return true, nil
}

func (m *Monitor) evaluateAlert(ctx context.Context, a model.Alert, price float64) (bool, error) {
	if !a.Crossed(price) {
		return false, nil
	}
	at := m.now()
	applied, err := m.Store.MarkAlertTriggered(ctx, a.ID, price, at)
	if err != nil {
		return false, fmt.Errorf("mark triggered: %w", err)
	}
	if !applied {
		return false, nil
	}

	log.Printf("[INFO] Alert %d %s %s %.8g triggered at %.8g", a.ID, a.Symbol, a.Condition, a.TargetPrice, price)
	metrics.RecordAlertTriggered(string(a.Condition))
	m.notify(ctx, a.UserID, model.Notification{
		Kind:      model.NotifyAlertTriggered,
		Symbol:    a.Symbol,
		Condition: a.Condition,
		Target:    a.TargetPrice,
		ExitPrice: price,
		At:        at,
	})
	return true, nil
}

// ClosePosition closes an OPEN position manually at price.
func (m *Monitor) ClosePosition(ctx context.Context, id int64, price float64) (model.Position, error) {
	if price <= 0 {
		return model.Position{}, fmt.Errorf("close price must be positive")
	}
	p, err := m.Store.GetPosition(ctx, id)
	if err != nil {
		return p, err
	}
	if p.Status != model.StatusOpen {
		return p, fmt.Errorf("position %d is %s: %w", id, p.Status, ErrPositionNotOpen)
	}

	pnl, pct := ComputePnL(p, price)
	applied, err := m.closePosition(ctx, p, price, pnl, pct, model.StatusClosedManual)
	if err != nil {
		return p, err
	}
	if !applied {
		return p, fmt.Errorf("position %d: %w", id, ErrPositionNotOpen)
	}
	return m.Store.GetPosition(ctx, id)
}

func (m *Monitor) notify(ctx context.Context, userID int64, n model.Notification) {
	if m.Notifier == nil {
		return
	}
	if err := m.Notifier.Notify(ctx, userID, n); err != nil {
		log.Printf("[ERROR] Notify user %d (%s %s): %v", userID, n.Kind, n.Symbol, err)
		metrics.RecordError("notifier")
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
