package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"CryptoSentinel/internal/model"
)

// MemoryStore is an in-process Store used when SQLite is not configured and in tests.
type MemoryStore struct {
	mu        sync.Mutex
	positions map[int64]model.Position
	alerts    map[int64]model.Alert
	signals   []model.Signal
	nextID    int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		positions: make(map[int64]model.Position),
		alerts:    make(map[int64]model.Alert),
	}
}

func (m *MemoryStore) ListOpenPositions(_ context.Context) ([]model.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.Position
	for _, p := range m.positions {
		if p.Status == model.StatusOpen {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) GetPosition(_ context.Context, id int64) (model.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.positions[id]
	if !ok {
		return p, fmt.Errorf("position %d: %w", id, ErrNotFound)
	}
	return p, nil
}

func (m *MemoryStore) CreatePosition(_ context.Context, p model.Position) (model.Position, error) {
	if err := p.Validate(); err != nil {
		return p, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	p.ID = m.nextID
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	p.Symbol = strings.ToUpper(p.Symbol)
	p.Status = model.StatusOpen
	p.CurrentPrice = p.EntryPrice
	p.PnL, p.PnLPercent, p.ClosedAt = 0, 0, nil
	m.positions[p.ID] = p
	return p, nil
}

func (m *MemoryStore) UpdatePosition(_ context.Context, id int64, patch model.PositionPatch) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.positions[id]
	if !ok {
		return false, fmt.Errorf("position %d: %w", id, ErrNotFound)
	}
	if p.Status != model.StatusOpen {
		return false, nil
	}
	if patch.Close != nil && !patch.Close.Status.Terminal() {
		return false, fmt.Errorf("position %d: close status %q is not terminal", id, patch.Close.Status)
	}

	p.CurrentPrice = patch.CurrentPrice
	p.PnL = patch.PnL
	p.PnLPercent = patch.PnLPercent
	if patch.Close != nil {
		closedAt := patch.Close.ClosedAt
		p.Status = patch.Close.Status
		p.ClosedAt = &closedAt
	}
	m.positions[id] = p
	return true, nil
}

func (m *MemoryStore) ListActiveAlerts(_ context.Context) ([]model.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.Alert
	for _, a := range m.alerts {
		if !a.Triggered {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Alert returns an alert regardless of its state.
func (m *MemoryStore) Alert(id int64) (model.Alert, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alerts[id]
	return a, ok
}

func (m *MemoryStore) CreateAlert(_ context.Context, a model.Alert) (model.Alert, error) {
	if err := a.Validate(); err != nil {
		return a, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	a.ID = m.nextID
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	a.Symbol = strings.ToUpper(a.Symbol)
	a.Triggered, a.TriggeredPrice, a.TriggeredAt = false, 0, nil
	m.alerts[a.ID] = a
	return a, nil
}

func (m *MemoryStore) MarkAlertTriggered(_ context.Context, id int64, price float64, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.alerts[id]
	if !ok {
		return false, fmt.Errorf("alert %d: %w", id, ErrNotFound)
	}
	if a.Triggered {
		return false, nil
	}
	a.Triggered = true
	a.TriggeredPrice = price
	a.TriggeredAt = &at
	m.alerts[id] = a
	return true, nil
}

func (m *MemoryStore) AppendSignal(_ context.Context, sig model.Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signals = append(m.signals, sig)
	return nil
}

func (m *MemoryStore) RecentSignals(_ context.Context, symbol string, limit int) ([]model.Signal, error) {
	if limit <= 0 {
		limit = 10
	}
	symbol = strings.ToUpper(symbol)

	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.Signal
	for i := len(m.signals) - 1; i >= 0 && len(out) < limit; i-- {
		if symbol == "" || m.signals[i].Symbol == symbol {
			out = append(out, m.signals[i])
		}
	}
	return out, nil
}

func (m *MemoryStore) Stats(_ context.Context) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var st Stats
	for _, p := range m.positions {
		if p.Status == model.StatusOpen {
			st.OpenPositions++
		}
	}
	for _, a := range m.alerts {
		if !a.Triggered {
			st.ActiveAlerts++
		}
	}
	st.TotalSignals = len(m.signals)
	return st, nil
}

func (m *MemoryStore) Close() error { return nil }
