package store

import (
	"context"
	"errors"
	"time"

	"CryptoSentinel/internal/model"
)

// ErrNotFound is returned when a position or alert id does not exist.
var ErrNotFound = errors.New("not found")

// Stats is a coarse summary for the status command and API.
type Stats struct {
	OpenPositions int `json:"open_positions"`
	ActiveAlerts  int `json:"active_alerts"`
	TotalSignals  int `json:"total_signals"`
}

// Store persists positions, alerts and signal history.
//
// UpdatePosition and MarkAlertTriggered are compare-and-set: a position is only
// written while it is OPEN and an alert only while it is untriggered. applied is
// false when another writer got there first.
type Store interface {
	ListOpenPositions(ctx context.Context) ([]model.Position, error)
	ListActiveAlerts(ctx context.Context) ([]model.Alert, error)
	GetPosition(ctx context.Context, id int64) (model.Position, error)
	UpdatePosition(ctx context.Context, id int64, patch model.PositionPatch) (applied bool, err error)
	MarkAlertTriggered(ctx context.Context, id int64, price float64, at time.Time) (applied bool, err error)
	AppendSignal(ctx context.Context, sig model.Signal) error

	CreatePosition(ctx context.Context, p model.Position) (model.Position, error)
	CreateAlert(ctx context.Context, a model.Alert) (model.Alert, error)
	RecentSignals(ctx context.Context, symbol string, limit int) ([]model.Signal, error)
	Stats(ctx context.Context) (Stats, error)
	Close() error
}
