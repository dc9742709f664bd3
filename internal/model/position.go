package model

import (
	"fmt"
	"time"
)

// PositionStatus is the lifecycle state of a position. Every status except OPEN is terminal.
type PositionStatus string

const (
	StatusOpen         PositionStatus = "OPEN"
	StatusTPHit        PositionStatus = "TP_HIT"
	StatusSLHit        PositionStatus = "SL_HIT"
	StatusClosedManual PositionStatus = "CLOSED_MANUAL"
)

// Terminal reports whether the status can no longer change.
func (s PositionStatus) Terminal() bool {
	switch s {
	case StatusTPHit, StatusSLHit, StatusClosedManual:
		return true
	}
	return false
}

// Position is a user's tracked trade.
type Position struct {
	ID           int64          `json:"id"`
	UserID       int64          `json:"user_id"`
	Symbol       string         `json:"symbol"`
	Direction    Direction      `json:"direction"`
	EntryPrice   float64        `json:"entry_price"`
	Quantity     float64        `json:"quantity"`
	TakeProfit   float64        `json:"take_profit"`
	StopLoss     float64        `json:"stop_loss"`
	CurrentPrice float64        `json:"current_price"`
	PnL          float64        `json:"pnl"`
	PnLPercent   float64        `json:"pnl_percent"`
	Status       PositionStatus `json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
	ClosedAt     *time.Time     `json:"closed_at,omitempty"`
}

// Validate checks the fields a caller must supply when opening a position.
func (p *Position) Validate() error {
	if p.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if p.Direction != DirectionLong && p.Direction != DirectionShort {
		return fmt.Errorf("direction must be LONG or SHORT, got %q", p.Direction)
	}
	if p.EntryPrice <= 0 {
		return fmt.Errorf("entry price must be positive")
	}
	if p.Quantity <= 0 {
		return fmt.Errorf("quantity must be positive")
	}
	return nil
}

// PositionClose describes a terminal transition.
type PositionClose struct {
	Status   PositionStatus
	ClosedAt time.Time
}

// PositionPatch lists the only fields of a position that may change after it is opened.
// Build one with MarkToMarket or CloseAt.
type PositionPatch struct {
	CurrentPrice float64
	PnL          float64
	PnLPercent   float64
	Close        *PositionClose
}

// MarkToMarket refreshes price and PnL without touching the status.
func MarkToMarket(price, pnl, pnlPercent float64) PositionPatch {
	return PositionPatch{CurrentPrice: price, PnL: pnl, PnLPercent: pnlPercent}
}

// CloseAt finalises price and PnL and moves the position into a terminal status.
func CloseAt(price, pnl, pnlPercent float64, status PositionStatus, at time.Time) (PositionPatch, error) {
	if !status.Terminal() {
		return PositionPatch{}, fmt.Errorf("close status must be terminal, got %q", status)
	}
	return PositionPatch{
		CurrentPrice: price,
		PnL:          pnl,
		PnLPercent:   pnlPercent,
		Close:        &PositionClose{Status: status, ClosedAt: at},
	}, nil
}
