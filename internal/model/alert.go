package model

import (
	"fmt"
	"time"
)

// AlertCondition selects the side of the target that fires the alert.
type AlertCondition string

const (
	ConditionAbove AlertCondition = "ABOVE"
	ConditionBelow AlertCondition = "BELOW"
)

// Alert is a standing price alert. Triggered goes false -> true exactly once.
type Alert struct {
	ID             int64          `json:"id"`
	UserID         int64          `json:"user_id"`
	Symbol         string         `json:"symbol"`
	Condition      AlertCondition `json:"condition"`
	TargetPrice    float64        `json:"target_price"`
	Triggered      bool           `json:"triggered"`
	TriggeredPrice float64        `json:"triggered_price,omitempty"`
	TriggeredAt    *time.Time     `json:"triggered_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Validate checks the fields a caller must supply when creating an alert.
func (a *Alert) Validate() error {
	if a.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if a.Condition != ConditionAbove && a.Condition != ConditionBelow {
		return fmt.Errorf("condition must be ABOVE or BELOW, got %q", a.Condition)
	}
	if a.TargetPrice <= 0 {
		return fmt.Errorf("target price must be positive")
	}
	return nil
}

// Crossed reports whether price satisfies the alert condition. Both boundaries are inclusive.
func (a *Alert) Crossed(price float64) bool {
	switch a.Condition {
	case ConditionAbove:
		return price >= a.TargetPrice
	case ConditionBelow:
		return price <= a.TargetPrice
	}
	return false
}
