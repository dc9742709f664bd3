package model

import "time"

// NotificationKind tells the notifier how to render a payload.
type NotificationKind string

const (
	NotifyPositionClosed NotificationKind = "POSITION_CLOSED"
	NotifyAlertTriggered NotificationKind = "ALERT_TRIGGERED"
	NotifySignal         NotificationKind = "SIGNAL"
)

// Notification is the structured payload handed to a notification sink.
// Rendering it to text is the sink's job.
type Notification struct {
	Kind       NotificationKind
	Symbol     string
	Direction  Direction
	EntryPrice float64
	ExitPrice  float64
	PnLPercent float64
	Status     PositionStatus
	Condition  AlertCondition
	Target     float64
	Signal     *Signal
	At         time.Time
}
