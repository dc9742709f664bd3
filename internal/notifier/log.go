package notifier

import (
	"context"
	"log"

	"CryptoSentinel/internal/model"
)

// LogNotifier writes notifications to the log. It is used when no bot token is configured.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier { return &LogNotifier{} }

func (LogNotifier) Notify(_ context.Context, userID int64, n model.Notification) error {
	log.Printf("[INFO] notify user %d:\n%s", userID, FormatNotification(n))
	return nil
}

func (LogNotifier) SendAdmin(_ context.Context, text string) error {
	log.Printf("[INFO] admin message:\n%s", text)
	return nil
}
