package notifications

import "context"

type SendEventNotificationInput struct {
	EventID int64
	JobID   string
}

// Notifier broadcasts an event to its subscribe channels.
type Notifier interface {
	SendEventNotification(ctx context.Context, input SendEventNotificationInput) error
}
