package delivery

import "errors"

// Kind names what a notification_deliveries row records.
const KindEventNotification = "event.notification"

const (
	StatusSending = "sending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

var (
	ErrAlreadySent = errors.New("notification already sent")
	ErrInProgress  = errors.New("notification send in progress")
)
