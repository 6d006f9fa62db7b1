package jobs

import "time"

// SendEventNotificationPayload keeps only the event id; the worker asks the
// upstream to do the actual send.
type SendEventNotificationPayload struct {
	EventID     int64     `json:"eventId"`
	RequestedBy string    `json:"requestedBy,omitempty"`
	RequestedAt time.Time `json:"requestedAt"`
	RequestID   string    `json:"requestId,omitempty"`
}

type DeleteMediaPayload struct {
	Key     string `json:"key"`
	DraftID string `json:"draftId,omitempty"`
}
