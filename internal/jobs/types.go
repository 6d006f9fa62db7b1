package jobs

import "errors"

type JobType string

const (
	// JobSendEventNotification asks the voting API to broadcast an event to
	// its subscribe channels.
	JobSendEventNotification JobType = "send_event_notification"

	// JobDeleteMedia retries the removal of a cover image the media service
	// failed to delete while a draft was open.
	JobDeleteMedia JobType = "delete_media"
)

var (
	ErrInvalidJobType      = errors.New("jobs: unknown job type")
	ErrInvalidJobPayload   = errors.New("jobs: payload is missing required fields")
	ErrPayloadTypeMismatch = errors.New("jobs: payload does not belong to job type")
)

// Types lists every job type the worker can execute.
func Types() []JobType {
	return []JobType{JobSendEventNotification, JobDeleteMedia}
}

func (t JobType) IsValid() bool {
	for _, known := range Types() {
		if t == known {
			return true
		}
	}
	return false
}
