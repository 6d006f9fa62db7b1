package jobs

import "strings"

// ValidatePayload checks that a payload carries the ids its job needs.
func ValidatePayload(t JobType, payload any) error {
	switch t {
	case JobSendEventNotification:
		var p SendEventNotificationPayload
		switch v := payload.(type) {
		case SendEventNotificationPayload:
			p = v
		case *SendEventNotificationPayload:
			p = *v
		default:
			return ErrPayloadTypeMismatch
		}
		if p.EventID <= 0 {
			return ErrInvalidJobPayload
		}
		return nil

	case JobDeleteMedia:
		var p DeleteMediaPayload
		switch v := payload.(type) {
		case DeleteMediaPayload:
			p = v
		case *DeleteMediaPayload:
			p = *v
		default:
			return ErrPayloadTypeMismatch
		}
		if strings.TrimSpace(p.Key) == "" {
			return ErrInvalidJobPayload
		}
		return nil

	default:
		return ErrInvalidJobType
	}
}
