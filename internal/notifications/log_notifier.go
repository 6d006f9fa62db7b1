package notifications

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

var errSimulatedOutage = errors.New("notifications: simulated voting api outage")

// LogNotifier records the broadcast instead of asking the voting API for it.
// The worker falls back to it when no service account is configured. Delay
// and Fail let local runs exercise the retry path.
type LogNotifier struct {
	log   *slog.Logger
	Delay time.Duration
	Fail  bool
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) SendEventNotification(ctx context.Context, in SendEventNotificationInput) error {
	if n.Delay > 0 {
		t := time.NewTimer(n.Delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if n.Fail {
		return errSimulatedOutage
	}

	n.log.InfoContext(ctx, "event notification (dry run)", "event_id", in.EventID, "job_id", in.JobID)
	return nil
}
