package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ovoz/admin/internal/actorctx"
	"github.com/ovoz/admin/internal/domain/delivery"
	"github.com/ovoz/admin/internal/domain/job"
	"github.com/ovoz/admin/internal/jobs"
	"github.com/ovoz/admin/internal/notifications"
	"github.com/ovoz/admin/internal/upstream"
)

// permanentError marks a failure that retrying cannot fix.
type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

func permanent(err error) error { return permanentError{err: err} }

var errDeliveryInProgress = errors.New("delivery held by another worker")

// ProcessOne claims and runs at most one job. It reports false when nothing
// was runnable.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	claimCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	j, err := w.repo.ClaimNext(claimCtx, w.cfg.WorkerID)
	cancel()

	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			return false, nil
		}
		return false, err
	}

	w.metrics.IncClaimed()
	if w.prom != nil {
		w.prom.JobsInFlight.Inc()
		defer w.prom.JobsInFlight.Dec()
	}

	start := w.now()

	runCtx, cancelRun := context.WithTimeout(ctx, w.cfg.JobTimeout)
	err = w.execute(runCtx, j)
	cancelRun()

	d := w.now().Sub(start)

	if err != nil {
		result := w.handleFailure(ctx, j, err)
		w.observe(j.Type, result, d)
		return true, nil
	}

	if err := w.repo.MarkDone(ctx, j.ID); err != nil {
		_ = w.repo.MarkFailed(ctx, j.ID, "mark_done_failed: "+err.Error())
		return true, err
	}

	w.observe(j.Type, "done", d)
	w.log.InfoContext(ctx, "job done", "job_id", j.ID, "job_type", j.Type, "attempt", j.Attempts+1)

	return true, nil
}

func (w *Worker) observe(jobType, result string, d time.Duration) {
	w.metrics.Record(jobType, result, d, w.now())
	if w.prom != nil {
		w.prom.ObserveJob(jobType, result, d)
	}
}

func (w *Worker) execute(ctx context.Context, j job.Job) error {
	t := jobs.JobType(j.Type)

	payload, err := jobs.DecodePayload(t, j.Payload)
	if err != nil {
		return permanent(err)
	}

	switch p := payload.(type) {
	case jobs.SendEventNotificationPayload:
		return w.sendEventNotification(ctx, j, p)
	case jobs.DeleteMediaPayload:
		return w.deleteMedia(ctx, p)
	default:
		return permanent(fmt.Errorf("%w: %s", jobs.ErrInvalidJobType, j.Type))
	}
}

func (w *Worker) sendEventNotification(ctx context.Context, j job.Job, p jobs.SendEventNotificationPayload) error {
	if p.RequestID != "" {
		ctx = actorctx.WithRequestID(ctx, p.RequestID)
	}

	err := w.deliveries.TryStart(ctx, j.ID, p.EventID)
	switch {
	case errors.Is(err, delivery.ErrAlreadySent):
		w.log.InfoContext(ctx, "notification already sent", "job_id", j.ID, "event_id", p.EventID)
		return nil
	case errors.Is(err, delivery.ErrInProgress):
		return errDeliveryInProgress
	case err != nil:
		return err
	}

	err = w.notifier.SendEventNotification(ctx, notifications.SendEventNotificationInput{EventID: p.EventID, JobID: j.ID})
	if err != nil {
		_ = w.deliveries.MarkFailed(ctx, j.ID, err.Error())

		if errors.Is(err, upstream.ErrNotFound) {
			return permanent(err)
		}
		return err
	}

	return w.deliveries.MarkSent(ctx, j.ID)
}

func (w *Worker) deleteMedia(ctx context.Context, p jobs.DeleteMediaPayload) error {
	if w.media == nil {
		return permanent(errors.New("media client not configured"))
	}

	return w.media.Delete(ctx, p.Key)
}

// handleFailure reschedules with backoff or gives up, and returns the metric
// result label.
func (w *Worker) handleFailure(ctx context.Context, j job.Job, err error) string {
	attempt := j.Attempts + 1
	var perm permanentError

	if errors.As(err, &perm) || attempt >= j.MaxAttempts {
		if mErr := w.repo.MarkFailed(ctx, j.ID, err.Error()); mErr != nil {
			w.log.ErrorContext(ctx, "mark job failed", "job_id", j.ID, "err", mErr)
		}
		w.log.WarnContext(ctx, "job failed", "job_id", j.ID, "job_type", j.Type, "attempt", attempt, "err", err)
		return "failed"
	}

	runAt := w.now().Add(ExponentialBackoff(j.Attempts))
	if rErr := w.repo.Reschedule(ctx, j.ID, runAt, err.Error()); rErr != nil {
		w.log.ErrorContext(ctx, "reschedule job", "job_id", j.ID, "err", rErr)
	}
	w.log.InfoContext(ctx, "job retry scheduled", "job_id", j.ID, "job_type", j.Type, "attempt", attempt, "run_at", runAt, "err", err)

	return "retry"
}
