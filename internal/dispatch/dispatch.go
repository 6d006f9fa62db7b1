package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ovoz/admin/internal/actorctx"
	"github.com/ovoz/admin/internal/domain/job"
	"github.com/ovoz/admin/internal/jobs"
	"github.com/ovoz/admin/internal/notifications"
)

// Result says how a send request was handled.
type Result struct {
	Queued          bool       `json:"queued"`
	JobID           string     `json:"jobId,omitempty"`
	Status          job.Status `json:"status,omitempty"`
	AlreadyEnqueued bool       `json:"alreadyEnqueued,omitempty"`
}

// Notifications starts the send of an event notification.
type Notifications interface {
	SendEventNotification(ctx context.Context, eventID int64, requestID string) (Result, error)
}

// Direct sends inline on the request.
type Direct struct {
	notifier notifications.Notifier
}

func NewDirect(n notifications.Notifier) *Direct {
	return &Direct{notifier: n}
}

func (d *Direct) SendEventNotification(ctx context.Context, eventID int64, _ string) (Result, error) {
	if err := d.notifier.SendEventNotification(ctx, notifications.SendEventNotificationInput{EventID: eventID}); err != nil {
		return Result{}, err
	}

	return Result{}, nil
}

type JobCreator interface {
	Create(ctx context.Context, req job.CreateRequest) (job.Job, error)
	GetByIdempotencyKey(ctx context.Context, key string) (job.Job, error)
}

// IdempotencyWindow folds repeated send clicks for one event into one job.
const IdempotencyWindow = time.Minute

// Queue enqueues the send for the worker.
type Queue struct {
	jobs        JobCreator
	isDuplicate func(error) bool
	now         func() time.Time
	log         *slog.Logger
}

// NewQueue takes the predicate that recognises an idempotency key clash in
// the job store's errors.
func NewQueue(jobsRepo JobCreator, isDuplicate func(error) bool) *Queue {
	return &Queue{
		jobs:        jobsRepo,
		isDuplicate: isDuplicate,
		now:         time.Now,
		log:         slog.Default(),
	}
}

func (q *Queue) SendEventNotification(ctx context.Context, eventID int64, requestID string) (Result, error) {
	now := q.now().UTC()
	who, _ := actorctx.UsernameFrom(ctx)

	raw, err := jobs.EncodePayload(jobs.JobSendEventNotification, jobs.SendEventNotificationPayload{
		EventID:     eventID,
		RequestedBy: who,
		RequestedAt: now,
		RequestID:   requestID,
	})
	if err != nil {
		return Result{}, err
	}

	key := fmt.Sprintf("notify:event:%d:%d", eventID, now.Truncate(IdempotencyWindow).Unix())

	req := job.CreateRequest{
		Type:           string(jobs.JobSendEventNotification),
		Payload:        json.RawMessage(raw),
		RunAt:          now,
		IdempotencyKey: &key,
		Priority:       10,
	}
	if who != "" {
		req.CreatedBy = &who
	}

	j, err := q.jobs.Create(ctx, req)
	if err != nil {
		if q.isDuplicate == nil || !q.isDuplicate(err) {
			return Result{}, fmt.Errorf("enqueue notification: %w", err)
		}

		existing, gerr := q.jobs.GetByIdempotencyKey(ctx, key)
		if gerr != nil {
			return Result{}, fmt.Errorf("load existing job: %w", errors.Join(err, gerr))
		}

		q.log.InfoContext(ctx, "job.enqueue",
			"request_id", requestID,
			"job_id", existing.ID,
			"job_type", existing.Type,
			"already_enqueued", true,
		)

		return Result{Queued: true, JobID: existing.ID, Status: existing.Status, AlreadyEnqueued: true}, nil
	}

	q.log.InfoContext(ctx, "job.enqueue",
		"request_id", requestID,
		"job_id", j.ID,
		"job_type", j.Type,
		"already_enqueued", false,
	)

	return Result{Queued: true, JobID: j.ID, Status: j.Status}, nil
}

// MediaCleanup queues the removal of an image the media service refused to
// delete inline.
type MediaCleanup struct {
	jobs JobCreator
}

func NewMediaCleanup(jobsRepo JobCreator) *MediaCleanup {
	return &MediaCleanup{jobs: jobsRepo}
}

func (m *MediaCleanup) EnqueueDelete(ctx context.Context, key, draftID string) error {
	raw, err := jobs.EncodePayload(jobs.JobDeleteMedia, jobs.DeleteMediaPayload{Key: key, DraftID: draftID})
	if err != nil {
		return err
	}

	req := job.CreateRequest{
		Type:    string(jobs.JobDeleteMedia),
		Payload: json.RawMessage(raw),
		RunAt:   time.Now().UTC().Add(30 * time.Second),
	}
	if who, ok := actorctx.UsernameFrom(ctx); ok {
		req.CreatedBy = &who
	}

	_, err = m.jobs.Create(ctx, req)
	return err
}
