package submission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ovoz/admin/internal/cache"
	"github.com/ovoz/admin/internal/domain/event"
	"github.com/ovoz/admin/internal/draft"
	"github.com/ovoz/admin/internal/upstream"
)

var (
	ErrSubmissionInFlight = draft.ErrInFlight
	ErrAlreadySubmitted   = draft.ErrAlreadySubmitted
)

const (
	ActionCreate = "create"
	ActionUpdate = "update"

	MsgCreated      = "Event created"
	MsgUpdated      = "Event updated"
	MsgCreateFailed = "Failed to create event"
	MsgUpdateFailed = "Failed to update event"
)

type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusRejected  Status = "rejected"
	StatusFailed    Status = "failed"
)

// EventWriter is the part of the upstream client a submission needs.
type EventWriter interface {
	CreateEvent(ctx context.Context, p upstream.Body) (event.Event, error)
	UpdateEvent(ctx context.Context, id int64, p upstream.Body) (event.Event, error)
}

// Sessions removes a finished draft from wherever drafts are kept.
type Sessions interface {
	Delete(ctx context.Context, id string) error
}

type Metrics interface {
	ObserveSubmission(action, outcome string)
}

// Outcome is what the user sees after a submission attempt.
type Outcome struct {
	Status   Status       `json:"status"`
	Action   string       `json:"action"`
	Message  string       `json:"message"`
	Field    string       `json:"field,omitempty"`
	Event    *event.Event `json:"event,omitempty"`
	Redirect string       `json:"redirect,omitempty"`
	Err      error        `json:"-"`
}

type Orchestrator struct {
	events   EventWriter
	cache    cache.Store
	sessions Sessions
	metrics  Metrics
	log      *slog.Logger
	now      func() time.Time
}

type Option func(*Orchestrator)

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

func WithMetrics(m Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.log = log
	}
}

func New(events EventWriter, c cache.Store, sessions Sessions, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		events:   events,
		cache:    c,
		sessions: sessions,
		log:      slog.Default(),
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Submit validates, normalises and sends one draft. The returned error is
// non-nil only when the submission could not start; every attempt that did
// start is described by the Outcome.
func (o *Orchestrator) Submit(ctx context.Context, d *draft.Draft) (Outcome, error) {
	snap, err := d.Begin()
	if err != nil {
		return Outcome{}, err
	}

	action := ActionCreate
	if snap.Mode == draft.ModeEdit {
		action = ActionUpdate
	}

	payload, err := draft.Normalize(snap, o.now())
	if err != nil {
		if terr := d.Transition(draft.StateValidating, draft.StateIdle); terr != nil {
			return Outcome{}, terr
		}

		out := Outcome{Status: StatusRejected, Action: action, Message: err.Error(), Err: err}

		var vErr *draft.ValidationError
		if errors.As(err, &vErr) {
			out.Field = vErr.Field
		}

		o.record(ctx, d, out)

		return out, nil
	}

	if err := d.Transition(draft.StateValidating, draft.StateSubmitting); err != nil {
		return Outcome{}, err
	}

	var ev event.Event
	if action == ActionCreate {
		ev, err = o.events.CreateEvent(ctx, payload)
	} else {
		ev, err = o.events.UpdateEvent(ctx, snap.EventID, payload)
	}

	if err != nil {
		if terr := d.Transition(draft.StateSubmitting, draft.StateIdle); terr != nil {
			return Outcome{}, terr
		}

		fallback := MsgCreateFailed
		if action == ActionUpdate {
			fallback = MsgUpdateFailed
		}

		out := Outcome{Status: StatusFailed, Action: action, Message: upstream.MessageOr(err, fallback), Err: err}
		o.record(ctx, d, out)

		return out, nil
	}

	if err := d.Transition(draft.StateSubmitting, draft.StateSucceeded); err != nil {
		return Outcome{}, err
	}

	if err := o.cache.DeletePrefix(ctx, cache.PrefixEvents); err != nil {
		o.log.WarnContext(ctx, "event cache invalidation failed", "err", err)
	}

	if err := o.sessions.Delete(ctx, d.ID); err != nil && !errors.Is(err, draft.ErrNotFound) {
		o.log.WarnContext(ctx, "draft close failed", "draft_id", d.ID, "err", err)
	}
	d.Close()

	out := Outcome{Status: StatusSucceeded, Action: action, Message: MsgUpdated, Event: &ev}
	if action == ActionCreate {
		out.Message = MsgCreated
		out.Redirect = fmt.Sprintf("/event/edit/%d", ev.ID)
	}

	o.record(ctx, d, out)

	return out, nil
}

func (o *Orchestrator) record(ctx context.Context, d *draft.Draft, out Outcome) {
	if o.metrics != nil {
		o.metrics.ObserveSubmission(out.Action, string(out.Status))
	}

	attrs := []any{
		"draft_id", d.ID,
		"action", out.Action,
		"status", out.Status,
	}

	if out.Event != nil {
		attrs = append(attrs, "event_id", out.Event.ID)
	}

	if out.Err != nil {
		attrs = append(attrs, "err", out.Err)
		o.log.WarnContext(ctx, "draft submission", attrs...)
		return
	}

	o.log.InfoContext(ctx, "draft submission", attrs...)
}
