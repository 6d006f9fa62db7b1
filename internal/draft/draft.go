package draft

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ovoz/admin/internal/domain/channel"
	"github.com/ovoz/admin/internal/domain/event"
	"github.com/ovoz/admin/internal/media"
	"github.com/ovoz/admin/internal/sanitize"
	"github.com/ovoz/admin/internal/schedule"
)

type Mode string

const (
	ModeCreate Mode = "create"
	ModeEdit   Mode = "edit"
)

type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateSubmitting State = "submitting"
	StateSucceeded  State = "succeeded"
)

var (
	ErrNotFound              = errors.New("draft not found")
	ErrSentChannelsImmutable = errors.New("sent channels cannot be changed once the event exists")
	ErrInFlight              = errors.New("a submission is already in flight for this draft")
	ErrAlreadySubmitted      = errors.New("draft was already submitted")
	ErrBadTransition         = errors.New("invalid draft state transition")
)

// ExistingImage is the cover image stored upstream for an edited event.
type ExistingImage struct {
	URL  string `json:"imageUrl"`
	ID   string `json:"imageId"`
	Name string `json:"imageName"`
}

// Draft is one editing session of an event form. All methods are safe for
// concurrent use.
type Draft struct {
	ID      string
	Mode    Mode
	EventID int64

	mu        sync.Mutex
	name      string
	descr     *string
	isActive  *bool
	finish    *schedule.Picker
	upload    *media.Upload
	existing  *ExistingImage
	subscribe []channel.Ref
	sent      []channel.Ref
	state     State
	touchedAt time.Time
	now       func() time.Time
}

type Options struct {
	Now      func() time.Time
	Location *time.Location
}

func (o Options) clock() func() time.Time {
	if o.Now == nil {
		return time.Now
	}

	return o.Now
}

func NewCreate(opts Options) *Draft {
	now := opts.clock()
	active := true

	return &Draft{
		ID:        uuid.NewString(),
		Mode:      ModeCreate,
		isActive:  &active,
		finish:    schedule.NewPicker(now, opts.Location, nil),
		state:     StateIdle,
		touchedAt: now(),
		now:       now,
	}
}

// NewEdit opens a draft pre-populated from the event as the upstream stores it.
func NewEdit(ev event.Event, opts Options) *Draft {
	now := opts.clock()
	descr := ev.Descr
	active := ev.IsActive

	var finish *time.Time
	if !ev.FinishDate.IsZero() {
		f := ev.FinishDate
		finish = &f
	}

	return &Draft{
		ID:        uuid.NewString(),
		Mode:      ModeEdit,
		EventID:   ev.ID,
		name:      ev.Name,
		descr:     &descr,
		isActive:  &active,
		finish:    schedule.NewPicker(now, opts.Location, finish),
		existing:  &ExistingImage{URL: ev.ImageURL, ID: ev.ImageID, Name: ev.ImageName},
		subscribe: channel.Refs(ev.SubscribeChannels),
		sent:      channel.Refs(ev.SentChannels),
		state:     StateIdle,
		touchedAt: now(),
		now:       now,
	}
}

// FieldPatch carries the scalar and relational fields a client may change.
// Nil members are left untouched.
type FieldPatch struct {
	Name              *string        `json:"name" binding:"omitempty,max=200"`
	Descr             *string        `json:"descr" binding:"omitempty,max=5000"`
	IsActive          *bool          `json:"isActive"`
	SubscribeChannels *[]channel.Ref `json:"subscribeChannels"`
	SentChannels      *[]channel.Ref `json:"sentChannels"`
}

func (d *Draft) Apply(p FieldPatch) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.editableLocked(); err != nil {
		return err
	}

	if p.SentChannels != nil && d.Mode == ModeEdit {
		return ErrSentChannelsImmutable
	}

	if p.Name != nil {
		d.name = sanitize.Text(*p.Name)
	}

	if p.Descr != nil {
		s := sanitize.Description(*p.Descr)
		d.descr = &s
	}

	if p.IsActive != nil {
		v := *p.IsActive
		d.isActive = &v
	}

	if p.SubscribeChannels != nil {
		d.subscribe = nonNil(*p.SubscribeChannels)
	}

	if p.SentChannels != nil {
		d.sent = nonNil(*p.SentChannels)
	}

	d.touchLocked()

	return nil
}

func (d *Draft) SelectDate(day time.Time) (time.Time, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.editableLocked(); err != nil {
		return time.Time{}, err
	}

	d.touchLocked()

	return d.finish.SelectDate(day), nil
}

func (d *Draft) ApplyTime(hours, minutes int) (time.Time, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.editableLocked(); err != nil {
		return time.Time{}, err
	}

	d.touchLocked()

	return d.finish.ApplyTime(hours, minutes)
}

func (d *Draft) ClearFinish() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.editableLocked(); err != nil {
		return err
	}

	d.finish.Clear()
	d.touchLocked()

	return nil
}

// SetUpload records a fresh upload and returns the one it replaces, if any.
func (d *Draft) SetUpload(u media.Upload) (*media.Upload, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.editableLocked(); err != nil {
		return nil, err
	}

	prev := d.upload
	d.upload = &u
	d.touchLocked()

	return prev, nil
}

// ClearImage drops the cover image reference and returns the media key that
// should be removed from storage, if one is known. In edit mode the stored
// triple is blanked so the next submission clears it upstream.
func (d *Draft) ClearImage() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.editableLocked(); err != nil {
		return "", err
	}

	var key string

	switch {
	case d.upload != nil:
		key = d.upload.Key
		d.upload = nil
	case d.existing != nil && d.existing.URL != "":
		key, _ = media.KeyFromURL(d.existing.URL)
		d.existing = &ExistingImage{}
	}

	d.touchLocked()

	return key, nil
}

func (d *Draft) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.snapshotLocked()
}

// Begin starts a submission and returns the draft contents to submit.
func (d *Draft) Begin() (Snapshot, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.state {
	case StateValidating, StateSubmitting:
		return Snapshot{}, ErrInFlight
	case StateSucceeded:
		return Snapshot{}, ErrAlreadySubmitted
	}

	d.state = StateValidating

	return d.snapshotLocked(), nil
}

func (d *Draft) Transition(from, to State) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != from {
		return ErrBadTransition
	}

	d.state = to
	d.touchLocked()

	return nil
}

func (d *Draft) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.state
}

func (d *Draft) TouchedAt() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.touchedAt
}

// Close releases the draft's timers. Called when the editing session ends.
func (d *Draft) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.finish.Close()
}

func (d *Draft) View() View {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := d.snapshotLocked()

	return View{
		ID:                d.ID,
		Mode:              d.Mode,
		EventID:           d.EventID,
		Name:              s.Name,
		Descr:             s.Descr,
		IsActive:          s.IsActive,
		FinishDate:        s.Finish,
		Advisory:          d.finish.Advisory(),
		Timezone:          d.finish.Location().String(),
		MinimumFinish:     schedule.MinimumAllowedInstant(d.now()),
		Upload:            s.Upload,
		Existing:          s.Existing,
		SubscribeChannels: s.SubscribeChannels,
		SentChannels:      s.SentChannels,
		State:             d.state,
	}
}

func (d *Draft) editableLocked() error {
	switch d.state {
	case StateValidating, StateSubmitting:
		return ErrInFlight
	case StateSucceeded:
		return ErrAlreadySubmitted
	}

	return nil
}

func (d *Draft) touchLocked() {
	d.touchedAt = d.now()
}

func (d *Draft) snapshotLocked() Snapshot {
	s := Snapshot{
		Mode:              d.Mode,
		EventID:           d.EventID,
		Name:              strings.TrimSpace(d.name),
		SubscribeChannels: cloneRefs(d.subscribe),
		SentChannels:      cloneRefs(d.sent),
	}

	if d.descr != nil {
		v := *d.descr
		s.Descr = &v
	}

	if d.isActive != nil {
		v := *d.isActive
		s.IsActive = &v
	}

	if t, ok := d.finish.Instant(); ok {
		s.Finish = &t
	}

	if d.upload != nil {
		u := *d.upload
		s.Upload = &u
	}

	if d.existing != nil {
		e := *d.existing
		s.Existing = &e
	}

	return s
}

// Snapshot is an immutable copy of a draft's contents.
type Snapshot struct {
	Mode              Mode
	EventID           int64
	Name              string
	Descr             *string
	IsActive          *bool
	Finish            *time.Time
	Upload            *media.Upload
	Existing          *ExistingImage
	SubscribeChannels []channel.Ref
	SentChannels      []channel.Ref
}

type View struct {
	ID                string         `json:"id"`
	Mode              Mode           `json:"mode"`
	EventID           int64          `json:"eventId,omitempty"`
	Name              string         `json:"name"`
	Descr             *string        `json:"descr,omitempty"`
	IsActive          *bool          `json:"isActive,omitempty"`
	FinishDate        *time.Time     `json:"finishDate"`
	MinimumFinish     time.Time      `json:"minimumFinishDate"`
	Advisory          string         `json:"advisory,omitempty"`
	Timezone          string         `json:"timezone"`
	Upload            *media.Upload  `json:"upload,omitempty"`
	Existing          *ExistingImage `json:"existingImage,omitempty"`
	SubscribeChannels []channel.Ref  `json:"subscribeChannels"`
	SentChannels      []channel.Ref  `json:"sentChannels"`
	State             State          `json:"state"`
}

func cloneRefs(in []channel.Ref) []channel.Ref {
	if in == nil {
		return nil
	}

	out := make([]channel.Ref, len(in))
	copy(out, in)

	return out
}

func nonNil(in []channel.Ref) []channel.Ref {
	if in == nil {
		return []channel.Ref{}
	}

	return cloneRefs(in)
}
