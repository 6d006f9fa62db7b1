package memory

import (
	"context"
	"sync"
	"time"

	"github.com/ovoz/admin/internal/draft"
)

// DraftsRepo holds open editing sessions in process memory. Drafts idle for
// longer than the TTL are dropped and their timers released.
type DraftsRepo struct {
	mu    sync.RWMutex
	ttl   time.Duration
	items map[string]*draft.Draft
	now   func() time.Time
	gauge func(n int)
}

func NewDraftsRepo(ttl time.Duration) *DraftsRepo {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}

	return &DraftsRepo{
		ttl:   ttl,
		items: make(map[string]*draft.Draft),
		now:   time.Now,
		gauge: func(int) {},
	}
}

// OnSizeChange registers a callback fed the number of open drafts.
func (r *DraftsRepo) OnSizeChange(fn func(n int)) {
	r.mu.Lock()
	r.gauge = fn
	r.mu.Unlock()
}

func (r *DraftsRepo) Put(_ context.Context, d *draft.Draft) error {
	r.mu.Lock()
	r.items[d.ID] = d
	n := len(r.items)
	r.mu.Unlock()

	r.gauge(n)

	return nil
}

func (r *DraftsRepo) Get(_ context.Context, id string) (*draft.Draft, error) {
	r.mu.RLock()
	d, ok := r.items[id]
	r.mu.RUnlock()

	if !ok {
		return nil, draft.ErrNotFound
	}

	if r.expired(d) {
		r.remove(id)
		return nil, draft.ErrNotFound
	}

	return d, nil
}

func (r *DraftsRepo) Delete(_ context.Context, id string) error {
	if !r.remove(id) {
		return draft.ErrNotFound
	}

	return nil
}

// Sweep drops expired drafts and reports how many went.
func (r *DraftsRepo) Sweep() int {
	r.mu.Lock()
	var gone []*draft.Draft
	for id, d := range r.items {
		if r.expired(d) {
			gone = append(gone, d)
			delete(r.items, id)
		}
	}
	n := len(r.items)
	r.mu.Unlock()

	for _, d := range gone {
		d.Close()
	}

	r.gauge(n)

	return len(gone)
}

// RunJanitor sweeps every interval until ctx is done.
func (r *DraftsRepo) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.Sweep()
		}
	}
}

func (r *DraftsRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.items)
}

func (r *DraftsRepo) expired(d *draft.Draft) bool {
	// a draft mid-submission is never swept
	if s := d.State(); s == draft.StateValidating || s == draft.StateSubmitting {
		return false
	}

	return r.now().Sub(d.TouchedAt()) > r.ttl
}

func (r *DraftsRepo) remove(id string) bool {
	r.mu.Lock()
	d, ok := r.items[id]
	delete(r.items, id)
	n := len(r.items)
	r.mu.Unlock()

	if ok {
		d.Close()
		r.gauge(n)
	}

	return ok
}
