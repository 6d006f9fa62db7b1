package schedule

import (
	"sync"
	"time"
)

const AdjustedMessage = "Adjusted to future time"

// Advisory is a transient message that clears itself after a TTL. Showing a
// new message or cancelling stops the pending timer, so a stale timer never
// clears a newer message.
type Advisory struct {
	mu      sync.Mutex
	ttl     time.Duration
	message string
	gen     uint64
	timer   *time.Timer
}

func NewAdvisory(ttl time.Duration) *Advisory {
	if ttl <= 0 {
		ttl = AdvisoryTTL
	}

	return &Advisory{ttl: ttl}
}

func (a *Advisory) Show(message string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stopLocked()
	a.gen++
	gen := a.gen
	a.message = message
	a.timer = time.AfterFunc(a.ttl, func() { a.expire(gen) })
}

func (a *Advisory) Cancel() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stopLocked()
	a.gen++
	a.message = ""
}

func (a *Advisory) Message() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.message
}

func (a *Advisory) expire(gen uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.gen != gen {
		return
	}

	a.message = ""
	a.timer = nil
}

func (a *Advisory) stopLocked() {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}
