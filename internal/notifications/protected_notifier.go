package notifications

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/ovoz/admin/internal/upstream"
)

var ErrCircuitOpen = errors.New("notifications: voting api circuit open")

type breakerState string

const (
	stateClosed   breakerState = "closed"
	stateOpen     breakerState = "open"
	stateHalfOpen breakerState = "half_open"
)

type ProtectedNotifierConfig struct {
	Timeout          time.Duration // per send
	FailureThreshold int           // consecutive counted failures before opening
	Cooldown         time.Duration // open period before a trial call
	HalfOpenMaxCalls int           // trial calls allowed while half open
	Logger           *slog.Logger
}

// ProtectedNotifier puts a timeout and a circuit breaker in front of the
// voting API. Answers that say the request itself was wrong (4xx other than
// 401/429) do not count against the upstream, and neither does the caller
// giving up.
type ProtectedNotifier struct {
	inner Notifier
	cfg   ProtectedNotifierConfig
	log   *slog.Logger
	now   func() time.Time

	mu                  sync.Mutex
	state               breakerState
	consecutiveFailures int
	openedAt            time.Time
	halfOpenInFlight    int
}

func NewProtectedNotifier(inner Notifier, cfg ProtectedNotifierConfig) *ProtectedNotifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = 1
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	return &ProtectedNotifier{
		inner: inner,
		cfg:   cfg,
		log:   log,
		now:   time.Now,
		state: stateClosed,
	}
}

func (n *ProtectedNotifier) SendEventNotification(ctx context.Context, in SendEventNotificationInput) error {
	if !n.acquire() {
		return ErrCircuitOpen
	}

	sendCtx, cancel := context.WithTimeout(ctx, n.cfg.Timeout)
	defer cancel()

	err := n.inner.SendEventNotification(sendCtx, in)

	// the caller went away; says nothing about the upstream
	if err != nil && ctx.Err() != nil {
		n.release()
		return err
	}

	n.record(in.EventID, err)
	return err
}

func (n *ProtectedNotifier) acquire() bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch n.state {
	case stateOpen:
		if n.now().Sub(n.openedAt) < n.cfg.Cooldown {
			return false
		}
		n.transition(stateHalfOpen)
		n.halfOpenInFlight = 1
		return true
	case stateHalfOpen:
		if n.halfOpenInFlight >= n.cfg.HalfOpenMaxCalls {
			return false
		}
		n.halfOpenInFlight++
		return true
	default:
		return true
	}
}

func (n *ProtectedNotifier) release() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.state == stateHalfOpen && n.halfOpenInFlight > 0 {
		n.halfOpenInFlight--
	}
}

func (n *ProtectedNotifier) record(eventID int64, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.state == stateHalfOpen && n.halfOpenInFlight > 0 {
		n.halfOpenInFlight--
	}

	if err == nil || !countsAgainstUpstream(err) {
		n.consecutiveFailures = 0
		if n.state != stateClosed {
			n.transition(stateClosed)
		}
		return
	}

	n.consecutiveFailures++

	if n.state == stateHalfOpen || n.consecutiveFailures >= n.cfg.FailureThreshold {
		if n.state != stateOpen {
			n.log.Warn("voting api circuit opened",
				"event_id", eventID,
				"consecutive_failures", n.consecutiveFailures,
				"err", err,
			)
		}
		n.transition(stateOpen)
		n.openedAt = n.now()
	}
}

// transition must be called with mu held.
func (n *ProtectedNotifier) transition(to breakerState) {
	if n.state == to {
		return
	}
	n.log.Info("voting api circuit state", "from", string(n.state), "to", string(to))
	n.state = to
}

func countsAgainstUpstream(err error) bool {
	var ue *upstream.Error
	if !errors.As(err, &ue) || ue.Status == 0 {
		return true
	}

	switch {
	case ue.Status == http.StatusUnauthorized, ue.Status == http.StatusTooManyRequests:
		return true
	case ue.Status >= 400 && ue.Status < 500:
		return false
	default:
		return true
	}
}

// State reports "closed", "open" or "half_open".
func (n *ProtectedNotifier) State() string {
	n.mu.Lock()
	defer n.mu.Unlock()

	return string(n.state)
}
