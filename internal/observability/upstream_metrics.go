package observability

import (
	"strconv"
	"time"
)

// ObserveUpstream records one call to the voting API.
func (p *Prom) ObserveUpstream(op string, status int, err error, d time.Duration) {
	code := "none"
	if status > 0 {
		code = strconv.Itoa(status)
	}

	p.UpstreamDuration.WithLabelValues(op, code).Observe(d.Seconds())

	if err == nil {
		return
	}

	class := "transport"
	switch {
	case status >= 500:
		class = "server"
	case status >= 400:
		class = "client"
	}

	p.UpstreamErrors.WithLabelValues(op, class).Inc()
}

func (p *Prom) ObserveSubmission(action, outcome string) {
	p.SubmissionsTotal.WithLabelValues(action, outcome).Inc()
}

func (p *Prom) SetDraftsOpen(n int) {
	p.DraftsOpen.Set(float64(n))
}
