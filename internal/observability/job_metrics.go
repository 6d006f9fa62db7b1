package observability

import (
	"sync"
	"time"
)

// JobMetrics keeps in-process worker counters for the /stats endpoint. The
// Prometheus series carry the same information for scraping.
type JobMetrics struct {
	mu sync.Mutex

	claimed uint64
	byType  map[string]*JobTypeStats

	durationCount uint64
	durationTotal time.Duration
	durationMax   time.Duration

	lastDoneAt   time.Time
	lastFailedAt time.Time
}

type JobTypeStats struct {
	Done         uint64 `json:"done"`
	Retried      uint64 `json:"retried"`
	DeadLettered uint64 `json:"deadLettered"`
}

func NewJobMetrics() *JobMetrics {
	return &JobMetrics{byType: make(map[string]*JobTypeStats)}
}

func (m *JobMetrics) IncClaimed() {
	m.mu.Lock()
	m.claimed++
	m.mu.Unlock()
}

// Record counts one finished execution. result is done, retry or failed.
func (m *JobMetrics) Record(jobType, result string, d time.Duration, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.byType[jobType]
	if !ok {
		s = &JobTypeStats{}
		m.byType[jobType] = s
	}

	switch result {
	case "done":
		s.Done++
		m.lastDoneAt = at
	case "retry":
		s.Retried++
		m.lastFailedAt = at
	case "failed":
		s.DeadLettered++
		m.lastFailedAt = at
	}

	m.durationCount++
	m.durationTotal += d
	if d > m.durationMax {
		m.durationMax = d
	}
}

type JobMetricsSnapShot struct {
	Claimed         uint64
	Done            uint64
	Failed          uint64
	Retried         uint64
	DeadLettered    uint64
	DurationCount   uint64
	AverageDuration time.Duration
	MaxDuration     time.Duration
	LastDoneAt      time.Time
	LastFailedAt    time.Time
	ByType          map[string]JobTypeStats
}

func (m *JobMetrics) Snapshot() JobMetricsSnapShot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := JobMetricsSnapShot{
		Claimed:       m.claimed,
		DurationCount: m.durationCount,
		MaxDuration:   m.durationMax,
		LastDoneAt:    m.lastDoneAt,
		LastFailedAt:  m.lastFailedAt,
		ByType:        make(map[string]JobTypeStats, len(m.byType)),
	}

	if m.durationCount > 0 {
		s.AverageDuration = m.durationTotal / time.Duration(m.durationCount)
	}

	for t, ts := range m.byType {
		s.ByType[t] = *ts
		s.Done += ts.Done
		s.Retried += ts.Retried
		s.DeadLettered += ts.DeadLettered
	}
	s.Failed = s.Retried + s.DeadLettered

	return s
}

// ObserveJob records one finished job execution. result is done, retry or
// failed.
func (p *Prom) ObserveJob(jobType, result string, d time.Duration) {
	p.JobResults.WithLabelValues(jobType, result).Inc()
	p.JobDuration.WithLabelValues(jobType, result).Observe(d.Seconds())
}
