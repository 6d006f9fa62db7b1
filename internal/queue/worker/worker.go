package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ovoz/admin/internal/domain/job"
	"github.com/ovoz/admin/internal/notifications"
	"github.com/ovoz/admin/internal/observability"
)

type JobsRepository interface {
	ClaimNext(ctx context.Context, workerID string) (job.Job, error)
	MarkDone(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, errMsg string) error
	Reschedule(ctx context.Context, id string, runAt time.Time, errMsg string) error
	RequeueStaleProcessing(ctx context.Context, lockTTL time.Duration) (int64, error)
}

type DeliveriesRepository interface {
	TryStart(ctx context.Context, jobID string, eventID int64) error
	MarkSent(ctx context.Context, jobID string) error
	MarkFailed(ctx context.Context, jobID string, errMsg string) error
}

type MediaDeleter interface {
	Delete(ctx context.Context, key string) error
}

type Config struct {
	PollInterval  time.Duration
	WorkerID      string
	Concurrency   int
	ShutdownGrace time.Duration
	// LockTTL is how long a processing job may stay locked before it is
	// handed to another worker.
	LockTTL time.Duration
	// JobTimeout bounds one execution.
	JobTimeout time.Duration
}

type Worker struct {
	cfg        Config
	repo       JobsRepository
	notifier   notifications.Notifier
	deliveries DeliveriesRepository
	media      MediaDeleter

	log     *slog.Logger
	prom    *observability.Prom
	metrics *observability.JobMetrics
	now     func() time.Time

	readyMu sync.RWMutex
	ready   bool
}

type Option func(*Worker)

func WithLogger(log *slog.Logger) Option {
	return func(w *Worker) { w.log = log }
}

func WithProm(p *observability.Prom) Option {
	return func(w *Worker) { w.prom = p }
}

func WithJobMetrics(m *observability.JobMetrics) Option {
	return func(w *Worker) { w.metrics = m }
}

func New(cfg Config, repo JobsRepository, notifier notifications.Notifier, deliveries DeliveriesRepository, media MediaDeleter, opts ...Option) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 10 * time.Second
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 2 * time.Minute
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 30 * time.Second
	}

	w := &Worker{
		cfg:        cfg,
		repo:       repo,
		notifier:   notifier,
		deliveries: deliveries,
		media:      media,
		log:        slog.Default(),
		metrics:    observability.NewJobMetrics(),
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

func (w *Worker) Metrics() *observability.JobMetrics {
	return w.metrics
}

func (w *Worker) setReady(v bool) {
	w.readyMu.Lock()
	w.ready = v
	w.readyMu.Unlock()
}

func (w *Worker) Ready() bool {
	w.readyMu.RLock()
	defer w.readyMu.RUnlock()

	return w.ready
}

// Run polls with cfg.Concurrency loops until ctx ends, then lets running
// jobs finish for up to cfg.ShutdownGrace.
func (w *Worker) Run(ctx context.Context) error {
	// jobs keep running on their own context so a shutdown signal does not
	// cut an upstream call in half
	jobCtx, cancelJobs := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelJobs()

	var wg sync.WaitGroup

	for i := 0; i < w.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.loop(ctx, jobCtx)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		w.requeueLoop(ctx)
	}()

	w.setReady(true)
	w.log.InfoContext(ctx, "worker started", "worker_id", w.cfg.WorkerID, "concurrency", w.cfg.Concurrency)

	<-ctx.Done()
	w.setReady(false)
	w.log.Info("worker received shutdown signal")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(w.cfg.ShutdownGrace):
		w.log.Warn("shutdown grace elapsed, cancelling running jobs")
		cancelJobs()
		<-done
	}

	return nil
}

func (w *Worker) loop(ctx, jobCtx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		processed, err := w.ProcessOne(jobCtx)
		if err != nil {
			w.log.Error("process job", "err", err)
		}

		if processed {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.cfg.PollInterval):
		}
	}
}

func (w *Worker) requeueLoop(ctx context.Context) {
	t := time.NewTicker(w.cfg.LockTTL / 2)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := w.repo.RequeueStaleProcessing(ctx, w.cfg.LockTTL)
			if err != nil {
				w.log.WarnContext(ctx, "requeue stale jobs", "err", err)
				continue
			}
			if n > 0 {
				w.log.InfoContext(ctx, "requeued stale jobs", "count", n)
			}
		}
	}
}
