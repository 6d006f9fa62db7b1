package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ovoz/admin/internal/config"
	"github.com/ovoz/admin/internal/db"
	"github.com/ovoz/admin/internal/media"
	"github.com/ovoz/admin/internal/notifications"
	"github.com/ovoz/admin/internal/observability"
	"github.com/ovoz/admin/internal/queue/worker"
	"github.com/ovoz/admin/internal/repo/postgres"
	"github.com/ovoz/admin/internal/upstream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	cfg := config.Load()

	log := observability.NewLogger(cfg.Env, cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)

	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, observability.TracerConfig{
		ServiceName: cfg.ServiceName + "-worker",
		Environment: cfg.Env,
		Endpoint:    cfg.OTLPEndpoint,
		SampleRatio: cfg.OTelSampleRate,
	})
	if err != nil {
		log.Error("tracer init failed", "err", err)
		os.Exit(1)
	}

	pool, err := db.NewPool(ctx, cfg.DBURL)
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}

	defer pool.Close()

	if err := db.EnsureSchema(ctx, pool); err != nil {
		log.Error("schema setup failed", "err", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	jobsRepo := postgres.NewJobsRepo(pool, prom)
	deliveriesRepo := postgres.NewNotificationDeliveriesRepo(pool)

	api := upstream.NewClient(cfg.UpstreamBaseURL,
		upstream.WithTimeout(cfg.UpstreamTimeout),
		upstream.WithRateLimit(cfg.UpstreamRateLimit),
		upstream.WithBodyFormat(upstream.BodyFormat(cfg.UpstreamBodyFormat)),
		upstream.WithObserver(prom),
		upstream.WithLogger(log),
	)

	// jobs carry no admin token; the worker signs in with its own account
	var inner notifications.Notifier
	if cfg.ServiceUsername != "" {
		tokens := upstream.NewServiceTokenSource(api, cfg.ServiceUsername, cfg.ServicePassword)
		inner = notifications.NewUpstreamNotifier(api, tokens)
	} else {
		log.Warn("no upstream service account configured, notifications are only logged")
		dry := notifications.NewLogNotifier(log)
		dry.Delay = cfg.DryRunDelay
		dry.Fail = cfg.DryRunFail
		inner = dry
	}

	notifier := notifications.NewProtectedNotifier(inner,
		notifications.ProtectedNotifierConfig{
			Timeout:          cfg.UpstreamTimeout,
			FailureThreshold: 5,
			Cooldown:         30 * time.Second,
			HalfOpenMaxCalls: 1,
			Logger:           log,
		},
	)

	mediaClient := media.NewClient(cfg.MediaBaseURL,
		media.NewKeySigner(cfg.MediaClient, cfg.MediaSecret, cfg.MediaKey),
		media.WithHTTPClient(&http.Client{Timeout: cfg.MediaTimeout}),
		media.WithProject(cfg.MediaProject),
		media.WithLogger(log),
	)

	host, _ := os.Hostname()
	workerID := host + "-" + strconv.Itoa(os.Getpid())

	w := worker.New(worker.Config{
		PollInterval:  cfg.WorkerPollInterval,
		WorkerID:      workerID,
		Concurrency:   cfg.WorkerConcurrency,
		ShutdownGrace: 10 * time.Second,
		LockTTL:       2 * time.Minute,
		JobTimeout:    cfg.UpstreamTimeout + 5*time.Second,
	}, jobsRepo, notifier, deliveriesRepo, mediaClient,
		worker.WithLogger(log),
		worker.WithProm(prom),
	)

	healthSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WorkerHealthPort),
		Handler:           w.HealthHandler(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("worker health server starting", "port", cfg.WorkerHealthPort)
		if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("health server failed", "err", err)
		}
	}()

	log.Info("worker has started", "worker_id", workerID, "concurrency", cfg.WorkerConcurrency)

	if err := w.Run(ctx); err != nil {
		log.Error("worker stopped with error", "err", err)
	}

	shutdownCtx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("health server shutdown failed", "err", err)
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Error("tracer shutdown failed", "err", err)
	}

	log.Info("worker shutdown complete")
}
