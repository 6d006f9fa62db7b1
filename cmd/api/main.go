package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ovoz/admin/internal/auth"
	"github.com/ovoz/admin/internal/cache"
	"github.com/ovoz/admin/internal/config"
	"github.com/ovoz/admin/internal/db"
	"github.com/ovoz/admin/internal/dispatch"
	httpx "github.com/ovoz/admin/internal/http"
	"github.com/ovoz/admin/internal/media"
	"github.com/ovoz/admin/internal/notifications"
	"github.com/ovoz/admin/internal/observability"
	"github.com/ovoz/admin/internal/redisclient"
	"github.com/ovoz/admin/internal/repo/memory"
	"github.com/ovoz/admin/internal/repo/postgres"
	"github.com/ovoz/admin/internal/session"
	"github.com/ovoz/admin/internal/submission"
	"github.com/ovoz/admin/internal/upstream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	// Load the config set up
	cfg := config.Load()

	// start up the observability logger
	log := observability.NewLogger(cfg.Env, cfg.LogLevel)
	slog.SetDefault(log)

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	shutdownTracer, err := observability.InitTracer(rootCtx, observability.TracerConfig{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Env,
		Endpoint:    cfg.OTLPEndpoint,
		SampleRatio: cfg.OTelSampleRate,
	})
	if err != nil {
		log.Error("tracer init failed", "err", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	// list cache and sessions share one store; redis when configured
	var store cache.Store = cache.New(cfg.ListCacheTTL)
	if cfg.RedisURL != "" || cfg.RedisAddr != "" {
		connectCtx, cancel := config.WithTimeout(5 * time.Second)
		rc, err := redisclient.Connect(connectCtx, redisclient.Config{
			URL:      cfg.RedisURL,
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, 3)
		cancel()
		if err != nil {
			log.Error("redis unavailable", "err", err)
			os.Exit(1)
		}
		defer rc.Close()

		store = cache.NewRedisStore(rc.Raw(), "ovoz-admin", cfg.ListCacheTTL)
		log.Info("redis cache enabled", "addr", rc.Addr())
	}

	sessions := session.New(store)
	jwtManager := auth.NewManager(cfg.JWTSecret, cfg.JWTAccessTTL)

	tracedTransport := otelhttp.NewTransport(http.DefaultTransport)

	api := upstream.NewClient(cfg.UpstreamBaseURL,
		upstream.WithHTTPClient(&http.Client{Transport: tracedTransport}),
		upstream.WithTimeout(cfg.UpstreamTimeout),
		upstream.WithRateLimit(cfg.UpstreamRateLimit),
		upstream.WithBodyFormat(upstream.BodyFormat(cfg.UpstreamBodyFormat)),
		upstream.WithObserver(prom),
		upstream.WithLogger(log),
	)

	mediaClient := media.NewClient(cfg.MediaBaseURL,
		media.NewKeySigner(cfg.MediaClient, cfg.MediaSecret, cfg.MediaKey),
		media.WithHTTPClient(&http.Client{Transport: tracedTransport, Timeout: cfg.MediaTimeout}),
		media.WithProject(cfg.MediaProject),
		media.WithLogger(log),
	)

	drafts := memory.NewDraftsRepo(cfg.DraftTTL)
	drafts.OnSizeChange(prom.SetDraftsOpen)
	go drafts.RunJanitor(rootCtx, time.Minute)

	deps := httpx.Deps{
		Config:    cfg,
		Prom:      prom,
		Gatherer:  reg,
		JWT:       jwtManager,
		Sessions:  sessions,
		Upstream:  api,
		Media:     mediaClient,
		Cache:     store,
		Drafts:    drafts,
		Submitter: submission.New(api, store, drafts, submission.WithMetrics(prom), submission.WithLogger(log)),
	}

	if cfg.JobsEnabled {
		pool, err := db.NewPool(rootCtx, cfg.DBURL)
		if err != nil {
			log.Error("db connect failed", "err", err)
			os.Exit(1)
		}
		defer pool.Close()

		if err := db.EnsureSchema(rootCtx, pool); err != nil {
			log.Error("schema setup failed", "err", err)
			os.Exit(1)
		}

		jobsRepo := postgres.NewJobsRepo(pool, prom)

		deps.Dispatcher = dispatch.NewQueue(jobsRepo, postgres.IsUniqueViolation)
		deps.Cleanup = dispatch.NewMediaCleanup(jobsRepo)
		deps.Jobs = jobsRepo
		deps.Ping = func() error {
			ctx, cancel := config.WithTimeout(2 * time.Second)
			defer cancel()
			return pool.Ping(ctx)
		}

		log.Info("job queue enabled")
	} else {
		// without the queue the admin's own upstream token does the send
		deps.Dispatcher = dispatch.NewDirect(notifications.NewUpstreamNotifier(api, nil))
	}

	// set up routers with the deps
	router := httpx.NewRouter(deps)

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.UpstreamTimeout + cfg.MediaTimeout,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env, "jobs_enabled", cfg.JobsEnabled)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		ctx, cancel := config.WithTimeout(10 * time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("graceful shutdown failed", "err", err)
		}

		if err := shutdownTracer(ctx); err != nil {
			log.Error("tracer shutdown failed", "err", err)
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}
