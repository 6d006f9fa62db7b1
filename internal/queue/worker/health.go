package worker

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthHandler serves liveness, readiness, a job counter snapshot and
// Prometheus metrics for the worker process.
func (w *Worker) HealthHandler(gatherer prometheus.Gatherer) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())

	// liveness: process is up
	r.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// readiness flips off once shutdown starts
	r.GET("/readyz", func(c *gin.Context) {
		if !w.Ready() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/stats", func(c *gin.Context) {
		s := w.metrics.Snapshot()
		c.JSON(http.StatusOK, gin.H{
			"claimed":        s.Claimed,
			"done":           s.Done,
			"failed":         s.Failed,
			"retried":        s.Retried,
			"deadLettered":   s.DeadLettered,
			"avgDurationMs":  s.AverageDuration.Milliseconds(),
			"maxDurationMs":  s.MaxDuration.Milliseconds(),
			"durationSample": s.DurationCount,
			"lastDoneAt":     optionalTime(s.LastDoneAt),
			"lastFailedAt":   optionalTime(s.LastFailedAt),
			"byType":         s.ByType,
		})
	})

	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	return r
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
