package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ovoz"

// Prom holds every collector the api and the worker export. Both processes
// build one against their own registry.
type Prom struct {
	RequestsTotal    *prometheus.CounterVec
	RequestsDuration *prometheus.HistogramVec
	ResponseSize     *prometheus.HistogramVec
	InFlight         *prometheus.GaugeVec

	DbQueryDuration *prometheus.HistogramVec
	DbErrorsTotal   *prometheus.CounterVec

	JobDuration  *prometheus.HistogramVec
	JobResults   *prometheus.CounterVec
	JobsInFlight prometheus.Gauge

	UpstreamDuration *prometheus.HistogramVec
	UpstreamErrors   *prometheus.CounterVec

	SubmissionsTotal *prometheus.CounterVec
	DraftsOpen       prometheus.Gauge
}

func NewProm(reg prometheus.Registerer) *Prom {
	f := promauto.With(reg)

	return &Prom{
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Dashboard API requests by route and status.",
		}, []string{"method", "route", "status"}),
		RequestsDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Dashboard API latency.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 15},
		}, []string{"method", "route", "status"}),
		ResponseSize: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "Response body size.",
			Buckets:   []float64{100, 1000, 10000, 100000, 1000000},
		}, []string{"route"}),
		InFlight: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_in_flight_requests",
			Help:      "Requests currently being served.",
		}, []string{"route"}),

		DbQueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Job store latency by logical operation.",
			Buckets:   []float64{.002, .005, .01, .025, .05, .1, .25, .5, 1, 2},
		}, []string{"op", "status"}),
		DbErrorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "errors_total",
			Help:      "Job store errors by logical operation and class.",
		}, []string{"op", "class"}),

		JobDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "duration_seconds",
			Help:      "Job execution time by type and result.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"job_type", "result"}),
		JobResults: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "results_total",
			Help:      "Job outcomes: done, retry or failed.",
		}, []string{"job_type", "result"}),
		JobsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "in_flight",
			Help:      "Jobs this worker process is executing.",
		}),

		UpstreamDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "request_duration_seconds",
			Help:      "Voting API and media service latency by operation and status.",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"op", "status"}),
		UpstreamErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "errors_total",
			Help:      "Failed upstream calls by class: transport, client or server.",
		}, []string{"op", "class"}),

		SubmissionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Draft submissions by action and outcome.",
		}, []string{"action", "outcome"}),
		DraftsOpen: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "drafts_open",
			Help:      "Editing sessions held in the draft store.",
		}),
	}
}

// GinHandleMiddleware records request metrics under the matched route
// template. Unrouted requests share one label.
func (p *Prom) GinHandleMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()

		route := ctx.FullPath()
		if route == "" {
			route = "unmatched"
		}

		inFlight := p.InFlight.WithLabelValues(route)
		inFlight.Inc()
		defer inFlight.Dec()

		ctx.Next()

		status := strconv.Itoa(ctx.Writer.Status())
		method := ctx.Request.Method

		p.RequestsTotal.WithLabelValues(method, route, status).Inc()
		p.RequestsDuration.WithLabelValues(method, route, status).Observe(time.Since(start).Seconds())
		if n := ctx.Writer.Size(); n > 0 {
			p.ResponseSize.WithLabelValues(route).Observe(float64(n))
		}
	}
}
