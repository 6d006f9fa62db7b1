package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ovoz/admin/internal/auth"
	"github.com/ovoz/admin/internal/cache"
	"github.com/ovoz/admin/internal/config"
	"github.com/ovoz/admin/internal/dispatch"
	"github.com/ovoz/admin/internal/http/handlers"
	"github.com/ovoz/admin/internal/http/middlewares"
	"github.com/ovoz/admin/internal/media"
	"github.com/ovoz/admin/internal/observability"
	"github.com/ovoz/admin/internal/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const jsonBodyLimit = 1 << 20

// UpstreamAPI is everything the dashboard asks of the voting API.
type UpstreamAPI interface {
	handlers.UpstreamLogin
	handlers.EventsAPI
	handlers.DashboardAPI
	handlers.CandidatesAPI
	handlers.ChannelsAPI
}

type Deps struct {
	Config   config.Config
	Prom     *observability.Prom
	Gatherer prometheus.Gatherer
	Ping     func() error

	JWT      *auth.Manager
	Sessions *session.Store
	Upstream UpstreamAPI
	Media    handlers.MediaStore
	Cache    cache.Store

	Drafts     handlers.DraftStore
	Submitter  handlers.Submitter
	Dispatcher dispatch.Notifications

	// Set only when the job queue is enabled.
	Cleanup handlers.MediaCleanup
	Jobs    handlers.AdminJobsRepo
}

func NewRouter(d Deps) *gin.Engine {
	if d.Config.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(otelgin.Middleware(d.Config.ServiceName))
	r.Use(middlewares.RequestLogger())
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(d.Config.CORSAllowedOrigins))

	// health
	h := handlers.NewHealthHandler(d.Ping)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	ttl := d.Config.ListCacheTTL

	authHandler := handlers.NewAuthHandler(d.Upstream, d.JWT, d.Sessions)
	dashboardHandler := handlers.NewDashboardHandler(d.Upstream)
	eventsHandler := handlers.NewEventsHandler(d.Upstream, d.Cache, ttl)
	candidatesHandler := handlers.NewCandidatesHandler(d.Upstream, d.Cache, ttl)
	channelsHandler := handlers.NewChannelsHandler(d.Upstream, d.Cache, ttl)
	notificationsHandler := handlers.NewNotificationsHandler(d.Upstream, d.Dispatcher)
	draftsHandler := handlers.NewDraftsHandler(handlers.DraftsDeps{
		Drafts:   d.Drafts,
		Events:   d.Upstream,
		Media:    d.Media,
		Submit:   d.Submitter,
		Cleanup:  d.Cleanup,
		Cache:    d.Cache,
		Location: d.Config.Timezone,
	})

	authMW := middlewares.NewAuthMiddleware(d.JWT, d.Sessions)

	// 10 login attempts per minute per IP
	loginLimiter := middlewares.NewRateLimiter(10, time.Minute)
	// sends fan out to every subscribed channel
	sendLimiter := middlewares.NewRateLimiter(20, time.Minute)

	r.POST("/auth/login",
		middlewares.MaxBodyBytes(jsonBodyLimit),
		middlewares.RequireJSON(),
		loginLimiter.RateLimiterMiddleware(middlewares.KeyByIP),
		authHandler.Login,
	)

	admin := r.Group("/", authMW.RequireAuth(), authMW.RequireRole(auth.RoleAdmin))

	// the cover upload is multipart and larger than any JSON body
	admin.POST("/drafts/:draftId/image", middlewares.MaxBodyBytes(media.MaxFileSize+jsonBodyLimit), draftsHandler.UploadImage)

	api := admin.Group("", middlewares.MaxBodyBytes(jsonBodyLimit), middlewares.RequireJSON())
	{
		api.POST("/auth/logout", authHandler.Logout)

		api.GET("/dashboard", dashboardHandler.Get)

		api.GET("/events", eventsHandler.ListEvents)
		api.GET("/events/ending-soon", eventsHandler.EndingSoon)
		api.GET("/events/:id", eventsHandler.GetEventByID)
		api.DELETE("/events/:id", eventsHandler.DeleteEvent)
		api.POST("/events/:id/send", sendLimiter.RateLimiterMiddleware(middlewares.KeyByUserOrIP), notificationsHandler.Send)
		api.GET("/events/:id/candidates", candidatesHandler.List)
		api.POST("/events/:id/drafts", draftsHandler.OpenEdit)

		api.POST("/candidates", candidatesHandler.Create)
		api.PUT("/candidates/:id", candidatesHandler.Update)
		api.DELETE("/candidates/:id", candidatesHandler.Delete)

		api.GET("/channels", channelsHandler.List)
		api.POST("/channels", channelsHandler.Create)
		api.PUT("/channels/:id", channelsHandler.Update)
		api.DELETE("/channels/:id", channelsHandler.Delete)

		api.POST("/drafts", draftsHandler.OpenCreate)
		api.GET("/drafts/:draftId", draftsHandler.Get)
		api.PATCH("/drafts/:draftId", draftsHandler.Patch)
		api.PUT("/drafts/:draftId/finish/date", draftsHandler.SetFinishDate)
		api.PUT("/drafts/:draftId/finish/time", draftsHandler.SetFinishTime)
		api.DELETE("/drafts/:draftId/finish", draftsHandler.ClearFinish)
		api.DELETE("/drafts/:draftId/image", draftsHandler.DeleteImage)
		api.POST("/drafts/:draftId/submit", draftsHandler.Submit)
		api.DELETE("/drafts/:draftId", draftsHandler.Discard)
	}

	if d.Jobs != nil {
		jobsHandler := handlers.NewAdminJobsHandler(d.Jobs)

		api.GET("/admin/jobs", jobsHandler.List)
		api.GET("/admin/jobs/:id", jobsHandler.GetByID)
		api.POST("/admin/jobs/:id/retry", jobsHandler.Retry)
		api.POST("/admin/jobs/reprocess-dead", jobsHandler.ReprocessDead)
	}

	return r
}
