package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ovoz/admin/internal/domain/event"
	"github.com/ovoz/admin/internal/upstream"
	"golang.org/x/sync/errgroup"
)

type DashboardAPI interface {
	Dashboard(ctx context.Context) (upstream.Stats, error)
	EndingSoon(ctx context.Context) ([]event.Event, error)
}

type DashboardHandler struct {
	api DashboardAPI
	now func() time.Time
}

func NewDashboardHandler(api DashboardAPI) *DashboardHandler {
	return &DashboardHandler{api: api, now: time.Now}
}

// GET /dashboard

func (h *DashboardHandler) Get(ctx *gin.Context) {
	var (
		stats  upstream.Stats
		ending []event.Event
	)

	g, gctx := errgroup.WithContext(ctx.Request.Context())

	g.Go(func() error {
		var err error
		stats, err = h.api.Dashboard(gctx)
		return err
	})

	g.Go(func() error {
		var err error
		ending, err = h.api.EndingSoon(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		RespondUpstream(ctx, err, "Dashboard not found", "Failed to load dashboard")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"stats":      stats,
		"endingSoon": event.Views(ending, h.now()),
	})
}
