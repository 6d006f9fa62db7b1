package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ovoz/admin/internal/cache"
	"github.com/ovoz/admin/internal/domain/event"
	"github.com/ovoz/admin/internal/sanitize"
	"github.com/ovoz/admin/internal/utils"
)

type EventsAPI interface {
	ListEvents(ctx context.Context, keyword string) ([]event.Event, error)
	EndingSoon(ctx context.Context) ([]event.Event, error)
	GetEvent(ctx context.Context, id int64) (event.Event, error)
	DeleteEvent(ctx context.Context, id int64) error
}

type EventsHandler struct {
	api   EventsAPI
	lists listCache
	now   func() time.Time
}

// NewEventsHandler caches listings in c for ttl. A nil c disables caching
// and the last-listing check.
func NewEventsHandler(api EventsAPI, c cache.Store, ttl time.Duration) *EventsHandler {
	return &EventsHandler{
		api:   api,
		lists: listCache{store: c, ttl: ttl},
		now:   time.Now,
	}
}

func eventIDs(events []event.Event) []int64 {
	ids := make([]int64, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}

	return ids
}

// GET /events?keyword=

func (h *EventsHandler) ListEvents(ctx *gin.Context) {
	keyword := sanitize.Text(ctx.Query("keyword"))
	key := cache.EventsListKey(keyword)
	rctx := ctx.Request.Context()

	events, ok := cachedList[event.Event](rctx, h.lists, key)
	if !ok {
		var err error
		events, err = h.api.ListEvents(rctx, keyword)
		if err != nil {
			RespondUpstream(ctx, err, "Events not found", "Failed to load events")
			return
		}

		h.lists.put(rctx, key, events)
	}

	rememberListing(rctx, h.lists, cache.LastEventsKey(listScope(ctx)), "keyword="+keyword, eventIDs(events))

	items := event.Views(events, h.now())

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"items": items,
		"count": len(items),
	})
}

// GET /events/ending-soon

func (h *EventsHandler) EndingSoon(ctx *gin.Context) {
	rctx := ctx.Request.Context()
	key := cache.EndingSoonKey()

	events, ok := cachedList[event.Event](rctx, h.lists, key)
	if !ok {
		var err error
		events, err = h.api.EndingSoon(rctx)
		if err != nil {
			RespondUpstream(ctx, err, "Events not found", "Failed to load ending events")
			return
		}

		h.lists.put(rctx, key, events)
	}

	items := event.Views(events, h.now())

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"items": items,
		"count": len(items),
	})
}

// GET /events/:id

func (h *EventsHandler) GetEventByID(ctx *gin.Context) {
	id, ok := utils.ParseID(ctx.Param("id"))
	if !ok {
		RespondBadRequest(ctx, "Invalid event id", nil)
		return
	}

	e, err := h.api.GetEvent(ctx.Request.Context(), id)
	if err != nil {
		RespondUpstream(ctx, err, "Event not found", "Failed to load event")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, event.View{Event: e, Status: e.StatusAt(h.now())})
}

// DELETE /events/:id

func (h *EventsHandler) DeleteEvent(ctx *gin.Context) {
	id, ok := utils.ParseID(ctx.Param("id"))
	if !ok {
		RespondBadRequest(ctx, "Invalid event id", nil)
		return
	}

	rctx := ctx.Request.Context()

	if absentFromLastList(rctx, h.lists, cache.LastEventsKey(listScope(ctx)), id) {
		RespondNotFound(ctx, "Event not found")
		return
	}

	if err := h.api.DeleteEvent(rctx, id); err != nil {
		RespondUpstream(ctx, err, "Event not found", "Failed to delete event")
		return
	}

	h.lists.invalidate(rctx, cache.PrefixEvents, cache.PrefixCandidates)

	ctx.Status(http.StatusNoContent)
}
