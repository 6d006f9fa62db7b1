package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ovoz/admin/internal/cache"
	"github.com/ovoz/admin/internal/domain/channel"
	"github.com/ovoz/admin/internal/sanitize"
)

type ChannelsAPI interface {
	ListChannels(ctx context.Context, keyword string) ([]channel.Channel, error)
	CreateChannel(ctx context.Context, req channel.CreateRequest) (channel.Channel, error)
	UpdateChannel(ctx context.Context, id string, req channel.UpdateRequest) (channel.Channel, error)
	DeleteChannel(ctx context.Context, id string) error
}

type ChannelsHandler struct {
	api   ChannelsAPI
	lists listCache
}

func NewChannelsHandler(api ChannelsAPI, c cache.Store, ttl time.Duration) *ChannelsHandler {
	return &ChannelsHandler{api: api, lists: listCache{store: c, ttl: ttl}}
}

// cleanChannel returns the offending field when one is empty after cleanup.
func cleanChannel(id, name, link *string) string {
	*id = strings.TrimSpace(*id)
	*name = sanitize.Text(*name)
	*link = strings.TrimSpace(*link)

	switch {
	case *id == "":
		return "id"
	case *name == "":
		return "name"
	case *link == "":
		return "link"
	}

	return ""
}

// GET /channels?keyword=

func (h *ChannelsHandler) List(ctx *gin.Context) {
	keyword := sanitize.Text(ctx.Query("keyword"))
	key := cache.ChannelsListKey(keyword)
	rctx := ctx.Request.Context()

	items, hit := cachedList[channel.Channel](rctx, h.lists, key)
	if !hit {
		var err error
		items, err = h.api.ListChannels(rctx, keyword)
		if err != nil {
			RespondUpstream(ctx, err, "Channels not found", "Failed to load channels")
			return
		}

		h.lists.put(rctx, key, items)
	}

	ids := make([]string, 0, len(items))
	for _, c := range items {
		ids = append(ids, c.ID)
	}
	rememberListing(rctx, h.lists, cache.LastChannelsKey(listScope(ctx)), "keyword="+keyword, ids)

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"items": items,
		"count": len(items),
	})
}

// POST /channels

func (h *ChannelsHandler) Create(ctx *gin.Context) {
	var req channel.CreateRequest
	if !BindJSON(ctx, &req) {
		return
	}

	if field := cleanChannel(&req.ID, &req.Name, &req.Link); field != "" {
		RespondValidation(ctx, field, "Channel "+field+" is required")
		return
	}

	rctx := ctx.Request.Context()

	c, err := h.api.CreateChannel(rctx, req)
	if err != nil {
		RespondUpstream(ctx, err, "Channel not found", "Failed to create channel")
		return
	}

	h.lists.invalidate(rctx, cache.PrefixChannels)

	ctx.JSON(http.StatusCreated, c)
}

// PUT /channels/:id

func (h *ChannelsHandler) Update(ctx *gin.Context) {
	id := strings.TrimSpace(ctx.Param("id"))

	var req channel.UpdateRequest
	if !BindJSON(ctx, &req) {
		return
	}

	if field := cleanChannel(&req.ID, &req.Name, &req.Link); field != "" {
		RespondValidation(ctx, field, "Channel "+field+" is required")
		return
	}

	rctx := ctx.Request.Context()

	if absentFromLastList(rctx, h.lists, cache.LastChannelsKey(listScope(ctx)), id) {
		RespondNotFound(ctx, "Channel not found")
		return
	}

	c, err := h.api.UpdateChannel(rctx, id, req)
	if err != nil {
		RespondUpstream(ctx, err, "Channel not found", "Failed to update channel")
		return
	}

	h.lists.invalidate(rctx, cache.PrefixChannels)

	ctx.JSON(http.StatusOK, c)
}

// DELETE /channels/:id

func (h *ChannelsHandler) Delete(ctx *gin.Context) {
	id := strings.TrimSpace(ctx.Param("id"))
	rctx := ctx.Request.Context()

	if absentFromLastList(rctx, h.lists, cache.LastChannelsKey(listScope(ctx)), id) {
		RespondNotFound(ctx, "Channel not found")
		return
	}

	if err := h.api.DeleteChannel(rctx, id); err != nil {
		RespondUpstream(ctx, err, "Channel not found", "Failed to delete channel")
		return
	}

	h.lists.invalidate(rctx, cache.PrefixChannels)

	ctx.Status(http.StatusNoContent)
}
